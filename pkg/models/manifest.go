package models

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/json"

	"github.com/provenkit/provenkit/pkg/errs"
)

const ManifestVersion = 1

// Manifest is a signed claim plus the certificate chain of the signer. The
// signature covers ClaimBytes exactly as embedded: verification never
// re-encodes the claim, so the envelope stays valid across encoder changes in
// later versions.
type Manifest struct {
	Version            int                `json:"version"`
	ClaimBytes         []byte             `json:"claim"`
	Signature          []byte             `json:"signature"`
	SignatureAlgorithm SignatureAlgorithm `json:"signature_algorithm"`
	CertificateChain   []*X509Certificate `json:"certificate_chain"`
}

func (m *Manifest) Claim() (*Claim, error) {
	return ParseClaim(m.ClaimBytes)
}

func (m *Manifest) SignatureHex() string {
	return hex.EncodeToString(m.Signature)
}

func (m *Manifest) SignerCertificate() *x509.Certificate {
	if len(m.CertificateChain) == 0 {
		return nil
	}
	return (*x509.Certificate)(m.CertificateChain[0])
}

func (m *Manifest) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

// ParseManifest decodes a serialized manifest envelope. The version gate makes
// forward compatibility explicit: envelopes produced by this version stay
// parseable forever, envelopes from a future version are rejected instead of
// being misread.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errs.ErrManifestMalformed
	}

	if manifest.Version > ManifestVersion {
		return nil, errs.ErrUnsupportedVersion
	}

	if len(manifest.ClaimBytes) == 0 || len(manifest.Signature) == 0 {
		return nil, errs.ErrManifestMalformed
	}

	return &manifest, nil
}
