package models

import (
	"crypto/x509"
	"encoding/hex"
	"time"
)

type SignatureAlgorithm string

const (
	SignatureAlgorithmEd25519     SignatureAlgorithm = "ED25519"
	SignatureAlgorithmECDSASHA256 SignatureAlgorithm = "ECDSA_SHA_256"
)

// Identity is a reference to a signing key held by a crypto engine plus the
// attestation chain issued when the key was created. The private key itself
// never leaves the engine.
type Identity struct {
	KeyID              string             `json:"key_id"`
	PublicKey          []byte             `json:"public_key"`
	SignatureAlgorithm SignatureAlgorithm `json:"signature_algorithm"`
	EngineProvider     string             `json:"engine_provider"`
	CreatedAt          time.Time          `json:"created_at"`
	AttestationChain   []*X509Certificate `json:"attestation_chain"`
}

func (i *Identity) PublicKeyHex() string {
	return hex.EncodeToString(i.PublicKey)
}

func (i *Identity) Certificate() *x509.Certificate {
	if len(i.AttestationChain) == 0 {
		return nil
	}
	return (*x509.Certificate)(i.AttestationChain[0])
}
