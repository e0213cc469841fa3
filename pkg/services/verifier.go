package services

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
)

// VerifierService checks manifests entirely from local state: the embedded
// certificate chain, the configured trust anchors and the cached revocation
// list. It never opens a network connection, which makes it safe to run on
// air-gapped machines. Verification outcomes are values, not errors — only a
// manifest that cannot be parsed at all produces an error.
type VerifierService interface {
	Verify(ctx context.Context, input VerifyInput) (*models.ValidationResult, error)
}

type VerifierServiceBackend struct {
	trustAnchors []*x509.Certificate
	crlCache     *CRLCache
	audit        AuditService
	logger       *logrus.Entry
}

type VerifierServiceBuilder struct {
	Logger       *logrus.Entry
	TrustAnchors []*x509.Certificate
	CRLCache     *CRLCache
	Audit        AuditService
}

func NewVerifierService(builder VerifierServiceBuilder) (VerifierService, error) {
	if len(builder.TrustAnchors) == 0 {
		return nil, errs.ErrTrustAnchorsEmpty
	}

	return &VerifierServiceBackend{
		trustAnchors: builder.TrustAnchors,
		crlCache:     builder.CRLCache,
		audit:        builder.Audit,
		logger:       builder.Logger,
	}, nil
}

type VerifyInput struct {
	ManifestBytes []byte `validate:"required"`
	Asset         []byte `validate:"required"`
}

func (svc *VerifierServiceBackend) Verify(ctx context.Context, input VerifyInput) (*models.ValidationResult, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	manifest, err := models.ParseManifest(input.ManifestBytes)
	if err != nil {
		lFunc.Errorf("could not parse manifest: %s", err)
		return nil, err
	}

	result := svc.verifyManifest(ctx, manifest, input.Asset)
	svc.recordOutcome(ctx, manifest, result)
	return result, nil
}

// verifyManifest runs the checks in fixed order: asset hash, signature,
// issuer trust, revocation. The order matters — a signature check against an
// untrusted key is meaningless, but reporting HASH_MISMATCH first gives the
// caller the most actionable failure.
func (svc *VerifierServiceBackend) verifyManifest(ctx context.Context, manifest *models.Manifest, asset []byte) *models.ValidationResult {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	now := time.Now().UTC()

	claim, err := manifest.Claim()
	if err != nil {
		return &models.ValidationResult{
			Status:    models.StatusInvalidSignature,
			Detail:    fmt.Sprintf("embedded claim is malformed: %s", err),
			CheckedAt: now,
		}
	}

	assetDigest := sha256.Sum256(asset)
	if !bytes.Equal(claim.AssetHash, assetDigest[:]) {
		lFunc.Debugf("asset hash mismatch for generator '%s'", claim.GeneratorID)
		return &models.ValidationResult{
			Status:    models.StatusHashMismatch,
			Detail:    "recomputed asset hash does not match the hash bound into the claim",
			CheckedAt: now,
		}
	}

	signerCert := manifest.SignerCertificate()
	if signerCert == nil {
		return &models.ValidationResult{
			Status:    models.StatusInvalidSignature,
			Detail:    "manifest carries no signer certificate",
			CheckedAt: now,
		}
	}

	if !verifySignature(signerCert.PublicKey, manifest.SignatureAlgorithm, manifest.ClaimBytes, manifest.Signature) {
		lFunc.Debugf("signature verification failed for generator '%s'", claim.GeneratorID)
		return &models.ValidationResult{
			Status:    models.StatusInvalidSignature,
			Detail:    "signature does not verify against the signer public key",
			CheckedAt: now,
		}
	}

	if err := svc.verifyChain(manifest); err != nil {
		lFunc.Debugf("issuer chain rejected for generator '%s': %s", claim.GeneratorID, err)
		return &models.ValidationResult{
			Status:    models.StatusUntrustedIssuer,
			Detail:    fmt.Sprintf("certificate chain does not terminate at a trust anchor: %s", err),
			CheckedAt: now,
		}
	}

	if svc.crlCache != nil && svc.crlCache.IsRevoked(signerCert.SerialNumber) {
		serial := helpers.FormatHexWithColons(signerCert.SerialNumber.Bytes())
		lFunc.Warnf("signer certificate serial '%s' is revoked", serial)
		return &models.ValidationResult{
			Status:    models.StatusRevoked,
			Detail:    fmt.Sprintf("signer certificate %s appears on the cached revocation list", serial),
			CheckedAt: now,
		}
	}

	return &models.ValidationResult{
		Status:    models.StatusValid,
		CheckedAt: now,
	}
}

func (svc *VerifierServiceBackend) verifyChain(manifest *models.Manifest) error {
	roots := x509.NewCertPool()
	for _, anchor := range svc.trustAnchors {
		roots.AddCert(anchor)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range manifest.CertificateChain[1:] {
		intermediates.AddCert((*x509.Certificate)(cert))
	}

	_, err := manifest.SignerCertificate().Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	return err
}

func verifySignature(pub any, algorithm models.SignatureAlgorithm, message, signature []byte) bool {
	switch algorithm {
	case models.SignatureAlgorithmEd25519:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return false
		}
		return ed25519.Verify(edPub, message, signature)
	case models.SignatureAlgorithmECDSASHA256:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(ecPub, digest[:], signature)
	default:
		return false
	}
}

func (svc *VerifierServiceBackend) recordOutcome(ctx context.Context, manifest *models.Manifest, result *models.ValidationResult) {
	if svc.audit == nil {
		return
	}

	kind := models.EventManifestVerified
	if result.Status != models.StatusValid {
		kind = models.EventManifestRejected
	}

	eventContext := map[string]any{
		"status": string(result.Status),
	}
	if claim, err := manifest.Claim(); err == nil {
		eventContext["generator_id"] = claim.GeneratorID
	}

	if err := svc.audit.Record(ctx, kind, eventContext); err != nil {
		svc.logger.Warnf("could not record audit event '%s': %s", kind, err)
	}
}
