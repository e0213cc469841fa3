package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
)

var validate *validator.Validate

// SignerService assembles claims and wraps them into signed manifests. Key
// material never crosses into this service: signing is delegated to the
// custodian, which talks to whichever crypto engine holds the key.
type SignerService interface {
	BuildClaim(ctx context.Context, input BuildClaimInput) (*models.Claim, error)
	SignManifest(ctx context.Context, input SignManifestInput) (*models.Manifest, error)
	SignAsset(ctx context.Context, input SignAssetInput) (*models.Manifest, error)
}

type SignerServiceBackend struct {
	custodian CustodianService
	sanitizer SanitizerService
	audit     AuditService
	logger    *logrus.Entry
}

type SignerServiceBuilder struct {
	Logger    *logrus.Entry
	Custodian CustodianService
	Sanitizer SanitizerService
	Audit     AuditService
}

func NewSignerService(builder SignerServiceBuilder) SignerService {
	validate = validator.New()

	return &SignerServiceBackend{
		custodian: builder.Custodian,
		sanitizer: builder.Sanitizer,
		audit:     builder.Audit,
		logger:    builder.Logger,
	}
}

type BuildClaimInput struct {
	GeneratorID string             `validate:"required"`
	AssetHash   []byte             `validate:"required"`
	Assertions  []models.Assertion `validate:"dive"`
}

func (svc *SignerServiceBackend) BuildClaim(ctx context.Context, input BuildClaimInput) (*models.Claim, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if len(input.AssetHash) == 0 {
		lFunc.Errorf("refusing to build claim for generator '%s': empty asset hash", input.GeneratorID)
		return nil, errs.ErrEmptyAssetHash
	}

	err := validate.Struct(input)
	if err != nil {
		lFunc.Errorf("struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	for _, assertion := range input.Assertions {
		if assertion.Type == "" || len(assertion.Payload) == 0 {
			lFunc.Errorf("malformed assertion in claim for generator '%s'", input.GeneratorID)
			return nil, errs.ErrInvalidAssertion
		}
	}

	claim := &models.Claim{
		GeneratorID: input.GeneratorID,
		AssetHash:   input.AssetHash,
		Assertions:  input.Assertions,
	}

	// Canonical encoding must round-trip before anything is signed. A claim
	// that cannot re-parse would be unverifiable forever.
	encoded, err := claim.CanonicalBytes()
	if err != nil {
		lFunc.Errorf("could not encode claim: %s", err)
		return nil, err
	}

	if _, err := models.ParseClaim(encoded); err != nil {
		lFunc.Errorf("claim did not round-trip through canonical encoding: %s", err)
		return nil, err
	}

	return claim, nil
}

type SignManifestInput struct {
	Claim *models.Claim `validate:"required"`
}

func (svc *SignerServiceBackend) SignManifest(ctx context.Context, input SignManifestInput) (*models.Manifest, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	err := validate.Struct(input)
	if err != nil {
		lFunc.Errorf("struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	encodedClaim, err := input.Claim.CanonicalBytes()
	if err != nil {
		lFunc.Errorf("could not encode claim: %s", err)
		return nil, err
	}

	identity, err := svc.custodian.GetOrCreateIdentity(ctx)
	if err != nil {
		lFunc.Errorf("could not obtain signing identity: %s", err)
		return nil, err
	}

	signature, err := svc.custodian.Sign(ctx, SignInput{Message: encodedClaim})
	if err != nil {
		lFunc.Errorf("signing failed for key '%s': %s", identity.KeyID, err)
		svc.recordEvent(ctx, models.EventManifestRejected, map[string]any{
			"generator_id": input.Claim.GeneratorID,
			"reason":       "signing_failure",
		})
		return nil, errs.ErrSigningFailed
	}

	manifest := &models.Manifest{
		Version:            models.ManifestVersion,
		ClaimBytes:         encodedClaim,
		Signature:          signature,
		SignatureAlgorithm: identity.SignatureAlgorithm,
		CertificateChain:   identity.AttestationChain,
	}

	svc.recordEvent(ctx, models.EventManifestSigned, map[string]any{
		"generator_id": input.Claim.GeneratorID,
		"key_id":       identity.KeyID,
		"assertions":   len(input.Claim.Assertions),
	})

	return manifest, nil
}

type SignAssetInput struct {
	GeneratorID string `validate:"required"`
	AssetHash   []byte `validate:"required"`
	RawMetadata map[string]string
}

// SignAsset is the end to end pipeline: sanitize the capture metadata,
// build a claim around the asset hash, and sign it.
func (svc *SignerServiceBackend) SignAsset(ctx context.Context, input SignAssetInput) (*models.Manifest, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	assertions := svc.sanitizer.SanitizeToAssertions(input.RawMetadata, time.Now().UTC())
	lFunc.Debugf("sanitizer kept %d of %d metadata fields", len(assertions), len(input.RawMetadata))

	claim, err := svc.BuildClaim(ctx, BuildClaimInput{
		GeneratorID: input.GeneratorID,
		AssetHash:   input.AssetHash,
		Assertions:  assertions,
	})
	if err != nil {
		return nil, err
	}

	return svc.SignManifest(ctx, SignManifestInput{Claim: claim})
}

func (svc *SignerServiceBackend) recordEvent(ctx context.Context, kind models.EventType, eventContext map[string]any) {
	if svc.audit == nil {
		return
	}

	err := svc.audit.Record(ctx, kind, eventContext)
	if err != nil {
		svc.logger.Warnf("could not record audit event '%s': %s", kind, err)
	}
}
