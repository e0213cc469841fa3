package services

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"testing"

	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines/software"
	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStack struct {
	engine    cryptoengines.CryptoEngine
	custodian CustodianService
	signer    SignerService
	verifier  VerifierService
	crlCache  *CRLCache
}

func setupEngine(t *testing.T) cryptoengines.CryptoEngine {
	logger := helpers.SetupLogger("none", "Provenance", "Crypto Engine")
	engine, err := software.NewSoftwareCryptoEngine(logger, config.SoftwareConfig{
		StorageDirectory: t.TempDir(),
	})
	require.NoError(t, err)
	return engine
}

func setupStack(t *testing.T) *testStack {
	logger := helpers.SetupLogger("none", "Provenance", "Service")

	engine := setupEngine(t)

	custodian, err := NewCustodianService(CustodianServiceBuilder{
		Logger:    logger,
		Engine:    engine,
		SubjectCN: "provenkit-test",
	})
	require.NoError(t, err)

	sanitizer := NewSanitizerService(SanitizerServiceBuilder{
		Logger: logger,
		Policy: map[string]string{
			"capture_time": "keep",
			"device_model": "keep",
			"gps":          "coarsen",
		},
	})

	signer := NewSignerService(SignerServiceBuilder{
		Logger:    logger,
		Custodian: custodian,
		Sanitizer: sanitizer,
	})

	identity, err := custodian.GetOrCreateIdentity(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, identity.AttestationChain)

	root := (*x509.Certificate)(identity.AttestationChain[len(identity.AttestationChain)-1])
	crlCache := NewCRLCache(logger, "")

	verifier, err := NewVerifierService(VerifierServiceBuilder{
		Logger:       logger,
		TrustAnchors: []*x509.Certificate{root},
		CRLCache:     crlCache,
	})
	require.NoError(t, err)

	return &testStack{
		engine:    engine,
		custodian: custodian,
		signer:    signer,
		verifier:  verifier,
		crlCache:  crlCache,
	}
}

func signTestAsset(t *testing.T, stack *testStack) ([]byte, []byte) {
	asset := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assetHash := sha256.Sum256(asset)

	manifest, err := stack.signer.SignAsset(context.Background(), SignAssetInput{
		GeneratorID: "test-gen-1",
		AssetHash:   assetHash[:],
		RawMetadata: map[string]string{
			"capture_time": "2025-01-01T00:00:00Z",
		},
	})
	require.NoError(t, err)

	serialized, err := manifest.Serialize()
	require.NoError(t, err)

	return serialized, asset
}

func TestSignVerifyRoundTrip(t *testing.T) {
	stack := setupStack(t)
	manifestBytes, asset := signTestAsset(t, stack)

	result, err := stack.verifier.Verify(context.Background(), VerifyInput{
		ManifestBytes: manifestBytes,
		Asset:         asset,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusValid, result.Status)
	assert.False(t, result.OnlineChecked)

	manifest, err := models.ParseManifest(manifestBytes)
	require.NoError(t, err)

	claim, err := manifest.Claim()
	require.NoError(t, err)
	assert.Equal(t, "test-gen-1", claim.GeneratorID)
	require.Len(t, claim.Assertions, 1)
	assert.Equal(t, "capture_time", claim.Assertions[0].Type)
	assert.Equal(t, []byte("2025-01-01T00:00:00Z"), claim.Assertions[0].Payload)
}

func TestVerifyDetectsBitFlip(t *testing.T) {
	stack := setupStack(t)
	manifestBytes, asset := signTestAsset(t, stack)

	manifest, err := models.ParseManifest(manifestBytes)
	require.NoError(t, err)

	manifest.ClaimBytes[len(manifest.ClaimBytes)-1] ^= 0x01
	tampered, err := manifest.Serialize()
	require.NoError(t, err)

	result, err := stack.verifier.Verify(context.Background(), VerifyInput{
		ManifestBytes: tampered,
		Asset:         asset,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInvalidSignature, result.Status)
}

func TestVerifyDetectsSignatureTamper(t *testing.T) {
	stack := setupStack(t)
	manifestBytes, asset := signTestAsset(t, stack)

	manifest, err := models.ParseManifest(manifestBytes)
	require.NoError(t, err)

	manifest.Signature[0] ^= 0x80
	tampered, err := manifest.Serialize()
	require.NoError(t, err)

	result, err := stack.verifier.Verify(context.Background(), VerifyInput{
		ManifestBytes: tampered,
		Asset:         asset,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInvalidSignature, result.Status)
}

func TestVerifyDetectsHashMismatch(t *testing.T) {
	stack := setupStack(t)
	manifestBytes, asset := signTestAsset(t, stack)

	result, err := stack.verifier.Verify(context.Background(), VerifyInput{
		ManifestBytes: manifestBytes,
		Asset:         asset[:len(asset)-1],
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusHashMismatch, result.Status)
}

func TestVerifyRejectsUntrustedIssuer(t *testing.T) {
	stack := setupStack(t)
	manifestBytes, asset := signTestAsset(t, stack)

	// The second stack trusts only its own root.
	otherStack := setupStack(t)

	result, err := otherStack.verifier.Verify(context.Background(), VerifyInput{
		ManifestBytes: manifestBytes,
		Asset:         asset,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUntrustedIssuer, result.Status)
}

func TestVerifyReportsRevokedSigner(t *testing.T) {
	stack := setupStack(t)
	manifestBytes, asset := signTestAsset(t, stack)

	manifest, err := models.ParseManifest(manifestBytes)
	require.NoError(t, err)
	stack.crlCache.markRevokedForTest(manifest.SignerCertificate().SerialNumber)

	result, err := stack.verifier.Verify(context.Background(), VerifyInput{
		ManifestBytes: manifestBytes,
		Asset:         asset,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRevoked, result.Status)
	assert.Contains(t, result.Detail, helpers.FormatHexWithColons(manifest.SignerCertificate().SerialNumber.Bytes()))
}

func TestBuildClaimRejectsEmptyAssetHash(t *testing.T) {
	stack := setupStack(t)

	_, err := stack.signer.BuildClaim(context.Background(), BuildClaimInput{
		GeneratorID: "test-gen-1",
		AssetHash:   nil,
	})
	assert.ErrorIs(t, err, errs.ErrEmptyAssetHash)
}

func TestBuildClaimRejectsMalformedAssertion(t *testing.T) {
	stack := setupStack(t)
	assetHash := sha256.Sum256([]byte("asset"))

	_, err := stack.signer.BuildClaim(context.Background(), BuildClaimInput{
		GeneratorID: "test-gen-1",
		AssetHash:   assetHash[:],
		Assertions:  []models.Assertion{{Type: "", Payload: []byte("x")}},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidAssertion)
}

func TestVerifierRequiresTrustAnchors(t *testing.T) {
	logger := helpers.SetupLogger("none", "Provenance", "Verifier")

	_, err := NewVerifierService(VerifierServiceBuilder{
		Logger:       logger,
		TrustAnchors: nil,
	})
	assert.ErrorIs(t, err, errs.ErrTrustAnchorsEmpty)
}
