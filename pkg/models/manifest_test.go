package models

import (
	"testing"

	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest(t *testing.T) *Manifest {
	claimBytes, err := testClaim().CanonicalBytes()
	require.NoError(t, err)

	return &Manifest{
		Version:            ManifestVersion,
		ClaimBytes:         claimBytes,
		Signature:          []byte{0x01, 0x02, 0x03},
		SignatureAlgorithm: SignatureAlgorithmEd25519,
	}
}

func TestManifestRoundTrip(t *testing.T) {
	manifest := testManifest(t)

	serialized, err := manifest.Serialize()
	require.NoError(t, err)

	parsed, err := ParseManifest(serialized)
	require.NoError(t, err)

	assert.Equal(t, manifest.Version, parsed.Version)
	assert.Equal(t, manifest.ClaimBytes, parsed.ClaimBytes)
	assert.Equal(t, manifest.Signature, parsed.Signature)
	assert.Equal(t, manifest.SignatureAlgorithm, parsed.SignatureAlgorithm)

	claim, err := parsed.Claim()
	require.NoError(t, err)
	assert.Equal(t, "test-gen-1", claim.GeneratorID)
}

func TestManifestSignatureHex(t *testing.T) {
	manifest := testManifest(t)
	assert.Equal(t, "010203", manifest.SignatureHex())
}

func TestParseManifestRejectsFutureVersion(t *testing.T) {
	manifest := testManifest(t)
	manifest.Version = ManifestVersion + 1

	serialized, err := manifest.Serialize()
	require.NoError(t, err)

	_, err = ParseManifest(serialized)
	assert.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

func TestParseManifestRejectsGarbage(t *testing.T) {
	_, err := ParseManifest([]byte("{not json"))
	assert.ErrorIs(t, err, errs.ErrManifestMalformed)
}

func TestParseManifestRejectsMissingFields(t *testing.T) {
	_, err := ParseManifest([]byte(`{"version": 1}`))
	assert.ErrorIs(t, err, errs.ErrManifestMalformed)
}
