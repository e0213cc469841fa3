package software

import (
	"crypto"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T) cryptoengines.CryptoEngine {
	logger := helpers.SetupLogger("none", "Provenance", "Crypto Engine")
	engine, err := NewSoftwareCryptoEngine(logger, config.SoftwareConfig{
		StorageDirectory: t.TempDir(),
	})
	require.NoError(t, err)
	return engine
}

func TestEngineConfig(t *testing.T) {
	engine := setupEngine(t)
	info := engine.GetEngineConfig()

	assert.Equal(t, models.SecurityLevelSoftware, info.SecurityLevel)
	assert.Contains(t, info.SupportedKeyTypes, models.KeyTypeEd25519)
	assert.Contains(t, info.SupportedKeyTypes, models.KeyTypeECDSA)
}

func TestCreateEd25519Key(t *testing.T) {
	engine := setupEngine(t)

	keyID, signer, err := engine.CreateEd25519PrivateKey()
	require.NoError(t, err)
	require.NotNil(t, signer)
	assert.NotEmpty(t, keyID)

	_, ok := signer.Public().(ed25519.PublicKey)
	assert.True(t, ok)

	message := []byte("sign me")
	signature, err := signer.Sign(rand.Reader, message, crypto.Hash(0))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(signer.Public().(ed25519.PublicKey), message, signature))
}

func TestCreateECDSAKey(t *testing.T) {
	engine := setupEngine(t)

	keyID, signer, err := engine.CreateECDSAPrivateKey(elliptic.P256())
	require.NoError(t, err)
	require.NotNil(t, signer)
	assert.NotEmpty(t, keyID)
}

func TestKeySurvivesReload(t *testing.T) {
	engine := setupEngine(t)

	keyID, signer, err := engine.CreateEd25519PrivateKey()
	require.NoError(t, err)

	reloaded, err := engine.GetPrivateKeyByID(keyID)
	require.NoError(t, err)
	assert.Equal(t, signer.Public(), reloaded.Public())
}

func TestListAndDeleteKeys(t *testing.T) {
	engine := setupEngine(t)

	keyID, _, err := engine.CreateEd25519PrivateKey()
	require.NoError(t, err)

	keyIDs, err := engine.ListPrivateKeyIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{keyID}, keyIDs)

	require.NoError(t, engine.DeleteKey(keyID))

	keyIDs, err = engine.ListPrivateKeyIDs()
	require.NoError(t, err)
	assert.Empty(t, keyIDs)

	_, err = engine.GetPrivateKeyByID(keyID)
	assert.Error(t, err)
}

func TestImportEd25519Key(t *testing.T) {
	engine := setupEngine(t)

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	keyID, signer, err := engine.ImportEd25519PrivateKey(key)
	require.NoError(t, err)
	assert.Equal(t, key.Public(), signer.Public())

	expectedID, err := helpers.EncodePKIXPublicKeyDigest(key.Public())
	require.NoError(t, err)
	assert.Equal(t, expectedID, keyID)
}
