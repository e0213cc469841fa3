package services

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentGetOrCreateIdentitySingleKey(t *testing.T) {
	stack := setupStack(t)

	const callers = 20
	identities := make([]*models.Identity, callers)

	wg := sync.WaitGroup{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			identity, err := stack.custodian.GetOrCreateIdentity(context.Background())
			assert.NoError(t, err)
			identities[slot] = identity
		}(i)
	}
	wg.Wait()

	keyIDs, err := stack.engine.ListPrivateKeyIDs()
	require.NoError(t, err)
	assert.Len(t, keyIDs, 1)

	for _, identity := range identities {
		require.NotNil(t, identity)
		assert.Equal(t, identities[0].KeyID, identity.KeyID)
	}
}

func TestIdentityKeyReusedAcrossRestart(t *testing.T) {
	logger := helpers.SetupLogger("none", "Provenance", "Custodian")
	engine := setupEngine(t)

	first, err := NewCustodianService(CustodianServiceBuilder{
		Logger:    logger,
		Engine:    engine,
		SubjectCN: "provenkit-test",
	})
	require.NoError(t, err)

	firstIdentity, err := first.GetOrCreateIdentity(context.Background())
	require.NoError(t, err)

	// Same engine, fresh service: simulates a process restart.
	second, err := NewCustodianService(CustodianServiceBuilder{
		Logger:    logger,
		Engine:    engine,
		SubjectCN: "provenkit-test",
	})
	require.NoError(t, err)

	secondIdentity, err := second.GetOrCreateIdentity(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstIdentity.KeyID, secondIdentity.KeyID)
	assert.Equal(t, firstIdentity.PublicKey, secondIdentity.PublicKey)
}

func TestIdentityCarriesProvisionedAttestationChain(t *testing.T) {
	stack := setupStack(t)

	identity, err := stack.custodian.GetOrCreateIdentity(context.Background())
	require.NoError(t, err)
	require.Len(t, identity.AttestationChain, 2)

	leaf := (*x509.Certificate)(identity.AttestationChain[0])
	root := (*x509.Certificate)(identity.AttestationChain[1])

	assert.False(t, leaf.IsCA)
	assert.True(t, root.IsCA)
	assert.NoError(t, leaf.CheckSignatureFrom(root))

	assert.Equal(t, hex.EncodeToString(leaf.SubjectKeyId), identity.KeyID)
	assert.NotEmpty(t, identity.PublicKeyHex())
	assert.Equal(t, hex.EncodeToString(identity.PublicKey), identity.PublicKeyHex())
}

func TestCustodianRequiresEngine(t *testing.T) {
	logger := helpers.SetupLogger("none", "Provenance", "Custodian")

	_, err := NewCustodianService(CustodianServiceBuilder{
		Logger: logger,
		Engine: nil,
	})
	assert.ErrorIs(t, err, errs.ErrHardwareUnavailable)
}

func TestSignRejectsEmptyMessage(t *testing.T) {
	stack := setupStack(t)

	_, err := stack.custodian.Sign(context.Background(), SignInput{})
	assert.ErrorIs(t, err, errs.ErrValidateBadRequest)
}
