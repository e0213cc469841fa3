//go:build !windows
// +build !windows

package pkcs11

import (
	"crypto"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/ThalesIgnite/crypto11"
	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
)

// pkcs11EngineContext is the hardware-backed engine variant. Keys are created
// and used inside the token; Sign operations are delegated through crypto11
// and the private key is never extractable.
type pkcs11EngineContext struct {
	api        *crypto11.Context
	engineInfo models.CryptoEngineInfo
	logger     *logrus.Entry
}

func Register() {
	cryptoengines.RegisterCryptoEngine(config.PKCS11Provider, func(logger *logrus.Entry, conf config.CryptoEngineConfig) (cryptoengines.CryptoEngine, error) {
		ceConfig, err := config.DecodeStruct[config.PKCS11Config](conf.Config)
		if err != nil {
			return nil, err
		}

		return NewPKCS11Engine(logger, ceConfig)
	})
}

func NewPKCS11Engine(logger *logrus.Entry, conf config.PKCS11Config) (cryptoengines.CryptoEngine, error) {
	lPkcs11 := logger.WithField("subsystem-provider", "PKCS11")

	crypto11Config := &crypto11.Config{
		Path:       conf.ModulePath,
		Pin:        string(conf.Pin),
		TokenLabel: conf.TokenLabel,
	}

	lPkcs11.Debugf("configuring pkcs11 module: \n - ModulePath: %s\n - TokenLabel: %s\n - Pin: ******\n", conf.ModulePath, conf.TokenLabel)
	instance, err := crypto11.Configure(crypto11Config)
	if err != nil {
		lPkcs11.Errorf("could not configure pkcs11 module: %s", err)
		return nil, errs.ErrHardwareUnavailable
	}

	return &pkcs11EngineContext{
		logger: lPkcs11,
		api:    instance,
		engineInfo: models.CryptoEngineInfo{
			Provider:      "PKCS11",
			Name:          conf.TokenLabel,
			SecurityLevel: models.SecurityLevelHardwareToken,
			SupportedKeyTypes: []models.KeyType{
				models.KeyTypeECDSA,
			},
		},
	}, nil
}

func (hsmContext *pkcs11EngineContext) GetEngineConfig() models.CryptoEngineInfo {
	return hsmContext.engineInfo
}

func (hsmContext *pkcs11EngineContext) ListPrivateKeyIDs() ([]string, error) {
	hsmKeys, err := hsmContext.api.FindAllKeyPairs()
	if err != nil {
		hsmContext.logger.Errorf("could not get private keys from provider: %s", err)
		return nil, err
	}

	keyIDs := make([]string, 0, len(hsmKeys))
	for _, hsmKey := range hsmKeys {
		keyID, err := helpers.EncodePKIXPublicKeyDigest(hsmKey.Public())
		if err != nil {
			hsmContext.logger.Warnf("could not encode public key digest. Skipping key: %s", err)
			continue
		}
		keyIDs = append(keyIDs, keyID)
	}

	return keyIDs, nil
}

// GetPrivateKeyByID scans the token for the key pair whose public key digest
// matches keyID. Tokens address keys by CKA_ID, which is opaque to callers, so
// the digest is the stable identifier across engines.
func (hsmContext *pkcs11EngineContext) GetPrivateKeyByID(keyID string) (crypto.Signer, error) {
	hsmKeys, err := hsmContext.api.FindAllKeyPairs()
	if err != nil {
		hsmContext.logger.Errorf("could not get private keys from provider: %s", err)
		return nil, err
	}

	for _, hsmKey := range hsmKeys {
		digest, err := helpers.EncodePKIXPublicKeyDigest(hsmKey.Public())
		if err != nil {
			continue
		}

		if digest == keyID {
			return hsmKey, nil
		}
	}

	return nil, errs.ErrIdentityNotFound
}

func (hsmContext *pkcs11EngineContext) CreateEd25519PrivateKey() (string, crypto.Signer, error) {
	// cryptoki tokens reachable through crypto11 have no Ed25519 support
	return "", nil, fmt.Errorf("ed25519 keys are not supported by the pkcs11 engine")
}

func (hsmContext *pkcs11EngineContext) CreateECDSAPrivateKey(curve elliptic.Curve) (string, crypto.Signer, error) {
	hsmContext.logger.Debugf("creating ECDSA %s key pair in token", curve.Params().Name)

	id := make([]byte, 32)
	if _, err := rand.Read(id); err != nil {
		return "", nil, err
	}

	signer, err := hsmContext.api.GenerateECDSAKeyPair(id, curve)
	if err != nil {
		hsmContext.logger.Errorf("could not create ECDSA key pair: %s", err)
		return "", nil, err
	}

	keyID, err := helpers.EncodePKIXPublicKeyDigest(signer.Public())
	if err != nil {
		return "", nil, err
	}

	return keyID, signer, nil
}

func (hsmContext *pkcs11EngineContext) ImportEd25519PrivateKey(key ed25519.PrivateKey) (string, crypto.Signer, error) {
	return "", nil, fmt.Errorf("key import is not supported by the pkcs11 engine")
}

func (hsmContext *pkcs11EngineContext) DeleteKey(keyID string) error {
	hsmKeys, err := hsmContext.api.FindAllKeyPairs()
	if err != nil {
		return err
	}

	for _, hsmKey := range hsmKeys {
		digest, err := helpers.EncodePKIXPublicKeyDigest(hsmKey.Public())
		if err != nil {
			continue
		}

		if digest == keyID {
			return hsmKey.Delete()
		}
	}

	return errs.ErrIdentityNotFound
}
