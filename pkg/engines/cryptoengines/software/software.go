package software

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
)

// SoftwareCryptoEngine keeps keys as PKCS#8 PEM files in a local directory.
// It is the fallback engine for environments without secure hardware and the
// engine used by tests.
type SoftwareCryptoEngine struct {
	config           models.CryptoEngineInfo
	storageDirectory string
	logger           *logrus.Entry
}

func Register() {
	cryptoengines.RegisterCryptoEngine(config.SoftwareProvider, func(logger *logrus.Entry, conf config.CryptoEngineConfig) (cryptoengines.CryptoEngine, error) {
		ceConfig, err := config.DecodeStruct[config.SoftwareConfig](conf.Config)
		if err != nil {
			return nil, err
		}

		return NewSoftwareCryptoEngine(logger, ceConfig)
	})
}

func NewSoftwareCryptoEngine(logger *logrus.Entry, conf config.SoftwareConfig) (cryptoengines.CryptoEngine, error) {
	lGo := logger.WithField("subsystem-provider", "GoSoft")

	if conf.StorageDirectory == "" {
		return nil, fmt.Errorf("no storage directory configured")
	}

	if err := os.MkdirAll(conf.StorageDirectory, 0700); err != nil {
		lGo.Errorf("could not create storage directory %s: %s", conf.StorageDirectory, err)
		return nil, err
	}

	return &SoftwareCryptoEngine{
		logger:           lGo,
		storageDirectory: conf.StorageDirectory,
		config: models.CryptoEngineInfo{
			Provider:      "Golang",
			Name:          runtime.Version(),
			SecurityLevel: models.SecurityLevelSoftware,
			SupportedKeyTypes: []models.KeyType{
				models.KeyTypeEd25519,
				models.KeyTypeECDSA,
			},
		},
	}, nil
}

func (engine *SoftwareCryptoEngine) GetEngineConfig() models.CryptoEngineInfo {
	return engine.config
}

func (engine *SoftwareCryptoEngine) ListPrivateKeyIDs() ([]string, error) {
	entries, err := os.ReadDir(engine.storageDirectory)
	if err != nil {
		return nil, err
	}

	keyIDs := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		keyIDs = append(keyIDs, entry.Name())
	}

	return keyIDs, nil
}

func (engine *SoftwareCryptoEngine) GetPrivateKeyByID(keyID string) (crypto.Signer, error) {
	engine.logger.Debugf("reading %s key", keyID)
	file := filepath.Join(engine.storageDirectory, keyID)

	pemBytes, err := os.ReadFile(file)
	if err != nil {
		engine.logger.Debugf("could not read %s key: %s", keyID, err)
		return nil, err
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no key found")
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	switch key := genericKey.(type) {
	case ed25519.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	default:
		return nil, errors.New("unsupported key type")
	}
}

func (engine *SoftwareCryptoEngine) CreateEd25519PrivateKey() (string, crypto.Signer, error) {
	engine.logger.Debugf("creating Ed25519 private key")

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		engine.logger.Errorf("could not create Ed25519 private key: %s", err)
		return "", nil, err
	}

	return engine.importKey(key, key.Public())
}

func (engine *SoftwareCryptoEngine) CreateECDSAPrivateKey(curve elliptic.Curve) (string, crypto.Signer, error) {
	engine.logger.Debugf("creating ECDSA %s private key", curve.Params().Name)

	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		engine.logger.Errorf("could not create ECDSA private key: %s", err)
		return "", nil, err
	}

	return engine.importKey(key, key.Public())
}

func (engine *SoftwareCryptoEngine) ImportEd25519PrivateKey(key ed25519.PrivateKey) (string, crypto.Signer, error) {
	engine.logger.Debugf("importing Ed25519 private key")
	return engine.importKey(key, key.Public())
}

func (engine *SoftwareCryptoEngine) DeleteKey(keyID string) error {
	return os.Remove(filepath.Join(engine.storageDirectory, keyID))
}

func (engine *SoftwareCryptoEngine) importKey(key any, pubKey crypto.PublicKey) (string, crypto.Signer, error) {
	keyID, err := helpers.EncodePKIXPublicKeyDigest(pubKey)
	if err != nil {
		engine.logger.Errorf("could not encode public key digest: %s", err)
		return "", nil, err
	}

	keyPEM, err := helpers.PrivateKeyToPEM(key)
	if err != nil {
		engine.logger.Errorf("could not marshal private key: %s", err)
		return "", nil, err
	}

	file := filepath.Join(engine.storageDirectory, keyID)
	if err := os.WriteFile(file, []byte(keyPEM), 0600); err != nil {
		engine.logger.Errorf("could not persist %s key: %s", keyID, err)
		return "", nil, err
	}

	signer, err := engine.GetPrivateKeyByID(keyID)
	return keyID, signer, err
}
