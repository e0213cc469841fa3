package cryptoengines

import (
	"crypto"
	"crypto/ed25519"
	"crypto/elliptic"

	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
)

// CryptoEngine abstracts where signing keys live. Keys are referenced by ID
// and used through crypto.Signer; private key material never crosses this
// interface.
type CryptoEngine interface {
	GetEngineConfig() models.CryptoEngineInfo

	ListPrivateKeyIDs() ([]string, error)
	GetPrivateKeyByID(keyID string) (crypto.Signer, error)

	CreateEd25519PrivateKey() (string, crypto.Signer, error)
	CreateECDSAPrivateKey(curve elliptic.Curve) (string, crypto.Signer, error)

	ImportEd25519PrivateKey(key ed25519.PrivateKey) (string, crypto.Signer, error)

	DeleteKey(keyID string) error
}

var cryptoEngineBuilders = make(map[config.CryptoEngineProvider]func(*logrus.Entry, config.CryptoEngineConfig) (CryptoEngine, error))

func RegisterCryptoEngine(name config.CryptoEngineProvider, builder func(*logrus.Entry, config.CryptoEngineConfig) (CryptoEngine, error)) {
	cryptoEngineBuilders[name] = builder
}

func GetEngineBuilder(name config.CryptoEngineProvider) func(*logrus.Entry, config.CryptoEngineConfig) (CryptoEngine, error) {
	return cryptoEngineBuilders[name]
}
