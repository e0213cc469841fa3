//go:build windows
// +build windows

package pkcs11

import (
	"fmt"

	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/sirupsen/logrus"
)

func Register() {
	cryptoengines.RegisterCryptoEngine(config.PKCS11Provider, func(logger *logrus.Entry, conf config.CryptoEngineConfig) (cryptoengines.CryptoEngine, error) {
		return NewPKCS11Engine(logger, config.PKCS11Config{})
	})
}

func NewPKCS11Engine(logger *logrus.Entry, conf config.PKCS11Config) (cryptoengines.CryptoEngine, error) {
	return nil, fmt.Errorf("PKCS11 engine is not supported on Windows")
}
