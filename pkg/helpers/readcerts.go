package helpers

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
)

func ReadCertificateFromFile(filePath string) (*x509.Certificate, error) {
	if filePath == "" {
		return nil, fmt.Errorf("cannot open empty filepath")
	}

	certFileBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return ParseCertificate(string(certFileBytes))
}

func ParseCertificate(cert string) (*x509.Certificate, error) {
	certDERBlock, _ := pem.Decode([]byte(cert))
	if certDERBlock == nil {
		return nil, fmt.Errorf("missing cert block")
	}
	return x509.ParseCertificate(certDERBlock.Bytes)
}

// ReadCertificateBundleFromFile loads every CERTIFICATE block found in a PEM
// bundle, in file order. Used for the locally persisted trust-anchor set.
func ReadCertificateBundleFromFile(filePath string) ([]*x509.Certificate, error) {
	if filePath == "" {
		return nil, fmt.Errorf("cannot open empty filepath")
	}

	bundleBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	certs := []*x509.Certificate{}
	for len(bundleBytes) > 0 {
		var block *pem.Block
		block, bundleBytes = pem.Decode(bundleBytes)
		if block == nil {
			break
		}

		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}

		certs = append(certs, cert)
	}

	return certs, nil
}

func ReadRevocationListFromFile(filePath string) (*x509.RevocationList, error) {
	crlBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	if block, _ := pem.Decode(crlBytes); block != nil {
		crlBytes = block.Bytes
	}

	return x509.ParseRevocationList(crlBytes)
}

func ReadPrivateKeyFromFile(filePath string) (interface{}, error) {
	keyFileBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKey(keyFileBytes)
}

func ParsePrivateKey(privKeyBytes []byte) (interface{}, error) {
	keyDERBlock, _ := pem.Decode(privKeyBytes)
	if keyDERBlock == nil {
		return nil, errors.New("failed to decode private key pem block")
	}

	if key, err := x509.ParsePKCS8PrivateKey(keyDERBlock.Bytes); err == nil {
		switch key := key.(type) {
		case *ecdsa.PrivateKey, ed25519.PrivateKey:
			return key, nil
		default:
			return nil, errors.New("found unknown private key type in PKCS#8 wrapping")
		}
	}
	if key, err := x509.ParseECPrivateKey(keyDERBlock.Bytes); err == nil {
		return key, nil
	}

	return nil, errors.New("failed to parse private key")
}

func CertificateToPEM(c *x509.Certificate) string {
	pemCert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
	return string(pemCert)
}

func PrivateKeyToPEM(key any) (string, error) {
	b, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}

	pemdata := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: b,
		},
	)

	return string(pemdata), nil
}

func GenerateSelfSignedCertificate(key crypto.Signer, cn string) (*x509.Certificate, error) {
	sn, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 160))

	crt := x509.Certificate{
		SerialNumber: sn,
		Subject:      pkix.Name{CommonName: cn},
	}

	crtB, _ := x509.CreateCertificate(rand.Reader, &crt, &crt, key.Public(), key)
	crtP, err := x509.ParseCertificate(crtB)

	return crtP, err
}
