package x509engines

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/sirupsen/logrus"
)

type X509Engine struct {
	logger *logrus.Entry
}

func NewX509Engine(logger *logrus.Entry) X509Engine {
	return X509Engine{
		logger: logger,
	}
}

// CreateAttestationCA creates a self-signed certificate authority used to
// attest signing identities. The custodian provisions one from the identity
// key when no externally managed attestation CA is configured.
func (engine X509Engine) CreateAttestationCA(ctx context.Context, signer crypto.Signer, keyID string, commonName string, validity time.Duration) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	sn, _ := rand.Int(rand.Reader, serialNumberLimit)

	rawKeyID, _ := hex.DecodeString(keyID)

	lFunc.Debugf("creating attestation CA: cn=%s keyID=%s", commonName, keyID)

	template := x509.Certificate{
		SerialNumber:          sn,
		Subject:               pkix.Name{CommonName: commonName},
		AuthorityKeyId:        rawKeyID,
		SubjectKeyId:          rawKeyID,
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certificateBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, signer.Public(), signer)
	if err != nil {
		lFunc.Errorf("could not sign certificate: %s", err)
		return nil, err
	}

	certificate, err := x509.ParseCertificate(certificateBytes)
	if err != nil {
		lFunc.Errorf("could not parse signed certificate: %s", err)
		return nil, err
	}

	return certificate, nil
}

// CreateIdentityCertificate issues the leaf certificate binding an identity's
// public key, signed by the attestation CA.
func (engine X509Engine) CreateIdentityCertificate(ctx context.Context, identityPub crypto.PublicKey, keyID string, commonName string, validity time.Duration, issuerCert *x509.Certificate, issuerSigner crypto.Signer) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	sn, _ := rand.Int(rand.Reader, serialNumberLimit)

	rawKeyID, _ := hex.DecodeString(keyID)

	lFunc.Debugf("creating identity certificate: cn=%s keyID=%s issuer=%s", commonName, keyID, issuerCert.Subject.CommonName)

	template := x509.Certificate{
		SerialNumber:          sn,
		Subject:               pkix.Name{CommonName: commonName},
		SubjectKeyId:          rawKeyID,
		AuthorityKeyId:        issuerCert.SubjectKeyId,
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
	}

	certificateBytes, err := x509.CreateCertificate(rand.Reader, &template, issuerCert, identityPub, issuerSigner)
	if err != nil {
		lFunc.Errorf("could not sign certificate: %s", err)
		return nil, err
	}

	certificate, err := x509.ParseCertificate(certificateBytes)
	if err != nil {
		lFunc.Errorf("could not parse signed certificate: %s", err)
		return nil, err
	}

	return certificate, nil
}
