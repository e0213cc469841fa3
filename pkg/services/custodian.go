package services

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/provenkit/provenkit/pkg/x509engines"
	"github.com/sirupsen/logrus"
)

// CustodianService guards the signing identity. Callers get signatures and
// public material; the private key stays inside the crypto engine.
type CustodianService interface {
	GetEngineInfo() models.CryptoEngineInfo
	GetOrCreateIdentity(ctx context.Context) (*models.Identity, error)
	Sign(ctx context.Context, input SignInput) ([]byte, error)
}

type SignInput struct {
	Message []byte `validate:"required"`
}

type CustodianServiceBackend struct {
	engine           cryptoengines.CryptoEngine
	x509Engine       x509engines.X509Engine
	subjectCN        string
	identityValidity time.Duration
	attestationCert  *x509.Certificate
	attestationKey   crypto.Signer
	logger           *logrus.Entry

	// identityMu makes first creation a critical section: concurrent first
	// calls must not create duplicate keys in the engine.
	identityMu sync.RWMutex
	identity   *models.Identity
	signer     crypto.Signer
}

type CustodianServiceBuilder struct {
	Logger           *logrus.Entry
	Engine           cryptoengines.CryptoEngine
	SubjectCN        string
	IdentityValidity time.Duration

	// Attestation CA material. When nil the custodian provisions a software
	// attestation CA from the identity key.
	AttestationCert *x509.Certificate
	AttestationKey  crypto.Signer
}

func NewCustodianService(builder CustodianServiceBuilder) (CustodianService, error) {
	validate = validator.New()

	if builder.Engine == nil {
		return nil, errs.ErrHardwareUnavailable
	}

	validity := builder.IdentityValidity
	if validity == 0 {
		validity = 5 * 365 * 24 * time.Hour
	}

	return &CustodianServiceBackend{
		engine:           builder.Engine,
		x509Engine:       x509engines.NewX509Engine(builder.Logger),
		subjectCN:        builder.SubjectCN,
		identityValidity: validity,
		attestationCert:  builder.AttestationCert,
		attestationKey:   builder.AttestationKey,
		logger:           builder.Logger,
	}, nil
}

func (svc *CustodianServiceBackend) GetEngineInfo() models.CryptoEngineInfo {
	return svc.engine.GetEngineConfig()
}

func (svc *CustodianServiceBackend) GetOrCreateIdentity(ctx context.Context) (*models.Identity, error) {
	svc.identityMu.RLock()
	if svc.identity != nil {
		defer svc.identityMu.RUnlock()
		return svc.identity, nil
	}
	svc.identityMu.RUnlock()

	svc.identityMu.Lock()
	defer svc.identityMu.Unlock()

	if svc.identity != nil {
		return svc.identity, nil
	}

	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	keyID, signer, err := svc.obtainSigner(ctx)
	if err != nil {
		lFunc.Errorf("could not obtain signing key: %s", err)
		return nil, errs.ErrHardwareUnavailable
	}

	attestationCert := svc.attestationCert
	attestationKey := svc.attestationKey
	if attestationCert == nil {
		// Software-fallback provisioning: without an external attestation CA
		// the custodian issues one from the identity key itself.
		attestationCert, err = svc.x509Engine.CreateAttestationCA(ctx, signer, keyID, svc.subjectCN+" Attestation Root", svc.identityValidity)
		if err != nil {
			lFunc.Errorf("could not provision attestation CA: %s", err)
			return nil, errs.ErrHardwareUnavailable
		}
		attestationKey = signer
	}

	identityCert, err := svc.x509Engine.CreateIdentityCertificate(ctx, signer.Public(), keyID, svc.subjectCN, svc.identityValidity, attestationCert, attestationKey)
	if err != nil {
		lFunc.Errorf("could not create identity certificate: %s", err)
		return nil, errs.ErrHardwareUnavailable
	}

	chain := []*models.X509Certificate{
		(*models.X509Certificate)(identityCert),
		(*models.X509Certificate)(attestationCert),
	}

	skid, err := helpers.GetSubjectKeyID(lFunc, identityCert)
	if err != nil {
		return nil, err
	}

	pubKeyBytes, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return nil, err
	}

	svc.signer = signer
	svc.identity = &models.Identity{
		KeyID:              skid,
		PublicKey:          pubKeyBytes,
		SignatureAlgorithm: signatureAlgorithmFor(signer.Public()),
		EngineProvider:     svc.engine.GetEngineConfig().Provider,
		CreatedAt:          time.Now().UTC(),
		AttestationChain:   chain,
	}

	lFunc.Infof("signing identity ready: keyID=%s alg=%s engine=%s", skid, svc.identity.SignatureAlgorithm, svc.identity.EngineProvider)

	return svc.identity, nil
}

func (svc *CustodianServiceBackend) Sign(ctx context.Context, input SignInput) ([]byte, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := validate.Struct(input); err != nil {
		return nil, errs.ErrValidateBadRequest
	}

	if _, err := svc.GetOrCreateIdentity(ctx); err != nil {
		return nil, err
	}

	svc.identityMu.RLock()
	signer := svc.signer
	identity := svc.identity
	svc.identityMu.RUnlock()

	var signature []byte
	var err error

	switch identity.SignatureAlgorithm {
	case models.SignatureAlgorithmEd25519:
		signature, err = signer.Sign(rand.Reader, input.Message, crypto.Hash(0))
	case models.SignatureAlgorithmECDSASHA256:
		digest := sha256.Sum256(input.Message)
		signature, err = signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	default:
		return nil, errs.ErrSigningFailed
	}

	if err != nil {
		lFunc.Errorf("engine refused to sign: %s", err)
		return nil, errs.ErrKeyAccessDenied
	}

	return signature, nil
}

// obtainSigner reuses the first key already present in the engine; a fresh key
// is created only when the engine holds none. Rotation happens through
// explicit re-provisioning (deleting the key), never implicitly.
func (svc *CustodianServiceBackend) obtainSigner(ctx context.Context) (string, crypto.Signer, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	keyIDs, err := svc.engine.ListPrivateKeyIDs()
	if err != nil {
		return "", nil, err
	}

	if len(keyIDs) > 0 {
		lFunc.Debugf("reusing existing key %s", keyIDs[0])
		signer, err := svc.engine.GetPrivateKeyByID(keyIDs[0])
		return keyIDs[0], signer, err
	}

	engineInfo := svc.engine.GetEngineConfig()
	for _, keyType := range engineInfo.SupportedKeyTypes {
		if keyType == models.KeyTypeEd25519 {
			lFunc.Debugf("creating Ed25519 identity key")
			return svc.engine.CreateEd25519PrivateKey()
		}
	}

	lFunc.Debugf("creating ECDSA P-256 identity key")
	return svc.engine.CreateECDSAPrivateKey(elliptic.P256())
}

func signatureAlgorithmFor(pub crypto.PublicKey) models.SignatureAlgorithm {
	switch pub.(type) {
	case ed25519.PublicKey:
		return models.SignatureAlgorithmEd25519
	case *ecdsa.PublicKey:
		return models.SignatureAlgorithmECDSASHA256
	default:
		return ""
	}
}
