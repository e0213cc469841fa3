package assemblers

import (
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines/pkcs11"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines/software"
	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/provenkit/provenkit/pkg/routes"
	"github.com/provenkit/provenkit/pkg/services"
	"github.com/provenkit/provenkit/pkg/storage"
)

func init() {
	software.Register()
	pkcs11.Register()
}

// ProvenanceServices groups the assembled service layer so callers can reach
// every surface without re-wiring.
type ProvenanceServices struct {
	Custodian  services.CustodianService
	Signer     services.SignerService
	Sanitizer  services.SanitizerService
	Verifier   services.VerifierService
	Validation services.ValidationService
	Audit      services.AuditService
}

func AssembleProvenanceServiceWithHTTPServer(conf config.ProvenanceConfig, serviceInfo models.APIServiceInfo) (*ProvenanceServices, int, error) {
	svc, err := AssembleProvenanceService(conf)
	if err != nil {
		return nil, -1, fmt.Errorf("could not assemble Provenance Service. Exiting: %s", err)
	}

	lHttp := helpers.SetupLogger(conf.Server.LogLevel, "Provenance", "HTTP Server")

	httpEngine := routes.NewGinEngine(lHttp)
	httpGrp := httpEngine.Group("/v1")
	routes.NewProvenanceRoutes(lHttp, httpGrp, svc.Custodian, svc.Signer, svc.Verifier, svc.Validation, svc.Audit)
	port, err := routes.RunHttpRouter(lHttp, httpEngine, conf.Server, serviceInfo)
	if err != nil {
		return nil, -1, fmt.Errorf("could not run Provenance http server: %s", err)
	}

	return svc, port, nil
}

func AssembleProvenanceService(conf config.ProvenanceConfig) (*ProvenanceServices, error) {
	lSvc := helpers.SetupLogger(conf.Logs.Level, "Provenance", "Service")
	lCustodian := helpers.SetupLogger(conf.Custodian.LogLevel, "Provenance", "Custodian")
	lSanitizer := helpers.SetupLogger(conf.Sanitizer.LogLevel, "Provenance", "Sanitizer")
	lVerifier := helpers.SetupLogger(conf.Verifier.LogLevel, "Provenance", "Verifier")
	lGateway := helpers.SetupLogger(conf.Gateway.LogLevel, "Provenance", "Gateway")
	lAudit := helpers.SetupLogger(conf.Audit.LogLevel, "Provenance", "Audit")
	lStorage := helpers.SetupLogger(conf.Audit.LogLevel, "Provenance", "Storage")

	engine, err := buildCryptoEngine(conf.Custodian)
	if err != nil {
		return nil, fmt.Errorf("could not create crypto engine: %s", err)
	}

	sanitizer := services.NewSanitizerService(services.SanitizerServiceBuilder{
		Logger: lSanitizer,
		Policy: conf.Sanitizer.Policy,
	})

	auditRepo, err := storage.NewSQLiteAuditEventsRepo(lStorage, conf.Audit.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("could not create audit storage: %s", err)
	}

	audit, err := services.NewAuditService(services.AuditServiceBuilder{
		Logger:    lAudit,
		Repo:      auditRepo,
		Sanitizer: sanitizer,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Audit service: %s", err)
	}

	attestationCert, attestationKey, err := loadAttestationCA(conf.Custodian)
	if err != nil {
		return nil, fmt.Errorf("could not load attestation CA: %s", err)
	}

	custodian, err := services.NewCustodianService(services.CustodianServiceBuilder{
		Logger:          lCustodian,
		Engine:          engine,
		SubjectCN:       conf.Custodian.SubjectCN,
		AttestationCert: attestationCert,
		AttestationKey:  attestationKey,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Custodian service: %s", err)
	}

	signer := services.NewSignerService(services.SignerServiceBuilder{
		Logger:    lSvc,
		Custodian: custodian,
		Sanitizer: sanitizer,
		Audit:     audit,
	})

	trustAnchors, err := loadTrustAnchors(conf.Verifier, custodian)
	if err != nil {
		return nil, fmt.Errorf("could not load trust anchors: %s", err)
	}

	crlCache := services.NewCRLCache(lVerifier, conf.Verifier.RevocationFile)
	if conf.Verifier.RevocationFile != "" {
		crl, err := helpers.ReadRevocationListFromFile(conf.Verifier.RevocationFile)
		if err != nil {
			lVerifier.Warnf("could not load cached revocation list from '%s': %s", conf.Verifier.RevocationFile, err)
		} else if err := crlCache.Update(crl, nil); err != nil {
			return nil, fmt.Errorf("could not prime revocation cache: %s", err)
		}
	}

	verifier, err := services.NewVerifierService(services.VerifierServiceBuilder{
		Logger:       lVerifier,
		TrustAnchors: trustAnchors,
		CRLCache:     crlCache,
		Audit:        audit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Verifier service: %s", err)
	}

	validation := services.NewValidationService(services.ValidationServiceBuilder{
		Logger:   lGateway,
		Verifier: verifier,
		CRLCache: crlCache,
		Audit:    audit,
		Config:   conf.Gateway,
	})

	if conf.Gateway.Enabled {
		if err := validation.StartRevocationRefresher(); err != nil {
			return nil, fmt.Errorf("could not start revocation refresher: %s", err)
		}
	}

	return &ProvenanceServices{
		Custodian:  custodian,
		Signer:     signer,
		Sanitizer:  sanitizer,
		Verifier:   verifier,
		Validation: validation,
		Audit:      audit,
	}, nil
}

func buildCryptoEngine(conf config.CustodianConfig) (cryptoengines.CryptoEngine, error) {
	lEngine := helpers.SetupLogger(conf.LogLevel, "Provenance", "Crypto Engine")

	engineType := conf.Engine.Type
	if engineType == "" {
		engineType = config.SoftwareProvider
	}

	builder := cryptoengines.GetEngineBuilder(engineType)
	if builder == nil {
		return nil, fmt.Errorf("%w: no engine of type '%s'", errs.ErrCryptoEngineNotFound, engineType)
	}

	return builder(lEngine, conf.Engine)
}

func loadAttestationCA(conf config.CustodianConfig) (*x509.Certificate, crypto.Signer, error) {
	if conf.AttestationCACertFile == "" || conf.AttestationCAKeyFile == "" {
		return nil, nil, nil
	}

	cert, err := helpers.ReadCertificateFromFile(conf.AttestationCACertFile)
	if err != nil {
		return nil, nil, err
	}

	key, err := helpers.ReadPrivateKeyFromFile(conf.AttestationCAKeyFile)
	if err != nil {
		return nil, nil, err
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("attestation CA key does not implement crypto.Signer")
	}

	return cert, signer, nil
}

// loadTrustAnchors reads the configured anchor bundle. Without a bundle the
// service can still verify its own output: the custodian's attestation root
// becomes the sole anchor.
func loadTrustAnchors(conf config.VerifierConfig, custodian services.CustodianService) ([]*x509.Certificate, error) {
	if conf.TrustAnchorsFile != "" {
		return helpers.ReadCertificateBundleFromFile(conf.TrustAnchorsFile)
	}

	identity, err := custodian.GetOrCreateIdentity(helpers.InitContext())
	if err != nil {
		return nil, err
	}

	chain := identity.AttestationChain
	if len(chain) == 0 {
		return nil, fmt.Errorf("identity carries no attestation chain")
	}

	root := (*x509.Certificate)(chain[len(chain)-1])
	return []*x509.Certificate{root}, nil
}
