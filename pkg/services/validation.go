package services

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ocsp"
)

// ValidationService is the only component allowed to open network
// connections. It layers online revocation and trust checks on top of the
// offline verifier: the offline result always comes first, and a network
// failure can only ever downgrade a Valid result to Indeterminate, never
// upgrade a failed one.
type ValidationService interface {
	Validate(ctx context.Context, input VerifyInput) (*models.ValidationResult, error)
	RefreshRevocationList(ctx context.Context) error
	StartRevocationRefresher() error
	StopRevocationRefresher()
}

type ValidationServiceBackend struct {
	verifier   VerifierService
	crlCache   *CRLCache
	audit      AuditService
	httpClient *http.Client
	cfg        config.GatewayConfig
	scheduler  *cron.Cron
	logger     *logrus.Entry
}

type ValidationServiceBuilder struct {
	Logger   *logrus.Entry
	Verifier VerifierService
	CRLCache *CRLCache
	Audit    AuditService
	Config   config.GatewayConfig
}

const defaultGatewayTimeoutSeconds = 5

func NewValidationService(builder ValidationServiceBuilder) ValidationService {
	cfg := builder.Config
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultGatewayTimeoutSeconds
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second

	return &ValidationServiceBackend{
		verifier:   builder.Verifier,
		crlCache:   builder.CRLCache,
		audit:      builder.Audit,
		httpClient: client,
		cfg:        cfg,
		scheduler:  cron.New(),
		logger:     builder.Logger,
	}
}

func (svc *ValidationServiceBackend) Validate(ctx context.Context, input VerifyInput) (*models.ValidationResult, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	offline, err := svc.verifier.Verify(ctx, input)
	if err != nil {
		return nil, err
	}

	lFunc.Debugf("offline verification returned '%s'", offline.Status)

	// No online check can rescue a manifest the offline pipeline rejected.
	if offline.Status != models.StatusValid {
		return offline, nil
	}

	if !svc.cfg.Enabled {
		return offline, nil
	}

	manifest, err := models.ParseManifest(input.ManifestBytes)
	if err != nil {
		return nil, err
	}

	onlineCtx, cancel := context.WithTimeout(ctx, time.Duration(svc.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	result := svc.checkOnline(onlineCtx, manifest, offline)
	svc.recordOnlineCheck(ctx, result)
	return result, nil
}

func (svc *ValidationServiceBackend) checkOnline(ctx context.Context, manifest *models.Manifest, offline *models.ValidationResult) *models.ValidationResult {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	now := time.Now().UTC()

	if svc.cfg.OCSPResponderURL == "" {
		return offline
	}

	signerCert := manifest.SignerCertificate()
	issuerCert := signerCert
	if len(manifest.CertificateChain) > 1 {
		issuerCert = (*x509.Certificate)(manifest.CertificateChain[1])
	}

	status, err := svc.queryOCSP(ctx, signerCert, issuerCert)
	if err != nil {
		lFunc.Warnf("online revocation check unreachable: %s", err)
		return &models.ValidationResult{
			Status:        models.StatusIndeterminate,
			OnlineChecked: false,
			Detail:        fmt.Sprintf("offline checks passed but the online authority was unreachable: %s", err),
			CheckedAt:     now,
		}
	}

	if status == ocsp.Revoked {
		lFunc.Warnf("online authority reports signer serial '%s' revoked", signerCert.SerialNumber.String())
		return &models.ValidationResult{
			Status:        models.StatusRevoked,
			OnlineChecked: true,
			Detail:        "online authority reports the signer certificate as revoked",
			CheckedAt:     now,
		}
	}

	return &models.ValidationResult{
		Status:        models.StatusValid,
		OnlineChecked: true,
		CheckedAt:     now,
	}
}

func (svc *ValidationServiceBackend) queryOCSP(ctx context.Context, cert, issuer *x509.Certificate) (int, error) {
	request, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return ocsp.Unknown, fmt.Errorf("could not build ocsp request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.cfg.OCSPResponderURL, bytes.NewReader(request))
	if err != nil {
		return ocsp.Unknown, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	httpResp, err := svc.httpClient.Do(httpReq)
	if err != nil {
		return ocsp.Unknown, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return ocsp.Unknown, fmt.Errorf("ocsp responder returned status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return ocsp.Unknown, err
	}

	response, err := ocsp.ParseResponseForCert(body, cert, issuer)
	if err != nil {
		return ocsp.Unknown, fmt.Errorf("could not parse ocsp response: %w", err)
	}

	return response.Status, nil
}

// RefreshRevocationList fetches the distribution point and swaps the cached
// list. Failures leave the previous cache untouched.
func (svc *ValidationServiceBackend) RefreshRevocationList(ctx context.Context) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if svc.cfg.CRLDistributionURL == "" {
		return fmt.Errorf("no revocation list distribution url configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.cfg.CRLDistributionURL, nil)
	if err != nil {
		return err
	}

	httpResp, err := svc.httpClient.Do(httpReq)
	if err != nil {
		lFunc.Warnf("could not fetch revocation list: %s", err)
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation list distribution point returned status %d", httpResp.StatusCode)
	}

	rawDER, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}

	crl, err := x509.ParseRevocationList(rawDER)
	if err != nil {
		lFunc.Errorf("distribution point returned an unparseable revocation list: %s", err)
		return err
	}

	if err := svc.crlCache.Update(crl, rawDER); err != nil {
		return err
	}

	if svc.audit != nil {
		err = svc.audit.Record(ctx, models.EventCRLRefreshed, map[string]any{
			"issuer":  crl.Issuer.String(),
			"revoked": len(crl.RevokedCertificateEntries),
		})
		if err != nil {
			lFunc.Warnf("could not record audit event '%s': %s", models.EventCRLRefreshed, err)
		}
	}

	return nil
}

func (svc *ValidationServiceBackend) StartRevocationRefresher() error {
	if svc.cfg.CRLRefreshSchedule == "" || svc.cfg.CRLDistributionURL == "" {
		svc.logger.Info("periodic revocation refresh disabled")
		return nil
	}

	_, err := svc.scheduler.AddFunc(svc.cfg.CRLRefreshSchedule, func() {
		ctx := helpers.InitContext()
		if err := svc.RefreshRevocationList(ctx); err != nil {
			svc.logger.Errorf("scheduled revocation refresh failed: %s", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid revocation refresh schedule '%s': %w", svc.cfg.CRLRefreshSchedule, err)
	}

	svc.scheduler.Start()
	svc.logger.Infof("periodic revocation refresh scheduled: '%s'", svc.cfg.CRLRefreshSchedule)
	return nil
}

func (svc *ValidationServiceBackend) StopRevocationRefresher() {
	<-svc.scheduler.Stop().Done()
}

func (svc *ValidationServiceBackend) recordOnlineCheck(ctx context.Context, result *models.ValidationResult) {
	if svc.audit == nil {
		return
	}

	err := svc.audit.Record(ctx, models.EventOnlineValidation, map[string]any{
		"status":         string(result.Status),
		"online_checked": result.OnlineChecked,
	})
	if err != nil {
		svc.logger.Warnf("could not record audit event '%s': %s", models.EventOnlineValidation, err)
	}
}
