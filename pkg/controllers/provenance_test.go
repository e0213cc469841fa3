package controllers

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/provenkit/provenkit/pkg/config"
	"github.com/provenkit/provenkit/pkg/engines/cryptoengines/software"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/provenkit/provenkit/pkg/resources"
	"github.com/provenkit/provenkit/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := helpers.SetupLogger("none", "Provenance", "HTTP Server")

	engine, err := software.NewSoftwareCryptoEngine(logger, config.SoftwareConfig{
		StorageDirectory: t.TempDir(),
	})
	require.NoError(t, err)

	custodian, err := services.NewCustodianService(services.CustodianServiceBuilder{
		Logger:    logger,
		Engine:    engine,
		SubjectCN: "provenkit-test",
	})
	require.NoError(t, err)

	sanitizer := services.NewSanitizerService(services.SanitizerServiceBuilder{
		Logger: logger,
		Policy: map[string]string{"capture_time": "keep"},
	})

	signer := services.NewSignerService(services.SignerServiceBuilder{
		Logger:    logger,
		Custodian: custodian,
		Sanitizer: sanitizer,
	})

	identity, err := custodian.GetOrCreateIdentity(helpers.InitContext())
	require.NoError(t, err)
	root := (*x509.Certificate)(identity.AttestationChain[len(identity.AttestationChain)-1])

	verifier, err := services.NewVerifierService(services.VerifierServiceBuilder{
		Logger:       logger,
		TrustAnchors: []*x509.Certificate{root},
		CRLCache:     services.NewCRLCache(logger, ""),
	})
	require.NoError(t, err)

	validation := services.NewValidationService(services.ValidationServiceBuilder{
		Logger:   logger,
		Verifier: verifier,
		Config:   config.GatewayConfig{Enabled: false, TimeoutSeconds: 1},
	})

	routes := NewProvenanceHttpRoutes(logger, custodian, signer, verifier, validation, nil)

	router := gin.New()
	router.POST("/sign", routes.SignAsset)
	router.POST("/verify", routes.VerifyManifest)
	router.POST("/validate", routes.ValidateManifest)
	router.GET("/identity", routes.GetIdentity)
	router.GET("/engine", routes.GetEngineInfo)

	return router
}

func TestSignAndVerifyEndpoints(t *testing.T) {
	router := setupTestRouter(t)

	asset := []byte("asset")
	assetHash := sha256.Sum256(asset)
	signBody, _ := json.Marshal(resources.SignAssetBody{
		GeneratorID: "test-gen-1",
		AssetHash:   assetHash[:],
		Metadata:    map[string]string{"capture_time": "2025-01-01T00:00:00Z"},
	})

	signRec := httptest.NewRecorder()
	router.ServeHTTP(signRec, httptest.NewRequest(http.MethodPost, "/sign", bytes.NewReader(signBody)))
	require.Equal(t, http.StatusOK, signRec.Code)

	var signResp resources.SignAssetResponse
	require.NoError(t, json.Unmarshal(signRec.Body.Bytes(), &signResp))
	require.NotNil(t, signResp.Manifest)

	manifestBytes, err := signResp.Manifest.Serialize()
	require.NoError(t, err)

	verifyBody, _ := json.Marshal(resources.VerifyManifestBody{
		Manifest: manifestBytes,
		Asset:    asset,
	})

	verifyRec := httptest.NewRecorder()
	router.ServeHTTP(verifyRec, httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(verifyBody)))
	require.Equal(t, http.StatusOK, verifyRec.Code)

	var result models.ValidationResult
	require.NoError(t, json.Unmarshal(verifyRec.Body.Bytes(), &result))
	assert.Equal(t, models.StatusValid, result.Status)
}

func TestSignEndpointRejectsEmptyHash(t *testing.T) {
	router := setupTestRouter(t)

	signBody, _ := json.Marshal(resources.SignAssetBody{
		GeneratorID: "test-gen-1",
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign", bytes.NewReader(signBody)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpointRejectsGarbageManifest(t *testing.T) {
	router := setupTestRouter(t)

	verifyBody, _ := json.Marshal(resources.VerifyManifestBody{
		Manifest: []byte("garbage"),
		Asset:    []byte{0x01},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(verifyBody)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentityAndEngineEndpoints(t *testing.T) {
	router := setupTestRouter(t)

	identityRec := httptest.NewRecorder()
	router.ServeHTTP(identityRec, httptest.NewRequest(http.MethodGet, "/identity", nil))
	require.Equal(t, http.StatusOK, identityRec.Code)

	var identityResp resources.GetIdentityResponse
	require.NoError(t, json.Unmarshal(identityRec.Body.Bytes(), &identityResp))
	assert.NotEmpty(t, identityResp.Identity.KeyID)
	assert.NotEmpty(t, identityResp.Identity.AttestationChain)

	engineRec := httptest.NewRecorder()
	router.ServeHTTP(engineRec, httptest.NewRequest(http.MethodGet, "/engine", nil))
	require.Equal(t, http.StatusOK, engineRec.Code)

	var engineResp resources.GetEngineInfoResponse
	require.NoError(t, json.Unmarshal(engineRec.Body.Bytes(), &engineResp))
	assert.Equal(t, models.SecurityLevelSoftware, engineResp.Engine.SecurityLevel)
}
