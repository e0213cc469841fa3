package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/provenkit/provenkit/pkg/errs"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/provenkit/provenkit/pkg/resources"
	"github.com/provenkit/provenkit/pkg/services"
	"github.com/sirupsen/logrus"
)

type provenanceHttpRoutes struct {
	custodian  services.CustodianService
	signer     services.SignerService
	verifier   services.VerifierService
	validation services.ValidationService
	audit      services.AuditService
	logger     *logrus.Entry
}

func NewProvenanceHttpRoutes(logger *logrus.Entry, custodian services.CustodianService, signer services.SignerService, verifier services.VerifierService, validation services.ValidationService, audit services.AuditService) *provenanceHttpRoutes {
	return &provenanceHttpRoutes{
		custodian:  custodian,
		signer:     signer,
		verifier:   verifier,
		validation: validation,
		audit:      audit,
		logger:     logger,
	}
}

func (r *provenanceHttpRoutes) handleError(ctx *gin.Context, err error) {
	switch err {
	case errs.ErrIdentityNotFound, errs.ErrAuditEventNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case errs.ErrValidateBadRequest, errs.ErrEmptyAssetHash, errs.ErrInvalidAssertion, errs.ErrManifestMalformed, errs.ErrUnsupportedVersion:
		ctx.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
	case errs.ErrHardwareUnavailable, errs.ErrKeyAccessDenied:
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
	}
}

func (r *provenanceHttpRoutes) SignAsset(ctx *gin.Context) {
	var requestBody resources.SignAssetBody
	if err := ctx.BindJSON(&requestBody); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	manifest, err := r.signer.SignAsset(ctx, services.SignAssetInput{
		GeneratorID: requestBody.GeneratorID,
		AssetHash:   requestBody.AssetHash,
		RawMetadata: requestBody.Metadata,
	})
	if err != nil {
		r.handleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resources.SignAssetResponse{Manifest: manifest})
}

func (r *provenanceHttpRoutes) VerifyManifest(ctx *gin.Context) {
	var requestBody resources.VerifyManifestBody
	if err := ctx.BindJSON(&requestBody); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	result, err := r.verifier.Verify(ctx, services.VerifyInput{
		ManifestBytes: requestBody.Manifest,
		Asset:         requestBody.Asset,
	})
	if err != nil {
		r.handleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (r *provenanceHttpRoutes) ValidateManifest(ctx *gin.Context) {
	var requestBody resources.VerifyManifestBody
	if err := ctx.BindJSON(&requestBody); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	result, err := r.validation.Validate(ctx, services.VerifyInput{
		ManifestBytes: requestBody.Manifest,
		Asset:         requestBody.Asset,
	})
	if err != nil {
		r.handleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (r *provenanceHttpRoutes) GetIdentity(ctx *gin.Context) {
	identity, err := r.custodian.GetOrCreateIdentity(ctx)
	if err != nil {
		r.handleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resources.GetIdentityResponse{Identity: identity})
}

func (r *provenanceHttpRoutes) GetEngineInfo(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, resources.GetEngineInfoResponse{Engine: r.custodian.GetEngineInfo()})
}

func (r *provenanceHttpRoutes) GetEvents(ctx *gin.Context) {
	input := services.GetEventsInput{
		Kind:  models.EventType(ctx.Query("kind")),
		Limit: 100,
	}

	if limitStr := ctx.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"err": "invalid limit"})
			return
		}
		input.Limit = limit
	}

	if sinceStr := ctx.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"err": "invalid since timestamp"})
			return
		}
		input.Since = since
	}

	events, err := r.audit.GetEvents(ctx, input)
	if err != nil {
		r.handleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resources.GetEventsResponse{Events: events})
}
