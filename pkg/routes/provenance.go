package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/provenkit/provenkit/pkg/controllers"
	"github.com/provenkit/provenkit/pkg/services"
	"github.com/sirupsen/logrus"
)

func NewProvenanceRoutes(logger *logrus.Entry, httpGrp *gin.RouterGroup, custodian services.CustodianService, signer services.SignerService, verifier services.VerifierService, validation services.ValidationService, audit services.AuditService) {
	provenanceRoutes := controllers.NewProvenanceHttpRoutes(logger, custodian, signer, verifier, validation, audit)

	httpGrp.POST("/manifests/sign", provenanceRoutes.SignAsset)
	httpGrp.POST("/manifests/verify", provenanceRoutes.VerifyManifest)
	httpGrp.POST("/manifests/validate", provenanceRoutes.ValidateManifest)
	httpGrp.GET("/identity", provenanceRoutes.GetIdentity)
	httpGrp.GET("/engine", provenanceRoutes.GetEngineInfo)
	httpGrp.GET("/audit/events", provenanceRoutes.GetEvents)
}
