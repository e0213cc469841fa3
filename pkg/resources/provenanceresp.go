package resources

import "github.com/provenkit/provenkit/pkg/models"

type SignAssetResponse struct {
	Manifest *models.Manifest `json:"manifest"`
}

type GetIdentityResponse struct {
	Identity *models.Identity `json:"identity"`
}

type GetEngineInfoResponse struct {
	Engine models.CryptoEngineInfo `json:"engine"`
}

type GetEventsResponse struct {
	Events []models.AuditEvent `json:"events"`
}
