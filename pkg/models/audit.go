package models

import "time"

type EventType string

const (
	EventIdentityCreated  EventType = "identity.created"
	EventManifestSigned   EventType = "manifest.signed"
	EventManifestVerified EventType = "manifest.verified"
	EventManifestRejected EventType = "manifest.rejected"
	EventOnlineValidation EventType = "validation.online"
	EventCRLRefreshed     EventType = "revocation.refreshed"
)

// AuditEvent is append-only: rows are inserted once and never updated.
// Context has already been passed through the sanitization policy when the
// event reaches storage.
type AuditEvent struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      EventType      `json:"kind" gorm:"index"`
	Source    string         `json:"source"`
	Context   map[string]any `json:"context" gorm:"serializer:json"`
}
