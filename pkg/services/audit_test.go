package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/provenkit/provenkit/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAudit(t *testing.T, sanitizer SanitizerService) AuditService {
	logger := helpers.SetupLogger("none", "Provenance", "Audit")

	repo, err := storage.NewSQLiteAuditEventsRepo(logger, filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)

	audit, err := NewAuditService(AuditServiceBuilder{
		Logger:    logger,
		Repo:      repo,
		Sanitizer: sanitizer,
	})
	require.NoError(t, err)

	t.Cleanup(func() { audit.Close() })
	return audit
}

func waitForEvents(t *testing.T, audit AuditService, kind models.EventType, count int) []models.AuditEvent {
	var events []models.AuditEvent

	require.Eventually(t, func() bool {
		var err error
		events, err = audit.GetEvents(context.Background(), GetEventsInput{Kind: kind})
		return err == nil && len(events) >= count
	}, 5*time.Second, 20*time.Millisecond)

	return events
}

func TestAuditRecordAndQuery(t *testing.T) {
	sanitizer := setupSanitizer(t, map[string]string{
		"generator_id": "keep",
		"key_id":       "keep",
	})
	audit := setupAudit(t, sanitizer)

	err := audit.Record(context.Background(), models.EventManifestSigned, map[string]any{
		"generator_id": "test-gen-1",
		"key_id":       "abc123",
	})
	require.NoError(t, err)

	events := waitForEvents(t, audit, models.EventManifestSigned, 1)
	require.Len(t, events, 1)

	assert.Equal(t, models.EventManifestSigned, events[0].Kind)
	assert.Equal(t, "test-gen-1", events[0].Context["generator_id"])
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestAuditRedactsSensitiveContext(t *testing.T) {
	sanitizer := setupSanitizer(t, map[string]string{
		"generator_id": "keep",
		"gps":          "coarsen",
	})
	audit := setupAudit(t, sanitizer)

	err := audit.Record(context.Background(), models.EventManifestSigned, map[string]any{
		"generator_id": "test-gen-1",
		"gps":          "37.77493,-122.41942",
		"owner_name":   "J. Smith",
	})
	require.NoError(t, err)

	events := waitForEvents(t, audit, models.EventManifestSigned, 1)
	require.Len(t, events, 1)

	assert.Equal(t, "37.8,-122.4", events[0].Context["gps"])
	assert.NotContains(t, events[0].Context, "owner_name")
}

func TestAuditFiltersByKind(t *testing.T) {
	sanitizer := setupSanitizer(t, map[string]string{"status": "keep"})
	audit := setupAudit(t, sanitizer)

	require.NoError(t, audit.Record(context.Background(), models.EventManifestSigned, map[string]any{"status": "ok"}))
	require.NoError(t, audit.Record(context.Background(), models.EventManifestVerified, map[string]any{"status": "VALID"}))
	require.NoError(t, audit.Record(context.Background(), models.EventManifestVerified, map[string]any{"status": "VALID"}))

	verified := waitForEvents(t, audit, models.EventManifestVerified, 2)
	assert.Len(t, verified, 2)
	for _, event := range verified {
		assert.Equal(t, models.EventManifestVerified, event.Kind)
	}
}
