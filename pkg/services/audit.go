package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/provenkit/provenkit/pkg/helpers"
	"github.com/provenkit/provenkit/pkg/models"
	"github.com/provenkit/provenkit/pkg/storage"
	"github.com/sirupsen/logrus"
)

const auditTopic = "provenkit.audit"

// AuditService records signing and verification activity as an append-only
// trail. Events flow through an in-process pub/sub channel so that recording
// never blocks a signing call on storage latency; the subscriber drains the
// channel into the repository. Every event context passes through the
// sanitization policy before it is published — raw metadata never reaches
// the trail.
type AuditService interface {
	Record(ctx context.Context, kind models.EventType, eventContext map[string]any) error
	GetEvents(ctx context.Context, input GetEventsInput) ([]models.AuditEvent, error)
	Close() error
}

type AuditServiceBackend struct {
	pubSub    *gochannel.GoChannel
	repo      storage.AuditEventsRepo
	sanitizer SanitizerService
	logger    *logrus.Entry
}

type AuditServiceBuilder struct {
	Logger    *logrus.Entry
	Repo      storage.AuditEventsRepo
	Sanitizer SanitizerService
}

func NewAuditService(builder AuditServiceBuilder) (AuditService, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: false},
		watermill.NewStdLogger(false, false),
	)

	svc := &AuditServiceBackend{
		pubSub:    pubSub,
		repo:      builder.Repo,
		sanitizer: builder.Sanitizer,
		logger:    builder.Logger,
	}

	messages, err := pubSub.Subscribe(context.Background(), auditTopic)
	if err != nil {
		return nil, err
	}

	go svc.persistLoop(messages)

	if total, err := builder.Repo.Count(context.Background()); err != nil {
		builder.Logger.Warnf("could not count persisted audit events: %s", err)
	} else {
		builder.Logger.Infof("audit trail holds %d events", total)
	}

	return svc, nil
}

func (svc *AuditServiceBackend) Record(ctx context.Context, kind models.EventType, eventContext map[string]any) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if svc.sanitizer != nil {
		eventContext = svc.sanitizer.RedactContext(eventContext)
	}

	event := helpers.BuildCloudEvent(ctx, string(kind), eventContext)
	payload, err := json.Marshal(event)
	if err != nil {
		lFunc.Errorf("could not encode audit event '%s': %s", kind, err)
		return err
	}

	msg := message.NewMessage(event.ID(), payload)
	if err := svc.pubSub.Publish(auditTopic, msg); err != nil {
		lFunc.Errorf("could not publish audit event '%s': %s", kind, err)
		return err
	}

	return nil
}

func (svc *AuditServiceBackend) persistLoop(messages <-chan *message.Message) {
	for msg := range messages {
		event, err := helpers.ParseCloudEvent(msg.Payload)
		if err != nil {
			svc.logger.Errorf("discarding malformed audit event '%s': %s", msg.UUID, err)
			msg.Ack()
			continue
		}

		eventContext, err := helpers.GetEventBody[map[string]any](event)
		if err != nil {
			svc.logger.Errorf("discarding audit event '%s' with malformed context: %s", msg.UUID, err)
			msg.Ack()
			continue
		}

		auditEvent := models.AuditEvent{
			ID:        event.ID(),
			Timestamp: event.Time().UTC(),
			Kind:      models.EventType(event.Type()),
			Source:    event.Source(),
			Context:   *eventContext,
		}

		if err := svc.repo.Insert(context.Background(), &auditEvent); err != nil {
			svc.logger.Errorf("could not persist audit event '%s': %s", event.ID(), err)
			msg.Nack()
			continue
		}

		msg.Ack()
	}
}

type GetEventsInput struct {
	Kind  models.EventType
	Since time.Time
	Limit int
}

func (svc *AuditServiceBackend) GetEvents(ctx context.Context, input GetEventsInput) ([]models.AuditEvent, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	events, err := svc.repo.SelectAll(ctx, storage.AuditEventsQuery{
		Kind:  input.Kind,
		Since: input.Since,
		Limit: input.Limit,
	})
	if err != nil {
		lFunc.Errorf("could not query audit events: %s", err)
		return nil, err
	}

	return events, nil
}

func (svc *AuditServiceBackend) Close() error {
	return svc.pubSub.Close()
}
