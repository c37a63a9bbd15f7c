package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/infra/config"
	"github.com/arklim/token-vault/internal/infra/logger"
)

const schemaVersion = "1.0"

const tokenRevokedEventType = "token.revoked"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTokenRevoked publishes token.revoked events so downstream validators
// can react without polling the revocation ledger.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := struct {
		TokenID   string    `json:"token_id"`
		UserID    string    `json:"user_id"`
		ExpiresAt time.Time `json:"expires_at"`
		RevokedAt time.Time `json:"revoked_at"`
	}{
		TokenID:   event.TokenID,
		UserID:    event.UserID,
		ExpiresAt: event.ExpiresAt.UTC(),
		RevokedAt: event.RevokedAt.UTC(),
	}

	if err := p.publish(ctx, tokenRevokedEventType, event.UserID, event.RevokedAt, payload); err != nil {
		return err
	}

	p.logger.Debug("token revocation event enqueued",
		zap.String("token_id", logger.MaskTokenID(event.TokenID)),
		zap.String("user_id", event.UserID),
	)
	return nil
}

var _ port.EventPublisher = (*EventPublisher)(nil)
