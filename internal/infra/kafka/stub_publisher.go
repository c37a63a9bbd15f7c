package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/core/port"
	"github.com/arklim/token-vault/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

// PublishTokenRevoked logs token.revoked events.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	at := event.RevokedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", tokenRevokedEventType),
		zap.String("token_id", logger.MaskTokenID(event.TokenID)),
		zap.String("user_id", event.UserID),
		zap.Time("expires_at", event.ExpiresAt.UTC()),
		zap.Time("revoked_at", at.UTC()),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
