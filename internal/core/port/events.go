package port

import (
	"context"

	"github.com/arklim/token-vault/internal/core/domain"
)

// EventPublisher notifies downstream consumers about explicit revocations.
// Publishing is best-effort; the store never fails a delete over it.
type EventPublisher interface {
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
}
