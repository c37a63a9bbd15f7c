package domain

import (
	"errors"
	"fmt"
	"time"
)

// Schema versions of the payload shape a token provider may hand us.
const (
	SchemaV2 = "v2.0"
	SchemaV3 = "v3.0"
)

var (
	// ErrUnsupportedSchema indicates the token carries a payload version this store cannot interpret.
	ErrUnsupportedSchema = errors.New("domain: unsupported token schema version")
	// ErrTrusteeMissing indicates a trust-scoped token without a trustee in its payload.
	ErrTrusteeMissing = errors.New("domain: trust payload carries no trustee user id")
)

// UserRef identifies the owning principal when the provider nests it inside
// the payload instead of setting UserID on the record directly.
type UserRef struct {
	ID string `json:"id"`
}

// TrustSection carries delegation data for trust-scoped tokens.
type TrustSection struct {
	TrusteeUserID string `json:"trustee_user_id"`
}

// OAuthSection carries the consumer binding for OAuth-issued tokens.
type OAuthSection struct {
	ConsumerID string `json:"consumer_id"`
}

// AccessSection is the v2 payload layout; trust data lives under it.
type AccessSection struct {
	Trust *TrustSection `json:"trust,omitempty"`
}

// TokenSection is the nested token body; OAuth data lives under it.
type TokenSection struct {
	OAuth *OAuthSection `json:"oauth,omitempty"`
}

// Payload is the provider-supplied token body. Every sub-structure is
// optional; which ones are present depends on schema version and grant type.
// The store treats it as opaque except for trustee and consumer extraction.
type Payload struct {
	Access *AccessSection `json:"access,omitempty"`
	Trust  *TrustSection  `json:"trust,omitempty"`
	Token  *TokenSection  `json:"token,omitempty"`
}

// Token is the primary stored record. It is immutable once created except
// for deletion; the backend may evict it at or after ExpiresAt.
type Token struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires"`
	UserID    string    `json:"user_id,omitempty"`
	User      *UserRef  `json:"user,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
	TrustID   string    `json:"trust_id,omitempty"`
	Version   string    `json:"version,omitempty"`
	Payload   *Payload  `json:"payload,omitempty"`
}

// IsExpired reports whether the token has elapsed its validity window.
func (t Token) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// TrusteeUserID extracts the delegated principal from the payload. The
// lookup path depends on the schema version: v2 keeps trust data under the
// access section, v3 at the payload top level.
func (t Token) TrusteeUserID() (string, error) {
	switch t.Version {
	case SchemaV2:
		if t.Payload == nil || t.Payload.Access == nil || t.Payload.Access.Trust == nil {
			return "", ErrTrusteeMissing
		}
		if t.Payload.Access.Trust.TrusteeUserID == "" {
			return "", ErrTrusteeMissing
		}
		return t.Payload.Access.Trust.TrusteeUserID, nil
	case SchemaV3:
		if t.Payload == nil || t.Payload.Trust == nil || t.Payload.Trust.TrusteeUserID == "" {
			return "", ErrTrusteeMissing
		}
		return t.Payload.Trust.TrusteeUserID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSchema, t.Version)
	}
}

// ConsumerID returns the OAuth consumer binding when the payload carries
// one. Missing structure anywhere along the path means "no consumer", never
// an error.
func (t Token) ConsumerID() (string, bool) {
	if t.Payload == nil || t.Payload.Token == nil || t.Payload.Token.OAuth == nil {
		return "", false
	}
	if t.Payload.Token.OAuth.ConsumerID == "" {
		return "", false
	}
	return t.Payload.Token.OAuth.ConsumerID, true
}

// IndexEntry points a per-principal index at a token. It is stale once its
// expiry passes or the referenced record is gone; staleness is resolved
// lazily by readers.
type IndexEntry struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires"`
}

// Expired reports whether the entry should be pruned at the given instant.
func (e IndexEntry) Expired(at time.Time) bool {
	return !e.ExpiresAt.After(at)
}

// RevocationEntry records a token deleted before its natural expiry. The
// ledger retains entries until the original expiry passes.
type RevocationEntry struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Expired reports whether the ledger no longer needs to retain the entry.
func (e RevocationEntry) Expired(at time.Time) bool {
	return !e.ExpiresAt.After(at)
}

// TokenFilter narrows a per-user enumeration. Zero-valued fields match
// everything; UserID selects the index to enumerate and is required.
type TokenFilter struct {
	UserID     string
	TenantID   string
	TrustID    string
	ConsumerID string
}

// Matches applies the optional exact-match filters to a decoded record.
func (f TokenFilter) Matches(t Token) bool {
	if f.TenantID != "" && t.TenantID != f.TenantID {
		return false
	}
	if f.TrustID != "" && t.TrustID != f.TrustID {
		return false
	}
	if f.ConsumerID != "" {
		consumer, ok := t.ConsumerID()
		if !ok || consumer != f.ConsumerID {
			return false
		}
	}
	return true
}
