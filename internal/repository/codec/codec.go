// Package codec isolates the backend byte representation from the in-memory
// token types. Primary records must round-trip exactly; index and ledger
// blobs decode tolerantly, because the index is an optimization rather than
// the source of truth — a corrupted index degrades to "no tokens" instead of
// failing the store.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/arklim/token-vault/internal/core/domain"
)

// EncodeToken serializes a primary token record.
func EncodeToken(t domain.Token) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode token %s: %w", t.ID, err)
	}
	return data, nil
}

// DecodeToken deserializes a primary token record. Unlike index decoding,
// malformed primary bytes are a hard error for the caller to classify.
func DecodeToken(data []byte) (domain.Token, error) {
	var t domain.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.Token{}, fmt.Errorf("decode token record: %w", err)
	}
	return t, nil
}

// EncodeIndex serializes a whole per-principal index as one list value for
// the compare-and-swap strategy.
func EncodeIndex(entries []domain.IndexEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.IndexEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return data, nil
}

// DecodeIndex deserializes an index blob. Malformed or non-list bytes yield
// an empty index, never an error.
func DecodeIndex(data []byte) []domain.IndexEntry {
	if len(data) == 0 {
		return nil
	}
	var entries []domain.IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// EncodeRevocations serializes the whole revocation ledger as one list value
// for the compare-and-swap strategy.
func EncodeRevocations(entries []domain.RevocationEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.RevocationEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode revocation ledger: %w", err)
	}
	return data, nil
}

// DecodeRevocations deserializes a ledger blob with the same tolerance as
// DecodeIndex.
func DecodeRevocations(data []byte) []domain.RevocationEntry {
	if len(data) == 0 {
		return nil
	}
	var entries []domain.RevocationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// EncodeRevocation serializes a single ledger entry as an ordered-set member;
// the set score carries the expiry.
func EncodeRevocation(e domain.RevocationEntry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode revocation entry %s: %w", e.TokenID, err)
	}
	return data, nil
}

// DecodeRevocation deserializes a single ledger member. Malformed members
// report ok=false and are skipped by readers.
func DecodeRevocation(data []byte) (domain.RevocationEntry, bool) {
	var e domain.RevocationEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.RevocationEntry{}, false
	}
	if e.TokenID == "" {
		return domain.RevocationEntry{}, false
	}
	return e, true
}
