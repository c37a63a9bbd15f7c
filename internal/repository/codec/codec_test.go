package codec

import (
	"reflect"
	"testing"
	"time"

	"github.com/arklim/token-vault/internal/core/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	expires := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	tok := domain.Token{
		ID:        "token-1",
		ExpiresAt: expires,
		UserID:    "user-1",
		User:      &domain.UserRef{ID: "user-1"},
		TenantID:  "tenant-1",
		TrustID:   "trust-1",
		Version:   domain.SchemaV3,
		Payload: &domain.Payload{
			Trust: &domain.TrustSection{TrusteeUserID: "trustee-1"},
			Token: &domain.TokenSection{OAuth: &domain.OAuthSection{ConsumerID: "consumer-1"}},
		},
	}

	data, err := EncodeToken(tok)
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}

	decoded, err := DecodeToken(data)
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if !reflect.DeepEqual(tok, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, tok)
	}
}

func TestDecodeTokenMalformed(t *testing.T) {
	if _, err := DecodeToken([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed primary record")
	}
}

func TestIndexRoundTrip(t *testing.T) {
	expires := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	entries := []domain.IndexEntry{
		{TokenID: "t1", ExpiresAt: expires},
		{TokenID: "t2", ExpiresAt: expires.Add(time.Hour)},
	}

	data, err := EncodeIndex(entries)
	if err != nil {
		t.Fatalf("EncodeIndex returned error: %v", err)
	}
	decoded := DecodeIndex(data)
	if !reflect.DeepEqual(entries, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, entries)
	}
}

func TestDecodeIndexMalformedYieldsEmpty(t *testing.T) {
	cases := map[string][]byte{
		"empty":    nil,
		"garbage":  []byte("invalid_json_list"),
		"non-list": []byte(`{"token_id":"t1"}`),
		"number":   []byte("42"),
		"null":     []byte("null"),
	}
	for name, data := range cases {
		if entries := DecodeIndex(data); len(entries) != 0 {
			t.Fatalf("%s: expected empty index, got %+v", name, entries)
		}
	}
}

func TestEncodeIndexNilIsEmptyList(t *testing.T) {
	data, err := EncodeIndex(nil)
	if err != nil {
		t.Fatalf("EncodeIndex returned error: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected empty JSON list, got %s", data)
	}
}

func TestRevocationsRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	entries := []domain.RevocationEntry{
		{TokenID: "t1", ExpiresAt: now.Add(time.Hour), RevokedAt: now},
	}

	data, err := EncodeRevocations(entries)
	if err != nil {
		t.Fatalf("EncodeRevocations returned error: %v", err)
	}
	decoded := DecodeRevocations(data)
	if !reflect.DeepEqual(entries, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, entries)
	}

	if entries := DecodeRevocations([]byte("nope")); len(entries) != 0 {
		t.Fatalf("expected empty ledger for malformed bytes, got %+v", entries)
	}
}

func TestRevocationMemberRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	entry := domain.RevocationEntry{TokenID: "t1", ExpiresAt: now.Add(time.Hour), RevokedAt: now}

	data, err := EncodeRevocation(entry)
	if err != nil {
		t.Fatalf("EncodeRevocation returned error: %v", err)
	}
	decoded, ok := DecodeRevocation(data)
	if !ok {
		t.Fatalf("expected decodable member")
	}
	if !reflect.DeepEqual(entry, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, entry)
	}

	if _, ok := DecodeRevocation([]byte("bad")); ok {
		t.Fatalf("malformed member must not decode")
	}
	if _, ok := DecodeRevocation([]byte("{}")); ok {
		t.Fatalf("member without token id must not decode")
	}
}
