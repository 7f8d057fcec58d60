package firestore

import (
	"errors"
	"testing"
	"time"

	"github.com/pravesh-commerce/api/internal/platform/pagination"
)

func TestCreatedAtTokenRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, time.March, 14, 9, 26, 53, 589793000, time.UTC)

	token, err := encodeCreatedAtToken(createdAt, "ord_01ABC")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	gotCreatedAt, gotID, err := decodeCreatedAtToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !gotCreatedAt.Equal(createdAt) {
		t.Fatalf("createdAt mismatch: got %v want %v", gotCreatedAt, createdAt)
	}
	if gotID != "ord_01ABC" {
		t.Fatalf("id mismatch: got %q", gotID)
	}
}

func TestDecodeCreatedAtTokenRejectsGarbage(t *testing.T) {
	cases := []string{
		"not-base64!!",
		"eyJmb28iOiJiYXIifQ", // valid JSON, wrong shape
	}
	for _, tc := range cases {
		if _, _, err := decodeCreatedAtToken(tc); !errors.Is(err, pagination.ErrInvalidPageToken) {
			t.Errorf("token %q: expected ErrInvalidPageToken, got %v", tc, err)
		}
	}
}
