package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTripPreservesDelimiterCharacters(t *testing.T) {
	cursor := Cursor{Name: "Rice | 5kg | Promo", DocID: "prod-42"}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Name != cursor.Name || decoded.DocID != cursor.DocID {
		t.Fatalf("cursor mangled in transit: %+v", decoded)
	}
}

func TestTokenRoundTripDateCursor(t *testing.T) {
	date := time.Date(2026, 3, 14, 10, 30, 0, 123456789, time.UTC)
	token, err := EncodeToken(Cursor{Date: date, DocID: "txn-7"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Date.Equal(date) || decoded.DocID != "txn-7" {
		t.Fatalf("cursor mangled in transit: %+v", decoded)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token != "" {
		t.Fatalf("empty cursor must produce an empty token, got %q", token)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!", "bm90IGpzb24", "e30"} {
		if _, err := DecodeToken(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
}

func TestDecodeTokenBlank(t *testing.T) {
	cursor, err := DecodeToken("   ")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cursor.isZero() {
		t.Fatalf("blank token must yield a zero cursor, got %+v", cursor)
	}
}
