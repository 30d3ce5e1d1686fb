// Package pagination provides the page token codec shared by the
// Firestore-backed list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPageToken flags page tokens that fail to decode.
var ErrInvalidPageToken = errors.New("pagination: invalid pageToken")

// Cursor identifies the last document of the previously served page. Tokens
// round-trip through JSON so cursor values containing arbitrary characters
// survive intact.
type Cursor struct {
	Name  string    `json:"name,omitempty"`
	Date  time.Time `json:"date"`
	DocID string    `json:"docId"`
}

func (c Cursor) isZero() bool {
	return c.Name == "" && c.Date.IsZero() && c.DocID == ""
}

// EncodeToken serialises the cursor into a base64 URL-safe page token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.isZero() {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses a page token produced by EncodeToken back into a cursor.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.DocID == "" {
		return Cursor{}, fmt.Errorf("%w: missing document id", ErrInvalidPageToken)
	}
	return cursor, nil
}
