// Package pagination implements keyset cursors over (timestamp, id) pairs.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is the sort key of the last item on the previous page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// EncodeCursor returns an opaque, URL-safe token. An empty id yields "".
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := timestamp.UTC().Format(time.RFC3339Nano) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor returns nil, nil for an empty cursor.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{LastID: id, Timestamp: timestamp}, nil
}

// NewPage builds a page from a query that fetched up to limit+1 rows. The
// extra row only signals that more exist; the cursor points at the last
// row kept.
func NewPage[T any](rows []T, limit int, key func(T) (string, time.Time)) *PageResult[T] {
	if rows == nil {
		rows = []T{}
	}
	page := &PageResult[T]{Items: rows}
	if limit <= 0 || len(rows) <= limit {
		return page
	}

	page.Items = rows[:limit]
	page.HasMore = true
	page.Cursor = EncodeCursor(key(page.Items[limit-1]))
	return page
}
