// Package page implements stateless cursor pagination over in-memory
// lists.
//
// A cursor is a base64url-encoded JSON object {"offset": n}. It carries
// everything the server needs, so pagination requires no server-side
// state and survives restarts. Cursors are best-effort: they are not a
// consistent snapshot and may skip or repeat items if the underlying
// list changes between pages.
package page

import (
	"encoding/base64"
	"encoding/json"

	"github.com/farce1/handover-sub002/internal/protocol"
)

type cursorPayload struct {
	Offset *int `json:"offset"`
}

// EncodeCursor wraps a non-negative offset in an opaque token.
func EncodeCursor(offset int) string {
	if offset < 0 {
		offset = 0
	}
	raw, _ := json.Marshal(cursorPayload{Offset: &offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor unwraps a token produced by EncodeCursor. An empty cursor
// decodes to offset 0. A malformed cursor (bad base64, bad JSON, missing
// or negative offset) is an input-validation error, never a silent zero.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		// Tolerate padded tokens from clients that re-encode.
		raw, err = base64.URLEncoding.DecodeString(cursor)
		if err != nil {
			return 0, protocol.InvalidInput("cursor", "cursor is not valid base64url")
		}
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, protocol.InvalidInput("cursor", "cursor payload is not valid JSON")
	}
	if p.Offset == nil || *p.Offset < 0 {
		return 0, protocol.InvalidInput("cursor", "cursor offset must be a non-negative integer")
	}
	return *p.Offset, nil
}

// Page is one bounded slice of a list. NextCursor is empty on the last
// page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Paginate slices items at the cursor's offset. limit <= 0 selects
// defaultLimit; the effective limit is clamped to [1, maxLimit]. An
// offset at or past the end yields an empty final page, not an error.
func Paginate[T any](items []T, cursor string, limit, defaultLimit, maxLimit int) (Page[T], error) {
	offset, err := DecodeCursor(cursor)
	if err != nil {
		return Page[T]{}, err
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = 1
	}

	if offset >= len(items) {
		return Page[T]{Items: []T{}}, nil
	}

	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	p := Page[T]{Items: items[offset:end]}
	if end < len(items) {
		p.NextCursor = EncodeCursor(end)
	}
	return p, nil
}
