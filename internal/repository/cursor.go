package repository

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"murmur/internal/models"
)

// Cursor is a keyset position in the (updated_at DESC, id DESC) feed.
// Reverse cursors page back toward newer posts.
type Cursor struct {
	UpdatedAt time.Time
	ID        uint
	Reverse   bool
}

type cursorWire struct {
	T int64 `json:"t"`
	I uint  `json:"i"`
	R bool  `json:"r,omitempty"`
}

// Encode renders c as an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(cursorWire{T: c.UpdatedAt.UnixMicro(), I: c.ID, R: c.Reverse})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by Encode. An empty token is a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, models.NewValidationError("Invalid cursor")
	}
	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil || w.I == 0 {
		return nil, models.NewValidationError("Invalid cursor")
	}
	return &Cursor{UpdatedAt: time.UnixMicro(w.T).UTC(), ID: w.I, Reverse: w.R}, nil
}

func cursorAt(p *models.Post, reverse bool) *Cursor {
	return &Cursor{UpdatedAt: p.UpdatedAt, ID: p.ID, Reverse: reverse}
}
