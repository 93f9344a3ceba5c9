package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

type Cursor struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, ErrInvalidPageToken
	}
	return &c, nil
}

// Apply orders newest first and seeks past the cursor. It fetches one extra
// row so callers can tell whether another page exists.
func Apply(stmt *gorm.DB, p Pagination) (*gorm.DB, error) {
	if p.PageToken != "" {
		c, err := DecodeCursor(p.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	return stmt.Order("created_at desc, id desc").Limit(p.Size() + 1), nil
}

// Trim cuts the extra row fetched by Apply and builds the page info.
func Trim[T any](items []T, p Pagination, cursor func(T) Cursor) ([]T, PageInfo) {
	size := p.Size()
	if len(items) <= size {
		return items, PageInfo{}
	}
	items = items[:size]
	return items, PageInfo{
		HasMore:       true,
		NextPageToken: EncodeCursor(cursor(items[len(items)-1])),
	}
}
