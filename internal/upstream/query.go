// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package upstream

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/tidewatch/internal/models"
)

// Query describes one paginated upstream request.
type Query struct {
	Start          time.Time
	End            time.Time
	PageSize       int // 0 selects the client default
	Datasets       []string
	Flags          []string // ISO3 flag states
	VesselIDPrefix string
	BBox           *models.BBox
	Extra          url.Values
}

// Token is the continuation handed back by a page. The zero Token requests
// the first page and, on a Page, means there is no more data.
type Token struct {
	Offset *int
	Cursor string
}

// IsZero reports whether t carries no continuation.
func (t Token) IsZero() bool {
	return t.Offset == nil && t.Cursor == ""
}

func (t Token) String() string {
	switch {
	case t.Offset != nil:
		return "offset=" + strconv.Itoa(*t.Offset)
	case t.Cursor != "":
		return "since=" + t.Cursor
	default:
		return "start"
	}
}

// OffsetToken builds an offset continuation.
func OffsetToken(n int) Token {
	return Token{Offset: &n}
}

// CursorToken builds a cursor continuation.
func CursorToken(s string) Token {
	return Token{Cursor: s}
}

// values encodes q and tok as query-string parameters.
func (q *Query) values(tok Token, pageSize int) url.Values {
	v := url.Values{}
	for k, vals := range q.Extra {
		v[k] = append([]string(nil), vals...)
	}
	for i, d := range q.Datasets {
		v.Set(fmt.Sprintf("datasets[%d]", i), d)
	}
	for i, f := range q.Flags {
		v.Set(fmt.Sprintf("flags[%d]", i), f)
	}
	if q.VesselIDPrefix != "" {
		v.Set("vessel-id-prefix", q.VesselIDPrefix)
	}
	if !q.Start.IsZero() {
		v.Set("start-date", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end-date", q.End.UTC().Format(time.RFC3339))
	}
	if q.BBox != nil {
		v.Set("minLat", formatCoord(q.BBox.MinLat))
		v.Set("maxLat", formatCoord(q.BBox.MaxLat))
		v.Set("minLon", formatCoord(q.BBox.MinLon))
		v.Set("maxLon", formatCoord(q.BBox.MaxLon))
	}
	v.Set("limit", strconv.Itoa(pageSize))
	switch {
	case tok.Offset != nil:
		v.Set("offset", strconv.Itoa(*tok.Offset))
	case tok.Cursor != "":
		v.Set("since", tok.Cursor)
	default:
		v.Set("offset", "0")
	}
	return v
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
