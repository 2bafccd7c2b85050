// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package testinfra

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// UpstreamCapture is one request received by MockUpstream.
type UpstreamCapture struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockUpstream serves a fixed list of raw JSON entries with offset
// pagination: each page carries nextOffset until the list is exhausted.
type MockUpstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	entries  []string
	pageSize int
	captures []UpstreamCapture
	failures []int

	// ResponseFunc, when set, replaces the default paging handler.
	ResponseFunc func(w http.ResponseWriter, r *http.Request)
}

// NewMockUpstream starts a mock serving entries in pages of pageSize. A
// request's limit parameter overrides pageSize when smaller.
func NewMockUpstream(t *testing.T, pageSize int, entries ...string) *MockUpstream {
	t.Helper()

	m := &MockUpstream{entries: entries, pageSize: pageSize}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Server.Close)
	return m
}

// URL returns the server base URL.
func (m *MockUpstream) URL() string {
	return m.Server.URL
}

// FailNext makes the next len(statuses) requests fail with the given HTTP
// statuses, in order.
func (m *MockUpstream) FailNext(statuses ...int) {
	m.mu.Lock()
	m.failures = append(m.failures, statuses...)
	m.mu.Unlock()
}

// Captures returns a copy of the received requests.
func (m *MockUpstream) Captures() []UpstreamCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UpstreamCapture, len(m.captures))
	copy(out, m.captures)
	return out
}

func (m *MockUpstream) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.captures = append(m.captures, UpstreamCapture{Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()})
	var status int
	if len(m.failures) > 0 {
		status, m.failures = m.failures[0], m.failures[1:]
	}
	custom := m.ResponseFunc
	m.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if custom != nil {
		custom(w, r)
		return
	}

	size := m.pageSize
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < size {
		size = limit
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 || offset > len(m.entries) {
		offset = len(m.entries)
	}
	end := offset + size
	if end > len(m.entries) {
		end = len(m.entries)
	}

	body := `{"entries":[` + strings.Join(m.entries[offset:end], ",") + `]`
	if end < len(m.entries) {
		body += fmt.Sprintf(`,"nextOffset":%d`, end)
	}
	body += fmt.Sprintf(`,"total":%d}`, len(m.entries))

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

// FishingEntry returns a raw upstream fishing event for vessel ssvid at
// (lat, lon) and unix time ts.
func FishingEntry(id, ssvid string, lat, lon float64, ts int64) string {
	return fmt.Sprintf(`{"id":%q,"type":"fishing","dataset":"public-global-fishing-events:latest",`+
		`"timestamp":%d,"position":{"lat":%v,"lon":%v},`+
		`"vessel":{"id":"uuid-%s","ssvid":%q,"flag":"CHN","name":"TEST %s"},"speed":2.1,`+
		`"distances":{"startDistanceFromShoreKm":40,"startDistanceFromPortKm":120}}`,
		id, ts, lat, lon, ssvid, ssvid, ssvid)
}
