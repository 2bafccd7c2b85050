// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package region restricts ingestion to an exclusive economic zone polygon
// loaded from GeoJSON or from the MarineRegions WFS service.
package region

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
)

// ErrNoPolygon is returned when the input holds no polygon geometry.
var ErrNoPolygon = errors.New("no polygon geometry found")

const maxWFSBody = 64 << 20

// Region is a set of polygons. A nil *Region contains every point.
type Region struct {
	Name     string
	polygons []orb.Polygon
	bound    orb.Bound
}

// Contains reports whether (lat, lon) lies inside the region.
func (r *Region) Contains(lat, lon float64) bool {
	if r == nil {
		return true
	}
	pt := orb.Point{lon, lat}
	if !r.bound.Contains(pt) {
		return false
	}
	for _, p := range r.polygons {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// Bound returns the region's bounding box.
func (r *Region) Bound() orb.Bound {
	return r.bound
}

// FromGeoJSON accepts a FeatureCollection, a Feature or a bare geometry. Every
// Polygon and MultiPolygon found becomes part of the region.
func FromGeoJSON(data []byte) (*Region, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var geoms []orb.Geometry
	name := ""
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid FeatureCollection: %w", err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
			if name == "" {
				name = featureName(f)
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid Feature: %w", err)
		}
		geoms = append(geoms, f.Geometry)
		name = featureName(f)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid geometry: %w", err)
		}
		geoms = append(geoms, g.Geometry())
	}

	r := &Region{Name: name}
	for _, g := range geoms {
		switch g := g.(type) {
		case orb.Polygon:
			r.polygons = append(r.polygons, g)
		case orb.MultiPolygon:
			r.polygons = append(r.polygons, g...)
		}
	}
	if len(r.polygons) == 0 {
		return nil, ErrNoPolygon
	}
	r.bound = r.polygons[0].Bound()
	for _, p := range r.polygons[1:] {
		r.bound = r.bound.Union(p.Bound())
	}
	return r, nil
}

func featureName(f *geojson.Feature) string {
	for _, key := range []string{"geoname", "name", "territory1"} {
		if s := f.Properties.MustString(key, ""); s != "" {
			return s
		}
	}
	return ""
}

// LoadFile reads a GeoJSON file.
func LoadFile(path string) (*Region, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	return FromGeoJSON(data)
}

// FetchWFS downloads the EEZ with the given MRGID from a MarineRegions
// compatible WFS endpoint.
func FetchWFS(ctx context.Context, client *http.Client, wfsURL string, mrgid int) (*Region, error) {
	u, err := url.Parse(wfsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid WFS URL: %w", err)
	}
	q := u.Query()
	q.Set("request", "GetFeature")
	q.Set("service", "WFS")
	q.Set("version", "1.1.0")
	q.Set("typename", "MarineRegions:eez")
	q.Set("outputFormat", "application/json")
	q.Set("filter", "<Filter><PropertyIsEqualTo><PropertyName>mrgid_eez</PropertyName><Literal>"+
		strconv.Itoa(mrgid)+"</Literal></PropertyIsEqualTo></Filter>")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create WFS request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("WFS request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("WFS returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWFSBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read WFS response: %w", err)
	}
	r, err := FromGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("EEZ %d: %w", mrgid, err)
	}
	if r.Name == "" {
		r.Name = "mrgid:" + strconv.Itoa(mrgid)
	}
	return r, nil
}

// Load resolves the configured region. It returns nil, nil when no region is
// configured; a file takes precedence over the WFS.
func Load(ctx context.Context, cfg *config.RegionConfig) (*Region, error) {
	var (
		r   *Region
		err error
	)
	switch {
	case cfg.GeoJSONPath != "":
		r, err = LoadFile(cfg.GeoJSONPath)
	case cfg.MRGID > 0:
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r, err = FetchWFS(ctx, &http.Client{Timeout: timeout}, cfg.WFSURL, cfg.MRGID)
	default:
		logging.Info().Msg("No region configured, accepting events everywhere")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logging.Info().Str("region", r.Name).Int("polygons", len(r.polygons)).Msg("Region loaded")
	return r, nil
}
