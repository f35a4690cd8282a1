// Package schema fetches and selects the external table-schema JSON that
// drives the tabular reader (spec §4.7, §6). The schema-fetch itself is an
// external collaborator spec.md declares out of scope; this package gives
// it the one shape spec §6 fully specifies (the JSON document and the
// If-None-Match revalidation rule) so dump_tables/dump_trees have something
// concrete to depend on.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/poebundle/pkg/dat"
)

// TableSchema names one table's column schema and which edition(s) it
// applies to. validFor 3 means "common to both editions" (spec §6).
type TableSchema struct {
	ValidFor uint32           `json:"validFor"`
	Name     string           `json:"name"`
	Columns  []dat.ColumnSchema `json:"columns"`
}

// Collection is the full schema document (spec §6).
type Collection struct {
	Tables []TableSchema `json:"tables"`
}

const commonEdition = 3

// For selects the schema for a table named by its file stem (case
// insensitive), preferring the entry whose ValidFor matches edition and
// falling back to the common (3) entry (spec §6).
func (c *Collection) For(stem string, edition int) (*TableSchema, bool) {
	var fallback *TableSchema
	for i := range c.Tables {
		t := &c.Tables[i]
		if !strings.EqualFold(t.Name, stem) {
			continue
		}
		if int(t.ValidFor) == edition {
			return t, true
		}
		if t.ValidFor == commonEdition {
			fallback = t
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

// Provider resolves the current schema collection.
type Provider interface {
	Schema(ctx context.Context) (*Collection, error)
}

// URLProvider fetches the schema JSON from a URL, caching the body and its
// ETag on disk and revalidating via If-None-Match once the cached copy is
// older than RevalidateAfter (spec §6: "revalidate via HTTP If-None-Match
// if the file is older than 3600 seconds").
type URLProvider struct {
	URL             string
	CacheDir        string
	Client          *http.Client
	RevalidateAfter time.Duration
}

// NewURLProvider builds a URLProvider with spec's default 3600-second
// revalidation window and http.DefaultClient.
func NewURLProvider(url, cacheDir string) *URLProvider {
	return &URLProvider{
		URL:             url,
		CacheDir:        cacheDir,
		Client:          http.DefaultClient,
		RevalidateAfter: time.Hour,
	}
}

func (p *URLProvider) cachePath() string  { return filepath.Join(p.CacheDir, "schema.min.json") }
func (p *URLProvider) etagPath() string   { return filepath.Join(p.CacheDir, "schema.min.json.etag") }

// Schema returns the parsed schema collection, using the on-disk cache
// when it is fresh or still valid per a 304 response.
func (p *URLProvider) Schema(ctx context.Context) (*Collection, error) {
	cached, cachedETag, age, haveCache := p.readCache()

	if haveCache && age < p.RevalidateAfter {
		return decode(cached)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building schema request: %w", err)
	}
	if haveCache && cachedETag != "" {
		req.Header.Set("If-None-Match", cachedETag)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		if haveCache {
			return decode(cached)
		}
		return nil, fmt.Errorf("fetching schema: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if !haveCache {
			return nil, fmt.Errorf("schema server returned 304 with no cached copy")
		}
		p.touchCache()
		return decode(cached)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if haveCache {
			return decode(cached)
		}
		return nil, fmt.Errorf("schema server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading schema body: %w", err)
	}
	p.writeCache(body, resp.Header.Get("ETag"))
	return decode(body)
}

func (p *URLProvider) client() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

func (p *URLProvider) readCache() (body []byte, etag string, age time.Duration, ok bool) {
	info, err := os.Stat(p.cachePath())
	if err != nil {
		return nil, "", 0, false
	}
	body, err = os.ReadFile(p.cachePath())
	if err != nil {
		return nil, "", 0, false
	}
	if e, err := os.ReadFile(p.etagPath()); err == nil {
		etag = strings.TrimSpace(string(e))
	}
	return body, etag, time.Since(info.ModTime()), true
}

func (p *URLProvider) writeCache(body []byte, etag string) {
	if err := os.MkdirAll(p.CacheDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(p.cachePath(), body, 0o644)
	if etag != "" {
		_ = os.WriteFile(p.etagPath(), []byte(etag), 0o644)
	}
}

// touchCache bumps the cached schema's mtime after a 304, so the next
// revalidation is due another RevalidateAfter out.
func (p *URLProvider) touchCache() {
	now := time.Now()
	_ = os.Chtimes(p.cachePath(), now, now)
}

func decode(body []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("decoding schema JSON: %w", err)
	}
	return &c, nil
}
