// Package loader resolves an archive-relative path ("Bundles2/...") to bytes,
// either from a local game install or from the CDN with on-disk caching
// (spec §4.2).
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"

	"github.com/user/poebundle/pkg/archiveerr"
)

// Backend resolves a single archive-relative path to its raw bytes.
// Implementations are safe to share for concurrent reads of distinct paths
// (spec §4.2's concurrency contract).
type Backend interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// Local reads bundle files directly out of a game install directory.
type Local struct {
	InstallDir string
}

// Load reads <InstallDir>/<path>.
func (l Local) Load(_ context.Context, path string) ([]byte, error) {
	full := filepath.Join(l.InstallDir, filepath.FromSlash(path))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: not found: %w", path, err)
		}
		return nil, fmt.Errorf("reading %s: %w", full, err)
	}
	return data, nil
}

// CDN fetches bundle files from a content-delivery mirror, caching bodies on
// disk so repeat reads in later sessions avoid the network. Cached files are
// reused without revalidation, by this and any later CDN instance sharing
// the cache directory (spec §4.2), and stored lz4-frame-compressed to shrink the on-disk footprint
// (the teacher imports pierrec/lz4 without ever calling it; this is where we
// exercise it — see SPEC_FULL.md's DOMAIN STACK).
type CDN struct {
	BaseURL  *url.URL
	CacheDir string
	Client   *http.Client
	Logger   *logrus.Logger
}

// NewCDN constructs a CDN backend with sane defaults for an unset client or
// logger.
func NewCDN(baseURL *url.URL, cacheDir string, logger *logrus.Logger) *CDN {
	if logger == nil {
		logger = logrus.New()
	}
	return &CDN{
		BaseURL:  baseURL,
		CacheDir: cacheDir,
		Client:   http.DefaultClient,
		Logger:   logger,
	}
}

// Load fetches <BaseURL>/<path>, transparently using and populating the
// on-disk cache.
func (c *CDN) Load(ctx context.Context, path string) ([]byte, error) {
	target, err := c.BaseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, &archiveerr.EncodingError{Reason: fmt.Sprintf("joining %q to base URL", path), Err: err}
	}

	cachePath := c.cacheFilePath(target)
	if data, ok := c.readCache(cachePath); ok {
		c.Logger.WithField("path", path).Debug("loader: cache hit")
		return data, nil
	}

	c.Logger.WithField("url", target.String()).Debug("loader: fetching from CDN")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", target, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &archiveerr.TransportError{URL: target.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &archiveerr.TransportError{URL: target.String(), Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &archiveerr.TransportError{URL: target.String(), Err: fmt.Errorf("reading body: %w", err)}
	}

	if err := c.writeCache(cachePath, body); err != nil {
		// Cache writes are best-effort (spec §4.2): a failure to persist the
		// cache never fails the read itself.
		c.Logger.WithError(err).WithField("path", cachePath).Warn("loader: failed to write cache entry")
	}

	return body, nil
}

// cacheFilePath mirrors the CDN URL structure under CacheDir, per spec §6:
// <cache_dir>/<host>/<path>/<file>. The on-disk copy carries an .lz4 suffix
// since it is stored frame-compressed.
func (c *CDN) cacheFilePath(target *url.URL) string {
	rel := filepath.Join(target.Host, filepath.FromSlash(target.Path))
	return filepath.Join(c.CacheDir, rel+".lz4")
}

func (c *CDN) readCache(cachePath string) ([]byte, bool) {
	f, err := os.Open(cachePath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var out bytes.Buffer
	zr := lz4.NewReader(f)
	if _, err := io.Copy(&out, zr); err != nil {
		c.Logger.WithError(err).WithField("path", cachePath).Warn("loader: cache entry unreadable, refetching")
		return nil, false
	}
	return out.Bytes(), true
}

// writeCache persists body to cachePath write-to-temp-then-rename, per the
// serialization-by-target-path guidance in spec §4.2/§5.
func (c *CDN) writeCache(cachePath string, body []byte) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".loader-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	zw := lz4.NewWriter(tmp)
	if _, err := zw.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("compressing cache entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("closing lz4 writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return fmt.Errorf("renaming cache entry into place: %w", err)
	}
	return nil
}
