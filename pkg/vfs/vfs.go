// Package vfs composes the loader, bundle codec, index, path trie, and path
// hasher into the public list/read/batch_read surface (spec §4.6).
package vfs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/user/poebundle/pkg/archiveerr"
	"github.com/user/poebundle/pkg/bundle"
	"github.com/user/poebundle/pkg/index"
	"github.com/user/poebundle/pkg/loader"
	"github.com/user/poebundle/pkg/pathhash"
	"github.com/user/poebundle/pkg/pathtrie"
)

type state int

const (
	stateUninitialised state = iota
	stateReady
	stateBroken
)

const indexPath = "Bundles2/_.index.bin"

// FS is a session over one archive: a loader backend plus the lazily
// initialised index, hash LUT, and bundle-payload cache (spec §4.6).
//
// FS is not internally thread-safe for read; batch_read coordinates its own
// concurrency internally but callers must not call read/list concurrently
// with one another on the same FS (spec §5).
type FS struct {
	backend loader.Backend
	cache   *payloadCache
	logger  *logrus.Logger

	mu          sync.Mutex
	st          state
	brokenCause error
	idx         *index.Index
	lut         map[uint64]int // hash -> file record index
	sf          singleflight.Group
}

// New constructs an FS over backend. cacheBudgetBytes bounds the
// decompressed bundle-payload cache; 0 disables the budget (unbounded). A
// nil logger defaults to a new logrus logger (logrus.New()).
func New(backend loader.Backend, cacheBudgetBytes int64, logger *logrus.Logger) *FS {
	if logger == nil {
		logger = logrus.New()
	}
	return &FS{
		backend: backend,
		cache:   newPayloadCache(cacheBudgetBytes),
		logger:  logger,
		st:      stateUninitialised,
	}
}

// ensureReady triggers index fetch + LUT construction on first use,
// transitioning Uninitialised -> Ready, or -> Broken on failure (spec §4.6,
// §5's error-poisoning rule: an index failure is fatal for the session).
func (f *FS) ensureReady(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.st {
	case stateReady:
		return nil
	case stateBroken:
		return f.brokenCause
	}

	if err := f.initLocked(ctx); err != nil {
		f.st = stateBroken
		f.brokenCause = err
		return err
	}
	f.st = stateReady
	return nil
}

func (f *FS) initLocked(ctx context.Context) error {
	raw, err := f.backend.Load(ctx, indexPath)
	if err != nil {
		return fmt.Errorf("loading index bundle: %w", err)
	}
	b, err := bundle.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing index bundle: %w", err)
	}
	payload, err := b.Decompress()
	if err != nil {
		return fmt.Errorf("decompressing index bundle: %w", err)
	}
	idx, err := index.Parse(payload)
	if err != nil {
		return fmt.Errorf("parsing index blob: %w", err)
	}

	lut := make(map[uint64]int, len(idx.Files))
	for i, rec := range idx.Files {
		lut[rec.Hash] = i
	}

	f.idx = idx
	f.lut = lut
	return nil
}

// List enumerates every leaf path across all path records, in path-record
// order then leaf order within a record (spec §5's ordering guarantee).
func (f *FS) List(ctx context.Context) ([]string, error) {
	if err := f.ensureReady(ctx); err != nil {
		return nil, err
	}

	var out []string
	for _, p := range f.idx.Paths {
		window, err := f.idx.Window(p)
		if err != nil {
			return nil, err
		}
		leaves, err := pathtrie.Enumerate(window)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// Read resolves path's hash against the file LUT and returns its bytes from
// the containing bundle's decompressed payload (spec §4.6).
func (f *FS) Read(ctx context.Context, path string) ([]byte, error) {
	if err := f.ensureReady(ctx); err != nil {
		return nil, err
	}

	h := pathhash.Hash(path)
	f.mu.Lock()
	recIdx, ok := f.lut[h]
	f.mu.Unlock()
	if !ok {
		recIdx, ok = f.linearScan(h)
	}
	if !ok {
		return nil, &archiveerr.PathNotFound{Path: path}
	}
	rec := f.idx.Files[recIdx]

	payload, err := f.bundlePayload(ctx, int(rec.BundleIndex))
	if err != nil {
		return nil, err
	}

	end := uint64(rec.Offset) + uint64(rec.Size)
	if end > uint64(len(payload)) {
		return nil, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("file record for %q: [%d,%d) exceeds bundle payload of length %d", path, rec.Offset, end, len(payload))}
	}
	out := make([]byte, rec.Size)
	copy(out, payload[rec.Offset:end])
	return out, nil
}

// linearScan scans the file records directly when the hash LUT misses.
// This tolerates a record whose hash was computed or recorded out-of-band
// from the LUT build (a slow path, never expected to fire in ordinary
// use — it exists so a single stale LUT entry degrades to a log line
// instead of a hard PathNotFound).
func (f *FS) linearScan(hash uint64) (int, bool) {
	f.logger.WithField("hash", hash).Debug("vfs: hash LUT miss, falling back to linear scan")
	for i, rec := range f.idx.Files {
		if rec.Hash == hash {
			return i, true
		}
	}
	return 0, false
}

// BatchResult pairs a requested path with its read outcome.
type BatchResult struct {
	Path string
	Data []byte
	Err  error
}

// BatchRead groups paths by bundle, decompresses each required bundle at
// most once, and returns results with per-bundle ordering preserved (spec
// §4.6, §5). Distinct bundles are decompressed concurrently.
func (f *FS) BatchRead(ctx context.Context, paths []string) ([]BatchResult, error) {
	if err := f.ensureReady(ctx); err != nil {
		return nil, err
	}

	type located struct {
		path string
		rec  index.FileRecord
		err  error
	}

	located0 := make([]located, len(paths))
	byBundle := make(map[int][]int) // bundle index -> positions in paths
	f.mu.Lock()
	for i, p := range paths {
		h := pathhash.Hash(p)
		recIdx, ok := f.lut[h]
		if !ok {
			recIdx, ok = f.linearScan(h)
		}
		if !ok {
			located0[i] = located{path: p, err: &archiveerr.PathNotFound{Path: p}}
			continue
		}
		rec := f.idx.Files[recIdx]
		located0[i] = located{path: p, rec: rec}
		byBundle[int(rec.BundleIndex)] = append(byBundle[int(rec.BundleIndex)], i)
	}
	f.mu.Unlock()

	bundleIdxs := make([]int, 0, len(byBundle))
	for b := range byBundle {
		bundleIdxs = append(bundleIdxs, b)
	}
	sort.Ints(bundleIdxs)

	payloads := make(map[int][]byte, len(bundleIdxs))
	var payloadsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bundleIdxs {
		b := b
		g.Go(func() error {
			payload, err := f.bundlePayload(gctx, b)
			if err != nil {
				payloadsMu.Lock()
				payloads[b] = nil
				payloadsMu.Unlock()
				return nil // per-file error, not fatal to the batch
			}
			payloadsMu.Lock()
			payloads[b] = payload
			payloadsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	results := make([]BatchResult, len(paths))
	for i, l := range located0 {
		if l.err != nil {
			results[i] = BatchResult{Path: l.path, Err: l.err}
			continue
		}
		payload := payloads[int(l.rec.BundleIndex)]
		if payload == nil {
			results[i] = BatchResult{Path: l.path, Err: fmt.Errorf("bundle %d unavailable", l.rec.BundleIndex)}
			continue
		}
		end := uint64(l.rec.Offset) + uint64(l.rec.Size)
		if end > uint64(len(payload)) {
			results[i] = BatchResult{Path: l.path, Err: &archiveerr.OutOfBounds{Reason: fmt.Sprintf("file record for %q exceeds bundle payload", l.path)}}
			continue
		}
		data := make([]byte, l.rec.Size)
		copy(data, payload[l.rec.Offset:end])
		results[i] = BatchResult{Path: l.path, Data: data}
	}
	return results, nil
}

// bundlePayload returns bundleIdx's decompressed payload, populating the
// cache on miss. Concurrent requests for the same bundle are deduplicated
// via singleflight so batch_read never decompresses one bundle twice.
func (f *FS) bundlePayload(ctx context.Context, bundleIdx int) ([]byte, error) {
	if payload, ok := f.cache.get(bundleIdx); ok {
		return payload, nil
	}

	key := fmt.Sprintf("%d", bundleIdx)
	v, err, _ := f.sf.Do(key, func() (interface{}, error) {
		if payload, ok := f.cache.get(bundleIdx); ok {
			return payload, nil
		}
		if bundleIdx >= len(f.idx.Bundles) {
			return nil, &archiveerr.CorruptIndex{Reason: fmt.Sprintf("bundle_index %d out of range", bundleIdx)}
		}
		name := f.idx.Bundles[bundleIdx].Name
		path := "Bundles2/" + name + ".bundle.bin"
		raw, err := f.backend.Load(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("loading bundle %q: %w", name, err)
		}
		b, err := bundle.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing bundle %q: %w", name, err)
		}
		payload, err := b.Decompress()
		if err != nil {
			return nil, fmt.Errorf("decompressing bundle %q: %w", name, err)
		}
		f.cache.put(bundleIdx, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
