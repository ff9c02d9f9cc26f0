package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-renderlink/core"
)

const statusCacheKeyPrefix = "renderlink::render_status::v1"

type StatusReader interface {
	Status(ctx context.Context, renderID string) (Snapshot, error)
}

// CachedStatusReader serves finished renders from a cache. Snapshots that are
// still in flight always go to the base reader.
type CachedStatusReader struct {
	base  StatusReader
	cache repositorycache.CacheService
}

func NewCachedStatusReader(base StatusReader, cacheService repositorycache.CacheService) (*CachedStatusReader, error) {
	if base == nil {
		return nil, fmt.Errorf("render: base status reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("render: status cache service is required")
	}
	return &CachedStatusReader{base: base, cache: cacheService}, nil
}

// NewStatusCacheService builds an in-memory cache whose entries live for ttl.
func NewStatusCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

// StatusCacheKey returns renderlink::render_status::v1::<render id>, with the
// id path-escaped.
func StatusCacheKey(renderID string) (string, error) {
	renderID = strings.TrimSpace(renderID)
	if renderID == "" {
		return "", core.UsageError(ErrJobRequired, "render: render id is required", nil)
	}
	return statusCacheKeyPrefix + "::" + url.PathEscape(renderID), nil
}

// inFlight carries a non-terminal snapshot out of the fetch callback so it
// is returned without being stored.
type inFlight struct {
	snapshot Snapshot
}

func (e *inFlight) Error() string {
	return "render: status " + string(e.snapshot.Status) + " is not cacheable"
}

func (r *CachedStatusReader) Status(ctx context.Context, renderID string) (Snapshot, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return Snapshot{}, fmt.Errorf("render: cached status reader is not configured")
	}
	key, err := StatusCacheKey(renderID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot, err := repositorycache.GetOrFetch(ctx, r.cache, key, func(ctx context.Context) (Snapshot, error) {
		fetched, fetchErr := r.base.Status(ctx, renderID)
		if fetchErr != nil {
			return Snapshot{}, fetchErr
		}
		if !fetched.Status.Terminal() {
			return Snapshot{}, &inFlight{snapshot: fetched}
		}
		return cloneSnapshot(fetched), nil
	})
	if err != nil {
		var pending *inFlight
		if errors.As(err, &pending) {
			return pending.snapshot, nil
		}
		return Snapshot{}, err
	}
	return cloneSnapshot(snapshot), nil
}

// Forget drops a cached snapshot.
func (r *CachedStatusReader) Forget(ctx context.Context, renderID string) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("render: cached status reader is not configured")
	}
	key, err := StatusCacheKey(renderID)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, key)
}

func cloneSnapshot(snapshot Snapshot) Snapshot {
	cloned := snapshot
	if snapshot.Result != nil {
		result := *snapshot.Result
		result.Metadata = copyMetadata(snapshot.Result.Metadata)
		cloned.Result = &result
	}
	if snapshot.Error != nil {
		detail := *snapshot.Error
		cloned.Error = &detail
	}
	return cloned
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ StatusReader = (*Coordinator)(nil)
	_ StatusReader = (*CachedStatusReader)(nil)
)
