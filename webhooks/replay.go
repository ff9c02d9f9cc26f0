package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-renderlink/core"
)

const (
	defaultReplayLedgerTTL        = 5 * time.Minute
	defaultReplayLedgerMaxEntries = 8192
)

var (
	ErrStaleTimestamp       = errors.New("webhooks: signature timestamp is outside the replay window")
	ErrUnparseableTimestamp = errors.New("webhooks: signature timestamp is not a unix or RFC 3339 time")
	ErrReplayedDelivery     = errors.New("webhooks: signature was already seen")
)

type ReplayLedger interface {
	// Claim records key for ttl and reports false when it is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReplayGuard rejects stale or repeated signatures. It is off unless a
// verifier is given one.
type ReplayGuard struct {
	Window time.Duration
	Ledger ReplayLedger
	Now    func() time.Time
}

// NewReplayGuard pairs a window check with an in-memory ledger. Both read
// time from now, which defaults to the wall clock when nil.
func NewReplayGuard(window time.Duration, now func() time.Time) *ReplayGuard {
	ledger := NewMemoryReplayLedger(window)
	ledger.Now = now
	return &ReplayGuard{
		Window: window,
		Ledger: ledger,
		Now:    now,
	}
}

func (g *ReplayGuard) Check(ctx context.Context, header SignatureHeader) error {
	if g == nil {
		return nil
	}
	if g.Window > 0 {
		issuedAt, err := ParseTimestamp(header.Timestamp)
		if err != nil {
			return core.UsageError(err, "webhooks: cannot check replay window", map[string]any{"timestamp": header.Timestamp})
		}
		skew := g.now().Sub(issuedAt)
		if skew < 0 {
			skew = -skew
		}
		if skew > g.Window {
			return core.UnauthenticError(ErrStaleTimestamp, "webhooks: signature timestamp is outside the replay window")
		}
	}
	if g.Ledger != nil {
		claimed, err := g.Ledger.Claim(ctx, header.Digest, g.Window)
		if err != nil {
			return core.InternalError(err, "webhooks: replay ledger claim failed")
		}
		if !claimed {
			return core.UnauthenticError(ErrReplayedDelivery, "webhooks: signature was already seen")
		}
	}
	return nil
}

func (g *ReplayGuard) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

// ParseTimestamp accepts unix seconds, unix milliseconds or RFC 3339.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unix > 1e12 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, ErrUnparseableTimestamp
}

type MemoryReplayLedger struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]time.Time
	Now        func() time.Time
}

func NewMemoryReplayLedger(defaultTTL time.Duration) *MemoryReplayLedger {
	return NewMemoryReplayLedgerWithLimits(defaultTTL, defaultReplayLedgerMaxEntries)
}

func NewMemoryReplayLedgerWithLimits(defaultTTL time.Duration, maxEntries int) *MemoryReplayLedger {
	if defaultTTL <= 0 {
		defaultTTL = defaultReplayLedgerTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultReplayLedgerMaxEntries
	}
	return &MemoryReplayLedger{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    map[string]time.Time{},
	}
}

func (l *MemoryReplayLedger) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("webhooks: replay ledger is not configured")
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false, fmt.Errorf("webhooks: replay key is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for existing, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, existing)
		}
	}
	if expiresAt, ok := l.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	for len(l.entries) >= l.maxEntries {
		l.evictOldestLocked()
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryReplayLedger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryReplayLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryReplayLedger) evictOldestLocked() {
	var oldestKey string
	var oldestExpiry time.Time
	for key, expiry := range l.entries {
		if oldestKey == "" || expiry.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = expiry
		}
	}
	delete(l.entries, oldestKey)
}

var _ ReplayLedger = (*MemoryReplayLedger)(nil)
