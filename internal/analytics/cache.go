package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store persists encoded cache entries with a time-to-live.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cacheEntry struct {
	Value      json.RawMessage `json:"value"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Cache memoizes aggregation results per (operation, parameters) for a fixed
// TTL. Concurrent misses on one key share a single load.
type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *CacheMetrics
	logger  *slog.Logger
	now     func() time.Time

	loadTimeout time.Duration
}

// DefaultLoadTimeout bounds a shared load when no other limit is configured.
const DefaultLoadTimeout = 30 * time.Second

// NewCache instantiates the cache helper. A nil metrics collector disables
// instrumentation.
func NewCache(store Store, ttl time.Duration, metrics *CacheMetrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, metrics: metrics, logger: logger, now: time.Now, loadTimeout: DefaultLoadTimeout}
}

// WithLoadTimeout sets the deadline of a shared load. Loads outlive the caller
// that started them, so they carry their own deadline instead.
func (c *Cache) WithLoadTimeout(d time.Duration) *Cache {
	if c != nil && d > 0 {
		c.loadTimeout = d
	}
	return c
}

// TTL exposes the freshness window.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// FetchJSON decodes the cached value for key into dest, running loader and
// storing its result on a miss. It returns when the value was computed.
func (c *Cache) FetchJSON(ctx context.Context, op, key string, dest any, loader func(context.Context) (any, error)) (time.Time, error) {
	if loader == nil {
		return time.Time{}, errors.New("cache: loader required")
	}
	if c == nil || c.store == nil {
		value, err := loader(ctx)
		if err != nil {
			return time.Time{}, err
		}
		return time.Now(), roundTrip(value, dest)
	}

	if entry, ok := c.lookup(ctx, key); ok {
		c.metrics.hit(op)
		return entry.ComputedAt, json.Unmarshal(entry.Value, dest)
	}
	c.metrics.miss(op)

	// The shared load keeps the first caller's values but not its cancellation;
	// each waiter gives up on its own context below.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(loadCtx, c.loadTimeout)
		defer cancel()
		// A caller that arrived after another caller filled the key gets the stored entry.
		if entry, ok := c.lookup(ctx, key); ok {
			return entry, nil
		}
		started := time.Now()
		value, err := loader(ctx)
		c.metrics.observeLoad(op, time.Since(started))
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		entry := cacheEntry{Value: raw, ComputedAt: c.now()}
		encoded, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, encoded, c.ttl); err != nil {
			c.logger.Warn("cache store failed", slog.String("key", key), slog.Any("error", err))
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return time.Time{}, res.Err
		}
		entry := res.Val.(cacheEntry)
		return entry.ComputedAt, json.Unmarshal(entry.Value, dest)
	}
}

func (c *Cache) lookup(ctx context.Context, key string) (cacheEntry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", slog.String("key", key), slog.Any("error", err))
		return cacheEntry{}, false
	}
	if !ok {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cacheEntry{}, false
	}
	return entry, true
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Cache keys are "analytics:<op>:<part>|<part>..." with "-" standing for an
// absent filter. Parts are escaped so a SKU containing a separator cannot
// collide with another parameter tuple.

const absentToken = "-"

var keyEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, `,`, `\,`, absentToken, `\-`)

func keyPart(value string) string {
	if value == "" {
		return absentToken
	}
	return keyEscaper.Replace(value)
}

func keyCodes(codes []string) string {
	if len(codes) == 0 {
		return absentToken
	}
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = keyEscaper.Replace(code)
	}
	return strings.Join(parts, ",")
}

func buildKey(op string, parts ...string) string {
	return "analytics:" + op + ":" + strings.Join(parts, "|")
}

func filterKeyParts(f Filter) []string {
	return []string{
		f.Range.Start.Format(DateLayout),
		f.Range.End.Format(DateLayout),
		keyCodes(f.MarketplaceCodes),
		keyPart(f.SKU),
	}
}

func keyMarketplaces() string {
	return buildKey(opMarketplaces)
}

func keyDateBounds() string {
	return buildKey(opDateBounds)
}

func keyDailyKPIs(f Filter) string {
	return buildKey(opDailyKPIs, filterKeyParts(f)...)
}

func keyTopSKUs(f Filter, limit int) string {
	if limit < 0 {
		limit = 0
	}
	return buildKey(opTopSKUs, append(filterKeyParts(f), strconv.Itoa(limit))...)
}

func keyOrderLines(f Filter, offset, limit int) string {
	return buildKey(opOrderLines, append(filterKeyParts(f), strconv.Itoa(offset), strconv.Itoa(limit))...)
}
