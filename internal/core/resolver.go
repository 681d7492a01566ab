package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ResolverStats counts cache activity for one referenced entity.
type ResolverStats struct {
	Hits        int
	Misses      int
	PointLookup int
	Warmed      int
}

type entityCache struct {
	spec    LookupSpec
	ids     map[string]int64
	missing map[string]struct{}
	warm    bool
	stats   ResolverStats
}

// Resolver maps natural keys to surrogate ids, one cache per referenced
// entity. It is owned by a single import goroutine and is not safe for
// concurrent use.
type Resolver struct {
	store   Store
	loc     *time.Location
	caches  map[string]*entityCache
	pending int64
}

// NewResolver creates a resolver for every definition that declares a Lookup.
// Timestamp key parts without an offset are read in loc (UTC when nil).
func NewResolver(store Store, defs []EntityDefinition, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	r := &Resolver{
		store:  store,
		loc:    loc,
		caches: make(map[string]*entityCache),
	}
	for _, def := range defs {
		if def.Lookup == nil {
			continue
		}
		r.caches[def.Key] = &entityCache{
			spec:    *def.Lookup,
			ids:     make(map[string]int64),
			missing: make(map[string]struct{}),
		}
	}
	return r
}

func (r *Resolver) cache(entity string) (*entityCache, error) {
	c, ok := r.caches[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no lookup", ErrUnknownEntity, entity)
	}
	return c, nil
}

// Normalize converts raw CSV cells into the canonical natural key of entity.
// It reports empty=true when any part is blank.
func (r *Resolver) Normalize(entity string, raw []string) (parts []string, empty bool, err error) {
	c, err := r.cache(entity)
	if err != nil {
		return nil, false, err
	}
	if len(raw) != len(c.spec.KeyParts) {
		return nil, false, fmt.Errorf("%s key: got %d parts, want %d", c.spec.Noun, len(raw), len(c.spec.KeyParts))
	}

	parts = make([]string, len(raw))
	for i, kp := range c.spec.KeyParts {
		v := strings.TrimSpace(raw[i])
		if v == "" {
			return nil, true, nil
		}
		switch {
		case kp.Timestamp:
			v, err = NormalizeTimestampKey(v, r.loc)
		case kp.Normalize != nil:
			v, err = kp.Normalize(v)
		}
		if err != nil {
			return nil, false, err
		}
		parts[i] = v
	}
	return parts, false, nil
}

// Noun returns the singular noun used in skip reasons for entity.
func (r *Resolver) Noun(entity string) string {
	if c, ok := r.caches[entity]; ok && c.spec.Noun != "" {
		return c.spec.Noun
	}
	return entity
}

// Warm bulk-loads every natural key of entity. After Warm the cache is
// authoritative and misses no longer query the database.
func (r *Resolver) Warm(ctx context.Context, entity string) (int, error) {
	c, err := r.cache(entity)
	if err != nil {
		return 0, err
	}

	ids, err := r.store.LoadLookup(ctx, c.spec)
	if err != nil {
		return 0, err
	}
	for k, id := range ids {
		c.ids[k] = id
	}
	c.missing = make(map[string]struct{})
	c.warm = true
	c.stats.Warmed += len(ids)

	return len(ids), nil
}

// Resolve returns the id for a normalized natural key. ok=false means no
// such row; err is only set for store failures.
func (r *Resolver) Resolve(ctx context.Context, entity string, parts []string) (int64, bool, error) {
	c, err := r.cache(entity)
	if err != nil {
		return 0, false, err
	}

	key := joinKey(parts)
	if id, ok := c.ids[key]; ok {
		c.stats.Hits++
		return id, true, nil
	}
	c.stats.Misses++

	if c.warm {
		return 0, false, nil
	}
	if _, miss := c.missing[key]; miss {
		return 0, false, nil
	}

	c.stats.PointLookup++
	id, ok, err := r.store.FindLookup(ctx, c.spec, parts)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		c.missing[key] = struct{}{}
		return 0, false, nil
	}

	c.ids[key] = id
	return id, true, nil
}

// Remember records the id of a row inserted during this run.
func (r *Resolver) Remember(entity string, parts []string, id int64) {
	c, ok := r.caches[entity]
	if !ok {
		return
	}
	key := joinKey(parts)
	c.ids[key] = id
	delete(c.missing, key)
}

// PendingID returns a placeholder id for a row that a dry run would insert.
// Placeholders are negative and never collide with database ids.
func (r *Resolver) PendingID() int64 {
	r.pending--
	return r.pending
}

// Forget drops every cached id of entity, used when its inserts were rolled
// back.
func (r *Resolver) Forget(entity string) {
	if c, ok := r.caches[entity]; ok {
		c.ids = make(map[string]int64)
		c.missing = make(map[string]struct{})
		c.warm = false
	}
}

// Stats returns the counters for entity.
func (r *Resolver) Stats(entity string) ResolverStats {
	if c, ok := r.caches[entity]; ok {
		return c.stats
	}
	return ResolverStats{}
}

// LogStats writes the counters of every cache at debug level.
func (r *Resolver) LogStats(logger *slog.Logger) {
	for entity, c := range r.caches {
		logger.Debug("resolver cache",
			"entity", entity,
			"hits", c.stats.Hits,
			"misses", c.stats.Misses,
			"point_lookups", c.stats.PointLookup,
			"warmed", c.stats.Warmed,
			"cached", len(c.ids),
		)
	}
}
