package jsonapi

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Fetcher retrieves a single resource by type and id from the downstream
// data service. Implementations must honor ctx cancellation and apply their
// own per-fetch timeout.
type Fetcher interface {
	FetchResource(ctx context.Context, resourceType, id string) (*Resource, error)
}

// ResolverConfig bounds the resolver's fan-out and its shared resource cache.
type ResolverConfig struct {
	// MaxConcurrent caps in-flight fetches per resolution level.
	MaxConcurrent int
	// CacheSize is the shared (type,id)->resource cache capacity; zero
	// disables caching.
	CacheSize int
	// CacheTTL expires cached resources. Ignored when CacheSize is zero.
	CacheTTL time.Duration
}

const (
	defaultMaxConcurrent = 8
	defaultCacheTTL      = 10 * time.Minute
)

// Resolver fetches and collects the related resources requested by an
// include parameter. The cache is shared across requests; everything else
// about a resolution (visited set, frontier, result order) is owned by the
// calling request.
type Resolver struct {
	fetcher       Fetcher
	logger        *slog.Logger
	maxConcurrent int
	cache         *expirable.LRU[Identifier, *Resource]
}

// NewResolver creates a resolver over the given fetcher.
func NewResolver(fetcher Fetcher, logger *slog.Logger, cfg ResolverConfig) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	r := &Resolver{
		fetcher:       fetcher,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		r.cache = expirable.NewLRU[Identifier, *Resource](cfg.CacheSize, nil, ttl)
	}
	return r
}

// Resolve walks the requested relation paths breadth-first from the primary
// resources and returns every related resource reached, deduplicated by
// (type, id), in discovery order. Depth is bounded by the longest requested
// path. A failed fetch drops that resource (and anything only reachable
// through it) without failing the resolution; a canceled context abandons
// the remaining work.
func (r *Resolver) Resolve(ctx context.Context, primary []*Resource, paths []Path) []*Resource {
	if len(primary) == 0 || len(paths) == 0 {
		return nil
	}

	type step struct {
		remaining Path
		frontier  []*Resource
	}
	queue := make([]step, 0, len(paths))
	for _, p := range paths {
		queue = append(queue, step{remaining: p, frontier: primary})
	}

	resolved := make(map[Identifier]*Resource)
	var included []*Resource

	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		st := queue[0]
		queue = queue[1:]

		ids := matchRelation(st.frontier, st.remaining[0])
		if len(ids) == 0 {
			continue
		}

		var misses []Identifier
		for _, id := range ids {
			if _, ok := resolved[id]; !ok {
				misses = append(misses, id)
			}
		}

		fetched := r.fetchAll(ctx, misses)
		for i, id := range misses {
			if fetched[i] == nil {
				continue
			}
			resolved[id] = fetched[i]
			included = append(included, fetched[i])
		}

		if len(st.remaining) > 1 {
			next := make([]*Resource, 0, len(ids))
			for _, id := range ids {
				if res := resolved[id]; res != nil {
					next = append(next, res)
				}
			}
			if len(next) > 0 {
				queue = append(queue, step{remaining: st.remaining[1:], frontier: next})
			}
		}
	}

	return included
}

// fetchAll retrieves the given identifiers, consulting the shared cache
// first and fanning the misses out over at most maxConcurrent goroutines.
// The result slice is positionally aligned with ids; failed fetches leave a
// nil slot.
func (r *Resolver) fetchAll(ctx context.Context, ids []Identifier) []*Resource {
	if len(ids) == 0 {
		return nil
	}

	results := make([]*Resource, len(ids))
	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup

	for i, id := range ids {
		if r.cache != nil {
			if res, ok := r.cache.Get(id); ok {
				results[i] = res
				continue
			}
		}

		wg.Add(1)
		go func(idx int, ident Identifier) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			res, err := r.fetcher.FetchResource(ctx, ident.Type, ident.ID)
			if err != nil {
				r.logger.Warn("include fetch failed",
					slog.String("resource", ident.String()),
					slog.String("error", err.Error()))
				return
			}
			if res == nil {
				return
			}

			results[idx] = res
			if r.cache != nil {
				r.cache.Add(ident, res)
			}
		}(i, id)
	}

	wg.Wait()
	return results
}

// matchRelation collects the relationship linkage for one relation name
// across the frontier, deduplicated in encounter order. Matching tries the
// relationship key exactly, then case-insensitively, then falls back to the
// linkage target type so include=categories can resolve a relationship keyed
// category_id whose targets have type "categories".
func matchRelation(frontier []*Resource, name string) []Identifier {
	seen := make(map[Identifier]bool)
	var ids []Identifier
	add := func(list []Identifier) {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	for _, res := range frontier {
		if len(res.Relationships) == 0 {
			continue
		}

		if rel, ok := res.Relationships[name]; ok {
			add(rel.Identifiers())
			continue
		}

		matched := false
		for key, rel := range res.Relationships {
			if strings.EqualFold(key, name) {
				add(rel.Identifiers())
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		for _, rel := range res.Relationships {
			list := rel.Identifiers()
			if len(list) > 0 && strings.EqualFold(list[0].Type, name) {
				add(list)
			}
		}
	}

	return ids
}
