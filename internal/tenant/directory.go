// Package tenant holds the slug->tenant-ID directory cache and the
// tenant-scoped exchange attributes threaded through the request pipeline.
package tenant

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// slugPattern matches the tenant entity's slug validation: lowercase
// alphanumeric with hyphens, 3 to 63 characters, no leading/trailing hyphen.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,61}[a-z0-9]$`)

// ValidSlug reports whether s is a syntactically valid tenant slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// SlugMapSource fetches the full slug->tenant-ID map in one call. The
// control-plane client implements it.
type SlugMapSource interface {
	FetchSlugMap(ctx context.Context) (map[string]string, error)
}

// snapshot is one immutable generation of the directory. Readers load the
// pointer and never see a partially updated map.
type snapshot struct {
	slugs       map[string]string
	refreshedAt time.Time
}

var emptySnapshot = &snapshot{slugs: map[string]string{}}

// Directory caches the slug->tenant-ID mapping. Lookups are lock-free reads
// against the current snapshot; Refresh builds a replacement snapshot from
// the control plane and swaps it in atomically. A failed refresh keeps the
// previous snapshot and is retried on the next interval.
type Directory struct {
	source   SlugMapSource
	logger   *slog.Logger
	interval time.Duration

	current atomic.Pointer[snapshot]
	kick    chan struct{}
}

// DefaultRefreshInterval matches the control-plane refresh cadence of the
// original deployment.
const DefaultRefreshInterval = 60 * time.Second

// NewDirectory creates a Directory that starts empty. Call Run (or Refresh)
// to populate it; until the first successful refresh every slug resolves as
// unknown.
func NewDirectory(source SlugMapSource, logger *slog.Logger, interval time.Duration) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	d := &Directory{
		source:   source,
		logger:   logger,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
	d.current.Store(emptySnapshot)
	return d
}

// Lookup resolves a slug to its tenant ID against the current snapshot. It
// never blocks on network I/O.
func (d *Directory) Lookup(slug string) (string, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", false
	}
	id, ok := d.current.Load().slugs[slug]
	return id, ok
}

// Size returns the number of slugs in the current snapshot.
func (d *Directory) Size() int {
	return len(d.current.Load().slugs)
}

// LastRefreshed returns when the current snapshot was installed; ok is false
// before the first successful refresh.
func (d *Directory) LastRefreshed() (time.Time, bool) {
	s := d.current.Load()
	return s.refreshedAt, !s.refreshedAt.IsZero()
}

// Refresh fetches the slug map and atomically replaces the snapshot. On
// failure the previous snapshot stays in place. Concurrent refreshes are
// safe: each builds its own snapshot and the last swap wins.
func (d *Directory) Refresh(ctx context.Context) error {
	slugs, err := d.source.FetchSlugMap(ctx)
	if err != nil {
		d.logger.Warn("tenant directory refresh failed, keeping previous snapshot",
			slog.String("error", err.Error()))
		return err
	}

	copied := make(map[string]string, len(slugs))
	for slug, id := range slugs {
		copied[slug] = id
	}
	d.current.Store(&snapshot{slugs: copied, refreshedAt: time.Now()})

	d.logger.Info("tenant directory refreshed", slog.Int("slugs", len(copied)))
	return nil
}

// Kick requests an immediate refresh from the Run loop, e.g. after an
// upstream tenant-provisioning event. It never blocks; a refresh already
// pending absorbs the kick.
func (d *Directory) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run refreshes the directory immediately and then on the configured
// interval, plus whenever Kick is called, until ctx is canceled. Refresh
// failures are logged and retried on the next tick.
func (d *Directory) Run(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("initial tenant directory refresh failed; all slugs unresolved until retry",
			slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
		_ = d.Refresh(ctx)
	}
}
