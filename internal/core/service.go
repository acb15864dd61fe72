package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/opticfit/internal/config"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	ResolveTimeout     time.Duration
	ResolveConcurrency int
	CacheSize          int
	ImportConcurrency  int
	ImportWait         time.Duration
	ImportTimeout      time.Duration
}

// OptionsFromConfig maps application config onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ResolveTimeout:     cfg.Resolve.Timeout,
		ResolveConcurrency: cfg.Resolve.MaxConcurrent,
		CacheSize:          cfg.Cache.Size,
		ImportConcurrency:  cfg.Import.MaxConcurrent,
		ImportWait:         cfg.Import.MaxWaitTime,
		ImportTimeout:      cfg.Import.Timeout,
	}
}

func (o Options) withDefaults() Options {
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = 10 * time.Second
	}
	if o.ResolveConcurrency <= 0 {
		o.ResolveConcurrency = 8
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
	if o.ImportTimeout <= 0 {
		o.ImportTimeout = 5 * time.Minute
	}
	return o
}

// Service is the entry point for catalog reads, compatibility resolution,
// CSV reconciliation and admin mutations. It is safe for concurrent use.
type Service struct {
	store   store.Store
	opts    Options
	cache   *listingCache
	imports *ImportLimiter
	tracker *ResolveTracker
	now     func() time.Time
}

// NewService creates a Service backed by st.
func NewService(st store.Store, opts Options) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("core: nil store")
	}
	opts = opts.withDefaults()

	cache, err := newListingCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("core: listing cache: %w", err)
	}

	return &Service{
		store:   st,
		opts:    opts,
		cache:   cache,
		imports: NewImportLimiter(opts.ImportConcurrency, opts.ImportWait),
		tracker: NewResolveTracker(),
		now:     time.Now,
	}, nil
}

// Tracker returns the per-session resolution tracker.
func (s *Service) Tracker() *ResolveTracker {
	return s.tracker
}

// ImportLimiterStatus returns the current import slot usage.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.imports.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.imports.WaitForDrain(ctx)
}

// invalidate drops every cached listing. Called after any catalog write.
func (s *Service) invalidate() {
	s.cache.Purge()
}
