package acs

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acs-tracts/internal/monitoring"
)

// LabelFetcher looks up the label of a single variable code.
type LabelFetcher interface {
	VariableLabel(ctx context.Context, year int, code string) (string, error)
}

// LabelSource resolves an ordered batch of codes to labels.
type LabelSource interface {
	Resolve(ctx context.Context, codes []string, year int) ([]string, error)
}

// ResolverOption configures a LabelResolver.
type ResolverOption func(*LabelResolver)

// WithCacheSize bounds the number of memoized batches.
func WithCacheSize(n int) ResolverOption {
	return func(r *LabelResolver) { r.cacheSize = n }
}

// WithConcurrency sets how many label fetches may be in flight.
func WithConcurrency(n int) ResolverOption {
	return func(r *LabelResolver) { r.concurrency = n }
}

// WithResolverMetrics records cache hits and misses.
func WithResolverMetrics(m *monitoring.Metrics) ResolverOption {
	return func(r *LabelResolver) { r.metrics = m }
}

// LabelResolver fetches labels concurrently and memoizes whole batches keyed
// by (codes, year) in a capacity-bounded cache.
type LabelResolver struct {
	fetcher     LabelFetcher
	cache       *ttlcache.Cache[string, []string]
	cacheSize   int
	concurrency int
	metrics     *monitoring.Metrics
}

// NewLabelResolver creates a resolver around f.
func NewLabelResolver(f LabelFetcher, opts ...ResolverOption) *LabelResolver {
	r := &LabelResolver{
		fetcher:     f,
		cacheSize:   128,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	if r.cacheSize < 1 {
		r.cacheSize = 1
	}
	r.cache = ttlcache.New[string, []string](
		ttlcache.WithCapacity[string, []string](uint64(r.cacheSize)),
	)
	return r
}

// Resolve returns one label per code, in input order. Any failed lookup
// fails the whole batch and no labels are returned.
func (r *LabelResolver) Resolve(ctx context.Context, codes []string, year int) ([]string, error) {
	key := batchKey(codes, year)
	if item := r.cache.Get(key); item != nil {
		r.metrics.CacheLookup(true)
		zap.L().Debug("label cache hit", zap.Int("year", year), zap.Int("codes", len(codes)))
		return append([]string(nil), item.Value()...), nil
	}
	r.metrics.CacheLookup(false)

	zap.L().Info("resolving variable labels", zap.Int("year", year), zap.Int("codes", len(codes)))

	labels := make([]string, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, code := range codes {
		g.Go(func() error {
			label, err := r.fetcher.VariableLabel(gctx, year, code)
			if err != nil {
				return eris.Wrapf(ErrLabelResolution, "code %s: %v", code, err)
			}
			labels[i] = label
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "acs: resolve labels")
	}

	r.cache.Set(key, labels, ttlcache.DefaultTTL)
	zap.L().Info("resolved variable labels", zap.Int("year", year), zap.Int("labels", len(labels)))

	return append([]string(nil), labels...), nil
}

// batchKey returns SHA-256 hex of the year and the ordered code list.
func batchKey(codes []string, year int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", year, strings.Join(codes, "\x00"))))
	return fmt.Sprintf("%x", h)
}
