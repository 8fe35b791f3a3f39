// Package orchestrator implements the C7 Request Orchestrator: the
// detail-by-id, search, and cache-administration operations that sit
// between the HTTP shell (internal/server) and a Provider, wiring together
// the concurrency limiter (C4), rate limiter (C5), and metadata cache (C6)
// per the exact sequence in the component design. Grounded in the
// teacher's habit of keeping the HTTP layer thin and pushing request
// sequencing into a dedicated service type.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metabridge/scraper/internal/apierr"
	"github.com/metabridge/scraper/internal/cache"
	"github.com/metabridge/scraper/internal/limiter"
	"github.com/metabridge/scraper/internal/provider"
	"github.com/metabridge/scraper/internal/ratelimit"
)

// searchFanOutDegree is the fixed bounded-parallel width for enriching
// search hits with fetchDetail, independent of maxConcurrentRequests (§4.7.2, §9).
const searchFanOutDegree = 4

// detailWaitBudget is how long a detail-by-id or search request waits for a
// free slot before replying busy (§4.7.1 step 3). A var, not a const, so
// tests can shrink it instead of waiting out the full production budget.
var detailWaitBudget = 15 * time.Second

const (
	minSearchResults    = 1
	maxSearchResults    = 50
	defaultSearchResults = 12
)

// registration bundles one provider with its own admission gate, cadence
// tracker, and the shared cache it reads/writes under its own (provider, id) keys.
type registration struct {
	provider provider.Provider
	limiter  *limiter.Limiter
	rate     *ratelimit.Limiter
}

// Orchestrator owns one registration per provider name and the single
// shared metadata cache all providers read and write into.
type Orchestrator struct {
	logger       *zap.Logger
	cache        *cache.Cache
	registration map[string]*registration
}

// New constructs an Orchestrator with no providers registered; call
// Register for each provider before serving requests.
func New(logger *zap.Logger, metadataCache *cache.Cache) *Orchestrator {
	return &Orchestrator{
		logger:       logger,
		cache:        metadataCache,
		registration: make(map[string]*registration),
	}
}

// Register wires a provider into the orchestrator with its own slot pool
// of size maxConcurrentRequests and rate limiter of cadence minInterval.
func (o *Orchestrator) Register(p provider.Provider, maxConcurrentRequests int, minIntervalSeconds float64) {
	o.registration[p.Name()] = &registration{
		provider: p,
		limiter:  limiter.New(maxConcurrentRequests),
		rate:     ratelimit.New(secondsToDuration(minIntervalSeconds)),
	}
}

// Providers returns the registered provider route prefixes, for routing.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.registration))
	for name := range o.registration {
		names = append(names, name)
	}
	return names
}

// Lookup returns the registered Provider for name, or (nil, false).
func (o *Orchestrator) Lookup(name string) (provider.Provider, bool) {
	reg, ok := o.registration[name]
	if !ok {
		return nil, false
	}
	return reg.provider, true
}

// DetailByID implements §4.7.1 exactly: two cache reads bracketing slot
// acquisition, rate-limiter pacing, fetch, and completion bookkeeping that
// only runs for requests that actually reached upstream.
func (o *Orchestrator) DetailByID(ctx context.Context, providerName, rawInput string) (*provider.Metadata, error) {
	reg, ok := o.registration[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", providerName, apierr.ErrInvalidInput)
	}

	id, ok := reg.provider.TryParseID(rawInput)
	if !ok {
		return nil, fmt.Errorf("%q: %w", rawInput, apierr.ErrInvalidInput)
	}
	key := cache.Key{Provider: providerName, ID: id}

	if value, found, positive := o.cache.TryGet(key); found {
		return cachedResult(value, positive)
	}

	slot, acquired, err := reg.limiter.TryAcquire(ctx, detailWaitBudget)
	if err != nil {
		return nil, fmt.Errorf("acquire slot: %w", errCancelled(err))
	}
	if !acquired {
		return nil, fmt.Errorf("provider %s: %w", providerName, apierr.ErrBusy)
	}
	defer reg.limiter.Release(slot)

	if value, found, positive := o.cache.TryGet(key); found {
		return cachedResult(value, positive)
	}

	reservation, err := reg.rate.WaitIfNeeded(ctx, slot.Index)
	if err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", errCancelled(err))
	}

	detailURL := reg.provider.BuildDetailURL(id)
	metadata, err := reg.provider.FetchDetail(ctx, detailURL)
	if err != nil {
		reservation.Forget()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch detail %s/%s: %w", providerName, id, errCancelled(ctxErr))
		}
		o.logger.Warn("provider detail fetch failed", zap.String("event", "ProviderDetail"),
			zap.String("provider", providerName), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("fetch detail %s/%s: %w", providerName, id, apierr.ErrUpstreamTransient)
	}

	reservation.RecordComplete()
	o.cache.Put(key, metadataOrNil(metadata))
	o.logger.Info("provider detail fetch complete", zap.String("event", "ProviderDetail"),
		zap.String("provider", providerName), zap.String("id", id), zap.Bool("found", metadata != nil))

	if metadata == nil {
		return nil, nil
	}
	return metadata, nil
}

// Search implements §4.7.2: admission, verbatim keyword search (never
// reinterpreted as an id), and a fixed-degree-4 fan-out over fetchDetail
// that never touches the metadata cache.
func (o *Orchestrator) Search(ctx context.Context, providerName, keyword string, maxResults int) ([]*provider.Metadata, error) {
	reg, ok := o.registration[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", providerName, apierr.ErrInvalidInput)
	}
	maxResults = clampSearchMax(maxResults)

	slot, acquired, err := reg.limiter.TryAcquire(ctx, detailWaitBudget)
	if err != nil {
		return nil, fmt.Errorf("acquire slot: %w", errCancelled(err))
	}
	if !acquired {
		return nil, fmt.Errorf("provider %s: %w", providerName, apierr.ErrBusy)
	}
	defer reg.limiter.Release(slot)

	reservation, err := reg.rate.WaitIfNeeded(ctx, slot.Index)
	if err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", errCancelled(err))
	}

	hits, err := reg.provider.Search(ctx, keyword, maxResults)
	if err != nil {
		reservation.Forget()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("search %s: %w", providerName, errCancelled(ctxErr))
		}
		o.logger.Warn("provider search failed", zap.String("event", "ProviderSearch"),
			zap.String("provider", providerName), zap.String("keyword", keyword), zap.Error(err))
		return nil, fmt.Errorf("search %s: %w", providerName, apierr.ErrUpstreamTransient)
	}

	if len(hits) == 0 {
		reservation.RecordComplete()
		o.logger.Info("provider search complete", zap.String("event", "ProviderSearch"),
			zap.String("provider", providerName), zap.Int("hits", 0))
		return nil, nil
	}

	results, err := o.enrichHits(ctx, reg.provider, hits)
	if err != nil {
		reservation.Forget()
		return nil, err
	}

	reservation.RecordComplete()
	o.logger.Info("provider search complete", zap.String("event", "ProviderSearch"),
		zap.String("provider", providerName), zap.Int("hits", len(hits)), zap.Int("enriched", len(results)))
	return results, nil
}

// enrichHits fans out fetchDetail over hits at a fixed degree-4 width,
// regardless of the provider's own concurrency limit. Per-hit errors are
// logged and dropped; a cancelled context aborts the whole fan-out.
func (o *Orchestrator) enrichHits(ctx context.Context, p provider.Provider, hits []provider.SearchHit) ([]*provider.Metadata, error) {
	results := make([]*provider.Metadata, len(hits))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(searchFanOutDegree)

	for i, hit := range hits {
		i, hit := i, hit
		group.Go(func() error {
			metadata, err := p.FetchDetail(groupCtx, hit.DetailURL)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				o.logger.Warn("search hit enrichment failed", zap.String("event", "ProviderDetail"),
					zap.String("provider", p.Name()), zap.String("detailUrl", hit.DetailURL), zap.Error(err))
				return nil
			}
			results[i] = metadata
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("search enrichment: %w", errCancelled(err))
	}

	ordered := make([]*provider.Metadata, 0, len(results))
	for _, result := range results {
		if result != nil {
			ordered = append(ordered, result)
		}
	}
	return ordered, nil
}

// CacheStats returns the shared cache's current counters.
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.StatsSnapshot()
}

// CacheClear drops every cached entry across all providers.
func (o *Orchestrator) CacheClear() {
	o.cache.Clear()
	o.logger.Info("cache cleared", zap.String("event", "MemoryCleanup"))
}

// CacheRemove drops the single (provider, id) entry, if present.
func (o *Orchestrator) CacheRemove(providerName, id string) {
	o.cache.Remove(cache.Key{Provider: providerName, ID: id})
}

func clampSearchMax(requested int) int {
	if requested < minSearchResults {
		return defaultSearchResults
	}
	if requested > maxSearchResults {
		return maxSearchResults
	}
	return requested
}

func cachedResult(value any, positive bool) (*provider.Metadata, error) {
	if !positive {
		return nil, nil
	}
	metadata, ok := value.(*provider.Metadata)
	if !ok {
		return nil, nil
	}
	return metadata, nil
}

func metadataOrNil(metadata *provider.Metadata) any {
	if metadata == nil {
		return nil
	}
	return metadata
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func errCancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apierr.ErrCancelled
	}
	return err
}
