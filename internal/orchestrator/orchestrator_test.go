package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/metabridge/scraper/internal/apierr"
	"github.com/metabridge/scraper/internal/cache"
	"github.com/metabridge/scraper/internal/provider"
)

// stubProvider is a fake provider.Provider whose fetchDetail/search
// behavior is entirely configurable by the test, with call counters and
// optional artificial latency so the S3/S4/S5/S6 properties can be
// exercised without any real network or browser.
type stubProvider struct {
	name string

	fetchCalls    int32
	fetchLatency  time.Duration
	fetchResult   *provider.Metadata
	fetchErr      error
	concurrentNow int32
	maxConcurrent int32
	searchHits    []provider.SearchHit
	searchErr     error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) TryParseID(input string) (string, bool) {
	if input == "" {
		return "", false
	}
	return input, true
}

func (s *stubProvider) BuildDetailURL(id string) string {
	return fmt.Sprintf("https://stub.example/%s", id)
}

func (s *stubProvider) Search(_ context.Context, _ string, maxResults int) ([]provider.SearchHit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	hits := s.searchHits
	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

func (s *stubProvider) FetchDetail(ctx context.Context, detailURL string) (*provider.Metadata, error) {
	atomic.AddInt32(&s.fetchCalls, 1)

	now := atomic.AddInt32(&s.concurrentNow, 1)
	defer atomic.AddInt32(&s.concurrentNow, -1)
	for {
		current := atomic.LoadInt32(&s.maxConcurrent)
		if now <= current || atomic.CompareAndSwapInt32(&s.maxConcurrent, current, now) {
			break
		}
	}

	if s.fetchLatency > 0 {
		select {
		case <-time.After(s.fetchLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if s.fetchResult != nil {
		return s.fetchResult, nil
	}
	return &provider.Metadata{ID: detailURL}, nil
}

func (s *stubProvider) callCount() int32 { return atomic.LoadInt32(&s.fetchCalls) }

func newTestOrchestrator() *Orchestrator {
	return New(zap.NewNop(), cache.New(time.Minute, 100))
}

func TestDetailByIDUnknownProvider(t *testing.T) {
	orch := newTestOrchestrator()
	_, err := orch.DetailByID(context.Background(), "nope", "anything")
	if err == nil {
		t.Fatal("expected an error for an unregistered provider")
	}
}

func TestDetailByIDInvalidInput(t *testing.T) {
	orch := newTestOrchestrator()
	stub := &stubProvider{name: "doujin"}
	orch.Register(stub, 2, 0)

	_, err := orch.DetailByID(context.Background(), "doujin", "")
	if err == nil {
		t.Fatal("expected invalid-input error for an unparseable id")
	}
}

// TestDetailByIDCacheCoalescing is S3: ten concurrent lookups of the same
// uncached id against a single-slot provider must reach fetchDetail
// exactly once, all returning the same result, because slot serialization
// plus the double-checked cache read collapses every late arrival onto
// the value the first caller just populated.
func TestDetailByIDCacheCoalescing(t *testing.T) {
	orch := newTestOrchestrator()
	stub := &stubProvider{name: "doujin", fetchLatency: 30 * time.Millisecond}
	orch.Register(stub, 1, 0)

	var wg sync.WaitGroup
	results := make([]*provider.Metadata, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			md, err := orch.DetailByID(context.Background(), "doujin", "RJ000001")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = md
		}(i)
	}
	wg.Wait()

	if got := stub.callCount(); got != 1 {
		t.Errorf("fetchDetail called %d times, want exactly 1", got)
	}
	for i, md := range results {
		if md == nil || md.ID != "https://stub.example/RJ000001" {
			t.Errorf("results[%d] = %v, want a consistent cached record", i, md)
		}
	}
}

// TestDetailByIDBusyRejection is S5: with one slot held by a long-running
// request and a short wait budget, a second concurrent request must be
// rejected as busy once the budget elapses.
func TestDetailByIDBusyRejection(t *testing.T) {
	originalBudget := detailWaitBudget
	detailWaitBudget = 50 * time.Millisecond
	defer func() { detailWaitBudget = originalBudget }()

	orch := newTestOrchestrator()
	stub := &stubProvider{name: "doujin", fetchLatency: 200 * time.Millisecond}
	orch.Register(stub, 1, 0)

	go func() {
		_, _ = orch.DetailByID(context.Background(), "doujin", "RJ000001")
	}()
	time.Sleep(10 * time.Millisecond) // let the first request take the slot

	start := time.Now()
	_, err := orch.DetailByID(context.Background(), "doujin", "RJ000002")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a busy error for the second concurrent request")
	}
	if !errors.Is(err, apierr.ErrBusy) {
		t.Errorf("err = %v, want apierr.ErrBusy", err)
	}
	if elapsed < detailWaitBudget {
		t.Errorf("busy rejection returned before the wait budget elapsed: %v", elapsed)
	}
}

// TestSearchFanOutBound is S6: enriching 20 search hits must never run
// more than searchFanOutDegree fetchDetail calls concurrently.
func TestSearchFanOutBound(t *testing.T) {
	orch := newTestOrchestrator()
	hits := make([]provider.SearchHit, 20)
	for i := range hits {
		hits[i] = provider.SearchHit{DetailURL: fmt.Sprintf("https://stub.example/hit-%d", i)}
	}
	stub := &stubProvider{name: "doujin", fetchLatency: 15 * time.Millisecond, searchHits: hits}
	orch.Register(stub, 4, 0)

	results, err := orch.Search(context.Background(), "doujin", "keyword", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 20 {
		t.Errorf("got %d enriched results, want 20", len(results))
	}
	if max := atomic.LoadInt32(&stub.maxConcurrent); max > searchFanOutDegree {
		t.Errorf("observed %d concurrent fetchDetail calls, want <= %d", max, searchFanOutDegree)
	}
}

func TestSearchEmptyHitsIsNotAnError(t *testing.T) {
	orch := newTestOrchestrator()
	stub := &stubProvider{name: "doujin"}
	orch.Register(stub, 2, 0)

	results, err := orch.Search(context.Background(), "doujin", "nothing matches", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil for zero hits", results)
	}
}

func TestSearchKeywordNeverReinterpretedAsID(t *testing.T) {
	// S2: even a numeric-looking keyword passes through to provider.Search
	// verbatim; the orchestrator must never call TryParseID in the search path.
	orch := newTestOrchestrator()
	stub := &stubProvider{name: "stream", searchHits: []provider.SearchHit{{DetailURL: "https://stub.example/123456"}}}
	orch.Register(stub, 2, 0)

	results, err := orch.Search(context.Background(), "stream", "123456", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

// TestDetailByIDRateCadence is S4: with one slot and a 60ms minimum
// interval, consecutive detail requests against distinct uncached ids
// (so the cache never short-circuits the rate limiter) must complete at
// least that far apart.
func TestDetailByIDRateCadence(t *testing.T) {
	orch := newTestOrchestrator()
	stub := &stubProvider{name: "doujin"}
	orch.Register(stub, 1, 0.06)

	var completions []time.Time
	for i := 0; i < 4; i++ {
		_, err := orch.DetailByID(context.Background(), "doujin", fmt.Sprintf("RJ00000%d", i))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		completions = append(completions, time.Now())
	}

	for i := 1; i < len(completions); i++ {
		gap := completions[i].Sub(completions[i-1])
		if gap < 50*time.Millisecond {
			t.Errorf("completions %d and %d were only %v apart, want >= ~60ms", i-1, i, gap)
		}
	}
}

func TestCacheAdministration(t *testing.T) {
	orch := newTestOrchestrator()
	stub := &stubProvider{name: "doujin"}
	orch.Register(stub, 2, 0)

	_, err := orch.DetailByID(context.Background(), "doujin", "RJ000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := orch.CacheStats(); stats.Hits+stats.Misses == 0 {
		t.Error("expected non-zero cache activity after a lookup")
	}

	orch.CacheRemove("doujin", "RJ000001")
	orch.CacheClear()
}
