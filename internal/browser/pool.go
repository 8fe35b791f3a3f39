// Package browser implements the C2 Browser Context Pool: lifecycle,
// TTL/page-count/challenge rotation, page-open-with-retry, and three-layer
// challenge detection for the browser-driven network client (§4.3).
// Grounded in the pack's chromedp-based renderer (EdgeComet-engine's
// internal/render/chrome) for the chromedp allocator/tab idiom, and in
// Rorqualx-flaresolverr-go's internal/browser pool for the
// health/rotate/recycle shape — translated from go-rod onto chromedp,
// the teacher's actual declared (if previously unused) dependency.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/metabridge/scraper/internal/config"
	"github.com/metabridge/scraper/internal/netclient"
)

// Role distinguishes the search and detail navigation roles so
// SplitSearchDetail isolation can give each its own long-lived context.
type Role string

const (
	RoleSearch Role = "search"
	RoleDetail Role = "detail"
	roleShared Role = "shared"
)

const (
	standardNavigateTimeout = 12 * time.Second
	slowRetryNavigateTimeout = 25 * time.Second
)

// contextEntry is one BrowserContext: {birth, pagesOpened, challengeFlag, handle}.
type contextEntry struct {
	mu            sync.Mutex
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	birth         time.Time
	pagesOpened   int
	challengeFlag bool
}

// Pool owns the chromedp allocator and the one or two long-lived role
// contexts, rotating them per §4.3's policy.
type Pool struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	contexts map[Role]*contextEntry
}

// NewPool launches the shared chromedp allocator and returns a Pool ready
// to serve OpenPage calls. The allocator itself is not a BrowserContext —
// it is the underlying browser process; contexts are tabs within it.
func NewPool(cfg config.BrowserConfig, logger *zap.Logger) *Pool {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("lang", cfg.Locale),
	)
	if cfg.ChromeBinaryPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinaryPath))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Pool{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		contexts:    make(map[Role]*contextEntry),
	}
}

// ForRole returns a thin view of the pool bound to a single role, so
// internal/netclient's narrow Pool interface (OpenPage(ctx, url,
// readySelectors)) can be satisfied once per navigation role.
func (p *Pool) ForRole(role Role) *RoleBoundPool {
	return &RoleBoundPool{pool: p, role: role}
}

// RoleBoundPool adapts Pool to internal/netclient.Pool for one fixed role.
type RoleBoundPool struct {
	pool *Pool
	role Role
}

func (r *RoleBoundPool) OpenPage(ctx context.Context, url string, readySelectors []string) (netclient.BrowserPage, error) {
	page, err := r.pool.OpenPage(ctx, r.role, url, readySelectors)
	if err != nil || page == nil {
		return nil, err
	}
	return page, nil
}

// effectiveRole folds role down to the shared context key when the pool is
// not configured for split isolation.
func (p *Pool) effectiveRole(role Role) Role {
	if p.cfg.IsolationMode == config.IsolationSplitSearchDetail {
		return role
	}
	return roleShared
}

// acquireContext returns the live context entry for role, rotating
// (closing and replacing) it first if any §4.3 rotation condition holds.
func (p *Pool) acquireContext(role Role) (*contextEntry, error) {
	key := p.effectiveRole(role)

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.contexts[key]
	if ok && p.needsRotation(entry) {
		p.logger.Info("browser context rotated", zap.String("event", "ContextRotated"), zap.String("role", string(key)))
		entry.tabCancel()
		delete(p.contexts, key)
		ok = false
	}
	if ok {
		return entry, nil
	}

	tabCtx, tabCancel := chromedp.NewContext(p.allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("start browser context: %w", err)
	}
	entry = &contextEntry{tabCtx: tabCtx, tabCancel: tabCancel, birth: time.Now()}
	p.contexts[key] = entry
	return entry, nil
}

func (p *Pool) needsRotation(entry *contextEntry) bool {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.tabCtx.Err() != nil {
		return true
	}
	if p.cfg.ContextTTL > 0 && time.Since(entry.birth) > p.cfg.ContextTTL {
		return true
	}
	if p.cfg.MaxPagesPerContext > 0 && entry.pagesOpened >= p.cfg.MaxPagesPerContext {
		return true
	}
	if entry.challengeFlag && p.cfg.RotateOnChallengeDetected {
		return true
	}
	return false
}

// OpenPage implements the §4.3 page-open-with-retry strategy for role,
// returning a live Page on success or (nil, nil) after two failures.
func (p *Pool) OpenPage(ctx context.Context, role Role, url string, readySelectors []string) (*Page, error) {
	entry, err := p.acquireContext(role)
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(entry.tabCtx)
	entry.mu.Lock()
	entry.pagesOpened++
	entry.mu.Unlock()

	html, finalURL, err := navigate(tabCtx, url, readySelectors, standardNavigateTimeout)
	challenged := err == nil && detectChallenge(finalURL, html, p.cfg.ChallengeURLHints, p.cfg.ChallengeDomHints)
	if err == nil && !challenged {
		return &Page{ctx: tabCtx, cancel: tabCancel}, nil
	}

	if challenged {
		p.logger.Warn("challenge detected on primary attempt", zap.String("event", "ChallengeDetected"), zap.String("url", url))
	}

	html, finalURL, err = navigate(tabCtx, url, readySelectors, slowRetryNavigateTimeout)
	if err != nil {
		tabCancel()
		return nil, nil
	}

	entry.mu.Lock()
	entry.challengeFlag = true
	entry.mu.Unlock()

	if detectChallenge(finalURL, html, p.cfg.ChallengeURLHints, p.cfg.ChallengeDomHints) {
		p.logger.Warn("challenge persisted on slow retry", zap.String("event", "ChallengeDetected"), zap.String("url", url))
	}

	return &Page{ctx: tabCtx, cancel: tabCancel}, nil
}

// navigate runs one navigation attempt within timeout: load url, wait for
// any configured ready selector (or just "body" if none given), run the
// optional anti-bot hook, and capture the rendered HTML and final URL.
func navigate(parent context.Context, url string, readySelectors []string, timeout time.Duration) (html, finalURL string, err error) {
	navCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if len(readySelectors) == 0 {
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	} else {
		tasks = append(tasks, waitAnySelector(readySelectors))
	}
	tasks = append(tasks,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(navCtx, tasks); err != nil {
		return "", "", fmt.Errorf("navigate %s: %w", url, err)
	}

	humanize(navCtx)
	return html, finalURL, nil
}

// waitAnySelector waits for the first of selectors to become ready,
// racing WaitReady actions so the navigation isn't pinned to one
// external collaborator's exact selector choice.
func waitAnySelector(selectors []string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(selectors) == 0 {
			return nil
		}
		type result struct{ err error }
		results := make(chan result, len(selectors))
		for _, selector := range selectors {
			selector := selector
			go func() {
				results <- result{err: chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))}
			}()
		}
		for i := 0; i < len(selectors); i++ {
			r := <-results
			if r.err == nil {
				return nil
			}
		}
		return fmt.Errorf("no ready selector matched: %v", selectors)
	})
}

// Close shuts down every role context and the underlying allocator.
func (p *Pool) Close() error {
	p.mu.Lock()
	for _, entry := range p.contexts {
		entry.tabCancel()
	}
	p.contexts = make(map[Role]*contextEntry)
	p.mu.Unlock()

	p.allocCancel()
	return nil
}

// Page is a live browser page backed by a chromedp tab context.
type Page struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// HTML returns the page's current rendered DOM as HTML.
func (pg *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(pg.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Close releases the page. Safe to call more than once.
func (pg *Page) Close() error {
	pg.closeOnce.Do(func() {
		pg.cancel()
	})
	return nil
}
