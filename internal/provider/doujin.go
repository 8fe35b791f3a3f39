package provider

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/metabridge/scraper/internal/netclient"
)

// doujinIDPattern matches the grammar SPEC_FULL.md assigns the doujin
// storefront provider: an "RJ" (digital) or "VJ" (physical/voiced) prefix
// followed by 6-8 digits, e.g. RJ01234567.
var doujinIDPattern = regexp.MustCompile(`^[RV]J\d{6,8}$`)

// DoujinSite is the invented storefront shape this provider scrapes: a
// search-results page reachable at BaseURL+"/search/?keyword="+keyword
// (query-escaped), and a
// detail page at BaseURL+"/work/"+id. Site-specific selectors are an
// external-collaborator concern (spec §1 Non-goals); these are the
// selectors this invented site happens to use.
type DoujinSite struct {
	Name      string
	BaseURL   string
	UserAgent string
}

// Doujin implements provider.Provider for a digital-doujin storefront:
// search via colly's OnHTML callback scraping (grounded in
// 5u5urrus-PathFinder's spider.go crawler), detail parsing via goquery
// (grounded in Easonliuliang-purify's cleaner/extract.go).
type Doujin struct {
	site   DoujinSite
	client netclient.Client
}

// NewDoujin constructs a Doujin provider backed by client for detail-page
// fetches; Search does not use client and fetches through its own colly
// collector.
func NewDoujin(site DoujinSite, client netclient.Client) *Doujin {
	return &Doujin{site: site, client: client}
}

// ReadySelectors is the set of CSS selectors the browser context pool
// waits for when rendering a doujin detail page, wired through the
// browser-driven netclient.Client that fronts this provider.
func (p *Doujin) ReadySelectors() []string {
	return []string{"h1.work-title", "div.work-detail"}
}

func (p *Doujin) Name() string { return p.site.Name }

func (p *Doujin) TryParseID(input string) (string, bool) {
	token := strings.ToUpper(extractCandidateToken(input))
	if doujinIDPattern.MatchString(token) {
		return token, true
	}
	return "", false
}

func (p *Doujin) BuildDetailURL(id string) string {
	return fmt.Sprintf("%s/work/%s", p.site.BaseURL, id)
}

// Search crawls the storefront's keyword search page with a colly
// collector (grounded in 5u5urrus-PathFinder's spider.go: single-domain
// collector, OnHTML result scraping, a LimitRule capping parallelism so
// the scrape stays polite independent of C4/C5's own throttling).
func (p *Doujin) Search(ctx context.Context, keyword string, maxResults int) ([]SearchHit, error) {
	searchURL := fmt.Sprintf("%s/search/?keyword=%s", p.site.BaseURL, url.QueryEscape(keyword))

	siteHost, err := url.Parse(p.site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse doujin base url: %w", err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(siteHost.Hostname()),
		colly.UserAgent(p.userAgent()),
	)
	_ = collector.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1})

	var hits []SearchHit
	var scrapeErr error

	collector.OnHTML("div.result-card", func(e *colly.HTMLElement) {
		if len(hits) >= maxResults {
			return
		}
		detailHref := e.ChildAttr("a.result-link", "href")
		if detailHref == "" {
			return
		}
		detailURL := e.Request.AbsoluteURL(detailHref)
		if detailURL == "" || !IsAbsoluteURL(detailURL) {
			return
		}
		hits = append(hits, SearchHit{
			DetailURL: detailURL,
			Title:     strings.TrimSpace(e.ChildText("span.result-title")),
			CoverURL:  e.Request.AbsoluteURL(e.ChildAttr("img.result-cover", "src")),
		})
	})
	collector.OnError(func(_ *colly.Response, err error) { scrapeErr = err })

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := collector.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("visit doujin search page: %w", err)
	}
	collector.Wait()

	if scrapeErr != nil && len(hits) == 0 {
		return nil, fmt.Errorf("scrape doujin search page: %w", scrapeErr)
	}

	return dedupHitsCapped(hits, maxResults), nil
}

// userAgent reports the identity string this provider's detail fetches use,
// so the search crawler presents consistently with them.
func (p *Doujin) userAgent() string {
	return p.site.UserAgent
}

// FetchDetail parses a doujin detail page into Metadata. Returns (nil,
// nil) when the page is demonstrably not a product page.
func (p *Doujin) FetchDetail(ctx context.Context, detailURL string) (*Metadata, error) {
	html, err := p.client.GetHTML(ctx, detailURL)
	if err != nil {
		return nil, fmt.Errorf("fetch doujin detail page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse doujin detail page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1.work-title").First().Text())
	if title == "" {
		return nil, nil
	}

	id, ok := p.TryParseID(detailURL)
	if !ok {
		return nil, nil
	}

	md := &Metadata{
		ID:          id,
		Title:       trimSiteTitleSuffix(title),
		Description: strings.TrimSpace(doc.Find("div.work-description").First().Text()),
		SourceURLs:  []string{detailURL},
	}

	if rawRating, ok := doc.Find("span.work-rating").Attr("data-score"); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(rawRating), 64); err == nil {
			md.Rating = &parsed
		}
	}

	base, _ := url.Parse(detailURL)
	doc.Find("ul.work-circles a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.Studios = append(md.Studios, name)
		}
	})
	doc.Find("ul.work-tags a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.Tags = append(md.Tags, name)
		}
	})
	doc.Find("ul.work-series a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.Series = append(md.Series, name)
		}
	})
	doc.Find("ul.work-credits li").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find("a").Text())
		role := strings.TrimSpace(s.Find("span.credit-role").Text())
		if name == "" {
			return
		}
		md.People = append(md.People, Person{Name: name, Type: PersonWriter, Role: role})
	})

	if primary, exists := doc.Find("img.work-cover").Attr("src"); exists {
		md.Primary = resolveAgainst(base, primary)
	}
	doc.Find("div.work-gallery img").Each(func(_ int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			md.Thumbnails = append(md.Thumbnails, resolveAgainst(base, src))
		}
	})

	md.Normalize()
	return md, nil
}

func resolveAgainst(base *url.URL, raw string) string {
	if base == nil {
		return raw
	}
	resolved, err := base.Parse(raw)
	if err != nil {
		return raw
	}
	return resolved.String()
}

func dedupHitsCapped(hits []SearchHit, maxResults int) []SearchHit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		if _, ok := seen[hit.DetailURL]; ok {
			continue
		}
		seen[hit.DetailURL] = struct{}{}
		out = append(out, hit)
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out
}
