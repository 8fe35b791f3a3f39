package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/metabridge/scraper/internal/netclient"
)

// streamIDPattern matches the grammar SPEC_FULL.md assigns the streaming
// site provider: a bare 4-9 digit numeric id, e.g. 123456.
var streamIDPattern = regexp.MustCompile(`^\d{4,9}$`)

// StreamSite is the invented streaming-site shape this provider scrapes: a
// JSON search endpoint at BaseURL+"/api/search" and an HTML detail page at
// BaseURL+"/videos/"+id.
type StreamSite struct {
	Name    string
	BaseURL string
}

// streamSearchResult is the shape of one hit in the site's search JSON.
type streamSearchResult struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ThumbURL   string `json:"thumbUrl"`
	DetailPath string `json:"path"`
}

// streamSearchResponse is the invented search endpoint's JSON envelope.
type streamSearchResponse struct {
	Results []streamSearchResult `json:"results"`
}

// Stream implements provider.Provider for a video-streaming site: search
// over its JSON API (no colly/browser involved — a plain GetJSON call),
// detail parsing via goquery the same way Doujin does (grounded in
// Easonliuliang-purify's cleaner/extract.go).
type Stream struct {
	site   StreamSite
	client netclient.Client
}

// NewStream constructs a Stream provider backed by client.
func NewStream(site StreamSite, client netclient.Client) *Stream {
	return &Stream{site: site, client: client}
}

// ReadySelectors is the set of CSS selectors the browser context pool
// waits for when rendering a stream detail page.
func (p *Stream) ReadySelectors() []string {
	return []string{"h1.video-title"}
}

func (p *Stream) Name() string { return p.site.Name }

func (p *Stream) TryParseID(input string) (string, bool) {
	token := extractCandidateToken(input)
	if streamIDPattern.MatchString(token) {
		return token, true
	}
	return "", false
}

func (p *Stream) BuildDetailURL(id string) string {
	return fmt.Sprintf("%s/videos/%s", p.site.BaseURL, id)
}

// Search queries the site's JSON search endpoint directly; no browser
// rendering or HTML scraping is needed for this invented site's search.
func (p *Stream) Search(ctx context.Context, keyword string, maxResults int) ([]SearchHit, error) {
	searchURL := fmt.Sprintf("%s/api/search?q=%s&limit=%d", p.site.BaseURL, url.QueryEscape(keyword), maxResults)

	body, err := p.client.GetJSON(ctx, searchURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("fetch stream search results: %w", err)
	}

	var parsed streamSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode stream search results: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		detailURL := result.DetailPath
		if detailURL == "" && result.ID != "" {
			detailURL = p.BuildDetailURL(result.ID)
		}
		if !IsAbsoluteURL(detailURL) {
			continue
		}
		hits = append(hits, SearchHit{
			DetailURL: detailURL,
			Title:     strings.TrimSpace(result.Title),
			CoverURL:  result.ThumbURL,
		})
	}

	return dedupHitsCapped(hits, maxResults), nil
}

// FetchDetail parses a stream detail page into Metadata. Returns (nil,
// nil) when the page is demonstrably not a video page.
func (p *Stream) FetchDetail(ctx context.Context, detailURL string) (*Metadata, error) {
	html, err := p.client.GetHTML(ctx, detailURL)
	if err != nil {
		return nil, fmt.Errorf("fetch stream detail page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse stream detail page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1.video-title").First().Text())
	if title == "" {
		return nil, nil
	}

	id, ok := p.TryParseID(detailURL)
	if !ok {
		return nil, nil
	}

	base, _ := url.Parse(detailURL)

	md := &Metadata{
		ID:          id,
		Title:       trimSiteTitleSuffix(title),
		Description: strings.TrimSpace(doc.Find("div.video-description").First().Text()),
		SourceURLs:  []string{detailURL},
	}

	if rawDate, exists := doc.Find("meta[itemprop='uploadDate']").Attr("content"); exists {
		trimmed := strings.TrimSpace(rawDate)
		if parsed, err := time.Parse("2006-01-02", trimmed[:min(10, len(trimmed))]); err == nil {
			md.ReleaseDate = &parsed
		}
	}

	if rawRating, exists := doc.Find("span.video-rating").Attr("data-score"); exists {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(rawRating), 64); err == nil {
			md.Rating = &parsed
		}
	}

	doc.Find("ul.video-performers a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.People = append(md.People, Person{Name: name, Type: PersonActor})
		}
	})
	doc.Find("ul.video-genres a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.Genres = append(md.Genres, name)
		}
	})
	doc.Find("ul.video-tags a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.Tags = append(md.Tags, name)
		}
	})
	doc.Find("span.video-studio a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			md.Studios = append(md.Studios, name)
		}
	})

	if poster, exists := doc.Find("meta[property='og:image']").Attr("content"); exists {
		md.Primary = resolveAgainst(base, poster)
	}
	doc.Find("div.video-thumbnails img").Each(func(_ int, s *goquery.Selection) {
		if src, exists := s.Attr("data-src"); exists {
			md.Thumbnails = append(md.Thumbnails, resolveAgainst(base, src))
		}
	})

	md.Normalize()
	return md, nil
}
