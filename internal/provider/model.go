// Package provider defines the Metadata data model (§3) and the Provider
// capability contract (§4.1) that per-site scrapers implement, plus two
// concrete providers (doujin, stream) that exercise the contract end to
// end. Site-specific CSS/XPath selectors are an external-collaborator
// concern per spec §1 — the two providers here are necessarily invented
// site shapes built only to give C1/C2/C7 something real to drive.
package provider

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// PersonType enumerates the roles a Person can hold on a Metadata record.
type PersonType string

const (
	PersonActor    PersonType = "Actor"
	PersonDirector PersonType = "Director"
	PersonWriter   PersonType = "Writer"
)

// Person is one credited contributor.
type Person struct {
	Name string     `json:"name"`
	Type PersonType `json:"type"`
	Role string     `json:"role,omitempty"`
}

// Metadata is the canonical normalized output record for one piece of content.
type Metadata struct {
	ID            string     `json:"id"`
	Title         string     `json:"title,omitempty"`
	OriginalTitle string     `json:"originalTitle,omitempty"`
	Description   string     `json:"description,omitempty"`
	Rating        *float64   `json:"rating,omitempty"`
	ReleaseDate   *time.Time `json:"releaseDate,omitempty"`
	Year          *int       `json:"year,omitempty"`
	Studios       []string   `json:"studios,omitempty"`
	Series        []string   `json:"series,omitempty"`
	Genres        []string   `json:"genres,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	People        []Person   `json:"people,omitempty"`
	Primary       string     `json:"primary,omitempty"`
	Backdrop      string     `json:"backdrop,omitempty"`
	Thumbnails    []string   `json:"thumbnails,omitempty"`
	SourceURLs    []string   `json:"sourceUrls,omitempty"`
}

const maxDescriptionLength = 2000

// Normalize enforces the §3 invariants: rating clamp, year derivation,
// thumbnail dedup/exclusion, description length limit, and dedup of the
// ordered string sequences. Providers must call this before returning a
// Metadata record from FetchDetail.
func (m *Metadata) Normalize() {
	if m.Rating != nil {
		clamped := *m.Rating
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 5 {
			clamped = 5
		}
		m.Rating = &clamped
	}
	if m.ReleaseDate != nil {
		year := m.ReleaseDate.Year()
		m.Year = &year
	}
	if len(m.Description) > maxDescriptionLength {
		m.Description = m.Description[:maxDescriptionLength]
	}

	m.Studios = dedupStrings(m.Studios)
	m.Series = dedupStrings(m.Series)
	m.Genres = dedupStrings(m.Genres)
	m.Tags = dedupStrings(m.Tags)
	m.SourceURLs = dedupStrings(m.SourceURLs)

	excluded := map[string]struct{}{}
	if m.Primary != "" {
		excluded[strings.ToLower(m.Primary)] = struct{}{}
	}
	if m.Backdrop != "" {
		excluded[strings.ToLower(m.Backdrop)] = struct{}{}
	}
	m.Thumbnails = dedupStringsExcluding(m.Thumbnails, excluded)
}

func dedupStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupStringsExcluding(values []string, excluded map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if _, ok := excluded[lower]; ok {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, v)
	}
	return out
}

// IsAbsoluteURL reports whether raw parses as an absolute URL, used to
// validate the §3 "every URL is absolute" invariant and §8 property 8.
func IsAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.IsAbs()
}

// SearchHit is the intermediate result of a search: created by
// Provider.Search, consumed by the orchestrator, never persisted.
type SearchHit struct {
	DetailURL string
	Title     string
	CoverURL  string
}

// Provider is the per-site scraping capability (§4.1). Implementations
// must not raise for "not a product page" — that is represented by a nil
// *Metadata return from FetchDetail.
type Provider interface {
	// Name is the route prefix this provider is registered under.
	Name() string

	// TryParseID accepts a raw string (URL, bare identifier, filename) and
	// returns the canonical provider id, or ("", false) if it doesn't match
	// this provider's id grammar. Never raises.
	TryParseID(input string) (id string, ok bool)

	// BuildDetailURL is a pure function from canonical id to the preferred detail URL.
	BuildDetailURL(id string) string

	// Search returns up to maxResults deduplicated hits for keyword,
	// honoring ctx cancellation. An empty result is not an error.
	Search(ctx context.Context, keyword string, maxResults int) ([]SearchHit, error)

	// FetchDetail returns the full record for detailURL, or (nil, nil) when
	// the URL demonstrably does not address a product. Transient network/parse
	// failures are returned as a non-nil error.
	FetchDetail(ctx context.Context, detailURL string) (*Metadata, error)
}
