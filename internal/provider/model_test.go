package provider

import (
	"testing"
	"time"
)

func TestNormalizeClampsRating(t *testing.T) {
	tooHigh := 7.5
	md := &Metadata{Rating: &tooHigh}
	md.Normalize()
	if *md.Rating != 5 {
		t.Errorf("Rating = %v, want clamped to 5", *md.Rating)
	}

	negative := -2.0
	md = &Metadata{Rating: &negative}
	md.Normalize()
	if *md.Rating != 0 {
		t.Errorf("Rating = %v, want clamped to 0", *md.Rating)
	}
}

func TestNormalizeDerivesYearFromReleaseDate(t *testing.T) {
	released := time.Date(2021, time.March, 4, 0, 0, 0, 0, time.UTC)
	md := &Metadata{ReleaseDate: &released}
	md.Normalize()
	if md.Year == nil || *md.Year != 2021 {
		t.Fatalf("Year = %v, want 2021", md.Year)
	}
}

func TestNormalizeExcludesPrimaryAndBackdropFromThumbnails(t *testing.T) {
	md := &Metadata{
		Primary:    "https://example.com/cover.jpg",
		Backdrop:   "https://example.com/backdrop.jpg",
		Thumbnails: []string{"https://example.com/cover.jpg", "https://example.com/t1.jpg", "https://example.com/backdrop.jpg"},
	}
	md.Normalize()
	if len(md.Thumbnails) != 1 || md.Thumbnails[0] != "https://example.com/t1.jpg" {
		t.Fatalf("Thumbnails = %v, want only t1.jpg", md.Thumbnails)
	}
}

func TestNormalizeDedupsThumbnailsCaseInsensitively(t *testing.T) {
	md := &Metadata{Thumbnails: []string{"https://example.com/a.jpg", "HTTPS://EXAMPLE.COM/A.JPG"}}
	md.Normalize()
	if len(md.Thumbnails) != 1 {
		t.Fatalf("Thumbnails = %v, want deduped to one entry", md.Thumbnails)
	}
}

func TestNormalizeDedupsOrderedStringLists(t *testing.T) {
	md := &Metadata{
		Studios: []string{"Acme", "Acme", "", "Beta"},
		Tags:    []string{"x", "x", "y"},
	}
	md.Normalize()
	if len(md.Studios) != 2 || md.Studios[0] != "Acme" || md.Studios[1] != "Beta" {
		t.Errorf("Studios = %v, want [Acme Beta]", md.Studios)
	}
	if len(md.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 entries", md.Tags)
	}
}

func TestNormalizeCapsDescriptionLength(t *testing.T) {
	long := make([]byte, maxDescriptionLength+500)
	for i := range long {
		long[i] = 'a'
	}
	md := &Metadata{Description: string(long)}
	md.Normalize()
	if len(md.Description) != maxDescriptionLength {
		t.Errorf("len(Description) = %d, want %d", len(md.Description), maxDescriptionLength)
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/work/RJ012345": true,
		"/work/RJ012345":                    false,
		"":                                  false,
		"%gh-invalid-percent-encoding":      false,
	}
	for input, want := range cases {
		if got := IsAbsoluteURL(input); got != want {
			t.Errorf("IsAbsoluteURL(%q) = %v, want %v", input, got, want)
		}
	}
}
