package provider

import "testing"

func TestExtractCandidateTokenFromBareID(t *testing.T) {
	if got := extractCandidateToken("RJ012345"); got != "RJ012345" {
		t.Errorf("got %q, want RJ012345", got)
	}
}

func TestExtractCandidateTokenFromURL(t *testing.T) {
	cases := map[string]string{
		"https://doujin.example/work/RJ012345":         "RJ012345",
		"https://doujin.example/work/RJ012345/":        "RJ012345",
		"https://doujin.example/work/RJ012345?ref=top": "RJ012345",
		"https://doujin.example/work/RJ012345#reviews": "RJ012345",
	}
	for input, want := range cases {
		if got := extractCandidateToken(input); got != want {
			t.Errorf("extractCandidateToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractCandidateTokenFromFilename(t *testing.T) {
	if got := extractCandidateToken("RJ012345.html"); got != "RJ012345" {
		t.Errorf("got %q, want RJ012345", got)
	}
}

func TestExtractCandidateTokenEmptyInput(t *testing.T) {
	if got := extractCandidateToken("   "); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestTrimSiteTitleSuffix(t *testing.T) {
	cases := map[string]string{
		"Some Great Title - Doujin Store":  "Some Great Title",
		"Some Great Title | StreamSite":    "Some Great Title",
		"Just A Title With No Suffix At All": "Just A Title With No Suffix At All",
	}
	for input, want := range cases {
		if got := trimSiteTitleSuffix(input); got != want {
			t.Errorf("trimSiteTitleSuffix(%q) = %q, want %q", input, got, want)
		}
	}
}
