package provider

import (
	"path"
	"regexp"
	"strings"
)

// extractCandidateToken reduces a raw tryParseId input — a full URL, a bare
// identifier, or a filename — to the single token most likely to carry the
// id, so each provider's own grammar regexp only has to match that token.
// Mirrors the teacher's habit of normalizing a full URL/path down to its
// last meaningful segment before applying a narrow regex to it.
func extractCandidateToken(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.Contains(trimmed, "://") {
		trimmed = strings.TrimSuffix(trimmed, "/")
		if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = path.Base(trimmed)
	}

	// Filenames: drop a trailing extension (e.g. "RJ012345.html").
	if idx := strings.LastIndex(trimmed, "."); idx > 0 {
		ext := trimmed[idx+1:]
		if len(ext) <= 5 && isAlphaNumeric(ext) {
			trimmed = trimmed[:idx]
		}
	}

	return trimmed
}

func isAlphaNumeric(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return len(s) > 0
}

var titleSuffixPattern = regexp.MustCompile(`\s*[|\-–]\s*[^|\-–]{0,40}$`)

// trimSiteTitleSuffix strips a trailing " - SiteName" / " | SiteName" tail
// commonly appended to <title> content, leaving the product title.
func trimSiteTitleSuffix(title string) string {
	return strings.TrimSpace(titleSuffixPattern.ReplaceAllString(title, ""))
}
