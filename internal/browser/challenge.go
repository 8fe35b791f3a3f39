package browser

import (
	"regexp"
	"strings"
)

// maxBodyLenForChallengeScan bounds the HTML scanned for challenge
// signatures, mirroring the defensive body-size cap used against
// ReDoS on untrusted response bodies in the pack's rate limit detector.
const maxBodyLenForChallengeScan = 200 * 1024

var (
	layerAScriptPath  = regexp.MustCompile(`(?i)/cdn-cgi/challenge-platform/`)
	layerAFormID      = regexp.MustCompile(`(?i)id=["']challenge-form["']`)
	layerATitle       = regexp.MustCompile(`(?i)<title>\s*just a moment`)
	layerBBodyText    = regexp.MustCompile(`(?i)checking your browser|verify you are human|just a moment`)
	layerBRayID       = regexp.MustCompile(`(?i)ray id:?\s*[0-9a-f]{16}`)
	layerBDOMElement  = regexp.MustCompile(`(?i)id=["']cf-challenge-running["']|class=["'][^"']*cf-browser-verification`)
	layerCCloudflare  = regexp.MustCompile(`(?i)cloudflare`)
	layerCJustMoment  = regexp.MustCompile(`(?i)just a moment`)
)

// challengeURLHint reports whether url contains one of the configured
// literal URL hint tokens (e.g. "__cf_chl").
func challengeURLHint(url string, hints []string) bool {
	for _, hint := range hints {
		if hint == "" {
			continue
		}
		if strings.Contains(url, hint) {
			return true
		}
	}
	return false
}

// challengeDOMHint reports whether html contains one of the configured
// literal DOM selector/text hint tokens.
func challengeDOMHint(html string, hints []string) bool {
	for _, hint := range hints {
		if hint == "" {
			continue
		}
		if strings.Contains(html, hint) {
			return true
		}
	}
	return false
}

// detectChallenge implements the §4.3 three-layer challenge rule against
// the final URL and rendered HTML of a navigated page. It never raises;
// an inconclusive scan reports false.
func detectChallenge(url, html string, urlHints, domHints []string) bool {
	body := html
	if len(body) > maxBodyLenForChallengeScan {
		body = body[:maxBodyLenForChallengeScan]
	}

	if challengeURLHint(url, urlHints) {
		return true
	}

	// Layer A: any one unmistakable signature is sufficient.
	if layerAScriptPath.MatchString(body) || layerAFormID.MatchString(body) || layerATitle.MatchString(body) {
		return true
	}

	// Layer B: at least two of three medium-confidence signals.
	signals := 0
	if layerBBodyText.MatchString(body) {
		signals++
	}
	if layerBRayID.MatchString(body) {
		signals++
	}
	if layerBDOMElement.MatchString(body) || challengeDOMHint(body, domHints) {
		signals++
	}
	if signals >= 2 {
		return true
	}

	// Layer C: strict, all four required on a very short page.
	if len(body) < 5*1024 {
		bodyText := stripTags(body)
		if layerCCloudflare.MatchString(body) && layerCJustMoment.MatchString(body) &&
			layerBRayID.MatchString(body) && len(bodyText) < 500 {
			return true
		}
	}

	return false
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags is a crude HTML-to-text reduction used only to estimate
// visible body text length for layer C; it need not be exact.
func stripTags(html string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(html, ""))
}
