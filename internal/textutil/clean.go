// Package textutil holds the pure text helpers used by the relay engine:
// placeholder detection for "still working" messages and cleanup of raw
// worker replies before they are forwarded anywhere.
package textutil

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fetchMarker is the distinguished phrase the worker bots (and our own
// placeholder messages) use while an answer is still being prepared.
const fetchMarker = "⏳ fetching"

// waitingKeywords are generic "still working" verbs. A reply containing any
// of them is treated as a placeholder, not a final answer.
var waitingKeywords = []string{
	"please wait",
	"fetching",
	"processing",
	"loading",
	"searching",
	"retrieving",
}

// promoBlocklist lists phrases that mark a line as promotional filler.
// Matching is case-insensitive per line.
var promoBlocklist = []string{
	"footer",
	"powered by",
	"join our",
	"subscribe",
}

var (
	urlRe     = regexp.MustCompile(`https?://\S+`)
	domainRe  = regexp.MustCompile(`\b[a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*\.(?:com|net|org|io|in|co|me)(?:/\S*)?`)
	mentionRe = regexp.MustCompile(`@\w+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
	spacesRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// IsPlaceholder reports whether text is a "working on it" message rather
// than a final answer. It is a pure predicate: empty input is never a
// placeholder.
func IsPlaceholder(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, fetchMarker) {
		return true
	}
	for _, kw := range waitingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Clean strips links, mentions, footers and promotional lines from a raw
// worker reply and normalizes whitespace. It is total and idempotent;
// callers treat an empty result as "no usable content".
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = stripJSONFooter(text)

	text = urlRe.ReplaceAllString(text, "")
	text = domainRe.ReplaceAllString(text, "")
	text = mentionRe.ReplaceAllString(text, "")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if isPromoLine(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	text = strings.Join(kept, "\n")

	text = newlineRe.ReplaceAllString(text, "\n\n")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// stripJSONFooter removes the "footer" field when the text is a JSON object
// carrying one. Non-JSON text passes through untouched; the line-based
// promo blocklist handles footer lines there.
func stripJSONFooter(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return text
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return text
	}
	if _, ok := obj["footer"]; !ok {
		return text
	}
	delete(obj, "footer")
	out, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return text
	}
	return string(out)
}

func isPromoLine(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range promoBlocklist {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
