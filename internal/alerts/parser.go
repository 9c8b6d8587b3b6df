package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

// Source tag stamped onto every alert produced by this parser.
const SourceF5botEmail = "f5bot_email"

const (
	snippetBefore = 220
	snippetAfter  = 260
	snippetMax    = 500
	dedupePrefix  = 180
)

// InboundPayload is the raw webhook body forwarded by the inbound email hook.
type InboundPayload struct {
	Subject   string            `json:"subject,omitempty"`
	Text      string            `json:"text,omitempty"`
	From      string            `json:"from,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// F5Bot appends the same boilerplate to every digest; everything from the
// earliest marker onward is noise.
var footerMarkers = []string{
	"Do you have comments or suggestions about F5Bot?",
	"Want to advertise your company or product on F5Bot?",
	"You are receiving this email because you signed up for alerts from F5Bot.",
}

var (
	wrappedLinkPattern = regexp.MustCompile(`(?i)https?://f5bot\.com/url\?[^\s"')<>]+`)
	redditLinkPattern  = regexp.MustCompile(`(?i)https?://(?:www\.|old\.|np\.)?reddit\.com/[^\s"')<>]+`)
	commentPathPattern = regexp.MustCompile(`(?i)^/r/([A-Za-z0-9_]+)/comments/([A-Za-z0-9]+)/([^/]+)/c/([A-Za-z0-9]+)/?$`)
	postPathPattern    = regexp.MustCompile(`(?i)^/r/([A-Za-z0-9_]+)/comments/([A-Za-z0-9]+)(?:/([^/]+))?/?$`)
	subredditPattern   = regexp.MustCompile(`(?i)reddit\.com/r/([a-zA-Z0-9_]+)`)
	bareSubPattern     = regexp.MustCompile(`(?i)/r/([a-zA-Z0-9_]+)/?`)
	authorPattern      = regexp.MustCompile(`(?i)(?:by|author)\s+(?:u/)?([a-zA-Z0-9_-]+)`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

type hitLink struct {
	permalink string
	index     int
}

// ParseInboundBatch normalizes a raw digest payload into zero or more alerts,
// one per detected mention link.
func ParseInboundBatch(payload InboundPayload) []models.NormalizedAlert {
	text := stripFooter(payload.Text)
	hits := collectHitLinks(text)

	if len(hits) > 0 {
		alerts := make([]models.NormalizedAlert, 0, len(hits))
		for i, hit := range hits {
			snippet := snippetAroundHit(text, hit.index)
			alerts = append(alerts, buildAlert(payload, text, hit.permalink, snippet, fmt.Sprintf("hit%d", i+1)))
		}
		return alerts
	}

	permalink := fallbackPermalink(text)
	if permalink == "" {
		return nil
	}

	snippet := truncate(compactText(text), snippetMax)
	return []models.NormalizedAlert{buildAlert(payload, text, permalink, snippet, "fallback")}
}

// ParseInbound normalizes a payload into exactly one best-effort alert.
// Unlike ParseInboundBatch it never comes back empty: if nothing is
// extractable the alert carries an empty permalink for the caller to reject.
func ParseInbound(payload InboundPayload) models.NormalizedAlert {
	alerts := ParseInboundBatch(payload)
	if len(alerts) > 0 {
		return alerts[0]
	}

	text := compactText(payload.Text)
	return buildAlert(payload, text, "", truncate(text, snippetMax), "empty")
}

func stripFooter(text string) string {
	cutoff := len(text)
	for _, marker := range footerMarkers {
		if idx := strings.Index(text, marker); idx >= 0 && idx < cutoff {
			cutoff = idx
		}
	}
	return text[:cutoff]
}

func compactText(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// collectHitLinks finds mention links in first-seen order, deduplicated by
// canonical URL. Explicit wrapped hit links are trusted exclusively when
// present; appended fallback "Permalink:" lines can point at a subreddit
// root and would pollute the batch.
func collectHitLinks(text string) []hitLink {
	var hits []hitLink
	seen := make(map[string]bool)

	for _, loc := range wrappedLinkPattern.FindAllStringIndex(text, -1) {
		permalink := unwrapRedirectURL(text[loc[0]:loc[1]])
		if permalink == "" || seen[permalink] {
			continue
		}
		seen[permalink] = true
		hits = append(hits, hitLink{permalink: permalink, index: loc[0]})
	}

	if len(hits) > 0 {
		return hits
	}

	for _, loc := range redditLinkPattern.FindAllStringIndex(text, -1) {
		permalink := NormalizeRedditURL(text[loc[0]:loc[1]])
		if permalink == "" || seen[permalink] {
			continue
		}
		seen[permalink] = true
		hits = append(hits, hitLink{permalink: permalink, index: loc[0]})
	}

	return hits
}

// unwrapRedirectURL decodes the target of an F5Bot click-tracking wrapper.
// The target parameter is double-encoded.
func unwrapRedirectURL(raw string) string {
	wrapper, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	target := wrapper.Query().Get("u")
	if target == "" {
		return ""
	}

	decoded, err := url.PathUnescape(target)
	if err != nil {
		return ""
	}

	return NormalizeRedditURL(decoded)
}

// NormalizeRedditURL canonicalizes a reddit URL: www host, no fragment, no
// trailing punctuation, and comment permalinks collapsed onto the parent post
// so repeated comment notifications on one post share a dedupe key. Malformed
// or non-reddit URLs come back empty.
func NormalizeRedditURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	if !strings.HasSuffix(host, "reddit.com") {
		return ""
	}

	trimmedPath := strings.TrimRight(parsed.Path, ")].,!?:;")

	if m := commentPathPattern.FindStringSubmatch(trimmedPath); m != nil {
		return fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s/%s/", m[1], m[2], m[3])
	}

	if m := postPathPattern.FindStringSubmatch(trimmedPath); m != nil {
		if m[3] != "" {
			return fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s/%s/", m[1], m[2], m[3])
		}
		return fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s/", m[1], m[2])
	}

	parsed.Host = "www.reddit.com"
	parsed.Path = trimmedPath
	parsed.Fragment = ""
	parsed.RawQuery = ""
	return parsed.String()
}

func snippetAroundHit(text string, hitIndex int) string {
	start := hitIndex - snippetBefore
	if start < 0 {
		start = 0
	}
	end := hitIndex + snippetAfter
	if end > len(text) {
		end = len(text)
	}

	// Keep the cut points on rune boundaries.
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	return truncate(compactText(text[start:end]), snippetMax)
}

func fallbackPermalink(text string) string {
	m := bareSubPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("https://www.reddit.com/r/%s/", m[1])
}

func extractSubreddit(permalink string) string {
	m := subredditPattern.FindStringSubmatch(permalink)
	if m == nil {
		return "unknown"
	}
	return strings.ToLower(m[1])
}

func extractAuthor(text string) string {
	m := authorPattern.FindStringSubmatch(text)
	if m == nil {
		return "unknown"
	}
	return m[1]
}

func buildAlert(payload InboundPayload, text, permalink, bodySnippet, suffix string) models.NormalizedAlert {
	subreddit := extractSubreddit(permalink)
	title := compactText(payload.Subject)
	if title == "" {
		title = "F5Bot Alert"
	}

	dedupeInput := fmt.Sprintf("%s|%s|%s", permalink, truncate(bodySnippet, dedupePrefix), subreddit)

	alertID := ""
	if payload.MessageID != "" {
		alertID = fmt.Sprintf("%s:%s", payload.MessageID, suffix)
	} else {
		alertID = sha256Hex(fmt.Sprintf("%d|%s|%s", time.Now().UnixMilli(), dedupeInput, suffix))
	}

	authorSource := bodySnippet
	if authorSource == "" {
		authorSource = text
	}

	return models.NormalizedAlert{
		AlertID:       alertID,
		Source:        SourceF5botEmail,
		ReceivedAtIso: time.Now().UTC().Format(time.RFC3339),
		Subreddit:     subreddit,
		Author:        extractAuthor(authorSource),
		Permalink:     permalink,
		Title:         title,
		BodySnippet:   bodySnippet,
		FullText:      bodySnippet,
		DedupeHash:    sha256Hex(dedupeInput),
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
