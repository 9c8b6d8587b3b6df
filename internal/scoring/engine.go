package scoring

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	keywordRange   = ledger.TabKeywords + "!A:F"
	subredditRange = ledger.TabSubredditRules + "!A:E"

	// Scoring constants. The coverage bonus rewards breadth of match, the
	// no-match penalty pushes unscored content toward rejection.
	coverageBonusCap   = 15
	matchBonusWeight   = 4
	intentBonusWeight  = 2
	noMatchPenalty     = 25
	selfPromoPenalty   = 12
	freshnessWeight    = 0.15
	tokenOverlapQuorum = 0.8
)

// Engine computes the deterministic base score for an alert from the
// keyword and subreddit rules held in the ledger. Rules are re-read on
// every evaluation so edits take effect without a restart.
type Engine struct {
	ledger        ledger.Ledger
	halfLifeHours float64
}

// NewEngine creates a rule scoring engine.
func NewEngine(l ledger.Ledger, halfLifeHours float64) *Engine {
	return &Engine{
		ledger:        l,
		halfLifeHours: halfLifeHours,
	}
}

// Score fetches the current rule sets and scores one alert against them.
func (e *Engine) Score(ctx context.Context, alert models.NormalizedAlert) (models.BaseScoreResult, error) {
	keywordRows, err := e.ledger.ReadRange(ctx, keywordRange)
	if err != nil {
		return models.BaseScoreResult{}, fmt.Errorf("failed to read keyword rules: %w", err)
	}

	subredditRows, err := e.ledger.ReadRange(ctx, subredditRange)
	if err != nil {
		return models.BaseScoreResult{}, fmt.Errorf("failed to read subreddit rules: %w", err)
	}

	keywordRules := parseKeywordRules(keywordRows)
	subredditRules := ParseSubredditRules(subredditRows)

	result := e.scoreAlert(alert, keywordRules, subredditRules, time.Now())
	logrus.Debugf("Base score %d for alert %s (%d keyword matches)", result.BaseScore, alert.AlertID, len(result.MatchedKeywords))
	return result, nil
}

func (e *Engine) scoreAlert(alert models.NormalizedAlert, keywordRules []models.KeywordRule, subredditRules []models.SubredditRule, now time.Time) models.BaseScoreResult {
	normalizedText := normalizeForMatch(fmt.Sprintf("%s %s %s", alert.Title, alert.BodySnippet, alert.FullText))
	textTokens := tokenSet(normalizedText)

	var matched []models.KeywordMatch
	for _, rule := range keywordRules {
		if keywordMatches(normalizedText, textTokens, rule.Keyword) {
			matched = append(matched, models.KeywordMatch{
				Keyword:       rule.Keyword,
				Importance:    rule.Importance,
				IntentTag:     rule.IntentTag,
				MentionPolicy: rule.MentionPolicy,
			})
		}
	}

	keywordScore := 0.0
	intentTags := make(map[string]bool)
	for _, match := range matched {
		keywordScore += match.Importance
		if match.IntentTag != "" {
			intentTags[match.IntentTag] = true
		}
	}

	coverageBonus := math.Min(coverageBonusCap, float64(len(matched)*matchBonusWeight+len(intentTags)*intentBonusWeight))

	penalty := 0.0
	if len(matched) == 0 {
		penalty = noMatchPenalty
	}

	freshness := e.freshnessScore(alert.ReceivedAtIso, now)

	subredditBoost := 0.0
	riskPenalty := 0.0
	if rule, ok := findSubredditRule(subredditRules, alert.Subreddit); ok {
		subredditBoost = rule.PriorityBoost
		if !rule.SelfPromoAllowed {
			riskPenalty = selfPromoPenalty * rule.RiskMultiplier
		}
	}

	baseScore := ClampScore(keywordScore + coverageBonus + subredditBoost + float64(freshness)*freshnessWeight - riskPenalty - penalty)

	return models.BaseScoreResult{
		KeywordScore:             keywordScore,
		FreshnessScore:           freshness,
		SubredditBoost:           subredditBoost,
		RiskPenalty:              riskPenalty,
		BaseScore:                baseScore,
		MatchedKeywords:          matched,
		RecommendedMentionPolicy: mentionFromMatches(matched),
	}
}

// freshnessScore decays exponentially with alert age: 100 at age zero and
// 50 at exactly one half-life.
func (e *Engine) freshnessScore(receivedAtIso string, now time.Time) int {
	receivedAt, err := time.Parse(time.RFC3339, receivedAtIso)
	if err != nil {
		// Unparseable timestamps are treated as brand new.
		return 100
	}

	ageHours := math.Max(0, now.Sub(receivedAt).Hours())
	decay := math.Pow(0.5, ageHours/e.halfLifeHours)
	return int(math.Round(decay * 100))
}

func mentionFromMatches(matches []models.KeywordMatch) models.MentionPolicy {
	for _, match := range matches {
		if match.MentionPolicy == models.MentionNever {
			return models.MentionNever
		}
	}
	for _, match := range matches {
		if match.MentionPolicy == models.MentionAlways {
			return models.MentionAlways
		}
	}
	return models.MentionOptional
}

// keywordMatches reports whether a rule keyword applies to the alert text.
// Direct substring wins; multi-word keywords also match when at least 80%
// of their tokens (rounded up) appear anywhere in the text, which tolerates
// word-order variation and minor phrasing drift.
func keywordMatches(normalizedText string, textTokens map[string]bool, keyword string) bool {
	normalizedKeyword := normalizeForMatch(keyword)
	if normalizedKeyword == "" {
		return false
	}

	if strings.Contains(normalizedText, normalizedKeyword) {
		return true
	}

	tokens := tokenize(normalizedKeyword)
	if len(tokens) < 2 {
		return false
	}

	hits := 0
	for _, token := range tokens {
		if textTokens[token] {
			hits++
		}
	}

	quorum := int(math.Ceil(float64(len(tokens)) * tokenOverlapQuorum))
	return hits >= quorum
}

func normalizeForMatch(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenize(value string) []string {
	return strings.Fields(normalizeForMatch(value))
}

func tokenSet(normalizedText string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(normalizedText) {
		set[token] = true
	}
	return set
}

func findSubredditRule(rules []models.SubredditRule, subreddit string) (models.SubredditRule, bool) {
	needle := strings.ToLower(strings.TrimSpace(subreddit))
	for _, rule := range rules {
		if rule.Subreddit == needle {
			return rule, true
		}
	}
	return models.SubredditRule{}, false
}

// parseKeywordRules converts raw ledger rows into active keyword rules,
// skipping the header row and blank or inactive entries. Bad cells fall
// back to safe defaults rather than failing the evaluation.
func parseKeywordRules(rows [][]string) []models.KeywordRule {
	var rules []models.KeywordRule
	for _, row := range dataRows(rows) {
		keyword := strings.ToLower(strings.TrimSpace(cell(row, 0)))
		if keyword == "" {
			continue
		}

		active := true
		if raw := strings.TrimSpace(cell(row, 5)); raw != "" {
			active = strings.EqualFold(raw, "true")
		}
		if !active {
			continue
		}

		rules = append(rules, models.KeywordRule{
			Keyword:       keyword,
			Importance:    parseNum(cell(row, 1), 0),
			IntentTag:     cell(row, 2),
			MentionPolicy: models.ParseMentionPolicy(strings.ToLower(strings.TrimSpace(cell(row, 3)))),
			Notes:         cell(row, 4),
			Active:        true,
		})
	}
	return rules
}

// ParseSubredditRules converts raw ledger rows into subreddit rules. Also
// used by the orchestrator for its self-promo lookup.
func ParseSubredditRules(rows [][]string) []models.SubredditRule {
	var rules []models.SubredditRule
	for _, row := range dataRows(rows) {
		subreddit := strings.ToLower(strings.TrimSpace(cell(row, 0)))
		if subreddit == "" {
			continue
		}

		rules = append(rules, models.SubredditRule{
			Subreddit:        subreddit,
			SelfPromoAllowed: strings.EqualFold(strings.TrimSpace(cell(row, 1)), "true"),
			RiskMultiplier:   parseNum(cell(row, 2), 1),
			PriorityBoost:    parseNum(cell(row, 3), 0),
			Notes:            cell(row, 4),
		})
	}
	return rules
}

// ClampScore rounds and clamps a raw score into [0,100].
func ClampScore(value float64) int {
	rounded := math.Round(value)
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return int(rounded)
}

func parseNum(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}
