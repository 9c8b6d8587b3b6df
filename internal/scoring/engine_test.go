package scoring

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

// fakeLedger serves canned rule rows for engine tests
type fakeLedger struct {
	keywordRows   [][]string
	subredditRows [][]string
}

func (f *fakeLedger) ReadRange(_ context.Context, readRange string) ([][]string, error) {
	if strings.HasPrefix(readRange, ledger.TabKeywords) {
		return f.keywordRows, nil
	}
	return f.subredditRows, nil
}

func (f *fakeLedger) AppendRows(_ context.Context, _ string, _ [][]string) error {
	return nil
}

func (f *fakeLedger) EnsureStructure(_ context.Context) error {
	return nil
}

func keywordHeader() []string {
	return []string{"keyword", "importance", "intentTag", "mentionPolicy", "notes", "active"}
}

func subredditHeader() []string {
	return []string{"subreddit", "selfPromoAllowed", "riskMultiplier", "priorityBoost", "notes"}
}

func testAlert(text string, receivedAt time.Time) models.NormalizedAlert {
	return models.NormalizedAlert{
		AlertID:       "a1",
		Subreddit:     "dating",
		Title:         "Reddit mention",
		BodySnippet:   text,
		FullText:      text,
		ReceivedAtIso: receivedAt.UTC().Format(time.RFC3339),
	}
}

func TestFreshnessScore(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	received := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	iso := received.Format(time.RFC3339)

	assert.Equal(t, 100, engine.freshnessScore(iso, received))
	assert.Equal(t, 50, engine.freshnessScore(iso, received.Add(8*time.Hour)))
	assert.Equal(t, 25, engine.freshnessScore(iso, received.Add(16*time.Hour)))

	// Clock skew: an alert "from the future" still scores 100.
	assert.Equal(t, 100, engine.freshnessScore(iso, received.Add(-2*time.Hour)))

	// Unparseable timestamps degrade to brand new.
	assert.Equal(t, 100, engine.freshnessScore("not-a-timestamp", received))
}

func TestFreshnessScoreMonotonic(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	received := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	iso := received.Format(time.RFC3339)

	previous := 101
	for hours := 0; hours <= 72; hours += 3 {
		score := engine.freshnessScore(iso, received.Add(time.Duration(hours)*time.Hour))
		assert.LessOrEqual(t, score, previous, "freshness must not increase with age (at %dh)", hours)
		assert.GreaterOrEqual(t, score, 0)
		previous = score
	}
}

func TestKeywordMatches(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keyword  string
		expected bool
	}{
		{
			name:     "Direct substring",
			text:     "i have zero confidence texting her",
			keyword:  "confidence",
			expected: true,
		},
		{
			name:     "Punctuation-insensitive substring",
			text:     "what do i even say... first message?!",
			keyword:  "first message",
			expected: true,
		},
		{
			name:     "Token overlap tolerates word order",
			text:     "the message i sent first got no reply",
			keyword:  "first message",
			expected: true,
		},
		{
			name:     "80 percent of a longer phrase",
			text:     "need an opening line for dating apps now",
			keyword:  "best opening line for dating apps",
			expected: true,
		},
		{
			name:     "Single-word keyword never fuzzy matches",
			text:     "confidently wrong",
			keyword:  "confidence",
			expected: false,
		},
		{
			name:     "Too few overlapping tokens",
			text:     "totally unrelated content here",
			keyword:  "first message help",
			expected: false,
		},
		{
			name:     "Empty keyword",
			text:     "anything",
			keyword:  "  ",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized := normalizeForMatch(tt.text)
			assert.Equal(t, tt.expected, keywordMatches(normalized, tokenSet(normalized), tt.keyword))
		})
	}
}

func TestScoreAlert_MatchedKeywordWithBoost(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	keywordRules := []models.KeywordRule{
		{Keyword: "confidence", Importance: 20, IntentTag: "confidence", MentionPolicy: models.MentionOptional},
	}
	subredditRules := []models.SubredditRule{
		{Subreddit: "dating", SelfPromoAllowed: true, RiskMultiplier: 1, PriorityBoost: 5},
	}

	result := engine.scoreAlert(testAlert("I need more confidence with texting", now), keywordRules, subredditRules, now)

	assert.Equal(t, 20.0, result.KeywordScore)
	assert.Equal(t, 100, result.FreshnessScore)
	assert.Equal(t, 5.0, result.SubredditBoost)
	assert.Equal(t, 0.0, result.RiskPenalty)
	// 20 keyword + 6 coverage (1 match, 1 intent tag) + 5 boost + 15 freshness weight
	assert.Equal(t, 46, result.BaseScore)
	require.Len(t, result.MatchedKeywords, 1)
	assert.Equal(t, models.MentionOptional, result.RecommendedMentionPolicy)
}

func TestScoreAlert_NoMatchPenalty(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	result := engine.scoreAlert(testAlert("completely unrelated text", now), nil, nil, now)

	assert.Empty(t, result.MatchedKeywords)
	// 0 keyword + 0 coverage + 0 boost + 15 freshness weight - 25 penalty, clamped at 0
	assert.Equal(t, 0, result.BaseScore)
	assert.Equal(t, models.MentionOptional, result.RecommendedMentionPolicy)
}

func TestScoreAlert_RiskPenaltyForRestrictedSubreddit(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	keywordRules := []models.KeywordRule{
		{Keyword: "confidence", Importance: 30, MentionPolicy: models.MentionOptional},
	}
	subredditRules := []models.SubredditRule{
		{Subreddit: "dating", SelfPromoAllowed: false, RiskMultiplier: 1.5, PriorityBoost: 0},
	}

	result := engine.scoreAlert(testAlert("confidence question", now), keywordRules, subredditRules, now)

	assert.Equal(t, 18.0, result.RiskPenalty)
	// 30 keyword + 4 coverage (1 match, no intent tag) + 15 freshness weight - 18 risk
	assert.Equal(t, 31, result.BaseScore)
}

func TestScoreAlert_MentionPolicyPrecedence(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	keywordRules := []models.KeywordRule{
		{Keyword: "confidence", Importance: 10, MentionPolicy: models.MentionAlways},
		{Keyword: "ghosted", Importance: 10, MentionPolicy: models.MentionNever},
	}

	result := engine.scoreAlert(testAlert("ghosted and lost all confidence", now), keywordRules, nil, now)
	assert.Equal(t, models.MentionNever, result.RecommendedMentionPolicy, "never must dominate always")

	onlyAlways := engine.scoreAlert(testAlert("confidence question", now), keywordRules[:1], nil, now)
	assert.Equal(t, models.MentionAlways, onlyAlways.RecommendedMentionPolicy)
}

func TestScoreAlert_Clamped(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, 8)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	huge := []models.KeywordRule{{Keyword: "confidence", Importance: 500, MentionPolicy: models.MentionOptional}}
	result := engine.scoreAlert(testAlert("confidence", now), huge, nil, now)
	assert.Equal(t, 100, result.BaseScore)

	negative := []models.KeywordRule{{Keyword: "confidence", Importance: -500, MentionPolicy: models.MentionOptional}}
	result = engine.scoreAlert(testAlert("confidence", now), negative, nil, now)
	assert.Equal(t, 0, result.BaseScore)
}

func TestParseKeywordRules(t *testing.T) {
	rows := [][]string{
		keywordHeader(),
		{"Confidence ", "20", "confidence", "OPTIONAL", "", "true"},
		{"dead keyword", "10", "", "optional", "", "false"},
		{"", "10", "", "optional", "", "true"},
		{"bare minimum"},
		{"bad numbers", "not-a-number", "tag", "bogus-policy", "", ""},
	}

	rules := parseKeywordRules(rows)
	require.Len(t, rules, 3)

	assert.Equal(t, "confidence", rules[0].Keyword)
	assert.Equal(t, 20.0, rules[0].Importance)
	assert.Equal(t, models.MentionOptional, rules[0].MentionPolicy)

	// Missing cells default: importance 0, active true, policy optional.
	assert.Equal(t, "bare minimum", rules[1].Keyword)
	assert.Equal(t, 0.0, rules[1].Importance)

	assert.Equal(t, "bad numbers", rules[2].Keyword)
	assert.Equal(t, 0.0, rules[2].Importance)
	assert.Equal(t, models.MentionOptional, rules[2].MentionPolicy)
}

func TestParseSubredditRules(t *testing.T) {
	rows := [][]string{
		subredditHeader(),
		{"Dating", "TRUE", "1.5", "8", "ok"},
		{"", "true", "1", "0", ""},
		{"strict", "", "not-a-number", ""},
	}

	rules := ParseSubredditRules(rows)
	require.Len(t, rules, 2)

	assert.Equal(t, "dating", rules[0].Subreddit)
	assert.True(t, rules[0].SelfPromoAllowed)
	assert.Equal(t, 1.5, rules[0].RiskMultiplier)
	assert.Equal(t, 8.0, rules[0].PriorityBoost)

	// Missing cells default: self-promo disallowed, multiplier 1, boost 0.
	assert.Equal(t, "strict", rules[1].Subreddit)
	assert.False(t, rules[1].SelfPromoAllowed)
	assert.Equal(t, 1.0, rules[1].RiskMultiplier)
	assert.Equal(t, 0.0, rules[1].PriorityBoost)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 0, ClampScore(0))
	assert.Equal(t, 62, ClampScore(61.95))
	assert.Equal(t, 75, ClampScore(74.5))
	assert.Equal(t, 100, ClampScore(100))
	assert.Equal(t, 100, ClampScore(240))
}

func TestEngineScore_ReadsRulesFresh(t *testing.T) {
	lgr := &fakeLedger{
		keywordRows: [][]string{
			keywordHeader(),
			{"confidence", "20", "confidence", "optional", "", "true"},
		},
		subredditRows: [][]string{
			subredditHeader(),
			{"dating", "true", "1", "5", ""},
		},
	}
	engine := NewEngine(lgr, 8)

	alert := testAlert("confidence is the problem", time.Now())
	result, err := engine.Score(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, 46, result.BaseScore)

	// A rule edit takes effect on the very next evaluation.
	lgr.keywordRows[1][1] = "40"
	result, err = engine.Score(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, 66, result.BaseScore)
}
