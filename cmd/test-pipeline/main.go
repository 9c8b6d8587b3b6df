package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmcoach/reddit-opportunity-bot/internal/alerts"
	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/safety"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scoring"
)

// TestLedger serves fixed rule rows so the pipeline can run offline
type TestLedger struct{}

func (t *TestLedger) ReadRange(_ context.Context, readRange string) ([][]string, error) {
	switch {
	case strings.HasPrefix(readRange, ledger.TabKeywords):
		return [][]string{
			{"keyword", "importance", "intentTag", "mentionPolicy", "notes", "active"},
			{"first message", "25", "opener_help", "optional", "", "true"},
			{"confidence", "20", "confidence", "optional", "", "true"},
			{"what to say", "18", "opener_help", "always", "", "true"},
			{"ghosted", "10", "venting", "never", "", "true"},
		}, nil
	case strings.HasPrefix(readRange, ledger.TabSubredditRules):
		return [][]string{
			{"subreddit", "selfPromoAllowed", "riskMultiplier", "priorityBoost", "notes"},
			{"dating", "true", "1", "5", ""},
			{"datingadvice", "false", "1.5", "8", "no self promo"},
		}, nil
	default:
		return [][]string{{"header"}}, nil
	}
}

func (t *TestLedger) AppendRows(_ context.Context, tab string, rows [][]string) error {
	fmt.Printf("   [ledger] append %d rows to %s\n", len(rows), tab)
	return nil
}

func (t *TestLedger) EnsureStructure(_ context.Context) error {
	return nil
}

var sampleEmail = alerts.InboundPayload{
	Subject:   "F5Bot found something!",
	MessageID: "test-digest-001",
	Text: `Keyword: "confidence"
Reddit Post: Need help with my first message (r/dating) by u/nervous_texter
https://f5bot.com/url?u=https%3A%2F%2Fwww.reddit.com%2Fr%2Fdating%2Fcomments%2Fabc123%2Fneed_help_with_my_first_message%2F
I matched with someone great but I have no confidence and no idea what to say first.

Keyword: "what to say"
Reddit Comment: What to say after being ghosted? (r/datingadvice) by u/second_chances
https://f5bot.com/url?u=https%3A%2F%2Fwww.reddit.com%2Fr%2Fdatingadvice%2Fcomments%2Fdef456%2Fghosted_again%2Fc%2Fxyz789%2F

Do you have comments or suggestions about F5Bot? Reply to this email!`,
}

func main() {
	ctx := context.Background()
	testLedger := &TestLedger{}
	engine := scoring.NewEngine(testLedger, 8)

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("OFFLINE PIPELINE CHECK: parser -> rule scoring -> safety")
	fmt.Println(strings.Repeat("=", 70))

	batch := alerts.ParseInboundBatch(sampleEmail)
	fmt.Printf("\nParsed %d alerts from sample digest\n", len(batch))

	for i, alert := range batch {
		fmt.Printf("\n--- Alert %d ---\n", i+1)
		fmt.Printf("   id:        %s\n", alert.AlertID)
		fmt.Printf("   subreddit: r/%s\n", alert.Subreddit)
		fmt.Printf("   author:    %s\n", alert.Author)
		fmt.Printf("   permalink: %s\n", alert.Permalink)
		fmt.Printf("   dedupe:    %.16s...\n", alert.DedupeHash)

		base, err := engine.Score(ctx, alert)
		if err != nil {
			fmt.Printf("   scoring failed: %v\n", err)
			continue
		}
		fmt.Printf("   baseScore: %d (keywords %.0f, freshness %d, boost %.0f, riskPenalty %.0f)\n",
			base.BaseScore, base.KeywordScore, base.FreshnessScore, base.SubredditBoost, base.RiskPenalty)
		for _, match := range base.MatchedKeywords {
			fmt.Printf("      matched %q (%s, importance %.0f)\n", match.Keyword, match.MentionPolicy, match.Importance)
		}
		fmt.Printf("   mention policy: %s\n", base.RecommendedMentionPolicy)

		decision := safety.Evaluate(alert.Title+" "+alert.BodySnippet, true)
		fmt.Printf("   safety: allowed=%v risk=%s forceValueOnly=%v\n", decision.Allowed, decision.RiskLabel, decision.ForceValueOnly)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("Done. No network calls were made.")
}
