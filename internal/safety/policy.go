// Package safety classifies alert content before any outreach is drafted.
// The classifier is a pure function over the alert text plus the
// subreddit's self-promo flag: no I/O, no state, fully auditable.
package safety

import (
	"regexp"

	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

// Hard blocks name contexts where marketing outreach is never acceptable.
// Any match blocks the alert outright: the external scorer is not called
// with real content and the status is forced to DoNotTouch downstream.
var hardBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bself[-\s]?harm\b`),
	regexp.MustCompile(`(?i)\bsuicide\b`),
	regexp.MustCompile(`(?i)\bdomestic violence\b`),
	regexp.MustCompile(`(?i)\bminor\b`),
	regexp.MustCompile(`(?i)\bunderage\b`),
	regexp.MustCompile(`(?i)\bgrief\b`),
	regexp.MustCompile(`(?i)\bfuneral\b`),
	regexp.MustCompile(`(?i)\babuse\b`),
	regexp.MustCompile(`(?i)\bemergency\b`),
	regexp.MustCompile(`(?i)\blegal advice\b`),
	regexp.MustCompile(`(?i)\bmedical advice\b`),
}

// Soft blocks mark emotionally vulnerable contexts: outreach is still
// allowed but any draft must be value-only, never promotional.
var softBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdepressed\b`),
	regexp.MustCompile(`(?i)\bpanic attack\b`),
	regexp.MustCompile(`(?i)\bcrying\b`),
	regexp.MustCompile(`(?i)\bheartbroken\b`),
	regexp.MustCompile(`(?i)\bbereavement\b`),
}

// Evaluate runs the ordered checks: hard block, soft block, self-promo
// restriction, clean. The first match wins and a hard block cannot be
// overridden by anything downstream.
func Evaluate(content string, selfPromoAllowed bool) models.SafetyDecision {
	if matchesAny(hardBlockPatterns, content) {
		return models.SafetyDecision{
			Allowed:        false,
			BlockReason:    "Hard-block emotional/sensitive context",
			ForceValueOnly: true,
			RiskLabel:      models.RiskCritical,
		}
	}

	if matchesAny(softBlockPatterns, content) {
		return models.SafetyDecision{
			Allowed:        true,
			BlockReason:    "Soft-block promotional tone",
			ForceValueOnly: true,
			RiskLabel:      models.RiskHigh,
		}
	}

	if !selfPromoAllowed {
		return models.SafetyDecision{
			Allowed:        true,
			BlockReason:    "Subreddit self-promo restricted",
			ForceValueOnly: true,
			RiskLabel:      models.RiskMedium,
		}
	}

	return models.SafetyDecision{
		Allowed:   true,
		RiskLabel: models.RiskLow,
	}
}

func matchesAny(patterns []*regexp.Regexp, content string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(content) {
			return true
		}
	}
	return false
}
