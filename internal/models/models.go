package models

// MentionPolicy controls whether a drafted reply may reference the product.
type MentionPolicy string

const (
	MentionAlways   MentionPolicy = "always"
	MentionOptional MentionPolicy = "optional"
	MentionNever    MentionPolicy = "never"
)

// ParseMentionPolicy maps a free-form string onto a policy, defaulting to optional.
func ParseMentionPolicy(value string) MentionPolicy {
	switch MentionPolicy(value) {
	case MentionAlways, MentionNever:
		return MentionPolicy(value)
	default:
		return MentionOptional
	}
}

// Status is the four-tier triage classification of an opportunity.
type Status string

const (
	StatusHot        Status = "Hot"
	StatusWarm       Status = "Warm"
	StatusLow        Status = "Low"
	StatusDoNotTouch Status = "DoNotTouch"
)

// RiskLabel classifies how sensitive the surrounding context is.
type RiskLabel string

const (
	RiskLow      RiskLabel = "low"
	RiskMedium   RiskLabel = "medium"
	RiskHigh     RiskLabel = "high"
	RiskCritical RiskLabel = "critical"
)

// NormalizedAlert is one detected keyword mention extracted from an inbound digest.
type NormalizedAlert struct {
	AlertID       string `json:"alertId"`
	Source        string `json:"source"`
	ReceivedAtIso string `json:"receivedAtIso"`
	Subreddit     string `json:"subreddit"`
	Author        string `json:"author"`
	Permalink     string `json:"permalink"`
	Title         string `json:"title"`
	BodySnippet   string `json:"bodySnippet"`
	FullText      string `json:"fullText"`
	DedupeHash    string `json:"dedupeHash"`
}

// KeywordRule is one row of the Keywords tab.
type KeywordRule struct {
	Keyword       string
	Importance    float64
	IntentTag     string
	MentionPolicy MentionPolicy
	Notes         string
	Active        bool
}

// SubredditRule is one row of the SubredditRules tab.
type SubredditRule struct {
	Subreddit        string
	SelfPromoAllowed bool
	RiskMultiplier   float64
	PriorityBoost    float64
	Notes            string
}

// KeywordMatch records one keyword rule that matched an alert.
type KeywordMatch struct {
	Keyword       string        `json:"keyword"`
	Importance    float64       `json:"importance"`
	IntentTag     string        `json:"intentTag"`
	MentionPolicy MentionPolicy `json:"mentionPolicy"`
}

// BaseScoreResult is the deterministic rule-engine score for an alert.
type BaseScoreResult struct {
	KeywordScore             float64        `json:"keywordScore"`
	FreshnessScore           int            `json:"freshnessScore"`
	SubredditBoost           float64        `json:"subredditBoost"`
	RiskPenalty              float64        `json:"riskPenalty"`
	BaseScore                int            `json:"baseScore"`
	MatchedKeywords          []KeywordMatch `json:"matchedKeywords"`
	RecommendedMentionPolicy MentionPolicy  `json:"recommendedMentionPolicy"`
}

// SafetyDecision is the outcome of the safety policy evaluator.
type SafetyDecision struct {
	Allowed        bool      `json:"allowed"`
	BlockReason    string    `json:"blockReason"`
	ForceValueOnly bool      `json:"forceValueOnly"`
	RiskLabel      RiskLabel `json:"riskLabel"`
}

// GptOpportunityScore is the validated output of the external model.
type GptOpportunityScore struct {
	Relevance                    float64       `json:"relevance"`
	AdvertisingFit               float64       `json:"advertisingFit"`
	BrandFit                     float64       `json:"brandFit"`
	ConversationNaturalness      float64       `json:"conversationNaturalness"`
	SensitivityRisk              float64       `json:"sensitivityRisk"`
	FocusSummary                 string        `json:"focusSummary"`
	ShortReplyIdeas              []string      `json:"shortReplyIdeas"`
	Rationale                    string        `json:"rationale"`
	MentionRecommendation        MentionPolicy `json:"mentionRecommendation"`
	ResponseDraftsBrandMentioned []string      `json:"responseDraftsBrandMentioned"`
	ResponseDraftsValueOnly      []string      `json:"responseDraftsValueOnly"`
}

// OpportunityEvaluation is the immutable evaluation produced for one accepted alert.
type OpportunityEvaluation struct {
	FinalScore int                 `json:"finalScore"`
	Status     Status              `json:"status"`
	Base       BaseScoreResult     `json:"base"`
	Gpt        GptOpportunityScore `json:"gpt"`
	Safety     SafetyDecision      `json:"safety"`
}

// AlertResult is the per-alert entry of a webhook batch response.
type AlertResult struct {
	AlertID       string                 `json:"alertId"`
	Subreddit     string                 `json:"subreddit"`
	Permalink     string                 `json:"permalink"`
	Duplicate     bool                   `json:"duplicate"`
	Skipped       bool                   `json:"skipped,omitempty"`
	SkipReason    string                 `json:"skipReason,omitempty"`
	OpportunityID string                 `json:"opportunityId,omitempty"`
	Evaluation    *OpportunityEvaluation `json:"evaluation,omitempty"`
}

// BatchOutcome summarizes the processing of one inbound webhook delivery.
type BatchOutcome struct {
	Received   int           `json:"received"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	Results    []AlertResult `json:"results"`
}

// ReviewActionInput is a reviewer's decision about a persisted opportunity.
type ReviewActionInput struct {
	OpportunityID string `json:"opportunityId"`
	Action        string `json:"action"` // approved, rejected or edited
	Reviewer      string `json:"reviewer"`
	FinalReply    string `json:"finalReply,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Permalink     string `json:"permalink,omitempty"`
	Subreddit     string `json:"subreddit,omitempty"`
}

// SubredditCount pairs a subreddit with its action count in a report window.
type SubredditCount struct {
	Subreddit string `json:"subreddit"`
	Count     int    `json:"count"`
}

// WeeklyReport is the aggregate produced by the weekly report generator.
type WeeklyReport struct {
	TotalActions  int              `json:"totalActions"`
	ApprovalRate  float64          `json:"approvalRate"`
	TopSubreddits []SubredditCount `json:"topSubreddits"`
}
