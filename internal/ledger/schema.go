package ledger

// Tab names in the workbook. Column order below is part of the external
// contract: downstream consumers index rows by position.
const (
	TabKeywords       = "Keywords"
	TabSubredditRules = "SubredditRules"
	TabRawAlerts      = "RawAlerts"
	TabOpportunities  = "Opportunities"
	TabDraftReplies   = "DraftReplies"
	TabActions        = "Actions"
	TabMetrics        = "Metrics"
)

// TabNames lists every tab the bot expects to exist.
var TabNames = []string{
	TabKeywords,
	TabSubredditRules,
	TabRawAlerts,
	TabOpportunities,
	TabDraftReplies,
	TabActions,
	TabMetrics,
}

// TabHeaders maps each tab to its fixed header row.
var TabHeaders = map[string][]string{
	TabKeywords:       {"keyword", "importance", "intentTag", "mentionPolicy", "notes", "active"},
	TabSubredditRules: {"subreddit", "selfPromoAllowed", "riskMultiplier", "priorityBoost", "notes"},
	TabRawAlerts: {
		"receivedAtIso", "source", "subreddit", "author", "permalink",
		"title", "bodySnippet", "dedupeHash", "alertId", "fullText",
	},
	TabOpportunities: {
		"opportunityId", "receivedAtIso", "permalink", "subreddit",
		"matchedKeywords", "sheetBaseScore", "gptScoreComposite",
		"finalScore", "status", "riskLabel", "mentionPolicy", "rationale",
		"reviewStatus", "reviewerOwner",
	},
	TabDraftReplies: {
		"opportunityId", "variant", "replyText", "safetyFlag",
		"confidence", "createdAtIso", "reviewerNotes",
	},
	TabActions: {
		"actionAtIso", "opportunityId", "action", "reviewer",
		"finalReply", "notes", "permalink", "subreddit",
	},
	TabMetrics: {
		"metricDate", "metricName", "metricValue", "dimensionA",
		"dimensionB", "notes", "recordedAtIso",
	},
}
