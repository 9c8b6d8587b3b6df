package opportunity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charmcoach/reddit-opportunity-bot/internal/config"
	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
	"github.com/charmcoach/reddit-opportunity-bot/internal/notifications"
	"github.com/charmcoach/reddit-opportunity-bot/internal/safety"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scorer"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scoring"
)

// Skip reasons reported in webhook results.
const (
	SkipMissingPermalink = "missing_permalink"
	SkipNotAllowlisted   = "subreddit_not_allowlisted"
)

const (
	dedupeRange    = ledger.TabRawAlerts + "!H:H"
	subredditRange = ledger.TabSubredditRules + "!A:E"
	maxDrafts      = 5
)

// Service orchestrates the evaluation of incoming alerts: dedupe, scoring,
// safety gating, score fusion, persistence and notification.
type Service struct {
	config   *config.Config
	ledger   ledger.Ledger
	engine   *scoring.Engine
	scorer   scorer.Scorer
	notifier notifications.NotificationInterface
}

// NewService creates a new opportunity orchestrator.
func NewService(cfg *config.Config, lgr ledger.Ledger, engine *scoring.Engine, sc scorer.Scorer, notifier notifications.NotificationInterface) *Service {
	return &Service{
		config:   cfg,
		ledger:   lgr,
		engine:   engine,
		scorer:   sc,
		notifier: notifier,
	}
}

// ProcessBatch evaluates each alert of a batch sequentially, so a later
// alert observes the dedupe row written by an earlier one, and tallies
// the per-alert outcomes.
func (s *Service) ProcessBatch(ctx context.Context, batch []models.NormalizedAlert) (*models.BatchOutcome, error) {
	outcome := &models.BatchOutcome{
		Received: len(batch),
		Results:  make([]models.AlertResult, 0, len(batch)),
	}

	for _, alert := range batch {
		result, err := s.ProcessIncomingAlert(ctx, alert)
		if err != nil {
			return nil, fmt.Errorf("failed processing alert %s: %w", alert.AlertID, err)
		}

		switch {
		case result.Skipped:
			outcome.Skipped++
		case result.Duplicate:
			outcome.Duplicates++
		default:
			outcome.Processed++
		}
		outcome.Results = append(outcome.Results, result)
	}

	return outcome, nil
}

// ProcessIncomingAlert runs one alert through the full evaluation pipeline.
// Policy skips and duplicates are first-class outcomes, not errors; ledger
// and external-scorer failures propagate.
func (s *Service) ProcessIncomingAlert(ctx context.Context, alert models.NormalizedAlert) (models.AlertResult, error) {
	result := models.AlertResult{
		AlertID:   alert.AlertID,
		Subreddit: alert.Subreddit,
		Permalink: alert.Permalink,
	}

	if alert.Permalink == "" {
		logrus.Warnf("Skipping alert %s without permalink", alert.AlertID)
		result.Duplicate = true
		result.Skipped = true
		result.SkipReason = SkipMissingPermalink
		return result, nil
	}

	if !s.subredditAllowed(alert.Subreddit) {
		logrus.Infof("Skipping alert in r/%s outside subreddit allowlist", alert.Subreddit)
		result.Skipped = true
		result.SkipReason = SkipNotAllowlisted
		return result, nil
	}

	seen, err := s.alreadySeen(ctx, alert.DedupeHash)
	if err != nil {
		return result, err
	}
	if seen {
		result.Duplicate = true
		return result, nil
	}

	if err := s.ledger.AppendRows(ctx, ledger.TabRawAlerts, [][]string{{
		alert.ReceivedAtIso,
		alert.Source,
		alert.Subreddit,
		alert.Author,
		alert.Permalink,
		alert.Title,
		alert.BodySnippet,
		alert.DedupeHash,
		alert.AlertID,
		alert.FullText,
	}}); err != nil {
		return result, fmt.Errorf("failed to persist raw alert: %w", err)
	}

	base, err := s.engine.Score(ctx, alert)
	if err != nil {
		return result, err
	}

	selfPromoAllowed, err := s.subredditSelfPromoAllowed(ctx, alert.Subreddit)
	if err != nil {
		return result, err
	}

	decision := safety.Evaluate(fmt.Sprintf("%s %s %s", alert.Title, alert.BodySnippet, alert.FullText), selfPromoAllowed)

	// Hard-blocked content never reaches the external scorer; a fixed
	// fallback stands in, guaranteeing zero model spend and zero
	// brand-mention drafts.
	var gpt models.GptOpportunityScore
	if decision.Allowed {
		gpt, err = s.scorer.ScoreOpportunity(ctx, alert, base.RecommendedMentionPolicy)
		if err != nil {
			return result, err
		}
	} else {
		gpt = blockedFallback()
	}

	composite := compositeGptScore(gpt)
	finalScore := scoring.ClampScore(float64(base.BaseScore)*0.45 + float64(composite)*0.55 - riskPenaltyFor(decision.RiskLabel))

	status := models.StatusDoNotTouch
	if decision.Allowed {
		status = statusFromScore(finalScore)
	}

	mentionPolicy := resolveMentionPolicy(base.RecommendedMentionPolicy, gpt.MentionRecommendation, decision.ForceValueOnly)
	opportunityID := sha256Hex(fmt.Sprintf("%s|%s", alert.Permalink, alert.DedupeHash))[:16]

	if err := s.persistOpportunity(ctx, opportunityID, alert, base, composite, finalScore, status, decision, mentionPolicy, gpt); err != nil {
		return result, err
	}

	if err := s.persistDrafts(ctx, opportunityID, mentionPolicy, decision.RiskLabel, gpt); err != nil {
		return result, err
	}

	if err := s.recordMetric(ctx, "opportunities_processed", 1, string(status), alert.Subreddit, ""); err != nil {
		return result, err
	}
	if !decision.Allowed {
		if err := s.recordMetric(ctx, "opportunities_blocked", 1, string(decision.RiskLabel), alert.Subreddit, ""); err != nil {
			return result, err
		}
	}

	if finalScore >= s.config.AlertMinScore && status != models.StatusDoNotTouch {
		message := fmt.Sprintf("Hot opportunity %s (%d) in r/%s: %s", status, finalScore, alert.Subreddit, alert.Permalink)
		if err := s.notifier.NotifyHighPriority(ctx, message); err != nil {
			// Notification delivery is best effort.
			logrus.Errorf("Failed to send high-priority notification: %v", err)
		}
	}

	result.OpportunityID = opportunityID
	result.Evaluation = &models.OpportunityEvaluation{
		FinalScore: finalScore,
		Status:     status,
		Base:       base,
		Gpt:        gpt,
		Safety:     decision,
	}
	return result, nil
}

// LogReviewAction appends a reviewer decision to the actions ledger. Review
// actions are append-only records; the original evaluation row is never
// mutated.
func (s *Service) LogReviewAction(ctx context.Context, input models.ReviewActionInput) error {
	nowIso := time.Now().UTC().Format(time.RFC3339)

	if err := s.ledger.AppendRows(ctx, ledger.TabActions, [][]string{{
		nowIso,
		input.OpportunityID,
		input.Action,
		input.Reviewer,
		input.FinalReply,
		input.Notes,
		input.Permalink,
		input.Subreddit,
	}}); err != nil {
		return fmt.Errorf("failed to persist review action: %w", err)
	}

	return s.recordMetric(ctx, fmt.Sprintf("review_%s", input.Action), 1, input.Subreddit, "", input.Notes)
}

func (s *Service) subredditAllowed(subreddit string) bool {
	rules := s.config.SubredditAllowlist
	if len(rules) == 0 {
		return true
	}

	normalized := strings.ToLower(strings.TrimSpace(subreddit))
	for _, rule := range rules {
		rule = strings.ToLower(rule)
		if strings.HasSuffix(rule, "*") {
			if strings.HasPrefix(normalized, strings.TrimSuffix(rule, "*")) {
				return true
			}
			continue
		}
		if normalized == rule {
			return true
		}
	}
	return false
}

// alreadySeen scans the dedupe-hash column of the raw alert ledger. The
// check is check-then-act: two concurrent deliveries of the same alert can
// race past it, which is acceptable for best-effort suppression.
func (s *Service) alreadySeen(ctx context.Context, dedupeHash string) (bool, error) {
	rows, err := s.ledger.ReadRange(ctx, dedupeRange)
	if err != nil {
		return false, fmt.Errorf("failed to read dedupe column: %w", err)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		if len(row) > 0 && row[0] == dedupeHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) subredditSelfPromoAllowed(ctx context.Context, subreddit string) (bool, error) {
	rows, err := s.ledger.ReadRange(ctx, subredditRange)
	if err != nil {
		return false, fmt.Errorf("failed to read subreddit rules: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(subreddit))
	for _, rule := range scoring.ParseSubredditRules(rows) {
		if rule.Subreddit == needle {
			return rule.SelfPromoAllowed, nil
		}
	}

	// No rule configured for this subreddit: neutral default.
	return true, nil
}

func (s *Service) persistOpportunity(ctx context.Context, opportunityID string, alert models.NormalizedAlert, base models.BaseScoreResult, composite, finalScore int, status models.Status, decision models.SafetyDecision, mentionPolicy models.MentionPolicy, gpt models.GptOpportunityScore) error {
	matched := make([]string, 0, len(base.MatchedKeywords))
	for _, match := range base.MatchedKeywords {
		matched = append(matched, fmt.Sprintf("%s:%g", match.Keyword, match.Importance))
	}

	if err := s.ledger.AppendRows(ctx, ledger.TabOpportunities, [][]string{{
		opportunityID,
		alert.ReceivedAtIso,
		alert.Permalink,
		alert.Subreddit,
		strings.Join(matched, ","),
		strconv.Itoa(base.BaseScore),
		strconv.Itoa(composite),
		strconv.Itoa(finalScore),
		string(status),
		string(decision.RiskLabel),
		string(mentionPolicy),
		buildOperatorBrief(gpt),
		"pending",
		"",
	}}); err != nil {
		return fmt.Errorf("failed to persist opportunity: %w", err)
	}

	return nil
}

func (s *Service) persistDrafts(ctx context.Context, opportunityID string, mentionPolicy models.MentionPolicy, riskLabel models.RiskLabel, gpt models.GptOpportunityScore) error {
	nowIso := time.Now().UTC().Format(time.RFC3339)
	var drafts [][]string

	if mentionPolicy != models.MentionNever {
		for _, reply := range capDrafts(gpt.ResponseDraftsBrandMentioned) {
			drafts = append(drafts, []string{opportunityID, "brandMentioned", reply, string(riskLabel), "0.8", nowIso, ""})
		}
	}
	for _, reply := range capDrafts(gpt.ResponseDraftsValueOnly) {
		drafts = append(drafts, []string{opportunityID, "valueOnly", reply, string(riskLabel), "0.8", nowIso, ""})
	}

	if err := s.ledger.AppendRows(ctx, ledger.TabDraftReplies, drafts); err != nil {
		return fmt.Errorf("failed to persist draft replies: %w", err)
	}

	return nil
}

func (s *Service) recordMetric(ctx context.Context, name string, value float64, dimensionA, dimensionB, notes string) error {
	now := time.Now().UTC()

	if err := s.ledger.AppendRows(ctx, ledger.TabMetrics, [][]string{{
		now.Format("2006-01-02"),
		name,
		strconv.FormatFloat(value, 'f', -1, 64),
		dimensionA,
		dimensionB,
		notes,
		now.Format(time.RFC3339),
	}}); err != nil {
		return fmt.Errorf("failed to record metric %s: %w", name, err)
	}

	return nil
}

// compositeGptScore fuses the model's dimensions into one 0-100 number.
// The negative weight on sensitivityRisk means a maximally risky context
// can erase the entire composite.
func compositeGptScore(gpt models.GptOpportunityScore) int {
	return scoring.ClampScore(gpt.Relevance*0.30 +
		gpt.AdvertisingFit*0.25 +
		gpt.BrandFit*0.20 +
		gpt.ConversationNaturalness*0.20 -
		gpt.SensitivityRisk*0.25)
}

func riskPenaltyFor(label models.RiskLabel) float64 {
	switch label {
	case models.RiskCritical:
		return 60
	case models.RiskHigh:
		return 25
	case models.RiskMedium:
		return 10
	default:
		return 0
	}
}

func statusFromScore(score int) models.Status {
	switch {
	case score >= 80:
		return models.StatusHot
	case score >= 60:
		return models.StatusWarm
	case score >= 35:
		return models.StatusLow
	default:
		return models.StatusDoNotTouch
	}
}

// resolveMentionPolicy merges the rule-engine and model recommendations.
// never dominates always; safety forcing value-only means never.
func resolveMentionPolicy(base, gpt models.MentionPolicy, forceValueOnly bool) models.MentionPolicy {
	if forceValueOnly {
		return models.MentionNever
	}
	if base == models.MentionNever || gpt == models.MentionNever {
		return models.MentionNever
	}
	if base == models.MentionAlways || gpt == models.MentionAlways {
		return models.MentionAlways
	}
	return models.MentionOptional
}

func buildOperatorBrief(gpt models.GptOpportunityScore) string {
	var ideas []string
	for _, idea := range gpt.ShortReplyIdeas {
		if trimmed := strings.TrimSpace(idea); trimmed != "" {
			ideas = append(ideas, trimmed)
		}
	}
	if len(ideas) > 3 {
		ideas = ideas[:3]
	}

	return fmt.Sprintf("Focus: %s\nSay: %s\nWhy: %s",
		strings.TrimSpace(gpt.FocusSummary),
		strings.Join(ideas, " | "),
		strings.TrimSpace(gpt.Rationale))
}

// blockedFallback is the external score substituted for hard-blocked
// content: zero on every quality dimension, maximum sensitivity risk and
// no brand-mention drafts.
func blockedFallback() models.GptOpportunityScore {
	return models.GptOpportunityScore{
		SensitivityRisk: 100,
		FocusSummary:    "Skip outreach: safety policy flagged this context as not suitable for marketing.",
		ShortReplyIdeas: []string{
			"Offer empathy first.",
			"Avoid brand mention.",
		},
		Rationale:               "Opportunity blocked by safety policy",
		MentionRecommendation:   models.MentionNever,
		ResponseDraftsValueOnly: []string{},
	}
}

func capDrafts(drafts []string) []string {
	if len(drafts) > maxDrafts {
		return drafts[:maxDrafts]
	}
	return drafts
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
