package scorer

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

const (
	minReplyIdeas = 2
	maxReplyIdeas = 4
)

// OpenAIScorer scores opportunities with an OpenAI chat model and validates
// the response against the expected schema before handing it back.
type OpenAIScorer struct {
	client *openai.Client
	model  string
}

// Ensure OpenAIScorer implements Scorer
var _ Scorer = (*OpenAIScorer)(nil)

// NewOpenAIScorer creates a scorer backed by the OpenAI API.
func NewOpenAIScorer(apiKey, model string) *OpenAIScorer {
	return &OpenAIScorer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// ScoreOpportunity asks the model to judge relevance, fit and risk for one
// alert and to produce draft replies. A response that fails schema
// validation is a hard error; the caller decides retry or drop.
func (s *OpenAIScorer) ScoreOpportunity(ctx context.Context, alert models.NormalizedAlert, mentionPolicy models.MentionPolicy) (models.GptOpportunityScore, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(alert, mentionPolicy),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.GptOpportunityScore{}, fmt.Errorf("opportunity scoring request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.GptOpportunityScore{}, fmt.Errorf("opportunity scoring returned no choices")
	}

	var score models.GptOpportunityScore
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &score); err != nil {
		return models.GptOpportunityScore{}, fmt.Errorf("failed to decode opportunity score: %w", err)
	}

	if err := ValidateScore(score); err != nil {
		return models.GptOpportunityScore{}, fmt.Errorf("opportunity score failed validation: %w", err)
	}

	logrus.Debugf("Scored alert %s: relevance=%.0f sensitivityRisk=%.0f", alert.AlertID, score.Relevance, score.SensitivityRisk)
	return score, nil
}

// ValidateScore checks the model output against the response schema,
// rejecting on the first violation.
func ValidateScore(score models.GptOpportunityScore) error {
	dimensions := []struct {
		name  string
		value float64
	}{
		{"relevance", score.Relevance},
		{"advertisingFit", score.AdvertisingFit},
		{"brandFit", score.BrandFit},
		{"conversationNaturalness", score.ConversationNaturalness},
		{"sensitivityRisk", score.SensitivityRisk},
	}
	for _, dim := range dimensions {
		if dim.value < 0 || dim.value > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got %v", dim.name, dim.value)
		}
	}

	if score.FocusSummary == "" {
		return fmt.Errorf("focusSummary must not be empty")
	}

	if len(score.ShortReplyIdeas) < minReplyIdeas || len(score.ShortReplyIdeas) > maxReplyIdeas {
		return fmt.Errorf("shortReplyIdeas must contain between %d and %d entries, got %d", minReplyIdeas, maxReplyIdeas, len(score.ShortReplyIdeas))
	}

	switch score.MentionRecommendation {
	case models.MentionAlways, models.MentionOptional, models.MentionNever:
	default:
		return fmt.Errorf("mentionRecommendation must be always, optional or never, got %q", score.MentionRecommendation)
	}

	if len(score.ResponseDraftsBrandMentioned) == 0 {
		return fmt.Errorf("responseDraftsBrandMentioned must not be empty")
	}

	if len(score.ResponseDraftsValueOnly) == 0 {
		return fmt.Errorf("responseDraftsValueOnly must not be empty")
	}

	return nil
}
