package scorer

import (
	"context"

	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

// Scorer defines the contract for the external opportunity scoring call.
type Scorer interface {
	ScoreOpportunity(ctx context.Context, alert models.NormalizedAlert, mentionPolicy models.MentionPolicy) (models.GptOpportunityScore, error)
}
