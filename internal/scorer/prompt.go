package scorer

import (
	"fmt"

	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

const systemPrompt = `You are evaluating a Reddit marketing opportunity for CharmCoach.

CharmCoach is best at helping users craft confident, respectful, playful text replies quickly.
It should only be mentioned when natural and appropriate.

Safety constraints:
- Never exploit sensitive emotional contexts.
- Avoid insensitive, manipulative, or predatory wording.
- If context is emotionally vulnerable, provide supportive value-only drafts.

Respond with JSON only, using exactly these keys:
relevance, advertisingFit, brandFit, conversationNaturalness, sensitivityRisk (numbers 0-100),
focusSummary (string), shortReplyIdeas (2-4 short strings), rationale (string),
mentionRecommendation ("always"|"optional"|"never"),
responseDraftsBrandMentioned (array of strings), responseDraftsValueOnly (array of strings).`

// buildUserPrompt renders the alert context and the task for the model.
func buildUserPrompt(alert models.NormalizedAlert, mentionPolicy models.MentionPolicy) string {
	return fmt.Sprintf(`Task:
1) Score this opportunity from 0-100 for each dimension:
   relevance, advertisingFit, brandFit, conversationNaturalness, sensitivityRisk
2) Give a brief rationale.
3) Return mentionRecommendation: always|optional|never.
4) Provide 3-5 short draft replies that mention CharmCoach naturally.
5) Provide 3-5 short draft replies that provide value without mentioning CharmCoach.

Context:
- Subreddit: r/%s
- Author: %s
- Permalink: %s
- Title: %s
- Body snippet: %s
- Mention policy from keyword engine: %s

Output JSON only.`,
		alert.Subreddit,
		alert.Author,
		alert.Permalink,
		alert.Title,
		alert.BodySnippet,
		mentionPolicy,
	)
}
