package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charmcoach/reddit-opportunity-bot/internal/config"
	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
	"github.com/charmcoach/reddit-opportunity-bot/internal/opportunity"
	"github.com/charmcoach/reddit-opportunity-bot/internal/report"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scoring"
)

type fakeLedger struct {
	appended map[string][][]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{appended: make(map[string][][]string)}
}

func (f *fakeLedger) ReadRange(_ context.Context, readRange string) ([][]string, error) {
	switch {
	case strings.HasPrefix(readRange, ledger.TabKeywords):
		return [][]string{
			ledger.TabHeaders[ledger.TabKeywords],
			{"confidence", "20", "confidence", "optional", "", "true"},
		}, nil
	case strings.HasPrefix(readRange, ledger.TabSubredditRules):
		return [][]string{ledger.TabHeaders[ledger.TabSubredditRules]}, nil
	case readRange == ledger.TabRawAlerts+"!H:H":
		rows := [][]string{{"dedupeHash"}}
		for _, row := range f.appended[ledger.TabRawAlerts] {
			rows = append(rows, []string{row[7]})
		}
		return rows, nil
	default:
		return [][]string{{"header"}}, nil
	}
}

func (f *fakeLedger) AppendRows(_ context.Context, tab string, rows [][]string) error {
	f.appended[tab] = append(f.appended[tab], rows...)
	return nil
}

func (f *fakeLedger) EnsureStructure(_ context.Context) error {
	return nil
}

type stubScorer struct {
	err error
}

func (s *stubScorer) ScoreOpportunity(_ context.Context, _ models.NormalizedAlert, _ models.MentionPolicy) (models.GptOpportunityScore, error) {
	if s.err != nil {
		return models.GptOpportunityScore{}, s.err
	}
	return models.GptOpportunityScore{
		Relevance:               70,
		AdvertisingFit:          60,
		BrandFit:                60,
		ConversationNaturalness: 60,
		SensitivityRisk:         10,
		FocusSummary:            "fine",
		ShortReplyIdeas:         []string{"one", "two"},
		Rationale:               "ok",
		MentionRecommendation:   models.MentionOptional,
		ResponseDraftsValueOnly: []string{"value reply"},
	}, nil
}

type silentNotifier struct{}

func (silentNotifier) NotifyHighPriority(_ context.Context, _ string) error {
	return nil
}

func (silentNotifier) SendWeeklyReport(_ context.Context, _ *models.WeeklyReport) error {
	return nil
}

func newTestServer(scorerErr error) (*Server, *fakeLedger) {
	cfg := &config.Config{AlertMinScore: 70, FreshnessHalfLifeHours: 8}
	lgr := newFakeLedger()
	notifier := silentNotifier{}
	engine := scoring.NewEngine(lgr, cfg.FreshnessHalfLifeHours)
	opportunities := opportunity.NewService(cfg, lgr, engine, &stubScorer{err: scorerErr}, notifier)
	reports := report.NewService(lgr, notifier)
	return New(opportunities, reports), lgr
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestInboundEmail_MalformedPayload(t *testing.T) {
	server, _ := newTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/f5bot-email", strings.NewReader("{not json"))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "Invalid webhook payload", body["error"])
}

func TestInboundEmail_ProcessesDigest(t *testing.T) {
	server, lgr := newTestServer(nil)
	payload := map[string]string{
		"subject":   "F5Bot found something!",
		"messageId": "msg-1",
		"text": "Keyword: confidence\n" +
			"Reddit Post (r/dating): need more confidence when texting\n" +
			"https://www.reddit.com/r/dating/comments/abc123/need_more_confidence/\n",
	}

	recorder := postJSON(t, server.Router(), "/webhooks/f5bot-email", payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	var outcome models.BatchOutcome
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &outcome))
	assert.Equal(t, 1, outcome.Received)
	assert.Equal(t, 1, outcome.Processed)
	assert.Len(t, lgr.appended[ledger.TabOpportunities], 1)
}

func TestInboundEmail_DuplicateDelivery(t *testing.T) {
	server, lgr := newTestServer(nil)
	payload := map[string]string{
		"messageId": "msg-1",
		"text":      "https://www.reddit.com/r/dating/comments/abc123/post/\n",
	}

	first := postJSON(t, server.Router(), "/webhooks/f5bot-email", payload)
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, server.Router(), "/webhooks/f5bot-email", payload)
	require.Equal(t, http.StatusOK, second.Code)

	var outcome models.BatchOutcome
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &outcome))
	assert.Equal(t, 1, outcome.Duplicates)
	assert.Equal(t, 0, outcome.Processed)
	assert.Len(t, lgr.appended[ledger.TabOpportunities], 1)
}

func TestInboundEmail_NothingExtractable(t *testing.T) {
	server, _ := newTestServer(nil)
	payload := map[string]string{
		"subject": "unrelated newsletter",
		"text":    "no links here at all",
	}

	recorder := postJSON(t, server.Router(), "/webhooks/f5bot-email", payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	var outcome models.BatchOutcome
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &outcome))
	assert.Equal(t, 0, outcome.Received)
}

func TestInboundEmail_EvaluationFailureHidesDetail(t *testing.T) {
	server, _ := newTestServer(fmt.Errorf("upstream model exploded: secret detail"))
	payload := map[string]string{
		"text": "https://www.reddit.com/r/dating/comments/abc123/post/\n",
	}

	recorder := postJSON(t, server.Router(), "/webhooks/f5bot-email", payload)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "secret detail")
	assert.Contains(t, recorder.Body.String(), "Failed to process webhook")
}

func TestReviewAction_Validation(t *testing.T) {
	server, _ := newTestServer(nil)

	tests := []struct {
		name    string
		input   models.ReviewActionInput
		wantErr string
	}{
		{
			name:    "missing opportunity id",
			input:   models.ReviewActionInput{Action: "approved", Reviewer: "sam"},
			wantErr: "opportunityId is required",
		},
		{
			name:    "missing reviewer",
			input:   models.ReviewActionInput{OpportunityID: "opp-1", Action: "approved"},
			wantErr: "reviewer is required",
		},
		{
			name:    "unknown action",
			input:   models.ReviewActionInput{OpportunityID: "opp-1", Action: "archived", Reviewer: "sam"},
			wantErr: "action must be approved, rejected or edited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := postJSON(t, server.Router(), "/review/actions", tt.input)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Contains(t, recorder.Body.String(), tt.wantErr)
		})
	}
}

func TestReviewAction_Accepted(t *testing.T) {
	server, lgr := newTestServer(nil)
	input := models.ReviewActionInput{
		OpportunityID: "opp-1",
		Action:        "edited",
		Reviewer:      "sam",
		FinalReply:    "tweaked wording",
	}

	recorder := postJSON(t, server.Router(), "/review/actions", input)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, lgr.appended[ledger.TabActions], 1)
}

func TestWeeklyReportEndpoint(t *testing.T) {
	server, lgr := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/jobs/weekly-report", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, lgr.appended[ledger.TabMetrics])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestRouter_MethodRestrictions(t *testing.T) {
	server, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/f5bot-email", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}
