package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/charmcoach/reddit-opportunity-bot/internal/alerts"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
	"github.com/charmcoach/reddit-opportunity-bot/internal/opportunity"
	"github.com/charmcoach/reddit-opportunity-bot/internal/report"
)

const maxBodyBytes = 2 << 20 // inbound digests are small; 2MB is generous

// Server exposes the webhook, review and jobs endpoints.
type Server struct {
	opportunities *opportunity.Service
	reports       *report.Service
}

// New creates the HTTP surface around the core services.
func New(opportunities *opportunity.Service, reports *report.Service) *Server {
	return &Server{
		opportunities: opportunities,
		reports:       reports,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/webhooks/f5bot-email", s.handleInboundEmail).Methods("POST")
	router.HandleFunc("/review/actions", s.handleReviewAction).Methods("POST")
	router.HandleFunc("/jobs/weekly-report", s.handleWeeklyReport).Methods("POST")
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInboundEmail accepts a forwarded email digest, normalizes it into
// alerts and runs each one through the evaluation pipeline. The caller
// always receives counts, even when every alert was skipped; a hard
// evaluation failure turns into a generic 400 with no internal detail.
func (s *Server) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	var payload alerts.InboundPayload
	if err := decodeBody(w, r, &payload); err != nil {
		logrus.Warnf("Rejected malformed inbound email payload: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid webhook payload"})
		return
	}

	batch := alerts.ParseInboundBatch(payload)
	logrus.Infof("Inbound email digest produced %d alerts", len(batch))

	outcome, err := s.opportunities.ProcessBatch(r.Context(), batch)
	if err != nil {
		logrus.Errorf("Failed processing inbound email batch: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to process webhook"})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleReviewAction(w http.ResponseWriter, r *http.Request) {
	var input models.ReviewActionInput
	if err := decodeBody(w, r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid review payload"})
		return
	}

	if reason := validateReviewAction(input); reason != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": reason})
		return
	}

	if err := s.opportunities.LogReviewAction(r.Context(), input); err != nil {
		logrus.Errorf("Failed to log review action: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to record review action"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.reports.GenerateWeeklyReport(r.Context())
	if err != nil {
		logrus.Errorf("Failed to generate weekly report: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to generate report"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "report": result})
}

func validateReviewAction(input models.ReviewActionInput) string {
	if input.OpportunityID == "" {
		return "opportunityId is required"
	}
	if input.Reviewer == "" {
		return "reviewer is required"
	}
	switch input.Action {
	case "approved", "rejected", "edited":
		return ""
	default:
		return "action must be approved, rejected or edited"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}
