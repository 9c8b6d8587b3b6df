package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
	"github.com/charmcoach/reddit-opportunity-bot/internal/notifications"
)

const (
	actionsRange       = ledger.TabActions + "!A:H"
	opportunitiesRange = ledger.TabOpportunities + "!A:N"

	reportWindowDays = 7
	topSubredditsCap = 5
)

// Service aggregates review activity into the weekly performance report.
type Service struct {
	ledger   ledger.Ledger
	notifier notifications.NotificationInterface
}

// NewService creates a new report service.
func NewService(lgr ledger.Ledger, notifier notifications.NotificationInterface) *Service {
	return &Service{
		ledger:   lgr,
		notifier: notifier,
	}
}

// GenerateWeeklyReport reads the last seven days of review actions, derives
// the summary metrics, writes them to the metrics ledger and delivers the
// aggregate through the configured notification channels.
func (s *Service) GenerateWeeklyReport(ctx context.Context) (*models.WeeklyReport, error) {
	actions, err := s.ledger.ReadRange(ctx, actionsRange)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}

	opportunities, err := s.ledger.ReadRange(ctx, opportunitiesRange)
	if err != nil {
		return nil, fmt.Errorf("failed to read opportunities: %w", err)
	}

	report := buildReport(actions, opportunities, time.Now())

	if err := s.persistMetrics(ctx, report); err != nil {
		return nil, err
	}

	if err := s.notifier.SendWeeklyReport(ctx, report); err != nil {
		// Delivery is best effort; the report itself already landed in the ledger.
		logrus.Errorf("Failed to deliver weekly report: %v", err)
	}

	logrus.Infof("Weekly report generated: %d actions, %.2f approval rate", report.TotalActions, report.ApprovalRate)
	return report, nil
}

func buildReport(actions, opportunities [][]string, now time.Time) *models.WeeklyReport {
	var actionRows [][]string
	for i, row := range actions {
		if i == 0 {
			continue // header row
		}
		if len(row) > 0 && row[0] != "" && withinWindow(row[0], now) {
			actionRows = append(actionRows, row)
		}
	}

	approvals := 0
	for _, row := range actionRows {
		if cell(row, 2) == "approved" {
			approvals++
		}
	}

	approvalRate := 0.0
	if len(actionRows) > 0 {
		approvalRate = float64(approvals) / float64(len(actionRows))
	}

	// Join each action to its opportunity for the subreddit; fall back to
	// the action's own subreddit column.
	oppSubreddits := make(map[string]string)
	for i, row := range opportunities {
		if i == 0 {
			continue
		}
		if id := cell(row, 0); id != "" {
			oppSubreddits[id] = cell(row, 3)
		}
	}

	counts := make(map[string]int)
	for _, row := range actionRows {
		subreddit := oppSubreddits[cell(row, 1)]
		if subreddit == "" {
			subreddit = cell(row, 7)
		}
		if subreddit == "" {
			subreddit = "unknown"
		}
		counts[subreddit]++
	}

	top := make([]models.SubredditCount, 0, len(counts))
	for subreddit, count := range counts {
		top = append(top, models.SubredditCount{Subreddit: subreddit, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Subreddit < top[j].Subreddit
	})
	if len(top) > topSubredditsCap {
		top = top[:topSubredditsCap]
	}

	return &models.WeeklyReport{
		TotalActions:  len(actionRows),
		ApprovalRate:  approvalRate,
		TopSubreddits: top,
	}
}

func (s *Service) persistMetrics(ctx context.Context, report *models.WeeklyReport) error {
	now := time.Now().UTC()
	date := now.Format("2006-01-02")
	stamp := now.Format(time.RFC3339)

	rows := [][]string{
		{date, "weekly_total_actions", strconv.Itoa(report.TotalActions), "", "", "auto weekly", stamp},
		{date, "weekly_approval_rate", strconv.FormatFloat(report.ApprovalRate, 'f', 4, 64), "", "", "auto weekly", stamp},
	}
	for _, entry := range report.TopSubreddits {
		rows = append(rows, []string{date, "weekly_top_subreddit", strconv.Itoa(entry.Count), entry.Subreddit, "", "auto weekly", stamp})
	}

	if err := s.ledger.AppendRows(ctx, ledger.TabMetrics, rows); err != nil {
		return fmt.Errorf("failed to persist weekly metrics: %w", err)
	}

	return nil
}

func withinWindow(isoLike string, now time.Time) bool {
	ts, err := time.Parse(time.RFC3339, isoLike)
	if err != nil {
		return false
	}
	return now.Sub(ts) <= reportWindowDays*24*time.Hour
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}
