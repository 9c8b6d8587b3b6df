package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/charmcoach/reddit-opportunity-bot/internal/config"
	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

// Service handles sending notifications via Slack and email
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

type slackMessage struct {
	Text string `json:"text"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// NotifyHighPriority posts a single-line alert to the Slack webhook.
// Delivery is best effort; callers are expected to log and move on.
func (s *Service) NotifyHighPriority(ctx context.Context, message string) error {
	if s.config.SlackWebhookURL == "" {
		logrus.Debug("Skipping Slack alert (no webhook configured)")
		return nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(slackMessage{Text: message}).
		Post(s.config.SlackWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Slack webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

// SendWeeklyReport delivers the weekly aggregate via every configured channel.
func (s *Service) SendWeeklyReport(ctx context.Context, report *models.WeeklyReport) error {
	var errors []string

	if s.config.SlackWebhookURL != "" {
		if err := s.NotifyHighPriority(ctx, buildReportSummary(report)); err != nil {
			logrus.Errorf("Failed to send weekly report to Slack: %v", err)
			errors = append(errors, fmt.Sprintf("Slack: %v", err))
		} else {
			logrus.Info("Successfully sent weekly report to Slack")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendReportEmail(report); err != nil {
			logrus.Errorf("Failed to send weekly report email: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent weekly report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func buildReportSummary(report *models.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly review report: %d actions, %.0f%% approval rate.", report.TotalActions, report.ApprovalRate*100)
	if len(report.TopSubreddits) > 0 {
		parts := make([]string, 0, len(report.TopSubreddits))
		for _, entry := range report.TopSubreddits {
			parts = append(parts, fmt.Sprintf("r/%s (%d)", entry.Subreddit, entry.Count))
		}
		fmt.Fprintf(&b, " Top subreddits: %s", strings.Join(parts, ", "))
	}
	return b.String()
}

func (s *Service) sendReportEmail(report *models.WeeklyReport) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", fmt.Sprintf("Weekly opportunity report - %s", time.Now().Format("2006-01-02")))
	m.SetBody("text/plain", buildReportSummary(report))

	dialer := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
