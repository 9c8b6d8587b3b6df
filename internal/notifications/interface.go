package notifications

import (
	"context"

	"github.com/charmcoach/reddit-opportunity-bot/internal/models"
)

// NotificationInterface defines the contract for notification delivery
type NotificationInterface interface {
	NotifyHighPriority(ctx context.Context, message string) error
	SendWeeklyReport(ctx context.Context, report *models.WeeklyReport) error
}
