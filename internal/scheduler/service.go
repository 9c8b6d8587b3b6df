package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/charmcoach/reddit-opportunity-bot/internal/config"
	"github.com/charmcoach/reddit-opportunity-bot/internal/report"
)

// Service handles scheduling of the periodic report job
type Service struct {
	config        *config.Config
	reportService *report.Service
	cron          *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, reportService *report.Service) *Service {
	return &Service{
		config:        cfg,
		reportService: reportService,
		cron:          cron.New(cron.WithSeconds()),
	}
}

// Start begins the weekly report schedule (Mondays at the configured UTC hour).
func (s *Service) Start() error {
	expression := fmt.Sprintf("0 0 %d * * MON", s.config.WeeklyReportHourUTC)

	_, err := s.cron.AddFunc(expression, func() {
		logrus.Info("Starting scheduled weekly report run")
		if _, err := s.reportService.GenerateWeeklyReport(context.Background()); err != nil {
			logrus.Errorf("Scheduled weekly report run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, weekly report on Mondays at %02d:00 UTC", s.config.WeeklyReportHourUTC)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
