package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"counselor-assistant/internal/logger"
)

// Scheduler управляет запланированными задачами
type Scheduler struct {
	cron       *cron.Cron
	schedule   string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

// New создает планировщик; schedule задается в формате cron из пяти полей, время UTC
func New(schedule string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		schedule: schedule,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetReportFunction устанавливает функцию для генерации отчетов
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start запускает планировщик
func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		logger.Log.Warn("report function not set, scheduler will not generate reports")
		return nil
	}
	if s.schedule == "" {
		return errors.New("empty report schedule")
	}

	_, err := s.cron.AddFunc(s.schedule, s.runReport)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Log.Infow("scheduler started", "schedule", s.schedule, "location", "UTC")
	return nil
}

func (s *Scheduler) runReport() {
	logger.Log.Infow("triggered scheduled report", "schedule", s.schedule)
	if err := s.reportFunc(s.ctx); err != nil {
		logger.Log.Errorw("scheduled report failed", "error", err)
	}
}

// Stop останавливает планировщик и ждет завершения текущего отчета
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	logger.Log.Info("scheduler stopped")
}

// IsRunning проверяет, запущен ли планировщик
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
