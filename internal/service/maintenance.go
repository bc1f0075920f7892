package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PurgeExpiredResetTokens гасит просроченные токены сброса пароля.
func (s *Service) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpiredResetTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired reset tokens purged", zap.Int64("count", n))
	}
	return n, nil
}

// StartMaintenance запускает периодические задачи обслуживания и блокируется
// до отмены ctx.
func (s *Service) StartMaintenance(ctx context.Context) error {
	sched := cron.New(cron.WithLocation(time.UTC))

	_, err := sched.AddFunc("@daily", func() {
		if _, err := s.PurgeExpiredResetTokens(ctx); err != nil {
			s.logger.Error("purge reset tokens error", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}

	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}
