package retention

import (
	"context"
	"log/slog"
	"time"
)

type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	repo          Pruner
	retentionDays int
	log           *slog.Logger
	now           func() time.Time
}

func NewService(repo Pruner, days int, logger *slog.Logger) *Service {
	if days <= 0 {
		days = 30
	}
	return &Service{repo: repo, retentionDays: days, log: logger, now: time.Now}
}

func (s *Service) Run(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("retention cleanup failed", "err", err)
		return
	}
	s.log.Info("retention cleanup completed", "cutoff", cutoff, "deleted", n)
}
