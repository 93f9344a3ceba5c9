package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	obsmetrics "github.com/smallbiznis/floorquote/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobExpirePendingLeads = "expire_pending_leads"
	jobDistributeVerified = "distribute_verified_leads"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Distributions distributiondomain.Service
	Metrics       *obsmetrics.Metrics `optional:"true"`
	JobMetrics    *JobMetrics         `optional:"true"`
	Config        Config              `optional:"true"`
}

// Scheduler runs periodic lead maintenance.
type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	distributions distributiondomain.Service
	metrics       *obsmetrics.Metrics
	jobMetrics    *JobMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Distributions == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		distributions: p.Distributions,
		metrics:       p.Metrics,
		jobMetrics:    p.JobMetrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	processed, err := fn(ctx)
	end := s.clock.Now()
	s.jobMetrics.observe(name, processed, end.Sub(start), err != nil, end)
	fields := []zap.Field{
		zap.String("job", name),
		zap.Int("processed", processed),
		zap.Duration("duration", end.Sub(start)),
	}
	if err != nil {
		s.metrics.RecordJobRun(ctx, name, "error")
		s.log.Warn("scheduler job failed", append(fields, zap.Error(err))...)
		return err
	}
	s.metrics.RecordJobRun(ctx, name, "ok")
	if processed > 0 {
		s.log.Info("scheduler job finished", fields...)
	}
	return nil
}

// RunOnce runs every job a single time and returns the first failure.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, job := range []struct {
		name string
		fn   func(ctx context.Context) (int, error)
	}{
		{jobExpirePendingLeads, s.ExpirePendingLeadsJob},
		{jobDistributeVerified, s.DistributeVerifiedLeadsJob},
	} {
		if err := s.runJob(ctx, job.name, job.fn); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpirePendingLeadsJob expires leads that never completed verification.
func (s *Scheduler) ExpirePendingLeadsJob(ctx context.Context) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.PendingLeadTTL)

	var ids []int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM leads
		 WHERE verification_status = ? AND created_at < ?
		 ORDER BY created_at
		 LIMIT ?`,
		leaddomain.VerificationPending,
		cutoff,
		s.cfg.BatchSize,
	).Scan(&ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE leads SET verification_status = ?, updated_at = ?
		 WHERE id IN ? AND verification_status = ?`,
		leaddomain.VerificationExpired,
		now,
		ids,
		leaddomain.VerificationPending,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// DistributeVerifiedLeadsJob distributes recently verified leads that have
// no distribution or payment records yet.
func (s *Scheduler) DistributeVerifiedLeadsJob(ctx context.Context) (int, error) {
	since := s.clock.Now().Add(-s.cfg.DistributeLookback)

	var ids []int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT l.id FROM leads l
		 WHERE l.verification_status = ? AND l.status = ? AND l.verified_at >= ?
		   AND NOT EXISTS (SELECT 1 FROM lead_distributions d WHERE d.lead_id = l.id)
		   AND NOT EXISTS (SELECT 1 FROM payment_transactions t WHERE t.lead_id = l.id)
		 ORDER BY l.verified_at
		 LIMIT ?`,
		leaddomain.VerificationVerified,
		leaddomain.StatusNew,
		since,
		s.cfg.BatchSize,
	).Scan(&ids).Error; err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		leadID := snowflake.ID(id).String()
		report, err := s.distributions.Distribute(ctx, leadID)
		switch {
		case errors.Is(err, distributiondomain.ErrDistributionInProgress):
			continue
		case err != nil:
			s.log.Warn("auto distribution failed", zap.String("lead_id", leadID), zap.Error(err))
			continue
		}
		processed++
		s.log.Debug("lead auto distributed",
			zap.String("lead_id", leadID),
			zap.Int("candidates", report.Candidates),
			zap.Int("distributed", report.Distributed),
		)
	}
	return processed, nil
}
