package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/core"
	"github.com/pvieira/domain-sentry/internal/monitor"
	"github.com/pvieira/domain-sentry/internal/rules"
)

type Config struct {
	Interval    time.Duration
	WorkerCount int
	QueueSize   int
}

// Scheduler finds rules whose check interval has elapsed and hands them to
// a pool of workers. Each job is one rule's check cycle; jobs for
// different domains run concurrently.
type Scheduler struct {
	rules   *rules.Store
	service *monitor.Service
	logger  *zap.Logger
	cfg     Config
	wg      sync.WaitGroup
}

func New(ruleStore *rules.Store, service *monitor.Service, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Scheduler{
		rules:   ruleStore,
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
}

type checkJob struct {
	ruleID string
	domain string
}

// Start runs the scheduling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting scheduler",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("worker_count", s.cfg.WorkerCount),
	)

	queue := make(chan checkJob, s.cfg.QueueSize)
	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, queue)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping scheduler")
			close(queue)
			s.wg.Wait()
			return
		case <-ticker.C:
			s.scheduleDue(queue)
		}
	}
}

func (s *Scheduler) scheduleDue(queue chan<- checkJob) {
	now := time.Now()
	for _, rule := range s.rules.Enabled() {
		if !due(rule, now) {
			continue
		}
		job := checkJob{ruleID: rule.ID, domain: rule.Domain}
		select {
		case queue <- job:
			s.logger.Debug("scheduled check", zap.String("domain", rule.Domain))
		default:
			s.logger.Warn("check queue full, dropping job", zap.String("domain", rule.Domain))
		}
	}
}

func due(rule *core.MonitoringRule, now time.Time) bool {
	if rule.LastChecked == nil {
		return true
	}
	interval := time.Duration(rule.CheckIntervalHours) * time.Hour
	return now.Sub(*rule.LastChecked) >= interval
}

func (s *Scheduler) worker(ctx context.Context, id int, queue <-chan checkJob) {
	defer s.wg.Done()
	logger := s.logger.With(zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-queue:
			if !ok {
				return
			}
			outcome, err := s.service.CheckRule(ctx, job.ruleID)
			switch {
			case errors.Is(err, monitor.ErrRateLimited):
				logger.Debug("scheduled check rate limited", zap.String("domain", job.domain))
			case errors.Is(err, monitor.ErrRuleNotFound):
				// Rule deleted between scheduling and execution.
			case err != nil:
				logger.Error("scheduled check failed", zap.String("domain", job.domain), zap.Error(err))
			default:
				logger.Debug("scheduled check finished",
					zap.String("domain", job.domain),
					zap.String("status", string(outcome.Status)),
				)
			}
		}
	}
}
