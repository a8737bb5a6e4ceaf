package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/token_ledger/internal/app/metrics"
	"github.com/R3E-Network/token_ledger/internal/app/system"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	"github.com/robfig/cron/v3"
)

// DefaultRewardSchedule runs distribution once a day at midnight UTC.
const DefaultRewardSchedule = "0 0 * * *"

var _ system.Service = (*RewardScheduler)(nil)

// RewardScheduler triggers DistributeDailyRewards on a cron schedule, acting
// as the ledger owner.
type RewardScheduler struct {
	service  *Service
	schedule string
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
	runs    int
	last    uint64
}

// NewRewardScheduler validates schedule and returns an idle scheduler.
func NewRewardScheduler(service *Service, schedule string, log *logger.Logger) (*RewardScheduler, error) {
	if service == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if schedule == "" {
		schedule = DefaultRewardSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse reward schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logger.NewDefault("ledger-rewards")
	}
	return &RewardScheduler{
		service:  service,
		schedule: schedule,
		timeout:  5 * time.Minute,
		log:      log,
	}, nil
}

func (r *RewardScheduler) Name() string { return "ledger-reward-scheduler" }

func (r *RewardScheduler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(r.schedule, func() { r.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule reward distribution: %w", err)
	}
	c.Start()
	r.cron = c
	r.cancel = cancel
	r.running = true
	r.log.Infof("reward scheduler started (%s)", r.schedule)
	return nil
}

func (r *RewardScheduler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	cancel := r.cancel
	r.running = false
	r.cron = nil
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// RunOnce performs one full distribution and returns the amount minted.
func (r *RewardScheduler) RunOnce(ctx context.Context) uint64 {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.service.DistributeDailyRewards(runCtx, r.service.Config().Owner)
	r.mu.Lock()
	r.runs++
	r.last = total
	r.mu.Unlock()
	metrics.RecordRewardRun(total, err == nil)
	if err != nil {
		r.log.WithError(err).Warn("reward distribution failed")
		return total
	}
	r.log.WithField("distributed", total).Info("reward distribution completed")
	return total
}

// Stats returns the number of runs and the amount minted by the latest.
func (r *RewardScheduler) Stats() (runs int, lastDistributed uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.last
}
