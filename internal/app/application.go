package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/token_ledger/internal/app/metrics"
	ledgersvc "github.com/R3E-Network/token_ledger/internal/app/services/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage"
	"github.com/R3E-Network/token_ledger/internal/app/storage/memory"
	"github.com/R3E-Network/token_ledger/internal/app/system"
	"github.com/R3E-Network/token_ledger/pkg/logger"
)

var _ ledgersvc.Observer = metrics.LedgerObserver{}

// Stores encapsulates persistence dependencies. A nil Ledger store defaults
// to the in-memory implementation; a nil Sink disables publication.
type Stores struct {
	Ledger storage.LedgerStore
	Sink   storage.TransactionSink
}

// Options configures the ledger engine and its background jobs.
type Options struct {
	Ledger ledgersvc.Config
	// RewardSchedule is a cron expression for daily reward distribution.
	// Empty disables the scheduler.
	RewardSchedule string
}

// Application ties the ledger engine to its background services and manages
// their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Ledger  *ledgersvc.Service
	Rewards *ledgersvc.RewardScheduler
}

// New builds the application and loads persisted ledger state.
func New(ctx context.Context, stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Ledger == nil {
		log.Warn("no ledger store configured; using in-memory storage")
		stores.Ledger = memory.New()
	}

	ledger, err := ledgersvc.New(stores.Ledger, opts.Ledger, log.Named("ledger"))
	if err != nil {
		return nil, fmt.Errorf("configure ledger: %w", err)
	}
	ledger.WithObserver(metrics.LedgerObserver{})
	if stores.Sink != nil {
		ledger.WithSink(stores.Sink)
	}
	if err := ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	manager := system.NewManager()
	if err := manager.Register(system.NoopService{ServiceName: "ledger"}); err != nil {
		return nil, fmt.Errorf("register ledger service: %w", err)
	}
	if svc, ok := stores.Sink.(system.Service); ok {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	application := &Application{manager: manager, log: log, Ledger: ledger}
	if opts.RewardSchedule != "" {
		rewards, err := ledgersvc.NewRewardScheduler(ledger, opts.RewardSchedule, log.Named("rewards"))
		if err != nil {
			return nil, err
		}
		if err := manager.Register(rewards); err != nil {
			return nil, fmt.Errorf("register %s: %w", rewards.Name(), err)
		}
		application.Rewards = rewards
	} else {
		log.Warn("reward schedule not set; daily distribution disabled")
	}
	return application, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists registered service names in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
