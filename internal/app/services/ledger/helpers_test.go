package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage/memory"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	"github.com/R3E-Network/token_ledger/pkg/testutil"
	"github.com/shopspring/decimal"
)

const (
	owner  = "admin"
	minter = "minter"
)

var (
	alice = domain.NewAccount("alice")
	bob   = domain.NewAccount("bob")
	carol = domain.NewAccount("carol")
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Owner = owner
	cfg.AuthorizedCallers = []string{minter}
	cfg.TransferFee = 1
	cfg.MinStakeAmount = 100
	cfg.StakingTiers = []domain.StakingTier{
		{LockPeriod: 30 * Day, RewardRate: decimal.RequireFromString("0.05"), MinStake: 100},
		{LockPeriod: 90 * Day, RewardRate: decimal.RequireFromString("0.08"), MinStake: 250},
		{LockPeriod: 180 * Day, RewardRate: decimal.RequireFromString("0.12"), MinStake: 500},
		{LockPeriod: 365 * Day, RewardRate: decimal.RequireFromString("0.18"), MinStake: 1000},
	}
	cfg.EarningRates = map[domain.EarningType]uint64{
		domain.EarningAppointmentCompletion: 50,
		domain.EarningReferralBonus:         200,
		domain.EarningPlatformUsage:         5,
	}
	cfg.SpendingCosts = map[domain.SpendingType]uint64{
		domain.SpendingAIInsights:   20,
		domain.SpendingTelemedicine: 100,
	}
	cfg.Faucet = FaucetConfig{Enabled: true, ClaimAmount: 100, AccountLimit: 100, DailyLimit: 100}
	return cfg
}

type fixture struct {
	svc   *Service
	store *memory.Store
	clock *testutil.Clock
}

func newFixture(t *testing.T, mutate func(*Config)) fixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := memory.New()
	svc, err := New(store, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	clock := testutil.NewClock(time.Time{})
	svc.WithClock(clock.Now)
	return fixture{svc: svc, store: store, clock: clock}
}

func (f fixture) mint(t *testing.T, to domain.Account, amount uint64) {
	t.Helper()
	if _, err := f.svc.Mint(context.Background(), minter, to, amount, nil); err != nil {
		t.Fatalf("mint %d to %s: %v", amount, to, err)
	}
}

func assertConserved(t *testing.T, svc *Service) {
	t.Helper()
	h := svc.HealthCheck()
	if !h.Conserved {
		t.Fatalf("conservation violated: supply=%d circulating=%d staked=%d", h.TotalSupply, h.CirculatingSum, h.StakedSum)
	}
}

func insufficientBalance(err error) (uint64, bool) {
	var ife *InsufficientFundsError
	if errors.As(err, &ife) {
		return ife.Balance, true
	}
	return 0, false
}

func u64(v uint64) *uint64 { return &v }

type recordingObserver struct {
	mu     sync.Mutex
	codes  map[string][]string
	supply uint64
}

func (o *recordingObserver) OperationCompleted(op, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = make(map[string][]string)
	}
	o.codes[op] = append(o.codes[op], code)
}

func (o *recordingObserver) SupplyChanged(total uint64, _, _ int) {
	o.mu.Lock()
	o.supply = total
	o.mu.Unlock()
}
