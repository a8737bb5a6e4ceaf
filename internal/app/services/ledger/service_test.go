package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage/memory"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	"github.com/R3E-Network/token_ledger/pkg/testutil"
)

func TestNewRequiresOwner(t *testing.T) {
	cfg := testConfig()
	cfg.Owner = " "
	if _, err := New(memory.New(), cfg, logger.NewNop()); err == nil {
		t.Fatalf("expected error for missing owner")
	}
	if _, err := New(nil, testConfig(), logger.NewNop()); err == nil {
		t.Fatalf("expected error for missing store")
	}
}

func TestLoadRestoresState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mint(t, alice, 1_000)
	created := f.clock.Now()
	transfer := TransferArgs{From: alice, To: bob, Amount: 100, CreatedAt: &created}
	if _, err := f.svc.Transfer(ctx, "alice", transfer); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := f.svc.Stake(ctx, "alice", alice, 500, 30*Day); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := f.svc.ClaimFaucetTokens(ctx, "carol", carol); err != nil {
		t.Fatalf("faucet: %v", err)
	}
	if err := f.svc.AddAuthorizedCaller(ctx, owner, "billing"); err != nil {
		t.Fatalf("add caller: %v", err)
	}

	restored, err := New(f.store, testConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	restored.WithClock(f.clock.Now)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if restored.BalanceOf(alice) != f.svc.BalanceOf(alice) || restored.BalanceOf(bob) != 100 {
		t.Fatalf("balances not restored")
	}
	if restored.TotalSupply() != f.svc.TotalSupply() {
		t.Fatalf("supply = %d, want %d", restored.TotalSupply(), f.svc.TotalSupply())
	}
	if restored.TransactionCount() != f.svc.TransactionCount() {
		t.Fatalf("log length not restored")
	}
	if st, ok := restored.GetUserStake(alice); !ok || st.Amount != 500 {
		t.Fatalf("stake not restored")
	}
	if !restored.IsAuthorized("billing") {
		t.Fatalf("authorized callers not restored")
	}
	if _, err := restored.ClaimFaucetTokens(ctx, "carol", carol); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("faucet window not restored: %v", err)
	}
	var dup *DuplicateError
	if _, err := restored.Transfer(ctx, "alice", transfer); !errors.As(err, &dup) {
		t.Fatalf("replay index not restored: %v", err)
	}
	idx, err := restored.Mint(ctx, minter, alice, 1, nil)
	if err != nil {
		t.Fatalf("mint after load: %v", err)
	}
	if idx != f.svc.TransactionCount() {
		t.Fatalf("index after load = %d, want %d", idx, f.svc.TransactionCount())
	}
	assertConserved(t, restored)
}

func TestFailedCommitLeavesStateUntouched(t *testing.T) {
	store := testutil.NewFailingStore(memory.New())
	svc, err := New(store, testConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, err := svc.Mint(ctx, minter, alice, 100, nil); err != nil {
		t.Fatalf("mint: %v", err)
	}
	store.Arm()

	_, err = svc.Transfer(ctx, "alice", TransferArgs{From: alice, To: bob, Amount: 10})
	if err == nil || IsBusinessError(err) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if svc.BalanceOf(alice) != 100 || svc.BalanceOf(bob) != 0 || svc.TotalSupply() != 100 || svc.TransactionCount() != 1 {
		t.Fatalf("failed commit leaked into memory")
	}
	if _, err := svc.Stake(ctx, "alice", alice, 100, 30*Day); err == nil {
		t.Fatalf("expected storage failure on stake")
	}
	if _, ok := svc.GetUserStake(alice); ok {
		t.Fatalf("failed stake leaked into memory")
	}
	assertConserved(t, svc)
}

func TestLogMonotonicity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mint(t, alice, 10_000)

	var indices []uint64
	record := func(idx uint64, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("operation: %v", err)
		}
		indices = append(indices, idx)
	}
	record(f.svc.Transfer(ctx, "alice", TransferArgs{From: alice, To: bob, Amount: 10}))
	record(f.svc.Mint(ctx, minter, carol, 10, nil))
	record(f.svc.EarnTokens(ctx, minter, bob, domain.EarningReferralBonus, nil))
	record(f.svc.SpendTokens(ctx, "alice", alice, domain.SpendingAIInsights, nil))
	record(f.svc.Stake(ctx, "alice", alice, 1_000, 30*Day))
	record(f.svc.Burn(ctx, "bob", bob, 5))

	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			t.Fatalf("indices not contiguous: %v", indices)
		}
	}

	page := f.svc.GetTransactions(nil, 3)
	if len(page.Transactions) != 3 || page.Transactions[0].Index != 0 || page.NextStart == nil || *page.NextStart != 3 {
		t.Fatalf("unexpected first page %+v", page)
	}
	rest := f.svc.GetTransactions(page.NextStart, 0)
	if len(rest.Transactions) != 4 || rest.NextStart != nil || rest.LogLength != 7 {
		t.Fatalf("unexpected second page %+v", rest)
	}
	if beyond := f.svc.GetTransactions(u64(99), 10); len(beyond.Transactions) != 0 {
		t.Fatalf("expected empty page past the log end")
	}
}

func TestBoundedLogEvictsOldest(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.MaxLogEntries = 3 })
	for i := 0; i < 5; i++ {
		f.mint(t, alice, 1)
	}
	page := f.svc.GetTransactions(nil, 10)
	if page.FirstIndex != 2 || len(page.Transactions) != 3 || page.Transactions[0].Index != 2 || page.Transactions[2].Index != 4 {
		t.Fatalf("unexpected retained window %+v", page)
	}
	if evicted := f.svc.GetTransactions(u64(0), 10); len(evicted.Transactions) != 0 {
		t.Fatalf("evicted range returned %d entries", len(evicted.Transactions))
	}
	if f.svc.TransactionCount() != 5 {
		t.Fatalf("eviction changed the log length")
	}
}

func TestConservationUnderRandomOperations(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Faucet = FaucetConfig{Enabled: true, ClaimAmount: 10, AccountLimit: 30, DailyLimit: 200}
	})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	accounts := []domain.Account{alice, bob, carol, domain.NewAccount("dave")}
	tiers := []time.Duration{30 * Day, 90 * Day, 180 * Day, 365 * Day}

	for i := 0; i < 500; i++ {
		a := accounts[rng.Intn(len(accounts))]
		b := accounts[rng.Intn(len(accounts))]
		amount := uint64(rng.Intn(400) + 1)
		switch rng.Intn(9) {
		case 0:
			_, _ = f.svc.Mint(ctx, minter, a, amount, nil)
		case 1:
			_, _ = f.svc.Transfer(ctx, a.Owner, TransferArgs{From: a, To: b, Amount: amount})
		case 2:
			_, _ = f.svc.Burn(ctx, a.Owner, a, amount)
		case 3:
			_, _ = f.svc.Stake(ctx, a.Owner, a, amount*5, tiers[rng.Intn(len(tiers))])
		case 4:
			_, _ = f.svc.Unstake(ctx, a.Owner, a)
		case 5:
			_, _ = f.svc.ClaimStakingRewards(ctx, a.Owner, a)
		case 6:
			_, _ = f.svc.EarnTokens(ctx, minter, a, domain.EarningAppointmentCompletion, nil)
		case 7:
			_, _ = f.svc.SpendTokens(ctx, a.Owner, a, domain.SpendingAIInsights, nil)
		case 8:
			_, _ = f.svc.ClaimFaucetTokens(ctx, a.Owner, a)
		}
		f.clock.Advance(time.Duration(rng.Intn(72)) * time.Hour)
		if i%50 == 0 {
			_, _ = f.svc.DistributeDailyRewards(ctx, owner)
		}
		assertConserved(t, f.svc)
	}
}

func TestSinkAndObserver(t *testing.T) {
	f := newFixture(t, nil)
	sink := &testutil.RecordingSink{}
	obs := &recordingObserver{}
	f.svc.WithSink(sink)
	f.svc.WithObserver(obs)
	ctx := context.Background()

	f.mint(t, alice, 10)
	_, _ = f.svc.Transfer(ctx, "alice", TransferArgs{From: alice, To: bob, Amount: 100})

	if sink.Count() != 1 {
		t.Fatalf("expected one published transaction, got %d", sink.Count())
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if got := obs.codes["mint"]; len(got) != 1 || got[0] != "ok" {
		t.Fatalf("unexpected mint outcomes %v", got)
	}
	if got := obs.codes["transfer"]; len(got) != 1 || got[0] != "insufficient_funds" {
		t.Fatalf("unexpected transfer outcomes %v", got)
	}
	if obs.supply != 10 {
		t.Fatalf("observer supply = %d", obs.supply)
	}
}

func TestActivityAndEligibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if f.svc.GetRewardEligibility("alice") {
		t.Fatalf("inactive user should not be eligible")
	}
	if err := f.svc.MarkUserActive(ctx, "alice", "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.svc.MarkUserActive(ctx, minter, "alice"); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	status := f.svc.GetUserActivityStatus("alice")
	if status.LastActive == nil || !status.LastActive.Equal(f.clock.Now()) || !status.Eligible {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, err := f.svc.EarnTokens(ctx, minter, alice, domain.EarningPlatformUsage, nil); err != nil {
		t.Fatalf("platform usage: %v", err)
	}
	if f.svc.GetRewardEligibility("alice") {
		t.Fatalf("user rewarded today should not be eligible")
	}
	f.clock.Advance(2 * Day)
	if f.svc.GetRewardEligibility("alice") {
		t.Fatalf("stale activity should not be eligible")
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mint(t, alice, 500)
	if _, err := f.svc.Stake(ctx, "alice", alice, 200, 30*Day); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h := f.svc.HealthCheck()
	if h.Status != "healthy" || !h.Conserved || h.CirculatingSum != 300 || h.StakedSum != 200 || h.ActiveStakes != 1 || h.TotalAccounts != 1 {
		t.Fatalf("unexpected health %+v", h)
	}
}
