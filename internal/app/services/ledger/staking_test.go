package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/shopspring/decimal"
)

func TestAccruedReward(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		amount  uint64
		rate    string
		elapsed time.Duration
		want    uint64
	}{
		{name: "thirty days at five percent", amount: 1000, rate: "0.05", elapsed: 30 * Day, want: 4},
		{name: "whole tokens", amount: 1000 * Token, rate: "0.05", elapsed: 30 * Day, want: 410958904},
		{name: "full year", amount: 1000, rate: "0.18", elapsed: 365 * Day, want: 180},
		{name: "rounds down to zero", amount: 100, rate: "0.05", elapsed: time.Hour, want: 0},
		{name: "no time elapsed", amount: 1000, rate: "0.05", elapsed: 0, want: 0},
		{name: "zero rate", amount: 1000, rate: "0", elapsed: 30 * Day, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := domain.StakeInfo{
				Amount:          tc.amount,
				RewardRate:      decimal.RequireFromString(tc.rate),
				StakedAt:        start,
				LastRewardClaim: start,
			}
			got, err := accruedReward(st, start.Add(tc.elapsed))
			if err != nil {
				t.Fatalf("accrued reward: %v", err)
			}
			if got != tc.want {
				t.Fatalf("reward = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStakeUnstakeCycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mint(t, alice, 1000)

	if _, err := f.svc.Stake(ctx, "alice", alice, 1000, 30*Day); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if f.svc.BalanceOf(alice) != 0 {
		t.Fatalf("staked amount still spendable")
	}
	if f.svc.TotalStaked() != 1000 || f.svc.TotalSupply() != 1000 {
		t.Fatalf("unexpected staking totals staked=%d supply=%d", f.svc.TotalStaked(), f.svc.TotalSupply())
	}
	assertConserved(t, f.svc)

	f.clock.Advance(30*Day - time.Second)
	if _, err := f.svc.Unstake(ctx, "alice", alice); !errors.Is(err, ErrStillLocked) {
		t.Fatalf("expected still locked, got %v", err)
	}

	f.clock.Advance(time.Second)
	res, err := f.svc.Unstake(ctx, "alice", alice)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if res.Principal != 1000 || res.Reward != 4 {
		t.Fatalf("unexpected unstake result %+v", res)
	}
	if _, ok := f.svc.GetUserStake(alice); ok {
		t.Fatalf("stake not removed")
	}
	if f.svc.BalanceOf(alice) != 1004 || f.svc.TotalSupply() != 1004 {
		t.Fatalf("unexpected balances after unstake: %d / %d", f.svc.BalanceOf(alice), f.svc.TotalSupply())
	}
	tx, _ := f.svc.GetTransaction(res.TxIndex)
	if op, ok := tx.Operation.(domain.Unstake); !ok || op.Amount != 1000 || op.Reward != 4 {
		t.Fatalf("unexpected unstake transaction %+v", tx.Operation)
	}
	if history := f.svc.GetUserEarningHistory(alice, 0, 0); len(history) != 1 || history[0].EarningType != domain.EarningStakingReward {
		t.Fatalf("unexpected earning history %+v", history)
	}
	assertConserved(t, f.svc)

	if _, err := f.svc.Unstake(ctx, "alice", alice); !errors.Is(err, ErrNoActiveStake) {
		t.Fatalf("expected no active stake, got %v", err)
	}
}

func TestStakeValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mint(t, alice, 300)

	if _, err := f.svc.Stake(ctx, "alice", alice, 200, 45*Day); !errors.Is(err, ErrInvalidLockPeriod) {
		t.Fatalf("expected invalid lock period, got %v", err)
	}
	var below *BelowMinimumStakeError
	if _, err := f.svc.Stake(ctx, "alice", alice, 200, 90*Day); !errors.As(err, &below) || below.Minimum != 250 {
		t.Fatalf("expected below minimum 250, got %v", err)
	}
	if _, err := f.svc.Stake(ctx, "alice", alice, 1000, 30*Day); err == nil {
		t.Fatalf("expected insufficient funds")
	} else if bal, ok := insufficientBalance(err); !ok || bal != 300 {
		t.Fatalf("expected insufficient funds with balance 300, got %v", err)
	}
	if _, err := f.svc.Stake(ctx, "bob", alice, 100, 30*Day); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.svc.Stake(ctx, "alice", alice, 100, 30*Day); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := f.svc.Stake(ctx, "alice", alice, 100, 30*Day); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("expected already staked, got %v", err)
	}
	assertConserved(t, f.svc)
}

func TestClaimStakingRewards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mint(t, alice, 10_000)

	if _, err := f.svc.ClaimStakingRewards(ctx, "alice", alice); !errors.Is(err, ErrNoActiveStake) {
		t.Fatalf("expected no active stake, got %v", err)
	}
	if _, err := f.svc.Stake(ctx, "alice", alice, 10_000, 30*Day); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := f.svc.ClaimStakingRewards(ctx, "alice", alice); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected nothing to claim, got %v", err)
	}

	f.clock.Advance(Day)
	status, err := f.svc.GetStakingStatus(alice)
	if err != nil {
		t.Fatalf("staking status: %v", err)
	}
	if status.PendingReward != 1 || status.Unlockable {
		t.Fatalf("unexpected status %+v", status)
	}
	reward, err := f.svc.ClaimStakingRewards(ctx, "alice", alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if reward != 1 {
		t.Fatalf("reward = %d, want 1", reward)
	}
	st, _ := f.svc.GetUserStake(alice)
	if !st.LastRewardClaim.Equal(f.clock.Now()) || st.Amount != 10_000 {
		t.Fatalf("claim did not reset accrual: %+v", st)
	}
	if _, err := f.svc.ClaimStakingRewards(ctx, "alice", alice); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected nothing to claim after claim, got %v", err)
	}
	if f.svc.BalanceOf(alice) != 1 {
		t.Fatalf("reward not paid to spendable balance")
	}
	assertConserved(t, f.svc)
}

func TestDistributeDailyRewards(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.RewardPageSize = 2 })
	ctx := context.Background()
	stakers := []domain.Account{alice, bob, carol, domain.NewAccount("dave")}
	for _, acct := range stakers {
		f.mint(t, acct, 36_500)
		if _, err := f.svc.Stake(ctx, acct.Owner, acct, 36_500, 365*Day); err != nil {
			t.Fatalf("stake %s: %v", acct, err)
		}
	}

	if _, err := f.svc.DistributeDailyRewards(ctx, "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	f.clock.Advance(Day)
	supplyBefore := f.svc.TotalSupply()
	total, err := f.svc.DistributeDailyRewards(ctx, minter)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// 36500 * 0.18 / 365 = 18 per staker per day.
	if total != 4*18 {
		t.Fatalf("total distributed = %d, want %d", total, 4*18)
	}
	if f.svc.TotalSupply() != supplyBefore+total {
		t.Fatalf("distribution did not mint rewards")
	}
	for _, acct := range stakers {
		if f.svc.BalanceOf(acct) != 18 {
			t.Fatalf("%s balance = %d, want 18", acct, f.svc.BalanceOf(acct))
		}
	}

	again, err := f.svc.DistributeDailyRewards(ctx, minter)
	if err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	if again != 0 {
		t.Fatalf("repeated distribution paid %d", again)
	}
	assertConserved(t, f.svc)
}

func TestDistributeRewardsPageResumes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, acct := range []domain.Account{alice, bob, carol} {
		f.mint(t, acct, 36_500)
		if _, err := f.svc.Stake(ctx, acct.Owner, acct, 36_500, 365*Day); err != nil {
			t.Fatalf("stake: %v", err)
		}
	}
	f.clock.Advance(Day)

	first, err := f.svc.DistributeRewardsPage(ctx, owner, nil, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if first.Processed != 2 || first.Rewarded != 2 || first.NextCursor == nil || *first.NextCursor != bob {
		t.Fatalf("unexpected first page %+v", first)
	}
	// Replaying the first page pays nothing more.
	replay, err := f.svc.DistributeRewardsPage(ctx, owner, nil, 2)
	if err != nil {
		t.Fatalf("replay page: %v", err)
	}
	if replay.TotalDistributed != 0 {
		t.Fatalf("replayed page paid %d", replay.TotalDistributed)
	}
	second, err := f.svc.DistributeRewardsPage(ctx, owner, first.NextCursor, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if second.Processed != 1 || second.NextCursor != nil || second.TotalDistributed != 18 {
		t.Fatalf("unexpected second page %+v", second)
	}
}

func TestStakingInfo(t *testing.T) {
	f := newFixture(t, nil)
	info := f.svc.StakingInfo()
	if info.MinStakeAmount != 100 || len(info.LockPeriods) != 4 {
		t.Fatalf("unexpected staking info %+v", info)
	}
	if info.LockPeriods[0].LockPeriod != 30*Day || !info.LockPeriods[3].RewardRate.Equal(decimal.RequireFromString("0.18")) {
		t.Fatalf("unexpected tiers %+v", info.LockPeriods)
	}
}
