package ledger

import (
	"context"
	"math/big"
	"sort"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/shopspring/decimal"
)

var secondsPerYear = decimal.NewFromInt(int64(365 * Day / time.Second))

// accruedReward is simple, non-compounding interest on the staked amount
// since the last claim: floor(amount * rate * elapsed / 365d).
func accruedReward(st domain.StakeInfo, now time.Time) (uint64, error) {
	elapsed := now.Sub(st.LastRewardClaim)
	if elapsed <= 0 || st.Amount == 0 || !st.RewardRate.IsPositive() {
		return 0, nil
	}
	principal := decimal.NewFromBigInt(new(big.Int).SetUint64(st.Amount), 0)
	seconds := decimal.NewFromInt(int64(elapsed / time.Second))
	reward := principal.Mul(st.RewardRate).Mul(seconds).Div(secondsPerYear).Floor()
	out := reward.BigInt()
	if !out.IsUint64() {
		return 0, ErrOverflow
	}
	return out.Uint64(), nil
}

// Stake moves amount from the spendable balance into a locked position at the
// tier matching lockPeriod.
func (s *Service) Stake(ctx context.Context, caller string, acct domain.Account, amount uint64, lockPeriod time.Duration) (index uint64, err error) {
	defer s.observe("stake", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, acct, "stake"); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	tier, ok := s.cfg.tier(lockPeriod)
	if !ok {
		return 0, ErrInvalidLockPeriod
	}
	minimum := s.cfg.MinStakeAmount
	if tier.MinStake > minimum {
		minimum = tier.MinStake
	}
	if amount < minimum {
		return 0, &BelowMinimumStakeError{Minimum: minimum}
	}
	if _, exists := s.stakes[acct]; exists {
		return 0, ErrAlreadyStaked
	}

	p := s.begin()
	if err = p.debit(acct, amount); err != nil {
		return 0, err
	}
	p.cs.StakesPut = []domain.StakeInfo{{
		Account:         acct,
		Amount:          amount,
		LockPeriod:      tier.LockPeriod,
		StakedAt:        p.now,
		LastRewardClaim: p.now,
		RewardRate:      tier.RewardRate,
	}}
	tx := p.append(domain.Stake{From: acct, Amount: amount, LockPeriod: tier.LockPeriod}, nil, nil)
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", "stake").
		WithField("tx_index", tx.Index).
		WithField("account", acct.String()).
		WithField("lock_period", tier.LockPeriod.String()).
		Debug("stake committed")
	return tx.Index, nil
}

// payReward mints reward into the spendable balance with an earning record.
func (p *pending) payReward(acct domain.Account, reward uint64) error {
	if err := p.mint(acct, reward); err != nil {
		return err
	}
	tx := p.append(domain.Earn{To: acct, EarningType: domain.EarningStakingReward, Amount: reward}, nil, nil)
	p.cs.Earnings = append(p.cs.Earnings, domain.EarningRecord{
		Account:     acct,
		EarningType: domain.EarningStakingReward,
		Amount:      reward,
		Description: domain.EarningStakingReward.Description(),
		Timestamp:   p.now,
		TxIndex:     tx.Index,
	})
	return nil
}

// ClaimStakingRewards pays the reward accrued since the last claim.
func (s *Service) ClaimStakingRewards(ctx context.Context, caller string, acct domain.Account) (reward uint64, err error) {
	defer s.observe("claim_staking_rewards", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, acct, "claim_staking_rewards"); err != nil {
		return 0, err
	}
	st, ok := s.stakes[acct]
	if !ok {
		return 0, ErrNoActiveStake
	}
	p := s.begin()
	reward, err = accruedReward(st, p.now)
	if err != nil {
		return 0, err
	}
	if reward == 0 {
		return 0, ErrNothingToClaim
	}
	if err = p.payReward(acct, reward); err != nil {
		return 0, err
	}
	st.LastRewardClaim = p.now
	p.cs.StakesPut = []domain.StakeInfo{st}
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	return reward, nil
}

// UnstakeResult is the outcome of a successful unstake.
type UnstakeResult struct {
	Principal uint64 `json:"principal"`
	Reward    uint64 `json:"reward"`
	TxIndex   uint64 `json:"tx_index"`
}

// Unstake returns the principal and any outstanding reward once the lock
// period has elapsed, and removes the position.
func (s *Service) Unstake(ctx context.Context, caller string, acct domain.Account) (res UnstakeResult, err error) {
	defer s.observe("unstake", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, acct, "unstake"); err != nil {
		return UnstakeResult{}, err
	}
	st, ok := s.stakes[acct]
	if !ok {
		return UnstakeResult{}, ErrNoActiveStake
	}
	p := s.begin()
	if !st.Unlockable(p.now) {
		return UnstakeResult{}, ErrStillLocked
	}
	reward, err := accruedReward(st, p.now)
	if err != nil {
		return UnstakeResult{}, err
	}
	if err = p.credit(acct, st.Amount); err != nil {
		return UnstakeResult{}, err
	}
	if reward > 0 {
		if err = p.mint(acct, reward); err != nil {
			return UnstakeResult{}, err
		}
	}
	p.cs.StakesDeleted = []domain.Account{acct}
	tx := p.append(domain.Unstake{To: acct, Amount: st.Amount, Reward: reward}, nil, nil)
	if reward > 0 {
		p.cs.Earnings = append(p.cs.Earnings, domain.EarningRecord{
			Account:     acct,
			EarningType: domain.EarningStakingReward,
			Amount:      reward,
			Description: domain.EarningStakingReward.Description(),
			Timestamp:   p.now,
			TxIndex:     tx.Index,
		})
	}
	if err = s.commit(ctx, p); err != nil {
		return UnstakeResult{}, err
	}
	s.log.WithField("op", "unstake").
		WithField("tx_index", tx.Index).
		WithField("account", acct.String()).
		Debug("unstake committed")
	return UnstakeResult{Principal: st.Amount, Reward: reward, TxIndex: tx.Index}, nil
}

// DistributeRewardsPage pays accrued rewards to at most limit stakers whose
// accounts sort after cursor. Each page commits atomically; NextCursor is set
// while more stakers remain. Repeating a page in the same instant pays nothing
// because accrual restarts at each position's last claim.
func (s *Service) DistributeRewardsPage(ctx context.Context, caller string, cursor *domain.Account, limit int) (res domain.DistributionResult, err error) {
	defer s.observe("distribute_rewards_page", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeLocked(ctx, caller, "distribute_rewards"); err != nil {
		return domain.DistributionResult{}, err
	}
	if limit <= 0 {
		limit = s.cfg.RewardPageSize
	}

	keys := make([]domain.Account, 0, len(s.stakes))
	for acct := range s.stakes {
		if cursor == nil || accountLess(*cursor, acct) {
			keys = append(keys, acct)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return accountLess(keys[i], keys[j]) })

	p := s.begin()
	for i, acct := range keys {
		if i == limit {
			last := keys[i-1]
			res.NextCursor = &last
			break
		}
		res.Processed++
		st := s.stakes[acct]
		reward, rerr := accruedReward(st, p.now)
		if rerr != nil {
			return domain.DistributionResult{}, rerr
		}
		if reward == 0 {
			continue
		}
		if err = p.payReward(acct, reward); err != nil {
			return domain.DistributionResult{}, err
		}
		st.LastRewardClaim = p.now
		p.cs.StakesPut = append(p.cs.StakesPut, st)
		res.Rewarded++
		if res.TotalDistributed+reward < res.TotalDistributed {
			return domain.DistributionResult{}, ErrOverflow
		}
		res.TotalDistributed += reward
	}
	if len(p.cs.Transactions) > 0 {
		if err = s.commit(ctx, p); err != nil {
			return domain.DistributionResult{}, err
		}
	}
	return res, nil
}

// DistributeDailyRewards walks every staker in bounded pages and returns the
// total minted. Other calls may interleave between pages.
func (s *Service) DistributeDailyRewards(ctx context.Context, caller string) (uint64, error) {
	var (
		total  uint64
		cursor *domain.Account
		pages  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := s.DistributeRewardsPage(ctx, caller, cursor, s.cfg.RewardPageSize)
		if err != nil {
			return total, err
		}
		total += res.TotalDistributed
		pages++
		if res.NextCursor == nil {
			break
		}
		cursor = res.NextCursor
	}
	s.log.WithField("total_distributed", total).WithField("pages", pages).Info("daily staking rewards distributed")
	return total, nil
}

// GetUserStake returns the active position of acct.
func (s *Service) GetUserStake(acct domain.Account) (domain.StakeInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stakes[acct]
	return st, ok
}

// GetStakingStatus returns the position of acct with its pending reward.
func (s *Service) GetStakingStatus(acct domain.Account) (domain.StakeStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stakes[acct]
	if !ok {
		return domain.StakeStatus{}, ErrNoActiveStake
	}
	now := s.now()
	reward, err := accruedReward(st, now)
	if err != nil {
		return domain.StakeStatus{}, err
	}
	return domain.StakeStatus{
		Stake:         st,
		PendingReward: reward,
		UnlocksAt:     st.UnlocksAt(),
		Unlockable:    st.Unlockable(now),
	}, nil
}

// StakingInfo describes the configured tiers.
func (s *Service) StakingInfo() domain.StakingInfo {
	tiers := append([]domain.StakingTier(nil), s.cfg.StakingTiers...)
	return domain.StakingInfo{MinStakeAmount: s.cfg.MinStakeAmount, LockPeriods: tiers}
}

// TotalStaked is the sum of all active positions.
func (s *Service) TotalStaked() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, st := range s.stakes {
		total += st.Amount
	}
	return total
}

func accountLess(a, b domain.Account) bool {
	if a.Owner != b.Owner {
		return a.Owner < b.Owner
	}
	for i := range a.Subaccount {
		if a.Subaccount[i] != b.Subaccount[i] {
			return a.Subaccount[i] < b.Subaccount[i]
		}
	}
	return false
}
