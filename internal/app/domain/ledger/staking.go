package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakeInfo is the single active staking position of an account. Amount is
// held out of the spendable balance until unstake.
type StakeInfo struct {
	Account         Account         `json:"account"`
	Amount          uint64          `json:"amount"`
	LockPeriod      time.Duration   `json:"lock_period"`
	StakedAt        time.Time       `json:"staked_at"`
	LastRewardClaim time.Time       `json:"last_reward_claim"`
	RewardRate      decimal.Decimal `json:"reward_rate"`
}

// UnlocksAt is the earliest time the position may be unstaked.
func (s StakeInfo) UnlocksAt() time.Time {
	return s.StakedAt.Add(s.LockPeriod)
}

// Unlockable reports whether the lock period has elapsed at now.
func (s StakeInfo) Unlockable(now time.Time) bool {
	return !now.Before(s.UnlocksAt())
}

// StakingTier is a configured lock period with its annual reward rate and
// per-tier minimum stake.
type StakingTier struct {
	LockPeriod time.Duration   `json:"lock_period" yaml:"lock_period"`
	RewardRate decimal.Decimal `json:"reward_rate" yaml:"reward_rate"`
	MinStake   uint64          `json:"min_stake" yaml:"min_stake"`
}

// StakingInfo is the public description of the staking programme.
type StakingInfo struct {
	MinStakeAmount uint64        `json:"min_stake_amount"`
	LockPeriods    []StakingTier `json:"lock_periods"`
}

// StakeStatus describes an account's position at a point in time.
type StakeStatus struct {
	Stake         StakeInfo `json:"stake"`
	PendingReward uint64    `json:"pending_reward"`
	UnlocksAt     time.Time `json:"unlocks_at"`
	Unlockable    bool      `json:"unlockable"`
}

// DistributionResult summarises one page of a reward distribution run.
type DistributionResult struct {
	TotalDistributed uint64   `json:"total_distributed"`
	Rewarded         int      `json:"rewarded"`
	Processed        int      `json:"processed"`
	NextCursor       *Account `json:"next_cursor,omitempty"`
}
