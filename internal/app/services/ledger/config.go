package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/shopspring/decimal"
)

// Token is the smallest-unit multiplier for one whole MVT at eight decimals.
const Token uint64 = 100_000_000

// Day is the length of the faucet and platform usage windows.
const Day = 24 * time.Hour

// FaucetConfig holds the initial faucet parameters. Persisted faucet state
// takes precedence once the ledger has been used.
type FaucetConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClaimAmount  uint64 `yaml:"claim_amount"`
	AccountLimit uint64 `yaml:"account_limit"`
	DailyLimit   uint64 `yaml:"daily_limit"`
}

// Config drives the ledger engine.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8

	// TransferFee is burned on every transfer.
	TransferFee   uint64
	MinBurnAmount uint64
	// MaxMemoBytes bounds transfer and mint memos and burn reasons.
	MaxMemoBytes int

	// Owner administers the authorized caller set and is implicitly authorized.
	Owner             string
	AuthorizedCallers []string

	// TxWindow and PermittedDrift bound created_at for replay protection.
	TxWindow       time.Duration
	PermittedDrift time.Duration

	// MaxLogEntries caps the in-memory log view; zero keeps everything.
	MaxLogEntries   int
	DefaultPageSize int
	MaxPageSize     int

	RewardPageSize int

	EarningRates   map[domain.EarningType]uint64
	SpendingCosts  map[domain.SpendingType]uint64
	StakingTiers   []domain.StakingTier
	MinStakeAmount uint64
	Faucet         FaucetConfig
}

// DefaultConfig returns the production economy: 8 decimals, four staking
// tiers and a 100 MVT daily faucet.
func DefaultConfig() Config {
	return Config{
		Name:            "MentalVerse Token",
		Symbol:          "MVT",
		Decimals:        8,
		TransferFee:     10_000,
		MinBurnAmount:   0,
		MaxMemoBytes:    32,
		Owner:           "admin",
		TxWindow:        24 * time.Hour,
		PermittedDrift:  2 * time.Minute,
		DefaultPageSize: 100,
		MaxPageSize:     1000,
		RewardPageSize:  500,
		EarningRates: map[domain.EarningType]uint64{
			domain.EarningAppointmentCompletion: 50 * Token,
			domain.EarningPatientFeedback:       10 * Token,
			domain.EarningReferralBonus:         200 * Token,
			domain.EarningPlatformUsage:         5 * Token,
			domain.EarningSystemParticipation:   20 * Token,
			domain.EarningDoctorConsultation:    100 * Token,
		},
		SpendingCosts: map[domain.SpendingType]uint64{
			domain.SpendingAIInsights:          20 * Token,
			domain.SpendingPriorityBooking:     50 * Token,
			domain.SpendingTelemedicine:        100 * Token,
			domain.SpendingExtendedStorage:     30 * Token,
			domain.SpendingPremiumConsultation: 200 * Token,
			domain.SpendingAdvancedFeatures:    40 * Token,
		},
		StakingTiers: []domain.StakingTier{
			{LockPeriod: 30 * Day, RewardRate: decimal.RequireFromString("0.05"), MinStake: 100 * Token},
			{LockPeriod: 90 * Day, RewardRate: decimal.RequireFromString("0.08"), MinStake: 250 * Token},
			{LockPeriod: 180 * Day, RewardRate: decimal.RequireFromString("0.12"), MinStake: 500 * Token},
			{LockPeriod: 365 * Day, RewardRate: decimal.RequireFromString("0.18"), MinStake: 1000 * Token},
		},
		MinStakeAmount: 100 * Token,
		Faucet: FaucetConfig{
			Enabled:      true,
			ClaimAmount:  100 * Token,
			AccountLimit: 100 * Token,
			DailyLimit:   1_000_000 * Token,
		},
	}
}

// Normalize fills zero values with defaults and validates the result.
func (c Config) Normalize() (Config, error) {
	def := DefaultConfig()
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = def.Name
	}
	c.Symbol = strings.TrimSpace(c.Symbol)
	if c.Symbol == "" {
		c.Symbol = def.Symbol
	}
	c.Owner = strings.TrimSpace(c.Owner)
	if c.Owner == "" {
		return Config{}, fmt.Errorf("ledger owner identity is required")
	}
	if c.MaxMemoBytes <= 0 {
		c.MaxMemoBytes = def.MaxMemoBytes
	}
	if c.TxWindow <= 0 {
		c.TxWindow = def.TxWindow
	}
	if c.PermittedDrift < 0 {
		c.PermittedDrift = 0
	}
	if c.MaxLogEntries < 0 {
		c.MaxLogEntries = 0
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = def.DefaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = def.MaxPageSize
	}
	if c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = c.MaxPageSize
	}
	if c.RewardPageSize <= 0 {
		c.RewardPageSize = def.RewardPageSize
	}
	if c.EarningRates == nil {
		c.EarningRates = map[domain.EarningType]uint64{}
	}
	for t := range c.EarningRates {
		if !t.Valid() {
			return Config{}, fmt.Errorf("earning rate for unknown type %q", t)
		}
	}
	if c.SpendingCosts == nil {
		c.SpendingCosts = map[domain.SpendingType]uint64{}
	}
	for t := range c.SpendingCosts {
		if !t.Valid() {
			return Config{}, fmt.Errorf("spending cost for unknown type %q", t)
		}
	}

	seen := make(map[time.Duration]bool, len(c.StakingTiers))
	tiers := make([]domain.StakingTier, 0, len(c.StakingTiers))
	for _, tier := range c.StakingTiers {
		if tier.LockPeriod <= 0 {
			return Config{}, fmt.Errorf("staking tier lock period must be positive")
		}
		if tier.RewardRate.IsNegative() {
			return Config{}, fmt.Errorf("staking tier %s has a negative reward rate", tier.LockPeriod)
		}
		if seen[tier.LockPeriod] {
			return Config{}, fmt.Errorf("duplicate staking tier %s", tier.LockPeriod)
		}
		seen[tier.LockPeriod] = true
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].LockPeriod < tiers[j].LockPeriod })
	c.StakingTiers = tiers

	callers := make([]string, 0, len(c.AuthorizedCallers))
	for _, id := range c.AuthorizedCallers {
		if id = strings.TrimSpace(id); id != "" {
			callers = append(callers, id)
		}
	}
	c.AuthorizedCallers = callers
	return c, nil
}

func (c Config) tier(lockPeriod time.Duration) (domain.StakingTier, bool) {
	for _, tier := range c.StakingTiers {
		if tier.LockPeriod == lockPeriod {
			return tier, true
		}
	}
	return domain.StakingTier{}, false
}
