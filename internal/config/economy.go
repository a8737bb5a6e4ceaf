package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	ledgersvc "github.com/R3E-Network/token_ledger/internal/app/services/ledger"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Economy is the YAML form of the static economy tables. Amounts are whole
// tokens and may carry a fractional part down to the token decimals.
type Economy struct {
	EarningRates  map[string]string `yaml:"earning_rates"`
	SpendingCosts map[string]string `yaml:"spending_costs"`
	Staking       struct {
		MinStake string        `yaml:"min_stake"`
		Tiers    []economyTier `yaml:"tiers"`
	} `yaml:"staking"`
	Faucet struct {
		Enabled      *bool  `yaml:"enabled"`
		ClaimAmount  string `yaml:"claim_amount"`
		AccountLimit string `yaml:"account_limit"`
		DailyLimit   string `yaml:"daily_limit"`
	} `yaml:"faucet"`
}

type economyTier struct {
	LockDays int    `yaml:"lock_days"`
	Rate     string `yaml:"rate"`
	MinStake string `yaml:"min_stake"`
}

// LoadEconomy parses the economy file at path.
func LoadEconomy(path string) (*Economy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read economy config: %w", err)
	}
	var econ Economy
	if err := yaml.Unmarshal(data, &econ); err != nil {
		return nil, fmt.Errorf("failed to parse economy config: %w", err)
	}
	return &econ, nil
}

// LedgerServiceConfig builds the engine configuration. Economy tables come
// from EconomyFile when it exists and from the built-in defaults otherwise.
func (l LedgerConfig) LedgerServiceConfig() (ledgersvc.Config, error) {
	cfg := ledgersvc.DefaultConfig()
	cfg.Name = l.TokenName
	cfg.Symbol = l.TokenSymbol
	cfg.Decimals = l.Decimals
	cfg.TransferFee = l.TransferFee
	cfg.MinBurnAmount = l.MinBurnAmount
	cfg.MaxMemoBytes = l.MaxMemoBytes
	cfg.Owner = l.Owner
	cfg.AuthorizedCallers = l.AuthorizedCallers
	cfg.TxWindow = l.TxWindow
	cfg.PermittedDrift = l.PermittedDrift
	cfg.MaxLogEntries = l.LogMaxEntries
	cfg.DefaultPageSize = l.PageSize
	cfg.MaxPageSize = l.MaxPageSize
	cfg.RewardPageSize = l.RewardPageSize

	if l.EconomyFile != "" {
		econ, err := LoadEconomy(l.EconomyFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return ledgersvc.Config{}, err
		default:
			if err := econ.Apply(&cfg); err != nil {
				return ledgersvc.Config{}, fmt.Errorf("%s: %w", l.EconomyFile, err)
			}
		}
	}
	return cfg.Normalize()
}

// Apply overrides the economy tables of cfg with the values in e. Sections
// left empty keep the values already in cfg.
func (e *Economy) Apply(cfg *ledgersvc.Config) error {
	units := func(raw, field string) (uint64, error) {
		v, err := baseUnits(raw, cfg.Decimals)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		return v, nil
	}

	if len(e.EarningRates) > 0 {
		rates := make(map[domain.EarningType]uint64, len(e.EarningRates))
		for name, raw := range e.EarningRates {
			t, ok := domain.ParseEarningType(name)
			if !ok {
				return fmt.Errorf("unknown earning type %q", name)
			}
			v, err := units(raw, "earning_rates."+name)
			if err != nil {
				return err
			}
			rates[t] = v
		}
		cfg.EarningRates = rates
	}

	if len(e.SpendingCosts) > 0 {
		costs := make(map[domain.SpendingType]uint64, len(e.SpendingCosts))
		for name, raw := range e.SpendingCosts {
			t, ok := domain.ParseSpendingType(name)
			if !ok {
				return fmt.Errorf("unknown spending type %q", name)
			}
			v, err := units(raw, "spending_costs."+name)
			if err != nil {
				return err
			}
			costs[t] = v
		}
		cfg.SpendingCosts = costs
	}

	if e.Staking.MinStake != "" {
		v, err := units(e.Staking.MinStake, "staking.min_stake")
		if err != nil {
			return err
		}
		cfg.MinStakeAmount = v
	}
	if len(e.Staking.Tiers) > 0 {
		tiers := make([]domain.StakingTier, 0, len(e.Staking.Tiers))
		for i, t := range e.Staking.Tiers {
			if t.LockDays <= 0 {
				return fmt.Errorf("staking.tiers[%d]: lock_days must be positive", i)
			}
			rate, err := decimal.NewFromString(t.Rate)
			if err != nil {
				return fmt.Errorf("staking.tiers[%d].rate: %w", i, err)
			}
			var minStake uint64
			if t.MinStake != "" {
				if minStake, err = units(t.MinStake, fmt.Sprintf("staking.tiers[%d].min_stake", i)); err != nil {
					return err
				}
			}
			tiers = append(tiers, domain.StakingTier{
				LockPeriod: time.Duration(t.LockDays) * ledgersvc.Day,
				RewardRate: rate,
				MinStake:   minStake,
			})
		}
		cfg.StakingTiers = tiers
	}

	f := e.Faucet
	if f.Enabled != nil {
		cfg.Faucet.Enabled = *f.Enabled
	}
	for _, field := range []struct {
		raw  string
		name string
		dst  *uint64
	}{
		{f.ClaimAmount, "faucet.claim_amount", &cfg.Faucet.ClaimAmount},
		{f.AccountLimit, "faucet.account_limit", &cfg.Faucet.AccountLimit},
		{f.DailyLimit, "faucet.daily_limit", &cfg.Faucet.DailyLimit},
	} {
		if field.raw == "" {
			continue
		}
		v, err := units(field.raw, field.name)
		if err != nil {
			return err
		}
		*field.dst = v
	}
	return nil
}

// baseUnits converts a whole-token amount such as "12.5" to base units.
func baseUnits(raw string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", raw)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimals", raw, decimals)
	}
	if !scaled.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows", raw)
	}
	return scaled.BigInt().Uint64(), nil
}
