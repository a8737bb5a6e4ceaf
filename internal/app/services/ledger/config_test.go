package ledger

import (
	"testing"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/shopspring/decimal"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg, err := Config{Owner: " admin ", AuthorizedCallers: []string{" svc ", ""}}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Owner != "admin" || cfg.Symbol != "MVT" || cfg.DefaultPageSize != 100 || cfg.MaxPageSize != 1000 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.AuthorizedCallers) != 1 || cfg.AuthorizedCallers[0] != "svc" {
		t.Fatalf("callers not trimmed: %v", cfg.AuthorizedCallers)
	}
}

func TestNormalizeRejectsBadTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown earning", func(c *Config) { c.EarningRates = map[domain.EarningType]uint64{"bogus": 1} }},
		{"unknown spending", func(c *Config) { c.SpendingCosts = map[domain.SpendingType]uint64{"bogus": 1} }},
		{"duplicate tier", func(c *Config) {
			c.StakingTiers = append(c.StakingTiers, domain.StakingTier{LockPeriod: 30 * Day, RewardRate: decimal.NewFromInt(0)})
		}},
		{"negative rate", func(c *Config) {
			c.StakingTiers = []domain.StakingTier{{LockPeriod: Day, RewardRate: decimal.NewFromInt(-1)}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := cfg.Normalize(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNormalizeSortsTiers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StakingTiers[0], cfg.StakingTiers[3] = cfg.StakingTiers[3], cfg.StakingTiers[0]
	out, err := cfg.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.StakingTiers[0].LockPeriod != 30*Day || out.StakingTiers[3].LockPeriod != 365*Day {
		t.Fatalf("tiers not sorted: %+v", out.StakingTiers)
	}
}
