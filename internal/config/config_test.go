package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	ledgersvc "github.com/R3E-Network/token_ledger/internal/app/services/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnvFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "admin", cfg.Ledger.Owner)
	assert.Equal(t, uint64(10000), cfg.Ledger.TransferFee)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.TxWindow)
	assert.Equal(t, "0 0 * * *", cfg.Ledger.RewardSchedule)
	assert.Equal(t, "ledger:transactions", cfg.Redis.Stream)
	assert.True(t, cfg.Database.Migrate)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LEDGER_OWNER", "root")
	t.Setenv("LEDGER_AUTHORIZED_CALLERS", "billing;appointments")
	t.Setenv("LEDGER_TX_WINDOW", "1h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("LEDGER_MAX_MEMO_BYTES", "64")

	cfg, err := LoadFromEnvFile("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "root", cfg.Ledger.Owner)
	assert.Equal(t, []string{"billing", "appointments"}, cfg.Ledger.AuthorizedCallers)
	assert.Equal(t, time.Hour, cfg.Ledger.TxWindow)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)

	ledgerCfg, err := cfg.Ledger.LedgerServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, 64, ledgerCfg.MaxMemoBytes)
}

func TestLoadEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_TOKEN_SYMBOL=TST\nSERVER_PORT=7000\n"), 0o600))
	t.Setenv("SERVER_PORT", "7100")
	// Registered so the variable set by the file is removed after the test.
	t.Setenv("LEDGER_TOKEN_SYMBOL", "")
	require.NoError(t, os.Unsetenv("LEDGER_TOKEN_SYMBOL"))

	cfg, err := LoadFromEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TST", cfg.Ledger.TokenSymbol)
	assert.Equal(t, 7100, cfg.Server.Port)

	_, err = LoadFromEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "SERVER_PORT", "70000"},
		{"rate", "RATE_LIMIT_RPS", "0"},
		{"malformed", "LEDGER_TX_WINDOW", "soon"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := LoadFromEnvFile("")
			assert.Error(t, err)
		})
	}
}

func TestAuthPublicKeyUnset(t *testing.T) {
	key, err := AuthConfig{}.PublicKey()
	assert.NoError(t, err)
	assert.Nil(t, key)

	_, err = AuthConfig{PublicKeyFile: filepath.Join(t.TempDir(), "nope.pem")}.PublicKey()
	assert.Error(t, err)
}

const economyYAML = `
earning_rates:
  referral_bonus: 250
  platform_usage: "0.5"
spending_costs:
  telemedicine: 120
staking:
  min_stake: 50
  tiers:
    - lock_days: 365
      rate: "0.20"
      min_stake: 500
    - lock_days: 7
      rate: "0.01"
faucet:
  enabled: false
  claim_amount: 10
`

func writeEconomy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "economy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLedgerServiceConfigFromEconomyFile(t *testing.T) {
	cfg, err := LoadFromEnvFile("")
	require.NoError(t, err)
	cfg.Ledger.EconomyFile = writeEconomy(t, economyYAML)

	svc, err := cfg.Ledger.LedgerServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, map[domain.EarningType]uint64{
		domain.EarningReferralBonus: 250 * ledgersvc.Token,
		domain.EarningPlatformUsage: ledgersvc.Token / 2,
	}, svc.EarningRates)
	assert.Equal(t, 120*ledgersvc.Token, svc.SpendingCosts[domain.SpendingTelemedicine])
	assert.Equal(t, 50*ledgersvc.Token, svc.MinStakeAmount)

	require.Len(t, svc.StakingTiers, 2)
	assert.Equal(t, 7*ledgersvc.Day, svc.StakingTiers[0].LockPeriod)
	assert.Equal(t, uint64(0), svc.StakingTiers[0].MinStake)
	assert.Equal(t, "0.2", svc.StakingTiers[1].RewardRate.String())

	assert.False(t, svc.Faucet.Enabled)
	assert.Equal(t, 10*ledgersvc.Token, svc.Faucet.ClaimAmount)
	assert.Equal(t, 100*ledgersvc.Token, svc.Faucet.AccountLimit)
}

func TestLedgerServiceConfigMissingFileUsesDefaults(t *testing.T) {
	l := LedgerConfig{Owner: "admin", EconomyFile: filepath.Join(t.TempDir(), "absent.yaml")}
	svc, err := l.LedgerServiceConfig()
	require.NoError(t, err)

	def := ledgersvc.DefaultConfig()
	assert.Equal(t, def.EarningRates, svc.EarningRates)
	assert.Len(t, svc.StakingTiers, 4)
	assert.Equal(t, def.Faucet, svc.Faucet)
}

func TestShippedEconomyMatchesDefaults(t *testing.T) {
	l := LedgerConfig{Owner: "admin", Decimals: 8, EconomyFile: filepath.Join("..", "..", "config", "economy.yaml")}
	svc, err := l.LedgerServiceConfig()
	require.NoError(t, err)

	def, err := ledgersvc.DefaultConfig().Normalize()
	require.NoError(t, err)
	assert.Equal(t, def.EarningRates, svc.EarningRates)
	assert.Equal(t, def.SpendingCosts, svc.SpendingCosts)
	assert.Equal(t, def.MinStakeAmount, svc.MinStakeAmount)
	assert.Equal(t, def.Faucet, svc.Faucet)
	require.Len(t, svc.StakingTiers, len(def.StakingTiers))
	for i := range def.StakingTiers {
		assert.Equal(t, def.StakingTiers[i].LockPeriod, svc.StakingTiers[i].LockPeriod)
		assert.True(t, def.StakingTiers[i].RewardRate.Equal(svc.StakingTiers[i].RewardRate))
		assert.Equal(t, def.StakingTiers[i].MinStake, svc.StakingTiers[i].MinStake)
	}
}

func TestEconomyRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown earning", "earning_rates:\n  lottery: 5\n"},
		{"unknown spending", "spending_costs:\n  yacht: 5\n"},
		{"negative", "spending_costs:\n  telemedicine: -1\n"},
		{"too precise", "earning_rates:\n  referral_bonus: \"0.000000001\"\n"},
		{"bad rate", "staking:\n  tiers:\n    - lock_days: 30\n      rate: high\n"},
		{"zero lock", "staking:\n  tiers:\n    - lock_days: 0\n      rate: \"0.1\"\n"},
		{"duplicate tier", "staking:\n  tiers:\n    - lock_days: 30\n      rate: \"0.1\"\n    - lock_days: 30\n      rate: \"0.2\"\n"},
		{"malformed yaml", "earning_rates: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := LedgerConfig{Owner: "admin", Decimals: 8, EconomyFile: writeEconomy(t, tc.body)}
			_, err := l.LedgerServiceConfig()
			assert.Error(t, err)
		})
	}
}

func TestBaseUnits(t *testing.T) {
	v, err := baseUnits("1.5", 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), v)

	v, err = baseUnits("0", 8)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = baseUnits("1000000000000", 8)
	assert.Error(t, err)
}
