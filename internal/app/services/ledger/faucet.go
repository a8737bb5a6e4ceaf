package ledger

import (
	"context"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/google/uuid"
)

// rollFaucetWindow advances the window in whole days once now has crossed
// last_reset plus one day, clearing the window counters.
func rollFaucetWindow(fs *domain.FaucetState, now time.Time) bool {
	if fs.LastReset.IsZero() {
		fs.LastReset = startOfDay(now)
		return true
	}
	elapsed := now.Sub(fs.LastReset)
	if elapsed < Day {
		return false
	}
	fs.LastReset = fs.LastReset.Add(elapsed.Truncate(Day))
	fs.ClaimedToday = 0
	fs.ClaimedByAccount = make(map[domain.Account]uint64)
	return true
}

// ClaimFaucetTokens mints the per-claim faucet amount into acct. A claim fails
// with ErrDailyLimitReached when it would exceed either the account allowance
// or the global pool of the current window.
func (s *Service) ClaimFaucetTokens(ctx context.Context, caller string, acct domain.Account) (amount uint64, err error) {
	defer s.observe("claim_faucet_tokens", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, acct, "claim_faucet_tokens"); err != nil {
		return 0, err
	}
	if acct.IsZero() {
		return 0, ErrInvalidIdentity
	}
	p := s.begin()
	fs := s.faucet.Clone()
	rollFaucetWindow(&fs, p.now)

	if !fs.Enabled {
		return 0, ErrFaucetDisabled
	}
	amount = fs.ClaimAmount
	if amount == 0 {
		return 0, ErrRateNotConfigured
	}
	claimed := fs.ClaimedByAccount[acct]
	if claimed+amount < claimed || claimed+amount > fs.AccountLimit {
		return 0, ErrDailyLimitReached
	}
	if fs.ClaimedToday+amount < fs.ClaimedToday || fs.ClaimedToday+amount > fs.DailyLimit {
		return 0, ErrDailyLimitReached
	}
	if err = p.mint(acct, amount); err != nil {
		return 0, err
	}
	tx := p.append(domain.Mint{To: acct, Amount: amount}, []byte(domain.MemoFaucet), nil)

	fs.ClaimedByAccount[acct] = claimed + amount
	fs.ClaimedToday += amount
	fs.TotalClaims++
	fs.TotalDistributed += amount
	p.cs.Faucet = &fs
	p.cs.FaucetClaims = []domain.FaucetClaim{{
		ID:        uuid.NewString(),
		Account:   acct,
		Amount:    amount,
		Timestamp: p.now,
		Status:    domain.FaucetClaimCompleted,
		TxIndex:   tx.Index,
	}}
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", "faucet_claim").
		WithField("tx_index", tx.Index).
		WithField("account", acct.String()).
		Debug("faucet claim committed")
	return amount, nil
}

// GetFaucetStats reports the faucet window as it would be seen by a claim
// made now. It does not persist a window roll.
func (s *Service) GetFaucetStats() domain.FaucetStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs := s.faucet.Clone()
	rollFaucetWindow(&fs, s.now())
	remaining := uint64(0)
	if fs.DailyLimit > fs.ClaimedToday {
		remaining = fs.DailyLimit - fs.ClaimedToday
	}
	return domain.FaucetStats{
		Enabled:          fs.Enabled,
		DailyLimit:       fs.DailyLimit,
		RemainingToday:   remaining,
		ClaimAmount:      fs.ClaimAmount,
		AccountLimit:     fs.AccountLimit,
		TotalClaims:      fs.TotalClaims,
		TotalDistributed: fs.TotalDistributed,
		LastReset:        fs.LastReset,
		NextReset:        fs.LastReset.Add(Day),
	}
}

// GetFaucetClaimHistory returns acct's faucet claims, oldest first.
func (s *Service) GetFaucetClaimHistory(acct domain.Account, start, limit int) []domain.FaucetClaim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageOf(s.faucetClaims[acct], start, s.pageBounds(limit))
}

// UpdateFaucetSettings changes faucet parameters. Privileged.
func (s *Service) UpdateFaucetSettings(ctx context.Context, caller string, settings domain.FaucetSettings) (stats domain.FaucetStats, err error) {
	defer s.observe("update_faucet_settings", time.Now(), &err)

	s.mu.Lock()
	if err = s.authorizeLocked(ctx, caller, "update_faucet_settings"); err != nil {
		s.mu.Unlock()
		return domain.FaucetStats{}, err
	}
	p := s.begin()
	fs := s.faucet.Clone()
	rollFaucetWindow(&fs, p.now)
	if settings.Enabled != nil {
		fs.Enabled = *settings.Enabled
	}
	if settings.ClaimAmount != nil {
		fs.ClaimAmount = *settings.ClaimAmount
	}
	if settings.AccountLimit != nil {
		fs.AccountLimit = *settings.AccountLimit
	}
	if settings.DailyLimit != nil {
		fs.DailyLimit = *settings.DailyLimit
	}
	p.cs.Faucet = &fs
	err = s.commit(ctx, p)
	s.mu.Unlock()
	if err != nil {
		return domain.FaucetStats{}, err
	}
	s.log.WithField("caller", caller).Info("faucet settings updated")
	return s.GetFaucetStats(), nil
}
