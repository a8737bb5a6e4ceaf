package ledger

import (
	"context"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
)

// EarnTokens mints a categorized reward into acct. A nil amount resolves from
// the earning rate table. Privileged.
func (s *Service) EarnTokens(ctx context.Context, caller string, acct domain.Account, earningType domain.EarningType, amount *uint64) (index uint64, err error) {
	defer s.observe("earn_tokens", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeLocked(ctx, caller, "earn_tokens"); err != nil {
		return 0, err
	}
	if acct.IsZero() {
		return 0, ErrInvalidIdentity
	}
	if !earningType.Valid() {
		return 0, ErrUnknownEarningType
	}
	rate, ok := s.cfg.EarningRates[earningType]
	value, err := resolveAmount(amount, rate, ok)
	if err != nil {
		return 0, err
	}

	p := s.begin()
	if earningType == domain.EarningPlatformUsage && s.earnedTodayLocked(acct, domain.EarningPlatformUsage, p.now) {
		return 0, ErrDailyLimitReached
	}
	if err = p.mint(acct, value); err != nil {
		return 0, err
	}
	tx := p.append(domain.Earn{To: acct, EarningType: earningType, Amount: value}, nil, nil)
	p.cs.Earnings = []domain.EarningRecord{{
		Account:     acct,
		EarningType: earningType,
		Amount:      value,
		Description: earningType.Description(),
		Timestamp:   p.now,
		TxIndex:     tx.Index,
	}}
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", "earn").
		WithField("tx_index", tx.Index).
		WithField("account", acct.String()).
		WithField("earning_type", string(earningType)).
		Debug("earning committed")
	return tx.Index, nil
}

// SpendTokens burns the cost of a premium feature from acct. A nil amount
// resolves from the spending cost table.
func (s *Service) SpendTokens(ctx context.Context, caller string, acct domain.Account, spendingType domain.SpendingType, amount *uint64) (index uint64, err error) {
	defer s.observe("spend_tokens", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, acct, "spend_tokens"); err != nil {
		return 0, err
	}
	if !spendingType.Valid() {
		return 0, ErrUnknownSpendingType
	}
	cost, ok := s.cfg.SpendingCosts[spendingType]
	value, err := resolveAmount(amount, cost, ok)
	if err != nil {
		return 0, err
	}

	p := s.begin()
	if err = p.burn(acct, value); err != nil {
		return 0, err
	}
	tx := p.append(domain.Spend{From: acct, SpendingType: spendingType, Amount: value}, nil, nil)
	p.cs.Spendings = []domain.SpendingRecord{{
		Account:      acct,
		SpendingType: spendingType,
		Amount:       value,
		Description:  spendingType.Description(),
		Timestamp:    p.now,
		TxIndex:      tx.Index,
	}}
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", "spend").
		WithField("tx_index", tx.Index).
		WithField("account", acct.String()).
		WithField("spending_type", string(spendingType)).
		Debug("spending committed")
	return tx.Index, nil
}

// resolveAmount prefers an explicit positive override, then the configured value.
func resolveAmount(override *uint64, configured uint64, ok bool) (uint64, error) {
	if override != nil {
		if *override == 0 {
			return 0, ErrInvalidAmount
		}
		return *override, nil
	}
	if !ok || configured == 0 {
		return 0, ErrRateNotConfigured
	}
	return configured, nil
}

func (s *Service) earnedTodayLocked(acct domain.Account, t domain.EarningType, now time.Time) bool {
	dayStart := startOfDay(now)
	records := s.earnings[acct]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Timestamp.Before(dayStart) {
			return false
		}
		if records[i].EarningType == t {
			return true
		}
	}
	return false
}

// GetUserEarningHistory returns acct's earning records in chronological
// order, starting at offset start.
func (s *Service) GetUserEarningHistory(acct domain.Account, start, limit int) []domain.EarningRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageOf(s.earnings[acct], start, s.pageBounds(limit))
}

// GetUserSpendingHistory returns acct's spending records in chronological
// order, starting at offset start.
func (s *Service) GetUserSpendingHistory(acct domain.Account, start, limit int) []domain.SpendingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageOf(s.spendings[acct], start, s.pageBounds(limit))
}

// EarningRates returns a copy of the earning rate table.
func (s *Service) EarningRates() map[domain.EarningType]uint64 {
	out := make(map[domain.EarningType]uint64, len(s.cfg.EarningRates))
	for k, v := range s.cfg.EarningRates {
		out[k] = v
	}
	return out
}

// SpendingCosts returns a copy of the spending cost table.
func (s *Service) SpendingCosts() map[domain.SpendingType]uint64 {
	out := make(map[domain.SpendingType]uint64, len(s.cfg.SpendingCosts))
	for k, v := range s.cfg.SpendingCosts {
		out[k] = v
	}
	return out
}

func pageOf[T any](items []T, start, limit int) []T {
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[start:end]...)
}
