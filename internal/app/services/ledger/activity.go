package ledger

import (
	"context"
	"strings"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
)

// MarkUserActive records that owner used the platform now. It is called by
// authorized platform services, not by users themselves.
func (s *Service) MarkUserActive(ctx context.Context, caller, owner string) (err error) {
	defer s.observe("mark_user_active", time.Now(), &err)
	owner = strings.TrimSpace(owner)

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner == "" {
		return ErrInvalidIdentity
	}
	if err = s.authorizeLocked(ctx, caller, "mark_user_active"); err != nil {
		return err
	}
	p := s.begin()
	p.cs.Activity = map[string]time.Time{owner: p.now}
	return s.commit(ctx, p)
}

// GetUserActivityStatus returns when owner was last active and whether a
// platform usage reward can be granted now.
func (s *Service) GetUserActivityStatus(owner string) domain.ActivityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := domain.ActivityStatus{Owner: owner}
	if at, ok := s.activity[owner]; ok {
		at := at
		status.LastActive = &at
	}
	status.Eligible = s.eligibleLocked(owner, s.now())
	return status
}

// GetRewardEligibility reports whether owner was active within the last day
// and has not yet received a platform usage reward today.
func (s *Service) GetRewardEligibility(owner string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eligibleLocked(owner, s.now())
}

func (s *Service) eligibleLocked(owner string, now time.Time) bool {
	at, ok := s.activity[owner]
	if !ok || now.Sub(at) > Day {
		return false
	}
	return !s.earnedTodayLocked(domain.NewAccount(owner), domain.EarningPlatformUsage, now)
}

// HealthCheck recomputes the conservation invariant over the live state.
func (s *Service) HealthCheck() domain.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := domain.Health{
		TotalAccounts:    len(s.balances),
		TotalSupply:      s.totalSupply,
		ActiveStakes:     len(s.stakes),
		TransactionCount: s.txlog.next,
	}
	overflow := false
	for _, bal := range s.balances {
		if h.CirculatingSum+bal < h.CirculatingSum {
			overflow = true
		}
		h.CirculatingSum += bal
	}
	for _, st := range s.stakes {
		if h.StakedSum+st.Amount < h.StakedSum {
			overflow = true
		}
		h.StakedSum += st.Amount
	}
	sum := h.CirculatingSum + h.StakedSum
	h.Conserved = !overflow && sum >= h.CirculatingSum && sum == s.totalSupply
	h.Status = "healthy"
	if !h.Conserved {
		h.Status = "degraded"
		s.log.WithField("total_supply", s.totalSupply).
			WithField("circulating", h.CirculatingSum).
			WithField("staked", h.StakedSum).
			Error("conservation invariant violated")
	}
	return h
}
