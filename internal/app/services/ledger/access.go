package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
)

// authorizeLocked is the single gate for privileged operations. The owner is
// always authorized. Passing calls are counted per caller.
func (s *Service) authorizeLocked(ctx context.Context, caller, op string) error {
	caller = strings.TrimSpace(caller)
	if caller != "" {
		if _, ok := s.authorized[caller]; ok || caller == s.cfg.Owner {
			s.callStats[caller]++
			return nil
		}
	}
	s.log.LogSecurityEvent(ctx, "unauthorized_ledger_call", map[string]interface{}{
		"caller": caller,
		"op":     op,
	})
	return ErrUnauthorized
}

// authorizeSelfLocked admits the account owner acting on its own account, or
// any authorized caller acting on its behalf.
func (s *Service) authorizeSelfLocked(ctx context.Context, caller string, acct domain.Account, op string) error {
	if c := strings.TrimSpace(caller); c != "" && c == acct.Owner {
		return nil
	}
	return s.authorizeLocked(ctx, caller, op)
}

func (s *Service) requireOwner(ctx context.Context, caller, op string) error {
	if strings.TrimSpace(caller) == s.cfg.Owner {
		return nil
	}
	s.log.LogSecurityEvent(ctx, "owner_only_call_rejected", map[string]interface{}{
		"caller": caller,
		"op":     op,
	})
	return ErrUnauthorized
}

// AddAuthorizedCaller grants identity access to privileged operations. Only
// the owner may call it; adding a present identity is a no-op.
func (s *Service) AddAuthorizedCaller(ctx context.Context, caller, identity string) (err error) {
	defer s.observe("add_authorized_caller", time.Now(), &err)
	identity = strings.TrimSpace(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.requireOwner(ctx, caller, "add_authorized_caller"); err != nil {
		return err
	}
	if identity == "" {
		return ErrInvalidIdentity
	}
	if _, ok := s.authorized[identity]; ok {
		return nil
	}
	p := s.begin()
	p.cs.AuthorizedAdded = []string{identity}
	if err = s.commit(ctx, p); err != nil {
		return err
	}
	s.log.WithField("identity", identity).Info("authorized caller added")
	return nil
}

// RemoveAuthorizedCaller revokes identity. The owner cannot be revoked.
func (s *Service) RemoveAuthorizedCaller(ctx context.Context, caller, identity string) (err error) {
	defer s.observe("remove_authorized_caller", time.Now(), &err)
	identity = strings.TrimSpace(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.requireOwner(ctx, caller, "remove_authorized_caller"); err != nil {
		return err
	}
	if identity == "" {
		return ErrInvalidIdentity
	}
	if _, ok := s.authorized[identity]; !ok {
		return nil
	}
	p := s.begin()
	p.cs.AuthorizedRemoved = []string{identity}
	if err = s.commit(ctx, p); err != nil {
		return err
	}
	s.log.WithField("identity", identity).Info("authorized caller removed")
	return nil
}

// IsAuthorized reports whether identity passes the privileged gate.
func (s *Service) IsAuthorized(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity == s.cfg.Owner {
		return true
	}
	_, ok := s.authorized[identity]
	return ok
}

// ListAuthorizedCallers returns the explicit allowlist, sorted.
func (s *Service) ListAuthorizedCallers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.authorized))
	for id := range s.authorized {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CallStats returns per-caller counts of privileged calls that passed the gate
// since this process started. The counts are not persisted: they survive Load
// but a restarted service begins at zero.
func (s *Service) CallStats() []domain.CallStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CallStat, 0, len(s.callStats))
	for caller, n := range s.callStats {
		out = append(out, domain.CallStat{Caller: caller, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Caller < out[j].Caller
	})
	return out
}
