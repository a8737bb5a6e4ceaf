package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	balances     map[ledger.Account]uint64
	stakes       map[ledger.Account]ledger.StakeInfo
	transactions []ledger.Transaction
	nextIndex    uint64
	earnings     map[ledger.Account][]ledger.EarningRecord
	spendings    map[ledger.Account][]ledger.SpendingRecord
	faucetClaims map[ledger.Account][]ledger.FaucetClaim
	faucet       *ledger.FaucetState
	authorized   map[string]struct{}
	revoked      map[string]struct{}
	activity     map[string]time.Time
	commits      int
}

var _ storage.LedgerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		balances:     make(map[ledger.Account]uint64),
		stakes:       make(map[ledger.Account]ledger.StakeInfo),
		earnings:     make(map[ledger.Account][]ledger.EarningRecord),
		spendings:    make(map[ledger.Account][]ledger.SpendingRecord),
		faucetClaims: make(map[ledger.Account][]ledger.FaucetClaim),
		authorized:   make(map[string]struct{}),
		revoked:      make(map[string]struct{}),
		activity:     make(map[string]time.Time),
	}
}

// LedgerStore implementation ----------------------------------------------------

func (s *Store) LoadLedger(_ context.Context, maxTransactions int) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := ledger.NewSnapshot()
	for k, v := range s.balances {
		snap.Balances[k] = v
	}
	for k, v := range s.stakes {
		snap.Stakes[k] = v
	}
	txs := s.transactions
	if maxTransactions > 0 && len(txs) > maxTransactions {
		txs = txs[len(txs)-maxTransactions:]
	}
	snap.Transactions = append([]ledger.Transaction(nil), txs...)
	snap.NextIndex = s.nextIndex
	for k, v := range s.earnings {
		snap.Earnings[k] = append([]ledger.EarningRecord(nil), v...)
	}
	for k, v := range s.spendings {
		snap.Spendings[k] = append([]ledger.SpendingRecord(nil), v...)
	}
	for k, v := range s.faucetClaims {
		snap.FaucetClaims[k] = append([]ledger.FaucetClaim(nil), v...)
	}
	if s.faucet != nil {
		fs := s.faucet.Clone()
		snap.Faucet = &fs
	}
	for id := range s.authorized {
		snap.AuthorizedCallers = append(snap.AuthorizedCallers, id)
	}
	sort.Strings(snap.AuthorizedCallers)
	for id := range s.revoked {
		snap.RevokedCallers = append(snap.RevokedCallers, id)
	}
	sort.Strings(snap.RevokedCallers)
	for k, v := range s.activity {
		snap.Activity[k] = v
	}
	return snap, nil
}

func (s *Store) CommitLedger(_ context.Context, cs ledger.Changeset) error {
	if cs.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range cs.Transactions {
		s.transactions = append(s.transactions, tx)
		if tx.Index >= s.nextIndex {
			s.nextIndex = tx.Index + 1
		}
	}
	for acct, bal := range cs.Balances {
		if bal == 0 {
			delete(s.balances, acct)
			continue
		}
		s.balances[acct] = bal
	}
	for _, stake := range cs.StakesPut {
		s.stakes[stake.Account] = stake
	}
	for _, acct := range cs.StakesDeleted {
		delete(s.stakes, acct)
	}
	for _, rec := range cs.Earnings {
		s.earnings[rec.Account] = append(s.earnings[rec.Account], rec)
	}
	for _, rec := range cs.Spendings {
		s.spendings[rec.Account] = append(s.spendings[rec.Account], rec)
	}
	for _, claim := range cs.FaucetClaims {
		s.faucetClaims[claim.Account] = append(s.faucetClaims[claim.Account], claim)
	}
	if cs.Faucet != nil {
		fs := cs.Faucet.Clone()
		s.faucet = &fs
	}
	for _, id := range cs.AuthorizedAdded {
		s.authorized[id] = struct{}{}
		delete(s.revoked, id)
	}
	for _, id := range cs.AuthorizedRemoved {
		delete(s.authorized, id)
		s.revoked[id] = struct{}{}
	}
	for id, at := range cs.Activity {
		s.activity[id] = at
	}
	s.commits++
	return nil
}

// Commits returns how many non-empty changesets were applied.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}
