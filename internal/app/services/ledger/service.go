package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage"
	"github.com/R3E-Network/token_ledger/pkg/logger"
)

// Observer receives operation outcomes, typically a metrics collector.
type Observer interface {
	OperationCompleted(op, code string, duration time.Duration)
	SupplyChanged(totalSupply uint64, accounts, stakes int)
}

// Service is the token ledger engine. Mutating calls are serialised by a
// single write lock and persisted through the store before they become
// visible; reads share a read lock and never observe a partial mutation.
type Service struct {
	store    storage.LedgerStore
	cfg      Config
	log      *logger.Logger
	clock    func() time.Time
	sink     storage.TransactionSink
	observer Observer

	mu           sync.RWMutex
	balances     map[domain.Account]uint64
	stakes       map[domain.Account]domain.StakeInfo
	totalSupply  uint64
	txlog        *txLog
	earnings     map[domain.Account][]domain.EarningRecord
	spendings    map[domain.Account][]domain.SpendingRecord
	faucetClaims map[domain.Account][]domain.FaucetClaim
	faucet       domain.FaucetState
	authorized   map[string]struct{}
	activity     map[string]time.Time
	callStats    map[string]uint64
	dedup        *dedupIndex
}

// New constructs a ledger service. Call Load before serving traffic when the
// store may already hold state.
func New(store storage.LedgerStore, cfg Config, log *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	normalized, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	s := &Service{
		store: store,
		cfg:   normalized,
		log:   log,
		clock: func() time.Time { return time.Now().UTC() },
	}
	s.reset(domain.NewSnapshot())
	return s, nil
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clock != nil {
		s.clock = clock
	}
	if s.faucet.TotalClaims == 0 {
		s.faucet.LastReset = startOfDay(s.clock())
	}
}

// WithSink attaches a best-effort downstream publisher of committed transactions.
func (s *Service) WithSink(sink storage.TransactionSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// WithObserver attaches an operation observer.
func (s *Service) WithObserver(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// Config returns the normalised configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Load replaces the in-memory state with the persisted snapshot.
func (s *Service) Load(ctx context.Context) error {
	snap, err := s.store.LoadLedger(ctx, s.cfg.MaxLogEntries)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(snap)
	s.log.WithField("accounts", len(s.balances)).
		WithField("stakes", len(s.stakes)).
		WithField("next_index", s.txlog.next).
		WithField("total_supply", s.totalSupply).
		Info("ledger state loaded")
	return nil
}

func (s *Service) reset(snap domain.Snapshot) {
	s.balances = make(map[domain.Account]uint64, len(snap.Balances))
	var supply uint64
	overflow := false
	for acct, bal := range snap.Balances {
		if bal == 0 {
			continue
		}
		s.balances[acct] = bal
		if supply > math.MaxUint64-bal {
			overflow = true
		}
		supply += bal
	}
	s.stakes = make(map[domain.Account]domain.StakeInfo, len(snap.Stakes))
	for acct, st := range snap.Stakes {
		st.Account = acct
		s.stakes[acct] = st
		if supply > math.MaxUint64-st.Amount {
			overflow = true
		}
		supply += st.Amount
	}
	if overflow && s.log != nil {
		s.log.Warn("persisted supply overflows uint64")
	}
	s.totalSupply = supply

	s.txlog = newTxLog(s.cfg.MaxLogEntries)
	s.txlog.restore(snap.Transactions, snap.NextIndex)

	s.earnings = make(map[domain.Account][]domain.EarningRecord, len(snap.Earnings))
	for k, v := range snap.Earnings {
		s.earnings[k] = append([]domain.EarningRecord(nil), v...)
	}
	s.spendings = make(map[domain.Account][]domain.SpendingRecord, len(snap.Spendings))
	for k, v := range snap.Spendings {
		s.spendings[k] = append([]domain.SpendingRecord(nil), v...)
	}
	s.faucetClaims = make(map[domain.Account][]domain.FaucetClaim, len(snap.FaucetClaims))
	for k, v := range snap.FaucetClaims {
		s.faucetClaims[k] = append([]domain.FaucetClaim(nil), v...)
	}

	if snap.Faucet != nil {
		s.faucet = snap.Faucet.Clone()
	} else {
		s.faucet = domain.FaucetState{
			Enabled:          s.cfg.Faucet.Enabled,
			ClaimAmount:      s.cfg.Faucet.ClaimAmount,
			AccountLimit:     s.cfg.Faucet.AccountLimit,
			DailyLimit:       s.cfg.Faucet.DailyLimit,
			ClaimedByAccount: make(map[domain.Account]uint64),
		}
		if s.clock != nil {
			s.faucet.LastReset = startOfDay(s.clock())
		}
	}

	revoked := make(map[string]struct{}, len(snap.RevokedCallers))
	for _, id := range snap.RevokedCallers {
		revoked[id] = struct{}{}
	}
	s.authorized = make(map[string]struct{})
	for _, id := range s.cfg.AuthorizedCallers {
		if _, ok := revoked[id]; !ok {
			s.authorized[id] = struct{}{}
		}
	}
	for _, id := range snap.AuthorizedCallers {
		s.authorized[id] = struct{}{}
	}
	s.activity = make(map[string]time.Time, len(snap.Activity))
	for k, v := range snap.Activity {
		s.activity[k] = v
	}
	if s.callStats == nil {
		s.callStats = make(map[string]uint64)
	}

	s.dedup = newDedupIndex()
	for _, tx := range snap.Transactions {
		if tr, ok := tx.Operation.(domain.Transfer); ok && tx.CreatedAt != nil {
			s.dedup.add(fingerprint(tr, tx.Memo, *tx.CreatedAt), tx.Index, tx.Timestamp)
		}
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// pending accumulates the effect of one mutating call on top of the current
// state. Nothing is visible until commit succeeds.
type pending struct {
	s      *Service
	now    time.Time
	cs     domain.Changeset
	next   uint64
	supply uint64
	fps    map[[32]byte]uint64
}

func (s *Service) begin() *pending {
	return &pending{
		s:      s,
		now:    s.now(),
		cs:     domain.Changeset{Balances: make(map[domain.Account]uint64)},
		next:   s.txlog.next,
		supply: s.totalSupply,
	}
}

func (p *pending) balance(acct domain.Account) uint64 {
	if bal, ok := p.cs.Balances[acct]; ok {
		return bal
	}
	return p.s.balances[acct]
}

func (p *pending) credit(acct domain.Account, amount uint64) error {
	bal := p.balance(acct)
	if bal > math.MaxUint64-amount {
		return ErrOverflow
	}
	p.cs.Balances[acct] = bal + amount
	return nil
}

func (p *pending) debit(acct domain.Account, amount uint64) error {
	bal := p.balance(acct)
	if bal < amount {
		return &InsufficientFundsError{Balance: bal}
	}
	p.cs.Balances[acct] = bal - amount
	return nil
}

func (p *pending) mint(acct domain.Account, amount uint64) error {
	if p.supply > math.MaxUint64-amount {
		return ErrOverflow
	}
	if err := p.credit(acct, amount); err != nil {
		return err
	}
	p.supply += amount
	return nil
}

func (p *pending) burn(acct domain.Account, amount uint64) error {
	if err := p.debit(acct, amount); err != nil {
		return err
	}
	if p.supply < amount {
		return fmt.Errorf("burn of %d exceeds total supply %d", amount, p.supply)
	}
	p.supply -= amount
	return nil
}

func (p *pending) append(op domain.Operation, memo []byte, createdAt *time.Time) domain.Transaction {
	tx := domain.Transaction{
		Index:     p.next,
		Timestamp: p.now,
		Operation: op,
		Memo:      memo,
		CreatedAt: createdAt,
	}
	p.next++
	p.cs.Transactions = append(p.cs.Transactions, tx)
	return tx
}

// commit persists the changeset and then applies it to memory. Callers hold
// the write lock.
func (s *Service) commit(ctx context.Context, p *pending) error {
	if err := s.store.CommitLedger(ctx, p.cs); err != nil {
		return fmt.Errorf("commit ledger changes: %w", err)
	}
	s.apply(p)
	if s.sink != nil && len(p.cs.Transactions) > 0 {
		if err := s.sink.Publish(ctx, p.cs.Transactions); err != nil {
			s.log.WithError(err).Warn("publish ledger transactions failed")
		}
	}
	if s.observer != nil {
		s.observer.SupplyChanged(s.totalSupply, len(s.balances), len(s.stakes))
	}
	return nil
}

func (s *Service) apply(p *pending) {
	cs := p.cs
	for acct, bal := range cs.Balances {
		if bal == 0 {
			delete(s.balances, acct)
			continue
		}
		s.balances[acct] = bal
	}
	for _, st := range cs.StakesPut {
		s.stakes[st.Account] = st
	}
	for _, acct := range cs.StakesDeleted {
		delete(s.stakes, acct)
	}
	for _, tx := range cs.Transactions {
		s.txlog.append(tx)
	}
	for fp, idx := range p.fps {
		s.dedup.add(fp, idx, p.now)
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
		s.faucet = cs.Faucet.Clone()
	}
	for _, id := range cs.AuthorizedAdded {
		s.authorized[id] = struct{}{}
	}
	for _, id := range cs.AuthorizedRemoved {
		delete(s.authorized, id)
	}
	for id, at := range cs.Activity {
		s.activity[id] = at
	}
	s.totalSupply = p.supply
}

// observe reports an operation outcome; use with defer.
func (s *Service) observe(op string, started time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	if s.observer != nil {
		s.observer.OperationCompleted(op, Code(err), time.Since(started))
	}
	if err != nil && !IsBusinessError(err) {
		s.log.WithError(err).WithField("op", op).Error("ledger operation failed")
	}
}

func (s *Service) pageBounds(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return limit
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
