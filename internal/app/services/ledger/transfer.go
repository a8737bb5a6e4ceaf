package ledger

import (
	"context"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
)

// TransferArgs describes a peer-to-peer transfer.
type TransferArgs struct {
	From      domain.Account
	To        domain.Account
	Amount    uint64
	Fee       *uint64
	Memo      []byte
	CreatedAt *time.Time
}

// BalanceOf returns the spendable balance of acct. Absent accounts hold zero.
func (s *Service) BalanceOf(acct domain.Account) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[acct]
}

// Transfer debits From by Amount plus the ledger fee and credits To by Amount.
// The fee is burned. Replay checks apply only when CreatedAt is set.
func (s *Service) Transfer(ctx context.Context, caller string, args TransferArgs) (index uint64, err error) {
	defer s.observe("transfer", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, args.From, "transfer"); err != nil {
		return 0, err
	}
	if args.From.IsZero() || args.To.IsZero() {
		return 0, ErrInvalidIdentity
	}
	if args.Amount == 0 {
		return 0, ErrInvalidAmount
	}
	if len(args.Memo) > s.cfg.MaxMemoBytes {
		return 0, ErrMemoTooLong
	}
	fee := s.cfg.TransferFee
	if args.Fee != nil && *args.Fee != fee {
		return 0, &BadFeeError{ExpectedFee: fee}
	}

	p := s.begin()
	op := domain.Transfer{From: args.From, To: args.To, Amount: args.Amount, Fee: fee}

	var createdAt *time.Time
	if args.CreatedAt != nil {
		ts := args.CreatedAt.UTC()
		createdAt = &ts
		if ts.Before(p.now.Add(-s.cfg.TxWindow - s.cfg.PermittedDrift)) {
			return 0, ErrTooOld
		}
		if ts.After(p.now.Add(s.cfg.PermittedDrift)) {
			return 0, &CreatedInFutureError{LedgerTime: p.now}
		}
		s.dedup.prune(p.now.Add(-s.cfg.TxWindow - 2*s.cfg.PermittedDrift))
		fp := fingerprint(op, args.Memo, ts)
		if dup, ok := s.dedup.lookup(fp); ok {
			return 0, &DuplicateError{DuplicateOf: dup}
		}
		p.fps = map[[32]byte]uint64{fp: p.next}
	}

	total := args.Amount + fee
	if total < args.Amount {
		return 0, ErrOverflow
	}
	if bal := p.balance(args.From); bal < total {
		return 0, &InsufficientFundsError{Balance: bal}
	}
	if err = p.debit(args.From, args.Amount); err != nil {
		return 0, err
	}
	if fee > 0 {
		if err = p.burn(args.From, fee); err != nil {
			return 0, err
		}
	}
	if err = p.credit(args.To, args.Amount); err != nil {
		return 0, err
	}
	tx := p.append(op, cloneBytes(args.Memo), createdAt)
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", "transfer").
		WithField("tx_index", tx.Index).
		WithField("from", args.From.String()).
		WithField("to", args.To.String()).
		Debug("transfer committed")
	return tx.Index, nil
}

// Mint credits to and increases the total supply. Privileged.
func (s *Service) Mint(ctx context.Context, caller string, to domain.Account, amount uint64, memo []byte) (index uint64, err error) {
	defer s.observe("mint", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeLocked(ctx, caller, "mint"); err != nil {
		return 0, err
	}
	if to.IsZero() {
		return 0, ErrInvalidIdentity
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if len(memo) > s.cfg.MaxMemoBytes {
		return 0, ErrMemoTooLong
	}
	p := s.begin()
	if err = p.mint(to, amount); err != nil {
		return 0, err
	}
	tx := p.append(domain.Mint{To: to, Amount: amount}, cloneBytes(memo), nil)
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", "mint").WithField("tx_index", tx.Index).WithField("account", to.String()).Debug("mint committed")
	return tx.Index, nil
}

// Burn removes amount from from and from the total supply. The account owner
// may burn its own tokens; anyone else must be authorized.
func (s *Service) Burn(ctx context.Context, caller string, from domain.Account, amount uint64) (uint64, error) {
	return s.burn(ctx, caller, from, amount, "", "burn")
}

// EnhancedBurn is Burn with a reason recorded in the transaction memo.
func (s *Service) EnhancedBurn(ctx context.Context, caller string, from domain.Account, amount uint64, reason string) (uint64, error) {
	return s.burn(ctx, caller, from, amount, reason, "enhanced_burn")
}

func (s *Service) burn(ctx context.Context, caller string, from domain.Account, amount uint64, reason, op string) (index uint64, err error) {
	defer s.observe(op, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.authorizeSelfLocked(ctx, caller, from, op); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if amount < s.cfg.MinBurnAmount {
		return 0, &BadBurnError{MinBurnAmount: s.cfg.MinBurnAmount}
	}
	if len(reason) > s.cfg.MaxMemoBytes {
		return 0, ErrMemoTooLong
	}
	p := s.begin()
	if err = p.burn(from, amount); err != nil {
		return 0, err
	}
	var memo []byte
	if reason != "" {
		memo = []byte(reason)
	}
	tx := p.append(domain.Burn{From: from, Amount: amount}, memo, nil)
	if err = s.commit(ctx, p); err != nil {
		return 0, err
	}
	s.log.WithField("op", op).WithField("tx_index", tx.Index).WithField("account", from.String()).Debug("burn committed")
	return tx.Index, nil
}

// Metadata returns the token description.
func (s *Service) Metadata() domain.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Metadata{
		Name:           s.cfg.Name,
		Symbol:         s.cfg.Symbol,
		Decimals:       s.cfg.Decimals,
		Fee:            s.cfg.TransferFee,
		TotalSupply:    s.totalSupply,
		MintingAccount: s.MintingAccount(),
	}
}

func (s *Service) Name() string    { return s.cfg.Name }
func (s *Service) Symbol() string  { return s.cfg.Symbol }
func (s *Service) Decimals() uint8 { return s.cfg.Decimals }
func (s *Service) Fee() uint64     { return s.cfg.TransferFee }
func (s *Service) MinBurn() uint64 { return s.cfg.MinBurnAmount }

// MintingAccount is the owner's default account.
func (s *Service) MintingAccount() domain.Account {
	return domain.NewAccount(s.cfg.Owner)
}

// TotalSupply returns circulating plus staked tokens.
func (s *Service) TotalSupply() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSupply
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
