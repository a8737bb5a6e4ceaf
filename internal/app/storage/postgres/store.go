package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Store implements storage.LedgerStore backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.LedgerStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB { return s.db.DB }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// numeric maps NUMERIC(20,0) columns onto uint64.
type numeric uint64

func (n *numeric) Scan(src interface{}) error {
	var text string
	switch v := src.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("negative amount %d", v)
		}
		*n = numeric(v)
		return nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return fmt.Errorf("unsupported amount type %T", src)
	}
	u, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", text, err)
	}
	*n = numeric(u)
	return nil
}

func (n numeric) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(n), 10), nil
}

type balanceRow struct {
	Account string  `db:"account"`
	Balance numeric `db:"balance"`
}

type stakeRow struct {
	Account         string          `db:"account"`
	Amount          numeric         `db:"amount"`
	LockSeconds     int64           `db:"lock_period_seconds"`
	StakedAt        time.Time       `db:"staked_at"`
	LastRewardClaim time.Time       `db:"last_reward_claim"`
	RewardRate      decimal.Decimal `db:"reward_rate"`
}

type transactionRow struct {
	Index     int64      `db:"idx"`
	Timestamp time.Time  `db:"ts"`
	Kind      string     `db:"kind"`
	Operation []byte     `db:"operation"`
	Memo      []byte     `db:"memo"`
	CreatedAt *time.Time `db:"created_at"`
}

type earningRow struct {
	Account     string    `db:"account"`
	Type        string    `db:"earning_type"`
	Amount      numeric   `db:"amount"`
	Description string    `db:"description"`
	Timestamp   time.Time `db:"ts"`
	TxIndex     int64     `db:"tx_index"`
}

type spendingRow struct {
	Account     string    `db:"account"`
	Type        string    `db:"spending_type"`
	Amount      numeric   `db:"amount"`
	Description string    `db:"description"`
	Timestamp   time.Time `db:"ts"`
	TxIndex     int64     `db:"tx_index"`
}

type faucetClaimRow struct {
	ID        string    `db:"id"`
	Account   string    `db:"account"`
	Amount    numeric   `db:"amount"`
	Timestamp time.Time `db:"ts"`
	Status    string    `db:"status"`
	TxIndex   int64     `db:"tx_index"`
}

type activityRow struct {
	Owner      string    `db:"owner"`
	LastActive time.Time `db:"last_active"`
}

type callerRow struct {
	Caller  string `db:"caller"`
	Revoked bool   `db:"revoked"`
}

type stateRow struct {
	NextIndex int64  `db:"next_index"`
	Faucet    []byte `db:"faucet"`
}

// LoadLedger reads the persisted state. With maxTransactions > 0 only the
// newest maxTransactions log entries are returned.
func (s *Store) LoadLedger(ctx context.Context, maxTransactions int) (ledger.Snapshot, error) {
	snap := ledger.NewSnapshot()

	var state stateRow
	err := s.db.GetContext(ctx, &state, `SELECT next_index, faucet FROM ledger_state WHERE id = 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return ledger.Snapshot{}, fmt.Errorf("load ledger state: %w", err)
	default:
		snap.NextIndex = uint64(state.NextIndex)
		if len(state.Faucet) > 0 {
			var faucet ledger.FaucetState
			if err := json.Unmarshal(state.Faucet, &faucet); err != nil {
				return ledger.Snapshot{}, fmt.Errorf("decode faucet state: %w", err)
			}
			faucet.LastReset = faucet.LastReset.UTC()
			snap.Faucet = &faucet
		}
	}

	var balances []balanceRow
	if err := s.db.SelectContext(ctx, &balances, `SELECT account, balance FROM ledger_balances`); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load balances: %w", err)
	}
	for _, row := range balances {
		acct, err := ledger.ParseAccount(row.Account)
		if err != nil {
			return ledger.Snapshot{}, err
		}
		snap.Balances[acct] = uint64(row.Balance)
	}

	var stakes []stakeRow
	if err := s.db.SelectContext(ctx, &stakes, `
		SELECT account, amount, lock_period_seconds, staked_at, last_reward_claim, reward_rate
		FROM ledger_stakes
	`); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load stakes: %w", err)
	}
	for _, row := range stakes {
		acct, err := ledger.ParseAccount(row.Account)
		if err != nil {
			return ledger.Snapshot{}, err
		}
		snap.Stakes[acct] = ledger.StakeInfo{
			Account:         acct,
			Amount:          uint64(row.Amount),
			LockPeriod:      time.Duration(row.LockSeconds) * time.Second,
			StakedAt:        row.StakedAt.UTC(),
			LastRewardClaim: row.LastRewardClaim.UTC(),
			RewardRate:      row.RewardRate,
		}
	}

	var txRows []transactionRow
	if maxTransactions > 0 {
		err = s.db.SelectContext(ctx, &txRows, `
			SELECT idx, ts, kind, operation, memo, created_at FROM (
				SELECT idx, ts, kind, operation, memo, created_at
				FROM ledger_transactions
				ORDER BY idx DESC
				LIMIT $1
			) recent
			ORDER BY idx
		`, maxTransactions)
	} else {
		err = s.db.SelectContext(ctx, &txRows, `
			SELECT idx, ts, kind, operation, memo, created_at
			FROM ledger_transactions
			ORDER BY idx
		`)
	}
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	for _, row := range txRows {
		op, err := ledger.DecodeOperation(ledger.OperationKind(row.Kind), row.Operation)
		if err != nil {
			return ledger.Snapshot{}, fmt.Errorf("transaction %d: %w", row.Index, err)
		}
		tx := ledger.Transaction{
			Index:     uint64(row.Index),
			Timestamp: row.Timestamp.UTC(),
			Operation: op,
			Memo:      row.Memo,
		}
		if row.CreatedAt != nil {
			created := row.CreatedAt.UTC()
			tx.CreatedAt = &created
		}
		snap.Transactions = append(snap.Transactions, tx)
		if tx.Index+1 > snap.NextIndex {
			snap.NextIndex = tx.Index + 1
		}
	}

	if err := s.loadHistories(ctx, &snap); err != nil {
		return ledger.Snapshot{}, err
	}

	var callers []callerRow
	if err := s.db.SelectContext(ctx, &callers, `
		SELECT caller, revoked_at IS NOT NULL AS revoked
		FROM ledger_authorized_callers
		ORDER BY caller
	`); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load authorized callers: %w", err)
	}
	for _, row := range callers {
		if row.Revoked {
			snap.RevokedCallers = append(snap.RevokedCallers, row.Caller)
			continue
		}
		snap.AuthorizedCallers = append(snap.AuthorizedCallers, row.Caller)
	}

	var activity []activityRow
	if err := s.db.SelectContext(ctx, &activity, `SELECT owner, last_active FROM ledger_activity`); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load activity: %w", err)
	}
	for _, row := range activity {
		snap.Activity[row.Owner] = row.LastActive.UTC()
	}
	return snap, nil
}

func (s *Store) loadHistories(ctx context.Context, snap *ledger.Snapshot) error {
	var earnings []earningRow
	if err := s.db.SelectContext(ctx, &earnings, `
		SELECT account, earning_type, amount, description, ts, tx_index
		FROM ledger_earnings
		ORDER BY id
	`); err != nil {
		return fmt.Errorf("load earnings: %w", err)
	}
	for _, row := range earnings {
		acct, err := ledger.ParseAccount(row.Account)
		if err != nil {
			return err
		}
		snap.Earnings[acct] = append(snap.Earnings[acct], ledger.EarningRecord{
			Account:     acct,
			EarningType: ledger.EarningType(row.Type),
			Amount:      uint64(row.Amount),
			Description: row.Description,
			Timestamp:   row.Timestamp.UTC(),
			TxIndex:     uint64(row.TxIndex),
		})
	}

	var spendings []spendingRow
	if err := s.db.SelectContext(ctx, &spendings, `
		SELECT account, spending_type, amount, description, ts, tx_index
		FROM ledger_spendings
		ORDER BY id
	`); err != nil {
		return fmt.Errorf("load spendings: %w", err)
	}
	for _, row := range spendings {
		acct, err := ledger.ParseAccount(row.Account)
		if err != nil {
			return err
		}
		snap.Spendings[acct] = append(snap.Spendings[acct], ledger.SpendingRecord{
			Account:      acct,
			SpendingType: ledger.SpendingType(row.Type),
			Amount:       uint64(row.Amount),
			Description:  row.Description,
			Timestamp:    row.Timestamp.UTC(),
			TxIndex:      uint64(row.TxIndex),
		})
	}

	var claims []faucetClaimRow
	if err := s.db.SelectContext(ctx, &claims, `
		SELECT id, account, amount, ts, status, tx_index
		FROM ledger_faucet_claims
		ORDER BY tx_index
	`); err != nil {
		return fmt.Errorf("load faucet claims: %w", err)
	}
	for _, row := range claims {
		acct, err := ledger.ParseAccount(row.Account)
		if err != nil {
			return err
		}
		snap.FaucetClaims[acct] = append(snap.FaucetClaims[acct], ledger.FaucetClaim{
			ID:        row.ID,
			Account:   acct,
			Amount:    uint64(row.Amount),
			Timestamp: row.Timestamp.UTC(),
			Status:    row.Status,
			TxIndex:   uint64(row.TxIndex),
		})
	}
	return nil
}

// CommitLedger applies cs in a single database transaction.
func (s *Store) CommitLedger(ctx context.Context, cs ledger.Changeset) (err error) {
	if cs.IsEmpty() {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = commitTransactions(ctx, tx, cs.Transactions); err != nil {
		return err
	}
	if err = commitBalances(ctx, tx, cs.Balances); err != nil {
		return err
	}
	if err = commitStakes(ctx, tx, cs); err != nil {
		return err
	}
	if err = commitHistories(ctx, tx, cs); err != nil {
		return err
	}
	if cs.Faucet != nil {
		raw, merr := json.Marshal(cs.Faucet)
		if merr != nil {
			return fmt.Errorf("encode faucet state: %w", merr)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_state (id, next_index, faucet) VALUES (1, 0, $1)
			ON CONFLICT (id) DO UPDATE SET faucet = EXCLUDED.faucet
		`, raw); err != nil {
			return fmt.Errorf("store faucet state: %w", err)
		}
	}
	if err = commitAccess(ctx, tx, cs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}

func commitTransactions(ctx context.Context, tx *sqlx.Tx, txs []ledger.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	var next uint64
	for _, t := range txs {
		payload, err := json.Marshal(t.Operation)
		if err != nil {
			return fmt.Errorf("encode transaction %d: %w", t.Index, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (idx, ts, kind, operation, memo, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, int64(t.Index), t.Timestamp.UTC(), string(t.Operation.Kind()), payload, t.Memo, t.CreatedAt); err != nil {
			return fmt.Errorf("insert transaction %d: %w", t.Index, err)
		}
		next = t.Index + 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_state (id, next_index) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET next_index = EXCLUDED.next_index
	`, int64(next)); err != nil {
		return fmt.Errorf("store next index: %w", err)
	}
	return nil
}

func commitBalances(ctx context.Context, tx *sqlx.Tx, balances map[ledger.Account]uint64) error {
	keys := make([]ledger.Account, 0, len(balances))
	for acct := range balances {
		keys = append(keys, acct)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, acct := range keys {
		var err error
		if amount := balances[acct]; amount == 0 {
			_, err = tx.ExecContext(ctx, `DELETE FROM ledger_balances WHERE account = $1`, acct.String())
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ledger_balances (account, balance) VALUES ($1, $2)
				ON CONFLICT (account) DO UPDATE SET balance = EXCLUDED.balance
			`, acct.String(), numeric(amount))
		}
		if err != nil {
			return fmt.Errorf("store balance %s: %w", acct, err)
		}
	}
	return nil
}

func commitStakes(ctx context.Context, tx *sqlx.Tx, cs ledger.Changeset) error {
	for _, st := range cs.StakesPut {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_stakes (account, amount, lock_period_seconds, staked_at, last_reward_claim, reward_rate)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account) DO UPDATE
			SET amount = EXCLUDED.amount,
			    lock_period_seconds = EXCLUDED.lock_period_seconds,
			    staked_at = EXCLUDED.staked_at,
			    last_reward_claim = EXCLUDED.last_reward_claim,
			    reward_rate = EXCLUDED.reward_rate
		`, st.Account.String(), numeric(st.Amount), int64(st.LockPeriod/time.Second),
			st.StakedAt.UTC(), st.LastRewardClaim.UTC(), st.RewardRate.String()); err != nil {
			return fmt.Errorf("store stake %s: %w", st.Account, err)
		}
	}
	for _, acct := range cs.StakesDeleted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_stakes WHERE account = $1`, acct.String()); err != nil {
			return fmt.Errorf("delete stake %s: %w", acct, err)
		}
	}
	return nil
}

func commitHistories(ctx context.Context, tx *sqlx.Tx, cs ledger.Changeset) error {
	for _, rec := range cs.Earnings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_earnings (account, earning_type, amount, description, ts, tx_index)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.Account.String(), string(rec.EarningType), numeric(rec.Amount), rec.Description,
			rec.Timestamp.UTC(), int64(rec.TxIndex)); err != nil {
			return fmt.Errorf("insert earning: %w", err)
		}
	}
	for _, rec := range cs.Spendings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_spendings (account, spending_type, amount, description, ts, tx_index)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.Account.String(), string(rec.SpendingType), numeric(rec.Amount), rec.Description,
			rec.Timestamp.UTC(), int64(rec.TxIndex)); err != nil {
			return fmt.Errorf("insert spending: %w", err)
		}
	}
	for _, claim := range cs.FaucetClaims {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_faucet_claims (id, account, amount, ts, status, tx_index)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, claim.ID, claim.Account.String(), numeric(claim.Amount), claim.Timestamp.UTC(),
			claim.Status, int64(claim.TxIndex)); err != nil {
			return fmt.Errorf("insert faucet claim: %w", err)
		}
	}
	return nil
}

func commitAccess(ctx context.Context, tx *sqlx.Tx, cs ledger.Changeset) error {
	for _, caller := range cs.AuthorizedAdded {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_authorized_callers (caller) VALUES ($1)
			ON CONFLICT (caller) DO UPDATE SET added_at = NOW(), revoked_at = NULL
		`, caller); err != nil {
			return fmt.Errorf("add authorized caller: %w", err)
		}
	}
	// Removals are kept as tombstones so configured callers stay revoked.
	for _, caller := range cs.AuthorizedRemoved {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_authorized_callers (caller, revoked_at) VALUES ($1, NOW())
			ON CONFLICT (caller) DO UPDATE SET revoked_at = EXCLUDED.revoked_at
		`, caller); err != nil {
			return fmt.Errorf("revoke authorized caller: %w", err)
		}
	}

	owners := make([]string, 0, len(cs.Activity))
	for owner := range cs.Activity {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_activity (owner, last_active) VALUES ($1, $2)
			ON CONFLICT (owner) DO UPDATE SET last_active = EXCLUDED.last_active
		`, owner, cs.Activity[owner].UTC()); err != nil {
			return fmt.Errorf("store activity: %w", err)
		}
	}
	return nil
}
