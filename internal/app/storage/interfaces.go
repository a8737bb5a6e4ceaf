package storage

import (
	"context"

	"github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
)

// LedgerStore persists ledger state. CommitLedger must apply a changeset
// atomically: either every effect is durable or none is.
type LedgerStore interface {
	// LoadLedger returns the persisted state. maxTransactions bounds the
	// transaction tail returned; zero returns the full log.
	LoadLedger(ctx context.Context, maxTransactions int) (ledger.Snapshot, error)
	CommitLedger(ctx context.Context, cs ledger.Changeset) error
}

// TransactionSink receives transactions after they are committed. Publishing
// is best effort and must not block ledger progress.
type TransactionSink interface {
	Publish(ctx context.Context, txs []ledger.Transaction) error
}
