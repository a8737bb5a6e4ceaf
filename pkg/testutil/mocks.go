// Package testutil provides test doubles shared by the ledger packages.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage"
)

// ErrCommitFailed is returned by an armed FailingStore.
var ErrCommitFailed = errors.New("testutil: commit failed")

var (
	_ storage.LedgerStore     = (*FailingStore)(nil)
	_ storage.TransactionSink = (*RecordingSink)(nil)
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock fixed at start. A zero start uses 2024-03-01 12:00 UTC.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FailingStore wraps a LedgerStore and rejects commits once armed.
type FailingStore struct {
	storage.LedgerStore

	mu      sync.Mutex
	armed   bool
	commits int
}

// NewFailingStore wraps inner.
func NewFailingStore(inner storage.LedgerStore) *FailingStore {
	return &FailingStore{LedgerStore: inner}
}

// Arm makes every following commit fail with ErrCommitFailed.
func (f *FailingStore) Arm() {
	f.mu.Lock()
	f.armed = true
	f.mu.Unlock()
}

// Disarm restores normal commits.
func (f *FailingStore) Disarm() {
	f.mu.Lock()
	f.armed = false
	f.mu.Unlock()
}

// Commits counts successful commits.
func (f *FailingStore) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *FailingStore) CommitLedger(ctx context.Context, cs ledger.Changeset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed {
		return ErrCommitFailed
	}
	if err := f.LedgerStore.CommitLedger(ctx, cs); err != nil {
		return err
	}
	f.commits++
	return nil
}

// RecordingSink keeps every published transaction.
type RecordingSink struct {
	mu  sync.Mutex
	txs []ledger.Transaction
}

func (r *RecordingSink) Publish(_ context.Context, txs []ledger.Transaction) error {
	r.mu.Lock()
	r.txs = append(r.txs, txs...)
	r.mu.Unlock()
	return nil
}

// Count returns the number of transactions received.
func (r *RecordingSink) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

// Transactions returns a copy of the received transactions in order.
func (r *RecordingSink) Transactions() []ledger.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ledger.Transaction(nil), r.txs...)
}
