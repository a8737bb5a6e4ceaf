package ledger

import (
	"encoding/binary"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"golang.org/x/crypto/blake2b"
)

// txLog is the in-memory view of the append-only transaction log. With a
// positive capacity it behaves as a ring buffer that evicts the oldest
// entries; indices keep increasing regardless.
type txLog struct {
	capacity int
	entries  []domain.Transaction
	head     int
	next     uint64
}

func newTxLog(capacity int) *txLog {
	return &txLog{capacity: capacity}
}

func (l *txLog) restore(txs []domain.Transaction, next uint64) {
	l.entries = nil
	l.head = 0
	l.next = 0
	for _, tx := range txs {
		l.append(tx)
	}
	if next > l.next {
		l.next = next
	}
}

func (l *txLog) append(tx domain.Transaction) {
	if l.capacity > 0 && len(l.entries) == l.capacity {
		l.entries[l.head] = tx
		l.head = (l.head + 1) % l.capacity
	} else {
		l.entries = append(l.entries, tx)
	}
	l.next = tx.Index + 1
}

func (l *txLog) len() int { return len(l.entries) }

// first is the index of the oldest retained entry.
func (l *txLog) first() uint64 {
	if len(l.entries) == 0 {
		return l.next
	}
	return l.at(0).Index
}

func (l *txLog) at(i int) domain.Transaction {
	return l.entries[(l.head+i)%len(l.entries)]
}

// page returns up to limit entries starting at index start. Evicted or
// future ranges yield an empty page.
func (l *txLog) page(start uint64, limit int) []domain.Transaction {
	if len(l.entries) == 0 || start >= l.next || limit <= 0 {
		return []domain.Transaction{}
	}
	first := l.first()
	if start < first {
		return []domain.Transaction{}
	}
	offset := int(start - first)
	out := make([]domain.Transaction, 0, min(limit, len(l.entries)-offset))
	for i := offset; i < len(l.entries) && len(out) < limit; i++ {
		out = append(out, l.at(i))
	}
	return out
}

// TransactionPage is one page of the transaction log.
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	// FirstIndex is the oldest index still retained.
	FirstIndex uint64 `json:"first_index"`
	// LogLength is the index the next transaction will receive.
	LogLength uint64 `json:"log_length"`
	// NextStart resumes the query; nil when the page reached the log end.
	NextStart *uint64 `json:"next_start,omitempty"`
}

// GetTransactions returns transactions from start in increasing index order.
// A nil start begins at the oldest retained entry.
func (s *Service) GetTransactions(start *uint64, limit int) TransactionPage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := s.txlog.first()
	if start != nil {
		from = *start
	}
	txs := s.txlog.page(from, s.pageBounds(limit))
	page := TransactionPage{
		Transactions: txs,
		FirstIndex:   s.txlog.first(),
		LogLength:    s.txlog.next,
	}
	if n := len(txs); n > 0 {
		if nextStart := txs[n-1].Index + 1; nextStart < s.txlog.next {
			page.NextStart = &nextStart
		}
	}
	return page
}

// GetTransaction returns a single retained transaction.
func (s *Service) GetTransaction(index uint64) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := s.txlog.page(index, 1)
	if len(txs) == 0 {
		return domain.Transaction{}, false
	}
	return txs[0], true
}

// TransactionCount is the number of transactions ever appended.
func (s *Service) TransactionCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.txlog.next
}

type dedupEntry struct {
	index      uint64
	recordedAt time.Time
}

// dedupIndex remembers recent transfer fingerprints in insertion order so
// expired entries can be dropped from the front.
type dedupIndex struct {
	byPrint map[[32]byte]dedupEntry
	order   [][32]byte
}

func newDedupIndex() *dedupIndex {
	return &dedupIndex{byPrint: make(map[[32]byte]dedupEntry)}
}

func (d *dedupIndex) add(fp [32]byte, index uint64, at time.Time) {
	if _, ok := d.byPrint[fp]; !ok {
		d.order = append(d.order, fp)
	}
	d.byPrint[fp] = dedupEntry{index: index, recordedAt: at}
}

func (d *dedupIndex) lookup(fp [32]byte) (uint64, bool) {
	e, ok := d.byPrint[fp]
	return e.index, ok
}

// prune drops entries recorded before cutoff.
func (d *dedupIndex) prune(cutoff time.Time) {
	n := 0
	for n < len(d.order) {
		fp := d.order[n]
		if e, ok := d.byPrint[fp]; ok && !e.recordedAt.Before(cutoff) {
			break
		}
		delete(d.byPrint, fp)
		n++
	}
	if n > 0 {
		d.order = append(d.order[:0:0], d.order[n:]...)
	}
}

func (d *dedupIndex) len() int { return len(d.byPrint) }

// fingerprint identifies a transfer request for replay detection.
func fingerprint(tr domain.Transfer, memo []byte, createdAt time.Time) [32]byte {
	h, _ := blake2b.New256(nil)
	writeAccount := func(a domain.Account) {
		h.Write([]byte(a.Owner))
		h.Write([]byte{0})
		h.Write(a.Subaccount[:])
	}
	var buf [8]byte
	writeAccount(tr.From)
	writeAccount(tr.To)
	binary.BigEndian.PutUint64(buf[:], tr.Amount)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], tr.Fee)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(len(memo)))
	h.Write(buf[:])
	h.Write(memo)
	binary.BigEndian.PutUint64(buf[:], uint64(createdAt.UnixNano()))
	h.Write(buf[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
