package ledger

import (
	"testing"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
)

func mintTx(index uint64) domain.Transaction {
	return domain.Transaction{Index: index, Operation: domain.Mint{To: alice, Amount: 1}}
}

func TestTxLogRing(t *testing.T) {
	l := newTxLog(2)
	if got := l.page(0, 10); len(got) != 0 {
		t.Fatalf("empty log returned %d entries", len(got))
	}
	for i := uint64(0); i < 5; i++ {
		l.append(mintTx(i))
	}
	if l.len() != 2 || l.first() != 3 || l.next != 5 {
		t.Fatalf("unexpected ring state len=%d first=%d next=%d", l.len(), l.first(), l.next)
	}
	got := l.page(3, 10)
	if len(got) != 2 || got[0].Index != 3 || got[1].Index != 4 {
		t.Fatalf("unexpected page %+v", got)
	}
	if got := l.page(4, 1); len(got) != 1 || got[0].Index != 4 {
		t.Fatalf("unexpected single page %+v", got)
	}
	if got := l.page(1, 10); len(got) != 0 {
		t.Fatalf("evicted range returned entries")
	}
}

func TestTxLogRestoreKeepsNextIndex(t *testing.T) {
	l := newTxLog(0)
	l.restore([]domain.Transaction{mintTx(10), mintTx(11)}, 12)
	if l.first() != 10 || l.next != 12 {
		t.Fatalf("unexpected restore first=%d next=%d", l.first(), l.next)
	}
	empty := newTxLog(0)
	empty.restore(nil, 7)
	if empty.next != 7 || empty.first() != 7 {
		t.Fatalf("empty restore lost next index")
	}
}

func TestDedupIndexPrune(t *testing.T) {
	d := newDedupIndex()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := domain.Transfer{From: alice, To: bob, Amount: 5, Fee: 1}

	fp1 := fingerprint(tr, nil, base)
	fp2 := fingerprint(tr, []byte("memo"), base)
	if fp1 == fp2 {
		t.Fatalf("memo does not affect fingerprint")
	}
	d.add(fp1, 1, base)
	d.add(fp2, 2, base.Add(time.Hour))

	d.prune(base.Add(30 * time.Minute))
	if _, ok := d.lookup(fp1); ok {
		t.Fatalf("expired entry survived prune")
	}
	if idx, ok := d.lookup(fp2); !ok || idx != 2 {
		t.Fatalf("fresh entry pruned")
	}
	if d.len() != 1 {
		t.Fatalf("unexpected size %d", d.len())
	}
}
