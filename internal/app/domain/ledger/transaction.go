package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationKind tags the variant carried by a Transaction.
type OperationKind string

const (
	KindMint     OperationKind = "mint"
	KindBurn     OperationKind = "burn"
	KindTransfer OperationKind = "transfer"
	KindEarn     OperationKind = "earn"
	KindSpend    OperationKind = "spend"
	KindStake    OperationKind = "stake"
	KindUnstake  OperationKind = "unstake"
)

// Operation is the sum type of balance-affecting operations. Only the types
// declared in this file implement it.
type Operation interface {
	Kind() OperationKind
	isOperation()
}

// Mint credits To and increases the total supply.
type Mint struct {
	To     Account `json:"to"`
	Amount uint64  `json:"amount"`
}

// Burn debits From and decreases the total supply.
type Burn struct {
	From   Account `json:"from"`
	Amount uint64  `json:"amount"`
}

// Transfer moves Amount from From to To. Fee is burned.
type Transfer struct {
	From   Account `json:"from"`
	To     Account `json:"to"`
	Amount uint64  `json:"amount"`
	Fee    uint64  `json:"fee"`
}

// Earn is a categorized mint.
type Earn struct {
	To          Account     `json:"to"`
	EarningType EarningType `json:"earning_type"`
	Amount      uint64      `json:"amount"`
}

// Spend is a categorized burn.
type Spend struct {
	From         Account      `json:"from"`
	SpendingType SpendingType `json:"spending_type"`
	Amount       uint64       `json:"amount"`
}

// Stake moves Amount from the spendable balance into escrow.
type Stake struct {
	From       Account       `json:"from"`
	Amount     uint64        `json:"amount"`
	LockPeriod time.Duration `json:"lock_period"`
}

// Unstake returns the escrowed principal plus the final reward.
type Unstake struct {
	To     Account `json:"to"`
	Amount uint64  `json:"amount"`
	Reward uint64  `json:"reward"`
}

func (Mint) Kind() OperationKind     { return KindMint }
func (Burn) Kind() OperationKind     { return KindBurn }
func (Transfer) Kind() OperationKind { return KindTransfer }
func (Earn) Kind() OperationKind     { return KindEarn }
func (Spend) Kind() OperationKind    { return KindSpend }
func (Stake) Kind() OperationKind    { return KindStake }
func (Unstake) Kind() OperationKind  { return KindUnstake }

func (Mint) isOperation()     {}
func (Burn) isOperation()     {}
func (Transfer) isOperation() {}
func (Earn) isOperation()     {}
func (Spend) isOperation()    {}
func (Stake) isOperation()    {}
func (Unstake) isOperation()  {}

// MemoFaucet marks mint transactions issued by the faucet.
const MemoFaucet = "faucet"

// Transaction is an immutable log entry. Index is the log position and the
// only ordering key.
type Transaction struct {
	Index     uint64
	Timestamp time.Time
	Operation Operation
	Memo      []byte
	CreatedAt *time.Time
}

// IsFaucet reports whether the transaction is a faucet mint.
func (t Transaction) IsFaucet() bool {
	_, ok := t.Operation.(Mint)
	return ok && string(t.Memo) == MemoFaucet
}

type transactionJSON struct {
	Index     uint64          `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      OperationKind   `json:"kind"`
	Operation json.RawMessage `json:"operation"`
	Memo      []byte          `json:"memo,omitempty"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// MarshalJSON encodes the transaction with an explicit kind tag.
func (t Transaction) MarshalJSON() ([]byte, error) {
	if t.Operation == nil {
		return nil, fmt.Errorf("transaction %d: missing operation", t.Index)
	}
	op, err := json.Marshal(t.Operation)
	if err != nil {
		return nil, err
	}
	return json.Marshal(transactionJSON{
		Index:     t.Index,
		Timestamp: t.Timestamp,
		Kind:      t.Operation.Kind(),
		Operation: op,
		Memo:      t.Memo,
		CreatedAt: t.CreatedAt,
	})
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	op, err := DecodeOperation(raw.Kind, raw.Operation)
	if err != nil {
		return err
	}
	*t = Transaction{
		Index:     raw.Index,
		Timestamp: raw.Timestamp,
		Operation: op,
		Memo:      raw.Memo,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}

// DecodeOperation decodes a JSON operation payload of the given kind.
func DecodeOperation(kind OperationKind, payload []byte) (Operation, error) {
	var (
		op  Operation
		err error
	)
	switch kind {
	case KindMint:
		var v Mint
		err = json.Unmarshal(payload, &v)
		op = v
	case KindBurn:
		var v Burn
		err = json.Unmarshal(payload, &v)
		op = v
	case KindTransfer:
		var v Transfer
		err = json.Unmarshal(payload, &v)
		op = v
	case KindEarn:
		var v Earn
		err = json.Unmarshal(payload, &v)
		op = v
	case KindSpend:
		var v Spend
		err = json.Unmarshal(payload, &v)
		op = v
	case KindStake:
		var v Stake
		err = json.Unmarshal(payload, &v)
		op = v
	case KindUnstake:
		var v Unstake
		err = json.Unmarshal(payload, &v)
		op = v
	default:
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s operation: %w", kind, err)
	}
	return op, nil
}
