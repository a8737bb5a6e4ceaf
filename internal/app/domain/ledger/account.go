// Package ledger holds the data model of the token ledger: accounts, the
// append-only transaction log entries, staking positions, economy records and
// faucet state. Types here carry no business logic.
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Subaccount is the optional 32 byte sub-identifier of an account. The zero
// value is the default subaccount.
type Subaccount [32]byte

// IsDefault reports whether s is the default (all zero) subaccount.
func (s Subaccount) IsDefault() bool {
	return s == Subaccount{}
}

// String returns the hex encoding of s.
func (s Subaccount) String() string {
	return hex.EncodeToString(s[:])
}

// ParseSubaccount decodes a hex subaccount. Shorter inputs are left padded
// with zero bytes. An empty string yields the default subaccount.
func ParseSubaccount(raw string) (Subaccount, error) {
	var sub Subaccount
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return sub, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return sub, fmt.Errorf("subaccount: %w", err)
	}
	if len(b) > len(sub) {
		return sub, fmt.Errorf("subaccount: %d bytes exceeds 32", len(b))
	}
	copy(sub[len(sub)-len(b):], b)
	return sub, nil
}

// Account is an owner identity plus an optional subaccount. It is comparable
// and used directly as a map key.
type Account struct {
	Owner      string
	Subaccount Subaccount
}

// NewAccount returns the default-subaccount account of owner.
func NewAccount(owner string) Account {
	return Account{Owner: owner}
}

// IsZero reports whether the account has no owner.
func (a Account) IsZero() bool {
	return a.Owner == ""
}

// String renders "owner" or "owner.<hex subaccount>". An owner that itself
// contains a dot always carries the full subaccount so the last dot is the
// separator.
func (a Account) String() string {
	if a.Subaccount.IsDefault() && !strings.Contains(a.Owner, ".") {
		return a.Owner
	}
	return a.Owner + "." + a.Subaccount.String()
}

// ParseAccount is the inverse of Account.String. The text after the last dot
// is read as a subaccount when it is hex of at most 32 bytes; otherwise the
// whole text is the owner.
func ParseAccount(text string) (Account, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Account{}, fmt.Errorf("account: empty owner")
	}
	i := strings.LastIndexByte(text, '.')
	if i < 0 {
		return Account{Owner: text}, nil
	}
	owner, subHex := text[:i], text[i+1:]
	if !isSubaccountHex(subHex) {
		return Account{Owner: text}, nil
	}
	if owner == "" {
		return Account{}, fmt.Errorf("account: empty owner")
	}
	sub, err := ParseSubaccount(subHex)
	if err != nil {
		return Account{}, err
	}
	return Account{Owner: owner, Subaccount: sub}, nil
}

func isSubaccountHex(s string) bool {
	if s == "" || len(s) > 2*len(Subaccount{}) {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// MarshalText encodes the account for use as a JSON object key.
func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an account map key.
func (a *Account) UnmarshalText(b []byte) error {
	acct, err := ParseAccount(string(b))
	if err != nil {
		return err
	}
	*a = acct
	return nil
}

type accountJSON struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"`
}

// MarshalJSON encodes the account as {"owner": ..., "subaccount": ...}.
func (a Account) MarshalJSON() ([]byte, error) {
	out := accountJSON{Owner: a.Owner}
	if !a.Subaccount.IsDefault() {
		out.Subaccount = a.Subaccount.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the object form and the textual form.
func (a *Account) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		return a.UnmarshalText([]byte(text))
	}
	var in accountJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	sub, err := ParseSubaccount(in.Subaccount)
	if err != nil {
		return err
	}
	*a = Account{Owner: in.Owner, Subaccount: sub}
	return nil
}
