package ledger

import "time"

// Snapshot is the persisted ledger state loaded at startup.
type Snapshot struct {
	Balances          map[Account]uint64
	Stakes            map[Account]StakeInfo
	Transactions      []Transaction
	NextIndex         uint64
	Earnings          map[Account][]EarningRecord
	Spendings         map[Account][]SpendingRecord
	FaucetClaims      map[Account][]FaucetClaim
	Faucet            *FaucetState
	AuthorizedCallers []string
	// RevokedCallers were removed from the allowlist and stay revoked even
	// when configuration lists them.
	RevokedCallers []string
	Activity       map[string]time.Time
}

// NewSnapshot returns an empty snapshot with initialised maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Balances:     make(map[Account]uint64),
		Stakes:       make(map[Account]StakeInfo),
		Earnings:     make(map[Account][]EarningRecord),
		Spendings:    make(map[Account][]SpendingRecord),
		FaucetClaims: make(map[Account][]FaucetClaim),
		Activity:     make(map[string]time.Time),
	}
}

// Changeset is the complete effect of one mutating call. Stores apply it as a
// single unit or not at all.
type Changeset struct {
	Transactions      []Transaction
	Balances          map[Account]uint64 // absolute values, zero removes the entry
	StakesPut         []StakeInfo
	StakesDeleted     []Account
	Earnings          []EarningRecord
	Spendings         []SpendingRecord
	FaucetClaims      []FaucetClaim
	Faucet            *FaucetState
	AuthorizedAdded   []string
	AuthorizedRemoved []string
	Activity          map[string]time.Time
}

// IsEmpty reports whether the changeset carries no effect.
func (c Changeset) IsEmpty() bool {
	return len(c.Transactions) == 0 &&
		len(c.Balances) == 0 &&
		len(c.StakesPut) == 0 &&
		len(c.StakesDeleted) == 0 &&
		len(c.Earnings) == 0 &&
		len(c.Spendings) == 0 &&
		len(c.FaucetClaims) == 0 &&
		c.Faucet == nil &&
		len(c.AuthorizedAdded) == 0 &&
		len(c.AuthorizedRemoved) == 0 &&
		len(c.Activity) == 0
}

// Metadata is the token description exposed to wallets.
type Metadata struct {
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Decimals       uint8   `json:"decimals"`
	Fee            uint64  `json:"fee"`
	TotalSupply    uint64  `json:"total_supply"`
	MintingAccount Account `json:"minting_account"`
}

// MetadataEntry is one key/value pair of the ICRC-1 metadata listing.
type MetadataEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Entries renders the metadata as ICRC-1 style key/value pairs.
func (m Metadata) Entries() []MetadataEntry {
	return []MetadataEntry{
		{Key: "icrc1:name", Value: m.Name},
		{Key: "icrc1:symbol", Value: m.Symbol},
		{Key: "icrc1:decimals", Value: m.Decimals},
		{Key: "icrc1:fee", Value: m.Fee},
	}
}

// Health is the result of a health check.
type Health struct {
	Status           string `json:"status"`
	TotalAccounts    int    `json:"total_accounts"`
	TotalSupply      uint64 `json:"total_supply"`
	CirculatingSum   uint64 `json:"circulating_sum"`
	StakedSum        uint64 `json:"staked_sum"`
	ActiveStakes     int    `json:"active_stakes"`
	TransactionCount uint64 `json:"transaction_count"`
	Conserved        bool   `json:"conserved"`
}

// ActivityStatus reports when an identity was last marked active.
type ActivityStatus struct {
	Owner      string     `json:"owner"`
	LastActive *time.Time `json:"last_active,omitempty"`
	Eligible   bool       `json:"eligible"`
}

// CallStat is the number of privileged calls an identity made.
type CallStat struct {
	Caller string `json:"caller"`
	Count  uint64 `json:"count"`
}
