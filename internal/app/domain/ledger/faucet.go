package ledger

import "time"

// FaucetState is the process-wide faucet window. ClaimedByAccount holds the
// per-account totals of the current window only.
type FaucetState struct {
	Enabled          bool               `json:"enabled"`
	ClaimAmount      uint64             `json:"claim_amount"`
	AccountLimit     uint64             `json:"account_limit"`
	DailyLimit       uint64             `json:"daily_limit"`
	ClaimedToday     uint64             `json:"claimed_today"`
	LastReset        time.Time          `json:"last_reset"`
	TotalClaims      uint64             `json:"total_claims"`
	TotalDistributed uint64             `json:"total_distributed"`
	ClaimedByAccount map[Account]uint64 `json:"claimed_by_account"`
}

// Clone returns a deep copy of s.
func (s FaucetState) Clone() FaucetState {
	out := s
	out.ClaimedByAccount = make(map[Account]uint64, len(s.ClaimedByAccount))
	for k, v := range s.ClaimedByAccount {
		out.ClaimedByAccount[k] = v
	}
	return out
}

// FaucetStats is the read model returned by get_faucet_stats.
type FaucetStats struct {
	Enabled          bool      `json:"enabled"`
	DailyLimit       uint64    `json:"daily_limit"`
	RemainingToday   uint64    `json:"remaining_today"`
	ClaimAmount      uint64    `json:"claim_amount"`
	AccountLimit     uint64    `json:"account_limit"`
	TotalClaims      uint64    `json:"total_claims"`
	TotalDistributed uint64    `json:"total_distributed"`
	LastReset        time.Time `json:"last_reset"`
	NextReset        time.Time `json:"next_reset"`
}

// FaucetSettings updates faucet parameters. Nil fields are left unchanged.
type FaucetSettings struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	ClaimAmount  *uint64 `json:"claim_amount,omitempty"`
	AccountLimit *uint64 `json:"account_limit,omitempty"`
	DailyLimit   *uint64 `json:"daily_limit,omitempty"`
}

// Faucet claim statuses.
const (
	FaucetClaimCompleted = "completed"
)

// FaucetClaim is a per-account faucet history entry.
type FaucetClaim struct {
	ID        string    `json:"id"`
	Account   Account   `json:"account"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	TxIndex   uint64    `json:"tx_index"`
}
