package httpapi

import (
	stderrors "errors"
	"net/http"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	ledgersvc "github.com/R3E-Network/token_ledger/internal/app/services/ledger"
	"github.com/R3E-Network/token_ledger/internal/errors"
	"github.com/R3E-Network/token_ledger/internal/middleware"
)

type accountRequest struct {
	Account *domain.Account `json:"account"`
}

func (h *handler) stakingInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.StakingInfo())
}

func (h *handler) stakingStatus(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAccount(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status, err := h.ledger.GetStakingStatus(acct)
	if stderrors.Is(err, ledgersvc.ErrNoActiveStake) {
		h.fail(w, r, errors.NotFound("stake"))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) stake(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Account *domain.Account `json:"account"`
		Amount  uint64          `json:"amount"`
		// Exactly one of the lock fields selects the tier.
		LockDays    int64 `json:"lock_days"`
		LockSeconds int64 `json:"lock_period_seconds"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	var lock time.Duration
	switch {
	case payload.LockDays > 0 && payload.LockSeconds > 0:
		h.fail(w, r, errors.BadRequest("set lock_days or lock_period_seconds, not both"))
		return
	case payload.LockDays > 0:
		lock = time.Duration(payload.LockDays) * ledgersvc.Day
	case payload.LockSeconds > 0:
		lock = time.Duration(payload.LockSeconds) * time.Second
	}
	index, err := h.ledger.Stake(r.Context(), middleware.CallerFromContext(r.Context()),
		callerAccount(r, payload.Account), payload.Amount, lock)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: index})
}

func (h *handler) claimRewards(w http.ResponseWriter, r *http.Request) {
	var payload accountRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	reward, err := h.ledger.ClaimStakingRewards(r.Context(), middleware.CallerFromContext(r.Context()),
		callerAccount(r, payload.Account))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"reward": reward})
}

func (h *handler) unstake(w http.ResponseWriter, r *http.Request) {
	var payload accountRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.ledger.Unstake(r.Context(), middleware.CallerFromContext(r.Context()),
		callerAccount(r, payload.Account))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// distribute runs one page when a cursor or limit is given and the whole
// distribution otherwise.
func (h *handler) distribute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Cursor *domain.Account `json:"cursor"`
		Limit  int             `json:"limit"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	caller := middleware.CallerFromContext(r.Context())
	if payload.Cursor != nil || payload.Limit > 0 {
		res, err := h.ledger.DistributeRewardsPage(r.Context(), caller, payload.Cursor, payload.Limit)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	total, err := h.ledger.DistributeDailyRewards(r.Context(), caller)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"total_distributed": total})
}
