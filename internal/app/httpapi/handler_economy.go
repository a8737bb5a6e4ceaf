package httpapi

import (
	"net/http"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/middleware"
)

type economyRequest struct {
	Account *domain.Account `json:"account"`
	Type    string          `json:"type"`
	// Amount overrides the configured rate or cost when set.
	Amount *uint64 `json:"amount"`
}

func (h *handler) economyRates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"earning_rates":  h.ledger.EarningRates(),
		"spending_costs": h.ledger.SpendingCosts(),
	})
}

func (h *handler) earn(w http.ResponseWriter, r *http.Request) {
	var payload economyRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	var acct domain.Account
	if payload.Account != nil {
		acct = *payload.Account
	}
	index, err := h.ledger.EarnTokens(r.Context(), middleware.CallerFromContext(r.Context()),
		acct, domain.EarningType(payload.Type), payload.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: index})
}

func (h *handler) spend(w http.ResponseWriter, r *http.Request) {
	var payload economyRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	index, err := h.ledger.SpendTokens(r.Context(), middleware.CallerFromContext(r.Context()),
		callerAccount(r, payload.Account), domain.SpendingType(payload.Type), payload.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: index})
}

func (h *handler) earnings(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAccount(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, limit, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.GetUserEarningHistory(acct, start, limit))
}

func (h *handler) spendings(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAccount(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, limit, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.GetUserSpendingHistory(acct, start, limit))
}

func (h *handler) faucetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.GetFaucetStats())
}

func (h *handler) faucetClaims(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAccount(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, limit, err := page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.GetFaucetClaimHistory(acct, start, limit))
}

func (h *handler) claimFaucet(w http.ResponseWriter, r *http.Request) {
	var payload accountRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	amount, err := h.ledger.ClaimFaucetTokens(r.Context(), middleware.CallerFromContext(r.Context()),
		callerAccount(r, payload.Account))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": amount})
}

func (h *handler) faucetSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.FaucetSettings
	if err := decodeJSON(w, r, &settings); err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.ledger.UpdateFaucetSettings(r.Context(), middleware.CallerFromContext(r.Context()), settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
