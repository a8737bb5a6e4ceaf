package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	ledgersvc "github.com/R3E-Network/token_ledger/internal/app/services/ledger"
	"github.com/R3E-Network/token_ledger/internal/errors"
	"github.com/R3E-Network/token_ledger/internal/middleware"
	"github.com/gorilla/mux"
)

type indexResponse struct {
	Index uint64 `json:"index"`
}

func (h *handler) metadata(w http.ResponseWriter, _ *http.Request) {
	md := h.ledger.Metadata()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            md.Name,
		"symbol":          md.Symbol,
		"decimals":        md.Decimals,
		"fee":             md.Fee,
		"total_supply":    md.TotalSupply,
		"minting_account": md.MintingAccount,
		"min_burn_amount": h.ledger.MinBurn(),
		"entries":         md.Entries(),
	})
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	acct, err := pathAccount(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": acct,
		"balance": h.ledger.BalanceOf(acct),
	})
}

func (h *handler) transfer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From      *domain.Account `json:"from"`
		To        domain.Account  `json:"to"`
		Amount    uint64          `json:"amount"`
		Fee       *uint64         `json:"fee"`
		Memo      []byte          `json:"memo"`
		CreatedAt *time.Time      `json:"created_at_time"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	index, err := h.ledger.Transfer(r.Context(), middleware.CallerFromContext(r.Context()), ledgersvc.TransferArgs{
		From:      callerAccount(r, payload.From),
		To:        payload.To,
		Amount:    payload.Amount,
		Fee:       payload.Fee,
		Memo:      payload.Memo,
		CreatedAt: payload.CreatedAt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: index})
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		To     domain.Account `json:"to"`
		Amount uint64         `json:"amount"`
		Memo   []byte         `json:"memo"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	index, err := h.ledger.Mint(r.Context(), middleware.CallerFromContext(r.Context()), payload.To, payload.Amount, payload.Memo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: index})
}

func (h *handler) burn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From   *domain.Account `json:"from"`
		Amount uint64          `json:"amount"`
		Reason string          `json:"reason"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	caller := middleware.CallerFromContext(r.Context())
	from := callerAccount(r, payload.From)

	var (
		index uint64
		err   error
	)
	if reason := strings.TrimSpace(payload.Reason); reason != "" {
		index, err = h.ledger.EnhancedBurn(r.Context(), caller, from, payload.Amount, reason)
	} else {
		index, err = h.ledger.Burn(r.Context(), caller, from, payload.Amount)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: index})
}

func (h *handler) transactions(w http.ResponseWriter, r *http.Request) {
	var start *uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.fail(w, r, errors.InvalidFormat("start", "must be a transaction index"))
			return
		}
		start = &v
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.GetTransactions(start, limit))
}

func (h *handler) transaction(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		h.fail(w, r, errors.InvalidFormat("index", "must be a transaction index"))
		return
	}
	tx, ok := h.ledger.GetTransaction(index)
	if !ok {
		h.fail(w, r, errors.NotFound("transaction"))
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
