package httpapi

import (
	"net/http"
	"strings"

	"github.com/R3E-Network/token_ledger/internal/errors"
	"github.com/R3E-Network/token_ledger/internal/middleware"
	"github.com/gorilla/mux"
)

func (h *handler) listCallers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"callers": h.ledger.ListAuthorizedCallers()})
}

func (h *handler) callStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.CallStats())
}

func (h *handler) addCaller(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Identity string `json:"identity"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	identity := strings.TrimSpace(payload.Identity)
	if identity == "" {
		h.fail(w, r, errors.InvalidFormat("identity", "required"))
		return
	}
	if err := h.ledger.AddAuthorizedCaller(r.Context(), middleware.CallerFromContext(r.Context()), identity); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"identity": identity})
}

func (h *handler) removeCaller(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	if err := h.ledger.RemoveAuthorizedCaller(r.Context(), middleware.CallerFromContext(r.Context()), identity); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) activityStatus(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	writeJSON(w, http.StatusOK, h.ledger.GetUserActivityStatus(owner))
}

func (h *handler) markActive(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if err := h.ledger.MarkUserActive(r.Context(), middleware.CallerFromContext(r.Context()), owner); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.GetUserActivityStatus(owner))
}
