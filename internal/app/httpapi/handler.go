// Package httpapi exposes the ledger over a JSON REST interface. Caller
// identity is resolved by middleware; handlers pass it to the ledger
// unchanged and the ledger decides what the caller may do.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	app "github.com/R3E-Network/token_ledger/internal/app"
	domain "github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/metrics"
	ledgersvc "github.com/R3E-Network/token_ledger/internal/app/services/ledger"
	"github.com/R3E-Network/token_ledger/internal/errors"
	"github.com/R3E-Network/token_ledger/internal/middleware"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// handler bundles HTTP endpoints for the ledger.
type handler struct {
	app    *app.Application
	ledger *ledgersvc.Service
	log    *logger.Logger
}

// NewHandler returns a router exposing the ledger API. Mutating routes
// require a resolved caller; reads are public.
func NewHandler(application *app.Application, log *logger.Logger) *mux.Router {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, ledger: application.Ledger, log: log}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		errors.Write(w, errors.NotFound("route"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		errors.Write(w, errors.New("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})

	read := func(path string, fn http.HandlerFunc) {
		r.Handle(path, fn).Methods(http.MethodGet)
	}
	write := func(method, path string, fn http.HandlerFunc) {
		r.Handle(path, middleware.RequireCaller(fn)).Methods(method)
	}

	read("/health", h.health)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	read("/metadata", h.metadata)
	read("/accounts/{owner}/balance", h.balance)
	read("/transactions", h.transactions)
	read("/transactions/{index:[0-9]+}", h.transaction)
	write(http.MethodPost, "/transfer", h.transfer)
	write(http.MethodPost, "/mint", h.mint)
	write(http.MethodPost, "/burn", h.burn)

	read("/staking/info", h.stakingInfo)
	read("/staking/{owner}", h.stakingStatus)
	write(http.MethodPost, "/staking/stake", h.stake)
	write(http.MethodPost, "/staking/claim", h.claimRewards)
	write(http.MethodPost, "/staking/unstake", h.unstake)
	write(http.MethodPost, "/staking/distribute", h.distribute)

	read("/economy/rates", h.economyRates)
	read("/economy/{owner}/earnings", h.earnings)
	read("/economy/{owner}/spendings", h.spendings)
	write(http.MethodPost, "/economy/earn", h.earn)
	write(http.MethodPost, "/economy/spend", h.spend)

	read("/faucet/stats", h.faucetStats)
	read("/faucet/{owner}/claims", h.faucetClaims)
	write(http.MethodPost, "/faucet/claim", h.claimFaucet)
	write(http.MethodPut, "/faucet/settings", h.faucetSettings)

	read("/admin/callers", h.listCallers)
	read("/admin/call-stats", h.callStats)
	write(http.MethodPost, "/admin/callers", h.addCaller)
	write(http.MethodDelete, "/admin/callers/{identity}", h.removeCaller)

	read("/activity/{owner}", h.activityStatus)
	write(http.MethodPost, "/activity/{owner}", h.markActive)
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	health := h.ledger.HealthCheck()
	status := http.StatusOK
	if !health.Conserved {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// fail renders err. Ledger business errors keep their code and get a status
// by category; anything else is logged and reported as internal.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if se := errors.GetServiceError(err); se != nil {
		errors.Write(w, se)
		return
	}
	se := ledgerError(err)
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).Error("ledger request failed")
	}
	errors.Write(w, se)
}

func ledgerError(err error) *errors.ServiceError {
	var status int
	switch ledgersvc.KindOf(err) {
	case ledgersvc.KindAuthorization:
		status = http.StatusForbidden
	case ledgersvc.KindReplay, ledgersvc.KindState:
		status = http.StatusConflict
	case ledgersvc.KindBalance, ledgersvc.KindConfiguration:
		status = http.StatusUnprocessableEntity
	case ledgersvc.KindValidation:
		status = http.StatusBadRequest
	default:
		return errors.Internal("internal error", err)
	}
	se := errors.Wrap(err, ledgersvc.Code(err), err.Error(), status).
		WithDetails("kind", string(ledgersvc.KindOf(err)))

	var (
		insufficient *ledgersvc.InsufficientFundsError
		badFee       *ledgersvc.BadFeeError
		duplicate    *ledgersvc.DuplicateError
		future       *ledgersvc.CreatedInFutureError
		belowMin     *ledgersvc.BelowMinimumStakeError
		badBurn      *ledgersvc.BadBurnError
	)
	switch {
	case stderrors.As(err, &insufficient):
		se.WithDetails("balance", insufficient.Balance)
	case stderrors.As(err, &badFee):
		se.WithDetails("expected_fee", badFee.ExpectedFee)
	case stderrors.As(err, &duplicate):
		se.WithDetails("duplicate_of", duplicate.DuplicateOf)
	case stderrors.As(err, &future):
		se.WithDetails("ledger_time", future.LedgerTime)
	case stderrors.As(err, &belowMin):
		se.WithDetails("minimum", belowMin.Minimum)
	case stderrors.As(err, &badBurn):
		se.WithDetails("min_burn_amount", badBurn.MinBurnAmount)
	}
	return se
}

// callerAccount returns acct, or the caller's default account when acct is
// unset.
func callerAccount(r *http.Request, acct *domain.Account) domain.Account {
	if acct != nil && !acct.IsZero() {
		return *acct
	}
	return domain.NewAccount(middleware.CallerFromContext(r.Context()))
}

func pathAccount(r *http.Request) (domain.Account, error) {
	acct, err := domain.ParseAccount(mux.Vars(r)["owner"])
	if err != nil {
		return domain.Account{}, errors.InvalidFormat("owner", err.Error())
	}
	return acct, nil
}

// page reads the start and limit query parameters.
func page(r *http.Request) (start, limit int, err error) {
	if start, err = queryInt(r, "start"); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	return start, limit, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.InvalidFormat(name, "must be a non-negative integer")
	}
	return v, nil
}

// decodeJSON decodes the request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.InvalidFormat("body", err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
