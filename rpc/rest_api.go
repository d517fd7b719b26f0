package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/guardline-io/guardline/liveness"
	"github.com/guardline-io/guardline/logger"
	"github.com/guardline-io/guardline/settlement"
	"github.com/guardline-io/guardline/types"
)

type (
	// API exposes the liveness oracle and the settlement executor over REST.
	//
	// The liveness mutation route carries no authorization, same as the
	// oracle itself; deployments front it with their own operator auth.
	API struct {
		executor *settlement.Executor
		oracle   liveness.Oracle
		log      *slog.Logger
	}

	LivenessResponse struct {
		Alive bool `json:"alive"`
	}

	NonceResponse struct {
		Nonce uint64 `json:"nonce"`
	}

	InstalledResponse struct {
		Installed bool `json:"installed"`
	}

	SettlementRequest struct {
		Account          string      `json:"account"`
		Token            string      `json:"token"`
		Amount           uint64      `json:"amount"`
		SettlementTarget string      `json:"settlementTarget"`
		OpaqueData       types.Bytes `json:"opaqueData,omitempty"`
		Nonce            uint64      `json:"nonce"`
		Signature        types.Bytes `json:"signature"`
		Caller           string      `json:"caller,omitempty"`
	}

	ErrorResponse struct {
		Message string `json:"message"`
	}
)

func NewAPI(executor *settlement.Executor, oracle liveness.Oracle, log *slog.Logger) *API {
	if log == nil {
		log = logger.NewNop()
	}
	return &API{executor: executor, oracle: oracle, log: log.With(logger.ModuleKey, "rest_api")}
}

func (api *API) Register(r *mux.Router) {
	r.HandleFunc("/liveness", api.getLiveness).Methods("GET", "OPTIONS")
	r.HandleFunc("/liveness", api.putLiveness).Methods("PUT", "OPTIONS")
	r.HandleFunc("/accounts/{account}/nonce", api.getNonce).Methods("GET", "OPTIONS")
	r.HandleFunc("/accounts/{account}/installed", api.getInstalled).Methods("GET", "OPTIONS")
	r.HandleFunc("/settlements", api.postSettlement).Methods("POST", "OPTIONS")
}

func (api *API) getLiveness(w http.ResponseWriter, r *http.Request) {
	api.writeResponse(w, http.StatusOK, &LivenessResponse{Alive: api.oracle.IsAlive()})
}

func (api *API) putLiveness(w http.ResponseWriter, r *http.Request) {
	req := &LivenessResponse{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		api.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request body: %w", err))
		return
	}
	if err := api.oracle.SetAlive(req.Alive); err != nil {
		api.log.Error("setting liveness flag", logger.Error(err))
		api.writeError(w, http.StatusInternalServerError, err)
		return
	}
	api.log.Info("liveness flag updated", slog.Bool("alive", req.Alive))
	api.writeResponse(w, http.StatusOK, &LivenessResponse{Alive: req.Alive})
}

func (api *API) getNonce(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(mux.Vars(r)["account"])
	if err != nil {
		api.writeError(w, http.StatusBadRequest, err)
		return
	}
	nonce, err := api.executor.GetNonce(account)
	if err != nil {
		api.writeError(w, statusFromError(err), err)
		return
	}
	api.writeResponse(w, http.StatusOK, &NonceResponse{Nonce: nonce})
}

func (api *API) getInstalled(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(mux.Vars(r)["account"])
	if err != nil {
		api.writeError(w, http.StatusBadRequest, err)
		return
	}
	installed, err := api.executor.IsInstalled(account)
	if err != nil {
		api.writeError(w, http.StatusInternalServerError, err)
		return
	}
	api.writeResponse(w, http.StatusOK, &InstalledResponse{Installed: installed})
}

func (api *API) postSettlement(w http.ResponseWriter, r *http.Request) {
	body := &SettlementRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		api.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request body: %w", err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		api.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := api.executor.ExecuteSettlement(r.Context(), req); err != nil {
		api.log.Error("settlement rejected", logger.Account(req.Account), logger.Nonce(req.Nonce), logger.Error(err))
		api.writeError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (body *SettlementRequest) toRequest() (*settlement.Request, error) {
	account, err := parseAddress(body.Account)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	tok, err := parseAddress(body.Token)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	target, err := parseAddress(body.SettlementTarget)
	if err != nil {
		return nil, fmt.Errorf("settlementTarget: %w", err)
	}
	req := &settlement.Request{
		Account:          account,
		Token:            tok,
		Amount:           body.Amount,
		SettlementTarget: target,
		OpaqueData:       body.OpaqueData,
		Nonce:            body.Nonce,
		Signature:        body.Signature,
	}
	if body.Caller != "" {
		if req.Caller, err = parseAddress(body.Caller); err != nil {
			return nil, fmt.Errorf("caller: %w", err)
		}
	}
	return req, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrInvalidToken),
		errors.Is(err, settlement.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrInvalidNonce):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrSignerOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, settlement.ErrApprovalFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (api *API) writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.log.Error("writing response", logger.Error(err))
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, err error) {
	api.writeResponse(w, status, &ErrorResponse{Message: err.Error()})
}
