package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"SynthVault/internal/event"
	"SynthVault/internal/query"
)

// amountRequest covers the four single-amount operations.
type amountRequest struct {
	OpID    string `json:"op_id"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *Server) decodeAmountRequest(r *http.Request) (uuid.UUID, uuid.UUID, *big.Int, error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, uuid.Nil, nil, fmt.Errorf("decode request: %w", err)
	}
	opID, err := uuid.Parse(req.OpID)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, fmt.Errorf("op_id: %w", err)
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, fmt.Errorf("account: %w", err)
	}
	amount, err := event.ParseAmount(req.Amount)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, fmt.Errorf("amount: %w", err)
	}
	return opID, account, amount, nil
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, op event.Operation) {
	receipt, err := s.dispatcher.Submit(r.Context(), op)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeReceipt(w, receipt)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	opID, account, amount, err := s.decodeAmountRequest(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, &event.Deposit{
		OpID:      opID,
		Account:   account,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	opID, account, amount, err := s.decodeAmountRequest(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, &event.Mint{
		OpID:      opID,
		Account:   account,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	opID, account, amount, err := s.decodeAmountRequest(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, &event.Burn{
		OpID:      opID,
		Account:   account,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	opID, account, amount, err := s.decodeAmountRequest(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, &event.Redeem{
		OpID:      opID,
		Account:   account,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpID          string `json:"op_id"`
		Account       string `json:"account"`
		DepositAmount string `json:"deposit_amount"`
		MintAmount    string `json:"mint_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	opID, err := uuid.Parse(req.OpID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "op_id: " + err.Error()})
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account: " + err.Error()})
		return
	}
	depositAmount, err := event.ParseAmount(req.DepositAmount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "deposit_amount: " + err.Error()})
		return
	}
	mintAmount, err := event.ParseAmount(req.MintAmount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mint_amount: " + err.Error()})
		return
	}
	s.submit(w, r, &event.DepositAndMint{
		OpID:          opID,
		Account:       account,
		DepositAmount: depositAmount,
		MintAmount:    mintAmount,
		Timestamp:     time.Now().UTC(),
	})
}

func (s *Server) handleBurnAndRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpID         string `json:"op_id"`
		Account      string `json:"account"`
		BurnAmount   string `json:"burn_amount"`
		RedeemAmount string `json:"redeem_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	opID, err := uuid.Parse(req.OpID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "op_id: " + err.Error()})
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account: " + err.Error()})
		return
	}
	burnAmount, err := event.ParseAmount(req.BurnAmount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "burn_amount: " + err.Error()})
		return
	}
	redeemAmount, err := event.ParseAmount(req.RedeemAmount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "redeem_amount: " + err.Error()})
		return
	}
	s.submit(w, r, &event.BurnAndRedeem{
		OpID:         opID,
		Account:      account,
		BurnAmount:   burnAmount,
		RedeemAmount: redeemAmount,
		Timestamp:    time.Now().UTC(),
	})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpID       string `json:"op_id"`
		Liquidator string `json:"liquidator"`
		Account    string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	opID, err := uuid.Parse(req.OpID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "op_id: " + err.Error()})
		return
	}
	liquidator, err := uuid.Parse(req.Liquidator)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "liquidator: " + err.Error()})
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account: " + err.Error()})
		return
	}
	s.submit(w, r, &event.Liquidate{
		OpID:       opID,
		Liquidator: liquidator,
		Account:    account,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) handleParamUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpID   string `json:"op_id"`
		Caller string `json:"caller"`
		Value  string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	opID, err := uuid.Parse(req.OpID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "op_id: " + err.Error()})
		return
	}
	caller, err := uuid.Parse(req.Caller)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "caller: " + err.Error()})
		return
	}
	s.submit(w, r, &event.ParamUpdate{
		OpID:      opID,
		Caller:    caller,
		Name:      chi.URLParam(r, "name"),
		Value:     req.Value,
		Timestamp: time.Now().UTC(),
	})
}

// --- read routes ---

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account: " + err.Error()})
		return
	}

	view := s.engine.Account(account, time.Now().UTC())
	resp := map[string]any{
		"account_id": account,
		"collateral": view.Collateral.String(),
		"debt":       view.Debt.String(),
		"sequence":   s.engine.Sequence(),
	}
	if view.HealthFactor != nil {
		resp["health_factor"] = view.HealthFactor.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "projections unavailable in local mode"})
		return
	}
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account: " + err.Error()})
		return
	}

	balance, err := s.queries.AccountBalance(r.Context(), account)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleAccountHistory(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "projections unavailable in local mode"})
		return
	}
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account: " + err.Error()})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var before *int64
	if v := r.URL.Query().Get("before"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "before: " + err.Error()})
			return
		}
		before = &seq
	}

	entries, err := s.queries.History(r.Context(), &account, limit, before)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Params())
}

func (s *Server) handleInsuranceFund(w http.ResponseWriter, r *http.Request) {
	state := s.engine.InsuranceFund()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"balance":        state.Balance.String(),
		"total_credited": state.TotalCredited.String(),
		"total_debited":  state.TotalDebited.String(),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	state, observed := s.engine.Price()
	if !observed {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no price observed yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"price":           state.Price,
		"price_display":   query.RenderFeedPrice(state.Price),
		"source_sequence": state.SourceSequence,
		"updated_at":      state.UpdatedAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tip := s.engine.ChainTip()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sequence":  s.engine.Sequence(),
		"chain_tip": hex.EncodeToString(tip[:]),
	})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "event log unavailable in local mode"})
		return
	}
	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
