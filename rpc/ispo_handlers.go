package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DEGAorg/DEGA-ETH-ISPO/core/types"
	"github.com/DEGAorg/DEGA-ETH-ISPO/observability"
)

type amountParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

type capParams struct {
	Cap string `json:"cap"`
}

type treasuryWithdrawParams struct {
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type emergencyResult struct {
	Amount string `json:"amount"`
	Shares string `json:"shares"`
}

type poolResult struct {
	TotalShares              string `json:"totalShares"`
	TreasuryShares           string `json:"treasuryShares"`
	PoolValue                string `json:"poolValue"`
	AccumulatedScaledBalance string `json:"accumulatedScaledBalance"`
	LastRewardTimestamp      uint64 `json:"lastRewardTimestamp"`
	MaxTotalDeposit          string `json:"maxTotalDeposit"`
	Paused                   bool   `json:"paused"`
}

type accountResult struct {
	Address       string `json:"address"`
	ScaledBalance string `json:"scaledBalance"`
	Shares        string `json:"shares"`
	Claim         string `json:"claim"`
}

type eventsResult struct {
	Events []types.Event `json:"events"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected one parameter object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func parseAddress(raw string) (common.Address, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid address"}
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "amount must be a decimal string"}
	}
	return amount, nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params amountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}

	started := time.Now()
	credited, err := s.node.Engine().Deposit(addr, amount)
	observeOutcome("deposit", started, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: credited.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params amountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}

	started := time.Now()
	released, err := s.node.Engine().Withdraw(addr, amount)
	observeOutcome("withdraw", started, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: released.String()})
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}

	started := time.Now()
	amount, shares, err := s.node.Engine().EmergencyWithdraw(addr)
	observeOutcome("emergencyWithdraw", started, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, emergencyResult{Amount: amount.String(), Shares: shares.String()})
}

func (s *Server) handleAssignRewards(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	started := time.Now()
	err := s.node.Engine().AssignRewards()
	observeOutcome("assignRewards", started, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetPool(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	pool, err := s.node.Engine().Pool()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	params, err := s.node.Engine().PoolParams()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolResult{
		TotalShares:              pool.TotalShares.String(),
		TreasuryShares:           pool.TreasuryShares.String(),
		PoolValue:                pool.PoolValue.String(),
		AccumulatedScaledBalance: pool.AccumulatedScaledBalance.String(),
		LastRewardTimestamp:      pool.LastRewardTimestamp,
		MaxTotalDeposit:          params.MaxTotalDeposit.String(),
		Paused:                   params.Paused,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	account, err := s.node.Engine().Account(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	claim, err := s.node.Engine().Claim(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, accountResult{
		Address:       account.Address.Hex(),
		ScaledBalance: account.ScaledBalance.String(),
		Shares:        account.Shares.String(),
		Claim:         claim.String(),
	})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	writeResult(w, req.ID, eventsResult{Events: s.node.Events()})
}

func (s *Server) handleSetDepositCap(w http.ResponseWriter, req *RPCRequest) {
	var params capParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	cap, rpcErr := parseAmount(params.Cap)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	if err := s.node.Engine().SetMaxTotalDeposit(cap); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) {
	if err := s.node.Engine().Pause(); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, req *RPCRequest) {
	if err := s.node.Engine().Unpause(); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleTreasuryWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params treasuryWithdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	destination, rpcErr := parseAddress(params.Destination)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	started := time.Now()
	paid, err := s.node.Engine().TreasuryWithdraw(amount, destination)
	observeOutcome("treasuryWithdraw", started, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: paid.String()})
}

func observeOutcome(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.PoolMetrics().ObserveOperation(operation, outcome, time.Since(started).Seconds())
}
