package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/DEGAorg/DEGA-ETH-ISPO/core"
	nativecommon "github.com/DEGAorg/DEGA-ETH-ISPO/native/common"
	"github.com/DEGAorg/DEGA-ETH-ISPO/native/ispo"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "ISPO_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codePoolSuspended  = -32030
)

type Server struct {
	node      *core.Node
	authToken string
}

func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	return &Server{node: node, authToken: token}
}

// Start serves the JSON-RPC endpoint on addr and blocks.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

// Handler exposes the dispatch entrypoint for embedding and tests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch req.Method {
	case "ispo_deposit":
		s.handleDeposit(w, &req)
	case "ispo_withdraw":
		s.handleWithdraw(w, &req)
	case "ispo_emergencyWithdraw":
		s.handleEmergencyWithdraw(w, &req)
	case "ispo_assignRewards":
		s.handleAssignRewards(w, &req)
	case "ispo_getPool":
		s.handleGetPool(w, &req)
	case "ispo_getAccount":
		s.handleGetAccount(w, &req)
	case "ispo_getEvents":
		s.handleGetEvents(w, &req)
	case "ispo_setDepositCap":
		s.withAuth(r, w, &req, s.handleSetDepositCap)
	case "ispo_pause":
		s.withAuth(r, w, &req, s.handlePause)
	case "ispo_unpause":
		s.withAuth(r, w, &req, s.handleUnpause)
	case "ispo_treasuryWithdraw":
		s.withAuth(r, w, &req, s.handleTreasuryWithdraw)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

type handlerFunc func(w http.ResponseWriter, req *RPCRequest)

func (s *Server) withAuth(r *http.Request, w http.ResponseWriter, req *RPCRequest, next handlerFunc) {
	if err := s.requireAuth(r); err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, err.Code, err.Message, err.Data)
		return
	}
	next(w, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "server has no operator token configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	return nil
}

// writeEngineError maps engine failures onto JSON-RPC error codes so callers
// can distinguish bad input from insufficiency and suspension.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, ispo.ErrInvalidAmount),
		errors.Is(err, ispo.ErrZeroAddress),
		errors.Is(err, ispo.ErrInvalidCap):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, ispo.ErrNotPaused):
		writeError(w, http.StatusConflict, id, codePoolSuspended, err.Error(), nil)
	default:
		writeError(w, http.StatusUnprocessableEntity, id, codeServerError, err.Error(), nil)
	}
}
