package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DEGAorg/DEGA-ETH-ISPO/core"
	"github.com/DEGAorg/DEGA-ETH-ISPO/storage"
)

// unitVault converts 1:1 and accepts every transfer.
type unitVault struct{}

func (unitVault) ValueForShares(shares *big.Int) (*big.Int, error) {
	return new(big.Int).Set(shares), nil
}

func (unitVault) SharesForValue(value *big.Int) (*big.Int, error) {
	return new(big.Int).Set(value), nil
}

func (unitVault) TransferShares(_ common.Address, shares *big.Int) (*big.Int, error) {
	return new(big.Int).Set(shares), nil
}

func (unitVault) TransferSharesFrom(_, _ common.Address, shares *big.Int) (*big.Int, error) {
	return new(big.Int).Set(shares), nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	t.Setenv(authTokenEnv, "operator-secret")
	var poolAddr common.Address
	poolAddr[19] = 0xff
	node := core.NewNode(storage.NewMemDB(), unitVault{}, poolAddr, nil)
	server := NewServer(node)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func call(t *testing.T, url, token, method string, params ...interface{}) RPCResponse {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

const testUser = "0x00000000000000000000000000000000000000aa"

func TestDepositWithdrawRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts.URL, "", "ispo_deposit", amountParams{Address: testUser, Amount: "100"})
	if resp.Error != nil {
		t.Fatalf("deposit failed: %+v", resp.Error)
	}

	resp = call(t, ts.URL, "", "ispo_getAccount", addressParams{Address: testUser})
	if resp.Error != nil {
		t.Fatalf("get account failed: %+v", resp.Error)
	}
	account := resp.Result.(map[string]interface{})
	if account["claim"] != "100" {
		t.Fatalf("unexpected claim: %v", account["claim"])
	}

	resp = call(t, ts.URL, "", "ispo_withdraw", amountParams{Address: testUser, Amount: "40"})
	if resp.Error != nil {
		t.Fatalf("withdraw failed: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	if result["amount"] != "40" {
		t.Fatalf("unexpected released amount: %v", result["amount"])
	}

	resp = call(t, ts.URL, "", "ispo_getPool")
	if resp.Error != nil {
		t.Fatalf("get pool failed: %+v", resp.Error)
	}
	pool := resp.Result.(map[string]interface{})
	if pool["poolValue"] != "60" {
		t.Fatalf("unexpected pool value: %v", pool["poolValue"])
	}
}

func TestWithdrawErrorsSurfaceEngineCodes(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts.URL, "", "ispo_withdraw", amountParams{Address: testUser, Amount: "10"})
	if resp.Error == nil || resp.Error.Code != codeServerError {
		t.Fatalf("expected insufficiency error, got %+v", resp.Error)
	}

	resp = call(t, ts.URL, "", "ispo_deposit", amountParams{Address: testUser, Amount: "0"})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params error, got %+v", resp.Error)
	}
}

func TestAdminMethodsRequireToken(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts.URL, "", "ispo_pause")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}
	resp = call(t, ts.URL, "wrong-token", "ispo_pause")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized for bad token, got %+v", resp.Error)
	}

	resp = call(t, ts.URL, "operator-secret", "ispo_pause")
	if resp.Error != nil {
		t.Fatalf("pause failed: %+v", resp.Error)
	}

	resp = call(t, ts.URL, "", "ispo_deposit", amountParams{Address: testUser, Amount: "5"})
	if resp.Error == nil || resp.Error.Code != codePoolSuspended {
		t.Fatalf("expected suspension error, got %+v", resp.Error)
	}

	resp = call(t, ts.URL, "", "ispo_emergencyWithdraw", addressParams{Address: testUser})
	if resp.Error == nil {
		t.Fatalf("expected error for empty pool emergency exit")
	}

	resp = call(t, ts.URL, "operator-secret", "ispo_unpause")
	if resp.Error != nil {
		t.Fatalf("unpause failed: %+v", resp.Error)
	}
}

func TestEventsExposeLiteralAmounts(t *testing.T) {
	_, ts := newTestServer(t)

	if resp := call(t, ts.URL, "", "ispo_deposit", amountParams{Address: testUser, Amount: "75"}); resp.Error != nil {
		t.Fatalf("deposit failed: %+v", resp.Error)
	}
	resp := call(t, ts.URL, "", "ispo_getEvents")
	if resp.Error != nil {
		t.Fatalf("get events failed: %+v", resp.Error)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal events: %v", err)
	}
	var decoded eventsResult
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(decoded.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(decoded.Events))
	}
	event := decoded.Events[0]
	if event.Type != "ispo.deposited" || event.Attributes["amount"] != "75" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestMethodNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp := call(t, ts.URL, "", "ispo_unknown")
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}
