package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"teamwallets/pkg/config"
	"teamwallets/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

type rpcHandler func(req rpcRequest) (result any, errMsg string)

// newMockRPC serves single JSON-RPC requests through h.
func newMockRPC(t *testing.T, h rpcHandler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		result, errMsg := h(req)
		if errMsg != "" {
			resp["error"] = map[string]any{"code": -32000, "message": errMsg}
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func callData(req rpcRequest) string {
	if len(req.Params) == 0 {
		return ""
	}
	m, _ := req.Params[0].(map[string]any)
	if s, ok := m["input"].(string); ok {
		return s
	}
	s, _ := m["data"].(string)
	return s
}

func paramAddress(req rpcRequest) string {
	if len(req.Params) == 0 {
		return ""
	}
	s, _ := req.Params[0].(string)
	return strings.ToLower(s)
}

var testRoster = []models.WalletRecord{
	{Name: "A", Address: "0x3bb2b2455356de1cd8c91030b1864210c5ddc7f1"},
	{Name: "B", Address: "0x92d47b6e3dce6471f42021db650a611af4257771"},
	{Name: "C", Address: "0xa3438081956b35d5c23203197360f7b082cc4c9d"},
}

var nativeBalances = map[string]string{
	testRoster[0].Address: "0x22b1c8c1227a0000", // 2.5
	testRoster[1].Address: "0xde0b6b3a7640000",  // 1
	testRoster[2].Address: "0x0",
}

func nativeHandler(req rpcRequest) (any, string) {
	if req.Method == "eth_getBalance" {
		return nativeBalances[paramAddress(req)], ""
	}
	return "0x0", ""
}

func nativeChain(urls ...string) config.ChainConfig {
	return config.ChainConfig{
		Name:    "MockChain",
		RPCURLs: urls,
		Token:   config.TokenConfig{Symbol: "BNB", Decimals: 18},
	}
}

func TestFetchBalances_Native(t *testing.T) {
	server := newMockRPC(t, nativeHandler)

	data, err := FetchBalances(context.Background(), nativeChain(server.URL), testRoster)
	require.NoError(t, err)
	assert.Equal(t, "MockChain", data.ChainName)
	assert.Equal(t, models.BalanceTable{2.5, 1, 0}, data.Balances)
	assert.Empty(t, data.FailedRPCs)
}

func TestFetchBalances_Token(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := newMockRPC(t, func(req rpcRequest) (any, string) {
		if req.Method != "eth_call" {
			return nil, "unexpected method " + req.Method
		}
		mu.Lock()
		seen = append(seen, callData(req))
		mu.Unlock()
		return "0x000000000000000000000000000000000000000000000000000000001dcd6500", ""
	})

	chain := nativeChain(server.URL)
	chain.Token = config.TokenConfig{Symbol: "TEST", Address: "0x1234567890123456789012345678901234567890", Decimals: 6}

	data, err := FetchBalances(context.Background(), chain, testRoster[:1])
	require.NoError(t, err)
	assert.Equal(t, models.BalanceTable{500}, data.Balances)

	require.Len(t, seen, 1)
	assert.True(t, strings.HasPrefix(seen[0], "0x70a08231"), seen[0])
	assert.True(t, strings.HasSuffix(seen[0], strings.TrimPrefix(testRoster[0].Address, "0x")), seen[0])
}

func TestFetchBalances_FallsBackToNextEndpoint(t *testing.T) {
	// The first endpoint cannot answer for wallet B.
	flaky := newMockRPC(t, func(req rpcRequest) (any, string) {
		if paramAddress(req) == testRoster[1].Address {
			return nil, "header not found"
		}
		return nativeHandler(req)
	})
	good := newMockRPC(t, nativeHandler)

	data, err := FetchBalances(context.Background(), nativeChain(flaky.URL, good.URL), testRoster)
	require.NoError(t, err)
	assert.Equal(t, models.BalanceTable{2.5, 1, 0}, data.Balances)
	assert.Equal(t, []string{flaky.URL}, data.FailedRPCs)
}

func TestFetchBalances_AllOrNothing(t *testing.T) {
	flaky := newMockRPC(t, func(req rpcRequest) (any, string) {
		if paramAddress(req) == testRoster[2].Address {
			return nil, "boom"
		}
		return nativeHandler(req)
	})

	data, err := FetchBalances(context.Background(), nativeChain(flaky.URL), testRoster)
	require.Error(t, err)
	assert.Nil(t, data.Balances)
	assert.Equal(t, []string{flaky.URL}, data.FailedRPCs)
	assert.Contains(t, err.Error(), "1 of 3")
}

func TestFetchBalances_NoRPC(t *testing.T) {
	_, err := FetchBalances(context.Background(), nativeChain(), testRoster)
	assert.ErrorIs(t, err, config.ErrNoRPC)
}

func TestFetchBalances_Canceled(t *testing.T) {
	server := newMockRPC(t, nativeHandler)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := FetchBalances(ctx, nativeChain(server.URL), testRoster)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, data.Balances)
}

func TestFetchBalances_EmptyRoster(t *testing.T) {
	server := newMockRPC(t, nativeHandler)
	data, err := FetchBalances(context.Background(), nativeChain(server.URL), nil)
	require.NoError(t, err)
	assert.Empty(t, data.Balances)
}

func TestScaleAmount(t *testing.T) {
	raw, _ := new(big.Int).SetString("1234567890000000000000", 10)
	assert.InDelta(t, 1234.56789, ScaleAmount(raw, 18), 1e-9)
	assert.Equal(t, 500.0, ScaleAmount(big.NewInt(500000000), 6))
	assert.Equal(t, 7.0, ScaleAmount(big.NewInt(7), 0))
	assert.Equal(t, 0.0, ScaleAmount(nil, 18))
}

func TestFetchChainID(t *testing.T) {
	server := newMockRPC(t, func(req rpcRequest) (any, string) {
		if req.Method == "eth_chainId" {
			return "0x38", ""
		}
		return nil, "unexpected"
	})

	id, err := FetchChainID(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(56), id)
}

func abiString(s string) string {
	word := func(n int) string {
		b := make([]byte, 32)
		new(big.Int).SetInt64(int64(n)).FillBytes(b)
		return hex.EncodeToString(b)
	}
	data := make([]byte, 32)
	copy(data, s)
	return "0x" + word(32) + word(len(s)) + hex.EncodeToString(data)
}

func TestFetchTokenMetadata(t *testing.T) {
	down := newMockRPC(t, func(req rpcRequest) (any, string) { return nil, "unavailable" })
	server := newMockRPC(t, func(req rpcRequest) (any, string) {
		switch {
		case strings.HasPrefix(callData(req), "0x95d89b41"):
			return abiString("USDT"), ""
		case strings.HasPrefix(callData(req), "0x313ce567"):
			return "0x0000000000000000000000000000000000000000000000000000000000000012", ""
		}
		return nil, "unexpected"
	})

	md, err := FetchTokenMetadata(context.Background(), []string{down.URL, server.URL}, "0x55d398326f99059fF775485246999027B3197955")
	require.NoError(t, err)
	assert.Equal(t, "USDT", md.Symbol)
	assert.Equal(t, 18, md.Decimals)

	_, err = FetchTokenMetadata(context.Background(), []string{down.URL}, "0x55d398326f99059fF775485246999027B3197955")
	assert.ErrorIs(t, err, ErrMetadataMissing)
}

func TestDecodeSymbol(t *testing.T) {
	b32 := make([]byte, 32)
	copy(b32, "MKR")
	assert.Equal(t, "MKR", decodeSymbol(b32))
	assert.Equal(t, "", decodeSymbol(nil))
	assert.Equal(t, "", decodeSymbol([]byte{1, 2, 3}))

	// A length word near MaxInt64 must not wrap the slice bound.
	huge := make([]byte, 96)
	huge[56] = 0x7f
	for i := 57; i < 64; i++ {
		huge[i] = 0xff
	}
	assert.NotPanics(t, func() {
		assert.Equal(t, "", decodeSymbol(huge))
	})
}

func TestResolveTokenDecimals(t *testing.T) {
	server := newMockRPC(t, func(req rpcRequest) (any, string) {
		if strings.HasPrefix(callData(req), "0x313ce567") {
			return "0x0000000000000000000000000000000000000000000000000000000000000006", ""
		}
		return "0x", ""
	})
	token := "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"

	native := nativeChain(server.URL)
	got, err := ResolveTokenDecimals(context.Background(), native)
	require.NoError(t, err)
	assert.Equal(t, native, got)

	explicit := config.ChainConfig{RPCURLs: []string{server.URL}, Token: config.TokenConfig{Address: token, Decimals: 8}}
	got, err = ResolveTokenDecimals(context.Background(), explicit)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Token.Decimals)

	missing := config.ChainConfig{RPCURLs: []string{server.URL}, Token: config.TokenConfig{Address: token}}
	got, err = ResolveTokenDecimals(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Token.Decimals)

	down := newMockRPC(t, func(req rpcRequest) (any, string) { return nil, "unavailable" })
	missing.RPCURLs = []string{down.URL}
	_, err = ResolveTokenDecimals(context.Background(), missing)
	assert.ErrorIs(t, err, ErrMetadataMissing)
}

func TestFetchTokenMetadata_RejectsOutOfRangeDecimals(t *testing.T) {
	server := newMockRPC(t, func(req rpcRequest) (any, string) {
		if strings.HasPrefix(callData(req), "0x313ce567") {
			return "0x7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", ""
		}
		return "0x", ""
	})
	_, err := FetchTokenMetadata(context.Background(), []string{server.URL}, "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d")
	assert.ErrorIs(t, err, ErrMetadataMissing)
}
