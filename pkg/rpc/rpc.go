package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"teamwallets/pkg/config"
	"teamwallets/pkg/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	// RPCTimeout bounds the work done against a single endpoint.
	RPCTimeout = 30 * time.Second
	// MetadataTimeout bounds chain id and token metadata lookups.
	MetadataTimeout = 10 * time.Second
	// Concurrency is the number of wallets queried at once on one endpoint.
	Concurrency = 4
)

var (
	ErrIncomplete      = errors.New("balances missing for some wallets")
	ErrMetadataMissing = errors.New("failed to fetch token metadata")
)

var (
	selectorBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31}
	selectorSymbol    = []byte{0x95, 0xd8, 0x9b, 0x41}
	selectorDecimals  = []byte{0x31, 0x3c, 0xe5, 0x67}
)

// FetchBalances reads the configured token balance of every roster wallet.
//
// Endpoints are tried in order. Wallets that fail on one endpoint are retried
// on the next. The result is all-or-nothing: unless every wallet resolved,
// Balances is nil and an error is returned.
func FetchBalances(ctx context.Context, chain config.ChainConfig, roster []models.WalletRecord) (models.BalanceData, error) {
	data := models.BalanceData{ChainName: chain.Name}
	if len(chain.RPCURLs) == 0 {
		return data, config.ErrNoRPC
	}

	balances := make(models.BalanceTable, len(roster))
	pending := make([]int, len(roster))
	for i := range roster {
		pending[i] = i
	}

	var lastErr error
	for _, rpcURL := range chain.RPCURLs {
		if len(pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return data, err
		}

		failed, err := fetchFromEndpoint(ctx, rpcURL, chain.Token, roster, pending, balances)
		if err != nil {
			lastErr = err
		}
		if len(failed) > 0 || err != nil {
			data.FailedRPCs = append(data.FailedRPCs, rpcURL)
		}
		pending = failed
	}

	if err := ctx.Err(); err != nil {
		return data, err
	}
	if len(pending) > 0 {
		if lastErr == nil {
			lastErr = ErrIncomplete
		}
		return data, fmt.Errorf("%d of %d wallets unresolved: %w", len(pending), len(roster), lastErr)
	}
	data.Balances = balances
	return data, nil
}

// fetchFromEndpoint fills balances for the pending indices and returns those
// that failed. A dial error fails every pending index.
func fetchFromEndpoint(ctx context.Context, rpcURL string, token config.TokenConfig, roster []models.WalletRecord, pending []int, balances models.BalanceTable) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return pending, err
	}
	defer client.Close()

	var (
		mu      sync.Mutex
		failed  []int
		lastErr error
	)
	g := new(errgroup.Group)
	g.SetLimit(Concurrency)
	for _, idx := range pending {
		idx := idx
		g.Go(func() error {
			bal, err := fetchBalance(ctx, client, token, common.HexToAddress(roster[idx].Address))
			if err != nil {
				mu.Lock()
				failed = append(failed, idx)
				lastErr = err
				mu.Unlock()
				return nil
			}
			balances[idx] = bal
			return nil
		})
	}
	_ = g.Wait()

	// Keep roster order for the next endpoint.
	if len(failed) > 1 {
		ordered := make([]int, 0, len(failed))
		miss := make(map[int]bool, len(failed))
		for _, i := range failed {
			miss[i] = true
		}
		for _, i := range pending {
			if miss[i] {
				ordered = append(ordered, i)
			}
		}
		failed = ordered
	}
	return failed, lastErr
}

func fetchBalance(ctx context.Context, client *ethclient.Client, token config.TokenConfig, account common.Address) (float64, error) {
	var raw *big.Int
	if token.Address == "" {
		bal, err := client.BalanceAt(ctx, account, nil)
		if err != nil {
			return 0, err
		}
		raw = bal
	} else {
		data := make([]byte, 4+32)
		copy(data[0:4], selectorBalanceOf)
		copy(data[4+12:], account.Bytes())
		tokenAddr := common.HexToAddress(token.Address)
		result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
		if err != nil {
			return 0, err
		}
		raw = new(big.Int).SetBytes(result)
	}
	return ScaleAmount(raw, token.Decimals), nil
}

// ScaleAmount converts a raw integer amount to token units.
func ScaleAmount(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).InexactFloat64()
}

// FetchChainID asks a single endpoint for its chain id.
func FetchChainID(ctx context.Context, rpcURL string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, MetadataTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

// FetchTokenMetadata fetches the symbol and decimals for a token address from
// the first endpoint that answers decimals().
func FetchTokenMetadata(ctx context.Context, rpcURLs []string, tokenAddress string) (models.TokenMetadata, error) {
	targetAddr := common.HexToAddress(tokenAddress)

	for _, rpcURL := range rpcURLs {
		md, err := fetchTokenMetadata(ctx, rpcURL, targetAddr)
		if err == nil {
			return md, nil
		}
		if ctx.Err() != nil {
			return models.TokenMetadata{Err: ctx.Err()}, ctx.Err()
		}
	}
	return models.TokenMetadata{Err: ErrMetadataMissing}, ErrMetadataMissing
}

func fetchTokenMetadata(ctx context.Context, rpcURL string, token common.Address) (models.TokenMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, MetadataTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return models.TokenMetadata{}, err
	}
	defer client.Close()

	var symbol string
	if res, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: selectorSymbol}, nil); err == nil {
		symbol = decodeSymbol(res)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: selectorDecimals}, nil)
	if err != nil {
		return models.TokenMetadata{}, err
	}
	dec := new(big.Int).SetBytes(res)
	if len(res) == 0 || !dec.IsUint64() || dec.Uint64() > 255 {
		return models.TokenMetadata{}, ErrMetadataMissing
	}
	return models.TokenMetadata{Symbol: symbol, Decimals: int(dec.Uint64())}, nil
}

// ResolveTokenDecimals looks up the decimals of an ERC-20 token configured
// without them. Native coins and tokens with decimals set are returned as is.
func ResolveTokenDecimals(ctx context.Context, chain config.ChainConfig) (config.ChainConfig, error) {
	if chain.Token.Address == "" || chain.Token.Decimals != 0 {
		return chain, nil
	}
	md, err := FetchTokenMetadata(ctx, chain.RPCURLs, chain.Token.Address)
	if err != nil {
		return chain, fmt.Errorf("resolve decimals of %s: %w", chain.Token.Address, err)
	}
	chain.Token.Decimals = md.Decimals
	return chain, nil
}

// decodeSymbol handles both bytes32 and ABI string return values.
func decodeSymbol(res []byte) string {
	switch {
	case len(res) == 32:
		return string(bytes.TrimRight(res, "\x00"))
	case len(res) >= 64:
		length := new(big.Int).SetBytes(res[32:64])
		if !length.IsInt64() {
			return ""
		}
		n := int(length.Int64())
		if n > 0 && n <= len(res)-64 {
			return string(res[64 : 64+n])
		}
	}
	return ""
}
