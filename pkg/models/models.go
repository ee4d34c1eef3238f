package models

import (
	"strings"

	"teamwallets/pkg/table"
)

// WalletRecord is one roster entry.
type WalletRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// BalanceTable holds balances index-aligned with the roster.
type BalanceTable []float64

// At returns the balance for roster position i, or 0 when there is none.
func (t BalanceTable) At(i int) float64 {
	if i < 0 || i >= len(t) {
		return 0
	}
	return t[i]
}

// Clone returns an independent copy.
func (t BalanceTable) Clone() BalanceTable {
	if t == nil {
		return nil
	}
	out := make(BalanceTable, len(t))
	copy(out, t)
	return out
}

// Total sums all balances.
func (t BalanceTable) Total() float64 {
	var sum float64
	for _, v := range t {
		sum += v
	}
	return sum
}

// Wallet is a roster entry joined with its balance.
type Wallet struct {
	WalletRecord
	Position int     `json:"position"`
	Balance  float64 `json:"balance"`
}

// SortValue exposes the sortable columns of a wallet.
func (w Wallet) SortValue(f table.Field) (table.Value, bool) {
	switch f {
	case table.FieldName:
		return table.Text(w.Name), true
	case table.FieldAddress:
		return table.Text(strings.ToLower(w.Address)), true
	case table.FieldBalance:
		return table.Number(w.Balance), true
	}
	return table.Value{}, false
}

// JoinBalances pairs every roster entry with its balance.
func JoinBalances(roster []WalletRecord, balances BalanceTable) []Wallet {
	wallets := make([]Wallet, 0, len(roster))
	for i, r := range roster {
		wallets = append(wallets, Wallet{
			WalletRecord: r,
			Position:     i,
			Balance:      balances.At(i),
		})
	}
	return wallets
}

// BalanceData contains the result of a balance fetch for the roster.
type BalanceData struct {
	ChainName  string
	Balances   BalanceTable
	FailedRPCs []string
}

// TokenMetadata contains the result of a token metadata fetch.
type TokenMetadata struct {
	Symbol   string
	Decimals int
	Err      error
}

// RPCResult holds check results for a specific RPC URL.
type RPCResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"` // "ok" or "error"
	ChainID int64  `json:"chain_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckReport holds the results of the configuration check.
type CheckReport struct {
	ConfigPath      string      `json:"config_path"`
	ValidStructure  bool        `json:"valid_structure"`
	StructureErrors []string    `json:"structure_errors,omitempty"`
	WalletCount     int         `json:"wallet_count"`
	ChainName       string      `json:"chain_name"`
	ConfigChainID   int64       `json:"config_chain_id"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	TokenSymbol     string      `json:"token_symbol,omitempty"`
	TokenDecimals   int         `json:"token_decimals"`
	ConfigUpdated   bool        `json:"config_updated"`
	SaveError       string      `json:"save_error,omitempty"`
	DryRun          bool        `json:"dry_run"`
}
