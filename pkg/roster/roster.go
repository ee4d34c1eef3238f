package roster

import (
	"errors"
	"fmt"
	"strings"

	"teamwallets/pkg/config"
	"teamwallets/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

var teams = [...]models.WalletRecord{
	{Name: "Team 1", Address: "0x3bb2b2455356de1cd8c91030b1864210c5ddc7f1"},
	{Name: "Team 2", Address: "0x92d47b6e3dce6471f42021db650a611af4257771"},
	{Name: "Team 3", Address: "0xa3438081956b35d5c23203197360f7b082cc4c9d"},
	{Name: "Team 4", Address: "0xbc8aa54b5ccb8c6a306c07d8c70a9623970e160f"},
}

// Teams returns a copy of the built-in team wallets.
func Teams() []models.WalletRecord {
	out := make([]models.WalletRecord, len(teams))
	copy(out, teams[:])
	return out
}

// FromConfig builds the roster from configured addresses, falling back to the
// built-in teams when none are configured. Checksums are not enforced.
func FromConfig(addrs []config.AddressConfig) ([]models.WalletRecord, error) {
	if len(addrs) == 0 {
		return Teams(), nil
	}
	out := make([]models.WalletRecord, 0, len(addrs))
	for i, a := range addrs {
		addr := strings.TrimSpace(a.Address)
		if !common.IsHexAddress(addr) || !strings.HasPrefix(strings.ToLower(addr), "0x") {
			return nil, fmt.Errorf("roster entry %d (%q): %w", i, a.Address, ErrInvalidAddress)
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = fmt.Sprintf("Team %d", i+1)
		}
		out = append(out, models.WalletRecord{Name: name, Address: addr})
	}
	return out, nil
}
