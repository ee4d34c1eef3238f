package dashboard

import (
	"fmt"
	"testing"

	"teamwallets/pkg/models"
	"teamwallets/pkg/roster"
	"teamwallets/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestBuildPage_DefaultTeams(t *testing.T) {
	wallets := models.JoinBalances(roster.Teams(), models.BalanceTable{10, 2500.4, 0.6, 300})

	page := BuildPage(wallets, table.DefaultSort(), 1, 10, language.English)

	assert.Equal(t, 1, page.Current)
	assert.Equal(t, 1, page.Max)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Rows, 4)

	var names []string
	for _, r := range page.Rows {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Team 2", "Team 4", "Team 1", "Team 3"}, names)

	first := page.Rows[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "0x92...7771", first.Address)
	assert.Equal(t, "2,500.00", first.Balance)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, []Action{{Label: "Update", Enabled: false}, {Label: "Delete", Enabled: true}}, first.Actions)
	assert.Equal(t, "1.00", page.Rows[3].Balance)
}

func TestBuildPage_ZeroDefaultTable(t *testing.T) {
	wallets := models.JoinBalances(roster.Teams(), models.BalanceTable{0})
	page := BuildPage(wallets, table.DefaultSort(), 1, 10, language.English)

	require.Len(t, page.Rows, 4)
	for i, r := range page.Rows {
		assert.Equal(t, "0.00", r.Balance)
		// Ties keep roster order.
		assert.Equal(t, fmt.Sprintf("Team %d", i+1), r.Name)
	}
}

func TestBuildPage_DisplayIndexIsPageRelative(t *testing.T) {
	var recs []models.WalletRecord
	var bals models.BalanceTable
	for i := 0; i < 7; i++ {
		recs = append(recs, models.WalletRecord{Name: fmt.Sprintf("W%d", i), Address: fmt.Sprintf("0x%040d", i)})
		bals = append(bals, float64(i))
	}
	wallets := models.JoinBalances(recs, bals)

	page := BuildPage(wallets, table.SortState{Field: table.FieldBalance, Ascending: false}, 2, 3, language.English)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, 3, page.Max)
	assert.Equal(t, []int{4, 5, 6}, []int{page.Rows[0].Index, page.Rows[1].Index, page.Rows[2].Index})
	assert.Equal(t, "W3", page.Rows[0].Name)

	last := BuildPage(wallets, table.SortState{Field: table.FieldBalance, Ascending: false}, 9, 3, language.English)
	assert.Equal(t, 3, last.Current)
	require.Len(t, last.Rows, 1)
	assert.Equal(t, 7, last.Rows[0].Index)
}

func TestBuildPage_Empty(t *testing.T) {
	page := BuildPage(nil, table.DefaultSort(), 1, 10, language.English)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 1, page.Max)
	assert.Equal(t, 1, page.Current)
}

func TestModalVariants(t *testing.T) {
	var m Modal = Close()
	assert.False(t, IsOpen(m))
	assert.False(t, IsOpen(nil))

	m = OpenCreate()
	assert.True(t, IsOpen(m))
	_, ok := Selected(m)
	assert.False(t, ok)

	m = OpenEdit(2)
	idx, ok := Selected(m)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	m = Close()
	_, ok = Selected(m)
	assert.False(t, ok, "closing discards the selection")

	m = OpenCreate()
	_, ok = Selected(m)
	assert.False(t, ok, "reopening for create has no stale selection")
}
