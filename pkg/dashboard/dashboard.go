package dashboard

import (
	"teamwallets/pkg/models"
	"teamwallets/pkg/table"
	"teamwallets/pkg/utils"

	"golang.org/x/text/language"
)

// Action is a row affordance. Neither action mutates anything.
type Action struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// Row is one rendered table line.
type Row struct {
	Index       int                 `json:"index"`
	Name        string              `json:"name"`
	Address     string              `json:"address"`
	FullAddress string              `json:"full_address"`
	Balance     string              `json:"balance"`
	RawBalance  float64             `json:"raw_balance"`
	Position    int                 `json:"position"`
	Actions     []Action            `json:"actions"`
	Record      models.WalletRecord `json:"-"`
}

// Page is the visible slice of the table plus its navigation state.
type Page struct {
	Rows    []Row           `json:"rows"`
	Current int             `json:"page"`
	Max     int             `json:"max_page"`
	Total   int             `json:"total"`
	Sort    table.SortState `json:"sort"`
}

func rowActions() []Action {
	return []Action{
		{Label: "Update", Enabled: false},
		{Label: "Delete", Enabled: true},
	}
}

// BuildRows renders visible wallets for the given 1-based page.
func BuildRows(visible []models.Wallet, page, pageSize int, tag language.Tag) []Row {
	rows := make([]Row, 0, len(visible))
	offset := pageSize * (page - 1)
	for i, w := range visible {
		rows = append(rows, Row{
			Index:       offset + i + 1,
			Name:        w.Name,
			Address:     utils.ShortAddress(w.Address),
			FullAddress: w.Address,
			Balance:     utils.FormatBalance(w.Balance, tag),
			RawBalance:  w.Balance,
			Position:    w.Position,
			Actions:     rowActions(),
			Record:      w.WalletRecord,
		})
	}
	return rows
}

// BuildPage sorts all wallets and renders the requested page. Out of range
// pages are clamped.
func BuildPage(wallets []models.Wallet, sort table.SortState, page, pageSize int, tag language.Tag) Page {
	if pageSize < 1 {
		pageSize = 1
	}
	ps := table.PageState{Current: page}.Resize(len(wallets), pageSize)
	visible := table.SortPage(wallets, sort.Field, sort.Ascending, ps.Current, pageSize)
	return Page{
		Rows:    BuildRows(visible, ps.Current, pageSize, tag),
		Current: ps.Current,
		Max:     ps.Max,
		Total:   len(wallets),
		Sort:    sort,
	}
}
