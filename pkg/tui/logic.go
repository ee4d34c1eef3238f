package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"teamwallets/pkg/dashboard"
	"teamwallets/pkg/table"
	"teamwallets/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
)

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func refreshCmd(ctx context.Context, w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: w.Refresh(ctx)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m model) currentPage() dashboard.Page {
	return dashboard.BuildPage(m.wallets, m.sort, m.page.Current, m.pageSize, m.tr.Tag())
}

func (m model) selectedRow() (dashboard.Row, bool) {
	rows := m.currentPage().Rows
	if m.cursor < 0 || m.cursor >= len(rows) {
		return dashboard.Row{}, false
	}
	return rows[m.cursor], true
}

func (m *model) clampCursor() {
	n := len(m.currentPage().Rows)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) applySnapshot(s watcher.Snapshot) {
	m.wallets = s.Wallets
	m.loading = s.Loading
	if !s.UpdatedAt.IsZero() {
		m.lastUpdate = s.UpdatedAt
	}
	m.page = m.page.Resize(len(m.wallets), m.pageSize)
	m.clampCursor()

	hist := m.watcher.History()
	m.history = make([]float64, 0, len(hist))
	for _, p := range hist {
		m.history = append(m.history, p.Total)
	}
}

func (m *model) toggleSort(f table.Field) {
	m.sort = m.sort.Toggle(f)
	m.clampCursor()
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "0x") || !common.IsHexAddress(s) {
		return errors.New("enter a 0x-prefixed 40 hex digit address")
	}
	return nil
}

// openModal shows the Create Address form. For EditOpen the form starts with
// the selected wallet's values.
func (m *model) openModal(modal dashboard.Modal) tea.Cmd {
	m.modal = modal
	m.draft = &createDraft{}
	if idx, ok := dashboard.Selected(modal); ok && idx >= 0 && idx < len(m.wallets) {
		m.draft.Name = m.wallets[idx].Name
		m.draft.Address = m.wallets[idx].Address
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(m.tr.T("Name", nil)).
				Value(&m.draft.Name).
				Placeholder("Team 5"),

			huh.NewInput().
				Title(m.tr.T("Address", nil)).
				Value(&m.draft.Address).
				Placeholder("0x...").
				Validate(validateAddress),
		),
	).WithTheme(huh.ThemeCatppuccin()).WithShowHelp(false)

	return m.form.Init()
}

func (m *model) closeModal() {
	m.modal = dashboard.Close()
	m.form = nil
	m.draft = nil
}

// submitModal records the draft. The roster is fixed at startup, so nothing
// is persisted.
func (m *model) submitModal() {
	ev := m.logger.Info().
		Str("name", strings.TrimSpace(m.draft.Name)).
		Str("address", strings.TrimSpace(m.draft.Address))
	if idx, ok := dashboard.Selected(m.modal); ok {
		ev = ev.Int("selected", idx)
	}
	ev.Msg("create address submitted")
	m.statusMessage = m.tr.T("Address form submitted (roster is read-only)", nil)
	m.closeModal()
}

func isSuperseded(err error) bool {
	return errors.Is(err, watcher.ErrSuperseded)
}
