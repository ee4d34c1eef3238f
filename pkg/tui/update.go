package tui

import (
	"time"

	"teamwallets/pkg/dashboard"
	"teamwallets/pkg/table"
	"teamwallets/pkg/watcher"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

var clipboardWrite = clipboard.WriteAll

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if dashboard.IsOpen(m.modal) && m.form != nil {
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
			m.closeModal()
			return m, nil
		}
		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
			switch m.form.State {
			case huh.StateCompleted:
				m.submitModal()
				return m, clearStatusAfter(2 * time.Second)
			case huh.StateAborted:
				m.closeModal()
				return m, nil
			}
		}
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))
		m.applySnapshot(msg.Data)

	case refreshDoneMsg:
		if msg.err != nil && !isSuperseded(msg.err) {
			m.logger.Debug().Err(msg.err).Msg("manual refresh failed")
		}

	case tea.KeyMsg:
		if msg.String() == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.showGraph {
			switch msg.String() {
			case "g", "q", "esc":
				m.showGraph = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "n":
			m.toggleSort(table.FieldName)
		case "a":
			m.toggleSort(table.FieldAddress)
		case "b":
			m.toggleSort(table.FieldBalance)

		case "left", "h":
			m.page = m.page.Prev()
			m.clampCursor()
		case "right", "l":
			m.page = m.page.Next()
			m.clampCursor()

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.currentPage().Rows)-1 {
				m.cursor++
			}

		case "c":
			return m, m.openModal(dashboard.OpenCreate())
		case "enter":
			if row, ok := m.selectedRow(); ok {
				return m, m.openModal(dashboard.OpenEdit(row.Position))
			}

		case "e":
			m.statusMessage = m.tr.T("Update is disabled", nil)
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		case "d":
			if row, ok := m.selectedRow(); ok {
				m.logger.Debug().Str("wallet", row.Name).Msg("delete requested, ignored")
			}
			m.statusMessage = m.tr.T("Delete: nothing to do", nil)
			cmds = append(cmds, clearStatusAfter(2*time.Second))

		case "y":
			if row, ok := m.selectedRow(); ok {
				if err := clipboardWrite(row.FullAddress); err != nil {
					m.statusMessage = m.tr.T("Failed to copy to clipboard", nil)
				} else {
					m.statusMessage = m.tr.T("Full address copied to clipboard!", nil)
				}
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}

		case "o":
			row, ok := m.selectedRow()
			if !ok {
				break
			}
			url := explorerAddressURL(m.watcher.Chain().ExplorerURL, row.FullAddress)
			switch {
			case url == "":
				m.statusMessage = m.tr.T("Explorer URL not configured for this chain", nil)
			case openBrowser(url) != nil:
				m.statusMessage = m.tr.T("Failed to open browser", nil)
			default:
				m.statusMessage = m.tr.T("Opened in browser", nil)
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))

		case "r":
			m.loading = true
			m.statusMessage = m.tr.T("Refreshing data...", nil)
			cmds = append(cmds, refreshCmd(m.ctx, m.watcher), clearStatusAfter(2*time.Second))

		case "g":
			m.showGraph = true
		}

	case clearStatusMsg:
		m.statusMessage = ""
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}
