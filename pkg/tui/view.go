package tui

import (
	"fmt"
	"strconv"
	"strings"

	"teamwallets/pkg/dashboard"
	"teamwallets/pkg/i18n"
	"teamwallets/pkg/table"
	"teamwallets/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
)

const (
	skeletonRows = 4
	maxNameWidth = 20
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showGraph {
		return m.viewGraph()
	}
	if dashboard.IsOpen(m.modal) && m.form != nil {
		return m.viewModal()
	}
	return m.viewMain()
}

func (m model) viewMain() string {
	chain := m.watcher.Chain()
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(fmt.Sprintf("Team Wallets %s", Version)),
		" ",
		subtleStyle.Render(fmt.Sprintf("%s • %s", chain.Name, chain.Token.Symbol)),
		"   ",
		buttonStyle.Render("+ "+m.tr.T("Create", nil)),
	)

	page := m.currentPage()
	tbl := RenderTable(page, m.tr, m.cursor)
	if m.loading {
		tbl = lipgloss.JoinVertical(lipgloss.Left, tbl, fmt.Sprintf("%s %s", m.spinner.View(), subtleStyle.Render("loading balances...")))
	}

	var status string
	switch {
	case m.statusMessage != "":
		status = infoStyle.Render(m.statusMessage)
	case !m.lastUpdate.IsZero():
		status = subtleStyle.Render("Updated " + m.lastUpdate.Format("15:04:05"))
	}

	footer := subtleStyle.Render("n/a/b: sort • h/l: page • j/k: select • c: create • enter: edit • y: copy • o: explorer • r: refresh • g: graph • ?: help • q: quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		tbl,
		PageLabel(page, m.tr),
		"",
		status,
		footer,
	)
}

// PageLabel renders the pager line with arrows dimmed at either end.
func PageLabel(page dashboard.Page, tr *i18n.Translator) string {
	prev, next := "←", "→"
	ps := table.PageState{Current: page.Current, Max: page.Max}
	if !ps.HasPrev() {
		prev = disabledStyle.Render(prev)
	}
	if !ps.HasNext() {
		next = disabledStyle.Render(next)
	}
	label := tr.T("Page %page% of %maxPage%", map[string]any{"page": page.Current, "maxPage": page.Max})
	return fmt.Sprintf("%s %s %s", prev, label, next)
}

func headerCell(tr *i18n.Translator, sort table.SortState, key string, f table.Field) string {
	return tr.T(key, nil) + sort.Arrow(f)
}

// RenderTable draws one page of rows. cursor < 0 highlights nothing. An empty
// page renders skeleton rows.
func RenderTable(page dashboard.Page, tr *i18n.Translator, cursor int) string {
	headers := []string{
		tr.T("#", nil),
		headerCell(tr, page.Sort, "Name", table.FieldName),
		headerCell(tr, page.Sort, "Address", table.FieldAddress),
		headerCell(tr, page.Sort, "Balance", table.FieldBalance),
		tr.T("Action", nil),
	}

	var rows [][]string
	skeleton := len(page.Rows) == 0
	if skeleton {
		for i := 0; i < skeletonRows; i++ {
			rows = append(rows, []string{"░", "░░░░░░", "░░░░░░░░░░░", "░░░░░░", "░░░░░░░░"})
		}
	}
	for _, r := range page.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.Index),
			utils.TruncateString(r.Name, maxNameWidth),
			r.Address,
			r.Balance,
			renderActions(r.Actions, tr),
		})
	}

	t := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(subtleStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cellStyle
			switch {
			case row == lgtable.HeaderRow:
				return tableHeaderStyle
			case skeleton:
				return skeletonStyle
			case row == cursor:
				style = selectedStyle
			}
			if col == 3 {
				style = style.Align(lipgloss.Right)
			}
			return style
		})
	return t.String()
}

func renderActions(actions []dashboard.Action, tr *i18n.Translator) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		label := tr.T(a.Label, nil)
		if !a.Enabled {
			label = disabledStyle.Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

func (m model) viewModal() string {
	title := m.tr.T("Create Address", nil)
	var sub string
	if idx, ok := dashboard.Selected(m.modal); ok && idx < len(m.wallets) {
		sub = subtleStyle.Render(fmt.Sprintf("from %s", m.wallets[idx].Name))
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		sub,
		m.form.View(),
		subtleStyle.Render("enter: next/submit • esc: close"),
	))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m model) viewGraph() string {
	header := titleStyle.Render("Balance History")
	var graph string
	if len(m.history) > 0 {
		width := m.width - 10
		if width < 10 {
			width = 10
		}
		height := m.height - 12
		if height < 5 {
			height = 5
		}
		graph = asciigraph.Plot(m.history,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("Total %s across %d wallets", m.watcher.Chain().Token.Symbol, len(m.wallets))),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", graph))
	footer := subtleStyle.Render("g/q/esc: back")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"n: Sort by Name",
		"a: Sort by Address",
		"b: Sort by Balance",
		"h/Left: Previous Page",
		"l/Right: Next Page",
		"k/Up, j/Down: Select Row",
		"c: Create Address",
		"enter: Open Selected Row",
		"e: Update (disabled)",
		"d: Delete",
		"y: Copy Address",
		"o: Open in Explorer",
		"r: Refresh Balances",
		"g: Balance History",
		"q: Quit",
		"?: Toggle Help",
	}

	header := titleStyle.Render("Help")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
