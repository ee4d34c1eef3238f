package tui

import (
	"context"
	"time"

	"teamwallets/pkg/dashboard"
	"teamwallets/pkg/i18n"
	"teamwallets/pkg/models"
	"teamwallets/pkg/table"
	"teamwallets/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{}

type refreshDoneMsg struct{ err error }

// --- Model ---

// createDraft backs the Create Address form. It lives behind a pointer so the
// form's bound fields survive model copies.
type createDraft struct {
	Name    string
	Address string
}

type model struct {
	watcher  *watcher.Watcher
	sub      watcher.Subscriber
	ctx      context.Context
	tr       *i18n.Translator
	logger   zerolog.Logger
	pageSize int

	wallets    []models.Wallet
	sort       table.SortState
	page       table.PageState
	cursor     int
	modal      dashboard.Modal
	form       *huh.Form
	draft      *createDraft
	loading    bool
	lastUpdate time.Time
	history    []float64

	spinner       spinner.Model
	statusMessage string
	showGraph     bool
	showHelp      bool
	width         int
	height        int
}

func initialModel(ctx context.Context, w *watcher.Watcher, tr *i18n.Translator, pageSize int, logger zerolog.Logger) model {
	if pageSize < 1 {
		pageSize = 1
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	wallets := w.Wallets()
	return model{
		watcher:  w,
		sub:      w.Subscribe(),
		ctx:      ctx,
		tr:       tr,
		logger:   logger.With().Str("component", "tui").Logger(),
		pageSize: pageSize,
		wallets:  wallets,
		sort:     table.DefaultSort(),
		page:     table.NewPageState(len(wallets), pageSize),
		modal:    dashboard.Close(),
		loading:  true,
		spinner:  s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForWatcher(m.sub), m.spinner.Tick)
}
