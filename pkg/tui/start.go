package tui

import (
	"context"

	"teamwallets/pkg/i18n"
	"teamwallets/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// Start runs the dashboard until the user quits. The watcher must not have
// been started; Start starts and stops it.
func Start(ctx context.Context, w *watcher.Watcher, tr *i18n.Translator, pageSize int, logger zerolog.Logger, version string) error {
	Version = version
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialModel(ctx, w, tr, pageSize, logger)
	defer w.Unsubscribe(m.sub)

	w.Start(ctx)
	defer w.Stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
