package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"cyoa-editor/player"
	"cyoa-editor/render"
)

// Run apre il lettore sulla sessione già avviata e blocca finché l'utente
// non esce. Se il resoconto non viene inviato la partita risulta abbandonata.
func Run(ctx context.Context, session *player.Session, submitter player.Submitter, format string) error {
	if format == "" {
		format = "ansi"
	}
	renderer, err := render.Get(format)
	if err != nil {
		return err
	}
	if session.State() != player.OnPage {
		return fmt.Errorf("cannot open the reader: %w", player.ErrInvalidState)
	}

	m := newModel(ctx, session, submitter, renderer)
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err = program.Run()
	session.Abandon()
	return err
}
