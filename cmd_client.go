package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cyoa-editor/dashboard"
	"cyoa-editor/gateway"
	"cyoa-editor/player"
	"cyoa-editor/tui"
)

// apiClient crea il client del backend con il token configurato
func (a *app) apiClient(needToken bool) (*gateway.Client, error) {
	c, err := gateway.New(a.cfg.APIURL, a.cfg.HTTPTimeout, a.logger)
	if err != nil {
		return nil, err
	}
	if a.cfg.APIToken != "" {
		c.SetToken(a.cfg.APIToken)
	} else if needToken {
		return nil, errors.New("CYOA_API_TOKEN is not set, run `cyoa-editor login` first")
	}
	return c, nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	email := fs.String("email", "", "email dell'utente")
	name := fs.String("name", "", "nome visualizzato")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}
	c, err := a.apiClient(false)
	if err != nil {
		return err
	}
	user, err := c.Register(ctx, *email, *name, *password)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Utente registrato: %s (id %d)\n", user.Email, user.ID)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email dell'utente")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}
	c, err := a.apiClient(false)
	if err != nil {
		return err
	}
	tok, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Println("✅ Login effettuato. Esporta il token per i comandi successivi:")
	fmt.Printf("export %s_API_TOKEN=%s\n", "CYOA", tok.AccessToken)
	return nil
}

// runPlay apre il lettore da terminale su una storia del backend
func runPlay(ctx context.Context, a *app, args []string) error {
	fs := newFlags("play")
	storyID := fs.Int64("story", 0, "id della storia da giocare")
	format := fs.String("format", "ansi", "resa del testo: ansi o text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *storyID <= 0 {
		return errors.New("-story is required")
	}
	c, err := a.apiClient(true)
	if err != nil {
		return err
	}

	session := player.NewSession(a.cfg.PlayerName, player.WithLogger(a.logger))
	if err := session.Open(ctx, c, *storyID); err != nil {
		return err
	}
	return tui.Run(ctx, session, c, *format)
}

// runResults stampa una pagina della dashboard del creatore
func runResults(ctx context.Context, a *app, args []string) error {
	fs := newFlags("results")
	page := fs.Int("page", 1, "pagina da mostrare")
	filter := fs.String("filter", dashboard.AllStories, "titolo della storia da mostrare")
	asJSON := fs.Bool("json", false, "stampa la vista in JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.apiClient(true)
	if err != nil {
		return err
	}

	view, err := dashboard.NewLoader(c, a.logger).Load(ctx, *page, *filter)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printDashboard(view)
	return nil
}

func printDashboard(view dashboard.View) {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))

	fmt.Println(title.Render("📊 Resultados das minhas histórias"))
	fmt.Println(muted.Render(fmt.Sprintf("Filtro: %s · %d resultados · página %d/%d",
		view.Filter, view.TotalCount, view.Page, max(view.TotalPages, 1))))
	if len(view.Groups) == 0 {
		fmt.Println("\nNenhum resultado encontrado.")
		return
	}
	for _, g := range view.Groups {
		fmt.Printf("\n%s\n", title.Render(g.StoryTitle))
		for _, row := range g.Rows {
			r := row.Result
			fmt.Printf("  • %s · %s · %.2f min\n", r.PlayerNameAtPlay, r.StartTime.Local().Format("02/01/2006 15:04"), r.DurationMinutes)
			fmt.Printf("    %s\n", muted.Render(strings.Join(r.PagesVisited, " → ")))
			for _, ans := range row.Answers {
				fmt.Printf("    %s: %s\n", ans.QuestionText, ans.AnswerText)
			}
		}
	}
	if len(view.Titles) > 0 {
		fmt.Println(muted.Render("\nHistórias: " + strings.Join(view.Titles, ", ")))
	}
}
