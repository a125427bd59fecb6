// Package tui è il lettore da terminale: mostra una pagina alla volta,
// raccoglie le risposte e invia il resoconto a fine partita.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"cyoa-editor/player"
	"cyoa-editor/render"
	"cyoa-editor/story"
)

type itemKind int

const (
	itemOption itemKind = iota
	itemLink
)

// item è una riga selezionabile: un'opzione di una domanda o un link
type item struct {
	kind       itemKind
	questionID string
	optionID   string
	title      string
}

type submittedMsg struct {
	result story.ExecutionResult
	err    error
}

type model struct {
	ctx       context.Context
	session   *player.Session
	submitter player.Submitter
	renderer  render.Renderer

	page   story.Page
	body   string
	items  []item
	cursor int
	width  int
	styles styles

	status     string
	failed     bool
	submitting bool
	done       bool
	quitting   bool
	result     story.ExecutionResult
}

func newModel(ctx context.Context, session *player.Session, submitter player.Submitter, renderer render.Renderer) model {
	m := model{
		ctx:       ctx,
		session:   session,
		submitter: submitter,
		renderer:  renderer,
		width:     80,
	}
	m.loadPage()
	return m
}

// loadPage legge la pagina corrente dalla sessione e ricostruisce le righe
func (m *model) loadPage() {
	page, ok := m.session.CurrentPage()
	if !ok {
		return
	}
	m.page = page
	m.styles = newStyles(page.AccentColor)
	m.cursor = 0
	m.items = nil
	for _, q := range page.Questions {
		for _, opt := range q.Options {
			m.items = append(m.items, item{kind: itemOption, questionID: q.ID, optionID: opt.ID, title: opt.Text})
		}
	}
	for _, title := range story.Links(page.Markdown) {
		m.items = append(m.items, item{kind: itemLink, title: title})
	}
	m.renderBody()
}

func (m *model) renderBody() {
	out, err := m.renderer.Render(m.page.Markdown, render.Options{AccentColor: m.page.AccentColor, Width: max(m.width-4, 20)})
	if err != nil {
		m.body = m.page.Markdown
		return
	}
	m.body = strings.TrimRight(out, "\n")
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.renderBody()
		return m, nil

	case submittedMsg:
		m.submitting = false
		if errors.Is(msg.err, story.ErrUnansweredQuestions) {
			m.setError(msg.err)
			return m, nil
		}
		m.done = true
		m.result = msg.result
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.failed = false
			m.status = "Resultado salvo."
		}
		return m, nil

	case tea.KeyMsg:
		if m.done {
			switch msg.String() {
			case "q", "esc", "enter", "ctrl+c":
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}
		if m.submitting {
			return m, nil
		}

		switch key := msg.String(); key {
		case "ctrl+c", "q", "esc":
			m.session.Abandon()
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.activate()
		case "f":
			if !m.session.CanLeave() {
				m.setError(story.ErrUnansweredQuestions)
				return m, nil
			}
			m.submitting = true
			m.status = "Enviando resultado..."
			m.failed = false
			return m, m.finish()
		default:
			if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(m.items) {
				m.cursor = n - 1
				m.activate()
			}
		}
	}
	return m, nil
}

// activate seleziona l'opzione o segue il link sotto il cursore
func (m *model) activate() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	it := m.items[m.cursor]
	m.status = ""
	m.failed = false

	switch it.kind {
	case itemOption:
		checked := true
		if q, ok := m.page.Question(it.questionID); ok && q.Type == story.MultipleChoice {
			checked = !m.isSelected(it)
		}
		if err := m.session.Answer(it.questionID, it.optionID, checked); err != nil {
			m.setError(err)
		}
	case itemLink:
		if story.IsDeletedMarker(it.title) {
			m.setError(fmt.Errorf("a página %q foi apagada", it.title))
			return
		}
		if _, err := m.session.FollowLink(it.title); err != nil {
			m.setError(err)
			return
		}
		m.loadPage()
	}
}

func (m model) finish() tea.Cmd {
	ctx, session, sub := m.ctx, m.session, m.submitter
	return func() tea.Msg {
		result, err := session.Finish(ctx, sub)
		return submittedMsg{result: result, err: err}
	}
}

func (m *model) setError(err error) {
	m.failed = true
	switch {
	case errors.Is(err, story.ErrUnansweredQuestions):
		m.status = "Responda todas as perguntas desta página antes de continuar."
	case errors.Is(err, story.ErrNotFound):
		m.status = "Página não encontrada: " + err.Error()
	default:
		m.status = err.Error()
	}
}

func (m model) isSelected(it item) bool {
	ans, ok := m.session.Answers()[it.questionID]
	if !ok {
		return false
	}
	for _, id := range ans.Selected() {
		if id == it.optionID {
			return true
		}
	}
	return false
}

// ============================================
// View
// ============================================

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.done {
		return m.resultView()
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render(m.page.Title))
	b.WriteString(m.styles.subtitle.Render("  ·  " + m.session.StoryTitle()))
	b.WriteString("\n\n")
	b.WriteString(m.body)
	b.WriteString("\n\n")

	n := 0
	for _, q := range m.page.Questions {
		hint := "escolha uma"
		if q.Type == story.MultipleChoice {
			hint = "múltipla escolha"
		}
		b.WriteString(m.styles.question.Render(q.Text))
		b.WriteString(m.styles.subtitle.Render(" (" + hint + ")"))
		b.WriteString("\n")
		for range q.Options {
			b.WriteString(m.itemLine(n, q.Type))
			n++
		}
		b.WriteString("\n")
	}

	if n < len(m.items) {
		b.WriteString(m.styles.subtitle.Render("Caminhos"))
		b.WriteString("\n")
		for ; n < len(m.items); n++ {
			b.WriteString(m.itemLine(n, ""))
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		style := m.styles.status
		if m.failed {
			style = m.styles.errText
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.help.Render("↑/↓ mover · enter selecionar · 1-9 atalho · f terminar · q sair"))
	return b.String()
}

func (m model) itemLine(i int, qt story.QuestionType) string {
	it := m.items[i]
	prefix := "  "
	if i == m.cursor {
		prefix = m.styles.cursor.Render("› ")
	}
	num := strconv.Itoa(i+1) + ". "

	if it.kind == itemLink {
		style := m.styles.link
		if story.IsDeletedMarker(it.title) {
			style = m.styles.broken
		}
		return prefix + num + "→ " + style.Render(it.title) + "\n"
	}

	mark := "( )"
	if qt == story.MultipleChoice {
		mark = "[ ]"
	}
	if m.isSelected(it) {
		mark = "(•)"
		if qt == story.MultipleChoice {
			mark = "[x]"
		}
		return prefix + num + m.styles.selected.Render(mark+" "+it.title) + "\n"
	}
	return prefix + num + mark + " " + it.title + "\n"
}

func (m model) resultView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Fim da história"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s\n", m.session.StoryTitle())
	fmt.Fprintf(&b, "Duração: %.2f minutos\n", m.result.DurationMinutes)
	fmt.Fprintf(&b, "Páginas visitadas: %s\n", strings.Join(m.result.PagesVisited, " → "))
	fmt.Fprintf(&b, "Perguntas respondidas: %d\n", len(m.result.Answers))

	panel := m.styles.panel.Render(strings.TrimRight(b.String(), "\n"))
	out := panel + "\n"
	if m.status != "" {
		style := m.styles.status
		if m.failed {
			style = m.styles.errText
		}
		out += style.Render(m.status) + "\n"
	}
	return out + m.styles.help.Render("q para sair")
}
