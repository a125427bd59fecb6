package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"cyoa-editor/compiler"
	"cyoa-editor/editor"
	"cyoa-editor/localstate"
	"cyoa-editor/render"
	"cyoa-editor/story"
)

// editAction è un'azione sulla copia di lavoro locale
type editAction func(ctx context.Context, a *app, ed *editor.Controller, args []string) error

var editActions = map[string]editAction{
	"show":       editShow,
	"page":       editPage,
	"new":        editNew,
	"delete":     editDelete,
	"select":     editSelect,
	"start":      editStart,
	"follow":     editFollow,
	"question":   editQuestion,
	"unquestion": editUnquestion,
	"reset":      editReset,
	"publish":    editPublish,
	"export":     editExport,
}

// runEdit apre la copia di lavoro salvata in CYOA_LOCAL_STATE_PATH ed
// esegue un'azione su di essa
func runEdit(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("missing edit action (show|page|new|delete|select|start|follow|question|unquestion|reset|publish|export)")
	}
	action, ok := editActions[args[0]]
	if !ok {
		return fmt.Errorf("unknown edit action %q", args[0])
	}

	local, err := localstate.Open(a.cfg.LocalStatePath, a.logger)
	if err != nil {
		return err
	}
	defer local.Close()

	ed, err := editor.Open(ctx, local, a.logger)
	if err != nil {
		return err
	}
	return action(ctx, a, ed, args[1:])
}

func editShow(_ context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit show")
	format := fs.String("format", "ansi", "resa della pagina corrente: ansi, text o html")
	if err := fs.Parse(args); err != nil {
		return err
	}
	doc := ed.Snapshot()
	current, hasCurrent := ed.CurrentPage()

	fmt.Printf("📖 %s (%d pagine)\n\n", doc.Title, len(doc.Pages))
	for _, p := range doc.Pages {
		marks := ""
		if p.ID == doc.StartPageID {
			marks += " ⭐"
		}
		if hasCurrent && p.ID == current.ID {
			marks += " ✏️"
		}
		fmt.Printf("  - %s [%s]%s\n", p.Title, p.ID, marks)
	}
	if !hasCurrent {
		return nil
	}

	r, err := render.Get(*format)
	if err != nil {
		return err
	}
	out, err := r.Render(current.Markdown, render.Options{AccentColor: current.AccentColor})
	if err != nil {
		return err
	}
	fmt.Printf("\n=== %s ===\n%s\n", current.Title, out)
	answers := ed.PreviewAnswers()
	for _, q := range current.Questions {
		fmt.Printf("❓ %s [%s, %s]\n", q.Text, q.ID, q.Type)
		for _, opt := range q.Options {
			mark := " "
			if slices.Contains(answers[q.ID].Selected(), opt.ID) {
				mark = "x"
			}
			fmt.Printf("   [%s] %s (%s)\n", mark, opt.Text, opt.ID)
		}
	}
	return nil
}

// pageFlags legge i campi del form di una pagina
func pageFlags(fs *flag.FlagSet, in *editor.PageInput) *string {
	fs.StringVar(&in.OriginalID, "id", in.OriginalID, "id della pagina da modificare (vuoto per crearne una)")
	fs.StringVar(&in.Title, "title", in.Title, "titolo della pagina")
	fs.StringVar(&in.Markdown, "markdown", in.Markdown, "contenuto markdown")
	fs.StringVar(&in.AccentColor, "color", in.AccentColor, "colore di evidenziazione")
	return fs.String("file", "", "legge il markdown da un file")
}

func editPage(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit page")
	in := editor.PageInput{}
	if cur, ok := ed.CurrentPage(); ok {
		in = editor.PageInput{OriginalID: cur.ID, Title: cur.Title, Markdown: cur.Markdown, AccentColor: cur.AccentColor}
	}
	file := pageFlags(fs, &in)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return savePage(ctx, ed, in, *file)
}

func editNew(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit new")
	in := ed.NewPageDraft(ctx)
	file := pageFlags(fs, &in)
	if err := fs.Parse(args); err != nil {
		return err
	}
	in.OriginalID = ""
	return savePage(ctx, ed, in, *file)
}

func savePage(ctx context.Context, ed *editor.Controller, in editor.PageInput, file string) error {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		in.Markdown = string(data)
	}
	before := len(ed.Pages())
	page, err := ed.ProcessPage(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Pagina salvata: %s [%s]\n", page.Title, page.ID)
	stubs := len(ed.Pages()) - before
	if in.OriginalID == "" {
		stubs--
	}
	if stubs > 0 {
		fmt.Printf("   %d pagine segnaposto create per i link nuovi\n", stubs)
	}
	return nil
}

func editDelete(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit delete")
	id := fs.String("id", "", "id della pagina")
	yes := fs.Bool("yes", false, "conferma la cancellazione")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := ed.DeletePage(ctx, *id, *yes); err != nil {
		if errors.Is(err, story.ErrConfirmationRequired) {
			return fmt.Errorf("%w: rerun with -yes", err)
		}
		return err
	}
	fmt.Printf("🗑️  Pagina %s cancellata\n", *id)
	return nil
}

func editSelect(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit select")
	id := fs.String("id", "", "id della pagina")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := ed.SelectPage(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("✏️  Pagina corrente: %s\n", page.Title)
	return nil
}

func editStart(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit start")
	id := fs.String("id", "", "id della pagina iniziale")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := ed.SetStartPage(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("⭐ Pagina iniziale: %s\n", *id)
	return nil
}

func editFollow(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit follow")
	title := fs.String("title", "", "titolo del link")
	create := fs.Bool("create", false, "crea la pagina se non esiste")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := ed.FollowLink(ctx, *title, *create)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return fmt.Errorf("%w: rerun with -create to add it", err)
		}
		return err
	}
	fmt.Printf("✏️  Pagina corrente: %s\n", page.Title)
	return nil
}

// optionList raccoglie le opzioni ripetute "-option testo" o "-option id=testo"
type optionList []story.Option

func (o *optionList) String() string { return fmt.Sprint(len(*o)) }

func (o *optionList) Set(v string) error {
	id, text, found := strings.Cut(v, "=")
	if !found {
		id, text = "", v
	}
	*o = append(*o, story.Option{ID: strings.TrimSpace(id), Text: text})
	return nil
}

func editQuestion(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit question")
	var in editor.QuestionInput
	var opts optionList
	qtype := fs.String("type", string(story.SingleChoice), "single-choice o multiple-choice")
	fs.StringVar(&in.ID, "id", "", "id della domanda da modificare (vuoto per crearne una)")
	fs.StringVar(&in.Text, "text", "", "testo della domanda")
	fs.Var(&opts, "option", "opzione, ripetibile (\"testo\" oppure \"id=testo\")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in.Type = story.QuestionType(*qtype)
	in.Options = opts

	q, err := ed.SaveQuestion(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Domanda salvata: %s [%s] con %d opzioni\n", q.Text, q.ID, len(q.Options))
	return nil
}

func editUnquestion(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit unquestion")
	id := fs.String("id", "", "id della domanda")
	yes := fs.Bool("yes", false, "conferma la cancellazione")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := ed.DeleteQuestion(ctx, *id, *yes); err != nil {
		return err
	}
	fmt.Printf("🗑️  Domanda %s cancellata\n", *id)
	return nil
}

func editReset(ctx context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit reset")
	yes := fs.Bool("yes", false, "conferma il reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := ed.Reset(ctx, *yes); err != nil {
		return err
	}
	fmt.Println("♻️  Storia locale resettata")
	return nil
}

// editPublish salva la copia di lavoro sul backend, creando o aggiornando
func editPublish(ctx context.Context, a *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit publish")
	id := fs.Int64("id", 0, "id della storia da aggiornare (0 per crearne una)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.apiClient(true)
	if err != nil {
		return err
	}
	doc := ed.Snapshot()
	if *id > 0 {
		if err := c.UpdateStory(ctx, *id, doc); err != nil {
			return err
		}
		fmt.Printf("✅ Storia %d aggiornata: %s\n", *id, doc.Title)
		return nil
	}
	storyID, err := c.SaveStory(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Printf("✅ História salva com ID %d: %s\n", storyID, doc.Title)
	return nil
}

func editExport(_ context.Context, _ *app, ed *editor.Controller, args []string) error {
	fs := newFlags("edit export")
	out := fs.String("out", "", "file di destinazione (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return writeTwee(ed.Snapshot(), *out)
}

func writeTwee(doc story.Document, path string) error {
	if path == "" {
		return compiler.ExportTwee(doc, os.Stdout, compiler.ExportOptions{})
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := compiler.ExportTwee(doc, f, compiler.ExportOptions{}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Twee scritto in %s\n", path)
	return nil
}
