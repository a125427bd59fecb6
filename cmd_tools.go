package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cyoa-editor/audit"
	"cyoa-editor/compiler"
	"cyoa-editor/graph"
	"cyoa-editor/player"
	"cyoa-editor/render"
	"cyoa-editor/story"
	"cyoa-editor/watcher"
)

// loadSource legge una storia da file JSON o, se id > 0, dal backend
func (a *app) loadSource(ctx context.Context, file string, id int64) (story.Document, error) {
	switch {
	case file != "":
		return audit.LoadDocument(file)
	case id > 0:
		c, err := a.apiClient(true)
		if err != nil {
			return story.Document{}, err
		}
		return c.FetchStory(ctx, id)
	}
	return story.Document{}, errors.New("either -file or -story is required")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ============================================
// Export e compilazione
// ============================================

func runExport(ctx context.Context, a *app, args []string) error {
	fs := newFlags("export")
	file := fs.String("file", "", "storia in JSON")
	id := fs.Int64("story", 0, "id della storia sul backend")
	out := fs.String("out", "", "file .twee di destinazione (default stdout)")
	compile := fs.Bool("compile", false, "compila in HTML con tweego")
	format := fs.String("format", "", "story format tweego (es. harlowe-3)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := a.loadSource(ctx, *file, *id)
	if err != nil {
		return err
	}
	if !*compile {
		return writeTwee(doc, *out)
	}

	tw, err := compiler.NewTweegoWrapper(a.cfg.TweegoPath, a.cfg.OutputDir, a.logger)
	if err != nil {
		return err
	}
	name := story.DeriveID(doc.Title)
	if *out != "" {
		name = strings.TrimSuffix(filepath.Base(*out), filepath.Ext(*out))
	}

	fmt.Println("📦 Compilazione in corso...")
	result, err := tw.CompileDocument(ctx, doc, name, &compiler.CompileOptions{Format: *format})
	if err != nil {
		if result != nil && result.ErrorMessage != "" {
			fmt.Printf("\nDettagli errore:\n%s\n", result.ErrorMessage)
		}
		return err
	}
	fmt.Printf("✅ Compilazione completata: %s\n", result.OutputFile)
	if len(result.Warnings) > 0 {
		fmt.Printf("\n⚠️  Warning (%d):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("   - %s\n", w)
		}
	}
	return nil
}

// runImport converte un sorgente Twee 3 nel JSON del documento e
// opzionalmente lo pubblica sul backend
func runImport(ctx context.Context, a *app, args []string) error {
	fs := newFlags("import")
	out := fs.String("out", "", "file JSON di destinazione (default stdout)")
	publish := fs.Bool("publish", false, "salva la storia sul backend")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: import [options] <file.twee>")
	}

	doc, err := compiler.ImportTweeFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *publish {
		c, err := a.apiClient(true)
		if err != nil {
			return err
		}
		id, err := c.SaveStory(ctx, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✅ História salva com ID %d\n", id)
	}
	if *out == "" {
		return printJSON(doc)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "✓ %d pagine scritte in %s\n", len(doc.Pages), *out)
	return nil
}

// ============================================
// Audit e watch
// ============================================

func runAudit(ctx context.Context, a *app, args []string) error {
	fs := newFlags("audit")
	dir := fs.String("dir", ".", "cartella con le storie JSON")
	write := fs.Bool("summary", true, "scrive "+audit.SummaryFile+" nella cartella")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summary, err := audit.NewAuditor(*dir, a.logger).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("📊 %d storie: %d ok, %d con problemi (%s)\n", summary.TotalFiles, summary.Passed, summary.Failed, summary.Duration)
	for _, r := range summary.Reports {
		status := "✅"
		if !r.OK {
			status = "❌"
		}
		fmt.Printf("%s %s (%d pagine)\n", status, r.File, r.PageCount)
		for _, p := range r.Problems() {
			fmt.Printf("   - %s\n", p)
		}
		if len(r.Orphans) > 0 {
			fmt.Printf("   ℹ️  pagine irraggiungibili: %s\n", strings.Join(r.Orphans, ", "))
		}
		if len(r.DeadEnds) > 0 {
			fmt.Printf("   ℹ️  pagine senza uscita: %s\n", strings.Join(r.DeadEnds, ", "))
		}
	}

	if *write {
		path := filepath.Join(*dir, audit.SummaryFile)
		if err := audit.WriteSummary(path, summary); err != nil {
			return err
		}
		fmt.Printf("📝 Riassunto scritto in %s\n", path)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d stories failed the audit", summary.Failed)
	}
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlags("watch")
	compile := fs.Bool("compile", false, "compila con tweego ogni storia valida")
	format := fs.String("format", "", "story format tweego")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	cfg := watcher.WatcherConfig{Paths: paths, Logger: a.logger}
	if *compile {
		tw, err := compiler.NewTweegoWrapper(a.cfg.TweegoPath, a.cfg.OutputDir, a.logger)
		if err != nil {
			return err
		}
		cfg.Compiler = tw
		cfg.CompileOpts = &compiler.CompileOptions{Format: *format}
	}

	fw, err := watcher.NewFileWatcher(cfg)
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		return err
	}
	defer fw.Stop()
	fmt.Printf("👀 In ascolto su %s (Ctrl+C per uscire)\n", strings.Join(paths, ", "))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}
			printWatchEvent(ev)
		}
	}
}

func printWatchEvent(ev watcher.WatchEvent) {
	icon := "•"
	switch ev.Type {
	case watcher.EventReloaded, watcher.EventCompileSuccess:
		icon = "✅"
	case watcher.EventValidationError, watcher.EventCompileError:
		icon = "❌"
	case watcher.EventDeleted:
		icon = "🗑️ "
	}
	fmt.Printf("%s %s %s %s\n", ev.Timestamp.Format("15:04:05"), icon, ev.Type, ev.Path)
	for _, e := range ev.Errors {
		fmt.Printf("   - %s\n", e)
	}
}

// ============================================
// Grafo, rendering, simulatore
// ============================================

func runGraph(ctx context.Context, a *app, args []string) error {
	fs := newFlags("graph")
	file := fs.String("file", "", "storia in JSON")
	id := fs.Int64("story", 0, "id della storia sul backend")
	if err := fs.Parse(args); err != nil {
		return err
	}
	doc, err := a.loadSource(ctx, *file, *id)
	if err != nil {
		return err
	}
	return printJSON(graph.Build(doc.Pages))
}

func runRender(_ context.Context, _ *app, args []string) error {
	fs := newFlags("render")
	format := fs.String("format", "ansi", "formato: "+strings.Join(render.Available(), ", "))
	accent := fs.String("color", story.DefaultAccentColor, "colore dei link interni")
	width := fs.Int("width", 80, "larghezza del testo (ansi)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: render [options] <file.md>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fs.Arg(0), err)
	}
	r, err := render.Get(*format)
	if err != nil {
		return err
	}
	out, err := r.Render(string(data), render.Options{AccentColor: *accent, Width: *width})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// runSimulate valida (-path), simula (-path -steps) o suggerisce percorsi
func runSimulate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("simulate")
	file := fs.String("file", "", "storia in JSON")
	id := fs.Int64("story", 0, "id della storia sul backend")
	path := fs.String("path", "", "titoli separati da '>' (es. \"Inizio>Bosco>Fine\")")
	steps := fs.Bool("steps", false, "mostra il dettaglio di ogni passo")
	depth := fs.Int("depth", 5, "profondità massima dei percorsi suggeriti")
	if err := fs.Parse(args); err != nil {
		return err
	}
	doc, err := a.loadSource(ctx, *file, *id)
	if err != nil {
		return err
	}
	sim := player.NewPathSimulator(doc)

	if *path == "" {
		start := ""
		if p, ok := doc.StartPage(); ok {
			start = p.Title
		}
		paths := sim.SuggestPaths(start, *depth)
		fmt.Printf("🧭 %d percorsi da %q\n", len(paths), start)
		for _, p := range paths {
			fmt.Printf("   %s\n", strings.Join(p, " → "))
		}
		return nil
	}

	titles := strings.Split(*path, ">")
	for i := range titles {
		titles[i] = strings.TrimSpace(titles[i])
	}
	if *steps {
		return printJSON(sim.SimulatePath(titles))
	}
	if errs := sim.ValidatePath(titles); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("❌ %s\n", e)
		}
		return errors.New("invalid path")
	}
	fmt.Println("✅ Percorso valido")
	return nil
}
