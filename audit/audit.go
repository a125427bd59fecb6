// Package audit controlla in blocco una cartella di storie JSON: link rotti,
// pagine irraggiungibili, vicoli ciechi e domande non valide.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"cyoa-editor/graph"
	"cyoa-editor/story"
)

// SummaryFile nome del riassunto scritto nella cartella controllata
const SummaryFile = "audit_summary.json"

// BrokenLink link verso una pagina inesistente
type BrokenLink struct {
	Page    string `json:"page"`
	Target  string `json:"target"`
	Deleted bool   `json:"deleted,omitempty"` // link marcato come pagina cancellata
}

// Report esito del controllo di una storia
type Report struct {
	File             string       `json:"file"`
	Title            string       `json:"title"`
	PageCount        int          `json:"page_count"`
	Errors           []string     `json:"errors,omitempty"`
	BrokenLinks      []BrokenLink `json:"broken_links,omitempty"`
	Orphans          []string     `json:"orphans,omitempty"`
	DeadEnds         []string     `json:"dead_ends,omitempty"`
	InvalidQuestions []string     `json:"invalid_questions,omitempty"`
	OK               bool         `json:"ok"`
}

// Problems restituisce errori, link rotti e domande non valide come testo.
// Orfani e vicoli ciechi sono solo informativi e non compaiono.
func (r *Report) Problems() []string {
	out := append([]string{}, r.Errors...)
	for _, l := range r.BrokenLinks {
		out = append(out, fmt.Sprintf("broken link on %q to %q", l.Page, l.Target))
	}
	return append(out, r.InvalidQuestions...)
}

// Summary riassunto di un'esecuzione
type Summary struct {
	Dir        string    `json:"dir"`
	AuditedAt  time.Time `json:"audited_at"`
	TotalFiles int       `json:"total_files"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Duration   string    `json:"duration"`
	Reports    []Report  `json:"reports"`
}

// storyFile accetta sia il formato del documento sia quello del backend
type storyFile struct {
	Title             string       `json:"title"`
	StartPageID       string       `json:"startPageId"`
	Pages             []story.Page `json:"pages"`
	StoryTitle        string       `json:"story_title"`
	StartPageClientID string       `json:"start_page_client_id"`
}

// DecodeDocument legge una storia JSON. Un puntatore di partenza assente
// ricade sulla prima pagina; uno non valido resta tale e viene segnalato.
func DecodeDocument(data []byte) (story.Document, error) {
	var f storyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return story.Document{}, &story.ValidationError{Field: "file", Message: err.Error()}
	}
	doc := story.Document{Title: f.Title, StartPageID: f.StartPageID, Pages: f.Pages}
	if doc.Title == "" {
		doc.Title = f.StoryTitle
	}
	if doc.StartPageID == "" {
		doc.StartPageID = f.StartPageClientID
	}
	if doc.StartPageID == "" && len(doc.Pages) > 0 {
		doc.StartPageID = doc.Pages[0].ID
	}
	for i := range doc.Pages {
		if doc.Pages[i].Questions == nil {
			doc.Pages[i].Questions = []story.Question{}
		}
	}
	return doc, nil
}

// LoadDocument legge una storia da file
func LoadDocument(path string) (story.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return story.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return story.Document{}, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// CheckDocument esegue tutti i controlli su una storia
func CheckDocument(doc story.Document) Report {
	r := Report{Title: doc.Title, PageCount: len(doc.Pages)}
	if err := doc.Validate(); err != nil {
		r.Errors = append(r.Errors, err.Error())
	}

	for _, p := range doc.Pages {
		for link := range story.ExtractLinks(p.Markdown) {
			if _, ok := doc.PageByTitle(link); !ok {
				r.BrokenLinks = append(r.BrokenLinks, BrokenLink{
					Page:    p.Title,
					Target:  link,
					Deleted: story.IsDeletedMarker(link),
				})
			}
		}
		for _, q := range p.Questions {
			if err := story.ValidateQuestion(q); err != nil {
				r.InvalidQuestions = append(r.InvalidQuestions, fmt.Sprintf("%s/%s: %v", p.Title, q.ID, err))
			}
		}
	}

	g := graph.Build(doc.Pages)
	outbound := g.Outbound()
	var reachable map[string]bool
	if start, ok := doc.StartPage(); ok {
		reachable = g.Reachable(start.ID)
	}
	for _, p := range doc.Pages {
		if !reachable[p.ID] {
			r.Orphans = append(r.Orphans, p.Title)
		}
		if len(outbound[p.ID]) == 0 {
			r.DeadEnds = append(r.DeadEnds, p.Title)
		}
	}

	r.OK = len(r.Errors) == 0 && len(r.BrokenLinks) == 0 && len(r.InvalidQuestions) == 0
	return r
}

// Auditor controlla tutte le storie di una cartella
type Auditor struct {
	dir    string
	logger *zap.Logger
}

// NewAuditor crea un auditor per dir
func NewAuditor(dir string, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{dir: dir, logger: logger.Named("audit")}
}

// Run controlla ogni file *.json sotto la cartella
func (a *Auditor) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()

	files, err := a.findStoryFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &story.NotFoundError{Kind: "story files in", Key: a.dir}
	}

	summary := &Summary{Dir: a.dir, AuditedAt: startTime.UTC(), TotalFiles: len(files), Reports: []Report{}}
	a.logger.Info("📁 Auditing stories", zap.String("dir", a.dir), zap.Int("files", len(files)))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(a.dir, path)

		doc, err := LoadDocument(path)
		var report Report
		if err != nil {
			report = Report{Errors: []string{err.Error()}}
		} else {
			report = CheckDocument(doc)
		}
		report.File = rel

		if report.OK {
			summary.Passed++
			a.logger.Info("✅ Story OK",
				zap.String("file", rel),
				zap.Int("pages", report.PageCount),
				zap.Int("orphans", len(report.Orphans)),
				zap.Int("dead_ends", len(report.DeadEnds)),
			)
		} else {
			summary.Failed++
			a.logger.Warn("❌ Story has problems",
				zap.String("file", rel),
				zap.Strings("problems", report.Problems()),
			)
		}
		summary.Reports = append(summary.Reports, report)
	}

	summary.Duration = time.Since(startTime).String()
	return summary, nil
}

// findStoryFiles trova i *.json escluso il riassunto
func (a *Auditor) findStoryFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != a.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsStoryFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", a.dir, err)
	}
	return files, nil
}

// IsStoryFile dice se il path è un file di storia da controllare
func IsStoryFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(strings.ToLower(name), ".json") && name != SummaryFile
}

// WriteSummary salva il riassunto come JSON indentato
func WriteSummary(path string, summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
