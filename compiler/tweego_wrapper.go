// Package compiler esporta le storie in Twee 3 e le compila con Tweego
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"cyoa-editor/story"
)

// ErrTweegoNotFound tweego non è installato
var ErrTweegoNotFound = errors.New("tweego not found in PATH, install it from https://www.motoslave.net/tweego/")

// TweegoWrapper gestisce l'integrazione con Tweego (eseguibile esterno)
type TweegoWrapper struct {
	tweegoPath string
	workDir    string
	logger     *zap.Logger
}

// CompileOptions opzioni per la compilazione
type CompileOptions struct {
	Format         string   // story format Tweego (es: "harlowe-3")
	Output         string   // file HTML di output (default: "<nome>.html")
	StartNode      string   // passaggio iniziale
	StrictMode     bool     // i warning diventano errori
	AdditionalArgs []string // argomenti extra per Tweego
}

// CompileResult risultato della compilazione
type CompileResult struct {
	Success      bool     `json:"success"`
	Output       string   `json:"output,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	OutputFile   string   `json:"output_file,omitempty"`
}

// NewTweegoWrapper crea il wrapper. tweegoPath vuoto o senza separatori
// viene cercato nel PATH; workDir viene creata se non esiste.
func NewTweegoWrapper(tweegoPath, workDir string, logger *zap.Logger) (*TweegoWrapper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tweegoPath == "" {
		tweegoPath = "tweego"
	}
	path, err := exec.LookPath(tweegoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTweegoNotFound, err)
	}

	if workDir != "" {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}

	return &TweegoWrapper{
		tweegoPath: path,
		workDir:    workDir,
		logger:     logger.Named("tweego"),
	}, nil
}

// CompileDocument esporta la storia in <workDir>/<id>.twee e la compila
func (tw *TweegoWrapper) CompileDocument(ctx context.Context, doc story.Document, name string, opts *CompileOptions) (*CompileResult, error) {
	if err := doc.Validate(); err != nil {
		return &CompileResult{ErrorMessage: err.Error()}, err
	}
	if name == "" {
		name = story.DeriveID(doc.Title)
	}
	tweeFile := filepath.Join(tw.workDir, name+".twee")

	f, err := os.Create(tweeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tweeFile, err)
	}
	exportErr := ExportTwee(doc, f, ExportOptions{})
	if closeErr := f.Close(); exportErr == nil {
		exportErr = closeErr
	}
	if exportErr != nil {
		return nil, fmt.Errorf("failed to export %s: %w", tweeFile, exportErr)
	}

	if opts == nil {
		opts = &CompileOptions{}
	}
	if opts.Output == "" {
		opts.Output = name + ".html"
	}
	return tw.Compile(ctx, tweeFile, opts)
}

// Compile compila un file .twee in HTML
func (tw *TweegoWrapper) Compile(ctx context.Context, inputFile string, opts *CompileOptions) (*CompileResult, error) {
	result := &CompileResult{}

	if opts == nil {
		opts = &CompileOptions{}
	}
	if err := tw.validateBeforeCompile(ctx, inputFile, opts); err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}

	outputPath := opts.Output
	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile)) + ".html"
	}
	if !filepath.IsAbs(outputPath) && tw.workDir != "" {
		outputPath = filepath.Join(tw.workDir, outputPath)
	}

	args := []string{"-o", outputPath}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.StartNode != "" {
		args = append(args, "-s", opts.StartNode)
	}
	if opts.StrictMode {
		args = append(args, "--strict")
	}
	args = append(args, opts.AdditionalArgs...)
	args = append(args, inputFile) // sempre per ultimo

	cmd := exec.CommandContext(ctx, tw.tweegoPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Output = stdout.String()
	result.Warnings, result.ErrorMessage = splitDiagnostics(stderr.String())

	if err != nil {
		if result.ErrorMessage == "" {
			result.ErrorMessage = strings.TrimSpace(fmt.Sprintf("tweego: %v\n%s", err, stderr.String()))
		}
		tw.logger.Warn("❌ Compilation failed",
			zap.String("input", filepath.Base(inputFile)),
			zap.Error(err),
		)
		return result, fmt.Errorf("compilation failed: %w", err)
	}

	result.Success = true
	result.OutputFile = outputPath
	tw.logger.Info("✅ Compiled",
		zap.String("input", filepath.Base(inputFile)),
		zap.String("output", outputPath),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// splitDiagnostics separa warning ed errori dallo stderr di tweego
func splitDiagnostics(stderr string) (warnings []string, errMsg string) {
	var errs []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case line == "":
		case strings.Contains(lower, "warning"):
			warnings = append(warnings, line)
		case strings.Contains(lower, "error"):
			errs = append(errs, line)
		}
	}
	return warnings, strings.Join(errs, "\n")
}

// GetVersion ritorna la versione di Tweego installata
func (tw *TweegoWrapper) GetVersion(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, tw.tweegoPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get tweego version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ListFormats elenca i formati disponibili in Tweego
func (tw *TweegoWrapper) ListFormats(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, tw.tweegoPath, "--list-formats")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// tweego scrive l'elenco su stderr e può uscire con codice non zero
	_ = cmd.Run()
	output := stderr.String()
	if output == "" {
		output = stdout.String()
	}
	if output == "" {
		return nil, errors.New("no output from tweego --list-formats")
	}
	return parseFormats(output), nil
}

func parseFormats(output string) []string {
	formats := []string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.HasPrefix(line, "Available formats:") ||
			strings.HasPrefix(line, "Story formats:") ||
			strings.HasPrefix(line, "ID") ||
			strings.HasPrefix(line, "---") {
			continue
		}
		formats = append(formats, strings.Fields(line)[0])
	}
	return formats
}

// validateBeforeCompile controlla file e formato prima di lanciare tweego
func (tw *TweegoWrapper) validateBeforeCompile(ctx context.Context, inputFile string, opts *CompileOptions) error {
	if !strings.HasSuffix(strings.ToLower(inputFile), ".twee") {
		return &story.ValidationError{Field: "input", Message: "file must have a .twee extension"}
	}
	info, err := os.Stat(inputFile)
	if err != nil {
		return fmt.Errorf("input file unavailable: %w", err)
	}
	if info.Size() == 0 {
		return &story.ValidationError{Field: "input", Message: "input file is empty"}
	}

	if opts.Format != "" {
		formats, err := tw.ListFormats(ctx)
		if err != nil {
			return fmt.Errorf("failed to check story format: %w", err)
		}
		if !slices.Contains(formats, opts.Format) {
			return &story.ValidationError{
				Field:   "format",
				Message: fmt.Sprintf("unknown format %q, available: %v", opts.Format, formats),
			}
		}
	}
	return nil
}
