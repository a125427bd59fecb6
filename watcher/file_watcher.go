// Package watcher osserva i file di storia JSON e li ricontrolla a ogni modifica
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"cyoa-editor/audit"
	"cyoa-editor/compiler"
	"cyoa-editor/story"
)

// Tipi di evento
const (
	EventCreated         = "created"
	EventModified        = "modified"
	EventDeleted         = "deleted"
	EventRenamed         = "renamed"
	EventValidationError = "validation_error"
	EventReloaded        = "reloaded"
	EventCompileSuccess  = "compile_success"
	EventCompileError    = "compile_error"
)

// ErrNotRunning il watcher non è attivo
var ErrNotRunning = errors.New("watcher not running")

// WatchEvent rappresenta un evento del watcher
type WatchEvent struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Errors    []string  `json:"errors,omitempty"`
}

// WatcherConfig configurazione per il watcher
type WatcherConfig struct {
	Paths        []string                      // file o cartelle da monitorare
	DebounceTime time.Duration                 // default 500ms
	OnReload     func(string, story.Document) // chiamata per ogni storia ricaricata senza problemi
	Compiler     *compiler.TweegoWrapper       // se presente compila le storie valide
	CompileOpts  *compiler.CompileOptions
	Logger       *zap.Logger
}

// FileWatcher monitora i cambiamenti delle storie
type FileWatcher struct {
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	onReload     func(string, story.Document)
	compiler     *compiler.TweegoWrapper
	compileOpts  *compiler.CompileOptions
	logger       *zap.Logger

	eventChan chan WatchEvent
	stopChan  chan struct{}
	done      chan struct{}

	mu           sync.Mutex
	watchedPaths []string
	timers       map[string]*time.Timer
	running      bool
	closed       bool
}

// NewFileWatcher crea il watcher e registra i path
func NewFileWatcher(cfg WatcherConfig) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if cfg.DebounceTime <= 0 {
		cfg.DebounceTime = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	fw := &FileWatcher{
		watcher:      w,
		debounceTime: cfg.DebounceTime,
		onReload:     cfg.OnReload,
		compiler:     cfg.Compiler,
		compileOpts:  cfg.CompileOpts,
		logger:       cfg.Logger.Named("watcher"),
		eventChan:    make(chan WatchEvent, 100),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		timers:       make(map[string]*time.Timer),
	}

	for _, path := range cfg.Paths {
		if err := fw.AddPath(path); err != nil {
			w.Close()
			return nil, err
		}
	}
	return fw, nil
}

// Start avvia il ciclo degli eventi
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return errors.New("watcher already running")
	}
	if fw.closed {
		return errors.New("watcher closed")
	}
	fw.running = true
	fw.logger.Info("🚀 File watcher started", zap.Strings("paths", fw.watchedPaths))

	go fw.loop()
	return nil
}

func (fw *FileWatcher) loop() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("❌ Watcher error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

// handle traduce l'evento fsnotify e pianifica il ricontrollo
func (fw *FileWatcher) handle(event fsnotify.Event) {
	if !audit.IsStoryFile(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreated
	case event.Has(fsnotify.Write):
		eventType = EventModified
	case event.Has(fsnotify.Remove):
		eventType = EventDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventRenamed
	default:
		return
	}

	fw.logger.Debug("📝 File event", zap.String("type", eventType), zap.String("file", filepath.Base(event.Name)))
	fw.emit(WatchEvent{Type: eventType, Path: event.Name, Timestamp: time.Now()})

	if eventType != EventCreated && eventType != EventModified {
		return
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if timer, exists := fw.timers[event.Name]; exists {
		timer.Stop()
	}
	path := event.Name
	fw.timers[path] = time.AfterFunc(fw.debounceTime, func() {
		fw.mu.Lock()
		delete(fw.timers, path)
		running := fw.running
		fw.mu.Unlock()
		if running {
			fw.reload(path)
		}
	})
}

// reload ricarica e ricontrolla una storia
func (fw *FileWatcher) reload(path string) {
	doc, err := audit.LoadDocument(path)
	if err != nil {
		fw.logger.Warn("❌ Reload failed", zap.String("file", filepath.Base(path)), zap.Error(err))
		fw.emit(WatchEvent{Type: EventValidationError, Path: path, Timestamp: time.Now(), Errors: []string{err.Error()}})
		return
	}

	report := audit.CheckDocument(doc)
	if !report.OK {
		problems := report.Problems()
		fw.logger.Warn("❌ Validation failed", zap.String("file", filepath.Base(path)), zap.Strings("problems", problems))
		fw.emit(WatchEvent{Type: EventValidationError, Path: path, Timestamp: time.Now(), Errors: problems})
		return
	}

	for _, orphan := range report.Orphans {
		fw.logger.Info("⚠️  Unreachable page", zap.String("file", filepath.Base(path)), zap.String("page", orphan))
	}
	fw.logger.Info("🔄 Story reloaded", zap.String("file", filepath.Base(path)), zap.Int("pages", report.PageCount))
	fw.emit(WatchEvent{Type: EventReloaded, Path: path, Timestamp: time.Now()})

	if fw.onReload != nil {
		fw.onReload(path, doc)
	}
	if fw.compiler != nil {
		fw.compile(path, doc)
	}
}

func (fw *FileWatcher) compile(path string, doc story.Document) {
	var opts compiler.CompileOptions
	if fw.compileOpts != nil {
		opts = *fw.compileOpts
	}
	name := trimExt(filepath.Base(path))

	start := time.Now()
	result, err := fw.compiler.CompileDocument(context.Background(), doc, name, &opts)
	if err != nil {
		var msgs []string
		if result != nil && result.ErrorMessage != "" {
			msgs = append(msgs, result.ErrorMessage)
		} else {
			msgs = append(msgs, err.Error())
		}
		fw.emit(WatchEvent{Type: EventCompileError, Path: path, Timestamp: time.Now(), Errors: msgs})
		return
	}
	fw.logger.Info("✅ Compiled", zap.String("output", result.OutputFile), zap.Duration("elapsed", time.Since(start)))
	fw.emit(WatchEvent{Type: EventCompileSuccess, Path: path, Timestamp: time.Now()})
}

// emit non blocca: se nessuno legge gli eventi vengono scartati
func (fw *FileWatcher) emit(ev WatchEvent) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.closed {
		return
	}
	select {
	case fw.eventChan <- ev:
	default:
		fw.logger.Warn("Event dropped, channel full", zap.String("type", ev.Type), zap.String("path", ev.Path))
	}
}

// Stop ferma il watcher e chiude il canale degli eventi
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return ErrNotRunning
	}
	fw.running = false
	for path, timer := range fw.timers {
		timer.Stop()
		delete(fw.timers, path)
	}
	fw.mu.Unlock()

	close(fw.stopChan)
	<-fw.done
	closeErr := fw.watcher.Close()

	fw.mu.Lock()
	fw.closed = true
	close(fw.eventChan)
	fw.mu.Unlock()

	if closeErr != nil {
		return fmt.Errorf("failed to close watcher: %w", closeErr)
	}
	fw.logger.Info("🛑 File watcher stopped")
	return nil
}

// Events restituisce il canale degli eventi
func (fw *FileWatcher) Events() <-chan WatchEvent {
	return fw.eventChan
}

// IsRunning verifica se il watcher è attivo
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// Paths restituisce i path monitorati
func (fw *FileWatcher) Paths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.watchedPaths...)
}

// AddPath aggiunge un path da monitorare
func (fw *FileWatcher) AddPath(path string) error {
	if err := fw.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	fw.mu.Lock()
	fw.watchedPaths = append(fw.watchedPaths, path)
	fw.mu.Unlock()
	fw.logger.Info("👀 Watching", zap.String("path", path))
	return nil
}

// RemovePath rimuove un path dal monitoraggio
func (fw *FileWatcher) RemovePath(path string) error {
	if err := fw.watcher.Remove(path); err != nil {
		return fmt.Errorf("failed to unwatch %s: %w", path, err)
	}
	fw.mu.Lock()
	for i, p := range fw.watchedPaths {
		if p == path {
			fw.watchedPaths = append(fw.watchedPaths[:i], fw.watchedPaths[i+1:]...)
			break
		}
	}
	fw.mu.Unlock()
	fw.logger.Info("👁️  Stopped watching", zap.String("path", path))
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
