package api

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"cyoa-editor/compiler"
	"cyoa-editor/graph"
	"cyoa-editor/player"
	"cyoa-editor/render"
	"cyoa-editor/story"
	"cyoa-editor/watcher"
)

// DocumentRequest indica una storia salvata (story_id) oppure pagine inline
type DocumentRequest struct {
	StoryID     int64        `json:"story_id"`
	Pages       []story.Page `json:"pages"`
	StartPageID string       `json:"start_page_id"`
}

// document risolve la storia della richiesta
func (s *Server) document(c *gin.Context, req DocumentRequest) (story.Document, bool) {
	if req.StoryID > 0 {
		st, err := s.repo.GetStory(c.Request.Context(), req.StoryID)
		if err != nil {
			if errors.Is(err, story.ErrNotFound) {
				respondDetail(c, http.StatusNotFound, detailStoryNotFound)
			} else {
				respondError(c, err)
			}
			return story.Document{}, false
		}
		return st.Stored().Document(), true
	}
	if len(req.Pages) == 0 {
		respondDetail(c, http.StatusUnprocessableEntity, "story_id or pages is required")
		return story.Document{}, false
	}
	payload := story.StoryPayload{StoryTitle: story.DefaultStoryTitle, Pages: req.Pages, StartPageClientID: req.StartPageID}
	return payload.Document(), true
}

// ============================================
// Grafo e rendering
// ============================================

// GraphRequest pagine da trasformare in grafo
type GraphRequest struct {
	Pages []story.Page `json:"pages"`
}

// buildGraph restituisce nodi e archi delle pagine
func (s *Server) buildGraph(c *gin.Context) {
	var req GraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, graph.Build(req.Pages))
}

// RenderRequest markdown da convertire
type RenderRequest struct {
	Markdown    string `json:"markdown"`
	AccentColor string `json:"accent_color"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
}

// renderMarkdown converte il markdown nel formato richiesto (default html)
func (s *Server) renderMarkdown(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Format == "" {
		req.Format = "html"
	}
	r, err := render.Get(req.Format)
	if err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := r.Render(req.Markdown, render.Options{AccentColor: req.AccentColor, Width: req.Width})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"format": r.Name(),
		"output": out,
		"links":  story.Links(req.Markdown),
	})
}

// ============================================
// Simulatore
// ============================================

// PathRequest percorso di titoli da controllare
type PathRequest struct {
	DocumentRequest
	Path []string `json:"path" binding:"required"`
}

// validatePath controlla che ogni passo segua un link della pagina precedente
func (s *Server) validatePath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	doc, ok := s.document(c, req.DocumentRequest)
	if !ok {
		return
	}

	errs := player.NewPathSimulator(doc).ValidatePath(req.Path)
	c.JSON(http.StatusOK, gin.H{
		"valid":  len(errs) == 0,
		"path":   req.Path,
		"errors": errs,
	})
}

// simulatePath percorre il cammino riportando domande e avvisi per passo
func (s *Server) simulatePath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	doc, ok := s.document(c, req.DocumentRequest)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, player.NewPathSimulator(doc).SimulatePath(req.Path))
}

// SuggestRequest richiesta di suggerimento percorsi
type SuggestRequest struct {
	DocumentRequest
	Start    string `json:"start"`
	MaxDepth int    `json:"max_depth"`
}

// suggestPaths propone percorsi a partire da una pagina (default la pagina iniziale)
func (s *Server) suggestPaths(c *gin.Context) {
	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	doc, ok := s.document(c, req.DocumentRequest)
	if !ok {
		return
	}
	if req.MaxDepth <= 0 || req.MaxDepth > 10 {
		req.MaxDepth = 5
	}
	if req.Start == "" {
		if p, ok := doc.StartPage(); ok {
			req.Start = p.Title
		}
	}

	paths := player.NewPathSimulator(doc).SuggestPaths(req.Start, req.MaxDepth)
	c.JSON(http.StatusOK, gin.H{
		"start":     req.Start,
		"max_depth": req.MaxDepth,
		"paths":     paths,
		"count":     len(paths),
	})
}

// ============================================
// Watcher
// ============================================

// StartWatcherRequest richiesta avvio watcher
type StartWatcherRequest struct {
	Paths   []string `json:"paths" binding:"required,min=1"`
	Compile bool     `json:"compile"`
	Format  string   `json:"format"`
}

// startWatcher avvia il watcher e ne inoltra gli eventi ai client websocket
func (s *Server) startWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher != nil && s.watcher.IsRunning() {
		respondDetail(c, http.StatusConflict, "watcher already running")
		return
	}

	var req StartWatcherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cfg := watcher.WatcherConfig{Paths: req.Paths, Logger: s.logger}
	if req.Compile {
		if s.compiler == nil {
			respondDetail(c, http.StatusServiceUnavailable, "tweego is not available on this server")
			return
		}
		cfg.Compiler = s.compiler
		cfg.CompileOpts = &compiler.CompileOptions{Format: req.Format}
	}

	fw, err := watcher.NewFileWatcher(cfg)
	if err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := fw.Start(); err != nil {
		respondError(c, err)
		return
	}
	s.watcher = fw
	go s.broadcastWatcherEvents(fw)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher started",
		"paths":   req.Paths,
	})
}

// stopWatcher ferma il watcher
func (s *Server) stopWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher == nil || !s.watcher.IsRunning() {
		respondDetail(c, http.StatusConflict, "watcher not running")
		return
	}
	if err := s.watcher.Stop(); err != nil {
		respondError(c, err)
		return
	}
	s.watcher = nil

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher stopped",
	})
}

// getWatcherStatus stato del watcher
func (s *Server) getWatcherStatus(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	running := s.watcher != nil && s.watcher.IsRunning()
	paths := []string{}
	if running {
		paths = s.watcher.Paths()
	}
	c.JSON(http.StatusOK, gin.H{
		"running": running,
		"paths":   paths,
	})
}

// broadcastWatcherEvents inoltra gli eventi finché il watcher non viene fermato
func (s *Server) broadcastWatcherEvents(fw *watcher.FileWatcher) {
	for event := range fw.Events() {
		s.hub.Broadcast("watch_"+event.Type, gin.H{
			"path":      filepath.Base(event.Path),
			"full_path": event.Path,
			"errors":    event.Errors,
			"timestamp": event.Timestamp,
		})
	}
}
