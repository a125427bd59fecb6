// Package api espone il backend delle storie: utenti, storie, partite e gli
// strumenti dell'editor (grafo, rendering, simulatore, export, watcher).
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cyoa-editor/auth"
	"cyoa-editor/compiler"
	"cyoa-editor/store"
	"cyoa-editor/watcher"
)

// Version versione dell'API
const Version = "1.0.0"

// Server rappresenta il server API
type Server struct {
	router   *gin.Engine
	repo     store.Repository
	tokens   *auth.TokenIssuer
	compiler *compiler.TweegoWrapper
	hub      *Hub
	logger   *zap.Logger
	addr     string

	watcherMutex sync.Mutex
	watcher      *watcher.FileWatcher
}

// ServerConfig configurazione del server
type ServerConfig struct {
	Addr           string
	Repo           store.Repository
	Tokens         *auth.TokenIssuer
	Compiler       *compiler.TweegoWrapper // opzionale, senza tweego la compilazione è disattivata
	AllowedOrigins []string
	Debug          bool
	Logger         *zap.Logger
}

// NewServer crea un nuovo server API
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Repo == nil {
		return nil, errors.New("api: repository is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("api: token issuer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ZapLoggingMiddleware(cfg.Logger.Named("http")))

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.Config{
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if slices.Contains(cfg.AllowedOrigins, "*") {
			corsCfg.AllowAllOrigins = true
			corsCfg.AllowCredentials = false
		} else {
			corsCfg.AllowOrigins = cfg.AllowedOrigins
		}
		router.Use(cors.New(corsCfg))
	}

	s := &Server{
		router:   router,
		repo:     cfg.Repo,
		tokens:   cfg.Tokens,
		compiler: cfg.Compiler,
		logger:   cfg.Logger.Named("api"),
		addr:     cfg.Addr,
	}
	s.hub = NewHub(originChecker(cfg.AllowedOrigins), s.logger)
	s.setupRoutes()
	return s, nil
}

// setupRoutes configura tutti gli endpoint
func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.AuthMiddleware(true), s.handleWebSocket)

	api := s.router.Group("/api")
	api.GET("/health", s.healthCheck)

	users := api.Group("/users")
	{
		users.POST("/register", s.register)
		users.POST("/login", s.loginJSON)
		users.POST("/login/token", s.loginForm)
		users.GET("/me", s.AuthMiddleware(false), s.me)
	}

	protected := api.Group("", s.AuthMiddleware(false))
	{
		protected.POST("/stories", s.createStory)
		protected.GET("/stories", s.listStories)
		protected.GET("/stories/:id", s.getStory)
		protected.PUT("/stories/:id", s.updateStory)
		protected.DELETE("/stories/:id", s.deleteStory)
		protected.GET("/stories/:id/twee", s.exportTwee)
		protected.POST("/stories/:id/compile", s.compileStory)

		protected.POST("/story-executions", s.createExecution)
		protected.GET("/story-executions/dashboard/my-results", s.creatorResults)

		// strumenti dell'editor
		protected.POST("/graph", s.buildGraph)
		protected.POST("/render", s.renderMarkdown)
		protected.POST("/simulator/validate", s.validatePath)
		protected.POST("/simulator/simulate", s.simulatePath)
		protected.POST("/simulator/suggest", s.suggestPaths)

		protected.POST("/watch/start", s.startWatcher)
		protected.POST("/watch/stop", s.stopWatcher)
		protected.GET("/watch/status", s.getWatcherStatus)
	}
}

// Handler restituisce l'handler HTTP, usato anche dai test
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub restituisce l'hub websocket
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start avvia il server e lo ferma con grazia quando ctx termina
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🚀 Server started", zap.String("addr", s.addr))
		s.logger.Info("🔌 WebSocket available", zap.String("path", "/ws"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("🛑 Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.watcherMutex.Lock()
	if s.watcher != nil && s.watcher.IsRunning() {
		_ = s.watcher.Stop()
	}
	s.watcherMutex.Unlock()
	s.hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// healthCheck verifica lo stato del server
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
	})
}

// originChecker accetta richieste senza Origin o con un'origine permessa
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// upgrader è separato per poter essere riusato dall'hub
func newUpgrader(check func(r *http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     check,
	}
}
