package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyoa-editor/auth"
	"cyoa-editor/store"
	"cyoa-editor/story"
)

// RegisterRequest corpo della registrazione
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest corpo del login JSON
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// register crea un nuovo utente
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user := store.User{
		Email:          strings.TrimSpace(req.Email),
		Name:           strings.TrimSpace(req.Name),
		HashedPassword: hash,
	}
	if err := s.repo.CreateUser(c.Request.Context(), &user); err != nil {
		respondError(c, err)
		return
	}

	registrationsTotal.Inc()
	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	c.JSON(http.StatusCreated, user.Public())
}

// loginJSON autentica con {"email", "password"}
func (s *Server) loginJSON(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	s.login(c, req.Email, req.Password)
}

// loginForm autentica con il form OAuth2 username/password
func (s *Server) loginForm(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		respondDetail(c, http.StatusUnprocessableEntity, "username and password are required")
		return
	}
	s.login(c, username, password)
}

func (s *Server) login(c *gin.Context, email, password string) {
	user, err := s.repo.UserByEmail(c.Request.Context(), strings.TrimSpace(email))
	if err != nil && !errors.Is(err, story.ErrNotFound) {
		respondError(c, err)
		return
	}
	if err != nil || !auth.CheckPassword(password, user.HashedPassword) {
		loginsTotal.WithLabelValues("failure").Inc()
		respondError(c, auth.ErrInvalidCredentials)
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	loginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, token)
}

// me restituisce l'utente del token
func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).Public())
}
