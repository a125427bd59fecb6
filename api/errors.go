package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cyoa-editor/auth"
	"cyoa-editor/store"
	"cyoa-editor/story"
)

// Messaggi mostrati dal frontend
const (
	detailCredentials   = "Não foi possível validar as credenciais"
	detailLoginFailed   = "Email ou senha incorretos"
	detailEmailTaken    = "Email já registrado."
	detailStoryNotFound = "História não encontrada"
	detailInternal      = "Ocorreu um erro interno"
)

// statusFor traduce un errore di dominio nel codice HTTP e nel messaggio
func statusFor(err error) (int, string) {
	var validation *story.ValidationError
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusBadRequest, detailEmailTaken
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, detailLoginFailed
	case errors.Is(err, story.ErrAuthentication):
		return http.StatusUnauthorized, detailCredentials
	case errors.As(err, &validation), errors.Is(err, story.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, story.ErrCollision):
		return http.StatusConflict, err.Error()
	case errors.Is(err, story.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, detailInternal
	}
}

// respondError scrive {"detail": ...}; gli errori 5xx finiscono nel log della richiesta
func respondError(c *gin.Context, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.JSON(status, gin.H{"detail": detail})
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}

// respondDetail risponde con un messaggio esplicito
func respondDetail(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}

// bindError risponde 422 a un corpo non valido
func bindError(c *gin.Context, err error) {
	respondDetail(c, http.StatusUnprocessableEntity, err.Error())
}
