package story

import (
	"errors"
	"fmt"
)

// Tassonomia degli errori condivisa da editor, player e gateway
var (
	ErrValidation     = errors.New("validation error")
	ErrCollision      = errors.New("collision error")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication error")
	ErrNetwork        = errors.New("network error")
	ErrServer         = errors.New("server error")

	ErrConfirmationRequired = fmt.Errorf("%w: confirmation required", ErrValidation)
	ErrUnansweredQuestions  = fmt.Errorf("%w: answer every question on this page first", ErrValidation)
)

// ValidationError campo obbligatorio vuoto o non valido
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CollisionError id derivato già usato da un'altra pagina
type CollisionError struct {
	Title string
	ID    string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("a page titled %q (id %q) already exists", e.Title, e.ID)
}

func (e *CollisionError) Unwrap() error { return ErrCollision }

// NotFoundError pagina, domanda o risorsa remota mancante
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ServerError risposta non 2xx del backend
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.Status, e.Detail)
}

func (e *ServerError) Unwrap() error { return ErrServer }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
