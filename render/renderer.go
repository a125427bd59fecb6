// Package render converte il markdown delle pagine nei formati di output
package render

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Options parametri di rendering di una pagina
type Options struct {
	AccentColor string // colore dei link interni
	Width       int    // larghezza di riga per i renderer da terminale
}

// Renderer converte markdown con link [[Titolo]] in un formato di output
type Renderer interface {
	// Name restituisce il nome del formato
	Name() string

	// Render converte il markdown
	Render(markdown string, opts Options) (string, error)
}

var (
	registry     = make(map[string]func() Renderer)
	registryLock sync.RWMutex
)

// Register registra un renderer. Chiamato dagli init() dei singoli formati.
func Register(name string, factory func() Renderer) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Get restituisce il renderer registrato con quel nome
func Get(name string) (Renderer, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	factory, exists := registry[strings.ToLower(strings.TrimSpace(name))]
	if !exists {
		return nil, fmt.Errorf("unknown render format %q (available: %s)", name, strings.Join(availableLocked(), ", "))
	}
	return factory(), nil
}

// Available restituisce i nomi dei formati registrati, ordinati
func Available() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	return availableLocked()
}

func availableLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered verifica se un formato è registrato
func IsRegistered(name string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()

	_, exists := registry[strings.ToLower(name)]
	return exists
}
