package story

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	nonWordRegex    = regexp.MustCompile(`[^\w-]+`)
)

// Slug calcola l'id deterministico di un titolo. Il secondo valore è false
// quando il titolo non produce nessun carattere utilizzabile.
func Slug(title string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(title))
	s = whitespaceRegex.ReplaceAllString(s, "-")
	s = nonWordRegex.ReplaceAllString(s, "")
	return s, s != ""
}

// DeriveID restituisce l'id di pagina per un titolo. Se il titolo non è
// utilizzabile genera un id univoco non deterministico.
func DeriveID(title string) string {
	if slug, ok := Slug(title); ok {
		return slug
	}
	return fallbackID(time.Now())
}

// IsFallbackID riconosce gli id generati per pagine senza titolo
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, fallbackPrefix)
}

const fallbackPrefix = "untitled-page-"

func fallbackID(now time.Time) string {
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	if len(suffix) > 5 {
		suffix = suffix[:5]
	}
	return fmt.Sprintf("%s%d-%s", fallbackPrefix, now.UnixMilli(), suffix)
}
