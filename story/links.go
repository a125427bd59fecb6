package story

import (
	"iter"
	"regexp"
	"slices"
	"strings"
)

// linkRegex riconosce [[...]] con contenuto non greedy
var linkRegex = regexp.MustCompile(`\[\[(.*?)\]\]`)

// DeletedSuffix marca i link verso pagine cancellate
const DeletedSuffix = " (apagada)"

// ExtractLinks restituisce i titoli referenziati nel markdown, nell'ordine
// in cui compaiono. I duplicati vengono mantenuti, i titoli vuoti scartati.
// Ogni iterazione riparte da zero.
func ExtractLinks(markdown string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range linkRegex.FindAllStringSubmatchIndex(markdown, -1) {
			title := strings.TrimSpace(markdown[m[2]:m[3]])
			if title == "" {
				continue
			}
			if !yield(title) {
				return
			}
		}
	}
}

// Links raccoglie ExtractLinks in una slice
func Links(markdown string) []string {
	links := slices.Collect(ExtractLinks(markdown))
	if links == nil {
		return []string{}
	}
	return links
}

// RewriteLinks sostituisce ogni link per cui replace restituisce true.
// Il confronto avviene link per link, quindi un titolo che è sottostringa
// di un altro non viene toccato.
func RewriteLinks(markdown string, replace func(inner string) (string, bool)) string {
	return linkRegex.ReplaceAllStringFunc(markdown, func(match string) string {
		inner := match[2 : len(match)-2]
		if strings.TrimSpace(inner) == "" {
			return match
		}
		if repl, ok := replace(inner); ok {
			return "[[" + repl + "]]"
		}
		return match
	})
}

// DeletedMarker restituisce il testo del link verso una pagina cancellata
func DeletedMarker(title string) string {
	return title + DeletedSuffix
}

// IsDeletedMarker verifica se il titolo è un link verso una pagina cancellata
func IsDeletedMarker(title string) bool {
	return strings.HasSuffix(strings.TrimSpace(title), strings.TrimSpace(DeletedSuffix))
}

// ReplaceLinks sostituisce l'intero [[Titolo]] con il testo restituito da fn.
// fn riceve il titolo già ripulito dagli spazi.
func ReplaceLinks(markdown string, fn func(title string) string) string {
	return linkRegex.ReplaceAllStringFunc(markdown, func(match string) string {
		title := strings.TrimSpace(match[2 : len(match)-2])
		if title == "" {
			return match
		}
		return fn(title)
	})
}
