// Package graph converte le pagine di una storia in nodi e archi per la
// visualizzazione delle connessioni.
package graph

import (
	"fmt"
	"math"

	"cyoa-editor/story"
)

// Position coordinate del nodo nel piano
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node rappresenta una pagina
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Color    string   `json:"color"`
	Position Position `json:"position"`
}

// Edge rappresenta un link da una pagina a un'altra
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph risultato di Build
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

const (
	baseRadius      = 150.0
	radiusIncrement = 30.0
	maxGrowth       = 800.0
	smallRadius     = 250.0
	largeMinRadius  = 400.0
	largeIncrement  = 15.0
)

// Radius restituisce il raggio del cerchio su cui disporre n nodi
func Radius(n int) float64 {
	switch {
	case n < 5:
		return smallRadius
	case n > 20:
		return math.Max(baseRadius+float64(n)*largeIncrement, largeMinRadius)
	default:
		return baseRadius + math.Min(float64(n)*radiusIncrement, maxGrowth)
	}
}

// Build crea un nodo per pagina e un arco per ogni link che risolve verso
// un'altra pagina esistente. Link duplicati producono archi duplicati con
// id distinti. Le pagine non vengono modificate.
func Build(pages []story.Page) Graph {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	n := len(pages)
	if n == 0 {
		return g
	}

	radius := Radius(n)
	ids := make(map[string]struct{}, n)
	for i, p := range pages {
		var pos Position
		if n > 1 {
			angle := float64(i) / float64(n) * 2 * math.Pi
			pos = Position{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
		}
		color := p.AccentColor
		if color == "" {
			color = story.DefaultAccentColor
		}
		g.Nodes = append(g.Nodes, Node{ID: p.ID, Label: p.Title, Color: color, Position: pos})
		ids[p.ID] = struct{}{}
	}

	for _, p := range pages {
		for title := range story.ExtractLinks(p.Markdown) {
			if story.IsDeletedMarker(title) {
				continue
			}
			target, ok := story.Slug(title)
			if !ok || target == p.ID {
				continue
			}
			if _, exists := ids[target]; !exists {
				continue
			}
			g.Edges = append(g.Edges, Edge{
				ID:     fmt.Sprintf("e-%s-%s-%d", p.ID, target, len(g.Edges)),
				Source: p.ID,
				Target: target,
			})
		}
	}
	return g
}

// Outbound raggruppa gli archi per pagina sorgente
func (g Graph) Outbound() map[string][]string {
	out := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}
	return out
}

// Reachable restituisce gli id raggiungibili partendo da start
func (g Graph) Reachable(start string) map[string]bool {
	out := g.Outbound()
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range out[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}
