package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []domain.GUID
	CurrentNode  domain.GUID
	// Options are the children currently offered for selection.
	Options []domain.GUID
}

// OverlayFromContext builds an overlay from a session cursor. A nil context yields nil.
func OverlayFromContext(c *domain.Context) *GraphOverlay {
	if c == nil {
		return nil
	}
	o := &GraphOverlay{CurrentNode: c.ActiveNode}
	for _, t := range c.TraversedPath {
		o.VisitedNodes = append(o.VisitedNodes, t.Node)
	}
	o.Options = append(o.Options, c.AllowedChildren...)
	return o
}

// GenerateMermaid produces a Mermaid flowchart syntax string for g.
// It applies semantic styling:
// - Start: ((Circle))
// - Answer: [/Parallelogram/]
// - Delay: {{Hexagon}}
// - ReturnTo: >Flag]
// - Complete and AutoComplete: ([Stadium])
// - Lead: [Rectangle]
// It also applies overlay styles (Visited/Current/Option) if provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if g == nil {
		return sb.String()
	}

	ids := make(map[domain.GUID]string, len(g.Nodes))
	used := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		id := sanitizeMermaidID(n.Name)
		if id == "" || used[id] {
			id = "n" + strings.ReplaceAll(n.GUID.String(), "-", "")
		}
		used[id] = true
		ids[n.GUID] = id
	}

	nodes := append([]*domain.Node(nil), g.Nodes...)
	domain.SortByExecutionOrder(nodes)
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("    %s%s\n", ids[n.GUID], shape(n)))

		for _, child := range n.Children {
			to, ok := ids[child]
			if !ok {
				continue
			}
			arrow := "-->"
			if label := n.Edges[child].Label; label != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", escape(label))
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", ids[n.GUID], arrow, to))
		}

		if n.Kind == domain.KindReturnTo {
			if to, ok := ids[n.ReturnTarget]; ok {
				sb.WriteString(fmt.Sprintf("    %s -. \"return\" .-> %s\n", ids[n.GUID], to))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef option fill:#e8f5e9,stroke:#2e7d32,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		styled := make(map[string]bool)
		apply := func(guid domain.GUID, class string) {
			id, ok := ids[guid]
			if !ok || styled[id+class] {
				return
			}
			styled[id+class] = true
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", id, class))
		}
		for _, guid := range overlay.VisitedNodes {
			apply(guid, "visited")
		}
		for _, guid := range overlay.Options {
			apply(guid, "option")
		}
		if overlay.CurrentNode != domain.NilGUID {
			apply(overlay.CurrentNode, "current")
		}
	}

	return sb.String()
}

func shape(n *domain.Node) string {
	label := escape(n.Label())
	switch n.Kind {
	case domain.KindDelay:
		label = fmt.Sprintf("%s <br/> ⏱️ %s", label, n.Delay)
	}
	if len(n.Decorators) > 0 {
		types := make([]string, 0, len(n.Decorators))
		for _, d := range n.Decorators {
			types = append(types, d.Type)
		}
		label = fmt.Sprintf("%s <br/> ◆ %s", label, strings.Join(types, ", "))
	}

	opener, closer := "[", "]"
	switch n.Kind {
	case domain.KindStart:
		opener, closer = "((", "))"
	case domain.KindAnswer:
		opener, closer = "[/", "/]"
	case domain.KindDelay:
		opener, closer = "{{", "}}"
	case domain.KindReturnTo:
		opener, closer = ">", "]"
	case domain.KindComplete, domain.KindAutoComplete:
		opener, closer = "([", "])"
	}
	return fmt.Sprintf("%s\"%s\"%s", opener, label, closer)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.TrimSpace(id)
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
