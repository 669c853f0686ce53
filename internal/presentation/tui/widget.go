package tui

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/muesli/termenv"
)

var speakerPalette = []string{"#818cf8", "#34d399", "#fbbf24", "#f472b6", "#60a5fa", "#fb7185"}

// Widget renders dialogue rows and options to a terminal.
// It implements ports.UserInterface.
type Widget struct {
	mu       sync.Mutex
	id       string
	out      io.Writer
	graph    *domain.Graph
	rows     ports.RowResolver
	render   Renderer
	profile  termenv.Profile
	showHint bool
	options  []domain.GUID
}

// WidgetOption configures the Widget.
type WidgetOption func(*Widget)

// WithRenderer replaces the glamour renderer.
func WithRenderer(r Renderer) WidgetOption {
	return func(w *Widget) {
		w.render = r
	}
}

// WithProfile sets the colour profile used for speaker names.
func WithProfile(p termenv.Profile) WidgetOption {
	return func(w *Widget) {
		w.profile = p
	}
}

// WithSkipHint prints a hint whenever a line can be skipped.
func WithSkipHint() WidgetOption {
	return func(w *Widget) {
		w.showHint = true
	}
}

// NewWidget creates a terminal widget for sessions running g. rows resolves
// the text shown for each option.
func NewWidget(id string, out io.Writer, g *domain.Graph, rows ports.RowResolver, opts ...WidgetOption) *Widget {
	w := &Widget{
		id:      id,
		out:     out,
		graph:   g,
		rows:    rows,
		render:  NewRenderer(),
		profile: termenv.ColorProfile(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID implements ports.UserInterface.
func (w *Widget) ID() string { return w.id }

// SetGraph switches the graph used to label options.
func (w *Widget) SetGraph(g *domain.Graph) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.graph = g
}

// Options returns the options shown last, in display order.
func (w *Widget) Options() []domain.GUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.GUID(nil), w.options...)
}

// Execute implements ports.UserInterface.
func (w *Widget) Execute(command domain.UICommand, c *domain.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch command {
	case domain.CommandShowRow, domain.CommandUpdateRow:
		if c == nil {
			return
		}
		data, ok := c.ActiveRowData()
		if !ok {
			return
		}
		speaker := c.ActiveParticipant
		if speaker == "" && c.ActiveRow != nil {
			speaker = c.ActiveRow.Participant
		}
		name := w.profile.String(speaker).Bold().Foreground(w.profile.Color(colorFor(speaker)))
		fmt.Fprintf(w.out, "%s\n", name)
		w.markdown(data.Text)
	case domain.CommandAddOptions:
		if c == nil {
			return
		}
		w.options = append(w.options[:0], c.AllowedChildren...)
		var sb strings.Builder
		for i, id := range w.options {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, w.optionText(id)))
		}
		w.markdown(sb.String())
	case domain.CommandRemoveOptions:
		w.options = w.options[:0]
	case domain.CommandShowSkip:
		if w.showHint {
			fmt.Fprintln(w.out, w.profile.String("  [enter] skip").Faint())
		}
	case domain.CommandCloseWidget:
		w.options = w.options[:0]
		fmt.Fprintln(w.out, w.profile.String("(dialogue closed)").Faint())
	}
}

func (w *Widget) markdown(md string) {
	out, err := w.render(md)
	if err != nil {
		out = md + "\n"
	}
	fmt.Fprint(w.out, out)
}

// optionText is the first line of the option's row, or its title.
func (w *Widget) optionText(id domain.GUID) string {
	n := w.graph.Node(id)
	if n == nil {
		return id.String()
	}
	if w.rows != nil && n.CarriesContent() {
		row, err := w.rows.Row(context.Background(), n.RowTable, n.RowKey)
		if err == nil && row.Valid() && row.Data[0].Text != "" {
			return row.Data[0].Text
		}
	}
	return n.Label()
}

func colorFor(speaker string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(speaker))
	return speakerPalette[h.Sum32()%uint32(len(speakerPalette))]
}
