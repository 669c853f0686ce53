package host

import (
	"context"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/domain"
)

// View is the readable state of a session for API clients.
type View struct {
	Snapshot   domain.Snapshot    `json:"snapshot"`
	Graph      string             `json:"graph,omitempty"`
	Speaker    string             `json:"speaker,omitempty"`
	Text       string             `json:"text,omitempty"`
	Suspension runtime.Suspension `json:"suspension"`
	Options    []OptionView       `json:"options,omitempty"`
	Path       []TraversedView    `json:"path,omitempty"`
}

// OptionView is one node the session may continue with.
type OptionView struct {
	Index int         `json:"index"`
	Node  domain.GUID `json:"node"`
	Name  string      `json:"name,omitempty"`
	Text  string      `json:"text"`
}

// TraversedView counts visits of a named node.
type TraversedView struct {
	Node  domain.GUID `json:"node"`
	Name  string      `json:"name,omitempty"`
	Count int         `json:"count"`
}

// View describes sessionID. Options carry 1-based indexes in offer order.
func (h *Host) View(ctx context.Context, sessionID string) (View, error) {
	mgr, err := h.Manager(sessionID)
	if err != nil {
		return View{}, err
	}
	v := View{Snapshot: mgr.Snapshot(), Suspension: mgr.Suspension()}
	g := mgr.Graph()
	if g != nil {
		v.Graph = g.Name
	}
	c := mgr.Context()
	if c == nil {
		return v, nil
	}

	v.Speaker = c.ActiveParticipant
	if c.ActiveRow.HasIndex(c.ActiveRowDataIndex) {
		v.Text = c.ActiveRow.Data[c.ActiveRowDataIndex].Text
	}
	for i, id := range c.AllowedChildren {
		v.Options = append(v.Options, h.option(ctx, g, i+1, id))
	}
	for _, t := range c.TraversedPath {
		tv := TraversedView{Node: t.Node, Count: t.Count}
		if g != nil {
			if n := g.Node(t.Node); n != nil {
				tv.Name = n.Name
			}
		}
		v.Path = append(v.Path, tv)
	}
	return v, nil
}

// option labels a node with the first line of its row, or its own label.
func (h *Host) option(ctx context.Context, g *domain.Graph, index int, id domain.GUID) OptionView {
	o := OptionView{Index: index, Node: id, Text: id.String()}
	if g == nil {
		return o
	}
	n := g.Node(id)
	if n == nil {
		return o
	}
	o.Name = n.Name
	o.Text = n.Label()
	if h.rows != nil && n.CarriesContent() {
		row, err := h.rows.Row(ctx, n.RowTable, n.RowKey)
		if err == nil && row.Valid() && row.Data[0].Text != "" {
			o.Text = row.Data[0].Text
		}
	}
	return o
}

// Option resolves a 1-based option index of sessionID into its node.
func (h *Host) Option(sessionID string, index int) (domain.GUID, error) {
	mgr, err := h.Manager(sessionID)
	if err != nil {
		return domain.NilGUID, err
	}
	c := mgr.Context()
	if c == nil || index < 1 || index > len(c.AllowedChildren) {
		return domain.NilGUID, domain.ErrNodeNotFound
	}
	return c.AllowedChildren[index-1], nil
}
