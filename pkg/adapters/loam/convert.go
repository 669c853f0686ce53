package loam

import (
	"fmt"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// nodeGUID keeps explicit GUIDs and scopes names by graph otherwise.
func nodeGUID(graph, id string) domain.GUID {
	if guid, err := domain.ParseGUID(id); err == nil {
		return guid
	}
	return domain.GUIDFromName(graph + "/" + id)
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func decorators(src []DecoratorMetadata) []domain.DecoratorSpec {
	if len(src) == 0 {
		return nil
	}
	out := make([]domain.DecoratorSpec, 0, len(src))
	for _, d := range src {
		out = append(out, domain.DecoratorSpec{Type: d.Type, Params: d.Params})
	}
	return out
}

// buildGraph converts a graph document. Every problem in the document is
// reported at once through a *domain.AggregateError.
func buildGraph(name string, meta DocumentMetadata) (*domain.Graph, error) {
	g := domain.NewGraph(name)
	g.Decorators = decorators(meta.Decorators)
	var errs domain.AggregateError

	ids := make(map[string]domain.GUID, len(meta.Nodes))
	var startChildren []string
	explicitOrder := len(meta.Nodes) > 0
	var first string

	for i, nm := range meta.Nodes {
		kind := domain.NodeKind(nm.Kind)
		if nm.ID == "" {
			errs.Add(fmt.Errorf("nodes[%d]: missing id", i))
			continue
		}
		if !kind.Valid() {
			errs.Add(fmt.Errorf("node %s: unknown kind %q", nm.ID, nm.Kind))
			continue
		}
		if kind == domain.KindStart {
			startChildren = append(startChildren, nm.Children...)
			ids[nm.ID] = g.StartNode
			continue
		}
		if first == "" {
			first = nm.ID
		}

		n := domain.NewNode(kind, nm.ID)
		n.GUID = nodeGUID(name, nm.ID)
		if nm.Title != "" {
			n.Title = nm.Title
		}
		n.Decorators = decorators(nm.Decorators)
		if nm.InheritGraphDecorators != nil {
			n.InheritGraphDecorators = *nm.InheritGraphDecorators
		}
		if nm.AutoStarts != nil {
			n.AutoStarts = *nm.AutoStarts
		}
		if nm.MaxChildren != nil {
			n.MaxChildren = *nm.MaxChildren
		}
		if n.CarriesContent() {
			n.RowTable, n.RowKey = nm.RowTable, nm.RowKey
			if n.RowKey == "" {
				n.RowKey = nm.ID
			}
		}
		if d, err := parseDuration("node "+nm.ID+": delay", nm.Delay); err != nil {
			errs.Add(err)
		} else if d > 0 {
			n.Delay = d
		}
		if nm.ExecutionOrder != nil {
			n.ExecutionOrder = *nm.ExecutionOrder
		} else {
			explicitOrder = false
		}
		n.Position = nm.X

		if err := g.AddNode(n); err != nil {
			errs.Add(fmt.Errorf("node %s: %w", nm.ID, err))
			continue
		}
		ids[nm.ID] = n.GUID
	}

	connect := func(from string, parent domain.GUID, children []string, labels map[string]string) {
		for _, c := range children {
			child, ok := ids[c]
			if !ok {
				errs.Add(fmt.Errorf("node %s: unknown child %q: %w", from, c, domain.ErrNodeNotFound))
				continue
			}
			errs.Add(g.Connect(parent, child, domain.Edge{Label: labels[c]}))
		}
	}

	if len(startChildren) == 0 && first != "" {
		startChildren = []string{first}
	}
	connect("start", g.StartNode, startChildren, nil)

	for _, nm := range meta.Nodes {
		parent, ok := ids[nm.ID]
		if !ok || parent == g.StartNode {
			continue
		}
		connect(nm.ID, parent, nm.Children, nm.Labels)
		if nm.ReturnTo != "" {
			target, ok := ids[nm.ReturnTo]
			if !ok {
				errs.Add(fmt.Errorf("node %s: unknown return target %q: %w", nm.ID, nm.ReturnTo, domain.ErrNodeNotFound))
				continue
			}
			g.Node(parent).ReturnTarget = target
		}
	}

	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}
	if !explicitOrder {
		domain.AssignExecutionOrder(g)
	}
	return g, nil
}

// buildRows converts a row table document into rows keyed by row key.
func buildRows(table string, meta DocumentMetadata) (map[string]*domain.Row, error) {
	out := make(map[string]*domain.Row, len(meta.Rows))
	var errs domain.AggregateError

	for i, rm := range meta.Rows {
		key := rm.Key
		if key == "" {
			errs.Add(fmt.Errorf("table %s: rows[%d]: missing key", table, i))
			continue
		}
		row := &domain.Row{
			GUID:           nodeGUID(table, key),
			UIRowID:        rm.UIRowID,
			Participant:    rm.Participant,
			Title:          rm.Title,
			CompatibleTags: rm.Tags,
			Extra:          rm.Extra,
		}
		if rm.ID != "" {
			row.GUID = domain.GUIDFromName(rm.ID)
		}
		for j, lm := range rm.Data {
			data, err := buildLine(row.GUID, j, lm)
			if err != nil {
				errs.Add(fmt.Errorf("table %s: row %s: data[%d]: %w", table, key, j, err))
				continue
			}
			row.Data = append(row.Data, data)
		}
		out[key] = row
	}
	return out, errs.ErrOrNil()
}

func buildLine(row domain.GUID, index int, lm LineMetadata) (domain.RowData, error) {
	data := domain.RowData{
		GUID:         domain.GUIDFromName(fmt.Sprintf("%s#%d", row, index)),
		Text:         lm.Text,
		DurationMode: domain.DurationMode(lm.Mode),
		Execution:    domain.ExecutionMode(lm.Execution),
	}
	if lm.ID != "" {
		data.GUID = domain.GUIDFromName(lm.ID)
	}
	if data.Execution == "" {
		data.Execution = domain.ExecutionAutomatic
	}
	switch data.Execution {
	case domain.ExecutionAutomatic, domain.ExecutionAwaitInput, domain.ExecutionStopping:
	default:
		return data, fmt.Errorf("unknown execution mode %q", lm.Execution)
	}

	var err error
	if data.Duration, err = parseDuration("duration", lm.Duration); err != nil {
		return data, err
	}
	if data.DurationOverride, err = parseDuration("duration_override", lm.DurationOverride); err != nil {
		return data, err
	}
	if lm.Audio != "" {
		d, err := parseDuration("audio_duration", lm.AudioDuration)
		if err != nil {
			return data, err
		}
		data.Audio = &domain.AudioCue{Name: lm.Audio, Duration: d}
	}

	switch data.DurationMode {
	case "":
		data.DurationMode = domain.DurationAutoCalculate
		if data.Duration > 0 || data.Audio != nil {
			data.DurationMode = domain.DurationDefault
		}
	case domain.DurationDefault, domain.DurationOverride, domain.DurationAdd, domain.DurationAutoCalculate:
	default:
		return data, fmt.Errorf("unknown duration mode %q", lm.Mode)
	}
	return data, nil
}
