package loam

// DocumentMetadata is the header of a Parley document. A document holding
// nodes is a dialogue graph; a document holding rows is a row table.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type DocumentMetadata struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`

	// Graph documents
	Decorators []DecoratorMetadata `json:"decorators" mapstructure:"decorators"`
	Nodes      []NodeMetadata      `json:"nodes" mapstructure:"nodes"`

	// Row table documents
	Table string        `json:"table" mapstructure:"table"`
	Rows  []RowMetadata `json:"rows" mapstructure:"rows"`
}

// IsGraph reports whether the document describes a dialogue graph.
func (m DocumentMetadata) IsGraph() bool {
	return len(m.Nodes) > 0
}

// IsTable reports whether the document describes a row table.
func (m DocumentMetadata) IsTable() bool {
	return len(m.Rows) > 0
}

type DecoratorMetadata struct {
	Type   string         `json:"type" mapstructure:"type"`
	Params map[string]any `json:"params" mapstructure:"params"`
}

// NodeMetadata is one authored node. Pointer fields fall back to the
// defaults of the node kind when omitted.
type NodeMetadata struct {
	ID       string   `json:"id" mapstructure:"id"`
	Kind     string   `json:"kind" mapstructure:"kind"`
	Title    string   `json:"title" mapstructure:"title"`
	Children []string `json:"children" mapstructure:"children"`
	// Labels annotates edges by child ID.
	Labels map[string]string `json:"labels" mapstructure:"labels"`

	Decorators             []DecoratorMetadata `json:"decorators" mapstructure:"decorators"`
	InheritGraphDecorators *bool               `json:"inherit_graph_decorators" mapstructure:"inherit_graph_decorators"`
	AutoStarts             *bool               `json:"auto_starts" mapstructure:"auto_starts"`
	MaxChildren            *int                `json:"max_children" mapstructure:"max_children"`

	RowTable string `json:"row_table" mapstructure:"row_table"`
	RowKey   string `json:"row_key" mapstructure:"row_key"`

	// Delay is a Go duration string (e.g. "2s").
	Delay    string `json:"delay" mapstructure:"delay"`
	ReturnTo string `json:"return_to" mapstructure:"return_to"`

	ExecutionOrder *int    `json:"execution_order" mapstructure:"execution_order"`
	X              float64 `json:"x" mapstructure:"x"`
}

type RowMetadata struct {
	Key         string         `json:"key" mapstructure:"key"`
	ID          string         `json:"id" mapstructure:"id"`
	Participant string         `json:"participant" mapstructure:"participant"`
	Title       string         `json:"title" mapstructure:"title"`
	UIRowID     int            `json:"ui_row_id" mapstructure:"ui_row_id"`
	Tags        []string       `json:"tags" mapstructure:"tags"`
	Extra       map[string]any `json:"extra" mapstructure:"extra"`
	Data        []LineMetadata `json:"data" mapstructure:"data"`
}

// LineMetadata is one row entry. Durations are Go duration strings.
type LineMetadata struct {
	ID               string `json:"id" mapstructure:"id"`
	Text             string `json:"text" mapstructure:"text"`
	Audio            string `json:"audio" mapstructure:"audio"`
	AudioDuration    string `json:"audio_duration" mapstructure:"audio_duration"`
	Mode             string `json:"mode" mapstructure:"mode"`
	Duration         string `json:"duration" mapstructure:"duration"`
	DurationOverride string `json:"duration_override" mapstructure:"duration_override"`
	Execution        string `json:"execution" mapstructure:"execution"`
}
