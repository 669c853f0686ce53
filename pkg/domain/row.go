package domain

import (
	"time"
	"unicode/utf8"
)

// DurationMode selects how a RowData's playback duration is computed.
type DurationMode string

const (
	// DurationDefault uses the audio cue length if present, else RowData.Duration.
	DurationDefault DurationMode = "duration"
	// DurationOverride uses RowData.DurationOverride and ignores audio.
	DurationOverride DurationMode = "override"
	// DurationAdd uses audio length plus DurationOverride, or the override alone.
	DurationAdd DurationMode = "add"
	// DurationAutoCalculate derives the duration from text length.
	DurationAutoCalculate DurationMode = "auto_calculate"
)

// ExecutionMode governs the transition out of a RowData once it finishes.
type ExecutionMode string

const (
	ExecutionAutomatic  ExecutionMode = "automatic"
	ExecutionAwaitInput ExecutionMode = "await_input"
	ExecutionStopping   ExecutionMode = "stopping"
)

const (
	// MinRowDuration floors every computed row duration.
	MinRowDuration = time.Second
	// DefaultDurationCoefficient scales AutoCalculate durations.
	DefaultDurationCoefficient = 8.0
)

// AudioCue references a sound played by the active participant.
type AudioCue struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// RowData is one playable line of a Row.
type RowData struct {
	GUID             GUID          `json:"guid"`
	Text             string        `json:"text"`
	Audio            *AudioCue     `json:"audio,omitempty"`
	DurationMode     DurationMode  `json:"duration_mode"`
	Duration         time.Duration `json:"duration,omitempty"`
	DurationOverride time.Duration `json:"duration_override,omitempty"`
	Execution        ExecutionMode `json:"execution"`
}

// Valid reports whether the entry can be played.
func (d RowData) Valid() bool {
	return d.GUID != NilGUID && d.Text != ""
}

// RowDuration computes how long d stays on screen. coefficient only affects
// AutoCalculate; a non-positive value falls back to DefaultDurationCoefficient.
// The result is never shorter than MinRowDuration.
func (d RowData) RowDuration(coefficient float64) time.Duration {
	if coefficient <= 0 {
		coefficient = DefaultDurationCoefficient
	}
	var audio time.Duration
	if d.Audio != nil {
		audio = d.Audio.Duration
	}

	var out time.Duration
	switch d.DurationMode {
	case DurationOverride:
		out = d.DurationOverride
	case DurationAdd:
		out = audio + d.DurationOverride
	case DurationAutoCalculate:
		seconds := float64(utf8.RuneCountInString(d.Text)) * coefficient / 100
		out = time.Duration(seconds * float64(time.Second))
	default:
		out = d.Duration
		if audio > 0 {
			out = audio
		}
	}
	if out < MinRowDuration {
		return MinRowDuration
	}
	return out
}

// Row groups the lines voiced by one participant.
type Row struct {
	GUID GUID `json:"guid"`
	// UIRowID lets a UI pick a row layout.
	UIRowID        int            `json:"ui_row_id,omitempty"`
	Participant    string         `json:"participant"`
	Title          string         `json:"title,omitempty"`
	Data           []RowData      `json:"data"`
	CompatibleTags []string       `json:"compatible_tags,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Valid reports whether the row can be played at all.
func (r *Row) Valid() bool {
	return r != nil && r.GUID != NilGUID && r.Participant != "" && len(r.Data) > 0
}

// HasIndex reports whether i addresses an entry of r.Data.
func (r *Row) HasIndex(i int) bool {
	return r != nil && i >= 0 && i < len(r.Data)
}

// HasTag reports whether the row is compatible with tag.
func (r *Row) HasTag(tag string) bool {
	if r == nil || tag == "" {
		return false
	}
	for _, t := range r.CompatibleTags {
		if t == tag {
			return true
		}
	}
	return false
}
