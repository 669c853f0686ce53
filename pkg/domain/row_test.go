package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRowDuration(t *testing.T) {
	cue := &AudioCue{Name: "hello.wav", Duration: 2500 * time.Millisecond}

	tests := []struct {
		name string
		data RowData
		coef float64
		want time.Duration
	}{
		{
			name: "auto calculate with default coefficient",
			data: RowData{DurationMode: DurationAutoCalculate, Text: strings.Repeat("a", 100)},
			coef: 8,
			want: 8 * time.Second,
		},
		{
			name: "auto calculate falls back to default coefficient",
			data: RowData{DurationMode: DurationAutoCalculate, Text: strings.Repeat("a", 50)},
			coef: 0,
			want: 4 * time.Second,
		},
		{
			name: "auto calculate counts runes",
			data: RowData{DurationMode: DurationAutoCalculate, Text: strings.Repeat("é", 25)},
			coef: 8,
			want: 2 * time.Second,
		},
		{
			name: "duration prefers audio",
			data: RowData{DurationMode: DurationDefault, Audio: cue, Duration: 5 * time.Second},
			want: 2500 * time.Millisecond,
		},
		{
			name: "duration without audio uses explicit value",
			data: RowData{DurationMode: DurationDefault, Duration: 2 * time.Second},
			want: 2 * time.Second,
		},
		{
			name: "empty mode behaves like duration",
			data: RowData{Duration: 3 * time.Second},
			want: 3 * time.Second,
		},
		{
			name: "override ignores audio",
			data: RowData{DurationMode: DurationOverride, Audio: cue, DurationOverride: 4 * time.Second},
			want: 4 * time.Second,
		},
		{
			name: "add sums audio and offset",
			data: RowData{DurationMode: DurationAdd, Audio: cue, DurationOverride: time.Second},
			want: 3500 * time.Millisecond,
		},
		{
			name: "add without audio uses offset alone",
			data: RowData{DurationMode: DurationAdd, DurationOverride: 1500 * time.Millisecond},
			want: 1500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.data.RowDuration(tt.coef))
		})
	}
}

func TestRowDuration_FloorAppliesToEveryMode(t *testing.T) {
	modes := []DurationMode{DurationDefault, DurationOverride, DurationAdd, DurationAutoCalculate}
	for _, mode := range modes {
		d := RowData{DurationMode: mode, Text: "hi", Audio: &AudioCue{Duration: 10 * time.Millisecond}}
		assert.Equal(t, MinRowDuration, d.RowDuration(8), "mode %s", mode)
	}
}

func TestRowValidity(t *testing.T) {
	data := RowData{GUID: NewGUID(), Text: "Hello there."}
	assert.True(t, data.Valid())
	assert.False(t, RowData{GUID: NewGUID()}.Valid(), "text is required")
	assert.False(t, RowData{Text: "no guid"}.Valid(), "guid is required")

	row := &Row{GUID: NewGUID(), Participant: "npc", Data: []RowData{data}}
	assert.True(t, row.Valid())
	assert.False(t, (&Row{GUID: NewGUID(), Data: []RowData{data}}).Valid(), "participant is required")
	assert.False(t, (&Row{GUID: NewGUID(), Participant: "npc"}).Valid(), "data is required")
	assert.False(t, (*Row)(nil).Valid())

	assert.True(t, row.HasIndex(0))
	assert.False(t, row.HasIndex(1))
	assert.False(t, row.HasIndex(-1))
}
