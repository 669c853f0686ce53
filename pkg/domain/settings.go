package domain

import "time"

// Settings holds the dialogue tunables shared by every manager of a process.
// It is built once at startup and passed by value; nothing mutates it later.
type Settings struct {
	// DurationCoefficient scales AutoCalculate row durations.
	DurationCoefficient float64
	// DefaultState is the state a manager returns to when a session closes.
	DefaultState ManagerState
	// SkipWholeRow makes a skip finish every remaining entry of the active row.
	SkipWholeRow bool
	// SkipFade delays the resume after a skip.
	SkipFade time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		DurationCoefficient: DefaultDurationCoefficient,
		DefaultState:        StateEnabled,
	}
}
