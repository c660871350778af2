package audit

import (
	"fmt"
	"time"
)

// Preset names a predefined audit window.
type Preset string

// Audit presets
const (
	PresetInitial   Preset = "initial"
	PresetScheduled Preset = "scheduled"
)

// Windows holds the lookback used by each preset.
type Windows struct {
	InitialMonths int
	ScheduledDays int
	ResultsMonths int
}

// DefaultWindows are three months for an initial audit, two weeks for a
// scheduled one and three months for result lookups without a range.
var DefaultWindows = Windows{InitialMonths: 3, ScheduledDays: 14, ResultsMonths: 3}

// ParsePreset validates a preset name.
func ParsePreset(s string) (Preset, error) {
	switch p := Preset(s); p {
	case PresetInitial, PresetScheduled:
		return p, nil
	default:
		return "", fmt.Errorf("unknown audit preset %q", s)
	}
}

// Range returns the [start, end] window for a preset ending at now.
func (w Windows) Range(p Preset, now time.Time) (time.Time, time.Time) {
	end := dayUTC(now)
	switch p {
	case PresetScheduled:
		return end.AddDate(0, 0, -w.ScheduledDays), end
	default:
		return end.AddDate(0, -w.InitialMonths, 0), end
	}
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
