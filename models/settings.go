package models

import (
	"math"
	"time"
)

const (
	DefaultIntervalSec = 5
	DefaultTextSize    = 18
)

// Settings are process-wide player preferences. They never affect document
// correctness.
type Settings struct {
	AutoPlay            bool    `json:"autoPlay"`
	AutoPlayIntervalSec float64 `json:"autoPlayIntervalSec"`
	TextSize            int     `json:"textSize"`
}

func DefaultSettings() Settings {
	return Settings{AutoPlayIntervalSec: DefaultIntervalSec, TextSize: DefaultTextSize}
}

// Normalize replaces invalid values with defaults.
func (s Settings) Normalize() Settings {
	if s.AutoPlayIntervalSec <= 0 || math.IsNaN(s.AutoPlayIntervalSec) || math.IsInf(s.AutoPlayIntervalSec, 0) {
		s.AutoPlayIntervalSec = DefaultIntervalSec
	}
	if s.TextSize <= 0 {
		s.TextSize = DefaultTextSize
	}
	return s
}

func (s Settings) Interval() time.Duration {
	return SecondsToDuration(s.Normalize().AutoPlayIntervalSec)
}

func SecondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
