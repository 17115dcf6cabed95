package client

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TempUnit selects how a Celsius reading is displayed
type TempUnit string

const (
	Celsius    TempUnit = "C"
	Fahrenheit TempUnit = "F"
)

// ParseTempUnit accepts "c", "f", "celsius" or "fahrenheit" in any case.
// Anything else is Celsius.
func ParseTempUnit(s string) TempUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "fahrenheit":
		return Fahrenheit
	default:
		return Celsius
	}
}

// FormatTemperature renders a Celsius reading in the given unit with one
// decimal, e.g. "37.2°C" or "98.6°F".
func FormatTemperature(celsius *float64, unit TempUnit) string {
	if celsius == nil || math.IsNaN(*celsius) || math.IsInf(*celsius, 0) {
		return Placeholder
	}
	if ParseTempUnit(string(unit)) == Fahrenheit {
		return fmt.Sprintf("%.1f°F", *celsius*9/5+32)
	}
	return fmt.Sprintf("%.1f°C", *celsius)
}

// FormatLastSeen renders an epoch-seconds timestamp relative to now.
// Timestamps in the future read as "Just now".
func FormatLastSeen(ts *int64, now time.Time) string {
	if ts == nil {
		return Placeholder
	}
	delta := now.Unix() - *ts
	switch {
	case delta <= 0:
		return "Just now"
	case delta < 60:
		return fmt.Sprintf("%ds ago", delta)
	case delta < 3600:
		return fmt.Sprintf("%dm ago", delta/60)
	case delta < 86400:
		return fmt.Sprintf("%dh ago", delta/3600)
	default:
		return fmt.Sprintf("%dd ago", delta/86400)
	}
}

// FormatReading renders an optional numeric reading with no trailing zeros
func FormatReading(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf("%g", *v)
}
