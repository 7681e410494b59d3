package widget

// Level classifies a usage percentage for display.
type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Usage thresholds in percent.
const (
	WarningThreshold  = 70.0
	CriticalThreshold = 90.0
)

// UsageLevel returns the display level of a usage percentage.
func UsageLevel(percent float64) Level {
	switch {
	case percent > CriticalThreshold:
		return LevelCritical
	case percent > WarningThreshold:
		return LevelWarning
	default:
		return LevelOK
	}
}
