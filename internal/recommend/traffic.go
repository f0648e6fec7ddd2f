package recommend

import (
	"fmt"
	"strings"
)

// TrafficLevel is the ordinal restroom usage classification derived from headcount and schedule.
type TrafficLevel int

const (
	TrafficLow TrafficLevel = iota
	TrafficMedium
	TrafficHigh
	TrafficPeak
)

// TrafficLevels lists every level in ascending order.
var TrafficLevels = []TrafficLevel{TrafficLow, TrafficMedium, TrafficHigh, TrafficPeak}

var trafficNames = map[TrafficLevel]string{
	TrafficLow:    "Tráfico Bajo",
	TrafficMedium: "Tráfico Medio",
	TrafficHigh:   "Tráfico Alto",
	TrafficPeak:   "Tráfico Pico",
}

// String returns the catalog key for the level.
func (l TrafficLevel) String() string {
	if name, ok := trafficNames[l]; ok {
		return name
	}
	return fmt.Sprintf("TrafficLevel(%d)", int(l))
}

// MarshalText encodes the level using its catalog key.
func (l TrafficLevel) MarshalText() ([]byte, error) {
	if _, ok := trafficNames[l]; !ok {
		return nil, fmt.Errorf("unknown traffic level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText accepts the catalog key of a level.
func (l *TrafficLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseTrafficLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseTrafficLevel maps a catalog key such as "Tráfico Alto" back to its level.
func ParseTrafficLevel(name string) (TrafficLevel, error) {
	name = strings.TrimSpace(name)
	for level, candidate := range trafficNames {
		if candidate == name {
			return level, nil
		}
	}
	return TrafficLow, fmt.Errorf("unknown traffic level %q", name)
}

// ClassifyTraffic weights the employee count by shift length and working-day frequency and
// buckets the resulting index. Inputs are trusted; validation happens before this point.
func ClassifyTraffic(employees int, daysPerMonth, hoursPerDay float64) TrafficLevel {
	return LevelForIndex(TrafficIndex(employees, daysPerMonth, hoursPerDay))
}

// TrafficIndex returns the adjusted traffic index used by ClassifyTraffic.
func TrafficIndex(employees int, daysPerMonth, hoursPerDay float64) float64 {
	return float64(employees) * intensityFactor(hoursPerDay) * frequencyFactor(daysPerMonth)
}

// Lower index bounds of the levels above Low.
const (
	mediumTrafficIndex = 40
	highTrafficIndex   = 180
	peakTrafficIndex   = 450
)

// LevelForIndex buckets an adjusted index into a traffic level.
func LevelForIndex(index float64) TrafficLevel {
	switch {
	case index < mediumTrafficIndex:
		return TrafficLow
	case index < highTrafficIndex:
		return TrafficMedium
	case index < peakTrafficIndex:
		return TrafficHigh
	default:
		return TrafficPeak
	}
}

// MinIndex is the smallest adjusted index classified as l.
func (l TrafficLevel) MinIndex() float64 {
	switch l {
	case TrafficMedium:
		return mediumTrafficIndex
	case TrafficHigh:
		return highTrafficIndex
	case TrafficPeak:
		return peakTrafficIndex
	default:
		return 0
	}
}

func intensityFactor(hoursPerDay float64) float64 {
	switch {
	case hoursPerDay >= 16:
		return 1.5 // round-the-clock or stacked shifts
	case hoursPerDay >= 12:
		return 1.3
	case hoursPerDay >= 8:
		return 1.0
	default:
		return 0.8
	}
}

func frequencyFactor(daysPerMonth float64) float64 {
	switch {
	case daysPerMonth >= 28:
		return 1.4
	case daysPerMonth >= 22:
		return 1.2
	case daysPerMonth >= 20:
		return 1.0
	case daysPerMonth >= 15:
		return 0.8
	default:
		return 0.6
	}
}
