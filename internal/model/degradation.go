package model

import (
	"fmt"
	"strings"
	"time"
)

// DegradationLevel describes how aggressively the system is shedding
// load, ordered by severity.
type DegradationLevel int

const (
	// DegradationNormal means full service, nothing is shed.
	DegradationNormal DegradationLevel = iota
	// DegradationMinor sheds only the lowest-priority work.
	DegradationMinor
	// DegradationModerate sheds background and low-priority work.
	DegradationModerate
	// DegradationMajor admits important work only.
	DegradationMajor
	// DegradationSevere admits near-critical work only.
	DegradationSevere
	// DegradationEmergency admits critical work only.
	DegradationEmergency
)

// String returns the string representation of the level.
func (l DegradationLevel) String() string {
	switch l {
	case DegradationNormal:
		return "normal"
	case DegradationMinor:
		return "minor"
	case DegradationModerate:
		return "moderate"
	case DegradationMajor:
		return "major"
	case DegradationSevere:
		return "severe"
	case DegradationEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ParseDegradationLevel resolves a level from its string name,
// case-insensitively.
func ParseDegradationLevel(s string) (DegradationLevel, error) {
	switch strings.ToLower(s) {
	case "normal":
		return DegradationNormal, nil
	case "minor":
		return DegradationMinor, nil
	case "moderate":
		return DegradationModerate, nil
	case "major":
		return DegradationMajor, nil
	case "severe":
		return DegradationSevere, nil
	case "emergency":
		return DegradationEmergency, nil
	default:
		return DegradationNormal, fmt.Errorf("unknown degradation level %q", s)
	}
}

// HealthMetrics is a passive point-in-time snapshot supplied by an
// external health source. It is never mutated by the consumer.
type HealthMetrics struct {
	CPUPercent        float64       `json:"cpu_percent"`
	MemoryPercent     float64       `json:"memory_percent"`
	ErrorRate         float64       `json:"error_rate"`
	ResponseTime      time.Duration `json:"response_time"`
	ActiveConnections int           `json:"active_connections"`
	Timestamp         time.Time     `json:"timestamp"`
}
