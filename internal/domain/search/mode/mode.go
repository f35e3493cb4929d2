package mode

import (
	"fmt"
	"strings"
)

// Mode selects which strategies rank a query.
type Mode string

// Search mode constants.
const (
	// Hybrid runs every configured strategy and fuses their rankings.
	Hybrid     Mode = "hybrid"
	Vector     Mode = "vector"
	Structured Mode = "structured"
)

// rag is the legacy name for Vector.
const rag = "rag"

// Parse maps a caller-supplied name onto a Mode. Empty selects Hybrid.
func Parse(s string) (Mode, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "":
		return Hybrid, nil
	case rag:
		return Vector, nil
	default:
		if Mode(m).IsValid() {
			return Mode(m), nil
		}
		return "", fmt.Errorf("unknown search strategy %q (want hybrid, vector or structured)", s)
	}
}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Vector || m == Structured
}

// Allows reports whether the named strategy runs under m.
func (m Mode) Allows(strategy string) bool {
	return m == Hybrid || string(m) == strategy
}
