package models

// Tower represents a tower currently in a match. The record outlives its destruction so it
// keeps showing up in snapshots.
type Tower struct {
	Name   string  `json:"name"`
	Role   string  `json:"role"`
	Team   int     `json:"team"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health float64 `json:"health"`
}

// Unit represents a unit deployed on the arena.
type Unit struct {
	ID       string  `json:"id"`
	UnitType string  `json:"unit_type"`
	Team     int     `json:"team"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Health   float64 `json:"health"`
	Damage   float64 `json:"damage"`
	Speed    float64 `json:"speed"`
}

// CardRequest is the payload of a play action. Position is optional; a nil position
// spawns at the side's canonical spawn point.
type CardRequest struct {
	UnitType string  `json:"unitType"`
	Cost     float64 `json:"cost"`
	Position *Point  `json:"position,omitempty"`
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus int

const (
	StatusForming MatchStatus = iota
	StatusRunning
	StatusEnded
)

func (s MatchStatus) String() string {
	switch s {
	case StatusForming:
		return "forming"
	case StatusRunning:
		return "running"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// NoWinner marks a match without a decided winner.
const NoWinner = -1
