package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned by GameConfig.Validate. The server refuses to accept
// matches when it sees one.
var ErrInvalidConfig = errors.New("invalid game config")

// MaxTickRate bounds Rules.TickRate so the tick interval stays a positive duration.
const MaxTickRate = 1000

// Tower roles.
const (
	RoleKing     = "king"
	RolePrincess = "princess"
)

// TowerSpec places one tower on the arena at match start.
type TowerSpec struct {
	Name   string  `json:"name"` // e.g., "leftKing", "rightPrincess1"
	Role   string  `json:"role"` // RoleKing or RolePrincess
	Team   int     `json:"team"` // 0 or 1
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health float64 `json:"health"`
}

// UnitStats are the baseline combat stats every spawned unit gets.
type UnitStats struct {
	Health float64 `json:"health"`
	Damage float64 `json:"damage"`
	Speed  float64 `json:"speed"` // distance units per tick
}

// Point is a position on the arena.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rules hold the simulation constants.
type Rules struct {
	TickRate         int     `json:"tick_rate"`         // ticks per second
	EngagementRadius float64 `json:"engagement_radius"` // unit-to-tower attack range
	StartingElixir   float64 `json:"starting_elixir"`
	MaxElixir        float64 `json:"max_elixir"`
	ElixirPerTick    float64 `json:"elixir_per_tick"`
}

// GameConfig holds the arena layout and simulation rules, typically loaded from JSON files
// or the server config.
type GameConfig struct {
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Towers []TowerSpec `json:"towers"`
	Spawns [2]Point    `json:"spawns"` // side-canonical spawn positions, indexed by team
	Unit   UnitStats   `json:"unit"`
	Rules  Rules       `json:"rules"`
}

// DefaultGameConfig returns the canonical arena: one king and two princess towers per
// side, point-symmetric around the arena center.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Width:  600,
		Height: 800,
		Towers: []TowerSpec{
			{Name: "leftKing", Role: RoleKing, Team: 0, X: 150, Y: 700, Health: 3000},
			{Name: "leftPrincess1", Role: RolePrincess, Team: 0, X: 50, Y: 500, Health: 1500},
			{Name: "leftPrincess2", Role: RolePrincess, Team: 0, X: 250, Y: 500, Health: 1500},
			{Name: "rightKing", Role: RoleKing, Team: 1, X: 450, Y: 100, Health: 3000},
			{Name: "rightPrincess1", Role: RolePrincess, Team: 1, X: 350, Y: 300, Health: 1500},
			{Name: "rightPrincess2", Role: RolePrincess, Team: 1, X: 550, Y: 300, Health: 1500},
		},
		Spawns: [2]Point{{X: 150, Y: 600}, {X: 450, Y: 200}},
		Unit:   UnitStats{Health: 500, Damage: 50, Speed: 1},
		Rules: Rules{
			TickRate:         20,
			EngagementRadius: 30,
			StartingElixir:   5,
			MaxElixir:        10,
			ElixirPerTick:    0.1,
		},
	}
}

// Validate reports a malformed layout or rule set.
func (c GameConfig) Validate() error {
	if c.Rules.TickRate <= 0 || c.Rules.TickRate > MaxTickRate {
		return fmt.Errorf("%w: tick rate must be in [1, %d], got %d", ErrInvalidConfig, MaxTickRate, c.Rules.TickRate)
	}
	if !positive(c.Rules.EngagementRadius) {
		return fmt.Errorf("%w: engagement radius must be positive", ErrInvalidConfig)
	}
	if !positive(c.Rules.MaxElixir) || c.Rules.StartingElixir < 0 || c.Rules.StartingElixir > c.Rules.MaxElixir {
		return fmt.Errorf("%w: starting elixir %.2f outside [0, %.2f]", ErrInvalidConfig, c.Rules.StartingElixir, c.Rules.MaxElixir)
	}
	if c.Rules.ElixirPerTick < 0 || math.IsNaN(c.Rules.ElixirPerTick) {
		return fmt.Errorf("%w: elixir regeneration must not be negative", ErrInvalidConfig)
	}
	if !positive(c.Unit.Health) || c.Unit.Damage < 0 || c.Unit.Speed < 0 {
		return fmt.Errorf("%w: bad unit stats %+v", ErrInvalidConfig, c.Unit)
	}

	kings := [2]int{}
	names := make(map[string]struct{}, len(c.Towers))
	for _, t := range c.Towers {
		if t.Name == "" {
			return fmt.Errorf("%w: tower without a name", ErrInvalidConfig)
		}
		if _, dup := names[t.Name]; dup {
			return fmt.Errorf("%w: duplicate tower %q", ErrInvalidConfig, t.Name)
		}
		names[t.Name] = struct{}{}
		if t.Team != 0 && t.Team != 1 {
			return fmt.Errorf("%w: tower %q has team %d", ErrInvalidConfig, t.Name, t.Team)
		}
		if !positive(t.Health) {
			return fmt.Errorf("%w: tower %q needs positive health", ErrInvalidConfig, t.Name)
		}
		switch t.Role {
		case RoleKing:
			kings[t.Team]++
		case RolePrincess:
		default:
			return fmt.Errorf("%w: tower %q has unknown role %q", ErrInvalidConfig, t.Name, t.Role)
		}
	}
	if kings[0] != 1 || kings[1] != 1 {
		return fmt.Errorf("%w: each side needs exactly one king tower, got %v", ErrInvalidConfig, kings)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
