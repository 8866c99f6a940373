package game

import (
	"math"

	"tcr-arena/internal/models"
)

// Advance moves the unit one tick toward the enemy side: team 0 walks toward decreasing y,
// team 1 toward increasing y.
func Advance(unit *models.Unit) {
	if unit.Team == 0 {
		unit.Y -= unit.Speed
	} else {
		unit.Y += unit.Speed
	}
}

// UnitAlive reports whether the unit still has health.
func UnitAlive(unit *models.Unit) bool {
	return unit.Health > 0
}

// TowerAlive reports whether the tower still has health.
func TowerAlive(tower *models.Tower) bool {
	return tower.Health > 0
}

// PurgeDead drops units with no health left, reusing the backing array.
func PurgeDead(units []*models.Unit) []*models.Unit {
	live := units[:0]
	for _, u := range units {
		if UnitAlive(u) {
			live = append(live, u)
		}
	}
	for i := len(live); i < len(units); i++ {
		units[i] = nil
	}
	return live
}

// elixirPrecision is the resolution elixir is rounded to after every step, so repeated
// 0.1 steps land on exact tenths.
const elixirPrecision = 1e6

// RegenerateElixir adds one regeneration step and clamps the result into [0, max].
func RegenerateElixir(current, step, max float64) float64 {
	return ClampElixir(math.Round((current+step)*elixirPrecision)/elixirPrecision, max)
}

// ClampElixir bounds an elixir value into [0, max].
func ClampElixir(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

// NewTowers instantiates the layout's towers for a fresh match.
func NewTowers(specs []models.TowerSpec) []*models.Tower {
	towers := make([]*models.Tower, 0, len(specs))
	for _, s := range specs {
		towers = append(towers, &models.Tower{
			Name:   s.Name,
			Role:   s.Role,
			Team:   s.Team,
			X:      s.X,
			Y:      s.Y,
			Health: s.Health,
		})
	}
	return towers
}

// NewUnit builds a unit with the baseline stats for the given team.
func NewUnit(id, unitType string, team int, at models.Point, stats models.UnitStats) *models.Unit {
	return &models.Unit{
		ID:       id,
		UnitType: unitType,
		Team:     team,
		X:        at.X,
		Y:        at.Y,
		Health:   stats.Health,
		Damage:   stats.Damage,
		Speed:    stats.Speed,
	}
}
