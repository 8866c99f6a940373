package game

import (
	"math"

	"tcr-arena/internal/models"
)

// TowerView is the serialized form of a tower.
type TowerView struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health float64 `json:"health"`
	Team   int     `json:"team"`
	Role   string  `json:"role"`
}

// UnitView is the serialized form of a unit.
type UnitView struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Team   int     `json:"team"`
	Health float64 `json:"health"`
}

// Snapshot is an immutable copy of a match's entities, safe to hand to other goroutines.
type Snapshot struct {
	Towers map[string]TowerView `json:"towers"`
	Units  []UnitView           `json:"units"`
	Elixir [2]float64           `json:"elixir"`
}

// TakeSnapshot copies the current entity state. Health is rounded for display and never
// negative.
func TakeSnapshot(towers []*models.Tower, units []*models.Unit, elixir [2]float64) Snapshot {
	snap := Snapshot{
		Towers: make(map[string]TowerView, len(towers)),
		Units:  make([]UnitView, 0, len(units)),
		Elixir: elixir,
	}
	for _, t := range towers {
		snap.Towers[t.Name] = TowerView{
			X:      t.X,
			Y:      t.Y,
			Health: displayHealth(t.Health),
			Team:   t.Team,
			Role:   t.Role,
		}
	}
	for _, u := range units {
		snap.Units = append(snap.Units, UnitView{
			ID:     u.ID,
			X:      u.X,
			Y:      u.Y,
			Team:   u.Team,
			Health: displayHealth(u.Health),
		})
	}
	return snap
}

func displayHealth(h float64) float64 {
	if h <= 0 {
		return 0
	}
	return math.Round(h)
}
