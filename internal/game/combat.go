package game

import (
	"math"

	"tcr-arena/internal/models"
)

// InEngagementRange reports whether the unit is close enough to hit the tower.
func InEngagementRange(unit *models.Unit, tower *models.Tower, radius float64) bool {
	dx := tower.X - unit.X
	dy := tower.Y - unit.Y
	return math.Sqrt(dx*dx+dy*dy) < radius
}

// ApplyDamageToTower reduces the tower's health, clamping at zero. Destroyed towers
// absorb nothing. Returns the damage actually dealt.
func ApplyDamageToTower(tower *models.Tower, damage float64) float64 {
	if !TowerAlive(tower) || damage <= 0 {
		return 0
	}
	before := tower.Health
	tower.Health -= damage
	if tower.Health < 0 {
		tower.Health = 0
	}
	return before - tower.Health
}

// ResolveAttacks lets every live unit hit every live opposing tower in range. Units take
// no damage back. Returns the names of towers destroyed during this pass.
func ResolveAttacks(units []*models.Unit, towers []*models.Tower, radius float64) []string {
	var destroyed []string
	for _, unit := range units {
		if !UnitAlive(unit) {
			continue
		}
		for _, tower := range towers {
			if tower.Team == unit.Team || !TowerAlive(tower) {
				continue
			}
			if !InEngagementRange(unit, tower, radius) {
				continue
			}
			ApplyDamageToTower(tower, unit.Damage)
			if !TowerAlive(tower) {
				destroyed = append(destroyed, tower.Name)
			}
		}
	}
	return destroyed
}

// KingDestroyed reports whether the king tower of the given team is down.
func KingDestroyed(towers []*models.Tower, team int) bool {
	for _, t := range towers {
		if t.Team == team && t.Role == models.RoleKing {
			return !TowerAlive(t)
		}
	}
	return false
}
