package game

import (
	"testing"

	"tcr-arena/internal/models"
)

func TestAdvanceMovesTowardEnemySide(t *testing.T) {
	blue := &models.Unit{Team: 0, Y: 600, Speed: 1}
	red := &models.Unit{Team: 1, Y: 200, Speed: 2}

	Advance(blue)
	Advance(red)

	if blue.Y != 599 {
		t.Fatalf("team 0 unit should move to y=599, got %v", blue.Y)
	}
	if red.Y != 202 {
		t.Fatalf("team 1 unit should move to y=202, got %v", red.Y)
	}
}

func TestRegenerateElixirNeverExceedsMax(t *testing.T) {
	elixir := 5.0
	for i := 0; i < 500; i++ {
		next := RegenerateElixir(elixir, 0.1, 10)
		if next < elixir {
			t.Fatalf("regeneration decreased elixir from %v to %v", elixir, next)
		}
		if next > 10 {
			t.Fatalf("elixir exceeded max: %v", next)
		}
		elixir = next
	}
	if elixir != 10 {
		t.Fatalf("expected elixir to settle at 10, got %v", elixir)
	}
}

func TestRegenerateElixirLandsOnExactTenths(t *testing.T) {
	elixir := 2.0
	for i := 0; i < 30; i++ {
		elixir = RegenerateElixir(elixir, 0.1, 10)
	}
	if elixir != 5 {
		t.Fatalf("expected exactly 5 after 30 steps from 2, got %v", elixir)
	}
}

func TestPurgeDeadKeepsLiveUnitsInOrder(t *testing.T) {
	units := []*models.Unit{
		{ID: "a", Health: 10},
		{ID: "b", Health: 0},
		{ID: "c", Health: -5},
		{ID: "d", Health: 1},
	}
	live := PurgeDead(units)
	if len(live) != 2 || live[0].ID != "a" || live[1].ID != "d" {
		t.Fatalf("unexpected survivors: %+v", live)
	}
}

func TestTakeSnapshotIsDetached(t *testing.T) {
	towers := NewTowers(models.DefaultGameConfig().Towers)
	units := []*models.Unit{NewUnit("u1", "knight", 0, models.Point{X: 10, Y: 20}, models.UnitStats{Health: 500.4, Damage: 50, Speed: 1})}

	snap := TakeSnapshot(towers, units, [2]float64{5, 5})
	towers[0].Health = 0
	units[0].X = 99

	king := snap.Towers["leftKing"]
	if king.Health != 3000 || king.Role != models.RoleKing || king.Team != 0 {
		t.Fatalf("snapshot tower changed or malformed: %+v", king)
	}
	if len(snap.Units) != 1 || snap.Units[0].X != 10 {
		t.Fatalf("snapshot unit changed: %+v", snap.Units)
	}
	if snap.Units[0].Health != 500 {
		t.Fatalf("expected display health rounded to 500, got %v", snap.Units[0].Health)
	}
}
