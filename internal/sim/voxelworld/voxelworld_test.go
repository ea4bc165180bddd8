package voxelworld

import (
	"testing"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/model"
)

func flatWorld() *Store {
	cats := catalogs.Builtin()
	return NewStore(&cats.Blocks, Gen{Seed: 7, Height: 48, SurfaceY: 32, SpawnClearRadius: 10000})
}

func TestStore_FlatLayers(t *testing.T) {
	w := flatWorld()
	g := w.Gen()
	if g.DeepslateY != 26 {
		t.Fatalf("DeepslateY=%d", g.DeepslateY)
	}
	col := func(y int) string { return w.BlockAt(model.Vec3i{X: 3, Y: y, Z: -5}) }
	if col(-1) != "BEDROCK" || col(0) != "BEDROCK" {
		t.Fatalf("expected bedrock floor, got %s %s", col(-1), col(0))
	}
	if col(10) != "DEEPSLATE" || col(27) != "STONE" {
		t.Fatalf("unexpected rock layers %s %s", col(10), col(27))
	}
	if top := col(31); top != "GRASS_BLOCK" && top != "SAND" {
		t.Fatalf("unexpected top %s", top)
	}
	if col(32) != catalogs.AirID || col(100) != catalogs.AirID {
		t.Fatalf("expected air above ground")
	}
	if w.StandY(3, -5) != 32 {
		t.Fatalf("StandY=%d", w.StandY(3, -5))
	}
}

func TestStore_ClearBlockReturnsDrops(t *testing.T) {
	w := flatWorld()
	p := model.Vec3i{X: 1, Y: 32, Z: 1}
	w.SetBlock(p, "IRON_ORE")
	if w.BlockAt(p) != "IRON_ORE" || w.ResistanceAt(p) != 3.0 {
		t.Fatalf("SetBlock did not stick")
	}
	drops := w.ClearBlock(p)
	if len(drops) != 1 || drops[0].Item != "RAW_IRON" || drops[0].Count != 1 {
		t.Fatalf("unexpected drops %+v", drops)
	}
	if w.BlockAt(p) != catalogs.AirID {
		t.Fatalf("block not cleared")
	}
	if w.ClearBlock(p) != nil {
		t.Fatalf("clearing air must not drop anything")
	}
	w.SetBlock(p, "NOT_A_BLOCK")
	if w.BlockAt(p) != catalogs.AirID {
		t.Fatalf("unknown id must be ignored")
	}
}

func TestStore_DeterministicGeneration(t *testing.T) {
	cats := catalogs.Builtin()
	gen := Gen{Seed: 12345, Height: 80}
	a := NewStore(&cats.Blocks, gen)
	b := NewStore(&cats.Blocks, gen)
	counts := map[string]int{}
	for x := -40; x < 40; x++ {
		for z := -40; z < 40; z++ {
			for y := 40; y < 64; y++ {
				p := model.Vec3i{X: x, Y: y, Z: z}
				id := a.BlockAt(p)
				if id != b.BlockAt(p) {
					t.Fatalf("mismatch at %v", p)
				}
				counts[id]++
			}
		}
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digests differ")
	}
	other := NewStore(&cats.Blocks, Gen{Seed: 54321, Height: 80})
	for x := -40; x < 40; x++ {
		for z := -40; z < 40; z++ {
			other.BlockAt(model.Vec3i{X: x, Y: 50, Z: z})
		}
	}
	if other.Digest() == a.Digest() {
		t.Fatalf("different seeds should differ")
	}
}

func TestWalker_WalksClimbsAndStops(t *testing.T) {
	w := flatWorld()
	k := NewWalker(w, model.Vec3f{X: 0.5, Y: 32, Z: 0.5})

	// One-high platform at x=3..4, a three-high wall at x=6.
	for z := -3; z <= 3; z++ {
		w.SetBlock(model.Vec3i{X: 3, Y: 32, Z: z}, "STONE")
		w.SetBlock(model.Vec3i{X: 4, Y: 32, Z: z}, "STONE")
		w.SetBlock(model.Vec3i{X: 6, Y: 32, Z: z}, "STONE")
		w.SetBlock(model.Vec3i{X: 6, Y: 33, Z: z}, "STONE")
		w.SetBlock(model.Vec3i{X: 6, Y: 34, Z: z}, "STONE")
	}
	k.MoveTo(model.Vec3f{X: 4.5, Y: 33, Z: 0.5}, 1)
	for i := 0; i < 100 && !k.NavIdle(); i++ {
		k.Step()
	}
	if got := k.Position(); got.Block() != (model.Vec3i{X: 4, Y: 33, Z: 0}) {
		t.Fatalf("expected to climb onto the platform, at %+v", got)
	}

	k.MoveTo(model.Vec3f{X: 9.5, Y: 32, Z: 0.5}, 1)
	for i := 0; i < 100 && !k.NavIdle(); i++ {
		k.Step()
	}
	if got := k.Position().Block(); got.X != 5 {
		t.Fatalf("expected to stop in front of the wall, at %+v", got)
	}
}

func TestWalker_FallsIntoPit(t *testing.T) {
	w := flatWorld()
	k := NewWalker(w, model.Vec3f{X: 0.5, Y: 32, Z: 0.5})
	w.ClearBlock(model.Vec3i{X: 0, Y: 31, Z: 0})
	w.ClearBlock(model.Vec3i{X: 0, Y: 30, Z: 0})
	k.Step()
	if k.Position().Y != 30 {
		t.Fatalf("expected to fall to y=30, at %+v", k.Position())
	}
}
