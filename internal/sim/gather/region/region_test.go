package region

import (
	"testing"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/policy"
	"voxelgather.ai/internal/sim/model"
)

type grid map[model.Vec3i]string

func (g grid) BlockAt(p model.Vec3i) string {
	if id, ok := g[p]; ok {
		return id
	}
	return "AIR"
}

type countingGrid struct {
	grid
	reads map[model.Vec3i]int
}

func (g *countingGrid) BlockAt(p model.Vec3i) string {
	g.reads[p]++
	return g.grid.BlockAt(p)
}

func testPolicy() *policy.Policy {
	return policy.New(policy.DefaultTable(), catalogs.Builtin())
}

func v(x, y, z int) model.Vec3i { return model.Vec3i{X: x, Y: y, Z: z} }

func TestFindVein_CapsSizeWithoutDuplicates(t *testing.T) {
	pol := testPolicy()
	g := grid{}
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			for z := 0; z < 5; z++ {
				g[v(x, y, z)] = "IRON_ORE"
			}
		}
	}
	cw := &countingGrid{grid: g, reads: map[model.Vec3i]int{}}
	out := FindVein(cw, pol, v(2, 2, 2))
	if len(out) != MaxVeinCells {
		t.Fatalf("len=%d want %d", len(out), MaxVeinCells)
	}
	seen := map[model.Vec3i]bool{}
	for i, p := range out {
		if seen[p] {
			t.Fatalf("duplicate %v", p)
		}
		seen[p] = true
		if g.BlockAt(p) != "IRON_ORE" {
			t.Fatalf("non-family cell %v", p)
		}
		if i > 0 && out[i-1].Y > p.Y {
			t.Fatalf("ore veins must be ordered bottom-up")
		}
	}
	for p, n := range cw.reads {
		if n > 1 {
			t.Fatalf("cell %v read %d times", p, n)
		}
	}
	assertConnected(t, out, v(2, 2, 2))
}

func TestFindVein_DepthVariantsJoin(t *testing.T) {
	pol := testPolicy()
	g := grid{
		v(0, 0, 0): "IRON_ORE",
		v(1, 0, 0): "DEEPSLATE_IRON_ORE",
		v(2, 1, 0): "IRON_ORE",
		v(0, 1, 0): "GOLD_ORE",
		v(5, 0, 0): "IRON_ORE",
	}
	out := FindVein(g, pol, v(0, 0, 0))
	if len(out) != 3 {
		t.Fatalf("expected 3 connected iron cells, got %v", out)
	}
	for _, p := range out {
		if p == v(0, 1, 0) || p == v(5, 0, 0) {
			t.Fatalf("unexpected cell %v", p)
		}
	}
}

func TestFindConnected_AirStartIsEmpty(t *testing.T) {
	if out := FindConnected(grid{}, testPolicy(), v(0, 0, 0), 10); len(out) != 0 {
		t.Fatalf("expected empty, got %v", out)
	}
}

func TestFindConnected_LogsTopDown(t *testing.T) {
	pol := testPolicy()
	g := grid{}
	for y := 0; y < 5; y++ {
		g[v(0, y, 0)] = "OAK_LOG"
	}
	out := FindConnected(g, pol, v(0, 0, 0), 10)
	if len(out) != 5 || out[0].Y != 4 || out[4].Y != 0 {
		t.Fatalf("expected top-down trunk, got %v", out)
	}
}

func TestFindTree_TrunkFirstThenCanopy(t *testing.T) {
	pol := testPolicy()
	g := grid{}
	for y := 0; y < 5; y++ {
		g[v(0, y, 0)] = "OAK_LOG"
	}
	for dx := -2; dx <= 2; dx++ {
		for dz := -2; dz <= 2; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			g[v(dx, 5, dz)] = "OAK_LEAVES"
		}
	}
	g[v(1, 1, 0)] = "BIRCH_LOG"
	g[v(0, 7, 0)] = "OAK_LEAVES" // reachable only through the radius-2 canopy search

	out := FindTree(g, pol, v(0, 0, 0))
	if len(out) != 5+24+1 {
		t.Fatalf("unexpected tree size %d: %v", len(out), out)
	}
	for i := 0; i < 5; i++ {
		if out[i] != v(0, 4-i, 0) {
			t.Fatalf("trunk[%d]=%v want top-down", i, out[i])
		}
	}
	for _, p := range out {
		if p == v(1, 1, 0) {
			t.Fatalf("birch log joined an oak tree")
		}
		if i := g.BlockAt(p); i != "OAK_LOG" && i != "OAK_LEAVES" {
			t.Fatalf("non-tree cell %v (%s)", p, i)
		}
	}
	if len(FindTree(g, pol, v(1, 5, 0))) != 0 {
		t.Fatalf("trees are only found from a log")
	}
}

func TestFindTree_Capped(t *testing.T) {
	pol := testPolicy()
	g := grid{}
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			for z := 0; z < 8; z++ {
				g[v(x, y, z)] = "SPRUCE_LOG"
			}
		}
	}
	if out := FindTree(g, pol, v(0, 0, 0)); len(out) != MaxTreeCells {
		t.Fatalf("len=%d want %d", len(out), MaxTreeCells)
	}
}

func TestFindNearest_PrefersInnerShellAndSkipsEnclosed(t *testing.T) {
	pol := testPolicy()
	g := grid{
		v(0, 0, 2): "COAL_ORE", // shell 2, dist 4
		v(2, 2, 2): "COAL_ORE", // shell 2, dist 12
		v(3, 0, 0): "COAL_ORE", // shell 3, dist 9
		v(1, 0, 0): "COAL_ORE", // shell 1 but enclosed
	}
	for _, n := range v(1, 0, 0).Faces() {
		g[n] = "STONE"
	}
	isCoal := func(id string) bool { return id == "COAL_ORE" }

	got, ok := FindNearest(g, v(0, 0, 0), isCoal, pol.IsSolid, 8)
	if !ok || got != v(0, 0, 2) {
		t.Fatalf("FindNearest=%v,%v want (0,0,2)", got, ok)
	}

	// Opening one face makes the shell-1 cell reachable.
	g[v(1, 1, 0)] = "AIR"
	got, ok = FindNearest(g, v(0, 0, 0), isCoal, pol.IsSolid, 8)
	if !ok || got != v(1, 0, 0) {
		t.Fatalf("FindNearest=%v,%v want (1,0,0)", got, ok)
	}

	if _, ok := FindNearest(g, v(0, 0, 0), isCoal, pol.IsSolid, 0); ok {
		t.Fatalf("radius 0 must find nothing")
	}
	if _, ok := FindNearest(g, v(100, 0, 0), isCoal, pol.IsSolid, 4); ok {
		t.Fatalf("expected nothing in range")
	}
}

func TestFindMatureCrops(t *testing.T) {
	pol := testPolicy()
	g := grid{
		v(1, 0, 0):   "WHEAT",
		v(0, 0, 1):   "WHEAT_YOUNG",
		v(-1, 0, -1): "CARROTS",
		v(0, 1, 0):   "WHEAT",
	}
	out := FindMatureCrops(g, pol, v(0, 0, 0), 1)
	if len(out) != 2 || out[0] != v(-1, 0, -1) || out[1] != v(1, 0, 0) {
		t.Fatalf("unexpected crops %v", out)
	}
}

func assertConnected(t *testing.T, cells []model.Vec3i, start model.Vec3i) {
	t.Helper()
	in := map[model.Vec3i]bool{}
	for _, p := range cells {
		in[p] = true
	}
	reached := map[model.Vec3i]bool{start: true}
	queue := []model.Vec3i{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		forEachNeighbor(cur, 1, func(n model.Vec3i) {
			if in[n] && !reached[n] {
				reached[n] = true
				queue = append(queue, n)
			}
		})
	}
	if len(reached) != len(cells) {
		t.Fatalf("result is not 26-connected: %d of %d reachable", len(reached), len(cells))
	}
}

func TestFindVein_SameSetFromEitherVariant(t *testing.T) {
	pol := testPolicy()
	g := grid{
		v(0, 10, 0): "IRON_ORE",
		v(1, 10, 0): "DEEPSLATE_IRON_ORE",
		v(2, 11, 1): "IRON_ORE",
		v(3, 12, 1): "DEEPSLATE_IRON_ORE",
		v(4, 12, 1): "COAL_ORE",
	}
	a := FindVein(g, pol, v(0, 10, 0))
	b := FindVein(g, pol, v(3, 12, 1))
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("len a=%d b=%d want 4", len(a), len(b))
	}
	in := map[model.Vec3i]bool{}
	for _, p := range a {
		in[p] = true
	}
	for _, p := range b {
		if !in[p] {
			t.Fatalf("%v found from one end only", p)
		}
	}
}
