package voxelworld

// Gen configures the deterministic terrain generator. The same seed and
// settings always produce the same blocks.
type Gen struct {
	Seed       int64
	Height     int
	SurfaceY   int // first air layer above flat ground
	DeepslateY int // stone and ores at or below this height use deepslate variants
	BoundaryR  int

	BiomeRegionSize             int
	SpawnClearRadius            int
	OreClusterProbScalePermille int
	TreeProbScalePermille       int
	CropProbScalePermille       int
}

func (g *Gen) normalize() {
	if g.Height <= 0 {
		g.Height = 96
	}
	if g.SurfaceY <= 0 || g.SurfaceY >= g.Height-8 {
		g.SurfaceY = g.Height * 2 / 3
	}
	if g.DeepslateY <= 0 || g.DeepslateY >= g.SurfaceY {
		g.DeepslateY = g.SurfaceY - 6
	}
	if g.BiomeRegionSize <= 0 {
		g.BiomeRegionSize = 64
	}
}

type oreLayer struct {
	seed         int64
	shallow      string
	deep         string
	grid, radius int
	prob         uint64
}

// Rare ores first.
var oreLayers = []oreLayer{
	{seed: 101, shallow: "DIAMOND_ORE", deep: "DEEPSLATE_DIAMOND_ORE", grid: 96, radius: 1, prob: 200},
	{seed: 102, shallow: "GOLD_ORE", deep: "DEEPSLATE_GOLD_ORE", grid: 80, radius: 2, prob: 250},
	{seed: 103, shallow: "IRON_ORE", deep: "DEEPSLATE_IRON_ORE", grid: 40, radius: 2, prob: 450},
	{seed: 104, shallow: "COPPER_ORE", deep: "DEEPSLATE_COPPER_ORE", grid: 48, radius: 2, prob: 450},
	{seed: 105, shallow: "COAL_ORE", deep: "DEEPSLATE_COAL_ORE", grid: 32, radius: 3, prob: 650},
}

type genIDs struct {
	stone, deepslate, dirt, grass, sand uint16
	ores                                [][2]uint16
	logs, leaves                        [2]uint16
	crops                               [2][2]uint16 // [crop][young, mature]
}

func resolveGenIDs(pid func(string) uint16) genIDs {
	ids := genIDs{
		stone:     pid("STONE"),
		deepslate: pid("DEEPSLATE"),
		dirt:      pid("DIRT"),
		grass:     pid("GRASS_BLOCK"),
		sand:      pid("SAND"),
		logs:      [2]uint16{pid("OAK_LOG"), pid("BIRCH_LOG")},
		leaves:    [2]uint16{pid("OAK_LEAVES"), pid("BIRCH_LEAVES")},
		crops: [2][2]uint16{
			{pid("WHEAT_YOUNG"), pid("WHEAT")},
			{pid("CARROTS_YOUNG"), pid("CARROTS")},
		},
	}
	for _, l := range oreLayers {
		ids.ores = append(ids.ores, [2]uint16{pid(l.shallow), pid(l.deep)})
	}
	return ids
}

const (
	biomePlains = "PLAINS"
	biomeForest = "FOREST"
	biomeDesert = "DESERT"
)

func biomeAt(seed int64, x, z, regionSize int) string {
	switch hash2(seed, floorDiv(x, regionSize), floorDiv(z, regionSize)) % 3 {
	case 0:
		return biomePlains
	case 1:
		return biomeForest
	default:
		return biomeDesert
	}
}

func (s *Store) generateChunk(ch *Chunk) {
	for z := 0; z < chunkSize; z++ {
		for x := 0; x < chunkSize; x++ {
			s.generateColumn(ch, x, z, ch.CX*chunkSize+x, ch.CZ*chunkSize+z)
		}
	}
}

func (s *Store) generateColumn(ch *Chunk, lx, lz, wx, wz int) {
	g := s.gen
	set := func(y int, b uint16) {
		if y >= 0 && y < g.Height {
			ch.Blocks[ch.index(lx, y, lz)] = b
		}
	}

	biome := biomeAt(g.Seed, wx, wz, g.BiomeRegionSize)
	top := g.SurfaceY - 1
	set(0, s.bedrock)
	for y := 1; y < top; y++ {
		switch {
		case y <= g.DeepslateY:
			set(y, s.ids.deepslate)
		case y < top-3:
			set(y, s.ids.stone)
		case biome == biomeDesert:
			set(y, s.ids.sand)
		default:
			set(y, s.ids.dirt)
		}
	}
	if biome == biomeDesert {
		set(top, s.ids.sand)
	} else {
		set(top, s.ids.grass)
	}

	if withinRadius(wx, wz, g.SpawnClearRadius) {
		return
	}

	// Ore veins break through the ground and reach down into deepslate.
	for i, l := range oreLayers {
		if _, _, _, ok := gridFeature(g.Seed+l.seed, wx, wz, l.grid, l.radius, scalePermille(l.prob, g.OreClusterProbScalePermille)); !ok {
			continue
		}
		depth := 2 + int(hash3(g.Seed+l.seed, wx, 0, wz)%7)
		for y := top; y > top-depth && y > 0; y-- {
			if y <= g.DeepslateY {
				set(y, s.ids.ores[i][1])
			} else {
				set(y, s.ids.ores[i][0])
			}
		}
		return
	}

	switch biome {
	case biomeForest:
		s.placeTree(set, wx, wz, 450)
	case biomePlains:
		if !s.placeTree(set, wx, wz, 80) {
			s.placeCrop(set, wx, wz)
		}
	}
}

// placeTree writes the part of a tree that falls into column (wx, wz): the
// trunk on its center column, leaves within radius 2 around the crown.
func (s *Store) placeTree(set func(int, uint16), wx, wz int, prob uint64) bool {
	g := s.gen
	cx, cz, h, ok := gridFeature(g.Seed+201, wx, wz, 9, 2, scalePermille(prob, g.TreeProbScalePermille))
	if !ok {
		return false
	}
	species := int((h >> 30) & 1)
	height := 4 + int((h>>32)%3)
	base := g.SurfaceY
	crown := base + height - 1

	dx, dz := wx-cx, wz-cz
	if dx == 0 && dz == 0 {
		for y := base; y <= crown; y++ {
			set(y, s.ids.logs[species])
		}
		set(crown+1, s.ids.leaves[species])
		return true
	}
	cheb := max(abs(dx), abs(dz))
	for y := crown - 1; y <= crown+1; y++ {
		r := 2
		if y > crown {
			r = 1
		}
		if cheb <= r {
			set(y, s.ids.leaves[species])
		}
	}
	return true
}

func (s *Store) placeCrop(set func(int, uint16), wx, wz int) {
	g := s.gen
	_, _, h, ok := gridFeature(g.Seed+501, wx, wz, 40, 3, scalePermille(500, g.CropProbScalePermille))
	if !ok {
		return
	}
	crop := int((h >> 40) & 1)
	stage := 1
	if hash2(g.Seed+502, wx, wz)%10 < 3 {
		stage = 0
	}
	set(g.SurfaceY-1, s.ids.dirt)
	set(g.SurfaceY, s.ids.crops[crop][stage])
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
