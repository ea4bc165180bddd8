package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxelgather.ai/internal/sim/gather/policy"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// StarterItems are given to every agent gatherd spawns.
	StarterItems map[string]int `yaml:"starter_items"`

	Gather  Gather       `yaml:"gather"`
	Storage Storage      `yaml:"storage"`
	World   WorldGen     `yaml:"world"`
	Policy  policy.Table `yaml:"policy"`
}

// WorldGen drives the generated demo world of gatherd.
type WorldGen struct {
	Height                      int `yaml:"height"`
	BoundaryR                   int `yaml:"boundary_r"`
	BiomeRegionSize             int `yaml:"biome_region_size"`
	SpawnClearRadius            int `yaml:"spawn_clear_radius"`
	OreClusterProbScalePermille int `yaml:"ore_cluster_prob_scale_permille"`
	TreeProbScalePermille       int `yaml:"tree_prob_scale_permille"`
	CropProbScalePermille       int `yaml:"crop_prob_scale_permille"`
}

// Gather holds the extraction task thresholds. Distances are in blocks,
// durations in ticks.
type Gather struct {
	DefaultSearchRadius int `yaml:"default_search_radius"`
	MaxSearchRadius     int `yaml:"max_search_radius"`

	PickupRadius  float64 `yaml:"pickup_radius"`
	FarDistance   float64 `yaml:"far_distance"`
	NearDistance  float64 `yaml:"near_distance"`
	MoveSpeed     float64 `yaml:"move_speed"`
	ApproachSpeed float64 `yaml:"approach_speed"`

	SwingEveryTicks   int     `yaml:"swing_every_ticks"`
	BaseExtractTicks  int     `yaml:"base_extract_ticks"`
	ResistanceTicks   float64 `yaml:"resistance_ticks"`
	UnbreakableTicks  int     `yaml:"unbreakable_ticks"`
	NoTargetFailTicks int     `yaml:"no_target_fail_ticks"`
	StuckTimeoutTicks int     `yaml:"stuck_timeout_ticks"`

	VeinMax    int `yaml:"vein_max"`
	TreeMax    int `yaml:"tree_max"`
	CropRadius int `yaml:"crop_radius"`

	DisableVeinFollow bool `yaml:"disable_vein_follow"`
	ApplyToolSpeed    bool `yaml:"apply_tool_speed"`
}

type Storage struct {
	URL          string `yaml:"url"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	AccessRadius int    `yaml:"access_radius"`

	// AccessPoints are the network's interface blocks in the world.
	AccessPoints []AccessPoint `yaml:"access_points"`
}

type AccessPoint struct {
	Pos  [3]int `yaml:"pos"`
	Kind string `yaml:"kind"`
}

func (s Storage) Timeout() time.Duration { return time.Duration(s.TimeoutMs) * time.Millisecond }

func Defaults() Tuning {
	return Tuning{
		TickRateHz:   20,
		StarterItems: map[string]int{"OAK_PLANKS": 8, "STICK": 4},
		Gather: Gather{
			DefaultSearchRadius: 16,
			MaxSearchRadius:     48,
			PickupRadius:        3.0,
			FarDistance:         4.0,
			NearDistance:        2.5,
			MoveSpeed:           1.0,
			ApproachSpeed:       0.8,
			SwingEveryTicks:     5,
			BaseExtractTicks:    30,
			ResistanceTicks:     10,
			UnbreakableTicks:    1000,
			NoTargetFailTicks:   200, // ~10s at 20Hz
			StuckTimeoutTicks:   300, // ~15s at 20Hz
			VeinMax:             64,
			TreeMax:             128,
			CropRadius:          4,
		},
		Storage: Storage{
			TimeoutMs:    200,
			AccessRadius: 8,
		},
		World: WorldGen{
			Height:           96,
			BoundaryR:        4000,
			BiomeRegionSize:  64,
			SpawnClearRadius: 6,
		},
		Policy: policy.DefaultTable(),
	}
}

// Load reads gather.yaml on top of Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("gather.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("gather.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	def := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = def.TickRateHz
	}
	g := &t.Gather
	if g.DefaultSearchRadius <= 0 {
		g.DefaultSearchRadius = def.Gather.DefaultSearchRadius
	}
	if g.MaxSearchRadius <= 0 {
		g.MaxSearchRadius = def.Gather.MaxSearchRadius
	}
	if g.PickupRadius <= 0 {
		g.PickupRadius = def.Gather.PickupRadius
	}
	if g.FarDistance <= 0 {
		g.FarDistance = def.Gather.FarDistance
	}
	if g.NearDistance <= 0 {
		g.NearDistance = def.Gather.NearDistance
	}
	if g.MoveSpeed <= 0 {
		g.MoveSpeed = def.Gather.MoveSpeed
	}
	if g.ApproachSpeed <= 0 {
		g.ApproachSpeed = def.Gather.ApproachSpeed
	}
	if g.SwingEveryTicks <= 0 {
		g.SwingEveryTicks = def.Gather.SwingEveryTicks
	}
	if g.BaseExtractTicks <= 0 {
		g.BaseExtractTicks = def.Gather.BaseExtractTicks
	}
	if g.ResistanceTicks < 0 {
		g.ResistanceTicks = def.Gather.ResistanceTicks
	}
	if g.UnbreakableTicks <= 0 {
		g.UnbreakableTicks = def.Gather.UnbreakableTicks
	}
	if g.NoTargetFailTicks <= 0 {
		g.NoTargetFailTicks = def.Gather.NoTargetFailTicks
	}
	if g.StuckTimeoutTicks <= 0 {
		g.StuckTimeoutTicks = def.Gather.StuckTimeoutTicks
	}
	if g.VeinMax <= 0 {
		g.VeinMax = def.Gather.VeinMax
	}
	if g.TreeMax <= 0 {
		g.TreeMax = def.Gather.TreeMax
	}
	if g.CropRadius <= 0 {
		g.CropRadius = def.Gather.CropRadius
	}
	if t.Storage.TimeoutMs <= 0 {
		t.Storage.TimeoutMs = def.Storage.TimeoutMs
	}
	if t.Storage.AccessRadius <= 0 {
		t.Storage.AccessRadius = def.Storage.AccessRadius
	}
	if t.StarterItems == nil {
		t.StarterItems = def.StarterItems
	}
	t.Storage.URL = strings.TrimSpace(t.Storage.URL)
	for i := range t.Storage.AccessPoints {
		t.Storage.AccessPoints[i].Kind = strings.ToUpper(strings.TrimSpace(t.Storage.AccessPoints[i].Kind))
	}
	if t.World.Height <= 0 {
		t.World.Height = def.World.Height
	}
	if t.World.BiomeRegionSize <= 0 {
		t.World.BiomeRegionSize = def.World.BiomeRegionSize
	}
	t.Policy.Normalize()
}

func (t Tuning) Validate() error {
	g := t.Gather
	if g.NearDistance >= g.FarDistance {
		return fmt.Errorf("near_distance (%v) must be below far_distance (%v)", g.NearDistance, g.FarDistance)
	}
	if g.DefaultSearchRadius > g.MaxSearchRadius {
		return fmt.Errorf("default_search_radius (%d) exceeds max_search_radius (%d)", g.DefaultSearchRadius, g.MaxSearchRadius)
	}
	if g.UnbreakableTicks <= g.BaseExtractTicks {
		return fmt.Errorf("unbreakable_ticks must exceed base_extract_ticks")
	}
	if t.World.Height < 24 {
		return fmt.Errorf("world.height (%d) must be at least 24", t.World.Height)
	}
	return t.Policy.Validate()
}
