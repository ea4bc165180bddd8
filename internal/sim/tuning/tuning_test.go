package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Gather.StuckTimeoutTicks != 300 || tu.Gather.NoTargetFailTicks != 200 {
		t.Fatalf("unexpected defaults: %+v", tu.Gather)
	}
	if tu.Storage.Timeout().Milliseconds() != 200 {
		t.Fatalf("unexpected storage timeout: %v", tu.Storage.Timeout())
	}
}

func TestLoad_OverridesAndPolicyTable(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gather.yaml")
	raw := `
tick_rate_hz: 10
gather:
  far_distance: 5
  vein_max: 16
storage:
  url: ws://127.0.0.1:9000/v1/storage
policy:
  tiers: {WOOD: 0, GOLD: 1, STONE: 1, IRON: 2, DIAMOND: 3, NETHERITE: 4}
  aliases: {"iron ingot": "iron ore"}
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 10 || tu.Gather.FarDistance != 5 || tu.Gather.VeinMax != 16 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Gather.NearDistance != 2.5 {
		t.Fatalf("untouched fields should keep defaults, got near=%v", tu.Gather.NearDistance)
	}
	if tu.Policy.Tiers["GOLD"] != 1 {
		t.Fatalf("expected GOLD tier override")
	}
	if tu.Policy.Aliases["IRON_INGOT"] != "IRON_ORE" {
		t.Fatalf("expected normalized alias, got %#v", tu.Policy.Aliases)
	}
	if tu.Storage.URL == "" {
		t.Fatalf("expected storage url")
	}
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gather.yaml")
	if err := os.WriteFile(p, []byte("gather:\n  near_distance: 6\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_WorldAndAccessPoints(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gather.yaml")
	raw := `
world:
  height: 64
  spawn_clear_radius: 12
storage:
  access_points:
    - {pos: [4, 65, -2], kind: " terminal"}
    - {pos: [0, 65, 8]}
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.World.Height != 64 || tu.World.SpawnClearRadius != 12 || tu.World.BiomeRegionSize != 64 {
		t.Fatalf("unexpected world: %+v", tu.World)
	}
	aps := tu.Storage.AccessPoints
	if len(aps) != 2 || aps[0].Kind != "TERMINAL" || aps[0].Pos != [3]int{4, 65, -2} || aps[1].Kind != "" {
		t.Fatalf("unexpected access points: %+v", aps)
	}

	if err := os.WriteFile(p, []byte("world:\n  height: 12\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected a too-short world to be rejected")
	}
}
