package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/model"
)

func TestStock_LoadAndApply(t *testing.T) {
	p := filepath.Join(t.TempDir(), "storage.yaml")
	raw := `
access_points:
  - {pos: [4, 65, -2], kind: terminal}
  - {pos: [0, 65, 8]}
stock:
  IRON_PICKAXE: 2
  OAK_PLANKS: 64
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := loadStock(p)
	if err != nil {
		t.Fatalf("loadStock: %v", err)
	}
	cats := catalogs.Builtin()
	mem := storage.NewMemory(&cats.Items)
	if err := st.apply(mem, &cats.Items); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if mem.CountOf("IRON_PICKAXE") != 2 || mem.CountOf("OAK_PLANKS") != 64 {
		t.Fatalf("stock not deposited")
	}
	pts := mem.AccessPointsNear(model.Vec3i{X: 2, Y: 65, Z: 2}, 8)
	if len(pts) != 2 || pts[0].Kind != storage.KindTerminal || pts[1].Kind != storage.KindChest {
		t.Fatalf("unexpected access points %+v", pts)
	}

	got, err := mem.ExtractMatching(context.Background(), model.Vec3i{X: 4, Y: 65, Z: -2}, storage.Query{Items: []string{"IRON_PICKAXE"}, Max: 1})
	if err != nil || len(got) != 1 || got[0].Count != 1 {
		t.Fatalf("extract: %+v %v", got, err)
	}
}

func TestStock_RejectsUnknownItems(t *testing.T) {
	cats := catalogs.Builtin()
	st := stockFile{Stock: map[string]int{"MITHRIL": 1}}
	if err := st.apply(storage.NewMemory(&cats.Items), &cats.Items); err == nil {
		t.Fatalf("expected error")
	}
}
