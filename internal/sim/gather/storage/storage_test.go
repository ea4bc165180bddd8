package storage

import (
	"context"
	"errors"
	"testing"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/model"
)

func TestMemory_ExtractMatchingTool(t *testing.T) {
	cats := catalogs.Builtin()
	m := NewMemory(&cats.Items)
	term := model.Vec3i{X: 1, Y: 64, Z: 1}
	m.AddAccessPoint(AccessPoint{Pos: term, Kind: KindTerminal})
	m.Deposit(model.ItemStack{Item: "IRON_PICKAXE", Count: 1})
	m.Deposit(model.ItemStack{Item: "IRON_AXE", Count: 2})
	m.Deposit(model.ItemStack{Item: "COBBLESTONE", Count: 64})

	got, err := m.ExtractMatching(context.Background(), term, Query{Tool: "AXE"})
	if err != nil {
		t.Fatalf("ExtractMatching: %v", err)
	}
	if len(got) != 1 || got[0].Item != "IRON_AXE" || got[0].Count != 1 {
		t.Fatalf("unexpected extraction %+v", got)
	}
	if m.CountOf("IRON_AXE") != 1 || m.CountOf("IRON_PICKAXE") != 1 {
		t.Fatalf("unexpected stock after extraction")
	}

	got, err = m.ExtractMatching(context.Background(), term, Query{Items: []string{"COBBLESTONE"}, Max: 10})
	if err != nil || len(got) != 1 || got[0].Count != 10 {
		t.Fatalf("item query: %+v %v", got, err)
	}

	got, err = m.ExtractMatching(context.Background(), term, Query{Tool: "HOE"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected nothing for hoe, got %+v %v", got, err)
	}
}

func TestMemory_RequiresAccessPoint(t *testing.T) {
	cats := catalogs.Builtin()
	m := NewMemory(&cats.Items)
	m.Deposit(model.ItemStack{Item: "STONE_SHOVEL", Count: 1})
	_, err := m.ExtractMatching(context.Background(), model.Vec3i{}, Query{Tool: "SHOVEL"})
	if !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.AddAccessPoint(AccessPoint{Pos: model.Vec3i{}})
	if _, err := m.ExtractMatching(ctx, model.Vec3i{}, Query{Tool: "SHOVEL"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if m.CountOf("STONE_SHOVEL") != 1 {
		t.Fatalf("cancelled extraction must not remove items")
	}
}

func TestMemory_AccessPointsNearPrefersTerminals(t *testing.T) {
	m := NewMemory(nil)
	origin := model.Vec3i{}
	m.AddAccessPoint(AccessPoint{Pos: model.Vec3i{X: 1}, Kind: KindChest})
	m.AddAccessPoint(AccessPoint{Pos: model.Vec3i{X: 5}, Kind: KindTerminal})
	m.AddAccessPoint(AccessPoint{Pos: model.Vec3i{X: 2}, Kind: KindDrive})
	m.AddAccessPoint(AccessPoint{Pos: model.Vec3i{X: 30}, Kind: KindTerminal})

	got := m.AccessPointsNear(origin, 8)
	if len(got) != 3 {
		t.Fatalf("expected 3 points in range, got %+v", got)
	}
	if got[0].Kind != KindTerminal || got[1].Kind != KindDrive || got[2].Kind != KindChest {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestUnavailable(t *testing.T) {
	var s Service = Unavailable{}
	if s.Available() {
		t.Fatalf("expected unavailable")
	}
	if _, err := s.ExtractMatching(context.Background(), model.Vec3i{}, Query{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPoints_DefaultsKindAndSortsByDistance(t *testing.T) {
	pts := Points{
		{Pos: model.Vec3i{X: 4}},
		{Pos: model.Vec3i{X: -2}},
		{Pos: model.Vec3i{Y: 9}},
	}
	got := pts.AccessPointsNear(model.Vec3i{}, 8)
	if len(got) != 2 || got[0].Pos.X != -2 || got[1].Kind != KindChest {
		t.Fatalf("unexpected points %+v", got)
	}
}
