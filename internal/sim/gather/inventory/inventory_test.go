package inventory

import (
	"testing"

	"voxelgather.ai/internal/sim/model"
)

type stacks map[string]int

func (s stacks) MaxStack(item string) int { return s[item] }

func TestAdd_TopsUpThenFillsEmptySlots(t *testing.T) {
	inv := New(3, stacks{"STICK": 4})
	inv.SetSlot(1, model.ItemStack{Item: "STICK", Count: 3})
	rem := inv.Add(model.ItemStack{Item: "STICK", Count: 6})
	if !rem.Empty() {
		t.Fatalf("unexpected remainder %+v", rem)
	}
	if inv.Slot(1).Count != 4 || inv.Slot(0).Count != 4 || inv.Slot(2).Count != 1 {
		t.Fatalf("unexpected layout: %+v %+v %+v", inv.Slot(0), inv.Slot(1), inv.Slot(2))
	}
}

func TestAdd_ReturnsRemainderWhenFull(t *testing.T) {
	inv := New(1, nil)
	rem := inv.Add(model.ItemStack{Item: "DIRT", Count: 70})
	if rem.Count != 6 || rem.Item != "DIRT" {
		t.Fatalf("expected 6 DIRT remainder, got %+v", rem)
	}
}

func TestRemove_AllOrNothing(t *testing.T) {
	inv := New(4, nil)
	inv.Add(model.ItemStack{Item: "COBBLESTONE", Count: 2})
	if inv.Remove("COBBLESTONE", 3) {
		t.Fatalf("expected short removal to fail")
	}
	if inv.CountOf("COBBLESTONE") != 2 {
		t.Fatalf("failed removal must not mutate")
	}
	if !inv.Remove("COBBLESTONE", 2) {
		t.Fatalf("expected removal")
	}
	if inv.CountOf("COBBLESTONE") != 0 || !inv.Slot(0).Empty() {
		t.Fatalf("expected empty slot, got %+v", inv.Slot(0))
	}
}

func TestExchange_RollsBackWhenGiveDoesNotFit(t *testing.T) {
	inv := New(1, stacks{"WOOD_AXE": 1})
	inv.Add(model.ItemStack{Item: "OAK_PLANKS", Count: 5})
	ok := inv.Exchange(
		[]Take{Exact("OAK_PLANKS", 3)},
		[]model.ItemStack{{Item: "WOOD_AXE", Count: 1}},
	)
	if ok {
		t.Fatalf("expected exchange to fail: slot still holds planks")
	}
	if inv.CountOf("OAK_PLANKS") != 5 {
		t.Fatalf("inventory mutated on failure: %#v", inv.Counts())
	}
}

func TestExchange_TakesAcrossMatchingItems(t *testing.T) {
	inv := New(4, nil)
	inv.Add(model.ItemStack{Item: "OAK_PLANKS", Count: 1})
	inv.Add(model.ItemStack{Item: "BIRCH_PLANKS", Count: 2})
	planks := func(id string) bool { return id == "OAK_PLANKS" || id == "BIRCH_PLANKS" }
	if !inv.Exchange([]Take{{Match: planks, Count: 3}}, []model.ItemStack{{Item: "STICK", Count: 4}}) {
		t.Fatalf("expected exchange")
	}
	if inv.CountMatching(planks) != 0 || inv.CountOf("STICK") != 4 {
		t.Fatalf("unexpected counts: %#v", inv.Counts())
	}
}

func TestMainHandIsNotCounted(t *testing.T) {
	inv := New(2, nil)
	inv.SetMainHand(model.ItemStack{Item: "IRON_PICKAXE", Count: 1})
	if inv.CountOf("IRON_PICKAXE") != 0 {
		t.Fatalf("main hand should not count as storage")
	}
	inv.SetMainHand(model.ItemStack{Item: "IRON_PICKAXE", Count: 0})
	if !inv.MainHand().Empty() || inv.MainHand().Item != "" {
		t.Fatalf("zero count should normalize to empty")
	}
}
