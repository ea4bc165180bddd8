package provision

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"voxelgather.ai/internal/sim/gather/inventory"
	"voxelgather.ai/internal/sim/gather/policy"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/model"
)

// Inventory is what provisioning needs from the agent's inventory.
// *inventory.Inventory implements it.
type Inventory interface {
	Len() int
	Slot(i int) model.ItemStack
	SetSlot(i int, s model.ItemStack)
	MainHand() model.ItemStack
	SetMainHand(s model.ItemStack)
	CountOf(item string) int
	Remove(item string, n int) bool
	Add(s model.ItemStack) model.ItemStack
	Exchange(take []inventory.Take, give []model.ItemStack) bool
}

type Source int

const (
	SourceNone Source = iota
	SourceNotNeeded
	SourceEquipped
	SourceInventory
	SourceStorage
	SourceCrafted
)

func (s Source) String() string {
	switch s {
	case SourceNotNeeded:
		return "not_needed"
	case SourceEquipped:
		return "equipped"
	case SourceInventory:
		return "inventory"
	case SourceStorage:
		return "storage"
	case SourceCrafted:
		return "crafted"
	default:
		return "none"
	}
}

type Result struct {
	Ready  bool
	Reason string
	Source Source
	// Tool is the equipped tool when Ready and a tool was needed.
	Tool string
	// Spill holds items pulled from storage that did not fit the inventory.
	// The caller drops them at the agent's position.
	Spill []model.ItemStack
}

type Provisioner struct {
	pol     *policy.Policy
	store   storage.Service
	timeout time.Duration
	log     *log.Logger
}

// New builds a Provisioner. A nil store behaves like storage.Unavailable; a
// non-positive timeout defaults to 200ms.
func New(pol *policy.Policy, store storage.Service, timeout time.Duration, logger *log.Logger) *Provisioner {
	if store == nil {
		store = storage.Unavailable{}
	}
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Provisioner{pol: pol, store: store, timeout: timeout, log: logger}
}

// EnsureTool makes sure the main hand holds a tool able to extract block,
// trying in order: what is equipped, the inventory, the storage network at
// access (if given), then crafting. A failed attempt leaves inv unchanged.
func (p *Provisioner) EnsureTool(ctx context.Context, inv Inventory, block string, access *model.Vec3i) Result {
	req := p.pol.RequiredTool(block)
	if req == policy.ToolNone {
		return Result{Ready: true, Reason: "no specific tool needed", Source: SourceNotNeeded}
	}
	if held := inv.MainHand(); p.pol.Satisfies(held.Item, req) {
		return Result{Ready: true, Reason: "already equipped", Source: SourceEquipped, Tool: held.Item}
	}
	if tool, ok := p.equipBest(inv, req); ok {
		return Result{Ready: true, Reason: "equipped from inventory", Source: SourceInventory, Tool: tool}
	}

	var spill []model.ItemStack
	if access != nil && p.store.Available() {
		var ok bool
		spill, ok = p.fromStorage(ctx, inv, req, *access)
		if ok {
			if tool, ok := p.equipBest(inv, req); ok {
				return Result{Ready: true, Reason: "retrieved from storage", Source: SourceStorage, Tool: tool, Spill: spill}
			}
		}
	}

	if tool, ok := p.craft(inv, req); ok {
		if _, ok := p.equipBest(inv, req); ok {
			p.log.Printf("crafted %s", tool)
			return Result{Ready: true, Reason: "crafted new tool", Source: SourceCrafted, Tool: tool, Spill: spill}
		}
	}

	return Result{
		Ready:  false,
		Reason: fmt.Sprintf("no %s available and can't craft one", req),
		Source: SourceNone,
		Spill:  spill,
	}
}

// equipBest swaps the highest-tier matching slot item into the main hand.
// Ties go to the lowest slot index.
func (p *Provisioner) equipBest(inv Inventory, req policy.ToolCategory) (string, bool) {
	best, bestTier := -1, -1
	for i := 0; i < inv.Len(); i++ {
		s := inv.Slot(i)
		if s.Empty() || !p.pol.Satisfies(s.Item, req) {
			continue
		}
		if tier := p.pol.ToolTier(s.Item); tier > bestTier {
			best, bestTier = i, tier
		}
	}
	if best < 0 {
		return "", false
	}
	tool := inv.Slot(best)
	inv.SetSlot(best, inv.MainHand())
	inv.SetMainHand(tool)
	return tool.Item, true
}

func (p *Provisioner) fromStorage(ctx context.Context, inv Inventory, req policy.ToolCategory, access model.Vec3i) ([]model.ItemStack, bool) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	got, err := p.store.ExtractMatching(cctx, access, storage.Query{Tool: req.CatalogName(), Max: 1})
	if err != nil {
		p.log.Printf("storage extract %s at %v: %v", req, access.ToArray(), err)
		return nil, false
	}
	var spill []model.ItemStack
	stored := false
	for _, st := range got {
		rem := inv.Add(st)
		if rem.Count < st.Count {
			stored = true
		}
		if !rem.Empty() {
			spill = append(spill, rem)
		}
	}
	if stored {
		p.log.Printf("retrieved %s from storage at %v", req, access.ToArray())
	}
	return spill, stored
}

// craft runs the crafting cascade on a copy of the slots and commits the copy
// only if a tool came out of it.
func (p *Provisioner) craft(inv Inventory, req policy.ToolCategory) (string, bool) {
	scratch := inventory.New(inv.Len(), p.pol.Items())
	for i := 0; i < inv.Len(); i++ {
		scratch.SetSlot(i, inv.Slot(i))
	}
	tool, ok := p.craftOn(scratch, req)
	if !ok {
		return "", false
	}
	for i := 0; i < inv.Len(); i++ {
		inv.SetSlot(i, scratch.Slot(i))
	}
	return tool, true
}

func (p *Provisioner) craftOn(inv *inventory.Inventory, req policy.ToolCategory) (string, bool) {
	ct := p.pol.Table().Craft
	items := p.pol.Items()
	tagged := func(tag string) func(string) bool {
		return func(id string) bool { return items.HasTag(id, tag) }
	}

	binder := inv.CountOf(ct.Binder)
	if bf := ct.BinderFrom; binder < ct.BinderPerTool && bf.FromCount > 0 &&
		inv.CountMatching(tagged(bf.FromTag)) >= bf.FromCount {
		if inv.Exchange(
			[]inventory.Take{{Match: tagged(bf.FromTag), Count: bf.FromCount}},
			[]model.ItemStack{{Item: bf.To, Count: bf.Yield}},
		) {
			binder = inv.CountOf(ct.Binder)
		}
	}

	if sf := ct.StructuralFrom; sf.FromCount > 0 &&
		inv.CountMatching(tagged(ct.StructuralTag)) < ct.MaterialPerTool &&
		inv.CountMatching(tagged(sf.FromTag)) >= sf.FromCount {
		inv.Exchange(
			[]inventory.Take{{Match: tagged(sf.FromTag), Count: sf.FromCount}},
			[]model.ItemStack{{Item: sf.To, Count: sf.Yield}},
		)
	}

	if binder < ct.BinderPerTool {
		return "", false
	}

	for _, tier := range ct.Tiers {
		tool, ok := items.ToolFor(req.CatalogName(), tier.Grade)
		if !ok {
			continue
		}
		material := inventory.Exact(tier.Material, ct.MaterialPerTool)
		if tier.MaterialTag != "" {
			material = inventory.Take{Match: tagged(tier.MaterialTag), Count: ct.MaterialPerTool}
		}
		if inv.CountMatching(material.Match) < ct.MaterialPerTool {
			continue
		}
		if inv.Exchange(
			[]inventory.Take{material, inventory.Exact(ct.Binder, ct.BinderPerTool)},
			[]model.ItemStack{{Item: tool, Count: 1}},
		) {
			return tool, true
		}
	}
	return "", false
}
