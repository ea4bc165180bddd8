package inventory

import (
	"sort"

	"voxelgather.ai/internal/sim/model"
)

// Stacker reports how many units of an item fit in one slot.
// *catalogs.ItemCatalog implements it.
type Stacker interface {
	MaxStack(item string) int
}

// Inventory is an ordered slot sequence plus the equipped (main hand) slot.
// Empty slots hold the zero ItemStack.
type Inventory struct {
	slots []model.ItemStack
	main  model.ItemStack
	stack Stacker
}

func New(size int, stack Stacker) *Inventory {
	if size <= 0 {
		size = 27
	}
	return &Inventory{slots: make([]model.ItemStack, size), stack: stack}
}

func (inv *Inventory) Len() int { return len(inv.slots) }

func (inv *Inventory) Slot(i int) model.ItemStack {
	if i < 0 || i >= len(inv.slots) {
		return model.ItemStack{}
	}
	return inv.slots[i]
}

func (inv *Inventory) SetSlot(i int, s model.ItemStack) {
	if i < 0 || i >= len(inv.slots) {
		return
	}
	inv.slots[i] = clean(s)
}

func (inv *Inventory) MainHand() model.ItemStack     { return inv.main }
func (inv *Inventory) SetMainHand(s model.ItemStack) { inv.main = clean(s) }

// CountOf counts item across the slots (the main hand is not a storage slot).
func (inv *Inventory) CountOf(item string) int {
	return inv.CountMatching(func(id string) bool { return id == item })
}

func (inv *Inventory) CountMatching(match func(item string) bool) int {
	n := 0
	for _, s := range inv.slots {
		if !s.Empty() && match(s.Item) {
			n += s.Count
		}
	}
	return n
}

// Remove takes n units of item or nothing at all.
func (inv *Inventory) Remove(item string, n int) bool {
	return inv.Exchange([]Take{Exact(item, n)}, nil)
}

// Add stores s, topping up existing stacks before filling empty slots, and
// returns what did not fit.
func (inv *Inventory) Add(s model.ItemStack) model.ItemStack {
	return addTo(inv.slots, s, inv.maxStack(s.Item))
}

// Take removes Count units of any items accepted by Match.
type Take struct {
	Match func(item string) bool
	Count int
}

func Exact(item string, n int) Take {
	return Take{Match: func(id string) bool { return id == item }, Count: n}
}

// Exchange removes every take and adds every give as one step. If any take is
// short or any give does not fit, the inventory is left untouched.
func (inv *Inventory) Exchange(take []Take, give []model.ItemStack) bool {
	work := make([]model.ItemStack, len(inv.slots))
	copy(work, inv.slots)

	for _, t := range take {
		if t.Count <= 0 {
			continue
		}
		if !removeFrom(work, t) {
			return false
		}
	}
	for _, g := range give {
		if g.Empty() {
			continue
		}
		if rem := addTo(work, g, inv.maxStack(g.Item)); !rem.Empty() {
			return false
		}
	}
	copy(inv.slots, work)
	return true
}

// Counts returns a map view of the slot contents.
func (inv *Inventory) Counts() map[string]int {
	out := map[string]int{}
	for _, s := range inv.slots {
		if !s.Empty() {
			out[s.Item] += s.Count
		}
	}
	return out
}

// Items returns the distinct item ids held, sorted.
func (inv *Inventory) Items() []string {
	counts := inv.Counts()
	out := make([]string, 0, len(counts))
	for id := range counts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (inv *Inventory) maxStack(item string) int {
	if inv.stack == nil {
		return 64
	}
	if n := inv.stack.MaxStack(item); n > 0 {
		return n
	}
	return 64
}

func removeFrom(slots []model.ItemStack, t Take) bool {
	need := t.Count
	for i := range slots {
		if need == 0 {
			break
		}
		s := slots[i]
		if s.Empty() || !t.Match(s.Item) {
			continue
		}
		n := s.Count
		if n > need {
			n = need
		}
		s.Count -= n
		need -= n
		slots[i] = clean(s)
	}
	return need == 0
}

func addTo(slots []model.ItemStack, s model.ItemStack, max int) model.ItemStack {
	if s.Empty() {
		return model.ItemStack{}
	}
	rem := s.Count
	for i := range slots {
		if rem == 0 {
			break
		}
		if slots[i].Item != s.Item || slots[i].Count <= 0 || slots[i].Count >= max {
			continue
		}
		n := max - slots[i].Count
		if n > rem {
			n = rem
		}
		slots[i].Count += n
		rem -= n
	}
	for i := range slots {
		if rem == 0 {
			break
		}
		if !slots[i].Empty() {
			continue
		}
		n := max
		if n > rem {
			n = rem
		}
		slots[i] = model.ItemStack{Item: s.Item, Count: n}
		rem -= n
	}
	if rem == 0 {
		return model.ItemStack{}
	}
	return model.ItemStack{Item: s.Item, Count: rem}
}

func clean(s model.ItemStack) model.ItemStack {
	if s.Empty() {
		return model.ItemStack{}
	}
	return s
}
