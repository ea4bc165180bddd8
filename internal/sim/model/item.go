package model

// ItemStack is an (item, count) pair. A stack with Count <= 0 or an empty Item is empty.
type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

func (s ItemStack) Empty() bool { return s.Item == "" || s.Count <= 0 }

// ItemEntity is a dropped item stack lying in the world (e.g. from mining).
type ItemEntity struct {
	EntityID    string
	Pos         Vec3f
	Item        string
	Count       int
	CreatedTick uint64
	// PickupTick is the first tick the entity may be collected.
	PickupTick  uint64
	ExpiresTick uint64
}

func (e *ItemEntity) ID() string { return e.EntityID }

func (e *ItemEntity) Stack() ItemStack { return ItemStack{Item: e.Item, Count: e.Count} }
