package drops

import (
	"sort"
	"strconv"

	"voxelgather.ai/internal/sim/model"
)

// DefaultTTLTicks is five minutes at 20Hz.
const DefaultTTLTicks = 6000

// AuditFunc observes spawn/pickup/despawn of item entities.
type AuditFunc func(nowTick uint64, action string, pos model.Vec3i, details map[string]any)

// Store holds the dropped item entities of one world. Entities spawned into
// the same cell merge when they carry the same item. Not safe for concurrent
// use; the owning tick loop drives it.
type Store struct {
	TTLTicks uint64
	// PickupDelay is how many ticks a fresh drop waits before it can be collected.
	PickupDelay uint64
	Audit       AuditFunc

	now    uint64
	nextID uint64
	items  map[string]*model.ItemEntity
	byCell map[model.Vec3i][]string
}

func NewStore() *Store {
	return &Store{
		TTLTicks: DefaultTTLTicks,
		items:    map[string]*model.ItemEntity{},
		byCell:   map[model.Vec3i][]string{},
	}
}

// SetTick advances the store clock and despawns expired entities.
func (s *Store) SetTick(nowTick uint64) {
	s.now = nowTick
	s.cleanupExpired()
}

func (s *Store) Len() int { return len(s.items) }

// SpawnItem drops st at the center of cell pos and returns the entity id.
func (s *Store) SpawnItem(pos model.Vec3i, st model.ItemStack) string {
	if st.Empty() {
		return ""
	}
	expires := s.now + s.TTLTicks
	for _, id := range s.byCell[pos] {
		e := s.items[id]
		if e == nil || e.Item != st.Item || e.Count <= 0 {
			continue
		}
		e.Count += st.Count
		if expires > e.ExpiresTick {
			e.ExpiresTick = expires
		}
		s.audit("ITEM_SPAWN", pos, e, st.Count, true)
		return e.EntityID
	}

	s.nextID++
	e := &model.ItemEntity{
		EntityID:    "I" + strconv.FormatUint(s.nextID, 10),
		Pos:         pos.Center(),
		Item:        st.Item,
		Count:       st.Count,
		CreatedTick: s.now,
		PickupTick:  s.now + s.PickupDelay,
		ExpiresTick: expires,
	}
	s.items[e.EntityID] = e
	s.byCell[pos] = append(s.byCell[pos], e.EntityID)
	s.audit("ITEM_SPAWN", pos, e, st.Count, false)
	return e.EntityID
}

// PickupNear offers every collectable entity within radius of center to take,
// nearest first. take returns what it could not accept; that part stays on
// the ground. It returns the number of units collected.
func (s *Store) PickupNear(center model.Vec3f, radius float64, take func(model.ItemStack) model.ItemStack) int {
	type cand struct {
		e    *model.ItemEntity
		dist float64
	}
	var cands []cand
	for _, e := range s.items {
		if e.PickupTick > s.now {
			continue
		}
		if d := e.Pos.Dist(center); d <= radius {
			cands = append(cands, cand{e: e, dist: d})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].e.EntityID < cands[j].e.EntityID
	})

	taken := 0
	for _, c := range cands {
		rem := take(c.e.Stack())
		got := c.e.Count
		if !rem.Empty() && rem.Item == c.e.Item {
			got = c.e.Count - rem.Count
		}
		if got <= 0 {
			continue
		}
		taken += got
		if got >= c.e.Count {
			s.remove(c.e.EntityID, "ITEM_PICKUP")
			continue
		}
		c.e.Count -= got
	}
	return taken
}

// At returns the entities lying in cell pos.
func (s *Store) At(pos model.Vec3i) []model.ItemEntity {
	var out []model.ItemEntity
	for _, id := range s.byCell[pos] {
		if e := s.items[id]; e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func (s *Store) remove(id, action string) {
	e := s.items[id]
	if e == nil {
		return
	}
	delete(s.items, id)
	cell := e.Pos.Block()
	ids := s.byCell[cell]
	for i := range ids {
		if ids[i] == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byCell, cell)
	} else {
		s.byCell[cell] = ids
	}
	s.audit(action, cell, e, e.Count, false)
}

func (s *Store) cleanupExpired() {
	var expired []string
	for id, e := range s.items {
		if e.ExpiresTick != 0 && s.now >= e.ExpiresTick {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	for _, id := range expired {
		s.remove(id, "ITEM_DESPAWN")
	}
}

func (s *Store) audit(action string, pos model.Vec3i, e *model.ItemEntity, count int, merged bool) {
	if s.Audit == nil {
		return
	}
	s.Audit(s.now, action, pos, map[string]any{
		"entity_id": e.EntityID,
		"item":      e.Item,
		"count":     count,
		"merged":    merged,
	})
}
