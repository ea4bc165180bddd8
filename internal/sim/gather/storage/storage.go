package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/model"
)

var (
	ErrUnavailable = errors.New("storage network unavailable")
	ErrNoAccess    = errors.New("no storage access point at position")
)

// Query selects items to pull from a storage network. It is plain data so it
// can cross a process boundary. Tool (catalog spelling, "PICKAXE") and Items
// are alternatives: an item matches if it is a tool of that category or is
// listed in Items.
type Query struct {
	Tool  string   `json:"tool,omitempty"`
	Items []string `json:"items,omitempty"`
	Max   int      `json:"max,omitempty"`
}

func (q Query) Limit() int {
	if q.Max <= 0 {
		return 1
	}
	return q.Max
}

func (q Query) Matches(item string, items *catalogs.ItemCatalog) bool {
	for _, id := range q.Items {
		if id == item {
			return true
		}
	}
	if q.Tool == "" || items == nil {
		return false
	}
	d, ok := items.Def(item)
	return ok && d.Kind == "TOOL" && strings.EqualFold(d.Tool, q.Tool)
}

// Service is an external item store reachable through access points.
type Service interface {
	Available() bool
	ExtractMatching(ctx context.Context, access model.Vec3i, q Query) ([]model.ItemStack, error)
}

// Unavailable is the Service used when no storage network is configured.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) ExtractMatching(context.Context, model.Vec3i, Query) ([]model.ItemStack, error) {
	return nil, ErrUnavailable
}

// Access point kinds. Terminals are preferred over raw containers.
const (
	KindTerminal = "TERMINAL"
	KindDrive    = "DRIVE"
	KindChest    = "CHEST"
)

type AccessPoint struct {
	Pos  model.Vec3i `json:"pos"`
	Kind string      `json:"kind"`
}

func kindRank(kind string) int {
	switch kind {
	case KindTerminal:
		return 0
	case KindDrive:
		return 1
	default:
		return 2
	}
}

// Memory is an in-process storage network: one pooled item store reachable
// from any registered access point. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	items  *catalogs.ItemCatalog
	points map[model.Vec3i]AccessPoint
	stock  map[string]int
}

func NewMemory(items *catalogs.ItemCatalog) *Memory {
	return &Memory{
		items:  items,
		points: map[model.Vec3i]AccessPoint{},
		stock:  map[string]int{},
	}
}

func (m *Memory) Available() bool { return true }

func (m *Memory) AddAccessPoint(ap AccessPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ap.Kind == "" {
		ap.Kind = KindChest
	}
	m.points[ap.Pos] = ap
}

func (m *Memory) Deposit(s model.ItemStack) {
	if s.Empty() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[s.Item] += s.Count
}

func (m *Memory) CountOf(item string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[item]
}

// AccessPointsNear lists access points within radius (Chebyshev) of pos,
// terminals first, then by squared distance.
func (m *Memory) AccessPointsNear(pos model.Vec3i, radius int) []AccessPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	pts := make([]AccessPoint, 0, len(m.points))
	for _, ap := range m.points {
		pts = append(pts, ap)
	}
	return near(pts, pos, radius)
}

// Points is a fixed set of known access points, used when the network itself
// is remote.
type Points []AccessPoint

func (p Points) AccessPointsNear(pos model.Vec3i, radius int) []AccessPoint {
	return near(p, pos, radius)
}

func near(pts []AccessPoint, pos model.Vec3i, radius int) []AccessPoint {
	var out []AccessPoint
	for _, ap := range pts {
		p := ap.Pos
		if abs(p.X-pos.X) > radius || abs(p.Y-pos.Y) > radius || abs(p.Z-pos.Z) > radius {
			continue
		}
		if ap.Kind == "" {
			ap.Kind = KindChest
		}
		out = append(out, ap)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := kindRank(out[i].Kind), kindRank(out[j].Kind)
		if ri != rj {
			return ri < rj
		}
		di, dj := model.DistSq(pos, out[i].Pos), model.DistSq(pos, out[j].Pos)
		if di != dj {
			return di < dj
		}
		a, b := out[i].Pos, out[j].Pos
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

// ExtractMatching removes up to q.Limit() matching units, scanning item ids in
// sorted order.
func (m *Memory) ExtractMatching(ctx context.Context, access model.Vec3i, q Query) ([]model.ItemStack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.points[access]; !ok {
		return nil, ErrNoAccess
	}

	ids := make([]string, 0, len(m.stock))
	for id, n := range m.stock {
		if n > 0 && q.Matches(id, m.items) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	need := q.Limit()
	var out []model.ItemStack
	for _, id := range ids {
		if need == 0 {
			break
		}
		n := m.stock[id]
		if n > need {
			n = need
		}
		m.stock[id] -= n
		if m.stock[id] == 0 {
			delete(m.stock, id)
		}
		need -= n
		out = append(out, model.ItemStack{Item: id, Count: n})
	}
	return out, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
