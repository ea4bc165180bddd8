package voxelworld

import (
	"crypto/sha256"
	"sort"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/model"
)

// Store is a lazily generated chunked voxel world. Block ids are kept as
// palette ids of the block catalog. Accessed only from the tick loop.
type Store struct {
	gen    Gen
	blocks *catalogs.BlockCatalog
	chunks map[ChunkKey]*Chunk

	air, bedrock uint16
	ids          genIDs
}

func NewStore(blocks *catalogs.BlockCatalog, gen Gen) *Store {
	gen.normalize()
	s := &Store{
		gen:    gen,
		blocks: blocks,
		chunks: map[ChunkKey]*Chunk{},
	}
	s.air = s.pid(catalogs.AirID)
	s.bedrock = s.pid("BEDROCK")
	s.ids = resolveGenIDs(s.pid)
	return s
}

func (s *Store) Gen() Gen { return s.gen }

// pid maps a block id to its palette id; unknown ids map to AIR.
func (s *Store) pid(id string) uint16 {
	return s.blocks.Index[id]
}

func (s *Store) inBounds(pos model.Vec3i) bool {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	if r := s.gen.BoundaryR; r > 0 {
		if pos.X < -r || pos.X > r || pos.Z < -r || pos.Z > r {
			return false
		}
	}
	return true
}

func (s *Store) get(pos model.Vec3i) uint16 {
	if pos.Y < 0 {
		return s.bedrock
	}
	if !s.inBounds(pos) {
		return s.air
	}
	ch := s.chunkAt(pos)
	return ch.Get(mod(pos.X, chunkSize), pos.Y, mod(pos.Z, chunkSize))
}

func (s *Store) chunkAt(pos model.Vec3i) *Chunk {
	return s.getOrGenChunk(floorDiv(pos.X, chunkSize), floorDiv(pos.Z, chunkSize))
}

func (s *Store) BlockAt(pos model.Vec3i) string {
	return s.blocks.Name(s.get(pos))
}

// SetBlock writes id at pos. Unknown ids and out-of-bounds positions are ignored.
func (s *Store) SetBlock(pos model.Vec3i, id string) {
	b, ok := s.blocks.Index[id]
	if !ok || !s.inBounds(pos) {
		return
	}
	s.chunkAt(pos).Set(mod(pos.X, chunkSize), pos.Y, mod(pos.Z, chunkSize), b)
}

// ClearBlock replaces the block at pos with AIR and returns its catalog drops.
func (s *Store) ClearBlock(pos model.Vec3i) []model.ItemStack {
	if !s.inBounds(pos) {
		return nil
	}
	id := s.BlockAt(pos)
	if id == catalogs.AirID {
		return nil
	}
	s.chunkAt(pos).Set(mod(pos.X, chunkSize), pos.Y, mod(pos.Z, chunkSize), s.air)
	def, ok := s.blocks.Def(id)
	if !ok {
		return nil
	}
	out := make([]model.ItemStack, 0, len(def.Drops))
	for _, d := range def.Drops {
		if d.Count > 0 {
			out = append(out, model.ItemStack{Item: d.Item, Count: d.Count})
		}
	}
	return out
}

// ResistanceAt is the catalog resistance; unknown blocks are unbreakable.
func (s *Store) ResistanceAt(pos model.Vec3i) float64 {
	def, ok := s.blocks.Def(s.BlockAt(pos))
	if !ok {
		return -1
	}
	return def.Resistance
}

func (s *Store) Solid(pos model.Vec3i) bool {
	if pos.Y < 0 {
		return true
	}
	def, ok := s.blocks.Def(s.BlockAt(pos))
	return ok && def.Solid
}

// StandY is the feet height of the column at (x, z): one above its highest
// solid cell, 0 for an empty column.
func (s *Store) StandY(x, z int) int {
	for y := s.gen.Height - 1; y >= 0; y-- {
		if s.Solid(model.Vec3i{X: x, Y: y, Z: z}) {
			return y + 1
		}
	}
	return 0
}

func (s *Store) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := newChunk(cx, cz, s.gen.Height)
	s.generateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.chunks[k] = ch
	return ch
}

func (s *Store) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// Digest hashes every loaded chunk in key order.
func (s *Store) Digest() [32]byte {
	h := sha256.New()
	for _, k := range s.LoadedChunkKeys() {
		d := s.chunks[k].Digest()
		h.Write(d[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
