package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"

	"voxelgather.ai/internal/sim/gather/policy"
)

var ErrUnresolved = errors.New("no block type matches")

// UnresolvedError carries the closest known id, if any was close enough.
type UnresolvedError struct {
	Descriptor string
	Suggestion string
}

func (e *UnresolvedError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v %q (did you mean %s?)", ErrUnresolved, e.Descriptor, e.Suggestion)
	}
	return fmt.Sprintf("%v %q", ErrUnresolved, e.Descriptor)
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// CandidateSet is the fixed set of block ids a task accepts as targets.
type CandidateSet struct {
	Descriptor string
	ids        []string
	set        map[string]struct{}
}

func newCandidateSet(desc string, ids map[string]struct{}) CandidateSet {
	out := CandidateSet{Descriptor: desc, set: ids, ids: make([]string, 0, len(ids))}
	for id := range ids {
		out.ids = append(out.ids, id)
	}
	sort.Strings(out.ids)
	return out
}

func (c CandidateSet) Contains(id string) bool {
	_, ok := c.set[id]
	return ok
}

func (c CandidateSet) Len() int { return len(c.ids) }

// IDs returns the members sorted.
func (c CandidateSet) IDs() []string {
	return append([]string(nil), c.ids...)
}

type Resolver struct {
	pol   *policy.Policy
	cache *lru.Cache[string, CandidateSet]
}

const defaultCacheSize = 256

func New(pol *policy.Policy, cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, CandidateSet](cacheSize)
	if err != nil {
		cache = nil
	}
	return &Resolver{pol: pol, cache: cache}
}

// Resolve maps a free-text descriptor to its CandidateSet. An empty result is
// reported as *UnresolvedError.
func (r *Resolver) Resolve(descriptor string) (CandidateSet, error) {
	key := policy.NormalizeID(descriptor)
	if key == "" {
		return CandidateSet{Descriptor: descriptor}, &UnresolvedError{Descriptor: descriptor}
	}
	if r.cache != nil {
		if cs, ok := r.cache.Get(key); ok {
			return cs, nil
		}
	}
	ids := r.match(key)
	if len(ids) == 0 {
		return CandidateSet{Descriptor: descriptor}, &UnresolvedError{Descriptor: descriptor, Suggestion: r.suggest(key)}
	}
	cs := newCandidateSet(descriptor, ids)
	if r.cache != nil {
		r.cache.Add(key, cs)
	}
	return cs, nil
}

func (r *Resolver) match(key string) map[string]struct{} {
	pol := r.pol
	if alias, ok := pol.Table().Aliases[key]; ok && alias != "" {
		key = alias
	}
	blocks := pol.Blocks()
	out := map[string]struct{}{}

	if _, ok := blocks.Def(key); ok && !pol.IsAir(key) {
		out[key] = struct{}{}
		for _, id := range blocks.Palette {
			if pol.SameFamily(key, id) {
				out[id] = struct{}{}
			}
		}
	} else {
		for _, id := range blocks.Palette {
			if pol.IsAir(id) {
				continue
			}
			if strings.Contains(id, key) || strings.Contains(key, id) {
				out[id] = struct{}{}
			}
		}
	}

	if strings.Contains(key, "LOG") {
		for _, id := range blocks.Palette {
			if pol.IsLog(id) {
				out[id] = struct{}{}
			}
		}
	}
	if strings.Contains(key, "ORE") {
		// Pull in depth variants of every matched ore.
		for id := range out {
			if !pol.IsOre(id) {
				continue
			}
			for _, other := range blocks.Palette {
				if pol.SameFamily(id, other) {
					out[other] = struct{}{}
				}
			}
		}
	}

	for id := range out {
		if pol.IsCrop(id) && !pol.IsMatureCrop(id) {
			delete(out, id)
		}
	}
	return out
}

func (r *Resolver) suggest(key string) string {
	best, bestDist := "", -1
	consider := func(cand string) {
		if cand == "" || r.pol.IsAir(cand) {
			return
		}
		d := levenshtein.ComputeDistance(key, cand)
		if bestDist < 0 || d < bestDist || (d == bestDist && cand < best) {
			best, bestDist = cand, d
		}
	}
	for _, id := range r.pol.Blocks().Palette {
		consider(id)
	}
	for alias := range r.pol.Table().Aliases {
		consider(alias)
	}
	if bestDist < 0 || bestDist > suggestLimit(len(key)) {
		return ""
	}
	return best
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
