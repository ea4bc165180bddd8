package policy

import (
	"strings"

	"voxelgather.ai/internal/sim/catalogs"
)

type ToolCategory int

const (
	ToolNone ToolCategory = iota
	ToolPickaxe
	ToolAxe
	ToolShovel
	ToolHoe
)

func (c ToolCategory) String() string {
	switch c {
	case ToolPickaxe:
		return "pickaxe"
	case ToolAxe:
		return "axe"
	case ToolShovel:
		return "shovel"
	case ToolHoe:
		return "hoe"
	default:
		return "none"
	}
}

// CatalogName is the spelling used by catalogs and the wire ("PICKAXE").
func (c ToolCategory) CatalogName() string {
	if c == ToolNone {
		return ""
	}
	return strings.ToUpper(c.String())
}

func ParseToolCategory(s string) ToolCategory {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PICKAXE":
		return ToolPickaxe
	case "AXE":
		return ToolAxe
	case "SHOVEL":
		return ToolShovel
	case "HOE":
		return ToolHoe
	default:
		return ToolNone
	}
}

const (
	ClassOre    = "ORE"
	ClassLog    = "LOG"
	ClassLeaves = "LEAVES"
	ClassSoil   = "SOIL"
	ClassCrop   = "CROP"
	ClassStone  = "STONE"
)

// Policy answers classification questions about block and item ids. It holds
// no mutable state; every answer is recomputed from the catalogs and table.
type Policy struct {
	table  Table
	blocks *catalogs.BlockCatalog
	items  *catalogs.ItemCatalog
}

func New(t Table, cats *catalogs.Catalogs) *Policy {
	t.Normalize()
	return &Policy{table: t, blocks: &cats.Blocks, items: &cats.Items}
}

func (p *Policy) Table() Table                   { return p.table }
func (p *Policy) Blocks() *catalogs.BlockCatalog { return p.blocks }
func (p *Policy) Items() *catalogs.ItemCatalog   { return p.items }

// RequiredTool is the tool category needed to extract block. Unknown blocks need none.
func (p *Policy) RequiredTool(block string) ToolCategory {
	d, ok := p.blocks.Def(block)
	if !ok {
		return ToolNone
	}
	return ParseToolCategory(d.Tool)
}

// ToolCategoryOf is the category of a tool item, ToolNone for anything else.
func (p *Policy) ToolCategoryOf(item string) ToolCategory {
	d, ok := p.items.Def(item)
	if !ok || d.Kind != "TOOL" {
		return ToolNone
	}
	return ParseToolCategory(d.Tool)
}

// Satisfies reports whether holding item is enough for category c.
func (p *Policy) Satisfies(item string, c ToolCategory) bool {
	if c == ToolNone {
		return true
	}
	return item != "" && p.ToolCategoryOf(item) == c
}

// ToolTier ranks a tool item by its material grade; non-tools rank -1.
func (p *Policy) ToolTier(item string) int {
	d, ok := p.items.Def(item)
	if !ok || d.Kind != "TOOL" {
		return -1
	}
	return p.TierForGrade(d.Grade)
}

func (p *Policy) TierForGrade(grade string) int {
	grade = normalizeID(grade)
	if r, ok := p.table.Tiers[grade]; ok {
		return r
	}
	for _, ext := range p.table.ExtendedTiers {
		for _, tok := range ext.Tokens {
			if tok != "" && strings.Contains(grade, strings.ToUpper(tok)) {
				return ext.Rank
			}
		}
	}
	return p.table.Tiers[p.table.DefaultGrade]
}

// SpeedMultiplier is the extraction speed bonus of holding item against block.
func (p *Policy) SpeedMultiplier(item, block string) float64 {
	req := p.RequiredTool(block)
	if req == ToolNone || !p.Satisfies(item, req) {
		return 1
	}
	if m, ok := p.table.SpeedByTier[p.ToolTier(item)]; ok && m > 0 {
		return m
	}
	return 1
}

func (p *Policy) class(id string) string {
	d, ok := p.blocks.Def(id)
	if !ok {
		return ""
	}
	return d.Class
}

func (p *Policy) IsOre(id string) bool    { return p.class(id) == ClassOre }
func (p *Policy) IsLog(id string) bool    { return p.class(id) == ClassLog }
func (p *Policy) IsLeaves(id string) bool { return p.class(id) == ClassLeaves }
func (p *Policy) IsSoil(id string) bool   { return p.class(id) == ClassSoil }
func (p *Policy) IsCrop(id string) bool   { return p.class(id) == ClassCrop }

func (p *Policy) IsMatureCrop(id string) bool {
	d, ok := p.blocks.Def(id)
	return ok && d.Class == ClassCrop && d.Mature
}

func (p *Policy) IsAir(id string) bool { return id == "" || id == catalogs.AirID }

// IsSolid treats unknown ids as solid.
func (p *Policy) IsSolid(id string) bool {
	if p.IsAir(id) {
		return false
	}
	d, ok := p.blocks.Def(id)
	if !ok {
		return true
	}
	return d.Solid
}

// BaseID strips a known depth/biome variant prefix ("DEEPSLATE_IRON_ORE" -> "IRON_ORE").
func (p *Policy) BaseID(id string) string {
	for _, pre := range p.table.VariantPrefixes {
		if pre != "" && strings.HasPrefix(id, pre) {
			return strings.TrimPrefix(id, pre)
		}
	}
	return id
}

// Species returns the plant species token of id, or "" for generic blocks.
func (p *Policy) Species(id string) string {
	for _, s := range p.table.Species {
		if id == s || strings.HasPrefix(id, s+"_") {
			return s
		}
	}
	return ""
}

// SameFamily is the vein/species equivalence: identical ids, ores with the same
// base after variant stripping, or logs of the same species.
func (p *Policy) SameFamily(a, b string) bool {
	if a == b {
		return !p.IsAir(a)
	}
	if p.IsOre(a) && p.IsOre(b) {
		return p.BaseID(a) == p.BaseID(b)
	}
	if p.IsLog(a) && p.IsLog(b) {
		return p.Species(a) == p.Species(b)
	}
	return false
}

// SameStructure reports whether id belongs to a tree of the given species:
// a log or leaves block of that species, or a generic (species-less) one.
func (p *Policy) SameStructure(species, id string) bool {
	if !p.IsLog(id) && !p.IsLeaves(id) {
		return false
	}
	if species == "" {
		return true
	}
	s := p.Species(id)
	return s == "" || s == species
}
