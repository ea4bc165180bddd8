package policy

import (
	"fmt"
	"sort"
	"strings"
)

// TableVersion is bumped whenever the meaning of a Table field changes.
const TableVersion = 1

// Table is the data side of the policy: tier ranks, variant/species rules,
// aliases and crafting tiers. New block or tool kinds are table additions.
type Table struct {
	Version int `yaml:"version"`

	// Tiers ranks known material grades. Higher beats lower.
	Tiers map[string]int `yaml:"tiers"`
	// ExtendedTiers classify unknown grades by name tokens, checked in order.
	ExtendedTiers []ExtendedTier `yaml:"extended_tiers"`
	// DefaultGrade supplies the rank of grades nothing else recognizes.
	DefaultGrade string `yaml:"default_grade"`

	VariantPrefixes []string          `yaml:"variant_prefixes"`
	Species         []string          `yaml:"species"`
	Aliases         map[string]string `yaml:"aliases"`

	Craft CraftTable `yaml:"craft"`

	// SpeedByTier is the extraction speed multiplier of a matching tool.
	SpeedByTier map[int]float64 `yaml:"speed_by_tier"`
}

type ExtendedTier struct {
	Rank   int      `yaml:"rank"`
	Tokens []string `yaml:"tokens"`
}

type CraftTable struct {
	Binder          string      `yaml:"binder"`
	BinderPerTool   int         `yaml:"binder_per_tool"`
	MaterialPerTool int         `yaml:"material_per_tool"`
	Tiers           []CraftTier `yaml:"tiers"` // highest grade first

	// BinderFrom turns a raw material into binder units.
	BinderFrom Conversion `yaml:"binder_from"`
	// StructuralTag marks the base tool material; StructuralFrom makes more of
	// it when fewer than MaterialPerTool are held.
	StructuralTag  string     `yaml:"structural_tag"`
	StructuralFrom Conversion `yaml:"structural_from"`
}

// CraftTier is one tool grade; exactly one of Material or MaterialTag is set.
type CraftTier struct {
	Grade       string `yaml:"grade"`
	Material    string `yaml:"material,omitempty"`
	MaterialTag string `yaml:"material_tag,omitempty"`
}

type Conversion struct {
	FromTag   string `yaml:"from_tag"`
	FromCount int    `yaml:"from_count"`
	To        string `yaml:"to"`
	Yield     int    `yaml:"yield"`
}

func DefaultTable() Table {
	return Table{
		Version: TableVersion,
		Tiers: map[string]int{
			"WOOD": 0,
			// Fast but weak; shares the bottom rank with WOOD.
			"GOLD":      0,
			"STONE":     1,
			"IRON":      2,
			"DIAMOND":   3,
			"NETHERITE": 4,
		},
		ExtendedTiers: []ExtendedTier{
			{Rank: 5, Tokens: []string{"NETHERITE", "ALLTHEMODIUM"}},
			{Rank: 6, Tokens: []string{"VIBRANIUM", "UNOBTAINIUM"}},
		},
		DefaultGrade:    "IRON",
		VariantPrefixes: []string{"DEEPSLATE_"},
		Species:         []string{"OAK", "BIRCH", "SPRUCE", "JUNGLE", "ACACIA", "DARK_OAK", "MANGROVE", "CHERRY", "BAMBOO", "CRIMSON", "WARPED"},
		Aliases: map[string]string{
			"WOOD":    "OAK_LOG",
			"LOGS":    "OAK_LOG",
			"STONE":   "STONE",
			"COBBLE":  "COBBLESTONE",
			"DIRT":    "DIRT",
			"IRON":    "IRON_ORE",
			"GOLD":    "GOLD_ORE",
			"DIAMOND": "DIAMOND_ORE",
			"COAL":    "COAL_ORE",
			"COPPER":  "COPPER_ORE",
		},
		Craft: CraftTable{
			Binder:          "STICK",
			BinderPerTool:   2,
			MaterialPerTool: 3,
			Tiers: []CraftTier{
				{Grade: "DIAMOND", Material: "DIAMOND"},
				{Grade: "IRON", Material: "IRON_INGOT"},
				{Grade: "STONE", Material: "COBBLESTONE"},
				{Grade: "WOOD", MaterialTag: "PLANKS"},
			},
			BinderFrom:     Conversion{FromTag: "PLANKS", FromCount: 2, To: "STICK", Yield: 4},
			StructuralTag:  "PLANKS",
			StructuralFrom: Conversion{FromTag: "LOGS", FromCount: 1, To: "OAK_PLANKS", Yield: 4},
		},
		SpeedByTier: map[int]float64{0: 2, 1: 4, 2: 6, 3: 8, 4: 9, 5: 10, 6: 12},
	}
}

// Normalize fills zero-valued sections from DefaultTable and canonicalizes ids.
func (t *Table) Normalize() {
	if t == nil {
		return
	}
	def := DefaultTable()
	if t.Version == 0 {
		t.Version = def.Version
	}
	if len(t.Tiers) == 0 {
		t.Tiers = def.Tiers
	}
	if t.ExtendedTiers == nil {
		t.ExtendedTiers = def.ExtendedTiers
	}
	if strings.TrimSpace(t.DefaultGrade) == "" {
		t.DefaultGrade = def.DefaultGrade
	}
	if t.VariantPrefixes == nil {
		t.VariantPrefixes = def.VariantPrefixes
	}
	if len(t.Species) == 0 {
		t.Species = def.Species
	}
	if t.Aliases == nil {
		t.Aliases = def.Aliases
	}
	if t.Craft.Binder == "" {
		t.Craft = def.Craft
	}
	if t.Craft.BinderPerTool <= 0 {
		t.Craft.BinderPerTool = def.Craft.BinderPerTool
	}
	if t.Craft.MaterialPerTool <= 0 {
		t.Craft.MaterialPerTool = def.Craft.MaterialPerTool
	}
	t.Craft.StructuralTag = strings.ToUpper(strings.TrimSpace(t.Craft.StructuralTag))
	if len(t.SpeedByTier) == 0 {
		t.SpeedByTier = def.SpeedByTier
	}

	t.DefaultGrade = strings.ToUpper(strings.TrimSpace(t.DefaultGrade))
	aliases := make(map[string]string, len(t.Aliases))
	for k, v := range t.Aliases {
		aliases[normalizeID(k)] = normalizeID(v)
	}
	t.Aliases = aliases
	species := make([]string, 0, len(t.Species))
	for _, s := range t.Species {
		if s = normalizeID(s); s != "" {
			species = append(species, s)
		}
	}
	// Longest first so DARK_OAK wins over OAK.
	sort.SliceStable(species, func(i, j int) bool { return len(species[i]) > len(species[j]) })
	t.Species = species
}

func (t Table) Validate() error {
	if t.Version != TableVersion {
		return fmt.Errorf("policy: unsupported table version %d", t.Version)
	}
	if _, ok := t.Tiers[t.DefaultGrade]; !ok {
		return fmt.Errorf("policy: default_grade %q has no tier", t.DefaultGrade)
	}
	for _, ct := range t.Craft.Tiers {
		if _, ok := t.Tiers[ct.Grade]; !ok {
			return fmt.Errorf("policy: craft tier %q has no tier rank", ct.Grade)
		}
		if (ct.Material == "") == (ct.MaterialTag == "") {
			return fmt.Errorf("policy: craft tier %q needs exactly one of material/material_tag", ct.Grade)
		}
	}
	if t.Craft.StructuralFrom.FromCount > 0 && t.Craft.StructuralTag == "" {
		return fmt.Errorf("policy: structural_from needs a structural_tag")
	}
	for i := 1; i < len(t.Craft.Tiers); i++ {
		if t.Tiers[t.Craft.Tiers[i].Grade] > t.Tiers[t.Craft.Tiers[i-1].Grade] {
			return fmt.Errorf("policy: craft tiers must be ordered highest grade first")
		}
	}
	return nil
}

// normalizeID maps free text ("iron ore") to the id convention ("IRON_ORE").
func normalizeID(s string) string {
	s = strings.TrimSpace(strings.ToUpper(s))
	return strings.Join(strings.Fields(s), "_")
}

// NormalizeID is exported for descriptor resolution.
func NormalizeID(s string) string { return normalizeID(s) }
