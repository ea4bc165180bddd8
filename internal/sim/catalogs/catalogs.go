package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed defaults/*.json schemas/*.json
var embedded embed.FS

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
	// Resistance drives extraction time; negative means unbreakable.
	Resistance float64     `json:"resistance"`
	Class      string      `json:"class,omitempty"` // "ORE","LOG","LEAVES","SOIL","CROP","STONE"
	Tool       string      `json:"tool,omitempty"`  // "PICKAXE","AXE","SHOVEL","HOE"
	Drops      []ItemCount `json:"drops,omitempty"`

	// Crops only.
	Mature    bool   `json:"mature,omitempty"`
	Seed      string `json:"seed,omitempty"`
	ReplantAs string `json:"replant_as,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD","SEED"
	Tool     string   `json:"tool,omitempty"`
	Grade    string   `json:"grade,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	MaxStack int      `json:"max_stack,omitempty"`
	PlaceAs  string   `json:"place_as,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

const AirID = "AIR"

// Load reads blocks.json and items.json from configDir. Files missing from
// configDir (or an empty configDir) fall back to the built-in catalogs.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	raw, err := readCatalog(configDir, "blocks.json")
	if err != nil {
		return nil, err
	}
	if err := parseBlocks(raw, &c.Blocks); err != nil {
		return nil, err
	}
	raw, err = readCatalog(configDir, "items.json")
	if err != nil {
		return nil, err
	}
	if err := parseItems(raw, &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

// Builtin returns the embedded default catalogs.
func Builtin() *Catalogs {
	c, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("catalogs: embedded defaults are invalid: %v", err))
	}
	return c
}

func readCatalog(configDir, name string) ([]byte, error) {
	if configDir != "" {
		b, err := os.ReadFile(filepath.Join(configDir, name))
		if err == nil {
			return b, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return embedded.ReadFile("defaults/" + name)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func validate(schemaName, fileName string, raw []byte) error {
	schemaRaw, err := embedded.ReadFile("schemas/" + schemaName)
	if err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaName, bytes.NewReader(schemaRaw)); err != nil {
		return fmt.Errorf("%s: %w", schemaName, err)
	}
	s, err := c.Compile(schemaName)
	if err != nil {
		return fmt.Errorf("%s: %w", schemaName, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	return nil
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	if err := validate("blocks.schema.json", "blocks.json", raw); err != nil {
		return err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	cat, err := NewBlockCatalog(defs)
	if err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	cat.DefsDigest = sha256Hex(raw)
	*out = cat
	return nil
}

func parseItems(raw []byte, out *ItemCatalog) error {
	if err := validate("items.schema.json", "items.json", raw); err != nil {
		return err
	}
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	cat, err := NewItemCatalog(defs)
	if err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	cat.DefsDigest = sha256Hex(raw)
	*out = cat
	return nil
}

// NewBlockCatalog indexes defs. AIR must exist and always gets palette id 0.
func NewBlockCatalog(defs []BlockDef) (BlockCatalog, error) {
	out := BlockCatalog{Defs: map[string]BlockDef{}}
	for _, d := range defs {
		if d.ID == "" {
			return out, fmt.Errorf("empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return out, fmt.Errorf("duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}
	if _, ok := out.Defs[AirID]; !ok {
		return out, fmt.Errorf("missing AIR")
	}
	for _, d := range out.Defs {
		if d.ReplantAs != "" {
			if _, ok := out.Defs[d.ReplantAs]; !ok {
				return out, fmt.Errorf("%s: unknown replant_as %s", d.ID, d.ReplantAs)
			}
		}
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ids = append([]string{AirID}, filterOut(ids, AirID)...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

func NewItemCatalog(defs []ItemDef) (ItemCatalog, error) {
	out := ItemCatalog{Defs: map[string]ItemDef{}}
	for _, d := range defs {
		if d.ID == "" {
			return out, fmt.Errorf("empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return out, fmt.Errorf("duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

func (c *BlockCatalog) Def(id string) (BlockDef, bool) {
	d, ok := c.Defs[id]
	return d, ok
}

// Name maps a palette id back to the block id; out of range ids read as AIR.
func (c *BlockCatalog) Name(pid uint16) string {
	if int(pid) >= len(c.Palette) {
		return AirID
	}
	return c.Palette[pid]
}

func (c *ItemCatalog) Def(id string) (ItemDef, bool) {
	d, ok := c.Defs[id]
	return d, ok
}

func (c *ItemCatalog) HasTag(id, tag string) bool {
	d, ok := c.Defs[id]
	if !ok {
		return false
	}
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MaxStack defaults to 64 for items without an explicit limit (and unknown items).
func (c *ItemCatalog) MaxStack(id string) int {
	if d, ok := c.Defs[id]; ok && d.MaxStack > 0 {
		return d.MaxStack
	}
	return 64
}

// ToolFor returns the tool item of the given category ("AXE") and grade ("IRON").
func (c *ItemCatalog) ToolFor(tool, grade string) (string, bool) {
	for _, id := range c.Palette {
		d := c.Defs[id]
		if d.Kind == "TOOL" && d.Tool == tool && d.Grade == grade {
			return id, true
		}
	}
	return "", false
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
