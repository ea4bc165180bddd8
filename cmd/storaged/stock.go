package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/model"
)

// stockFile is storage.yaml: where the network can be reached from and what
// it holds at startup.
type stockFile struct {
	AccessPoints []struct {
		Pos  [3]int `yaml:"pos"`
		Kind string `yaml:"kind"`
	} `yaml:"access_points"`
	Stock map[string]int `yaml:"stock"`
}

func loadStock(path string) (stockFile, error) {
	var st stockFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return st, fmt.Errorf("storage.yaml: %w", err)
	}
	return st, nil
}

// apply registers the access points and deposits the stock. Unknown item ids
// are rejected.
func (st stockFile) apply(m *storage.Memory, items *catalogs.ItemCatalog) error {
	ids := make([]string, 0, len(st.Stock))
	for id := range st.Stock {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := items.Def(id); !ok {
			return fmt.Errorf("unknown item %q", id)
		}
		if st.Stock[id] < 0 {
			return fmt.Errorf("negative stock for %s", id)
		}
	}
	for _, ap := range st.AccessPoints {
		m.AddAccessPoint(storage.AccessPoint{
			Pos:  model.Vec3i{X: ap.Pos[0], Y: ap.Pos[1], Z: ap.Pos[2]},
			Kind: strings.ToUpper(strings.TrimSpace(ap.Kind)),
		})
	}
	for _, id := range ids {
		m.Deposit(model.ItemStack{Item: id, Count: st.Stock[id]})
	}
	return nil
}
