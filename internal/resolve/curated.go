package resolve

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CuratedEntry is a hand-picked display name and icon name for a package.
type CuratedEntry struct {
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

// CuratedTable maps package names to curated entries. It takes precedence
// over every derived source and is never mutated by the resolver.
type CuratedTable map[string]CuratedEntry

//go:embed curated.yaml
var defaultCurated []byte

// LoadCuratedTable loads the curated table: the embedded default when
// path is empty, otherwise the YAML file at path.
func LoadCuratedTable(path string) (CuratedTable, error) {
	data := defaultCurated
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read curated table: %w", err)
		}
	}

	table := CuratedTable{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse curated table: %w", err)
	}
	return table, nil
}
