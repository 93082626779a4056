// Package catalog loads the domain → feature table and source presets.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trigonal/intake/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type file struct {
	Domains []domain.Domain `yaml:"domains"`
	Presets []domain.Preset `yaml:"presets"`
}

// Default returns the built-in catalog
func Default() *domain.Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Load reads a catalog file, or returns the built-in catalog when path is empty
func Load(path string) (*domain.Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document. Unknown keys are rejected.
func Parse(data []byte) (*domain.Catalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c, err := domain.NewCatalog(f.Domains, f.Presets)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return c, nil
}
