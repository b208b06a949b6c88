package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/media-search/internal/core/domain"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type taxonomyFile struct {
	Categories []domain.TaxonomyEntry `yaml:"categories"`
}

// LoadTaxonomy reads the category tree from path, or the built-in tree when
// path is empty.
func LoadTaxonomy(path string) (domain.Taxonomy, error) {
	raw := defaultTaxonomy
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Taxonomy{}, fmt.Errorf("read taxonomy file: %w", err)
		}
		raw = data
	}
	return ParseTaxonomy(raw)
}

func ParseTaxonomy(raw []byte) (domain.Taxonomy, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}
	taxonomy := domain.NewTaxonomy(file.Categories)
	if len(taxonomy.Entries()) == 0 {
		return domain.Taxonomy{}, fmt.Errorf("parse taxonomy: no categories defined")
	}
	return taxonomy, nil
}
