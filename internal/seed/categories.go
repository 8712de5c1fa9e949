package seed

import (
	"context"
	_ "embed"
	"fmt"

	"bitboard/internal/models"
	"bitboard/internal/repository"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

type categoryFile struct {
	Categories []struct {
		Name        string `yaml:"name"`
		Slug        string `yaml:"slug"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
}

// LoadCategories parses the embedded category list.
func LoadCategories() ([]models.Category, error) {
	return parseCategories(categoriesYAML)
}

func parseCategories(data []byte) ([]models.Category, error) {
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}

	seen := make(map[string]bool, len(f.Categories))
	out := make([]models.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		if c.Name == "" || c.Slug == "" {
			return nil, fmt.Errorf("category %q: name and slug are required", c.Slug)
		}
		if seen[c.Slug] {
			return nil, fmt.Errorf("duplicate category slug %q", c.Slug)
		}
		seen[c.Slug] = true
		out = append(out, models.Category{Name: c.Name, Slug: c.Slug, Description: c.Description})
	}
	return out, nil
}

// Categories upserts the embedded categories. It is idempotent.
func Categories(ctx context.Context, repo repository.CategoryRepository) error {
	categories, err := LoadCategories()
	if err != nil {
		return err
	}
	return repo.Upsert(ctx, categories)
}
