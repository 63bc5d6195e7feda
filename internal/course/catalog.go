package course

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry is one course in the YAML seed file.
type CatalogEntry struct {
	ID          string `yaml:"id"`
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Semester    string `yaml:"semester"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

type catalogFile struct {
	Courses []CatalogEntry `yaml:"courses"`
}

// LoadCatalog parses a course catalog YAML file.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	for i, e := range f.Courses {
		if e.Code == "" || e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: code and name are required", i)
		}
	}
	return f.Courses, nil
}

// Seed inserts catalog entries that are not already present. Entries with an
// explicit id are skipped when that id exists, so re-seeding is idempotent.
func Seed(ctx context.Context, store Store, entries []CatalogEntry) (int, error) {
	created := 0
	for _, e := range entries {
		if e.ID != "" {
			if _, err := store.Get(ctx, e.ID); err == nil {
				continue
			}
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}

		c, err := store.Create(ctx, Course{
			ID:          e.ID,
			Code:        e.Code,
			Name:        e.Name,
			Semester:    e.Semester,
			Description: e.Description,
			IsActive:    active,
		})
		if err != nil {
			return created, fmt.Errorf("seeding course %s: %w", e.Code, err)
		}
		created++
		slog.Info("course seeded", "id", c.ID, "code", c.Code, "semester", c.Semester)
	}
	return created, nil
}
