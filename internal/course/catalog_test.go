package course_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qboard/qboard/internal/course"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
courses:
  - code: CS101
    name: Intro to Computing
    semester: 113-1
  - id: fixed-id
    code: CS201
    name: Data Structures
    active: false
`)

	entries, err := course.LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Code != "CS101" || entries[0].Semester != "113-1" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Active == nil || *entries[1].Active {
		t.Error("second entry should be inactive")
	}
}

func TestLoadCatalog_MissingFields(t *testing.T) {
	path := writeCatalog(t, `
courses:
  - code: CS101
`)

	if _, err := course.LoadCatalog(path); err == nil {
		t.Error("LoadCatalog() should reject entry without name")
	}
}

func TestSeed_Idempotent(t *testing.T) {
	store := course.NewMemoryStore()
	entries := []course.CatalogEntry{
		{ID: "c1", Code: "CS101", Name: "Intro"},
		{Code: "CS102", Name: "More Intro"},
	}

	ctx := t.Context()
	created, err := course.Seed(ctx, store, entries)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	// Re-seeding must not duplicate the fixed-id entry.
	created, err = course.Seed(ctx, store, entries[:1])
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if created != 0 {
		t.Errorf("re-seed created = %d, want 0", created)
	}

	c, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !c.IsActive {
		t.Error("seeded course should default to active")
	}
}
