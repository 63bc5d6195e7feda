package cluster_test

import (
	"context"
	"errors"
	"testing"

	"github.com/qboard/qboard/internal/cluster"
)

func TestMemoryStore_FindByLabelMatchesEffectiveLabel(t *testing.T) {
	s := cluster.NewMemoryStore()
	ctx := context.Background()

	c, err := s.Create(ctx, cluster.Cluster{CourseID: "cs101", TopicLabel: "Loops"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.FindByLabel(ctx, "cs101", "  loops ")
	if err != nil {
		t.Fatalf("FindByLabel: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("FindByLabel returned %s, want %s", got.ID, c.ID)
	}

	if _, err := s.FindByLabel(ctx, "math200", "loops"); !errors.Is(err, cluster.ErrNotFound) {
		t.Errorf("cross-course lookup: err = %v, want ErrNotFound", err)
	}

	// After a rename the manual label is the one that matches.
	if _, err := s.Rename(ctx, c.ID, "Iteration"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := s.FindByLabel(ctx, "cs101", "loops"); !errors.Is(err, cluster.ErrNotFound) {
		t.Errorf("old label still matches after rename: err = %v", err)
	}
	got, err = s.FindByLabel(ctx, "cs101", "iteration")
	if err != nil {
		t.Fatalf("FindByLabel(iteration): %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("FindByLabel(iteration) returned %s, want %s", got.ID, c.ID)
	}
}

func TestMemoryStore_RenameLocks(t *testing.T) {
	s := cluster.NewMemoryStore()
	ctx := context.Background()

	c, _ := s.Create(ctx, cluster.Cluster{CourseID: "cs101", TopicLabel: "Loops"})
	got, err := s.Rename(ctx, c.ID, "Iteration Basics")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !got.IsLocked {
		t.Error("rename did not lock the cluster")
	}
	if got.Label() != "Iteration Basics" {
		t.Errorf("Label() = %q", got.Label())
	}
	if got.TopicLabel != "Loops" {
		t.Errorf("TopicLabel = %q, want original AI label preserved", got.TopicLabel)
	}
}

func TestMemoryStore_ApplyAIMetadataRespectsLock(t *testing.T) {
	s := cluster.NewMemoryStore()
	ctx := context.Background()

	c, _ := s.Create(ctx, cluster.Cluster{CourseID: "cs101", TopicLabel: "Loops", Summary: "old"})

	got, err := s.ApplyAIMetadata(ctx, c.ID, "Iteration", "fresh", []string{"for"})
	if err != nil {
		t.Fatalf("ApplyAIMetadata: %v", err)
	}
	if got.TopicLabel != "Iteration" || got.Summary != "fresh" {
		t.Errorf("unlocked cluster not updated: %+v", got)
	}

	if _, err := s.SetLocked(ctx, c.ID, true); err != nil {
		t.Fatalf("SetLocked: %v", err)
	}
	got, err = s.ApplyAIMetadata(ctx, c.ID, "Something Else", "noisy", []string{"x"})
	if err != nil {
		t.Fatalf("ApplyAIMetadata on locked: %v", err)
	}
	if got.TopicLabel != "Iteration" || got.Summary != "fresh" {
		t.Errorf("locked cluster was modified: %+v", got)
	}

	// Unlocking re-opens it.
	if _, err := s.SetLocked(ctx, c.ID, false); err != nil {
		t.Fatalf("SetLocked(false): %v", err)
	}
	got, _ = s.ApplyAIMetadata(ctx, c.ID, "Something Else", "noisy", nil)
	if got.TopicLabel != "Something Else" {
		t.Errorf("unlocked cluster not updated after unlock: %+v", got)
	}
}

func TestMemoryStore_ListByCourseOrdersByCount(t *testing.T) {
	s := cluster.NewMemoryStore()
	ctx := context.Background()

	small, _ := s.Create(ctx, cluster.Cluster{CourseID: "cs101", TopicLabel: "A"})
	big, _ := s.Create(ctx, cluster.Cluster{CourseID: "cs101", TopicLabel: "B"})
	s.Create(ctx, cluster.Cluster{CourseID: "math200", TopicLabel: "C"})

	if err := s.SetAggregates(ctx, big.ID, 5, 0.5); err != nil {
		t.Fatalf("SetAggregates: %v", err)
	}
	if err := s.SetAggregates(ctx, small.ID, 1, 0.2); err != nil {
		t.Fatalf("SetAggregates: %v", err)
	}

	out, err := s.ListByCourse(ctx, "cs101")
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d clusters, want 2", len(out))
	}
	if out[0].ID != big.ID {
		t.Errorf("first cluster = %s, want the biggest", out[0].TopicLabel)
	}
}
