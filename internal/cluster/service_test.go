package cluster_test

import (
	"context"
	"errors"
	"testing"

	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/question"
)

func newService(t *testing.T) (*cluster.Service, *cluster.MemoryStore, *question.MemoryStore) {
	t.Helper()

	clusters := cluster.NewMemoryStore()
	questions := question.NewMemoryStore()
	svc, err := cluster.NewService(clusters, questions, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, clusters, questions
}

func addMember(t *testing.T, questions *question.MemoryStore, id, clusterID string, score float64) {
	t.Helper()

	ctx := context.Background()
	if _, err := questions.Create(ctx, question.Question{ID: id, CourseID: "cs101", Text: id + "?"}); err != nil {
		t.Fatalf("Create(%s): %v", id, err)
	}
	if _, err := questions.ApplyAnalysis(ctx, id, question.Analysis{ClusterID: clusterID, DifficultyScore: score}); err != nil {
		t.Fatalf("ApplyAnalysis(%s): %v", id, err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", "Loops", "mod"); err == nil {
		t.Error("missing course accepted")
	}
	if _, err := svc.Create(ctx, "cs101", "", "mod"); err == nil {
		t.Error("empty label accepted")
	}

	c, err := svc.Create(ctx, "cs101", "Loops", "mod")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.IsLocked {
		t.Error("manual create should start unlocked")
	}
	if c.QuestionCount != 0 {
		t.Errorf("QuestionCount = %d, want 0", c.QuestionCount)
	}
}

func TestUpdate_RenameLocksAndUnlockReopens(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cs101", "Loops", "mod")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	label := "Iteration"
	got, err := svc.Update(ctx, c.ID, cluster.UpdateRequest{TopicLabel: &label}, "mod")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.IsLocked {
		t.Error("rename did not lock")
	}

	unlocked := false
	got, err = svc.Update(ctx, c.ID, cluster.UpdateRequest{IsLocked: &unlocked}, "mod")
	if err != nil {
		t.Fatalf("Update(unlock): %v", err)
	}
	if got.IsLocked {
		t.Error("explicit unlock ignored")
	}

	if _, err := svc.Update(ctx, c.ID, cluster.UpdateRequest{}, "mod"); err == nil {
		t.Error("empty update accepted")
	}
	empty := ""
	if _, err := svc.Update(ctx, c.ID, cluster.UpdateRequest{TopicLabel: &empty}, "mod"); err == nil {
		t.Error("empty label accepted")
	}
}

func TestDelete_ReleasesMembersFirst(t *testing.T) {
	svc, clusters, questions := newService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cs101", "Loops", "mod")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	addMember(t, questions, "q1", c.ID, 0.5)
	addMember(t, questions, "q2", c.ID, 0.5)

	if err := svc.Delete(ctx, c.ID, "mod"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := clusters.Get(ctx, c.ID); !errors.Is(err, cluster.ErrNotFound) {
		t.Errorf("cluster still present: %v", err)
	}
	for _, id := range []string{"q1", "q2"} {
		q, err := questions.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if q.ClusterID != "" {
			t.Errorf("%s.ClusterID = %q, want cleared", id, q.ClusterID)
		}
	}

	if err := svc.Delete(ctx, c.ID, "mod"); !errors.Is(err, cluster.ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestRecount_ExcludesDeletedAndWithdrawn(t *testing.T) {
	svc, clusters, questions := newService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cs101", "Loops", "mod")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	addMember(t, questions, "keep", c.ID, 0.2)
	addMember(t, questions, "gone", c.ID, 0.8)
	addMember(t, questions, "quit", c.ID, 0.9)

	if err := svc.Recount(ctx, c.ID); err != nil {
		t.Fatalf("Recount: %v", err)
	}
	got, _ := clusters.Get(ctx, c.ID)
	if got.QuestionCount != 3 {
		t.Fatalf("QuestionCount = %d, want 3", got.QuestionCount)
	}

	if _, err := questions.Transition(ctx, "gone", question.StatusDeleted, ""); err != nil {
		t.Fatalf("Transition(gone): %v", err)
	}
	if _, err := questions.Transition(ctx, "quit", question.StatusWithdrawn, ""); err != nil {
		t.Fatalf("Transition(quit): %v", err)
	}

	if err := svc.Recount(ctx, c.ID); err != nil {
		t.Fatalf("Recount #2: %v", err)
	}
	got, _ = clusters.Get(ctx, c.ID)
	if got.QuestionCount != 1 {
		t.Errorf("QuestionCount = %d, want 1", got.QuestionCount)
	}
	if got.AvgDifficulty != 0.2 {
		t.Errorf("AvgDifficulty = %v, want 0.2", got.AvgDifficulty)
	}

	// The cluster link itself is retained on the excluded questions.
	gone, _ := questions.Get(ctx, "gone")
	if gone.ClusterID != c.ID {
		t.Errorf("gone.ClusterID = %q, want link retained", gone.ClusterID)
	}
}

func TestRecount_SkipsVanishedClusters(t *testing.T) {
	svc, _, _ := newService(t)

	if err := svc.Recount(context.Background(), "ghost"); err != nil {
		t.Errorf("Recount(ghost) = %v, want nil", err)
	}
}
