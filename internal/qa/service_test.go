package qa_test

import (
	"context"
	"errors"
	"testing"

	"github.com/qboard/qboard/internal/qa"
	"github.com/qboard/qboard/internal/question"
)

type recountSpy struct {
	calls [][]string
}

func (r *recountSpy) Recount(ctx context.Context, clusterIDs ...string) error {
	r.calls = append(r.calls, clusterIDs)
	return nil
}

func newService(t *testing.T) (*qa.Service, *qa.MemoryStore, *question.MemoryStore, *recountSpy) {
	t.Helper()

	qas := qa.NewMemoryStore()
	questions := question.NewMemoryStore()
	spy := &recountSpy{}
	svc, err := qa.NewService(qas, questions, spy, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, qas, questions, spy
}

func addQuestion(t *testing.T, questions *question.MemoryStore, id, courseID, clusterID string) {
	t.Helper()

	ctx := context.Background()
	if _, err := questions.Create(ctx, question.Question{ID: id, CourseID: courseID, Text: id + "?"}); err != nil {
		t.Fatalf("Create(%s): %v", id, err)
	}
	if clusterID != "" {
		if _, err := questions.ApplyAnalysis(ctx, id, question.Analysis{ClusterID: clusterID, DifficultyScore: 0.5}); err != nil {
			t.Fatalf("ApplyAnalysis(%s): %v", id, err)
		}
	}
}

func TestMerge_HappyPath(t *testing.T) {
	svc, _, questions, spy := newService(t)
	ctx := context.Background()

	addQuestion(t, questions, "q1", "cs101", "c1")
	addQuestion(t, questions, "q2", "cs101", "c2")

	merged, err := svc.Merge(ctx, qa.MergeRequest{
		CourseID:    "cs101",
		QuestionIDs: []string{"q1", "q2"},
		Question:    "What is a loop?",
		Answer:      "A loop repeats a block of code.",
		Tags:        []string{"loops"},
		CreatedBy:   "mod",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.SourceQuestionIDs) != 2 {
		t.Errorf("SourceQuestionIDs = %v", merged.SourceQuestionIDs)
	}
	if merged.IsPublished {
		t.Error("new QA should start unpublished")
	}

	for _, id := range []string{"q1", "q2"} {
		q, _ := questions.Get(ctx, id)
		if !q.IsMerged || q.MergedToQAID != merged.ID {
			t.Errorf("%s: merged=%v qa=%q", id, q.IsMerged, q.MergedToQAID)
		}
		if q.ClusterID == "" {
			t.Errorf("%s: cluster link lost on merge", id)
		}
	}

	// Both source clusters lose an active member and get recounted.
	if len(spy.calls) != 1 || len(spy.calls[0]) != 2 {
		t.Errorf("recount calls = %v, want one call for both clusters", spy.calls)
	}
}

func TestMerge_Preconditions(t *testing.T) {
	svc, qas, questions, _ := newService(t)
	ctx := context.Background()

	addQuestion(t, questions, "q1", "cs101", "")
	addQuestion(t, questions, "foreign", "math200", "")
	addQuestion(t, questions, "taken", "cs101", "")
	if err := questions.MarkMerged(ctx, []string{"taken"}, "qa-0"); err != nil {
		t.Fatalf("MarkMerged: %v", err)
	}

	base := qa.MergeRequest{
		CourseID: "cs101",
		Question: "Q?",
		Answer:   "A.",
	}

	var merr qa.InvalidMergeError

	req := base
	req.QuestionIDs = []string{"q1", "foreign"}
	if _, err := svc.Merge(ctx, req); !errors.As(err, &merr) {
		t.Errorf("cross-course merge: err = %v, want InvalidMergeError", err)
	}

	req = base
	req.QuestionIDs = []string{"q1", "taken"}
	if _, err := svc.Merge(ctx, req); !errors.As(err, &merr) {
		t.Errorf("already-merged member: err = %v, want InvalidMergeError", err)
	}

	req = base
	req.QuestionIDs = []string{"q1", "q1"}
	if _, err := svc.Merge(ctx, req); !errors.As(err, &merr) {
		t.Errorf("duplicate member: err = %v, want InvalidMergeError", err)
	}

	req = base
	req.QuestionIDs = []string{"q1", "ghost"}
	if _, err := svc.Merge(ctx, req); !errors.Is(err, question.ErrNotFound) {
		t.Errorf("missing member: err = %v, want question.ErrNotFound", err)
	}

	// Nothing was written by any of the failed merges.
	q, _ := questions.Get(ctx, "q1")
	if q.IsMerged {
		t.Error("q1 was merged by a failed request")
	}
	all, _ := qas.List(ctx, qa.ListFilter{CourseID: "cs101"})
	if len(all) != 0 {
		t.Errorf("got %d QAs, want none", len(all))
	}
}

func TestMerge_Validation(t *testing.T) {
	svc, _, questions, _ := newService(t)
	ctx := context.Background()
	addQuestion(t, questions, "q1", "cs101", "")

	tests := []struct {
		name string
		req  qa.MergeRequest
	}{
		{"no course", qa.MergeRequest{QuestionIDs: []string{"q1"}, Question: "Q?", Answer: "A."}},
		{"no questions", qa.MergeRequest{CourseID: "cs101", Question: "Q?", Answer: "A."}},
		{"no question text", qa.MergeRequest{CourseID: "cs101", QuestionIDs: []string{"q1"}, Answer: "A."}},
		{"no answer", qa.MergeRequest{CourseID: "cs101", QuestionIDs: []string{"q1"}, Question: "Q?"}},
	}
	for _, tt := range tests {
		_, err := svc.Merge(ctx, tt.req)
		var verr question.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: err = %v, want ValidationError", tt.name, err)
		}
	}
}

func TestPublishLifecycle(t *testing.T) {
	svc, _, questions, _ := newService(t)
	ctx := context.Background()
	addQuestion(t, questions, "q1", "cs101", "")

	merged, err := svc.Merge(ctx, qa.MergeRequest{
		CourseID:    "cs101",
		QuestionIDs: []string{"q1"},
		Question:    "Q?",
		Answer:      "A.",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	published, err := svc.SetPublished(ctx, merged.ID, true, "mod")
	if err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	if !published.IsPublished || published.PublishDate == nil {
		t.Errorf("published = %+v, want flag set and date stamped", published)
	}

	unpublished, err := svc.SetPublished(ctx, merged.ID, false, "mod")
	if err != nil {
		t.Fatalf("SetPublished(false): %v", err)
	}
	if unpublished.IsPublished || unpublished.PublishDate != nil {
		t.Errorf("unpublished = %+v, want flag and date cleared", unpublished)
	}
}

func TestSearch_PublishedOnly(t *testing.T) {
	svc, _, questions, _ := newService(t)
	ctx := context.Background()
	addQuestion(t, questions, "q1", "cs101", "")
	addQuestion(t, questions, "q2", "cs101", "")

	visible, err := svc.Merge(ctx, qa.MergeRequest{
		CourseID:    "cs101",
		QuestionIDs: []string{"q1"},
		Question:    "What is recursion?",
		Answer:      "A function calling itself.",
		Tags:        []string{"recursion"},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, err := svc.Merge(ctx, qa.MergeRequest{
		CourseID:    "cs101",
		QuestionIDs: []string{"q2"},
		Question:    "What is recursion depth?",
		Answer:      "How deep the call stack goes.",
	}); err != nil {
		t.Fatalf("Merge #2: %v", err)
	}
	if _, err := svc.SetPublished(ctx, visible.ID, true, "mod"); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}

	out, err := svc.Search(ctx, "cs101", "RECURSION", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 1 || out[0].ID != visible.ID {
		t.Errorf("Search returned %d results, want only the published QA", len(out))
	}

	// Tag match works too.
	out, _ = svc.Search(ctx, "cs101", "recur", 0)
	if len(out) != 1 {
		t.Errorf("tag search returned %d results", len(out))
	}

	if _, err := svc.Search(ctx, "", "x", 0); err == nil {
		t.Error("missing course accepted")
	}
}

func TestDelete_KeepsQuestionsMerged(t *testing.T) {
	svc, _, questions, _ := newService(t)
	ctx := context.Background()
	addQuestion(t, questions, "q1", "cs101", "")

	merged, err := svc.Merge(ctx, qa.MergeRequest{
		CourseID:    "cs101",
		QuestionIDs: []string{"q1"},
		Question:    "Q?",
		Answer:      "A.",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if err := svc.Delete(ctx, merged.ID, "mod"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, merged.ID); !errors.Is(err, qa.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}

	q, _ := questions.Get(ctx, "q1")
	if !q.IsMerged {
		t.Error("deleting the QA un-merged its source question")
	}
}
