package announcement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/qboard/qboard/internal/announcement"
	"github.com/qboard/qboard/internal/course"
	"github.com/qboard/qboard/internal/question"
)

func newService(t *testing.T) (*announcement.Service, *announcement.MemoryStore) {
	t.Helper()

	store := announcement.NewMemoryStore()
	courses := course.NewMemoryStore()
	if _, err := courses.Create(context.Background(), course.Course{ID: "cs101", Code: "CS101", Name: "Intro", IsActive: true}); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	svc, err := announcement.NewService(store, courses, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestCreate_PublishImmediatelyStampsDate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, announcement.CreateRequest{
		CourseID:     "cs101",
		Title:        "Midterm moved",
		Content:      "The midterm is now on Friday.",
		RelatedQAIDs: []string{"qa-1"},
		IsPublished:  true,
		CreatedBy:    "ta",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !a.IsPublished || a.PublishDate == nil {
		t.Errorf("announcement = published=%v date=%v, want stamped", a.IsPublished, a.PublishDate)
	}

	draft, err := svc.Create(ctx, announcement.CreateRequest{
		CourseID: "cs101",
		Title:    "Draft",
		Content:  "Not yet.",
	})
	if err != nil {
		t.Fatalf("Create draft: %v", err)
	}
	if draft.IsPublished || draft.PublishDate != nil {
		t.Errorf("draft = published=%v date=%v, want unpublished", draft.IsPublished, draft.PublishDate)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  announcement.CreateRequest
	}{
		{"missing course", announcement.CreateRequest{Title: "t", Content: "c"}},
		{"missing title", announcement.CreateRequest{CourseID: "cs101", Content: "c"}},
		{"missing content", announcement.CreateRequest{CourseID: "cs101", Title: "t"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			var verr question.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}

	_, err := svc.Create(ctx, announcement.CreateRequest{CourseID: "ghost", Title: "t", Content: "c"})
	if !errors.Is(err, course.ErrNotFound) {
		t.Errorf("err = %v, want course.ErrNotFound", err)
	}
}

func TestList_ClassFilterIncludesCourseWide(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	courseWide, err := svc.Create(ctx, announcement.CreateRequest{
		CourseID: "cs101", Title: "All classes", Content: "Welcome.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	classOnly, err := svc.Create(ctx, announcement.CreateRequest{
		CourseID: "cs101", ClassID: "a", Title: "Class A", Content: "Room change.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, announcement.CreateRequest{
		CourseID: "cs101", ClassID: "b", Title: "Class B", Content: "Other room.",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := svc.List(ctx, announcement.ListFilter{CourseID: "cs101", ClassID: "a"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("List = %d announcements, want class A plus course-wide", len(out))
	}
	seen := map[string]bool{}
	for _, a := range out {
		seen[a.ID] = true
	}
	if !seen[courseWide.ID] || !seen[classOnly.ID] {
		t.Errorf("List = %v, want both %s and %s", seen, courseWide.ID, classOnly.ID)
	}
}

func TestUpdate_ContentOnlyKeepsPublishState(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, announcement.CreateRequest{
		CourseID: "cs101", Title: "Old", Content: "Old text.", IsPublished: true, CreatedBy: "ta",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(ctx, a.ID, announcement.UpdateRequest{
		Title:        "New",
		Content:      "New text.",
		RelatedQAIDs: []string{"qa-2"},
	}, "ta")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "New" || updated.Content != "New text." {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.IsPublished || updated.PublishDate == nil {
		t.Error("content edit must not touch publish state")
	}
	if updated.CreatedBy != "ta" {
		t.Errorf("CreatedBy = %q, want preserved", updated.CreatedBy)
	}

	_, err = svc.Update(ctx, a.ID, announcement.UpdateRequest{Title: "", Content: "x"}, "ta")
	var verr question.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestSetPublished_Lifecycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, announcement.CreateRequest{CourseID: "cs101", Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	pub, err := svc.SetPublished(ctx, a.ID, true, "ta")
	if err != nil {
		t.Fatalf("SetPublished(true): %v", err)
	}
	if !pub.IsPublished || pub.PublishDate == nil {
		t.Errorf("publish = %+v, want date stamped", pub)
	}

	unpub, err := svc.SetPublished(ctx, a.ID, false, "ta")
	if err != nil {
		t.Fatalf("SetPublished(false): %v", err)
	}
	if unpub.IsPublished || unpub.PublishDate != nil {
		t.Errorf("unpublish = %+v, want date cleared", unpub)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, announcement.CreateRequest{CourseID: "cs101", Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, a.ID, "ta"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, a.ID); !errors.Is(err, announcement.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, a.ID, "ta"); !errors.Is(err, announcement.ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}
