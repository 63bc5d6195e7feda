package analysis_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/qboard/qboard/internal/analysis"
	"github.com/qboard/qboard/internal/question"
)

func TestTriggerClustering(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := analysis.NewClient(srv.URL, "secret")
	err := c.TriggerClustering(context.Background(), "cs101", []question.PendingQuestion{
		{ID: "q1", Pseudonym: "abcd1234abcd1234", Text: "what is a slice?"},
	})
	if err != nil {
		t.Fatalf("TriggerClustering: %v", err)
	}
	if gotPath != "/v1/clustering" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["course_id"] != "cs101" {
		t.Errorf("course_id = %v", gotBody["course_id"])
	}

	// The payload carries pseudonyms, never raw handles.
	questions, _ := gotBody["questions"].([]any)
	if len(questions) != 1 {
		t.Fatalf("questions = %v", gotBody["questions"])
	}
	q, _ := questions[0].(map[string]any)
	for key := range q {
		if strings.Contains(key, "external") || strings.Contains(key, "raw") {
			t.Errorf("de-identified payload carries field %q", key)
		}
	}
}

func TestTriggerClustering_EmptyBatchDoesNotCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := analysis.NewClient(srv.URL, "")
	if err := c.TriggerClustering(context.Background(), "cs101", nil); err != nil {
		t.Fatalf("TriggerClustering: %v", err)
	}
	if called {
		t.Error("empty batch hit the service")
	}
}

func TestRequestDraft_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := analysis.NewClient(srv.URL, "")
	err := c.RequestDraft(context.Background(), "q1", "what is a map?")
	if err == nil {
		t.Fatal("want error on 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := analysis.NewClient(srv.URL, "")
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
