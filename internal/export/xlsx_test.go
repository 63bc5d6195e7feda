package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/export"
	"github.com/qboard/qboard/internal/qa"
	"github.com/qboard/qboard/internal/question"
)

func TestWriteXLSX(t *testing.T) {
	score := 0.42
	pseudonym := strings.Repeat("ab", 32)

	var buf bytes.Buffer
	err := export.WriteXLSX(&buf, export.Report{
		CourseID: "cs101",
		Questions: []question.Question{
			{ID: "q1", CourseID: "cs101", Pseudonym: pseudonym, Text: "what is a map?",
				Status: question.StatusApproved, DifficultyScore: &score, DifficultyLevel: question.DifficultyMedium},
		},
		Clusters: []cluster.Cluster{
			{ID: "c1", CourseID: "cs101", TopicLabel: "Maps", QuestionCount: 1, AvgDifficulty: 0.42},
		},
		QAs: []qa.QA{
			{ID: "a1", CourseID: "cs101", Question: "What is a map?", Answer: "A hash table.",
				IsPublished: true, SourceQuestionIDs: []string{"q1"}},
		},
	})
	if err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	want := map[string]bool{"Questions": false, "Clusters": false, "QAs": false}
	for _, s := range sheets {
		if _, ok := want[s]; ok {
			want[s] = true
		}
		if s == "Sheet1" {
			t.Error("default sheet left in workbook")
		}
	}
	for s, found := range want {
		if !found {
			t.Errorf("sheet %q missing (got %v)", s, sheets)
		}
	}

	rows, err := f.GetRows("Questions")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Questions has %d rows, want header + 1", len(rows))
	}

	// Only the shortened pseudonym appears, never the full digest.
	submitter := rows[1][1]
	if submitter != pseudonym[:16] {
		t.Errorf("submitter = %q, want shortened pseudonym", submitter)
	}

	qaRows, err := f.GetRows("QAs")
	if err != nil {
		t.Fatalf("GetRows(QAs): %v", err)
	}
	if len(qaRows) != 2 || qaRows[1][2] != "A hash table." {
		t.Errorf("QAs rows = %v", qaRows)
	}
}

func TestWriteXLSX_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, export.Report{CourseID: "cs101"}); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Clusters")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Clusters has %d rows, want header only", len(rows))
	}
}
