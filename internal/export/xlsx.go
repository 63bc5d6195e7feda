// Package export builds XLSX course reports for instructors.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/identity"
	"github.com/qboard/qboard/internal/qa"
	"github.com/qboard/qboard/internal/question"
)

const (
	sheetQuestions = "Questions"
	sheetClusters  = "Clusters"
	sheetQAs       = "QAs"
)

// Report is the input to a course export.
type Report struct {
	CourseID  string
	Questions []question.Question
	Clusters  []cluster.Cluster
	QAs       []qa.QA
}

// WriteXLSX renders the report as a three-sheet workbook. Submitters appear
// only as shortened pseudonyms.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeQuestions(f, r.Questions); err != nil {
		return err
	}
	if err := writeClusters(f, r.Clusters); err != nil {
		return err
	}
	if err := writeQAs(f, r.QAs); err != nil {
		return err
	}

	// excelize starts with a default "Sheet1"; drop it once the real sheets
	// exist.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(sheetQuestions)
	if err != nil {
		return fmt.Errorf("get sheet index: %w", err)
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeQuestions(f *excelize.File, questions []question.Question) error {
	if _, err := f.NewSheet(sheetQuestions); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetQuestions, err)
	}

	header := []any{"ID", "Submitter", "Question", "Status", "Rejection Reason",
		"Cluster", "Difficulty", "Level", "Merged Into", "Created"}
	if err := f.SetSheetRow(sheetQuestions, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, q := range questions {
		score := ""
		if q.DifficultyScore != nil {
			score = strconv.FormatFloat(*q.DifficultyScore, 'f', 2, 64)
		}
		row := []any{
			q.ID,
			identity.Short(q.Pseudonym),
			q.Text,
			string(q.Status),
			q.RejectionReason,
			q.ClusterID,
			score,
			string(q.DifficultyLevel),
			q.MergedToQAID,
			q.CreatedAt.Format(time.RFC3339),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetQuestions, cell, &row); err != nil {
			return fmt.Errorf("write question row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeClusters(f *excelize.File, clusters []cluster.Cluster) error {
	if _, err := f.NewSheet(sheetClusters); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetClusters, err)
	}

	header := []any{"ID", "Label", "Summary", "Questions", "Avg Difficulty", "Locked"}
	if err := f.SetSheetRow(sheetClusters, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, c := range clusters {
		row := []any{
			c.ID,
			c.Label(),
			c.Summary,
			c.QuestionCount,
			strconv.FormatFloat(c.AvgDifficulty, 'f', 2, 64),
			c.IsLocked,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetClusters, cell, &row); err != nil {
			return fmt.Errorf("write cluster row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeQAs(f *excelize.File, qas []qa.QA) error {
	if _, err := f.NewSheet(sheetQAs); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetQAs, err)
	}

	header := []any{"ID", "Question", "Answer", "Category", "Published", "Source Questions"}
	if err := f.SetSheetRow(sheetQAs, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, entry := range qas {
		row := []any{
			entry.ID,
			entry.Question,
			entry.Answer,
			entry.Category,
			entry.IsPublished,
			len(entry.SourceQuestionIDs),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetQAs, cell, &row); err != nil {
			return fmt.Errorf("write qa row %d: %w", i+2, err)
		}
	}
	return nil
}
