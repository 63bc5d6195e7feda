package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/qboard/qboard/internal/announcement"
	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/course"
	"github.com/qboard/qboard/internal/export"
	"github.com/qboard/qboard/internal/qa"
	"github.com/qboard/qboard/internal/question"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeErr maps domain errors to HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	var verr question.ValidationError
	var terr question.InvalidTransitionError
	var merr qa.InvalidMergeError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &terr), errors.As(err, &merr),
		errors.Is(err, question.ErrAlreadyMerged),
		errors.Is(err, course.ErrInactive):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, question.ErrNotFound),
		errors.Is(err, cluster.ErrNotFound),
		errors.Is(err, qa.ErrNotFound),
		errors.Is(err, announcement.ErrNotFound),
		errors.Is(err, course.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return question.ValidationError{Field: "body", Msg: err.Error()}
	}
	return nil
}

func actor(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *app) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
	}
	if a.cache != nil {
		if err := a.cache.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *app) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := a.courses.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (a *app) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code        string `json:"code"`
		Name        string `json:"name"`
		Semester    string `json:"semester"`
		Description string `json:"description"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Code == "" {
		writeErr(w, question.ValidationError{Field: "code", Msg: "required"})
		return
	}
	if req.Name == "" {
		writeErr(w, question.ValidationError{Field: "name", Msg: "required"})
		return
	}

	c, err := a.courses.Create(r.Context(), course.Course{
		Code:        req.Code,
		Name:        req.Name,
		Semester:    req.Semester,
		Description: req.Description,
		IsActive:    true,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *app) handleSetCourseActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.IsActive == nil {
		writeErr(w, question.ValidationError{Field: "is_active", Msg: "required"})
		return
	}

	c, err := a.courses.SetActive(r.Context(), r.PathValue("id"), *req.IsActive)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *app) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.questions.Statistics(r.Context(), r.PathValue("id"), r.URL.Query().Get("class_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *app) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := r.PathValue("id")

	if _, err := a.courses.Get(ctx, courseID); err != nil {
		writeErr(w, err)
		return
	}

	questions, err := a.questions.List(ctx, question.ListFilter{CourseID: courseID, IncludeDeleted: true})
	if err != nil {
		writeErr(w, err)
		return
	}
	clusters, err := a.clusters.ListByCourse(ctx, courseID)
	if err != nil {
		writeErr(w, err)
		return
	}
	qas, err := a.qas.List(ctx, qa.ListFilter{CourseID: courseID})
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", courseID+"-report.xlsx"))
	err = export.WriteXLSX(w, export.Report{
		CourseID:  courseID,
		Questions: questions,
		Clusters:  clusters,
		QAs:       qas,
	})
	if err != nil {
		slog.Error("export failed", "course_id", courseID, "error", err)
	}
}

func (a *app) handleSubmitQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID     string `json:"course_id"`
		ClassID      string `json:"class_id"`
		ExternalID   string `json:"external_id"`
		QuestionText string `json:"question_text"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	q, err := a.questions.Submit(r.Context(), question.SubmitRequest{
		CourseID:      req.CourseID,
		ClassID:       req.ClassID,
		RawExternalID: req.ExternalID,
		QuestionText:  req.QuestionText,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *app) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	f := question.ListFilter{
		CourseID:       qp.Get("course_id"),
		ClassID:        qp.Get("class_id"),
		ClusterID:      qp.Get("cluster_id"),
		IncludeDeleted: qp.Get("include_deleted") == "true",
		Limit:          intParam(qp.Get("limit")),
		Offset:         intParam(qp.Get("offset")),
	}
	if raw := qp.Get("status"); raw != "" {
		status, err := question.ParseStatus(raw)
		if err != nil {
			writeErr(w, err)
			return
		}
		f.Status = status
	}

	questions, err := a.questions.List(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func intParam(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (a *app) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := a.questions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *app) handleQuestionStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	status, err := question.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	q, err := a.questions.SetStatus(r.Context(), r.PathValue("id"), status, req.Reason, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *app) handleApplyDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DraftText string  `json:"draft_text"`
		Summary   *string `json:"summary"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	q, err := a.questions.ApplyDraft(r.Context(), r.PathValue("id"), req.DraftText, req.Summary)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *app) handleRegenerateDraft(w http.ResponseWriter, r *http.Request) {
	if a.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no analysis service configured"})
		return
	}

	q, err := a.questions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	// Fire and forget: the draft comes back later through the draft endpoint.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.analyzer.RequestDraft(ctx, q.ID, q.Text); err != nil {
			slog.Error("draft regeneration request failed", "question_id", q.ID, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "draft requested"})
}

func (a *app) handlePendingAnalysis(w http.ResponseWriter, r *http.Request) {
	pending, err := a.questions.PendingForAnalysis(r.Context(), r.PathValue("id"), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (a *app) handleTriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	if a.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no analysis service configured"})
		return
	}
	courseID := r.PathValue("id")

	pending, err := a.questions.PendingForAnalysis(r.Context(), courseID, intParam(r.URL.Query().Get("limit")))
	if err != nil {
		writeErr(w, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := a.analyzer.TriggerClustering(ctx, courseID, pending); err != nil {
			slog.Error("clustering trigger failed", "course_id", courseID, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "clustering requested",
		"questions": len(pending),
	})
}

func (a *app) handleClusteringResults(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, question.ValidationError{Field: "payload", Msg: err.Error()})
		return
	}

	report, err := a.engine.ApplyRaw(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *app) handleListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := a.clusters.ListByCourse(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

func (a *app) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicLabel string `json:"topic_label"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	c, err := a.clusters.Create(r.Context(), r.PathValue("id"), req.TopicLabel, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *app) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	c, err := a.clusters.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *app) handleUpdateCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicLabel *string `json:"topic_label"`
		IsLocked   *bool   `json:"is_locked"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	c, err := a.clusters.Update(r.Context(), r.PathValue("id"), cluster.UpdateRequest{
		TopicLabel: req.TopicLabel,
		IsLocked:   req.IsLocked,
	}, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *app) handleDeleteCluster(w http.ResponseWriter, r *http.Request) {
	if err := a.clusters.Delete(r.Context(), r.PathValue("id"), actor(r)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID    string   `json:"course_id"`
		ClassID     string   `json:"class_id"`
		QuestionIDs []string `json:"question_ids"`
		Question    string   `json:"question"`
		Answer      string   `json:"answer"`
		Category    string   `json:"category"`
		Tags        []string `json:"tags"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	merged, err := a.qas.Merge(r.Context(), qa.MergeRequest{
		CourseID:    req.CourseID,
		ClassID:     req.ClassID,
		QuestionIDs: req.QuestionIDs,
		Question:    req.Question,
		Answer:      req.Answer,
		Category:    req.Category,
		Tags:        req.Tags,
		CreatedBy:   actor(r),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, merged)
}

func (a *app) handleListQAs(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	qas, err := a.qas.List(r.Context(), qa.ListFilter{
		CourseID:      qp.Get("course_id"),
		ClassID:       qp.Get("class_id"),
		Category:      qp.Get("category"),
		PublishedOnly: qp.Get("published") == "true",
		Limit:         intParam(qp.Get("limit")),
		Offset:        intParam(qp.Get("offset")),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qas)
}

func (a *app) handleGetQA(w http.ResponseWriter, r *http.Request) {
	entry, err := a.qas.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *app) handleUpdateQA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string   `json:"question"`
		Answer   string   `json:"answer"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
		ClassID  string   `json:"class_id"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	entry, err := a.qas.Update(r.Context(), r.PathValue("id"), qa.UpdateRequest{
		Question: req.Question,
		Answer:   req.Answer,
		Category: req.Category,
		Tags:     req.Tags,
		ClassID:  req.ClassID,
	}, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *app) handlePublishQA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Published bool `json:"published"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	entry, err := a.qas.SetPublished(r.Context(), r.PathValue("id"), req.Published, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *app) handleDeleteQA(w http.ResponseWriter, r *http.Request) {
	if err := a.qas.Delete(r.Context(), r.PathValue("id"), actor(r)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handleSearchQAs(w http.ResponseWriter, r *http.Request) {
	results, err := a.qas.Search(r.Context(), r.PathValue("id"), r.URL.Query().Get("q"), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *app) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID     string   `json:"course_id"`
		ClassID      string   `json:"class_id"`
		Title        string   `json:"title"`
		Content      string   `json:"content"`
		RelatedQAIDs []string `json:"related_qa_ids"`
		IsPublished  bool     `json:"is_published"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	created, err := a.announcements.Create(r.Context(), announcement.CreateRequest{
		CourseID:     req.CourseID,
		ClassID:      req.ClassID,
		Title:        req.Title,
		Content:      req.Content,
		RelatedQAIDs: req.RelatedQAIDs,
		IsPublished:  req.IsPublished,
		CreatedBy:    actor(r),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *app) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	out, err := a.announcements.List(r.Context(), announcement.ListFilter{
		CourseID:      qp.Get("course_id"),
		ClassID:       qp.Get("class_id"),
		PublishedOnly: qp.Get("published") == "true",
		Limit:         intParam(qp.Get("limit")),
		Offset:        intParam(qp.Get("offset")),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *app) handleGetAnnouncement(w http.ResponseWriter, r *http.Request) {
	entry, err := a.announcements.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *app) handleUpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string   `json:"title"`
		Content      string   `json:"content"`
		RelatedQAIDs []string `json:"related_qa_ids"`
		ClassID      string   `json:"class_id"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	entry, err := a.announcements.Update(r.Context(), r.PathValue("id"), announcement.UpdateRequest{
		Title:        req.Title,
		Content:      req.Content,
		RelatedQAIDs: req.RelatedQAIDs,
		ClassID:      req.ClassID,
	}, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *app) handlePublishAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Published bool `json:"published"`
	}
	if err := decode(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	entry, err := a.announcements.SetPublished(r.Context(), r.PathValue("id"), req.Published, actor(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *app) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := a.announcements.Delete(r.Context(), r.PathValue("id"), actor(r)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
