package main

import (
	"net/http"

	"github.com/qboard/qboard/internal/analysis"
	"github.com/qboard/qboard/internal/announcement"
	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/course"
	"github.com/qboard/qboard/internal/platform/cache"
	"github.com/qboard/qboard/internal/platform/database"
	"github.com/qboard/qboard/internal/qa"
	"github.com/qboard/qboard/internal/question"
	"github.com/qboard/qboard/internal/reconcile"
)

// app holds the wired services behind the HTTP surface.
type app struct {
	courses       course.Store
	questions     *question.Service
	clusters      *cluster.Service
	qas           *qa.Service
	announcements *announcement.Service
	engine        *reconcile.Engine
	analyzer      *analysis.Client // nil when no analysis service is configured
	db            *database.DB     // nil in memory mode
	cache         *cache.Cache     // nil when no cache is configured
}

// routes builds the HTTP router.
func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)

	mux.HandleFunc("GET /api/courses", a.handleListCourses)
	mux.HandleFunc("POST /api/courses", a.handleCreateCourse)
	mux.HandleFunc("PATCH /api/courses/{id}", a.handleSetCourseActive)
	mux.HandleFunc("GET /api/courses/{id}/statistics", a.handleStatistics)
	mux.HandleFunc("GET /api/courses/{id}/export", a.handleExport)

	mux.HandleFunc("POST /api/questions", a.handleSubmitQuestion)
	mux.HandleFunc("GET /api/questions", a.handleListQuestions)
	mux.HandleFunc("GET /api/questions/{id}", a.handleGetQuestion)
	mux.HandleFunc("POST /api/questions/{id}/status", a.handleQuestionStatus)
	mux.HandleFunc("POST /api/questions/{id}/draft", a.handleApplyDraft)
	mux.HandleFunc("POST /api/questions/{id}/draft/regenerate", a.handleRegenerateDraft)

	mux.HandleFunc("GET /api/courses/{id}/pending-analysis", a.handlePendingAnalysis)
	mux.HandleFunc("POST /api/courses/{id}/analyze", a.handleTriggerAnalysis)
	mux.HandleFunc("POST /api/courses/{id}/clustering-results", a.handleClusteringResults)

	mux.HandleFunc("GET /api/courses/{id}/clusters", a.handleListClusters)
	mux.HandleFunc("POST /api/courses/{id}/clusters", a.handleCreateCluster)
	mux.HandleFunc("GET /api/clusters/{id}", a.handleGetCluster)
	mux.HandleFunc("PATCH /api/clusters/{id}", a.handleUpdateCluster)
	mux.HandleFunc("DELETE /api/clusters/{id}", a.handleDeleteCluster)

	mux.HandleFunc("POST /api/qas/merge", a.handleMerge)
	mux.HandleFunc("GET /api/qas", a.handleListQAs)
	mux.HandleFunc("GET /api/qas/{id}", a.handleGetQA)
	mux.HandleFunc("PUT /api/qas/{id}", a.handleUpdateQA)
	mux.HandleFunc("POST /api/qas/{id}/publish", a.handlePublishQA)
	mux.HandleFunc("DELETE /api/qas/{id}", a.handleDeleteQA)
	mux.HandleFunc("GET /api/courses/{id}/qa-search", a.handleSearchQAs)

	mux.HandleFunc("POST /api/announcements", a.handleCreateAnnouncement)
	mux.HandleFunc("GET /api/announcements", a.handleListAnnouncements)
	mux.HandleFunc("GET /api/announcements/{id}", a.handleGetAnnouncement)
	mux.HandleFunc("PATCH /api/announcements/{id}", a.handleUpdateAnnouncement)
	mux.HandleFunc("POST /api/announcements/{id}/publish", a.handlePublishAnnouncement)
	mux.HandleFunc("DELETE /api/announcements/{id}", a.handleDeleteAnnouncement)

	return mux
}
