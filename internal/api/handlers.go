package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyforge/internal/adf"
	"storyforge/internal/jira"
	"storyforge/internal/pipeline"
	"storyforge/internal/shell"
)

type expandRequest struct {
	StoryID string `json:"story_id"`
	Force   bool   `json:"force"`
}

// handleExpand queues an expansion job for an epic. The body is optional; an
// empty body expands every pending story.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	epicKey := chi.URLParam(r, "epicKey")

	var req expandRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	job, err := s.orch.Submit(epicKey, req.StoryID, req.Force)
	if err != nil {
		s.log.Warn("expand rejected", "epic", epicKey, "error", err)
		status := http.StatusConflict
		if errors.Is(err, pipeline.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.ID,
		"status":   string(job.Snapshot().Status),
		"poll_url": fmt.Sprintf("/api/expand/%s/status", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orch.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

type storyView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Completed    bool     `json:"completed"`
	ReferenceURL string   `json:"reference_url,omitempty"`
	Screens      []string `json:"screens,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// handleStories returns the parsed shell-story roster of an epic without
// mutating anything.
func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	epicKey := chi.URLParam(r, "epicKey")

	epic, err := s.orch.JiraClient().GetIssue(r.Context(), epicKey)
	if err != nil {
		if errors.Is(err, jira.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "epic not found")
			return
		}
		s.log.Error("fetch epic failed", "epic", epicKey, "error", err)
		jsonError(w, http.StatusBadGateway, "fetch epic: "+err.Error())
		return
	}
	if epic.Description == nil {
		jsonError(w, http.StatusUnprocessableEntity, "epic has no rich-text description")
		return
	}

	switch n := adf.CountSections(epic.Description.Content, s.sectionLabel); {
	case n == 0:
		jsonError(w, http.StatusUnprocessableEntity, fmt.Sprintf("no %q section", s.sectionLabel))
		return
	case n > 1:
		jsonError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%d %q sections", n, s.sectionLabel))
		return
	}

	section, _ := adf.ExtractSection(epic.Description.Content, s.sectionLabel)
	records, err := shell.ParseRecords(section)
	if err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	views := make([]storyView, 0, len(records))
	for _, rec := range records {
		views = append(views, storyView{
			ID:           rec.ID,
			Title:        rec.Title,
			Description:  rec.Description,
			Completed:    rec.Completed(),
			ReferenceURL: rec.ReferenceURL,
			Screens:      rec.Screens,
			Dependencies: rec.Dependencies,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"epic_key": epicKey,
		"stories":  views,
	})
}

func (s *Server) handlePurgeArtifacts(w http.ResponseWriter, r *http.Request) {
	epicKey := chi.URLParam(r, "epicKey")
	n, err := s.orch.ArtifactStore().PurgeEpic(epicKey)
	if err != nil {
		s.log.Error("artifact purge failed", "epic", epicKey, "error", err)
		jsonError(w, http.StatusInternalServerError, "purge: "+err.Error())
		return
	}
	s.log.Info("artifacts purged", "epic", epicKey, "count", n)
	writeJSON(w, http.StatusOK, map[string]any{"epic_key": epicKey, "purged": n})
}

func (s *Server) handleLLMStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}
