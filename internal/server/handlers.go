package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"taskgraph/internal/settings"
	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps an engine error to its HTTP status.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, taskstorage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case taskstorage.IsConflict(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses a non-negative task id from a path parameter.
func pathID(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return id, nil
}

// pathPair parses two task ids and rejects a task related to itself.
func pathPair(r *http.Request, first, second string) (int, int, error) {
	a, err := pathID(r, first)
	if err != nil {
		return 0, 0, err
	}
	b, err := pathID(r, second)
	if err != nil {
		return 0, 0, err
	}
	if a == b {
		return 0, 0, fmt.Errorf("%s and %s must differ", first, second)
	}
	return a, b, nil
}

func validTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return errors.New("tags must be non-empty strings")
		}
	}
	return nil
}

// --- Task handlers ---

type addRequest struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, `"description" is required`)
		return
	}
	if err := validTags(req.Tags); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.engine.Create(r.Context(), req.Description, req.Tags)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type finishRequest struct {
	ID *int `json:"id"`
}

func (s *Server) finishTask(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == nil {
		writeError(w, http.StatusBadRequest, `"id" is required`)
		return
	}
	if *req.ID < 0 {
		writeError(w, http.StatusBadRequest, `"id" must be greater than or equal to 0`)
		return
	}

	task, err := s.engine.Finish(r.Context(), *req.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	opts := taskservice.ListOptions{}
	if all := r.URL.Query().Get("all"); all != "" {
		b, err := strconv.ParseBool(all)
		if err != nil {
			writeError(w, http.StatusBadRequest, "all must be a boolean")
			return
		}
		opts.IncludeDeleted = b
	}
	tasks := s.engine.Tasks(opts)
	if tasks == nil {
		tasks = []*taskstorage.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.engine.Get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type updateRequest struct {
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Description == nil && req.Tags == nil {
		writeError(w, http.StatusBadRequest, `at least one of "description" or "tags" is required`)
		return
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		writeError(w, http.StatusBadRequest, `"description" must not be empty`)
		return
	}
	if req.Tags != nil {
		if err := validTags(*req.Tags); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	task, err := s.engine.Update(r.Context(), id, taskservice.TaskUpdate{
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.engine.Delete(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) pinTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.engine.Pin(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) unpinTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.engine.Unpin(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type tagRequest struct {
	Tag string `json:"tag"`
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		writeError(w, http.StatusBadRequest, `"tag" is required`)
		return
	}
	task, err := s.engine.AddTag(r.Context(), id, req.Tag)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.engine.RemoveTag(r.Context(), id, r.PathValue("tag"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- Relation handlers ---

func (s *Server) addDependency(w http.ResponseWriter, r *http.Request) {
	req, dep, err := pathPair(r, "requirement", "dependent")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.AddDependency(r.Context(), req, dep); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeDependency(w http.ResponseWriter, r *http.Request) {
	req, dep, err := pathPair(r, "requirement", "dependent")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.RemoveDependency(r.Context(), req, dep); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addSubtask(w http.ResponseWriter, r *http.Request) {
	parent, child, err := pathPair(r, "parent", "child")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.AddSubtask(r.Context(), parent, child); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeSubtask(w http.ResponseWriter, r *http.Request) {
	parent, child, err := pathPair(r, "parent", "child")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.RemoveSubtask(r.Context(), parent, child); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Views ---

func (s *Server) readyTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.engine.Ready()
	if tasks == nil {
		tasks = []*taskstorage.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) blockedTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.engine.Blocked()
	if tasks == nil {
		tasks = []*taskstorage.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// --- Settings ---

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.settings.Lock()
	defer s.settings.Unlock()

	st, err := settings.Load(r.Context(), s.persist)
	if err != nil {
		s.logger.Error("loading settings", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) patchSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.settings.Lock()
	defer s.settings.Unlock()

	st, err := settings.Load(r.Context(), s.persist)
	if err != nil {
		s.logger.Error("loading settings", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	patch.Apply(&st)
	if err := settings.Save(r.Context(), s.persist, st); err != nil {
		s.logger.Error("saving settings", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
