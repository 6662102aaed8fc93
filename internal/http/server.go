package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apexcrm/leadflow/internal/log"
	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/service"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Server exposes the administrative surface: workflow CRUD, execution-log
// reads and a manual event intake. All handlers are thin pass-throughs to
// the store and dispatcher.
type Server struct {
	store      storage.Store
	dispatcher *service.Dispatcher
	router     chi.Router
}

func NewServer(store storage.Store, dispatcher *service.Dispatcher) *Server {
	s := &Server{store: store, dispatcher: dispatcher}
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.listWorkflows)
		r.Post("/", s.createWorkflow)
		r.Get("/{id}", s.getWorkflow)
		r.Put("/{id}", s.updateWorkflow)
		r.Delete("/{id}", s.deleteWorkflow)
		r.Patch("/{id}/active", s.setActive)
	})
	r.Get("/logs", s.listLogs)
	r.Post("/trigger", s.trigger)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving the admin API.
func (s *Server) Start(port string) error {
	log.GetLogger().Infof("Starting leadflow admin server on :%s", port)
	return http.ListenAndServe(":"+port, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, workflows)
}

type workflowRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	TriggerType models.TriggerType `json:"trigger_type"`
	Actions     json.RawMessage    `json:"actions"`
	IsActive    *bool              `json:"is_active"`
	RiskLevel   string             `json:"risk_level"`
	Source      string             `json:"source"`
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode workflow"))
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing workflow name"))
		return
	}
	if !models.ValidTrigger(req.TriggerType) {
		writeError(w, http.StatusBadRequest, errors.Errorf("invalid trigger_type %q", req.TriggerType))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	wf := models.Workflow{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		TriggerType: req.TriggerType,
		RawActions:  req.Actions,
		IsActive:    active,
		RiskLevel:   req.RiskLevel,
		Source:      req.Source,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.store.SaveWorkflow(wf); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	wf.Actions = models.DecodeActions(wf.RawActions)
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode workflow"))
		return
	}
	if !models.ValidTrigger(req.TriggerType) {
		writeError(w, http.StatusBadRequest, errors.Errorf("invalid trigger_type %q", req.TriggerType))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	wf := models.Workflow{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		TriggerType: req.TriggerType,
		RawActions:  req.Actions,
		IsActive:    active,
		RiskLevel:   req.RiskLevel,
		Source:      req.Source,
	}
	err := s.store.UpdateWorkflow(wf)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteWorkflow(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode body"))
		return
	}
	err := s.store.SetWorkflowActive(chi.URLParam(r, "id"), req.IsActive)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_active": req.IsActive})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	f := storage.LogFilter{
		Search:     r.URL.Query().Get("search"),
		Status:     models.ExecutionStatus(r.URL.Query().Get("status")),
		WorkflowID: r.URL.Query().Get("workflow_id"),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "parse 'from'"))
			return
		}
		f.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "parse 'to'"))
			return
		}
		f.To = t
	}
	logs, err := s.store.ListExecutionLogs(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// trigger is the manual event intake for operators: it enqueues one event
// job exactly as domain code would.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TriggerType models.TriggerType   `json:"trigger_type"`
		Entity      models.TriggerEntity `json:"entity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode trigger"))
		return
	}
	if !models.ValidTrigger(req.TriggerType) {
		writeError(w, http.StatusBadRequest, errors.Errorf("invalid trigger_type %q", req.TriggerType))
		return
	}
	s.dispatcher.Trigger(r.Context(), req.TriggerType, req.Entity)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.GetLogger().Errorf("Request failed: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
