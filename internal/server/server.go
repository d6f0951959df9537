package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ldi/pbltrack/internal/db"
	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/internal/graph"
	"github.com/ldi/pbltrack/internal/logging"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
)

type Server struct {
	db     *db.DB
	log    *logging.Logger
	now    func() time.Time
	server *http.Server
}

func NewServer(database *db.DB, logger *logging.Logger) *Server {
	return &Server{db: database, log: logger, now: time.Now}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/projects/{id}/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/projects/{id}/timeline", s.handleTimeline)
	mux.HandleFunc("GET /api/projects/{id}/graph", s.handleGraph)

	mux.HandleFunc("GET /api/tasks/{id}/evaluation", s.handleEvaluate)
	mux.HandleFunc("POST /api/tasks/{id}/transition", s.handleTransition)
	mux.HandleFunc("POST /api/tasks/{id}/claim", s.handleClaim)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/dependencies", s.handleAddDependency)
	mux.HandleFunc("DELETE /api/tasks/{id}/dependencies/{dep}", s.handleRemoveDependency)
	mux.HandleFunc("GET /api/tasks/{id}/feedback", s.handleListFeedback)
	mux.HandleFunc("POST /api/tasks/{id}/feedback", s.handleSubmitFeedback)

	return s.logRequests(mux)
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.log.Printf("web: listening on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debugf("web: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.ListProjects(r.Context())
	s.respond(w, http.StatusOK, projects, err)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		StartDate       string `json:"start_date"`
		RequireCritique bool   `json:"require_critique"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		s.fail(w, http.StatusBadRequest, "title is required")
		return
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &models.Project{Title: req.Title, Description: req.Description, StartDate: start, RequireCritique: req.RequireCritique}
	err = s.db.CreateProject(r.Context(), p)
	s.respond(w, http.StatusCreated, p, err)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.db.ListEvaluatedTasks(r.Context(), r.PathValue("id"))
	if tasks == nil && err == nil {
		tasks = []*models.Task{}
	}
	s.respond(w, http.StatusOK, tasks, err)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		Priority     string `json:"priority"`
		TeamID       string `json:"team_id"`
		StartDate    string `json:"start_date"`
		EndDate      string `json:"end_date"`
		DueDate      string `json:"due_date"`
		DurationDays int    `json:"duration_days"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		s.fail(w, http.StatusBadRequest, "title is required")
		return
	}

	t := &models.Task{
		ProjectID:    r.PathValue("id"),
		Title:        req.Title,
		Description:  req.Description,
		Priority:     models.Priority(req.Priority),
		DurationDays: req.DurationDays,
	}
	if req.TeamID != "" {
		t.TeamID = &req.TeamID
	}
	var err error
	for _, d := range []struct {
		raw string
		dst **time.Time
	}{{req.StartDate, &t.StartDate}, {req.EndDate, &t.EndDate}, {req.DueDate, &t.DueDate}} {
		if *d.dst, err = parseOptionalDate(d.raw); err != nil {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if p, err := s.db.GetProject(r.Context(), t.ProjectID); err != nil || p == nil {
		if err == nil {
			err = db.ErrNotFound
		}
		s.respond(w, 0, nil, err)
		return
	}
	err = s.db.CreateTask(r.Context(), t)
	s.respond(w, http.StatusCreated, t, err)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	today := s.now()
	if q := r.URL.Query().Get("today"); q != "" {
		d, err := timeline.ParseDate(q)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}
		today = d
	}
	grid, err := s.db.Timeline(r.Context(), r.PathValue("id"), today)
	s.respond(w, http.StatusOK, grid, err)
}

type graphNode struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Status      models.TaskStatus `json:"status"`
	Blocked     bool              `json:"blocked"`
	Completable bool              `json:"completable"`
}

type graphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// handleGraph returns live tasks as nodes in topological order and edges
// pointing from prerequisite to dependent.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.db.LoadSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respond(w, 0, nil, err)
		return
	}
	evals, err := engine.EvaluateAll(snap)
	if err != nil {
		s.respond(w, 0, nil, err)
		return
	}

	nodes := make([]graphNode, 0, len(evals))
	for _, e := range evals {
		t, _ := snap.Task(e.TaskID)
		nodes = append(nodes, graphNode{ID: t.ID, Title: t.Title, Status: t.Status, Blocked: e.Blocked, Completable: e.Completable})
	}
	edges := make([]graphEdge, 0, len(snap.Dependencies))
	for _, d := range snap.Dependencies {
		edges = append(edges, graphEdge{From: d.DependsOnTaskID, To: d.TaskID})
	}
	s.respond(w, http.StatusOK, map[string]any{"nodes": nodes, "edges": edges}, nil)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	eval, err := s.db.EvaluateTask(r.Context(), r.PathValue("id"))
	s.respond(w, http.StatusOK, eval, err)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.TaskStatus `json:"status"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	tr, err := s.db.ApplyTransition(r.Context(), r.PathValue("id"), req.Status)
	if err == nil && tr.Changed() {
		s.log.Printf("task %s: %s -> %s", tr.TaskID, tr.From, tr.To)
	}
	s.respond(w, http.StatusOK, tr, err)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssigneeID string `json:"assignee_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.db.ClaimTask(r.Context(), r.PathValue("id"), req.AssigneeID)
	s.respond(w, http.StatusOK, t, err)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.respond(w, 0, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DependsOnTaskID string `json:"depends_on_task_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	dep := &models.Dependency{TaskID: r.PathValue("id"), DependsOnTaskID: req.DependsOnTaskID}
	err := s.db.CreateDependency(r.Context(), dep.TaskID, dep.DependsOnTaskID)
	s.respond(w, http.StatusCreated, dep, err)
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteDependency(r.Context(), r.PathValue("id"), r.PathValue("dep")); err != nil {
		s.respond(w, 0, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.ListFeedback(r.Context(), r.PathValue("id"))
	if entries == nil && err == nil {
		entries = []*models.FeedbackEntry{}
	}
	s.respond(w, http.StatusOK, entries, err)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorID           string `json:"author_id"`
		AssignmentID       string `json:"assignment_id"`
		Warm               string `json:"warm"`
		Cool               string `json:"cool"`
		RequiresRevision   bool   `json:"requires_revision"`
		ChecklistConfirmed bool   `json:"checklist_confirmed"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	entry := &models.FeedbackEntry{
		TaskID:             r.PathValue("id"),
		AuthorID:           req.AuthorID,
		Warm:               req.Warm,
		Cool:               req.Cool,
		RequiresRevision:   req.RequiresRevision,
		ChecklistConfirmed: req.ChecklistConfirmed,
	}
	if req.AssignmentID != "" {
		entry.AssignmentID = &req.AssignmentID
	}
	res, err := s.db.SubmitFeedback(r.Context(), entry)
	if err == nil && res.Revision != nil {
		s.log.Printf("task %s: sent back to %s by critique %s", res.Revision.TaskID, res.Revision.To, res.Entry.ID)
	}
	s.respond(w, http.StatusCreated, res, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrTaskDeleted):
		return http.StatusGone
	case errors.Is(err, engine.ErrGateViolation),
		errors.Is(err, engine.ErrChecklistIncomplete),
		errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrConflict),
		errors.Is(err, graph.ErrCycle),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrAssignmentCompleted):
		return http.StatusConflict
	case errors.Is(err, db.ErrNotFound),
		errors.Is(err, engine.ErrUnknownTask),
		errors.Is(err, graph.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrSelfDependency),
		errors.Is(err, engine.ErrCrossProject),
		errors.Is(err, engine.ErrAssignmentMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string          `json:"error"`
	Reasons   []engine.Reason `json:"reasons,omitempty"`
	BlockedBy []string        `json:"blocked_by,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			s.log.Printf("web: %v", err)
		}
		body := errorBody{Error: err.Error()}
		var gv *engine.GateViolationError
		if errors.As(err, &gv) {
			body.Reasons = gv.Reasons
			body.BlockedBy = gv.BlockedBy
		}
		writeJSON(w, code, body)
		return
	}
	writeJSON(w, status, data)
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := timeline.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
