// Package stubserver is a self-contained fake of the task-management
// backend for development and tests: the same routes, payload shapes, and
// error envelopes, backed by in-memory state and a signed session cookie
// instead of a real identity provider.
package stubserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/domain"
)

const sessionCookie = "TD_SESSION"

type Server struct {
	mu       sync.Mutex
	log      *logrus.Entry
	secret   []byte
	users    map[int64]domain.UserData
	projects map[int64]domain.ProjectData
	tasks    map[int64]domain.Task
	nextID   int64

	// ReturnTo is where the login redirect sends the user back, with the
	// login_success marker appended.
	ReturnTo string
}

func New(log *logrus.Entry) *Server {
	s := &Server{
		log:      log,
		secret:   []byte(uuid.NewString()),
		users:    map[int64]domain.UserData{},
		projects: map[int64]domain.ProjectData{},
		tasks:    map[int64]domain.Task{},
		nextID:   1,
		ReturnTo: "/",
	}
	s.users[1] = domain.UserData{ID: 1, Username: "demo", Name: "Demo User", Email: "demo@example.com"}
	return s
}

// SeedProject adds a project owned by the demo user and returns it.
func (s *Server) SeedProject(name string) domain.ProjectData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertProject(domain.ProjectPayload{Name: name}, 1)
}

// SeedTask adds a task assigned to the demo user and returns it.
func (s *Server) SeedTask(projectID int64, title string, status domain.TaskStatus) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignee := int64(1)
	t, _ := s.insertTask(domain.TaskPayload{
		Title: title, Status: status, ProjectID: &projectID, AssigneeID: &assignee,
	})
	return t
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/oauth2/authorization/google", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/users/me", s.handleMe)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api/projects", s.handleListProjects)
		r.Post("/api/projects", s.handleCreateProject)
		r.Get("/api/projects/{projectID}/tasks", s.handleProjectTasks)
		r.Get("/api/tasks/assigned", s.handleAssignedTasks)
		r.Post("/api/tasks", s.handleCreateTask)
		r.Get("/api/tasks/{taskID}", s.handleGetTask)
		r.Put("/api/tasks/{taskID}", s.handleUpdateTask)
		r.Delete("/api/tasks/{taskID}", s.handleDeleteTask)
	})
	return r
}

// handleLogin stands in for the whole external authorization round trip:
// it mints a session for the demo user and bounces straight back with the
// login_success marker.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	claims := jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.writeMessage(w, http.StatusInternalServerError, "failed to mint session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name: sessionCookie, Value: token, Path: "/", HttpOnly: true,
	})
	target := s.ReturnTo
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	http.Redirect(w, r, target+sep+"login_success=true", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		s.writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]domain.ProjectData, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var payload domain.ProjectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		s.writeFieldErrors(w, map[string]string{"name": "name must not be empty"})
		return
	}
	user, _ := s.sessionUser(r)
	s.mu.Lock()
	p := s.insertProject(payload, user.ID)
	s.mu.Unlock()
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleProjectTasks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid project id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		s.writeMessage(w, http.StatusNotFound, fmt.Sprintf("project %d not found", id))
		return
	}
	out := []domain.Task{}
	for _, t := range s.tasks {
		if t.ProjectID != nil && *t.ProjectID == id {
			out = append(out, t)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignedTasks(w http.ResponseWriter, r *http.Request) {
	user, _ := s.sessionUser(r)
	s.mu.Lock()
	out := []domain.Task{}
	for _, t := range s.tasks {
		if t.AssigneeID != nil && *t.AssigneeID == user.ID {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var payload domain.TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	t, errs := s.insertTask(payload)
	s.mu.Unlock()
	if len(errs) > 0 {
		s.writeFieldErrors(w, errs)
		return
	}
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.taskFromURL(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	prior, ok := s.taskFromURL(w, r)
	if !ok {
		return
	}
	var payload domain.TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	if errs := s.validateTaskPayload(payload); len(errs) > 0 {
		s.mu.Unlock()
		s.writeFieldErrors(w, errs)
		return
	}
	t := prior
	t.Title = strings.TrimSpace(payload.Title)
	t.Description = payload.Description
	t.Status = payload.Status
	t.DueDate = payload.DueDate
	t.ProjectID = payload.ProjectID
	t.AssigneeID = payload.AssigneeID
	s.fillNames(&t)
	t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	s.tasks[t.ID] = t
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.taskFromURL(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.tasks, t.ID)
	if t.ProjectID != nil {
		if p, ok := s.projects[*t.ProjectID]; ok {
			p.TaskCount--
			s.projects[*t.ProjectID] = p
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// --- state helpers, caller holds the lock where noted ---

func (s *Server) insertProject(payload domain.ProjectPayload, ownerID int64) domain.ProjectData {
	now := time.Now().UTC().Format(time.RFC3339)
	p := domain.ProjectData{
		ID:          s.nextID,
		Name:        strings.TrimSpace(payload.Name),
		Description: payload.Description,
		Color:       payload.Color,
		IconName:    payload.IconName,
		OwnerID:     ownerID,
		OwnerName:   s.users[ownerID].Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.projects[p.ID] = p
	return p
}

func (s *Server) validateTaskPayload(payload domain.TaskPayload) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(payload.Title) == "" {
		errs["title"] = "title must not be empty"
	}
	if !payload.Status.Valid() {
		errs["status"] = "invalid status"
	}
	if payload.ProjectID == nil {
		errs["projectId"] = "projectId is required"
	} else if _, ok := s.projects[*payload.ProjectID]; !ok {
		errs["projectId"] = fmt.Sprintf("project %d not found", *payload.ProjectID)
	}
	return errs
}

func (s *Server) insertTask(payload domain.TaskPayload) (domain.Task, map[string]string) {
	if errs := s.validateTaskPayload(payload); len(errs) > 0 {
		return domain.Task{}, errs
	}
	now := time.Now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:          s.nextID,
		Title:       strings.TrimSpace(payload.Title),
		Description: payload.Description,
		Status:      payload.Status,
		DueDate:     payload.DueDate,
		ProjectID:   payload.ProjectID,
		AssigneeID:  payload.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.fillNames(&t)
	s.tasks[t.ID] = t
	if t.ProjectID != nil {
		p := s.projects[*t.ProjectID]
		p.TaskCount++
		s.projects[*t.ProjectID] = p
	}
	return t, nil
}

func (s *Server) fillNames(t *domain.Task) {
	if t.ProjectID != nil {
		t.ProjectName = s.projects[*t.ProjectID].Name
	} else {
		t.ProjectName = ""
	}
	if t.AssigneeID != nil {
		t.AssigneeName = s.users[*t.AssigneeID].Name
	} else {
		t.AssigneeName = ""
	}
}

func (s *Server) taskFromURL(w http.ResponseWriter, r *http.Request) (domain.Task, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "invalid task id")
		return domain.Task{}, false
	}
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		s.writeMessage(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return domain.Task{}, false
	}
	return t, true
}

// --- session ---

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.sessionUser(r); !ok {
			s.writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionUser(r *http.Request) (domain.UserData, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return domain.UserData{}, false
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return domain.UserData{}, false
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.UserData{}, false
	}
	s.mu.Lock()
	user, ok := s.users[id]
	s.mu.Unlock()
	return user, ok
}

// --- responses ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("encode response failed")
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"message": msg})
}

func (s *Server) writeFieldErrors(w http.ResponseWriter, errs map[string]string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}
