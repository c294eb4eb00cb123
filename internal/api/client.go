package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"taskdeck/internal/domain"
)

// Client is the gateway to the task-management backend. Session credentials
// ride on the cookie jar; every failure comes back as a typed *Error, never
// a raw transport error.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with its own in-memory cookie jar.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return NewWithJar(baseURL, jar)
}

// NewWithJar creates a client over a caller-supplied jar, e.g. the
// persistent jar from localstore so CLI invocations share one session.
func NewWithJar(baseURL string, jar http.CookieJar) *Client {
	timeout := 10 * time.Second
	return &Client{
		BaseURL:    baseURL,
		Timeout:    timeout,
		HTTPClient: &http.Client{Timeout: timeout, Jar: jar},
	}
}

// LoginURL is the external authorization endpoint. Navigation, not an API
// call: the browser completes the redirect chain and returns with the
// login_success marker.
func (c *Client) LoginURL() string {
	return c.base() + "/oauth2/authorization/google"
}

// CurrentUser asks the backend who owns the session cookie. A 401 resolves
// to (nil, nil): being signed out is not a fault.
func (c *Client) CurrentUser(ctx context.Context) (*domain.UserData, error) {
	var user domain.UserData
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		if IsUnauthenticated(err) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", map[string]any{}, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.ProjectData, error) {
	var projects []domain.ProjectData
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects)
	return projects, err
}

func (c *Client) CreateProject(ctx context.Context, payload domain.ProjectPayload) (domain.ProjectData, error) {
	var project domain.ProjectData
	err := c.do(ctx, http.MethodPost, "/api/projects", payload, &project)
	return project, err
}

func (c *Client) TasksByProject(ctx context.Context, projectID int64) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks", projectID), nil, &tasks)
	return tasks, err
}

func (c *Client) AssignedTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/assigned", nil, &tasks)
	return tasks, err
}

func (c *Client) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), nil, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, payload domain.TaskPayload) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", payload, &task)
	return task, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, payload domain.TaskPayload) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/tasks/%d", id), payload, &task)
	return task, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		jar, _ := cookiejar.New(nil)
		c.HTTPClient = &http.Client{Timeout: c.Timeout, Jar: jar}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &Error{Kind: KindServer, Message: "encode request: " + err.Error()}
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return &Error{Kind: KindServer, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return noResponse(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return normalizeResponse(resp.StatusCode, b)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
		}
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
