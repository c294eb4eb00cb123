package api_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/api"
	"taskdeck/internal/domain"
	"taskdeck/internal/stubserver"
)

type testEnv struct {
	client *api.Client
	stub   *stubserver.Server
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	stub := stubserver.New(log.WithField("component", "stubserver"))
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{client: api.New(ts.URL), stub: stub, server: ts}
}

// signIn drives the stand-in authorization redirect; the session cookie
// lands in the client's jar on the way through.
func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp, err := e.client.HTTPClient.Get(e.client.LoginURL())
	if err != nil {
		t.Fatalf("login round trip: %v", err)
	}
	resp.Body.Close()
}

func TestCurrentUserNotSignedIn(t *testing.T) {
	env := newTestEnv(t)
	user, err := env.client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}

func TestCurrentUserAfterLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	user, err := env.client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user == nil || user.ID != 1 || user.Name != "Demo User" {
		t.Fatalf("user = %+v", user)
	}
}

func TestProtectedEndpointUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.client.ListProjects(context.Background())
	ae, ok := api.AsError(err)
	if !ok || ae.Kind != api.KindUnauthenticated {
		t.Fatalf("err = %v, want KindUnauthenticated", err)
	}
}

func TestCreateTaskValidationEnvelope(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	p := env.stub.SeedProject("Ops")

	_, err := env.client.CreateTask(context.Background(), domain.TaskPayload{
		Title: "", Status: domain.StatusTodo, ProjectID: &p.ID,
	})
	ae, ok := api.AsError(err)
	if !ok || ae.Kind != api.KindValidation {
		t.Fatalf("err = %v, want KindValidation", err)
	}
	if ae.Fields["title"] == "" {
		t.Fatalf("fields = %v, want title entry", ae.Fields)
	}
}

func TestServerErrorCarriesMessage(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	_, err := env.client.GetTask(context.Background(), 9999)
	ae, ok := api.AsError(err)
	if !ok || ae.Kind != api.KindServer {
		t.Fatalf("err = %v, want KindServer", err)
	}
	if ae.Status != 404 || ae.Message == "" {
		t.Fatalf("error = %+v", ae)
	}
}

func TestNoResponseKind(t *testing.T) {
	env := newTestEnv(t)
	env.server.Close()
	_, err := env.client.CurrentUser(context.Background())
	ae, ok := api.AsError(err)
	if !ok || ae.Kind != api.KindNoResponse {
		t.Fatalf("err = %v, want KindNoResponse", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()
	p := env.stub.SeedProject("Ops")

	created, err := env.client.CreateTask(ctx, domain.TaskPayload{
		Title: "Rotate certs", Status: domain.StatusTodo, ProjectID: &p.ID,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.ProjectName != "Ops" {
		t.Fatalf("project name not filled: %+v", created)
	}

	payload := domain.PayloadFromTask(created)
	payload.Status = domain.StatusDone
	updated, err := env.client.UpdateTask(ctx, created.ID, payload)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != domain.StatusDone {
		t.Fatalf("status = %s, want DONE", updated.Status)
	}

	if err := env.client.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := env.client.GetTask(ctx, created.ID); err == nil {
		t.Fatal("expected error fetching deleted task")
	}
}
