package session_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/api"
	"taskdeck/internal/session"
	"taskdeck/internal/stubserver"
)

type testEnv struct {
	client *api.Client
	sess   *session.Store
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
	client := api.New(ts.URL)
	return &testEnv{
		client: client,
		sess:   session.NewStore(client, log.WithField("component", "session")),
		stub:   stub,
		server: ts,
	}
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp, err := e.client.HTTPClient.Get(e.client.LoginURL())
	if err != nil {
		t.Fatalf("login round trip: %v", err)
	}
	resp.Body.Close()
}

func TestInitialCheckResolvesUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	if snap := env.sess.Snapshot(); snap.State != session.StateUnchecked || snap.InitialCheckDone {
		t.Fatalf("fresh snapshot = %+v", snap)
	}

	user, err := env.sess.Check(context.Background(), true)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if user != nil {
		t.Fatalf("user = %+v, want nil", user)
	}
	snap := env.sess.Snapshot()
	if snap.State != session.StateResolved || !snap.InitialCheckDone {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Authenticated() {
		t.Fatal("should not be authenticated")
	}
}

func TestInitialCheckLatchesFlagOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.server.Close()

	_, err := env.sess.Check(context.Background(), true)
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	snap := env.sess.Snapshot()
	if !snap.InitialCheckDone || snap.State != session.StateResolved {
		t.Fatalf("snapshot = %+v; flag must latch even on failure", snap)
	}
	if snap.Err == "" {
		t.Fatal("snapshot should carry the check error")
	}
}

func TestCheckAfterLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	user, err := env.sess.Check(context.Background(), true)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if user == nil || user.ID != 1 {
		t.Fatalf("user = %+v", user)
	}
	if !env.sess.Snapshot().Authenticated() {
		t.Fatal("expected authenticated snapshot")
	}
}

func TestLogoutKeepsInitialCheckFlag(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()
	if _, err := env.sess.Check(ctx, true); err != nil {
		t.Fatalf("Check: %v", err)
	}

	env.sess.Logout(ctx)

	snap := env.sess.Snapshot()
	if snap.Identity != nil {
		t.Fatalf("identity after logout = %+v", snap.Identity)
	}
	if !snap.InitialCheckDone || snap.State != session.StateResolved {
		t.Fatalf("snapshot after logout = %+v; flag and state must survive", snap)
	}
}

func TestHandleLoginReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Before the initial check the marker is ignored entirely.
	raw := "http://app.local/tasks?login_success=true&tab=due"
	if got, rechecked := env.sess.HandleLoginReturn(ctx, raw); got != raw || rechecked {
		t.Fatalf("before initial check: got %q, rechecked=%v", got, rechecked)
	}

	if _, err := env.sess.Check(ctx, true); err != nil {
		t.Fatalf("Check: %v", err)
	}
	env.signIn(t)

	got, rechecked := env.sess.HandleLoginReturn(ctx, raw)
	if !rechecked {
		t.Fatal("expected a non-initial re-check")
	}
	if strings.Contains(got, "login_success") {
		t.Fatalf("marker not stripped: %q", got)
	}
	if !strings.Contains(got, "tab=due") {
		t.Fatalf("other query params must survive: %q", got)
	}
	if !env.sess.Snapshot().Authenticated() {
		t.Fatal("expected authenticated after re-check")
	}
}

func TestHandleLoginReturnWithoutMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.sess.Check(ctx, true); err != nil {
		t.Fatalf("Check: %v", err)
	}
	raw := "http://app.local/tasks?tab=due"
	if got, rechecked := env.sess.HandleLoginReturn(ctx, raw); got != raw || rechecked {
		t.Fatalf("got %q, rechecked=%v; want passthrough", got, rechecked)
	}
}

func TestHandleLoginReturnSkipsRecheckWhenSignedIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t)
	if _, err := env.sess.Check(ctx, true); err != nil {
		t.Fatalf("Check: %v", err)
	}

	got, rechecked := env.sess.HandleLoginReturn(ctx, "http://app.local/?login_success=true")
	if rechecked {
		t.Fatal("no re-check needed when an identity is already held")
	}
	if strings.Contains(got, "login_success") {
		t.Fatalf("marker must be stripped regardless: %q", got)
	}
}
