// Package session owns the authenticated identity and the bootstrap state
// machine layered over it: Unchecked -> Checking -> Resolved(identity|nil).
// Nothing outside this package mutates the identity.
package session

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/api"
	"taskdeck/internal/domain"
)

type State int

const (
	// StateUnchecked means no session check has completed since startup.
	StateUnchecked State = iota
	// StateChecking means the first who-am-I request is in flight.
	StateChecking
	// StateResolved means a check completed; identity may still be nil.
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateResolved:
		return "resolved"
	default:
		return "unchecked"
	}
}

// Snapshot is the read-only view handed to other components.
type Snapshot struct {
	State            State
	Identity         *domain.UserData
	Err              string
	InitialCheckDone bool
}

// Authenticated reports a resolved session with a live identity. A resolved
// check that errored still counts as "not authenticated"; Err tells the two
// apart for display.
func (s Snapshot) Authenticated() bool {
	return s.State == StateResolved && s.Identity != nil
}

type Store struct {
	mu               sync.Mutex
	client           *api.Client
	log              *logrus.Entry
	state            State
	identity         *domain.UserData
	lastErr          string
	initialCheckDone bool
}

func NewStore(client *api.Client, log *logrus.Entry) *Store {
	return &Store{client: client, log: log, state: StateUnchecked}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:            s.state,
		Identity:         s.identity,
		Err:              s.lastErr,
		InitialCheckDone: s.initialCheckDone,
	}
}

// Check performs the who-am-I request. The initial check drives the
// Unchecked -> Checking -> Resolved transition and latches the completion
// flag exactly once, success or failure. A non-initial check (after the
// external login round trip) refreshes silently: no Checking state, no flag
// changes.
func (s *Store) Check(ctx context.Context, initial bool) (*domain.UserData, error) {
	s.mu.Lock()
	if initial && s.state == StateUnchecked {
		s.state = StateChecking
	}
	s.lastErr = ""
	s.mu.Unlock()

	user, err := s.client.CurrentUser(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateResolved
	if initial {
		s.initialCheckDone = true
	}
	if err != nil {
		s.identity = nil
		s.lastErr = err.Error()
		s.log.WithError(err).Warn("session check failed")
		return nil, err
	}
	s.identity = user
	if user != nil {
		s.log.WithField("user_id", user.ID).Debug("session resolved")
	} else {
		s.log.Debug("session resolved: not authenticated")
	}
	return user, nil
}

// Logout clears the identity unconditionally. The remote call is best
// effort: a failed request is logged and swallowed because the local effect
// happens either way. The initial-check flag survives; a fresh check only
// happens on the next full start.
func (s *Store) Logout(ctx context.Context) {
	if err := s.client.Logout(ctx); err != nil {
		s.log.WithError(err).Warn("logout request failed; clearing session locally anyway")
	}
	s.mu.Lock()
	s.identity = nil
	s.state = StateResolved
	s.lastErr = ""
	s.mu.Unlock()
}

// LoginURL is where the presentation layer sends the user to begin the
// external authorization flow.
func (s *Store) LoginURL() string {
	return s.client.LoginURL()
}

// HandleLoginReturn processes a URL the user came back on after external
// login. If it carries login_success=true and no identity is held yet, it
// runs exactly one non-initial re-check; the marker is stripped from the
// returned URL either way. URLs without the marker pass through untouched.
// Nothing happens before the initial check has completed.
func (s *Store) HandleLoginReturn(ctx context.Context, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false
	}
	q := u.Query()
	if q.Get("login_success") != "true" {
		return rawURL, false
	}

	s.mu.Lock()
	ready := s.initialCheckDone
	haveIdentity := s.identity != nil
	s.mu.Unlock()
	if !ready {
		return rawURL, false
	}

	rechecked := false
	if !haveIdentity {
		if _, err := s.Check(ctx, false); err != nil {
			s.log.WithError(err).Warn("post-login session re-check failed")
		}
		rechecked = true
	}

	q.Del("login_success")
	u.RawQuery = q.Encode()
	return u.String(), rechecked
}
