// Package datasync keeps the in-memory project and task snapshots in step
// with the backend. Fetches are gated on a resolved, authenticated session
// and a freshness marker; collections are owned here and mutated only
// through the operations below.
package datasync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/api"
	"taskdeck/internal/domain"
	"taskdeck/internal/session"
)

type Flow struct {
	mu      sync.Mutex
	client  *api.Client
	session *session.Store
	log     *logrus.Entry

	// marker is bumped whenever data may be stale; fetchedMarker records
	// the marker value the current snapshots were fetched under. A fetch
	// whose dispatch marker no longer matches marker on arrival is stale
	// and discarded.
	marker        uint64
	fetchedMarker uint64

	// scope selects the task collection: nil means tasks assigned to the
	// user, otherwise tasks of one project.
	scope *int64

	projects []domain.ProjectData
	tasks    []domain.Task
	pageErr  string
	banner   string
}

func NewFlow(client *api.Client, sess *session.Store, log *logrus.Entry) *Flow {
	return &Flow{client: client, session: sess, log: log, marker: 1}
}

// Invalidate signals that server data may have changed (raised by the
// mutation layer after any create/update/delete).
func (f *Flow) Invalidate() {
	f.mu.Lock()
	f.marker++
	f.mu.Unlock()
}

// SetScope switches between the assigned-tasks view (nil) and a single
// project's tasks. A scope change marks the snapshots stale.
func (f *Flow) SetScope(projectID *int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if equalScope(f.scope, projectID) {
		return
	}
	f.scope = projectID
	f.marker++
}

// Scope returns a copy; the interior pointer never leaves the flow, so
// scope changes always go through SetScope and its marker bump.
func (f *Flow) Scope() *int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scope == nil {
		return nil
	}
	v := *f.scope
	return &v
}

// Refresh fetches both collections when all gates hold: the session is
// resolved and authenticated, the initial check has completed, and the
// freshness marker moved since the last installed fetch. On authentication
// loss the collections are cleared immediately without fetching. A fetch
// failure keeps the previous snapshots visible and fills the page error
// slot.
func (f *Flow) Refresh(ctx context.Context) error {
	snap := f.session.Snapshot()
	if !snap.InitialCheckDone || snap.State != session.StateResolved {
		return nil
	}
	if !snap.Authenticated() {
		f.clear()
		return nil
	}

	f.mu.Lock()
	dispatched := f.marker
	scope := f.scope
	if dispatched == f.fetchedMarker {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	projects, projErr := f.client.ListProjects(ctx)
	var tasks []domain.Task
	var taskErr error
	if projErr == nil {
		if scope != nil {
			tasks, taskErr = f.client.TasksByProject(ctx, *scope)
		} else {
			tasks, taskErr = f.client.AssignedTasks(ctx)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marker != dispatched {
		f.log.WithField("marker", dispatched).Debug("discarding stale fetch result")
		return nil
	}
	if projErr != nil {
		f.pageErr = projErr.Error()
		f.log.WithError(projErr).Warn("project fetch failed; keeping previous snapshot")
		return projErr
	}
	if taskErr != nil {
		f.pageErr = taskErr.Error()
		f.log.WithError(taskErr).Warn("task fetch failed; keeping previous snapshot")
		return taskErr
	}
	f.projects = projects
	f.tasks = tasks
	f.fetchedMarker = dispatched
	f.pageErr = ""
	return nil
}

func (f *Flow) clear() {
	f.mu.Lock()
	f.projects = nil
	f.tasks = nil
	f.pageErr = ""
	f.fetchedMarker = 0
	f.mu.Unlock()
}

// Projects returns a copy of the project snapshot.
func (f *Flow) Projects() []domain.ProjectData {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProjectData, len(f.projects))
	copy(out, f.projects)
	return out
}

// Tasks returns a copy of the task snapshot.
func (f *Flow) Tasks() []domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

func (f *Flow) PageError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageErr
}

// Banner is the transient page-level error slot shared by fetch and
// mutation failures.
func (f *Flow) Banner() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.banner
}

func (f *Flow) SetBanner(msg string) {
	f.mu.Lock()
	f.banner = msg
	f.mu.Unlock()
}

func (f *Flow) ClearBanner() {
	f.SetBanner("")
}

// TaskByID returns a copy of one task and its position in the snapshot.
func (f *Flow) TaskByID(id int64) (domain.Task, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			return t, i, true
		}
	}
	return domain.Task{}, -1, false
}

// ApplyTask replaces the task with the same id, if present. Used for both
// optimistic application and authoritative server results.
func (f *Flow) ApplyTask(t domain.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == t.ID {
			f.tasks[i] = t
			return
		}
	}
}

// RemoveTask deletes the task from the snapshot, returning the removed
// value and its prior index for a possible reinsert on rollback.
func (f *Flow) RemoveTask(id int64) (domain.Task, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return t, i, true
		}
	}
	return domain.Task{}, -1, false
}

// InsertTaskAt restores a task at its prior position.
func (f *Flow) InsertTaskAt(t domain.Task, idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx > len(f.tasks) {
		idx = len(f.tasks)
	}
	f.tasks = append(f.tasks[:idx], append([]domain.Task{t}, f.tasks[idx:]...)...)
}

// AppendTask adds a server-confirmed task to the end of the snapshot.
func (f *Flow) AppendTask(t domain.Task) {
	f.mu.Lock()
	f.tasks = append(f.tasks, t)
	f.mu.Unlock()
}

func equalScope(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
