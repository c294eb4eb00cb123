// Package mutate applies writes optimistically: the snapshot changes first,
// the network catches up, and the server's answer (or the prior value, on
// failure) settles the result.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/api"
	"taskdeck/internal/datasync"
	"taskdeck/internal/domain"
	"taskdeck/internal/forms"
)

var (
	// ErrNotConfirmed is returned when a destructive action was dispatched
	// without the explicit yes/no gate.
	ErrNotConfirmed = errors.New("delete requires confirmation")
	// ErrSuperseded marks an outcome discarded because a newer mutation on
	// the same entity was dispatched while this one was in flight.
	ErrSuperseded = errors.New("mutation superseded by a newer one for the same entity")
)

type PendingStatus int

const (
	StatusPending PendingStatus = iota
	StatusCommitted
	StatusRolledBack
)

// PendingMutation pairs an entity's prior snapshot value with the in-flight
// optimistic replacement; it exists solely to make rollback explicit.
type PendingMutation struct {
	ID         uuid.UUID
	EntityID   int64
	Prior      domain.Task
	PriorIndex int
	Status     PendingStatus
}

// Journal receives mutation outcomes for local diagnostics. A nil journal
// is a no-op.
type Journal interface {
	RecordMutation(action string, entityID int64, outcome, detail string)
}

type Controller struct {
	client *api.Client
	flow   *datasync.Flow
	log    *logrus.Entry
	now    func() time.Time

	// Journal may be set once at wiring time, before any mutation runs.
	Journal Journal

	mu   sync.Mutex
	seq  map[int64]uint64
	last map[int64]*PendingMutation
}

func NewController(client *api.Client, flow *datasync.Flow, log *logrus.Entry) *Controller {
	return &Controller{
		client: client,
		flow:   flow,
		log:    log,
		now:    time.Now,
		seq:    map[int64]uint64{},
		last:   map[int64]*PendingMutation{},
	}
}

// LastMutation reports the most recent mutation record for an entity.
func (c *Controller) LastMutation(id int64) (PendingMutation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pm, ok := c.last[id]
	if !ok {
		return PendingMutation{}, false
	}
	return *pm, true
}

// UpdateTask validates, applies the payload to the snapshot immediately,
// then issues the full-record PUT. On success the server's record replaces
// the optimistic guess; on failure the prior value is restored verbatim and
// the banner carries the error. The last network response per entity id
// wins: an outcome arriving after a newer dispatch is discarded.
func (c *Controller) UpdateTask(ctx context.Context, id int64, payload domain.TaskPayload) (domain.Task, error) {
	prior, idx, ok := c.flow.TaskByID(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d not in snapshot", id)
	}
	if errs := forms.ValidateTask(payload, &prior, c.now()); len(errs) > 0 {
		return prior, &forms.ValidationError{Fields: errs}
	}

	pm := &PendingMutation{ID: uuid.New(), EntityID: id, Prior: prior, PriorIndex: idx, Status: StatusPending}
	c.track(pm)
	c.flow.ApplyTask(applyPayload(prior, payload))
	seq := c.nextSeq(id)

	updated, err := c.client.UpdateTask(ctx, id, payload)

	if !c.isLatest(id, seq) {
		c.log.WithField("task_id", id).Debug("dropping superseded update outcome")
		return prior, ErrSuperseded
	}
	if err != nil {
		c.flow.ApplyTask(prior)
		c.settle(pm, StatusRolledBack)
		c.flow.SetBanner(err.Error())
		c.record("task.update", id, "rolled_back", err.Error())
		return prior, err
	}
	c.flow.ApplyTask(updated)
	c.settle(pm, StatusCommitted)
	c.flow.Invalidate()
	c.record("task.update", id, "committed", "")
	return updated, nil
}

// SetTaskStatus is the status-toggle path: the full current record goes on
// the wire with only the status replaced.
func (c *Controller) SetTaskStatus(ctx context.Context, id int64, status domain.TaskStatus) (domain.Task, error) {
	prior, _, ok := c.flow.TaskByID(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d not in snapshot", id)
	}
	payload := domain.PayloadFromTask(prior)
	payload.Status = status
	return c.UpdateTask(ctx, id, payload)
}

// DeleteTask removes the entity optimistically after the confirmation gate.
// On failure the original is reinserted at its prior position.
func (c *Controller) DeleteTask(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	prior, idx, ok := c.flow.RemoveTask(id)
	if !ok {
		return fmt.Errorf("task %d not in snapshot", id)
	}
	pm := &PendingMutation{ID: uuid.New(), EntityID: id, Prior: prior, PriorIndex: idx, Status: StatusPending}
	c.track(pm)
	seq := c.nextSeq(id)

	err := c.client.DeleteTask(ctx, id)

	if !c.isLatest(id, seq) {
		c.log.WithField("task_id", id).Debug("dropping superseded delete outcome")
		return ErrSuperseded
	}
	if err != nil {
		c.flow.InsertTaskAt(prior, idx)
		c.settle(pm, StatusRolledBack)
		c.flow.SetBanner(err.Error())
		c.record("task.delete", id, "rolled_back", err.Error())
		return err
	}
	c.settle(pm, StatusCommitted)
	c.flow.Invalidate()
	c.record("task.delete", id, "committed", "")
	return nil
}

// CreateTask has no optimistic step: with no prior state to revert to and
// no client-assigned id to reconcile, the entity joins the snapshot only
// once the server confirms it.
func (c *Controller) CreateTask(ctx context.Context, payload domain.TaskPayload) (domain.Task, error) {
	if errs := forms.ValidateTask(payload, nil, c.now()); len(errs) > 0 {
		return domain.Task{}, &forms.ValidationError{Fields: errs}
	}
	created, err := c.client.CreateTask(ctx, payload)
	if err != nil {
		c.flow.SetBanner(err.Error())
		c.record("task.create", 0, "failed", err.Error())
		return domain.Task{}, err
	}
	c.flow.AppendTask(created)
	c.flow.Invalidate()
	c.record("task.create", created.ID, "committed", "")
	return created, nil
}

func (c *Controller) CreateProject(ctx context.Context, payload domain.ProjectPayload) (domain.ProjectData, error) {
	if errs := forms.ValidateProject(payload); len(errs) > 0 {
		return domain.ProjectData{}, &forms.ValidationError{Fields: errs}
	}
	created, err := c.client.CreateProject(ctx, payload)
	if err != nil {
		c.flow.SetBanner(err.Error())
		c.record("project.create", 0, "failed", err.Error())
		return domain.ProjectData{}, err
	}
	c.flow.Invalidate()
	c.record("project.create", created.ID, "committed", "")
	return created, nil
}

func (c *Controller) record(action string, entityID int64, outcome, detail string) {
	if c.Journal != nil {
		c.Journal.RecordMutation(action, entityID, outcome, detail)
	}
}

func (c *Controller) track(pm *PendingMutation) {
	c.mu.Lock()
	c.last[pm.EntityID] = pm
	c.mu.Unlock()
}

func (c *Controller) settle(pm *PendingMutation, status PendingStatus) {
	c.mu.Lock()
	pm.Status = status
	c.mu.Unlock()
}

func (c *Controller) nextSeq(id int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[id]++
	return c.seq[id]
}

func (c *Controller) isLatest(id int64, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq[id] == seq
}

func applyPayload(t domain.Task, p domain.TaskPayload) domain.Task {
	t.Title = p.Title
	t.Description = p.Description
	t.Status = p.Status
	t.DueDate = p.DueDate
	t.ProjectID = p.ProjectID
	t.AssigneeID = p.AssigneeID
	return t
}
