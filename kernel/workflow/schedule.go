package workflow

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/infrastructure/logging"
	"github.com/flowforge/kernel/kernel/ctx"
)

// Scheduler is the optional cron-triggered workflow runner: a workflow may
// be registered with a 5-field cron expression and run on that schedule in
// addition to (not instead of) direct Engine.Execute invocation. Absent a
// registration, a workflow only runs when something calls Execute itself —
// the scheduler changes nothing about C10-C12 step semantics, it just
// supplies the trigger.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	log    *logging.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID // workflowID -> cron entry
}

// NewScheduler builds a Scheduler driving engine. Registered workflows run
// with a background-derived execution context; log receives a line per run
// (and per failure) since a cron-triggered run has no caller to report back
// to synchronously.
func NewScheduler(engine *Engine, log *logging.Logger) *Scheduler {
	return &Scheduler{
		engine:  engine,
		cron:    cron.New(),
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules workflowID to run steps on every cronExpr tick. Calling
// Register again for a workflow already scheduled replaces its entry.
func (s *Scheduler) Register(cronExpr, workflowID string, steps []Step) (cron.EntryID, error) {
	if err := Validate(steps); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[workflowID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, workflowID)
	}

	id, err := s.cron.AddFunc(cronExpr, func() { s.runScheduled(workflowID, steps) })
	if err != nil {
		return 0, kerrors.Wrap(kerrors.KindValidation, "parse cron expression", err)
	}
	s.entries[workflowID] = id
	return id, nil
}

// Unregister removes workflowID's cron entry, if any. It reports whether an
// entry was actually removed.
func (s *Scheduler) Unregister(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[workflowID]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, workflowID)
	return true
}

// Start begins running registered entries on their schedules. It returns
// immediately; cron runs entries on its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight run to finish, and
// returns once it has.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runScheduled(workflowID string, steps []Step) {
	execCtx := ctx.New()
	background := context.Background()
	if _, _, err := s.engine.Execute(background, execCtx, workflowID, steps); err != nil {
		if s.log != nil {
			s.log.Error(background, "scheduled workflow run failed", err, map[string]interface{}{"workflow_id": workflowID})
		}
		return
	}
	if s.log != nil {
		s.log.Info(background, "scheduled workflow run completed", map[string]interface{}{"workflow_id": workflowID})
	}
}
