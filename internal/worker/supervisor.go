package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

const recentOutcomeCap = 64

// Outcome is the terminal record of one supervised task, kept in a bounded
// in-memory ring for debugging endpoints.
type Outcome struct {
	JobID      uuid.UUID
	EntityID   uuid.UUID
	Class      OpClass
	Err        error
	FinishedAt time.Time
}

// Supervisor is the fire-and-forget launcher every background operation goes
// through. It records a Job row, runs the unit of work on its own goroutine
// under the process base context, captures any error or panic, persists a
// terminal job status, and never propagates failures to the launch site.
type Supervisor struct {
	ctx      context.Context
	store    Store
	notifier Notifier

	wg sync.WaitGroup

	mu      sync.Mutex
	running map[uuid.UUID]int
	recent  []Outcome
}

func NewSupervisor(ctx context.Context, store Store, notifier Notifier) *Supervisor {
	registerMetrics()
	return &Supervisor{
		ctx:      ctx,
		store:    store,
		notifier: notifier,
		running:  make(map[uuid.UUID]int),
	}
}

// Launch starts fn in the background and returns immediately. The task runs
// under the supervisor's base context, not the caller's: an HTTP request
// finishing must not cancel work it kicked off.
//
// Gate admission is the unit of work's responsibility, at its provider call
// sites. A fan-out coordinator holding a class gate while its per-entity
// tasks wait on the same gate would deadlock at capacity one.
func (s *Supervisor) Launch(entityID uuid.UUID, class OpClass, job *models.Job, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	s.trackStart(entityID)

	go func() {
		defer s.wg.Done()
		defer s.trackEnd(entityID)

		if err := s.store.CreateJob(s.ctx, job); err != nil {
			log.Printf("[Supervisor] Failed to record job for %s task on %s: %v", class, entityID, err)
		}

		err := runProtected(s.ctx, fn)

		if err != nil {
			tasksFailed.WithLabelValues(string(class)).Inc()
			log.Printf("[Supervisor] %s task for %s failed: %v", class, entityID, err)
			if dbErr := s.store.FailJob(s.ctx, job.ID, err.Error()); dbErr != nil {
				log.Printf("[Supervisor] Failed to persist job failure %s: %v", job.ID, dbErr)
			}
		} else {
			tasksSucceeded.WithLabelValues(string(class)).Inc()
			if dbErr := s.store.CompleteJob(s.ctx, job.ID); dbErr != nil {
				log.Printf("[Supervisor] Failed to persist job completion %s: %v", job.ID, dbErr)
			}
			s.notifier.Publish(s.ctx, job.ProjectID, "job_completed", map[string]interface{}{
				"job_id":      job.ID.String(),
				"job_type":    string(job.JobType),
				"description": job.Description,
			})
		}

		s.record(Outcome{
			JobID:      job.ID,
			EntityID:   entityID,
			Class:      class,
			Err:        err,
			FinishedAt: time.Now(),
		})
	}()
}

// runProtected invokes fn converting panics into errors so a crashing task
// still reaches a terminal persisted status.
func runProtected(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// InFlight reports whether any supervised task is outstanding for the entity.
func (s *Supervisor) InFlight(entityID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[entityID] > 0
}

// RecentOutcomes returns a copy of the bounded outcome ring, newest last.
func (s *Supervisor) RecentOutcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.recent))
	copy(out, s.recent)
	return out
}

// Wait blocks until every launched task has finished. Used during shutdown
// and by tests.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) trackStart(entityID uuid.UUID) {
	s.mu.Lock()
	s.running[entityID]++
	s.mu.Unlock()
}

func (s *Supervisor) trackEnd(entityID uuid.UUID) {
	s.mu.Lock()
	s.running[entityID]--
	if s.running[entityID] <= 0 {
		delete(s.running, entityID)
	}
	s.mu.Unlock()
}

func (s *Supervisor) record(o Outcome) {
	s.mu.Lock()
	s.recent = append(s.recent, o)
	if len(s.recent) > recentOutcomeCap {
		s.recent = s.recent[len(s.recent)-recentOutcomeCap:]
	}
	s.mu.Unlock()
}
