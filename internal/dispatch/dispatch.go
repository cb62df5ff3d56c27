// Package dispatch implements the Dispatcher/Worker Pool's literal,
// in-process model from spec.md §4.5: a bounded channel plus N worker
// goroutines, each pinned (conceptually — via a cpuset hint passed to the
// spawned session) to one CPU slot, applying a submission's NDJSON Update
// stream to the Submission Store under its per-entry lock. It is grounded
// on original_source/src/service.rs's runner() function.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/coderoj/judge/internal/judge"
	"github.com/coderoj/judge/internal/store"
)

// SessionRunner abstracts "run one submission's Judge Session to
// completion, delivering every Update as it is produced". Production
// code spawns cmd/judgesession as a subprocess (SubprocessRunner); tests
// inject a function-based runner so the Dispatcher's own
// apply/skip/error logic can be exercised without a real sandbox.
type SessionRunner interface {
	RunSession(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error
}

// SessionRunnerFunc adapts a plain function to SessionRunner.
type SessionRunnerFunc func(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error

func (f SessionRunnerFunc) RunSession(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error {
	return f(ctx, cpuID, req, onUpdate)
}

// Dispatcher owns the bounded job channel and the worker goroutines that
// drain it. Jobs are submission ids into store; the Dispatcher looks the
// submission up fresh on each receive so a Cancel issued after enqueue
// but before dispatch is observed.
type Dispatcher struct {
	store   *store.Store
	runner  SessionRunner
	jobs    chan uint64
	wg      sync.WaitGroup
	workers int
}

// New builds a Dispatcher with workers goroutines, each assigned a
// distinct cpuID in [0, workers) for the lifetime of the pool — the Go
// analogue of original_source's one-thread-per-cpuid JobRunner, widened
// from 1 to N per spec.md's generalization.
func New(st *store.Store, runner SessionRunner, workers, queueDepth int) *Dispatcher {
	return &Dispatcher{
		store:   st,
		runner:  runner,
		jobs:    make(chan uint64, queueDepth),
		workers: workers,
	}
}

// Start launches the worker pool; call Stop (or cancel ctx) to drain and
// exit it.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop closes the job channel and waits for every in-flight worker to
// finish its current job.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

// Enqueue submits id for dispatch. It blocks if the queue is full,
// exerting backpressure on the caller (spec.md §5: "a bounded channel").
func (d *Dispatcher) Enqueue(id uint64) {
	d.jobs <- id
}

func (d *Dispatcher) worker(ctx context.Context, cpuID int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-d.jobs:
			if !ok {
				return
			}
			d.process(ctx, cpuID, id)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, cpuID int, id uint64) {
	sub, unlock, err := d.store.Lock(id)
	if err != nil {
		return
	}
	if sub.State == store.StateCanceled {
		unlock()
		return
	}
	sub.State = store.StateRunning
	req := sub.Request
	unlock()

	applyErr := d.runner.RunSession(ctx, cpuID, req, func(u judge.Update) error {
		return d.apply(id, u)
	})

	sub2, unlock2, err := d.store.Lock(id)
	if err != nil {
		return
	}
	defer unlock2()

	if applyErr != nil {
		sub2.State = store.StateSystemError
		sub2.SystemErrorMsg = applyErr.Error()
		return
	}
	// A session that exits cleanly without ever sending Finish has
	// disconnected — original_source's runner() treats this as
	// "judger disconnected" and forces SystemError rather than leaving
	// the submission stuck at Running forever.
	if sub2.State == store.StateRunning {
		sub2.State = store.StateSystemError
		sub2.SystemErrorMsg = "judge session disconnected without a finish update"
	}
}

// apply folds one Update into the locked submission, matching
// original_source's runner() match arms over Update::{Compile, Case,
// Finish, Error}.
func (d *Dispatcher) apply(id uint64, u judge.Update) error {
	sub, unlock, err := d.store.Lock(id)
	if err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	defer unlock()

	switch u.Kind {
	case judge.UpdateCompile:
		sub.CompileResult = *u.CompileResult
	case judge.UpdateCase:
		idx := int(*u.CaseUID)
		if idx < 0 || idx >= len(sub.CaseResults) {
			return fmt.Errorf("apply update: case uid %d out of range", idx)
		}
		sub.CaseResults[idx] = *u.CaseResult
	case judge.UpdateFinish:
		sub.Overall = *u.FinishVerdict
		sub.Score = *u.FinishScore
		sub.State = store.StateFinished
	case judge.UpdateError:
		sub.State = store.StateSystemError
		sub.SystemErrorMsg = u.ErrorMessage
	default:
		return fmt.Errorf("apply update: unknown kind %q", u.Kind)
	}
	return nil
}
