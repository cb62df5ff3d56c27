// Package store implements the Submission Store's literal, in-process
// model from spec.md §4.4: a process-lifetime ordered list where a
// submission's id equals its index, with its own mutex guarding the
// fields a running Judge Session mutates. It is the reference
// implementation the spec's testable properties (§8) are checked
// against directly, grounded on original_source/src/service.rs's
// RESULT_LIST/exec/get_result.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/coderoj/judge/internal/judge"
)

// ErrNotFound is returned when an id does not index an existing entry.
var ErrNotFound = errors.New("store: submission not found")

// ErrInvalidState is returned when Rerun/Cancel is attempted from a state
// that does not permit it (spec.md §4.4's state-transition rules).
var ErrInvalidState = errors.New("store: invalid state for requested transition")

// State is the submission's lifecycle state.
type State string

const (
	StateQueueing State = "Queueing"
	StateRunning  State = "Running"
	StateFinished State = "Finished"
	StateCanceled State = "Canceled"
	StateSystemError State = "SystemError"
)

// Submission is one entry in the store: its id is always its index in
// the backing slice, fixed at creation and never reused.
type Submission struct {
	mu sync.Mutex

	ID          uint64
	CreatedTime time.Time
	UpdatedTime time.Time
	Request     judge.Request

	State         State
	SystemErrorMsg string
	CompileResult judge.CaseResult
	CaseResults   []judge.CaseResult
	Overall       judge.Verdict
	Score         float64
}

// View is a lock-consistent snapshot of a Submission safe to hand to a
// caller outside the store's own locking discipline.
type View struct {
	ID             uint64
	CreatedTime    time.Time
	UpdatedTime    time.Time
	State          State
	SystemErrorMsg string
	CompileResult  judge.CaseResult
	CaseResults    []judge.CaseResult
	Overall        judge.Verdict
	Score          float64
}

func (s *Submission) view() View {
	cases := make([]judge.CaseResult, len(s.CaseResults))
	copy(cases, s.CaseResults)
	return View{
		ID:             s.ID,
		CreatedTime:    s.CreatedTime,
		UpdatedTime:    s.UpdatedTime,
		State:          s.State,
		SystemErrorMsg: s.SystemErrorMsg,
		CompileResult:  s.CompileResult,
		CaseResults:    cases,
		Overall:        s.Overall,
		Score:          s.Score,
	}
}

// Store is the process-wide ordered submission list. nowFn is injectable
// so tests don't depend on wall-clock time.
type Store struct {
	mu    sync.Mutex
	items []*Submission
	nowFn func() time.Time
}

// New constructs an empty Store. Use Singleton to share one instance
// process-wide the way original_source's lazy_static RESULT_LIST does.
func New() *Store {
	return &Store{nowFn: time.Now}
}

var (
	singleton     *Store
	singletonOnce sync.Once
)

// Singleton returns the process-wide Store, initializing it exactly once
// — the Go translation of original_source's lazy_static RESULT_LIST.
func Singleton() *Store {
	singletonOnce.Do(func() { singleton = New() })
	return singleton
}

// NewJob appends a fresh submission in Queueing state and returns its id,
// which is always len(items) before the append — the store's core
// invariant (spec.md §8: "a submission's id never changes and always
// equals its index").
func (st *Store) NewJob(req judge.Request) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.nowFn()
	sub := &Submission{
		ID:          uint64(len(st.items)),
		CreatedTime: now,
		UpdatedTime: now,
		Request:     req,
		State:       StateQueueing,
		CaseResults: waitingResults(len(req.Cases)),
	}
	st.items = append(st.items, sub)
	return sub.ID
}

func waitingResults(n int) []judge.CaseResult {
	out := make([]judge.CaseResult, n)
	for i := range out {
		out[i] = judge.WaitingResult()
	}
	return out
}

// Get returns a consistent snapshot of the submission at id.
func (st *Store) Get(id uint64) (View, error) {
	sub, err := st.at(id)
	if err != nil {
		return View{}, err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.view(), nil
}

// List returns a snapshot of every submission in id order.
func (st *Store) List() []View {
	st.mu.Lock()
	items := make([]*Submission, len(st.items))
	copy(items, st.items)
	st.mu.Unlock()

	out := make([]View, len(items))
	for i, sub := range items {
		sub.mu.Lock()
		out[i] = sub.view()
		sub.mu.Unlock()
	}
	return out
}

func (st *Store) at(id uint64) (*Submission, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id >= uint64(len(st.items)) {
		return nil, ErrNotFound
	}
	return st.items[id], nil
}

// Lock acquires the per-submission mutex and hands back the entry plus an
// unlock func, for callers (the Dispatcher) that need to apply a
// sequence of NDJSON Update records under one critical section.
func (st *Store) Lock(id uint64) (*Submission, func(), error) {
	sub, err := st.at(id)
	if err != nil {
		return nil, nil, err
	}
	sub.mu.Lock()
	return sub, sub.mu.Unlock, nil
}

// Rerun resets a Finished submission back to Queueing, clearing its
// prior result — spec.md §4.4's rerun_job, valid only if state =
// Finished; Queueing, Running, Canceled, and SystemError all reject.
func (st *Store) Rerun(id uint64) error {
	sub, unlock, err := st.Lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	if sub.State != StateFinished {
		return ErrInvalidState
	}
	sub.State = StateQueueing
	sub.SystemErrorMsg = ""
	sub.CompileResult = judge.CaseResult{}
	sub.CaseResults = waitingResults(len(sub.Request.Cases))
	sub.Overall = ""
	sub.Score = 0
	sub.UpdatedTime = st.nowFn()
	return nil
}

// Cancel marks a still-Queueing submission Canceled so the Dispatcher
// skips it instead of spawning a Judge Session — spec.md §4.4's
// cancel_job. Cancellation is pre-dispatch only: a Running submission
// cannot be canceled.
func (st *Store) Cancel(id uint64) error {
	sub, unlock, err := st.Lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	if sub.State != StateQueueing {
		return ErrInvalidState
	}
	sub.State = StateCanceled
	sub.UpdatedTime = st.nowFn()
	return nil
}
