package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/coderoj/judge/internal/judge"
	"github.com/coderoj/judge/internal/store"
)

func acceptedRunner() SessionRunnerFunc {
	return func(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error {
		for _, c := range req.Cases {
			if err := onUpdate(judge.NewCaseUpdate(c.UID, judge.FinishedResult(judge.CaseResultInfo{Result: judge.VerdictAccepted}))); err != nil {
				return err
			}
		}
		return onUpdate(judge.NewFinishUpdate(judge.VerdictAccepted, 100))
	}
}

func waitForState(t *testing.T, st *store.Store, id uint64, want store.State) store.View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		v, err := st.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v.State == want {
			return v
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("submission %d never reached state %s", id, want)
	return store.View{}
}

func TestDispatcherAppliesAcceptedRun(t *testing.T) {
	st := store.New()
	d := New(st, acceptedRunner(), 2, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	id := st.NewJob(judge.Request{Cases: []judge.Case{{UID: 0}}})
	d.Enqueue(id)

	v := waitForState(t, st, id, store.StateFinished)
	if v.Overall != judge.VerdictAccepted || v.Score != 100 {
		t.Fatalf("unexpected result: %+v", v)
	}
}

func TestDispatcherSkipsCanceledSubmission(t *testing.T) {
	st := store.New()
	d := New(st, acceptedRunner(), 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	id := st.NewJob(judge.Request{})
	if err := st.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	d.Enqueue(id)

	time.Sleep(50 * time.Millisecond)
	v, _ := st.Get(id)
	if v.State != store.StateCanceled {
		t.Fatalf("state = %s, want Canceled (dispatcher must not touch a canceled job)", v.State)
	}
}

func TestDispatcherSystemErrorOnRunnerFailure(t *testing.T) {
	st := store.New()
	failing := SessionRunnerFunc(func(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error {
		return fmt.Errorf("boom")
	})
	d := New(st, failing, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	id := st.NewJob(judge.Request{})
	d.Enqueue(id)

	v := waitForState(t, st, id, store.StateSystemError)
	if v.SystemErrorMsg == "" {
		t.Fatal("expected a SystemError message")
	}
}

func TestDispatcherSystemErrorOnDisconnect(t *testing.T) {
	st := store.New()
	// Runner returns cleanly without ever sending a Finish update.
	silent := SessionRunnerFunc(func(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error {
		return nil
	})
	d := New(st, silent, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	id := st.NewJob(judge.Request{})
	d.Enqueue(id)

	v := waitForState(t, st, id, store.StateSystemError)
	if v.SystemErrorMsg == "" {
		t.Fatal("expected a disconnect SystemError message")
	}
}
