package store

import (
	"testing"

	"github.com/coderoj/judge/internal/judge"
)

func TestNewJobIDEqualsIndex(t *testing.T) {
	st := New()
	for i := 0; i < 5; i++ {
		id := st.NewJob(judge.Request{})
		if id != uint64(i) {
			t.Fatalf("NewJob #%d returned id %d, want %d", i, id, i)
		}
	}
}

func TestNewJobInitializesWaitingCases(t *testing.T) {
	st := New()
	id := st.NewJob(judge.Request{Cases: []judge.Case{{UID: 0}, {UID: 1}, {UID: 2}}})
	v, err := st.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v.CaseResults) != 3 {
		t.Fatalf("len(CaseResults) = %d, want 3", len(v.CaseResults))
	}
	for _, cr := range v.CaseResults {
		if cr.Kind != judge.CaseResultWaiting {
			t.Fatalf("case result kind = %s, want waiting", cr.Kind)
		}
	}
	if v.State != StateQueueing {
		t.Fatalf("state = %s, want Queueing", v.State)
	}
}

func TestGetUnknownID(t *testing.T) {
	st := New()
	if _, err := st.Get(42); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelOnlyValidWhileQueueing(t *testing.T) {
	st := New()
	id := st.NewJob(judge.Request{})
	if err := st.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	v, _ := st.Get(id)
	if v.State != StateCanceled {
		t.Fatalf("state = %s, want Canceled", v.State)
	}
	if err := st.Cancel(id); err != ErrInvalidState {
		t.Fatalf("second Cancel err = %v, want ErrInvalidState", err)
	}
}

func TestRerunRequiresFinishedState(t *testing.T) {
	st := New()
	id := st.NewJob(judge.Request{})
	if err := st.Rerun(id); err != ErrInvalidState {
		t.Fatalf("Rerun while Queueing err = %v, want ErrInvalidState", err)
	}

	sub, unlock, _ := st.Lock(id)
	sub.State = StateFinished
	sub.Overall = judge.VerdictAccepted
	sub.Score = 100
	unlock()

	if err := st.Rerun(id); err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	v, _ := st.Get(id)
	if v.State != StateQueueing {
		t.Fatalf("state after rerun = %s, want Queueing", v.State)
	}
	if v.Overall != "" || v.Score != 0 {
		t.Fatalf("rerun did not clear prior result: %+v", v)
	}
}

func TestListReturnsSnapshotInOrder(t *testing.T) {
	st := New()
	st.NewJob(judge.Request{})
	st.NewJob(judge.Request{})
	views := st.List()
	if len(views) != 2 || views[0].ID != 0 || views[1].ID != 1 {
		t.Fatalf("unexpected list order: %+v", views)
	}
}

func TestSingletonReturnsSameInstance(t *testing.T) {
	a := Singleton()
	b := Singleton()
	if a != b {
		t.Fatal("Singleton returned distinct instances")
	}
}
