package session

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/coderoj/judge/internal/judge"
)

type collectingWriter struct {
	updates []judge.Update
}

func (w *collectingWriter) Write(p []byte) (int, error) {
	var u judge.Update
	if err := unmarshalUpdate(bytes.TrimRight(p, "\n"), &u); err != nil {
		return 0, err
	}
	w.updates = append(w.updates, u)
	return len(p), nil
}

func newTestSession(t *testing.T) (*Session, *collectingWriter) {
	t.Helper()
	dir := t.TempDir()
	fsys, err := Bind(dir)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	w := &collectingWriter{}
	return &Session{
		Fs:           fsys,
		LauncherPath: "/bin/true",
		IDGen:        judge.NewUUIDGenerator(dir),
		Out:          w,
	}, w
}

func writeCaseFiles(t *testing.T, fsys *Fs, uid int) {
	t.Helper()
	if err := fsys.Input.At(uid).Set("input\n"); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Answer.At(uid).Set("answer\n"); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRunAcceptedNoDependency(t *testing.T) {
	s, w := newTestSession(t)
	writeCaseFiles(t, s.Fs, 0)

	req := judge.Request{
		Code: judge.Code{Language: judge.Language{Name: "none"}, Source: "print(1)"},
		Cases: []judge.Case{
			{UID: 0, Score: 100, PackScore: 100, TimeLimit: 1_000_000, MemoryLimit: 256 << 20},
		},
		Checker: judge.Pack([]string{"/bin/echo", "Accepted"}),
	}

	if err := s.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	last := w.updates[len(w.updates)-1]
	if last.Kind != judge.UpdateFinish {
		t.Fatalf("last update kind = %s, want finish", last.Kind)
	}
	if *last.FinishVerdict != judge.VerdictAccepted {
		t.Fatalf("finish verdict = %s, want Accepted", *last.FinishVerdict)
	}
	if *last.FinishScore != 100 {
		t.Fatalf("finish score = %v, want 100", *last.FinishScore)
	}
}

func TestSessionSkipsDependentCaseOnFailure(t *testing.T) {
	s, w := newTestSession(t)
	writeCaseFiles(t, s.Fs, 0)
	writeCaseFiles(t, s.Fs, 1)

	req := judge.Request{
		Code: judge.Code{Language: judge.Language{Name: "none"}, Source: "x"},
		Cases: []judge.Case{
			{UID: 0, Score: 50, PackScore: 0, TimeLimit: 1_000_000, MemoryLimit: 256 << 20},
			{UID: 1, Score: 50, PackScore: 50, Dependency: []uint64{0}, TimeLimit: 1_000_000, MemoryLimit: 256 << 20},
		},
		// "nope" makes the checker report Wrong Answer for case 0, which
		// must cause case 1 (which depends on case 0) to be skipped.
		Checker: judge.Pack([]string{"/bin/echo", "nope"}),
	}

	if err := s.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sawSkip bool
	for _, u := range w.updates {
		if u.Kind == judge.UpdateCase && u.CaseUID != nil && *u.CaseUID == 1 && u.CaseResult.Kind == judge.CaseResultSkipped {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatalf("expected case 1 to be skipped, updates: %+v", w.updates)
	}

	last := w.updates[len(w.updates)-1]
	if *last.FinishVerdict != judge.VerdictWrongAnswer {
		t.Fatalf("finish verdict = %s, want Wrong Answer", *last.FinishVerdict)
	}
	if *last.FinishScore != 0 {
		t.Fatalf("finish score = %v, want 0 (packed score withheld)", *last.FinishScore)
	}
}

func TestSessionScoresEachAcceptedCaseByItsOwnScore(t *testing.T) {
	s, w := newTestSession(t)
	writeCaseFiles(t, s.Fs, 0)
	writeCaseFiles(t, s.Fs, 1)
	writeCaseFiles(t, s.Fs, 2)

	// Three independent cases standing in for one pack scored [10, 20, 30]:
	// PackScore is zeroed on every non-terminal member and only carried by
	// the last one (case 2), so summing PackScore instead of Score would
	// undercount here. The checker decides AC/WA by reading each case's own
	// answer file rather than returning the same verdict for every case.
	if err := s.Fs.Answer.At(0).Set("yes\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.Fs.Answer.At(1).Set("yes\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.Fs.Answer.At(2).Set("no\n"); err != nil {
		t.Fatal(err)
	}

	req := judge.Request{
		Code: judge.Code{Language: judge.Language{Name: "none"}, Source: "x"},
		Cases: []judge.Case{
			{UID: 0, Score: 10, PackScore: 0, TimeLimit: 1_000_000, MemoryLimit: 256 << 20},
			{UID: 1, Score: 20, PackScore: 0, TimeLimit: 1_000_000, MemoryLimit: 256 << 20},
			{UID: 2, Score: 30, PackScore: 60, TimeLimit: 1_000_000, MemoryLimit: 256 << 20},
		},
		Checker: judge.Pack([]string{"/bin/sh", "-c", `if [ "$(cat %ANSWER%)" = yes ]; then echo Accepted; else echo WrongAnswer; fi`}),
	}

	if err := s.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	last := w.updates[len(w.updates)-1]
	if *last.FinishVerdict != judge.VerdictWrongAnswer {
		t.Fatalf("finish verdict = %s, want Wrong Answer", *last.FinishVerdict)
	}
	if *last.FinishScore != 30 {
		t.Fatalf("finish score = %v, want 30 (sum of case.score over the two Accepted cases, not pack_score)", *last.FinishScore)
	}
}

func TestSessionCompilationErrorSkipsCases(t *testing.T) {
	s, w := newTestSession(t)

	req := judge.Request{
		Code: judge.Code{
			Language: judge.Language{Name: "c", Command: []string{"/bin/false"}},
			Source:   "int main(){return 1;}",
		},
		Cases:   []judge.Case{{UID: 0, Score: 100, PackScore: 100}},
		Checker: judge.Pack([]string{"/bin/echo", "Accepted"}),
	}

	if err := s.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sawCaseUpdate bool
	for _, u := range w.updates {
		if u.Kind == judge.UpdateCase {
			sawCaseUpdate = true
		}
	}
	if sawCaseUpdate {
		t.Fatalf("expected no case updates after compile failure, got %+v", w.updates)
	}

	last := w.updates[len(w.updates)-1]
	if *last.FinishVerdict != judge.VerdictCompilationError {
		t.Fatalf("finish verdict = %s, want Compilation Error", *last.FinishVerdict)
	}
}

func TestFsBindCreatesDir(t *testing.T) {
	dir := t.TempDir() + "/nested"
	fsys, err := Bind(dir)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := os.Stat(fsys.Dir); err != nil {
		t.Fatalf("bind did not create dir: %v", err)
	}
}
