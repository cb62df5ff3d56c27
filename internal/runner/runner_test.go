package runner

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/coderoj/judge/internal/judge"
)

func TestRunAcceptedFastExit(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")
	if err := os.WriteFile(inPath, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	spec := LauncherSpec{LauncherPath: "/bin/true"}
	c := judge.Case{TimeLimit: 5_000_000, MemoryLimit: 256 << 20}

	// /bin/true ignores the -r/-t/-m/-s flags we pass (it's standing in
	// for the real sandbox launcher binary in this unit test) and always
	// exits 0, but still exercises the stdio wiring, wait4 usage
	// collection and the exit-0 classification path end to end.
	info, err := Run(context.Background(), spec, c, false, inPath, outPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if info.Result != judge.VerdictAccepted {
		t.Fatalf("Result = %s, want Accepted", info.Result)
	}
}

func TestClassifyPriorityMLEOverTLE(t *testing.T) {
	c := judge.Case{TimeLimit: 1000, MemoryLimit: 1000}
	// exit(1) over both limits: the priority ordering only applies to a
	// non-success exit.
	info := classify(syscall.WaitStatus(1<<8), 2000, 2000, c)
	if info.Result != judge.VerdictMemoryLimitExceeded {
		t.Fatalf("Result = %s, want Memory Limit Exceeded (must win over TLE)", info.Result)
	}
}

func TestClassifyNeverTLEOnSuccessfulExit(t *testing.T) {
	c := judge.Case{TimeLimit: 1000, MemoryLimit: 1_000_000}
	info := classify(syscall.WaitStatus(0), 2000, 100, c)
	if info.Result != judge.VerdictAccepted {
		t.Fatalf("Result = %s, want Accepted (exit 0 never reclassifies as TLE)", info.Result)
	}
}

func TestClassifyTLEOnFailedExitOverLimit(t *testing.T) {
	c := judge.Case{TimeLimit: 1000, MemoryLimit: 1_000_000}
	// status byte encoding for exit(1): low byte 0, exit code in bits 8-15.
	info := classify(syscall.WaitStatus(1<<8), 2000, 100, c)
	if info.Result != judge.VerdictTimeLimitExceeded {
		t.Fatalf("Result = %s, want Time Limit Exceeded", info.Result)
	}
}

func TestRunChecker(t *testing.T) {
	argv := []string{"/bin/echo", "Accepted"}
	v, info, err := RunChecker(context.Background(), argv)
	if err != nil {
		t.Fatalf("RunChecker: %v", err)
	}
	if v != judge.VerdictAccepted {
		t.Fatalf("verdict = %s, want Accepted", v)
	}
	_ = info
}

func TestRunCheckerWrongAnswer(t *testing.T) {
	argv := []string{"/bin/echo", "nope"}
	v, _, err := RunChecker(context.Background(), argv)
	if err != nil {
		t.Fatalf("RunChecker: %v", err)
	}
	if v != judge.VerdictWrongAnswer {
		t.Fatalf("verdict = %s, want Wrong Answer", v)
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	argv := SubstitutePlaceholders([]string{"chk", "%OUTPUT%", "%ANSWER%"}, "/in", "/out", "/ans")
	if argv[1] != "/out" || argv[2] != "/ans" {
		t.Fatalf("substitution failed: %v", argv)
	}
}

func TestWatchdogTimeoutOnMissingPidDoesNotPanic(t *testing.T) {
	done := make(chan struct{})
	// A non-existent pid: watch should not panic even if FindProcess/
	// Signal fails, it should just be a no-op past the timer fire.
	watch(1<<30, 10*time.Millisecond, done)
	time.Sleep(30 * time.Millisecond)
	close(done)
}
