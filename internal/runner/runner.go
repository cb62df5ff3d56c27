// Package runner implements the Case Runner: it spawns one Sandbox
// Launcher invocation per test case, redirects its stdio to the case's
// input/output files, enforces the wall-clock watchdog on top of the
// launcher's own rlimits, collects resource usage, classifies the
// outcome, and — on a successful run — invokes the checker.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/coderoj/judge/internal/judge"
)

// LauncherSpec names the Sandbox Launcher binary and the user program
// command to run inside it, already resolved to a local path.
type LauncherSpec struct {
	LauncherPath string
	RunCommand   []string
}

// watchdogSlackMicros is the extra wall-clock grace given on top of a
// case's own time limit before the Case Runner kills the sandboxed
// process outright — original_source/judger/src/main.rs hard-codes this
// as 1_000_000 microseconds (1s) so a process pinned at its CPU rlimit
// still gets reaped promptly instead of hanging on I/O.
const watchdogSlackMicros = 1_000_000

// Run executes one case: spawns the launcher with -r/-t/-m/-s flags,
// wires stdin/stdout to the given files, waits with the watchdog armed,
// and classifies the result. It does not invoke the checker — callers
// that get back VerdictAccepted here still need to confirm the answer
// via RunChecker.
func Run(ctx context.Context, spec LauncherSpec, c judge.Case, sandbox bool, stdinPath, stdoutPath string) (judge.CaseResultInfo, error) {
	stdin, err := os.Open(stdinPath)
	if err != nil {
		return judge.CaseResultInfo{}, fmt.Errorf("run case: open stdin: %w", err)
	}
	defer stdin.Close()

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return judge.CaseResultInfo{}, fmt.Errorf("run case: open stdout: %w", err)
	}
	defer stdout.Close()

	args := []string{
		"-r", joinCommand(spec.RunCommand),
		"-t", strconv.FormatUint(c.TimeLimit, 10),
		"-m", strconv.FormatUint(c.MemoryLimit, 10),
		"-s", strconv.FormatBool(sandbox),
	}
	cmd := exec.CommandContext(ctx, spec.LauncherPath, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = nil

	timeStart := time.Now()
	if err := cmd.Start(); err != nil {
		return judge.CaseResultInfo{}, fmt.Errorf("run case: start launcher: %w", err)
	}

	done := make(chan struct{})
	timeout := time.Duration(c.TimeLimit+watchdogSlackMicros) * time.Microsecond
	watch(cmd.Process.Pid, timeout, done)

	var rusage syscall.Rusage
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(cmd.Process.Pid, &ws, 0, &rusage)
	wallTimeMicros := uint64(time.Since(timeStart) / time.Microsecond)
	close(done)
	if err != nil || wpid != cmd.Process.Pid {
		return judge.CaseResultInfo{}, fmt.Errorf("run case: wait4: %w", err)
	}

	// Maxrss is reported in KiB on Linux; normalize to bytes per the
	// Case Runner's memory_limit contract.
	memBytes := uint64(rusage.Maxrss) * 1024

	return classify(ws, wallTimeMicros, memBytes, c), nil
}

// classify applies the MLE > TLE > RE priority ordering to a failed run:
// memory is checked last, so it wins over TLE and RE, and a process killed
// by the watchdog after blowing its time budget is TLE rather than RE.
// MLE/TLE are only ever considered
// on a non-success exit — a successful run within both limits goes
// straight to the checker.
func classify(ws syscall.WaitStatus, wallTimeMicros, memBytes uint64, c judge.Case) judge.CaseResultInfo {
	info := judge.CaseResultInfo{Time: wallTimeMicros, Memory: memBytes}

	if ws.Exited() && ws.ExitStatus() == 0 {
		info.Result = judge.VerdictAccepted
		info.Info = "exit with code 0"
		return info
	}

	switch {
	case ws.Exited():
		info.Result = judge.VerdictRuntimeError
		info.Info = fmt.Sprintf("exit with code %d", ws.ExitStatus())
	case ws.Signaled():
		sig := ws.Signal()
		info.Result = judge.VerdictRuntimeError
		if sig == unix.SIGSYS {
			info.Info = "Dangerous Syscall"
		} else {
			info.Info = fmt.Sprintf("killed by signal %d", int(sig))
		}
	default:
		info.Result = judge.VerdictRuntimeError
		info.Info = "unknown termination"
	}

	if wallTimeMicros > c.TimeLimit {
		info.Result = judge.VerdictTimeLimitExceeded
	}
	if memBytes > c.MemoryLimit {
		info.Result = judge.VerdictMemoryLimitExceeded
	}
	return info
}

func joinCommand(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
