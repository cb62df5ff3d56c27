package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/coderoj/judge/internal/judge"
	"github.com/coderoj/judge/internal/session"
)

// SubprocessRunner spawns cmd/judgesession as a child process per
// submission, writes the Request as one JSON document on its stdin, and
// reads the NDJSON Update stream off its stdout — the production
// SessionRunner, grounded on original_source/src/service.rs's runner():
// spawn a sandboxed child pinned to cpuID, write the request, scan
// Update lines, then wait() and surface a non-zero exit as an error so
// the caller can mark the submission SystemError.
type SubprocessRunner struct {
	// BinPath is the judgesession binary to execute.
	BinPath string
	// WorkDirFor returns the scratch directory the spawned session
	// should bind via JUDGER_WORK_DIR, keyed by cpuID; each worker
	// goroutine owns one cpuID, so concurrent sessions never share a
	// directory.
	WorkDirFor func(cpuID int) string
	// SandboxBinPath is passed through as JUDGER_SANDBOX_BIN.
	SandboxBinPath string
}

func (r *SubprocessRunner) RunSession(ctx context.Context, cpuID int, req judge.Request, onUpdate func(judge.Update) error) error {
	cmd := exec.CommandContext(ctx, r.BinPath)
	cmd.Env = append(cmd.Env,
		"JUDGER_WORK_DIR="+r.workDir(cpuID),
		"JUDGER_SANDBOX_BIN="+r.SandboxBinPath,
		"JUDGER_CPU_ID="+strconv.Itoa(cpuID),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("subprocess runner: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("subprocess runner: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("subprocess runner: start: %w", err)
	}

	encodeErr := make(chan error, 1)
	go func() {
		enc := json.NewEncoder(stdin)
		encodeErr <- enc.Encode(req)
		stdin.Close()
	}()

	readErr := session.ReadUpdates(bufio.NewReader(stdout), onUpdate)

	waitErr := cmd.Wait()
	if err := <-encodeErr; err != nil {
		return fmt.Errorf("subprocess runner: encode request: %w", err)
	}
	if readErr != nil && readErr != io.EOF {
		return fmt.Errorf("subprocess runner: read updates: %w", readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("subprocess runner: judge session exited with error: %w", waitErr)
	}
	return nil
}

func (r *SubprocessRunner) workDir(cpuID int) string {
	if r.WorkDirFor != nil {
		return r.WorkDirFor(cpuID)
	}
	return "/work"
}
