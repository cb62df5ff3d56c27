package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/coderoj/judge/internal/judge"
)

// checkerTimeout is the fixed 1s watchdog original_source/judger/src/main.rs
// applies to every checker invocation, independent of the case's own time
// limit — checkers are trusted, small, and expected to be fast.
const checkerTimeout = 1 * time.Second

// RunChecker executes an already-unpacked checker argv (placeholders
// %INPUT%/%OUTPUT%/%ANSWER% pre-substituted by the caller) and parses its
// stdout: line 1 is "Accepted" or any other string (mapped to Wrong
// Answer), line 2, if present, is carried through as free-form info. A
// non-zero checker exit is an SPJ error — the checker itself is broken,
// not the submission.
func RunChecker(ctx context.Context, argv []string) (judge.Verdict, string, error) {
	if len(argv) == 0 {
		return "", "", fmt.Errorf("run checker: empty command")
	}

	cctx, cancel := context.WithTimeout(ctx, checkerTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			if cmd.Process != nil {
				_ = cmd.Process.Signal(syscall.SIGKILL)
			}
			return judge.VerdictSPJError, "checker timed out", nil
		}
		return judge.VerdictSPJError, err.Error(), nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(out.Bytes()))
	var first, second string
	if scanner.Scan() {
		first = strings.TrimSpace(scanner.Text())
	}
	if scanner.Scan() {
		second = strings.TrimSpace(scanner.Text())
	}

	if first == "Accepted" {
		return judge.VerdictAccepted, second, nil
	}
	return judge.VerdictWrongAnswer, second, nil
}

// SubstitutePlaceholders replaces the %INPUT%/%OUTPUT%/%ANSWER% tokens a
// checker command may contain with concrete file paths, matching
// original_source's run_case checker invocation.
func SubstitutePlaceholders(argv []string, inputPath, outputPath, answerPath string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		a = strings.ReplaceAll(a, "%INPUT%", inputPath)
		a = strings.ReplaceAll(a, "%OUTPUT%", outputPath)
		a = strings.ReplaceAll(a, "%ANSWER%", answerPath)
		out[i] = a
	}
	return out
}

// checkerExists reports whether a file exists at path. Nothing in this
// repository calls it.
func checkerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
