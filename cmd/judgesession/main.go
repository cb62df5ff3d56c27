// Command judgesession is the Judge Session binary: it reads one Request
// as JSON on stdin, compiles and runs the submission case by case through
// the Sandbox Launcher, and streams NDJSON Update records on stdout. The
// Dispatcher/Worker Pool spawns one of these per submission.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/coderoj/judge/internal/judge"
	"github.com/coderoj/judge/internal/session"
)

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		log.Fatalf("judgesession: %v", err)
	}
}

func run(in io.Reader, out io.Writer) error {
	workDir := os.Getenv("JUDGER_WORK_DIR")
	if workDir == "" {
		workDir = "/work"
	}

	fsys, err := session.Bind(workDir)
	if err != nil {
		return fmt.Errorf("bind work dir: %w", err)
	}

	var req judge.Request
	dec := json.NewDecoder(in)
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	launcherPath := os.Getenv("JUDGER_SANDBOX_BIN")
	if launcherPath == "" {
		launcherPath = "/usr/local/bin/sandbox"
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	sess := &session.Session{
		Fs:           fsys,
		LauncherPath: launcherPath,
		IDGen:        judge.NewUUIDGenerator(workDir),
		Out:          w,
	}
	return sess.Run(context.Background(), req)
}
