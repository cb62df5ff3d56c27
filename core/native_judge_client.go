package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/coderoj/judge/internal/judge"
	"github.com/coderoj/judge/internal/runner"
)

// NativeJudgeClient implements JudgeClient directly against
// internal/runner's Sandbox-Launcher-backed execution instead of
// delegating to an external go-judge HTTP service. It keeps
// WorkerProcessor's existing per-testcase loop (core/worker_processor.go)
// entirely unchanged — only the two calls it makes into JudgeClient
// change from HTTP round-trips to local compile/exec.
//
// "Artifact" here is the scratch directory the submission was compiled
// into: RunWithArtifact re-enters that directory rather than looking up
// a remote file id, since there is no longer a separate go-judge process
// holding cached files across calls.
type NativeJudgeClient struct {
	// SandboxBinPath is the cmd/sandbox binary invoked for every case run.
	SandboxBinPath string
	// ScratchRoot is the parent directory under which one subdirectory
	// per compile is created.
	ScratchRoot string
}

func NewNativeJudgeClient(sandboxBinPath, scratchRoot string) *NativeJudgeClient {
	return &NativeJudgeClient{SandboxBinPath: sandboxBinPath, ScratchRoot: scratchRoot}
}

func nativeLangConfigFor(lang string) (judgeLangConfig, judge.Language) {
	cfg := langConfigFor(lang)
	return cfg, judge.Language{
		Name:     lang,
		FileName: cfg.SourceName,
		Command:  cfg.RunArgs,
	}
}

// Compile writes source into a fresh scratch directory under ScratchRoot
// and compiles it in place (cfg.CompileArgs assume a cwd containing the
// source file, matching the teacher's existing judgeLangConfigs table),
// returning the scratch directory's path as the "artifact id".
func (c *NativeJudgeClient) Compile(ctx context.Context, lang, source string, timeLimitMs, memoryLimitMb int) (*judgeResponse, string, string, error) {
	cfg, _ := nativeLangConfigFor(lang)

	dir, err := os.MkdirTemp(c.ScratchRoot, "compile-*")
	if err != nil {
		return nil, "", "", fmt.Errorf("native judge client: scratch dir: %w", err)
	}
	sourcePath := filepath.Join(dir, cfg.SourceName)
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		return nil, "", "", fmt.Errorf("native judge client: write source: %w", err)
	}

	if len(cfg.CompileArgs) == 0 {
		return &judgeResponse{Status: "Accepted", ExitStatus: 0}, cfg.ArtifactKey, dir, nil
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(timeLimitMs)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(cctx, cfg.CompileArgs[0], cfg.CompileArgs[1:]...)
	cmd.Dir = dir
	var combined strings.Builder
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	resp := &judgeResponse{
		Time:  elapsed.Nanoseconds(),
		Files: map[string]string{"stdout": combined.String(), "stderr": ""},
	}
	if runErr != nil {
		resp.Status = "Compilation Error"
		resp.ExitStatus = 1
		resp.Error = combined.String()
		return resp, cfg.ArtifactKey, dir, nil
	}
	resp.Status = "Accepted"
	resp.ExitStatus = 0
	return resp, cfg.ArtifactKey, dir, nil
}

// RunWithArtifact runs the compiled program from the scratch directory
// named by artifactID (produced by Compile) through the Sandbox Launcher,
// feeding stdin and capturing stdout, matching
// original_source/judger/src/main.rs's run_case.
func (c *NativeJudgeClient) RunWithArtifact(ctx context.Context, lang, artifactID, stdin string, timeLimitMs, memoryLimitMb int) (*judgeResponse, error) {
	if artifactID == "" {
		return nil, fmt.Errorf("native judge client: empty artifact id")
	}
	_, langSpec := nativeLangConfigFor(lang)

	inPath := filepath.Join(artifactID, "stdin")
	outPath := filepath.Join(artifactID, "stdout")
	if err := os.WriteFile(inPath, []byte(stdin), 0o644); err != nil {
		return nil, fmt.Errorf("native judge client: write stdin: %w", err)
	}

	spec := runner.LauncherSpec{LauncherPath: c.SandboxBinPath, RunCommand: absoluteRunArgs(langSpec.Command, artifactID)}
	kase := judge.Case{
		TimeLimit:   uint64(timeLimitMs) * 1000,
		MemoryLimit: uint64(memoryLimitMb) * 1024 * 1024,
	}

	info, err := runner.Run(ctx, spec, kase, true, inPath, outPath)
	if err != nil {
		return nil, fmt.Errorf("native judge client: run: %w", err)
	}

	out, _ := os.ReadFile(outPath)
	resp := &judgeResponse{
		Status: string(info.Result),
		Time:   int64(info.Time) * 1000,
		Memory: int64(info.Memory),
		Files:  map[string]string{"stdout": string(out), "stderr": ""},
	}
	if info.Result == judge.VerdictAccepted {
		resp.ExitStatus = 0
	} else {
		resp.ExitStatus = 1
		resp.Error = info.Info
	}
	return resp, nil
}

// RemoveFiles deletes the scratch directories passed as artifact ids.
func (c *NativeJudgeClient) RemoveFiles(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := os.RemoveAll(id); err != nil {
			return err
		}
	}
	return nil
}

// absoluteRunArgs rewrites a relative run command (e.g. "./main") to
// point at the compiled artifact's actual scratch directory, since the
// Sandbox Launcher execve's directly rather than inheriting a cwd set up
// by the compile step.
func absoluteRunArgs(args []string, dir string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "./") {
			out[i] = filepath.Join(dir, strings.TrimPrefix(a, "./"))
		} else {
			out[i] = a
		}
	}
	return out
}
