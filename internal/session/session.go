package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coderoj/judge/internal/judge"
	"github.com/coderoj/judge/internal/runner"
)

// compileTimeout is the fixed watchdog original_source/judger/src/main.rs
// applies to compilation, independent of any per-case time limit.
const compileTimeout = 10 * time.Second

// Session drives one submission end to end: write source, compile, run
// each packed case honoring dependency-skip, stream Update records.
type Session struct {
	Fs           *Fs
	LauncherPath string
	IDGen        judge.IDGenerator

	// Out receives every Update in emission order. The Judge Session
	// binary (cmd/judgesession) wires this to a bufio.Writer over
	// os.Stdout; tests can collect into a slice instead.
	Out io.Writer
}

// emit marshals and writes one Update line, flushing immediately — the
// Dispatcher on the other end of the pipe reads line-by-line and must see
// each Update as soon as it is produced, not buffered until process exit.
func (s *Session) emit(u judge.Update) error {
	b, err := u.Marshal()
	if err != nil {
		return err
	}
	if _, err := s.Out.Write(b); err != nil {
		return err
	}
	if f, ok := s.Out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Run executes the full session lifecycle for req, writing the source to
// disk, compiling it, and — only on compile success — running every case
// in UID order honoring each case's packing dependency. It returns the
// same error it would otherwise have sent as Update::Error, so a caller
// can log it; the NDJSON stream itself is the primary channel for the
// outcome.
func (s *Session) Run(ctx context.Context, req judge.Request) error {
	if err := s.Fs.Source.Set(req.Code.Source); err != nil {
		return s.fail(fmt.Errorf("write source: %w", err))
	}

	compileOK, err := s.compile(ctx, req.Code.Language)
	if err != nil {
		return s.fail(err)
	}
	if !compileOK {
		return s.emit(judge.NewFinishUpdate(judge.VerdictCompilationError, 0))
	}

	checkerArgv, err := judge.Unpack(req.Checker, s.IDGen)
	if err != nil {
		return s.fail(fmt.Errorf("unpack checker: %w", err))
	}

	results := make(map[uint64]judge.Verdict, len(req.Cases))
	var overall judge.Verdict = judge.VerdictAccepted
	var score float64

	for _, c := range req.Cases {
		if err := s.emit(judge.NewCaseUpdate(c.UID, judge.RunningResult())); err != nil {
			return err
		}

		if skip, depVerdict := dependencyFailed(c, results); skip {
			results[c.UID] = depVerdict
			if err := s.emit(judge.NewCaseUpdate(c.UID, judge.SkippedResult())); err != nil {
				return err
			}
			continue
		}

		info, err := s.runOneCase(ctx, req, c, checkerArgv)
		if err != nil {
			return s.fail(fmt.Errorf("run case %d: %w", c.UID, err))
		}
		results[c.UID] = info.Result
		overall = overall.Or(info.Result)
		score += info.Result.ScoreCoef() * c.Score

		if err := s.emit(judge.NewCaseUpdate(c.UID, judge.FinishedResult(info))); err != nil {
			return err
		}
	}

	return s.emit(judge.NewFinishUpdate(overall, score))
}

// dependencyFailed reports whether c must be skipped because any of its
// dependencies did not resolve to Accepted. A missing result (dependency
// not yet run — should not happen given cases run in dependency order,
// but defends against malformed packing) is treated as a failure too.
func dependencyFailed(c judge.Case, results map[uint64]judge.Verdict) (bool, judge.Verdict) {
	for _, dep := range c.Dependency {
		v, ok := results[dep]
		if !ok || v != judge.VerdictAccepted {
			if !ok {
				return true, judge.VerdictSkipped
			}
			return true, v
		}
	}
	return false, ""
}

func (s *Session) runOneCase(ctx context.Context, req judge.Request, c judge.Case, checkerArgv []string) (judge.CaseResultInfo, error) {
	in := s.Fs.Input.At(int(c.UID))
	out := s.Fs.Output

	spec := runner.LauncherSpec{LauncherPath: s.LauncherPath, RunCommand: req.Code.Language.Command}
	info, err := runner.Run(ctx, spec, c, req.Sandbox, in.Path(), out.Path())
	if err != nil {
		return judge.CaseResultInfo{}, err
	}
	if info.Result != judge.VerdictAccepted {
		return info, nil
	}

	ans := s.Fs.Answer.At(int(c.UID))
	argv := runner.SubstitutePlaceholders(checkerArgv, in.Path(), out.Path(), ans.Path())
	verdict, checkerInfo, err := runner.RunChecker(ctx, argv)
	if err != nil {
		return judge.CaseResultInfo{}, err
	}
	info.Result = verdict
	info.Info = checkerInfo
	return info, nil
}

// compile runs lang.Command against Fs.Source, writing stdout+stderr to
// Fs.CompileOutput, and reports whether compilation succeeded. Languages
// whose Command is empty (interpreted languages) are treated as always
// compiling successfully — Target is written as an empty file.
func (s *Session) compile(ctx context.Context, lang judge.Language) (bool, error) {
	if err := s.emit(judge.NewCompileUpdate(judge.RunningResult())); err != nil {
		return false, err
	}

	if len(lang.Command) == 0 {
		if err := s.Fs.Target.Set(""); err != nil {
			return false, err
		}
		return true, s.emit(judge.NewCompileUpdate(judge.FinishedResult(judge.CaseResultInfo{Result: judge.VerdictCompilationSuccess})))
	}

	ok, output, err := CompileOnly(ctx, lang.Command, s.Fs.Source.Path(), s.Fs.Target.Path())
	if err != nil {
		return false, err
	}
	_ = s.Fs.CompileOutput.Set(output)

	if !ok {
		return false, s.emit(judge.NewCompileUpdate(judge.FinishedResult(judge.CaseResultInfo{
			Result: judge.VerdictCompilationError,
			Info:   output,
		})))
	}
	return true, s.emit(judge.NewCompileUpdate(judge.FinishedResult(judge.CaseResultInfo{Result: judge.VerdictCompilationSuccess})))
}

func (s *Session) fail(err error) error {
	_ = s.emit(judge.NewErrorUpdate(err.Error()))
	return err
}

// ReadUpdates scans newline-delimited Update records off r — the
// Dispatcher's half of the NDJSON contract this package's Session writes.
func ReadUpdates(r io.Reader, fn func(judge.Update) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var u judge.Update
		if err := unmarshalUpdate(line, &u); err != nil {
			return fmt.Errorf("read updates: %w", err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return scanner.Err()
}
