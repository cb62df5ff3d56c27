package session

import (
	"context"
	"os/exec"
	"strings"

	"github.com/coderoj/judge/internal/runner"
)

// CompileOnly runs a compile command (argv with %INPUT%/%OUTPUT%
// placeholders already understood by runner.SubstitutePlaceholders)
// against sourcePath, writing the compiled artifact to targetPath. It
// reports whether compilation succeeded and the combined stdout+stderr
// for diagnostics. Compilation itself runs outside the Sandbox
// Launcher's seccomp/rlimit confinement — only a wall-clock watchdog —
// matching original_source/judger/src/main.rs's compile(): a compiler
// needs a far wider syscall surface (spawning cc1/ld/javac) than the
// user program it produces ever should.
func CompileOnly(ctx context.Context, argv []string, sourcePath, targetPath string) (ok bool, output string, err error) {
	if len(argv) == 0 {
		return true, "", nil
	}

	resolved := runner.SubstitutePlaceholders(argv, sourcePath, targetPath, "")
	cctx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, resolved[0], resolved[1:]...)
	var combined strings.Builder
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if runErr := cmd.Run(); runErr != nil {
		return false, combined.String(), nil
	}
	return true, combined.String(), nil
}
