// Command sandbox is the Sandbox Launcher: it drops privileges, installs
// rlimits, optionally installs a seccomp syscall allow-list, and execve's
// the user's compiled program in its own place. It is never invoked
// directly by an operator — the Case Runner spawns one instance per test
// case and wires its stdio to that case's input/output files.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
)

const (
	sandboxUID = 2000
	sandboxGID = 2000

	// rlimitTimeSlackMicros matches original_source/judger/src/bin/sandbox.rs's
	// set_rlimit: the CPU rlimit is the case time limit plus 1.5s, giving
	// the process a chance to print partial output and exit on its own
	// before the kernel's own SIGXCPU/SIGKILL fires.
	rlimitTimeSlackMicros = 1_500_000

	// rlimitMemorySlackBytes is added on top of the case memory limit
	// before installing AS/DATA/STACK rlimits, matching sandbox.rs's
	// 64 MiB headroom for the runtime/allocator's own bookkeeping.
	rlimitMemorySlackBytes = 64 * 1024 * 1024
)

func main() {
	var (
		run     = flag.String("r", "", "run command (space-separated argv)")
		timeUs  = flag.Uint64("t", 0, "time limit in microseconds")
		memByte = flag.Uint64("m", 0, "memory limit in bytes")
		sandbox = flag.Bool("s", true, "install the seccomp syscall allow-list")
	)
	flag.Parse()

	if *run == "" {
		log.Fatal("sandbox: -r is required")
	}
	argv := strings.Fields(*run)

	if err := dropPrivileges(sandboxUID, sandboxGID); err != nil {
		log.Fatalf("sandbox: drop privileges: %v", err)
	}

	if err := installRlimits(*timeUs, *memByte); err != nil {
		log.Fatalf("sandbox: install rlimits: %v", err)
	}

	if *sandbox {
		if err := installSeccomp(); err != nil {
			log.Fatalf("sandbox: install seccomp: %v", err)
		}
	}

	if err := execve(argv); err != nil {
		// execve only returns on failure; its errno is the conventional
		// exit status for "couldn't even start the program".
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errnoExitCode(err))
	}
}

// errnoExitCode surfaces the underlying errno as the process exit code
// when execve fails, matching original_source/judger/src/bin/sandbox.rs's
// "exit with the errno" behavior so the Case Runner's parent can tell a
// missing binary (ENOENT) apart from a permissions problem (EACCES).
func errnoExitCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 126
}
