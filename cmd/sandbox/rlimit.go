package main

import "golang.org/x/sys/unix"

// installRlimits applies the five resource limits the Sandbox Launcher
// uses to confine the user program, with the exact formulas from
// original_source/judger/src/bin/sandbox.rs's set_rlimit:
//   - CPU time, in whole seconds, rounded up: ceil((timeUs + 1_500_000) / 1_000_000).
//   - Address space, data segment and stack, each capped at
//     memByte + 64 MiB, since the process legitimately needs headroom
//     beyond its declared memory limit for its own runtime bookkeeping
//     (the libc allocator, a GC'd runtime's metadata, etc.) on top of
//     the limit the Case Runner actually enforces via measured rss.
//   - A single allowed process (NPROC=1): the program must not fork.
func installRlimits(timeUs, memByte uint64) error {
	cpuSeconds := cpuSecondsFor(timeUs)
	if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: cpuSeconds, Max: cpuSeconds}); err != nil {
		return err
	}

	memLimit := memByte + rlimitMemorySlackBytes
	for _, res := range []int{unix.RLIMIT_AS, unix.RLIMIT_DATA, unix.RLIMIT_STACK} {
		if err := unix.Setrlimit(res, &unix.Rlimit{Cur: memLimit, Max: memLimit}); err != nil {
			return err
		}
	}

	return unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: 1, Max: 1})
}

// cpuSecondsFor is the RLIMIT_CPU value for a time limit of timeUs:
// the limit plus the fixed slack, rounded up to whole seconds.
func cpuSecondsFor(timeUs uint64) uint64 {
	return (timeUs + rlimitTimeSlackMicros + 999_999) / 1_000_000
}
