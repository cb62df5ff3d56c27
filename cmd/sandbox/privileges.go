package main

import "golang.org/x/sys/unix"

// dropPrivileges switches the process to the unprivileged sandbox uid/gid
// before any rlimit or seccomp installation, matching
// original_source/judger/src/bin/sandbox.rs's main(): setuid/setgid happen
// first so a buggy rlimit/seccomp step can never run with elevated rights.
func dropPrivileges(uid, gid int) error {
	if err := unix.Setgid(gid); err != nil {
		return err
	}
	return unix.Setuid(uid)
}
