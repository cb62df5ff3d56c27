//go:build linux

package main

import "testing"

func TestBuildFilterLength(t *testing.T) {
	prog := buildFilter(allowedSyscalls)
	// 1 load + 2 instructions per allowed syscall + 1 trailing kill.
	want := 1 + len(allowedSyscalls)*2 + 1
	if len(prog) != want {
		t.Fatalf("len(prog) = %d, want %d", len(prog), want)
	}
	if prog[len(prog)-1].Code != bpfRet|bpfK || prog[len(prog)-1].K != seccompRetKillProcess {
		t.Fatalf("last instruction is not the default kill: %+v", prog[len(prog)-1])
	}
}

func TestBuildFilterAllowsExecve(t *testing.T) {
	prog := buildFilter(allowedSyscalls)
	var found bool
	for _, ins := range prog {
		if ins.Code == (bpfJmp|bpfJeq|bpfK) && ins.K == 59 {
			found = true
		}
	}
	if !found {
		t.Fatal("execve (59) is not in the allow-list")
	}
}
