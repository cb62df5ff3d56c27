package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// execve replaces this process image with argv[0], inheriting the
// already-redirected stdio and the rlimits/seccomp filter just installed.
// It only returns when the exec itself fails.
func execve(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("execve: empty command")
	}
	path, err := resolvePath(argv[0])
	if err != nil {
		return err
	}
	return unix.Exec(path, argv, os.Environ())
}

// resolvePath mirrors the shell's own PATH lookup for a bare command
// name, since unix.Exec (unlike os/exec.Command) does not do this itself.
func resolvePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("resolve path: empty command name")
	}
	if name[0] == '/' || name[0] == '.' {
		return name, nil
	}
	for _, dir := range splitPath(os.Getenv("PATH")) {
		candidate := dir + "/" + name
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("resolve path: %q not found in PATH", name)
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == ':' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}
