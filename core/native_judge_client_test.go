package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestAbsoluteRunArgsRewritesRelativePaths(t *testing.T) {
	got := absoluteRunArgs([]string{"./main"}, "/scratch/abc")
	if got[0] != filepath.Join("/scratch/abc", "main") {
		t.Fatalf("got %v", got)
	}
}

func TestAbsoluteRunArgsLeavesAbsoluteCommandsAlone(t *testing.T) {
	got := absoluteRunArgs([]string{"/usr/bin/python3", "main.py"}, "/scratch/abc")
	if got[0] != "/usr/bin/python3" || got[1] != "main.py" {
		t.Fatalf("got %v", got)
	}
}

func TestNativeJudgeClientRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "compile-1")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	c := NewNativeJudgeClient("/usr/local/bin/sandbox", dir)
	if err := c.RemoveFiles(context.Background(), sub, ""); err != nil {
		t.Fatalf("RemoveFiles: %v", err)
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir to be removed")
	}
}
