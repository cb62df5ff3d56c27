package judge

import (
	"os"
	"path/filepath"
	"testing"
)

type seqGen struct {
	dir string
	n   int
}

func (g *seqGen) Next() string {
	g.n++
	return filepath.Join(g.dir, "gen", string(rune('a'+g.n)))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "checker.py")
	if err := os.WriteFile(scriptPath, []byte("print('Accepted')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc := Pack([]string{"python3", scriptPath, "%OUTPUT%"})
	if rc.Command[0].Kind != RemoteResourceString || rc.Command[0].Literal != "python3" {
		t.Fatalf("expected python3 to remain literal, got %+v", rc.Command[0])
	}
	if rc.Command[1].Kind != RemoteResourceFile {
		t.Fatalf("expected checker script to be packed as file, got %+v", rc.Command[1])
	}
	if rc.Command[2].Kind != RemoteResourceString || rc.Command[2].Literal != "%OUTPUT%" {
		t.Fatalf("expected placeholder to remain literal, got %+v", rc.Command[2])
	}

	genDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(genDir, "gen"), 0o755); err != nil {
		t.Fatal(err)
	}
	argv, err := Unpack(rc, &seqGen{dir: genDir})
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(argv) != 3 {
		t.Fatalf("argv len = %d, want 3", len(argv))
	}
	if argv[0] != "python3" || argv[2] != "%OUTPUT%" {
		t.Fatalf("literal tokens mutated: %+v", argv)
	}
	content, err := os.ReadFile(argv[1])
	if err != nil {
		t.Fatalf("unpacked file not written: %v", err)
	}
	if string(content) != "print('Accepted')\n" {
		t.Fatalf("unpacked content mismatch: %q", content)
	}
}

func TestPackMissingFileStaysLiteral(t *testing.T) {
	rc := Pack([]string{"/no/such/path/checker.py"})
	if rc.Command[0].Kind != RemoteResourceString {
		t.Fatalf("expected nonexistent path to stay literal, got %+v", rc.Command[0])
	}
}
