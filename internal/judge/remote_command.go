package judge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// RemoteResourceKind discriminates RemoteResource's tagged union: a
// command token is either a literal string argument or the content of a
// file that must be materialized on the far side before the command runs.
type RemoteResourceKind string

const (
	RemoteResourceString RemoteResourceKind = "string"
	RemoteResourceFile   RemoteResourceKind = "file"
)

// RemoteResource is one token of a RemoteCommand.
type RemoteResource struct {
	Kind    RemoteResourceKind `json:"kind"`
	Literal string             `json:"literal,omitempty"`
	Content []byte             `json:"content,omitempty"`
}

// RemoteCommand transports a checker (or any auxiliary) command across a
// process/filesystem boundary: some argv tokens are plain strings, others
// are file contents that need writing out before exec. This is a direct
// port of original_source/judger/src/common.rs's workaround::RemoteCommand.
type RemoteCommand struct {
	Command []RemoteResource `json:"command"`
}

// Pack builds a RemoteCommand from a plain argv. Each token is first
// tried as a path to an existing, readable file; if that succeeds the
// token becomes a RemoteResourceFile carrying the file's content,
// otherwise it is kept as a literal string. This mirrors
// workaround::pack exactly: "try to open it as a file, fall back to a
// literal" — so a checker command like
// ["python3", "./checkers/standard.py"] round-trips its script's actual
// bytes while "python3" and flag-like tokens stay literal.
func Pack(command []string) RemoteCommand {
	rc := RemoteCommand{Command: make([]RemoteResource, 0, len(command))}
	for _, tok := range command {
		if data, err := os.ReadFile(tok); err == nil {
			rc.Command = append(rc.Command, RemoteResource{
				Kind:    RemoteResourceFile,
				Content: data,
			})
			continue
		}
		rc.Command = append(rc.Command, RemoteResource{
			Kind:    RemoteResourceString,
			Literal: tok,
		})
	}
	return rc
}

// IDGenerator hands out filenames for unpacked file resources. Production
// code uses UUIDGenerator; tests can inject a deterministic sequence.
type IDGenerator interface {
	Next() string
}

// UUIDGenerator generates collision-proof filenames using google/uuid,
// replacing original_source's plain incrementing file-list index with
// something safe to reuse across concurrent Judge Sessions sharing a
// scratch directory.
type UUIDGenerator struct{ dir string }

func NewUUIDGenerator(dir string) *UUIDGenerator { return &UUIDGenerator{dir: dir} }

func (g *UUIDGenerator) Next() string {
	return filepath.Join(g.dir, uuid.NewString())
}

// Unpack resolves a RemoteCommand back into argv, materializing every
// file-backed token under a fresh name from gen and returning the
// resulting path as that token's argument. Unpacked files are written
// executable (0755) so a file-backed argv[0] can be run directly.
// String-backed tokens pass through unchanged. This mirrors
// workaround::unpack.
func Unpack(rc RemoteCommand, gen IDGenerator) ([]string, error) {
	argv := make([]string, 0, len(rc.Command))
	for _, res := range rc.Command {
		switch res.Kind {
		case RemoteResourceString:
			argv = append(argv, res.Literal)
		case RemoteResourceFile:
			path := gen.Next()
			if err := os.WriteFile(path, res.Content, 0o755); err != nil {
				return nil, fmt.Errorf("unpack remote command: %w", err)
			}
			argv = append(argv, path)
		default:
			return nil, fmt.Errorf("unpack remote command: unknown resource kind %q", res.Kind)
		}
	}
	return argv, nil
}
