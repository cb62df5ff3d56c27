// Package session implements the Judge Session: the process that compiles
// one submission, runs it against each packed test case through the Case
// Runner, and streams Update records back over stdout as NDJSON.
package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is a named path rooted under the session's working directory. It
// mirrors original_source/judger/src/fs.rs's File: a thin handle with
// Get/Set helpers so callers never build paths by hand.
type File struct {
	dir  string
	name string
}

func (f File) Path() string { return filepath.Join(f.dir, f.name) }

func (f File) Get() (string, error) {
	b, err := os.ReadFile(f.Path())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (f File) Set(content string) error {
	return os.WriteFile(f.Path(), []byte(content), 0o644)
}

// FileList is an indexed family of files sharing a name prefix — in<0>,
// in<1>, ... — translating Fs::fs.rs's FileList.
type FileList struct {
	dir    string
	prefix string
}

func (fl FileList) At(i int) File {
	return File{dir: fl.dir, name: fmt.Sprintf("%s%d", fl.prefix, i)}
}

// Fs binds one Judge Session invocation to its scratch directory and
// names every well-known file/file-family the session reads or writes,
// the Go rendering of original_source/judger/src/fs.rs's Fs struct. Unlike
// the Rust original, Bind does not chdir the process — internal/session
// always addresses files by absolute path, so concurrent sessions in the
// same process never race on a shared working directory.
type Fs struct {
	Dir string

	Source         File
	Target         File
	CompileOutput  File
	Output         File
	CheckerOutput  File
	Input          FileList
	Answer         FileList
	CheckerScratch FileList
}

// Bind roots a new Fs at dir, creating it if necessary.
func Bind(dir string) (*Fs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bind fs: %w", err)
	}
	return &Fs{
		Dir:            dir,
		Source:         File{dir: dir, name: "source"},
		Target:         File{dir: dir, name: "target"},
		CompileOutput:  File{dir: dir, name: "compile_output"},
		Output:         File{dir: dir, name: "output"},
		CheckerOutput:  File{dir: dir, name: "checker_output"},
		Input:          FileList{dir: dir, prefix: "in"},
		Answer:         FileList{dir: dir, prefix: "ans"},
		CheckerScratch: FileList{dir: dir, prefix: "checker"},
	}, nil
}
