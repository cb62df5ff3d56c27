// Package judge holds the wire and domain types shared by the Sandbox
// Launcher, the Case Runner, the Judge Session and the Dispatcher. It has
// no dependency on core/ so it can be imported by the standalone binaries
// under cmd/ without pulling in gin, pgx or redis.
package judge

// Language describes how to compile and run one submission language.
type Language struct {
	Name     string   `json:"name"`
	FileName string   `json:"file_name"`
	Command  []string `json:"command"`
}

// Code is the submitted source paired with its language.
type Code struct {
	Language Language `json:"language"`
	Source   string   `json:"source"`
}

// Case is a single test case plus its packing-derived dependency.
type Case struct {
	UID         uint64   `json:"uid"`
	Score       float64  `json:"score"`
	TimeLimit   uint64   `json:"time_limit"`   // microseconds
	MemoryLimit uint64   `json:"memory_limit"` // bytes
	Dependency  []uint64 `json:"dependency"`
	PackScore   float64  `json:"pack_score"`
}

// ProblemType mirrors original_source's RawProblemType; it only
// determines which default checker command a Problem resolves to.
type ProblemType string

const (
	ProblemTypeStandard ProblemType = "standard"
	ProblemTypeStrict    ProblemType = "strict"
	ProblemTypeSPJ       ProblemType = "spj"
)

// Problem is the resolved, load-time view of a problem: cases already
// carry their packing-derived dependency and pack_score (see
// ResolvePacking), and Checker is a ready-to-run RemoteCommand.
type Problem struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Checker RemoteCommand `json:"checker"`
	Cases   []Case        `json:"cases"`
	Sandbox bool          `json:"sandbox"`
}

// Request is the Judge Session's stdin payload.
type Request struct {
	Code    Code          `json:"code"`
	Sandbox bool          `json:"sandbox"`
	Cases   []Case        `json:"cases"`
	Checker RemoteCommand `json:"checker"`
}
