package judge

import "encoding/json"

// CaseResultInfo is the terminal detail of a finished case.
type CaseResultInfo struct {
	Result  Verdict `json:"result"`
	Time    uint64  `json:"time"`   // microseconds
	Memory  uint64  `json:"memory"` // bytes
	Info    string  `json:"info"`
}

// Skipped builds the CaseResultInfo for a case whose dependency did not
// resolve to Accepted — zero time/memory, no checker ever ran.
func Skipped() CaseResultInfo {
	return CaseResultInfo{Result: VerdictSkipped}
}

// CaseResultKind discriminates the CaseResult tagged union.
type CaseResultKind string

const (
	CaseResultWaiting  CaseResultKind = "waiting"
	CaseResultRunning  CaseResultKind = "running"
	CaseResultSkipped  CaseResultKind = "skipped"
	CaseResultFinished CaseResultKind = "finished"
)

// CaseResult is a tagged union over {Waiting, Running, Skipped,
// Finished(CaseResultInfo)}, the Go rendering of original_source's
// CaseResult enum. Info is only populated when Kind == CaseResultFinished.
type CaseResult struct {
	Kind CaseResultKind  `json:"kind"`
	Info *CaseResultInfo `json:"info,omitempty"`
}

func WaitingResult() CaseResult  { return CaseResult{Kind: CaseResultWaiting} }
func RunningResult() CaseResult  { return CaseResult{Kind: CaseResultRunning} }
func SkippedResult() CaseResult  { return CaseResult{Kind: CaseResultSkipped, Info: infoPtr(Skipped())} }
func FinishedResult(info CaseResultInfo) CaseResult {
	return CaseResult{Kind: CaseResultFinished, Info: &info}
}

func infoPtr(i CaseResultInfo) *CaseResultInfo { return &i }

// UpdateKind discriminates the Update tagged union streamed over NDJSON
// from the Judge Session to the Dispatcher.
type UpdateKind string

const (
	UpdateCase    UpdateKind = "case"
	UpdateCompile UpdateKind = "compile"
	UpdateFinish  UpdateKind = "finish"
	UpdateError   UpdateKind = "error"
)

// Update is one line of the Judge Session's NDJSON output stream. Exactly
// one of the payload fields is populated, selected by Kind — mirroring
// original_source's Update enum (Case(u64,CaseResult) | Compile(CaseResult)
// | Finish(Resultat,f64) | Error(String)).
type Update struct {
	Kind UpdateKind `json:"kind"`

	CaseUID    *uint64     `json:"case_uid,omitempty"`
	CaseResult *CaseResult `json:"case_result,omitempty"`

	CompileResult *CaseResult `json:"compile_result,omitempty"`

	FinishVerdict *Verdict `json:"finish_verdict,omitempty"`
	FinishScore   *float64 `json:"finish_score,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
}

func NewCaseUpdate(uid uint64, r CaseResult) Update {
	return Update{Kind: UpdateCase, CaseUID: &uid, CaseResult: &r}
}

func NewCompileUpdate(r CaseResult) Update {
	return Update{Kind: UpdateCompile, CompileResult: &r}
}

func NewFinishUpdate(v Verdict, score float64) Update {
	return Update{Kind: UpdateFinish, FinishVerdict: &v, FinishScore: &score}
}

func NewErrorUpdate(msg string) Update {
	return Update{Kind: UpdateError, ErrorMessage: msg}
}

// Marshal renders a single NDJSON line, newline included, ready to be
// written directly to the session's stdout writer.
func (u Update) Marshal() ([]byte, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
