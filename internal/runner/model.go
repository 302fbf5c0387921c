package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Result is the outcome of one cosim invocation, assembled only after the
// simulation has been torn down and the logs aggregated.
// Matches the <workdir>/result.json schema.
type Result struct {
	// Passed is the overall verdict: test phase succeeded and no stderr
	// content was observed in either captured stream pair.
	Passed bool `json:"passed"`

	// TestExitCode is the test process's exit code, or -1 when the test
	// phase never ran (fatal setup error, or server-only mode).
	TestExitCode int `json:"test_exit_code"`

	// StderrSeen reports whether the simulation or the test wrote anything
	// to stderr.
	StderrSeen bool `json:"stderr_seen"`

	// Logs is the aggregated report text. Kept out of the verdict file;
	// the individual log files stay on disk for post-mortem inspection.
	Logs string `json:"-"`
}

// ExitCode maps the verdict to a process exit code: 0 on pass, 1 on fail.
func (r *Result) ExitCode() int {
	if r.Passed {
		return 0
	}
	return 1
}

// verdictFile is written into the working directory after every run.
const verdictFile = "result.json"

// WriteVerdict saves the run verdict for post-mortem tooling.
func WriteVerdict(dir string, res *Result) (err error) {
	f, err := os.Create(filepath.Join(dir, verdictFile))
	if err != nil {
		return fmt.Errorf("creating verdict file: %w", err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// ReadVerdict loads a previously written verdict. Missing file means no
// completed run; callers get nil, not an error.
func ReadVerdict(dir string) (*Result, error) {
	f, err := os.Open(filepath.Join(dir, verdictFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening verdict file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var res Result
	if err := json.NewDecoder(f).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding verdict: %w", err)
	}
	return &res, nil
}
