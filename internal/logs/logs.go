// Package logs collects the captured output of a finished cosim run into a
// single report. Stderr content is significant in this domain: simulators
// route warnings there, and a warning is treated as a real failure even
// when every exit code is zero.
package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed artifact names inside a run's working directory.
const (
	SimStdout  = "sim_stdout.log"
	SimStderr  = "sim_stderr.log"
	TestStdout = "test_stdout.log"
	TestStderr = "test_stderr.log"
)

// Report is the merged, human-readable output of one run.
type Report struct {
	// Text is the concatenated log content with labeled section headers.
	Text string

	// StderrSeen is set when either stderr stream produced any content.
	StderrSeen bool
}

// Collect reads the four captured streams back from dir after both
// processes have exited and their sinks are closed. Stdout sections always
// appear; a stderr section is included only when non-empty. The files are
// created at launch time, so a missing file is an internal error, not a
// condition to tolerate.
func Collect(dir string) (*Report, error) {
	var b strings.Builder
	r := &Report{}

	if err := section(&b, dir, SimStdout, "Simulation stdout", false, r); err != nil {
		return nil, err
	}
	if err := section(&b, dir, SimStderr, "Simulation stderr", true, r); err != nil {
		return nil, err
	}
	if err := section(&b, dir, TestStdout, "Test stdout", false, r); err != nil {
		return nil, err
	}
	if err := section(&b, dir, TestStderr, "Test stderr", true, r); err != nil {
		return nil, err
	}

	r.Text = b.String()
	return r, nil
}

func section(b *strings.Builder, dir, file, label string, stderr bool, r *Report) error {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return fmt.Errorf("reading run log %s: %w", file, err)
	}

	if stderr {
		if len(data) == 0 {
			return nil
		}
		r.StderrSeen = true
	}

	fmt.Fprintf(b, "----- %s -----\n", label)
	b.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	return nil
}
