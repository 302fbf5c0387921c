// Package spec builds the immutable description of a single cosim test from
// its source file: the compiled source list, passthrough arguments, and the
// directive lines embedded in recognized comments.
package spec

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bartekus/cosim/internal/config"
)

// Mode determines how the test phase of a run is driven. Exactly one mode
// is active per run.
type Mode int

const (
	// InlineScript collects directive lines from the source file into a
	// generated script and executes it against the simulation.
	InlineScript Mode = iota

	// ExternalExecutable runs the source itself as a test program, passing
	// connection parameters positionally.
	ExternalExecutable

	// ServerOnly starts the simulation and waits for the operator instead
	// of running a test phase.
	ServerOnly
)

func (m Mode) String() string {
	switch m {
	case InlineScript:
		return "inline"
	case ExternalExecutable:
		return "exec"
	case ServerOnly:
		return "server-only"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Spec identifies one cosim test. Immutable once constructed.
type Spec struct {
	// Source is the test's source file as given on the command line.
	Source string

	// SourceDir is the directory containing Source.
	SourceDir string

	// WorkDir is the per-test directory logs and artifacts land in.
	WorkDir string

	// TmpDir is the directory generated collateral may have been written to.
	TmpDir string

	// Sources is the ordered list of files handed to the driver: auxiliary
	// support RTL first, the test source last.
	Sources []string

	// ExtraArgs are passed through verbatim to the driver.
	ExtraArgs []string

	// Directives are the script lines extracted from the source file's
	// recognized comments, in file order.
	Directives []string

	// Mode selects how the test phase runs.
	Mode Mode
}

// Options adjusts how a Spec is assembled from its source file.
type Options struct {
	Mode      Mode
	TmpDir    string
	ExtraArgs []string
	SkipAux   bool
}

// directive matches an embedded script line: a `//` or `#` comment whose
// body starts with the PY: marker.
var directive = regexp.MustCompile(`^(//|#)\s*PY:(.*)$`)

// Parse assembles the Spec for a source file. Directives are only scanned
// in InlineScript mode; the other modes never execute them.
func Parse(source string, cfg *config.Config, opts Options) (*Spec, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	workDir, err := filepath.Abs(filepath.Base(abs) + ".d")
	if err != nil {
		return nil, fmt.Errorf("resolving work dir: %w", err)
	}

	s := &Spec{
		Source:    abs,
		SourceDir: filepath.Dir(abs),
		WorkDir:   workDir,
		TmpDir:    opts.TmpDir,
		ExtraArgs: opts.ExtraArgs,
		Mode:      opts.Mode,
	}

	if s.Mode == InlineScript {
		s.Directives, err = ScanDirectives(abs)
		if err != nil {
			return nil, err
		}
	}

	if !opts.SkipAux {
		s.Sources = append(s.Sources, cfg.AuxiliaryFiles...)
	}
	s.Sources = append(s.Sources, abs)

	return s, nil
}

// ScanDirectives extracts the embedded script lines from a source file,
// preserving their order. Lines that are not directive comments are
// ignored; a file with no directives yields an empty list, not an error.
func ScanDirectives(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if m := directive.FindStringSubmatch(sc.Text()); m != nil {
			lines = append(lines, strings.TrimSpace(m[2]))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning source %s: %w", path, err)
	}
	return lines, nil
}
