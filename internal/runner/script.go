package runner

import (
	"fmt"
	"os"
	"strings"

	"github.com/bartekus/cosim/internal/config"
	"github.com/bartekus/cosim/internal/spec"
)

// scriptFile is the generated test script, written into the working
// directory in inline mode and discarded after the run.
const scriptFile = "script.py"

// writeScript generates the inline test script: a preamble of connection
// variables for the test code, followed by the directive lines from the
// source file, verbatim and in order.
func writeScript(path string, s *spec.Spec, cfg *config.Config, port int) error {
	var b strings.Builder

	// Named variables nearly every test script needs. rpcschemapath points
	// at the RPC schema used to talk to the simulation.
	vars := []struct{ name, value string }{
		{"srcdir", s.SourceDir},
		{"srcfile", s.Source},
		{"rpcschemapath", cfg.SchemaPath},
	}
	for _, v := range vars {
		fmt.Fprintf(&b, "%s = %q\n", v.name, v.value)
	}
	b.WriteString("\n\n")

	// Make modules next to the test source importable, plus the cosim
	// python helpers shipped with the toolchain.
	b.WriteString("import os\n")
	b.WriteString("import sys\n")
	fmt.Fprintf(&b, "sys.path.append(%q)\n", s.SourceDir)
	if cfg.RuntimePyDir != "" {
		fmt.Fprintf(&b, "sys.path.append(%q)\n", cfg.RuntimePyDir)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "tmpdir = %q\n", s.TmpDir)
	fmt.Fprintf(&b, "simhostport = %q\n", fmt.Sprintf("localhost:%d", port))

	for _, line := range s.Directives {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing test script: %w", err)
	}
	return nil
}
