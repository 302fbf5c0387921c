// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bartekus/cosim/cmd/cosim/internal/clierr"
	"github.com/bartekus/cosim/internal/config"
	"github.com/bartekus/cosim/internal/runner"
	"github.com/bartekus/cosim/internal/spec"
)

var (
	runInteractive bool
	runSim         string
	runSchema      string
	runTmpDir      string
	runNoAuxFiles  bool
	runExec        bool
	runTestArgs    string
	runServerOnly  bool
	runConfigPath  string
)

// runCosim executes one cosim test end to end: resolve config, build the
// test spec, compile, run, report. args[0] is the source file; the rest is
// passed through to the simulation driver.
func runCosim(ctx context.Context, args []string) error {
	mode, err := resolveMode()
	if err != nil {
		return err
	}

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	if runSim != "" {
		cfg.SimulatorName = runSim
	}
	if runSchema != "" {
		cfg.SchemaPath = runSchema
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	spc, err := spec.Parse(args[0], cfg, spec.Options{
		Mode:      mode,
		TmpDir:    runTmpDir,
		ExtraArgs: args[1:],
		SkipAux:   runNoAuxFiles,
	})
	if err != nil {
		return err
	}

	// One test directory per invocation; logs and artifacts land here.
	if err := os.MkdirAll(spc.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}

	r := runner.New(cfg, spc)
	r.TestArgs = runTestArgs
	r.Interactive = runInteractive

	if err := r.Compile(ctx); err != nil {
		return clierr.Wrap(1, "cosim", err)
	}

	res, runErr := r.Run(ctx)
	if res != nil {
		if err := runner.WriteVerdict(spc.WorkDir, res); err != nil {
			return err
		}
		if !res.Passed {
			fmt.Print(res.Logs)
		}
	}
	if runErr != nil {
		return clierr.Wrap(1, "cosim", runErr)
	}
	if !res.Passed {
		return clierr.New(1, "cosim test failed")
	}
	return nil
}

// resolveMode maps the mode flags onto the single active run mode. The
// flags are mutually exclusive.
func resolveMode() (spec.Mode, error) {
	if runExec && runServerOnly {
		return 0, errors.New("--exec and --server-only are mutually exclusive")
	}
	switch {
	case runServerOnly:
		return spec.ServerOnly, nil
	case runExec:
		return spec.ExternalExecutable, nil
	}
	return spec.InlineScript, nil
}
