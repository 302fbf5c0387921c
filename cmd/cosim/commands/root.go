// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Cosim - hardware co-simulation test runner.
It compiles a simulation, launches it, discovers the RPC port the simulation
selected at runtime, runs a companion test program against it, and reports
pass/fail from exit codes and captured stderr output.
*/

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd constructs the cosim root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("COSIM_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:   "cosim [flags] <source> [-- driver-args...]",
		Short: "Hardware co-simulation test runner",
		Long: `Cosim drives a hardware co-simulation test: it compiles the design,
launches the simulation, waits for its RPC endpoint to come up, runs the
test program against it, and tears the simulation down.

Everything after the source file is passed through to the simulation driver.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runCosim(cmd.Context(), args)
		},
	}

	cmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "mirror test output to the terminal")
	cmd.Flags().StringVar(&runSim, "sim", "", "RTL simulator to use (name in PATH or path to an executable)")
	cmd.Flags().StringVar(&runSchema, "schema", "", "RPC schema file to hand to the test")
	cmd.Flags().StringVar(&runTmpDir, "tmpdir", "", "temp dir to which files may have been generated")
	cmd.Flags().BoolVar(&runNoAuxFiles, "no-aux-files", false, "don't compile the cosim auxiliary RTL files")
	cmd.Flags().BoolVar(&runExec, "exec", false, "run the source as an executable test program instead of scanning it for inline script lines")
	cmd.Flags().StringVar(&runTestArgs, "test-args", "", "extra args to pass to the test")
	cmd.Flags().BoolVar(&runServerOnly, "server-only", false, "only run the cosim server, don't run any test")
	cmd.Flags().StringVar(&runConfigPath, "config", "cosim.yaml", "toolchain config file")

	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of cosim",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cosim version %s\n", version)
		},
	})

	return cmd
}
