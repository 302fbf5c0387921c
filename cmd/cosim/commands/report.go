// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bartekus/cosim/internal/runner"
)

// newReportCmd shows the verdict of the last completed run for a source
// file, read back from its working directory.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <source>",
		Short: "Show the verdict of the last run for a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir := filepath.Base(args[0]) + ".d"
			res, err := runner.ReadVerdict(workDir)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No completed run found in %s\n", workDir)
				return nil
			}

			status := "PASS"
			if !res.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", status)
			fmt.Fprintf(cmd.OutOrStdout(), "Test exit code: %d\n", res.TestExitCode)
			if res.StderrSeen {
				fmt.Fprintln(cmd.OutOrStdout(), "Stderr output was captured during the run")
			}
			return nil
		},
	}
}
