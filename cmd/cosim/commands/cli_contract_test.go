// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/cosim/internal/spec"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_NoArgsPrintsUsage(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "cosim [flags] <source>")
}

func TestRoot_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cosim version")
}

func TestRoot_FlagSurface(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, flag := range []string{
		"--interactive", "--sim", "--schema", "--tmpdir",
		"--no-aux-files", "--exec", "--test-args", "--server-only",
	} {
		assert.Contains(t, out, flag)
	}
}

func TestReport_NoCompletedRun(t *testing.T) {
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	out, err := execute(t, "report", "test.sv")
	require.NoError(t, err)
	assert.Contains(t, out, "No completed run found in test.sv.d")
}

func TestResolveMode(t *testing.T) {
	restore := func() {
		runExec = false
		runServerOnly = false
	}
	t.Cleanup(restore)

	restore()
	mode, err := resolveMode()
	require.NoError(t, err)
	assert.Equal(t, spec.InlineScript, mode)

	runExec = true
	mode, err = resolveMode()
	require.NoError(t, err)
	assert.Equal(t, spec.ExternalExecutable, mode)

	runExec = false
	runServerOnly = true
	mode, err = resolveMode()
	require.NoError(t, err)
	assert.Equal(t, spec.ServerOnly, mode)

	runExec = true
	_, err = resolveMode()
	require.Error(t, err)
}
