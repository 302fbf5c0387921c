package logs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRunLogs(t *testing.T, simOut, simErr, testOut, testErr string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		SimStdout:  simOut,
		SimStderr:  simErr,
		TestStdout: testOut,
		TestStderr: testErr,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestCollect_CleanRun(t *testing.T) {
	dir := writeRunLogs(t, "sim says hi\n", "", "1\n", "")

	r, err := Collect(dir)
	require.NoError(t, err)

	assert.False(t, r.StderrSeen)
	assert.Contains(t, r.Text, "----- Simulation stdout -----\nsim says hi\n")
	assert.Contains(t, r.Text, "----- Test stdout -----\n1\n")
	assert.NotContains(t, r.Text, "Simulation stderr")
	assert.NotContains(t, r.Text, "Test stderr")
}

func TestCollect_SimStderrFlagsFailure(t *testing.T) {
	dir := writeRunLogs(t, "", "WARNING: x is undriven\n", "", "")

	r, err := Collect(dir)
	require.NoError(t, err)

	assert.True(t, r.StderrSeen)
	assert.Contains(t, r.Text, "----- Simulation stderr -----\nWARNING: x is undriven\n")
}

func TestCollect_TestStderrFlagsFailure(t *testing.T) {
	dir := writeRunLogs(t, "", "", "", "Traceback (most recent call last):\n")

	r, err := Collect(dir)
	require.NoError(t, err)

	assert.True(t, r.StderrSeen)
	assert.Contains(t, r.Text, "----- Test stderr -----\n")
}

func TestCollect_EmptyStdoutSectionsStillAppear(t *testing.T) {
	dir := writeRunLogs(t, "", "", "", "")

	r, err := Collect(dir)
	require.NoError(t, err)

	assert.False(t, r.StderrSeen)
	assert.Contains(t, r.Text, "----- Simulation stdout -----\n")
	assert.Contains(t, r.Text, "----- Test stdout -----\n")
}

func TestCollect_TerminatesUnfinishedLines(t *testing.T) {
	dir := writeRunLogs(t, "cut off mid-line", "", "", "")

	r, err := Collect(dir)
	require.NoError(t, err)
	assert.Contains(t, r.Text, "cut off mid-line\n----- ")
}

func TestCollect_MissingFileIsAnError(t *testing.T) {
	dir := writeRunLogs(t, "", "", "", "")
	require.NoError(t, os.Remove(filepath.Join(dir, TestStderr)))

	_, err := Collect(dir)
	require.Error(t, err)
}
