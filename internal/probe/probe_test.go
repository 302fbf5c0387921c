package probe

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shrinkBudgets(t *testing.T) {
	t.Helper()
	oldFI, oldFA := fileInterval, fileAttempts
	oldDI, oldDA := dialInterval, dialAttempts
	fileInterval, fileAttempts = time.Millisecond, 20
	dialInterval, dialAttempts = time.Millisecond, 20
	t.Cleanup(func() {
		fileInterval, fileAttempts = oldFI, oldFA
		dialInterval, dialAttempts = oldDI, oldDA
	})
}

func alive() bool { return true }
func dead() bool  { return false }

func TestWaitFor_Succeeds(t *testing.T) {
	calls := 0
	err := WaitFor(func() (bool, error) {
		calls++
		return calls == 3, nil
	}, time.Millisecond, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitFor_BudgetExhausted(t *testing.T) {
	err := WaitFor(func() (bool, error) { return false, nil }, time.Millisecond, 5)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWaitFor_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := WaitFor(func() (bool, error) { return false, boom }, time.Millisecond, 5)
	require.ErrorIs(t, err, boom)
}

func TestDiscoverPort_IgnoresNonMatchingLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cosim.cfg"), []byte("garbage\nport: 4711\n"), 0o644))

	port, err := DiscoverPort(dir, "cosim.cfg", alive)
	require.NoError(t, err)
	assert.Equal(t, 4711, port)
}

func TestDiscoverPort_LastMatchWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cosim.cfg"), []byte("port: 1111\nport: 2222\n"), 0o644))

	port, err := DiscoverPort(dir, "cosim.cfg", alive)
	require.NoError(t, err)
	assert.Equal(t, 2222, port)
}

func TestDiscoverPort_WaitsForIncrementalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cosim.cfg")

	// The simulation may create the file before it has a port to report.
	require.NoError(t, os.WriteFile(path, []byte("starting up\n"), 0o644))
	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		_, _ = f.WriteString("port: 9000\n")
		_ = f.Close()
	}()

	port, err := DiscoverPort(dir, "cosim.cfg", alive)
	require.NoError(t, err)
	assert.Equal(t, 9000, port)
}

func TestDiscoverPort_FileNeverAppears(t *testing.T) {
	shrinkBudgets(t)

	_, err := DiscoverPort(t.TempDir(), "cosim.cfg", alive)
	require.ErrorIs(t, err, ErrStartupTimeout)
}

func TestDiscoverPort_ProcessExitedEarly(t *testing.T) {
	// A dead simulation is reported immediately, not after the full
	// retry budget.
	start := time.Now()
	_, err := DiscoverPort(t.TempDir(), "cosim.cfg", dead)
	require.ErrorIs(t, err, ErrProcessExited)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDiscoverPort_PortAlreadyWrittenWhenProcessDies(t *testing.T) {
	// A simulation that wrote its config and then exited still reported a
	// usable port; the file on disk wins over process death.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cosim.cfg"), []byte("port: 1234\n"), 0o644))

	port, err := DiscoverPort(dir, "cosim.cfg", dead)
	require.NoError(t, err)
	assert.Equal(t, 1234, port)
}

func TestDiscoverPort_DiesWhileWritingIncompleteFile(t *testing.T) {
	// The file exists but the port line never arrives because the process
	// died mid-write: that is still an early exit, not a timeout.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cosim.cfg"), []byte("starting up\n"), 0o644))

	_, err := DiscoverPort(dir, "cosim.cfg", dead)
	require.ErrorIs(t, err, ErrProcessExited)
}

func TestWaitReady_LiveListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, WaitReady("127.0.0.1", port, alive))
}

func TestWaitReady_ClosedPort(t *testing.T) {
	shrinkBudgets(t)

	// Grab a port and close it again so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = WaitReady("127.0.0.1", port, alive)
	require.ErrorIs(t, err, ErrReadinessTimeout)
}

func TestWaitReady_ProcessExitedEarly(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = WaitReady("127.0.0.1", port, dead)
	require.ErrorIs(t, err, ErrProcessExited)
}
