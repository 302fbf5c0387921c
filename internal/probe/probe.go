// Package probe synchronizes the runner with a freshly launched simulation.
// The simulation self-reports its RPC port through a config file it writes
// into the working directory, so startup is a two step handshake: poll the
// filesystem until the port line appears, then poll TCP connectivity until
// the endpoint accepts connections.
package probe

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrTimeout is returned by WaitFor when the attempt budget runs out.
	ErrTimeout = errors.New("condition not met within attempt budget")

	// ErrStartupTimeout means the simulation never wrote its config file.
	ErrStartupTimeout = errors.New("simulation never wrote its config file")

	// ErrReadinessTimeout means the reported port never accepted a connection.
	ErrReadinessTimeout = errors.New("simulation port never opened")

	// ErrProcessExited means the simulation died before reaching the
	// milestone being waited on.
	ErrProcessExited = errors.New("simulation exited early")
)

var portLine = regexp.MustCompile(`port: (\d+)`)

// Polling budgets. The intervals are fixed (no backoff); the attempt
// ceilings convert indefinite blocking into a reported timeout. Variables
// so tests can shrink them.
var (
	fileInterval = 100 * time.Millisecond
	fileAttempts = 200
	dialInterval = 50 * time.Millisecond
	dialAttempts = 200
)

// WaitFor polls cond at a fixed interval until it reports done, fails, or
// maxAttempts is exhausted. Both startup probes are bounded through this
// single loop so neither can block a run indefinitely.
func WaitFor(cond func() (bool, error), interval time.Duration, maxAttempts int) error {
	for i := 0; i < maxAttempts; i++ {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		time.Sleep(interval)
	}
	return ErrTimeout
}

// DiscoverPort waits for the simulation to write file into dir and extracts
// the RPC port from it. The file may be written incrementally, so it is
// re-read until a valid port line shows up; when several lines match, the
// last one wins. alive is consulted every attempt so a dead simulation is
// reported as ErrProcessExited instead of waiting out the budget.
func DiscoverPort(dir, file string, alive func() bool) (int, error) {
	path := filepath.Join(dir, file)

	err := WaitFor(func() (bool, error) {
		// File existence wins over process death: a simulation that wrote
		// its config and then exited still reported a usable port.
		if _, err := os.Stat(path); err == nil {
			return true, nil
		}
		if !alive() {
			return false, ErrProcessExited
		}
		return false, nil
	}, fileInterval, fileAttempts)
	if errors.Is(err, ErrTimeout) {
		return 0, fmt.Errorf("%w: %s", ErrStartupTimeout, path)
	}
	if err != nil {
		return 0, err
	}

	port := -1
	err = WaitFor(func() (bool, error) {
		p, ok, err := readPort(path)
		if err != nil {
			return false, err
		}
		if ok {
			port = p
			return true, nil
		}
		if !alive() {
			return false, ErrProcessExited
		}
		return false, nil
	}, fileInterval, fileAttempts)
	if errors.Is(err, ErrTimeout) {
		return 0, fmt.Errorf("%w: no port line in %s", ErrStartupTimeout, path)
	}
	if err != nil {
		return 0, err
	}
	return port, nil
}

func readPort(path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", path, err)
	}
	matches := portLine.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return 0, false, nil
	}
	port, err := strconv.Atoi(string(matches[len(matches)-1][1]))
	if err != nil {
		return 0, false, nil
	}
	return port, true, nil
}

// WaitReady polls TCP connectivity to host:port until the endpoint accepts
// a connection. Liveness of the endpoint is distinct from liveness of the
// process: alive is checked each attempt so a crashed simulation surfaces
// as ErrProcessExited rather than a drawn-out ReadinessTimeout.
func WaitReady(host string, port int, alive func() bool) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	err := WaitFor(func() (bool, error) {
		if !alive() {
			return false, ErrProcessExited
		}
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	}, dialInterval, dialAttempts)
	if errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %s", ErrReadinessTimeout, addr)
	}
	return err
}
