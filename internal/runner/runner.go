// Package runner drives a single cosim test from compile to verdict. The
// run is a strictly forward sequence: compile, launch the simulation,
// discover its self-reported RPC port, wait for the port to accept
// connections, run the test phase, tear the simulation down, aggregate the
// captured logs. Teardown is registered as soon as the simulation starts
// and executes on every exit path, so no orphaned simulation survives an
// interrupted run.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bartekus/cosim/internal/config"
	"github.com/bartekus/cosim/internal/logs"
	"github.com/bartekus/cosim/internal/probe"
	"github.com/bartekus/cosim/internal/spec"
	"github.com/bartekus/cosim/internal/supervise"
)

// PortFile is the config artifact the simulation writes once it has picked
// its RPC port. Deleted before each run to avoid stale reads.
const PortFile = "cosim.cfg"

// terminateGrace is how long the simulation gets to flush its outputs
// after the interrupt before it is forcibly killed.
const terminateGrace = time.Second

// ErrCompileFailed marks a non-zero exit from the build step. It
// short-circuits the run before any simulation process is launched.
var ErrCompileFailed = errors.New("simulation compile failed")

// Runner owns the per-test mutable state for one cosim invocation. One
// working directory belongs to one Runner at a time.
type Runner struct {
	cfg *config.Config
	spc *spec.Spec

	// Python is the interpreter used for the generated script and for .py
	// test programs.
	Python string

	// TestArgs are extra arguments appended to the test command line in
	// exec mode.
	TestArgs string

	// Interactive mirrors test output to the terminal while still
	// capturing it to the log files.
	Interactive bool

	// In is where the server-only prompt reads the operator's input from.
	In io.Reader

	// Out receives progress lines.
	Out io.Writer
}

// New creates a Runner for one test spec.
func New(cfg *config.Config, spc *spec.Spec) *Runner {
	return &Runner{
		cfg:    cfg,
		spc:    spc,
		Python: "python3",
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// Compile builds the simulation binary by shelling out to the driver. On a
// non-zero exit the driver's combined output is printed and
// ErrCompileFailed returned; the caller must not launch the simulation.
func (r *Runner) Compile(ctx context.Context) error {
	start := time.Now()

	args := r.driverArgs(true)
	fmt.Fprintf(r.Out, "[INFO] Compile command: %s\n", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.spc.WorkDir
	out, err := cmd.CombinedOutput()
	fmt.Fprintf(r.Out, "[INFO] Compile time: %s\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		fmt.Fprintln(r.Out, "====== Compilation failure:")
		fmt.Fprintln(r.Out, strings.TrimSpace(string(out)))
		exitCode := 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return fmt.Errorf("%w (exit %d)", ErrCompileFailed, exitCode)
	}
	return nil
}

// Run executes the test phase against a freshly launched simulation and
// returns the verdict. The returned Result is non-nil whenever the logs
// could be aggregated, even if the run itself failed; err then carries the
// fatal condition. The simulation is guaranteed terminated by the time Run
// returns.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	testExit, runErr := r.runPhases(ctx)
	fmt.Fprintf(r.Out, "[INFO] Run time: %s\n", time.Since(start).Round(time.Millisecond))

	// Aggregation happens after teardown on every path, so partial logs
	// from a failed run still reach the caller.
	report, err := logs.Collect(r.spc.WorkDir)
	if err != nil {
		if runErr != nil {
			return nil, runErr
		}
		return nil, err
	}

	res := &Result{
		TestExitCode: testExit,
		StderrSeen:   report.StderrSeen,
		Logs:         report.Text,
	}
	if testExit >= 0 {
		res.Logs += fmt.Sprintf("---- Test process exit code: %d\n", testExit)
	}

	testOK := testExit == 0 || (r.spc.Mode == spec.ServerOnly && runErr == nil)
	res.Passed = runErr == nil && testOK && !report.StderrSeen

	return res, runErr
}

// runPhases covers launch through test. The simulation teardown is
// deferred immediately after a successful launch, so it runs whether the
// phases below succeed, fail, or time out. testExit is -1 unless a test
// process actually ran.
func (r *Runner) runPhases(ctx context.Context) (testExit int, err error) {
	testExit = -1
	wd := r.spc.WorkDir

	// Never read a stale config from a previous run.
	if err := os.Remove(filepath.Join(wd, PortFile)); err != nil && !os.IsNotExist(err) {
		return testExit, fmt.Errorf("removing stale port file: %w", err)
	}

	snk, err := r.openSinks(wd)
	if err != nil {
		return testExit, err
	}
	defer snk.close()

	args := r.driverArgs(false)
	fmt.Fprintf(r.Out, "[INFO] Sim run command: %s\n", strings.Join(args, " "))
	sim, err := supervise.Launch(args[0], args[1:], supervise.Options{
		Dir:             wd,
		Env:             os.Environ(),
		Stdout:          snk.simOut,
		Stderr:          snk.simErr,
		NewProcessGroup: true,
	})
	if err != nil {
		return testExit, err
	}
	defer func() {
		if terr := sim.Terminate(terminateGrace); terr != nil && err == nil {
			err = terr
		}
	}()

	alive := func() bool { return !sim.Exited() }

	port, err := probe.DiscoverPort(wd, PortFile, alive)
	if err != nil {
		return testExit, err
	}
	if err := probe.WaitReady("localhost", port, alive); err != nil {
		return testExit, err
	}

	if r.spc.Mode == spec.ServerOnly {
		fmt.Fprintf(r.Out, "Running in server-only mode on port %d - press enter to stop the server...\n", port)
		_, _ = bufio.NewReader(r.In).ReadString('\n')
		return testExit, nil
	}

	testArgs, err := r.testCommand(port)
	if err != nil {
		return testExit, err
	}
	fmt.Fprintf(r.Out, "[INFO] Test run command: %s\n", strings.Join(testArgs, " "))

	test := exec.CommandContext(ctx, testArgs[0], testArgs[1:]...)
	test.Dir = wd
	test.Env = r.testEnv(wd)
	test.Stdout = snk.testStdout(r.Interactive)
	test.Stderr = snk.testStderr(r.Interactive)

	if err := test.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return testExit, fmt.Errorf("running test: %w", err)
		}
	}
	return test.ProcessState.ExitCode(), nil
}

// driverArgs builds the driver command line shared by the compile and run
// steps; compileOnly adds the flag that stops the driver after the build.
func (r *Runner) driverArgs(compileOnly bool) []string {
	args := []string{r.cfg.SimulatorDriverPath, "--no-objdir"}
	if compileOnly {
		args = append(args, "--no-run")
	}
	if r.cfg.SimulatorName != "" {
		args = append(args, "--sim", r.cfg.SimulatorName)
	}
	args = append(args, r.spc.Sources...)
	args = append(args, r.spc.ExtraArgs...)
	return args
}

// testCommand builds the test-phase command line for the active mode.
func (r *Runner) testCommand(port int) ([]string, error) {
	switch r.spc.Mode {
	case spec.InlineScript:
		path := filepath.Join(r.spc.WorkDir, scriptFile)
		if err := writeScript(path, r.spc, r.cfg, port); err != nil {
			return nil, err
		}
		return []string{r.Python, "-u", path}, nil

	case spec.ExternalExecutable:
		args := []string{"cosim", fmt.Sprintf("localhost:%d", port), r.cfg.SchemaPath}
		args = append(args, strings.Fields(r.TestArgs)...)
		if strings.HasSuffix(r.spc.Source, ".py") {
			return append([]string{r.Python, "-u", r.spc.Source}, args...), nil
		}
		return append([]string{r.spc.Source}, args...), nil
	}
	return nil, fmt.Errorf("no test command for mode %s", r.spc.Mode)
}

// testEnv prepares the test process environment: PWD must match the actual
// working directory (capnp RPC clients check it), and both the test
// source's directory and the cosim python helpers must be importable.
func (r *Runner) testEnv(wd string) []string {
	paths := []string{r.spc.SourceDir}
	if r.cfg.RuntimePyDir != "" {
		paths = append(paths, r.cfg.RuntimePyDir)
	}
	if pp := os.Getenv("PYTHONPATH"); pp != "" {
		paths = append([]string{pp}, paths...)
	}

	env := os.Environ()
	env = append(env, "PWD="+wd)
	env = append(env, "PYTHONPATH="+strings.Join(paths, string(os.PathListSeparator)))
	return env
}

// sinks holds the four capture files for one run. All four are created up
// front so the aggregation phase can rely on their existence.
type sinks struct {
	simOut, simErr   *os.File
	testOut, testErr *os.File
}

func (r *Runner) openSinks(dir string) (*sinks, error) {
	var s sinks
	for _, f := range []struct {
		name string
		dst  **os.File
	}{
		{logs.SimStdout, &s.simOut},
		{logs.SimStderr, &s.simErr},
		{logs.TestStdout, &s.testOut},
		{logs.TestStderr, &s.testErr},
	} {
		file, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			s.close()
			return nil, fmt.Errorf("creating log sink %s: %w", f.name, err)
		}
		*f.dst = file
	}
	return &s, nil
}

// testStdout returns the test's stdout sink; interactive runs mirror it to
// the terminal as well.
func (s *sinks) testStdout(interactive bool) io.Writer {
	if interactive {
		return io.MultiWriter(s.testOut, os.Stdout)
	}
	return s.testOut
}

func (s *sinks) testStderr(interactive bool) io.Writer {
	if interactive {
		return io.MultiWriter(s.testErr, os.Stderr)
	}
	return s.testErr
}

// close flushes and closes every sink. Runs after teardown, once both
// processes have exited.
func (s *sinks) close() {
	for _, f := range []*os.File{s.simOut, s.simErr, s.testOut, s.testErr} {
		if f != nil {
			_ = f.Close()
		}
	}
}
