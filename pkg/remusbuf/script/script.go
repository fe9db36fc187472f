// Package script runs external hotplug-style programs with an environment and a
// bounded execution time.
//
// Device handlers use it for the network buffering setup/teardown script and the
// DRBD probe script. A script reports its outcome through the exit status only;
// stdin, stdout and stderr are not wired to the caller except that stderr is kept
// for error messages.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout bounds every script invocation that does not set its own timeout.
const DefaultTimeout = 40 * time.Second

// maxStderr caps the amount of stderr kept in a Result.
const maxStderr = 4096

// waitDelay bounds how long Run waits for stderr after the script was killed.
const waitDelay = time.Second

// ErrTimeout indicates the script did not exit before its timeout.
var ErrTimeout = errors.New("script timed out")

// Cmd describes one script invocation.
type Cmd struct {
	// Path is the program to execute.
	Path string

	// Args are the positional arguments (without the program name).
	Args []string

	// Env is added on top of the current process environment.
	Env map[string]string

	// Timeout bounds execution. Zero means DefaultTimeout.
	Timeout time.Duration
}

// String returns "path arg1 arg2", used in logs and errors.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// environ returns the process environment plus Env, in a stable order.
func (c Cmd) environ() []string {
	env := os.Environ()
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Result is the outcome of a script that ran to completion.
type Result struct {
	// ExitCode is the process exit status. Zero means success.
	ExitCode int

	// Stderr holds the beginning of the script's standard error.
	Stderr []byte

	// Duration is the wall-clock run time.
	Duration time.Duration
}

// Success reports whether the script exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes scripts.
// Implementations must be safe for concurrent use.
type Runner interface {
	// Run executes cmd and waits for it to exit.
	// A script that exits with a nonzero status is not an error: the status is
	// reported in Result.ExitCode. Errors are reserved for scripts that could not
	// be started, were killed, or exceeded their timeout (ErrTimeout).
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// Exec is a Runner backed by os/exec.
type Exec struct{}

// Compile-time interface check.
var _ Runner = Exec{}

// Run implements Runner.
func (Exec) Run(ctx context.Context, c Cmd) (Result, error) {
	if c.Path == "" {
		return Result{}, errors.New("script path is empty")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, c.Path, c.Args...)
	cmd.Env = c.environ()
	cmd.WaitDelay = waitDelay
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start), Stderr: truncate(errBuf.Bytes())}

	if cctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w after %s", c, ErrTimeout, timeout)
	}
	if err == nil {
		return res, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.Exited() {
		res.ExitCode = ee.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("run %s: %w", c, err)
}

func truncate(b []byte) []byte {
	if len(b) > maxStderr {
		b = b[:maxStderr]
	}
	return bytes.TrimSpace(b)
}
