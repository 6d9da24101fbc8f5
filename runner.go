// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package fileconv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// RunResult is the outcome of one external process invocation.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner launches external engine binaries. Tests substitute a fake.
type CommandRunner interface {
	// LookPath resolves a binary name to an executable path.
	LookPath(name string) (string, error)

	// Run executes name with args and waits at most timeout. A process that
	// exits non-zero is not an error: its exit code is reported in RunResult.
	// Failure to start and timeouts are errors; a timeout wraps ErrTimeout.
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (RunResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) (RunResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	res := RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
		}
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("start %s: %w", name, err)
	}
	return res, nil
}

// runTool runs an engine binary and turns a non-zero exit into an error
// carrying the last stderr line.
func runTool(ctx context.Context, r CommandRunner, name string, args []string, timeout time.Duration) error {
	res, err := r.Run(ctx, name, args, timeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		if line := lastLine(res.Stderr); line != "" {
			return fmt.Errorf("%s exited with status %d: %s", name, res.ExitCode, line)
		}
		return fmt.Errorf("%s exited with status %d", name, res.ExitCode)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
