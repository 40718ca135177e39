package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and captures its output
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes name with args, feeding stdin when non-empty
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.String(), stderr.String(), nil
}
