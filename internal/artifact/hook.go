package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// RunHook runs a build hook in dir. Commands chained with "&&" or ";" run
// in order and the first failure stops the chain. Leading NAME=value words
// are set in the command's environment. Pipes and redirects are not
// supported; wrap them in sh -c.
func RunHook(ctx context.Context, dir, hook string) error {
	rest := []rune(hook)
	for len(rest) > 0 {
		p := shellwords.NewParser()
		envs, args, err := p.ParseWithEnvs(string(rest))
		if err != nil {
			return buildError(hook, "", fmt.Sprintf("parse hook: %v", err), err)
		}

		if len(args) > 0 {
			if err := runCommand(ctx, dir, hook, envs, args); err != nil {
				return err
			}
		}

		if p.Position < 0 {
			return nil
		}
		tail := rest[p.Position:]
		switch {
		case strings.HasPrefix(string(tail), "&&"):
			rest = tail[2:]
		case strings.HasPrefix(string(tail), ";"):
			rest = tail[1:]
		default:
			msg := fmt.Sprintf("unsupported shell operator at %q", string(tail))
			return buildError(hook, "", msg, fmt.Errorf("%s", msg))
		}
	}
	return nil
}

func runCommand(ctx context.Context, dir, hook string, envs, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	if len(envs) > 0 {
		cmd.Env = append(cmd.Environ(), envs...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrText := strings.TrimSpace(stderr.String())
		if stderrText == "" {
			stderrText = err.Error()
		}
		return buildError(hook, strings.TrimSpace(stdout.String()), stderrText, err)
	}
	return nil
}

func buildError(hook, stdout, stderr string, err error) *StagingError {
	return &StagingError{
		Code:   ErrCodeBuildFailed,
		Hook:   hook,
		Stdout: stdout,
		Stderr: stderr,
		Err:    err,
	}
}
