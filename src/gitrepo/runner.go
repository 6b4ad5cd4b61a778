package gitrepo

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Author is the identity used for commits made by the synchronizer.
// Empty fields fall back to the git configuration of the host.
type Author struct {
	Name  string
	Email string
}

func (a Author) env() []string {
	var env []string
	if a.Name != "" {
		env = append(env, "GIT_AUTHOR_NAME="+a.Name, "GIT_COMMITTER_NAME="+a.Name)
	}
	if a.Email != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+a.Email, "GIT_COMMITTER_EMAIL="+a.Email)
	}
	return env
}

// Runner runs git commands in a directory.
type Runner struct {
	// Path to the git executable.
	gitPath string

	// Dir is the directory the commands are run in.
	Dir string

	// Env is appended to the process environment.
	Env []string
}

// NewRunner locates git on PATH.
func NewRunner(dir string) (*Runner, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, errors.Wrap(err, "no 'git' program on path")
	}
	return &Runner{gitPath: p, Dir: dir}, nil
}

// RunResult holds the output of a successful command.
type RunResult struct {
	Stdout string
	Stderr string
}

// Run runs a git command. Omit the 'git' part of the command.
func (g *Runner) Run(ctx context.Context, args ...string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), g.Env...)
	// Never block on a credential prompt.
	cmd.Env = append(cmd.Env, "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return RunResult{}, errors.WithStack(&ExecError{
			Args:   args,
			Err:    err,
			StdOut: stdout.String(),
			StdErr: stderr.String(),
		})
	}
	return RunResult{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// ExecError is a failed git invocation.
type ExecError struct {
	Args   []string
	Err    error
	StdErr string
	StdOut string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString("git ")
	b.WriteString(strings.Join(e.Args, " "))
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if s := strings.TrimSpace(e.StdErr); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error { return e.Err }
