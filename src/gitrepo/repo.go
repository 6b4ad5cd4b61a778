// Package gitrepo manages the local working copy the download flow commits into.
//
// The working copy is always a fresh shallow clone that carries the tips of every
// remote branch, so that an existing environment branch can be checked out and a
// missing one can be created as an orphan without fetching history.
package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InitialCommitMessage is the message of the empty root commit of a new branch.
const InitialCommitMessage = "[bot] Initial Commit"

// OpenOptions describes the working copy to prepare.
type OpenOptions struct {
	RemoteURL string
	// Dir is the working copy. Anything already there is deleted.
	Dir    string
	Branch string
	Author Author
	Logger *zap.Logger
}

// Repo is a prepared working copy with Branch checked out.
type Repo struct {
	git      *Runner
	dir      string
	branch   string
	orphaned bool
	log      *zap.Logger
}

// CommitResult describes what StageAndCommit did.
type CommitResult struct {
	// Files are the paths that differ from HEAD after staging.
	Files []string
	// Committed is false when nothing changed or the commit was skipped.
	Committed bool
	Pushed    bool
	// PushSummary is the status git reported for the pushed ref.
	PushSummary string
}

// Changed reports whether staging produced a difference with HEAD.
func (c CommitResult) Changed() bool { return len(c.Files) > 0 }

// Open deletes opts.Dir, clones opts.RemoteURL into it and checks out opts.Branch,
// creating it as an orphan branch with an empty initial commit when the remote
// does not have it.
func Open(ctx context.Context, opts OpenOptions) (*Repo, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cloneErr := func(err error) error {
		return &CloneError{Remote: opts.RemoteURL, Dir: opts.Dir, Err: err}
	}
	if opts.RemoteURL == "" {
		return nil, cloneErr(errors.New("remote repository URL must not be empty"))
	}
	if opts.Branch == "" {
		return nil, &BranchError{Err: errors.New("branch must not be empty")}
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, cloneErr(errors.New("working copy directory must not be empty"))
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, cloneErr(err)
	}

	if _, err := os.Stat(dir); err == nil {
		log.Warn("Cleaning working copy", zap.String("path", dir))
		if err := os.RemoveAll(dir); err != nil {
			return nil, cloneErr(errors.Wrap(err, "remove previous working copy"))
		}
	} else if !os.IsNotExist(err) {
		return nil, cloneErr(err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, cloneErr(err)
	}

	git, err := NewRunner(filepath.Dir(dir))
	if err != nil {
		return nil, cloneErr(err)
	}
	git.Env = opts.Author.env()
	// A shallow clone only fetches the tip of a single branch unless told otherwise,
	// and the environment branch may not be the default one.
	if _, err := git.Run(ctx, "clone", "--depth", "1", "--no-single-branch", opts.RemoteURL, dir); err != nil {
		return nil, cloneErr(err)
	}
	git.Dir = dir
	log.Info("Cloned repository", zap.String("remote", opts.RemoteURL), zap.String("path", dir))

	r := &Repo{git: git, dir: dir, branch: opts.Branch, log: log}
	if err := r.checkout(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) checkout(ctx context.Context) error {
	// Resolve the remote ref explicitly: a bare `checkout <name>` restores a path
	// of that name when no such branch exists.
	remoteRef := "refs/remotes/origin/" + r.branch
	if _, err := r.git.Run(ctx, "rev-parse", "--verify", "--quiet", remoteRef); err == nil {
		if _, err := r.git.Run(ctx, "checkout", "--quiet", "-B", r.branch, "--track", "origin/"+r.branch); err != nil {
			return &BranchError{Branch: r.branch, Err: err}
		}
		r.log.Info("Checked out branch", zap.String("branch", r.branch))
		return nil
	}
	r.log.Info("Branch not found on remote", zap.String("branch", r.branch))

	steps := [][]string{
		{"checkout", "--orphan", r.branch},
		// The orphan inherits the index and files of the default branch.
		{"rm", "-rf", "--quiet", "--ignore-unmatch", "."},
		{"commit", "--allow-empty", "-m", InitialCommitMessage},
	}
	for _, args := range steps {
		if _, err := r.git.Run(ctx, args...); err != nil {
			return &BranchError{Branch: r.branch, Err: err}
		}
	}
	r.orphaned = true
	r.log.Info("Created clean orphan branch", zap.String("branch", r.branch))
	return nil
}

// Dir returns the absolute path of the working copy.
func (r *Repo) Dir() string { return r.dir }

// Branch returns the checked out branch.
func (r *Repo) Branch() string { return r.branch }

// Orphaned reports whether Open had to create the branch.
func (r *Repo) Orphaned() bool { return r.orphaned }

// Head returns the commit id of HEAD.
func (r *Repo) Head(ctx context.Context) (string, error) {
	res, err := r.git.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// StageAndCommit stages every change under paths (relative to the working copy,
// which must exist) and, when the index differs from HEAD, commits with message
// and pushes the branch, setting its upstream. With skipCommit the changes are
// staged and reported but neither committed nor pushed.
//
// A push the remote refuses is returned as *PushRejectedError together with the
// result of the commit that was made.
func (r *Repo) StageAndCommit(ctx context.Context, paths []string, message string, skipCommit bool) (CommitResult, error) {
	var res CommitResult
	args := append([]string{"add", "--all", "--"}, paths...)
	if _, err := r.git.Run(ctx, args...); err != nil {
		return res, errors.Wrap(err, "stage changes")
	}

	diff, err := r.git.Run(ctx, "diff", "--cached", "--name-only", "HEAD")
	if err != nil {
		return res, errors.Wrap(err, "compare index with HEAD")
	}
	for _, line := range strings.Split(diff.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			res.Files = append(res.Files, line)
		}
	}
	if !res.Changed() {
		r.log.Info("No changes detected", zap.String("branch", r.branch))
		return res, nil
	}
	if skipCommit {
		r.log.Info("Changes staged, skipping commit", zap.String("branch", r.branch), zap.Int("files", len(res.Files)))
		return res, nil
	}

	if _, err := r.git.Run(ctx, "commit", "--quiet", "-m", message); err != nil {
		return res, errors.Wrap(err, "commit changes")
	}
	res.Committed = true

	summary, err := r.push(ctx)
	res.PushSummary = summary
	if err != nil {
		return res, err
	}
	res.Pushed = true
	r.log.Info("Pushed changes", zap.String("branch", r.branch), zap.String("summary", summary), zap.Int("files", len(res.Files)))
	return res, nil
}

func (r *Repo) push(ctx context.Context) (string, error) {
	out, err := r.git.Run(ctx, "push", "--porcelain", "--set-upstream", "origin", r.branch)
	text := out.Stdout + out.Stderr
	var ee *ExecError
	if err != nil && errors.As(err, &ee) {
		text = ee.StdOut + ee.StdErr
	}
	summary, rejected := ParsePushOutput(text)
	if rejected {
		return summary, &PushRejectedError{Branch: r.branch, Summary: summary}
	}
	if err != nil {
		return summary, &PushError{Branch: r.branch, Err: err}
	}
	return summary, nil
}

// ParsePushOutput extracts the ref status from `git push --porcelain` output and
// reports whether the remote rejected the update.
func ParsePushOutput(out string) (summary string, rejected bool) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 3)
		if len(fields) != 3 || len(fields[0]) != 1 {
			continue
		}
		if summary == "" || fields[0] == "!" {
			summary = strings.TrimSpace(fields[2])
		}
		if fields[0] == "!" {
			rejected = true
		}
	}
	if strings.Contains(out, "[rejected]") {
		rejected = true
		if summary == "" {
			summary = "[rejected]"
		}
	}
	return summary, rejected
}
