package gitrepo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testAuthor = Author{Name: "sync bot", Email: "bot@example.com"}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
	// Keep the host configuration (signing, hooks, default branch) out of the tests.
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}

// gitIn runs git in dir with a fixed identity and returns trimmed stdout.
func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "commit.gpgsign=false"}, args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), testAuthor.env()...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, ee.Stderr)
		}
		t.Fatalf("git %s: %v", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out))
}

// newRemote creates a bare repository whose default branch main holds README.md,
// plus one branch per name, forked from main, holding <name>.txt.
func newRemote(t *testing.T, branches ...string) string {
	t.Helper()
	requireGit(t)
	root := t.TempDir()
	remote := filepath.Join(root, "remote.git")
	gitIn(t, root, "init", "--quiet", "--bare", remote)
	gitIn(t, remote, "symbolic-ref", "HEAD", "refs/heads/main")

	seed := filepath.Join(root, "seed")
	gitIn(t, root, "init", "--quiet", seed)
	require.NoError(t, os.WriteFile(filepath.Join(seed, "README.md"), []byte("artifacts\n"), 0o644))
	gitIn(t, seed, "add", ".")
	gitIn(t, seed, "commit", "--quiet", "-m", "init")
	gitIn(t, seed, "push", "--quiet", remote, "HEAD:refs/heads/main")
	gitIn(t, seed, "branch", "--quiet", "-M", "main")
	for _, b := range branches {
		gitIn(t, seed, "checkout", "--quiet", "-b", b, "main")
		require.NoError(t, os.WriteFile(filepath.Join(seed, b+".txt"), []byte(b), 0o644))
		gitIn(t, seed, "add", ".")
		gitIn(t, seed, "commit", "--quiet", "-m", "branch "+b)
		gitIn(t, seed, "push", "--quiet", remote, "HEAD:refs/heads/"+b)
	}
	return remote
}

// fileURL makes git honour --depth, which it ignores for plain local paths.
func fileURL(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func open(t *testing.T, remote, branch string) *Repo {
	t.Helper()
	r, err := Open(context.Background(), OpenOptions{
		RemoteURL: fileURL(remote),
		Dir:       filepath.Join(t.TempDir(), "work"),
		Branch:    branch,
		Author:    testAuthor,
	})
	require.NoError(t, err)
	return r
}

func TestOpen_CreatesOrphanBranch(t *testing.T) {
	remote := newRemote(t)
	r := open(t, remote, "prod")

	assert.True(t, r.Orphaned())
	assert.Equal(t, "prod", gitIn(t, r.Dir(), "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t, "1", gitIn(t, r.Dir(), "rev-list", "--count", "HEAD"))
	assert.Equal(t, InitialCommitMessage, gitIn(t, r.Dir(), "log", "-1", "--format=%s"))
	assert.Empty(t, gitIn(t, r.Dir(), "ls-tree", "-r", "HEAD"))
	assert.Equal(t, testAuthor.Email, gitIn(t, r.Dir(), "log", "-1", "--format=%ae"))
	_, err := os.Stat(filepath.Join(r.Dir(), "README.md"))
	assert.True(t, os.IsNotExist(err), "orphan branch must not carry files of the default branch")
}

func TestOpen_ChecksOutExistingBranch(t *testing.T) {
	remote := newRemote(t, "prod", "dev")
	r := open(t, remote, "dev")

	assert.False(t, r.Orphaned())
	assert.Equal(t, "dev", gitIn(t, r.Dir(), "rev-parse", "--abbrev-ref", "HEAD"))
	assert.FileExists(t, filepath.Join(r.Dir(), "dev.txt"))
	assert.NoFileExists(t, filepath.Join(r.Dir(), "prod.txt"))
	assert.Equal(t, "branch dev", gitIn(t, r.Dir(), "log", "-1", "--format=%s"))
	// shallow
	assert.Equal(t, "1", gitIn(t, r.Dir(), "rev-list", "--count", "HEAD"))
}

func TestOpen_BranchNamedLikeDefaultBranchPath(t *testing.T) {
	remote := newRemote(t)
	seed := filepath.Join(t.TempDir(), "seed")
	gitIn(t, filepath.Dir(seed), "clone", "--quiet", remote, seed)
	require.NoError(t, os.MkdirAll(filepath.Join(seed, "prod"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(seed, "prod", "notes.txt"), []byte("notes"), 0o644))
	gitIn(t, seed, "add", ".")
	gitIn(t, seed, "commit", "--quiet", "-m", "notes")
	gitIn(t, seed, "push", "--quiet", "origin", "HEAD:refs/heads/main")

	r := open(t, remote, "prod")
	assert.True(t, r.Orphaned())
	assert.Equal(t, "prod", gitIn(t, r.Dir(), "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Empty(t, gitIn(t, r.Dir(), "ls-tree", "-r", "HEAD"))
	assert.NoDirExists(t, filepath.Join(r.Dir(), "prod"))

	writeArtifact(t, r, "dashboards/prod/a.dash", `{}`)
	res, err := r.StageAndCommit(context.Background(), []string{"dashboards/prod"}, "update", false)
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, "dashboards/prod/a.dash", gitIn(t, remote, "ls-tree", "-r", "--name-only", "refs/heads/prod"))
}

func TestOpen_RemovesPreviousWorkingCopy(t *testing.T) {
	remote := newRemote(t, "prod")
	dir := filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dashboards"), 0o755))
	stale := filepath.Join(dir, "dashboards", "stale.dash")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))

	r, err := Open(context.Background(), OpenOptions{RemoteURL: fileURL(remote), Dir: dir, Branch: "prod", Author: testAuthor})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(r.Dir(), "prod.txt"))
}

func TestOpen_CloneError(t *testing.T) {
	requireGit(t)
	_, err := Open(context.Background(), OpenOptions{
		RemoteURL: filepath.Join(t.TempDir(), "missing.git"),
		Dir:       filepath.Join(t.TempDir(), "work"),
		Branch:    "prod",
	})
	var ce *CloneError
	require.True(t, errors.As(err, &ce), "want *CloneError, got %v", err)

	_, err = Open(context.Background(), OpenOptions{Dir: t.TempDir(), Branch: "prod"})
	assert.True(t, errors.As(err, &ce))
}

func TestOpen_InvalidBranchName(t *testing.T) {
	remote := newRemote(t)
	core, logs := observer.New(zap.DebugLevel)
	_, err := Open(context.Background(), OpenOptions{
		RemoteURL: fileURL(remote),
		Dir:       filepath.Join(t.TempDir(), "work"),
		Branch:    "bad..name",
		Author:    testAuthor,
		Logger:    zap.New(core),
	})
	var be *BranchError
	require.True(t, errors.As(err, &be), "want *BranchError, got %v", err)
	assert.Equal(t, "bad..name", be.Branch)
	// The caller logs the returned error.
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func writeArtifact(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	p := filepath.Join(r.Dir(), rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestStageAndCommit_PushesAndIsIdempotent(t *testing.T) {
	remote := newRemote(t)
	ctx := context.Background()
	r := open(t, remote, "prod")
	writeArtifact(t, r, "dashboards/prod/a.dash", `{"oid":"a"}`)
	writeArtifact(t, r, "models/prod/m.smodel", `{"oid":"m"}`)
	paths := []string{"dashboards/prod", "models/prod"}

	res, err := r.StageAndCommit(ctx, paths, "update", false)
	require.NoError(t, err)
	assert.True(t, res.Changed())
	assert.True(t, res.Committed)
	assert.True(t, res.Pushed)
	assert.ElementsMatch(t, []string{"dashboards/prod/a.dash", "models/prod/m.smodel"}, res.Files)
	assert.Equal(t, "[new branch]", res.PushSummary)

	head, err := r.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, head, gitIn(t, remote, "rev-parse", "refs/heads/prod"))
	assert.Equal(t, "origin/prod", gitIn(t, r.Dir(), "rev-parse", "--abbrev-ref", "prod@{upstream}"))

	res, err = r.StageAndCommit(ctx, paths, "update", false)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.False(t, res.Committed)
	after, err := r.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, head, after)
}

func TestStageAndCommit_StagesDeletions(t *testing.T) {
	remote := newRemote(t)
	ctx := context.Background()
	r := open(t, remote, "prod")
	writeArtifact(t, r, "dashboards/prod/a.dash", `{}`)
	writeArtifact(t, r, "dashboards/prod/b.dash", `{}`)
	_, err := r.StageAndCommit(ctx, []string{"dashboards/prod"}, "first", false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.Dir(), "dashboards/prod/b.dash")))
	res, err := r.StageAndCommit(ctx, []string{"dashboards/prod"}, "second", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboards/prod/b.dash"}, res.Files)
	assert.Equal(t, "dashboards/prod/a.dash", gitIn(t, remote, "ls-tree", "-r", "--name-only", "refs/heads/prod"))
}

func TestStageAndCommit_SkipCommit(t *testing.T) {
	remote := newRemote(t)
	ctx := context.Background()
	r := open(t, remote, "prod")
	writeArtifact(t, r, "dashboards/prod/a.dash", `{}`)

	res, err := r.StageAndCommit(ctx, []string{"dashboards/prod"}, "update", true)
	require.NoError(t, err)
	assert.True(t, res.Changed())
	assert.False(t, res.Committed)
	assert.False(t, res.Pushed)
	assert.Equal(t, "1", gitIn(t, r.Dir(), "rev-list", "--count", "HEAD"))
	assert.Empty(t, gitIn(t, remote, "branch", "--list", "prod"))
	// staged, not committed
	assert.Equal(t, "dashboards/prod/a.dash", gitIn(t, r.Dir(), "diff", "--cached", "--name-only"))
}

func TestStageAndCommit_PushRejected(t *testing.T) {
	remote := newRemote(t, "prod")
	ctx := context.Background()
	first := open(t, remote, "prod")
	second := open(t, remote, "prod")

	writeArtifact(t, first, "dashboards/prod/a.dash", `{"v":1}`)
	_, err := first.StageAndCommit(ctx, []string{"dashboards/prod"}, "first", false)
	require.NoError(t, err)

	writeArtifact(t, second, "dashboards/prod/a.dash", `{"v":2}`)
	res, err := second.StageAndCommit(ctx, []string{"dashboards/prod"}, "second", false)
	var rejected *PushRejectedError
	require.True(t, errors.As(err, &rejected), "want *PushRejectedError, got %v", err)
	assert.Contains(t, rejected.Summary, "rejected")
	assert.True(t, res.Committed)
	assert.False(t, res.Pushed)
	var pe *PushError
	assert.False(t, errors.As(err, &pe))
}

func TestStageAndCommit_PushTransportError(t *testing.T) {
	remote := newRemote(t)
	ctx := context.Background()
	r := open(t, remote, "prod")
	require.NoError(t, os.RemoveAll(remote))
	writeArtifact(t, r, "dashboards/prod/a.dash", `{}`)

	res, err := r.StageAndCommit(ctx, []string{"dashboards/prod"}, "update", false)
	var pe *PushError
	require.True(t, errors.As(err, &pe), "want *PushError, got %v", err)
	assert.True(t, res.Committed)
	var rejected *PushRejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestParsePushOutput(t *testing.T) {
	cases := []struct {
		name     string
		out      string
		summary  string
		rejected bool
	}{
		{"new branch", "To /tmp/r.git\n*\trefs/heads/prod:refs/heads/prod\t[new branch]\nDone\n", "[new branch]", false},
		{"fast forward", "To /tmp/r.git\n \trefs/heads/prod:refs/heads/prod\tabc1234..def5678\nDone\n", "abc1234..def5678", false},
		{"non fast forward", "To /tmp/r.git\n!\trefs/heads/prod:refs/heads/prod\t[rejected] (fetch first)\nDone\n", "[rejected] (fetch first)", true},
		{"remote hook", "To /tmp/r.git\n!\trefs/heads/prod:refs/heads/prod\t[remote rejected] (pre-receive hook declined)\n", "[remote rejected] (pre-receive hook declined)", true},
		{"stderr only", "error: failed to push some refs\n ! [rejected]        prod -> prod (fetch first)\n", "[rejected]", true},
		{"empty", "", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			summary, rejected := ParsePushOutput(c.out)
			assert.Equal(t, c.summary, summary)
			assert.Equal(t, c.rejected, rejected)
		})
	}
}
