package backup

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sisense-sync/src/gitrepo"
	"sisense-sync/src/pretty"
	"sisense-sync/src/sisenseapi"
)

// DownloadOptions configures Download.
type DownloadOptions struct {
	// Repo is the remote the environment branch is pushed to.
	Repo string
	// Env is both the branch and the artifact subdirectory.
	Env     string
	WorkDir string
	Author  gitrepo.Author
	// SkipCommit stages the exported artifacts without committing or pushing.
	SkipCommit bool
	Logger     *zap.Logger
}

// DownloadResult summarizes a download run.
type DownloadResult struct {
	// Branch was created as an orphan during this run.
	Orphaned bool
	Exported map[sisenseapi.Kind][]sisenseapi.Artifact
	Commit   gitrepo.CommitResult
	// PushRejected is set when the remote refused the push. The run still succeeds.
	PushRejected *gitrepo.PushRejectedError
}

// Download prepares a fresh working copy on the environment branch, exports every
// dashboard and model into it and commits the result when anything changed.
// Nothing is committed unless every export succeeded.
func Download(ctx context.Context, c sisenseapi.Client, opts DownloadOptions) (DownloadResult, error) {
	log := nopIfNil(opts.Logger).With(zap.String("env", opts.Env))
	res := DownloadResult{Exported: map[sisenseapi.Kind][]sisenseapi.Artifact{}}

	repo, err := gitrepo.Open(ctx, gitrepo.OpenOptions{
		RemoteURL: opts.Repo,
		Dir:       opts.WorkDir,
		Branch:    opts.Env,
		Author:    opts.Author,
		Logger:    log,
	})
	if err != nil {
		log.Error("Failed to prepare working copy", zap.Error(err))
		return res, err
	}
	res.Orphaned = repo.Orphaned()

	fs := afero.NewOsFs()
	var paths []string
	for _, kind := range sisenseapi.Kinds {
		arts, err := ExportAll(ctx, c, fs, repo.Dir(), opts.Env, kind, log)
		if err != nil {
			return res, err
		}
		res.Exported[kind] = arts
		paths = append(paths, KindPath(kind, opts.Env))
	}

	res.Commit, err = repo.StageAndCommit(ctx, paths, CommitMessage(opts.Env), opts.SkipCommit)
	var rejected *gitrepo.PushRejectedError
	if errors.As(err, &rejected) {
		log.Error("Push rejected by remote", zap.String("branch", rejected.Branch), zap.String("summary", rejected.Summary))
		res.PushRejected = rejected
		return res, nil
	}
	if err != nil {
		log.Error("Failed to commit resources", zap.Error(err))
		return res, err
	}
	return res, nil
}

// ExportAll lists every artifact of kind and exports each one to
// <root>/<kind>s/<env>/<id><ext>, recreating that directory empty first so that
// artifacts deleted on the platform disappear. Each file is then pretty-printed;
// a document that is not valid JSON is kept as exported and logged.
//
// The first failing export, or an oid that is not a single path segment, aborts
// the whole kind with *ExportError.
func ExportAll(ctx context.Context, c sisenseapi.Client, fs afero.Fs, root, env string, kind sisenseapi.Kind, log *zap.Logger) ([]sisenseapi.Artifact, error) {
	log = nopIfNil(log)
	arts, err := sisenseapi.List(ctx, c, kind)
	if err != nil {
		log.Error("Failed to list artifacts", zap.String("kind", string(kind)), zap.Error(err))
		return nil, errors.Wrapf(err, "list %s", kind.Dir())
	}

	dir := filepath.Join(root, KindPath(kind, env))
	if err := fs.RemoveAll(dir); err != nil {
		return nil, errors.Wrapf(err, "clean %s", dir)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}

	for _, a := range arts {
		path := filepath.Join(root, ArtifactPath(a.Ref, env))
		if !validID(a.ID) {
			log.Error("Refusing artifact with unsafe oid", zap.String("oid", a.ID), zap.String("kind", string(kind)))
			return nil, &ExportError{Ref: a.Ref, Path: path, Err: errors.Errorf("oid %q is not a single path segment", a.ID)}
		}
		if err := c.Export(ctx, a.Ref, path); err != nil {
			log.Error("Failed to export", zap.String("oid", a.ID), zap.String("kind", string(kind)), zap.Error(err))
			return nil, &ExportError{Ref: a.Ref, Path: path, Err: err}
		}
		if err := pretty.Reformat(fs, path); err != nil {
			var fe *pretty.FormatError
			if !errors.As(err, &fe) {
				return nil, &ExportError{Ref: a.Ref, Path: path, Err: err}
			}
			log.Warn("Could not pretty-print artifact", zap.String("path", path), zap.Error(err))
		}
		log.Info("Exported", zap.String("kind", string(kind)), zap.String("oid", a.ID), zap.String("title", a.Title), zap.String("path", path))
	}
	log.Info("Exported artifacts", zap.String("kind", string(kind)), zap.Int("count", len(arts)))
	return arts, nil
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
