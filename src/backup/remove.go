package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sisense-sync/src/safety"
	"sisense-sync/src/settings"
	"sisense-sync/src/sisenseapi"
	"sisense-sync/src/target"
)

// RemoveOptions configures Remove.
type RemoveOptions struct {
	// Path names the artifact: its stem is the oid and its extension the kind.
	// The file does not have to exist.
	Path    string
	Variant settings.Variant
	Safety  safety.Options
	// Interactive asks for confirmation on In/Out before deleting.
	Interactive bool
	In          io.Reader
	Out         io.Writer
	Logger      *zap.Logger
}

// RemoveResult reports what Remove did.
type RemoveResult struct {
	Ref sisenseapi.Ref
	// Deleted is false for a dry run, a declined confirmation or a delete the platform refused.
	Deleted bool
}

// Remove deletes the artifact named by a local file from the platform.
//
// Removal is best effort: when the platform refuses the delete (unknown oid,
// permissions) the error is logged and Remove succeeds. Only failures to reach
// the platform are returned, as *DeleteError.
func Remove(ctx context.Context, c sisenseapi.Client, opts RemoveOptions) (RemoveResult, error) {
	log := nopIfNil(opts.Logger)

	t, err := target.Parse(opts.Path)
	if err != nil {
		log.Error("Unsupported artifact file", zap.String("path", opts.Path), zap.Error(err))
		return RemoveResult{}, err
	}
	res := RemoveResult{Ref: t.Ref}
	log = log.With(zap.String("kind", string(t.Kind)), zap.String("oid", t.ID))
	if err := CheckCapability(opts.Variant, "removal", t.Kind); err != nil {
		log.Error("Removal not supported", zap.Error(err))
		return res, err
	}

	switch {
	case opts.Interactive:
		ok, err := safety.Confirm(opts.Safety, opts.In, opts.Out, fmt.Sprintf("Delete %s %s from the platform?", t.Kind, t.ID))
		if err != nil {
			return res, errors.Wrap(err, "read confirmation")
		}
		if !ok {
			log.Info("Not removing")
			return res, nil
		}
	case opts.Safety.DryRun:
		log.Info("Dry run: would delete")
		return res, nil
	}

	if err := c.Delete(ctx, t.Ref); err != nil {
		var apiErr *sisenseapi.APIError
		if errors.As(err, &apiErr) {
			log.Error("Platform refused delete", zap.Int("status", apiErr.StatusCode), zap.Error(err))
			return res, nil
		}
		log.Error("Failed to delete", zap.Error(err))
		return res, &DeleteError{Ref: t.Ref, Err: err}
	}
	res.Deleted = true
	log.Info("Deleted")
	return res, nil
}
