package backup

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sisense-sync/src/pretty"
	"sisense-sync/src/settings"
	"sisense-sync/src/sisenseapi"
	"sisense-sync/src/target"
)

// UploadOptions configures Upload.
type UploadOptions struct {
	// Path is the .dash or .smodel file to import. Its stem is the artifact oid.
	Path string
	// Title, when set, replaces the title of the imported artifact.
	Title string
	// Connection, when set, replaces datasets[].connection.parameters of a model.
	// The file is rewritten in place before the import.
	Connection string
	// New imports a model as a new data model instead of updating the one named by the file.
	New     bool
	Variant settings.Variant
	DryRun  bool
	// Fs holds the artifact file. Defaults to the OS filesystem.
	Fs     afero.Fs
	Logger *zap.Logger
}

// Upload imports one artifact file into the platform.
//
// The file name is validated before anything else, then model uploads are
// checked against the platform variant, so neither failure touches the file or
// the network.
func Upload(ctx context.Context, c sisenseapi.Client, opts UploadOptions) (sisenseapi.Artifact, error) {
	log := nopIfNil(opts.Logger)
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	t, err := target.Parse(opts.Path)
	if err != nil {
		log.Error("Unsupported artifact file", zap.String("path", opts.Path), zap.Error(err))
		return sisenseapi.Artifact{}, err
	}
	log = log.With(zap.String("kind", string(t.Kind)), zap.String("oid", t.ID))
	if err := CheckCapability(opts.Variant, "upload", t.Kind); err != nil {
		log.Error("Upload not supported", zap.Error(err))
		return sisenseapi.Artifact{}, err
	}

	if opts.Connection != "" {
		switch {
		case t.Kind != sisenseapi.KindModel:
			log.Warn("Connection override only applies to models, ignoring it", zap.String("path", t.Path))
		case opts.DryRun:
			log.Info("Dry run: would rewrite connection parameters", zap.String("path", t.Path))
		default:
			previous, err := pretty.RewriteConnection(fs, t.Path, opts.Connection)
			if err != nil {
				log.Error("Failed to rewrite connection", zap.String("path", t.Path), zap.Error(err))
				return sisenseapi.Artifact{}, err
			}
			log.Info("Rewrote connection parameters", zap.String("path", t.Path), zap.Int("datasets", len(previous)))
		}
	}

	imp := sisenseapi.ImportOptions{Kind: t.Kind, Title: opts.Title}
	switch t.Kind {
	case sisenseapi.KindDashboard:
		imp.Overwrite = true
		imp.Republish = true
		if opts.New {
			log.Warn("--new only applies to models, ignoring it")
		}
	case sisenseapi.KindModel:
		if !opts.New {
			ref := t.Ref
			imp.Target = &ref
		}
	}

	if opts.DryRun {
		log.Info("Dry run: would import", zap.String("path", t.Path), zap.Bool("new", imp.Target == nil && t.Kind == sisenseapi.KindModel))
		return sisenseapi.Artifact{Ref: t.Ref, Title: opts.Title}, nil
	}

	a, err := c.Import(ctx, t.Path, imp)
	if err != nil {
		log.Error("Failed to import", zap.String("path", t.Path), zap.Error(err))
		return sisenseapi.Artifact{}, &ImportError{Ref: t.Ref, Path: t.Path, Err: err}
	}
	log.Info("Imported", zap.String("path", t.Path), zap.String("result_oid", a.ID), zap.String("title", a.Title))
	return a, nil
}
