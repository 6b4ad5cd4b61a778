// Package backup implements the three flows of the tool: download every artifact
// into an environment branch, upload one artifact file, and remove one artifact.
package backup

import (
	"path/filepath"

	"go.uber.org/zap"

	"sisense-sync/src/settings"
	"sisense-sync/src/sisenseapi"
)

// CommitMessage is the message of the commit a download makes for env.
func CommitMessage(env string) string {
	return "[bot] Updating resources for " + env
}

// KindPath returns the directory holding the artifacts of kind for env, relative
// to the working copy: <kind>s/<env>.
func KindPath(kind sisenseapi.Kind, env string) string {
	return filepath.Join(kind.Dir(), env)
}

// ArtifactPath returns the path of an exported artifact relative to the working copy.
func ArtifactPath(ref sisenseapi.Ref, env string) string {
	return filepath.Join(KindPath(ref.Kind, env), ref.FileName())
}

// CheckCapability fails with *CapabilityError when variant cannot perform op on kind.
// Only models are restricted.
func CheckCapability(v settings.Variant, op string, kind sisenseapi.Kind) error {
	if kind == sisenseapi.KindModel && !v.SupportsModels() {
		return &CapabilityError{Variant: v, Op: op, Kind: kind}
	}
	return nil
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
