package target

import (
	"fmt"
	"path/filepath"
	"strings"

	"sisense-sync/src/sisenseapi"
)

// Target represents a local artifact file named on the command line.
// Example: models/prod/61f2a0c3e4b0a1b2c3d4e5f6.smodel
type Target struct {
	// Raw is the original input string.
	Raw string
	// Path is the cleaned file path.
	Path string
	// Ref is the platform identity derived from the file name: the stem is the oid.
	sisenseapi.Ref
}

// SupportedExtensions maps file extensions to artifact kinds.
var SupportedExtensions = map[string]sisenseapi.Kind{
	".dash":   sisenseapi.KindDashboard,
	".smodel": sisenseapi.KindModel,
}

// TypeMismatchError is returned for a file that is neither a dashboard nor a model.
type TypeMismatchError struct {
	Path string
	Ext  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected .dash or .smodel, got %q", e.Path, e.Ext)
}

// Parse parses an artifact file path like "dashboards/prod/1234.dash" into a Target.
// Only the name matters; the file does not have to exist.
func Parse(raw string) (Target, error) {
	t := Target{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("artifact file must not be empty; expected '<oid>.dash' or '<oid>.smodel'")
	}
	clean := filepath.Clean(s)
	base := filepath.Base(clean)
	ext := filepath.Ext(base)
	kind, ok := SupportedExtensions[ext]
	if !ok {
		return t, &TypeMismatchError{Path: raw, Ext: ext}
	}
	id := strings.TrimSuffix(base, ext)
	if id == "" {
		return t, fmt.Errorf("invalid artifact file %q; the file name must be the artifact oid", raw)
	}
	t.Path = clean
	t.Ref = sisenseapi.Ref{Kind: kind, ID: id}
	return t, nil
}

// String returns the canonical form of the target.
func (t Target) String() string {
	if t.Path != "" {
		return fmt.Sprintf("%s:%s", t.Kind, t.Path)
	}
	return t.Raw
}
