package sisenseapi

import (
	"context"
	"fmt"
	"strings"
)

// Kind is the type of a Sisense artifact.
type Kind string

const (
	KindDashboard Kind = "dashboard"
	KindModel     Kind = "model"
)

// Kinds lists the artifact kinds in export order.
var Kinds = []Kind{KindDashboard, KindModel}

// Ext returns the file extension used for exported artifacts of this kind, including the dot.
func (k Kind) Ext() string {
	switch k {
	case KindDashboard:
		return ".dash"
	case KindModel:
		return ".smodel"
	}
	return ""
}

// Dir returns the working copy directory name for this kind ("dashboards", "models").
func (k Kind) Dir() string {
	return string(k) + "s"
}

// ParseKind accepts the singular or plural form of a kind name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dashboard", "dashboards":
		return KindDashboard, nil
	case "model", "models":
		return KindModel, nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// Ref identifies an artifact on the platform.
type Ref struct {
	Kind Kind
	ID   string
}

// FileName returns <id><ext>.
func (r Ref) FileName() string {
	return r.ID + r.Kind.Ext()
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Artifact is a listed or imported artifact.
type Artifact struct {
	Ref
	Title string
}

// ImportOptions controls how an artifact file is imported.
type ImportOptions struct {
	Kind Kind
	// Title, when set, replaces the title of the imported artifact.
	Title string
	// Overwrite replaces a dashboard with the same oid.
	Overwrite bool
	// Republish republishes an overwritten dashboard to its shares.
	Republish bool
	// Target, for models, is the existing model to replace. Nil imports a new model.
	Target *Ref
}

// Client is a narrow interface over the Sisense REST API used by our app.
// Keep it small and focused on what we actually need so it stays mockable.
type Client interface {
	// Listing
	ListDashboards(ctx context.Context) ([]Artifact, error)
	ListModels(ctx context.Context) ([]Artifact, error)

	// Export writes the artifact document to path, replacing any existing file.
	Export(ctx context.Context, ref Ref, path string) error
	// Import uploads the artifact document at path.
	Import(ctx context.Context, path string, opts ImportOptions) (Artifact, error)
	// Delete removes the artifact from the platform.
	Delete(ctx context.Context, ref Ref) error
}

// List dispatches to ListDashboards or ListModels.
func List(ctx context.Context, c Client, kind Kind) ([]Artifact, error) {
	switch kind {
	case KindDashboard:
		return c.ListDashboards(ctx)
	case KindModel:
		return c.ListModels(ctx)
	}
	return nil, fmt.Errorf("unknown artifact kind %q", kind)
}

// APIError is returned when the platform answers with an error status.
// It is a platform-level rejection as opposed to a transport failure.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// NotFound reports whether the platform answered 404.
func (e *APIError) NotFound() bool { return e.StatusCode == 404 }
