package backup

import (
	"fmt"

	"sisense-sync/src/settings"
	"sisense-sync/src/sisenseapi"
)

// ExportError aborts a download: one artifact could not be written to the working copy.
type ExportError struct {
	Ref  sisenseapi.Ref
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s to %s: %v", e.Ref, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ImportError is an upload the platform did not accept.
type ImportError struct {
	Ref  sisenseapi.Ref
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s from %s: %v", e.Ref.Kind, e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// DeleteError is a delete that failed before the platform could answer it.
type DeleteError struct {
	Ref sisenseapi.Ref
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Ref, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// CapabilityError is an operation the configured platform variant does not support.
type CapabilityError struct {
	Variant settings.Variant
	Op      string
	Kind    sisenseapi.Kind
}

func (e *CapabilityError) Error() string {
	v := string(e.Variant)
	if v == "" {
		v = "unset"
	}
	return fmt.Sprintf("%s of %ss is only supported on the linux platform (version: %s)", e.Op, e.Kind, v)
}
