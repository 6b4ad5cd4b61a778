// Package pretty canonicalizes exported artifact documents so that they diff well
// under version control, and performs the few in-place edits the upload path needs.
//
// Documents are never decoded into maps: key order and number literals are kept
// exactly as the platform produced them and only insignificant whitespace changes.
package pretty

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Indent is the indentation unit of a canonical document.
const Indent = "    "

// FormatError reports a document that is not valid JSON or lacks an expected field.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "format: " + e.Err.Error()
	}
	return fmt.Sprintf("format %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Format returns the canonical form of doc: 4-space indentation, no trailing newline.
func Format(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(doc), "", Indent); err != nil {
		return nil, &FormatError{Err: err}
	}
	return buf.Bytes(), nil
}

// Reformat rewrites the file at path in canonical form. The file is left untouched
// if it does not hold valid JSON.
func Reformat(fs afero.Fs, path string) error {
	return rewrite(fs, path, Format)
}

// Status is the result of Check.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnformatted Status = "unformatted"
	StatusInvalid     Status = "invalid"
)

// Check reports whether the file at path is canonical, valid but unformatted, or invalid.
// The error is only set when the file cannot be read.
func Check(fs afero.Fs, path string) (Status, error) {
	doc, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", err
	}
	want, err := Format(doc)
	if err != nil {
		return StatusInvalid, nil
	}
	if !bytes.Equal(want, doc) {
		return StatusUnformatted, nil
	}
	return StatusOK, nil
}

// RewriteConnection replaces datasets[].connection.parameters with conn in every
// dataset of the model file at path and writes it back in canonical form.
// It returns the previous parameter values as raw JSON text.
func RewriteConnection(fs afero.Fs, path string, conn string) ([]string, error) {
	var previous []string
	err := rewrite(fs, path, func(doc []byte) ([]byte, error) {
		previous = previous[:0]
		root, err := decodeObject(doc)
		if err != nil {
			return nil, &FormatError{Err: err}
		}
		raw, ok := root.get("datasets")
		if !ok {
			return nil, &FormatError{Err: fmt.Errorf("no datasets")}
		}
		if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			return nil, &FormatError{Err: fmt.Errorf("datasets is not an array")}
		}
		var datasets []json.RawMessage
		if err := json.Unmarshal(raw, &datasets); err != nil {
			return nil, &FormatError{Err: fmt.Errorf("datasets: %w", err)}
		}
		value := encodeString(conn)
		for i, ds := range datasets {
			dobj, err := decodeObject(ds)
			if err != nil {
				return nil, &FormatError{Err: fmt.Errorf("datasets[%d]: %w", i, err)}
			}
			craw, ok := dobj.get("connection")
			if !ok {
				return nil, &FormatError{Err: fmt.Errorf("datasets[%d]: no connection", i)}
			}
			cobj, err := decodeObject(craw)
			if err != nil {
				return nil, &FormatError{Err: fmt.Errorf("datasets[%d].connection: %w", i, err)}
			}
			old, _ := cobj.get("parameters")
			previous = append(previous, string(old))
			cobj.set("parameters", value)
			dobj.set("connection", cobj.encode())
			datasets[i] = dobj.encode()
		}
		root.set("datasets", encodeArray(datasets))
		return Format(root.encode())
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// SetTitle returns doc with its top-level title replaced, in compact form.
func SetTitle(doc []byte, title string) ([]byte, error) {
	root, err := decodeObject(doc)
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	root.set("title", encodeString(title))
	return root.encode(), nil
}

// rewrite applies fn to the content of path and writes the result over it.
// Nothing is written when fn fails.
func rewrite(fs afero.Fs, path string, fn func([]byte) ([]byte, error)) error {
	f, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	out, err := fn(doc)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = path
		}
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(out); err != nil {
		return err
	}
	if err := f.Truncate(int64(len(out))); err != nil {
		return err
	}
	return f.Close()
}
