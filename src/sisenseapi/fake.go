package sisenseapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/afero"
)

// FakeClient is an in-memory implementation for unit tests.
// Documents are stored as raw JSON keyed by oid.
type FakeClient struct {
	Fs            afero.Fs
	DashboardsMap map[string][]byte
	ModelsMap     map[string][]byte

	// ExportErrs and DeleteErrs inject failures for specific artifacts.
	ExportErrs map[Ref]error
	DeleteErrs map[Ref]error
	ImportErr  error

	// Calls records every operation in order, e.g. "export dashboard/abc".
	Calls   []string
	Imports []FakeImport

	nextID int
}

// FakeImport records one Import call.
type FakeImport struct {
	Path string
	Opts ImportOptions
	Doc  []byte
}

func NewFake() *FakeClient {
	return &FakeClient{
		Fs:            afero.NewOsFs(),
		DashboardsMap: map[string][]byte{},
		ModelsMap:     map[string][]byte{},
		ExportErrs:    map[Ref]error{},
		DeleteErrs:    map[Ref]error{},
	}
}

// Put stores a minimal document {"oid":..,"title":..} for ref.
func (f *FakeClient) Put(ref Ref, title string) {
	doc, _ := json.Marshal(map[string]string{"oid": ref.ID, "title": title})
	f.store(ref.Kind)[ref.ID] = doc
}

func (f *FakeClient) store(kind Kind) map[string][]byte {
	if kind == KindModel {
		return f.ModelsMap
	}
	return f.DashboardsMap
}

func (f *FakeClient) ListDashboards(ctx context.Context) ([]Artifact, error) {
	f.Calls = append(f.Calls, "list dashboards")
	return f.list(KindDashboard), nil
}

func (f *FakeClient) ListModels(ctx context.Context) ([]Artifact, error) {
	f.Calls = append(f.Calls, "list models")
	return f.list(KindModel), nil
}

func (f *FakeClient) list(kind Kind) []Artifact {
	m := f.store(kind)
	out := make([]Artifact, 0, len(m))
	for id, doc := range m {
		out = append(out, Artifact{Ref: Ref{Kind: kind, ID: id}, Title: docTitle(doc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeClient) Export(ctx context.Context, ref Ref, path string) error {
	f.Calls = append(f.Calls, "export "+ref.String())
	if err := f.ExportErrs[ref]; err != nil {
		return err
	}
	doc, ok := f.store(ref.Kind)[ref.ID]
	if !ok {
		return &APIError{Method: http.MethodGet, Path: ref.String(), StatusCode: http.StatusNotFound, Message: "not found"}
	}
	return afero.WriteFile(f.Fs, path, doc, 0o644)
}

func (f *FakeClient) Import(ctx context.Context, path string, opts ImportOptions) (Artifact, error) {
	f.Calls = append(f.Calls, "import "+string(opts.Kind))
	if f.ImportErr != nil {
		return Artifact{}, f.ImportErr
	}
	doc, err := afero.ReadFile(f.Fs, path)
	if err != nil {
		return Artifact{}, err
	}
	f.Imports = append(f.Imports, FakeImport{Path: path, Opts: opts, Doc: doc})

	var meta struct {
		Oid   string `json:"oid"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(doc, &meta); err != nil {
		return Artifact{}, &APIError{Method: http.MethodPost, Path: path, StatusCode: http.StatusBadRequest, Message: err.Error()}
	}
	title := meta.Title
	if opts.Title != "" {
		title = opts.Title
	}

	ref := Ref{Kind: opts.Kind, ID: meta.Oid}
	switch {
	case opts.Kind == KindModel && opts.Target != nil:
		if _, ok := f.ModelsMap[opts.Target.ID]; !ok {
			return Artifact{}, &APIError{Method: http.MethodPost, Path: opts.Target.String(), StatusCode: http.StatusNotFound, Message: "target model not found"}
		}
		ref.ID = opts.Target.ID
	case opts.Kind == KindModel:
		f.nextID++
		ref.ID = fmt.Sprintf("model-%d", f.nextID)
	case ref.ID == "":
		return Artifact{}, &APIError{Method: http.MethodPost, Path: path, StatusCode: http.StatusBadRequest, Message: "dashboard has no oid"}
	}
	if _, exists := f.DashboardsMap[ref.ID]; exists && opts.Kind == KindDashboard && !opts.Overwrite {
		return Artifact{}, &APIError{Method: http.MethodPost, Path: ref.String(), StatusCode: http.StatusConflict, Message: "dashboard exists"}
	}
	f.store(ref.Kind)[ref.ID] = doc
	return Artifact{Ref: ref, Title: title}, nil
}

func (f *FakeClient) Delete(ctx context.Context, ref Ref) error {
	f.Calls = append(f.Calls, "delete "+ref.String())
	if err := f.DeleteErrs[ref]; err != nil {
		return err
	}
	m := f.store(ref.Kind)
	if _, ok := m[ref.ID]; !ok {
		// mimic Sisense 404
		return &APIError{Method: http.MethodDelete, Path: ref.String(), StatusCode: http.StatusNotFound, Message: string(ref.Kind) + " not found"}
	}
	delete(m, ref.ID)
	return nil
}

func docTitle(doc []byte) string {
	var meta struct {
		Title string `json:"title"`
	}
	_ = json.Unmarshal(doc, &meta)
	return meta.Title
}
