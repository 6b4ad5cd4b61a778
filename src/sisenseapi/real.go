package sisenseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/pkg/errors"

	"sisense-sync/src/pretty"
	"sisense-sync/src/util/progress"
)

// Options configures a RealClient.
type Options struct {
	// Host is the base URL of the Sisense server, e.g. https://bi.example.com.
	Host string
	// Token is an API token. When empty, Username/Password are used to log in.
	Token    string
	Username string
	Password string

	Timeout    time.Duration
	HTTPClient *http.Client
	// Progress, when non-nil, receives export download progress.
	Progress io.Writer
}

// RealClient talks to the Sisense REST API.
type RealClient struct {
	base     *url.URL
	token    string
	hc       *http.Client
	progress io.Writer
}

type fieldsQuery struct {
	Fields string `url:"fields"`
}

type modelExportQuery struct {
	DatamodelID string `url:"datamodelId"`
	Type        string `url:"type"`
}

type dashboardImportQuery struct {
	Action    string `url:"action"`
	Republish bool   `url:"republish"`
}

type modelImportQuery struct {
	Title       string `url:"title,omitempty"`
	DatamodelID string `url:"datamodelId,omitempty"`
}

// Connect builds a client for opts.Host, logging in first when no token is given.
func Connect(ctx context.Context, opts Options) (*RealClient, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, errors.New("sisense host must not be empty")
	}
	base, err := url.Parse(strings.TrimRight(opts.Host, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sisense host %q", opts.Host)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid sisense host %q; expected format 'https://host[:port]'", opts.Host)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	c := &RealClient{base: base, token: opts.Token, hc: hc, progress: opts.Progress}
	if c.token == "" {
		if opts.Username == "" {
			return nil, errors.New("either a token or a username/password is required")
		}
		if err := c.login(ctx, opts.Username, opts.Password); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *RealClient) login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/authentication/login", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return errors.Wrap(err, "sisense login")
	}
	if out.AccessToken == "" {
		return errors.New("sisense login: no access token in response")
	}
	c.token = out.AccessToken
	return nil
}

func (c *RealClient) ListDashboards(ctx context.Context) ([]Artifact, error) {
	return c.list(ctx, KindDashboard, "/api/v1/dashboards")
}

func (c *RealClient) ListModels(ctx context.Context) ([]Artifact, error) {
	return c.list(ctx, KindModel, "/api/v2/datamodels/schema")
}

func (c *RealClient) list(ctx context.Context, kind Kind, path string) ([]Artifact, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, fieldsQuery{Fields: "oid,title"}, nil)
	if err != nil {
		return nil, err
	}
	var items []struct {
		Oid   string `json:"oid"`
		Title string `json:"title"`
	}
	if err := c.doJSON(req, &items); err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(items))
	for _, it := range items {
		out = append(out, Artifact{Ref: Ref{Kind: kind, ID: it.Oid}, Title: it.Title})
	}
	return out, nil
}

func (c *RealClient) Export(ctx context.Context, ref Ref, path string) error {
	var req *http.Request
	var err error
	switch ref.Kind {
	case KindDashboard:
		req, err = c.newRequest(ctx, http.MethodGet, "/api/v1/dashboards/"+url.PathEscape(ref.ID)+"/export/dash", nil, nil)
	case KindModel:
		req, err = c.newRequest(ctx, http.MethodGet, "/api/v2/datamodel-exports/schema", modelExportQuery{DatamodelID: ref.ID, Type: "schema-latest"}, nil)
	default:
		return fmt.Errorf("unknown artifact kind %q", ref.Kind)
	}
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var r io.Reader = resp.Body
	if c.progress != nil {
		r = progress.NewReader(resp.Body, resp.ContentLength, ref.FileName(), c.progress)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "download %s", ref)
	}
	return f.Close()
}

func (c *RealClient) Import(ctx context.Context, path string, opts ImportOptions) (Artifact, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	switch opts.Kind {
	case KindDashboard:
		return c.importDashboard(ctx, doc, opts)
	case KindModel:
		return c.importModel(ctx, doc, opts)
	}
	return Artifact{}, fmt.Errorf("unknown artifact kind %q", opts.Kind)
}

func (c *RealClient) importDashboard(ctx context.Context, doc []byte, opts ImportOptions) (Artifact, error) {
	if opts.Title != "" {
		var err error
		if doc, err = pretty.SetTitle(doc, opts.Title); err != nil {
			return Artifact{}, err
		}
	}
	// The bulk endpoint takes an array of dashboards.
	body := make([]byte, 0, len(doc)+2)
	body = append(body, '[')
	body = append(body, doc...)
	body = append(body, ']')

	action := "skip"
	if opts.Overwrite {
		action = "overwrite"
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/dashboards/import/bulk", dashboardImportQuery{Action: action, Republish: opts.Republish}, bytes.NewReader(body))
	if err != nil {
		return Artifact{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	// "succeded" is the spelling used by the API.
	var out struct {
		Succeeded []struct {
			Oid   string `json:"oid"`
			Title string `json:"title"`
		} `json:"succeded"`
		Failed map[string]json.RawMessage `json:"failed"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return Artifact{}, err
	}
	if len(out.Succeeded) == 0 {
		msg := "no dashboard imported"
		if len(out.Failed) > 0 {
			b, _ := json.Marshal(out.Failed)
			msg = string(b)
		}
		return Artifact{}, &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: http.StatusOK, Message: msg}
	}
	d := out.Succeeded[0]
	return Artifact{Ref: Ref{Kind: KindDashboard, ID: d.Oid}, Title: d.Title}, nil
}

func (c *RealClient) importModel(ctx context.Context, doc []byte, opts ImportOptions) (Artifact, error) {
	q := modelImportQuery{Title: opts.Title}
	if opts.Target != nil {
		q.DatamodelID = opts.Target.ID
	}
	if q.Title == "" && opts.Target == nil {
		// A new model needs a title; fall back to the one in the document.
		var meta struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(doc, &meta)
		q.Title = meta.Title
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v2/datamodel-imports/schema", q, bytes.NewReader(doc))
	if err != nil {
		return Artifact{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out struct {
		Oid   string `json:"oid"`
		Title string `json:"title"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return Artifact{}, err
	}
	return Artifact{Ref: Ref{Kind: KindModel, ID: out.Oid}, Title: out.Title}, nil
}

func (c *RealClient) Delete(ctx context.Context, ref Ref) error {
	var path string
	switch ref.Kind {
	case KindDashboard:
		path = "/api/v1/dashboards/" + url.PathEscape(ref.ID)
	case KindModel:
		path = "/api/v2/datamodels/" + url.PathEscape(ref.ID)
	default:
		return fmt.Errorf("unknown artifact kind %q", ref.Kind)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *RealClient) newRequest(ctx context.Context, method, path string, q any, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		v, err := query.Values(q)
		if err != nil {
			return nil, errors.Wrap(err, "encode query")
		}
		u.RawQuery = v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and turns error statuses into *APIError. The caller closes the body.
func (c *RealClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode, Message: errorMessage(b)}
	}
	return resp, nil
}

func (c *RealClient) doJSON(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", req.Method, req.URL.Path)
	}
	return nil
}

// errorMessage extracts {"error":{"message":..}} or {"message":..} from an error body.
func errorMessage(b []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &e); err == nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return string(b)
}
