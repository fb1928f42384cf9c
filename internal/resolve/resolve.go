// Package resolve turns workflow references into descriptor text.
package resolve

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/me/wesconsole/pkg/model"
)

// DefaultGitHubAPI is the GitHub REST API base.
const DefaultGitHubAPI = "https://api.github.com"

// Resolver fetches workflow descriptors and sidecar files.
type Resolver struct {
	httpClient *http.Client
	githubAPI  string
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resolver) { r.httpClient = hc }
}

// WithGitHubAPI points blob URL conversion at another API base.
func WithGitHubAPI(base string) Option {
	return func(r *Resolver) { r.githubAPI = strings.TrimRight(base, "/") }
}

// New creates a Resolver.
func New(logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Resolver{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		githubAPI:  DefaultGitHubAPI,
		logger:     logger.With("component", "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidURL reports whether s is an absolute http or https URL.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// githubContentsURL rewrites https://github.com/{owner}/{repo}/blob/{ref}/{path}
// into the contents API form. ok is false for any other URL.
func (r *Resolver) githubContentsURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "github.com" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 || parts[2] != "blob" {
		return "", false
	}
	owner, repo, ref := parts[0], parts[1], parts[3]
	api := r.githubAPI + "/repos/" + owner + "/" + repo + "/contents/" + strings.Join(parts[4:], "/")
	return api + "?" + url.Values{"ref": {ref}}.Encode(), true
}

// ConvertGitHubURL resolves a GitHub blob URL to its raw download URL with one
// contents API call. Any other URL, or any failure, returns raw unchanged.
func (r *Resolver) ConvertGitHubURL(ctx context.Context, raw string) string {
	api, ok := r.githubContentsURL(raw)
	if !ok {
		return raw
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api, nil)
	if err != nil {
		return raw
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("github contents lookup failed", "url", raw, "error", err)
		return raw
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("github contents lookup failed", "url", raw, "status", resp.StatusCode)
		return raw
	}

	var content struct {
		DownloadURL string `json:"download_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil || content.DownloadURL == "" {
		return raw
	}
	r.logger.Debug("github url converted", "from", raw, "to", content.DownloadURL)
	return content.DownloadURL
}

// Fetch downloads the text at rawURL after GitHub conversion.
func (r *Resolver) Fetch(ctx context.Context, rawURL string) (string, error) {
	u := r.ConvertGitHubURL(ctx, rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", model.NewValidationError("url", err.Error())
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &model.NetworkError{Op: "FetchWorkflow", URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.RequestError{Op: "FetchWorkflow", URL: u, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.NetworkError{Op: "FetchWorkflow", URL: u, Err: err}
	}
	return string(data), nil
}

// MatchAttachment finds the attachment whose final path segment equals the
// final path segment of ref.
func MatchAttachment(ref string, attachments []model.AttachedFile) (model.AttachedFile, bool) {
	name := path.Base(ref)
	if ref == "" || name == "/" {
		return model.AttachedFile{}, false
	}
	for _, f := range attachments {
		if path.Base(f.FileName) == name {
			return f, true
		}
	}
	return model.AttachedFile{}, false
}

// WorkflowContent returns the descriptor of a catalog entry. An absolute URL
// is fetched directly; a relative one is looked up in the entry's attachments.
// No matching attachment yields "" without error.
func (r *Resolver) WorkflowContent(ctx context.Context, wf model.ExecutableWorkflow) (string, error) {
	if ValidURL(wf.WorkflowURL) {
		return r.Fetch(ctx, wf.WorkflowURL)
	}
	f, ok := MatchAttachment(wf.WorkflowURL, wf.WorkflowAttachment)
	if !ok {
		return "", nil
	}
	return r.Fetch(ctx, f.FileURL)
}
