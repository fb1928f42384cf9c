package wes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/me/wesconsole/pkg/model"
)

// DefaultTimeout bounds a single request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept in messages.
const maxErrorBody = 512

// Client talks to any number of WES endpoints. It holds no per-service state;
// every method takes the endpoint base URL (e.g. https://host/ga4gh/wes/v1).
// Requests are never retried: retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a WES client.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.With("component", "wes-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func joinURL(endpoint string, segments ...string) string {
	u := strings.TrimRight(endpoint, "/")
	for _, s := range segments {
		u += "/" + s
	}
	return u
}

// GetServiceInfo fetches the capability document. Absent collections are
// returned empty. Callers treat any error as "service unreachable".
func (c *Client) GetServiceInfo(ctx context.Context, endpoint string) (*model.ServiceInfo, error) {
	var si model.ServiceInfo
	if err := c.getJSON(ctx, "GetServiceInfo", joinURL(endpoint, "service-info"), &si); err != nil {
		return nil, err
	}
	si.Normalize()
	return &si, nil
}

// GetExecutableWorkflows returns the workflow catalog a service advertises.
// info may be nil, in which case service-info is fetched first.
func (c *Client) GetExecutableWorkflows(ctx context.Context, endpoint string, info *model.ServiceInfo) ([]model.ExecutableWorkflow, error) {
	if info == nil {
		fetched, err := c.GetServiceInfo(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		info = fetched
	}

	var workflows []model.ExecutableWorkflow
	switch ParseWesVersion(info.SupportedWesVersions).Capabilities().Catalog {
	case CatalogEndpoint:
		if err := c.getJSON(ctx, "GetExecutableWorkflows", joinURL(endpoint, "executable-workflows"), &workflows); err != nil {
			return nil, err
		}
	case CatalogServiceInfo:
		workflows = append(workflows, info.ExecutableWorkflows...)
	case CatalogNone:
		return []model.ExecutableWorkflow{}, nil
	}

	for i := range workflows {
		if workflows[i].WorkflowAttachment == nil {
			workflows[i].WorkflowAttachment = []model.AttachedFile{}
		}
	}
	if workflows == nil {
		workflows = []model.ExecutableWorkflow{}
	}
	return workflows, nil
}

// GetRuns fetches one page of the run listing. pageSize <= 0 leaves the
// server default; pageToken "" requests the first page.
func (c *Client) GetRuns(ctx context.Context, endpoint string, pageSize int, pageToken string) (*model.RunListResponse, error) {
	u := joinURL(endpoint, "runs")
	q := url.Values{}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var resp model.RunListResponse
	if err := c.getJSON(ctx, "GetRuns", u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAllRuns follows next_page_token until the listing is exhausted.
// Unrecognised states are reported as UNKNOWN.
func (c *Client) ListAllRuns(ctx context.Context, endpoint string, pageSize int) ([]model.RunStatus, error) {
	var all []model.RunStatus
	seen := map[string]bool{}
	token := ""
	for {
		page, err := c.GetRuns(ctx, endpoint, pageSize, token)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Runs {
			r.State = r.State.Normalize()
			all = append(all, r)
		}
		if page.NextPageToken == "" || seen[page.NextPageToken] {
			return all, nil
		}
		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}
}

// GetRunsID fetches the full run log.
func (c *Client) GetRunsID(ctx context.Context, endpoint, runID string) (*model.RunLog, error) {
	var log model.RunLog
	if err := c.getJSON(ctx, "GetRunsID", joinURL(endpoint, "runs", url.PathEscape(runID)), &log); err != nil {
		return nil, err
	}
	log.State = log.State.Normalize()
	return &log, nil
}

// GetRunsIDStatus fetches the abbreviated run state.
func (c *Client) GetRunsIDStatus(ctx context.Context, endpoint, runID string) (*model.RunStatus, error) {
	var st model.RunStatus
	if err := c.getJSON(ctx, "GetRunsIDStatus", joinURL(endpoint, "runs", url.PathEscape(runID), "status"), &st); err != nil {
		return nil, err
	}
	st.State = st.State.Normalize()
	return &st, nil
}

// PostRunsIDCancel asks the service to cancel a run.
func (c *Client) PostRunsIDCancel(ctx context.Context, endpoint, runID string) (*model.RunID, error) {
	u := joinURL(endpoint, "runs", url.PathEscape(runID), "cancel")
	resp, err := c.send(ctx, "PostRunsIDCancel", http.MethodPost, u, "", nil)
	if err != nil {
		return nil, err
	}
	var id model.RunID
	if err := decodeBody(resp, "cancel response", &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// send performs one request and converts transport failures and non-2xx
// responses into NetworkError and RequestError. On success the caller owns
// resp.Body.
func (c *Client) send(ctx context.Context, op, method, u, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &model.NetworkError{Op: op, URL: u, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("HTTP request", "op", op, "method", method, "url", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.NetworkError{Op: op, URL: u, Err: err}
	}
	c.logger.Debug("HTTP response", "op", op, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &model.RequestError{Op: op, URL: u, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, u string, out any) error {
	resp, err := c.send(ctx, op, http.MethodGet, u, "", nil)
	if err != nil {
		return err
	}
	return decodeBody(resp, op+" response", out)
}

func decodeBody(resp *http.Response, what string, out any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.ParseError{What: what, Err: err}
	}
	return nil
}

// errorMessage prefers the WES ErrorResponse msg and falls back to the raw body.
func errorMessage(data []byte) string {
	var er model.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Msg != "" {
		return er.Msg
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &detail) == nil && detail.Detail != "" {
		return detail.Detail
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
