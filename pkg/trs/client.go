package trs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/me/wesconsole/pkg/model"
)

// Client talks to TRS registries. The registry base URL is passed per call.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a TRS client. hc may be nil.
func NewClient(hc *http.Client, logger *slog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{httpClient: hc, logger: logger.With("component", "trs-client")}
}

func escape(s string) string {
	return url.PathEscape(s)
}

// BiocontainersServiceInfo is the fixed service-info used for BiocontainersEndpoint.
func BiocontainersServiceInfo() model.TRSServiceInfo {
	return model.TRSServiceInfo{
		ID:   "biocontainers",
		Name: "biocontainers",
		Organization: model.TRSOrganization{
			Name: "biocontainers",
			URL:  "https://api.biocontainers.pro",
		},
		Version: "1.0.0",
		Type: model.TRSServiceType{
			Group:    "ga4gh",
			Artifact: "trs",
			Version:  "2.0.0",
		},
	}
}

// GetServiceInfo fetches the registry's service-info.
func (c *Client) GetServiceInfo(ctx context.Context, endpoint string) (*model.TRSServiceInfo, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == BiocontainersEndpoint {
		si := BiocontainersServiceInfo()
		return &si, nil
	}
	var si model.TRSServiceInfo
	if err := c.getJSON(ctx, "TRSGetServiceInfo", endpoint+"/service-info", &si); err != nil {
		return nil, err
	}
	return &si, nil
}

// GetTools lists the tools that have descriptors of the given type.
func (c *Client) GetTools(ctx context.Context, endpoint string, descriptorType DescriptorType) ([]model.TRSTool, error) {
	if !descriptorType.Valid() {
		return nil, model.NewValidationError("descriptor_type", "unknown descriptor type "+string(descriptorType))
	}
	u := strings.TrimRight(endpoint, "/") + "/tools?" + url.Values{"descriptorType": {string(descriptorType)}}.Encode()
	var tools []model.TRSTool
	if err := c.getJSON(ctx, "TRSGetTools", u, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// GetToolsForWorkflowType is GetTools keyed by a WES workflow_type.
func (c *Client) GetToolsForWorkflowType(ctx context.Context, endpoint, workflowType string) ([]model.TRSTool, error) {
	d, err := DescriptorTypeFor(workflowType)
	if err != nil {
		return nil, model.NewValidationError("workflow_type", err.Error())
	}
	return c.GetTools(ctx, endpoint, d)
}

// DescriptorURL is the raw primary descriptor of a tool version.
func DescriptorURL(endpoint, toolID, version string, d DescriptorType) string {
	return versionPath(endpoint, toolID, version) + "/" + d.plain() + "/descriptor"
}

// AttachmentURL is the raw content of a file that ships with a tool version.
// path is relative to the primary descriptor; a leading slash is ignored.
func AttachmentURL(endpoint, toolID, version string, d DescriptorType, path string) string {
	return DescriptorURL(endpoint, toolID, version, d) + "/" + strings.TrimLeft(path, "/")
}

// FilesURL lists the files of a tool version.
func FilesURL(endpoint, toolID, version string, d DescriptorType) string {
	return versionPath(endpoint, toolID, version) + "/" + string(d) + "/files"
}

// GetFiles lists the files registered for a tool version.
func (c *Client) GetFiles(ctx context.Context, endpoint, toolID, version string, d DescriptorType) ([]model.TRSToolFile, error) {
	var files []model.TRSToolFile
	if err := c.getJSON(ctx, "TRSGetFiles", FilesURL(endpoint, toolID, version, d), &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GetDescriptor downloads the primary descriptor as text.
func (c *Client) GetDescriptor(ctx context.Context, endpoint, toolID, version string, d DescriptorType) (string, error) {
	u := DescriptorURL(endpoint, toolID, version, d)
	resp, err := c.do(ctx, "TRSGetDescriptor", u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.NetworkError{Op: "TRSGetDescriptor", URL: u, Err: err}
	}
	return string(data), nil
}

// Attachments converts a file listing into attachment entries. Entries
// without a path are skipped.
func Attachments(endpoint, toolID, version string, d DescriptorType, files []model.TRSToolFile) []model.AttachedFile {
	out := []model.AttachedFile{}
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		out = append(out, model.AttachedFile{
			FileName: f.Path,
			FileURL:  AttachmentURL(endpoint, toolID, version, d, f.Path),
		})
	}
	return out
}

func (c *Client) do(ctx context.Context, op, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &model.NetworkError{Op: op, URL: u, Err: err}
	}
	c.logger.Debug("HTTP request", "op", op, "url", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.NetworkError{Op: op, URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &model.RequestError{Op: op, URL: u, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, u string, out any) error {
	resp, err := c.do(ctx, op, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.ParseError{What: op + " response", Err: err}
	}
	return nil
}
