package wes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/me/wesconsole/pkg/model"
)

// RunRequest holds the form fields of POST /runs. Empty fields are omitted
// from the encoded request.
type RunRequest struct {
	WorkflowParams           string
	WorkflowType             string
	WorkflowTypeVersion      string
	Tags                     string
	WorkflowEngineName       string
	WorkflowEngineParameters string
	WorkflowURL              string
	WorkflowName             string
	WorkflowAttachment       []model.AttachedFile
}

// For returns a copy of r with the fields d does not accept cleared.
func (r RunRequest) For(d Dialect) RunRequest {
	caps := d.Capabilities()
	if !caps.EngineName {
		r.WorkflowEngineName = ""
	}
	if !caps.WorkflowName {
		r.WorkflowName = ""
	}
	if !caps.InlineAttachment {
		r.WorkflowAttachment = nil
	}
	return r
}

// Attachment is a file uploaded as a workflow_attachment part.
type Attachment struct {
	Name string
	Data []byte
}

type formField struct {
	name, value string
}

func (r RunRequest) fields() ([]formField, error) {
	all := []formField{
		{"workflow_params", r.WorkflowParams},
		{"workflow_type", r.WorkflowType},
		{"workflow_type_version", r.WorkflowTypeVersion},
		{"tags", r.Tags},
		{"workflow_engine_name", r.WorkflowEngineName},
		{"workflow_engine_parameters", r.WorkflowEngineParameters},
		{"workflow_url", r.WorkflowURL},
		{"workflow_name", r.WorkflowName},
	}
	if len(r.WorkflowAttachment) > 0 {
		data, err := json.Marshal(r.WorkflowAttachment)
		if err != nil {
			return nil, fmt.Errorf("encode workflow_attachment: %w", err)
		}
		all = append(all, formField{"workflow_attachment", string(data)})
	}
	out := all[:0]
	for _, f := range all {
		if f.value != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

// PostRuns submits a run as multipart/form-data and returns the run id
// assigned by the service. Every failure is a *model.SubmissionError.
func (c *Client) PostRuns(ctx context.Context, endpoint string, req RunRequest, attachments []Attachment) (string, error) {
	fail := func(err error) (string, error) {
		return "", &model.SubmissionError{Endpoint: endpoint, Err: err}
	}

	fields, err := req.fields()
	if err != nil {
		return fail(err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fail(err)
		}
	}
	for _, a := range attachments {
		part, err := mw.CreateFormFile("workflow_attachment", a.Name)
		if err != nil {
			return fail(err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return fail(err)
		}
	}
	if err := mw.Close(); err != nil {
		return fail(err)
	}

	resp, err := c.send(ctx, "PostRuns", http.MethodPost, joinURL(endpoint, "runs"), mw.FormDataContentType(), &buf)
	if err != nil {
		return fail(err)
	}
	var id model.RunID
	if err := decodeBody(resp, "run submission response", &id); err != nil {
		return fail(err)
	}
	if id.RunID == "" {
		return fail(&model.ParseError{What: "run submission response", Err: errors.New("empty run_id")})
	}
	c.logger.Info("run submitted", "endpoint", endpoint, "run_id", id.RunID, "attachments", len(attachments))
	return id.RunID, nil
}

// ParseRequest is the body of the sapporo POST /parse-workflow endpoint.
type ParseRequest struct {
	WorkflowContent  string
	WorkflowLocation string
	WorkflowType     string
	TypesOfParsing   []string
}

// ParseWorkflow asks a sapporo-1.0.1 service to inspect a workflow document.
func (c *Client) ParseWorkflow(ctx context.Context, endpoint string, req ParseRequest) (*model.ParseResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []formField{
		{"workflow_content", req.WorkflowContent},
		{"workflow_location", req.WorkflowLocation},
		{"workflow_type", req.WorkflowType},
	} {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, err
		}
	}
	for _, t := range req.TypesOfParsing {
		if err := mw.WriteField("types_of_parsing", t); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, "ParseWorkflow", http.MethodPost, joinURL(endpoint, "parse-workflow"), mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	var result model.ParseResult
	if err := decodeBody(resp, "parse-workflow response", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
