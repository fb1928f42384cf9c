package console

import (
	"context"
	"errors"
	"strings"

	"github.com/me/wesconsole/internal/inspect"
	"github.com/me/wesconsole/internal/resolve"
	"github.com/me/wesconsole/pkg/model"
	"github.com/me/wesconsole/pkg/trs"
	"github.com/me/wesconsole/pkg/wes"
)

// WorkflowRequest is a user-authored workflow. Content is fetched from URL
// when empty; Type and Version are inferred from the content when empty.
type WorkflowRequest struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Version   string `json:"version"`
	URL       string `json:"url"`
	Content   string `json:"content"`
}

// SubmitWorkflow stores a user-supplied workflow for a service.
func (c *Console) SubmitWorkflow(ctx context.Context, req WorkflowRequest) (*model.Workflow, error) {
	svc, ok := c.services.Get(req.ServiceID)
	if !ok {
		return nil, model.NewIntegrityError("service", req.ServiceID)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.NewValidationError("name", "must not be empty")
	}

	content := req.Content
	if content == "" {
		if !resolve.ValidURL(req.URL) {
			return nil, model.NewValidationError("url", "an absolute http(s) URL is required when content is empty")
		}
		fetched, err := c.resolver.Fetch(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		content = fetched
	}

	wfType, version := req.Type, req.Version
	if wfType == "" || version == "" {
		tv, _ := inspect.Inspect(content)
		if wfType == "" {
			wfType = tv.Type
		}
		if version == "" && tv.Type == wfType {
			version = tv.Version
		}
	}
	if wfType == "" {
		return nil, model.NewValidationError("type", "could not be inferred from the content")
	}
	if version == "" {
		version = c.parsedVersion(ctx, svc, wfType, req.URL, content)
	}

	now := c.timestamp()
	wf := &model.Workflow{
		ID:                              c.newID(),
		Name:                            name,
		Type:                            wfType,
		Version:                         version,
		URL:                             req.URL,
		Content:                         content,
		AddedDate:                       now,
		UpdatedDate:                     now,
		PreRegisteredWorkflowAttachment: []model.AttachedFile{},
		ServiceID:                       svc.ID,
		RunIDs:                          []string{},
	}
	if err := c.commitWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// parsedVersion asks a sapporo-1.0.1 service to infer the language version.
func (c *Console) parsedVersion(ctx context.Context, svc *model.Service, wfType, url, content string) string {
	if !wes.ParseWesVersion(svc.ServiceInfo.SupportedWesVersions).Capabilities().ParseWorkflow {
		return ""
	}
	req := wes.ParseRequest{
		WorkflowType:   wfType,
		TypesOfParsing: []string{"workflow_type_version"},
	}
	if resolve.ValidURL(url) {
		req.WorkflowLocation = url
	} else {
		req.WorkflowContent = content
	}
	res, err := c.wes.ParseWorkflow(ctx, svc.Endpoint, req)
	if err != nil {
		c.logger.Warn("parse-workflow failed", "service_id", svc.ID, "error", err)
		return ""
	}
	return res.WorkflowTypeVersion
}

// commitWorkflow links wf into its service, then stores it. It fails when
// the service was deleted while the workflow was being prepared.
func (c *Console) commitWorkflow(wf *model.Workflow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.services.Has(wf.ServiceID) {
		return model.NewIntegrityError("service", wf.ServiceID)
	}
	c.services.AddWorkflowID(wf.ServiceID, wf.ID)
	c.workflows.Put(wf)
	c.logger.Info("workflow added", "workflow_id", wf.ID, "service_id", wf.ServiceID,
		"name", wf.Name, "pre_registered", wf.PreRegistered)
	return nil
}

// createWorkflow builds a pre-registered workflow from a catalog entry of an
// existing service and commits it.
func (c *Console) createWorkflow(ctx context.Context, serviceID string, entry model.ExecutableWorkflow) (*model.Workflow, error) {
	wf, err := c.catalogWorkflow(ctx, serviceID, entry)
	if err != nil {
		return nil, err
	}
	if err := c.commitWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// catalogWorkflow builds an uncommitted pre-registered workflow from a
// catalog entry, fetching its content.
func (c *Console) catalogWorkflow(ctx context.Context, serviceID string, entry model.ExecutableWorkflow) (*model.Workflow, error) {
	content, err := c.resolver.WorkflowContent(ctx, entry)
	if err != nil {
		return nil, err
	}
	attachments := append([]model.AttachedFile{}, entry.WorkflowAttachment...)
	now := c.timestamp()
	wf := &model.Workflow{
		ID:                              c.newID(),
		Name:                            entry.WorkflowName,
		Type:                            entry.WorkflowType,
		Version:                         entry.WorkflowTypeVersion,
		URL:                             entry.WorkflowURL,
		Content:                         content,
		AddedDate:                       now,
		UpdatedDate:                     now,
		PreRegistered:                   true,
		PreRegisteredWorkflowAttachment: attachments,
		ServiceID:                       serviceID,
		RunIDs:                          []string{},
	}
	return wf, nil
}

// AddWorkflow stores a catalog entry of an existing service as a pre-registered workflow.
func (c *Console) AddWorkflow(ctx context.Context, serviceID string, entry model.ExecutableWorkflow) (*model.Workflow, error) {
	if !c.services.Has(serviceID) {
		return nil, model.NewIntegrityError("service", serviceID)
	}
	if entry.WorkflowName == "" {
		return nil, model.NewValidationError("workflow_name", "must not be empty")
	}
	return c.createWorkflow(ctx, serviceID, entry)
}

// TRSImportRequest names a tool version in a registry.
type TRSImportRequest struct {
	ServiceID    string `json:"service_id"`
	TRSEndpoint  string `json:"trs_endpoint"`
	ToolID       string `json:"tool_id"`
	Version      string `json:"version"`
	WorkflowType string `json:"workflow_type"`
	Name         string `json:"name"`
}

// ImportWorkflowFromTRS fetches a tool version's primary descriptor and file
// listing and stores them as a user workflow. The descriptor URL becomes the
// workflow URL and the listed files its attachments.
func (c *Console) ImportWorkflowFromTRS(ctx context.Context, req TRSImportRequest) (*model.Workflow, error) {
	if !c.services.Has(req.ServiceID) {
		return nil, model.NewIntegrityError("service", req.ServiceID)
	}
	if !resolve.ValidURL(req.TRSEndpoint) {
		return nil, model.NewValidationError("trs_endpoint", "must be an absolute http(s) URL")
	}
	if req.ToolID == "" || req.Version == "" {
		return nil, model.NewValidationError("tool_id", "tool id and version are required")
	}
	dt, err := trs.DescriptorTypeFor(req.WorkflowType)
	if err != nil {
		return nil, model.NewValidationError("workflow_type", err.Error())
	}
	wfType, _ := dt.WorkflowType()

	content, err := c.trs.GetDescriptor(ctx, req.TRSEndpoint, req.ToolID, req.Version, dt)
	if err != nil {
		return nil, err
	}
	files, err := c.trs.GetFiles(ctx, req.TRSEndpoint, req.ToolID, req.Version, dt)
	if err != nil {
		return nil, err
	}

	version := ""
	if tv, err := inspect.Inspect(content); err == nil && tv.Type == wfType {
		version = tv.Version
	}
	name := req.Name
	if name == "" {
		name = req.ToolID
	}

	now := c.timestamp()
	wf := &model.Workflow{
		ID:                              c.newID(),
		Name:                            name,
		Type:                            wfType,
		Version:                         version,
		URL:                             trs.DescriptorURL(req.TRSEndpoint, req.ToolID, req.Version, dt),
		Content:                         content,
		AddedDate:                       now,
		UpdatedDate:                     now,
		PreRegisteredWorkflowAttachment: trs.Attachments(req.TRSEndpoint, req.ToolID, req.Version, dt, files),
		ServiceID:                       req.ServiceID,
		RunIDs:                          []string{},
	}
	if err := c.commitWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// UpdateWorkflow re-resolves a catalog entry and overwrites the stored
// workflow's type, version, url, content and attachments.
func (c *Console) UpdateWorkflow(ctx context.Context, id string, entry model.ExecutableWorkflow) error {
	if !c.workflows.Has(id) {
		return model.NewIntegrityError("workflow", id)
	}
	content, err := c.resolver.WorkflowContent(ctx, entry)
	if err != nil {
		return err
	}
	now := c.timestamp()
	c.workflows.Update(id, func(wf *model.Workflow) {
		wf.Type = entry.WorkflowType
		wf.Version = entry.WorkflowTypeVersion
		wf.URL = entry.WorkflowURL
		wf.Content = content
		wf.PreRegisteredWorkflowAttachment = append([]model.AttachedFile{}, entry.WorkflowAttachment...)
		wf.UpdatedDate = now
	})
	return nil
}

// DeleteWorkflows removes workflows and their runs. Pre-registered workflows
// are kept unless force is set. It returns the ids actually deleted.
func (c *Console) DeleteWorkflows(ids []string, force bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteWorkflows(ids, force)
}

func (c *Console) deleteWorkflows(ids []string, force bool) []string {
	deleted := []string{}
	for _, id := range ids {
		wf, ok := c.workflows.Get(id)
		if !ok || (wf.PreRegistered && !force) {
			continue
		}

		runIDs := wf.RunIDs
		for _, r := range c.runs.ListByWorkflow(id) {
			runIDs = model.WithID(runIDs, r.ID)
		}
		c.deleteRuns(runIDs)

		c.services.RemoveWorkflowID(wf.ServiceID, id)
		if c.workflows.Delete(id) {
			deleted = append(deleted, id)
			c.logger.Info("workflow deleted", "workflow_id", id, "runs", len(runIDs))
		}
	}
	return deleted
}

// ClearWorkflows deletes every workflow; pre-registered ones only with force.
func (c *Console) ClearWorkflows(force bool) []string {
	ids := []string{}
	for _, wf := range c.workflows.List() {
		ids = append(ids, wf.ID)
	}
	return c.DeleteWorkflows(ids, force)
}

// WorkflowParameters lists the declared inputs of a stored workflow.
func (c *Console) WorkflowParameters(id string) ([]inspect.Parameter, error) {
	wf, ok := c.workflows.Get(id)
	if !ok {
		return nil, model.NewIntegrityError("workflow", id)
	}
	if wf.Content == "" {
		return []inspect.Parameter{}, nil
	}
	params, err := inspect.ExtractParameters(wf.Content)
	var pe *model.ParseError
	if errors.As(err, &pe) {
		return []inspect.Parameter{}, nil
	}
	return params, err
}
