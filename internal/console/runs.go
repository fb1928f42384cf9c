package console

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/me/wesconsole/internal/inspect"
	"github.com/me/wesconsole/internal/resolve"
	"github.com/me/wesconsole/pkg/model"
	"github.com/me/wesconsole/pkg/wes"
)

// RunAttachment is a user file uploaded with a run. Name overrides the
// file's own name when set.
type RunAttachment struct {
	FileName string `json:"file_name"`
	Name     string `json:"name,omitempty"`
	Data     []byte `json:"data"`
}

func (a RunAttachment) uploadName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.FileName
}

// RunRequest describes a run to submit for a stored workflow.
type RunRequest struct {
	ServiceID    string          `json:"service_id"`
	WorkflowID   string          `json:"workflow_id"`
	Name         string          `json:"name"`
	EngineName   string          `json:"engine_name"`
	EngineParams string          `json:"engine_params"`
	Tags         string          `json:"tags"`
	Params       string          `json:"params"`
	Attachments  []RunAttachment `json:"attachments"`
}

// ExecuteRun submits a run and tracks it. Nothing is stored when the
// submission fails. The initial state comes from a status request sent right
// after submission; the run log is fetched on a best-effort basis.
func (c *Console) ExecuteRun(ctx context.Context, req RunRequest) (*model.Run, error) {
	svc, ok := c.services.Get(req.ServiceID)
	if !ok {
		return nil, model.NewIntegrityError("service", req.ServiceID)
	}
	wf, ok := c.workflows.Get(req.WorkflowID)
	if !ok {
		return nil, model.NewIntegrityError("workflow", req.WorkflowID)
	}
	if wf.ServiceID != svc.ID {
		return nil, model.NewValidationError("workflow_id", fmt.Sprintf("workflow %s does not belong to service %s", wf.ID, svc.ID))
	}

	wesReq, uploads, err := c.buildRunRequest(ctx, svc, wf, req)
	if err != nil {
		return nil, err
	}

	runID, err := c.wes.PostRuns(ctx, svc.Endpoint, wesReq, uploads)
	if err != nil {
		return nil, err
	}

	state := model.RunStateUnknown
	if status, err := c.wes.GetRunsIDStatus(ctx, svc.Endpoint, runID); err != nil {
		c.logger.Warn("initial run status failed", "run_id", runID, "error", err)
	} else {
		state = status.State
	}
	var runLog model.RunLog
	if log, err := c.wes.GetRunsID(ctx, svc.Endpoint, runID); err != nil {
		c.logger.Warn("initial run log failed", "run_id", runID, "error", err)
	} else {
		runLog = *log
		if state == model.RunStateUnknown {
			state = log.State
		}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = runID
	}
	now := c.timestamp()
	run := &model.Run{
		ID:          runID,
		Name:        name,
		State:       state,
		AddedDate:   now,
		UpdatedDate: now,
		ServiceID:   svc.ID,
		WorkflowID:  wf.ID,
		RunLog:      runLog,
	}

	if err := c.commitRun(run, svc.Endpoint); err != nil {
		c.logger.Warn("submitted run not tracked", "run_id", runID, "endpoint", svc.Endpoint, "error", err)
		return nil, err
	}
	c.logger.Info("run created", "run_id", runID, "service_id", svc.ID, "workflow_id", wf.ID, "state", state)
	return run, nil
}

// commitRun links run into its service and workflow, then stores it. It
// fails when either parent was deleted while the run was being submitted, or
// when the run id is already tracked for another service.
func (c *Console) commitRun(run *model.Run, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.services.Has(run.ServiceID) {
		return model.NewIntegrityError("service", run.ServiceID)
	}
	if !c.workflows.Has(run.WorkflowID) {
		return model.NewIntegrityError("workflow", run.WorkflowID)
	}
	if existing, ok := c.runs.Get(run.ID); ok && existing.ServiceID != run.ServiceID {
		return &model.SubmissionError{
			Endpoint: endpoint,
			RunID:    run.ID,
			Err:      fmt.Errorf("run id already tracked for service %s", existing.ServiceID),
		}
	}
	c.services.AddRunID(run.ServiceID, run.ID)
	c.workflows.AddRunID(run.WorkflowID, run.ID)
	c.runs.Put(run)
	return nil
}

// buildRunRequest assembles the POST /runs form for the service's dialect.
// Registered-only services receive the workflow name; others receive the
// workflow type, version and url, plus the workflow document itself when the
// url is relative and the service accepts uploads.
func (c *Console) buildRunRequest(ctx context.Context, svc *model.Service, wf *model.Workflow, req RunRequest) (wes.RunRequest, []wes.Attachment, error) {
	info := svc.ServiceInfo
	dialect := wes.ParseWesVersion(info.SupportedWesVersions)

	tags, err := runTags(req.Tags, wf.Name)
	if err != nil {
		return wes.RunRequest{}, nil, err
	}
	params := strings.TrimSpace(req.Params)
	switch {
	case params == "":
		params = "{}"
	case inspect.IsYAML(params):
		params = inspect.YAMLToJSON(params)
	}

	wesReq := wes.RunRequest{
		WorkflowParams:           params,
		Tags:                     tags,
		WorkflowEngineName:       req.EngineName,
		WorkflowEngineParameters: req.EngineParams,
	}
	var uploads []wes.Attachment

	if info.RegisteredOnlyMode() {
		wesReq.WorkflowName = wf.Name
	} else {
		wesReq.WorkflowType = wf.Type
		wesReq.WorkflowTypeVersion = wf.Version
		wesReq.WorkflowURL = wf.URL
		if resolve.ValidURL(wf.URL) {
			wesReq.WorkflowURL = c.resolver.ConvertGitHubURL(ctx, wf.URL)
		} else if info.SupportsWorkflowAttachment() && wf.URL != "" {
			uploads = append(uploads, wes.Attachment{Name: wf.URL, Data: []byte(wf.Content)})
		}
		wesReq.WorkflowAttachment = wf.PreRegisteredWorkflowAttachment
	}

	if info.SupportsWorkflowAttachment() {
		for _, a := range req.Attachments {
			uploads = append(uploads, wes.Attachment{Name: a.uploadName(), Data: a.Data})
		}
	}
	return wesReq.For(dialect), uploads, nil
}

// runTags decodes the user's tags object and names the workflow in it
// unless the user already did.
func runTags(raw, workflowName string) (string, error) {
	tags := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return "", model.NewValidationError("tags", "must be a JSON object")
		}
		if tags == nil {
			tags = map[string]any{}
		}
	}
	if _, ok := tags["workflow_name"]; !ok {
		tags["workflow_name"] = workflowName
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

// UpdateRun polls a run's status and log. A failed status poll sets the
// state to UNKNOWN; UpdatedDate is advanced either way.
func (c *Console) UpdateRun(ctx context.Context, id string) (*model.Run, error) {
	run, ok := c.runs.Get(id)
	if !ok {
		return nil, model.NewIntegrityError("run", id)
	}
	svc, ok := c.services.Get(run.ServiceID)
	if !ok {
		c.setRunState(id, model.RunStateUnknown)
		return c.currentRun(id)
	}

	status, err := c.wes.GetRunsIDStatus(ctx, svc.Endpoint, id)
	if err != nil {
		c.logger.Debug("run status poll failed", "run_id", id, "error", err)
		c.setRunState(id, model.RunStateUnknown)
		return c.currentRun(id)
	}
	c.setRunState(id, status.State)

	if log, err := c.wes.GetRunsID(ctx, svc.Endpoint, id); err != nil {
		c.logger.Debug("run log poll failed", "run_id", id, "error", err)
	} else {
		c.runs.Update(id, func(r *model.Run) { r.RunLog = *log })
	}
	return c.currentRun(id)
}

// currentRun re-reads a run after a remote call; it may have been deleted
// in the meantime.
func (c *Console) currentRun(id string) (*model.Run, error) {
	run, ok := c.runs.Get(id)
	if !ok {
		return nil, model.NewIntegrityError("run", id)
	}
	return run, nil
}

func (c *Console) setRunState(id string, state model.RunState) {
	now := c.timestamp()
	c.runs.Update(id, func(r *model.Run) {
		r.State = state
		r.UpdatedDate = now
	})
}

// trackedRunIDs is the union of the service's run links and the runs that
// point at the service.
func (c *Console) trackedRunIDs(svc *model.Service) []string {
	ids := svc.RunIDs
	for _, r := range c.runs.ListByService(svc.ID) {
		ids = model.WithID(ids, r.ID)
	}
	return ids
}

// UpdateAllRunsStateByService refreshes the state of every run of a service.
// Services that allow it are read through the paginated run listing; runs
// absent from the listing become UNKNOWN. Otherwise, or when the listing
// fails, each run is polled individually. Per-run failures only degrade
// that run.
func (c *Console) UpdateAllRunsStateByService(ctx context.Context, serviceID string) error {
	svc, ok := c.services.Get(serviceID)
	if !ok {
		return model.NewIntegrityError("service", serviceID)
	}
	ids := c.trackedRunIDs(svc)
	if len(ids) == 0 {
		return nil
	}

	if svc.ServiceInfo.SupportsGetRuns() {
		listed, err := c.wes.ListAllRuns(ctx, svc.Endpoint, c.runPageSize)
		if err == nil {
			states := make(map[string]model.RunState, len(listed))
			for _, r := range listed {
				states[r.RunID] = r.State.Normalize()
			}
			for _, id := range ids {
				state, found := states[id]
				if !found {
					state = model.RunStateUnknown
				}
				c.setRunState(id, state)
			}
			return nil
		}
		c.logger.Warn("run listing failed, polling runs individually", "service_id", serviceID, "error", err)
	}

	var g errgroup.Group
	if c.parallelism > 0 {
		g.SetLimit(c.parallelism)
	}
	for _, id := range ids {
		g.Go(func() error {
			status, err := c.wes.GetRunsIDStatus(ctx, svc.Endpoint, id)
			if err != nil {
				c.logger.Debug("run status poll failed", "run_id", id, "error", err)
				c.setRunState(id, model.RunStateUnknown)
				return nil
			}
			c.setRunState(id, status.State)
			return nil
		})
	}
	return g.Wait()
}

// UpdateAllRunsState refreshes run states for every service concurrently.
func (c *Console) UpdateAllRunsState(ctx context.Context) {
	var g errgroup.Group
	if c.parallelism > 0 {
		g.SetLimit(c.parallelism)
	}
	for _, svc := range c.services.List() {
		g.Go(func() error {
			if err := c.UpdateAllRunsStateByService(ctx, svc.ID); err != nil {
				c.logger.Debug("run refresh skipped", "service_id", svc.ID, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// CancelRun asks the service to cancel a run. Runs that are not in a
// cancelable state are left alone and no request is sent. The local state
// is not changed; the next poll observes the transition.
func (c *Console) CancelRun(ctx context.Context, id string) (bool, error) {
	run, ok := c.runs.Get(id)
	if !ok {
		return false, model.NewIntegrityError("run", id)
	}
	if !run.State.IsCancelable() {
		c.logger.Debug("cancel skipped", "run_id", id, "state", run.State)
		return false, nil
	}
	svc, ok := c.services.Get(run.ServiceID)
	if !ok {
		return false, model.NewIntegrityError("service", run.ServiceID)
	}
	if _, err := c.wes.PostRunsIDCancel(ctx, svc.Endpoint, id); err != nil {
		return false, err
	}
	c.logger.Info("run cancel requested", "run_id", id, "service_id", svc.ID)
	return true, nil
}

// DeleteRuns unlinks each run from its service and workflow, then removes it.
// It returns the ids actually deleted.
func (c *Console) DeleteRuns(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteRuns(ids)
}

func (c *Console) deleteRuns(ids []string) []string {
	deleted := []string{}
	for _, id := range ids {
		run, ok := c.runs.Get(id)
		if !ok {
			continue
		}
		c.services.RemoveRunID(run.ServiceID, id)
		c.workflows.RemoveRunID(run.WorkflowID, id)
		if c.runs.Delete(id) {
			deleted = append(deleted, id)
		}
	}
	if len(deleted) > 0 {
		c.logger.Info("runs deleted", "count", len(deleted))
	}
	return deleted
}

// ClearRuns deletes every run.
func (c *Console) ClearRuns() []string {
	ids := []string{}
	for _, r := range c.runs.List() {
		ids = append(ids, r.ID)
	}
	return c.DeleteRuns(ids)
}
