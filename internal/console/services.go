package console

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/me/wesconsole/internal/resolve"
	"github.com/me/wesconsole/pkg/model"
	"github.com/me/wesconsole/pkg/wes"
)

// ServiceRequest registers a WES endpoint.
type ServiceRequest struct {
	Name          string `json:"name" yaml:"name"`
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	PreRegistered bool   `json:"pre_registered" yaml:"-"`
}

// SubmitService registers a service. An unreachable endpoint is not an
// error: the service is stored in the Disconnect state with an empty
// service-info so it can be refreshed later. Catalog entries advertised by
// the service become pre-registered workflows before the service is committed.
func (c *Console) SubmitService(ctx context.Context, req ServiceRequest) (*model.Service, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.NewValidationError("name", "must not be empty")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(req.Endpoint), "/")
	if !resolve.ValidURL(endpoint) {
		return nil, model.NewValidationError("endpoint", "must be an absolute http(s) URL")
	}

	id := c.newID()
	now := c.timestamp()
	svc := &model.Service{
		ID:            id,
		Name:          name,
		Endpoint:      endpoint,
		State:         model.ServiceStateAvailable,
		AddedDate:     now,
		UpdatedDate:   now,
		PreRegistered: req.PreRegistered,
		WorkflowIDs:   []string{},
		RunIDs:        []string{},
	}

	info, err := c.wes.GetServiceInfo(ctx, endpoint)
	if err != nil {
		c.logger.Warn("service unreachable", "service_id", id, "endpoint", endpoint, "error", err)
		svc.State = model.ServiceStateDisconnect
		svc.ServiceInfo = model.EmptyServiceInfo()
		c.services.Put(svc)
		return svc, nil
	}
	svc.ServiceInfo = *info

	catalog, err := c.wes.GetExecutableWorkflows(ctx, endpoint, info)
	if err != nil {
		c.logger.Warn("fetch executable workflows failed", "service_id", id, "error", err)
	}
	var workflows []*model.Workflow
	for _, entry := range catalog {
		wf, err := c.catalogWorkflow(ctx, id, entry)
		if err != nil {
			c.logger.Warn("skip catalog workflow", "service_id", id, "workflow", entry.WorkflowName, "error", err)
			continue
		}
		workflows = append(workflows, wf)
		svc.WorkflowIDs = model.WithID(svc.WorkflowIDs, wf.ID)
	}

	c.mu.Lock()
	for _, wf := range workflows {
		c.workflows.Put(wf)
	}
	c.services.Put(svc)
	c.mu.Unlock()
	c.logger.Info("service registered", "service_id", id, "name", name,
		"dialect", wes.ParseWesVersion(info.SupportedWesVersions), "workflows", len(svc.WorkflowIDs))
	return svc, nil
}

// UpdateService re-fetches service-info and reconciles the pre-registered
// workflows against the advertised catalog. A failed fetch degrades the
// service to Disconnect and is not returned as an error.
func (c *Console) UpdateService(ctx context.Context, id string) (*model.Service, error) {
	svc, ok := c.services.Get(id)
	if !ok {
		return nil, model.NewIntegrityError("service", id)
	}

	info, err := c.wes.GetServiceInfo(ctx, svc.Endpoint)
	if err != nil {
		c.logger.Debug("service refresh failed", "service_id", id, "error", err)
		c.services.Update(id, func(s *model.Service) {
			s.State = model.ServiceStateDisconnect
			s.UpdatedDate = c.timestamp()
		})
		return c.currentService(id)
	}

	c.services.Update(id, func(s *model.Service) { s.ServiceInfo = *info })

	if wes.ParseWesVersion(info.SupportedWesVersions).Capabilities().Catalog != wes.CatalogNone {
		catalog, err := c.wes.GetExecutableWorkflows(ctx, svc.Endpoint, info)
		if err != nil {
			c.logger.Warn("catalog refresh failed", "service_id", id, "error", err)
		} else {
			c.reconcileCatalog(ctx, id, catalog)
		}
	}

	c.services.Update(id, func(s *model.Service) {
		s.State = model.ServiceStateAvailable
		s.UpdatedDate = c.timestamp()
	})
	return c.currentService(id)
}

// currentService re-reads a service after a remote call; it may have been
// deleted in the meantime.
func (c *Console) currentService(id string) (*model.Service, error) {
	svc, ok := c.services.Get(id)
	if !ok {
		return nil, model.NewIntegrityError("service", id)
	}
	return svc, nil
}

// reconcileCatalog diffs advertised and local pre-registered workflows by
// name. Matching names are updated when the entry changed, remote-only names
// are added and local-only names are force deleted.
func (c *Console) reconcileCatalog(ctx context.Context, serviceID string, catalog []model.ExecutableWorkflow) {
	remote := map[string]model.ExecutableWorkflow{}
	for _, e := range catalog {
		if _, dup := remote[e.WorkflowName]; !dup {
			remote[e.WorkflowName] = e
		}
	}
	local := map[string]*model.Workflow{}
	for _, wf := range c.workflows.ListByService(serviceID) {
		if !wf.PreRegistered {
			continue
		}
		if _, dup := local[wf.Name]; !dup {
			local[wf.Name] = wf
		}
	}

	names := make([]string, 0, len(remote)+len(local))
	for n := range remote {
		names = append(names, n)
	}
	for n := range local {
		if _, ok := remote[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		entry, inRemote := remote[name]
		wf, inLocal := local[name]
		switch {
		case inRemote && inLocal:
			if wf.MatchesCatalogEntry(entry) {
				continue
			}
			if err := c.UpdateWorkflow(ctx, wf.ID, entry); err != nil {
				c.logger.Warn("update catalog workflow failed", "service_id", serviceID, "workflow", name, "error", err)
			}
		case inRemote:
			if _, err := c.createWorkflow(ctx, serviceID, entry); err != nil {
				c.logger.Warn("add catalog workflow failed", "service_id", serviceID, "workflow", name, "error", err)
			}
		default:
			c.DeleteWorkflows([]string{wf.ID}, true)
		}
	}
}

// UpdateAllServices refreshes every service concurrently.
func (c *Console) UpdateAllServices(ctx context.Context) {
	var g errgroup.Group
	if c.parallelism > 0 {
		g.SetLimit(c.parallelism)
	}
	for _, svc := range c.services.List() {
		g.Go(func() error {
			if _, err := c.UpdateService(ctx, svc.ID); err != nil {
				c.logger.Debug("service refresh skipped", "service_id", svc.ID, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// DeleteServices removes services and everything that references them.
// Pre-registered services are kept unless force is set. It returns the ids
// actually deleted.
func (c *Console) DeleteServices(ids []string, force bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := []string{}
	for _, id := range ids {
		svc, ok := c.services.Get(id)
		if !ok || (svc.PreRegistered && !force) {
			continue
		}

		runIDs := svc.RunIDs
		for _, r := range c.runs.ListByService(id) {
			runIDs = model.WithID(runIDs, r.ID)
		}
		c.deleteRuns(runIDs)

		workflowIDs := svc.WorkflowIDs
		for _, wf := range c.workflows.ListByService(id) {
			workflowIDs = model.WithID(workflowIDs, wf.ID)
		}
		c.deleteWorkflows(workflowIDs, true)

		if c.services.Delete(id) {
			deleted = append(deleted, id)
			c.logger.Info("service deleted", "service_id", id, "workflows", len(workflowIDs), "runs", len(runIDs))
		}
	}
	return deleted
}

// ClearServices deletes every service; pre-registered ones only with force.
func (c *Console) ClearServices(force bool) []string {
	ids := []string{}
	for _, svc := range c.services.List() {
		ids = append(ids, svc.ID)
	}
	return c.DeleteServices(ids, force)
}

// RegisterPreRegisteredServices submits the configured services whose name
// is not registered yet.
func (c *Console) RegisterPreRegisteredServices(ctx context.Context, reqs []ServiceRequest) ([]*model.Service, error) {
	var (
		added []*model.Service
		errs  []error
	)
	for _, req := range reqs {
		if _, exists := c.services.FindByName(req.Name); exists {
			c.logger.Debug("pre-registered service already present", "name", req.Name)
			continue
		}
		req.PreRegistered = true
		svc, err := c.SubmitService(ctx, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		added = append(added, svc)
	}
	return added, errors.Join(errs...)
}
