// Package console coordinates the service, workflow and run repositories.
// It is the only place where an operation touches more than one repository:
// link registration, cascading deletes and catalog reconciliation live here.
package console

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/wesconsole/internal/resolve"
	"github.com/me/wesconsole/internal/store"
	"github.com/me/wesconsole/pkg/model"
	"github.com/me/wesconsole/pkg/trs"
	"github.com/me/wesconsole/pkg/wes"
)

// DefaultRunPageSize is the page size used when listing runs for bulk refresh.
const DefaultRunPageSize = 100

// Console is the façade over the three repositories.
type Console struct {
	// mu serializes commits that check a parent id against deletes that
	// cascade across repositories.
	mu sync.Mutex

	services  *store.ServiceRepo
	workflows *store.WorkflowRepo
	runs      *store.RunRepo

	wes      *wes.Client
	trs      *trs.Client
	resolver *resolve.Resolver
	logger   *slog.Logger

	now         func() time.Time
	newID       func() string
	runPageSize int
	parallelism int
}

// Option configures optional Console dependencies.
type Option func(*Console)

// WithTRSClient sets the registry client used by ImportWorkflowFromTRS.
func WithTRSClient(c *trs.Client) Option {
	return func(cs *Console) {
		cs.trs = c
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(cs *Console) {
		cs.now = now
	}
}

// WithIDGenerator replaces the uuid generator for services and workflows.
func WithIDGenerator(gen func() string) Option {
	return func(cs *Console) {
		cs.newID = gen
	}
}

// WithRunPageSize sets the page_size sent when listing runs.
func WithRunPageSize(n int) Option {
	return func(cs *Console) {
		cs.runPageSize = n
	}
}

// WithParallelism bounds concurrent requests during bulk refresh. n <= 0 is unbounded.
func WithParallelism(n int) Option {
	return func(cs *Console) {
		cs.parallelism = n
	}
}

// New creates a Console with empty repositories.
func New(wesClient *wes.Client, resolver *resolve.Resolver, logger *slog.Logger, opts ...Option) *Console {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Console{
		services:    store.NewServiceRepo(),
		workflows:   store.NewWorkflowRepo(),
		runs:        store.NewRunRepo(),
		wes:         wesClient,
		resolver:    resolver,
		logger:      logger.With("component", "console"),
		now:         time.Now,
		newID:       uuid.NewString,
		runPageSize: DefaultRunPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.trs == nil {
		c.trs = trs.NewClient(nil, logger)
	}
	return c
}

func (c *Console) timestamp() time.Time {
	return c.now().UTC()
}

// Service returns a copy of a service.
func (c *Console) Service(id string) (*model.Service, bool) {
	return c.services.Get(id)
}

// Services lists all services, oldest first.
func (c *Console) Services() []*model.Service {
	return c.services.List()
}

// Workflow returns a copy of a workflow.
func (c *Console) Workflow(id string) (*model.Workflow, bool) {
	return c.workflows.Get(id)
}

// Workflows lists workflows, optionally restricted to one service.
func (c *Console) Workflows(serviceID string) []*model.Workflow {
	if serviceID != "" {
		return c.workflows.ListByService(serviceID)
	}
	return c.workflows.List()
}

// Run returns a copy of a run.
func (c *Console) Run(id string) (*model.Run, bool) {
	return c.runs.Get(id)
}

// RunFilter restricts Runs. Empty fields match everything.
type RunFilter struct {
	ServiceID  string
	WorkflowID string
	State      model.RunState
}

// Runs lists runs matching f, oldest first.
func (c *Console) Runs(f RunFilter) []*model.Run {
	var all []*model.Run
	switch {
	case f.WorkflowID != "":
		all = c.runs.ListByWorkflow(f.WorkflowID)
	case f.ServiceID != "":
		all = c.runs.ListByService(f.ServiceID)
	default:
		all = c.runs.List()
	}
	out := all[:0]
	for _, r := range all {
		if f.ServiceID != "" && r.ServiceID != f.ServiceID {
			continue
		}
		if f.State != "" && r.State != f.State {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Dialect is the WES dialect last advertised by a service.
func (c *Console) Dialect(serviceID string) wes.Dialect {
	svc, ok := c.services.Get(serviceID)
	if !ok {
		return wes.DialectWES100
	}
	return wes.ParseWesVersion(svc.ServiceInfo.SupportedWesVersions)
}

// Snapshot copies the current state for persistence.
func (c *Console) Snapshot() *store.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &store.Snapshot{
		Services:  c.services.List(),
		Workflows: c.workflows.List(),
		Runs:      c.runs.List(),
	}
}

// Restore replaces the current state with snap.
func (c *Console) Restore(snap *store.Snapshot) {
	if snap == nil {
		return
	}
	c.mu.Lock()
	c.services.Replace(snap.Services)
	c.workflows.Replace(snap.Workflows)
	c.runs.Replace(snap.Runs)
	c.mu.Unlock()
	c.logger.Info("state restored",
		"services", len(snap.Services), "workflows", len(snap.Workflows), "runs", len(snap.Runs))
}

// Stats counts entities per repository.
type Stats struct {
	Services  int `json:"services"`
	Workflows int `json:"workflows"`
	Runs      int `json:"runs"`
}

// Stats returns entity counts.
func (c *Console) Stats() Stats {
	return Stats{Services: c.services.Len(), Workflows: c.workflows.Len(), Runs: c.runs.Len()}
}
