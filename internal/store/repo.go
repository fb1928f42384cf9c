package store

import (
	"sort"
	"sync"
	"time"

	"github.com/me/wesconsole/pkg/model"
)

// table is a mutex-guarded map that hands out copies. Every repository
// mutates its entities only through update, which is a no-op for missing ids.
type table[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
	clone func(*T) *T
}

func newTable[T any](clone func(*T) *T) *table[T] {
	return &table[T]{items: map[string]*T{}, clone: clone}
}

func (t *table[T]) get(id string) (*T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[id]
	if !ok {
		return nil, false
	}
	return t.clone(v), true
}

func (t *table[T]) has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.items[id]
	return ok
}

func (t *table[T]) list(keep func(*T) bool) []*T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*T, 0, len(t.items))
	for _, v := range t.items {
		if keep == nil || keep(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

func (t *table[T]) put(id string, v *T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[id] = t.clone(v)
}

// update applies fn to the stored entity and reports whether it existed.
func (t *table[T]) update(id string, fn func(*T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[id]
	if !ok {
		return false
	}
	c := t.clone(v)
	fn(c)
	t.items[id] = c
	return true
}

func (t *table[T]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.items[id]
	delete(t.items, id)
	return ok
}

func (t *table[T]) replace(all []*T, id func(*T) string) {
	items := make(map[string]*T, len(all))
	for _, v := range all {
		items[id(v)] = t.clone(v)
	}
	t.mu.Lock()
	t.items = items
	t.mu.Unlock()
}

func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func byAdded[T any](items []*T, added func(*T) time.Time, id func(*T) string) []*T {
	sort.Slice(items, func(i, j int) bool {
		ai, aj := added(items[i]), added(items[j])
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return id(items[i]) < id(items[j])
	})
	return items
}

// ServiceRepo holds registered services.
type ServiceRepo struct {
	t *table[model.Service]
}

// NewServiceRepo returns an empty repository.
func NewServiceRepo() *ServiceRepo {
	return &ServiceRepo{t: newTable((*model.Service).Clone)}
}

func svcKey(s *model.Service) string { return s.ID }
func svcAdded(s *model.Service) time.Time { return s.AddedDate }
func wfKey(w *model.Workflow) string { return w.ID }
func wfAdded(w *model.Workflow) time.Time { return w.AddedDate }
func runKey(r *model.Run) string { return r.ID }
func runAdded(r *model.Run) time.Time { return r.AddedDate }

// Get returns a copy of the service.
func (r *ServiceRepo) Get(id string) (*model.Service, bool) { return r.t.get(id) }

// Has reports whether id is present.
func (r *ServiceRepo) Has(id string) bool { return r.t.has(id) }

// List returns all services, oldest first.
func (r *ServiceRepo) List() []*model.Service {
	return byAdded(r.t.list(nil), svcAdded, svcKey)
}

// FindByName returns the first service with the given name.
func (r *ServiceRepo) FindByName(name string) (*model.Service, bool) {
	for _, s := range r.List() {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Put inserts or replaces a service.
func (r *ServiceRepo) Put(s *model.Service) { r.t.put(s.ID, s) }

// Update mutates a stored service. Missing ids are ignored.
func (r *ServiceRepo) Update(id string, fn func(*model.Service)) bool { return r.t.update(id, fn) }

// Delete removes a service.
func (r *ServiceRepo) Delete(id string) bool { return r.t.remove(id) }

// Replace swaps the whole collection.
func (r *ServiceRepo) Replace(all []*model.Service) { r.t.replace(all, svcKey) }

// Len returns the number of services.
func (r *ServiceRepo) Len() int { return r.t.len() }

// AddWorkflowID links a workflow. It is idempotent.
func (r *ServiceRepo) AddWorkflowID(serviceID, workflowID string) {
	r.t.update(serviceID, func(s *model.Service) { s.WorkflowIDs = model.WithID(s.WorkflowIDs, workflowID) })
}

// RemoveWorkflowID unlinks a workflow. Absent ids are ignored.
func (r *ServiceRepo) RemoveWorkflowID(serviceID, workflowID string) {
	r.t.update(serviceID, func(s *model.Service) { s.WorkflowIDs = model.WithoutID(s.WorkflowIDs, workflowID) })
}

// AddRunID links a run. It is idempotent.
func (r *ServiceRepo) AddRunID(serviceID, runID string) {
	r.t.update(serviceID, func(s *model.Service) { s.RunIDs = model.WithID(s.RunIDs, runID) })
}

// RemoveRunID unlinks a run. Absent ids are ignored.
func (r *ServiceRepo) RemoveRunID(serviceID, runID string) {
	r.t.update(serviceID, func(s *model.Service) { s.RunIDs = model.WithoutID(s.RunIDs, runID) })
}

// WorkflowRepo holds workflows.
type WorkflowRepo struct {
	t *table[model.Workflow]
}

// NewWorkflowRepo returns an empty repository.
func NewWorkflowRepo() *WorkflowRepo {
	return &WorkflowRepo{t: newTable((*model.Workflow).Clone)}
}

func (r *WorkflowRepo) Get(id string) (*model.Workflow, bool) { return r.t.get(id) }
func (r *WorkflowRepo) Has(id string) bool { return r.t.has(id) }

// List returns all workflows, oldest first.
func (r *WorkflowRepo) List() []*model.Workflow {
	return byAdded(r.t.list(nil), wfAdded, wfKey)
}

// ListByService returns the workflows whose ServiceID is serviceID.
func (r *WorkflowRepo) ListByService(serviceID string) []*model.Workflow {
	return byAdded(r.t.list(func(w *model.Workflow) bool { return w.ServiceID == serviceID }), wfAdded, wfKey)
}

func (r *WorkflowRepo) Put(w *model.Workflow) { r.t.put(w.ID, w) }
func (r *WorkflowRepo) Update(id string, fn func(*model.Workflow)) bool { return r.t.update(id, fn) }
func (r *WorkflowRepo) Delete(id string) bool { return r.t.remove(id) }
func (r *WorkflowRepo) Replace(all []*model.Workflow) { r.t.replace(all, wfKey) }
func (r *WorkflowRepo) Len() int { return r.t.len() }

// AddRunID links a run. It is idempotent.
func (r *WorkflowRepo) AddRunID(workflowID, runID string) {
	r.t.update(workflowID, func(w *model.Workflow) { w.RunIDs = model.WithID(w.RunIDs, runID) })
}

// RemoveRunID unlinks a run. Absent ids are ignored.
func (r *WorkflowRepo) RemoveRunID(workflowID, runID string) {
	r.t.update(workflowID, func(w *model.Workflow) { w.RunIDs = model.WithoutID(w.RunIDs, runID) })
}

// RunRepo holds runs keyed by the remote run id.
type RunRepo struct {
	t *table[model.Run]
}

// NewRunRepo returns an empty repository.
func NewRunRepo() *RunRepo {
	return &RunRepo{t: newTable((*model.Run).Clone)}
}

func (r *RunRepo) Get(id string) (*model.Run, bool) { return r.t.get(id) }
func (r *RunRepo) Has(id string) bool { return r.t.has(id) }

// List returns all runs, oldest first.
func (r *RunRepo) List() []*model.Run {
	return byAdded(r.t.list(nil), runAdded, runKey)
}

// ListByService returns the runs whose ServiceID is serviceID.
func (r *RunRepo) ListByService(serviceID string) []*model.Run {
	return byAdded(r.t.list(func(run *model.Run) bool { return run.ServiceID == serviceID }), runAdded, runKey)
}

// ListByWorkflow returns the runs whose WorkflowID is workflowID.
func (r *RunRepo) ListByWorkflow(workflowID string) []*model.Run {
	return byAdded(r.t.list(func(run *model.Run) bool { return run.WorkflowID == workflowID }), runAdded, runKey)
}

func (r *RunRepo) Put(run *model.Run) { r.t.put(run.ID, run) }
func (r *RunRepo) Update(id string, fn func(*model.Run)) bool { return r.t.update(id, fn) }
func (r *RunRepo) Delete(id string) bool { return r.t.remove(id) }
func (r *RunRepo) Replace(all []*model.Run) { r.t.replace(all, runKey) }
func (r *RunRepo) Len() int { return r.t.len() }
