package model

import (
	"slices"
	"time"
)

// Service is a registered remote WES endpoint.
type Service struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Endpoint      string       `json:"endpoint"`
	State         ServiceState `json:"state"`
	AddedDate     time.Time    `json:"added_date"`
	UpdatedDate   time.Time    `json:"updated_date"`
	PreRegistered bool         `json:"pre_registered"`
	WorkflowIDs   []string     `json:"workflow_ids"`
	RunIDs        []string     `json:"run_ids"`
	ServiceInfo   ServiceInfo  `json:"service_info"`
}

// Clone returns a deep copy of the id lists; the service info is shared read-only.
func (s *Service) Clone() *Service {
	c := *s
	c.WorkflowIDs = cloneIDs(s.WorkflowIDs)
	c.RunIDs = cloneIDs(s.RunIDs)
	return &c
}

// HasWorkflow reports whether id is linked to this service.
func (s *Service) HasWorkflow(id string) bool {
	return slices.Contains(s.WorkflowIDs, id)
}

// HasRun reports whether id is linked to this service.
func (s *Service) HasRun(id string) bool {
	return slices.Contains(s.RunIDs, id)
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}

// addID appends id unless present.
func addID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// removeID drops every occurrence of id.
func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}

// WithID returns ids with id added once.
func WithID(ids []string, id string) []string {
	return addID(cloneIDs(ids), id)
}

// WithoutID returns ids with id removed.
func WithoutID(ids []string, id string) []string {
	return removeID(cloneIDs(ids), id)
}
