package model

import "time"

// Workflow is an executable workflow document associated with one service.
type Workflow struct {
	ID                              string         `json:"id"`
	Name                            string         `json:"name"`
	Type                            string         `json:"type"`
	Version                         string         `json:"version"`
	URL                             string         `json:"url"`
	Content                         string         `json:"content"`
	AddedDate                       time.Time      `json:"added_date"`
	UpdatedDate                     time.Time      `json:"updated_date"`
	PreRegistered                   bool           `json:"pre_registered"`
	PreRegisteredWorkflowAttachment []AttachedFile `json:"pre_registered_workflow_attachment"`
	ServiceID                       string         `json:"service_id"`
	RunIDs                          []string       `json:"run_ids"`
}

// Clone returns a copy that shares no slices with w.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.RunIDs = cloneIDs(w.RunIDs)
	if w.PreRegisteredWorkflowAttachment == nil {
		c.PreRegisteredWorkflowAttachment = []AttachedFile{}
	} else {
		c.PreRegisteredWorkflowAttachment = append([]AttachedFile(nil), w.PreRegisteredWorkflowAttachment...)
	}
	return &c
}

// TypeVersion renders "<type> <version>" for listings.
func (w *Workflow) TypeVersion() string {
	if w.Version == "" {
		return w.Type
	}
	return w.Type + " " + w.Version
}

// DisplayDate is the last update for pre-registered workflows and the import date otherwise.
func (w *Workflow) DisplayDate() time.Time {
	if w.PreRegistered {
		return w.UpdatedDate
	}
	return w.AddedDate
}

// MatchesCatalogEntry reports whether w already mirrors the advertised entry.
func (w *Workflow) MatchesCatalogEntry(e ExecutableWorkflow) bool {
	if w.Type != e.WorkflowType || w.Version != e.WorkflowTypeVersion || w.URL != e.WorkflowURL {
		return false
	}
	if len(w.PreRegisteredWorkflowAttachment) != len(e.WorkflowAttachment) {
		return false
	}
	for i, f := range w.PreRegisteredWorkflowAttachment {
		if f != e.WorkflowAttachment[i] {
			return false
		}
	}
	return true
}
