package model

import "time"

// Run is one execution attempt of a workflow against a service.
// ID is the identifier assigned by the remote service.
type Run struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       RunState  `json:"state"`
	AddedDate   time.Time `json:"added_date"`
	UpdatedDate time.Time `json:"updated_date"`
	ServiceID   string    `json:"service_id"`
	WorkflowID  string    `json:"workflow_id"`
	RunLog      RunLog    `json:"run_log"`
}

// Clone returns a shallow copy; the run log is replaced wholesale on update, never mutated.
func (r *Run) Clone() *Run {
	c := *r
	return &c
}
