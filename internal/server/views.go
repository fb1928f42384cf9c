package server

import (
	"time"

	"github.com/me/wesconsole/internal/inspect"
	"github.com/me/wesconsole/pkg/model"
	"github.com/me/wesconsole/pkg/wes"
)

// serviceView adds the derived fields front ends display.
type serviceView struct {
	*model.Service
	StateColor         string                   `json:"state_color"`
	Dialect            wes.Dialect              `json:"dialect"`
	RegisteredOnlyMode bool                     `json:"registered_only_mode"`
	WorkflowAttachment bool                     `json:"workflow_attachment"`
	GetRuns            bool                     `json:"get_runs"`
	Engines            []model.WorkflowEngine   `json:"workflow_engines"`
	Languages          []model.WorkflowLanguage `json:"workflow_languages"`
}

func newServiceView(svc *model.Service) serviceView {
	info := svc.ServiceInfo
	return serviceView{
		Service:            svc,
		StateColor:         svc.State.Color(),
		Dialect:            wes.ParseWesVersion(info.SupportedWesVersions),
		RegisteredOnlyMode: info.RegisteredOnlyMode(),
		WorkflowAttachment: info.SupportsWorkflowAttachment(),
		GetRuns:            info.SupportsGetRuns(),
		Engines:            info.WorkflowEngines(),
		Languages:          info.WorkflowLanguages(),
	}
}

func serviceViews(svcs []*model.Service) []serviceView {
	out := make([]serviceView, 0, len(svcs))
	for _, svc := range svcs {
		out = append(out, newServiceView(svc))
	}
	return out
}

type workflowView struct {
	*model.Workflow
	TypeVersion string              `json:"type_version"`
	DisplayDate time.Time           `json:"display_date"`
	Parameters  []inspect.Parameter `json:"parameters,omitempty"`
}

func newWorkflowView(wf *model.Workflow) workflowView {
	return workflowView{Workflow: wf, TypeVersion: wf.TypeVersion(), DisplayDate: wf.DisplayDate()}
}

func workflowViews(wfs []*model.Workflow) []workflowView {
	out := make([]workflowView, 0, len(wfs))
	for _, wf := range wfs {
		out = append(out, newWorkflowView(wf))
	}
	return out
}

type runView struct {
	*model.Run
	StateColor string `json:"state_color"`
	Terminal   bool   `json:"terminal"`
}

func newRunView(run *model.Run) runView {
	return runView{Run: run, StateColor: run.State.Color(), Terminal: run.State.IsTerminal()}
}

func runViews(runs []*model.Run) []runView {
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, newRunView(run))
	}
	return out
}
