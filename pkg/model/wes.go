package model

import (
	"encoding/json"
	"sort"
)

// WorkflowTypeVersion lists the language versions a service accepts for one workflow type.
type WorkflowTypeVersion struct {
	WorkflowTypeVersion []string `json:"workflow_type_version"`
}

// DefaultWorkflowEngineParameter describes a default engine parameter advertised by a service.
type DefaultWorkflowEngineParameter struct {
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	DefaultValue string `json:"default_value,omitempty"`
}

// AttachedFile is a sidecar file a pre-registered workflow needs to execute.
type AttachedFile struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// ExecutableWorkflow is one entry of a service's advertised workflow catalog.
type ExecutableWorkflow struct {
	WorkflowName        string         `json:"workflow_name"`
	WorkflowURL         string         `json:"workflow_url"`
	WorkflowType        string         `json:"workflow_type"`
	WorkflowTypeVersion string         `json:"workflow_type_version"`
	WorkflowAttachment  []AttachedFile `json:"workflow_attachment"`
}

// ServiceInfo is the capability document returned by GET /service-info.
type ServiceInfo struct {
	WorkflowTypeVersions            map[string]WorkflowTypeVersion   `json:"workflow_type_versions"`
	SupportedWesVersions            []string                         `json:"supported_wes_versions"`
	SupportedFilesystemProtocols    []string                         `json:"supported_filesystem_protocols"`
	WorkflowEngineVersions          map[string]string                `json:"workflow_engine_versions"`
	DefaultWorkflowEngineParameters []DefaultWorkflowEngineParameter `json:"default_workflow_engine_parameters"`
	SystemStateCounts               map[string]int                   `json:"system_state_counts"`
	AuthInstructionsURL             string                           `json:"auth_instructions_url"`
	ContactInfoURL                  string                           `json:"contact_info_url"`
	Tags                            map[string]any                   `json:"tags"`
	ExecutableWorkflows             []ExecutableWorkflow             `json:"executable_workflows,omitempty"`
}

// EmptyServiceInfo returns the placeholder document stored for unreachable services.
func EmptyServiceInfo() ServiceInfo {
	var si ServiceInfo
	si.Normalize()
	return si
}

// Normalize replaces absent collections with empty ones.
func (si *ServiceInfo) Normalize() {
	if si.WorkflowTypeVersions == nil {
		si.WorkflowTypeVersions = map[string]WorkflowTypeVersion{}
	}
	if si.SupportedWesVersions == nil {
		si.SupportedWesVersions = []string{}
	}
	if si.SupportedFilesystemProtocols == nil {
		si.SupportedFilesystemProtocols = []string{}
	}
	if si.WorkflowEngineVersions == nil {
		si.WorkflowEngineVersions = map[string]string{}
	}
	if si.DefaultWorkflowEngineParameters == nil {
		si.DefaultWorkflowEngineParameters = []DefaultWorkflowEngineParameter{}
	}
	if si.SystemStateCounts == nil {
		si.SystemStateCounts = map[string]int{}
	}
	if si.Tags == nil {
		si.Tags = map[string]any{}
	}
	for i := range si.ExecutableWorkflows {
		if si.ExecutableWorkflows[i].WorkflowAttachment == nil {
			si.ExecutableWorkflows[i].WorkflowAttachment = []AttachedFile{}
		}
	}
}

// tagBool reads a boolean tag; string values "true"/"false" are accepted.
func (si ServiceInfo) tagBool(key string) (value, ok bool) {
	switch v := si.Tags[key].(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true", "True":
			return true, true
		case "false", "False":
			return false, true
		}
	}
	return false, false
}

// RegisteredOnlyMode reports whether the service only runs its own catalog.
func (si ServiceInfo) RegisteredOnlyMode() bool {
	v, ok := si.tagBool("registered_only_mode")
	return ok && v
}

// SupportsWorkflowAttachment is false only when the service explicitly disables uploads.
func (si ServiceInfo) SupportsWorkflowAttachment() bool {
	v, ok := si.tagBool("workflow_attachment")
	return !ok || v
}

// SupportsGetRuns is false only when the service explicitly disables GET /runs.
func (si ServiceInfo) SupportsGetRuns() bool {
	v, ok := si.tagBool("get_runs")
	return !ok || v
}

// WorkflowEngine is a name/version pair from workflow_engine_versions.
type WorkflowEngine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// WorkflowLanguage is a workflow type with its accepted versions.
type WorkflowLanguage struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
}

// WorkflowEngines lists the engines sorted by name.
func (si ServiceInfo) WorkflowEngines() []WorkflowEngine {
	engines := make([]WorkflowEngine, 0, len(si.WorkflowEngineVersions))
	for name, version := range si.WorkflowEngineVersions {
		engines = append(engines, WorkflowEngine{Name: name, Version: version})
	}
	sort.Slice(engines, func(i, j int) bool { return engines[i].Name < engines[j].Name })
	return engines
}

// WorkflowLanguages lists the accepted workflow types sorted by name.
func (si ServiceInfo) WorkflowLanguages() []WorkflowLanguage {
	langs := make([]WorkflowLanguage, 0, len(si.WorkflowTypeVersions))
	for name, v := range si.WorkflowTypeVersions {
		langs = append(langs, WorkflowLanguage{Name: name, Versions: v.WorkflowTypeVersion})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Name < langs[j].Name })
	return langs
}

// WorkflowEngineVersion returns the advertised version of an engine, or "".
func (si ServiceInfo) WorkflowEngineVersion(engine string) string {
	return si.WorkflowEngineVersions[engine]
}

// RunStatus is the abbreviated state returned by GET /runs/{id}/status and GET /runs.
type RunStatus struct {
	RunID string   `json:"run_id"`
	State RunState `json:"state"`
}

// RunListResponse is the body of GET /runs.
type RunListResponse struct {
	Runs          []RunStatus `json:"runs"`
	NextPageToken string      `json:"next_page_token"`
}

// RunID is the body returned by POST /runs and POST /runs/{id}/cancel.
type RunID struct {
	RunID string `json:"run_id"`
}

// StringList decodes either a JSON string or an array of strings.
// WES 1.0 declares Log.cmd as an array but several servers send one string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Log is the execution record of a run or one of its tasks.
type Log struct {
	Name      string     `json:"name,omitempty"`
	Cmd       StringList `json:"cmd,omitempty"`
	StartTime string     `json:"start_time,omitempty"`
	EndTime   string     `json:"end_time,omitempty"`
	Stdout    string     `json:"stdout,omitempty"`
	Stderr    string     `json:"stderr,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
}

// RunLog is the full remote execution record returned by GET /runs/{id}.
type RunLog struct {
	RunID    string         `json:"run_id"`
	Request  map[string]any `json:"request,omitempty"`
	State    RunState       `json:"state"`
	RunLog   Log            `json:"run_log"`
	TaskLogs []Log          `json:"task_logs,omitempty"`
	Outputs  any            `json:"outputs,omitempty"`
}

// ErrorResponse is the error body WES servers return with non-2xx responses.
type ErrorResponse struct {
	Msg        string `json:"msg"`
	StatusCode int    `json:"status_code"`
}

// ParseResult is the body returned by the sapporo POST /parse-workflow endpoint.
type ParseResult struct {
	WorkflowType        string `json:"workflow_type"`
	WorkflowTypeVersion string `json:"workflow_type_version"`
	Inputs              any    `json:"inputs,omitempty"`
}
