package model

import (
	"encoding/json"
	"testing"
)

func TestServiceInfo_NormalizeFillsEmptyCollections(t *testing.T) {
	var si ServiceInfo
	if err := json.Unmarshal([]byte(`{"supported_wes_versions":["1.0.0"]}`), &si); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	si.Normalize()
	if si.Tags == nil || si.WorkflowEngineVersions == nil || si.WorkflowTypeVersions == nil {
		t.Fatal("maps not initialised")
	}
	if si.DefaultWorkflowEngineParameters == nil || si.SupportedFilesystemProtocols == nil {
		t.Fatal("slices not initialised")
	}
	if len(si.SupportedWesVersions) != 1 {
		t.Errorf("supported_wes_versions = %v, want 1 entry", si.SupportedWesVersions)
	}
}

func TestServiceInfo_TagGates(t *testing.T) {
	tests := []struct {
		name           string
		tags           map[string]any
		registeredOnly bool
		attachment     bool
		getRuns        bool
	}{
		{"absent", map[string]any{}, false, true, true},
		{"bool false", map[string]any{"workflow_attachment": false, "get_runs": false}, false, false, false},
		{"string flags", map[string]any{"registered_only_mode": "true", "get_runs": "false"}, true, true, false},
		{"non-bool value", map[string]any{"workflow_attachment": "yes"}, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			si := ServiceInfo{Tags: tt.tags}
			if got := si.RegisteredOnlyMode(); got != tt.registeredOnly {
				t.Errorf("RegisteredOnlyMode = %v, want %v", got, tt.registeredOnly)
			}
			if got := si.SupportsWorkflowAttachment(); got != tt.attachment {
				t.Errorf("SupportsWorkflowAttachment = %v, want %v", got, tt.attachment)
			}
			if got := si.SupportsGetRuns(); got != tt.getRuns {
				t.Errorf("SupportsGetRuns = %v, want %v", got, tt.getRuns)
			}
		})
	}
}

func TestServiceInfo_EnginesAndLanguagesSorted(t *testing.T) {
	si := ServiceInfo{
		WorkflowEngineVersions: map[string]string{"toil": "5.0", "cwltool": "3.1"},
		WorkflowTypeVersions: map[string]WorkflowTypeVersion{
			"WDL": {WorkflowTypeVersion: []string{"1.0"}},
			"CWL": {WorkflowTypeVersion: []string{"v1.0", "v1.2"}},
		},
	}
	engines := si.WorkflowEngines()
	if len(engines) != 2 || engines[0].Name != "cwltool" || engines[1].Version != "5.0" {
		t.Errorf("engines = %+v", engines)
	}
	langs := si.WorkflowLanguages()
	if len(langs) != 2 || langs[0].Name != "CWL" || len(langs[0].Versions) != 2 {
		t.Errorf("languages = %+v", langs)
	}
	if got := si.WorkflowEngineVersion("toil"); got != "5.0" {
		t.Errorf("WorkflowEngineVersion(toil) = %q", got)
	}
	if got := si.WorkflowEngineVersion("nextflow"); got != "" {
		t.Errorf("WorkflowEngineVersion(nextflow) = %q, want empty", got)
	}
}

func TestStringList_AcceptsStringOrArray(t *testing.T) {
	var l Log
	if err := json.Unmarshal([]byte(`{"cmd":"cwltool wf.cwl"}`), &l); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if len(l.Cmd) != 1 || l.Cmd[0] != "cwltool wf.cwl" {
		t.Errorf("cmd = %v", l.Cmd)
	}
	if err := json.Unmarshal([]byte(`{"cmd":["cwltool","wf.cwl"]}`), &l); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if len(l.Cmd) != 2 {
		t.Errorf("cmd = %v, want 2 entries", l.Cmd)
	}
}

func TestWorkflow_MatchesCatalogEntry(t *testing.T) {
	entry := ExecutableWorkflow{
		WorkflowName:        "trimming",
		WorkflowURL:         "trimming.cwl",
		WorkflowType:        "CWL",
		WorkflowTypeVersion: "v1.0",
		WorkflowAttachment:  []AttachedFile{{FileName: "trimming.cwl", FileURL: "https://example.org/trimming.cwl"}},
	}
	wf := &Workflow{
		Type:                            "CWL",
		Version:                         "v1.0",
		URL:                             "trimming.cwl",
		PreRegisteredWorkflowAttachment: []AttachedFile{{FileName: "trimming.cwl", FileURL: "https://example.org/trimming.cwl"}},
	}
	if !wf.MatchesCatalogEntry(entry) {
		t.Error("identical entry does not match")
	}
	entry.WorkflowTypeVersion = "v1.2"
	if wf.MatchesCatalogEntry(entry) {
		t.Error("changed version still matches")
	}
}

func TestIDListHelpers(t *testing.T) {
	ids := []string{"a"}
	got := WithID(WithID(ids, "b"), "b")
	if len(got) != 2 {
		t.Errorf("WithID not idempotent: %v", got)
	}
	if len(ids) != 1 {
		t.Errorf("WithID mutated input: %v", ids)
	}
	got = WithoutID(got, "missing")
	if len(got) != 2 {
		t.Errorf("WithoutID(missing) changed list: %v", got)
	}
	got = WithoutID(got, "a")
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("WithoutID(a) = %v", got)
	}
}
