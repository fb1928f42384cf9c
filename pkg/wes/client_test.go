package wes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/me/wesconsole/pkg/model"
)

func newTestClient() *Client {
	return NewClient(nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGetServiceInfo_NormalizesMissingCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ga4gh/wes/v1/service-info" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"supported_wes_versions":["sapporo-wes-1.0.1"],"tags":{"get_runs":false}}`))
	}))
	defer srv.Close()

	si, err := newTestClient().GetServiceInfo(context.Background(), srv.URL+"/ga4gh/wes/v1/")
	if err != nil {
		t.Fatalf("GetServiceInfo: %v", err)
	}
	if si.WorkflowTypeVersions == nil || si.WorkflowEngineVersions == nil || si.SystemStateCounts == nil {
		t.Errorf("collections not normalized: %+v", si)
	}
	if si.SupportsGetRuns() {
		t.Error("SupportsGetRuns() = true, want false")
	}
}

func TestGetServiceInfo_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad-status/service-info":
			writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Msg: "boom", StatusCode: 500})
		case "/bad-body/service-info":
			w.Write([]byte("not json"))
		}
	}))
	defer srv.Close()
	c := newTestClient()

	_, err := c.GetServiceInfo(context.Background(), srv.URL+"/bad-status")
	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	if reqErr.StatusCode != 500 || reqErr.Message != "boom" {
		t.Errorf("RequestError = %+v", reqErr)
	}

	_, err = c.GetServiceInfo(context.Background(), srv.URL+"/bad-body")
	var parseErr *model.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error = %v, want ParseError", err)
	}

	_, err = c.GetServiceInfo(context.Background(), "http://127.0.0.1:1")
	var netErr *model.NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("error = %v, want NetworkError", err)
	}
}

func TestGetExecutableWorkflows(t *testing.T) {
	entry := model.ExecutableWorkflow{
		WorkflowName:        "trimming",
		WorkflowURL:         "https://example.org/trimming.cwl",
		WorkflowType:        "CWL",
		WorkflowTypeVersion: "v1.0",
	}
	var endpointHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/executable-workflows" {
			endpointHits++
			writeJSON(w, http.StatusOK, []model.ExecutableWorkflow{entry})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	c := newTestClient()
	ctx := context.Background()

	base := &model.ServiceInfo{SupportedWesVersions: []string{"1.0.0"}}
	got, err := c.GetExecutableWorkflows(ctx, srv.URL, base)
	if err != nil || len(got) != 0 {
		t.Errorf("baseline: got %v, %v; want empty", got, err)
	}

	s100 := &model.ServiceInfo{
		SupportedWesVersions: []string{"sapporo-wes-1.0.0"},
		ExecutableWorkflows:  []model.ExecutableWorkflow{entry},
	}
	got, err = c.GetExecutableWorkflows(ctx, srv.URL, s100)
	if err != nil {
		t.Fatalf("sapporo-1.0.0: %v", err)
	}
	want := entry
	want.WorkflowAttachment = []model.AttachedFile{}
	if diff := cmp.Diff([]model.ExecutableWorkflow{want}, got); diff != "" {
		t.Errorf("sapporo-1.0.0 catalog mismatch (-want +got):\n%s", diff)
	}
	if endpointHits != 0 {
		t.Error("sapporo-1.0.0 must read the catalog from service-info")
	}

	s101 := &model.ServiceInfo{SupportedWesVersions: []string{"sapporo-wes-1.0.1"}}
	got, err = c.GetExecutableWorkflows(ctx, srv.URL, s101)
	if err != nil {
		t.Fatalf("sapporo-1.0.1: %v", err)
	}
	if endpointHits != 1 || len(got) != 1 || got[0].WorkflowName != "trimming" {
		t.Errorf("sapporo-1.0.1: hits=%d got=%v", endpointHits, got)
	}
}

func TestListAllRuns_FollowsPageToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page_size"); got != "2" {
			t.Errorf("page_size = %q", got)
		}
		switch r.URL.Query().Get("page_token") {
		case "":
			writeJSON(w, http.StatusOK, model.RunListResponse{
				Runs:          []model.RunStatus{{RunID: "a", State: model.RunStateRunning}, {RunID: "b", State: model.RunStateComplete}},
				NextPageToken: "p2",
			})
		case "p2":
			writeJSON(w, http.StatusOK, model.RunListResponse{
				Runs: []model.RunStatus{{RunID: "c", State: model.RunStateQueued}},
			})
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("page_token"))
		}
	}))
	defer srv.Close()

	runs, err := newTestClient().ListAllRuns(context.Background(), srv.URL, 2)
	if err != nil {
		t.Fatalf("ListAllRuns: %v", err)
	}
	want := []model.RunStatus{
		{RunID: "a", State: model.RunStateRunning},
		{RunID: "b", State: model.RunStateComplete},
		{RunID: "c", State: model.RunStateQueued},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestListAllRuns_NormalizesStates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"runs":[{"run_id":"a","state":""},{"run_id":"b","state":"PREEMPTED"},{"run_id":"c","state":"RUNNING"}]}`))
	}))
	defer srv.Close()

	runs, err := newTestClient().ListAllRuns(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("ListAllRuns: %v", err)
	}
	want := []model.RunStatus{
		{RunID: "a", State: model.RunStateUnknown},
		{RunID: "b", State: model.RunStateUnknown},
		{RunID: "c", State: model.RunStateRunning},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestListAllRuns_StopsOnRepeatedToken(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, model.RunListResponse{NextPageToken: "same"})
	}))
	defer srv.Close()

	if _, err := newTestClient().ListAllRuns(context.Background(), srv.URL, 0); err != nil {
		t.Fatalf("ListAllRuns: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRunStatusAndLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/runs/r1/status":
			w.Write([]byte(`{"run_id":"r1","state":"BOGUS"}`))
		case "/runs/r1":
			w.Write([]byte(`{"run_id":"r1","state":"COMPLETE","run_log":{"cmd":"cwltool wf.cwl","exit_code":0}}`))
		case "/runs/r1/cancel":
			if r.Method != http.MethodPost {
				t.Errorf("cancel method = %s", r.Method)
			}
			w.Write([]byte(`{"run_id":"r1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newTestClient()
	ctx := context.Background()

	st, err := c.GetRunsIDStatus(ctx, srv.URL, "r1")
	if err != nil {
		t.Fatalf("GetRunsIDStatus: %v", err)
	}
	if st.State != model.RunStateUnknown {
		t.Errorf("state = %s, want UNKNOWN for unrecognised values", st.State)
	}

	log, err := c.GetRunsID(ctx, srv.URL, "r1")
	if err != nil {
		t.Fatalf("GetRunsID: %v", err)
	}
	if log.State != model.RunStateComplete || len(log.RunLog.Cmd) != 1 || log.RunLog.ExitCode == nil {
		t.Errorf("run log = %+v", log)
	}

	id, err := c.PostRunsIDCancel(ctx, srv.URL, "r1")
	if err != nil || id.RunID != "r1" {
		t.Errorf("PostRunsIDCancel = %v, %v", id, err)
	}

	_, err = c.GetRunsIDStatus(ctx, srv.URL, "missing")
	if model.StatusCode(err) != http.StatusNotFound {
		t.Errorf("missing run status code = %d, want 404", model.StatusCode(err))
	}
}

func TestRunRequestFor(t *testing.T) {
	req := RunRequest{
		WorkflowType:       "CWL",
		WorkflowEngineName: "cwltool",
		WorkflowName:       "trimming",
		WorkflowAttachment: []model.AttachedFile{{FileName: "a.txt", FileURL: "https://x/a.txt"}},
	}

	base := req.For(DialectWES100)
	if base.WorkflowEngineName != "" || base.WorkflowName != "" || base.WorkflowAttachment != nil {
		t.Errorf("baseline request kept sapporo fields: %+v", base)
	}
	if base.WorkflowType != "CWL" {
		t.Error("baseline request lost workflow_type")
	}

	s100 := req.For(DialectSapporo100)
	if s100.WorkflowEngineName != "cwltool" || s100.WorkflowName != "trimming" || s100.WorkflowAttachment != nil {
		t.Errorf("sapporo-1.0.0 request = %+v", s100)
	}

	s101 := req.For(DialectSapporo101)
	if len(s101.WorkflowAttachment) != 1 {
		t.Errorf("sapporo-1.0.1 dropped inline attachment: %+v", s101)
	}
}

func TestPostRuns_MultipartEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/runs" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		form := r.MultipartForm
		if got := form.Value["workflow_type"]; len(got) != 1 || got[0] != "CWL" {
			t.Errorf("workflow_type = %v", got)
		}
		if _, ok := form.Value["workflow_engine_name"]; ok {
			t.Error("empty workflow_engine_name must be omitted")
		}
		if _, ok := form.Value["tags"]; ok {
			t.Error("empty tags must be omitted")
		}
		files := form.File["workflow_attachment"]
		if len(files) != 2 {
			t.Errorf("attachments = %d, want 2", len(files))
			return
		}
		f, _ := files[1].Open()
		data, _ := io.ReadAll(f)
		if files[1].Filename != "inputs.txt" || string(data) != "hello" {
			t.Errorf("attachment = %s %q", files[1].Filename, data)
		}
		writeJSON(w, http.StatusOK, model.RunID{RunID: "run-1"})
	}))
	defer srv.Close()

	id, err := newTestClient().PostRuns(context.Background(), srv.URL, RunRequest{
		WorkflowType:        "CWL",
		WorkflowTypeVersion: "v1.0",
		WorkflowURL:         "wf.cwl",
		WorkflowParams:      `{"a":1}`,
	}, []Attachment{
		{Name: "wf.cwl", Data: []byte("cwlVersion: v1.0")},
		{Name: "inputs.txt", Data: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("PostRuns: %v", err)
	}
	if id != "run-1" {
		t.Errorf("run id = %q", id)
	}
}

func TestPostRuns_InlineAttachmentJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		raw := r.MultipartForm.Value["workflow_attachment"]
		if len(raw) != 1 {
			t.Errorf("inline workflow_attachment = %v", raw)
			return
		}
		var files []model.AttachedFile
		if err := json.Unmarshal([]byte(raw[0]), &files); err != nil || len(files) != 1 || files[0].FileName != "ref.fa" {
			t.Errorf("inline attachments = %v (%v)", files, err)
		}
		writeJSON(w, http.StatusOK, model.RunID{RunID: "run-2"})
	}))
	defer srv.Close()

	req := RunRequest{
		WorkflowName:       "trimming",
		WorkflowAttachment: []model.AttachedFile{{FileName: "ref.fa", FileURL: "https://x/ref.fa"}},
	}
	if _, err := newTestClient().PostRuns(context.Background(), srv.URL, req.For(DialectSapporo101), nil); err != nil {
		t.Fatalf("PostRuns: %v", err)
	}
}

func TestPostRuns_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Msg: "workflow_params is invalid", StatusCode: 400})
	}))
	defer srv.Close()

	_, err := newTestClient().PostRuns(context.Background(), srv.URL, RunRequest{WorkflowType: "CWL"}, nil)
	var subErr *model.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want SubmissionError", err)
	}
	if model.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", model.StatusCode(err))
	}
	if !strings.Contains(err.Error(), "workflow_params is invalid") {
		t.Errorf("error %q does not carry server message", err)
	}
}

func TestPostRuns_EmptyRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient().PostRuns(context.Background(), srv.URL, RunRequest{}, nil)
	var parseErr *model.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error = %v, want wrapped ParseError", err)
	}
}

func TestParseWorkflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parse-workflow" {
			t.Errorf("path = %s", r.URL.Path)
		}
		r.ParseMultipartForm(1 << 20)
		if got := r.MultipartForm.Value["types_of_parsing"]; len(got) != 2 {
			t.Errorf("types_of_parsing = %v", got)
		}
		writeJSON(w, http.StatusOK, model.ParseResult{WorkflowType: "CWL", WorkflowTypeVersion: "v1.2"})
	}))
	defer srv.Close()

	res, err := newTestClient().ParseWorkflow(context.Background(), srv.URL, ParseRequest{
		WorkflowContent: "cwlVersion: v1.2",
		TypesOfParsing:  []string{"workflow_type", "workflow_type_version"},
	})
	if err != nil {
		t.Fatalf("ParseWorkflow: %v", err)
	}
	if res.WorkflowTypeVersion != "v1.2" {
		t.Errorf("version = %q", res.WorkflowTypeVersion)
	}
}
