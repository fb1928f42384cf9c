// Package westest provides in-process fake WES, TRS and GitHub servers for tests.
package westest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/me/wesconsole/pkg/model"
)

// WES route names accepted by Fail and Count.
const (
	RouteServiceInfo         = "service-info"
	RouteExecutableWorkflows = "executable-workflows"
	RouteParseWorkflow       = "parse-workflow"
	RouteListRuns            = "list-runs"
	RoutePostRuns            = "post-runs"
	RouteRunLog              = "run-log"
	RouteRunStatus           = "run-status"
	RouteCancelRun           = "cancel-run"
)

// BasePath is where the fake mounts the WES API.
const BasePath = "/ga4gh/wes/v1"

// RunPost is a recorded POST /runs request.
type RunPost struct {
	Values    map[string][]string
	FileNames []string
	Files     map[string]string
}

// Value returns the first value of a form field, or "".
func (p RunPost) Value(key string) string {
	if v := p.Values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether the form field was sent.
func (p RunPost) Has(key string) bool {
	_, ok := p.Values[key]
	return ok
}

// WES is a fake WES server. All exported methods are safe for concurrent use.
type WES struct {
	Server *httptest.Server

	tb      testing.TB
	mu      sync.Mutex
	holds   map[string]hold
	info    model.ServiceInfo
	catalog []model.ExecutableWorkflow
	runs    map[string]*model.RunLog
	fail    map[string]int
	hits    map[string]int
	posts   []RunPost
	nextID  int
	version string
}

// NewWES starts a fake WES server advertising info.
func NewWES(t testing.TB, info model.ServiceInfo) *WES {
	t.Helper()
	w := &WES{
		tb:    t,
		holds: map[string]hold{},
		info:  info,
		runs:  map[string]*model.RunLog{},
		fail:  map[string]int{},
		hits:  map[string]int{},
	}

	r := chi.NewRouter()
	r.Route(BasePath, func(r chi.Router) {
		r.Get("/service-info", w.handle(RouteServiceInfo, w.serviceInfo))
		r.Get("/executable-workflows", w.handle(RouteExecutableWorkflows, w.executableWorkflows))
		r.Post("/parse-workflow", w.handle(RouteParseWorkflow, w.parseWorkflow))
		r.Get("/runs", w.handle(RouteListRuns, w.listRuns))
		r.Post("/runs", w.handle(RoutePostRuns, w.postRuns))
		r.Get("/runs/{runID}", w.handle(RouteRunLog, w.runLog))
		r.Get("/runs/{runID}/status", w.handle(RouteRunStatus, w.runStatus))
		r.Post("/runs/{runID}/cancel", w.handle(RouteCancelRun, w.cancelRun))
	})
	w.Server = httptest.NewServer(r)
	t.Cleanup(w.Server.Close)
	return w
}

// Endpoint is the WES base URL of the fake.
func (w *WES) Endpoint() string {
	return w.Server.URL + BasePath
}

// SetInfo replaces the advertised service-info.
func (w *WES) SetInfo(info model.ServiceInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.info = info
}

// SetCatalog sets the list served by GET /executable-workflows.
func (w *WES) SetCatalog(catalog []model.ExecutableWorkflow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.catalog = catalog
}

// SetParsedVersion sets the workflow_type_version returned by parse-workflow.
func (w *WES) SetParsedVersion(v string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.version = v
}

// AddRun registers a run the server knows about.
func (w *WES) AddRun(id string, state model.RunState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs[id] = &model.RunLog{RunID: id, State: state}
}

// SetRunState changes the state of a known run.
func (w *WES) SetRunState(id string, state model.RunState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if log, ok := w.runs[id]; ok {
		log.State = state
	}
}

// RemoveRun forgets a run.
func (w *WES) RemoveRun(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.runs, id)
}

// Fail makes route answer with status; 0 restores normal behaviour.
func (w *WES) Fail(route string, status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if status == 0 {
		delete(w.fail, route)
		return
	}
	w.fail[route] = status
}

type hold struct {
	arrived chan struct{}
	release chan struct{}
}

// Hold makes requests to route wait until release is called. arrived
// receives a value as each held request comes in. Release also runs at test
// cleanup.
func (w *WES) Hold(route string) (arrived <-chan struct{}, release func()) {
	h := hold{arrived: make(chan struct{}, 16), release: make(chan struct{})}
	w.mu.Lock()
	w.holds[route] = h
	w.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.holds, route)
			w.mu.Unlock()
			close(h.release)
		})
	}
	w.tb.Cleanup(release)
	return h.arrived, release
}

// Count returns how many requests route has received.
func (w *WES) Count(route string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hits[route]
}

// Posts returns the recorded run submissions.
func (w *WES) Posts() []RunPost {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]RunPost(nil), w.posts...)
}

func (w *WES) handle(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		w.hits[route]++
		status := w.fail[route]
		hd, held := w.holds[route]
		w.mu.Unlock()
		if held {
			select {
			case hd.arrived <- struct{}{}:
			default:
			}
			select {
			case <-hd.release:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(rw, status, model.ErrorResponse{Msg: fmt.Sprintf("%s failed", route), StatusCode: status})
			return
		}
		h(rw, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (w *WES) serviceInfo(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	info := w.info
	w.mu.Unlock()
	writeJSON(rw, http.StatusOK, info)
}

func (w *WES) executableWorkflows(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	catalog := w.catalog
	w.mu.Unlock()
	if catalog == nil {
		catalog = []model.ExecutableWorkflow{}
	}
	writeJSON(rw, http.StatusOK, catalog)
}

func (w *WES) parseWorkflow(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(rw, http.StatusBadRequest, model.ErrorResponse{Msg: err.Error(), StatusCode: http.StatusBadRequest})
		return
	}
	w.mu.Lock()
	version := w.version
	w.mu.Unlock()
	writeJSON(rw, http.StatusOK, model.ParseResult{WorkflowType: r.FormValue("workflow_type"), WorkflowTypeVersion: version})
}

func (w *WES) listRuns(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	ids := make([]string, 0, len(w.runs))
	for id := range w.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	states := make(map[string]model.RunState, len(ids))
	for _, id := range ids {
		states[id] = w.runs[id].State
	}
	w.mu.Unlock()

	start, _ := strconv.Atoi(r.URL.Query().Get("page_token"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if size <= 0 {
		size = len(ids)
	}
	end := min(start+size, len(ids))
	resp := model.RunListResponse{Runs: []model.RunStatus{}}
	for _, id := range ids[min(start, end):end] {
		resp.Runs = append(resp.Runs, model.RunStatus{RunID: id, State: states[id]})
	}
	if end < len(ids) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (w *WES) postRuns(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(rw, http.StatusBadRequest, model.ErrorResponse{Msg: err.Error(), StatusCode: http.StatusBadRequest})
		return
	}
	post := RunPost{Values: r.MultipartForm.Value, Files: map[string]string{}}
	for _, fh := range r.MultipartForm.File["workflow_attachment"] {
		f, err := fh.Open()
		if err != nil {
			continue
		}
		data, _ := io.ReadAll(f)
		f.Close()
		post.FileNames = append(post.FileNames, fh.Filename)
		post.Files[fh.Filename] = string(data)
	}

	w.mu.Lock()
	w.nextID++
	id := fmt.Sprintf("run-%03d", w.nextID)
	w.runs[id] = &model.RunLog{
		RunID:   id,
		State:   model.RunStateQueued,
		Request: map[string]any{"workflow_type": post.Value("workflow_type")},
	}
	w.posts = append(w.posts, post)
	w.mu.Unlock()

	writeJSON(rw, http.StatusOK, model.RunID{RunID: id})
}

func (w *WES) lookup(rw http.ResponseWriter, r *http.Request) (model.RunLog, bool) {
	id := chi.URLParam(r, "runID")
	w.mu.Lock()
	log, ok := w.runs[id]
	var c model.RunLog
	if ok {
		c = *log
	}
	w.mu.Unlock()
	if !ok {
		writeJSON(rw, http.StatusNotFound, model.ErrorResponse{Msg: "run " + id + " not found", StatusCode: http.StatusNotFound})
	}
	return c, ok
}

func (w *WES) runLog(rw http.ResponseWriter, r *http.Request) {
	if log, ok := w.lookup(rw, r); ok {
		writeJSON(rw, http.StatusOK, log)
	}
}

func (w *WES) runStatus(rw http.ResponseWriter, r *http.Request) {
	if log, ok := w.lookup(rw, r); ok {
		writeJSON(rw, http.StatusOK, model.RunStatus{RunID: log.RunID, State: log.State})
	}
}

func (w *WES) cancelRun(rw http.ResponseWriter, r *http.Request) {
	log, ok := w.lookup(rw, r)
	if !ok {
		return
	}
	w.SetRunState(log.RunID, model.RunStateCanceling)
	writeJSON(rw, http.StatusOK, model.RunID{RunID: log.RunID})
}

// ServiceInfo builds a service-info document for dialect tests.
func ServiceInfo(wesVersion string, tags map[string]any) model.ServiceInfo {
	info := model.ServiceInfo{
		SupportedWesVersions:   []string{wesVersion},
		WorkflowEngineVersions: map[string]string{"cwltool": "3.1.20230601100705"},
		WorkflowTypeVersions: map[string]model.WorkflowTypeVersion{
			"CWL": {WorkflowTypeVersion: []string{"v1.0", "v1.1", "v1.2"}},
		},
		Tags: tags,
	}
	info.Normalize()
	return info
}
