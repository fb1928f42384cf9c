package westest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/me/wesconsole/pkg/model"
)

// TRS fakes a tool registry.
type TRS struct {
	Server *httptest.Server

	mu          sync.Mutex
	tools       []model.TRSTool
	descriptors map[string]string
	files       map[string][]model.TRSToolFile
}

// NewTRS starts a fake registry.
func NewTRS(t testing.TB) *TRS {
	t.Helper()
	f := &TRS{descriptors: map[string]string{}, files: map[string][]model.TRSToolFile{}}

	r := chi.NewRouter()
	r.Get("/service-info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.TRSServiceInfo{ID: "fake-trs", Name: "fake trs"})
	})
	r.Get("/tools", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.tools)
	})
	r.Get("/tools/{id}/versions/{version}/{type}/descriptor", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		content, ok := f.descriptors[key(r)]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	})
	r.Get("/tools/{id}/versions/{version}/{type}/files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		files, ok := f.files[key(r)]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, files)
	})
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

func key(r *http.Request) string {
	return chi.URLParam(r, "id") + "|" + chi.URLParam(r, "version") + "|" + chi.URLParam(r, "type")
}

// AddTool registers a tool version with its descriptor and file listing.
// descriptorType is the plain TRS type, e.g. "CWL".
func (f *TRS) AddTool(tool model.TRSTool, version, descriptorType, descriptor string, files []model.TRSToolFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = append(f.tools, tool)
	f.descriptors[tool.ID+"|"+version+"|PLAIN_"+descriptorType] = descriptor
	f.files[tool.ID+"|"+version+"|"+descriptorType] = files
}
