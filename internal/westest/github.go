package westest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// GitHub fakes the contents API and raw downloads. Files are keyed by
// "owner/repo/ref/path"; any other path under /files/ serves Files too.
type GitHub struct {
	Server *httptest.Server

	mu    sync.Mutex
	files map[string]string
}

// NewGitHub starts a fake GitHub.
func NewGitHub(t testing.TB) *GitHub {
	t.Helper()
	g := &GitHub{files: map[string]string{}}

	r := chi.NewRouter()
	r.Get("/repos/{owner}/{repo}/contents/*", g.contents)
	r.Get("/raw/*", g.serve)
	r.Get("/files/*", g.serve)
	g.Server = httptest.NewServer(r)
	t.Cleanup(g.Server.Close)
	return g
}

// Put stores content under key.
func (g *GitHub) Put(key, content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[key] = content
}

// BlobURL is the github.com web URL of a stored file.
func (g *GitHub) BlobURL(owner, repo, ref, path string) string {
	return "https://github.com/" + owner + "/" + repo + "/blob/" + ref + "/" + path
}

// RawURL is the download URL the contents API hands out.
func (g *GitHub) RawURL(owner, repo, ref, path string) string {
	return g.Server.URL + "/raw/" + owner + "/" + repo + "/" + ref + "/" + path
}

// FileURL is a plain download URL for key.
func (g *GitHub) FileURL(key string) string {
	return g.Server.URL + "/files/" + key
}

func (g *GitHub) contents(w http.ResponseWriter, r *http.Request) {
	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	path := chi.URLParam(r, "*")
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		ref = "main"
	}
	g.mu.Lock()
	_, ok := g.files[owner+"/"+repo+"/"+ref+"/"+path]
	g.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":         path[strings.LastIndex(path, "/")+1:],
		"path":         path,
		"download_url": g.RawURL(owner, repo, ref, path),
	})
}

func (g *GitHub) serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	g.mu.Lock()
	content, ok := g.files[key]
	g.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(content))
}
