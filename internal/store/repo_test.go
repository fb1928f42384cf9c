package store

import (
	"sync"
	"testing"
	"time"

	"github.com/me/wesconsole/pkg/model"
)

func TestServiceRepo_CopiesAndMissingIDs(t *testing.T) {
	r := NewServiceRepo()
	r.Put(&model.Service{ID: "s1", Name: "one", WorkflowIDs: []string{"w1"}})

	got, ok := r.Get("s1")
	if !ok {
		t.Fatal("s1 missing")
	}
	got.WorkflowIDs[0] = "mutated"
	got.Name = "mutated"
	again, _ := r.Get("s1")
	if again.Name != "one" || again.WorkflowIDs[0] != "w1" {
		t.Errorf("Get returned shared state: %+v", again)
	}

	if r.Update("missing", func(s *model.Service) { s.Name = "x" }) {
		t.Error("Update on missing id reported success")
	}
	r.AddRunID("missing", "r1")
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestServiceRepo_LinkPrimitivesIdempotent(t *testing.T) {
	r := NewServiceRepo()
	r.Put(&model.Service{ID: "s1"})

	r.AddWorkflowID("s1", "w1")
	r.AddWorkflowID("s1", "w1")
	r.AddRunID("s1", "r1")
	r.AddRunID("s1", "r1")
	s, _ := r.Get("s1")
	if len(s.WorkflowIDs) != 1 || len(s.RunIDs) != 1 {
		t.Errorf("duplicate links: %+v", s)
	}

	r.RemoveWorkflowID("s1", "absent")
	r.RemoveWorkflowID("s1", "w1")
	r.RemoveRunID("s1", "r1")
	r.RemoveRunID("s1", "r1")
	s, _ = r.Get("s1")
	if len(s.WorkflowIDs) != 0 || len(s.RunIDs) != 0 {
		t.Errorf("links not removed: %+v", s)
	}
}

func TestWorkflowRepo_ListByServiceOrdered(t *testing.T) {
	r := NewWorkflowRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Put(&model.Workflow{ID: "w2", ServiceID: "s1", AddedDate: base.Add(time.Hour)})
	r.Put(&model.Workflow{ID: "w1", ServiceID: "s1", AddedDate: base})
	r.Put(&model.Workflow{ID: "w3", ServiceID: "s2", AddedDate: base})

	got := r.ListByService("s1")
	if len(got) != 2 || got[0].ID != "w1" || got[1].ID != "w2" {
		t.Errorf("ListByService = %v", ids(got))
	}

	r.AddRunID("w1", "r1")
	r.AddRunID("w1", "r1")
	w, _ := r.Get("w1")
	if len(w.RunIDs) != 1 {
		t.Errorf("RunIDs = %v", w.RunIDs)
	}
}

func ids(ws []*model.Workflow) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

func TestRunRepo_ReplaceAndFilters(t *testing.T) {
	r := NewRunRepo()
	r.Put(&model.Run{ID: "old"})
	r.Replace([]*model.Run{
		{ID: "r1", ServiceID: "s1", WorkflowID: "w1"},
		{ID: "r2", ServiceID: "s1", WorkflowID: "w2"},
	})
	if r.Has("old") {
		t.Error("Replace kept old run")
	}
	if got := r.ListByService("s1"); len(got) != 2 {
		t.Errorf("ListByService = %d runs", len(got))
	}
	if got := r.ListByWorkflow("w2"); len(got) != 1 || got[0].ID != "r2" {
		t.Errorf("ListByWorkflow = %v", got)
	}
	if !r.Delete("r1") || r.Delete("r1") {
		t.Error("Delete should report presence once")
	}
}

func TestServiceRepo_ConcurrentLinks(t *testing.T) {
	r := NewServiceRepo()
	r.Put(&model.Service{ID: "s1"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.AddRunID("s1", string(rune('a'+i%26)))
		}(i)
	}
	wg.Wait()

	s, _ := r.Get("s1")
	if len(s.RunIDs) != 26 {
		t.Errorf("RunIDs = %d, want 26", len(s.RunIDs))
	}
}
