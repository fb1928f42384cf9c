package console

import (
	"context"
	"net/http"
	"testing"

	"github.com/me/wesconsole/internal/westest"
	"github.com/me/wesconsole/pkg/model"
)

func TestSubmitService_UnreachableIsDisconnect(t *testing.T) {
	f := newFixture(t)
	w := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	w.Fail(westest.RouteServiceInfo, http.StatusInternalServerError)

	svc, err := f.c.SubmitService(context.Background(), ServiceRequest{Name: "down", Endpoint: w.Endpoint()})
	if err != nil {
		t.Fatalf("SubmitService: %v", err)
	}
	if svc.State != model.ServiceStateDisconnect {
		t.Errorf("state = %s, want Disconnect", svc.State)
	}
	if len(svc.WorkflowIDs) != 0 {
		t.Errorf("workflow ids = %v, want none", svc.WorkflowIDs)
	}
	if svc.ServiceInfo.Tags == nil || svc.ServiceInfo.SupportedWesVersions == nil {
		t.Errorf("service info not normalised: %+v", svc.ServiceInfo)
	}
	if _, ok := f.c.Service(svc.ID); !ok {
		t.Error("disconnected service was not stored")
	}
}

func TestSubmitService_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  ServiceRequest
	}{
		{"empty name", ServiceRequest{Name: " ", Endpoint: "http://localhost:1122/ga4gh/wes/v1"}},
		{"relative endpoint", ServiceRequest{Name: "x", Endpoint: "ga4gh/wes/v1"}},
		{"bad scheme", ServiceRequest{Name: "x", Endpoint: "ftp://host/ga4gh/wes/v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.c.SubmitService(context.Background(), tt.req)
			if !model.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
	if n := len(f.c.Services()); n != 0 {
		t.Errorf("services = %d, want 0", n)
	}
}

func TestSubmitService_TrimsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))

	svc, err := f.c.SubmitService(context.Background(), ServiceRequest{Name: "svc", Endpoint: w.Endpoint() + "/"})
	if err != nil {
		t.Fatalf("SubmitService: %v", err)
	}
	if svc.Endpoint != w.Endpoint() {
		t.Errorf("endpoint = %q, want %q", svc.Endpoint, w.Endpoint())
	}
}

func TestSubmitService_ImportsCatalog(t *testing.T) {
	f := newFixture(t)
	f.github.Put("org/repo/main/wf.cwl", cwlDoc)
	f.github.Put("att/local.cwl", cwlDoc)

	w := westest.NewWES(t, westest.ServiceInfo("sapporo-wes-1.0.1", nil))
	w.SetCatalog([]model.ExecutableWorkflow{
		{
			WorkflowName:        "remote",
			WorkflowURL:         f.github.FileURL("org/repo/main/wf.cwl"),
			WorkflowType:        "CWL",
			WorkflowTypeVersion: "v1.2",
		},
		{
			WorkflowName:        "local",
			WorkflowURL:         "local.cwl",
			WorkflowType:        "CWL",
			WorkflowTypeVersion: "v1.2",
			WorkflowAttachment: []model.AttachedFile{
				{FileName: "local.cwl", FileURL: f.github.FileURL("att/local.cwl")},
			},
		},
	})

	svc := f.addService(t, w)
	if len(svc.WorkflowIDs) != 2 {
		t.Fatalf("workflow ids = %v, want 2", svc.WorkflowIDs)
	}
	for _, wf := range f.c.Workflows(svc.ID) {
		if !wf.PreRegistered {
			t.Errorf("workflow %s not pre-registered", wf.Name)
		}
		if wf.Content != cwlDoc {
			t.Errorf("workflow %s content = %q", wf.Name, wf.Content)
		}
	}
	assertLinksConsistent(t, f.c)
}

func TestSubmitService_CatalogFromServiceInfo(t *testing.T) {
	f := newFixture(t)
	f.github.Put("wf.cwl", cwlDoc)
	info := westest.ServiceInfo("sapporo-wes-1.0.0", nil)
	info.ExecutableWorkflows = []model.ExecutableWorkflow{{
		WorkflowName: "legacy",
		WorkflowURL:  f.github.FileURL("wf.cwl"),
		WorkflowType: "CWL",
	}}
	w := westest.NewWES(t, info)

	svc := f.addService(t, w)
	if len(svc.WorkflowIDs) != 1 {
		t.Fatalf("workflow ids = %v, want 1", svc.WorkflowIDs)
	}
	if n := w.Count(westest.RouteExecutableWorkflows); n != 0 {
		t.Errorf("executable-workflows requests = %d, want 0", n)
	}
}

func TestUpdateService_UnknownID(t *testing.T) {
	f := newFixture(t)
	if _, err := f.c.UpdateService(context.Background(), "nope"); !model.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestUpdateService_DegradesToDisconnect(t *testing.T) {
	f := newFixture(t)
	w := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	svc := f.addService(t, w)

	w.Fail(westest.RouteServiceInfo, http.StatusBadGateway)
	got, err := f.c.UpdateService(context.Background(), svc.ID)
	if err != nil {
		t.Fatalf("UpdateService: %v", err)
	}
	if got.State != model.ServiceStateDisconnect {
		t.Errorf("state = %s, want Disconnect", got.State)
	}
	if !got.UpdatedDate.After(svc.UpdatedDate) {
		t.Errorf("updated date not advanced: %v <= %v", got.UpdatedDate, svc.UpdatedDate)
	}

	w.Fail(westest.RouteServiceInfo, 0)
	got, err = f.c.UpdateService(context.Background(), svc.ID)
	if err != nil {
		t.Fatalf("UpdateService: %v", err)
	}
	if got.State != model.ServiceStateAvailable {
		t.Errorf("state = %s, want Available after recovery", got.State)
	}
}

func TestUpdateService_ReconcilesCatalog(t *testing.T) {
	f := newFixture(t)
	for _, k := range []string{"a.cwl", "b.cwl", "b2.cwl", "c.cwl"} {
		f.github.Put(k, cwlDoc)
	}
	entry := func(name, file string) model.ExecutableWorkflow {
		return model.ExecutableWorkflow{
			WorkflowName:        name,
			WorkflowURL:         f.github.FileURL(file),
			WorkflowType:        "CWL",
			WorkflowTypeVersion: "v1.2",
			WorkflowAttachment:  []model.AttachedFile{},
		}
	}

	w := westest.NewWES(t, westest.ServiceInfo("sapporo-wes-1.0.1", nil))
	w.SetCatalog([]model.ExecutableWorkflow{entry("a", "a.cwl"), entry("b", "b.cwl")})
	svc := f.addService(t, w)

	user := f.addWorkflow(t, svc.ID, "https://example.org/user.cwl")
	before := map[string]*model.Workflow{}
	for _, wf := range f.c.Workflows(svc.ID) {
		before[wf.Name] = wf
	}

	// a unchanged, b moved, c added.
	w.SetCatalog([]model.ExecutableWorkflow{entry("b", "b2.cwl"), entry("c", "c.cwl"), entry("a", "a.cwl")})
	if _, err := f.c.UpdateService(context.Background(), svc.ID); err != nil {
		t.Fatalf("UpdateService: %v", err)
	}
	after := map[string]*model.Workflow{}
	for _, wf := range f.c.Workflows(svc.ID) {
		after[wf.Name] = wf
	}
	if len(after) != 4 {
		t.Fatalf("workflows = %v, want a, b, c and the user workflow", after)
	}
	if !after["a"].UpdatedDate.Equal(before["a"].UpdatedDate) {
		t.Error("unchanged entry was rewritten")
	}
	if after["b"].ID != before["b"].ID || after["b"].URL != f.github.FileURL("b2.cwl") {
		t.Errorf("b = %+v, want same id with new url", after["b"])
	}
	if after["c"] == nil || !after["c"].PreRegistered {
		t.Errorf("c = %+v, want a new pre-registered workflow", after["c"])
	}
	if _, ok := f.c.Workflow(user.ID); !ok {
		t.Error("user workflow removed by reconciliation")
	}
	assertLinksConsistent(t, f.c)

	// Removing an entry deletes its workflow; a second refresh changes nothing.
	w.SetCatalog([]model.ExecutableWorkflow{entry("b", "b2.cwl"), entry("c", "c.cwl")})
	for i := 0; i < 2; i++ {
		if _, err := f.c.UpdateService(context.Background(), svc.ID); err != nil {
			t.Fatalf("UpdateService: %v", err)
		}
	}
	if _, ok := f.c.Workflow(before["a"].ID); ok {
		t.Error("workflow a still present after leaving the catalog")
	}
	got, _ := f.c.Service(svc.ID)
	if len(got.WorkflowIDs) != 3 {
		t.Errorf("workflow ids = %v, want 3", got.WorkflowIDs)
	}
	assertLinksConsistent(t, f.c)
}

func TestUpdateAllServices(t *testing.T) {
	f := newFixture(t, WithParallelism(2))
	up := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	down := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	svcUp := f.addService(t, up)
	svcDown := f.addService(t, down)

	down.Fail(westest.RouteServiceInfo, http.StatusServiceUnavailable)
	f.c.UpdateAllServices(context.Background())

	if got, _ := f.c.Service(svcUp.ID); got.State != model.ServiceStateAvailable {
		t.Errorf("healthy service state = %s", got.State)
	}
	if got, _ := f.c.Service(svcDown.ID); got.State != model.ServiceStateDisconnect {
		t.Errorf("failing service state = %s", got.State)
	}
	if n := up.Count(westest.RouteServiceInfo); n != 2 {
		t.Errorf("service-info requests = %d, want 2", n)
	}
}

func TestDeleteServices_Cascades(t *testing.T) {
	f := newFixture(t)
	w := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	svc := f.addService(t, w)
	keep := f.addService(t, westest.NewWES(t, westest.ServiceInfo("1.0.0", nil)))
	wf := f.addWorkflow(t, svc.ID, "https://example.org/wf.cwl")
	run := f.executeRun(t, svc.ID, wf.ID)
	keptWf := f.addWorkflow(t, keep.ID, "https://example.org/wf.cwl")

	deleted := f.c.DeleteServices([]string{svc.ID, "missing"}, false)
	if len(deleted) != 1 || deleted[0] != svc.ID {
		t.Fatalf("deleted = %v, want [%s]", deleted, svc.ID)
	}
	if _, ok := f.c.Workflow(wf.ID); ok {
		t.Error("workflow survived its service")
	}
	if _, ok := f.c.Run(run.ID); ok {
		t.Error("run survived its service")
	}
	if _, ok := f.c.Workflow(keptWf.ID); !ok {
		t.Error("workflow of another service deleted")
	}
	assertLinksConsistent(t, f.c)
}

func TestDeleteServices_PreRegisteredNeedsForce(t *testing.T) {
	f := newFixture(t)
	w := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	added, err := f.c.RegisterPreRegisteredServices(context.Background(), []ServiceRequest{{Name: "pre", Endpoint: w.Endpoint()}})
	if err != nil || len(added) != 1 {
		t.Fatalf("RegisterPreRegisteredServices = %v, %v", added, err)
	}
	id := added[0].ID

	if got := f.c.ClearServices(false); len(got) != 0 {
		t.Errorf("ClearServices(false) deleted %v", got)
	}
	if got := f.c.ClearServices(true); len(got) != 1 || got[0] != id {
		t.Errorf("ClearServices(true) = %v, want [%s]", got, id)
	}
}

func TestRegisterPreRegisteredServices_SkipsExistingNames(t *testing.T) {
	f := newFixture(t)
	w := westest.NewWES(t, westest.ServiceInfo("1.0.0", nil))
	f.addService(t, w)

	added, err := f.c.RegisterPreRegisteredServices(context.Background(), []ServiceRequest{
		{Name: "svc", Endpoint: w.Endpoint()},
		{Name: "new", Endpoint: w.Endpoint()},
		{Name: "", Endpoint: w.Endpoint()},
	})
	if !model.IsValidation(err) {
		t.Errorf("err = %v, want the validation error of the unnamed entry", err)
	}
	if len(added) != 1 || added[0].Name != "new" || !added[0].PreRegistered {
		t.Errorf("added = %+v, want only the pre-registered 'new'", added)
	}
	if n := len(f.c.Services()); n != 2 {
		t.Errorf("services = %d, want 2", n)
	}
}

func TestUpdateService_ServiceDeletedDuringRefresh(t *testing.T) {
	f := newFixture(t)
	f.github.Put("a.cwl", cwlDoc)
	w := westest.NewWES(t, westest.ServiceInfo("sapporo-wes-1.0.1", nil))
	svc := f.addService(t, w)

	w.SetCatalog([]model.ExecutableWorkflow{{
		WorkflowName:        "a",
		WorkflowURL:         f.github.FileURL("a.cwl"),
		WorkflowType:        "CWL",
		WorkflowTypeVersion: "v1.2",
		WorkflowAttachment:  []model.AttachedFile{},
	}})
	arrived, release := w.Hold(westest.RouteExecutableWorkflows)
	type result struct {
		svc *model.Service
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := f.c.UpdateService(context.Background(), svc.ID)
		done <- result{s, err}
	}()
	<-arrived
	f.c.DeleteServices([]string{svc.ID}, false)
	release()

	res := <-done
	if res.svc != nil || !model.IsNotFound(res.err) {
		t.Errorf("UpdateService = %v, %v, want nil and an IntegrityError", res.svc, res.err)
	}
	if wfs := f.c.Workflows(""); len(wfs) != 0 {
		t.Errorf("workflows = %d, want none for a deleted service", len(wfs))
	}
	assertLinksConsistent(t, f.c)
}
