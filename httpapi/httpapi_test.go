package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/scrollshot"
)

type fakeEngine struct {
	captureOut *scrollshot.Output
	captureErr error
	asyncID    string
	sessions   map[string]scrollshot.Snapshot
	canceled   []string
}

func (f *fakeEngine) Capture(_ context.Context, req scrollshot.Request) (*scrollshot.Output, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.captureOut, nil
}

func (f *fakeEngine) CaptureAsync(_ context.Context, req scrollshot.Request) string {
	return f.asyncID
}

func (f *fakeEngine) Session(id string) (scrollshot.Snapshot, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeEngine) CancelSession(id string) bool {
	if _, ok := f.sessions[id]; !ok {
		return false
	}
	f.canceled = append(f.canceled, id)
	return true
}

func newServer(f *fakeEngine) *httptest.Server {
	return httptest.NewServer(New(f, nil).Router())
}

func TestCreateSync(t *testing.T) {
	out := &scrollshot.Output{
		Bytes:    []byte("png-bytes"),
		Format:   "png",
		Filename: "capture.png",
	}
	srv := newServer(&fakeEngine{captureOut: out})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/captures", "application/json",
		strings.NewReader(`{"url": "https://example.com", "selector": "#feed"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got, want := resp.Header.Get("Content-Type"), "image/png"; got != want {
		t.Errorf("content-type = %q, want %q", got, want)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "capture.png") {
		t.Errorf("content-disposition = %q, want filename", got)
	}
}

func TestCreateAsync(t *testing.T) {
	srv := newServer(&fakeEngine{asyncID: "cap_123"})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/captures", "application/json",
		strings.NewReader(`{"url": "https://example.com", "async": true}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if got, want := body["session_id"], "cap_123"; got != want {
		t.Errorf("session_id = %q, want %q", got, want)
	}
}

func TestCreateMissingURL(t *testing.T) {
	srv := newServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/captures", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateElementNotFound(t *testing.T) {
	srv := newServer(&fakeEngine{
		captureErr: scrollshot.Classify(&scrollshot.Error{
			Kind:        scrollshot.ElementNotFound,
			UserMessage: "element not found",
		}),
	})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/captures", "application/json",
		strings.NewReader(`{"url": "https://example.com", "selector": "#gone"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if got := body["kind"]; got != "element_not_found" {
		t.Errorf("kind = %v, want element_not_found", got)
	}
}

func TestStatus(t *testing.T) {
	srv := newServer(&fakeEngine{sessions: map[string]scrollshot.Snapshot{
		"cap_1": {ID: "cap_1", Status: "running", Progress: 40, Stage: "capturing"},
	}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/captures/cap_1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var snap scrollshot.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Progress != 40 || snap.Stage != "capturing" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStatusUnknown(t *testing.T) {
	srv := newServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/captures/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestArtifact(t *testing.T) {
	out := &scrollshot.Output{Bytes: []byte("jpeg-bytes"), Format: "jpeg", Filename: "capture.jpg"}
	srv := newServer(&fakeEngine{sessions: map[string]scrollshot.Snapshot{
		"cap_1": {ID: "cap_1", Status: "complete", Progress: 100, Output: out},
		"cap_2": {ID: "cap_2", Status: "running", Progress: 10},
	}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/captures/cap_1/artifact")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got, want := resp.Header.Get("Content-Type"), "image/jpeg"; got != want {
		t.Errorf("content-type = %q, want %q", got, want)
	}

	resp2, err := http.Get(srv.URL + "/v1/captures/cap_2/artifact")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("running session artifact: status = %d, want 409", resp2.StatusCode)
	}
}

func TestCancel(t *testing.T) {
	f := &fakeEngine{sessions: map[string]scrollshot.Snapshot{
		"cap_1": {ID: "cap_1", Status: "running"},
	}}
	srv := newServer(f)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/captures/cap_1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(f.canceled) != 1 || f.canceled[0] != "cap_1" {
		t.Errorf("canceled = %v", f.canceled)
	}

	req2, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/captures/nope", nil)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("cancel unknown: status = %d, want 409", resp2.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
