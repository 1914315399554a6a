package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kvfs "taskgraph/internal/kvstorage/filesystem"
	"taskgraph/internal/settings"
	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"
	"taskgraph/internal/taskstorage/filesystem"
)

type testServer struct {
	srv    *Server
	engine *taskservice.Engine
	store  *filesystem.FilesystemStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store := filesystem.New(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	engine := taskservice.New(store)
	if err := engine.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	kv, err := kvfs.New(dir, settings.Table)
	if err != nil {
		t.Fatalf("kv New: %v", err)
	}
	if err := kv.Init(ctx); err != nil {
		t.Fatalf("kv Init: %v", err)
	}
	return &testServer{srv: New(engine, kv, nil), engine: engine, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, r)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) taskstorage.Task {
	t.Helper()
	var task taskstorage.Task
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode task: %v (body %q)", err, w.Body.String())
	}
	return task
}

func decodeTasks(t *testing.T, w *httptest.ResponseRecorder) []taskstorage.Task {
	t.Helper()
	var tasks []taskstorage.Task
	if err := json.NewDecoder(w.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode tasks: %v (body %q)", err, w.Body.String())
	}
	return tasks
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %q)", w.Code, want, w.Body.String())
	}
}

func TestAddAndList(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/add", `{"description":"buy milk","tags":["errand"]}`)
	expectStatus(t, w, http.StatusOK)
	task := decodeTask(t, w)
	if task.ID != 0 || task.Description != "buy milk" || len(task.Tags) != 1 {
		t.Errorf("created task = %+v", task)
	}
	if task.TimeCreated == nil {
		t.Error("time_created not set")
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks", "")
	expectStatus(t, w, http.StatusOK)
	if tasks := decodeTasks(t, w); len(tasks) != 1 {
		t.Errorf("listed %d tasks, want 1", len(tasks))
	}
}

func TestAddValidation(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []string{
		`{}`,
		`{"description":""}`,
		`{"description":"   "}`,
		`{"description":"x","priority":1}`,
		`{"description":"x","tags":[""]}`,
		`not json`,
	} {
		w := ts.do(t, http.MethodPost, "/v1/add", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST /v1/add %s: status %d, want 400", body, w.Code)
		}
	}
	if ts.engine.Len() != 0 {
		t.Error("invalid requests created tasks")
	}
}

func TestFinish(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/add", `{"description":"a"}`)

	w := ts.do(t, http.MethodPost, "/v1/finish", `{"id":0}`)
	expectStatus(t, w, http.StatusOK)
	if task := decodeTask(t, w); !task.Finished || task.TimeFinished == nil {
		t.Errorf("finished task = %+v", task)
	}

	w = ts.do(t, http.MethodPost, "/v1/finish", `{"id":0}`)
	expectStatus(t, w, http.StatusUnprocessableEntity)

	w = ts.do(t, http.MethodPost, "/v1/finish", `{"id":5}`)
	expectStatus(t, w, http.StatusNotFound)

	for _, body := range []string{`{}`, `{"id":-1}`, `{"id":"zero"}`, `{"id":1.5}`} {
		w = ts.do(t, http.MethodPost, "/v1/finish", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST /v1/finish %s: status %d, want 400", body, w.Code)
		}
	}
}

func TestGetUpdateDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/add", `{"description":"draft"}`)

	w := ts.do(t, http.MethodPatch, "/v1/tasks/0", `{"description":"final","tags":["a","a","b"]}`)
	expectStatus(t, w, http.StatusOK)
	task := decodeTask(t, w)
	if task.Description != "final" || len(task.Tags) != 2 {
		t.Errorf("updated task = %+v", task)
	}

	w = ts.do(t, http.MethodPatch, "/v1/tasks/0", `{}`)
	expectStatus(t, w, http.StatusBadRequest)

	w = ts.do(t, http.MethodDelete, "/v1/tasks/0", "")
	expectStatus(t, w, http.StatusOK)
	if task := decodeTask(t, w); !task.Deleted {
		t.Error("task not marked deleted")
	}

	w = ts.do(t, http.MethodDelete, "/v1/tasks/0", "")
	expectStatus(t, w, http.StatusUnprocessableEntity)

	w = ts.do(t, http.MethodGet, "/v1/tasks", "")
	if tasks := decodeTasks(t, w); len(tasks) != 0 {
		t.Errorf("deleted task listed: %+v", tasks)
	}
	w = ts.do(t, http.MethodGet, "/v1/tasks?all=true", "")
	if tasks := decodeTasks(t, w); len(tasks) != 1 {
		t.Errorf("all=true listed %d tasks, want 1", len(tasks))
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks/0", "")
	expectStatus(t, w, http.StatusOK)
	w = ts.do(t, http.MethodGet, "/v1/tasks/9", "")
	expectStatus(t, w, http.StatusNotFound)
	w = ts.do(t, http.MethodGet, "/v1/tasks/abc", "")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestPinAndTags(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/add", `{"description":"a"}`)

	w := ts.do(t, http.MethodPost, "/v1/tasks/0/pin", "")
	expectStatus(t, w, http.StatusOK)
	if !decodeTask(t, w).Pinned {
		t.Error("task not pinned")
	}
	w = ts.do(t, http.MethodDelete, "/v1/tasks/0/pin", "")
	expectStatus(t, w, http.StatusOK)
	if decodeTask(t, w).Pinned {
		t.Error("task still pinned")
	}

	w = ts.do(t, http.MethodPost, "/v1/tasks/0/tags", `{"tag":"home"}`)
	expectStatus(t, w, http.StatusOK)
	w = ts.do(t, http.MethodDelete, "/v1/tasks/0/tags/home", "")
	expectStatus(t, w, http.StatusOK)
	if tags := decodeTask(t, w).Tags; len(tags) != 0 {
		t.Errorf("tags = %v, want empty", tags)
	}
	w = ts.do(t, http.MethodDelete, "/v1/tasks/0/tags/home", "")
	expectStatus(t, w, http.StatusUnprocessableEntity)
}

func TestRelations(t *testing.T) {
	ts := newTestServer(t)
	for range 3 {
		ts.do(t, http.MethodPost, "/v1/add", `{"description":"x"}`)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/v1/dependencies/0/1", ""), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/dependencies/0/1", ""), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/dependencies/1/1", ""), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/dependencies/0/7", ""), http.StatusNotFound)

	w := ts.do(t, http.MethodGet, "/v1/blocked", "")
	if tasks := decodeTasks(t, w); len(tasks) != 1 || tasks[0].ID != 1 {
		t.Errorf("blocked = %+v, want [1]", tasks)
	}
	w = ts.do(t, http.MethodGet, "/v1/ready", "")
	if tasks := decodeTasks(t, w); len(tasks) != 2 {
		t.Errorf("ready = %d tasks, want 2", len(tasks))
	}

	expectStatus(t, ts.do(t, http.MethodDelete, "/v1/dependencies/0/1", ""), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodDelete, "/v1/dependencies/0/1", ""), http.StatusUnprocessableEntity)

	expectStatus(t, ts.do(t, http.MethodPost, "/v1/subtasks/0/2", ""), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodPost, "/v1/subtasks/1/2", ""), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodDelete, "/v1/subtasks/1/2", ""), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodDelete, "/v1/subtasks/0/2", ""), http.StatusNoContent)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/settings", "")
	expectStatus(t, w, http.StatusOK)
	var st settings.Settings
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st != settings.Default() {
		t.Errorf("settings = %+v, want defaults", st)
	}

	w = ts.do(t, http.MethodPatch, "/v1/settings", `{"show_finished":true}`)
	expectStatus(t, w, http.StatusOK)

	w = ts.do(t, http.MethodGet, "/v1/settings", "")
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.ShowFinished || !st.ShowTags {
		t.Errorf("settings after patch = %+v", st)
	}

	expectStatus(t, ts.do(t, http.MethodPatch, "/v1/settings", `{"show_colors":true}`), http.StatusBadRequest)
}

func TestCORSAndPreflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodOptions, "/v1/add", "")
	expectStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PATCH") {
		t.Errorf("Allow-Methods = %q", got)
	}

	w = ts.do(t, http.MethodGet, "/v1/tasks", "")
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing on normal response")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

// failingBackend wraps a backend and fails every write.
type failingBackend struct{ taskstorage.Backend }

func (failingBackend) Write(context.Context, []byte) error { return errors.New("disk full") }

func TestPersistenceFailureIs500(t *testing.T) {
	engine := taskservice.New(failingBackend{filesystem.New(t.TempDir())})
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := New(engine, nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/add", bytes.NewBufferString(`{"description":"x"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	expectStatus(t, w, http.StatusInternalServerError)
	if engine.Len() != 0 {
		t.Error("task kept despite failed write")
	}
}

func TestFollowReloadsOnExternalWrite(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := ts.store.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer watcher.Stop()

	done := make(chan struct{})
	go func() {
		ts.srv.Follow(ctx, watcher.Changes)
		close(done)
	}()

	// Another process (here a second engine) writes the same snapshot.
	other := taskservice.New(filesystem.New(filepath.Dir(ts.store.Path())))
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := other.Create(ctx, "from the cli", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for ts.engine.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("server engine did not reload")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestFollowStopsWhenChannelCloses(t *testing.T) {
	ts := newTestServer(t)
	changes := make(chan struct{})
	done := make(chan struct{})
	go func() {
		ts.srv.Follow(context.Background(), changes)
		close(done)
	}()
	close(changes)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Follow did not return after channel closed")
	}
}

func TestServeAndShutdown(t *testing.T) {
	srv := newTestServer(t).srv

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/tasks")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Serve returned %v, want http.ErrServerClosed", err)
	}
}
