package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

const testToken = "test-token"

// fakeCanvas serves the subset of the Canvas API used by canvas-export.
type fakeCanvas struct {
	srv *httptest.Server

	mu sync.Mutex
	// pages are JSON arrays served from /api/v1/courses in order.
	pages []string
	// progress and states are replayed per export; the last entry repeats.
	progress []float64
	states   []string
	failed   map[int]bool
	archive  []byte
	// noAttachment makes "exported" responses omit the attachment.
	noAttachment bool

	courseCalls    int
	created        []int
	exportForms    []string
	progressPos    map[int]int
	statePos       map[int]int
	attachmentHits int
}

func newFakeCanvas(t *testing.T) *fakeCanvas {
	t.Helper()

	f := &fakeCanvas{
		pages:       []string{`[]`},
		progress:    []float64{0, 50, 100},
		states:      []string{"exporting", "exported"},
		failed:      make(map[int]bool),
		archive:     []byte("PK\x03\x04 not really a zip"),
		progressPos: make(map[int]int),
		statePos:    make(map[int]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses", f.handleCourses)
	mux.HandleFunc("POST /api/v1/courses/{id}/content_exports", f.handleCreate)
	mux.HandleFunc("GET /api/v1/courses/{id}/content_exports/{export}", f.handleState)
	mux.HandleFunc("GET /progress/{export}", f.handleProgress)
	mux.HandleFunc("GET /files/{export}/export.zip", f.handleAttachment)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			http.Error(w, `{"errors":[{"message":"Invalid access token."}]}`, http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeCanvas) URL() string {
	return f.srv.URL
}

func (f *fakeCanvas) client(t *testing.T) *CanvasClient {
	t.Helper()
	c, err := NewCanvasClient(f.srv.URL, testToken, WithPollInterval(0))
	if err != nil {
		t.Fatalf("NewCanvasClient: %v", err)
	}
	return c
}

func (f *fakeCanvas) handleCourses(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courseCalls++

	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		page, _ = strconv.Atoi(p)
	}
	if page >= len(f.pages) {
		http.NotFound(w, r)
		return
	}

	base := "http://" + r.Host + "/api/v1/courses"
	links := fmt.Sprintf(`<%s?page=0>; rel="first", <%s?page=%d>; rel="last"`, base, base, len(f.pages)-1)
	if page+1 < len(f.pages) {
		links = fmt.Sprintf(`<%s?page=%d>; rel="next", %s`, base, page+1, links)
	}
	w.Header().Set("Link", links)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, f.pages[page])
}

func (f *fakeCanvas) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.created = append(f.created, id)
	f.exportForms = append(f.exportForms, r.PostForm.Get("export_type"))
	f.mu.Unlock()

	exportID := id + 1000
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":%d,"workflow_state":"created","progress_url":"http://%s/progress/%d"}`, exportID, r.Host, exportID)
}

func (f *fakeCanvas) handleProgress(w http.ResponseWriter, r *http.Request) {
	exportID, _ := strconv.Atoi(r.PathValue("export"))

	f.mu.Lock()
	pos := f.progressPos[exportID]
	if pos >= len(f.progress) {
		pos = len(f.progress) - 1
	}
	completion := f.progress[pos]
	f.progressPos[exportID]++
	f.mu.Unlock()

	fmt.Fprintf(w, `{"id":%d,"workflow_state":"running","completion":%v}`, exportID, completion)
}

func (f *fakeCanvas) handleState(w http.ResponseWriter, r *http.Request) {
	courseID, _ := strconv.Atoi(r.PathValue("id"))
	exportID, _ := strconv.Atoi(r.PathValue("export"))

	f.mu.Lock()
	pos := f.statePos[exportID]
	if pos >= len(f.states) {
		pos = len(f.states) - 1
	}
	state := f.states[pos]
	if state == "exported" && f.failed[courseID] {
		state = "failed"
	}
	f.statePos[exportID]++
	noAttachment := f.noAttachment
	f.mu.Unlock()

	if state == "exported" && !noAttachment {
		fmt.Fprintf(w, `{"id":%d,"workflow_state":"exported","attachment":{"url":"http://%s/files/%d/export.zip"}}`, exportID, r.Host, exportID)
		return
	}
	fmt.Fprintf(w, `{"id":%d,"workflow_state":%q}`, exportID, state)
}

func (f *fakeCanvas) handleAttachment(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.attachmentHits++
	data := f.archive
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/zip")
	w.Write(data)
}

func (f *fakeCanvas) courseCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.courseCalls
}

func (f *fakeCanvas) createdIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.created...)
}

func (f *fakeCanvas) attachmentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachmentHits
}

func (f *fakeCanvas) exportTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exportForms...)
}
