package hydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/inkwell-app/inkwell/internal/auth"
	"github.com/inkwell-app/inkwell/internal/drive"
	"github.com/inkwell-app/inkwell/internal/entity"
	"github.com/inkwell-app/inkwell/internal/store"
)

const folderMIME = "application/vnd.google-apps.folder"

// fakeRemote serves a fixed file tree over the list and download
// endpoints the bootstrapper uses.
type fakeRemote struct {
	files    map[string]*remoteFile
	nextID   int
	requests int32
}

type remoteFile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
	content  string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{files: make(map[string]*remoteFile)}
}

func (f *fakeRemote) addFolder(parentID, name string) string {
	f.nextID++
	id := fmt.Sprintf("dir-%d", f.nextID)
	rf := &remoteFile{ID: id, Name: name, MimeType: folderMIME}
	if parentID != "" {
		rf.Parents = []string{parentID}
	}
	f.files[id] = rf
	return id
}

func (f *fakeRemote) addFile(parentID, name, content string) string {
	f.nextID++
	id := fmt.Sprintf("file-%d", f.nextID)
	f.files[id] = &remoteFile{
		ID: id, Name: name, MimeType: "text/markdown",
		Parents: []string{parentID}, content: content,
	}
	return id
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.requests, 1)

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/files":
		q := r.URL.Query().Get("q")
		var out struct {
			Files []*remoteFile `json:"files"`
		}
		for _, rf := range f.files {
			if matches(q, rf) {
				out.Files = append(out.Files, rf)
			}
		}
		json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/files/")
		rf, ok := f.files[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		io.WriteString(w, rf.content)
	default:
		http.Error(w, "unexpected: "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func matches(q string, rf *remoteFile) bool {
	for _, clause := range strings.Split(q, " and ") {
		clause = strings.TrimSpace(clause)
		switch {
		case clause == "trashed = false":
		case strings.HasPrefix(clause, "name = '"):
			if rf.Name != strings.TrimSuffix(strings.TrimPrefix(clause, "name = '"), "'") {
				return false
			}
		case strings.HasPrefix(clause, "mimeType = '"):
			if rf.MimeType != strings.TrimSuffix(strings.TrimPrefix(clause, "mimeType = '"), "'") {
				return false
			}
		case strings.HasSuffix(clause, "' in parents"):
			want := strings.TrimSuffix(strings.TrimPrefix(clause, "'"), "' in parents")
			found := false
			for _, p := range rf.Parents {
				if p == want {
					found = true
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "inkwell.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchemaContext(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}

func newTestClient(t *testing.T, remote *fakeRemote, token string) *drive.Client {
	t.Helper()
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)
	return drive.NewClient(auth.StaticTokenSource(token), drive.NewFolderCache(""), nil,
		drive.WithBaseURLs(srv.URL+"/api", srv.URL+"/upload"))
}

// seedJournal fills the fake remote with a small journal under rootName.
func seedJournal(remote *fakeRemote, rootName string) {
	rootID := remote.addFolder("", rootName)
	remote.addFile(rootID, "memory.md", "## Background\n\nGrew up by the coast.\n")

	capturesID := remote.addFolder(rootID, "captures")
	remote.addFile(capturesID, "2025-06-01.md",
		"## Pending\n\n- [ ] buy milk (07:32)\n\n## Done\n\n- [x] call mom (09:00)\n")
	remote.addFile(capturesID, "notes.txt", "not a journal file")

	checkinsID := remote.addFolder(rootID, "checkins")
	remote.addFile(checkinsID, "2025-06-01-morning.md",
		"# Morning Check-in\n\n## How did you sleep?\n\nWell enough.\n")
}

func TestHydratesEmptyDatabase(t *testing.T) {
	remote := newFakeRemote()
	seedJournal(remote, "Inkwell")
	st := newTestStore(t)
	ctx := context.Background()

	b := New(st, newTestClient(t, remote, "tok"), "Inkwell", "", nil)
	res, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// memory + two captures + one check-in; notes.txt skipped.
	if res.Hydrated != 4 {
		t.Errorf("hydrated = %d, want 4", res.Hydrated)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if b.Stage() != StageDone {
		t.Errorf("stage = %s, want done", b.Stage())
	}

	captures, err := st.CapturesByDate(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("load captures: %v", err)
	}
	if len(captures) != 2 {
		t.Fatalf("captures = %d, want 2", len(captures))
	}
	for _, c := range captures {
		if c.SyncStatus != entity.SyncSynced {
			t.Errorf("capture %q status = %s, want synced", c.Content, c.SyncStatus)
		}
		if c.RemoteFileID == "" {
			t.Errorf("capture %q has no remote id", c.Content)
		}
	}

	checkin, err := st.CheckinForSlot(ctx, "2025-06-01", entity.Morning)
	if err != nil {
		t.Fatalf("load check-in: %v", err)
	}
	if len(checkin.Entries) != 1 || checkin.Entries[0].Response != "Well enough." {
		t.Errorf("check-in entries = %+v", checkin.Entries)
	}

	m, err := st.GetMemory(ctx)
	if err != nil {
		t.Fatalf("load memory: %v", err)
	}
	if len(m.Sections) != 1 || m.Sections[0].Heading != "Background" {
		t.Errorf("memory sections = %+v", m.Sections)
	}
}

func TestNonEmptyDatabaseIsNeverTouched(t *testing.T) {
	remote := newFakeRemote()
	seedJournal(remote, "Inkwell")
	st := newTestStore(t)
	ctx := context.Background()

	local := entity.NewCapture("2025-05-30", "my working copy")
	if err := st.PutCapture(ctx, local); err != nil {
		t.Fatal(err)
	}

	b := New(st, newTestClient(t, remote, "tok"), "Inkwell", "", nil)
	res, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Hydrated != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
	if b.Stage() != StageSkipped {
		t.Errorf("stage = %s, want skipped", b.Stage())
	}
	if n := atomic.LoadInt32(&remote.requests); n != 0 {
		t.Errorf("remote requests = %d, want 0", n)
	}
}

func TestLegacyRootFallback(t *testing.T) {
	remote := newFakeRemote()
	seedJournal(remote, "Companion")
	st := newTestStore(t)

	b := New(st, newTestClient(t, remote, "tok"), "Inkwell", "Companion", nil)
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Hydrated != 4 {
		t.Errorf("hydrated = %d, want 4 from legacy root", res.Hydrated)
	}
	if b.Stage() != StageDone {
		t.Errorf("stage = %s, want done", b.Stage())
	}
}

func TestNoCredentialsDefersHydration(t *testing.T) {
	remote := newFakeRemote()
	seedJournal(remote, "Inkwell")
	st := newTestStore(t)

	b := New(st, newTestClient(t, remote, ""), "Inkwell", "", nil)
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Hydrated != 0 {
		t.Errorf("hydrated = %d, want 0", res.Hydrated)
	}
	if b.Stage() != StageSkipped {
		t.Errorf("stage = %s, want skipped", b.Stage())
	}
	if n := atomic.LoadInt32(&remote.requests); n != 0 {
		t.Errorf("remote requests = %d, want 0", n)
	}
}

func TestMissingRootHydratesNothing(t *testing.T) {
	remote := newFakeRemote()
	st := newTestStore(t)

	b := New(st, newTestClient(t, remote, "tok"), "Inkwell", "", nil)
	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Hydrated != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
	if b.Stage() != StageDone {
		t.Errorf("stage = %s, want done", b.Stage())
	}
}
