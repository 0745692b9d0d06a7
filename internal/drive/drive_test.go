package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeStore is a minimal in-process stand-in for the remote API,
// covering just the requests the client issues.
type fakeStore struct {
	t *testing.T

	mu      sync.Mutex
	files   map[string]*storedFile
	nextID  int
	creates int32
	updates int32
	lists   int32
}

type storedFile struct {
	File
	content string
}

func newFakeStore(t *testing.T) *fakeStore {
	return &fakeStore{t: t, files: make(map[string]*storedFile)}
}

func (f *fakeStore) newID() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload/files":
		f.handleMultipartCreate(w, r)
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/upload/files/"):
		f.handleMediaUpdate(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/files":
		f.handleMetadataCreate(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/files":
		f.handleList(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/files/"):
		f.handleDownload(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/files/"):
		f.handleDelete(w, r)
	default:
		http.Error(w, "unexpected request: "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func (f *fakeStore) handleMultipartCreate(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.creates, 1)

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		http.Error(w, "not multipart", http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, "missing metadata part", http.StatusBadRequest)
		return
	}
	var meta File
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		http.Error(w, "bad metadata", http.StatusBadRequest)
		return
	}

	mediaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, "missing media part", http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(mediaPart)
	if err != nil {
		http.Error(w, "bad media", http.StatusBadRequest)
		return
	}

	sf := &storedFile{File: meta, content: string(content)}
	sf.ID = f.newID()
	f.files[sf.ID] = sf
	json.NewEncoder(w).Encode(sf.File)
}

func (f *fakeStore) handleMediaUpdate(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.updates, 1)
	id := strings.TrimPrefix(r.URL.Path, "/upload/files/")
	sf, ok := f.files[id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	content, _ := io.ReadAll(r.Body)
	sf.content = string(content)
	json.NewEncoder(w).Encode(sf.File)
}

func (f *fakeStore) handleMetadataCreate(w http.ResponseWriter, r *http.Request) {
	var meta File
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		http.Error(w, "bad metadata", http.StatusBadRequest)
		return
	}
	sf := &storedFile{File: meta}
	sf.ID = f.newID()
	f.files[sf.ID] = sf
	json.NewEncoder(w).Encode(sf.File)
}

func (f *fakeStore) handleList(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.lists, 1)
	q := r.URL.Query().Get("q")
	var out fileList
	for _, sf := range f.files {
		if sf.Trashed {
			continue
		}
		if !matchesQuery(q, sf) {
			continue
		}
		out.Files = append(out.Files, sf.File)
	}
	json.NewEncoder(w).Encode(out)
}

// matchesQuery applies the handful of clauses the client builds. It is
// not a query parser; unknown clauses fail the test loudly.
func matchesQuery(q string, sf *storedFile) bool {
	for _, clause := range strings.Split(q, " and ") {
		clause = strings.TrimSpace(clause)
		switch {
		case clause == "trashed = false":
			if sf.Trashed {
				return false
			}
		case strings.HasPrefix(clause, "name = '"):
			want := strings.TrimSuffix(strings.TrimPrefix(clause, "name = '"), "'")
			if sf.Name != want {
				return false
			}
		case strings.HasPrefix(clause, "mimeType = '"):
			want := strings.TrimSuffix(strings.TrimPrefix(clause, "mimeType = '"), "'")
			if sf.MimeType != want {
				return false
			}
		case strings.HasSuffix(clause, "' in parents"):
			want := strings.TrimSuffix(strings.TrimPrefix(clause, "'"), "' in parents")
			found := false
			for _, p := range sf.Parents {
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

func (f *fakeStore) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/files/")
	sf, ok := f.files[id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	io.WriteString(w, sf.content)
}

func (f *fakeStore) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if _, ok := f.files[id]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	delete(f.files, id)
	w.WriteHeader(http.StatusNoContent)
}

type staticTokens string

func (s staticTokens) Token() (string, bool) { return string(s), s != "" }

func newTestClient(t *testing.T, store *fakeStore, cache *FolderCache) *Client {
	t.Helper()
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)
	return NewClient(staticTokens("test-token"), cache, nil,
		WithBaseURLs(srv.URL+"/api", srv.URL+"/upload"),
		WithHTTPClient(srv.Client()))
}

func TestCreateFileMultipart(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, nil)

	f, err := client.CreateFile(context.Background(), "folder-1", "2025-06-01.md", "- [ ] buy milk (07:32)\n")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if f.ID == "" {
		t.Fatal("created file has no ID")
	}

	sf := store.files[f.ID]
	if sf == nil {
		t.Fatal("file not stored")
	}
	if sf.Name != "2025-06-01.md" {
		t.Errorf("name = %q", sf.Name)
	}
	if len(sf.Parents) != 1 || sf.Parents[0] != "folder-1" {
		t.Errorf("parents = %v", sf.Parents)
	}
	if sf.content != "- [ ] buy milk (07:32)\n" {
		t.Errorf("content = %q", sf.content)
	}
}

func TestUpdateFileInPlace(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, nil)
	ctx := context.Background()

	f, err := client.CreateFile(ctx, "folder-1", "2025-06-01.md", "v1")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if _, err := client.UpdateFile(ctx, f.ID, "v2"); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	if len(store.files) != 1 {
		t.Errorf("file count = %d, want 1 (update must not create a new file)", len(store.files))
	}
	if got := store.files[f.ID].content; got != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestDownload(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, nil)
	ctx := context.Background()

	f, err := client.CreateFile(ctx, "", "memory.md", "# Memory\n")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	content, err := client.Download(ctx, f.ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if content != "# Memory\n" {
		t.Errorf("content = %q", content)
	}
}

func TestDeleteFileIdempotent(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, nil)
	ctx := context.Background()

	f, err := client.CreateFile(ctx, "", "memory.md", "x")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if err := client.DeleteFile(ctx, f.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := client.DeleteFile(ctx, f.ID); err != nil {
		t.Fatalf("second delete should succeed on 404: %v", err)
	}
	if err := client.DeleteFile(ctx, "never-existed"); err != nil {
		t.Fatalf("delete of unknown file should succeed: %v", err)
	}
}

func TestNoCredentials(t *testing.T) {
	store := newFakeStore(t)
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)
	client := NewClient(staticTokens(""), nil, nil,
		WithBaseURLs(srv.URL+"/api", srv.URL+"/upload"))

	if client.Available() {
		t.Error("Available() = true with no token")
	}
	_, err := client.CreateFile(context.Background(), "", "x.md", "x")
	if err != ErrNoCredentials {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
	if store.creates != 0 {
		t.Error("request reached the server without credentials")
	}
}

func TestStatusError(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, nil)

	_, err := client.Download(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestGetOrCreateFolder(t *testing.T) {
	store := newFakeStore(t)
	cache := NewFolderCache(filepath.Join(t.TempDir(), "folders.json"))
	client := newTestClient(t, store, cache)
	ctx := context.Background()

	id, err := client.GetOrCreateFolder(ctx, "root-1", "captures")
	if err != nil {
		t.Fatalf("GetOrCreateFolder: %v", err)
	}
	if id == "" {
		t.Fatal("empty folder id")
	}

	// Second call must come from the cache, no remote traffic.
	before := atomic.LoadInt32(&store.lists)
	again, err := client.GetOrCreateFolder(ctx, "root-1", "captures")
	if err != nil {
		t.Fatalf("GetOrCreateFolder again: %v", err)
	}
	if again != id {
		t.Errorf("second resolve = %q, want %q", again, id)
	}
	if atomic.LoadInt32(&store.lists) != before {
		t.Error("cached resolve still hit the server")
	}
}

func TestGetOrCreateFolderFindsExisting(t *testing.T) {
	store := newFakeStore(t)
	store.files["existing"] = &storedFile{File: File{
		ID: "existing", Name: "checkins", MimeType: folderMIME, Parents: []string{"root-1"},
	}}
	client := newTestClient(t, store, NewFolderCache(""))

	id, err := client.GetOrCreateFolder(context.Background(), "root-1", "checkins")
	if err != nil {
		t.Fatalf("GetOrCreateFolder: %v", err)
	}
	if id != "existing" {
		t.Errorf("id = %q, want existing", id)
	}
}

func TestGetOrCreateFolderConcurrent(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, NewFolderCache(""))

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = client.GetOrCreateFolder(context.Background(), "root-1", "chats")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("call %d resolved %q, want %q", i, ids[i], ids[0])
		}
	}
	if got := len(store.files); got != 1 {
		t.Errorf("folder count = %d, want 1 (concurrent creates must collapse)", got)
	}
}

func TestFolderCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folders.json")

	first := NewFolderCache(path)
	first.Put("root-1", "captures", "folder-9")

	second := NewFolderCache(path)
	id, ok := second.Get("root-1", "captures")
	if !ok || id != "folder-9" {
		t.Errorf("reloaded cache = (%q, %v), want folder-9", id, ok)
	}

	second.Forget("root-1", "captures")
	if _, ok := second.Get("root-1", "captures"); ok {
		t.Error("Forget did not drop the entry")
	}
}

func TestFindFileAndListFolder(t *testing.T) {
	store := newFakeStore(t)
	client := newTestClient(t, store, nil)
	ctx := context.Background()

	if _, err := client.CreateFile(ctx, "folder-1", "2025-06-01.md", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateFile(ctx, "folder-1", "2025-06-02.md", "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateFile(ctx, "folder-2", "2025-06-01.md", "c"); err != nil {
		t.Fatal(err)
	}

	f, err := client.FindFile(ctx, "folder-1", "2025-06-02.md")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	if f == nil || f.Name != "2025-06-02.md" {
		t.Errorf("FindFile = %+v", f)
	}

	missing, err := client.FindFile(ctx, "folder-1", "nope.md")
	if err != nil {
		t.Fatalf("FindFile missing: %v", err)
	}
	if missing != nil {
		t.Errorf("FindFile returned %+v for absent file", missing)
	}

	files, err := client.ListFolder(ctx, "folder-1")
	if err != nil {
		t.Fatalf("ListFolder: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("ListFolder = %d files, want 2", len(files))
	}
}
