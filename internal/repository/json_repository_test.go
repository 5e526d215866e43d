package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bassista/go_happyhour/internal/state"
)

func createTestDataDocument() DataDocument {
	doc := NewDataDocument()
	doc.Metadata = Metadata{LastUpdate: 1000}
	doc.Auth.User = &state.User{ID: 1, Email: "ann@example.com", FirstName: "Ann", SubscriptionStatus: state.SubscriptionFree}
	doc.Auth.Token = "tok"
	doc.Auth.IsAuthenticated = true
	doc.User.CheckIns = []state.CheckIn{{ID: "c1", VenueID: "v1", VenueName: "Tap Room"}}
	doc.User.TotalCheckIns = 1
	return doc
}

func writeDoc(t *testing.T, path string, doc any) {
	t.Helper()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
}

func TestNewJSONRepository_Success(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo == nil {
		t.Error("expected repository to be created")
	}
}

func TestNewJSONRepository_EmptyPath(t *testing.T) {
	_, err := NewJSONRepository("")
	if err == nil {
		t.Error("expected error for empty path")
	}
}

func TestJSONRepository_LoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeDoc(t, path, createTestDataDocument())

	repo, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if loaded.Auth.User == nil || loaded.Auth.User.Email != "ann@example.com" {
		t.Errorf("expected user to round-trip, got %+v", loaded.Auth.User)
	}
	if len(loaded.User.CheckIns) != 1 {
		t.Errorf("expected 1 check-in, got %d", len(loaded.User.CheckIns))
	}

	loaded.Auth.Token = "tok2"
	if err := repo.Save(context.Background(), loaded); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	again, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if again.Auth.Token != "tok2" {
		t.Errorf("expected token tok2, got %q", again.Auth.Token)
	}
}

func TestJSONRepository_Load_FileNotFound(t *testing.T) {
	repo, _ := NewJSONRepository(filepath.Join(t.TempDir(), "missing.json"))
	_, err := repo.Load(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestJSONRepository_Load_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo, _ := NewJSONRepository(path)
	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestJSONRepository_Load_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"metadata":{"lastUpdate":5},"auth":{"isFirstLaunch":false}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo, _ := NewJSONRepository(path)
	doc, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Auth.IsFirstLaunch {
		t.Error("expected isFirstLaunch from file")
	}
	if doc.User.Preferences.DefaultRadius != 25 {
		t.Errorf("expected default radius 25, got %v", doc.User.Preferences.DefaultRadius)
	}
	if doc.User.CheckIns == nil {
		t.Error("expected check-ins to default to an empty list")
	}
}

func TestJSONRepository_Load_ValidationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	doc := createTestDataDocument()
	doc.Auth.User.Email = "not-an-email"
	writeDoc(t, path, doc)

	repo, _ := NewJSONRepository(path)
	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("expected validation error")
	}
}

func TestJSONRepository_Save_NilDocument(t *testing.T) {
	repo, _ := NewJSONRepository(filepath.Join(t.TempDir(), "state.json"))
	if err := repo.Save(context.Background(), nil); err == nil {
		t.Error("expected error for nil document")
	}
}

func TestJSONRepository_Save_ValidationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	repo, _ := NewJSONRepository(path)

	doc := createTestDataDocument()
	doc.User.Preferences.Theme = "neon"
	if err := repo.Save(context.Background(), &doc); err == nil {
		t.Error("expected validation error")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected no file to be written")
	}
}

func TestJSONRepository_Save_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	repo, _ := NewJSONRepository(path)
	doc := createTestDataDocument()
	if err := repo.Save(context.Background(), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the data file, found %d entries", len(entries))
	}
}

// MockStateStore implements StateStore for watcher tests.
type MockStateStore struct {
	lastUpdate int64
	dirty      bool
	snapshot   DataDocument
	replaced   *DataDocument
}

func (m *MockStateStore) GetLastUpdate() int64 {
	return m.lastUpdate
}

func (m *MockStateStore) IsDirty() bool {
	return m.dirty
}

func (m *MockStateStore) Snapshot() (DataDocument, error) {
	return m.snapshot, nil
}

func (m *MockStateStore) Replace(doc DataDocument) error {
	m.replaced = &doc
	return nil
}

func setupWatcherTest(t *testing.T, diskUpdate int64) (*JSONRepository, DataDocument) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	doc := createTestDataDocument()
	doc.Metadata.LastUpdate = diskUpdate
	writeDoc(t, path, doc)
	repo, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return repo.(*JSONRepository), doc
}

func TestJSONRepository_MakeWatcherCallback_ReloadsWhenDiskNewer(t *testing.T) {
	repo, _ := setupWatcherTest(t, 2000)
	store := &MockStateStore{lastUpdate: 1000, snapshot: NewDataDocument()}

	repo.MakeWatcherCallback(store)()

	if store.replaced == nil {
		t.Fatal("expected state to be replaced")
	}
	if store.replaced.Auth.Token != "tok" {
		t.Errorf("expected token from disk, got %q", store.replaced.Auth.Token)
	}
}

func TestJSONRepository_MakeWatcherCallback_SkipsWhenDiskOlder(t *testing.T) {
	repo, _ := setupWatcherTest(t, 500)
	store := &MockStateStore{lastUpdate: 1000}

	repo.MakeWatcherCallback(store)()

	if store.replaced != nil {
		t.Error("expected no reload when disk is older")
	}
}

func TestJSONRepository_MakeWatcherCallback_SkipsWhenDirty(t *testing.T) {
	repo, _ := setupWatcherTest(t, 2000)
	store := &MockStateStore{lastUpdate: 1000, dirty: true}

	repo.MakeWatcherCallback(store)()

	if store.replaced != nil {
		t.Error("expected no reload when state is dirty")
	}
}

func TestJSONRepository_MakeWatcherCallback_SkipsWhenSameContent(t *testing.T) {
	repo, doc := setupWatcherTest(t, 1000)
	store := &MockStateStore{lastUpdate: 1000, snapshot: doc}

	repo.MakeWatcherCallback(store)()

	if store.replaced != nil {
		t.Error("expected no reload when content is unchanged")
	}
}

func TestJSONRepository_StartWatcher_ReloadsOnWrite(t *testing.T) {
	repo, _ := setupWatcherTest(t, 1000)
	store := &lockedStore{MockStateStore: MockStateStore{lastUpdate: 1000, snapshot: NewDataDocument()}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := repo.StartWatcher(ctx, store); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	doc := createTestDataDocument()
	doc.Metadata.LastUpdate = 3000
	doc.Auth.Token = "from-disk"
	if err := repo.Save(context.Background(), &doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if tok := store.replacedToken(); tok == "from-disk" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected watcher to reload the state")
}

func TestJSONRepository_StartWatcher_NilStore(t *testing.T) {
	repo, _ := setupWatcherTest(t, 1000)
	if err := repo.StartWatcher(context.Background(), nil); err == nil {
		t.Error("expected error for nil store")
	}
}

// lockedStore guards MockStateStore for use from the watcher goroutine.
type lockedStore struct {
	mu sync.Mutex
	MockStateStore
}

func (l *lockedStore) GetLastUpdate() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.MockStateStore.GetLastUpdate()
}

func (l *lockedStore) IsDirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.MockStateStore.IsDirty()
}

func (l *lockedStore) Snapshot() (DataDocument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.MockStateStore.Snapshot()
}

func (l *lockedStore) Replace(doc DataDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.MockStateStore.Replace(doc)
}

func (l *lockedStore) replacedToken() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replaced == nil {
		return ""
	}
	return l.replaced.Auth.Token
}

func TestSkipReload(t *testing.T) {
	disk := createTestDataDocument()
	changed := disk
	changed.Auth.Token = "other"

	tests := []struct {
		name   string
		store  *MockStateStore
		reload bool
	}{
		{"disk newer", &MockStateStore{lastUpdate: 999}, true},
		{"disk older", &MockStateStore{lastUpdate: 1001}, false},
		{"dirty", &MockStateStore{lastUpdate: 999, dirty: true}, false},
		{"same version same content", &MockStateStore{lastUpdate: 1000, snapshot: disk}, false},
		{"same version other content", &MockStateStore{lastUpdate: 1000, snapshot: changed}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := skipReload(tt.store, &disk)
			if got := reason == ""; got != tt.reload {
				t.Errorf("reload = %v (reason %q), want %v", got, reason, tt.reload)
			}
		})
	}
}
