package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

const (
	watchDebounce = 200 * time.Millisecond
	watchedOps    = fsnotify.Write | fsnotify.Create | fsnotify.Chmod | fsnotify.Rename | fsnotify.Remove
)

// JSONRepository stores the persisted slices (auth and user) in a single JSON
// file and reconciles external edits of that file with the in-memory store.
type JSONRepository struct {
	path     string
	dir      string
	base     string
	validate *validator.Validate
	mu       sync.Mutex
}

// NewJSONRepository creates a repository for the given JSON file path.
func NewJSONRepository(path string) (Repository, error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}

	return &JSONRepository{
		path:     path,
		dir:      filepath.Dir(path),
		base:     filepath.Base(path),
		validate: validator.New(),
	}, nil
}

// Load reads, decodes and validates the data file. Fields missing from the
// file keep their fresh-install values. A missing file yields an error
// matching os.ErrNotExist.
func (r *JSONRepository) Load(ctx context.Context) (*DataDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	raw, err := os.ReadFile(r.path)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}

	doc := NewDataDocument()
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	doc.ApplyDefaults()

	if err := r.validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate data file: %w", err)
	}
	return &doc, nil
}

// Save validates doc and replaces the data file atomically.
func (r *JSONRepository) Save(ctx context.Context, doc *DataDocument) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if err := r.validate.Struct(doc); err != nil {
		return fmt.Errorf("validate before save: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFileAtomic(r.dir, r.base, payload)
}

// writeFileAtomic writes payload to a temp file in dir and renames it over
// dir/base, so readers never observe a partial document.
func writeFileAtomic(dir, base string, payload []byte) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(dir, base)); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// StartWatcher reloads the persisted slices into store when the data file
// changes on disk. The parent directory is watched so that temp+rename
// replacements are seen too. Cancel ctx to stop watching.
func (r *JSONRepository) StartWatcher(ctx context.Context, store StateStore) error {
	if store == nil {
		return errors.New("state store is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go r.watch(ctx, watcher, r.MakeWatcherCallback(store))
	return nil
}

// watch debounces events on the data file into calls to onChange.
func (r *JSONRepository) watch(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != r.base || event.Op&watchedOps == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(watchDebounce, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithComponent("repo").Warnf("watcher error: %v", err)
		}
	}
}

// MakeWatcherCallback returns the reload callback used by the watcher.
func (r *JSONRepository) MakeWatcherCallback(store StateStore) func() {
	return func() {
		log := logger.WithComponent("repo")
		disk, err := r.Load(context.Background())
		if err != nil {
			log.Warnf("watch reload failed: %v", err)
			return
		}

		if reason := skipReload(store, disk); reason != "" {
			log.Debugf("data file changed, not reloading: %s", reason)
			return
		}
		if err := store.Replace(*disk); err != nil {
			log.Errorf("reload error: %v", err)
			return
		}
		log.Info("persisted state reloaded from newer disk version")
	}
}

// skipReload returns why disk must not replace the in-memory slices, or "" if
// it should. Unsaved changes win because they overwrite the file on the next
// flush.
func skipReload(store StateStore, disk *DataDocument) string {
	memory := store.GetLastUpdate()
	switch {
	case disk.Metadata.LastUpdate < memory:
		return fmt.Sprintf("disk version %d is older than memory %d", disk.Metadata.LastUpdate, memory)
	case store.IsDirty():
		return "state has unsaved changes"
	case disk.Metadata.LastUpdate > memory:
		return ""
	}

	snapshot, err := store.Snapshot()
	if err != nil {
		return fmt.Sprintf("snapshot failed: %v", err)
	}
	if AreDataDocumentsEqual(&snapshot, disk) {
		return "content unchanged"
	}
	return ""
}
