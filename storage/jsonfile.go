package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONFileBackend stores each collection as one JSON object file
// (<dir>/<collection>.json) mapping id to document. Files are cached and
// rewritten atomically through a temp file and rename. Several processes may
// share a directory (kb serve next to the maintenance commands): every write
// holds <collection>.json.lock and re-reads the file first, and reads reload
// a file another process has replaced.
type JSONFileBackend struct {
	dir string

	mu          sync.Mutex
	collections map[string]*fileCollection
	closed      bool
}

type fileCollection struct {
	mu       sync.Mutex
	path     string
	lockFile *os.File
	// seen is the file as last read or written by this process.
	seen    os.FileInfo
	records map[string]json.RawMessage
}

func NewJSONFileBackend(dir string) (*JSONFileBackend, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &JSONFileBackend{
		dir:         dir,
		collections: make(map[string]*fileCollection),
	}, nil
}

func (b *JSONFileBackend) collection(ctx context.Context, name string) (*fileCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrUnavailable
	}
	if fc, ok := b.collections[name]; ok {
		return fc, nil
	}

	fc := &fileCollection{
		path:    filepath.Join(b.dir, name+".json"),
		records: make(map[string]json.RawMessage),
	}
	lf, err := os.OpenFile(fc.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %v", ErrUnavailable, err)
	}
	fc.lockFile = lf
	if err := fc.load(); err != nil {
		lf.Close()
		return nil, err
	}
	slog.Debug("Loaded collection file", "collection", name, "records", len(fc.records))
	b.collections[name] = fc
	return fc, nil
}

// read runs fn over an up-to-date view of the collection.
func (b *JSONFileBackend) read(ctx context.Context, collection string, fn func(records map[string]json.RawMessage) error) error {
	fc, err := b.collection(ctx, collection)
	if err != nil {
		return err
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if err := fc.refresh(); err != nil {
		return err
	}
	return fn(fc.records)
}

// write applies fn under the cross-process lock and persists the result. fn
// returns an undo that is run if the file cannot be written.
func (b *JSONFileBackend) write(ctx context.Context, collection string, fn func(records map[string]json.RawMessage) (func(), error)) error {
	fc, err := b.collection(ctx, collection)
	if err != nil {
		return err
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if err := lockFile(fc.lockFile); err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrUnavailable, fc.path, err)
	}
	defer func() {
		if err := unlockFile(fc.lockFile); err != nil {
			slog.Warn("Failed to unlock collection file", "path", fc.path, "error", err)
		}
	}()

	if err := fc.refresh(); err != nil {
		return err
	}
	undo, err := fn(fc.records)
	if err != nil {
		return err
	}
	if err := fc.flush(); err != nil {
		undo()
		return err
	}
	return nil
}

func (b *JSONFileBackend) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var out []byte
	err := b.read(ctx, collection, func(records map[string]json.RawMessage) error {
		v, ok := records[id]
		if !ok {
			return ErrNotFound
		}
		out = copyBytes(v)
		return nil
	})
	return out, err
}

func (b *JSONFileBackend) Scan(ctx context.Context, collection, prefix string) ([][]byte, error) {
	var out [][]byte
	err := b.read(ctx, collection, func(records map[string]json.RawMessage) error {
		out = scanMap(records, prefix)
		return nil
	})
	return out, err
}

func (b *JSONFileBackend) Put(ctx context.Context, collection, id string, data []byte) error {
	return b.write(ctx, collection, func(records map[string]json.RawMessage) (func(), error) {
		prev, had := records[id]
		records[id] = copyBytes(data)
		return func() {
			if had {
				records[id] = prev
				return
			}
			delete(records, id)
		}, nil
	})
}

func (b *JSONFileBackend) Insert(ctx context.Context, collection, id string, data []byte) error {
	return b.write(ctx, collection, func(records map[string]json.RawMessage) (func(), error) {
		if _, ok := records[id]; ok {
			return nil, ErrExists
		}
		records[id] = copyBytes(data)
		return func() { delete(records, id) }, nil
	})
}

func (b *JSONFileBackend) Delete(ctx context.Context, collection, id string) error {
	return b.write(ctx, collection, func(records map[string]json.RawMessage) (func(), error) {
		prev, ok := records[id]
		if !ok {
			return nil, ErrNotFound
		}
		delete(records, id)
		return func() { records[id] = prev }, nil
	})
}

func (b *JSONFileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var errs []error
	for _, fc := range b.collections {
		fc.mu.Lock()
		errs = append(errs, fc.lockFile.Close())
		fc.mu.Unlock()
	}
	return errors.Join(errs...)
}

// refresh reloads the collection if the file changed since this process last
// saw it. Caller holds fc.mu.
func (fc *fileCollection) refresh() error {
	info, err := os.Stat(fc.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if fc.seen != nil {
			fc.records = make(map[string]json.RawMessage)
			fc.seen = nil
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: stat %s: %v", ErrUnavailable, fc.path, err)
	}
	if fc.seen != nil && os.SameFile(fc.seen, info) &&
		info.ModTime().Equal(fc.seen.ModTime()) && info.Size() == fc.seen.Size() {
		return nil
	}
	slog.Debug("Collection file changed on disk, reloading", "path", fc.path)
	return fc.load()
}

// load replaces the cached records with the file's contents. Caller holds
// fc.mu or has not published fc yet.
func (fc *fileCollection) load() error {
	f, err := os.Open(fc.path)
	if errors.Is(err, os.ErrNotExist) {
		fc.records = make(map[string]json.RawMessage)
		fc.seen = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", fc.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", fc.path, err)
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", fc.path, err)
	}
	records := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("parse %s: %w", fc.path, err)
		}
	}
	fc.records = records
	fc.seen = info
	return nil
}

// flush must be called with fc.mu held for writing.
func (fc *fileCollection) flush() error {
	data, err := json.MarshalIndent(fc.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", fc.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(fc.path), filepath.Base(fc.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %v", ErrUnavailable, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrUnavailable, tmpName, err)
	}
	if err := os.Rename(tmpName, fc.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", ErrUnavailable, fc.path, err)
	}
	info, err := os.Stat(fc.path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrUnavailable, fc.path, err)
	}
	fc.seen = info
	return nil
}
