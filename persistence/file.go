package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// Save writes the store to path, replacing any previous save atomically
func Save(path string, store *waypoint.Store) error {
	var buf bytes.Buffer
	if err := Encode(&buf, Snapshot(store)); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace save: %w", err)
	}
	return nil
}

// Load restores the store from path
// A missing file returns ErrNoDocument and leaves the store untouched
func Load(path string, store *waypoint.Store) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoDocument
	}
	if err != nil {
		return fmt.Errorf("read save: %w", err)
	}

	doc, err := Decode(data)
	if err != nil {
		return err
	}
	Restore(store, doc)
	return nil
}
