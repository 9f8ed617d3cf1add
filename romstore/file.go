package romstore

// file.go implements the file-per-key ROM: each key maps to one gob-encoded
// file under the store directory.  Writes go through an atomic replace so a
// crash mid-write never leaves a torn file behind; a reader either sees the
// old value or the new one.
//
// Keys are used as file names verbatim and are restricted accordingly.

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// File is a ROM backed by one gob file per key inside a directory.
type File struct {
	dir string
}

// OpenFile creates the directory if needed and returns the store.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("romstore: create dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// MustOpenFile is OpenFile that panics on error, for package-level store
// variables.
func MustOpenFile(dir string) *File {
	f, err := OpenFile(dir)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *File) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("romstore: invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".rom"), nil
}

// Read decodes the value stored under key into v.  Returns ErrNotFound when
// the key has never been written.
func (f *File) Read(key string, v any) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	file, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("romstore: open %s: %w", key, err)
	}
	defer func() { _ = file.Close() }()

	if err := gob.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("romstore: decode %s: %w", key, err)
	}
	return nil
}

// Write encodes v under key, replacing any previous value atomically.
func (f *File) Write(key string, v any) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("romstore: encode %s: %w", key, err)
	}
	if err := atomic.WriteFile(p, &buf); err != nil {
		return fmt.Errorf("romstore: write %s: %w", key, err)
	}
	return nil
}
