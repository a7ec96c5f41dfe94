// ABOUTME: File-backed Marker stored as a small TOML state document
// ABOUTME: Missing file means unset; writes go through a temp file and rename

package marker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// state is the on-disk layout of the marker file
type state struct {
	Initialized   bool      `toml:"initialized"`
	InitializedAt time.Time `toml:"initialized_at"`
}

// FileMarker stores the marker in a TOML file.
type FileMarker struct {
	path string
}

// NewFileMarker returns a marker backed by the file at path.
// The file and its parent directories are created on first Set.
func NewFileMarker(path string) *FileMarker {
	return &FileMarker{path: path}
}

// Path returns the marker file location.
func (f *FileMarker) Path() string {
	return f.path
}

// IsSet reports whether the marker file exists and records initialization.
func (f *FileMarker) IsSet() (bool, error) {
	st, err := f.read()
	if err != nil {
		return false, err
	}
	return st.Initialized, nil
}

// InitializedAt returns when the marker was set, or the zero time if unset.
func (f *FileMarker) InitializedAt() (time.Time, error) {
	st, err := f.read()
	if err != nil {
		return time.Time{}, err
	}
	return st.InitializedAt, nil
}

// Set records initialization.
func (f *FileMarker) Set() error {
	var buf bytes.Buffer
	st := state{Initialized: true, InitializedAt: time.Now().UTC().Truncate(time.Second)}
	if err := toml.NewEncoder(&buf).Encode(st); err != nil {
		return fmt.Errorf("encoding marker: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".marker-*")
	if err != nil {
		return fmt.Errorf("creating temp marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing marker: %w", err)
	}
	return nil
}

// Clear removes the marker file. Clearing an unset marker is not an error.
func (f *FileMarker) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing marker: %w", err)
	}
	return nil
}

func (f *FileMarker) read() (state, error) {
	var st state
	if _, err := toml.DecodeFile(f.path, &st); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state{}, nil
		}
		return state{}, fmt.Errorf("reading marker: %w", err)
	}
	return st, nil
}
