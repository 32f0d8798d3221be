package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StagedFile is data written to a temp file beside its destination and not
// yet renamed into place.
type StagedFile struct {
	Path string
	tmp  string
}

// StageFile writes data to a temp file in path's directory.
func StageFile(path string, data []byte) (*StagedFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	return &StagedFile{Path: path, tmp: name}, nil
}

// Commit renames the temp file over the destination.
func (s *StagedFile) Commit() error {
	if err := os.Rename(s.tmp, s.Path); err != nil {
		_ = os.Remove(s.tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Discard removes the temp file. Safe after Commit.
func (s *StagedFile) Discard() { _ = os.Remove(s.tmp) }

// SafeWriteFile writes data to a temp file next to path and atomically renames
// it into place, so readers never observe a partially written artifact.
func SafeWriteFile(path string, data []byte) error {
	s, err := StageFile(path, data)
	if err != nil {
		return err
	}
	return s.Commit()
}

// CommitAll renames every staged file into place. Nothing is renamed unless
// all were staged; if a rename fails, files already committed by this call
// are removed so no mixed set of artifacts is left behind.
func CommitAll(files []*StagedFile) error {
	for i, f := range files {
		if err := f.Commit(); err != nil {
			for _, done := range files[:i] {
				_ = os.Remove(done.Path)
			}
			for _, rest := range files[i+1:] {
				rest.Discard()
			}
			return fmt.Errorf("commit %s: %w", f.Path, err)
		}
	}
	return nil
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}
