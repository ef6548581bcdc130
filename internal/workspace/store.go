package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"patentflow/internal/util"
)

// StorageError reports an artifact write that failed at the filesystem
// level. It is never retried.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Store is the artifact namespace of a single run. Paths are relative to
// Root and always use forward slashes.
type Store struct {
	Root string
}

// RunRoot returns <outputRoot>/temp_<runID>.
func RunRoot(outputRoot, runID string) string {
	return filepath.Join(outputRoot, "temp_"+runID)
}

func Open(root string) *Store {
	return &Store{Root: root}
}

// Create opens a store and lays out the phase directories.
func Create(root string) (*Store, error) {
	s := Open(root)
	for _, d := range phaseDirs {
		if err := util.EnsureDir(s.Abs(d)); err != nil {
			return nil, &StorageError{Op: "mkdir", Path: d, Err: err}
		}
	}
	return s, nil
}

// Reset discards anything left under root by an earlier run and lays out an
// empty workspace.
func Reset(root string) (*Store, error) {
	if err := os.RemoveAll(root); err != nil {
		return nil, &StorageError{Op: "reset", Path: root, Err: err}
	}
	return Create(root)
}

func (s *Store) Abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}

func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Abs(rel))
	return err == nil
}

// ReadJSON decodes rel into v and reports whether it succeeded. Missing or
// malformed files leave v untouched.
func (s *Store) ReadJSON(rel string, v any) bool {
	b, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false
	}
	return true
}

// ReadText returns the file content or def when unreadable.
func (s *Store) ReadText(rel, def string) string {
	b, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return def
	}
	return string(b)
}

func (s *Store) WriteJSON(rel string, v any) error {
	if err := util.WriteJSONAtomic(s.Abs(rel), v); err != nil {
		return &StorageError{Op: "write", Path: rel, Err: err}
	}
	return nil
}

func (s *Store) WriteText(rel, content string) error {
	if err := util.WriteTextAtomic(s.Abs(rel), content); err != nil {
		return &StorageError{Op: "write", Path: rel, Err: err}
	}
	return nil
}

func (s *Store) AppendText(rel, content string) error {
	if err := util.AppendText(s.Abs(rel), content); err != nil {
		return &StorageError{Op: "append", Path: rel, Err: err}
	}
	return nil
}

// CopyIn copies an external file into the workspace.
func (s *Store) CopyIn(src, rel string) error {
	if err := util.CopyFile(src, s.Abs(rel)); err != nil {
		return &StorageError{Op: "copy", Path: rel, Err: err}
	}
	return nil
}
