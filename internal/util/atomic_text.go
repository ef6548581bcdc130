package util

import (
	"fmt"
	"os"
	"path/filepath"
)

func WriteTextAtomic(path string, content string) error {
	return writeAtomic(path, "tmp-*.txt", []byte(content))
}

// AppendText appends content to path and syncs before returning. Used for
// logs that must keep every earlier entry.
func AppendText(path string, content string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}
