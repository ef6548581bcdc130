package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRunID(t *testing.T) {
	for _, ok := range []string{"20250101_120000", "run-1", "a.b_c"} {
		require.NoError(t, ValidateRunID(ok), ok)
	}
	for _, bad := range []string{"", "..", "a/b", `a\b`, "-lead", "has space"} {
		require.ErrorIs(t, ValidateRunID(bad), ErrInvalidRunID, bad)
	}
}

func TestAppendTextKeepsEarlierContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "x.log")
	require.NoError(t, AppendText(path, "one\n"))
	require.NoError(t, AppendText(path, "two\n"))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", string(b))
}

func TestWriteJSONAtomicDoesNotEscapeHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]string{"k": "<图1>"}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "<图1>")
}
