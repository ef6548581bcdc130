package ingest

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"patentflow/internal/util"
)

func writeDOCX(t *testing.T, path, documentXML string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestConvertDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disclosure.docx")
	writeDOCX(t, path, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>发明名称：</w:t></w:r><w:r><w:t>数据处理方法</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>技术问题：效率低</w:t></w:r></w:p>
</w:body></w:document>`)

	got, err := Convert(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "发明名称：数据处理方法\n技术问题：效率低", got)
}

func TestConvertDOCXWithoutBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	writeDOCX(t, path, `<w:document xmlns:w="x"><w:body><w:p/></w:body></w:document>`)
	_, err := Convert(context.Background(), path)
	require.ErrorIs(t, err, util.ErrNoExtractableText)
}

func TestConvertMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.md")
	require.NoError(t, os.WriteFile(path, []byte("# 标题\n\n一段**加粗**文字，含[链接](http://x)。\n\n- 要点一\n- 要点二\n"), 0o644))
	got, err := Convert(context.Background(), path)
	require.NoError(t, err)
	require.Contains(t, got, "# 标题")
	require.Contains(t, got, "一段加粗文字，含链接。")
	require.Contains(t, got, "- 要点一")
	require.NotContains(t, got, "http://x")
}

func TestConvertTextAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "d.txt")
	require.NoError(t, os.WriteFile(txt, []byte("  plain\x00 text \n"), 0o644))
	got, err := Convert(context.Background(), txt)
	require.NoError(t, err)
	require.Equal(t, "plain text", got)

	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte(" \n "), 0o644))
	_, err = Convert(context.Background(), blank)
	require.ErrorIs(t, err, util.ErrNoExtractableText)

	_, err = Convert(context.Background(), filepath.Join(dir, "d.odt"))
	require.ErrorIs(t, err, util.ErrUnsupportedInput)
	require.False(t, Supported("x.odt"))
	require.True(t, Supported("X.DOCX"))
}
