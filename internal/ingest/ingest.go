// Package ingest converts a disclosure document into plain text for the
// input-parser stage.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"patentflow/internal/util"
)

// Supported reports whether the extension of path can be converted.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx", ".pdf", ".md", ".markdown", ".txt":
		return true
	default:
		return false
	}
}

// Convert extracts text from a .docx, .pdf, .md or .txt file. An empty
// result is reported as util.ErrNoExtractableText.
func Convert(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".docx":
		text, err = convertDOCX(path)
	case ".pdf":
		text, err = convertPDF(path)
	case ".md", ".markdown":
		text, err = convertMarkdown(path)
	case ".txt":
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	default:
		return "", fmt.Errorf("%w: %q", util.ErrUnsupportedInput, ext)
	}
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(path), err)
	}
	text = util.SanitizeText(text)
	if text == "" {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(path), util.ErrNoExtractableText)
	}
	return text, nil
}

func convertPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

func convertDOCX(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}
	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return docxParagraphs(rc)
}

// docxParagraphs joins the non-empty paragraphs of word/document.xml with
// newlines. Tabs and explicit breaks inside a paragraph are kept.
func docxParagraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		paras  []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteString("\t")
			case "br":
				cur.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					paras = append(paras, s)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		paras = append(paras, s)
	}
	return strings.Join(paras, "\n"), nil
}
