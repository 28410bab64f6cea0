package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/preprocess"
)

// Loader turns files on disk into documents ready for indexing.
// Supported formats: .pdf, .html, .htm, .txt, .md.
type Loader struct{}

// New creates a loader.
func New() *Loader {
	return &Loader{}
}

// Supported reports whether the file extension is a loadable format.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm", ".txt", ".md":
		return true
	}
	return false
}

// LoadAll loads every supported file from the given paths. Directory entries
// are expanded one level deep; unsupported files inside directories are
// skipped, but an explicitly named unsupported file is an error.
func (l *Loader) LoadAll(paths ...string) ([]document.Document, error) {
	var docs []document.Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("read dir %s: %w", path, err)
			}
			for _, entry := range entries {
				if entry.IsDir() || !Supported(entry.Name()) {
					continue
				}
				doc, err := l.Load(filepath.Join(path, entry.Name()))
				if err != nil {
					return nil, err
				}
				docs = append(docs, doc)
			}
			continue
		}
		doc, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Load reads a single file into a document.
func (l *Loader) Load(path string) (document.Document, error) {
	var (
		content string
		title   string
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = extractPDFText(path)
	case ".html", ".htm":
		content, title, err = extractHTMLText(path)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	default:
		return document.Document{}, fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("load %s: %w", path, err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	doc := document.Document{
		Title:   title,
		Content: preprocess.CleanBasic(content),
		Source:  path,
	}
	document.EnsureDocumentID(&doc)
	return doc, nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract plain text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}

func extractHTMLText(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, err := preprocess.HTMLToText(string(data))
	if err != nil {
		return "", "", err
	}
	return text, preprocess.HTMLTitle(string(data)), nil
}
