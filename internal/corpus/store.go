package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"flagstone-assistant/internal/pkg/pdfextract"
)

var ErrInvalidDocument = errors.New("invalid document")

// Document is one source file of the corpus.
type Document struct {
	Name string
	Text string
}

// Store reads and writes corpus documents in a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// IsDocument reports whether name has an extension the store reads.
func IsDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".pdf":
		return true
	}
	return false
}

// ReadAll returns every document in the directory ordered by filename, so
// passage ordinals are stable across rebuilds.
func (s *Store) ReadAll() ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir failed: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		text, err := s.read(name)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Name: name, Text: text})
	}
	return docs, nil
}

func (s *Store) read(name string) (string, error) {
	path := filepath.Join(s.dir, name)
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		text, err := pdfextract.ExtractFile(path)
		if err != nil {
			return "", fmt.Errorf("extract %s failed: %w", name, err)
		}
		return text, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", name, err)
	}
	return string(b), nil
}

// Save writes a markdown document. Only plain .md base names are accepted.
func (s *Store) Save(filename, content string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidDocument)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create corpus dir failed: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s failed: %w", filename, err)
	}
	return nil
}

func validateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidDocument)
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("%w: filename must not contain a path", ErrInvalidDocument)
	}
	if strings.ToLower(filepath.Ext(name)) != ".md" {
		return fmt.Errorf("%w: only .md documents can be uploaded", ErrInvalidDocument)
	}
	return nil
}
