// Package schema persists the ordered feature column list produced at
// training time and serves it read-only to the inference path.
package schema

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the conventional schema file name inside a model directory.
const FileName = "feature_columns.txt"

// ErrNotFound is wrapped by Load when the schema file does not exist.
var ErrNotFound = errors.New("schema not found")

// Schema is an immutable, ordered list of unique column names.
type Schema struct {
	cols  []string
	index map[string]int
}

// New validates cols and returns a Schema owning a private copy.
func New(cols []string) (*Schema, error) {
	s := &Schema{
		cols:  make([]string, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for _, c := range cols {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("empty column name at position %d", len(s.cols))
		}
		if strings.ContainsAny(c, "\r\n") {
			return nil, fmt.Errorf("column %q contains a line break", c)
		}
		if _, dup := s.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		s.index[c] = len(s.cols)
		s.cols = append(s.cols, c)
	}
	return s, nil
}

// Columns returns a copy of the column names in order.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.cols...)
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.cols) }

// Has reports whether name is a schema column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Index returns the position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// HasPrefix reports whether any column starts with prefix.
func (s *Schema) HasPrefix(prefix string) bool {
	for _, c := range s.cols {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Equal reports whether two schemas list the same columns in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i] != o.cols[i] {
			return false
		}
	}
	return true
}

// Write encodes the schema as newline-delimited UTF-8 text.
func (s *Schema) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, c := range s.cols {
		if _, err := bw.WriteString(c + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses newline-delimited column names, trimming each line and
// skipping blank ones.
func Read(r io.Reader) (*Schema, error) {
	var cols []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cols = append(cols, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return New(cols)
}

// Save writes the schema to path. The file is staged next to the target
// and renamed into place so readers never see a partial write.
func Save(s *Schema, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".schema-*")
	if err != nil {
		return fmt.Errorf("stage schema: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write schema: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close schema: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install schema %s: %w", path, err)
	}
	return nil
}

// Load reads a schema file. A missing file wraps ErrNotFound and names
// the path.
func Load(path string) (*Schema, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return s, nil
}
