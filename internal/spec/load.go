package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load error codes (E0xx).
const (
	ErrCodeNotFound  = "E001" // path not found / not a directory
	ErrCodeScanError = "E002" // directory scan error
	ErrCodeNoFiles   = "E003" // no spec files found
	ErrCodeParse     = "E004" // YAML parse failure
)

// LoadError is a document-level load failure.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Load reads and parses a single spec document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error()}
	}
	doc, err := Parse(path, data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error()}
	}
	return doc, nil
}

// LoadDir loads every .yaml/.yml document under dir, in lexicographic path
// order so the result is deterministic. Parse failures are collected, not
// fail-fast: one bad document must not hide problems in the others.
func LoadDir(dir string) ([]Document, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Path: dir, Message: err.Error()}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Path: dir, Message: "not a directory"}}
	}

	files, err := findSpecFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Path: dir, Message: err.Error()}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Path: dir, Message: "no .yaml or .yml spec files found"}}
	}

	var docs []Document
	var errs []error
	for _, path := range files {
		doc, err := Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, errs
}

// findSpecFiles walks dir and returns all YAML file paths, sorted.
func findSpecFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
