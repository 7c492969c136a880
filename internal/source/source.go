// Package source resolves a build input into ordered units and reads each
// unit as Markdown.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/docuwrite/internal/parser"
)

// DefaultOrderFile is the manifest listing a directory's units in order.
const DefaultOrderFile = ".order"

// ErrNoUnits is returned when an input resolves to nothing readable.
var ErrNoUnits = errors.New("no source units found")

// Unit is one source file of the assembled document.
type Unit struct {
	Path string // path as given or joined with the input directory
	Name string // file name without extension, used in figure file names
}

// NewUnit builds a Unit for path.
func NewUnit(path string) Unit {
	base := filepath.Base(path)
	return Unit{Path: path, Name: strings.TrimSuffix(base, filepath.Ext(base))}
}

// ReadError reports a unit that could not be read or converted.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// IsMarkdown reports whether path is passed through without conversion.
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// IsSupported reports whether path can become a unit.
func IsSupported(path string) bool {
	return IsMarkdown(path) || parser.IsSupportedExtension(path)
}

// Resolve turns input into units. A file is a single unit. A directory uses
// its order file when present (one relative path per line, blank lines and
// lines starting with '#' ignored) and otherwise every supported file in it,
// sorted by name.
func Resolve(input, orderFile string) ([]Unit, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return []Unit{NewUnit(input)}, nil
	}

	if orderFile == "" {
		orderFile = DefaultOrderFile
	}
	orderPath := orderFile
	if !filepath.IsAbs(orderPath) {
		orderPath = filepath.Join(input, orderFile)
	}

	var units []Unit
	switch paths, err := readOrder(orderPath); {
	case err == nil:
		for _, p := range paths {
			units = append(units, NewUnit(filepath.Join(input, p)))
		}
	case errors.Is(err, os.ErrNotExist):
		units, err = listDir(input)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read order file: %w", err)
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", input, ErrNoUnits)
	}
	return units, nil
}

func readOrder(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, filepath.FromSlash(line))
	}
	return paths, scanner.Err()
}

func listDir(dir string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsSupported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	units := make([]Unit, 0, len(names))
	for _, name := range names {
		units = append(units, NewUnit(filepath.Join(dir, name)))
	}
	return units, nil
}

// Read returns the unit as Markdown. Markdown files are returned verbatim;
// other supported formats are converted. Every failure is a *ReadError.
func Read(u Unit, opts parser.Options) (string, error) {
	if !IsSupported(u.Path) {
		return "", &ReadError{Path: u.Path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(u.Path))}
	}
	if IsMarkdown(u.Path) {
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return "", &ReadError{Path: u.Path, Err: err}
		}
		return string(data), nil
	}

	f, err := os.Open(u.Path)
	if err != nil {
		return "", &ReadError{Path: u.Path, Err: err}
	}
	defer f.Close()

	md, err := parser.ToMarkdown(f, u.Path, opts)
	if err != nil {
		return "", &ReadError{Path: u.Path, Err: err}
	}
	return md, nil
}

// ErrorStub is the text that replaces a unit that failed to read.
func ErrorStub(u Unit) string {
	return fmt.Sprintf("# File: %s\n\nAn error occurred while processing this file.\n\n", filepath.Base(u.Path))
}
