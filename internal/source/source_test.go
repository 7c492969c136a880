package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docuwrite/internal/parser"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func names(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Name
	}
	return out
}

func TestResolve_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"guide.md": "# Guide\n"})

	units, err := Resolve(filepath.Join(dir, "guide.md"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 1 || units[0].Name != "guide" {
		t.Errorf("expected single unit guide, got %+v", units)
	}
}

func TestResolve_DirectorySorted(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"02-body.md":   "b",
		"01-intro.md":  "a",
		"03-data.csv":  "x,y\n",
		"image.png":    "",
		".hidden.md":   "",
		"sub/inner.md": "",
	})

	units, err := Resolve(dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Join(names(units), ",")
	if got != "01-intro,02-body,03-data" {
		t.Errorf("expected sorted supported files, got %s", got)
	}
}

func TestResolve_OrderFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.md":       "",
		"b.md":       "",
		"sub/c.md":   "",
		".order":     "# chapters\nb.md\n\n  sub/c.md  \na.md\n",
		"custom.lst": "a.md\n",
	})

	units, err := Resolve(dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(names(units), ","); got != "b,c,a" {
		t.Errorf("expected order b,c,a, got %s", got)
	}
	if units[1].Path != filepath.Join(dir, "sub", "c.md") {
		t.Errorf("expected path joined with input dir, got %s", units[1].Path)
	}

	units, err = Resolve(dir, "custom.lst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(names(units), ","); got != "a" {
		t.Errorf("expected custom order a, got %s", got)
	}
}

func TestResolve_Errors(t *testing.T) {
	if _, err := Resolve(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("expected error for missing input")
	}

	empty := t.TempDir()
	writeFiles(t, empty, map[string]string{"notes.png": ""})
	if _, err := Resolve(empty, ""); !errors.Is(err, ErrNoUnits) {
		t.Errorf("expected ErrNoUnits, got %v", err)
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"raw.md":    "#Glued\nkept as is\n",
		"notes.txt": "hello\n",
		"pic.png":   "",
	})

	got, err := Read(NewUnit(filepath.Join(dir, "raw.md")), parser.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "#Glued\nkept as is\n" {
		t.Errorf("expected markdown verbatim, got %q", got)
	}

	got, err = Read(NewUnit(filepath.Join(dir, "notes.txt")), parser.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "# notes\n\nhello\n\n" {
		t.Errorf("expected converted text, got %q", got)
	}

	for _, name := range []string{"pic.png", "gone.md"} {
		_, err := Read(NewUnit(filepath.Join(dir, name)), parser.Options{})
		var re *ReadError
		if !errors.As(err, &re) {
			t.Errorf("%s: expected *ReadError, got %v", name, err)
		}
	}
}

func TestErrorStub(t *testing.T) {
	got := ErrorStub(NewUnit("/docs/ch1.md"))
	want := "# File: ch1.md\n\nAn error occurred while processing this file.\n\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
