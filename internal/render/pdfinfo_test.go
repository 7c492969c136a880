package render

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPageCount_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := PageCount(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}

	bogus := filepath.Join(dir, "bogus.pdf")
	if err := os.WriteFile(bogus, []byte("<html>not a pdf</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if n, err := PageCount(bogus); err == nil {
		t.Errorf("expected error for non-PDF input, got %d pages", n)
	}
}
