package markdown

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 50

// Slugify converts s to a lowercase, hyphen-separated file-name-safe slug.
// Accents are folded ("Café" becomes "cafe") and punctuation is dropped, so
// "CI/CD Pipeline" becomes "cicd-pipeline".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}

	slug := sb.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// FigureFileName returns the image file name for a figure:
// <unit>-<two-digit number>-<slug of heading>.png.
func FigureFileName(unit string, number int, heading string) string {
	slug := Slugify(heading)
	if slug == "" {
		slug = "figure"
	}
	return fmt.Sprintf("%s-%02d-%s.png", unit, number, slug)
}
