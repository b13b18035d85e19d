// Package textutil holds the small text helpers shared by the pipeline stages:
// slugs, read time, fence stripping and semi-structured field parsing.
package textutil

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL slug for a title. The result always matches
// ^[a-z0-9]+(-[a-z0-9]+)*$ and depends on nothing but the title.
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// ImageFilename builds an object key for a cover image: the title slug plus a
// millisecond timestamp so re-generated images never collide.
func ImageFilename(title string, now time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%s-%d.%s", Slugify(title), now.UnixMilli(), ext)
}

// ExtensionForMIME maps an image MIME type to a file extension.
func ExtensionForMIME(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/png", "":
		return "png"
	}
	if ext := path.Base(mimeType); ext != "" && ext != "." && ext != "/" {
		return ext
	}
	return "png"
}
