package core

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	slugStripRe = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe = regexp.MustCompile(`\s+`)
)

// Slugify converts a task title into a filesystem-safe identifier:
// lowercase, punctuation stripped, whitespace collapsed to hyphens.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugSpaceRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// TaskID derives a stable identity from the task's file path relative
// to the tasks root. It only changes when the file is renamed or moved.
// When a file holds more than one task, the extra tasks are
// disambiguated by their section title.
func TaskID(relPath, sectionTitle string, multi bool) string {
	base := strings.TrimSuffix(relPath, filepath.Ext(relPath))
	id := Slugify(strings.ReplaceAll(base, string(filepath.Separator), " "))
	if multi && sectionTitle != "" {
		id += "#" + Slugify(sectionTitle)
	}
	return id
}

// NormalizeParamKey lowercases a parameter key and replaces spaces with
// underscores.
func NormalizeParamKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return slugSpaceRe.ReplaceAllString(key, "_")
}
