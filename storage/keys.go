package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var allowedExtensions = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"doc":  true,
	"docx": true,
	"txt":  true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces an uploaded filename to a safe base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, "._")
}

// FileExtension returns the lower-case extension of name without the dot.
func FileExtension(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedEvidenceFile reports whether name has an allowed evidence extension.
func AllowedEvidenceFile(name string) bool {
	if name == "" {
		return false
	}
	return allowedExtensions[FileExtension(name)]
}

// EvidenceKey returns the storage key of a claim's evidence attachment.
func EvidenceKey(claimID int64, filename string, now time.Time) string {
	return fmt.Sprintf("claim_%d_%s.%s", claimID, now.UTC().Format("20060102_150405"), FileExtension(filename))
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid evidence key %q", key)
	}
	return key, nil
}
