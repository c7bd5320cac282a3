package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// AllowedExt reports whether ext is an accepted upload type.
func AllowedExt(ext string) bool {
	_, ok := constants.MediaTypeForExt(ext)
	return ok
}

// IsHidden reports whether the base name starts with '.'.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
