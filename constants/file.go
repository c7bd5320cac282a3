package constants

import "strings"

// MaxUploadBytes is the largest document accepted on upload.
const MaxUploadBytes = 10 << 20

// UnknownDocumentType is the label used when classification fails.
const UnknownDocumentType = "Unknown"

// AllowedExtensions maps accepted file extensions to their media type.
var AllowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt returns the media type for an extension and whether it is accepted.
func MediaTypeForExt(ext string) (string, bool) {
	mt, ok := AllowedExtensions[NormalizeExt(ext)]
	return mt, ok
}
