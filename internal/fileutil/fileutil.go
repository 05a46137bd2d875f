package fileutil

import (
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MinOutputBytes is the size floor below which an output file is treated as
// absent. External tools can exit zero after writing a header-only or empty
// file, so completion is judged by this post-condition instead of exit codes.
const MinOutputBytes int64 = 1000

// OutputComplete reports whether path exists as a regular file larger than
// min bytes. A min of zero falls back to MinOutputBytes.
func OutputComplete(path string, min int64) bool {
	if min <= 0 {
		min = MinOutputBytes
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > min
}

var nameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", "\"", "_", "/", "_",
	"\\", "_", "|", "_", "?", "_", "*", "_", "\n", "_", "\r", "_",
)

// SanitizeName strips characters that are invalid in output filenames and
// NFC-normalizes the result so titles render consistently across
// filesystems.
func SanitizeName(name string) string {
	cleaned := nameReplacer.Replace(norm.NFC.String(name))
	cleaned = strings.TrimSpace(cleaned)
	return strings.TrimRight(cleaned, ".")
}
