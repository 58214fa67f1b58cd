package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PreviewKey identifies the preview of one version of an image file rendered
// by one pipeline. Touching the file or changing the pipeline yields a new key.
func PreviewKey(imageName string, size int64, modTime time.Time, pipeline string) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s", imageName, size, modTime.UnixNano(), pipeline)
	return hex.EncodeToString(h.Sum(nil))
}
