package review

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var ErrInvalidReviewer = errors.New("invalid reviewer id")

// reservedReviewer would resolve to the master file name.
const reservedReviewer = "master"

// NormalizeReviewerID trims and NFC-normalizes a reviewer name or ID and
// rejects values that cannot safely be embedded in a file name.
func NormalizeReviewerID(raw string) (string, error) {
	id := norm.NFC.String(strings.TrimSpace(raw))
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidReviewer)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidReviewer, id)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains a control character", ErrInvalidReviewer, id)
		}
	}
	if strings.EqualFold(id, reservedReviewer) {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidReviewer, id)
	}
	return id, nil
}
