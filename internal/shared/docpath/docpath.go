// Package docpath manipulates slash-separated document store paths such as
// "conductors/c1/dailyTrips/2024-05-01/trip1/tickets/tickets/t9".
// Odd segment counts name collections, even counts name documents.
package docpath

import (
	"regexp"
	"strings"

	"transit-console/internal/shared/errors"
)

const maxSegmentLength = 1500

// reservedIDPattern matches ids the document store reserves for itself.
var reservedIDPattern = regexp.MustCompile(`^__.*__$`)

// Split returns the non-empty segments of path.
func Split(path string) []string {
	if path == "" {
		return []string{}
	}
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// Join joins segments, trimming stray slashes and skipping empty ones.
func Join(segments ...string) string {
	valid := make([]string, 0, len(segments))
	for _, segment := range segments {
		if trimmed := strings.Trim(segment, "/"); trimmed != "" {
			valid = append(valid, trimmed)
		}
	}
	return strings.Join(valid, "/")
}

// Parent returns the path one segment up.
func Parent(path string) (string, error) {
	segments := Split(path)
	if len(segments) <= 1 {
		return "", errors.NewValidationError("path has no parent").WithDetail("path", path)
	}
	return strings.Join(segments[:len(segments)-1], "/"), nil
}

// ID returns the last segment of path.
func ID(path string) string {
	segments := Split(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// IsDocumentPath reports whether path names a document.
func IsDocumentPath(path string) bool {
	n := len(Split(path))
	return n > 0 && n%2 == 0
}

// IsCollectionPath reports whether path names a collection.
func IsCollectionPath(path string) bool {
	n := len(Split(path))
	return n%2 == 1
}

// IsValidID checks a single path segment.
func IsValidID(id string) bool {
	if id == "" || len(id) > maxSegmentLength {
		return false
	}
	if id == "." || id == ".." || strings.Contains(id, "/") {
		return false
	}
	return !reservedIDPattern.MatchString(id)
}

// ValidateDocumentPath validates a document path
func ValidateDocumentPath(path string) error {
	return validate(path, true)
}

// ValidateCollectionPath validates a collection path
func ValidateCollectionPath(path string) error {
	return validate(path, false)
}

func validate(path string, document bool) error {
	kind := "collection"
	if document {
		kind = "document"
	}

	segments := Split(path)
	if len(segments) == 0 {
		return errors.NewValidationError(kind + " path cannot be empty")
	}
	if (len(segments)%2 == 0) != document {
		return errors.NewValidationError("invalid "+kind+" path: wrong number of segments").
			WithDetail("path", path)
	}
	for i, segment := range segments {
		if !IsValidID(segment) {
			return errors.NewValidationError("invalid segment in "+kind+" path").
				WithDetail("segment", segment).
				WithDetail("position", i)
		}
	}
	return nil
}
