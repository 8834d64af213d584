package media

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// IDLength is the length of a playable media identifier.
const IDLength = 11

// ErrInvalidIdentifier reports input text that carries no playable identifier.
var ErrInvalidIdentifier = errors.New("no valid video identifier found in input")

var idPattern = regexp.MustCompile(`^.*(?:youtu.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// Resolve extracts the media identifier from share, short, embed and
// watch-query links. Surrounding whitespace is ignored.
func Resolve(raw string) (string, bool) {
	match := idPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if len(match) < 2 {
		return "", false
	}
	if len(match[1]) != IDLength {
		return "", false
	}
	return match[1], true
}

// Parse is Resolve reporting ErrInvalidIdentifier on failure.
func Parse(raw string) (string, error) {
	id, ok := Resolve(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	return id, nil
}

// WatchURL returns the canonical watch URL for an identifier.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
