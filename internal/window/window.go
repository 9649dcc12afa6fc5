// Package window enumerates capturable top-level windows and re-identifies
// them across refreshes by a durable (executable path, title) key.
package window

import (
	"errors"
	"fmt"
	"strings"
)

// KeySeparator joins the executable path and the title in an encoded Key.
// It is assumed never to appear in an executable path; it is not escaped.
const KeySeparator = "|"

// OverlayTitle is the title of the custom-area selection overlay window.
// Windows carrying it are never offered as capture targets.
const OverlayTitle = "Recording area - AreaStream"

var (
	// ErrNotFound is returned when no catalog entry matches a key
	ErrNotFound = errors.New("no window matches key")

	// ErrInvalidKey is returned when an encoded key has the wrong number of separators
	ErrInvalidKey = errors.New("invalid window key")

	// ErrNoWindowList is returned when the window manager publishes no client list
	ErrNoWindowList = errors.New("window manager exposes no client list")
)

// Handle is a transient window reference. It is only meaningful inside the
// Catalog snapshot that produced it and must never be persisted.
type Handle uint32

// Entry is one capturable window in a Catalog snapshot.
type Entry struct {
	Handle         Handle `json:"handle"`
	Title          string `json:"title"`
	ExecutablePath string `json:"executable_path"`
}

// Key returns the durable identity key of the entry.
func (e Entry) Key() Key {
	return Key{ExecutablePath: e.ExecutablePath, Title: e.Title}
}

// Key identifies a logical window across catalog refreshes and restarts.
type Key struct {
	ExecutablePath string `json:"executable_path"`
	Title          string `json:"title"`
}

// String encodes the key as "<executablePath>|<title>".
func (k Key) String() string {
	return k.ExecutablePath + KeySeparator + k.Title
}

// IsZero reports whether the key carries neither a path nor a title.
func (k Key) IsZero() bool {
	return k.ExecutablePath == "" && k.Title == ""
}

// ParseKey decodes a key produced by Key.String. A title that itself contains
// the separator yields a key that fails to decode.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, KeySeparator)
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("%w: %q has %d separators", ErrInvalidKey, s, len(parts)-1)
	}
	return Key{ExecutablePath: parts[0], Title: parts[1]}, nil
}
