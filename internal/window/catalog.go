package window

import (
	"fmt"
	"sync/atomic"

	"github.com/bryanchriswhite/AreaStream/internal/logger"
)

// Enumerator lists the capturable windows currently on screen, already
// filtered, in window-manager order.
type Enumerator interface {
	Enumerate() ([]Entry, error)
}

// generation numbers catalog snapshots process-wide
var generation atomic.Uint64

// Catalog is an immutable snapshot of capturable windows.
type Catalog struct {
	entries    []Entry
	generation uint64
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return &Catalog{}
}

// NewCatalog builds a snapshot from entries. The slice is copied.
func NewCatalog(entries []Entry) *Catalog {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Catalog{entries: cp, generation: generation.Add(1)}
}

// Refresh enumerates windows into a new snapshot. On failure the returned
// catalog holds whatever was enumerated (possibly nothing) and is never nil.
func Refresh(e Enumerator) (*Catalog, error) {
	entries, err := e.Enumerate()
	cat := NewCatalog(entries)
	if err != nil {
		logger.WithComponent("catalog").Warn().
			Err(err).
			Int("partial", cat.Len()).
			Msg("Window enumeration failed")
		return cat, fmt.Errorf("refresh window catalog: %w", err)
	}
	logger.WithComponent("catalog").Debug().
		Int("windows", cat.Len()).
		Uint64("generation", cat.generation).
		Msg("Window catalog refreshed")
	return cat, nil
}

// Generation identifies the snapshot. Handles are only comparable between
// lookups on catalogs with the same generation.
func (c *Catalog) Generation() uint64 {
	return c.generation
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the entry at index i.
func (c *Catalog) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Names returns the display titles in enumeration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Title
	}
	return names
}

// IndexOfHandle returns the index of the entry with handle h, or -1.
func (c *Catalog) IndexOfHandle(h Handle) int {
	for i, e := range c.entries {
		if e.Handle == h {
			return i
		}
	}
	return -1
}

// IndexOfKey finds the entry for k: exact path and title first, then path
// alone, then title alone. The first match in enumeration order wins at each
// step.
func (c *Catalog) IndexOfKey(k Key) (int, error) {
	for i, e := range c.entries {
		if e.ExecutablePath == k.ExecutablePath && e.Title == k.Title {
			return i, nil
		}
	}
	if k.ExecutablePath != "" {
		for i, e := range c.entries {
			if e.ExecutablePath == k.ExecutablePath {
				return i, nil
			}
		}
	}
	if k.Title != "" {
		for i, e := range c.entries {
			if e.Title == k.Title {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrNotFound, k)
}

// IndexOfEncodedKey decodes s and looks it up.
func (c *Catalog) IndexOfEncodedKey(s string) (int, error) {
	k, err := ParseKey(s)
	if err != nil {
		return -1, err
	}
	return c.IndexOfKey(k)
}
