// Package openfile implements the per-session cache of opened back-end
// files: at most one entry per fileId per session, with a
// read-only entry transparently upgraded to read-write on demand.
package openfile

import (
	"sync"

	"github.com/marmos91/nfsv3d/pkg/fsfacade"
)

// Entry is one cached open file.
type Entry struct {
	FileID   uint32
	File     fsfacade.File
	ReadOnly bool

	// mu serializes READ/WRITE on this entry, so back-end drivers need
	// not implement their own serialisation.
	mu sync.Mutex
}

// Lock acquires the entry's per-file lock for the duration of a
// READ/WRITE/COMMIT call.
func (e *Entry) Lock()   { e.mu.Lock() }
func (e *Entry) Unlock() { e.mu.Unlock() }

// Cache is a per-session fileId -> Entry map.
type Cache struct {
	mu      sync.Mutex
	entries map[uint32]*Entry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[uint32]*Entry)}
}

// Opener opens path on the back end; it is the narrow slice of
// fsfacade.FS that getOrOpen needs, kept as an interface so tests can
// substitute a fake without building a whole fsfacade.FS.
type Opener interface {
	OpenFile(path string, readOnly bool) (fsfacade.File, error)
}

// GetOrOpen implements the three-step open algorithm:
//  1. present and satisfies the access level requested -> reuse
//  2. present read-only but a write is requested -> close, reopen RW, replace
//  3. absent -> open and insert
//
// All transitions happen under the cache's lock so concurrent callers
// never race to open the same fileId twice.
func (c *Cache) GetOrOpen(opener Opener, fileID uint32, path string, readOnly bool) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[fileID]; ok {
		if !readOnly && entry.ReadOnly {
			if err := entry.File.Close(); err != nil {
				return nil, err
			}
			f, err := opener.OpenFile(path, false)
			if err != nil {
				delete(c.entries, fileID)
				return nil, err
			}
			entry.File = f
			entry.ReadOnly = false
		}
		return entry, nil
	}

	f, err := opener.OpenFile(path, readOnly)
	if err != nil {
		return nil, err
	}
	entry := &Entry{FileID: fileID, File: f, ReadOnly: readOnly}
	c.entries[fileID] = entry
	return entry, nil
}

// Get returns the entry cached for fileID without opening one, used by
// COMMIT which should only sync a file the session already has open.
func (c *Cache) Get(fileID uint32) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fileID]
	return e, ok
}

// Remove closes and evicts the entry for fileID, used on REMOVE and on
// session teardown.
func (c *Cache) Remove(fileID uint32) {
	c.mu.Lock()
	entry, ok := c.entries[fileID]
	if ok {
		delete(c.entries, fileID)
	}
	c.mu.Unlock()

	if ok {
		_ = entry.File.Close()
	}
}

// CloseAll closes every entry, used on session teardown. Errors are
// ignored: the back-end handles are being discarded regardless.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[uint32]*Entry)
	c.mu.Unlock()

	for _, e := range entries {
		_ = e.File.Close()
	}
}

// Len reports the number of currently open entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
