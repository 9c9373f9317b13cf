// Package filecache implements the per-share, bidirectional mapping
// between back-end numeric file ids and share-relative paths that lets
// the NFS dispatcher translate opaque handles to paths and back.
//
// One Cache exists per share; each is independently
// locked so contention on one share never blocks another.
package filecache

import "sync"

// Cache is a bidirectional fileId <-> path map for a single share.
type Cache struct {
	mu      sync.RWMutex
	byID    map[uint32]string
	byPath  map[string]uint32
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		byID:   make(map[uint32]string),
		byPath: make(map[string]uint32),
	}
}

// Lookup returns the path cached for fileID, if any.
func (c *Cache) Lookup(fileID uint32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[fileID]
	return p, ok
}

// LookupID returns the fileId cached for path, if any.
func (c *Cache) LookupID(path string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byPath[path]
	return id, ok
}

// Insert records fileID <-> path if no entry for that id already
// exists. Called on successful LOOKUP/CREATE/MKDIR/SYMLINK and on each
// READDIR*/READDIRPLUS entry returned to a client.
func (c *Cache) Insert(fileID uint32, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[fileID]; exists {
		return
	}
	c.byID[fileID] = path
	c.byPath[path] = fileID
}

// set unconditionally (re)binds fileID <-> path, used by Rename to
// rebind the existing id under its new path.
func (c *Cache) set(fileID uint32, path string) {
	c.byID[fileID] = path
	c.byPath[path] = fileID
}

// Delete removes the entry for fileID, used on REMOVE/RMDIR.
func (c *Cache) Delete(fileID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.byID[fileID]
	if !ok {
		return
	}
	delete(c.byID, fileID)
	delete(c.byPath, path)
}

// Rename deletes the entry for the old path and reinserts the same
// fileId under the new path, so that a handle obtained before the
// rename keeps resolving. If the new path was
// already bound to a different id (a rename that overwrote an existing
// file), that id's entry is dropped so it cannot keep resolving to a
// path it no longer names.
func (c *Cache) Rename(fileID uint32, oldPath, newPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byPath, oldPath)
	if prev, ok := c.byPath[newPath]; ok && prev != fileID {
		delete(c.byID, prev)
	}
	c.set(fileID, newPath)
}
