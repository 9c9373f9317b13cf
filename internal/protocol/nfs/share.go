package nfs

import (
	"hash/fnv"
	"sync"

	"github.com/marmos91/nfsv3d/pkg/filecache"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/session"
)

// Share is a logical mount point exposing one back-end filesystem.
type Share struct {
	Name string
	ID   uint32
	FS   fsfacade.FS

	// FileIDSupport is true when FS also implements
	// fsfacade.FileIDResolver, letting a file-id cache miss be
	// repaired instead of failing with STALE.
	FileIDSupport bool

	Files *filecache.Cache

	// DefaultPermission is granted to a session's tree connection for
	// this share when no access-control collaborator overrides it.
	DefaultPermission session.Permission
}

// shareID hashes name into a stable, non-zero 32-bit id — stable
// within one run (and, since the hash is deterministic, across runs
// too, as long as the share name doesn't change).
func shareID(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	id := h.Sum32()
	if id == 0 {
		id = 1
	}
	return id
}

// NewShare constructs a share, deriving its id from name.
func NewShare(name string, fs fsfacade.FS, defaultPermission session.Permission) *Share {
	_, fileIDSupport := fs.(fsfacade.FileIDResolver)
	return &Share{
		Name:              name,
		ID:                shareID(name),
		FS:                fs,
		FileIDSupport:     fileIDSupport,
		Files:             filecache.New(),
		DefaultPermission: defaultPermission,
	}
}

// ShareRegistry maps both share name and share id to the Share, and
// backs the periodic rescan.
type ShareRegistry struct {
	mu      sync.RWMutex
	byName  map[string]*Share
	byID    map[uint32]*Share
	source  func() map[string]*Share // optional: supplies the desired share set for Rescan
}

// NewShareRegistry returns an empty registry. source, if non-nil, is
// consulted by Rescan to pick up newly configured shares without a
// restart.
func NewShareRegistry(source func() map[string]*Share) *ShareRegistry {
	return &ShareRegistry{
		byName: make(map[string]*Share),
		byID:   make(map[uint32]*Share),
		source: source,
	}
}

// Add registers s, making it resolvable by both name and id.
func (r *ShareRegistry) Add(s *Share) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[s.Name] = s
	r.byID[s.ID] = s
}

// ByID resolves a share by the id a handle carries.
func (r *ShareRegistry) ByID(id uint32) (*Share, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// ByName resolves a share by its configured name, used by MOUNT.
func (r *ShareRegistry) ByName(name string) (*Share, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Names lists every configured share name, used by MOUNT's EXPORT.
func (r *ShareRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// Rescan inserts any share present in source() but not yet registered.
// It never removes a share already present: shrinking the share set
// live is out of scope.
func (r *ShareRegistry) Rescan() {
	if r.source == nil {
		return
	}
	desired := r.source()

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range desired {
		if _, ok := r.byName[name]; !ok {
			r.byName[name] = s
			r.byID[s.ID] = s
		}
	}
}
