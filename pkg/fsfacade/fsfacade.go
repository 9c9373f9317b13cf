// Package fsfacade defines the capability-probed abstraction the NFS
// dispatcher uses to reach a back-end filesystem, and a
// concrete implementation backed by github.com/spf13/afero so the
// same code path serves both a real on-disk export (afero.OsFs) and an
// in-memory test double (afero.MemMapFs).
//
// File ids are never persisted: they are derived deterministically
// from the share-relative path (an FNV-1a hash), so a handle a client
// cached before a restart still resolves afterward as long as the
// share layout and the path itself are unchanged — restart-stable
// handles without any state kept on disk.
package fsfacade

import (
	"errors"
	"io"
	"time"
)

// Sentinel errors the dispatcher's error mapper translates
// to NFSv3 status codes. Back ends return these (or wrap them) instead
// of inventing their own taxonomy.
var (
	ErrNotFound      = errors.New("fsfacade: not found")
	ErrExists        = errors.New("fsfacade: already exists")
	ErrIsDirectory   = errors.New("fsfacade: is a directory")
	ErrNotDirectory  = errors.New("fsfacade: not a directory")
	ErrNotEmpty      = errors.New("fsfacade: directory not empty")
	ErrDiskFull      = errors.New("fsfacade: no space left")
	ErrAccessDenied  = errors.New("fsfacade: access denied")
	ErrNotSupported  = errors.New("fsfacade: operation not supported")
	ErrStaleFileID   = errors.New("fsfacade: file id cannot be resolved to a path")
)

// FileInfo is the back end's native attribute snapshot; handlers
// project it into the wire fattr3 (types.FileAttr).
type FileInfo struct {
	FileID uint64
	Type   FileType
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
}

// FileType enumerates the object kinds the facade reports; callers map
// these onto RFC 1813 ftype3.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeOther
)

// File is a back-end-owned open file. READ/WRITE on the same File must
// be safe to call concurrently from the dispatcher's point of view —
// the facade implementation (or the open-file cache's per-entry lock)
// is responsible for serializing overlapping access if the
// underlying handle requires it.
type File interface {
	io.Closer
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error

	// Size reports the file's current size as the open back-end handle
	// sees it, used by GETATTR to answer from the open entry
	// rather than a fresh back-end stat when the file is already open
	// in this session — a concurrent writer's in-flight size is only
	// visible through the handle it wrote through.
	Size() (int64, error)
}

// DirEntry is one entry produced by a Search iterator.
type DirEntry struct {
	Name   string
	Info   FileInfo
}

// Search is an in-progress directory enumeration.
// ResumeID is an opaque, back-end-assigned cursor that must fit in 24
// bits; the search-slot table encodes it into the cookie it
// hands back to the client.
type Search interface {
	// Next returns the next entry and the resume id a client could use
	// to continue immediately after it, or ok=false at end of stream.
	Next() (entry DirEntry, resumeID uint32, ok bool, err error)
	Close() error
}

// FS is the required capability set every back end must implement.
type FS interface {
	GetFileInformation(path string) (FileInfo, error)
	FileExists(path string) bool

	// OpenFile opens path with OpenIfExists semantics: it never
	// creates. readOnly selects O_RDONLY vs O_RDWR.
	OpenFile(path string, readOnly bool) (File, error)

	CreateFile(path string, mode uint32, uid, gid uint32) (File, FileInfo, error)
	CreateDirectory(path string, mode uint32, uid, gid uint32) error

	DeleteFile(path string) error
	DeleteDirectory(path string) error
	RenameFile(from, to string) error

	// StartSearch begins a directory enumeration at path. resumeFrom
	// is 0 for a fresh listing or a previously returned resume id to
	// continue after.
	StartSearch(path string, resumeFrom uint32) (Search, error)

	// DirModTime returns the directory's current modification time,
	// used as the READDIR cookie verifier.
	DirModTime(path string) (time.Time, error)
}

// FileIDResolver is an optional capability: back ends that can map a
// numeric file id directly back to a path (without the dispatcher's
// file-id cache) implement this so a cache miss after restart does not
// force STALE.
type FileIDResolver interface {
	BuildPathForFileID(root string, dirID, fileID uint32) (string, error)
}

// DiskSizer is an optional capability backing FSSTAT's dynamic sizes;
// for back ends without it, FSSTAT reports fixed estimates of its own
// instead.
type DiskSizer interface {
	GetDiskInformation() (DiskInfo, error)
}

// DiskInfo mirrors the dynamic fields of NFSv3's FSSTAT3res.
type DiskInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
}

// SymlinkCapable is an optional capability; back ends without it cause
// READLINK/SYMLINK to return NOT_SUPP.
type SymlinkCapable interface {
	HasSymbolicLinksEnabled() bool
	ReadSymbolicLink(path string) (string, error)
	CreateSymlink(path, target string, uid, gid uint32) error
}
