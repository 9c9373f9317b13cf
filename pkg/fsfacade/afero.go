package fsfacade

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// AferoFS backs the FS capability set with any afero.Fs: afero.NewOsFs()
// for a real export, afero.NewMemMapFs() for tests and the in-memory
// back end the dispatcher's integration tests use.
type AferoFS struct {
	fs              afero.Fs
	symlinksEnabled bool
	diskSizeEnabled bool
}

// Option configures an AferoFS at construction time.
type Option func(*AferoFS)

// WithSymlinks enables READLINK/SYMLINK support.
// afero.MemMapFs cannot create real symlinks, so this is only
// meaningful combined with an OS-backed afero.Fs.
func WithSymlinks(enabled bool) Option {
	return func(a *AferoFS) { a.symlinksEnabled = enabled }
}

// WithDiskSize makes GetDiskInformation answer FSSTAT with a fixed
// synthetic size (1 TiB of space, 2^20 files) for any wrapped afero.Fs;
// the host's real disk usage is not read.
func WithDiskSize(enabled bool) Option {
	return func(a *AferoFS) { a.diskSizeEnabled = enabled }
}

// NewAferoFS wraps fs (rooted at the share's export path — callers
// should pass afero.NewBasePathFs(fs, root) to confine it) as an FS.
func NewAferoFS(fs afero.Fs, opts ...Option) *AferoFS {
	a := &AferoFS{fs: fs}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fileID derives a stable, restart-safe file id from a share-relative
// path. Two distinct paths may in principle collide; CREATE/MKDIR
// detect an existing object at the target path before trusting a
// fresh id, and the file-id cache (pkg/filecache) is keyed off the
// same derivation on both sides, so a collision would only show up as
// two paths aliasing one cache slot — accepted as a documented
// limitation rather than engineered around with a persisted id table;
// this server keeps no state on disk.
func fileID(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(filepath.ToSlash(path)))
	id := h.Sum64()
	if id == 0 {
		id = 1
	}
	return id
}

func toFileType(info os.FileInfo) FileType {
	switch {
	case info.IsDir():
		return TypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		return TypeSymlink
	case info.Mode().IsRegular():
		return TypeRegular
	default:
		return TypeOther
	}
}

func (a *AferoFS) toFileInfo(path string, info os.FileInfo) FileInfo {
	mtime := info.ModTime()
	return FileInfo{
		FileID: fileID(path),
		Type:   toFileType(info),
		Mode:   uint32(info.Mode().Perm()),
		Nlink:  1,
		Size:   uint64(maxInt64(info.Size(), 0)),
		Used:   uint64(maxInt64(info.Size(), 0)),
		Atime:  mtime,
		Mtime:  mtime,
		Ctime:  mtime,
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func mapAferoErr(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if os.IsExist(err) {
		return ErrExists
	}
	if os.IsPermission(err) {
		return ErrAccessDenied
	}
	return err
}

func (a *AferoFS) GetFileInformation(path string) (FileInfo, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return FileInfo{}, mapAferoErr(err)
	}
	return a.toFileInfo(path, info), nil
}

func (a *AferoFS) FileExists(path string) bool {
	_, err := a.fs.Stat(path)
	return err == nil
}

type aferoFile struct {
	afero.File
}

func (f *aferoFile) Size() (int64, error) {
	info, err := f.File.Stat()
	if err != nil {
		return 0, mapAferoErr(err)
	}
	return info.Size(), nil
}

func (a *AferoFS) OpenFile(path string, readOnly bool) (File, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return nil, mapAferoErr(err)
	}
	if info.IsDir() {
		return nil, ErrIsDirectory
	}

	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := a.fs.OpenFile(path, flag, info.Mode())
	if err != nil {
		return nil, mapAferoErr(err)
	}
	return &aferoFile{f}, nil
}

func (a *AferoFS) CreateFile(path string, mode uint32, uid, gid uint32) (File, FileInfo, error) {
	if a.FileExists(path) {
		info, err := a.GetFileInformation(path)
		if err != nil {
			return nil, FileInfo{}, err
		}
		if info.Type == TypeDirectory {
			return nil, FileInfo{}, ErrIsDirectory
		}
		return nil, FileInfo{}, ErrExists
	}

	f, err := a.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return nil, FileInfo{}, mapAferoErr(err)
	}
	_ = a.fs.Chown(path, int(uid), int(gid)) // best-effort; MemMapFs ignores this

	info, err := a.GetFileInformation(path)
	if err != nil {
		_ = f.Close()
		return nil, FileInfo{}, err
	}
	return &aferoFile{f}, info, nil
}

func (a *AferoFS) CreateDirectory(path string, mode uint32, uid, gid uint32) error {
	if a.FileExists(path) {
		return ErrExists
	}
	if err := a.fs.Mkdir(path, os.FileMode(mode)); err != nil {
		return mapAferoErr(err)
	}
	_ = a.fs.Chown(path, int(uid), int(gid))
	return nil
}

func (a *AferoFS) DeleteFile(path string) error {
	info, err := a.fs.Stat(path)
	if err != nil {
		return mapAferoErr(err)
	}
	if info.IsDir() {
		return ErrIsDirectory
	}
	return mapAferoErr(a.fs.Remove(path))
}

func (a *AferoFS) DeleteDirectory(path string) error {
	info, err := a.fs.Stat(path)
	if err != nil {
		return mapAferoErr(err)
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		return mapAferoErr(err)
	}
	if len(entries) > 0 {
		return ErrNotEmpty
	}
	return mapAferoErr(a.fs.Remove(path))
}

func (a *AferoFS) RenameFile(from, to string) error {
	if a.FileExists(to) {
		info, err := a.GetFileInformation(to)
		if err == nil && info.Type == TypeRegular {
			if rmErr := a.fs.Remove(to); rmErr != nil {
				return mapAferoErr(rmErr)
			}
		}
	}
	return mapAferoErr(a.fs.Rename(from, to))
}

func (a *AferoFS) DirModTime(path string) (time.Time, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return time.Time{}, mapAferoErr(err)
	}
	return info.ModTime(), nil
}

// dirSearch is a snapshot-based Search: entries are sorted by name at
// StartSearch time so resume ids (plain indices) stay stable across
// calls within one enumeration: a resume id is an index into the snapshot.
type dirSearch struct {
	mu      sync.Mutex
	a       *AferoFS
	dirPath string
	entries []os.FileInfo
	pos     int
}

func (a *AferoFS) StartSearch(path string, resumeFrom uint32) (Search, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return nil, mapAferoErr(err)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		return nil, mapAferoErr(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	return &dirSearch{a: a, dirPath: path, entries: entries, pos: int(resumeFrom)}, nil
}

func (s *dirSearch) Next() (DirEntry, uint32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.entries) {
		return DirEntry{}, 0, false, nil
	}
	info := s.entries[s.pos]
	s.pos++

	childPath := filepath.Join(s.dirPath, info.Name())
	return DirEntry{Name: info.Name(), Info: s.a.toFileInfo(childPath, info)}, uint32(s.pos), true, nil
}

func (s *dirSearch) Close() error { return nil }

// BuildPathForFileID implements FileIDResolver by walking the share
// tree looking for a path whose derived id matches. This is O(n) in
// the number of objects in the share; it exists purely to let a stale
// file-id cache entry (e.g. after a restart) be repaired instead of
// failing the request — back ends for which this is too
// costly simply do not embed FileIDResolver and accept STALE on miss.
func (a *AferoFS) BuildPathForFileID(root string, dirID, fileIDWant uint32) (string, error) {
	var found string
	err := afero.Walk(a.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if uint32(fileID(path)) == fileIDWant {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", mapAferoErr(err)
	}
	if found == "" {
		return "", ErrStaleFileID
	}
	return found, nil
}

func (a *AferoFS) GetDiskInformation() (DiskInfo, error) {
	if !a.diskSizeEnabled {
		return DiskInfo{}, ErrNotSupported
	}
	// afero has no portable disk-usage call; report a large synthetic
	// size so FSSTAT succeeds without implying a hard real quota.
	const oneTiB = uint64(1) << 40
	return DiskInfo{
		TotalBytes: oneTiB,
		FreeBytes:  oneTiB,
		AvailBytes: oneTiB,
		TotalFiles: 1 << 20,
		FreeFiles:  1 << 20,
	}, nil
}

func (a *AferoFS) HasSymbolicLinksEnabled() bool { return a.symlinksEnabled }

func (a *AferoFS) ReadSymbolicLink(path string) (string, error) {
	if !a.symlinksEnabled {
		return "", ErrNotSupported
	}
	linker, ok := a.fs.(afero.LinkReader)
	if !ok {
		return "", ErrNotSupported
	}
	target, err := linker.ReadlinkIfPossible(path)
	if err != nil {
		return "", mapAferoErr(err)
	}
	return target, nil
}

func (a *AferoFS) CreateSymlink(path, target string, uid, gid uint32) error {
	if !a.symlinksEnabled {
		return ErrNotSupported
	}
	symlinker, ok := a.fs.(afero.Linker)
	if !ok {
		return ErrNotSupported
	}
	if a.FileExists(path) {
		return ErrExists
	}
	if err := symlinker.SymlinkIfPossible(target, path); err != nil {
		return mapAferoErr(err)
	}
	return nil
}

var _ FS = (*AferoFS)(nil)
var _ FileIDResolver = (*AferoFS)(nil)
var _ DiskSizer = (*AferoFS)(nil)
var _ SymlinkCapable = (*AferoFS)(nil)
