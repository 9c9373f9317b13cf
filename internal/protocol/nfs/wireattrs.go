package nfs

import (
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/handle"
)

// fsidFor gives every object within a share the same fsid3, letting
// clients tell shares apart without the back end exposing a real
// device number.
func fsidFor(share *Share) uint64 {
	return uint64(share.ID)
}

// deriveFileID truncates a back end's native 64-bit file id to the
// 32 bits a handle carries. Collisions are accepted the way the
// back-end path hash itself accepts them: vanishingly unlikely within
// one share, never checked for.
func deriveFileID(fi fsfacade.FileInfo) uint32 {
	return uint32(fi.FileID)
}

// toFileType maps a facade FileType onto RFC 1813's ftype3.
func toFileType(t fsfacade.FileType) uint32 {
	switch t {
	case fsfacade.TypeDirectory:
		return types.NFSTypeDir
	case fsfacade.TypeSymlink:
		return types.NFSTypeLnk
	default:
		return types.NFSTypeReg
	}
}

func timeVal(t interface{ Unix() int64 }) types.TimeVal {
	sec := t.Unix()
	if sec < 0 {
		sec = 0
	}
	return types.TimeVal{Seconds: uint32(sec)}
}

// toFileAttr projects a back end's FileInfo into the wire fattr3,
// overriding Fileid with the caller-supplied handle-stable id rather
// than the facade's own (possibly just-rehashed) one.
func toFileAttr(fi fsfacade.FileInfo, fileID uint32, fsid uint64) types.FileAttr {
	return buildFileAttr(fi, fileID, fsid)
}

// assignFileID returns the fileId already bound to p in share's
// cache, or derives and binds a fresh one from fi.
func assignFileID(share *Share, p string, fi fsfacade.FileInfo) uint32 {
	if id, ok := share.Files.LookupID(p); ok {
		return id
	}
	id := deriveFileID(fi)
	share.Files.Insert(id, p)
	return id
}

// buildChildHandle constructs the handle a LOOKUP/CREATE/MKDIR/SYMLINK
// reply returns for an object at path p within directory dirID.
func buildChildHandle(share *Share, dirID uint32, fi fsfacade.FileInfo, p string) handle.Handle {
	id := assignFileID(share, p, fi)
	if fi.Type == fsfacade.TypeDirectory {
		return handle.Directory(share.ID, id)
	}
	return handle.File(share.ID, dirID, id)
}

// dirIDOf extracts the directory id a TagShare/TagDirectory handle
// addresses, or fails with ErrNotDirectory for a TagFile handle.
func dirIDOf(h handle.Handle) (uint32, error) {
	switch h.Tag {
	case handle.TagShare:
		return 0, nil
	case handle.TagDirectory:
		return h.DirID, nil
	default:
		return 0, fsfacade.ErrNotDirectory
	}
}

func buildFileAttr(fi fsfacade.FileInfo, fileID uint32, fsid uint64) types.FileAttr {
	return types.FileAttr{
		Type:   toFileType(fi.Type),
		Mode:   fi.Mode,
		Nlink:  fi.Nlink,
		UID:    fi.UID,
		GID:    fi.GID,
		Size:   fi.Size,
		Used:   fi.Used,
		Fsid:   fsid,
		Fileid: uint64(fileID),
		Atime:  timeVal(fi.Atime),
		Mtime:  timeVal(fi.Mtime),
		Ctime:  timeVal(fi.Ctime),
	}
}
