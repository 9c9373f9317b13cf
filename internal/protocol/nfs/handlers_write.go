package nfs

import (
	"bytes"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
)

const defaultCreateMode uint32 = 0644
const defaultCreateDirMode uint32 = 0755

// handleWrite implements WRITE (proc 7, RFC 1813 §3.3.7). The stable
// field is decoded but every write lands through to the underlying
// file immediately; unstable-vs-sync durability distinctions are not
// surfaced (no write-gathering or delayed commit), so this
// server always reports FILE_SYNC.
func handleWrite(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return nil, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // count (redundant with opaque length)
		return nil, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // stable
		return nil, err
	}
	payload, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var pre *types.WccAttr
	if ferr == nil {
		if fi, err := res.Share.FS.GetFileInformation(res.Path); err == nil {
			w := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share)).ToWccAttr()
			pre = &w
		}
	}
	var written int
	if ferr == nil {
		entry, oerr := hc.Session.OpenFiles.GetOrOpen(res.Share.FS, effectiveFileID(res), res.Path, false)
		if oerr != nil {
			ferr = oerr
		} else {
			entry.Lock()
			written, ferr = entry.File.WriteAt(payload, int64(offset))
			if ferr == nil {
				ferr = entry.File.Sync()
			}
			entry.Unlock()
			if ferr == nil && hc.Server.Metrics != nil {
				hc.Server.Metrics.RecordOperationSize("write", res.Share.Name, uint64(len(payload)))
				hc.Server.Metrics.RecordBytesTransferred("WRITE", res.Share.Name, "write", uint64(written))
			}
		}
	}
	status := statusFor(hc.Ctx, ferr)

	var post *types.FileAttr
	if res.Share != nil {
		if fi, err := res.Share.FS.GetFileInformation(res.Path); err == nil {
			a := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
			post = &a
		}
	}

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	_ = types.EncodeWccData(buf, pre, post)
	if status == types.NFS3OK {
		_ = xdr.WriteUint32(buf, uint32(written))
		_ = xdr.WriteUint32(buf, types.StableHowFileSync)
		_ = xdr.WriteUint64(buf, hc.Server.WriteVerifier)
	}
	return buf.Bytes(), nil
}

// createChild is the shared CREATE/MKDIR/SYMLINK/MKNOD tail: attach a
// fresh child handle plus wcc_data to the status that create already
// produced.
func createChild(buf *bytes.Buffer, status uint32, res resolved, dirID uint32, childPathStr string, childFi fsfacade.FileInfo, preDir *types.WccAttr) {
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePreOpAttr(buf, nil)
		_ = types.EncodePostOpAttr(buf, nil)
		return
	}
	h := buildChildHandle(res.Share, dirID, childFi, childPathStr)
	_ = xdr.WriteBool(buf, true)
	_ = xdr.WriteXDROpaque(buf, h.Bytes())
	childAttr := toFileAttr(childFi, effectiveFileID(resolved{Share: res.Share, H: h}), fsidFor(res.Share))
	_ = types.EncodePostOpAttr(buf, &childAttr)

	var postDir *types.FileAttr
	if dirFi, err := res.Share.FS.GetFileInformation(res.Path); err == nil {
		a := toFileAttr(dirFi, dirID, fsidFor(res.Share))
		postDir = &a
	}
	_ = types.EncodeWccData(buf, preDir, postDir)
}

func preWcc(res resolved) *types.WccAttr {
	if res.Share == nil {
		return nil
	}
	fi, err := res.Share.FS.GetFileInformation(res.Path)
	if err != nil {
		return nil
	}
	w := toFileAttr(fi, 0, fsidFor(res.Share)).ToWccAttr()
	return &w
}

// handleCreate implements CREATE (proc 8, RFC 1813 §3.3.8). createmode3
// EXCLUSIVE is treated as GUARDED (no verf3 cookie is persisted across
// restarts to make true exclusive-create idempotent) — a collision
// after a retransmitted request is possible but considered acceptable
// given the rest of this server's no-persisted-state design.
func handleCreate(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	args, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}
	mode, err := xdr.DecodeUnionDiscriminant(r)
	if err != nil {
		return nil, err
	}
	var attrs sattr3
	if mode != types.CreateModeExclusive {
		attrs, err = decodeSattr3(r)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := xdr.DecodeOpaque(r); err != nil { // createverf3, ignored
			return nil, err
		}
	}

	res, ferr := resolveHandle(hc, args.Dir)
	var dirID uint32
	if ferr == nil {
		dirID, ferr = dirIDOf(res.H)
	}
	pre := preWccIf(res, ferr)

	var childPathStr string
	var childFi fsfacade.FileInfo
	if ferr == nil {
		childPathStr = childPath(res.Path, args.Name)
		if mode == types.CreateModeUnchecked && res.Share.FS.FileExists(childPathStr) {
			childFi, ferr = res.Share.FS.GetFileInformation(childPathStr)
		} else {
			createMode := defaultCreateMode
			var f fsfacade.File
			caller := hc.Session.ClientInfo()
			f, childFi, ferr = res.Share.FS.CreateFile(childPathStr, createMode, caller.UID, caller.GID)
			if ferr == nil {
				if attrs.SizeSet {
					ferr = f.Truncate(int64(attrs.Size))
				}
				_ = f.Close()
				if ferr == nil {
					childFi, ferr = res.Share.FS.GetFileInformation(childPathStr)
				}
			}
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	createChild(buf, status, res, dirID, childPathStr, childFi, pre)
	return buf.Bytes(), nil
}

func preWccIf(res resolved, err error) *types.WccAttr {
	if err != nil {
		return nil
	}
	return preWcc(res)
}

// handleMkdir implements MKDIR (proc 9, RFC 1813 §3.3.9).
func handleMkdir(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	args, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}
	attrs, err := decodeSattr3(r)
	if err != nil {
		return nil, err
	}
	_ = attrs // mode/uid/gid ignored, same as CREATE

	res, ferr := resolveHandle(hc, args.Dir)
	var dirID uint32
	if ferr == nil {
		dirID, ferr = dirIDOf(res.H)
	}
	pre := preWccIf(res, ferr)

	var childPathStr string
	var childFi fsfacade.FileInfo
	if ferr == nil {
		childPathStr = childPath(res.Path, args.Name)
		caller := hc.Session.ClientInfo()
		ferr = res.Share.FS.CreateDirectory(childPathStr, defaultCreateDirMode, caller.UID, caller.GID)
		if ferr == nil {
			childFi, ferr = res.Share.FS.GetFileInformation(childPathStr)
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	createChild(buf, status, res, dirID, childPathStr, childFi, pre)
	return buf.Bytes(), nil
}

// handleSymlink implements SYMLINK (proc 10, RFC 1813 §3.3.10).
// Returns NOT_SUPP when the share's back end lacks SymlinkCapable or
// has it disabled.
func handleSymlink(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	args, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}
	if _, err := decodeSattr3(r); err != nil { // symlink_attributes, ignored
		return nil, err
	}
	target, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, args.Dir)
	var dirID uint32
	if ferr == nil {
		dirID, ferr = dirIDOf(res.H)
	}
	pre := preWccIf(res, ferr)

	var childPathStr string
	var childFi fsfacade.FileInfo
	if ferr == nil {
		symlinks, ok := res.Share.FS.(fsfacade.SymlinkCapable)
		if !ok || !symlinks.HasSymbolicLinksEnabled() {
			ferr = fsfacade.ErrNotSupported
		} else {
			childPathStr = childPath(res.Path, args.Name)
			caller := hc.Session.ClientInfo()
			ferr = symlinks.CreateSymlink(childPathStr, target, caller.UID, caller.GID)
			if ferr == nil {
				childFi, ferr = res.Share.FS.GetFileInformation(childPathStr)
			}
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	createChild(buf, status, res, dirID, childPathStr, childFi, pre)
	return buf.Bytes(), nil
}

// handleMknod implements MKNOD (proc 11, RFC 1813 §3.3.11). Device and
// special-file creation is out of scope: always
// NFS3ERR_NOTSUPP.
func handleMknod(hc *HandlerContext, data []byte) ([]byte, error) {
	return encodeStatusOnlyWccPair(types.NFS3ErrNotSupp), nil
}

func encodeStatusOnlyWccPair(status uint32) []byte {
	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	_ = types.EncodeWccData(buf, nil, nil)
	return buf.Bytes()
}

// handleRemove implements REMOVE (proc 12, RFC 1813 §3.3.12).
func handleRemove(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	args, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, args.Dir)
	pre := preWccIf(res, ferr)

	var childPathStr string
	if ferr == nil {
		childPathStr = childPath(res.Path, args.Name)
		id, hadID := res.Share.Files.LookupID(childPathStr)
		ferr = res.Share.FS.DeleteFile(childPathStr)
		if ferr == nil && hadID {
			res.Share.Files.Delete(id)
			hc.Session.OpenFiles.Remove(id)
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	_ = types.EncodeWccData(buf, pre, postDirAttr(res))
	return buf.Bytes(), nil
}

// handleRmdir implements RMDIR (proc 13, RFC 1813 §3.3.13). A
// non-empty directory reports NFS3ERR_NOTEMPTY rather than the
// historical access-denied mapping some servers used (RFC 1813
// fidelity over bug-for-bug compatibility).
func handleRmdir(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	args, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, args.Dir)
	pre := preWccIf(res, ferr)

	var childPathStr string
	if ferr == nil {
		childPathStr = childPath(res.Path, args.Name)
		id, hadID := res.Share.Files.LookupID(childPathStr)
		ferr = res.Share.FS.DeleteDirectory(childPathStr)
		if ferr == nil && hadID {
			res.Share.Files.Delete(id)
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	_ = types.EncodeWccData(buf, pre, postDirAttr(res))
	return buf.Bytes(), nil
}

// handleRename implements RENAME (proc 14, RFC 1813 §3.3.14). The
// moved object's own file id is preserved by rebinding it in the
// file-id cache under the new path, so a handle
// a client already holds keeps resolving after the rename.
func handleRename(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	fromArgs, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}
	toArgs, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}

	fromRes, ferr := resolveHandle(hc, fromArgs.Dir)
	var toRes resolved
	if ferr == nil {
		toRes, ferr = resolveHandle(hc, toArgs.Dir)
	}
	if ferr == nil && fromRes.Share.ID != toRes.Share.ID {
		ferr = fsfacade.ErrNotSupported // cross-share rename, not representable as a single back-end move
	}

	fromPreAttr := preWcc(fromRes)
	var toPreAttr *types.WccAttr
	if ferr == nil {
		toPreAttr = preWcc(toRes)
	}

	var oldPathStr, newPathStr string
	if ferr == nil {
		oldPathStr = childPath(fromRes.Path, fromArgs.Name)
		newPathStr = childPath(toRes.Path, toArgs.Name)
		ferr = fromRes.Share.FS.RenameFile(oldPathStr, newPathStr)
		if ferr == nil {
			if id, ok := fromRes.Share.Files.LookupID(oldPathStr); ok {
				fromRes.Share.Files.Rename(id, oldPathStr, newPathStr)
			}
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	_ = types.EncodeWccData(buf, fromPreAttr, postDirAttr(fromRes))
	_ = types.EncodeWccData(buf, toPreAttr, postDirAttr(toRes))
	return buf.Bytes(), nil
}

func postDirAttr(res resolved) *types.FileAttr {
	if res.Share == nil {
		return nil
	}
	fi, err := res.Share.FS.GetFileInformation(res.Path)
	if err != nil {
		return nil
	}
	dirID, _ := dirIDOf(res.H)
	a := toFileAttr(fi, dirID, fsidFor(res.Share))
	return &a
}

// handleLink implements LINK (proc 15, RFC 1813 §3.3.15). Hard links
// are out of scope; this procedure reports NFS3ERR_ACCES (not NOTSUPP,
// unlike MKNOD/SYMLINK-disabled) unconditionally.
func handleLink(hc *HandlerContext, data []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, types.NFS3ErrAcces)
	_ = types.EncodePostOpAttr(buf, nil)
	_ = types.EncodeWccData(buf, nil, nil)
	return buf.Bytes(), nil
}
