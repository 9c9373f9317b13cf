package nfs

import (
	"bytes"
	"errors"
	"io"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/session"
)

// handleGetAttr implements GETATTR (proc 1, RFC 1813 §3.3.1): look up
// the object a handle addresses and return its current attributes. If
// the session already has the file open, the reported size comes from
// the open entry rather than a fresh back-end stat, since a concurrent
// writer's size is only visible through the handle
// it wrote through until the next Sync.
func handleGetAttr(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var fi fsfacade.FileInfo
	if ferr == nil {
		fi, ferr = res.Share.FS.GetFileInformation(res.Path)
	}
	if ferr == nil {
		if entry, ok := hc.Session.OpenFiles.Get(effectiveFileID(res)); ok {
			entry.Lock()
			if sz, sizeErr := entry.File.Size(); sizeErr == nil {
				fi.Size = uint64(sz)
			}
			entry.Unlock()
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status == types.NFS3OK {
		attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
		_ = attr.Encode(buf)
	}
	return buf.Bytes(), nil
}

// effectiveFileID reports the handle-stable file id a reply should
// report for a resolved object — the handle's own FileID for TagFile,
// or its DirID (the directory's own id) for TagDirectory/TagShare.
func effectiveFileID(res resolved) uint32 {
	if res.H.FileID != 0 {
		return res.H.FileID
	}
	return res.H.DirID
}

// handleSetAttr implements SETATTR (proc 2, RFC 1813 §3.3.2). Only the
// size field has an observable effect; mode/uid/gid/atime/mtime
// are decoded and accepted but not applied, since pkg/fsfacade exposes
// no ownership/permission mutators.
func handleSetAttr(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	attrs, err := decodeSattr3(r)
	if err != nil {
		return nil, err
	}
	if err := decodeSattrGuard3(r); err != nil {
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
	if ferr == nil && attrs.SizeSet {
		entry, oerr := hc.Session.OpenFiles.GetOrOpen(res.Share.FS, effectiveFileID(res), res.Path, false)
		if oerr != nil {
			ferr = oerr
		} else {
			entry.Lock()
			ferr = entry.File.Truncate(int64(attrs.Size))
			entry.Unlock()
		}
	}
	status := statusFor(hc.Ctx, ferr)

	var post *types.FileAttr
	if status == types.NFS3OK {
		if fi, err := res.Share.FS.GetFileInformation(res.Path); err == nil {
			a := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
			post = &a
		}
	}

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	_ = types.EncodeWccData(buf, pre, post)
	return buf.Bytes(), nil
}

// handleLookup implements LOOKUP (proc 3, RFC 1813 §3.3.3): resolve a
// name within a directory handle to a fresh handle for the child.
func handleLookup(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	args, err := decodeDirOpArgs(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, args.Dir)
	var dirID uint32
	var childFi fsfacade.FileInfo
	var childPathStr string
	if ferr == nil {
		dirID, ferr = dirIDOf(res.H)
	}
	if ferr == nil {
		childPathStr = childPath(res.Path, args.Name)
		childFi, ferr = res.Share.FS.GetFileInformation(childPathStr)
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status == types.NFS3OK {
		h := buildChildHandle(res.Share, dirID, childFi, childPathStr)
		_ = xdr.WriteXDROpaque(buf, h.Bytes())
		childAttr := toFileAttr(childFi, effectiveFileID(resolved{Share: res.Share, H: h}), fsidFor(res.Share))
		_ = types.EncodePostOpAttr(buf, &childAttr)
		if dirFi, err := res.Share.FS.GetFileInformation(res.Path); err == nil {
			dirAttr := toFileAttr(dirFi, dirID, fsidFor(res.Share))
			_ = types.EncodePostOpAttr(buf, &dirAttr)
		} else {
			_ = types.EncodePostOpAttr(buf, nil)
		}
	} else {
		// LOOKUP3resfail still carries the directory's post-op attrs
		// (RFC 1813 §3.3.3) whenever the directory itself resolved,
		// even though the lookup within it failed (e.g. NOENT).
		if res.Share != nil {
			if dirFi, err := res.Share.FS.GetFileInformation(res.Path); err == nil {
				dirAttr := toFileAttr(dirFi, effectiveFileID(res), fsidFor(res.Share))
				_ = types.EncodePostOpAttr(buf, &dirAttr)
				return buf.Bytes(), nil
			}
		}
		_ = types.EncodePostOpAttr(buf, nil)
	}
	return buf.Bytes(), nil
}

// handleAccess implements ACCESS (proc 4, RFC 1813 §3.3.4). This
// server enforces no permission model beyond the tree connection's
// read/write grant (no POSIX ACL evaluation), so every
// requested bit the tree connection's permission allows is granted.
func handleAccess(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	requested, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var fi fsfacade.FileInfo
	if ferr == nil {
		fi, ferr = res.Share.FS.GetFileInformation(res.Path)
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePostOpAttr(buf, nil)
		return buf.Bytes(), nil
	}
	attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
	_ = types.EncodePostOpAttr(buf, &attr)

	granted := requested
	tc := hc.Session.TreeConnection(res.Share.ID, res.Share.DefaultPermission)
	if tc.Permission < session.ReadWrite {
		granted &^= types.AccessModify | types.AccessExtend | types.AccessDelete
	}
	_ = xdr.WriteUint32(buf, granted)
	return buf.Bytes(), nil
}

// handleReadLink implements READLINK (proc 5, RFC 1813 §3.3.5).
func handleReadLink(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var target string
	var fi fsfacade.FileInfo
	if ferr == nil {
		fi, ferr = res.Share.FS.GetFileInformation(res.Path)
	}
	if ferr == nil {
		symlinks, ok := res.Share.FS.(fsfacade.SymlinkCapable)
		if !ok || !symlinks.HasSymbolicLinksEnabled() {
			ferr = fsfacade.ErrNotSupported
		} else {
			target, ferr = symlinks.ReadSymbolicLink(res.Path)
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status == types.NFS3OK {
		attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
		_ = types.EncodePostOpAttr(buf, &attr)
		_ = xdr.WriteXDRString(buf, target)
	} else {
		_ = types.EncodePostOpAttr(buf, nil)
	}
	return buf.Bytes(), nil
}

// handleRead implements READ (proc 6, RFC 1813 §3.3.6).
func handleRead(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return nil, err
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var fi fsfacade.FileInfo
	var payload []byte
	var eof bool
	if ferr == nil {
		fi, ferr = res.Share.FS.GetFileInformation(res.Path)
	}
	if ferr == nil {
		entry, oerr := hc.Session.OpenFiles.GetOrOpen(res.Share.FS, effectiveFileID(res), res.Path, true)
		if oerr != nil {
			ferr = oerr
		} else {
			entry.Lock()
			buf := make([]byte, count)
			n, rerr := entry.File.ReadAt(buf, int64(offset))
			entry.Unlock()
			// A read at or past end of file comes back as io.EOF with
			// n == 0; that is a successful zero-byte read with eof set,
			// not an error (RFC 1813 §3.3.6).
			if rerr != nil && n == 0 && !errors.Is(rerr, io.EOF) {
				ferr = rerr
			} else {
				payload = buf[:n]
				eof = uint64(n)+offset >= fi.Size
				if hc.Server.Metrics != nil {
					hc.Server.Metrics.RecordOperationSize("read", res.Share.Name, uint64(count))
					hc.Server.Metrics.RecordBytesTransferred("READ", res.Share.Name, "read", uint64(n))
				}
			}
		}
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status == types.NFS3OK {
		attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
		_ = types.EncodePostOpAttr(buf, &attr)
		_ = xdr.WriteUint32(buf, uint32(len(payload)))
		_ = xdr.WriteBool(buf, eof)
		_ = xdr.WriteXDROpaque(buf, payload)
	} else {
		_ = types.EncodePostOpAttr(buf, nil)
	}
	return buf.Bytes(), nil
}
