package nfs

import (
	"bytes"
	"encoding/binary"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/searchslot"
)

// approxDirEntrySize estimates a READDIR entry's encoded size (fileid
// + name + cookie + next-pointer) for budgeting against the client's
// requested count; READDIRPLUS entries use a larger estimate since
// they also carry a post_op_attr and a handle.
const approxDirEntrySize = 32
const approxDirPlusEntrySize = 128

func decodeCookieVerf(r *bytes.Reader) (uint64, error) {
	raw, err := xdr.DecodeOpaque(r)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[:], raw)
	return binary.BigEndian.Uint64(buf[:]), nil
}

func encodeCookieVerf(buf *bytes.Buffer, verf uint64) {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], verf)
	_ = xdr.WriteXDROpaque(buf, raw[:])
}

func dirVerifier(share *Share, path string) uint64 {
	t, err := share.FS.DirModTime(path)
	if err != nil {
		return 0
	}
	return uint64(t.UnixNano())
}

// startOrResumeSearch begins a fresh enumeration (cookie 0 or either
// synthetic "."/".." sentinel — those cookies carry no slot to resume
// from, so the listing restarts from the beginning) or resumes one via
// the slot a previous cookie encoded.
func startOrResumeSearch(hc *HandlerContext, res resolved, cookie uint64) (fsfacade.Search, uint32, error) {
	if cookie == 0 || cookie == searchslot.CookieDot || cookie == searchslot.CookieDotDot {
		search, err := res.Share.FS.StartSearch(res.Path, 0)
		if err != nil {
			return nil, 0, err
		}
		slot, err := hc.Session.Searches.Allocate(search)
		if err != nil {
			_ = search.Close()
			return nil, 0, err
		}
		return search, slot, nil
	}

	slot, _ := searchslot.DecodeCookie(cookie)
	search, ok := hc.Session.Searches.Get(slot)
	if !ok {
		return nil, 0, errBadCookie
	}
	return search, slot, nil
}

// handleReadDir implements READDIR (proc 16, RFC 1813 §3.3.16).
func handleReadDir(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	cookie, err := xdr.DecodeUint64(r)
	if err != nil {
		return nil, err
	}
	clientVerf, err := decodeCookieVerf(r)
	if err != nil {
		return nil, err
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var dirID uint32
	if ferr == nil {
		dirID, ferr = dirIDOf(res.H)
	}
	if ferr == nil && cookie != 0 {
		if !searchslot.VerifyCookieVerifier(hc.Ctx, clientVerf, dirVerifier(res.Share, res.Path)) {
			ferr = errBadCookie
		}
	}

	var search fsfacade.Search
	var slot uint32
	if ferr == nil {
		search, slot, ferr = startOrResumeSearch(hc, res, cookie)
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePostOpAttr(buf, nil)
		return buf.Bytes(), nil
	}

	dirAttr := dirPostOpAttr(res, dirID)
	_ = types.EncodePostOpAttr(buf, dirAttr)
	encodeCookieVerf(buf, dirVerifier(res.Share, res.Path))

	var entries bytes.Buffer
	budget := int(count)
	used := 0
	eof := true

	if cookie == 0 {
		writeDirEntry(&entries, uint64(dirID), ".", searchslot.CookieDot)
		writeDirEntry(&entries, uint64(dirID), "..", searchslot.CookieDotDot)
		used += 2 * approxDirEntrySize
	}

	for used < budget {
		entry, resumeID, ok, err := search.Next()
		if err != nil || !ok {
			break
		}
		childPathStr := childPath(res.Path, entry.Name)
		childID := assignFileID(res.Share, childPathStr, entry.Info)
		writeDirEntry(&entries, uint64(childID), entry.Name, searchslot.EncodeCookie(slot, resumeID))
		used += approxDirEntrySize
		if used >= budget {
			eof = false
			break
		}
	}
	if eof {
		hc.Session.Searches.Free(slot)
	}

	buf.Write(entries.Bytes())
	_ = xdr.WriteBool(buf, false) // no more entries in this batch (value-follows terminator)
	_ = xdr.WriteBool(buf, eof)
	return buf.Bytes(), nil
}

func writeDirEntry(buf *bytes.Buffer, fileid uint64, name string, cookie uint64) {
	_ = xdr.WriteBool(buf, true) // entry follows
	_ = xdr.WriteUint64(buf, fileid)
	_ = xdr.WriteXDRString(buf, name)
	_ = xdr.WriteUint64(buf, cookie)
}

func dirPostOpAttr(res resolved, dirID uint32) *types.FileAttr {
	if res.Share == nil {
		return nil
	}
	fi, err := res.Share.FS.GetFileInformation(res.Path)
	if err != nil {
		return nil
	}
	a := toFileAttr(fi, dirID, fsidFor(res.Share))
	return &a
}

// handleReadDirPlus implements READDIRPLUS (proc 17, RFC 1813 §3.3.17):
// the same cursor as READDIR but each entry also carries its own
// post_op_attr and handle, letting a client populate its cache without
// a follow-up LOOKUP per entry.
func handleReadDirPlus(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	cookie, err := xdr.DecodeUint64(r)
	if err != nil {
		return nil, err
	}
	clientVerf, err := decodeCookieVerf(r)
	if err != nil {
		return nil, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // dircount, not distinguished from maxcount here
		return nil, err
	}
	maxCount, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var dirID uint32
	if ferr == nil {
		dirID, ferr = dirIDOf(res.H)
	}
	if ferr == nil && cookie != 0 {
		if !searchslot.VerifyCookieVerifier(hc.Ctx, clientVerf, dirVerifier(res.Share, res.Path)) {
			ferr = errBadCookie
		}
	}

	var search fsfacade.Search
	var slot uint32
	if ferr == nil {
		search, slot, ferr = startOrResumeSearch(hc, res, cookie)
	}
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePostOpAttr(buf, nil)
		return buf.Bytes(), nil
	}

	dirAttr := dirPostOpAttr(res, dirID)
	_ = types.EncodePostOpAttr(buf, dirAttr)
	encodeCookieVerf(buf, dirVerifier(res.Share, res.Path))

	var entries bytes.Buffer
	budget := int(maxCount)
	used := 0
	eof := true

	if cookie == 0 {
		writeDirPlusEntry(&entries, uint64(dirID), ".", searchslot.CookieDot, nil, nil)
		writeDirPlusEntry(&entries, uint64(dirID), "..", searchslot.CookieDotDot, nil, nil)
		used += 2 * approxDirPlusEntrySize
	}

	for used < budget {
		entry, resumeID, ok, err := search.Next()
		if err != nil || !ok {
			break
		}
		childPathStr := childPath(res.Path, entry.Name)
		h := buildChildHandle(res.Share, dirID, entry.Info, childPathStr)
		childAttr := toFileAttr(entry.Info, effectiveFileID(resolved{Share: res.Share, H: h}), fsidFor(res.Share))
		hb := h.Bytes()
		writeDirPlusEntry(&entries, uint64(effectiveFileID(resolved{Share: res.Share, H: h})), entry.Name, searchslot.EncodeCookie(slot, resumeID), &childAttr, hb)
		used += approxDirPlusEntrySize
		if used >= budget {
			eof = false
			break
		}
	}
	if eof {
		hc.Session.Searches.Free(slot)
	}

	buf.Write(entries.Bytes())
	_ = xdr.WriteBool(buf, false)
	_ = xdr.WriteBool(buf, eof)
	return buf.Bytes(), nil
}

func writeDirPlusEntry(buf *bytes.Buffer, fileid uint64, name string, cookie uint64, attr *types.FileAttr, handleBytes []byte) {
	_ = xdr.WriteBool(buf, true)
	_ = xdr.WriteUint64(buf, fileid)
	_ = xdr.WriteXDRString(buf, name)
	_ = xdr.WriteUint64(buf, cookie)
	_ = types.EncodePostOpAttr(buf, attr)
	if handleBytes == nil {
		_ = xdr.WriteBool(buf, false)
		return
	}
	_ = xdr.WriteBool(buf, true)
	_ = xdr.WriteXDROpaque(buf, handleBytes)
}

// handleFsStat implements FSSTAT (proc 18, RFC 1813 §3.3.18): dynamic
// space/inode usage. Back ends without fsfacade.DiskSizer (or whose
// GetDiskInformation fails) report fixed estimates: 1 TiB total,
// 512 GiB free, 2^20 files with 2^19 free.
func handleFsStat(hc *HandlerContext, data []byte) ([]byte, error) {
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
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePostOpAttr(buf, nil)
		return buf.Bytes(), nil
	}
	attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
	_ = types.EncodePostOpAttr(buf, &attr)

	disk := fsfacade.DiskInfo{
		TotalBytes: 1 << 40, FreeBytes: 1 << 39, AvailBytes: 1 << 39,
		TotalFiles: 1 << 20, FreeFiles: 1 << 19,
	}
	if sizer, ok := res.Share.FS.(fsfacade.DiskSizer); ok {
		if d, err := sizer.GetDiskInformation(); err == nil {
			disk = d
		}
	}
	_ = xdr.WriteUint64(buf, disk.TotalBytes)
	_ = xdr.WriteUint64(buf, disk.FreeBytes)
	_ = xdr.WriteUint64(buf, disk.AvailBytes)
	_ = xdr.WriteUint64(buf, disk.TotalFiles)
	_ = xdr.WriteUint64(buf, disk.FreeFiles)
	_ = xdr.WriteUint64(buf, disk.FreeFiles)
	_ = xdr.WriteUint32(buf, 0) // invarsec: no guaranteed-stable window
	return buf.Bytes(), nil
}

// Static limits this server advertises via FSINFO/PATHCONF: fixed
// values rather than any back-end capability probe.
const (
	maxFileSize     uint64 = 2 << 40 // 2 TiB
	rwIOSize        uint32 = 65535
	preferredDTSize uint32 = 8192
	maxNameLen      uint32 = 255
	maxLinkCount    uint32 = 32767
)

// handleFsInfo implements FSINFO (proc 19, RFC 1813 §3.3.19).
func handleFsInfo(hc *HandlerContext, data []byte) ([]byte, error) {
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
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePostOpAttr(buf, nil)
		return buf.Bytes(), nil
	}
	attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
	_ = types.EncodePostOpAttr(buf, &attr)

	// rtmax, rtpref, rtmult, wtmax, wtpref, wtmult, dtpref.
	for _, v := range []uint32{rwIOSize, rwIOSize, 4096, rwIOSize, rwIOSize, 4096, preferredDTSize} {
		_ = xdr.WriteUint32(buf, v)
	}
	_ = xdr.WriteUint64(buf, maxFileSize)
	_ = types.TimeVal{Seconds: 1, Nseconds: 0}.Encode(buf)
	const fsinfoPropertiesLink = 0x0001
	const fsinfoPropertiesSymlink = 0x0002
	const fsinfoPropertiesHomogeneous = 0x0008
	const fsinfoPropertiesCanSetTime = 0x0010
	_ = xdr.WriteUint32(buf, fsinfoPropertiesLink|fsinfoPropertiesSymlink|fsinfoPropertiesHomogeneous|fsinfoPropertiesCanSetTime)
	return buf.Bytes(), nil
}

// handlePathConf implements PATHCONF (proc 20, RFC 1813 §3.3.20).
func handlePathConf(hc *HandlerContext, data []byte) ([]byte, error) {
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
	status := statusFor(hc.Ctx, ferr)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, status)
	if status != types.NFS3OK {
		_ = types.EncodePostOpAttr(buf, nil)
		return buf.Bytes(), nil
	}
	attr := toFileAttr(fi, effectiveFileID(res), fsidFor(res.Share))
	_ = types.EncodePostOpAttr(buf, &attr)

	_ = xdr.WriteUint32(buf, maxLinkCount)
	_ = xdr.WriteUint32(buf, maxNameLen)
	_ = xdr.WriteBool(buf, true) // no_trunc
	_ = xdr.WriteBool(buf, true) // chown_restricted
	_ = xdr.WriteBool(buf, true) // case_insensitive
	_ = xdr.WriteBool(buf, true) // case_preserving
	return buf.Bytes(), nil
}

// handleCommit implements COMMIT (proc 21, RFC 1813 §3.3.21). Every
// WRITE in this server is already FILE_SYNC, so COMMIT only
// re-syncs the open file and reports the server's write verifier.
func handleCommit(hc *HandlerContext, data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	raw, err := decodeHandle(r)
	if err != nil {
		return nil, err
	}
	if _, err := xdr.DecodeUint64(r); err != nil { // offset, ignored: always syncs the whole file
		return nil, err
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // count, ignored
		return nil, err
	}

	res, ferr := resolveHandle(hc, raw)
	var pre *types.WccAttr
	if ferr == nil {
		pre = preWcc(res)
	}
	if ferr == nil {
		if entry, ok := hc.Session.OpenFiles.Get(effectiveFileID(res)); ok {
			entry.Lock()
			ferr = entry.File.Sync()
			entry.Unlock()
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
		_ = xdr.WriteUint64(buf, hc.Server.WriteVerifier)
	}
	return buf.Bytes(), nil
}
