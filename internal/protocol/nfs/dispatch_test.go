package nfs

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/handle"
	"github.com/marmos91/nfsv3d/pkg/session"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires a Server against an in-memory afero back end
// with a single share "s" (id derived from its name, file-id support
// via AferoFS.BuildPathForFileID).
func newTestServer(t *testing.T) (*Server, *Share) {
	t.Helper()
	fs := fsfacade.NewAferoFS(afero.NewMemMapFs())
	share := NewShare("s", fs, session.ReadWrite)
	registry := NewShareRegistry(nil)
	registry.Add(share)
	srv := NewServer(registry, session.NewTable(256), 0xC0FFEE)
	return srv, share
}

// encodeCallHeader writes the RFC 5531 call_body (xid, msg_type=CALL,
// rpcvers=2, program/version/procedure) plus an AUTH_NONE credential
// and verifier, matching the shape rpc.ReadCall parses.
func encodeCallHeader(buf *bytes.Buffer, xid, program, version, procedure uint32) {
	_ = xdr.WriteUint32(buf, xid)
	_ = xdr.WriteUint32(buf, 0) // msg_type = CALL
	_ = xdr.WriteUint32(buf, 2) // rpcvers
	_ = xdr.WriteUint32(buf, program)
	_ = xdr.WriteUint32(buf, version)
	_ = xdr.WriteUint32(buf, procedure)
	_ = xdr.WriteUint32(buf, 0) // cred flavor = AUTH_NONE
	_ = xdr.WriteXDROpaque(buf, nil)
	_ = xdr.WriteUint32(buf, 0) // verf flavor = AUTH_NONE
	_ = xdr.WriteXDROpaque(buf, nil)
}

func makeCall(xid, procedure uint32, argsFn func(buf *bytes.Buffer)) []byte {
	buf := new(bytes.Buffer)
	encodeCallHeader(buf, xid, types.ProgramNFS, types.NFSVersion3, procedure)
	if argsFn != nil {
		argsFn(buf)
	}
	return buf.Bytes()
}

// parseReply strips the 4-byte record-mark, verifies an ACCEPTED/
// SUCCESS header with a matching xid, and returns the remaining
// payload (the status plus whichever result arm follows).
func parseReply(t *testing.T, reply []byte, wantXID uint32) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(reply), 4)
	r := bytes.NewReader(reply[4:])

	xid, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.Equal(t, wantXID, xid)

	msgType, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.EqualValues(t, 1, msgType) // REPLY

	replyStat, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.EqualValues(t, 0, replyStat) // MSG_ACCEPTED

	_, err = xdr.DecodeUint32(r) // verf flavor
	require.NoError(t, err)
	_, err = xdr.DecodeOpaque(r) // verf body
	require.NoError(t, err)

	acceptStat, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.EqualValues(t, 0, acceptStat) // SUCCESS

	rest := make([]byte, r.Len())
	if len(rest) > 0 {
		_, err = r.Read(rest)
		require.NoError(t, err)
	}
	return rest
}

// decodeFattr3 reads one fattr3 in the field order types.FileAttr.Encode writes.
func decodeFattr3(t *testing.T, r *bytes.Reader) types.FileAttr {
	t.Helper()
	var a types.FileAttr
	var err error
	a.Type, err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.Mode, err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.Nlink, err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.UID, err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.GID, err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.Size, err = xdr.DecodeUint64(r)
	require.NoError(t, err)
	a.Used, err = xdr.DecodeUint64(r)
	require.NoError(t, err)
	a.Rdev[0], err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.Rdev[1], err = xdr.DecodeUint32(r)
	require.NoError(t, err)
	a.Fsid, err = xdr.DecodeUint64(r)
	require.NoError(t, err)
	a.Fileid, err = xdr.DecodeUint64(r)
	require.NoError(t, err)
	a.Atime, err = types.DecodeTimeVal(r)
	require.NoError(t, err)
	a.Mtime, err = types.DecodeTimeVal(r)
	require.NoError(t, err)
	a.Ctime, err = types.DecodeTimeVal(r)
	require.NoError(t, err)
	return a
}

// TestDispatch_Null: NULL always succeeds with
// an empty body, without needing any session or share state.
func TestDispatch_Null(t *testing.T) {
	srv, _ := newTestServer(t)
	call := makeCall(0xAA, types.NFSProcNull, nil)

	reply := srv.Dispatch(context.Background(), "127.0.0.1:111", call)
	body := parseReply(t, reply, 0xAA)
	assert.Empty(t, body, "NULL reply body must be empty")
}

// TestDispatch_ProgUnavail rejects a call for an unknown RPC program.
func TestDispatch_ProgUnavail(t *testing.T) {
	srv, _ := newTestServer(t)
	buf := new(bytes.Buffer)
	encodeCallHeader(buf, 1, 999999, 3, 0)

	reply := srv.Dispatch(context.Background(), "127.0.0.1:111", buf.Bytes())
	r := bytes.NewReader(reply[4:])
	_, _ = xdr.DecodeUint32(r) // xid
	_, _ = xdr.DecodeUint32(r) // msg_type
	_, _ = xdr.DecodeUint32(r) // accepted
	_, _ = xdr.DecodeUint32(r) // verf flavor
	_, _ = xdr.DecodeOpaque(r) // verf body
	acceptStat, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.EqualValues(t, 1, acceptStat) // PROG_UNAVAIL
}

// lookupArgs encodes a diropargs3: handle opaque + name string.
func lookupArgs(h handle.Handle, name string) func(buf *bytes.Buffer) {
	return func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, h.Bytes())
		_ = xdr.WriteXDRString(buf, name)
	}
}

// TestDispatch_LookupMiss: LOOKUP for a
// nonexistent name under the share root returns STS_NOENT and the
// reply still carries a post-op attr for the directory.
func TestDispatch_LookupMiss(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)

	call := makeCall(2, types.NFSProcLookup, lookupArgs(root, "missing"))
	reply := srv.Dispatch(context.Background(), "10.0.0.1:1", call)
	body := parseReply(t, reply, 2)

	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNoEnt, status)

	present, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.True(t, present, "post-op dir attr must be present even on NOENT")
}

// createArgs encodes the UNCHECKED-mode createargs3 this server
// accepts: diropargs3, createmode3=UNCHECKED, sattr3 with no fields set.
func createArgs(dir handle.Handle, name string) func(buf *bytes.Buffer) {
	return func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, dir.Bytes())
		_ = xdr.WriteXDRString(buf, name)
		_ = xdr.WriteUint32(buf, types.CreateModeUnchecked)
		for i := 0; i < 6; i++ { // mode/uid/gid/size all "don't set", atime/mtime DONT_CHANGE
			_ = xdr.WriteUint32(buf, 0)
		}
	}
}

func getAttrArgs(h handle.Handle) func(buf *bytes.Buffer) {
	return func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, h.Bytes())
	}
}

// TestDispatch_CreateThenGetAttr: CREATE
// returns a handle for a fresh zero-length regular file, and a
// follow-up GETATTR on that handle reports size 0 and NFS type REG.
func TestDispatch_CreateThenGetAttr(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)

	createCall := makeCall(3, types.NFSProcCreate, createArgs(root, "hello.txt"))
	createReply := srv.Dispatch(context.Background(), "10.0.0.2:1", createCall)
	body := parseReply(t, createReply, 3)

	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)

	handlePresent, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	require.True(t, handlePresent)
	hBytes, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	newHandle, err := handle.Decode(hBytes)
	require.NoError(t, err)
	assert.Equal(t, handle.TagFile, newHandle.Tag)

	getCall := makeCall(4, types.NFSProcGetAttr, getAttrArgs(newHandle))
	getReply := srv.Dispatch(context.Background(), "10.0.0.2:1", getCall)
	getBody := parseReply(t, getReply, 4)

	gr := bytes.NewReader(getBody)
	getStatus, err := xdr.DecodeUint32(gr)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, getStatus)

	attr := decodeFattr3(t, gr)
	assert.EqualValues(t, types.NFSTypeReg, attr.Type)
	assert.EqualValues(t, 0, attr.Size)
}

// TestDispatch_RenamePreservesHandle: after a successful RENAME, the
// pre-rename handle keeps
// resolving and now reflects the new path's contents.
func TestDispatch_RenamePreservesHandle(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)

	createCall := makeCall(5, types.NFSProcCreate, createArgs(root, "a.txt"))
	createReply := srv.Dispatch(context.Background(), "10.0.0.3:1", createCall)
	body := parseReply(t, createReply, 5)
	r := bytes.NewReader(body)
	_, _ = xdr.DecodeUint32(r) // status
	_, _ = xdr.DecodeBool(r)   // handle present
	hBytes, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	fileHandle, err := handle.Decode(hBytes)
	require.NoError(t, err)

	renameCall := makeCall(6, types.NFSProcRename, func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, root.Bytes())
		_ = xdr.WriteXDRString(buf, "a.txt")
		_ = xdr.WriteXDROpaque(buf, root.Bytes())
		_ = xdr.WriteXDRString(buf, "b.txt")
	})
	renameReply := srv.Dispatch(context.Background(), "10.0.0.3:1", renameCall)
	renameBody := parseReply(t, renameReply, 6)
	renameStatus, err := xdr.DecodeUint32(bytes.NewReader(renameBody))
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, renameStatus)

	getCall := makeCall(7, types.NFSProcGetAttr, getAttrArgs(fileHandle))
	getReply := srv.Dispatch(context.Background(), "10.0.0.3:1", getCall)
	getBody := parseReply(t, getReply, 7)
	getStatus, err := xdr.DecodeUint32(bytes.NewReader(getBody))
	require.NoError(t, err)
	assert.Equal(t, types.NFS3OK, getStatus, "handle from before rename must still resolve")

	id, ok := share.Files.LookupID("/b.txt")
	require.True(t, ok)
	assert.EqualValues(t, id, fileHandle.FileID)
}

// commitArgs encodes a COMMIT3args: file handle, offset, count.
func commitArgs(h handle.Handle) func(buf *bytes.Buffer) {
	return func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, h.Bytes())
		_ = xdr.WriteUint64(buf, 0)
		_ = xdr.WriteUint32(buf, 0)
	}
}

// TestDispatch_CommitReportsFileID guards against a regression where
// handleCommit built its post-op attribute with the directory-oriented
// postDirAttr helper, which resolves a TagFile handle's id via
// dirIDOf and silently gets 0 back, so every COMMIT reply reported
// fileid 0 instead of the committed file's actual id.
func TestDispatch_CommitReportsFileID(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)

	createCall := makeCall(11, types.NFSProcCreate, createArgs(root, "committed.txt"))
	createReply := srv.Dispatch(context.Background(), "10.0.0.5:1", createCall)
	body := parseReply(t, createReply, 11)
	r := bytes.NewReader(body)
	_, _ = xdr.DecodeUint32(r) // status
	_, _ = xdr.DecodeBool(r)   // handle present
	hBytes, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	fileHandle, err := handle.Decode(hBytes)
	require.NoError(t, err)
	require.NotZero(t, fileHandle.FileID)

	commitCall := makeCall(12, types.NFSProcCommit, commitArgs(fileHandle))
	commitReply := srv.Dispatch(context.Background(), "10.0.0.5:1", commitCall)
	commitBody := parseReply(t, commitReply, 12)

	cr := bytes.NewReader(commitBody)
	status, err := xdr.DecodeUint32(cr)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)

	_, err = xdr.DecodeBool(cr) // pre-op attr present
	require.NoError(t, err)
	// pre-op wcc_attr is size(uint64) + mtime(timeval) + ctime(timeval)
	_, err = xdr.DecodeUint64(cr) // size
	require.NoError(t, err)
	for i := 0; i < 4; i++ { // mtime secs/nsecs, ctime secs/nsecs
		_, err = xdr.DecodeUint32(cr)
		require.NoError(t, err)
	}

	postPresent, err := xdr.DecodeBool(cr)
	require.NoError(t, err)
	require.True(t, postPresent)
	postAttr := decodeFattr3(t, cr)
	assert.EqualValues(t, fileHandle.FileID, postAttr.Fileid, "COMMIT post-op attr must report the file's own id")
}

// TestDispatch_DirectoryHandleRoundTrip guards against a regression
// where resolveHandle looked up a directory handle's path by its
// (always-zero) FileID field instead of DirID, which made every
// non-root directory handle unresolvable (always STALE).
func TestDispatch_DirectoryHandleRoundTrip(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)

	mkdirCall := makeCall(8, types.NFSProcMkdir, func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, root.Bytes())
		_ = xdr.WriteXDRString(buf, "subdir")
		for i := 0; i < 6; i++ { // sattr3 with no fields set (mode/uid/gid/size bools + atime/mtime "how")
			_ = xdr.WriteUint32(buf, 0)
		}
	})
	mkdirReply := srv.Dispatch(context.Background(), "10.0.0.4:1", mkdirCall)
	body := parseReply(t, mkdirReply, 8)
	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)

	_, err = xdr.DecodeBool(r) // handle present
	require.NoError(t, err)
	hBytes, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	dirHandle, err := handle.Decode(hBytes)
	require.NoError(t, err)
	require.Equal(t, handle.TagDirectory, dirHandle.Tag)

	// GETATTR on the freshly minted directory handle must resolve, not STALE.
	getCall := makeCall(9, types.NFSProcGetAttr, getAttrArgs(dirHandle))
	getReply := srv.Dispatch(context.Background(), "10.0.0.4:1", getCall)
	getBody := parseReply(t, getReply, 9)
	getStatus, err := xdr.DecodeUint32(bytes.NewReader(getBody))
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, getStatus)

	// CREATE a child inside the subdirectory to exercise resolveHandle
	// on the directory handle as a *parent* too.
	createCall := makeCall(10, types.NFSProcCreate, createArgs(dirHandle, "nested.txt"))
	createReply := srv.Dispatch(context.Background(), "10.0.0.4:1", createCall)
	createBody := parseReply(t, createReply, 10)
	createStatus, err := xdr.DecodeUint32(bytes.NewReader(createBody))
	require.NoError(t, err)
	assert.Equal(t, types.NFS3OK, createStatus)
}

// skipWccData consumes a wcc_data (pre_op_attr + post_op_attr) without
// asserting on its contents.
func skipWccData(t *testing.T, r *bytes.Reader) {
	t.Helper()
	prePresent, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	if prePresent {
		_, err = xdr.DecodeUint64(r) // size
		require.NoError(t, err)
		for i := 0; i < 4; i++ { // mtime, ctime
			_, err = xdr.DecodeUint32(r)
			require.NoError(t, err)
		}
	}
	postPresent, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	if postPresent {
		decodeFattr3(t, r)
	}
}

// createFile drives a CREATE through Dispatch and returns the new
// file's handle.
func createFile(t *testing.T, srv *Server, clientAddr string, dir handle.Handle, name string) handle.Handle {
	t.Helper()
	call := makeCall(100, types.NFSProcCreate, createArgs(dir, name))
	reply := srv.Dispatch(context.Background(), clientAddr, call)
	body := parseReply(t, reply, 100)
	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)
	_, err = xdr.DecodeBool(r)
	require.NoError(t, err)
	hBytes, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	h, err := handle.Decode(hBytes)
	require.NoError(t, err)
	return h
}

// TestDispatch_WriteThenCommitVerifier: a WRITE reports the server's
// write verifier, a follow-up COMMIT reports the same one, and a server
// constructed with a different verifier (a restarted process) reports a
// different one.
func TestDispatch_WriteThenCommitVerifier(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)
	h := createFile(t, srv, "10.0.0.6:1", root, "data.bin")

	payload := []byte("0123456789abcdef")
	writeCall := makeCall(20, types.NFSProcWrite, func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, h.Bytes())
		_ = xdr.WriteUint64(buf, 0)                    // offset
		_ = xdr.WriteUint32(buf, uint32(len(payload))) // count
		_ = xdr.WriteUint32(buf, types.StableHowUnstable)
		_ = xdr.WriteXDROpaque(buf, payload)
	})
	writeReply := srv.Dispatch(context.Background(), "10.0.0.6:1", writeCall)
	body := parseReply(t, writeReply, 20)

	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)
	skipWccData(t, r)
	count, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), count)
	_, err = xdr.DecodeUint32(r) // committed
	require.NoError(t, err)
	writeVerf, err := xdr.DecodeUint64(r)
	require.NoError(t, err)
	assert.EqualValues(t, srv.WriteVerifier, writeVerf)

	commitCall := makeCall(21, types.NFSProcCommit, commitArgs(h))
	commitReply := srv.Dispatch(context.Background(), "10.0.0.6:1", commitCall)
	commitBody := parseReply(t, commitReply, 21)
	cr := bytes.NewReader(commitBody)
	status, err = xdr.DecodeUint32(cr)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)
	skipWccData(t, cr)
	commitVerf, err := xdr.DecodeUint64(cr)
	require.NoError(t, err)
	assert.Equal(t, writeVerf, commitVerf, "COMMIT must echo the WRITE verifier within one process")

	restarted := NewServer(srv.Shares, session.NewTable(256), srv.WriteVerifier+1)
	h2 := createFile(t, restarted, "10.0.0.6:1", root, "data2.bin")
	commitCall2 := makeCall(22, types.NFSProcCommit, commitArgs(h2))
	commitReply2 := restarted.Dispatch(context.Background(), "10.0.0.6:1", commitCall2)
	commitBody2 := parseReply(t, commitReply2, 22)
	cr2 := bytes.NewReader(commitBody2)
	status, err = xdr.DecodeUint32(cr2)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status)
	skipWccData(t, cr2)
	restartVerf, err := xdr.DecodeUint64(cr2)
	require.NoError(t, err)
	assert.NotEqual(t, writeVerf, restartVerf, "a restarted server must report a fresh verifier")
}

// TestDispatch_ReadAtEOF: reading at or past end of file is a
// successful zero-byte read with eof set, not an error.
func TestDispatch_ReadAtEOF(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)
	h := createFile(t, srv, "10.0.0.7:1", root, "empty.txt")

	readCall := makeCall(30, types.NFSProcRead, func(buf *bytes.Buffer) {
		_ = xdr.WriteXDROpaque(buf, h.Bytes())
		_ = xdr.WriteUint64(buf, 0)
		_ = xdr.WriteUint32(buf, 16)
	})
	readReply := srv.Dispatch(context.Background(), "10.0.0.7:1", readCall)
	body := parseReply(t, readReply, 30)

	r := bytes.NewReader(body)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, status, "a read at EOF must succeed with zero bytes")

	present, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	require.True(t, present)
	decodeFattr3(t, r)

	count, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.Zero(t, count)
	eof, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.True(t, eof)
}

// TestDispatch_RemoveInvalidatesHandle: after REMOVE, the removed
// file's pre-existing handle no longer resolves and reports STALE.
func TestDispatch_RemoveInvalidatesHandle(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)
	h := createFile(t, srv, "10.0.0.8:1", root, "gone.txt")

	removeCall := makeCall(40, types.NFSProcRemove, lookupArgs(root, "gone.txt"))
	removeReply := srv.Dispatch(context.Background(), "10.0.0.8:1", removeCall)
	removeBody := parseReply(t, removeReply, 40)
	removeStatus, err := xdr.DecodeUint32(bytes.NewReader(removeBody))
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, removeStatus)

	getCall := makeCall(41, types.NFSProcGetAttr, getAttrArgs(h))
	getReply := srv.Dispatch(context.Background(), "10.0.0.8:1", getCall)
	getBody := parseReply(t, getReply, 41)
	getStatus, err := xdr.DecodeUint32(bytes.NewReader(getBody))
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrStale, getStatus)
}

// TestDispatch_ReadDirPaging enumerates a directory across several
// READDIR batches: every real entry's cookie carries a nonzero slot id,
// the echoed verifier is accepted on resume, and the full listing comes
// back exactly once.
func TestDispatch_ReadDirPaging(t *testing.T) {
	srv, share := newTestServer(t)
	root := handle.Share(share.ID)

	const fileCount = 12
	want := make(map[string]bool, fileCount)
	for i := 0; i < fileCount; i++ {
		name := fmt.Sprintf("file-%02d.txt", i)
		createFile(t, srv, "10.0.0.9:1", root, name)
		want[name] = false
	}

	var cookie uint64
	verf := make([]byte, 8)
	seen := 0
	for batch := 0; batch < 20; batch++ {
		call := makeCall(50+uint32(batch), types.NFSProcReadDir, func(buf *bytes.Buffer) {
			_ = xdr.WriteXDROpaque(buf, root.Bytes())
			_ = xdr.WriteUint64(buf, cookie)
			_ = xdr.WriteXDROpaque(buf, verf)
			_ = xdr.WriteUint32(buf, 200)
		})
		reply := srv.Dispatch(context.Background(), "10.0.0.9:1", call)
		body := parseReply(t, reply, 50+uint32(batch))

		r := bytes.NewReader(body)
		status, err := xdr.DecodeUint32(r)
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, status)

		present, err := xdr.DecodeBool(r)
		require.NoError(t, err)
		require.True(t, present)
		decodeFattr3(t, r)

		verf, err = xdr.DecodeOpaque(r)
		require.NoError(t, err)
		require.Len(t, verf, 8)

		for {
			follows, err := xdr.DecodeBool(r)
			require.NoError(t, err)
			if !follows {
				break
			}
			_, err = xdr.DecodeUint64(r) // fileid
			require.NoError(t, err)
			name, err := xdr.DecodeString(r)
			require.NoError(t, err)
			entryCookie, err := xdr.DecodeUint64(r)
			require.NoError(t, err)

			if name == "." || name == ".." {
				continue
			}
			require.NotZero(t, entryCookie>>24, "real entry cookies must carry a nonzero slot id")
			visited, known := want[name]
			require.True(t, known, "unexpected entry %q", name)
			require.False(t, visited, "entry %q returned twice", name)
			want[name] = true
			seen++
			cookie = entryCookie
		}

		eof, err := xdr.DecodeBool(r)
		require.NoError(t, err)
		if eof {
			break
		}
	}
	assert.Equal(t, fileCount, seen, "every file must be enumerated exactly once")
}
