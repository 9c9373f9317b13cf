// Package mount implements the MOUNT protocol (program 100005, version
// 3, RFC 1813 Appendix I) that lets a client turn a share name into an
// initial NFSv3 file handle: MNT, UMNT, UMNTALL, DUMP, and EXPORT.
//
// The NFSv3 procedure set itself has no way to hand out an initial
// handle, so no client can reach the server without this companion
// program.
package mount

import (
	"bytes"
	"context"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/rpc"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
	"github.com/marmos91/nfsv3d/pkg/handle"
)

// Mount status codes (RFC 1813 Appendix I, mountstat3). Only a subset
// is named; the MOUNT handlers here return MNT3OK and MNT3ERR_NOENT,
// and MNT3ERR_ACCES is named but not returned by any of them.
const (
	MNT3OK      uint32 = 0
	MNT3ErrNoEnt uint32 = 2
	MNT3ErrAcces uint32 = 13
)

// Procedure numbers.
const (
	ProcNull    uint32 = 0
	ProcMnt     uint32 = 1
	ProcDump    uint32 = 2
	ProcUmnt    uint32 = 3
	ProcUmntAll uint32 = 4
	ProcExport  uint32 = 5
)

// Server answers MOUNT calls against the same share registry the
// NFSv3 server uses, so a handle MNT returns resolves correctly in
// the NFS dispatcher.
type Server struct {
	Shares *nfs.ShareRegistry
}

// NewServer wires a mount server over shares.
func NewServer(shares *nfs.ShareRegistry) *Server {
	return &Server{Shares: shares}
}

// Dispatch parses and answers one RPC message addressed to program
// 100005, returning a framed reply ready for a TCP write (nil means
// drop the packet).
func (s *Server) Dispatch(ctx context.Context, clientAddr string, message []byte) []byte {
	call, err := rpc.ReadCall(message)
	if err != nil {
		logger.WarnCtx(ctx, "dropping unparsable MOUNT call", "error", err)
		return nil
	}
	if call.Program != types.ProgramMount {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCProgUnavail)
		return reply
	}
	if call.Version != types.MountVersion3 {
		reply, _ := rpc.MakeProgMismatchReply(call.XID, types.MountVersion3, types.MountVersion3)
		return reply
	}
	if call.Procedure > ProcExport {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
		return reply
	}

	data, err := rpc.ReadData(message, call)
	if err != nil {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
		return reply
	}

	var result []byte
	switch call.Procedure {
	case ProcNull:
		result = []byte{}
	case ProcMnt:
		result, err = s.handleMnt(data)
	case ProcDump:
		result = s.handleDump()
	case ProcUmnt:
		result, err = s.handleUmnt(data)
	case ProcUmntAll:
		result = []byte{}
	case ProcExport:
		result = s.handleExport()
	}
	if err != nil {
		logger.WarnCtx(ctx, "mount procedure argument decode failed", "procedure", call.Procedure, "error", err)
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
		return reply
	}

	reply, err := rpc.MakeSuccessReply(call.XID, result)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to frame mount reply", "error", err)
		return nil
	}
	return reply
}

// handleMnt implements MNT: resolve dirpath against the registered
// share names and hand back that share's root handle.
func (s *Server) handleMnt(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	dirpath, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	share, ok := s.Shares.ByName(dirpath)
	if !ok {
		_ = xdr.EncodeUnionDiscriminant(buf, MNT3ErrNoEnt)
		return buf.Bytes(), nil
	}

	h := handle.Share(share.ID)
	_ = xdr.EncodeUnionDiscriminant(buf, MNT3OK)
	_ = xdr.WriteXDROpaque(buf, h.Bytes())
	// auth_flavors<>: advertise AUTH_NONE and AUTH_UNIX
	_ = xdr.WriteUint32(buf, 2)
	_ = xdr.WriteUint32(buf, rpc.AuthNull)
	_ = xdr.WriteUint32(buf, rpc.AuthUnix)
	return buf.Bytes(), nil
}

// handleUmnt implements UMNT. Sessions are not torn down here: the
// owning connection's close (or, for UDP, the session table's
// lifetime) is what actually releases resources.
func (s *Server) handleUmnt(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	if _, err := xdr.DecodeString(r); err != nil {
		return nil, err
	}
	return []byte{}, nil
}

// handleDump implements DUMP. This server does not track which
// clients have which shares mounted, so it always reports an empty
// mount list.
func (s *Server) handleDump() []byte {
	buf := new(bytes.Buffer)
	_ = xdr.WriteBool(buf, false)
	return buf.Bytes()
}

// handleExport implements EXPORT: list every configured share with an
// empty client-access-list (this server does not restrict mounts by
// client address).
func (s *Server) handleExport() []byte {
	buf := new(bytes.Buffer)
	for _, name := range s.Shares.Names() {
		_ = xdr.WriteBool(buf, true)
		_ = xdr.WriteXDRString(buf, name)
		_ = xdr.WriteBool(buf, false) // empty groups list
	}
	_ = xdr.WriteBool(buf, false)
	return buf.Bytes()
}
