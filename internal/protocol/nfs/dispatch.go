// Package nfs implements the NFSv3 (RFC 1813) procedure set: request
// dispatch, the 22 procedure handlers, share/session bookkeeping, and
// the single error-mapping function every handler routes through.
package nfs

import (
	"context"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/rpc"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/pkg/metrics"
	"github.com/marmos91/nfsv3d/pkg/session"
)

// procFunc handles one NFSv3 procedure's already-parsed argument bytes
// and returns the fully encoded result union (status plus whichever
// arm it selects). A non-nil error here means the arguments themselves
// could not be decoded (GARBAGE_ARGS), not that the operation failed —
// operation failure is reported inside the result via statusFor.
type procFunc func(hc *HandlerContext, data []byte) ([]byte, error)

// Server is the NFSv3 program: its share registry, session table, and
// the write verifier every WRITE/COMMIT reply reports (a value that
// must change across server restarts so clients know to resend
// unstably-written data).
type Server struct {
	Shares        *ShareRegistry
	Sessions      *session.Table
	WriteVerifier uint64

	// Auth resolves credentials to session keys and identities. Set to
	// the built-in default by NewServer; replace it before serving to
	// plug in a different credential policy.
	Auth Authenticator

	// Metrics, when non-nil, receives byte-transfer observations from
	// the READ/WRITE handlers. Request-level counters stay with the
	// transport adapter, which knows about connections and timing.
	Metrics metrics.NFSMetrics

	procs [22]procFunc
}

// NewServer wires a Server's procedure table. writeVerifier should be
// derived from the server's start time (or similar) by the caller so
// it changes on every restart.
func NewServer(shares *ShareRegistry, sessions *session.Table, writeVerifier uint64) *Server {
	s := &Server{Shares: shares, Sessions: sessions, WriteVerifier: writeVerifier, Auth: defaultAuthenticator{}}
	s.procs = [22]procFunc{
		types.NFSProcNull:        handleNull,
		types.NFSProcGetAttr:     handleGetAttr,
		types.NFSProcSetAttr:     handleSetAttr,
		types.NFSProcLookup:      handleLookup,
		types.NFSProcAccess:      handleAccess,
		types.NFSProcReadLink:    handleReadLink,
		types.NFSProcRead:        handleRead,
		types.NFSProcWrite:       handleWrite,
		types.NFSProcCreate:      handleCreate,
		types.NFSProcMkdir:       handleMkdir,
		types.NFSProcSymlink:     handleSymlink,
		types.NFSProcMknod:       handleMknod,
		types.NFSProcRemove:      handleRemove,
		types.NFSProcRmdir:       handleRmdir,
		types.NFSProcRename:      handleRename,
		types.NFSProcLink:        handleLink,
		types.NFSProcReadDir:     handleReadDir,
		types.NFSProcReadDirPlus: handleReadDirPlus,
		types.NFSProcFsStat:      handleFsStat,
		types.NFSProcFsInfo:      handleFsInfo,
		types.NFSProcPathConf:    handlePathConf,
		types.NFSProcCommit:      handleCommit,
	}
	return s
}

// SessionKeyFor reports the session key an NFS call in message would
// resolve to, without dispatching it. The owning TCP connection uses
// this to know which sessions to remove from the table when it closes
// (session removal is tied to TCP connection close); ok is false
// for anything that is not a parsable NFS-program call, since only NFS
// calls create sessions.
func (s *Server) SessionKeyFor(clientAddr string, message []byte) (key uint64, ok bool) {
	call, err := rpc.ReadCall(message)
	if err != nil || call.Program != types.ProgramNFS {
		return 0, false
	}
	key, _, err = s.Auth.Authenticate(clientAddr, call)
	if err != nil {
		return 0, false
	}
	return key, true
}

// Dispatch parses one complete RPC message addressed to program
// 100003 (NFS), runs the requested procedure, and returns a fully
// framed reply ready for a TCP write (a UDP caller strips the leading
// 4-byte record-mark before sending the datagram). A nil return means
// the message could not be parsed well enough to reply at all and
// should simply be dropped.
func (s *Server) Dispatch(ctx context.Context, clientAddr string, message []byte) []byte {
	call, err := rpc.ReadCall(message)
	if err != nil {
		logger.WarnCtx(ctx, "dropping unparsable RPC call", "error", err)
		return nil
	}

	if call.Program != types.ProgramNFS {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCProgUnavail)
		return reply
	}
	if call.Version != types.NFSVersion3 {
		reply, _ := rpc.MakeProgMismatchReply(call.XID, types.NFSVersion3, types.NFSVersion3)
		return reply
	}
	if call.Procedure > types.NFSProcCommit {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
		return reply
	}

	// NULL succeeds without authentication, even on a credential the
	// authenticator would reject.
	if call.Procedure == types.NFSProcNull {
		reply, _ := rpc.MakeSuccessReply(call.XID, nil)
		return reply
	}

	key, class, err := s.Auth.Authenticate(clientAddr, call)
	if err != nil {
		logger.WarnCtx(ctx, "rejecting call with unparsable credential", "error", err)
		reply, _ := rpc.MakeAuthErrorReply(call.XID, 1)
		return reply
	}
	clientInfo, err := s.Auth.BuildClientInfo(clientAddr, call)
	if err != nil {
		logger.WarnCtx(ctx, "rejecting call with unresolvable identity", "error", err)
		reply, _ := rpc.MakeAuthErrorReply(call.XID, 1)
		return reply
	}
	sess, err := s.Sessions.GetOrCreate(key, class, func() (session.ClientInfo, error) { return clientInfo, nil })
	if err != nil {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCSystemErr)
		return reply
	}
	s.Auth.SetCurrentUser(sess, clientInfo)

	data, err := rpc.ReadData(message, call)
	if err != nil {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
		return reply
	}

	hc := &HandlerContext{Ctx: ctx, Server: s, Session: sess, ClientAddr: clientAddr}
	result, err := s.procs[call.Procedure](hc, data)
	sess.EndTransaction()
	if err != nil {
		logger.WarnCtx(ctx, "procedure argument decode failed", "procedure", call.Procedure, "error", err)
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
		return reply
	}

	reply, err := rpc.MakeSuccessReply(call.XID, result)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to frame reply", "error", err)
		return nil
	}
	return reply
}

func handleNull(hc *HandlerContext, data []byte) ([]byte, error) {
	return []byte{}, nil
}
