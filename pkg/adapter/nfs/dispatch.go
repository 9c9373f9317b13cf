package nfs

import (
	"context"
	"time"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/rpc"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// procNames maps an NFSv3 procedure number to the name every trace
// span and metric label uses.
var procNames = [...]string{
	types.NFSProcNull: "NULL", types.NFSProcGetAttr: "GETATTR", types.NFSProcSetAttr: "SETATTR",
	types.NFSProcLookup: "LOOKUP", types.NFSProcAccess: "ACCESS", types.NFSProcReadLink: "READLINK",
	types.NFSProcRead: "READ", types.NFSProcWrite: "WRITE", types.NFSProcCreate: "CREATE",
	types.NFSProcMkdir: "MKDIR", types.NFSProcSymlink: "SYMLINK", types.NFSProcMknod: "MKNOD",
	types.NFSProcRemove: "REMOVE", types.NFSProcRmdir: "RMDIR", types.NFSProcRename: "RENAME",
	types.NFSProcLink: "LINK", types.NFSProcReadDir: "READDIR", types.NFSProcReadDirPlus: "READDIRPLUS",
	types.NFSProcFsStat: "FSSTAT", types.NFSProcFsInfo: "FSINFO", types.NFSProcPathConf: "PATHCONF",
	types.NFSProcCommit: "COMMIT",
}

// dispatch routes one complete RPC message to the NFS or MOUNT
// dispatcher by peeking at the call header's program number, and
// instruments the call with a trace span plus (when metrics are
// enabled) in-flight, request-count and duration metrics labelled by
// procedure only (the share and error-code labels are left empty).
// Both Server.Dispatch methods re-parse the header themselves; the small duplicated parse
// here buys program routing without exposing either dispatcher's
// internals.
func (a *Adapter) dispatch(ctx context.Context, clientAddr string, message []byte) []byte {
	call, err := rpc.ReadCall(message)
	if err != nil {
		return a.server.Dispatch(ctx, clientAddr, message)
	}

	switch call.Program {
	case types.ProgramMount:
		ctx, span := telemetry.StartSpan(ctx, mountSpanName(call.Procedure),
			trace.WithAttributes(telemetry.ClientAddr(clientAddr)))
		defer span.End()
		return a.mountServer.Dispatch(ctx, clientAddr, message)

	case types.ProgramNFS:
		name := "UNKNOWN"
		if call.Procedure < uint32(len(procNames)) {
			name = procNames[call.Procedure]
		}

		if a.metrics != nil {
			a.metrics.RecordRequestStart(name, "")
			defer a.metrics.RecordRequestEnd(name, "")
		}

		ctx, span := telemetry.StartNFSSpan(ctx, name, nil, telemetry.ClientAddr(clientAddr))
		defer span.End()

		start := time.Now()
		reply := a.server.Dispatch(ctx, clientAddr, message)
		elapsed := time.Since(start)
		if a.metrics != nil {
			a.metrics.RecordRequest(name, "", elapsed, "")
		}
		if a.debug.has(debugTiming) {
			logger.DebugCtx(ctx, "procedure timing", "procedure", name, "client", clientAddr,
				"duration_ms", float64(elapsed.Microseconds())/1000.0)
		}
		return reply

	default:
		logger.WarnCtx(ctx, "rejecting call for unknown program", "program", call.Program)
		return a.server.Dispatch(ctx, clientAddr, message)
	}
}

func mountSpanName(proc uint32) string {
	switch proc {
	case 1:
		return telemetry.SpanMountMnt
	case 2:
		return telemetry.SpanMountDump
	case 3:
		return telemetry.SpanMountUmnt
	case 4:
		return telemetry.SpanMountUmntall
	case 5:
		return telemetry.SpanMountExport
	default:
		return telemetry.SpanMountNull
	}
}
