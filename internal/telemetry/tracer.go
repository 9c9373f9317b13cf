package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to NFS/MOUNT spans. Generic fs.* keys are
// protocol-agnostic; nfs.*/mount.*/rpc.* keys are specific to this
// server's wire protocols.
const (
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	AttrProtocol  = "protocol.name"
	AttrOperation = "fs.operation"
	AttrHandle    = "fs.handle"
	AttrShare     = "fs.share"
	AttrPath      = "fs.path"
	AttrSize      = "fs.size"
	AttrStatus    = "fs.status"

	AttrRPCXID     = "rpc.xid"
	AttrRPCProgram = "rpc.program"
	AttrRPCVersion = "rpc.version"

	AttrNFSProcedure = "nfs.procedure"
	AttrNFSHandle    = "nfs.handle"
	AttrNFSShare     = "nfs.share"
	AttrNFSPath      = "nfs.path"
	AttrNFSOffset    = "nfs.offset"
	AttrNFSCount     = "nfs.count"
	AttrNFSStatus    = "nfs.status"
	AttrNFSEOF       = "nfs.eof"

	AttrUID  = "user.uid"
	AttrGID  = "user.gid"
	AttrAuth = "auth.method"

	AttrCacheHit    = "cache.hit"
	AttrCacheSource = "cache.source"
)

// Span names, one per dispatched procedure plus a handful of internal
// cache operations.
const (
	SpanNFSRequest = "nfs.request"

	SpanNFSNull        = "nfs.NULL"
	SpanNFSGetattr     = "nfs.GETATTR"
	SpanNFSSetattr     = "nfs.SETATTR"
	SpanNFSLookup      = "nfs.LOOKUP"
	SpanNFSAccess      = "nfs.ACCESS"
	SpanNFSReadlink    = "nfs.READLINK"
	SpanNFSRead        = "nfs.READ"
	SpanNFSWrite       = "nfs.WRITE"
	SpanNFSCreate      = "nfs.CREATE"
	SpanNFSMkdir       = "nfs.MKDIR"
	SpanNFSSymlink     = "nfs.SYMLINK"
	SpanNFSMknod       = "nfs.MKNOD"
	SpanNFSRemove      = "nfs.REMOVE"
	SpanNFSRmdir       = "nfs.RMDIR"
	SpanNFSRename      = "nfs.RENAME"
	SpanNFSLink        = "nfs.LINK"
	SpanNFSReaddir     = "nfs.READDIR"
	SpanNFSReaddirplus = "nfs.READDIRPLUS"
	SpanNFSFsstat      = "nfs.FSSTAT"
	SpanNFSFsinfo      = "nfs.FSINFO"
	SpanNFSPathconf    = "nfs.PATHCONF"
	SpanNFSCommit      = "nfs.COMMIT"

	SpanMountNull    = "mount.NULL"
	SpanMountMnt     = "mount.MNT"
	SpanMountDump    = "mount.DUMP"
	SpanMountUmnt    = "mount.UMNT"
	SpanMountUmntall = "mount.UMNTALL"
	SpanMountExport  = "mount.EXPORT"

	SpanCacheLookup = "cache.lookup"
	SpanCacheEvict  = "cache.evict"
)

func ClientAddr(addr string) attribute.KeyValue { return attribute.String(AttrClientAddr, addr) }

func RPCXID(xid uint32) attribute.KeyValue { return attribute.Int64(AttrRPCXID, int64(xid)) }

func NFSProcedure(name string) attribute.KeyValue { return attribute.String(AttrNFSProcedure, name) }

func NFSHandle(handle []byte) attribute.KeyValue {
	return attribute.String(AttrNFSHandle, fmt.Sprintf("%x", handle))
}

func NFSShare(share string) attribute.KeyValue { return attribute.String(AttrNFSShare, share) }

func NFSPath(path string) attribute.KeyValue { return attribute.String(AttrNFSPath, path) }

func NFSOffset(offset uint64) attribute.KeyValue {
	return attribute.Int64(AttrNFSOffset, int64(offset))
}

func NFSCount(count uint32) attribute.KeyValue { return attribute.Int64(AttrNFSCount, int64(count)) }

func NFSStatus(status int) attribute.KeyValue { return attribute.Int(AttrNFSStatus, status) }

func NFSEOF(eof bool) attribute.KeyValue { return attribute.Bool(AttrNFSEOF, eof) }

func UID(uid uint32) attribute.KeyValue { return attribute.Int64(AttrUID, int64(uid)) }

func GID(gid uint32) attribute.KeyValue { return attribute.Int64(AttrGID, int64(gid)) }

func AuthMethod(method string) attribute.KeyValue { return attribute.String(AttrAuth, method) }

func CacheHit(hit bool) attribute.KeyValue { return attribute.Bool(AttrCacheHit, hit) }

func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// StartNFSSpan starts a span for one dispatched NFS procedure, tagging
// it with the procedure name and, if present, the file handle involved.
func StartNFSSpan(ctx context.Context, procedure string, handle []byte, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{NFSProcedure(procedure)}
	if len(handle) > 0 {
		allAttrs = append(allAttrs, NFSHandle(handle))
	}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, "nfs."+procedure, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache lookup/evict operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
