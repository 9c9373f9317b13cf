package nfs

import (
	"context"
	"errors"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/handle"
)

// statusFor is the single place a back-end or internal error becomes a
// wire nfsstat3 code — one mapping function, not scattered per-handler
// translation. Handlers must route every error through
// this function rather than inlining their own switch.
func statusFor(ctx context.Context, err error) uint32 {
	if err == nil {
		return types.NFS3OK
	}

	switch {
	case errors.Is(err, fsfacade.ErrNotFound):
		return types.NFS3ErrNoEnt
	case errors.Is(err, fsfacade.ErrExists):
		return types.NFS3ErrExist
	case errors.Is(err, fsfacade.ErrIsDirectory):
		return types.NFS3ErrIsDir
	case errors.Is(err, fsfacade.ErrNotDirectory):
		return types.NFS3ErrNotDir
	case errors.Is(err, fsfacade.ErrNotEmpty):
		return types.NFS3ErrNotEmpty
	case errors.Is(err, fsfacade.ErrDiskFull):
		return types.NFS3ErrNoSpc
	case errors.Is(err, fsfacade.ErrAccessDenied):
		return types.NFS3ErrAcces
	case errors.Is(err, fsfacade.ErrNotSupported):
		return types.NFS3ErrNotSupp
	case errors.Is(err, fsfacade.ErrStaleFileID):
		return types.NFS3ErrStale
	case errors.Is(err, handle.ErrBadHandle):
		return types.NFS3ErrBadHandle
	case errors.Is(err, errShareNotFound):
		return types.NFS3ErrStale
	case errors.Is(err, errNameTooLong):
		return types.NFS3ErrNameTooLong
	case errors.Is(err, errNotSupported):
		return types.NFS3ErrNotSupp
	case errors.Is(err, errBadCookie):
		return types.NFS3ErrBadCookie
	default:
		logger.ErrorCtx(ctx, "unmapped nfs error, returning SERVERFAULT", "error", err)
		return types.NFS3ErrServerFault
	}
}

// Sentinel errors for conditions that originate in this package rather
// than in pkg/fsfacade or pkg/handle.
var (
	errShareNotFound = errors.New("nfs: share not found")
	errNameTooLong   = errors.New("nfs: component name too long")
	errNotSupported  = errors.New("nfs: operation not supported")
	errBadCookie     = errors.New("nfs: readdir cookie does not match current directory state")
)
