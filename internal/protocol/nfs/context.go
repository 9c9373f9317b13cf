package nfs

import (
	"context"

	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/handle"
	"github.com/marmos91/nfsv3d/pkg/session"
)

// HandlerContext carries everything a procedure handler needs beyond
// its own XDR arguments: the request's deadline/cancellation, the
// server it is running against, and the session the caller's
// credentials resolved to.
type HandlerContext struct {
	Ctx        context.Context
	Server     *Server
	Session    *session.Session
	ClientAddr string
}

// resolved is one handle looked up against the share registry and
// file-id cache: the share it belongs to and the share-relative path
// its file id currently maps to.
type resolved struct {
	Share *Share
	Path  string
	H     handle.Handle
}

// resolveHandle decodes raw as a handle, finds its share, and
// translates its file id to a path via the share's file-id cache,
// falling back to the back end's FileIDResolver capability (if any) on
// a cache miss before giving up with ErrStaleFileID.
func resolveHandle(hc *HandlerContext, raw []byte) (resolved, error) {
	h, err := handle.Decode(raw)
	if err != nil {
		return resolved{}, err
	}

	share, ok := hc.Server.Shares.ByID(h.ShareID)
	if !ok {
		return resolved{}, errShareNotFound
	}

	if h.Tag == handle.TagShare {
		return resolved{Share: share, Path: "/", H: h}, nil
	}

	// Directory handles carry their own id in DirID (FileID stays zero,
	// per handle.Directory); only File handles carry it in FileID.
	lookupID := h.FileID
	if h.Tag == handle.TagDirectory {
		lookupID = h.DirID
	}

	path, ok := share.Files.Lookup(lookupID)
	if ok {
		return resolved{Share: share, Path: path, H: h}, nil
	}

	resolver, ok := share.FS.(fsfacade.FileIDResolver)
	if !ok {
		return resolved{}, fsfacade.ErrStaleFileID
	}
	path, err = resolver.BuildPathForFileID("/", h.DirID, lookupID)
	if err != nil {
		return resolved{}, fsfacade.ErrStaleFileID
	}
	share.Files.Insert(lookupID, path)
	return resolved{Share: share, Path: path, H: h}, nil
}
