package nfs

import (
	"bytes"
	"fmt"
	"path"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
)

// decodeHandle reads one nfs_fh3 (opaque, at most handle.Size bytes).
func decodeHandle(r *bytes.Reader) ([]byte, error) {
	raw, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}
	return raw, nil
}

// dirOpArgs is the common diropargs3 shape: a directory handle plus a
// single path component (RFC 1813 Section 3.3.3 and friends).
type dirOpArgs struct {
	Dir  []byte
	Name string
}

func decodeDirOpArgs(r *bytes.Reader) (dirOpArgs, error) {
	dir, err := decodeHandle(r)
	if err != nil {
		return dirOpArgs{}, err
	}
	name, err := xdr.DecodeString(r)
	if err != nil {
		return dirOpArgs{}, fmt.Errorf("decode name: %w", err)
	}
	if len(name) > 255 {
		return dirOpArgs{}, errNameTooLong
	}
	return dirOpArgs{Dir: dir, Name: name}, nil
}

// childPath joins a share-relative directory path with a single
// component the way every back-end path in this server is built:
// always forward-slash separated, regardless of host OS.
func childPath(dirPath, name string) string {
	return path.Join(dirPath, name)
}

// sattr3 is the subset of RFC 1813's sattr3 this server honors: mode,
// uid and gid changes are accepted but not applied (pkg/fsfacade has
// no ownership/permission-change capability), atime/mtime changes are ignored
// the same way. Only a size change (truncation) has an observable
// effect.
type sattr3 struct {
	SizeSet bool
	Size    uint64
}

func decodeSattr3(r *bytes.Reader) (sattr3, error) {
	var out sattr3

	// mode
	if set, err := xdr.DecodeBool(r); err != nil {
		return out, err
	} else if set {
		if _, err := xdr.DecodeUint32(r); err != nil {
			return out, err
		}
	}
	// uid
	if set, err := xdr.DecodeBool(r); err != nil {
		return out, err
	} else if set {
		if _, err := xdr.DecodeUint32(r); err != nil {
			return out, err
		}
	}
	// gid
	if set, err := xdr.DecodeBool(r); err != nil {
		return out, err
	} else if set {
		if _, err := xdr.DecodeUint32(r); err != nil {
			return out, err
		}
	}
	// size
	if set, err := xdr.DecodeBool(r); err != nil {
		return out, err
	} else if set {
		size, err := xdr.DecodeUint64(r)
		if err != nil {
			return out, err
		}
		out.SizeSet = true
		out.Size = size
	}
	// atime: 0 DONT_CHANGE, 1 SET_TO_SERVER_TIME, 2 SET_TO_CLIENT_TIME(+nfstime3)
	if how, err := xdr.DecodeUnionDiscriminant(r); err != nil {
		return out, err
	} else if how == 2 {
		if _, err := types.DecodeTimeVal(r); err != nil {
			return out, err
		}
	}
	// mtime: same 3-way shape
	if how, err := xdr.DecodeUnionDiscriminant(r); err != nil {
		return out, err
	} else if how == 2 {
		if _, err := types.DecodeTimeVal(r); err != nil {
			return out, err
		}
	}
	return out, nil
}

// sattrguard3 is the optional pre-op ctime check CREATE(GUARDED) and
// SETATTR carry; this server does not implement the guard (no
// ctime-based compare-and-swap), so the value is decoded and discarded.
func decodeSattrGuard3(r *bytes.Reader) error {
	set, err := xdr.DecodeBool(r)
	if err != nil {
		return err
	}
	if set {
		if _, err := types.DecodeTimeVal(r); err != nil {
			return err
		}
	}
	return nil
}
