// Package handle packs and unpacks the opaque 32-byte NFSv3 file handles
// this server hands out, per the canonical layout:
//
//	[tag:1][reserved:3][shareId:4][dirId:4][fileId:4][zero-pad:16]
//
// A handle always round-trips: Decode(Encode(h)) == h for any valid h.
package handle

import (
	"encoding/binary"
	"errors"
)

// Size is the fixed wire length of an NFS file handle, in bytes.
const Size = 32

// Tag identifies which of the three handle variants a handle encodes.
type Tag uint8

const (
	// TagShare identifies the root of a share (dirId == fileId == 0).
	TagShare Tag = 1
	// TagDirectory identifies a directory within a share (fileId == 0).
	TagDirectory Tag = 2
	// TagFile identifies a file (or symlink) within a directory.
	TagFile Tag = 3
)

// ErrBadHandle is returned for any handle whose tag is out of range, whose
// length is wrong, or whose shareId does not resolve (resolution is the
// caller's responsibility; this package only checks the tag is known).
var ErrBadHandle = errors.New("handle: malformed file handle")

// Handle is the decoded form of an opaque NFS file handle.
type Handle struct {
	Tag     Tag
	ShareID uint32
	DirID   uint32
	FileID  uint32
}

// Share builds a handle identifying the root of a share.
func Share(shareID uint32) Handle {
	return Handle{Tag: TagShare, ShareID: shareID}
}

// Directory builds a handle identifying a directory within a share.
func Directory(shareID, dirID uint32) Handle {
	return Handle{Tag: TagDirectory, ShareID: shareID, DirID: dirID}
}

// File builds a handle identifying a file within a directory.
func File(shareID, dirID, fileID uint32) Handle {
	return Handle{Tag: TagFile, ShareID: shareID, DirID: dirID, FileID: fileID}
}

// Encode packs h into the canonical 32-byte wire representation.
func Encode(h Handle) [Size]byte {
	var out [Size]byte
	out[0] = byte(h.Tag)
	binary.BigEndian.PutUint32(out[4:8], h.ShareID)
	binary.BigEndian.PutUint32(out[8:12], h.DirID)
	binary.BigEndian.PutUint32(out[12:16], h.FileID)
	return out
}

// Decode unpacks a wire handle. It validates the tag and the zero
// invariants each variant carries (Share: dirId=fileId=0; Directory:
// fileId=0) but does not resolve shareId against a share registry —
// callers that need that check call a registry lookup afterwards and
// translate a miss into the same ErrBadHandle.
func Decode(raw []byte) (Handle, error) {
	if len(raw) != Size {
		return Handle{}, ErrBadHandle
	}

	tag := Tag(raw[0])
	shareID := binary.BigEndian.Uint32(raw[4:8])
	dirID := binary.BigEndian.Uint32(raw[8:12])
	fileID := binary.BigEndian.Uint32(raw[12:16])

	switch tag {
	case TagShare:
		if dirID != 0 || fileID != 0 {
			return Handle{}, ErrBadHandle
		}
	case TagDirectory:
		if fileID != 0 {
			return Handle{}, ErrBadHandle
		}
	case TagFile:
		// all fields meaningful
	default:
		return Handle{}, ErrBadHandle
	}

	if shareID == 0 {
		return Handle{}, ErrBadHandle
	}

	return Handle{Tag: tag, ShareID: shareID, DirID: dirID, FileID: fileID}, nil
}

// Bytes returns the 32-byte wire encoding as a slice, convenient for
// XDR opaque encoding call sites.
func (h Handle) Bytes() []byte {
	arr := Encode(h)
	return arr[:]
}

// Equal reports whether two handles carry identical wire bytes —
// handle identity is byte equality.
func (h Handle) Equal(other Handle) bool {
	return Encode(h) == Encode(other)
}
