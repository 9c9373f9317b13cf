package types

import (
	"bytes"
	"io"

	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
)

// TimeVal is the NFSv3 nfstime3 struct (RFC 1813 Section 2.5).
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// Encode writes the time value in XDR format.
func (t TimeVal) Encode(buf *bytes.Buffer) error {
	if err := xdr.WriteUint32(buf, t.Seconds); err != nil {
		return err
	}
	return xdr.WriteUint32(buf, t.Nseconds)
}

// DecodeTimeVal reads an nfstime3 value.
func DecodeTimeVal(r io.Reader) (TimeVal, error) {
	seconds, err := xdr.DecodeUint32(r)
	if err != nil {
		return TimeVal{}, err
	}
	nseconds, err := xdr.DecodeUint32(r)
	if err != nil {
		return TimeVal{}, err
	}
	return TimeVal{Seconds: seconds, Nseconds: nseconds}, nil
}

// WccAttr carries the pre-operation weak cache consistency attributes
// (RFC 1813 Section 2.6, wcc_attr).
type WccAttr struct {
	Size  uint64
	Mtime TimeVal
	Ctime TimeVal
}

// Encode writes the wcc_attr in XDR format.
func (w WccAttr) Encode(buf *bytes.Buffer) error {
	if err := xdr.WriteUint64(buf, w.Size); err != nil {
		return err
	}
	if err := w.Mtime.Encode(buf); err != nil {
		return err
	}
	return w.Ctime.Encode(buf)
}

// FileAttr is the NFSv3 fattr3 struct (RFC 1813 Section 2.5).
type FileAttr struct {
	Type   uint32
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Rdev   [2]uint32
	Fsid   uint64
	Fileid uint64
	Atime  TimeVal
	Mtime  TimeVal
	Ctime  TimeVal
}

// Encode writes the fattr3 in XDR format.
func (a FileAttr) Encode(buf *bytes.Buffer) error {
	fields := []uint32{a.Type, a.Mode, a.Nlink, a.UID, a.GID}
	for _, f := range fields {
		if err := xdr.WriteUint32(buf, f); err != nil {
			return err
		}
	}
	if err := xdr.WriteUint64(buf, a.Size); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, a.Used); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.Rdev[0]); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, a.Rdev[1]); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, a.Fsid); err != nil {
		return err
	}
	if err := xdr.WriteUint64(buf, a.Fileid); err != nil {
		return err
	}
	if err := a.Atime.Encode(buf); err != nil {
		return err
	}
	if err := a.Mtime.Encode(buf); err != nil {
		return err
	}
	return a.Ctime.Encode(buf)
}

// EncodePostOpAttr writes a post_op_attr union: present fattr3, or absent.
func EncodePostOpAttr(buf *bytes.Buffer, attr *FileAttr) error {
	if attr == nil {
		return xdr.WriteBool(buf, false)
	}
	if err := xdr.WriteBool(buf, true); err != nil {
		return err
	}
	return attr.Encode(buf)
}

// EncodePreOpAttr writes a pre_op_attr union: present wcc_attr, or absent.
func EncodePreOpAttr(buf *bytes.Buffer, attr *WccAttr) error {
	if attr == nil {
		return xdr.WriteBool(buf, false)
	}
	if err := xdr.WriteBool(buf, true); err != nil {
		return err
	}
	return attr.Encode(buf)
}

// EncodeWccData writes a complete wcc_data: pre_op_attr followed by
// post_op_attr, the bracketing structure every mutating NFSv3 reply uses.
func EncodeWccData(buf *bytes.Buffer, pre *WccAttr, post *FileAttr) error {
	if err := EncodePreOpAttr(buf, pre); err != nil {
		return err
	}
	return EncodePostOpAttr(buf, post)
}

// ToWccAttr projects a FileAttr down to the subset wcc_attr carries,
// used to capture pre-operation state before a mutation.
func (a FileAttr) ToWccAttr() WccAttr {
	return WccAttr{Size: a.Size, Mtime: a.Mtime, Ctime: a.Ctime}
}
