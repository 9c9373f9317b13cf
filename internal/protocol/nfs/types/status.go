// Package types holds the wire-level constants and fixed-layout structs
// shared by every NFSv3 procedure handler: status codes, procedure
// numbers, and the attribute structs that appear in nearly every reply.
//
// Values are fixed by RFC 1813 and must never change; they are not
// configuration and have no "default" in the usual sense.
package types

// NFSv3 status codes (RFC 1813 Section 2.6, nfsstat3).
const (
	NFS3OK             uint32 = 0
	NFS3ErrPerm        uint32 = 1
	NFS3ErrNoEnt       uint32 = 2
	NFS3ErrIO          uint32 = 5
	NFS3ErrNXIO        uint32 = 6
	NFS3ErrAcces       uint32 = 13
	NFS3ErrExist       uint32 = 17
	NFS3ErrXDev        uint32 = 18
	NFS3ErrNoDev       uint32 = 19
	NFS3ErrNotDir      uint32 = 20
	NFS3ErrIsDir       uint32 = 21
	NFS3ErrInval       uint32 = 22
	NFS3ErrFBig        uint32 = 27
	NFS3ErrNoSpc       uint32 = 28
	NFS3ErrRofs        uint32 = 30
	NFS3ErrMlink       uint32 = 31
	NFS3ErrNameTooLong uint32 = 63
	NFS3ErrNotEmpty    uint32 = 66
	NFS3ErrDQuot       uint32 = 69
	NFS3ErrStale       uint32 = 70
	NFS3ErrRemote      uint32 = 71
	NFS3ErrBadHandle   uint32 = 10001
	NFS3ErrNotSync     uint32 = 10002
	NFS3ErrBadCookie   uint32 = 10003
	NFS3ErrNotSupp     uint32 = 10004
	NFS3ErrTooSmall    uint32 = 10005
	NFS3ErrServerFault uint32 = 10006
	NFS3ErrBadType     uint32 = 10007
	NFS3ErrJukebox     uint32 = 10008
)

// NFSStatusName returns the RFC 1813 mnemonic for a status code, or a
// generic fallback for unknown values.
func NFSStatusName(status uint32) string {
	if name, ok := nfsStatusNames[status]; ok {
		return name
	}
	return "NFS3ERR_UNKNOWN"
}

var nfsStatusNames = map[uint32]string{
	NFS3OK:             "NFS3_OK",
	NFS3ErrPerm:        "NFS3ERR_PERM",
	NFS3ErrNoEnt:       "NFS3ERR_NOENT",
	NFS3ErrIO:          "NFS3ERR_IO",
	NFS3ErrNXIO:        "NFS3ERR_NXIO",
	NFS3ErrAcces:       "NFS3ERR_ACCES",
	NFS3ErrExist:       "NFS3ERR_EXIST",
	NFS3ErrXDev:        "NFS3ERR_XDEV",
	NFS3ErrNoDev:       "NFS3ERR_NODEV",
	NFS3ErrNotDir:      "NFS3ERR_NOTDIR",
	NFS3ErrIsDir:       "NFS3ERR_ISDIR",
	NFS3ErrInval:       "NFS3ERR_INVAL",
	NFS3ErrFBig:        "NFS3ERR_FBIG",
	NFS3ErrNoSpc:       "NFS3ERR_NOSPC",
	NFS3ErrRofs:        "NFS3ERR_ROFS",
	NFS3ErrMlink:       "NFS3ERR_MLINK",
	NFS3ErrNameTooLong: "NFS3ERR_NAMETOOLONG",
	NFS3ErrNotEmpty:    "NFS3ERR_NOTEMPTY",
	NFS3ErrDQuot:       "NFS3ERR_DQUOT",
	NFS3ErrStale:       "NFS3ERR_STALE",
	NFS3ErrRemote:      "NFS3ERR_REMOTE",
	NFS3ErrBadHandle:   "NFS3ERR_BADHANDLE",
	NFS3ErrNotSync:     "NFS3ERR_NOT_SYNC",
	NFS3ErrBadCookie:   "NFS3ERR_BAD_COOKIE",
	NFS3ErrNotSupp:     "NFS3ERR_NOTSUPP",
	NFS3ErrTooSmall:    "NFS3ERR_TOOSMALL",
	NFS3ErrServerFault: "NFS3ERR_SERVERFAULT",
	NFS3ErrBadType:     "NFS3ERR_BADTYPE",
	NFS3ErrJukebox:     "NFS3ERR_JUKEBOX",
}

// File type enumeration (RFC 1813 Section 2.5, ftype3).
const (
	NFSTypeReg  uint32 = 1
	NFSTypeDir  uint32 = 2
	NFSTypeBlk  uint32 = 3
	NFSTypeChr  uint32 = 4
	NFSTypeLnk  uint32 = 5
	NFSTypeSock uint32 = 6
	NFSTypeFifo uint32 = 7
)

// stable_how values used by WRITE and COMMIT (RFC 1813 Section 3.3.7).
const (
	StableHowUnstable  uint32 = 0
	StableHowDataSync  uint32 = 1
	StableHowFileSync  uint32 = 2
)

// createmode3 values used by CREATE (RFC 1813 Section 3.3.8).
const (
	CreateModeUnchecked uint32 = 0
	CreateModeGuarded   uint32 = 1
	CreateModeExclusive uint32 = 2
)

// ACCESS bit flags (RFC 1813 Section 3.3.4).
const (
	AccessRead    uint32 = 0x0001
	AccessLookup  uint32 = 0x0002
	AccessModify  uint32 = 0x0004
	AccessExtend  uint32 = 0x0008
	AccessDelete  uint32 = 0x0010
	AccessExecute uint32 = 0x0020
)
