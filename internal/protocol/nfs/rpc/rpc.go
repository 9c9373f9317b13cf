// Package rpc implements the Sun/ONC RPC (RFC 5531) call and reply
// envelope used by every NFSv3 and MOUNT message: call header parsing,
// AUTH_NONE/AUTH_UNIX credential decoding, and reply construction
// (success, error, and version-mismatch replies), all with the 4-byte
// record-marking fragment header TCP transport requires.
package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
)

// RPC message types (RFC 5531 Section 9, msg_type).
const (
	RPCCall  uint32 = 0
	RPCReply uint32 = 1
)

// Reply states (RFC 5531 Section 9, reply_stat).
const (
	RPCMsgAccepted uint32 = 0
	RPCMsgDenied   uint32 = 1
)

// Accept states (RFC 5531 Section 9, accept_stat).
const (
	RPCSuccess      uint32 = 0
	RPCProgUnavail  uint32 = 1
	RPCProgMismatch uint32 = 2
	RPCProcUnavail  uint32 = 3
	RPCGarbageArgs  uint32 = 4
	RPCSystemErr    uint32 = 5
)

// Authentication flavors (RFC 5531 Section 8.2).
const (
	AuthNull  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

const rpcVersion uint32 = 2

// maxAuthBodyLength bounds a single opaque_auth body; RFC 5531 caps it at 400 bytes.
const maxAuthBodyLength = 400

// OpaqueAuth is the RFC 5531 opaque_auth structure: a flavor tag plus an
// opaque, flavor-specific body.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// RPCCallMessage is a parsed RPC call header (RFC 5531 Section 9, call_body).
type RPCCallMessage struct {
	XID       uint32
	Program   uint32
	Version   uint32
	Procedure uint32
	Cred      OpaqueAuth
	Verf      OpaqueAuth

	// bodyOffset is the byte offset into the original message where the
	// procedure-specific arguments begin, i.e. immediately after Verf.
	bodyOffset int
}

// GetAuthFlavor returns the credential flavor presented with this call.
func (c *RPCCallMessage) GetAuthFlavor() uint32 {
	return c.Cred.Flavor
}

// GetAuthBody returns the raw (still XDR-encoded) credential body.
func (c *RPCCallMessage) GetAuthBody() []byte {
	return c.Cred.Body
}

// ReadCall parses the RPC call header from a complete RPC message. The
// returned RPCCallMessage.bodyOffset marks where ReadData should resume.
func ReadCall(message []byte) (*RPCCallMessage, error) {
	r := bytes.NewReader(message)

	fields := make([]uint32, 3)
	for i := range fields {
		v, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read call header: %w", err)
		}
		fields[i] = v
	}
	xid, msgType := fields[0], fields[1]
	if msgType != RPCCall {
		return nil, fmt.Errorf("not a call message: msg_type=%d", msgType)
	}
	rpcVers := fields[2]
	if rpcVers != rpcVersion {
		return nil, fmt.Errorf("unsupported RPC version: %d", rpcVers)
	}

	hdr := make([]uint32, 3)
	for i := range hdr {
		v, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read program header: %w", err)
		}
		hdr[i] = v
	}

	cred, err := readOpaqueAuth(r)
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	verf, err := readOpaqueAuth(r)
	if err != nil {
		return nil, fmt.Errorf("read verifier: %w", err)
	}

	return &RPCCallMessage{
		XID:        xid,
		Program:    hdr[0],
		Version:    hdr[1],
		Procedure:  hdr[2],
		Cred:       cred,
		Verf:       verf,
		bodyOffset: len(message) - r.Len(),
	}, nil
}

// ReadData returns the procedure-specific argument bytes that follow the
// RPC call header parsed by ReadCall.
func ReadData(message []byte, call *RPCCallMessage) ([]byte, error) {
	if call.bodyOffset > len(message) {
		return nil, fmt.Errorf("call body offset %d exceeds message length %d", call.bodyOffset, len(message))
	}
	return message[call.bodyOffset:], nil
}

func readOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	flavor, err := xdr.DecodeUint32(r)
	if err != nil {
		return OpaqueAuth{}, err
	}
	body, err := xdr.DecodeOpaque(r)
	if err != nil {
		return OpaqueAuth{}, err
	}
	if len(body) > maxAuthBodyLength {
		return OpaqueAuth{}, fmt.Errorf("auth body too long: %d bytes", len(body))
	}
	return OpaqueAuth{Flavor: flavor, Body: body}, nil
}

// UnixAuth is the decoded AUTH_UNIX (AUTH_SYS) credential body
// (RFC 5531 Section 9, auth_unix).
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// maxMachineNameLength and maxGIDs follow the historical AUTH_UNIX limits
// most NFS clients and servers enforce.
const (
	maxMachineNameLength = 255
	maxGIDs              = 16
)

// ParseUnixAuth decodes an AUTH_UNIX credential body.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty AUTH_UNIX body")
	}

	r := bytes.NewReader(body)

	stamp, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}

	nameLen, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read machine name length: %w", err)
	}
	if nameLen > maxMachineNameLength {
		return nil, fmt.Errorf("machine name too long: %d", nameLen)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, fmt.Errorf("read machine name: %w", err)
	}
	if padding := (4 - (nameLen % 4)) % 4; padding > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip machine name padding: %w", err)
		}
	}

	uid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	gid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}

	gidCount, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read gid count: %w", err)
	}
	if gidCount > maxGIDs {
		return nil, fmt.Errorf("too many gids: %d", gidCount)
	}
	gids := make([]uint32, gidCount)
	for i := range gids {
		g, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read gid[%d]: %w", i, err)
		}
		gids[i] = g
	}

	return &UnixAuth{
		Stamp:       stamp,
		MachineName: string(nameBytes),
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}, nil
}

// String renders the credential for logging.
func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s, uid=%d, gid=%d, gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

// ============================================================================
// Reply construction
// ============================================================================

// nullVerifier is the zero-length AUTH_NONE verifier every reply in this
// server sends back; RPCSEC_GSS verifiers are out of scope.
var nullVerifier = OpaqueAuth{Flavor: AuthNull, Body: nil}

func writeReplyHeader(buf *bytes.Buffer, xid uint32) error {
	if err := xdr.WriteUint32(buf, xid); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, RPCReply); err != nil {
		return err
	}
	return xdr.WriteUint32(buf, RPCMsgAccepted)
}

func writeVerifier(buf *bytes.Buffer) error {
	if err := xdr.WriteUint32(buf, nullVerifier.Flavor); err != nil {
		return err
	}
	return xdr.WriteXDROpaque(buf, nullVerifier.Body)
}

func frame(payload []byte) []byte {
	framed := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(framed[0:4], 0x80000000|uint32(len(payload)))
	copy(framed[4:], payload)
	return framed
}

// MakeSuccessReply builds a complete, record-marked RPC_MSG_ACCEPTED /
// SUCCESS reply wrapping the procedure's XDR-encoded result.
func MakeSuccessReply(xid uint32, data []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeReplyHeader(buf, xid); err != nil {
		return nil, err
	}
	if err := writeVerifier(buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCSuccess); err != nil {
		return nil, err
	}
	buf.Write(data)
	return frame(buf.Bytes()), nil
}

// MakeErrorReply builds an RPC_MSG_ACCEPTED reply carrying a non-SUCCESS
// accept_stat (PROC_UNAVAIL, GARBAGE_ARGS, SYSTEM_ERR).
func MakeErrorReply(xid uint32, acceptStat uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeReplyHeader(buf, xid); err != nil {
		return nil, err
	}
	if err := writeVerifier(buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, acceptStat); err != nil {
		return nil, err
	}
	return frame(buf.Bytes()), nil
}

// MakeProgMismatchReply builds the RFC 5531 PROG_MISMATCH reply, which
// uniquely appends the server's supported version range after accept_stat.
func MakeProgMismatchReply(xid uint32, low uint32, high uint32) ([]byte, error) {
	if low > high {
		return nil, fmt.Errorf("invalid version range: low (%d) > high (%d)", low, high)
	}

	buf := new(bytes.Buffer)
	if err := writeReplyHeader(buf, xid); err != nil {
		return nil, err
	}
	if err := writeVerifier(buf); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCProgMismatch); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, low); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, high); err != nil {
		return nil, err
	}
	return frame(buf.Bytes()), nil
}

// MakeAuthErrorReply builds an RPC_MSG_DENIED / AUTH_ERROR reply
// (RFC 5531 Section 9, reject_stat), used when credential parsing fails.
func MakeAuthErrorReply(xid uint32, authStat uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.WriteUint32(buf, xid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCReply); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCMsgDenied); err != nil {
		return nil, err
	}
	const rejectAuthError uint32 = 1
	if err := xdr.WriteUint32(buf, rejectAuthError); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, authStat); err != nil {
		return nil, err
	}
	return frame(buf.Bytes()), nil
}
