// Package rpc implements the two wire framings NFSv3/MOUNT traffic
// arrives in: TCP record marking (a sequence of fragments,
// the high bit of each 4-byte header marking the last one) and UDP
// datagram framing (one datagram is one complete RPC message).
//
// This package only assembles/writes frames; parsing the RPC call
// envelope inside an assembled message is internal/protocol/nfs/rpc's
// job, and buffer reuse is pkg/bufpool's.
package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/marmos91/nfsv3d/pkg/bufpool"
)

// DefaultMaxRequestSize is the default maximum RPC message size.
const DefaultMaxRequestSize = 65535

const lastFragmentBit = 0x80000000
const fragmentLengthMask = 0x7FFFFFFF

// ErrMessageTooLarge is returned (and the connection closed by the
// caller) when a TCP message's accumulated fragments exceed maxSize.
var ErrMessageTooLarge = fmt.Errorf("rpc: message exceeds configured maximum size")

// ReadTCPMessage reads one complete RPC message from a record-marked
// TCP stream: it loops fragments until the last-fragment bit is seen,
// closing out early with ErrMessageTooLarge if the accumulated length
// would exceed maxSize. Returns io.EOF (or a wrapped net error) if the
// connection closed between messages.
func ReadTCPMessage(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}

	var message []byte
	var hdr [4]byte

	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		word := binary.BigEndian.Uint32(hdr[:])
		last := word&lastFragmentBit != 0
		length := int(word & fragmentLengthMask)

		if len(message)+length > maxSize {
			return nil, ErrMessageTooLarge
		}

		frag := make([]byte, length)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		message = append(message, frag...)

		if last {
			return message, nil
		}
	}
}

// WriteTCPMessage writes payload as a single last-fragment record.
// Replies built by internal/protocol/nfs/rpc (MakeSuccessReply et al.)
// are already record-marked; this is for callers (e.g. the portmapper
// client) building their own frames from a bare payload.
func WriteTCPMessage(w io.Writer, payload []byte) error {
	hdr := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(hdr[0:4], lastFragmentBit|uint32(len(payload)))
	copy(hdr[4:], payload)
	_, err := w.Write(hdr)
	return err
}

// ReadUDPMessage reads one datagram into a buffer borrowed from pool,
// returning the packet bytes, the peer address, and a release func the
// caller must invoke once done with the bytes (one datagram is one
// complete RPC message).
func ReadUDPMessage(conn net.PacketConn, pool *bufpool.Pool, maxSize int) ([]byte, net.Addr, func(), error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	buf := pool.Get(maxSize)
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		pool.Put(buf)
		return nil, nil, func() {}, err
	}
	return buf[:n], addr, func() { pool.Put(buf) }, nil
}

// WriteUDPMessage sends payload as a single datagram to addr.
func WriteUDPMessage(conn net.PacketConn, addr net.Addr, payload []byte) error {
	_, err := conn.WriteTo(payload, addr)
	return err
}
