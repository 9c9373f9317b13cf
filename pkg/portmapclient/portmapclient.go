// Package portmapclient implements the outbound rpcbind/portmapper
// client role: on server start, register this server's (program,
// version, proto, port) mappings with PMAPPROC_SET; on stop, remove
// them with PMAPPROC_UNSET. Registration failures are logged and never
// abort startup.
package portmapclient

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
)

// Portmapper program/version and procedure numbers (RFC 1057 §4).
const (
	Program        uint32 = 100000
	Version        uint32 = 2
	DefaultPort    int    = 111
	ProcNull       uint32 = 0
	ProcSet        uint32 = 1
	ProcUnset      uint32 = 2
)

// Transport protocol numbers as carried in a portmap mapping (IPPROTO_*).
const (
	ProtoTCP uint32 = 6
	ProtoUDP uint32 = 17
)

// registerLock is the single process-wide lock serializing register/
// unregister calls across every protocol server sharing the host.
var registerLock sync.Mutex

// Mapping is one (program, version, proto, port) tuple to register.
type Mapping struct {
	Program uint32
	Version uint32
	Proto   uint32
	Port    uint32
}

// Client talks to a local or remote rpcbind/portmapper over TCP.
type Client struct {
	addr      string
	localPort int
	timeout   time.Duration
	xid       uint32
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLocalPort makes every registration call originate from the given
// local TCP port; some rpcbind deployments only accept SET/UNSET from a
// privileged source port. 0 (the default) picks an ephemeral port.
func WithLocalPort(port int) Option {
	return func(c *Client) {
		if port > 0 {
			c.localPort = port
		}
	}
}

// New returns a client dialing host:port (port == -1 disables the
// client entirely — callers should not construct one in that case and
// instead skip registration).
func New(host string, port int, opts ...Option) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	c := &Client{addr: fmt.Sprintf("%s:%d", host, port), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterAll sends PMAPPROC_SET for every mapping, logging (not
// failing) on error.
func (c *Client) RegisterAll(ctx context.Context, mappings []Mapping) {
	registerLock.Lock()
	defer registerLock.Unlock()

	for _, m := range mappings {
		if err := c.call(ProcSet, m); err != nil {
			logger.WarnCtx(ctx, "portmapper registration failed",
				"program", m.Program, "version", m.Version, "proto", m.Proto, "port", m.Port, "error", err)
			continue
		}
		logger.InfoCtx(ctx, "registered with portmapper",
			"program", m.Program, "version", m.Version, "proto", m.Proto, "port", m.Port)
	}
}

// UnregisterAll sends PMAPPROC_UNSET for every mapping, logging (not
// failing) on error.
func (c *Client) UnregisterAll(ctx context.Context, mappings []Mapping) {
	registerLock.Lock()
	defer registerLock.Unlock()

	for _, m := range mappings {
		if err := c.call(ProcUnset, m); err != nil {
			logger.WarnCtx(ctx, "portmapper deregistration failed",
				"program", m.Program, "version", m.Version, "proto", m.Proto, "port", m.Port, "error", err)
			continue
		}
		logger.InfoCtx(ctx, "deregistered from portmapper",
			"program", m.Program, "version", m.Version, "proto", m.Proto, "port", m.Port)
	}
}

func (c *Client) call(proc uint32, m Mapping) error {
	dialer := net.Dialer{Timeout: c.timeout}
	if c.localPort > 0 {
		dialer.LocalAddr = &net.TCPAddr{Port: c.localPort}
	}
	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial portmapper: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	c.xid++
	payload, err := buildCall(c.xid, proc, m)
	if err != nil {
		return fmt.Errorf("build call: %w", err)
	}

	framed := frameLastFragment(payload)
	if _, err := conn.Write(framed); err != nil {
		return fmt.Errorf("write call: %w", err)
	}

	if _, err := readRecordMarkedReply(conn); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	return nil
}

// buildCall encodes a complete RPC call message (header + AUTH_NONE
// credential/verifier + a portmap mapping argument).
func buildCall(xid, proc uint32, m Mapping) ([]byte, error) {
	buf := new(bytes.Buffer)

	fields := []uint32{
		xid,
		0, // msg_type = CALL
		2, // rpcvers = 2
		Program,
		Version,
		proc,
		0, 0, // AUTH_NONE credential: flavor, length
		0, 0, // AUTH_NONE verifier: flavor, length
	}
	for _, f := range fields {
		if err := xdr.WriteUint32(buf, f); err != nil {
			return nil, err
		}
	}

	for _, f := range []uint32{m.Program, m.Version, m.Proto, m.Port} {
		if err := xdr.WriteUint32(buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func frameLastFragment(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[0:4], 0x80000000|uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// readRecordMarkedReply reads one TCP record-marked RPC reply and
// returns its payload; the caller only needs to know the call
// round-tripped, so the accept_stat / result body are not parsed.
func readRecordMarkedReply(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	var payload []byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		word := binary.BigEndian.Uint32(hdr[:])
		last := word&0x80000000 != 0
		length := word & 0x7FFFFFFF

		frag := make([]byte, length)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, err
		}
		payload = append(payload, frag...)
		if last {
			break
		}
	}
	return payload, nil
}
