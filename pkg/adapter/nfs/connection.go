package nfs

import (
	"context"
	"encoding/hex"
	"errors"
	"net"
	"sync"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/rpc"
)

// logWireData emits one debug line per message when RXDATA/TXDATA
// tracing is on, including a hex dump of the first bytes when DUMPDATA
// is also set.
func (a *Adapter) logWireData(ctx context.Context, direction, clientAddr string, data []byte) {
	const dumpLimit = 64
	if a.debug.has(debugDumpData) {
		n := len(data)
		if n > dumpLimit {
			n = dumpLimit
		}
		logger.DebugCtx(ctx, "wire data", "direction", direction, "client", clientAddr,
			"bytes", len(data), "head", hex.EncodeToString(data[:n]))
		return
	}
	logger.DebugCtx(ctx, "wire data", "direction", direction, "client", clientAddr, "bytes", len(data))
}

// connState tracks one accepted TCP connection. writeMu serializes
// replies onto conn: requests arriving on the same connection are
// submitted to the shared worker pool independently (rather than being
// served inline on a per-connection goroutine), so two
// workers can finish out of order and would otherwise interleave
// partial writes on the same socket.
//
// sessionKeys records every session key a call on this connection has
// resolved to, so they can all be torn down when the connection closes
// (session removal is tied to TCP connection lifetime, not a timer).
// Usually a single connection only ever touches one key, but
// nothing stops a client from presenting different AUTH_UNIX
// credentials across calls on the same connection.
type connState struct {
	conn    net.Conn
	writeMu sync.Mutex

	keysMu      sync.Mutex
	sessionKeys map[uint64]struct{}
}

func (cs *connState) write(reply []byte) {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	_, _ = cs.conn.Write(reply)
}

func (cs *connState) noteSessionKey(key uint64) {
	cs.keysMu.Lock()
	defer cs.keysMu.Unlock()
	if cs.sessionKeys == nil {
		cs.sessionKeys = make(map[uint64]struct{})
	}
	cs.sessionKeys[key] = struct{}{}
}

func (cs *connState) drainSessionKeys() []uint64 {
	cs.keysMu.Lock()
	defer cs.keysMu.Unlock()
	keys := make([]uint64, 0, len(cs.sessionKeys))
	for k := range cs.sessionKeys {
		keys = append(keys, k)
	}
	return keys
}

func (a *Adapter) trackConn(cs *connState) {
	a.connsMu.Lock()
	a.conns[cs] = struct{}{}
	a.connsMu.Unlock()
	if a.metrics != nil {
		a.metrics.RecordConnectionAccepted()
		a.metrics.SetActiveConnections(int32(len(a.conns)))
	}
}

func (a *Adapter) untrackConn(cs *connState) {
	a.connsMu.Lock()
	delete(a.conns, cs)
	count := len(a.conns)
	a.connsMu.Unlock()
	if a.metrics != nil {
		a.metrics.RecordConnectionClosed()
		a.metrics.SetActiveConnections(int32(count))
	}
}

// acceptLoop accepts TCP connections until the listener is closed by
// Stop, handing each off to its own reader goroutine.
func (a *Adapter) acceptLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		conn, err := a.tcpListener.Accept()
		if err != nil {
			select {
			case <-a.stop:
				return
			default:
				logger.WarnCtx(ctx, "tcp accept failed", "error", err)
				continue
			}
		}

		cs := &connState{conn: conn}
		a.trackConn(cs)
		a.wg.Add(1)
		go a.serveConn(ctx, cs)
	}
}

// serveConn reads record-marked RPC messages off cs.conn until it
// errors or closes, submitting each one to the worker pool as an
// independent job.
func (a *Adapter) serveConn(ctx context.Context, cs *connState) {
	defer a.wg.Done()
	defer a.untrackConn(cs)
	defer cs.conn.Close()
	defer a.closeConnSessions(cs)

	maxSize := int(a.config().NFS.MaxRequestSize)
	clientAddr := cs.conn.RemoteAddr().String()

	for {
		message, err := rpc.ReadTCPMessage(cs.conn, maxSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.DebugCtx(ctx, "tcp connection closed", "client", clientAddr, "error", err)
			}
			return
		}

		if a.debug.has(debugRXData) {
			a.logWireData(ctx, "rx", clientAddr, message)
		}

		if key, ok := a.server.SessionKeyFor(clientAddr, message); ok {
			if a.debug.has(debugSession) {
				logger.DebugCtx(ctx, "session key resolved", "client", clientAddr, "key", key)
			}
			cs.noteSessionKey(key)
		}

		a.pool.Submit(func() {
			reply := a.dispatch(ctx, clientAddr, message)
			if reply != nil {
				if a.debug.has(debugTXData) {
					a.logWireData(ctx, "tx", clientAddr, reply)
				}
				cs.write(reply)
			}
		})
	}
}

// closeConnSessions removes every session this connection created or
// used — UDP has no connection lifetime to hook, so UDP-only sessions
// are deliberately left to persist for the server's lifetime.
func (a *Adapter) closeConnSessions(cs *connState) {
	for _, key := range cs.drainSessionKeys() {
		a.sessions.Remove(key)
	}
}

// udpLoop reads one datagram at a time off the UDP socket, each one a
// complete RPC message, and submits it to the worker pool.
func (a *Adapter) udpLoop(ctx context.Context) {
	defer a.wg.Done()
	maxSize := int(a.config().NFS.MaxRequestSize)

	for {
		buf, addr, release, err := rpc.ReadUDPMessage(a.udpConn, a.bufs, maxSize)
		if err != nil {
			release()
			select {
			case <-a.stop:
				return
			default:
				logger.WarnCtx(ctx, "udp read failed", "error", err)
				continue
			}
		}

		message := append([]byte(nil), buf...)
		release()
		clientAddr := addr.String()

		if a.debug.has(debugRXData) {
			a.logWireData(ctx, "rx", clientAddr, message)
		}

		a.pool.Submit(func() {
			reply := a.dispatch(ctx, clientAddr, message)
			if reply == nil || len(reply) < 4 {
				return
			}
			if a.debug.has(debugTXData) {
				a.logWireData(ctx, "tx", clientAddr, reply)
			}
			// Strip the 4-byte TCP record mark: a UDP datagram is
			// itself the complete message.
			_ = rpc.WriteUDPMessage(a.udpConn, addr, reply[4:])
		})
	}
}
