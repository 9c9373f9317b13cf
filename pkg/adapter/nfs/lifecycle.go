package nfs

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/pkg/portmapclient"
)

// portmapMappings returns the (program, version, proto, port) tuples
// this server registers: NFS and MOUNT each answer on the same TCP and
// UDP port, distinguished by the RPC program number carried in
// every call.
func (a *Adapter) portmapMappings() []portmapclient.Mapping {
	cfg := a.config()
	return []portmapclient.Mapping{
		{Program: 100003, Version: 3, Proto: portmapclient.ProtoTCP, Port: uint32(cfg.NFS.Port)},
		{Program: 100003, Version: 3, Proto: portmapclient.ProtoUDP, Port: uint32(cfg.NFS.UDPPort)},
		{Program: 100005, Version: 3, Proto: portmapclient.ProtoTCP, Port: uint32(cfg.NFS.Port)},
		{Program: 100005, Version: 3, Proto: portmapclient.ProtoUDP, Port: uint32(cfg.NFS.UDPPort)},
	}
}

// Start binds the TCP and UDP listeners, registers with the
// portmapper (unless disabled), and launches the accept/read loops and
// the periodic share rescan.
func (a *Adapter) Start(ctx context.Context) error {
	cfg := a.config()

	tcpAddr := fmt.Sprintf(":%d", cfg.NFS.Port)
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", tcpAddr, err)
	}
	a.tcpListener = ln

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.NFS.UDPPort})
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("listen udp :%d: %w", cfg.NFS.UDPPort, err)
	}
	a.udpConn = udpConn

	if a.portmap != nil {
		a.portmap.RegisterAll(ctx, a.portmapMappings())
	}

	a.wg.Add(3)
	go a.acceptLoop(ctx)
	go a.udpLoop(ctx)
	go a.rescanLoop(ctx)

	logger.InfoCtx(ctx, "nfs server started", "instance_id", a.instanceID, "tcp_port", cfg.NFS.Port, "udp_port", cfg.NFS.UDPPort)
	return nil
}

// rescanLoop periodically re-derives the share set from the live
// configuration, picking up shares added without a restart.
func (a *Adapter) rescanLoop(ctx context.Context) {
	defer a.wg.Done()

	interval := a.config().NFS.RescanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.shares.Rescan()
		}
	}
}

// Stop closes the listeners, deregisters from the portmapper, stops
// accepting new work, and waits up to the configured shutdown timeout
// for in-flight connections to finish before force-closing the rest.
func (a *Adapter) Stop(ctx context.Context) error {
	cfg := a.config()

	a.stopped.Do(func() { close(a.stop) })

	if a.portmap != nil {
		a.portmap.UnregisterAll(ctx, a.portmapMappings())
	}

	if a.tcpListener != nil {
		_ = a.tcpListener.Close()
	}
	if a.udpConn != nil {
		_ = a.udpConn.Close()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	select {
	case <-done:
	case <-time.After(timeout):
		a.forceCloseConns(ctx)
		<-done
	}

	a.pool.Shutdown()
	logger.InfoCtx(ctx, "nfs server stopped")
	return nil
}

func (a *Adapter) forceCloseConns(ctx context.Context) {
	a.connsMu.Lock()
	defer a.connsMu.Unlock()
	for cs := range a.conns {
		_ = cs.conn.Close()
		if a.metrics != nil {
			a.metrics.RecordConnectionForceClosed()
		}
	}
	logger.WarnCtx(ctx, "force-closed connections after shutdown grace period", "count", len(a.conns))
}
