// Package nfs wires the NFSv3 core (internal/protocol/nfs, its MOUNT
// companion, the session table, and the share registry) into a
// runnable server: it owns the TCP/UDP listeners, the worker pool that
// drains them, the portmapper registration, and the periodic share
// rescan — everything cmd/dittofs needs to start and stop in one call.
package nfs

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/mount"
	"github.com/marmos91/nfsv3d/pkg/bufpool"
	"github.com/marmos91/nfsv3d/pkg/config"
	"github.com/marmos91/nfsv3d/pkg/metrics"
	"github.com/marmos91/nfsv3d/pkg/portmapclient"
	"github.com/marmos91/nfsv3d/pkg/session"
	"github.com/marmos91/nfsv3d/pkg/workerpool"
)

// Adapter is a fully wired, runnable NFSv3 server instance. It is safe
// for exactly one Start/Stop lifecycle; build a new Adapter to restart.
type Adapter struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	metrics metrics.NFSMetrics
	debug   debugFlag

	// instanceID is a fresh per-process id included in logs and the
	// health response, so two runs on the same host are tellable apart.
	instanceID string

	shares      *nfs.ShareRegistry
	sessions    *session.Table
	server      *nfs.Server
	mountServer *mount.Server

	pool    *workerpool.Pool
	bufs    *bufpool.Pool
	portmap *portmapclient.Client

	conns   map[*connState]struct{}
	connsMu sync.Mutex

	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	tcpListener net.Listener
	udpConn     *net.UDPConn
}

// New builds an Adapter from cfg: it constructs every configured share,
// the session table, the NFS and MOUNT dispatchers, the worker
// pool, the buffer pool, and (unless disabled) a portmapper client. It
// does not bind any socket yet — call Start for that.
func New(cfg *config.Config, m metrics.NFSMetrics) (*Adapter, error) {
	a := &Adapter{
		cfg:        cfg,
		metrics:    m,
		debug:      parseDebugFlags(cfg.NFS.DebugFlags),
		instanceID: uuid.NewString(),
		conns:      make(map[*connState]struct{}),
		stop:       make(chan struct{}),
	}

	a.shares = nfs.NewShareRegistry(a.desiredShares)
	for _, s := range a.desiredShares() {
		a.shares.Add(s)
	}

	a.sessions = session.NewTable(cfg.NFS.SearchSlotsLimit)

	writeVerifier := uint64(time.Now().UnixNano())
	a.server = nfs.NewServer(a.shares, a.sessions, writeVerifier)
	a.server.Metrics = m
	a.mountServer = mount.NewServer(a.shares)

	queueDepth := cfg.NFS.ThreadPoolSize * 4
	a.pool = workerpool.New(cfg.NFS.ThreadPoolSize, queueDepth)

	bufCfg := bufpool.DefaultConfig()
	if cfg.NFS.PacketPoolSize > 0 {
		bufCfg.MediumSize = int(cfg.NFS.PacketPoolSize)
	}
	a.bufs = bufpool.NewPool(&bufCfg)

	if cfg.NFS.PortmapperPort != -1 {
		a.portmap = portmapclient.New(cfg.NFS.PortmapperHost, cfg.NFS.PortmapperPort,
			portmapclient.WithLocalPort(cfg.NFS.RPCRegisterPort))
	}

	return a, nil
}

// UpdateConfig swaps in a newly (re)loaded configuration — the share
// list drives the next Rescan, everything else (ports, pool size,
// portmapper target) only takes effect on the next Start. Intended to
// be wired as the onChange callback of pkg/config.Watch.
func (a *Adapter) UpdateConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
	a.shares.Rescan()
}

func (a *Adapter) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// InstanceID reports this process's unique server instance id.
func (a *Adapter) InstanceID() string { return a.instanceID }

// Sessions exposes the session table for status reporting.
func (a *Adapter) Sessions() *session.Table { return a.sessions }

// Shares exposes the share registry for status reporting.
func (a *Adapter) Shares() *nfs.ShareRegistry { return a.shares }
