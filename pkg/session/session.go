// Package session implements the per-authentication-identity session
// table: one Session per distinct RPC caller,
// holding its tree connections, open-file cache, and search slot table.
package session

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/marmos91/nfsv3d/pkg/auth"
	"github.com/marmos91/nfsv3d/pkg/openfile"
	"github.com/marmos91/nfsv3d/pkg/searchslot"
)

// AuthClass distinguishes the RPC credential flavor a session was
// created under.
type AuthClass int

const (
	AuthNone AuthClass = iota
	AuthUnix
)

// Permission is the access level a tree connection grants.
type Permission int

const (
	NoAccess Permission = iota
	ReadOnly
	ReadWrite
)

// ClientInfo is the identity the dispatcher resolved for a session,
// expressed as a protocol-neutral auth.Identity (UID/GID/Groups from
// AUTH_UNIX, or Anonymous for AUTH_NONE) plus the RPC caller's address,
// which auth.Identity has no field for.
type ClientInfo struct {
	auth.Identity
	Address string
}

// TreeConnection is a per-session binding to a share, created lazily
// on first reference.
type TreeConnection struct {
	ShareID    uint32
	Permission Permission
}

// Session represents one authenticated RPC caller.
type Session struct {
	ID         uint64
	UniqueID   string
	AuthClass  AuthClass
	AuthKey    uint64

	OpenFiles *openfile.Cache
	Searches  *searchslot.Table

	mu     sync.Mutex
	client ClientInfo
	trees  map[uint32]*TreeConnection
}

func newSession(id uint64, uniqueID string, class AuthClass, key uint64, client ClientInfo, searchSlots int) *Session {
	return &Session{
		ID:        id,
		UniqueID:  uniqueID,
		AuthClass: class,
		AuthKey:   key,
		client:    client,
		OpenFiles: openfile.New(),
		Searches:  searchslot.New(searchSlots),
		trees:     make(map[uint32]*TreeConnection),
	}
}

// SetClient replaces the session's resolved client identity. Called
// once at creation and again whenever the authenticator re-resolves the
// caller (e.g. a call on an existing session presenting fresh
// supplementary groups).
func (s *Session) SetClient(client ClientInfo) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
}

// ClientInfo returns the session's current resolved client identity.
func (s *Session) ClientInfo() ClientInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// TreeConnection returns the session's binding to shareID, creating it
// (with the given default permission) on first reference.
func (s *Session) TreeConnection(shareID uint32, defaultPermission Permission) *TreeConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.trees[shareID]
	if !ok {
		tc = &TreeConnection{ShareID: shareID, Permission: defaultPermission}
		s.trees[shareID] = tc
	}
	return tc
}

// Close releases every resource the session owns: open files and
// in-progress searches. Called when the owning TCP connection closes.
func (s *Session) Close() {
	s.OpenFiles.CloseAll()
	s.Searches.CloseAll()
}

// EndTransaction is the per-procedure hook the dispatcher calls after
// every request, so a back end that keeps
// transactional state can commit or roll it back. pkg/fsfacade has no
// transaction concept (every call is committed immediately), so this
// is a no-op; it exists so a future transactional back end has a
// single place to hook into without touching the dispatcher.
func (s *Session) EndTransaction() {}

// HashAddress derives the address component of an auth key:
// hash(clientAddress).
func HashAddress(addr string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(addr))
	return h.Sum32()
}

// KeyForAuthNone computes the AUTH_NONE session key: hash(clientAddress).
//
// Known limitation, documented and deliberately not fixed: NATed
// clients sharing a source address collide on this key
// and share one session.
func KeyForAuthNone(addr string) uint64 {
	return uint64(HashAddress(addr))
}

// KeyForAuthUnix computes the AUTH_UNIX session key:
// (hash(clientAddress) << 32) | (gid << 16) | uid.
func KeyForAuthUnix(addr string, uid, gid uint32) uint64 {
	return (uint64(HashAddress(addr)) << 32) | (uint64(gid&0xFFFF) << 16) | uint64(uid&0xFFFF)
}

// Table is the server-wide map from authentication key to Session.
// Sessions are never evicted on a timer; TCP connection
// close removes the sessions it owns, UDP-only sessions persist for
// the server's lifetime.
type Table struct {
	mu       sync.Mutex
	byKey    map[uint64]*Session
	nextID   uint64
	slotSize int
}

// NewTable returns an empty session table. searchSlotsPerSession sizes
// each session's search-slot table (0 selects searchslot.DefaultSlotCount).
func NewTable(searchSlotsPerSession int) *Table {
	return &Table{byKey: make(map[uint64]*Session), slotSize: searchSlotsPerSession}
}

// GetOrCreate returns the session registered under key, creating one
// via newClient on a cache miss. newClient is only invoked on miss so
// callers can defer authentication until it is actually needed.
func (t *Table) GetOrCreate(key uint64, class AuthClass, newClient func() (ClientInfo, error)) (*Session, error) {
	t.mu.Lock()
	if s, ok := t.byKey[key]; ok {
		t.mu.Unlock()
		return s, nil
	}
	t.mu.Unlock()

	client, err := newClient()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.byKey[key]; ok {
		return s, nil
	}
	id := atomic.AddUint64(&t.nextID, 1)
	s := newSession(id, uniqueSessionID(id, key), class, key, client, t.slotSize)
	t.byKey[key] = s
	return s, nil
}

// Remove deletes and closes the session registered under key, called
// when the owning TCP connection closes.
func (t *Table) Remove(key uint64) {
	t.mu.Lock()
	s, ok := t.byKey[key]
	if ok {
		delete(t.byKey, key)
	}
	t.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len reports the number of live sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey)
}

func uniqueSessionID(id uint64, key uint64) string {
	return fmt.Sprintf("%x-%x", id, key)
}
