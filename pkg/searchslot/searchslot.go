// Package searchslot implements the per-session table of in-progress
// directory enumerations, encoding each
// active search into the small integer slot id a READDIR/READDIRPLUS
// cookie carries.
package searchslot

import (
	"context"
	"sync"

	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
)

// DefaultSlotCount is the default per-session slot table size.
const DefaultSlotCount = 256

// Sentinel cookies reserved for the synthetic "." and ".." entries
// every READDIR reply synthesizes ahead of the back end's own entries.
const (
	CookieDot    uint64 = 0x00FFFFFF
	CookieDotDot uint64 = 0x00FFFFFE
)

// resumeMask keeps resumeId within the 24 bits back ends are required
// to stay under.
const resumeMask = 0x00FFFFFF

// Table is a per-session pool of search slots. Slot 0 is permanently
// reserved: a cookie carrying slot 0 would be indistinguishable from
// the raw resume id alone, and the "."/".." sentinel cookies live in
// slot 0's value range.
type Table struct {
	mu      sync.Mutex
	slots   []fsfacade.Search
	nextFor int
}

// New returns a table with the given usable slot count (DefaultSlotCount
// if size <= 0). Allocate hands out slot ids 1..size.
func New(size int) *Table {
	if size <= 0 {
		size = DefaultSlotCount
	}
	return &Table{slots: make([]fsfacade.Search, size+1), nextFor: 1}
}

// ErrNoFreeSlots is returned when every slot is in use.
var ErrNoFreeSlots = errNoFreeSlots{}

type errNoFreeSlots struct{}

func (errNoFreeSlots) Error() string { return "searchslot: no free slots" }

// Allocate reserves a free slot for search and returns its id, always
// nonzero. The scan is round-robin: it starts just after the slot
// handed out last, not at the lowest free id.
func (t *Table) Allocate(search fsfacade.Search) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	usable := len(t.slots) - 1
	if t.nextFor < 1 {
		t.nextFor = 1
	}
	for i := 0; i < usable; i++ {
		idx := 1 + (t.nextFor-1+i)%usable
		if t.slots[idx] == nil {
			t.slots[idx] = search
			t.nextFor = 1 + idx%usable
			return uint32(idx), nil
		}
	}
	return 0, ErrNoFreeSlots
}

// Get returns the search registered at slot, or ok=false if the slot
// is free.
func (t *Table) Get(slot uint32) (fsfacade.Search, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if slot == 0 || int(slot) >= len(t.slots) {
		return nil, false
	}
	s := t.slots[slot]
	return s, s != nil
}

// Free releases slot, closing its search. Called when an enumeration
// reaches eof or the session closes.
func (t *Table) Free(slot uint32) {
	t.mu.Lock()
	if int(slot) >= len(t.slots) {
		t.mu.Unlock()
		return
	}
	s := t.slots[slot]
	t.slots[slot] = nil
	t.mu.Unlock()

	if s != nil {
		_ = s.Close()
	}
}

// CloseAll releases every outstanding slot, used on session teardown.
func (t *Table) CloseAll() {
	t.mu.Lock()
	slots := t.slots
	t.slots = make([]fsfacade.Search, len(slots))
	t.mu.Unlock()

	for _, s := range slots {
		if s != nil {
			_ = s.Close()
		}
	}
}

// EncodeCookie packs (slot, resumeId) into the opaque cookie value the
// client is handed back.
func EncodeCookie(slot uint32, resumeID uint32) uint64 {
	return (uint64(slot) << 24) | uint64(resumeID&resumeMask)
}

// DecodeCookie unpacks a client-presented cookie into its slot and
// resumeId halves.
func DecodeCookie(cookie uint64) (slot uint32, resumeID uint32) {
	return uint32(cookie >> 24), uint32(cookie & resumeMask)
}

// byteSwap64 reverses the byte order of a 64-bit verifier, used to
// bug-compatibly accept the historical reverse-order verifier some
// clients send.
func byteSwap64(v uint64) uint64 {
	var out uint64
	for i := 0; i < 8; i++ {
		out = (out << 8) | (v & 0xFF)
		v >>= 8
	}
	return out
}

// VerifyCookieVerifier checks a client-presented verifier against the
// directory's modify time at the start of the search. It accepts the
// verifier in either byte order — a masked historical bug retained
// deliberately — and logs when the reverse-order
// form is what matched, so the behavior stays bug-compatible without
// being silent about it.
func VerifyCookieVerifier(ctx context.Context, clientVerifier uint64, dirModTimeVerifier uint64) bool {
	if clientVerifier == dirModTimeVerifier {
		return true
	}
	if clientVerifier == byteSwap64(dirModTimeVerifier) {
		logger.WarnCtx(ctx, "READDIR cookie verifier matched only in reverse byte order",
			"client_verifier", clientVerifier, "expected", dirModTimeVerifier)
		return true
	}
	return false
}
