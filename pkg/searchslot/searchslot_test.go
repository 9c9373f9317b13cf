package searchslot

import (
	"context"
	"testing"

	"github.com/marmos91/nfsv3d/pkg/fsfacade"
)

type fakeSearch struct{ closed bool }

func (f *fakeSearch) Next() (fsfacade.DirEntry, uint32, bool, error) {
	return fsfacade.DirEntry{}, 0, false, nil
}
func (f *fakeSearch) Close() error { f.closed = true; return nil }

func TestAllocateGetFree(t *testing.T) {
	tbl := New(4)
	s := &fakeSearch{}

	slot, err := tbl.Allocate(s)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if slot == 0 {
		t.Fatal("allocated slot must be nonzero (slot 0 is reserved)")
	}

	got, ok := tbl.Get(slot)
	if !ok || got != s {
		t.Fatalf("expected to get back the allocated search")
	}

	tbl.Free(slot)
	if !s.closed {
		t.Fatal("expected search to be closed on Free")
	}
	if _, ok := tbl.Get(slot); ok {
		t.Fatal("expected slot to be free after Free")
	}
}

func TestNoFreeSlots(t *testing.T) {
	tbl := New(1)
	if _, err := tbl.Allocate(&fakeSearch{}); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	if _, err := tbl.Allocate(&fakeSearch{}); err != ErrNoFreeSlots {
		t.Fatalf("expected ErrNoFreeSlots, got %v", err)
	}
}

func TestCookieRoundTrip(t *testing.T) {
	cookie := EncodeCookie(7, 123456)
	slot, resume := DecodeCookie(cookie)
	if slot != 7 || resume != 123456 {
		t.Fatalf("round trip mismatch: slot=%d resume=%d", slot, resume)
	}
}

func TestVerifyCookieVerifierAcceptsByteSwap(t *testing.T) {
	ctx := context.Background()
	mtime := uint64(0x0102030405060708)

	if !VerifyCookieVerifier(ctx, mtime, mtime) {
		t.Fatal("expected exact match to verify")
	}
	if !VerifyCookieVerifier(ctx, byteSwap64(mtime), mtime) {
		t.Fatal("expected byte-swapped verifier to verify (bug-compatibility)")
	}
	if VerifyCookieVerifier(ctx, mtime+1, mtime) {
		t.Fatal("expected mismatched verifier to fail")
	}
}
