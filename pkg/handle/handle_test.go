package handle

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []Handle{
		Share(1),
		Directory(1, 10),
		File(1, 10, 42),
	}
	for _, h := range cases {
		raw := Encode(h)
		got, err := Decode(raw[:])
		if err != nil {
			t.Fatalf("decode(encode(%+v)): %v", h, err)
		}
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestDecodeBadTag(t *testing.T) {
	raw := Encode(File(1, 2, 3))
	raw[0] = 0x7F
	if _, err := Decode(raw[:]); err != ErrBadHandle {
		t.Fatalf("expected ErrBadHandle, got %v", err)
	}
}

func TestDecodeZeroShare(t *testing.T) {
	raw := Encode(File(0, 2, 3))
	if _, err := Decode(raw[:]); err != ErrBadHandle {
		t.Fatalf("expected ErrBadHandle for zero shareId, got %v", err)
	}
}

func TestDecodeWrongLength(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err != ErrBadHandle {
		t.Fatalf("expected ErrBadHandle for short handle, got %v", err)
	}
}

func TestDecodeInvariantViolations(t *testing.T) {
	share := Encode(Share(1))
	share[8] = 1 // non-zero dirId on a Share handle
	if _, err := Decode(share[:]); err != ErrBadHandle {
		t.Fatalf("expected ErrBadHandle for Share with dirId set, got %v", err)
	}

	dir := Encode(Directory(1, 5))
	dir[12] = 1 // non-zero fileId on a Directory handle
	if _, err := Decode(dir[:]); err != ErrBadHandle {
		t.Fatalf("expected ErrBadHandle for Directory with fileId set, got %v", err)
	}
}

func TestEqual(t *testing.T) {
	a := File(1, 2, 3)
	b := File(1, 2, 3)
	c := File(1, 2, 4)
	if !a.Equal(b) {
		t.Fatal("expected equal handles to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different handles to compare unequal")
	}
}
