package portmapclient

import (
	"encoding/binary"
	"testing"
)

func TestBuildCallLayout(t *testing.T) {
	payload, err := buildCall(42, ProcSet, Mapping{Program: 100003, Version: 3, Proto: ProtoTCP, Port: 2049})
	if err != nil {
		t.Fatalf("buildCall: %v", err)
	}
	// xid, msg_type, rpcvers, program, version, proc, cred flavor/len, verf flavor/len = 10 words
	if len(payload) != 10*4+4*4 {
		t.Fatalf("unexpected payload length: %d", len(payload))
	}
	if binary.BigEndian.Uint32(payload[0:4]) != 42 {
		t.Fatalf("xid mismatch")
	}
	if binary.BigEndian.Uint32(payload[12:16]) != Program {
		t.Fatalf("program mismatch")
	}
	mappingOffset := 10 * 4
	if binary.BigEndian.Uint32(payload[mappingOffset:mappingOffset+4]) != 100003 {
		t.Fatalf("mapping program mismatch")
	}
	if binary.BigEndian.Uint32(payload[mappingOffset+12:mappingOffset+16]) != 2049 {
		t.Fatalf("mapping port mismatch")
	}
}

func TestFrameLastFragment(t *testing.T) {
	framed := frameLastFragment([]byte{1, 2, 3, 4})
	word := binary.BigEndian.Uint32(framed[0:4])
	if word&0x80000000 == 0 {
		t.Fatal("expected last-fragment bit set")
	}
	if word&0x7FFFFFFF != 4 {
		t.Fatalf("expected length 4, got %d", word&0x7FFFFFFF)
	}
}
