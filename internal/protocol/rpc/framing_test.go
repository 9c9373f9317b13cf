package rpc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func frameFragment(payload []byte, last bool) []byte {
	word := uint32(len(payload))
	if last {
		word |= lastFragmentBit
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[0:4], word)
	copy(out[4:], payload)
	return out
}

func TestReadTCPMessageSingleFragment(t *testing.T) {
	payload := []byte("hello")
	r := bytes.NewReader(frameFragment(payload, true))

	got, err := ReadTCPMessage(r, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReadTCPMessageMultipleFragments(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(frameFragment([]byte("abc"), false))
	buf.Write(frameFragment([]byte("def"), true))

	got, err := ReadTCPMessage(&buf, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("got %q, want abcdef", got)
	}
}

func TestReadTCPMessageTooLarge(t *testing.T) {
	r := bytes.NewReader(frameFragment(make([]byte, 100), true))
	if _, err := ReadTCPMessage(r, 10); err != ErrMessageTooLarge {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestWriteTCPMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTCPMessage(&buf, []byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadTCPMessage(&buf, 0)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
}
