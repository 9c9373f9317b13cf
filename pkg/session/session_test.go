package session

import (
	"testing"

	"github.com/marmos91/nfsv3d/pkg/fsfacade"
)

func TestGetOrCreateReusesSession(t *testing.T) {
	tbl := NewTable(8)
	key := KeyForAuthNone("10.0.0.1:111")

	calls := 0
	newClient := func() (ClientInfo, error) {
		calls++
		return ClientInfo{Address: "10.0.0.1:111"}, nil
	}

	s1, err := tbl.GetOrCreate(key, AuthNone, newClient)
	if err != nil {
		t.Fatalf("first getorcreate: %v", err)
	}
	s2, err := tbl.GetOrCreate(key, AuthNone, newClient)
	if err != nil {
		t.Fatalf("second getorcreate: %v", err)
	}
	if s1 != s2 {
		t.Fatal("expected the same session to be reused")
	}
	if calls != 1 {
		t.Fatalf("expected newClient to be invoked once, got %d", calls)
	}
}

func TestAuthUnixKeyIncludesUIDGID(t *testing.T) {
	k1 := KeyForAuthUnix("10.0.0.1:111", 500, 100)
	k2 := KeyForAuthUnix("10.0.0.1:111", 501, 100)
	if k1 == k2 {
		t.Fatal("expected distinct uids to produce distinct keys")
	}
}

func TestTreeConnectionLazyDefault(t *testing.T) {
	tbl := NewTable(8)
	s, _ := tbl.GetOrCreate(1, AuthNone, func() (ClientInfo, error) { return ClientInfo{}, nil })

	tc := s.TreeConnection(7, ReadWrite)
	if tc.Permission != ReadWrite {
		t.Fatalf("expected default permission ReadWrite, got %v", tc.Permission)
	}
	tc2 := s.TreeConnection(7, NoAccess)
	if tc2 != tc {
		t.Fatal("expected the same tree connection on second reference")
	}
}

type closeTrackingSearch struct{ closed bool }

func (c *closeTrackingSearch) Next() (fsfacade.DirEntry, uint32, bool, error) {
	return fsfacade.DirEntry{}, 0, false, nil
}
func (c *closeTrackingSearch) Close() error { c.closed = true; return nil }

func TestRemoveClosesSession(t *testing.T) {
	tbl := NewTable(8)
	key := KeyForAuthNone("10.0.0.1:111")
	s, _ := tbl.GetOrCreate(key, AuthNone, func() (ClientInfo, error) { return ClientInfo{}, nil })
	search := &closeTrackingSearch{}
	if _, err := s.Searches.Allocate(search); err != nil {
		t.Fatalf("allocate search slot: %v", err)
	}

	tbl.Remove(key)
	if tbl.Len() != 0 {
		t.Fatal("expected table to be empty after Remove")
	}
	if !search.closed {
		t.Fatal("expected Remove to close the session's open searches")
	}
}
