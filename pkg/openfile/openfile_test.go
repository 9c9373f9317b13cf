package openfile

import (
	"testing"

	"github.com/marmos91/nfsv3d/pkg/fsfacade"
)

type fakeFile struct {
	closed   bool
	readOnly bool
}

func (f *fakeFile) Close() error                              { f.closed = true; return nil }
func (f *fakeFile) ReadAt(p []byte, off int64) (int, error)    { return 0, nil }
func (f *fakeFile) WriteAt(p []byte, off int64) (int, error)   { return len(p), nil }
func (f *fakeFile) Truncate(size int64) error                  { return nil }
func (f *fakeFile) Sync() error                                { return nil }
func (f *fakeFile) Size() (int64, error)                        { return 0, nil }

type fakeOpener struct {
	opens int
}

func (o *fakeOpener) OpenFile(path string, readOnly bool) (fsfacade.File, error) {
	o.opens++
	return &fakeFile{readOnly: readOnly}, nil
}

func TestGetOrOpenReuses(t *testing.T) {
	c := New()
	o := &fakeOpener{}

	e1, err := c.GetOrOpen(o, 1, "/a.txt", true)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	e2, err := c.GetOrOpen(o, 1, "/a.txt", true)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if e1 != e2 {
		t.Fatal("expected the same entry to be reused")
	}
	if o.opens != 1 {
		t.Fatalf("expected exactly one back-end open, got %d", o.opens)
	}
}

func TestGetOrOpenUpgradesReadOnlyToReadWrite(t *testing.T) {
	c := New()
	o := &fakeOpener{}

	e, err := c.GetOrOpen(o, 1, "/a.txt", true)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	firstFile := e.File.(*fakeFile)

	e2, err := c.GetOrOpen(o, 1, "/a.txt", false)
	if err != nil {
		t.Fatalf("upgrade to read-write: %v", err)
	}
	if e2.ReadOnly {
		t.Fatal("expected entry to be upgraded to read-write")
	}
	if !firstFile.closed {
		t.Fatal("expected original read-only file to be closed on upgrade")
	}
	if o.opens != 2 {
		t.Fatalf("expected two back-end opens (RO then RW), got %d", o.opens)
	}
}

func TestRemoveClosesAndEvicts(t *testing.T) {
	c := New()
	o := &fakeOpener{}

	e, _ := c.GetOrOpen(o, 1, "/a.txt", true)
	c.Remove(1)

	if !e.File.(*fakeFile).closed {
		t.Fatal("expected file to be closed on Remove")
	}
	if c.Len() != 0 {
		t.Fatalf("expected cache to be empty after Remove, got %d entries", c.Len())
	}
}
