package filecache

import "testing"

func TestInsertLookup(t *testing.T) {
	c := New()
	c.Insert(10, `\a\b.txt`)

	path, ok := c.Lookup(10)
	if !ok || path != `\a\b.txt` {
		t.Fatalf("lookup(10) = %q, %v", path, ok)
	}
	id, ok := c.LookupID(`\a\b.txt`)
	if !ok || id != 10 {
		t.Fatalf("lookupID = %d, %v", id, ok)
	}
}

func TestInsertDoesNotOverwrite(t *testing.T) {
	c := New()
	c.Insert(10, "/first")
	c.Insert(10, "/second")

	path, _ := c.Lookup(10)
	if path != "/first" {
		t.Fatalf("expected insert to be a no-op on existing id, got %q", path)
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Insert(10, "/a")
	c.Delete(10)

	if _, ok := c.Lookup(10); ok {
		t.Fatal("expected entry to be gone after Delete")
	}
	if _, ok := c.LookupID("/a"); ok {
		t.Fatal("expected reverse entry to be gone after Delete")
	}
}

func TestRenamePreservesFileID(t *testing.T) {
	c := New()
	c.Insert(10, "/a.txt")
	c.Rename(10, "/a.txt", "/b.txt")

	if _, ok := c.LookupID("/a.txt"); ok {
		t.Fatal("old path should no longer resolve")
	}
	id, ok := c.LookupID("/b.txt")
	if !ok || id != 10 {
		t.Fatalf("new path should resolve to same id, got %d, %v", id, ok)
	}
	path, ok := c.Lookup(10)
	if !ok || path != "/b.txt" {
		t.Fatalf("handle should now resolve to renamed path, got %q", path)
	}
}

func TestRenameEvictsOverwrittenTarget(t *testing.T) {
	c := New()
	c.Insert(10, "/a.txt")
	c.Insert(20, "/b.txt")
	c.Rename(10, "/a.txt", "/b.txt")

	if _, ok := c.Lookup(20); ok {
		t.Fatal("overwritten target's id should no longer resolve")
	}
	id, ok := c.LookupID("/b.txt")
	if !ok || id != 10 {
		t.Fatalf("destination path should carry the moved id, got %d, %v", id, ok)
	}
}
