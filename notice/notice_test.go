package notice

import "testing"

func TestHighestLevelEmptyIsInfo(t *testing.T) {
	b := New()
	if b.HighestLevel() != Info {
		t.Fatalf("HighestLevel() on empty bus = %v, want Info", b.HighestLevel())
	}
	if b.HasCritical() {
		t.Fatal("empty bus must not report HasCritical")
	}
}

func TestHighestLevelTracksMostSevere(t *testing.T) {
	b := New()
	b.Add(Info, "a", "fine")
	b.Add(Warning, "b", "careful")
	if b.HighestLevel() != Warning {
		t.Fatalf("HighestLevel() = %v, want Warning", b.HighestLevel())
	}
	b.Add(Critical, "c", "bad")
	if !b.HasCritical() {
		t.Fatal("expected HasCritical after a Critical entry")
	}
	if len(b.Entries()) != 3 {
		t.Fatalf("got %d entries, want 3", len(b.Entries()))
	}
}

func TestMergeAppendsInOrder(t *testing.T) {
	parent := New()
	parent.Add(Info, "parent", "first")
	child := New()
	child.Add(Warning, "child", "second")
	parent.Merge(child)
	entries := parent.Entries()
	if len(entries) != 2 || entries[1].Context != "child" {
		t.Fatalf("Merge did not append child entries in order: %+v", entries)
	}
}

func TestMergeNilIsNoop(t *testing.T) {
	b := New()
	b.Add(Info, "a", "one")
	b.Merge(nil)
	if len(b.Entries()) != 1 {
		t.Fatalf("Merge(nil) must not alter the bus, got %d entries", len(b.Entries()))
	}
}

func TestAbortResetAbort(t *testing.T) {
	b := New()
	if b.Aborted() {
		t.Fatal("a new bus must not start aborted")
	}
	b.Abort()
	if !b.Aborted() {
		t.Fatal("Abort must be observed by Aborted")
	}
	b.ResetAbort()
	if b.Aborted() {
		t.Fatal("ResetAbort must clear the abort flag")
	}
}

func TestSetPercentPercent(t *testing.T) {
	b := New()
	b.SetPercent(42)
	if b.Percent() != 42 {
		t.Fatalf("Percent() = %d, want 42", b.Percent())
	}
}
