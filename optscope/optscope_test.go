package optscope

import "testing"

func TestResolveWalksTopToBase(t *testing.T) {
	s := NewStack()
	s.Push(map[string]Entry{"--verbose": {GroupID: "g1"}})
	s.Push(map[string]Entry{"--verbose": {GroupID: "g2"}})

	e, ok := s.Resolve("--verbose")
	if !ok {
		t.Fatalf("expected --verbose to resolve")
	}
	if e.GroupID != "g2" {
		t.Fatalf("GroupID = %q, want shadowing inner scope g2", e.GroupID)
	}
}

func TestPopAboveKeepsTargetAndRemovesEverythingAfter(t *testing.T) {
	s := NewStack()
	tok := s.Push(map[string]Entry{"-a": {}})
	s.Push(map[string]Entry{"-b": {}})
	s.Push(map[string]Entry{"-c": {}})

	if s.Depth() != 3 {
		t.Fatalf("Depth() = %d, want 3", s.Depth())
	}
	s.PopAbove(tok)
	if s.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1 (the target scope itself survives)", s.Depth())
	}
	if _, ok := s.Resolve("-a"); !ok {
		t.Fatalf("-a should still resolve, its own scope was not popped")
	}
	if _, ok := s.Resolve("-c"); ok {
		t.Fatalf("-c should no longer resolve, its scope was above the popped token")
	}
}

func TestPopAboveIsNoOpForUnknownToken(t *testing.T) {
	s := NewStack()
	s.Push(map[string]Entry{"-a": {}})
	s.PopAbove(Token(999))
	if s.Depth() != 1 {
		t.Fatalf("Depth() = %d, want unchanged 1", s.Depth())
	}
}

func TestResolveMissesUnmappedName(t *testing.T) {
	s := NewStack()
	s.Push(map[string]Entry{"-a": {}})
	if _, ok := s.Resolve("-z"); ok {
		t.Fatalf("expected -z to miss")
	}
}

func TestNamesReturnsSortedUniqueSpellings(t *testing.T) {
	s := NewStack()
	s.Push(map[string]Entry{"--verbose": {}, "-v": {}})
	s.Push(map[string]Entry{"--verbose": {}, "--name": {}})

	got := s.Names()
	want := []string{"--name", "--verbose", "-v"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestAncestorHoldingFindsPoppedScope(t *testing.T) {
	popped := []map[string]Entry{
		{"--x-flag": {GroupID: "x"}},
	}
	e, ok := AncestorHolding(popped, "--x-flag")
	if !ok || e.GroupID != "x" {
		t.Fatalf("AncestorHolding = %v, %v; want x, true", e, ok)
	}
	if _, ok := AncestorHolding(popped, "--missing"); ok {
		t.Fatalf("expected --missing to miss")
	}
}
