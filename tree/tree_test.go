package tree

import "testing"

func TestCreateChildAndLookup(t *testing.T) {
	tr := New("ietf-interfaces")
	c, err := tr.CreateChild(tr.Root(), "interfaces", nil)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := tr.CreateChild(c, "mtu", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.SetValue(leaf, Value{Uint: 1500}); err != nil {
		t.Fatal(err)
	}
	v, isDefault, err := tr.Value(leaf)
	if err != nil {
		t.Fatal(err)
	}
	if v.Uint != 1500 || isDefault {
		t.Fatalf("unexpected value %+v default=%v", v, isDefault)
	}
	got, err := tr.Child(c, "mtu")
	if err != nil || got != leaf {
		t.Fatalf("Child lookup failed: %v %v", got, err)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	tr := New("m")
	c, _ := tr.CreateChild(tr.Root(), "container", nil)
	leaf, _ := tr.CreateChild(c, "leaf", nil)
	if err := tr.Delete(c); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tr.Value(leaf); err == nil {
		t.Fatal("expected error reading deleted node")
	}
	children, _ := tr.Children(tr.Root())
	if len(children) != 0 {
		t.Fatalf("expected root to have no children, got %v", children)
	}
}

func TestMoveAfterReorders(t *testing.T) {
	tr := New("m")
	list, _ := tr.CreateChild(tr.Root(), "list", nil)
	a, _ := tr.CreateChild(list, "a", nil)
	b, _ := tr.CreateChild(list, "b", nil)
	c, _ := tr.CreateChild(list, "c", nil)

	order := func() []string {
		children, _ := tr.Children(list)
		var names []string
		for _, h := range children {
			names = append(names, tr.Name(h))
		}
		return names
	}

	if got := order(); got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("initial order wrong: %v", got)
	}

	if err := tr.MoveAfter(list, c, InvalidHandle); err != nil {
		t.Fatal(err)
	}
	got := order()
	if got[0] != "c" {
		t.Fatalf("expected c moved to front, got %v", got)
	}
	_ = a
	_ = b
}

// TestMoveAfterRepeatedFrontDoesNotEvictSibling guards against a sequence-
// number collision: moving two different nodes to the front in succession
// must not make the previous front sibling vanish from Children.
func TestMoveAfterRepeatedFrontDoesNotEvictSibling(t *testing.T) {
	tr := New("m")
	list, _ := tr.CreateChild(tr.Root(), "list", nil)
	a, _ := tr.CreateChild(list, "a", nil)
	b, _ := tr.CreateChild(list, "b", nil)
	c, _ := tr.CreateChild(list, "c", nil)

	order := func() []string {
		children, _ := tr.Children(list)
		names := make([]string, len(children))
		for i, h := range children {
			names[i] = tr.Name(h)
		}
		return names
	}

	if err := tr.MoveAfter(list, c, InvalidHandle); err != nil {
		t.Fatal(err)
	}
	if got := order(); len(got) != 3 || got[0] != "c" {
		t.Fatalf("after moving c to front: %v", got)
	}

	if err := tr.MoveAfter(list, b, InvalidHandle); err != nil {
		t.Fatal(err)
	}
	if got := order(); len(got) != 3 || got[0] != "b" {
		t.Fatalf("after moving b to front, expected all 3 siblings still present: %v", got)
	}

	if err := tr.MoveAfter(list, a, InvalidHandle); err != nil {
		t.Fatal(err)
	}
	if got := order(); len(got) != 3 || got[0] != "a" {
		t.Fatalf("after moving a to front, expected all 3 siblings still present: %v", got)
	}
}

// TestMoveAfterRepeatedSameSpotDoesNotEvictSibling exercises the narrowing
// gap that results from repeatedly reinserting after the same neighbour,
// which must trigger a renumber rather than collide.
func TestMoveAfterRepeatedSameSpotDoesNotEvictSibling(t *testing.T) {
	tr := New("m")
	list, _ := tr.CreateChild(tr.Root(), "list", nil)
	a, _ := tr.CreateChild(list, "a", nil)
	_, _ = tr.CreateChild(list, "b", nil)
	c, _ := tr.CreateChild(list, "c", nil)

	for i := 0; i < 40; i++ {
		if err := tr.MoveAfter(list, c, a); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		children, _ := tr.Children(list)
		if len(children) != 3 {
			t.Fatalf("iteration %d: expected 3 siblings, got %d: %v", i, len(children), children)
		}
	}
	names := func() []string {
		children, _ := tr.Children(list)
		out := make([]string, len(children))
		for i, h := range children {
			out[i] = tr.Name(h)
		}
		return out
	}
	if got := names(); got[0] != "a" || got[1] != "c" || got[2] != "b" {
		t.Fatalf("expected a,c,b order, got %v", got)
	}
}

func TestPathString(t *testing.T) {
	tr := New("ietf-interfaces")
	c, _ := tr.CreateChild(tr.Root(), "interfaces", nil)
	leaf, _ := tr.CreateChild(c, "mtu", nil)
	if got := tr.PathString(leaf); got != "/ietf-interfaces/interfaces/mtu" {
		t.Fatalf("got %q", got)
	}
}
