package schema

import "testing"

func buildTestModule() *Module {
	leaf := &Node{Name: "name", Kind: KindLeaf, Type: TString}
	mtu := &Node{Name: "mtu", Kind: KindLeaf, Type: TUint32, Mandatory: true}
	iface := &Node{Name: "interface", Kind: KindList, Keys: []string{"name"}, Children: []*Node{leaf, mtu}}
	root := &Node{Name: "interfaces", Kind: KindContainer, Children: []*Node{iface}}
	return &Module{
		Name: "ietf-interfaces", Namespace: "urn:test", Prefix: "if",
		Latest:    "2020-01-01",
		Revisions: map[string]*Revision{"2020-01-01": {Date: "2020-01-01", Root: root}},
	}
}

func TestParsePath(t *testing.T) {
	mod, segs, err := ParsePath("/ietf-interfaces:interfaces/interface[name='eth0']/mtu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mod != "ietf-interfaces" {
		t.Fatalf("module = %q", mod)
	}
	if len(segs) != 3 {
		t.Fatalf("segs = %v", segs)
	}
	if segs[1].Keys["name"] != "eth0" {
		t.Fatalf("keys = %v", segs[1].Keys)
	}
}

func TestParsePathRejectsUnqualifiedRoot(t *testing.T) {
	if _, _, err := ParsePath("/interfaces"); err == nil {
		t.Fatal("expected error for unqualified root segment")
	}
}

func TestResolve(t *testing.T) {
	m := buildTestModule()
	_, segs, err := ParsePath("/ietf-interfaces:interfaces/interface[name='eth0']/mtu")
	if err != nil {
		t.Fatal(err)
	}
	node, rerr := m.Resolve(segs)
	if rerr != nil {
		t.Fatalf("resolve failed: %v", rerr)
	}
	if node.Name != "mtu" || node.Type != TUint32 {
		t.Fatalf("resolved wrong node: %+v", node)
	}
}

func TestResolveUnknownElement(t *testing.T) {
	m := buildTestModule()
	_, segs, _ := ParsePath("/ietf-interfaces:interfaces/bogus")
	if _, rerr := m.Resolve(segs); rerr == nil {
		t.Fatal("expected error resolving unknown element")
	}
}

// TestResolveUnknownRootReportsQualifiedPath proves get_item on a root
// segment that doesn't match the module's schema root reports BAD_ELEMENT
// tagged with the full module-qualified path, not the bare segment name.
func TestResolveUnknownRootReportsQualifiedPath(t *testing.T) {
	m := buildTestModule()
	_, segs, err := ParsePath("/ietf-interfaces:unknown/next")
	if err != nil {
		t.Fatal(err)
	}
	_, rerr := m.Resolve(segs)
	if rerr == nil {
		t.Fatal("expected BAD_ELEMENT resolving an unknown module root")
	}
	if rerr.Path != "/ietf-interfaces:unknown" {
		t.Fatalf("path = %q, want %q", rerr.Path, "/ietf-interfaces:unknown")
	}
}

// fakeCursor is a minimal in-memory Cursor for exercising CheckMandatory
// without a real data tree.
type fakeCursor struct {
	children map[string]*fakeCursor
	lists    map[string][]*fakeCursor
}

func (f *fakeCursor) Child(name string) (Cursor, bool) {
	c, ok := f.children[name]
	if !ok {
		return nil, false
	}
	return c, true
}

func (f *fakeCursor) ListInstances(name string) []Cursor {
	insts := f.lists[name]
	out := make([]Cursor, len(insts))
	for i, inst := range insts {
		out[i] = inst
	}
	return out
}

func TestCheckMandatory(t *testing.T) {
	m := buildTestModule()
	iface := m.LatestRevision().Root.Children[0]

	missingMtu := &fakeCursor{children: map[string]*fakeCursor{"name": {}}}
	if err := CheckMandatory(iface, missingMtu); err == nil {
		t.Fatal("expected mandatory violation for missing mtu")
	}

	complete := &fakeCursor{children: map[string]*fakeCursor{"name": {}, "mtu": {}}}
	if err := CheckMandatory(iface, complete); err != nil {
		t.Fatalf("unexpected violation: %v", err)
	}
}

// TestCheckMandatoryRecursesIntoContainersAndListInstances proves the fix
// for the flat-only check: a mandatory leaf nested two levels down, inside
// every instance of a list, must be enforced per instance.
func TestCheckMandatoryRecursesIntoContainersAndListInstances(t *testing.T) {
	lat := &Node{Name: "latitude", Kind: KindLeaf, Type: TString, Mandatory: true}
	lon := &Node{Name: "longitude", Kind: KindLeaf, Type: TString, Mandatory: true}
	location := &Node{Name: "location", Kind: KindContainer, Children: []*Node{lat, lon}}
	site := &Node{Name: "site", Kind: KindList, Keys: []string{"name"}, Children: []*Node{
		{Name: "name", Kind: KindLeaf, Type: TString, Mandatory: true},
		location,
	}}
	root := &Node{Name: "sites", Kind: KindContainer, Children: []*Node{site}}

	complete := &fakeCursor{lists: map[string][]*fakeCursor{"site": {
		{children: map[string]*fakeCursor{
			"name":     {},
			"location": {children: map[string]*fakeCursor{"latitude": {}, "longitude": {}}},
		}},
	}}}
	if err := CheckMandatory(root, complete); err != nil {
		t.Fatalf("unexpected violation on complete tree: %v", err)
	}

	missingLongitude := &fakeCursor{lists: map[string][]*fakeCursor{"site": {
		{children: map[string]*fakeCursor{
			"name":     {},
			"location": {children: map[string]*fakeCursor{"latitude": {}}},
		}},
	}}}
	if err := CheckMandatory(root, missingLongitude); err == nil {
		t.Fatal("expected mandatory violation for missing nested longitude")
	}
}

func TestContextInstall(t *testing.T) {
	ctx := NewContext()
	m := buildTestModule()
	ctx.Install(m)
	got, err := ctx.Module("ietf-interfaces")
	if err != nil {
		t.Fatal(err)
	}
	if got.Namespace != "urn:test" {
		t.Fatalf("got = %+v", got)
	}
	ctx.Uninstall("ietf-interfaces")
	if _, err := ctx.Module("ietf-interfaces"); err == nil {
		t.Fatal("expected UNKNOWN_MODEL after uninstall")
	}
}
