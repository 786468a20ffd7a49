package datastore

import (
	"os"
	"testing"

	"github.com/sysrepo-go/sysrepod/lockmgr"
	"github.com/sysrepo-go/sysrepod/persist"
	"github.com/sysrepo-go/sysrepod/schema"
	"github.com/sysrepo-go/sysrepod/tree"
)

func testModule() *schema.Module {
	mtu := &schema.Node{Name: "mtu", Kind: schema.KindLeaf, Type: schema.TUint32}
	name := &schema.Node{Name: "name", Kind: schema.KindLeaf, Type: schema.TString, Mandatory: true}
	iface := &schema.Node{Name: "interface", Kind: schema.KindList, Keys: []string{"name"}, Children: []*schema.Node{name, mtu}}
	root := &schema.Node{Name: "interfaces", Kind: schema.KindContainer, Children: []*schema.Node{iface}}
	return &schema.Module{
		Name: "ietf-interfaces", Namespace: "urn:test", Prefix: "if",
		Latest:    "2020-01-01",
		Revisions: map[string]*schema.Revision{"2020-01-01": {Date: "2020-01-01", Root: root}},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	_ = os.MkdirAll(dir, 0o755)
	ctx := schema.NewContext()
	ctx.Install(testModule())
	mgr := NewManager(ctx, persist.NewStore(dir), lockmgr.NewManager())
	if err := mgr.LoadModule("ietf-interfaces"); err != nil {
		t.Fatalf("load module: %v", err)
	}
	return mgr
}

func TestSetAndCommitRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)

	if err := mgr.SetItem(sess, "/ietf-interfaces:interfaces/interface[name='eth0']/name", tree.Value{Str: "eth0"}, FlagDefault); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := mgr.SetItem(sess, "/ietf-interfaces:interfaces/interface[name='eth0']/mtu", tree.Value{Uint: 1500}, FlagDefault); err != nil {
		t.Fatalf("set mtu: %v", err)
	}
	changed, err := mgr.Commit(sess)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(changed) != 1 || changed[0] != "ietf-interfaces" {
		t.Fatalf("expected ietf-interfaces changed, got %v", changed)
	}

	tr, terr := mgr.GetDataTree("ietf-interfaces", Running)
	if terr != nil {
		t.Fatal(terr)
	}
	ifaces, _ := tr.Child(tr.Root(), "interfaces")
	if ifaces == tree.InvalidHandle {
		t.Fatal("interfaces container missing after commit")
	}
}

func TestCommitReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := schema.NewContext()
	ctx.Install(testModule())
	store := persist.NewStore(dir)

	mgr1 := NewManager(ctx, store, lockmgr.NewManager())
	if err := mgr1.LoadModule("ietf-interfaces"); err != nil {
		t.Fatal(err)
	}
	sess := NewSession(Running)
	mgr1.SetItem(sess, "/ietf-interfaces:interfaces/interface[name='eth0']/name", tree.Value{Str: "eth0"}, FlagDefault)
	if _, err := mgr1.Commit(sess); err != nil {
		t.Fatal(err)
	}

	mgr2 := NewManager(ctx, store, lockmgr.NewManager())
	if err := mgr2.LoadModule("ietf-interfaces"); err != nil {
		t.Fatal(err)
	}
	tr, terr := mgr2.GetDataTree("ietf-interfaces", Running)
	if terr != nil {
		t.Fatal(terr)
	}
	ifaces, _ := tr.Child(tr.Root(), "interfaces")
	if ifaces == tree.InvalidHandle {
		t.Fatal("expected reloaded startup data to contain interfaces")
	}
}

func TestDeleteMissingNodeIsNoOp(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)
	if err := mgr.DeleteItem(sess, "/ietf-interfaces:interfaces/interface[name='eth0']/mtu", FlagDefault); err != nil {
		t.Fatalf("staging a delete should not fail schema validation: %v", err)
	}
	if _, err := mgr.Commit(sess); err != nil {
		t.Fatalf("non-strict delete of a node that was never set should be a no-op, got: %v", err)
	}
}

func TestStrictDeleteMissingNodeFails(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)
	if err := mgr.DeleteItem(sess, "/ietf-interfaces:interfaces/interface[name='eth0']/mtu", FlagStrict); err != nil {
		t.Fatalf("staging a delete should not fail schema validation: %v", err)
	}
	if _, err := mgr.Commit(sess); err == nil {
		t.Fatal("expected DATA_MISSING committing a strict delete of a node that was never set")
	}
}

func TestStrictSetOnExistingNodeFails(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)
	path := "/ietf-interfaces:interfaces/interface[name='eth0']/name"
	if err := mgr.SetItem(sess, path, tree.Value{Str: "eth0"}, FlagDefault); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if _, err := mgr.Commit(sess); err != nil {
		t.Fatalf("commit: %v", err)
	}

	sess2 := NewSession(Running)
	if err := mgr.SetItem(sess2, path, tree.Value{Str: "eth1"}, FlagStrict); err != nil {
		t.Fatalf("staging a strict set should not fail schema validation: %v", err)
	}
	if _, err := mgr.Commit(sess2); err == nil {
		t.Fatal("expected DATA_EXISTS committing a strict set over an existing node")
	}
}

func TestNonRecursiveSetRejectsMissingAncestor(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)
	path := "/ietf-interfaces:interfaces/interface[name='eth0']/name"
	if err := mgr.SetItem(sess, path, tree.Value{Str: "eth0"}, FlagNonRecursive); err != nil {
		t.Fatalf("staging a non-recursive set should not fail schema validation: %v", err)
	}
	if _, err := mgr.Commit(sess); err == nil {
		t.Fatal("expected failure creating a non-recursive set whose ancestors don't exist")
	}
}

func TestMandatoryLeafNestedUnderContainerIsEnforced(t *testing.T) {
	lat := &schema.Node{Name: "latitude", Kind: schema.KindLeaf, Type: schema.TString, Mandatory: true}
	lon := &schema.Node{Name: "longitude", Kind: schema.KindLeaf, Type: schema.TString, Mandatory: true}
	location := &schema.Node{Name: "location", Kind: schema.KindContainer, Children: []*schema.Node{lat, lon}}
	name := &schema.Node{Name: "name", Kind: schema.KindLeaf, Type: schema.TString, Mandatory: true}
	site := &schema.Node{Name: "site", Kind: schema.KindList, Keys: []string{"name"}, Children: []*schema.Node{name, location}}
	root := &schema.Node{Name: "sites", Kind: schema.KindContainer, Children: []*schema.Node{site}}
	mod := &schema.Module{
		Name: "example-sites", Namespace: "urn:test:sites", Prefix: "st",
		Latest:    "2020-01-01",
		Revisions: map[string]*schema.Revision{"2020-01-01": {Date: "2020-01-01", Root: root}},
	}

	dir := t.TempDir()
	ctx := schema.NewContext()
	ctx.Install(mod)
	mgr := NewManager(ctx, persist.NewStore(dir), lockmgr.NewManager())
	if err := mgr.LoadModule("example-sites"); err != nil {
		t.Fatal(err)
	}

	sess := NewSession(Running)
	mgr.SetItem(sess, "/example-sites:sites/site[name='hq']/name", tree.Value{Str: "hq"}, FlagDefault)
	mgr.SetItem(sess, "/example-sites:sites/site[name='hq']/location/latitude", tree.Value{Str: "52.5"}, FlagDefault)
	if _, err := mgr.Commit(sess); err == nil {
		t.Fatal("expected VALIDATION_FAILED for a site missing its nested longitude")
	}

	sess2 := NewSession(Running)
	mgr.SetItem(sess2, "/example-sites:sites/site[name='hq']/name", tree.Value{Str: "hq"}, FlagDefault)
	mgr.SetItem(sess2, "/example-sites:sites/site[name='hq']/location/latitude", tree.Value{Str: "52.5"}, FlagDefault)
	mgr.SetItem(sess2, "/example-sites:sites/site[name='hq']/location/longitude", tree.Value{Str: "13.4"}, FlagDefault)
	if _, err := mgr.Commit(sess2); err != nil {
		t.Fatalf("expected commit to succeed once both nested mandatory leaves are set: %v", err)
	}
}

func TestGetDataTreeReportsNotFoundWhenEmpty(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.GetDataTree("ietf-interfaces", Running); err == nil {
		t.Fatal("expected NOT_FOUND for a module with no data yet")
	}
}

func TestMoveListRejectsNonUserOrderedList(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)
	if err := mgr.MoveList(sess, "/ietf-interfaces:interfaces/interface[name='eth0']", DirUp); err == nil {
		t.Fatal("expected INVAL_ARG moving an instance of a non-user-ordered list")
	}
}

func TestUnknownModulePath(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Running)
	err := mgr.SetItem(sess, "/no-such-module:x/y", tree.Value{}, FlagDefault)
	if err == nil {
		t.Fatal("expected UNKNOWN_MODEL")
	}
}

func TestDiscardChanges(t *testing.T) {
	mgr := newTestManager(t)
	sess := NewSession(Candidate)
	mgr.SetItem(sess, "/ietf-interfaces:interfaces/interface[name='eth0']/name", tree.Value{Str: "eth0"}, FlagDefault)
	sess.DiscardChanges()
	changed, err := mgr.Commit(sess)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no modules changed after discard, got %v", changed)
	}
}

func userOrderedModule() *schema.Module {
	name := &schema.Node{Name: "name", Kind: schema.KindLeaf, Type: schema.TString, Mandatory: true}
	entry := &schema.Node{Name: "entry", Kind: schema.KindList, Keys: []string{"name"}, UserOrdered: true, Children: []*schema.Node{name}}
	root := &schema.Node{Name: "queue", Kind: schema.KindContainer, Children: []*schema.Node{entry}}
	return &schema.Module{
		Name: "example-queue", Namespace: "urn:test:queue", Prefix: "q",
		Latest:    "2020-01-01",
		Revisions: map[string]*schema.Revision{"2020-01-01": {Date: "2020-01-01", Root: root}},
	}
}

func TestMoveListDirections(t *testing.T) {
	dir := t.TempDir()
	ctx := schema.NewContext()
	ctx.Install(userOrderedModule())
	mgr := NewManager(ctx, persist.NewStore(dir), lockmgr.NewManager())
	if err := mgr.LoadModule("example-queue"); err != nil {
		t.Fatal(err)
	}

	sess := NewSession(Running)
	for _, n := range []string{"a", "b", "c"} {
		if err := mgr.SetItem(sess, "/example-queue:queue/entry[name='"+n+"']/name", tree.Value{Str: n}, FlagDefault); err != nil {
			t.Fatalf("set %s: %v", n, err)
		}
	}
	if _, err := mgr.Commit(sess); err != nil {
		t.Fatalf("commit: %v", err)
	}

	move := func(name string, d Direction) {
		t.Helper()
		s := NewSession(Running)
		if err := mgr.MoveList(s, "/example-queue:queue/entry[name='"+name+"']", d); err != nil {
			t.Fatalf("move %s: %v", name, err)
		}
		if _, err := mgr.Commit(s); err != nil {
			t.Fatalf("commit move %s: %v", name, err)
		}
	}

	// Commit swaps in a fresh *tree.Tree each time, so the queue's order
	// must be re-read from the manager after every move rather than cached.
	names := func() []string {
		t.Helper()
		tr, terr := mgr.GetDataTree("example-queue", Running)
		if terr != nil {
			t.Fatal(terr)
		}
		queue, _ := tr.Child(tr.Root(), "queue")
		children, _ := tr.Children(queue)
		out := make([]string, len(children))
		for i, c := range children {
			nameH, _ := tr.Child(c, "name")
			nv, _, _ := tr.Value(nameH)
			out[i] = nv.Str
		}
		return out
	}

	move("c", DirFirst)
	if got := names(); got[0] != "c" {
		t.Fatalf("expected c first after DirFirst, got %v", got)
	}

	move("c", DirLast)
	if got := names(); got[len(got)-1] != "c" {
		t.Fatalf("expected c last after DirLast, got %v", got)
	}

	move("c", DirUp)
	if got := names(); got[len(got)-2] != "c" {
		t.Fatalf("expected c to move up one slot, got %v", got)
	}
}
