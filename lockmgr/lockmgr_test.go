package lockmgr

import "testing"

func TestModuleLockExclusion(t *testing.T) {
	m := NewManager()
	a, _ := NewOwnerID()
	b, _ := NewOwnerID()

	ok, err := m.AcquireModule(a, "ietf-interfaces")
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed: %v %v", ok, err)
	}
	if ok, err := m.AcquireModule(b, "ietf-interfaces"); ok || err == nil {
		t.Fatalf("second acquire should fail: %v %v", ok, err)
	}
	if ok, err := m.ReleaseModule(b, "ietf-interfaces"); ok || err == nil {
		t.Fatalf("release by wrong owner should fail: %v %v", ok, err)
	}
	if ok, err := m.ReleaseModule(a, "ietf-interfaces"); !ok || err != nil {
		t.Fatalf("release by owner should succeed: %v %v", ok, err)
	}
}

func TestDatastoreLockExcludesModuleLock(t *testing.T) {
	m := NewManager()
	a, _ := NewOwnerID()
	if ok, err := m.AcquireDatastore(a, []string{"m1", "m2"}); !ok || err != nil {
		t.Fatalf("datastore acquire should succeed: %v %v", ok, err)
	}
	if ok, err := m.AcquireModule(a, "m1"); ok || err == nil {
		t.Fatalf("module acquire should fail while datastore locked: %v %v", ok, err)
	}
	if ok, err := m.ReleaseDatastore(a); !ok || err != nil {
		t.Fatalf("release should succeed: %v %v", ok, err)
	}
	if ok, err := m.AcquireModule(a, "m1"); !ok || err != nil {
		t.Fatalf("module acquire should succeed after release: %v %v", ok, err)
	}
}

func TestModuleLockExcludesDatastoreLock(t *testing.T) {
	m := NewManager()
	a, _ := NewOwnerID()
	if ok, _ := m.AcquireModule(a, "m1"); !ok {
		t.Fatal("expected module acquire to succeed")
	}
	if ok, err := m.AcquireDatastore(a, []string{"m1", "m2"}); ok || err == nil {
		t.Fatalf("datastore acquire should fail while module locked: %v %v", ok, err)
	}
}

func TestReleaseAll(t *testing.T) {
	m := NewManager()
	a, _ := NewOwnerID()
	m.AcquireModule(a, "m1")
	m.AcquireModule(a, "m2")
	m.ReleaseAll(a)
	if _, locked := m.moduleOwner["m1"]; locked {
		t.Fatal("expected m1 unlocked after ReleaseAll")
	}
}
