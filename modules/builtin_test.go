package modules

import "testing"

func TestBuiltinReturnsDistinctModules(t *testing.T) {
	mods := Builtin()
	if len(mods) != 2 {
		t.Fatalf("expected 2 builtin modules, got %d", len(mods))
	}
	seen := map[string]bool{}
	for _, m := range mods {
		if seen[m.Name] {
			t.Fatalf("duplicate module name %q", m.Name)
		}
		seen[m.Name] = true
		if m.LatestRevision() == nil {
			t.Fatalf("module %q has no latest revision", m.Name)
		}
	}
	if !seen["ietf-interfaces"] || !seen["sysrepod-monitoring"] {
		t.Fatalf("unexpected module set: %v", seen)
	}
}

func TestInterfacesModuleShape(t *testing.T) {
	m := interfacesModule()
	root := m.LatestRevision().Root
	iface := root.Child("interface")
	if iface == nil {
		t.Fatal("expected interfaces/interface node")
	}
	if len(iface.Keys) != 1 || iface.Keys[0] != "name" {
		t.Fatalf("expected interface keyed by name, got %v", iface.Keys)
	}
	if name := iface.Child("name"); name == nil || !name.Mandatory {
		t.Fatal("expected mandatory name leaf")
	}
}

func TestMonitoringModuleShape(t *testing.T) {
	m := monitoringModule()
	root := m.LatestRevision().Root
	if root.Child("active-sessions") == nil || root.Child("uptime-seconds") == nil {
		t.Fatal("expected active-sessions and uptime-seconds leaves")
	}
}
