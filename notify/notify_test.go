package notify

import "testing"

type recordingDispatcher struct {
	events []string
}

func (r *recordingDispatcher) Dispatch(dest Destination, module string, event Event, path string) {
	r.events = append(r.events, string(event)+":"+module+":"+path)
}

func TestDispatchDeliversToSubscribers(t *testing.T) {
	rec := &recordingDispatcher{}
	p := NewProcessor(rec)
	dest := Destination{ConnID: 1, SessionID: 1}
	p.Subscribe("ietf-interfaces", EventModuleChange, dest, false)

	p.Dispatch("ietf-interfaces", EventModuleChange, "/ietf-interfaces:interfaces")

	if len(rec.events) != 1 || rec.events[0] != "module_change:ietf-interfaces:/ietf-interfaces:interfaces" {
		t.Fatalf("unexpected events: %v", rec.events)
	}
}

func TestDispatchIgnoresOtherModules(t *testing.T) {
	rec := &recordingDispatcher{}
	p := NewProcessor(rec)
	dest := Destination{ConnID: 1, SessionID: 1}
	p.Subscribe("other-module", EventModuleChange, dest, false)

	p.Dispatch("ietf-interfaces", EventModuleChange, "/x")

	if len(rec.events) != 0 {
		t.Fatalf("expected no delivery, got %v", rec.events)
	}
}

func TestDropDestinationRemovesAllSubs(t *testing.T) {
	rec := &recordingDispatcher{}
	p := NewProcessor(rec)
	dest := Destination{ConnID: 1, SessionID: 1}
	p.Subscribe("ietf-interfaces", EventModuleChange, dest, false)
	p.Subscribe("other-module", EventModuleChange, dest, false)

	p.DropDestination(dest)
	p.Dispatch("ietf-interfaces", EventModuleChange, "/x")
	p.Dispatch("other-module", EventModuleChange, "/y")

	if len(rec.events) != 0 {
		t.Fatalf("expected no deliveries after drop, got %v", rec.events)
	}
}

func TestDurableIndexRestore(t *testing.T) {
	rec := &recordingDispatcher{}
	p := NewProcessor(rec)
	idx := NewDurableIndex()
	dest := Destination{ConnID: 2, SessionID: 7}
	idx.Add(&Subscription{Module: "ietf-interfaces", Event: EventModuleChange, Dest: dest, Durable: true})

	if err := idx.RestoreInto(p); err != nil {
		t.Fatal(err)
	}
	p.Dispatch("ietf-interfaces", EventModuleChange, "/z")
	if len(rec.events) != 1 {
		t.Fatalf("expected restored subscription to receive event, got %v", rec.events)
	}
}
