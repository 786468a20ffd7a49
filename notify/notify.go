// Package notify implements the Notification Processor: in-process
// subscriptions, each flagged transient or durable, and dispatch of events
// to matching subscribers. Both kinds are removed when their destination is
// dropped. Subscription indexing uses github.com/google/btree for the
// destination-to-modules teardown index, the same balanced-tree utility the
// data tree uses for ordered children.
package notify

import (
	"sync"

	"github.com/google/btree"

	"github.com/sysrepo-go/sysrepod/srerr"
)

// Event is one of the subscribable event kinds named in the data model.
type Event string

const (
	EventModuleInstall Event = "module_install"
	EventFeatureEnable Event = "feature_enable"
	EventModuleChange  Event = "module_change"
	EventRPC           Event = "rpc"
)

// Destination identifies who receives a notification: a session, addressed
// by its connection and session id so delivery survives session-table
// churn.
type Destination struct {
	ConnID    uint64
	SessionID uint64
}

// Subscription is one (module, event, destination) binding.
type Subscription struct {
	Module  string
	Event   Event
	Dest    Destination
	Durable bool
}

// moduleItem orders a destination's subscribed module names, used by the
// per-destination btree in Processor.byDest for O(log N) teardown instead
// of scanning every module's subscriber list on disconnect.
type moduleItem string

func (a moduleItem) Less(than btree.Item) bool {
	return a < than.(moduleItem)
}

// Dispatcher delivers a built notification to one destination. The
// connection manager implements this to actually write bytes to a socket;
// kept as an interface so notify has no transport dependency.
type Dispatcher interface {
	Dispatch(dest Destination, module string, event Event, path string)
}

// Processor owns the subscription table and fans events out to a
// Dispatcher.
type Processor struct {
	mu            sync.RWMutex
	subscriptions map[string][]*Subscription // module -> subs
	byDest        map[Destination]*btree.BTree
	dispatcher    Dispatcher
}

func NewProcessor(d Dispatcher) *Processor {
	return &Processor{
		subscriptions: map[string][]*Subscription{},
		byDest:        map[Destination]*btree.BTree{},
		dispatcher:    d,
	}
}

// Subscribe registers a new subscription and returns it so the caller can
// use its pointer identity for later Unsubscribe.
func (p *Processor) Subscribe(module string, event Event, dest Destination, durable bool) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := &Subscription{Module: module, Event: event, Dest: dest, Durable: durable}
	p.subscriptions[module] = append(p.subscriptions[module], sub)
	idx, ok := p.byDest[dest]
	if !ok {
		idx = btree.New(8)
		p.byDest[dest] = idx
	}
	idx.ReplaceOrInsert(moduleItem(module))
	return sub
}

// Unsubscribe removes every subscription bound to dest on module, or on
// every module if module is "".
func (p *Processor) Unsubscribe(dest Destination, module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for mod, subs := range p.subscriptions {
		if module != "" && mod != module {
			continue
		}
		kept := subs[:0]
		for _, s := range subs {
			if s.Dest != dest {
				kept = append(kept, s)
			}
		}
		p.subscriptions[mod] = kept
	}
}

// DropDestination purges every subscription bound to dest, durable or not,
// used when a session stops. It does not touch a DurableIndex.
func (p *Processor) DropDestination(dest Destination) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.byDest[dest]
	if !ok {
		return
	}
	idx.Ascend(func(it btree.Item) bool {
		mod := string(it.(moduleItem))
		subs := p.subscriptions[mod]
		kept := subs[:0]
		for _, s := range subs {
			if s.Dest != dest {
				kept = append(kept, s)
			}
		}
		p.subscriptions[mod] = kept
		return true
	})
	delete(p.byDest, dest)
}

// Dispatch delivers an event of the given kind for path to every subscriber
// of module registered for that event. Per spec's all-or-nothing commit publish rule, callers must
// only invoke this once every participating module in a commit has been
// durably written.
func (p *Processor) Dispatch(module string, event Event, path string) {
	p.mu.RLock()
	subs := append([]*Subscription(nil), p.subscriptions[module]...)
	p.mu.RUnlock()
	for _, s := range subs {
		if s.Event == event {
			p.dispatcher.Dispatch(s.Dest, module, event, path)
		}
	}
}

// Subscribers returns a snapshot of subscriptions for module, for
// inspection/testing.
func (p *Processor) Subscribers(module string) []*Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Subscription(nil), p.subscriptions[module]...)
}

// DurableIndex tracks durable subscriptions in memory, keyed by module, and
// can re-register them with a Processor. It has no encoding and does no
// I/O, so its content does not outlive the process, and the request
// processor does not add subscriptions to it.
type DurableIndex struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

func NewDurableIndex() *DurableIndex {
	return &DurableIndex{subs: map[string][]*Subscription{}}
}

func (d *DurableIndex) Add(sub *Subscription) {
	if !sub.Durable {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[sub.Module] = append(d.subs[sub.Module], sub)
}

func (d *DurableIndex) Remove(dest Destination, module string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.subs[module][:0]
	for _, s := range d.subs[module] {
		if s.Dest != dest {
			kept = append(kept, s)
		}
	}
	d.subs[module] = kept
}

func (d *DurableIndex) All(module string) []*Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Subscription(nil), d.subs[module]...)
}

// RestoreInto re-registers every durable subscription in the index with a
// live Processor.
func (d *DurableIndex) RestoreInto(p *Processor) *srerr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for module, subs := range d.subs {
		for _, s := range subs {
			p.Subscribe(module, s.Event, s.Dest, true)
		}
	}
	return nil
}
