package sessionmgr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sysrepo-go/sysrepod/datastore"
)

func TestCreateSessionAndLookup(t *testing.T) {
	m := NewManager()
	conn := m.NewConnection(1000, 1000)
	sess, err := m.CreateSession(conn, datastore.Running)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if got, ok := m.Session(sess.ID); !ok || got != sess {
		t.Fatal("expected session to be discoverable by id")
	}
	if got, ok := m.Connection(conn.ID); !ok || got != conn {
		t.Fatal("expected connection to be discoverable by id")
	}
}

func TestDropConnectionRemovesItsSessions(t *testing.T) {
	m := NewManager()
	conn := m.NewConnection(1000, 1000)
	sess, err := m.CreateSession(conn, datastore.Running)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	dropped := m.DropConnection(conn.ID)
	if len(dropped) != 1 || dropped[0] != sess {
		t.Fatalf("expected exactly the one session dropped, got %v", dropped)
	}
	if _, ok := m.Session(sess.ID); ok {
		t.Fatal("expected session to be gone after DropConnection")
	}
	if _, ok := m.Connection(conn.ID); ok {
		t.Fatal("expected connection to be gone after DropConnection")
	}
}

// TestAcquireGrantsEveryTicket simulates several goroutines racing to take
// a session's turn, as the base transport's worker pool can, and checks
// that every one of them is granted its turn (no waiter is left blocked).
func TestAcquireGrantsEveryTicket(t *testing.T) {
	m := NewManager()
	conn := m.NewConnection(1000, 1000)
	sess, err := m.CreateSession(conn, datastore.Running)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const n = 50
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			release := sess.Acquire()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}(i)
	}

	close(start)
	wg.Wait()

	if len(order) != n {
		t.Fatalf("expected %d tickets granted, got %d", n, len(order))
	}
}

// TestAcquireExcludesConcurrentRunners checks that no two Acquire holders
// ever run at once, which is the actual invariant the FIFO ticket exists
// to guarantee (ordering among goroutines started simultaneously is not
// otherwise defined).
func TestAcquireExcludesConcurrentRunners(t *testing.T) {
	m := NewManager()
	conn := m.NewConnection(1000, 1000)
	sess, err := m.CreateSession(conn, datastore.Running)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var running int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := sess.Acquire()
			cur := atomic.AddInt32(&running, 1)
			for {
				max := atomic.LoadInt32(&maxObserved)
				if cur <= max || atomic.CompareAndSwapInt32(&maxObserved, max, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			release()
		}()
	}

	wg.Wait()
	if maxObserved != 1 {
		t.Fatalf("expected at most one concurrent holder, observed %d", maxObserved)
	}
}
