package main

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// pidFile holds an exclusive advisory lock on a pidfile for the life of the
// daemon process, the same unix.Flock primitive persist.Store uses for its
// module files.
type pidFile struct {
	f *os.File
}

// acquirePidFile opens path, takes an exclusive non-blocking flock, and
// writes the current pid into it. A failed lock means another sysrepod
// instance already holds it.
func acquirePidFile(path string) (*pidFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open pidfile: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("sysrepod already running (pidfile %s locked): %w", path, err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pidfile: %w", err)
	}
	return &pidFile{f: f}, nil
}

func (p *pidFile) Release() {
	unix.Flock(int(p.f.Fd()), unix.LOCK_UN)
	p.f.Close()
}
