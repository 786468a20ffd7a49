// Package persist implements the on-disk layout from the specification's
// External Interfaces section: one flat file per module per datastore
// (running never touches disk directly — only startup and the durable
// subscription index do), written with ftruncate+rewrite+fdatasync under an
// advisory file lock. There is no flock-style library anywhere in the
// reference corpus, so locking is a direct two-syscall wrapper around
// golang.org/x/sys/unix.Flock rather than an invented abstraction.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/sysrepo-go/sysrepod/srerr"
)

// Store locates and manipulates the flat files backing a module's durable
// datastores.
type Store struct {
	dataDir string
}

func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Datastore names the durable datastores a module can have a file for.
// "running" is intentionally absent: it lives only in memory, rebuilt from
// "startup" at engine start and never itself written to disk.
type Datastore string

const (
	Startup Datastore = "startup"
)

func (s *Store) path(module string, ds Datastore) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.%s", module, ds))
}

func (s *Store) persistPath(module string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.persist", module))
}

// FileLock wraps an advisory exclusive flock(2) on a module's backing file,
// held for the duration of a commit's write phase.
type FileLock struct {
	f *os.File
}

// Lock opens (creating if necessary) and exclusively locks the file backing
// module's ds. The lock is released by calling Unlock.
func (s *Store) Lock(module string, ds Datastore) (*FileLock, *srerr.Error) {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, srerr.New(srerr.IO, "mkdir data dir: %v", err)
	}
	f, err := os.OpenFile(s.path(module, ds), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, srerr.New(srerr.IO, "open %s: %v", module, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, srerr.New(srerr.Locked, "flock %s: %v", module, err)
	}
	return &FileLock{f: f}, nil
}

// Unlock releases the advisory lock and closes the underlying file. It is
// safe to call on a nil FileLock (unlocking an already-released lock is a
// no-op), matching the "release on every exit path" idiom used elsewhere in
// this module's locking code.
func (l *FileLock) Unlock() {
	if l == nil || l.f == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
	l.f = nil
}

// WriteRecords truncates the locked file and rewrites it from scratch with
// records, each framed with a 4-byte big-endian length prefix, then
// fdatasyncs before returning so a crash immediately after Commit cannot
// lose the write.
func (l *FileLock) WriteRecords(records [][]byte) *srerr.Error {
	if err := l.f.Truncate(0); err != nil {
		return srerr.New(srerr.IO, "truncate: %v", err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return srerr.New(srerr.IO, "seek: %v", err)
	}
	w := bufio.NewWriter(l.f)
	var hdr [4]byte
	for _, rec := range records {
		binary.BigEndian.PutUint32(hdr[:], uint32(len(rec)))
		if _, err := w.Write(hdr[:]); err != nil {
			return srerr.New(srerr.IO, "write header: %v", err)
		}
		if _, err := w.Write(rec); err != nil {
			return srerr.New(srerr.IO, "write record: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		return srerr.New(srerr.IO, "flush: %v", err)
	}
	if err := unix.Fdatasync(int(l.f.Fd())); err != nil {
		return srerr.New(srerr.IO, "fdatasync: %v", err)
	}
	return nil
}

// ReadRecords reads back the length-prefixed records written by
// WriteRecords. It does not require the caller to hold the FileLock.
func (s *Store) ReadRecords(module string, ds Datastore) ([][]byte, *srerr.Error) {
	f, err := os.Open(s.path(module, ds))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, srerr.New(srerr.IO, "open %s: %v", module, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var records [][]byte
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, srerr.New(srerr.IO, "read header: %v", err)
		}
		n := binary.BigEndian.Uint32(hdr[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, srerr.New(srerr.IO, "read record: %v", err)
		}
		records = append(records, buf)
	}
	return records, nil
}

// FilePath exposes the backing file path for a module's datastore, used by
// the access-control layer to run POSIX permission checks against the file
// that actually gates the data.
func (s *Store) FilePath(module string, ds Datastore) string {
	return s.path(module, ds)
}

// PersistPath exposes the path of a module's durable-subscription index
// file.
func (s *Store) PersistPath(module string) string {
	return s.persistPath(module)
}
