// Package access implements the specification's Access Control component:
// resolving the connecting peer's identity via SO_PEERCRED, mapping a data
// path to the backing file whose POSIX permissions actually gate it, and
// scoping a privileged (uid 0) peer's identity for the duration of a single
// permission check. There is no ecosystem library for SO_PEERCRED in the
// retrieved corpus (golang.org/x/sys/unix exposes the raw syscall, which is
// the same amount of code any wrapper library would add), so this talks to
// golang.org/x/sys/unix directly, grounded on the pattern documented in
// other_examples/codefionn-scriptschnell__doc.go.
package access

import (
	"net"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sysrepo-go/sysrepod/srerr"
)

// PeerCreds is the identity captured at accept time via SO_PEERCRED.
type PeerCreds struct {
	UID uint32
	GID uint32
	PID int32
}

// CredsFromConn reads SO_PEERCRED off an accepted AF_UNIX connection.
func CredsFromConn(conn *net.UnixConn) (PeerCreds, *srerr.Error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return PeerCreds{}, srerr.New(srerr.Sys, "syscall conn: %v", err)
	}
	var cred *unix.Ucred
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return PeerCreds{}, srerr.New(srerr.Sys, "control: %v", ctrlErr)
	}
	if sockErr != nil {
		return PeerCreds{}, srerr.New(srerr.Sys, "getsockopt SO_PEERCRED: %v", sockErr)
	}
	return PeerCreds{UID: cred.Uid, GID: cred.Gid, PID: cred.Pid}, nil
}

// Mode is the access mode being checked, mirroring POSIX read/write bits.
type Mode int

const (
	Read Mode = iota
	Write
)

// Controller checks a peer's access to module data files.
type Controller struct {
	daemonUID uint32
}

func NewController() *Controller {
	return &Controller{daemonUID: uint32(os.Geteuid())}
}

// EffectiveUser resolves the user that permission checks should run as: the
// peer's own identity, unless the peer is privileged (uid 0), in which case
// the caller can request to act as an arbitrary named user for a single
// scoped operation via the identity parameter.
func (c *Controller) EffectiveUser(creds PeerCreds, actAs string) (*user.User, *srerr.Error) {
	if creds.UID == 0 && actAs != "" {
		u, err := user.Lookup(actAs)
		if err != nil {
			return nil, srerr.New(srerr.Unauthorized, "lookup user %q: %v", actAs, err)
		}
		return u, nil
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(creds.UID), 10))
	if err != nil {
		return nil, srerr.New(srerr.Unauthorized, "lookup uid %d: %v", creds.UID, err)
	}
	return u, nil
}

// CheckFile verifies that user has mode access to path, via POSIX
// permission bits (owner/group/other), matching what the kernel itself
// would enforce for a direct open(2).
func (c *Controller) CheckFile(u *user.User, path string, mode Mode) *srerr.Error {
	info, err := os.Stat(path)
	if err != nil {
		return srerr.New(srerr.IO, "stat %s: %v", path, err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return srerr.New(srerr.Internal, "unsupported stat type for %s", path)
	}
	uid, _ := strconv.ParseUint(u.Uid, 10, 32)
	gid, _ := strconv.ParseUint(u.Gid, 10, 32)

	perm := info.Mode().Perm()
	var bit os.FileMode
	if mode == Write {
		bit = 0o002
	} else {
		bit = 0o004
	}
	switch {
	case uint32(uid) == 0:
		return nil
	case uint32(uid) == stat.Uid:
		bit <<= 6
	case uint32(gid) == stat.Gid:
		bit <<= 3
	}
	if perm&bit == 0 {
		return srerr.NewPath(srerr.Unauthorized, path, "user %s lacks %v access", u.Username, mode)
	}
	return nil
}

// WithEffectiveIdentity runs fn with the process's effective uid/gid
// switched to u for its duration, used so a privileged daemon can perform a
// single filesystem operation with exactly the requesting user's
// permissions rather than its own. It always restores the prior identity,
// even if fn panics or returns an error.
func WithEffectiveIdentity(u *user.User, fn func() *srerr.Error) *srerr.Error {
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)
	origUID := unix.Geteuid()
	origGID := unix.Getegid()
	if err := syscall.Setegid(gid); err != nil {
		return srerr.New(srerr.Sys, "setegid: %v", err)
	}
	if err := syscall.Seteuid(uid); err != nil {
		syscall.Setegid(origGID)
		return srerr.New(srerr.Sys, "seteuid: %v", err)
	}
	defer func() {
		syscall.Seteuid(origUID)
		syscall.Setegid(origGID)
	}()
	return fn()
}

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}
