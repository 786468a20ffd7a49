package access

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

func TestCheckFileOwnerAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ietf-interfaces.startup")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewController()
	me, err := user.Current()
	if err != nil {
		t.Skipf("cannot resolve current user: %v", err)
	}
	if rerr := c.CheckFile(me, path, Read); rerr != nil {
		t.Fatalf("owner should have read access: %v", rerr)
	}
	if rerr := c.CheckFile(me, path, Write); rerr != nil {
		t.Fatalf("owner should have write access: %v", rerr)
	}
}

func TestCheckFileDeniesOtherWithoutPermission(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses all permission checks")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ietf-interfaces.startup")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewController()
	nobody := &user.User{Uid: "65534", Gid: "65534", Username: "nobody"}
	if rerr := c.CheckFile(nobody, path, Read); rerr == nil {
		t.Fatal("expected unauthorized for non-owner on 0600 file")
	}
}

func TestModeString(t *testing.T) {
	if Read.String() != "read" || Write.String() != "write" {
		t.Fatalf("unexpected mode strings: %q %q", Read, Write)
	}
}
