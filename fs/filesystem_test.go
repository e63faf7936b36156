package fs

import (
	"bytes"
	"testing"

	"github.com/eduos/kernelfs/blockdev"
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
)

func freshFS(t *testing.T, sectors common.Sector_t) *Filesystem {
	t.Helper()
	disk := blockdev.NewMem(common.RoleFilesys, sectors)
	fsys, err := Format(disk)
	if err != 0 {
		t.Fatalf("Format: %v", err)
	}
	return fsys
}

func rootInode(t *testing.T, fsys *Filesystem) *Inode {
	t.Helper()
	ino, err := fsys.RootInode()
	if err != 0 {
		t.Fatalf("RootInode: %v", err)
	}
	return ino
}

func TestCreateOpenWriteRead(t *testing.T) {
	fsys := freshFS(t, 4096)
	root := rootInode(t, fsys)

	if err := fsys.Create(root, "hello.txt", 0); err != 0 {
		t.Fatalf("Create: %v", err)
	}
	ino, err := fsys.Open(root, "hello.txt")
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}

	payload := []byte("hello, kernel filesystem")
	n, werr := fsys.Write(ino, payload, 0)
	if werr != 0 || n != len(payload) {
		t.Fatalf("Write: n=%d err=%v", n, werr)
	}

	buf := make([]byte, len(payload))
	n, rerr := fsys.Read(ino, buf, 0)
	if rerr != 0 || n != len(payload) {
		t.Fatalf("Read: n=%d err=%v", n, rerr)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("round trip mismatch: got %q want %q", buf, payload)
	}

	fsys.Close(ino)
	fsys.Close(root)
}

func TestCreateDuplicateRejected(t *testing.T) {
	fsys := freshFS(t, 2048)
	root := rootInode(t, fsys)
	defer fsys.Close(root)

	if err := fsys.Create(root, "dup", 0); err != 0 {
		t.Fatalf("first create: %v", err)
	}
	if err := fsys.Create(root, "dup", 0); err != defs.EEXIST {
		t.Fatalf("second create: got %v, want EEXIST", err)
	}
}

func TestWriteGrowsAcrossIndirectBoundary(t *testing.T) {
	fsys := freshFS(t, 1<<16)
	root := rootInode(t, fsys)
	defer fsys.Close(root)

	if err := fsys.Create(root, "big", 0); err != 0 {
		t.Fatalf("Create: %v", err)
	}
	ino, err := fsys.Open(root, "big")
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	defer fsys.Close(ino)

	// Past DirectBlocks*SectorSize (10*512=5120) forces the single
	// indirect block into play.
	offset := 20000
	payload := []byte("past the direct blocks")
	n, werr := fsys.Write(ino, payload, offset)
	if werr != 0 || n != len(payload) {
		t.Fatalf("Write: n=%d err=%v", n, werr)
	}
	if got := ino.Length(); got != offset+len(payload) {
		t.Fatalf("Length = %d, want %d", got, offset+len(payload))
	}

	buf := make([]byte, len(payload))
	n, rerr := fsys.Read(ino, buf, offset)
	if rerr != 0 || n != len(payload) || !bytes.Equal(buf, payload) {
		t.Fatalf("readback mismatch: n=%d err=%v buf=%q", n, rerr, buf)
	}

	// Bytes before the write, still within the published length,
	// must read back as zero (extend zeros new sectors eagerly).
	zeros := make([]byte, 16)
	fsys.Read(ino, zeros, 0)
	for i, b := range zeros {
		if b != 0 {
			t.Fatalf("byte %d not zero-filled: %d", i, b)
		}
	}
}

func TestMkdirAndReaddir(t *testing.T) {
	fsys := freshFS(t, 4096)
	root := rootInode(t, fsys)
	defer fsys.Close(root)

	if err := fsys.Mkdir(root, "sub"); err != 0 {
		t.Fatalf("Mkdir: %v", err)
	}
	sub, err := fsys.Open(root, "sub")
	if err != 0 {
		t.Fatalf("Open sub: %v", err)
	}
	if !sub.IsDir() {
		t.Fatalf("sub is not a directory")
	}
	if err := fsys.Create(sub, "leaf", 0); err != 0 {
		t.Fatalf("Create leaf: %v", err)
	}

	pos := 0
	names := map[string]bool{}
	for {
		name, ok := fsys.ReaddirNext(sub, &pos)
		if !ok {
			break
		}
		names[name] = true
	}
	if !names["leaf"] {
		t.Fatalf("readdir did not report leaf: %v", names)
	}
	fsys.Close(sub)
}

func TestRemoveDefersReclaimUntilClose(t *testing.T) {
	fsys := freshFS(t, 2048)
	root := rootInode(t, fsys)
	defer fsys.Close(root)

	if err := fsys.Create(root, "doomed", 100); err != 0 {
		t.Fatalf("Create: %v", err)
	}
	ino, err := fsys.Open(root, "doomed")
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	if err := fsys.Remove(root, "doomed"); err != 0 {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fsys.Open(root, "doomed"); err != defs.ENOENT {
		t.Fatalf("Open after remove: got %v, want ENOENT", err)
	}
	if !ino.IsRemoved() {
		t.Fatalf("inode not marked removed")
	}
	// The still-open handle keeps working until closed.
	buf := make([]byte, 4)
	if _, rerr := fsys.Read(ino, buf, 0); rerr != 0 {
		t.Fatalf("read after remove: %v", rerr)
	}
	fsys.Close(ino)
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	fsys := freshFS(t, 4096)
	root := rootInode(t, fsys)
	defer fsys.Close(root)

	fsys.Mkdir(root, "d")
	sub, _ := fsys.Open(root, "d")
	fsys.Create(sub, "child", 0)
	fsys.Close(sub)

	if err := fsys.Remove(root, "d"); err != defs.ENOTEMPTY {
		t.Fatalf("Remove non-empty dir: got %v, want ENOTEMPTY", err)
	}
}

func TestChdirAndDotDot(t *testing.T) {
	fsys := freshFS(t, 4096)
	root := rootInode(t, fsys)
	defer fsys.Close(root)

	fsys.Mkdir(root, "a")
	sub, err := fsys.Chdir(root, "a")
	if err != 0 {
		t.Fatalf("Chdir: %v", err)
	}
	parent, err := fsys.Open(sub, "..")
	if err != 0 {
		t.Fatalf("Open ..: %v", err)
	}
	if parent.Sector() != root.Sector() {
		t.Fatalf("..: got sector %d, want root sector %d", parent.Sector(), root.Sector())
	}
	fsys.Close(parent)
	fsys.Close(sub)
}
