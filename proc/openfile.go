package proc

import (
	"sync"

	"github.com/eduos/kernelfs/fs"
)

// OpenFile pairs an inode reference with the read/write cursor one
// process's file descriptor table entry tracks. Multiple descriptors
// (from separate Open calls, including across processes) can name the
// same inode, each with its own independent offset, matching reopen
// semantics in the original.
type OpenFile struct {
	mu     sync.Mutex
	inode  *fs.Inode
	offset int
}

func newOpenFile(ino *fs.Inode) *OpenFile {
	return &OpenFile{inode: ino}
}

func (f *OpenFile) Inode() *fs.Inode { return f.inode }

func (f *OpenFile) Seek(pos int) {
	f.mu.Lock()
	f.offset = pos
	f.mu.Unlock()
}

func (f *OpenFile) Tell() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Advance moves the cursor forward by n bytes, called after a
// successful read or write of n bytes at the prior offset.
func (f *OpenFile) Advance(n int) {
	f.mu.Lock()
	f.offset += n
	f.mu.Unlock()
}
