package fs

import (
	"fmt"
	"sync"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
)

// Inode is the in-memory, reference-counted handle for one on-disk
// inode. Two mutexes protect disjoint concerns: writeLock serializes
// the extend-then-publish sequence that grows a file, and dirLock
// serializes structural changes to a directory's entry list. A third,
// mu, guards the small bookkeeping fields (open count, removed flag,
// deny-write count) and the cached disk image itself.
type Inode struct {
	mu        sync.Mutex
	writeLock sync.Mutex
	dirLock   sync.Mutex

	sector common.Sector_t
	disk   DiskInode

	openCount int
	removed   bool
	denyWrite int

	ops *opStats
}

func (ino *Inode) Sector() common.Sector_t { return ino.sector }

func (ino *Inode) IsDir() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.disk.IsDir
}

func (ino *Inode) Parent() common.Sector_t {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return common.Sector_t(ino.disk.Parent)
}

func (ino *Inode) Length() int {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	ino.ops.Nistat.inc()
	return int(ino.disk.Length)
}

// iget returns the live Inode for sector, opening and reading it from
// disk if it is not already cached. Must be called with fsys.mu held.
func (fsys *Filesystem) iget(sector common.Sector_t) (*Inode, defs.Err_t) {
	if ino, ok := fsys.openInodes[sector]; ok {
		ino.mu.Lock()
		ino.openCount++
		ino.mu.Unlock()
		fsys.stats.Nreopen.inc()
		return ino, 0
	}
	buf := make([]byte, limits.SectorSize)
	if err := fsys.disk.ReadSector(sector, buf); err != nil {
		return nil, defs.EIO
	}
	d, ok := decodeDiskInode(buf)
	if !ok {
		return nil, defs.ENOENT
	}
	ino := &Inode{sector: sector, disk: d, openCount: 1, ops: fsys.stats}
	fsys.openInodes[sector] = ino
	fsys.stats.Nnamei.inc()
	fsys.stats.Nifill.inc()
	if fs_debug {
		fmt.Printf("iget: fill sector %v len %v dir? %v\n", sector, d.Length, d.IsDir)
	}
	return ino, 0
}

// closeInode drops one reference to ino. When the count reaches zero and
// the inode had been removed, its sectors are released back to the
// free map and the on-disk image is forgotten. Callers must already
// hold fsys.mu (the filesystem's global operation lock), same as
// iget.
func (fsys *Filesystem) closeInode(ino *Inode) defs.Err_t {
	ino.mu.Lock()
	ino.openCount--
	remove := ino.openCount == 0 && ino.removed
	count := ino.openCount
	ino.mu.Unlock()
	fsys.stats.Nclose.inc()

	if count == 0 {
		delete(fsys.openInodes, ino.sector)
	}
	if remove {
		fsys.releaseInode(ino)
	}
	return 0
}

// destroyInode frees a freshly created, never-opened inode and its
// data sectors, used to roll back a create/mkdir whose directory
// entry insertion failed after the inode itself was written.
func (fsys *Filesystem) destroyInode(sector common.Sector_t) {
	buf := make([]byte, limits.SectorSize)
	if err := fsys.disk.ReadSector(sector, buf); err == nil {
		if d, ok := decodeDiskInode(buf); ok {
			fsys.releaseData(&d, bytesToSectors(int(d.Length)))
		}
	}
	fsys.freeMap.Release(sector)
}

func (fsys *Filesystem) releaseInode(ino *Inode) {
	ino.mu.Lock()
	sectors := bytesToSectors(int(ino.disk.Length))
	d := ino.disk
	ino.mu.Unlock()

	fsys.releaseData(&d, sectors)
	fsys.freeMap.Release(ino.sector)
	fsys.stats.Nifree.inc()
}

// releaseData walks the index out to numSectors, releasing every data
// sector and every indirect block it passes through. It mirrors
// release_data's direct/single-indirect/double-indirect walk.
func (fsys *Filesystem) releaseData(d *DiskInode, numSectors int) {
	direct := numSectors
	if direct > limits.DirectBlocks {
		direct = limits.DirectBlocks
	}
	for i := 0; i < direct; i++ {
		fsys.freeMap.Release(common.Sector_t(d.DataBlocks[i]))
	}
	remaining := numSectors - limits.DirectBlocks
	if remaining <= 0 {
		return
	}
	single := common.Sector_t(d.DataBlocks[limits.IndexOfSingle])
	releasedBySingle := fsys.releaseFirstLevel(single, remaining)
	fsys.freeMap.Release(single)

	remaining -= releasedBySingle
	if remaining <= 0 {
		return
	}
	double := common.Sector_t(d.DataBlocks[limits.IndexOfDouble])
	var dl [limits.PtrsPerSector]uint32
	fsys.readIndirect(double, &dl)
	for i := 0; i < limits.PtrsPerSector && remaining > 0; i++ {
		n := fsys.releaseFirstLevel(common.Sector_t(dl[i]), remaining)
		fsys.freeMap.Release(common.Sector_t(dl[i]))
		remaining -= n
	}
	fsys.freeMap.Release(double)
}

func (fsys *Filesystem) releaseFirstLevel(sector common.Sector_t, remaining int) int {
	n := remaining
	if n > limits.PtrsPerSector {
		n = limits.PtrsPerSector
	}
	var fl [limits.PtrsPerSector]uint32
	fsys.readIndirect(sector, &fl)
	for i := 0; i < n; i++ {
		fsys.freeMap.Release(common.Sector_t(fl[i]))
	}
	return n
}

// markRemoved marks ino for deletion: the directory entry pointing at it
// is removed immediately by the caller, but the inode's blocks are
// not released until the last open handle closes.
func (ino *Inode) markRemoved() {
	ino.mu.Lock()
	ino.removed = true
	ino.mu.Unlock()
}

func (ino *Inode) IsRemoved() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.removed
}

func (ino *Inode) DenyWrite() {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	ino.denyWrite++
}

func (ino *Inode) AllowWrite() {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.denyWrite > 0 {
		ino.denyWrite--
	}
}

func (ino *Inode) writeDenied() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.denyWrite > 0
}

func bytesToSectors(n int) int {
	return (n + limits.SectorSize - 1) / limits.SectorSize
}

func (fsys *Filesystem) readIndirect(sector common.Sector_t, out *[limits.PtrsPerSector]uint32) defs.Err_t {
	if sector == common.NoSector {
		return 0
	}
	buf := make([]byte, limits.SectorSize)
	if err := fsys.disk.ReadSector(sector, buf); err != nil {
		return defs.EIO
	}
	for i := 0; i < limits.PtrsPerSector; i++ {
		out[i] = leUint32(buf[i*4 : i*4+4])
	}
	return 0
}

func (fsys *Filesystem) writeIndirect(sector common.Sector_t, in *[limits.PtrsPerSector]uint32) defs.Err_t {
	buf := make([]byte, limits.SectorSize)
	for i := 0; i < limits.PtrsPerSector; i++ {
		putLeUint32(buf[i*4:i*4+4], in[i])
	}
	if err := fsys.disk.WriteSector(sector, buf); err != nil {
		return defs.EIO
	}
	return 0
}

func (fsys *Filesystem) writeZeroSector(s common.Sector_t) defs.Err_t {
	buf := make([]byte, limits.SectorSize)
	if err := fsys.disk.WriteSector(s, buf); err != nil {
		return defs.EIO
	}
	return 0
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
