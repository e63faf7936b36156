// Package fs implements the on-disk filesystem: a twelve-entry
// indexed inode layer, directories stored as ordinary inodes holding
// fixed-width entry records, and a path-resolving facade on top. It is
// grounded directly on inode.c, directory.c and filesys.c from the
// original Pintos sources, translated into Go's idiom of explicit
// mutexes and Err_t-style returns rather than C's single global lock
// plus asserts.
package fs

import (
	"sync"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
	"github.com/google/uuid"
)

// Filesystem is the facade every syscall handler talks to. mu is the
// single global lock serializing every operation end to end, mirroring
// the original's filesys_lock: one lock, acquired for the duration of
// one whole operation, never released partway through.
type Filesystem struct {
	mu sync.Mutex

	disk       common.Disk
	super      Superblock_t
	freeMap    *FreeMap
	openInodes map[common.Sector_t]*Inode
	stats      *opStats
}

// Mount reads the superblock and free map off disk and returns a
// ready-to-use Filesystem. The disk is assumed to have already been
// formatted by Format.
func Mount(disk common.Disk) (*Filesystem, defs.Err_t) {
	buf := make([]byte, limits.SectorSize)
	if err := disk.ReadSector(SectorSuperblock, buf); err != nil {
		return nil, defs.EIO
	}
	super := decodeSuperblock(buf)
	if super.Magic != superblockMagic {
		return nil, defs.EINVAL
	}
	dataSectors := uint(super.TotalSectors - super.DataStart)
	fm, err := loadFreeMap(disk, common.Sector_t(super.FreeMapStart), uint(super.FreeMapLen), dataSectors)
	if err != nil {
		return nil, defs.EIO
	}
	return &Filesystem{
		disk:       disk,
		super:      super,
		freeMap:    fm,
		openInodes: make(map[common.Sector_t]*Inode),
		stats:      newOpStats(),
	}, 0
}

// Format lays down a fresh superblock, an empty free map and a root
// directory preallocated with RootDirEntries slots, the way do_format
// builds a fresh partition.
func Format(disk common.Disk) (*Filesystem, defs.Err_t) {
	total := disk.NumSectors()
	// Free-map bitmap sectors start right after the fixed boot,
	// superblock and root-directory sectors.
	fmStart := RootDirSector + 1
	dataStart := total // computed below once we know the bitmap's length
	reserved := uint(fmStart)
	dataSectorsGuess := uint(total) - reserved
	fmLen := uint((dataSectorsGuess + limits.SectorSize*8 - 1) / (limits.SectorSize * 8))
	dataStart = fmStart + common.Sector_t(fmLen)
	dataSectors := uint(total - dataStart)

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, defs.EIO
	}
	super := Superblock_t{
		Magic:         superblockMagic,
		TotalSectors:  uint32(total),
		FreeMapStart:  uint32(fmStart),
		FreeMapLen:    uint32(fmLen),
		DataStart:     uint32(dataStart),
		RootDirSector: uint32(RootDirSector),
	}
	copy(super.VolumeID[:], id[:])

	fsys := &Filesystem{
		disk:       disk,
		super:      super,
		freeMap:    newFreeMap(dataStart, dataSectors),
		openInodes: make(map[common.Sector_t]*Inode),
		stats:      newOpStats(),
	}

	if werr := disk.WriteSector(SectorSuperblock, super.encode()); werr != nil {
		return nil, defs.EIO
	}
	// Root directory's own parent is itself, so ".." at the root
	// stays at the root rather than dereferencing a nonexistent
	// sector 0.
	if ferr := fsys.createInode(RootDirSector, limits.RootDirEntries*DirEntrySize, RootDirSector, true); ferr != 0 {
		return nil, ferr
	}
	if perr := fsys.freeMap.persist(disk, fmStart, fmLen); perr != nil {
		return nil, defs.EIO
	}
	return fsys, 0
}

// Stats summarizes cumulative operation counters, in the teacher's
// reflect-driven Stats() string idiom.
func (fsys *Filesystem) Stats() string { return fsys.stats.String() }

// RootInode returns an opened reference to the root directory, used
// to seed a new process's working directory.
func (fsys *Filesystem) RootInode() (*Inode, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.iget(RootDirSector)
}

// Open resolves path relative to cwd and returns an opened reference
// to the resulting inode.
func (fsys *Filesystem) Open(cwd *Inode, path string) (*Inode, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.resolve(cwd, path)
}

// Close releases one reference to ino, freeing its storage if it was
// the last reference to a removed inode.
func (fsys *Filesystem) Close(ino *Inode) defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.closeInode(ino)
}

// Create makes a new plain file at path with the given initial size,
// rejecting a last component of "", ".", ".." or "/".
func (fsys *Filesystem) Create(cwd *Inode, path string, initialSize int) defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parent, name, err := fsys.resolveParent(cwd, path)
	if err != 0 {
		return err
	}
	defer fsys.closeInode(parent)
	if name == "" || name == "." || name == ".." || name == "/" {
		return defs.EINVAL
	}
	sector, ok := fsys.freeMap.Allocate()
	if !ok {
		return defs.ENOSPC
	}
	if cerr := fsys.createInode(sector, initialSize, parent.Sector(), false); cerr != 0 {
		fsys.freeMap.Release(sector)
		return cerr
	}
	if aerr := fsys.dirAdd(parent, name, uint32(sector)); aerr != 0 {
		fsys.destroyInode(sector)
		return aerr
	}
	return 0
}

// Mkdir makes a new directory at path, preallocated with
// RootDirEntries slots the way every directory in this filesystem is.
func (fsys *Filesystem) Mkdir(cwd *Inode, path string) defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parent, name, err := fsys.resolveParent(cwd, path)
	if err != 0 {
		return err
	}
	defer fsys.closeInode(parent)
	if name == "" || name == "." || name == ".." || name == "/" {
		return defs.EINVAL
	}
	sector, ok := fsys.freeMap.Allocate()
	if !ok {
		return defs.ENOSPC
	}
	if cerr := fsys.createInode(sector, limits.RootDirEntries*DirEntrySize, parent.Sector(), true); cerr != 0 {
		fsys.freeMap.Release(sector)
		return cerr
	}
	if aerr := fsys.dirAdd(parent, name, uint32(sector)); aerr != 0 {
		fsys.destroyInode(sector)
		return aerr
	}
	fsys.stats.Nmkdir.inc()
	return 0
}

// Remove unlinks name from its containing directory, resolved
// relative to cwd, deferring actual storage reclamation until the
// last open handle to the target closes.
func (fsys *Filesystem) Remove(cwd *Inode, path string) defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parent, name, err := fsys.resolveParent(cwd, path)
	if err != 0 {
		return err
	}
	defer fsys.closeInode(parent)
	fsys.stats.Nunlink.inc()
	return fsys.dirRemove(parent, name)
}

// Chdir resolves path to a directory inode, for the caller to
// substitute as the process's new working directory.
func (fsys *Filesystem) Chdir(cwd *Inode, path string) (*Inode, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	ino, err := fsys.resolve(cwd, path)
	if err != 0 {
		return nil, err
	}
	if !ino.IsDir() {
		fsys.closeInode(ino)
		return nil, defs.ENOTDIR
	}
	return ino, 0
}

// Read and Write wrap ReadAt/WriteAt under the global lock, for
// callers (the syscall layer) that don't otherwise need it held.
func (fsys *Filesystem) Read(ino *Inode, buf []byte, offset int) (int, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.ReadAt(ino, buf, offset)
}

func (fsys *Filesystem) Write(ino *Inode, buf []byte, offset int) (int, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.WriteAt(ino, buf, offset)
}

func (fsys *Filesystem) ReaddirNext(ino *Inode, pos *int) (string, bool) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Readdir(ino, pos)
}
