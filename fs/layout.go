package fs

import (
	"encoding/binary"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/limits"
)

// Well-known sectors. Sector 0 is reserved for partition metadata that
// this module never interprets. The superblock and root directory
// follow it at fixed locations so mounting never needs to search.
const (
	SectorBoot        common.Sector_t = 0
	SectorSuperblock  common.Sector_t = 1
	RootDirSector     common.Sector_t = 2
)

const superblockMagic uint32 = 0x4b465331 // "KFS1"
const inodeMagic uint32 = 0x494e4445      // distinguishes a formatted inode sector from garbage

// Superblock_t is the on-disk volume header, stored in SectorSuperblock.
// Mount reads Magic, the free-map location and the data-region bounds
// from it; VolumeID and RootDirSector are descriptive only. No code
// below the Filesystem facade ever reads it directly.
type Superblock_t struct {
	Magic         uint32
	VolumeID      [16]byte
	TotalSectors  uint32
	FreeMapStart  uint32
	FreeMapLen    uint32
	DataStart     uint32
	RootDirSector uint32
}

func (s *Superblock_t) encode() []byte {
	buf := make([]byte, limits.SectorSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.Magic)
	copy(buf[4:20], s.VolumeID[:])
	binary.LittleEndian.PutUint32(buf[20:24], s.TotalSectors)
	binary.LittleEndian.PutUint32(buf[24:28], s.FreeMapStart)
	binary.LittleEndian.PutUint32(buf[28:32], s.FreeMapLen)
	binary.LittleEndian.PutUint32(buf[32:36], s.DataStart)
	binary.LittleEndian.PutUint32(buf[36:40], s.RootDirSector)
	return buf
}

func decodeSuperblock(buf []byte) Superblock_t {
	var s Superblock_t
	s.Magic = binary.LittleEndian.Uint32(buf[0:4])
	copy(s.VolumeID[:], buf[4:20])
	s.TotalSectors = binary.LittleEndian.Uint32(buf[20:24])
	s.FreeMapStart = binary.LittleEndian.Uint32(buf[24:28])
	s.FreeMapLen = binary.LittleEndian.Uint32(buf[28:32])
	s.DataStart = binary.LittleEndian.Uint32(buf[32:36])
	s.RootDirSector = binary.LittleEndian.Uint32(buf[36:40])
	return s
}

// DiskInode is the in-memory image of the fixed 512-byte on-disk inode
// record: a twelve-entry block index (ten direct, one single-indirect,
// one double-indirect), a published length, the parent directory's
// inode number and a directory flag. The remainder of the sector is
// unused padding, matching the original layout's reserved tail.
type DiskInode struct {
	DataBlocks [limits.NumIndexes]uint32
	Length     uint32
	Parent     uint32
	IsDir      bool
}

func (d *DiskInode) encode() []byte {
	buf := make([]byte, limits.SectorSize)
	binary.LittleEndian.PutUint32(buf[0:4], inodeMagic)
	off := 4
	for i := 0; i < limits.NumIndexes; i++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], d.DataBlocks[i])
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], d.Length)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], d.Parent)
	off += 4
	isdir := uint32(0)
	if d.IsDir {
		isdir = 1
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], isdir)
	return buf
}

func decodeDiskInode(buf []byte) (DiskInode, bool) {
	var d DiskInode
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != inodeMagic {
		return d, false
	}
	off := 4
	for i := 0; i < limits.NumIndexes; i++ {
		d.DataBlocks[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	d.Length = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	d.Parent = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	d.IsDir = binary.LittleEndian.Uint32(buf[off:off+4]) != 0
	return d, true
}

// DirEntrySize is the fixed width of one serialized directory entry:
// a sector number, a fixed-width name field and an in-use flag.
const DirEntrySize = 24

// DirEntry is one slot in a directory's byte payload.
type DirEntry struct {
	InodeSector uint32
	Name        string
	InUse       bool
}

func (e *DirEntry) encode() []byte {
	buf := make([]byte, DirEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], e.InodeSector)
	n := copy(buf[4:4+limits.MaxNameLen+1], e.Name)
	_ = n
	if e.InUse {
		buf[4+limits.MaxNameLen+1] = 1
	}
	return buf
}

func decodeDirEntry(buf []byte) DirEntry {
	var e DirEntry
	e.InodeSector = binary.LittleEndian.Uint32(buf[0:4])
	nameField := buf[4 : 4+limits.MaxNameLen+1]
	nul := len(nameField)
	for i, b := range nameField {
		if b == 0 {
			nul = i
			break
		}
	}
	e.Name = string(nameField[:nul])
	e.InUse = buf[4+limits.MaxNameLen+1] != 0
	return e
}
