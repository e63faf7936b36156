package fs

import (
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
)

// entryCount returns how many fixed-width slots ino's byte payload
// currently holds, in-use or not.
func (fsys *Filesystem) entryCount(ino *Inode) int {
	return ino.Length() / DirEntrySize
}

func (fsys *Filesystem) readEntry(ino *Inode, slot int) (DirEntry, defs.Err_t) {
	buf := make([]byte, DirEntrySize)
	n, err := fsys.ReadAt(ino, buf, slot*DirEntrySize)
	if err != 0 {
		return DirEntry{}, err
	}
	if n < DirEntrySize {
		return DirEntry{}, 0
	}
	return decodeDirEntry(buf), 0
}

func (fsys *Filesystem) writeEntry(ino *Inode, slot int, e DirEntry) defs.Err_t {
	_, err := fsys.WriteAt(ino, e.encode(), slot*DirEntrySize)
	return err
}

// dirLookup does a linear scan for name, matching the original's
// static lookup helper.
func (fsys *Filesystem) dirLookup(dir *Inode, name string) (uint32, bool) {
	n := fsys.entryCount(dir)
	for i := 0; i < n; i++ {
		e, err := fsys.readEntry(dir, i)
		if err != 0 {
			return 0, false
		}
		if e.InUse && e.Name == name {
			return e.InodeSector, true
		}
	}
	return 0, false
}

// dirLookupSector does a linear scan for an entry pointing at the
// given inode sector, used only when removing "." from its own
// parent directory.
func (fsys *Filesystem) dirLookupSector(dir *Inode, sector uint32) (int, bool) {
	n := fsys.entryCount(dir)
	for i := 0; i < n; i++ {
		e, err := fsys.readEntry(dir, i)
		if err != 0 {
			return 0, false
		}
		if e.InUse && e.InodeSector == sector {
			return i, true
		}
	}
	return 0, false
}

// dirAdd inserts a new entry, reusing the first free slot if one
// exists and appending otherwise. Structural changes to a directory
// are serialized on dirLock.
func (fsys *Filesystem) dirAdd(dir *Inode, name string, sector uint32) defs.Err_t {
	if name == "" || len(name) > limits.MaxNameLen {
		return defs.ENAMETOOLONG
	}
	dir.dirLock.Lock()
	defer dir.dirLock.Unlock()

	if _, found := fsys.dirLookup(dir, name); found {
		return defs.EEXIST
	}
	n := fsys.entryCount(dir)
	slot := -1
	for i := 0; i < n; i++ {
		e, err := fsys.readEntry(dir, i)
		if err != 0 {
			return err
		}
		if !e.InUse {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = n
	}
	return fsys.writeEntry(dir, slot, DirEntry{InodeSector: sector, Name: name, InUse: true})
}

// dirCanRemove reports whether target may be unlinked from a
// directory: not the root and, if it is itself a directory, has no
// in-use entries of its own and at most one open handle. A regular
// file may be unlinked while open; its storage is reclaimed when the
// last handle closes. The open-count
// check is against target, never against the directory the entry is
// being removed from — including when the removed name is ".", where
// target and the enclosing directory are the same inode anyway, but
// the check is still phrased in terms of the inode being removed, not
// the directory performing the removal. This mirrors the original
// exactly rather than the "would make more sense" version; see the
// write-up on this open question for why it's kept as-is.
func (fsys *Filesystem) dirCanRemove(target *Inode) bool {
	if target.sector == RootDirSector {
		return false
	}
	if target.IsDir() {
		n := fsys.entryCount(target)
		for i := 0; i < n; i++ {
			e, err := fsys.readEntry(target, i)
			if err != 0 {
				return false
			}
			if e.InUse {
				return false
			}
		}
		target.mu.Lock()
		count := target.openCount
		target.mu.Unlock()
		return count <= 1
	}
	return true
}

// dirRemove clears the entry for name in dir and marks the target
// inode removed. Removing "." is special-cased: the entry lives in
// dir's parent, found by scanning for an entry whose sector equals
// dir's own sector, and the directory-structure lock taken is the
// parent's, not dir's.
func (fsys *Filesystem) dirRemove(dir *Inode, name string) defs.Err_t {
	var scanDir *Inode
	var slot int
	var targetSector uint32
	var found bool
	var parentOpened *Inode

	if name == "." {
		parent, err := fsys.iget(dir.Parent())
		if err != 0 {
			return defs.ENOENT
		}
		parentOpened = parent
		scanDir = parent
		slot, found = fsys.dirLookupSector(parent, uint32(dir.sector))
		targetSector = uint32(dir.sector)
	} else {
		scanDir = dir
		slot, found = fsys.dirLookupByNameSlot(dir, name)
		if found {
			e, _ := fsys.readEntry(dir, slot)
			targetSector = e.InodeSector
		}
	}
	if !found {
		if parentOpened != nil {
			fsys.closeInode(parentOpened)
		}
		return defs.ENOENT
	}

	scanDir.dirLock.Lock()
	target, err := fsys.iget(common.Sector_t(targetSector))
	if err != 0 {
		scanDir.dirLock.Unlock()
		if parentOpened != nil {
			fsys.closeInode(parentOpened)
		}
		return err
	}
	if !fsys.dirCanRemove(target) {
		scanDir.dirLock.Unlock()
		fsys.closeInode(target)
		if parentOpened != nil {
			fsys.closeInode(parentOpened)
		}
		return defs.ENOTEMPTY
	}
	werr := fsys.writeEntry(scanDir, slot, DirEntry{})
	scanDir.dirLock.Unlock()
	if werr != 0 {
		fsys.closeInode(target)
		if parentOpened != nil {
			fsys.closeInode(parentOpened)
		}
		return werr
	}
	target.markRemoved()
	fsys.closeInode(target)
	if parentOpened != nil {
		fsys.closeInode(parentOpened)
	}
	return 0
}

func (fsys *Filesystem) dirLookupByNameSlot(dir *Inode, name string) (int, bool) {
	n := fsys.entryCount(dir)
	for i := 0; i < n; i++ {
		e, err := fsys.readEntry(dir, i)
		if err != 0 {
			return 0, false
		}
		if e.InUse && e.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Readdir returns the next in-use entry's name at or after *pos,
// advancing *pos past it. It reports false once the directory is
// exhausted.
func (fsys *Filesystem) Readdir(dir *Inode, pos *int) (string, bool) {
	dir.dirLock.Lock()
	defer dir.dirLock.Unlock()
	n := fsys.entryCount(dir)
	for *pos < n {
		slot := *pos
		*pos++
		e, err := fsys.readEntry(dir, slot)
		if err != 0 {
			return "", false
		}
		if e.InUse {
			return e.Name, true
		}
	}
	return "", false
}
