package fs

import (
	"github.com/eduos/kernelfs/bpath"
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
)

// resolveParent walks every component of path except the last,
// starting at root if path is absolute or at cwd otherwise, and
// returns the directory inode the final component should be looked
// up or created in, plus that final component's name. It mirrors
// parse_path's handling of "." and ".." while walking.
//
// Caller must hold fsys.mu; the returned inode is an open reference
// the caller is responsible for closing.
func (fsys *Filesystem) resolveParent(cwd *Inode, path string) (*Inode, string, defs.Err_t) {
	parts := bpath.Split(path)
	if len(parts) == 0 {
		// path was "/", "", or all slashes: there is no final
		// component to split off.
		root, err := fsys.iget(RootDirSector)
		return root, "/", err
	}

	var dir *Inode
	var err defs.Err_t
	if bpath.IsAbs(path) {
		dir, err = fsys.iget(RootDirSector)
	} else {
		dir, err = fsys.iget(cwd.Sector())
	}
	if err != 0 {
		return nil, "", err
	}

	for _, comp := range parts[:len(parts)-1] {
		var next *Inode
		switch comp {
		case ".":
			next = dir
		case "..":
			next, err = fsys.iget(dir.Parent())
			fsys.closeInode(dir)
			if err != 0 {
				return nil, "", err
			}
		default:
			sector, ok := fsys.dirLookup(dir, comp)
			fsys.closeInode(dir)
			if !ok {
				return nil, "", defs.ENOENT
			}
			next, err = fsys.iget(common.Sector_t(sector))
			if err != 0 {
				return nil, "", err
			}
			if !next.IsDir() {
				fsys.closeInode(next)
				return nil, "", defs.ENOTDIR
			}
		}
		dir = next
	}
	return dir, parts[len(parts)-1], 0
}

// resolve fully resolves path to its inode, following every
// component including the last. Caller must hold fsys.mu.
func (fsys *Filesystem) resolve(cwd *Inode, path string) (*Inode, defs.Err_t) {
	switch path {
	case "/":
		return fsys.iget(RootDirSector)
	}
	parent, last, err := fsys.resolveParent(cwd, path)
	if err != 0 {
		return nil, err
	}
	switch last {
	case ".", "/":
		return parent, 0
	case "..":
		ino, err := fsys.iget(parent.Parent())
		fsys.closeInode(parent)
		return ino, err
	}
	sector, ok := fsys.dirLookup(parent, last)
	fsys.closeInode(parent)
	if !ok {
		return nil, defs.ENOENT
	}
	return fsys.iget(common.Sector_t(sector))
}
