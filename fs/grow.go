package fs

import (
	"fmt"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
)

// checkCapacity pre-flights whether deltaSectors more data sectors can
// be allocated, accounting for the indirect blocks that allocating
// them might also require. It mirrors check_length exactly, including
// that it sizes indirect-block overhead off the delta count rather
// than the resulting absolute sector count — an approximation in the
// original that is preserved here rather than "corrected", per the
// open question on this exact point.
func checkCapacity(deltaSectors int, free uint) bool {
	total := deltaSectors
	if deltaSectors > limits.DirectBlocks {
		total++
	}
	if deltaSectors > limits.SectorsBeforeDouble {
		total++
		extra := deltaSectors - limits.SectorsBeforeDouble
		total += (extra + limits.PtrsPerSector - 1) / limits.PtrsPerSector
	}
	return total <= int(free)
}

// allocateFirstLevel fills (or resumes filling) one single-indirect
// block, allocating the block itself on first use. *sector is read on
// resume and written on exit; *remaining and *starting are updated in
// place the way the original's out-parameters are.
func (fsys *Filesystem) allocateFirstLevel(sector *common.Sector_t, remaining, starting *int) defs.Err_t {
	length := *remaining
	start := *starting
	numFL := length
	if numFL > limits.PtrsPerSector {
		numFL = limits.PtrsPerSector
	}
	if start < limits.PtrsPerSector {
		var fl [limits.PtrsPerSector]uint32
		if start == 0 {
			s, ok := fsys.freeMap.Allocate()
			if !ok {
				return defs.ENOSPC
			}
			*sector = s
		} else {
			if err := fsys.readIndirect(*sector, &fl); err != 0 {
				return err
			}
		}
		for i := start; i < numFL; i++ {
			s, ok := fsys.freeMap.Allocate()
			if !ok {
				return defs.ENOSPC
			}
			fl[i] = uint32(s)
			fsys.writeZeroSector(s)
		}
		if err := fsys.writeIndirect(*sector, &fl); err != 0 {
			return err
		}
	}
	*remaining -= numFL
	if start < limits.PtrsPerSector {
		*starting = 0
	} else {
		*starting = start - limits.PtrsPerSector
	}
	return 0
}

// extend grows disk's index so it spans totalSectors data sectors in
// total, resuming from startingSector (both absolute counts). It is
// the single growth primitive used by both inode creation (starting
// from zero) and write-time extension (resuming from the current
// length).
func (fsys *Filesystem) extend(d *DiskInode, totalSectors, startingSector int) defs.Err_t {
	fsys.stats.Ngrow.inc()
	if fs_debug {
		fmt.Printf("extend: %v -> %v sectors, starting at %v\n", startingSector, totalSectors, startingSector)
	}
	numDirect := totalSectors
	if numDirect > limits.DirectBlocks {
		numDirect = limits.DirectBlocks
	}
	for i := startingSector; i < numDirect; i++ {
		s, ok := fsys.freeMap.Allocate()
		if !ok {
			return defs.ENOSPC
		}
		d.DataBlocks[i] = uint32(s)
		fsys.writeZeroSector(s)
	}
	if startingSector < limits.DirectBlocks {
		startingSector = 0
	} else {
		startingSector -= limits.DirectBlocks
	}
	totalSectors -= numDirect
	if totalSectors <= 0 {
		return 0
	}

	single := common.Sector_t(d.DataBlocks[limits.IndexOfSingle])
	if err := fsys.allocateFirstLevel(&single, &totalSectors, &startingSector); err != 0 {
		return err
	}
	d.DataBlocks[limits.IndexOfSingle] = uint32(single)
	if totalSectors <= 0 {
		return 0
	}

	var dl [limits.PtrsPerSector]uint32
	var double common.Sector_t
	if startingSector == 0 {
		s, ok := fsys.freeMap.Allocate()
		if !ok {
			return defs.ENOSPC
		}
		double = s
	} else {
		double = common.Sector_t(d.DataBlocks[limits.IndexOfDouble])
		if err := fsys.readIndirect(double, &dl); err != 0 {
			return err
		}
	}
	numSL := (totalSectors + limits.PtrsPerSector - 1) / limits.PtrsPerSector
	for i := 0; i < numSL; i++ {
		sl := common.Sector_t(dl[i])
		if err := fsys.allocateFirstLevel(&sl, &totalSectors, &startingSector); err != 0 {
			return err
		}
		dl[i] = uint32(sl)
	}
	if err := fsys.writeIndirect(double, &dl); err != 0 {
		return err
	}
	d.DataBlocks[limits.IndexOfDouble] = uint32(double)
	return 0
}

// byteToSector resolves a byte offset within an inode of the given
// published length to the sector that holds it, or NoSector if pos is
// at or beyond length.
func (fsys *Filesystem) byteToSector(d *DiskInode, pos, length int) (common.Sector_t, defs.Err_t) {
	if pos >= length {
		return common.NoSector, 0
	}
	idx := pos / limits.SectorSize
	if idx < limits.DirectBlocks {
		return common.Sector_t(d.DataBlocks[idx]), 0
	}
	idx -= limits.DirectBlocks
	if idx < limits.PtrsPerSector {
		var fl [limits.PtrsPerSector]uint32
		if err := fsys.readIndirect(common.Sector_t(d.DataBlocks[limits.IndexOfSingle]), &fl); err != 0 {
			return common.NoSector, err
		}
		return common.Sector_t(fl[idx]), 0
	}
	idx -= limits.PtrsPerSector
	var dl [limits.PtrsPerSector]uint32
	if err := fsys.readIndirect(common.Sector_t(d.DataBlocks[limits.IndexOfDouble]), &dl); err != 0 {
		return common.NoSector, err
	}
	slIdx := idx / limits.PtrsPerSector
	slOff := idx % limits.PtrsPerSector
	var fl [limits.PtrsPerSector]uint32
	if err := fsys.readIndirect(common.Sector_t(dl[slIdx]), &fl); err != 0 {
		return common.NoSector, err
	}
	return common.Sector_t(fl[slOff]), 0
}

// createInode writes a fresh inode at sector, preallocating enough
// data sectors for length bytes.
func (fsys *Filesystem) createInode(sector common.Sector_t, length int, parent common.Sector_t, isDir bool) defs.Err_t {
	sectors := bytesToSectors(length)
	if !checkCapacity(sectors, fsys.freeMap.CountFree()) {
		return defs.ENOSPC
	}
	var d DiskInode
	if err := fsys.extend(&d, sectors, 0); err != 0 {
		return err
	}
	d.Length = uint32(length)
	d.Parent = uint32(parent)
	d.IsDir = isDir
	if err := fsys.disk.WriteSector(sector, d.encode()); err != nil {
		return defs.EIO
	}
	fsys.stats.Nicreate.inc()
	return 0
}
