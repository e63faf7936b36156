package fs

import (
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
)

// ReadAt copies up to len(buf) bytes starting at offset into buf,
// stopping at the inode's published length. It never blocks behind
// writeLock: readers only ever see either the pre- or post-extension
// state, never a half-grown file, because length is published last.
func (fsys *Filesystem) ReadAt(ino *Inode, buf []byte, offset int) (int, defs.Err_t) {
	ino.mu.Lock()
	length := int(ino.disk.Length)
	d := ino.disk
	ino.mu.Unlock()
	fsys.stats.Niread.inc()

	total := 0
	for total < len(buf) {
		pos := offset + total
		if pos >= length {
			break
		}
		sectorOff := pos % limits.SectorSize
		chunk := limits.SectorSize - sectorOff
		if chunk > len(buf)-total {
			chunk = len(buf) - total
		}
		if pos+chunk > length {
			chunk = length - pos
		}
		sector, err := fsys.byteToSector(&d, pos, length)
		if err != 0 {
			return total, err
		}
		sbuf := make([]byte, limits.SectorSize)
		if sector != common.NoSector {
			if ierr := fsys.disk.ReadSector(sector, sbuf); ierr != nil {
				return total, defs.EIO
			}
		}
		copy(buf[total:total+chunk], sbuf[sectorOff:sectorOff+chunk])
		total += chunk
	}
	return total, 0
}

// WriteAt writes len(buf) bytes at offset, growing the file first if
// the write extends past the current length. Growth happens in two
// phases: new sectors are allocated and zeroed without publishing the
// new length, then the write itself is applied, and only then is the
// inode's length field (and its on-disk sector) updated. Concurrent
// readers therefore never observe a length that claims sectors whose
// content isn't there yet.
func (fsys *Filesystem) WriteAt(ino *Inode, buf []byte, offset int) (int, defs.Err_t) {
	fsys.stats.Niwrite.inc()
	if ino.writeDenied() {
		return 0, 0 // deny-write reads as zero bytes written, not a fault
	}
	end := offset + len(buf)

	ino.mu.Lock()
	curLength := int(ino.disk.Length)
	ino.mu.Unlock()

	grows := end > curLength
	if grows {
		ino.writeLock.Lock()
		ino.mu.Lock()
		curLength = int(ino.disk.Length)
		curSectors := bytesToSectors(curLength)
		finalSectors := bytesToSectors(end)
		d := ino.disk
		if finalSectors > curSectors {
			delta := finalSectors - curSectors
			if !checkCapacity(delta, fsys.freeMap.CountFree()) {
				ino.mu.Unlock()
				ino.writeLock.Unlock()
				return 0, 0 // best-effort: no space, zero bytes written
			}
			if err := fsys.extend(&d, finalSectors, curSectors); err != 0 {
				ino.mu.Unlock()
				ino.writeLock.Unlock()
				return 0, 0
			}
		}
		ino.disk = d
		ino.mu.Unlock()
	}

	ino.mu.Lock()
	d := ino.disk
	ino.mu.Unlock()

	total := 0
	for total < len(buf) {
		pos := offset + total
		sectorOff := pos % limits.SectorSize
		chunk := limits.SectorSize - sectorOff
		if chunk > len(buf)-total {
			chunk = len(buf) - total
		}
		sector, err := fsys.byteToSector(&d, pos, end)
		if err != 0 {
			break
		}
		var sbuf [limits.SectorSize]byte
		if sectorOff != 0 || chunk != limits.SectorSize {
			if ierr := fsys.disk.ReadSector(sector, sbuf[:]); ierr != nil {
				break
			}
		}
		copy(sbuf[sectorOff:sectorOff+chunk], buf[total:total+chunk])
		if ierr := fsys.disk.WriteSector(sector, sbuf[:]); ierr != nil {
			break
		}
		total += chunk
	}

	if grows {
		ino.mu.Lock()
		if end > int(ino.disk.Length) {
			ino.disk.Length = uint32(end)
		}
		d = ino.disk
		ino.mu.Unlock()
		fsys.stats.Niupdate.inc()
		if err := fsys.disk.WriteSector(ino.sector, d.encode()); err != nil {
			ino.writeLock.Unlock()
			fsys.stats.Ndo_write.inc()
			return total, defs.EIO
		}
		ino.writeLock.Unlock()
	}
	fsys.stats.Ndo_write.inc()
	return total, 0
}
