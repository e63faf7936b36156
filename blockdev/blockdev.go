// Package blockdev provides the concrete Disk backends used by this
// module: a file-backed disk for real use and an in-memory disk for
// tests. Both are thin wrappers over what the teacher's ahci_disk_t
// does with os.File in ufs.go's openDisk, minus the actual AHCI
// register programming, which is an explicit external contract.
package blockdev

import (
	"fmt"
	"os"
	"sync"

	"github.com/eduos/kernelfs/common"
)

// FileDisk backs a common.Disk with a single regular file, one sector
// per fixed-size region, addressed with ReadAt/WriteAt so concurrent
// callers never need to serialize on a shared offset.
type FileDisk struct {
	f       *os.File
	role    common.Role_t
	sectors common.Sector_t
}

// OpenFile opens (creating if necessary) a file-backed disk of exactly
// numSectors sectors. An existing file shorter than that is extended
// with zeros; a longer one is truncated to that size.
func OpenFile(path string, role common.Role_t, numSectors common.Sector_t) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	size := int64(numSectors) * common.SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDisk{f: f, role: role, sectors: numSectors}, nil
}

func (d *FileDisk) ReadSector(s common.Sector_t, buf []byte) error {
	if err := d.checkBounds(s, len(buf)); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf[:common.SectorSize], int64(s)*common.SectorSize)
	return err
}

func (d *FileDisk) WriteSector(s common.Sector_t, buf []byte) error {
	if err := d.checkBounds(s, len(buf)); err != nil {
		return err
	}
	_, err := d.f.WriteAt(buf[:common.SectorSize], int64(s)*common.SectorSize)
	return err
}

func (d *FileDisk) checkBounds(s common.Sector_t, buflen int) error {
	if s >= d.sectors {
		return fmt.Errorf("blockdev: sector %d out of range (disk has %d)", s, d.sectors)
	}
	if buflen < common.SectorSize {
		return fmt.Errorf("blockdev: buffer shorter than a sector (%d < %d)", buflen, common.SectorSize)
	}
	return nil
}

func (d *FileDisk) NumSectors() common.Sector_t { return d.sectors }
func (d *FileDisk) Role() common.Role_t         { return d.role }
func (d *FileDisk) Close() error                { return d.f.Close() }

// MemDisk is an in-memory common.Disk, used by tests that would
// otherwise need a scratch file on every run.
type MemDisk struct {
	mu   sync.Mutex
	data [][common.SectorSize]byte
	role common.Role_t
}

func NewMem(role common.Role_t, numSectors common.Sector_t) *MemDisk {
	return &MemDisk{data: make([][common.SectorSize]byte, numSectors), role: role}
}

func (d *MemDisk) ReadSector(s common.Sector_t, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(s) >= len(d.data) {
		return fmt.Errorf("blockdev: sector %d out of range (disk has %d)", s, len(d.data))
	}
	copy(buf, d.data[s][:])
	return nil
}

func (d *MemDisk) WriteSector(s common.Sector_t, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(s) >= len(d.data) {
		return fmt.Errorf("blockdev: sector %d out of range (disk has %d)", s, len(d.data))
	}
	copy(d.data[s][:], buf)
	return nil
}

func (d *MemDisk) NumSectors() common.Sector_t { return common.Sector_t(len(d.data)) }
func (d *MemDisk) Role() common.Role_t         { return d.role }
