package fs

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/limits"
)

// FreeMap is the free-sector bitmap, treated as the opaque abstract
// data type the original free-map file is: callers allocate and
// release single sectors and never reach inside. Backed by a real
// bitset library instead of hand-rolled word-shifting.
type FreeMap struct {
	mu    sync.Mutex
	bits  *bitset.BitSet
	start common.Sector_t // first sector number the bitmap covers
}

func newFreeMap(start common.Sector_t, dataSectors uint) *FreeMap {
	return &FreeMap{bits: bitset.New(dataSectors), start: start}
}

// Allocate claims the lowest-numbered free sector and marks it used.
func (m *FreeMap) Allocate() (common.Sector_t, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.bits.NextClear(0)
	if !ok || idx >= m.bits.Len() {
		return common.NoSector, false
	}
	m.bits.Set(idx)
	return m.start + common.Sector_t(idx), true
}

// Release marks a previously allocated sector free again.
func (m *FreeMap) Release(s common.Sector_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := uint(s - m.start)
	m.bits.Clear(idx)
}

// CountFree returns the number of sectors still available, used by
// checkCapacity to pre-flight a growth request.
func (m *FreeMap) CountFree() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bits.Len() - m.bits.Count()
}

// persist serializes the bitmap to the sector range [start, start+len)
// on disk.
func (m *FreeMap) persist(disk common.Disk, start common.Sector_t, length uint) error {
	m.mu.Lock()
	raw, err := m.bits.MarshalBinary()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	buf := make([]byte, length*limits.SectorSize)
	copy(buf, raw)
	for i := uint(0); i < length; i++ {
		sectorBuf := buf[i*limits.SectorSize : (i+1)*limits.SectorSize]
		if err := disk.WriteSector(start+common.Sector_t(i), sectorBuf); err != nil {
			return err
		}
	}
	return nil
}

func loadFreeMap(disk common.Disk, start common.Sector_t, length uint, dataSectors uint) (*FreeMap, error) {
	buf := make([]byte, length*limits.SectorSize)
	for i := uint(0); i < length; i++ {
		sectorBuf := buf[i*limits.SectorSize : (i+1)*limits.SectorSize]
		if err := disk.ReadSector(start+common.Sector_t(i), sectorBuf); err != nil {
			return nil, err
		}
	}
	bits := bitset.New(dataSectors)
	if err := bits.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	// The data region the bitmap covers begins right after the bitmap's
	// own sectors, as Format lays it out.
	return &FreeMap{bits: bits, start: start + common.Sector_t(length)}, nil
}
