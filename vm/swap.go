package vm

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/limits"
	"github.com/eduos/kernelfs/mem"
)

// swapTable is the swap partition's free-slot bitmap, one bit per
// page-sized slot, each slot SectorsPerPage sectors wide. It mirrors
// swap.c's swap_table, again backed by a real bitset rather than
// hand-rolled word math.
type swapTable struct {
	mu    sync.Mutex
	disk  common.Disk
	slots *bitset.BitSet
}

func newSwapTable(disk common.Disk) *swapTable {
	numSlots := uint(disk.NumSectors() / limits.SectorsPerPage)
	return &swapTable{disk: disk, slots: bitset.New(numSlots)}
}

// write claims the lowest free slot and writes page into it, panicking
// if swap is exhausted the way swap_write does — this module has no
// graceful degradation path once both RAM and swap are full.
func (t *swapTable) write(page *mem.Page) int {
	t.mu.Lock()
	idx, ok := t.slots.NextClear(0)
	if !ok || idx >= t.slots.Len() {
		t.mu.Unlock()
		panic("vm: swap is full")
	}
	t.slots.Set(idx)
	t.mu.Unlock()

	base := common.Sector_t(idx * limits.SectorsPerPage)
	for i := 0; i < limits.SectorsPerPage; i++ {
		sector := base + common.Sector_t(i)
		t.disk.WriteSector(sector, page[i*limits.SectorSize:(i+1)*limits.SectorSize])
	}
	return int(idx)
}

// read loads slot's content into page and frees the slot.
func (t *swapTable) read(slot int, page *mem.Page) {
	base := common.Sector_t(slot * limits.SectorsPerPage)
	for i := 0; i < limits.SectorsPerPage; i++ {
		sector := base + common.Sector_t(i)
		t.disk.ReadSector(sector, page[i*limits.SectorSize:(i+1)*limits.SectorSize])
	}
	t.mu.Lock()
	t.slots.Clear(uint(slot))
	t.mu.Unlock()
}

// clear frees slot without reading it back, used when a process dies
// with a page still out in swap and nobody will ever read it.
func (t *swapTable) clear(slot int) {
	t.mu.Lock()
	t.slots.Clear(uint(slot))
	t.mu.Unlock()
}
