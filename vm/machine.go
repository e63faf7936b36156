package vm

import (
	"sync"

	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/limits"
	"github.com/eduos/kernelfs/mem"
)

// Machine owns the frame table and swap area shared by every process
// and the single lock that serializes page-fault handling across all
// of them, mirroring the original's one-fault-at-a-time global
// vm_lock.
type Machine struct {
	mu sync.Mutex

	arena      mem.Allocator
	frames     []frameEntry
	frameAddrs []mem.Pa_t
	clockHand  int

	swap *swapTable
	fsys *fs.Filesystem

	stats *vmStats
}

// NewMachine builds a Machine over arena's physical pages, using
// swapDisk for backing store and fsys to service file-backed faults.
func NewMachine(arena mem.Allocator, swapDisk common.Disk, fsys *fs.Filesystem) *Machine {
	n := arena.NumPages()
	return &Machine{
		arena:      arena,
		frames:     make([]frameEntry, n),
		frameAddrs: make([]mem.Pa_t, n),
		swap:       newSwapTable(swapDisk),
		fsys:       fsys,
		stats:      newVMStats(),
	}
}

func (m *Machine) Stats() string { return m.stats.String() }

// InstallFileBacked records that upage's content, once faulted in,
// should be read from ino starting at fileOff for readBytes bytes
// (the remainder of the page, if any, zero-filled). No frame is
// allocated until the page is actually touched.
func (m *Machine) InstallFileBacked(as *AddressSpace, upage uintptr, ino *fs.Inode, fileOff, readBytes int, writable bool) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	as.spt[upage] = &PageEntry{
		Upage:     upage,
		Location:  LocFile,
		Writable:  writable,
		FileIno:   ino,
		FileOff:   fileOff,
		ReadBytes: readBytes,
		SwapSlot:  -1,
	}
	return 0
}

// FreeAddressSpace releases every resource as owns: frames return to
// the arena, swap slots are freed without being read back, and every
// PTE and SPT entry is dropped. It mirrors page_table_destroy's sweep
// over the hash table on process exit.
func (m *Machine) FreeAddressSpace(as *AddressSpace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for upage, pe := range as.spt {
		switch pe.Location {
		case LocFrame:
			if pte := as.pt[upage]; pte != nil {
				m.releaseFrameLocked(pte.Frame)
			}
		case LocSwap:
			if pe.SwapSlot >= 0 {
				m.swap.clear(pe.SwapSlot)
			}
		}
	}
	as.spt = make(map[uintptr]*PageEntry)
	as.pt = make(map[uintptr]*PTE)
}

// ValidateRange reports whether every byte of the n-byte user buffer
// starting at addr is safe for the syscall layer to read or write
// through as: non-null, entirely below the user/kernel boundary, and
// for each page covered either already known (present in the page
// table or the supplemental page table) or a legitimate stack growth
// under the same rule Fault applies. It is the args-reading path's
// check before Args.Buf/Args.Str0 are trusted, matching check_pointer
// validating both ends of a buffer before the syscall handler touches it.
func (m *Machine) ValidateRange(as *AddressSpace, addr uintptr, n int) bool {
	if addr == 0 || n < 0 {
		return false
	}
	end := addr + uintptr(n)
	if end < addr || end > UserStackTop {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	esp := as.StackPointer()
	for p := addr &^ uintptr(limits.PageSize-1); p < end; p += limits.PageSize {
		if m.pageResident(as, p) {
			continue
		}
		if !isStackGrowth(p, esp) {
			return false
		}
	}
	return true
}

func (m *Machine) releaseFrameLocked(pa mem.Pa_t) {
	for i, addr := range m.frameAddrs {
		if m.frames[i].used && addr == pa {
			m.frames[i] = frameEntry{}
			m.arena.ReleaseUserPage(pa)
			return
		}
	}
}
