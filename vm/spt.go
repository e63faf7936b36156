// Package vm implements demand-paged virtual memory: a per-process
// supplemental page table tracking where each user page's true content
// lives, a frame table shared by every process with clock-hand
// eviction, and a swap area backing pages with nowhere else to go. It
// is grounded on page.c/page.h, frame.c/frame.h, swap.c/swap.h and
// exception.c's page_fault handler.
package vm

import (
	"sync"

	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/mem"
)

// Location is where a supplemental page table entry's true content
// currently lives.
type Location int

const (
	LocFrame Location = iota
	LocFile
	LocSwap
)

// PTE is this module's stand-in for a hardware page-table entry: the
// CPU would set Accessed and Dirty itself on every load/store and
// clear Present on eviction; here those transitions are made
// explicitly by the fault resolver and by Touch, since the real
// trap/interrupt path that would drive them is an external contract
// this module doesn't implement.
type PTE struct {
	Present  bool
	Writable bool
	Accessed bool
	Dirty    bool
	Frame    mem.Pa_t
}

// PageEntry is one supplemental page table record: everything needed
// to bring upage's content back into a frame regardless of where it
// currently lives.
type PageEntry struct {
	Upage     uintptr
	Location  Location
	Writable  bool
	FileIno   *fs.Inode
	FileOff   int
	ReadBytes int
	SwapSlot  int // -1 when not resident in swap
}

// AddressSpace is one process's virtual memory: its supplemental page
// table keyed by user page address, and its simulated page table of
// PTEs. Mutation goes through Machine, which holds the one lock that
// serializes page-fault handling system-wide, except for Touch, which
// sets PTE bits directly without taking that lock.
type AddressSpace struct {
	mu  sync.Mutex // guards esp only; spt/pt are guarded by Machine.mu
	spt map[uintptr]*PageEntry
	pt  map[uintptr]*PTE
	esp uintptr
}

func NewAddressSpace() *AddressSpace {
	return &AddressSpace{
		spt: make(map[uintptr]*PageEntry),
		pt:  make(map[uintptr]*PTE),
	}
}

// SetStackPointer records the most recently observed user stack
// pointer, consulted by the fault resolver to decide whether a fault
// below the lowest mapped stack page is a legitimate stack growth.
func (as *AddressSpace) SetStackPointer(esp uintptr) {
	as.mu.Lock()
	as.esp = esp
	as.mu.Unlock()
}

func (as *AddressSpace) StackPointer() uintptr {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.esp
}

// MappedPages reports how many pages the supplemental page table
// currently tracks, for callers (tests, process teardown checks) that
// need to confirm an address space was actually cleared.
func (as *AddressSpace) MappedPages() int {
	return len(as.spt)
}

// Touch simulates the CPU setting the accessed (and, on a write, the
// dirty) bit on upage's PTE. Call it after any successful user memory
// access a test or caller wants the eviction clock to see.
func (as *AddressSpace) Touch(upage uintptr, write bool) {
	if pte, ok := as.pt[upage]; ok {
		pte.Accessed = true
		if write {
			pte.Dirty = true
		}
	}
}
