package vm

import (
	"fmt"

	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
	"github.com/eduos/kernelfs/mem"
)

// UserStackTop is the top of the user address range a stack grows
// down from, standing in for PHYS_BASE. Its exact value doesn't
// matter to any invariant this module checks; only the StackLimitBytes
// distance below it does.
const UserStackTop uintptr = 1 << 32

// Fault resolves a page fault at faultAddr for as, caused by a write
// if write is true. A return of 0 means the fault was resolved and
// the faulting instruction may be retried; any other Err_t means the
// fault is fatal and the caller must terminate the owning process —
// this module never distinguishes kill reasons beyond that, the same
// way the original collapses every kill() call site into one outcome.
func (m *Machine) Fault(as *AddressSpace, faultAddr uintptr, write bool) defs.Err_t {
	if vm_debug {
		fmt.Printf("Fault: addr %#x write %v\n", faultAddr, write)
	}
	if faultAddr >= UserStackTop {
		return defs.EACCES
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	upage := faultAddr &^ uintptr(limits.PageSize-1)

	if pte, ok := as.pt[upage]; ok && pte.Present {
		if write && !pte.Writable {
			return defs.EACCES
		}
		return 0
	}

	se, known := as.spt[upage]
	if !known && !isStackGrowth(faultAddr, as.StackPointer()) {
		return defs.EACCES
	}

	idx, page, pa := m.acquireFrame()

	// Stack growth and swap-in both hand the page fresh content with
	// nothing on backing store yet to reread, so the PTE must come up
	// dirty regardless of the access that triggered the fault,
	// mirroring grow_stack and the swap-read branch of page_fault.
	writable := true
	dirty := write
	if known {
		writable = se.Writable
		switch se.Location {
		case LocFile:
			m.readFileBacked(se, page)
		case LocSwap:
			m.swap.read(se.SwapSlot, page)
			se.SwapSlot = -1
			dirty = true
		}
		se.Location = LocFrame
	} else {
		se = &PageEntry{Upage: upage, Location: LocFrame, Writable: true, SwapSlot: -1}
		as.spt[upage] = se
		dirty = true
	}

	as.pt[upage] = &PTE{Present: true, Writable: writable, Accessed: true, Dirty: dirty, Frame: pa}
	m.frames[idx] = frameEntry{used: true, owner: as, upage: upage}
	m.stats.Nfault.inc()
	return 0
}

// isStackGrowth reports whether addr is within the stack's growth
// slack of esp and still above the 8MB stack limit, the same rule
// Fault uses to tell a legitimate stack extension from a wild
// pointer. ValidateRange reuses it to judge addresses it never
// actually faults in.
func isStackGrowth(addr, esp uintptr) bool {
	if addr >= UserStackTop {
		return false
	}
	if addr+limits.StackGrowthSlack < esp {
		return false
	}
	upage := addr &^ uintptr(limits.PageSize-1)
	return upage >= UserStackTop-limits.StackLimitBytes
}

// pageResident reports whether upage already has content backing it:
// either installed in the simulated page table, or merely known to
// the supplemental page table and not yet faulted in.
func (m *Machine) pageResident(as *AddressSpace, upage uintptr) bool {
	if pte, ok := as.pt[upage]; ok && pte.Present {
		return true
	}
	_, known := as.spt[upage]
	return known
}

func (m *Machine) readFileBacked(se *PageEntry, page *mem.Page) {
	n, _ := m.fsys.Read(se.FileIno, page[:se.ReadBytes], se.FileOff)
	for i := n; i < limits.PageSize; i++ {
		page[i] = 0
	}
	m.stats.Nfilein.inc()
}

// acquireFrame returns a frame ready to receive a page's content,
// evicting a victim first if the physical page arena is exhausted.
func (m *Machine) acquireFrame() (int, *mem.Page, mem.Pa_t) {
	page, pa, ok := m.arena.AcquireUserPage()
	if ok {
		for i := range m.frames {
			if !m.frames[i].used {
				m.frameAddrs[i] = pa
				return i, page, pa
			}
		}
		m.arena.ReleaseUserPage(pa)
	}
	return m.evictVictim()
}

// evictVictim runs the clock algorithm, writes the victim out to swap
// if it must (dirty, or has no file to fall back to) or simply drops
// it if it's a clean file-backed page, and returns the now-free frame
// zeroed and ready for reuse.
func (m *Machine) evictVictim() (int, *mem.Page, mem.Pa_t) {
	idx := m.evict()
	pa := m.frameAddrs[idx]
	f := m.frames[idx]
	victimPTE := f.owner.pt[f.upage]
	victimSPT := f.owner.spt[f.upage]
	page := m.arena.PageAt(pa)

	if victimSPT.FileIno != nil && !victimPTE.Dirty {
		victimSPT.Location = LocFile
	} else {
		slot := m.swap.write(page)
		victimSPT.Location = LocSwap
		victimSPT.SwapSlot = slot
		m.stats.Nswapout.inc()
	}
	victimPTE.Present = false
	for i := range page {
		page[i] = 0
	}
	m.frames[idx] = frameEntry{}
	m.stats.Nevict.inc()
	return idx, page, pa
}
