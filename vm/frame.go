package vm

import (
	"fmt"

	"github.com/eduos/kernelfs/mem"
)

// frameEntry records which address space and user page currently
// occupies one physical frame, mirroring frame.c's frame_entry.
type frameEntry struct {
	used  bool
	owner *AddressSpace
	upage uintptr
}

// evict runs the clock algorithm over the frame table to pick a
// victim: advance while the occupant's accessed bit is set, clearing
// it as we pass; stop at the first frame whose accessed bit is
// already clear. Caller holds m.mu.
func (m *Machine) evict() int {
	n := len(m.frames)
	for i := 0; i < 2*n; i++ { // at most one full extra sweep before every bit is clear
		idx := m.clockHand
		m.clockHand = (m.clockHand + 1) % n
		f := &m.frames[idx]
		if !f.used {
			continue
		}
		pte := f.owner.pt[f.upage]
		if pte != nil && pte.Accessed {
			pte.Accessed = false
			continue
		}
		if vm_debug {
			fmt.Printf("evict: victim frame %v upage %#x\n", idx, f.upage)
		}
		return idx
	}
	// reached only when no frame is in use: any in-use frame has its
	// accessed bit cleared on the first sweep and is picked on the
	// second. Fall back to the hand's current position.
	if vm_debug {
		fmt.Printf("evict: full sweep, falling back to frame %v\n", m.clockHand)
	}
	return m.clockHand
}

// frameForIndex returns the physical address backing frame i.
func (m *Machine) frameForIndex(i int) (mem.Pa_t, bool) {
	if !m.frames[i].used {
		return 0, false
	}
	return m.frameAddrs[i], true
}
