package vm

import (
	"testing"

	"github.com/eduos/kernelfs/blockdev"
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/limits"
	"github.com/eduos/kernelfs/mem"
)

func freshMachine(t *testing.T, numFrames int) (*Machine, *fs.Filesystem) {
	t.Helper()
	disk := blockdev.NewMem(common.RoleFilesys, 4096)
	fsys, err := fs.Format(disk)
	if err != 0 {
		t.Fatalf("fs.Format: %v", err)
	}
	swap := blockdev.NewMem(common.RoleSwap, 4096)
	arena := mem.NewArena(numFrames)
	return NewMachine(arena, swap, fsys), fsys
}

func TestStackGrowthFault(t *testing.T) {
	m, _ := freshMachine(t, 8)
	as := NewAddressSpace()
	as.SetStackPointer(UserStackTop - limits.PageSize + 4)

	faultAddr := UserStackTop - limits.PageSize
	if err := m.Fault(as, faultAddr, false); err != 0 {
		t.Fatalf("stack growth fault: %v", err)
	}
	upage := faultAddr &^ uintptr(limits.PageSize-1)
	pte, ok := as.pt[upage]
	if !ok || !pte.Present {
		t.Fatalf("page not installed after stack growth")
	}
}

func TestFaultBelowStackLimitKills(t *testing.T) {
	m, _ := freshMachine(t, 8)
	as := NewAddressSpace()

	boundary := UserStackTop - limits.StackLimitBytes
	tooLow := boundary - limits.PageSize
	// Keep the fault within growth slack of esp so it's the stack
	// limit check, not the slack check, that rejects it.
	as.SetStackPointer(tooLow + 16)

	if err := m.Fault(as, tooLow, false); err == 0 {
		t.Fatalf("expected kill for fault below the stack growth limit")
	}
}

func TestFaultInKernelSpaceKills(t *testing.T) {
	m, _ := freshMachine(t, 8)
	as := NewAddressSpace()
	as.SetStackPointer(UserStackTop - 64)

	if err := m.Fault(as, UserStackTop, false); err == 0 {
		t.Fatalf("expected kill for fault at the user/kernel boundary")
	}
	if err := m.Fault(as, UserStackTop+limits.PageSize, false); err == 0 {
		t.Fatalf("expected kill for fault above the user/kernel boundary")
	}
}

func TestUnmappedAddressKills(t *testing.T) {
	m, _ := freshMachine(t, 8)
	as := NewAddressSpace()
	as.SetStackPointer(UserStackTop - 64)

	// An address nowhere near the stack and with no SPT entry.
	if err := m.Fault(as, 0x1000, false); err == 0 {
		t.Fatalf("expected kill for fault with no mapping and no stack growth")
	}
}

func TestFileBackedFaultReadsContent(t *testing.T) {
	m, fsys := freshMachine(t, 8)
	root, _ := fsys.RootInode()
	defer fsys.Close(root)

	fsys.Create(root, "prog", 0)
	ino, _ := fsys.Open(root, "prog")
	defer fsys.Close(ino)
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	fsys.Write(ino, payload, 0)

	as := NewAddressSpace()
	as.SetStackPointer(UserStackTop - 64)
	const upage = uintptr(0x400000)
	m.InstallFileBacked(as, upage, ino, 0, len(payload), false)

	if err := m.Fault(as, upage+10, false); err != 0 {
		t.Fatalf("file-backed fault: %v", err)
	}
	idx := -1
	for i, f := range m.frames {
		if f.used && f.owner == as && f.upage == upage {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("no frame installed for faulted page")
	}
	pa := m.frameAddrs[idx]
	page := m.arena.PageAt(pa)
	for i := 0; i < len(payload); i++ {
		if page[i] != payload[i] {
			t.Fatalf("byte %d: got %d want %d", i, page[i], payload[i])
		}
	}
	for i := len(payload); i < len(payload)+16 && i < limits.PageSize; i++ {
		if page[i] != 0 {
			t.Fatalf("byte %d beyond read_bytes not zero: %d", i, page[i])
		}
	}
}

func TestEvictionReclaimsExhaustedArena(t *testing.T) {
	m, _ := freshMachine(t, 2)
	as := NewAddressSpace()
	as.SetStackPointer(UserStackTop - 64)

	pages := []uintptr{
		UserStackTop - limits.PageSize,
		UserStackTop - 2*limits.PageSize,
		UserStackTop - 3*limits.PageSize,
	}
	// The stack pointer only legitimizes growth contiguous with it;
	// fault them in order so each is within slack of the lowest
	// mapped page once the stack pointer is lowered alongside it.
	for _, addr := range pages {
		as.SetStackPointer(addr + 32)
		if err := m.Fault(as, addr, true); err != 0 {
			t.Fatalf("fault at %#x: %v", addr, err)
		}
	}
	// With only 2 physical frames and 3 resident pages installed,
	// the clock must have evicted something to swap.
	evicted := 0
	for _, pe := range as.spt {
		if pe.Location == LocSwap {
			evicted++
		}
	}
	if evicted == 0 {
		t.Fatalf("expected at least one page evicted to swap")
	}
}
