// Package mem models the physical-page allocator the frame table sits
// on top of. Real physical memory management is an explicit external
// contract; Arena is the fixed-size stand-in this module tests and
// boots against, grounded on the teacher's Page_i/Physmem_t pairing of
// a Pa_t address space with a Dmap-style access path.
package mem

import (
	"fmt"
	"sync"

	"github.com/eduos/kernelfs/limits"
)

const PageSize = limits.PageSize

// Pa_t is a physical page address. It only ever needs to be compared
// and used to index into an Arena; nothing here interprets it as a
// real address.
type Pa_t uintptr

// Page is one physical page's worth of bytes.
type Page [PageSize]byte

// Allocator hands out and reclaims zero-filled physical pages. It is
// the seam the real kernel's page allocator would sit behind.
type Allocator interface {
	AcquireUserPage() (*Page, Pa_t, bool)
	ReleaseUserPage(pa Pa_t)
	NumPages() int
	PageAt(pa Pa_t) *Page
}

// Arena is a fixed-size slab Allocator, sized once at boot the way the
// teacher's frame_init probes palloc_get_page until it is exhausted to
// learn how many frames physical memory provides.
type Arena struct {
	mu    sync.Mutex
	pages []Page
	free  []bool
	base  Pa_t
}

// NewArena allocates a slab of n physical pages, every one initially
// free.
func NewArena(n int) *Arena {
	a := &Arena{
		pages: make([]Page, n),
		free:  make([]bool, n),
		base:  1, // never 0, so Pa_t(0) can serve as "no page"
	}
	for i := range a.free {
		a.free[i] = true
	}
	return a
}

func (a *Arena) NumPages() int { return len(a.pages) }

// AcquireUserPage returns the first free page, zeroed, along with its
// address. The bool is false when the arena is exhausted.
func (a *Arena) AcquireUserPage() (*Page, Pa_t, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, free := range a.free {
		if free {
			a.free[i] = false
			for j := range a.pages[i] {
				a.pages[i][j] = 0
			}
			return &a.pages[i], a.indexToPa(i), true
		}
	}
	return nil, 0, false
}

func (a *Arena) ReleaseUserPage(pa Pa_t) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.paToIndex(pa)
	if i < 0 || i >= len(a.pages) {
		panic(fmt.Sprintf("mem: release of out-of-range page %#x", pa))
	}
	a.free[i] = true
}

// PageAt dereferences a live page by address without touching the
// free bitmap; used by the frame table to read or write page contents
// it already owns.
func (a *Arena) PageAt(pa Pa_t) *Page {
	i := a.paToIndex(pa)
	if i < 0 || i >= len(a.pages) {
		panic(fmt.Sprintf("mem: access to out-of-range page %#x", pa))
	}
	return &a.pages[i]
}

func (a *Arena) indexToPa(i int) Pa_t { return a.base + Pa_t(i) }
func (a *Arena) paToIndex(pa Pa_t) int {
	if pa < a.base {
		return -1
	}
	return int(pa - a.base)
}
