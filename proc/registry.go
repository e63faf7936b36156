package proc

import (
	"sync"

	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/vm"
)

// Registry tracks every live process. A real kernel would fold this
// into its scheduler's thread table; the scheduler itself is an
// external contract this module doesn't implement, so Registry is
// just the slice of that table this module actually needs: pid
// allocation, lookup and exit teardown.
type Registry struct {
	mu      sync.Mutex
	procs   map[defs.Pid_t]*Process
	nextPid defs.Pid_t
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[defs.Pid_t]*Process), nextPid: 1}
}

// Spawn creates a new process rooted at cwd (normally the filesystem
// root, or the parent's cwd for a fork-style create).
func (r *Registry) Spawn(cwd *fs.Inode) *Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid := r.nextPid
	r.nextPid++
	p := newProcess(pid, cwd)
	r.procs[pid] = p
	return p
}

func (r *Registry) Lookup(pid defs.Pid_t) *Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[pid]
}

// Exit tears down every resource pid held: its open file descriptors
// are closed through fsys, and its address space's frames and swap
// slots are released through vmach, before the process is dropped
// from the registry.
func (r *Registry) Exit(pid defs.Pid_t, fsys *fs.Filesystem, vmach *vm.Machine, status int) {
	r.mu.Lock()
	p := r.procs[pid]
	delete(r.procs, pid)
	r.mu.Unlock()
	if p == nil {
		return
	}
	p.SetExitStatus(status)
	for _, ino := range p.OpenFds() {
		fsys.Close(ino)
	}
	if cwd := p.Cwd(); cwd != nil {
		fsys.Close(cwd)
	}
	vmach.FreeAddressSpace(p.AS)
}
