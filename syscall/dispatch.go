// Package syscall implements the fixed, numbered dispatch table every
// user-mode request passes through: halt, process control, and the
// fourteen filesystem calls. It is deliberately thin — every call
// either delegates straight to fs.Filesystem, proc.Process or the
// injected Loader/Scheduler, or does only the bookkeeping (fd table
// lookups) those can't do for themselves. Grounded on syscall.c's
// system_calls[] table and exit_call/read_call/write_call's exact
// kill-vs-return-minus-one asymmetry.
package syscall

import (
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/limits"
	"github.com/eduos/kernelfs/proc"
	"github.com/eduos/kernelfs/vm"
)

// Loader runs a new program image, standing in for the process
// loader external contract.
type Loader interface {
	Exec(p *proc.Process, cmdline string) (defs.Pid_t, defs.Err_t)
}

// Scheduler blocks the caller until pid exits and halts the system,
// standing in for the thread scheduler external contract.
type Scheduler interface {
	Wait(pid defs.Pid_t) int
	Halt()
}

// Dispatcher wires one filesystem, one virtual machine and one
// process registry to the numbered syscall surface.
type Dispatcher struct {
	Fsys    *fs.Filesystem
	VM      *vm.Machine
	Reg     *proc.Registry
	Loader  Loader
	Sched   Scheduler
	Console Console
}

func NewDispatcher(fsys *fs.Filesystem, vmach *vm.Machine, reg *proc.Registry, loader Loader, sched Scheduler, console Console) *Dispatcher {
	if console == nil {
		console = NullConsole{}
	}
	return &Dispatcher{Fsys: fsys, VM: vmach, Reg: reg, Loader: loader, Sched: sched, Console: console}
}

// Args bundles every possible argument shape a syscall number might
// need; each handler reads only the fields its own number defined.
// Addr is the user virtual address Str0 or Buf was read from (or, for
// readdir, the destination the name is to be written to); Dispatch
// validates it before trusting either field.
type Args struct {
	Int0, Int1 int
	Str0       string
	Buf        []byte
	Addr       uintptr
}

// Result carries a syscall's return value alongside whether the
// calling process must be terminated as a result — the Go-native
// encoding of every kill() call site in the original handler, which
// never communicated failure through the syscall's own return value.
type Result struct {
	Value  int
	Name   string // populated by SYS_READDIR on success
	Killed bool
}

// Dispatch routes syscall number to its handler. An unknown or
// reserved number (13, 14, or anything outside 0..NumSyscalls) kills
// the caller, the same as falling outside the original table's bound
// check.
func (d *Dispatcher) Dispatch(p *proc.Process, num int, a Args) Result {
	switch num {
	case defs.SYS_HALT:
		d.Sched.Halt()
		return Result{}
	case defs.SYS_EXIT:
		d.Reg.Exit(p.Pid, d.Fsys, d.VM, a.Int0)
		return Result{Value: a.Int0}
	case defs.SYS_EXEC:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Str0)+1) {
			return Result{Killed: true}
		}
		pid, err := d.Loader.Exec(p, a.Str0)
		if err != 0 {
			return Result{Value: -1}
		}
		return Result{Value: int(pid)}
	case defs.SYS_WAIT:
		return Result{Value: d.Sched.Wait(defs.Pid_t(a.Int0))}
	case defs.SYS_CREATE:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Str0)+1) {
			return Result{Killed: true}
		}
		return Result{Value: boolToInt(d.Create(p, a.Str0, a.Int0))}
	case defs.SYS_REMOVE:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Str0)+1) {
			return Result{Killed: true}
		}
		return Result{Value: boolToInt(d.Remove(p, a.Str0))}
	case defs.SYS_OPEN:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Str0)+1) {
			return Result{Killed: true}
		}
		return Result{Value: d.Open(p, a.Str0)}
	case defs.SYS_FILESIZE:
		v, err := d.Filesize(p, a.Int0)
		return Result{Value: v, Killed: err != 0}
	case defs.SYS_READ:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Buf)) {
			return Result{Killed: true}
		}
		return Result{Value: d.Read(p, a.Int0, a.Buf)}
	case defs.SYS_WRITE:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Buf)) {
			return Result{Killed: true}
		}
		return Result{Value: d.Write(p, a.Int0, a.Buf)}
	case defs.SYS_SEEK:
		err := d.Seek(p, a.Int0, a.Int1)
		return Result{Killed: err != 0}
	case defs.SYS_TELL:
		v, err := d.Tell(p, a.Int0)
		return Result{Value: v, Killed: err != 0}
	case defs.SYS_CLOSE:
		err := d.Close(p, a.Int0)
		return Result{Killed: err != 0}
	case defs.SYS_CHDIR:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Str0)+1) {
			return Result{Killed: true}
		}
		return Result{Value: boolToInt(d.Chdir(p, a.Str0))}
	case defs.SYS_MKDIR:
		if !d.VM.ValidateRange(p.AS, a.Addr, len(a.Str0)+1) {
			return Result{Killed: true}
		}
		return Result{Value: boolToInt(d.Mkdir(p, a.Str0))}
	case defs.SYS_READDIR:
		if !d.VM.ValidateRange(p.AS, a.Addr, limits.MaxNameLen+1) {
			return Result{Killed: true}
		}
		var name string
		ok := d.Readdir(p, a.Int0, &name)
		return Result{Value: boolToInt(ok), Name: name}
	case defs.SYS_ISDIR:
		return Result{Value: boolToInt(d.Isdir(p, a.Int0))}
	case defs.SYS_INUMBER:
		return Result{Value: d.Inumber(p, a.Int0)}
	default:
		return Result{Killed: true}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
