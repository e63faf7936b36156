package syscall

import (
	"bytes"
	"testing"

	"github.com/eduos/kernelfs/blockdev"
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/mem"
	"github.com/eduos/kernelfs/proc"
	"github.com/eduos/kernelfs/vm"
)

// userAddr stands in for whatever address a real trap frame would
// have handed Dispatch; it sits one page below the stack top so
// ValidateRange accepts it as legitimate stack growth even with no
// stack pointer recorded (a zero-value esp trivially satisfies the
// slack check).
const userAddr = vm.UserStackTop - 4096

type fakeScheduler struct {
	halted bool
	waited defs.Pid_t
}

func (s *fakeScheduler) Halt()                 { s.halted = true }
func (s *fakeScheduler) Wait(pid defs.Pid_t) int { s.waited = pid; return 0 }

type fakeLoader struct{}

func (fakeLoader) Exec(p *proc.Process, cmdline string) (defs.Pid_t, defs.Err_t) {
	return 0, defs.EINVAL
}

type bufConsole struct {
	in  []byte
	out bytes.Buffer
}

func (c *bufConsole) ReadByte() (byte, bool) {
	if len(c.in) == 0 {
		return 0, false
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, true
}

func (c *bufConsole) WriteChunk(buf []byte) { c.out.Write(buf) }

func freshDispatcher(t *testing.T) (*Dispatcher, *proc.Process) {
	t.Helper()
	disk := blockdev.NewMem(common.RoleFilesys, 4096)
	fsys, err := fs.Format(disk)
	if err != 0 {
		t.Fatalf("fs.Format: %v", err)
	}
	swap := blockdev.NewMem(common.RoleSwap, 4096)
	arena := mem.NewArena(8)
	vmach := vm.NewMachine(arena, swap, fsys)
	reg := proc.NewRegistry()
	root, err := fsys.RootInode()
	if err != 0 {
		t.Fatalf("RootInode: %v", err)
	}
	p := reg.Spawn(root)
	d := NewDispatcher(fsys, vmach, reg, fakeLoader{}, &fakeScheduler{}, nil)
	return d, p
}

func TestCreateOpenWriteReadCloseRoundTrip(t *testing.T) {
	d, p := freshDispatcher(t)

	res := d.Dispatch(p, defs.SYS_CREATE, Args{Str0: "note.txt", Addr: userAddr})
	if res.Killed || res.Value != 1 {
		t.Fatalf("SYS_CREATE: %+v", res)
	}

	res = d.Dispatch(p, defs.SYS_OPEN, Args{Str0: "note.txt", Addr: userAddr})
	if res.Killed || res.Value < 0 {
		t.Fatalf("SYS_OPEN: %+v", res)
	}
	fd := res.Value

	payload := []byte("hello from a syscall")
	res = d.Dispatch(p, defs.SYS_WRITE, Args{Int0: fd, Buf: payload, Addr: userAddr})
	if res.Killed || res.Value != len(payload) {
		t.Fatalf("SYS_WRITE: %+v", res)
	}

	res = d.Dispatch(p, defs.SYS_SEEK, Args{Int0: fd, Int1: 0})
	if res.Killed {
		t.Fatalf("SYS_SEEK: %+v", res)
	}

	buf := make([]byte, len(payload))
	res = d.Dispatch(p, defs.SYS_READ, Args{Int0: fd, Buf: buf, Addr: userAddr})
	if res.Killed || res.Value != len(payload) || !bytes.Equal(buf, payload) {
		t.Fatalf("SYS_READ: %+v buf=%q", res, buf)
	}

	res = d.Dispatch(p, defs.SYS_FILESIZE, Args{Int0: fd})
	if res.Killed || res.Value != len(payload) {
		t.Fatalf("SYS_FILESIZE: %+v", res)
	}

	res = d.Dispatch(p, defs.SYS_CLOSE, Args{Int0: fd})
	if res.Killed {
		t.Fatalf("SYS_CLOSE: %+v", res)
	}
}

func TestBadDescriptorKillsFilesizeSeekTellClose(t *testing.T) {
	d, p := freshDispatcher(t)
	const badFd = 99

	if res := d.Dispatch(p, defs.SYS_FILESIZE, Args{Int0: badFd}); !res.Killed {
		t.Fatalf("SYS_FILESIZE on bad fd should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_SEEK, Args{Int0: badFd, Int1: 0}); !res.Killed {
		t.Fatalf("SYS_SEEK on bad fd should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_TELL, Args{Int0: badFd}); !res.Killed {
		t.Fatalf("SYS_TELL on bad fd should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_CLOSE, Args{Int0: badFd}); !res.Killed {
		t.Fatalf("SYS_CLOSE on bad fd should kill, got %+v", res)
	}
}

func TestBadDescriptorReadWriteReturnMinusOneWithoutKilling(t *testing.T) {
	d, p := freshDispatcher(t)
	const badFd = 99

	res := d.Dispatch(p, defs.SYS_READ, Args{Int0: badFd, Buf: make([]byte, 4), Addr: userAddr})
	if res.Killed || res.Value != -1 {
		t.Fatalf("SYS_READ on bad fd: %+v, want Value=-1 Killed=false", res)
	}
	res = d.Dispatch(p, defs.SYS_WRITE, Args{Int0: badFd, Buf: []byte("x"), Addr: userAddr})
	if res.Killed || res.Value != -1 {
		t.Fatalf("SYS_WRITE on bad fd: %+v, want Value=-1 Killed=false", res)
	}
}

func TestMkdirChdirAndReaddir(t *testing.T) {
	d, p := freshDispatcher(t)

	if res := d.Dispatch(p, defs.SYS_MKDIR, Args{Str0: "sub", Addr: userAddr}); res.Value != 1 {
		t.Fatalf("SYS_MKDIR: %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_CHDIR, Args{Str0: "sub", Addr: userAddr}); res.Value != 1 {
		t.Fatalf("SYS_CHDIR: %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_CREATE, Args{Str0: "leaf", Addr: userAddr}); res.Value != 1 {
		t.Fatalf("SYS_CREATE leaf: %+v", res)
	}

	res := d.Dispatch(p, defs.SYS_OPEN, Args{Str0: ".", Addr: userAddr})
	if res.Killed || res.Value < 0 {
		t.Fatalf("SYS_OPEN .: %+v", res)
	}
	fd := res.Value

	found := false
	for {
		res = d.Dispatch(p, defs.SYS_READDIR, Args{Int0: fd, Addr: userAddr})
		if res.Value == 0 {
			break
		}
		if res.Name == "leaf" {
			found = true
		}
	}
	if !found {
		t.Fatalf("SYS_READDIR never reported leaf")
	}
}

func TestConsoleReadAndWrite(t *testing.T) {
	disk := blockdev.NewMem(common.RoleFilesys, 4096)
	fsys, _ := fs.Format(disk)
	swap := blockdev.NewMem(common.RoleSwap, 4096)
	vmach := vm.NewMachine(mem.NewArena(4), swap, fsys)
	reg := proc.NewRegistry()
	root, _ := fsys.RootInode()
	p := reg.Spawn(root)

	console := &bufConsole{in: []byte("hi")}
	d := NewDispatcher(fsys, vmach, reg, fakeLoader{}, &fakeScheduler{}, console)

	buf := make([]byte, 2)
	res := d.Dispatch(p, defs.SYS_READ, Args{Int0: 0, Buf: buf, Addr: userAddr})
	if res.Killed || res.Value != 2 || string(buf) != "hi" {
		t.Fatalf("console read: %+v buf=%q", res, buf)
	}

	res = d.Dispatch(p, defs.SYS_WRITE, Args{Int0: 1, Buf: []byte("out"), Addr: userAddr})
	if res.Killed || res.Value != 3 || console.out.String() != "out" {
		t.Fatalf("console write: %+v wrote=%q", res, console.out.String())
	}
}

func TestDirectoryFdRejectedByFilesizeSeekTellReadWrite(t *testing.T) {
	d, p := freshDispatcher(t)

	if res := d.Dispatch(p, defs.SYS_MKDIR, Args{Str0: "sub", Addr: userAddr}); res.Value != 1 {
		t.Fatalf("SYS_MKDIR: %+v", res)
	}
	res := d.Dispatch(p, defs.SYS_OPEN, Args{Str0: "sub", Addr: userAddr})
	if res.Killed || res.Value < 0 {
		t.Fatalf("SYS_OPEN sub: %+v", res)
	}
	fd := res.Value

	if res := d.Dispatch(p, defs.SYS_FILESIZE, Args{Int0: fd}); !res.Killed {
		t.Fatalf("SYS_FILESIZE on a directory fd should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_SEEK, Args{Int0: fd, Int1: 0}); !res.Killed {
		t.Fatalf("SYS_SEEK on a directory fd should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_TELL, Args{Int0: fd}); !res.Killed {
		t.Fatalf("SYS_TELL on a directory fd should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_READ, Args{Int0: fd, Buf: make([]byte, 4), Addr: userAddr}); res.Killed || res.Value != -1 {
		t.Fatalf("SYS_READ on a directory fd: %+v, want Value=-1 Killed=false", res)
	}
	if res := d.Dispatch(p, defs.SYS_WRITE, Args{Int0: fd, Buf: []byte("x"), Addr: userAddr}); res.Killed || res.Value != -1 {
		t.Fatalf("SYS_WRITE on a directory fd: %+v, want Value=-1 Killed=false", res)
	}
}

func TestInvalidPointerKillsCreateReadWrite(t *testing.T) {
	d, p := freshDispatcher(t)

	if res := d.Dispatch(p, defs.SYS_CREATE, Args{Str0: "note.txt"}); !res.Killed {
		t.Fatalf("SYS_CREATE with a null pointer should kill, got %+v", res)
	}

	res := d.Dispatch(p, defs.SYS_CREATE, Args{Str0: "note.txt", Addr: userAddr})
	if res.Killed || res.Value != 1 {
		t.Fatalf("SYS_CREATE with a valid pointer: %+v", res)
	}
	res = d.Dispatch(p, defs.SYS_OPEN, Args{Str0: "note.txt", Addr: userAddr})
	if res.Killed || res.Value < 0 {
		t.Fatalf("SYS_OPEN: %+v", res)
	}
	fd := res.Value

	// An address far below the stack growth limit is neither resident
	// nor legitimate stack growth.
	const wild = uintptr(0x1000)
	if res := d.Dispatch(p, defs.SYS_READ, Args{Int0: fd, Buf: make([]byte, 4), Addr: wild}); !res.Killed {
		t.Fatalf("SYS_READ through a wild pointer should kill, got %+v", res)
	}
	if res := d.Dispatch(p, defs.SYS_WRITE, Args{Int0: fd, Buf: []byte("x"), Addr: wild}); !res.Killed {
		t.Fatalf("SYS_WRITE through a wild pointer should kill, got %+v", res)
	}
}

func TestUnknownSyscallKills(t *testing.T) {
	d, p := freshDispatcher(t)
	if res := d.Dispatch(p, 13, Args{}); !res.Killed {
		t.Fatalf("reserved syscall number should kill, got %+v", res)
	}
	if res := d.Dispatch(p, 999, Args{}); !res.Killed {
		t.Fatalf("out-of-range syscall number should kill, got %+v", res)
	}
}
