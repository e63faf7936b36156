package syscall

import (
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/limits"
	"github.com/eduos/kernelfs/proc"
)

func (d *Dispatcher) Create(p *proc.Process, name string, initialSize int) bool {
	return d.Fsys.Create(p.Cwd(), name, initialSize) == 0
}

func (d *Dispatcher) Remove(p *proc.Process, name string) bool {
	return d.Fsys.Remove(p.Cwd(), name) == 0
}

// Open resolves name and installs it in p's descriptor table, closing
// the inode again if the table has no free slot so a failed open
// never leaks a reference.
func (d *Dispatcher) Open(p *proc.Process, name string) int {
	ino, err := d.Fsys.Open(p.Cwd(), name)
	if err != 0 {
		return -1
	}
	fd := p.AllocFd(ino)
	if fd < 0 {
		d.Fsys.Close(ino)
		return -1
	}
	return fd
}

// dirCheck reports EISDIR if fd names a directory, the condition
// filesize/read/write/seek/tell all reject, each per its own
// kill-vs-return asymmetry.
func dirCheck(of *proc.OpenFile) defs.Err_t {
	if of.Inode().IsDir() {
		return defs.EISDIR
	}
	return 0
}

func (d *Dispatcher) Filesize(p *proc.Process, fd int) (int, defs.Err_t) {
	of := p.File(fd)
	if of == nil {
		return -1, defs.EBADF
	}
	if err := dirCheck(of); err != 0 {
		return -1, err
	}
	return of.Inode().Length(), 0
}

func (d *Dispatcher) Seek(p *proc.Process, fd, pos int) defs.Err_t {
	of := p.File(fd)
	if of == nil {
		return defs.EBADF
	}
	if err := dirCheck(of); err != 0 {
		return err
	}
	of.Seek(pos)
	return 0
}

func (d *Dispatcher) Tell(p *proc.Process, fd int) (int, defs.Err_t) {
	of := p.File(fd)
	if of == nil {
		return -1, defs.EBADF
	}
	if err := dirCheck(of); err != 0 {
		return -1, err
	}
	return of.Tell(), 0
}

func (d *Dispatcher) Close(p *proc.Process, fd int) defs.Err_t {
	ino := p.CloseFd(fd)
	if ino == nil {
		return defs.EBADF
	}
	return d.Fsys.Close(ino)
}

// Read returns the number of bytes read, or -1 on a bad descriptor —
// never a kill, unlike Filesize/Seek/Tell/Close on the same bad
// descriptor. fd 0 reads from the console one byte at a time.
func (d *Dispatcher) Read(p *proc.Process, fd int, buf []byte) int {
	if fd == 0 {
		n := 0
		for n < len(buf) {
			b, ok := d.Console.ReadByte()
			if !ok {
				break
			}
			buf[n] = b
			n++
		}
		return n
	}
	of := p.File(fd)
	if of == nil {
		return -1
	}
	if dirCheck(of) != 0 {
		return -1
	}
	n, err := d.Fsys.Read(of.Inode(), buf, of.Tell())
	if err != 0 {
		return -1
	}
	of.Advance(n)
	return n
}

// Write returns the number of bytes written, or -1 on a bad
// descriptor. fd 1 writes to the console in fixed-size chunks so one
// large write can't monopolize it.
func (d *Dispatcher) Write(p *proc.Process, fd int, buf []byte) int {
	if fd == 1 {
		for off := 0; off < len(buf); off += limits.StdoutChunk {
			end := off + limits.StdoutChunk
			if end > len(buf) {
				end = len(buf)
			}
			d.Console.WriteChunk(buf[off:end])
		}
		return len(buf)
	}
	of := p.File(fd)
	if of == nil {
		return -1
	}
	if dirCheck(of) != 0 {
		return -1
	}
	n, err := d.Fsys.Write(of.Inode(), buf, of.Tell())
	if err != 0 {
		return -1
	}
	of.Advance(n)
	return n
}

func (d *Dispatcher) Chdir(p *proc.Process, path string) bool {
	ino, err := d.Fsys.Chdir(p.Cwd(), path)
	if err != 0 {
		return false
	}
	old := p.Cwd()
	p.SetCwd(ino)
	d.Fsys.Close(old)
	return true
}

func (d *Dispatcher) Mkdir(p *proc.Process, path string) bool {
	return d.Fsys.Mkdir(p.Cwd(), path) == 0
}

func (d *Dispatcher) Readdir(p *proc.Process, fd int, nameOut *string) bool {
	of := p.File(fd)
	if of == nil || !of.Inode().IsDir() {
		return false
	}
	pos := of.Tell()
	name, ok := d.Fsys.ReaddirNext(of.Inode(), &pos)
	of.Seek(pos)
	if !ok {
		return false
	}
	*nameOut = name
	return true
}

func (d *Dispatcher) Isdir(p *proc.Process, fd int) bool {
	of := p.File(fd)
	return of != nil && of.Inode().IsDir()
}

func (d *Dispatcher) Inumber(p *proc.Process, fd int) int {
	of := p.File(fd)
	if of == nil {
		return -1
	}
	return int(of.Inode().Sector())
}
