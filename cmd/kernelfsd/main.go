// Command kernelfsd boots the filesystem and virtual memory subsystems
// against a disk and swap image and reports their statistics, the way
// the teacher's StartFS sequence brings up Fs_t before anything else
// in the kernel can run. It doesn't loop accepting real syscalls —
// there is no loader or scheduler behind it — but it exercises every
// component's boot path end to end.
package main

import (
	"fmt"
	"os"

	"github.com/eduos/kernelfs/blockdev"
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/config"
	"github.com/eduos/kernelfs/defs"
	"github.com/eduos/kernelfs/fs"
	"github.com/eduos/kernelfs/mem"
	"github.com/eduos/kernelfs/proc"
	"github.com/eduos/kernelfs/vm"
)

func main() {
	cfg := config.FromEnv()

	diskSectors := common.Sector_t(cfg.DiskSectors())
	disk, err := blockdev.OpenFile(cfg.DiskPath, common.RoleFilesys, diskSectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernelfsd: open disk: %v\n", err)
		os.Exit(1)
	}
	defer disk.Close()

	var fsys *fs.Filesystem
	var ferr defs.Err_t
	if cfg.Format {
		fsys, ferr = fs.Format(disk)
	} else {
		fsys, ferr = fs.Mount(disk)
	}
	if ferr != 0 {
		fmt.Fprintf(os.Stderr, "kernelfsd: mount: %v\n", ferr)
		os.Exit(1)
	}

	swapSectors := common.Sector_t(cfg.SwapSectors())
	swapDisk, err := blockdev.OpenFile(cfg.SwapPath, common.RoleSwap, swapSectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernelfsd: open swap: %v\n", err)
		os.Exit(1)
	}
	defer swapDisk.Close()

	arena := mem.NewArena(cfg.NumFrames)
	vmach := vm.NewMachine(arena, swapDisk, fsys)
	reg := proc.NewRegistry()

	root, rerr := fsys.RootInode()
	if rerr != 0 {
		fmt.Fprintf(os.Stderr, "kernelfsd: root inode: %v\n", rerr)
		os.Exit(1)
	}
	init := reg.Spawn(root)

	fmt.Println("kernelfsd: booted")
	fmt.Println("fs:", fsys.Stats())
	fmt.Println("vm:", vmach.Stats())
	fmt.Println("init pid:", init.Pid)
}
