// Command mkfs formats a disk image with a fresh superblock, free map
// and root directory, the way the teacher's mkfs/main.go drives
// ufs.BootFS/ShutdownFS over a freshly created image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eduos/kernelfs/blockdev"
	"github.com/eduos/kernelfs/common"
	"github.com/eduos/kernelfs/config"
	"github.com/eduos/kernelfs/fs"
)

func main() {
	path := flag.String("disk", "kernelfs.img", "path to the disk image to format")
	sizeMB := flag.Int("size", 8, "disk image size in megabytes")
	flag.Parse()

	cfg := config.Config{DiskPath: *path, DiskSizeMB: *sizeMB}
	sectors := common.Sector_t(cfg.DiskSectors())

	disk, err := blockdev.OpenFile(cfg.DiskPath, common.RoleFilesys, sectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
	defer disk.Close()

	fsys, ferr := fs.Format(disk)
	if ferr != 0 {
		fmt.Fprintf(os.Stderr, "mkfs: format failed: %v\n", ferr)
		os.Exit(1)
	}
	fmt.Printf("formatted %s: %d sectors\n", cfg.DiskPath, sectors)
	fmt.Println(fsys.Stats())
}
