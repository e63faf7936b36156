// Package config loads boot-time settings from the environment. The
// teacher has no equivalent — it boots inside a kernel with no shell
// environment to read — so this is grounded instead on the pack's
// akfs config package, the one repo in the retrieval set that loads
// settings the same way a hosted Go service normally would.
package config

import (
	"os"
	"strconv"

	"github.com/eduos/kernelfs/limits"
)

// Config bundles everything needed to mount a Filesystem and boot a
// Machine outside of a test harness.
type Config struct {
	DiskPath   string
	SwapPath   string
	DiskSizeMB int
	SwapSizeMB int
	NumFrames  int
	Format     bool
}

// FromEnv reads KERNELFS_DISK, KERNELFS_SWAP, KERNELFS_DISK_MB,
// KERNELFS_SWAP_MB, KERNELFS_FRAMES and KERNELFS_FORMAT, falling back
// to sensible defaults for anything unset.
func FromEnv() Config {
	c := Config{
		DiskPath:   "kernelfs.img",
		SwapPath:   "kernelfs.swap",
		DiskSizeMB: 8,
		SwapSizeMB: 4,
		NumFrames:  64,
	}
	if v := os.Getenv("KERNELFS_DISK"); v != "" {
		c.DiskPath = v
	}
	if v := os.Getenv("KERNELFS_SWAP"); v != "" {
		c.SwapPath = v
	}
	if v := os.Getenv("KERNELFS_DISK_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DiskSizeMB = n
		}
	}
	if v := os.Getenv("KERNELFS_SWAP_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SwapSizeMB = n
		}
	}
	if v := os.Getenv("KERNELFS_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumFrames = n
		}
	}
	if v := os.Getenv("KERNELFS_FORMAT"); v != "" {
		b, err := strconv.ParseBool(v)
		c.Format = err == nil && b
	}
	return c
}

// DiskSectors and SwapSectors convert the configured sizes to sector
// counts, the unit everything below config actually works in.
func (c Config) DiskSectors() uint32 {
	return uint32(c.DiskSizeMB) * 1024 * 1024 / limits.SectorSize
}

func (c Config) SwapSectors() uint32 {
	return uint32(c.SwapSizeMB) * 1024 * 1024 / limits.SectorSize
}
