// Package common holds the small set of types and contracts shared by
// every layer of the module: the disk facade, sector numbering and the
// device role tag. It plays the same role the teacher's common package
// plays for Bdev_block_t and Disk_i, pared down to what this module
// actually needs.
package common

import "github.com/eduos/kernelfs/limits"

// Sector_t numbers a fixed-size block on a Disk. Sector 0 is always a
// valid address; callers that need an "unallocated" sentinel use
// NoSector rather than relying on the zero value meaning "none", since
// sector 0 is a legitimate sector on every disk we format.
type Sector_t uint32

const NoSector Sector_t = 1<<32 - 1

// Role_t tags what a Disk is used for, so code that holds one can log
// or assert about it without threading a name through separately.
type Role_t int

const (
	RoleFilesys Role_t = iota
	RoleSwap
	RoleKernel
)

func (r Role_t) String() string {
	switch r {
	case RoleFilesys:
		return "filesys"
	case RoleSwap:
		return "swap"
	case RoleKernel:
		return "kernel"
	default:
		return "unknown"
	}
}

// Disk is the block device facade every component above it talks to.
// It stands in for the raw AHCI/virtio driver the real kernel would
// have underneath it; that driver is explicitly out of scope, and this
// interface is the seam at which a real one would be substituted.
type Disk interface {
	ReadSector(s Sector_t, buf []byte) error
	WriteSector(s Sector_t, buf []byte) error
	NumSectors() Sector_t
	Role() Role_t
}

// SectorSize is re-exported from limits so callers that only import
// common for the Disk contract don't also need limits for the one
// constant they need alongside it.
const SectorSize = limits.SectorSize
