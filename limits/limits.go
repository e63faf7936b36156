// Package limits collects the sizing constants that bound the on-disk
// layout, the open-file tables and the virtual-memory subsystem. The
// teacher factors equivalent constants into a Syslimit_t; we have no
// socket/futex/network limits to size, so this is a flat const block
// instead of a struct, but the intent (one place to tune capacity) is
// the same.
package limits

const (
	// SectorSize is the unit of disk I/O. Every structure that is
	// persisted (superblock, inode, directory entries, indirect
	// blocks) is sized in multiples of it.
	SectorSize = 512

	// DirectBlocks is the number of direct data-sector pointers
	// carried in an inode before the single-indirect pointer is
	// consulted.
	DirectBlocks = 10

	// PtrsPerSector is how many 4-byte sector numbers fit in one
	// indirect block.
	PtrsPerSector = SectorSize / 4 // 128

	// SectorsBeforeDouble is the sector offset at which the
	// double-indirect block starts contributing capacity: direct
	// sectors plus the sectors reachable through the single
	// indirect block.
	SectorsBeforeDouble = DirectBlocks + PtrsPerSector // 138

	// IndexOfSingle and IndexOfDouble are the data_blocks[] slots
	// that hold the single- and double-indirect pointers.
	NumIndexes    = 12
	IndexOfSingle = 10
	IndexOfDouble = 11

	// MaxFileSectors is the largest sector count byteToSector can
	// address through the twelve-entry index.
	MaxFileSectors = DirectBlocks + PtrsPerSector + PtrsPerSector*PtrsPerSector

	// MaxNameLen bounds a single path component, matching the
	// fixed-width name field in a directory entry.
	MaxNameLen = 14

	// RootDirEntries is how many directory slots the root directory
	// is preformatted with at mkfs time.
	RootDirEntries = 16

	// MaxOpenFiles bounds the per-process descriptor table. fd 0
	// and 1 are reserved for stdin/stdout and never allocated.
	MaxOpenFiles = 128
	FirstUserFd  = 2

	// StdoutChunk is the largest single chunk handed to the console
	// sink per write, so one big write doesn't monopolize it.
	StdoutChunk = 256

	// PageSize is the unit of virtual memory. SectorsPerPage is how
	// many disk sectors one page occupies in the swap partition.
	PageSize      = 4096
	SectorsPerPage = PageSize / SectorSize // 8

	// StackLimitBytes bounds how far an automatically grown stack
	// may extend below PHYS_BASE equivalent (the top of user
	// address space).
	StackLimitBytes = 8 * 1024 * 1024

	// StackGrowthSlack is how far below the observed stack pointer
	// a faulting address may still be and be treated as a stack
	// access (covers PUSH/PUSHA before the pointer is adjusted).
	StackGrowthSlack = 32
)
