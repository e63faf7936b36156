package defs

// Inum_t identifies an inode by the sector that holds its on-disk image.
// The zero value means "no inode" and is never a valid inode location.
type Inum_t uint32

// Pid_t identifies a process within the registry.
type Pid_t int

const NoInum Inum_t = 0
