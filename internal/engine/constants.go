// Package engine implements the TecnicoFS in-memory filesystem: a fixed
// inode table, a fixed data-block pool with direct and single-indirect
// addressing, a flat root directory and an open-file table, all safe for
// concurrent use.
package engine

const (
	// BlockSize is the size in bytes of a single data block.
	BlockSize = 1024
	// DataBlocks is the number of blocks in the block pool.
	DataBlocks = 1024
	// InodeTableSize is the number of entries in the inode table.
	InodeTableSize = 50
	// MaxOpenFiles is the number of entries in the open-file table.
	MaxOpenFiles = 20
	// MaxFilename is the maximum length of a directory entry name,
	// including the terminating null byte.
	MaxFilename = 40
	// DirectPointers is the number of direct block pointers per inode.
	DirectPointers = 10
	// IndirectPointers is the number of block indices an indirect block
	// can hold: BlockSize / sizeof(int32).
	IndirectPointers = BlockSize / 4
	// MaxFileSize is the largest file size representable with
	// DirectPointers direct blocks plus one indirect block.
	MaxFileSize = (DirectPointers + IndirectPointers) * BlockSize
	// RootInum is the inode number of the filesystem root directory.
	RootInum = 0
	// empty is the sentinel marking an unused pointer slot or a miss.
	empty = -1
)

// OpenFlags is a bitmask of flags accepted by Engine.Open.
type OpenFlags int

const (
	// OCreat creates the file if it does not already exist.
	OCreat OpenFlags = 1 << iota
	// OTrunc truncates an existing file to zero length.
	OTrunc
	// OAppend positions the initial offset at the current end of file.
	OAppend
)

// InodeType distinguishes files from directories.
type InodeType int

const (
	// FileType marks a regular file inode.
	FileType InodeType = iota
	// DirType marks a directory inode.
	DirType
)

func (t InodeType) String() string {
	if t == DirType {
		return "directory"
	}
	return "file"
}
