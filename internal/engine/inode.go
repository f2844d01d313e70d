package engine

import "sync"

// inode is the metadata record for one file or directory (component B).
// Its own RWMutex is acquired by File Operations around reads/writes of
// size, pointer fields and data-block bytes: readers (read, size
// inspection) take RLock, writers (write, truncate, reset,
// ensureBlock's mutation path) take Lock, per §5 lock ordering rule 2.
type inode struct {
	mu       sync.RWMutex
	typ      InodeType
	size     int
	direct   [DirectPointers]int
	indirect int // block index of the single indirect pointer block
}

// inodeTable is a fixed array of inodes with a free bitmap guarded by a
// single mutex; each inode carries its own reader/writer lock (component B).
type inodeTable struct {
	mu     sync.Mutex
	free   []bool
	inodes []*inode
	blocks *blockPool
	delay  storageLatency
}

func newInodeTable(blocks *blockPool, delay storageLatency) *inodeTable {
	it := &inodeTable{
		free:   make([]bool, InodeTableSize),
		inodes: make([]*inode, InodeTableSize),
		blocks: blocks,
		delay:  delay,
	}
	for i := range it.inodes {
		it.free[i] = true
		it.inodes[i] = &inode{}
	}
	return it
}

func validInumber(n int) bool { return n >= 0 && n < InodeTableSize }

// create allocates the first free inode slot, initializes it, and returns
// its number, or empty if the table is full. For a directory it also
// allocates the entry block and marks every entry in it free; if that allocation
// fails the slot is returned to FREE (§4.B).
func (it *inodeTable) create(t InodeType) int {
	it.delay.hit()
	it.mu.Lock()
	inum := empty
	for i, isFree := range it.free {
		if isFree {
			it.free[i] = false
			inum = i
			break
		}
	}
	it.mu.Unlock()
	if inum == empty {
		return empty
	}

	node := it.inodes[inum]
	node.mu.Lock()
	node.typ = t
	for i := range node.direct {
		node.direct[i] = empty
	}
	node.indirect = empty

	if t == DirType {
		b := it.blocks.allocPointer()
		if b == empty {
			node.mu.Unlock()
			it.mu.Lock()
			it.free[inum] = true
			it.mu.Unlock()
			return empty
		}
		node.size = BlockSize
		node.indirect = b
		entries := directoryEntries(it.blocks.get(b))
		for i := range entries.count() {
			entries.setInumber(i, empty)
		}
	} else {
		node.size = 0
	}
	node.mu.Unlock()
	return inum
}

// delete frees every block the inode owns and returns its table slot to
// FREE. A directory that still has entries is rejected. Only the first
// create() after a delete may observe the slot (§4.B).
func (it *inodeTable) delete(inum int) error {
	if !validInumber(inum) {
		return newErr("inode_delete", KindInvalidArg, errBadInumber)
	}
	it.delay.hit()
	it.mu.Lock()
	if it.free[inum] {
		it.mu.Unlock()
		return newErr("inode_delete", KindInvalidArg, errBadInumber)
	}
	it.mu.Unlock()

	node := it.inodes[inum]
	node.mu.RLock()
	isDir := node.typ == DirType
	node.mu.RUnlock()
	if isDir && !it.dirIsEmpty(inum) {
		return newErr("inode_delete", KindInvalidArg, errNotEmptyDir)
	}

	if err := it.truncateData(inum); err != nil {
		return err
	}
	if isDir {
		// truncateData leaves a directory's entry block alone.
		node.mu.Lock()
		_ = it.blocks.free_(node.indirect)
		node.indirect = empty
		node.mu.Unlock()
	}

	it.mu.Lock()
	it.free[inum] = true
	it.mu.Unlock()
	return nil
}

// inUse returns the number of currently-allocated inodes, for metrics.
func (it *inodeTable) inUse() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	n := 0
	for _, isFree := range it.free {
		if !isFree {
			n++
		}
	}
	return n
}

// get returns a stable handle to an inode, valid until it is deleted.
func (it *inodeTable) get(inum int) (*inode, error) {
	if !validInumber(inum) {
		return nil, newErr("inode_get", KindInvalidArg, errBadInumber)
	}
	it.delay.hit()
	return it.inodes[inum], nil
}

// truncateData frees every block an inode owns: its direct blocks, every
// block referenced by its indirect table, then the indirect block itself.
func (it *inodeTable) truncateData(inum int) error {
	node := it.inodes[inum]
	node.mu.Lock()
	defer node.mu.Unlock()

	if node.typ == DirType {
		// A directory's "indirect" slot holds its entry block, not a
		// pointer table; it is released on inode delete only, never on
		// truncate (directories are never O_TRUNC targets, §4.E).
		return nil
	}

	for i, b := range node.direct {
		if b != empty {
			if err := it.blocks.free_(b); err != nil {
				return err
			}
			node.direct[i] = empty
		}
	}
	if node.indirect != empty {
		table := it.blocks.pointerTable(node.indirect)
		for i := 0; i < IndirectPointers; i++ {
			if b := table.get(i); b != empty {
				if err := it.blocks.free_(b); err != nil {
					return err
				}
			}
		}
		if err := it.blocks.free_(node.indirect); err != nil {
			return err
		}
		node.indirect = empty
	}
	node.size = 0
	return nil
}

// resetMetadata zeroes every pointer slot and size under the writer lock,
// without touching already-freed blocks (the caller must have truncated
// first).
func (it *inodeTable) resetMetadata(inum int) {
	node := it.inodes[inum]
	node.mu.Lock()
	defer node.mu.Unlock()
	for i := range node.direct {
		node.direct[i] = empty
	}
	node.indirect = empty
	node.size = 0
}
