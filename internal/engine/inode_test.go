package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInodeTable() *inodeTable {
	bp := newBlockPool(storageLatency{})
	return newInodeTable(bp, storageLatency{})
}

func TestInodeTable_CreateDirectoryAllocatesEntryBlock(t *testing.T) {
	it := newTestInodeTable()

	inum := it.create(DirType)
	require.NotEqual(t, empty, inum)

	node, err := it.get(inum)
	require.NoError(t, err)
	assert.Equal(t, DirType, node.typ)
	assert.Equal(t, BlockSize, node.size)
	assert.NotEqual(t, empty, node.indirect)
}

func TestInodeTable_CreateFileStartsEmpty(t *testing.T) {
	it := newTestInodeTable()

	inum := it.create(FileType)
	require.NotEqual(t, empty, inum)

	node, err := it.get(inum)
	require.NoError(t, err)
	assert.Equal(t, 0, node.size)
	for _, b := range node.direct {
		assert.Equal(t, empty, b)
	}
	assert.Equal(t, empty, node.indirect)
}

func TestInodeTable_CreateExhaustion(t *testing.T) {
	it := newTestInodeTable()
	for i := 0; i < InodeTableSize; i++ {
		require.NotEqual(t, empty, it.create(FileType))
	}
	assert.Equal(t, empty, it.create(FileType))
}

func TestInodeTable_DeleteFreesSlotForReuse(t *testing.T) {
	it := newTestInodeTable()
	inum := it.create(FileType)
	require.NoError(t, it.delete(inum))

	inum2 := it.create(FileType)
	assert.Equal(t, inum, inum2, "the freed slot is the first-fit candidate again")
}

func TestInodeTable_DeleteRejectsInvalidOrAlreadyFree(t *testing.T) {
	it := newTestInodeTable()
	assert.Error(t, it.delete(-1))
	assert.Error(t, it.delete(InodeTableSize))

	inum := it.create(FileType)
	require.NoError(t, it.delete(inum))
	assert.Error(t, it.delete(inum), "double delete of a free slot is rejected")
}

func TestInodeTable_TruncateFreesDirectAndIndirectBlocks(t *testing.T) {
	it := newTestInodeTable()
	inum := it.create(FileType)
	node, _ := it.get(inum)

	node.mu.Lock()
	node.direct[0] = it.blocks.alloc()
	node.direct[1] = it.blocks.alloc()
	node.indirect = it.blocks.allocPointer()
	table := it.blocks.pointerTable(node.indirect)
	table.set(0, it.blocks.alloc())
	node.size = 3 * BlockSize
	node.mu.Unlock()

	freeBefore := countFree(it.blocks)
	require.NoError(t, it.truncateData(inum))
	freeAfter := countFree(it.blocks)

	assert.Equal(t, freeBefore+4, freeAfter, "2 direct + 1 indirect-referenced + the indirect block itself")
	assert.Equal(t, 0, node.size)
	assert.Equal(t, empty, node.indirect)
}

func countFree(bp *blockPool) int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	n := 0
	for _, f := range bp.free {
		if f {
			n++
		}
	}
	return n
}
