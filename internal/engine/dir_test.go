package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirEntries_AddAndLookup(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)
	file := it.create(FileType)

	require.NoError(t, it.addDirEntry(dir, file, "hello.txt"))
	assert.Equal(t, file, it.lookupDirEntry(dir, "hello.txt"))
	assert.Equal(t, empty, it.lookupDirEntry(dir, "missing"))
}

func TestDirEntries_AddRejectsEmptyName(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)
	file := it.create(FileType)

	assert.Error(t, it.addDirEntry(dir, file, ""))
}

func TestDirEntries_AddRejectsNonDirectoryParent(t *testing.T) {
	it := newTestInodeTable()
	file1 := it.create(FileType)
	file2 := it.create(FileType)

	assert.Error(t, it.addDirEntry(file1, file2, "x"))
}

func TestDirEntries_AddRejectsInvalidInumbers(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)

	assert.Error(t, it.addDirEntry(dir, InodeTableSize, "x"))
	assert.Error(t, it.addDirEntry(-1, dir, "x"))
}

func TestDirEntries_DuplicateNamesAreNotChecked(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)
	f1 := it.create(FileType)
	f2 := it.create(FileType)

	require.NoError(t, it.addDirEntry(dir, f1, "dup"))
	require.NoError(t, it.addDirEntry(dir, f2, "dup"))

	assert.Equal(t, f1, it.lookupDirEntry(dir, "dup"), "first match wins on linear scan")
}

func TestDirEntries_NameTruncatedAtMaxFilename(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)
	file := it.create(FileType)

	long := make([]byte, MaxFilename+10)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, it.addDirEntry(dir, file, string(long)))

	got := it.lookupDirEntry(dir, string(long[:MaxFilename-1]))
	assert.Equal(t, file, got)
}

func TestDirEntries_ExhaustionWhenBlockIsFull(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)

	for i := 0; i < maxDirEntries; i++ {
		file := it.create(FileType)
		require.NoError(t, it.addDirEntry(dir, file, string(rune('a'+i%26))+string(rune(i))))
	}
	file := it.create(FileType)
	assert.Error(t, it.addDirEntry(dir, file, "overflow"))
}

func TestDirIsEmpty(t *testing.T) {
	it := newTestInodeTable()
	dir := it.create(DirType)
	assert.True(t, it.dirIsEmpty(dir))

	file := it.create(FileType)
	require.NoError(t, it.addDirEntry(dir, file, "x"))
	assert.False(t, it.dirIsEmpty(dir))
}
