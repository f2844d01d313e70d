package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileTable_OpenNormalizesOffset(t *testing.T) {
	ft := newOpenFileTable()

	h := ft.open(5, BlockSize*2+17)
	require.NotEqual(t, empty, h)

	entry, err := ft.get(h)
	require.NoError(t, err)
	assert.Equal(t, 5, entry.inumber)
	assert.Equal(t, 2, entry.blockOffset)
	assert.Equal(t, 17, entry.byteOffset)
}

func TestOpenFileTable_CloseFreesSlotForReuse(t *testing.T) {
	ft := newOpenFileTable()
	h := ft.open(1, 0)
	require.NoError(t, ft.close(h))

	h2 := ft.open(2, 0)
	assert.Equal(t, h, h2)
}

func TestOpenFileTable_CloseRejectsAlreadyFree(t *testing.T) {
	ft := newOpenFileTable()
	h := ft.open(1, 0)
	require.NoError(t, ft.close(h))
	assert.Error(t, ft.close(h))
}

func TestOpenFileTable_ExhaustionReturnsEmpty(t *testing.T) {
	ft := newOpenFileTable()
	for i := 0; i < MaxOpenFiles; i++ {
		require.NotEqual(t, empty, ft.open(i, 0))
	}
	assert.Equal(t, empty, ft.open(99, 0))
}

func TestOpenFileTable_OpenCountTracksActiveHandles(t *testing.T) {
	ft := newOpenFileTable()
	assert.Equal(t, 0, ft.openCount())

	h1 := ft.open(1, 0)
	ft.open(2, 0)
	assert.Equal(t, 2, ft.openCount())

	require.NoError(t, ft.close(h1))
	assert.Equal(t, 1, ft.openCount())
}

func TestOpenFileTable_GetRejectsOutOfRange(t *testing.T) {
	ft := newOpenFileTable()
	_, err := ft.get(-1)
	assert.Error(t, err)
	_, err = ft.get(MaxOpenFiles)
	assert.Error(t, err)
}
