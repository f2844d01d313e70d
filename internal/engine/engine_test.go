package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EngineTest struct {
	suite.Suite
	e *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTest))
}

func (ts *EngineTest) SetupTest() {
	e, err := New(Config{}, nil)
	ts.Require().NoError(err)
	ts.e = e
}

// Scenario 1: basic round-trip.
func (ts *EngineTest) TestBasicRoundTrip() {
	f, err := ts.e.Open("/f1", OCreat)
	ts.Require().NoError(err)

	n, err := ts.e.Write(f, []byte("AAA!"))
	ts.Require().NoError(err)
	ts.Equal(4, n)
	ts.Require().NoError(ts.e.Close(f))

	f, err = ts.e.Open("/f1", 0)
	ts.Require().NoError(err)
	buf := make([]byte, 39)
	r, err := ts.e.Read(f, buf)
	ts.Require().NoError(err)
	ts.Equal(4, r)
	ts.Equal("AAA!", string(buf[:r]))
	ts.Require().NoError(ts.e.Close(f))
}

// Scenario 2: append semantics.
func (ts *EngineTest) TestAppendSemantics() {
	f, err := ts.e.Open("/f1", OCreat)
	ts.Require().NoError(err)
	_, err = ts.e.Write(f, []byte("hello"))
	ts.Require().NoError(err)
	ts.Require().NoError(ts.e.Close(f))

	f, err = ts.e.Open("/f1", OAppend)
	ts.Require().NoError(err)
	_, err = ts.e.Write(f, []byte(" world"))
	ts.Require().NoError(err)
	ts.Require().NoError(ts.e.Close(f))

	f, err = ts.e.Open("/f1", 0)
	ts.Require().NoError(err)
	buf := make([]byte, 16)
	n, err := ts.e.Read(f, buf)
	ts.Require().NoError(err)
	ts.Equal(11, n)
	ts.Equal("hello world", string(buf[:n]))
}

// Scenario 3: truncate on reopen.
func (ts *EngineTest) TestTruncateOnReopen() {
	f, err := ts.e.Open("/f1", OCreat)
	ts.Require().NoError(err)
	_, err = ts.e.Write(f, []byte("AAA!"))
	ts.Require().NoError(err)
	ts.Require().NoError(ts.e.Close(f))

	f, err = ts.e.Open("/f1", OCreat|OTrunc)
	ts.Require().NoError(err)
	buf := make([]byte, 10)
	n, err := ts.e.Read(f, buf)
	ts.Require().NoError(err)
	ts.Equal(0, n)
}

// Scenario 4: cross-block write.
func (ts *EngineTest) TestCrossBlockWrite() {
	f, err := ts.e.Open("/f1", OCreat)
	ts.Require().NoError(err)

	data := make([]byte, 1500)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := ts.e.Write(f, data)
	ts.Require().NoError(err)
	ts.Equal(1500, n)

	entry, err := ts.e.openFiles.get(f)
	ts.Require().NoError(err)
	node, err := ts.e.inodes.get(entry.inumber)
	ts.Require().NoError(err)
	ts.Equal(1500, node.size)
	ts.NotEqual(empty, node.direct[0])
	ts.NotEqual(empty, node.direct[1])
}

// Scenario 5: indirect-block write.
func (ts *EngineTest) TestIndirectBlockWrite() {
	f, err := ts.e.Open("/f1", OCreat)
	ts.Require().NoError(err)

	full := make([]byte, BlockSize)
	for i := 0; i < DirectPointers; i++ {
		n, err := ts.e.Write(f, full)
		ts.Require().NoError(err)
		ts.Equal(BlockSize, n)
	}
	n, err := ts.e.Write(f, []byte{0x7})
	ts.Require().NoError(err)
	ts.Equal(1, n)

	entry, _ := ts.e.openFiles.get(f)
	node, _ := ts.e.inodes.get(entry.inumber)
	ts.NotEqual(empty, node.indirect)
	table := ts.e.blocks.pointerTable(node.indirect)
	ts.NotEqual(empty, table.get(0))
	ts.Equal(DirectPointers*BlockSize+1, node.size)
}

// Scenario 6: concurrent opens of the same new name.
func (ts *EngineTest) TestConcurrentOpensReuseTheSameFile() {
	var wg sync.WaitGroup
	handles := make([]int, 5)
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := ts.e.Open("/shared", OCreat)
			handles[i] = h
			errs[i] = err
			if err == nil {
				ts.e.Close(h)
			}
		}(i)
	}
	wg.Wait()

	for i := range handles {
		ts.Require().NoError(errs[i])
		ts.GreaterOrEqual(handles[i], 0)
	}
	inum := ts.e.Lookup("/shared")
	ts.Require().NotEqual(empty, inum)
	ts.True(ts.e.inodes.dirIsEmpty(RootInum) == false)
}

// IP2/IP3/IP6: two goroutines writing distinguishable patterns through
// the same open-file handle must not clobber each other's bytes or
// advance the shared offset past/short of what was actually written.
func (ts *EngineTest) TestIP6_ConcurrentWritesToSharedHandleDoNotClobber() {
	f, err := ts.e.Open("/contended", OCreat)
	ts.Require().NoError(err)

	const payloadLen = 2500 // spans multiple blocks (BlockSize=1024)
	patternA := make([]byte, payloadLen)
	for i := range patternA {
		patternA[i] = 0xAA
	}
	patternB := make([]byte, payloadLen)
	for i := range patternB {
		patternB[i] = 0xBB
	}

	var wg sync.WaitGroup
	written := make([]int, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		n, werr := ts.e.Write(f, patternA)
		ts.Require().NoError(werr)
		written[0] = n
	}()
	go func() {
		defer wg.Done()
		n, werr := ts.e.Write(f, patternB)
		ts.Require().NoError(werr)
		written[1] = n
	}()
	wg.Wait()

	total := written[0] + written[1]
	ts.Equal(2*payloadLen, total)
	ts.Require().NoError(ts.e.Close(f))

	f, err = ts.e.Open("/contended", 0)
	ts.Require().NoError(err)
	buf := make([]byte, total)
	n, err := ts.e.Read(f, buf)
	ts.Require().NoError(err)
	ts.Require().NoError(ts.e.Close(f))

	ts.Equal(total, n)
	countA, countB := 0, 0
	for _, b := range buf[:n] {
		switch b {
		case 0xAA:
			countA++
		case 0xBB:
			countB++
		default:
			ts.Failf("stale or corrupted byte", "found %#x in written region", b)
		}
	}
	ts.Equal(payloadLen, countA, "every byte of A's write must survive exactly once, with no clobbering or gaps")
	ts.Equal(payloadLen, countB, "every byte of B's write must survive exactly once, with no clobbering or gaps")
}

// IP1: active handles never exceed MaxOpenFiles and equal opens-closes.
func (ts *EngineTest) TestIP1_ActiveHandleAccounting() {
	ts.Equal(0, ts.e.openFiles.openCount())
	var handles []int
	for i := 0; i < MaxOpenFiles; i++ {
		f, err := ts.e.Open("/many"+string(rune('a'+i)), OCreat)
		ts.Require().NoError(err)
		handles = append(handles, f)
	}
	ts.Equal(MaxOpenFiles, ts.e.openFiles.openCount())

	_, err := ts.e.Open("/overflow", OCreat)
	ts.Require().Error(err)

	for _, h := range handles {
		ts.Require().NoError(ts.e.Close(h))
	}
	ts.Equal(0, ts.e.openFiles.openCount())
}

// IP5: O_TRUNC frees every block the file owned.
func (ts *EngineTest) TestIP5_TruncFreesBlocks() {
	f, err := ts.e.Open("/big", OCreat)
	ts.Require().NoError(err)
	_, err = ts.e.Write(f, make([]byte, 3*BlockSize))
	ts.Require().NoError(err)
	ts.Require().NoError(ts.e.Close(f))

	freeBefore := countFree(ts.e.blocks)
	f, err = ts.e.Open("/big", OTrunc)
	ts.Require().NoError(err)
	freeAfter := countFree(ts.e.blocks)

	ts.Equal(freeBefore+3, freeAfter)
	entry, _ := ts.e.openFiles.get(f)
	node, _ := ts.e.inodes.get(entry.inumber)
	ts.Equal(0, node.size)
}

// IP4: write then read from offset 0 is the identity on [0, size).
func (ts *EngineTest) TestIP4_WriteReadIdentity() {
	f, err := ts.e.Open("/id", OCreat)
	ts.Require().NoError(err)
	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	_, err = ts.e.Write(f, payload)
	ts.Require().NoError(err)
	ts.Require().NoError(ts.e.Close(f))

	f, err = ts.e.Open("/id", 0)
	ts.Require().NoError(err)
	buf := make([]byte, len(payload))
	n, err := ts.e.Read(f, buf)
	ts.Require().NoError(err)
	ts.Equal(len(payload), n)
	ts.Equal(payload, buf)
}

// IP7 / scenario 8: DestroyAfterAllClosed blocks until the open-file
// table is empty.
func (ts *EngineTest) TestIP7_DestroyAfterAllClosedBlocksUntilEmpty() {
	f, err := ts.e.Open("/barrier", OCreat)
	ts.Require().NoError(err)

	done := make(chan struct{})
	go func() {
		ts.e.DestroyAfterAllClosed()
		close(done)
	}()

	select {
	case <-done:
		ts.Fail("DestroyAfterAllClosed returned before the file was closed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(ts.T(), ts.e.Close(f))

	select {
	case <-done:
	case <-time.After(time.Second):
		ts.Fail("DestroyAfterAllClosed did not return after close")
	}
}

func TestOpenRejectsBadPath(t *testing.T) {
	e, err := New(Config{}, nil)
	require.NoError(t, err)

	_, err = e.Open("", OCreat)
	assert.Error(t, err)
	_, err = e.Open("noslash", OCreat)
	assert.Error(t, err)
	_, err = e.Open("/", OCreat)
	assert.Error(t, err)
}

func TestOpenWithoutCreateOnMissingFileIsNotFound(t *testing.T) {
	e, err := New(Config{}, nil)
	require.NoError(t, err)

	_, err = e.Open("/ghost", 0)
	assert.Error(t, err)
}

func TestLookupMissReturnsEmpty(t *testing.T) {
	e, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, e.Lookup("/nope"))
}
