package engine

import "sync"

// openFileEntry maps a handle to (inode, byte offset, block offset). Its
// own mutex serialises updates to the offsets for that handle; it may be
// acquired before the inode lock but never after, to avoid ordering
// cycles (§5 rule 3).
type openFileEntry struct {
	mu          sync.Mutex
	inumber     int
	byteOffset  int // < BlockSize
	blockOffset int // < DirectPointers+IndirectPointers
}

func (e *openFileEntry) position() int {
	return e.blockOffset*BlockSize + e.byteOffset
}

// openFileTable is a fixed array of open-file entries with a free bitmap
// guarded by a mutex (component D).
type openFileTable struct {
	mu      sync.Mutex
	free    []bool
	entries []*openFileEntry
}

func newOpenFileTable() *openFileTable {
	t := &openFileTable{
		free:    make([]bool, MaxOpenFiles),
		entries: make([]*openFileEntry, MaxOpenFiles),
	}
	for i := range t.entries {
		t.free[i] = true
		t.entries[i] = &openFileEntry{}
	}
	return t
}

func validFileHandle(h int) bool { return h >= 0 && h < MaxOpenFiles }

// open claims a free slot for inumber at the given initial byte offset,
// normalising it into (blockOffset, byteOffset), and returns the handle,
// or empty if the table is full (§4.D).
func (t *openFileTable) open(inumber, initialOffset int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, isFree := range t.free {
		if isFree {
			t.free[i] = false
			e := t.entries[i]
			e.inumber = inumber
			e.blockOffset = initialOffset / BlockSize
			e.byteOffset = initialOffset % BlockSize
			return i
		}
	}
	return empty
}

// close releases handle. Errors if handle is out of range or its slot is
// already free.
func (t *openFileTable) close(handle int) error {
	if !validFileHandle(handle) {
		return newErr("close", KindInvalidArg, errBadHandle)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.free[handle] {
		return newErr("close", KindInvalidArg, errBadHandle)
	}
	t.free[handle] = true
	return nil
}

// get returns a stable handle to the open-file entry, or an error if
// handle is out of range or its slot is not in use.
func (t *openFileTable) get(handle int) (*openFileEntry, error) {
	if !validFileHandle(handle) {
		return nil, newErr("get_open_file", KindInvalidArg, errBadHandle)
	}
	t.mu.Lock()
	isFree := t.free[handle]
	t.mu.Unlock()
	if isFree {
		return nil, newErr("get_open_file", KindInvalidArg, errBadHandle)
	}
	return t.entries[handle], nil
}

// openCount returns the number of currently-open entries, used by the
// destroy-after-all-closed barrier (§4.F).
func (t *openFileTable) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, isFree := range t.free {
		if !isFree {
			n++
		}
	}
	return n
}
