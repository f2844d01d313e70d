package engine

import (
	"os"
	"strings"
	"sync"

	"github.com/tecnicofs/tfs/internal/logger"
)

// Config controls the engine's behavioural knobs that are not part of the
// fixed data model (§3's constants are compile-time and never
// configurable).
type Config struct {
	// SimulateStorageLatency gates the busy-wait that stands in for
	// storage access latency (§4.A). Must stay false in correctness
	// tests and benchmarks that assert on wall-clock time.
	SimulateStorageLatency bool
}

// Engine owns all filesystem state as a value rather than as process-wide
// singletons (DESIGN NOTES, "Global mutable state"): every operation is a
// method on *Engine, so a test harness or an embedding program can run
// several independent engines side by side.
type Engine struct {
	blocks    *blockPool
	inodes    *inodeTable
	openFiles *openFileTable
	log       *logger.Logger

	closedMu sync.Mutex
	closedCV *sync.Cond
}

// New creates and initializes an engine: it marks every slot of every free
// bitmap FREE and creates the root directory at RootInum (§4.F). Any deviation from
// RootInum for the root's inode number is a fatal construction error, as
// the original's tfs_init treats it.
func New(cfg Config, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Nop()
	}
	delay := storageLatency{enabled: cfg.SimulateStorageLatency}
	e := &Engine{
		blocks:    newBlockPool(delay),
		inodes:    newInodeTable(nil, delay),
		openFiles: newOpenFileTable(),
		log:       log,
	}
	e.inodes.blocks = e.blocks
	e.closedCV = sync.NewCond(&e.closedMu)

	root := e.inodes.create(DirType)
	if root != RootInum {
		return nil, newErr("init", KindIO, errBadInumber)
	}
	log.Info("engine initialized", "root_inum", root)
	return e, nil
}

// Destroy ends the engine's use (§4.F). It only logs: no table is reset
// and no state is released, so a destroyed engine keeps its files and
// must not be used again.
func (e *Engine) Destroy() error {
	e.log.Info("engine destroyed")
	return nil
}

// DestroyAfterAllClosed blocks until every open-file slot is free, then
// calls Destroy. It composes with the server's shutdown command (§4.F,
// §4.G case 7, IP7).
func (e *Engine) DestroyAfterAllClosed() error {
	e.closedMu.Lock()
	for e.openFiles.openCount() > 0 {
		e.closedCV.Wait()
	}
	e.closedMu.Unlock()
	return e.Destroy()
}

// OpenFileCount returns the number of currently-open handles, for metrics
// and for tests asserting IP1.
func (e *Engine) OpenFileCount() int { return e.openFiles.openCount() }

// InodesInUse returns the number of allocated inodes, for metrics.
func (e *Engine) InodesInUse() int { return e.inodes.inUse() }

// BlocksInUse returns the number of allocated data blocks, for metrics.
func (e *Engine) BlocksInUse() int { return e.blocks.inUse() }

func validPathname(name string) bool {
	return len(name) > 1 && name[0] == '/'
}

// Lookup resolves name (which must start with '/') against the flat root
// directory, returning its inumber or empty if it does not exist. This is
// the original's tfs_lookup, exposed standalone in addition to being
// folded into Open's existence check (SPEC_FULL.md "Supplemented
// features").
func (e *Engine) Lookup(name string) int {
	if !validPathname(name) {
		return empty
	}
	return e.inodes.lookupDirEntry(RootInum, strings.TrimPrefix(name, "/"))
}

// Open resolves or creates name according to flags and returns a handle,
// or an error. Operation order matches §4.E: existence check, truncate if
// requested, compute initial offset, allocate the open-file entry. If
// O_CREAT creates the inode and the directory entry but the open-file
// table is full, the file remains created (documented asymmetry, §4.E).
func (e *Engine) Open(name string, flags OpenFlags) (int, error) {
	if !validPathname(name) {
		return empty, newErr("open", KindInvalidArg, errBadPath)
	}
	bareName := name[1:]

	inum := e.inodes.lookupDirEntry(RootInum, bareName)
	var offset int

	if inum != empty {
		node, err := e.inodes.get(inum)
		if err != nil {
			return empty, err
		}
		if flags&OTrunc != 0 {
			if err := e.inodes.truncateData(inum); err != nil {
				return empty, err
			}
			e.inodes.resetMetadata(inum)
		}
		if flags&OAppend != 0 {
			node.mu.RLock()
			offset = node.size
			node.mu.RUnlock()
		} else {
			offset = 0
		}
	} else if flags&OCreat != 0 {
		newInum := e.inodes.create(FileType)
		if newInum == empty {
			return empty, newErr("open", KindExhausted, nil)
		}
		if err := e.inodes.addDirEntry(RootInum, newInum, bareName); err != nil {
			_ = e.inodes.delete(newInum)
			return empty, err
		}
		inum = newInum
		offset = 0
	} else {
		return empty, newErr("open", KindNotFound, nil)
	}

	handle := e.openFiles.open(inum, offset)
	if handle == empty {
		return empty, newErr("open", KindExhausted, nil)
	}
	return handle, nil
}

// Close releases the open-file slot for handle (§4.E) and wakes any
// DestroyAfterAllClosed waiter.
func (e *Engine) Close(handle int) error {
	if err := e.openFiles.close(handle); err != nil {
		return err
	}
	e.closedMu.Lock()
	e.closedCV.Broadcast()
	e.closedMu.Unlock()
	return nil
}

// ensureBlockLocked returns the block index backing blockOffset,
// allocating direct/indirect pointer blocks as needed so that every
// offset below blockOffset*BlockSize is backed (eager-allocation
// invariant, §4.E ensure_block). node.mu must already be held for
// writing.
func (e *Engine) ensureBlockLocked(node *inode, blockOffset int) (int, error) {
	if blockOffset < DirectPointers {
		for i := 0; i <= blockOffset; i++ {
			if node.direct[i] == empty {
				b := e.blocks.alloc()
				if b == empty {
					return empty, newErr("write", KindExhausted, nil)
				}
				node.direct[i] = b
			}
		}
		return node.direct[blockOffset], nil
	}

	if node.indirect == empty {
		b := e.blocks.allocPointer()
		if b == empty {
			return empty, newErr("write", KindExhausted, nil)
		}
		node.indirect = b
	}
	table := e.blocks.pointerTable(node.indirect)
	j := blockOffset - DirectPointers
	for i := 0; i <= j; i++ {
		if table.get(i) == empty {
			b := e.blocks.alloc()
			if b == empty {
				return empty, newErr("write", KindExhausted, nil)
			}
			table.set(i, b)
		}
	}
	return table.get(j), nil
}

// blockAtLocked returns the block index already backing blockOffset
// without allocating; node.mu must already be held (for reading or
// writing). Used by Read, which relies on the eager-allocation invariant
// that every block up to the current size is already present.
func (e *Engine) blockAtLocked(node *inode, blockOffset int) int {
	if blockOffset < DirectPointers {
		return node.direct[blockOffset]
	}
	if node.indirect == empty {
		return empty
	}
	table := e.blocks.pointerTable(node.indirect)
	return table.get(blockOffset - DirectPointers)
}

// Write writes buf to handle starting at its current offset, block by
// block, bounded by MaxFileSize. Returns the number of bytes actually
// written; writing beyond MaxFileSize returns the partial count rather
// than an error (§4.E, IP2).
func (e *Engine) Write(handle int, buf []byte) (int, error) {
	entry, err := e.openFiles.get(handle)
	if err != nil {
		return 0, err
	}
	node, err := e.inodes.get(entry.inumber)
	if err != nil {
		return 0, err
	}

	total := 0
	remaining := len(buf)
	for remaining > 0 {
		// entry.mu is held across the whole read-offset/copy/advance-offset
		// sequence for this chunk, not just its edges: two Writes racing on
		// the same handle must not both read the same offset and clobber
		// each other's bytes while size advances by both (§5, IP2/IP6).
		// node.mu nests inside it, per the stated lock order (open-file
		// mutex may be acquired before the inode lock, never after).
		entry.mu.Lock()
		byteOffset := entry.byteOffset
		blockOffset := entry.blockOffset

		if blockOffset >= DirectPointers+IndirectPointers {
			entry.mu.Unlock()
			break
		}

		room := BlockSize - byteOffset
		chunk := remaining
		if chunk > room {
			chunk = room
		}

		node.mu.Lock()
		blockIdx, aerr := e.ensureBlockLocked(node, blockOffset)
		if aerr != nil {
			node.mu.Unlock()
			entry.mu.Unlock()
			break
		}
		block := e.blocks.get(blockIdx)
		copy(block[byteOffset:byteOffset+chunk], buf[total:total+chunk])
		node.size += chunk
		node.mu.Unlock()

		entry.byteOffset += chunk
		if entry.byteOffset >= BlockSize {
			entry.byteOffset -= BlockSize
			entry.blockOffset++
		}
		entry.mu.Unlock()

		total += chunk
		remaining -= chunk
	}
	return total, nil
}

// Read reads up to len(buf) bytes from handle's current offset, bounded
// by the file's size, block by block (§4.E, IP4).
func (e *Engine) Read(handle int, buf []byte) (int, error) {
	entry, err := e.openFiles.get(handle)
	if err != nil {
		return 0, err
	}
	node, err := e.inodes.get(entry.inumber)
	if err != nil {
		return 0, err
	}

	entry.mu.Lock()
	offset := entry.position()
	entry.mu.Unlock()

	node.mu.RLock()
	size := node.size
	node.mu.RUnlock()

	avail := size - offset
	if avail < 0 {
		avail = 0
	}
	toRead := len(buf)
	if toRead > avail {
		toRead = avail
	}

	total := 0
	remaining := toRead
	for remaining > 0 {
		entry.mu.Lock()
		byteOffset := entry.byteOffset
		blockOffset := entry.blockOffset
		entry.mu.Unlock()

		room := BlockSize - byteOffset
		chunk := remaining
		if chunk > room {
			chunk = room
		}

		node.mu.RLock()
		blockIdx := e.blockAtLocked(node, blockOffset)
		block := e.blocks.get(blockIdx)
		copy(buf[total:total+chunk], block[byteOffset:byteOffset+chunk])
		node.mu.RUnlock()

		entry.mu.Lock()
		entry.byteOffset += chunk
		if entry.byteOffset >= BlockSize {
			entry.byteOffset -= BlockSize
			entry.blockOffset++
		}
		entry.mu.Unlock()

		total += chunk
		remaining -= chunk
	}
	return total, nil
}

// CopyToExternal opens srcPath inside the engine, reads it in full, and
// writes it to dstPath on the host filesystem using ordinary file I/O,
// mirroring the original's tfs_copy_to_external_fs (SPEC_FULL.md
// "Supplemented features").
func (e *Engine) CopyToExternal(srcPath, dstPath string) error {
	handle, err := e.Open(srcPath, 0)
	if err != nil {
		return err
	}
	defer e.Close(handle)

	entry, err := e.openFiles.get(handle)
	if err != nil {
		return err
	}
	node, err := e.inodes.get(entry.inumber)
	if err != nil {
		return err
	}
	node.mu.RLock()
	size := node.size
	node.mu.RUnlock()

	buf := make([]byte, size)
	n, err := e.Read(handle, buf)
	if err != nil {
		return err
	}
	if n != size {
		return newErr("copy_to_external", KindIO, nil)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return newErr("copy_to_external", KindIO, err)
	}
	defer dst.Close()
	if _, err := dst.Write(buf[:n]); err != nil {
		return newErr("copy_to_external", KindIO, err)
	}
	return nil
}
