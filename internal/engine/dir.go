package engine

import (
	"encoding/binary"
)

// dirEntrySize is sizeof(inumber int32 + name[MaxFilename]) — the layout
// of one directory entry inside a directory's entry block (§3).
const dirEntrySize = 4 + MaxFilename

// maxDirEntries is the number of entries that fit in one BlockSize block.
const maxDirEntries = BlockSize / dirEntrySize

// directoryEntries interprets a data block as a flat array of directory
// entries (component C). No hashing: lookups and insertions are linear
// scans, exactly as the design specifies.
type directoryEntries []byte

func (d directoryEntries) count() int { return maxDirEntries }

func (d directoryEntries) entry(i int) []byte {
	start := i * dirEntrySize
	return d[start : start+dirEntrySize]
}

func (d directoryEntries) inumber(i int) int {
	e := d.entry(i)
	return int(int32(binary.LittleEndian.Uint32(e[:4])))
}

func (d directoryEntries) setInumber(i int, inum int) {
	e := d.entry(i)
	binary.LittleEndian.PutUint32(e[:4], uint32(int32(inum)))
}

func (d directoryEntries) name(i int) string {
	e := d.entry(i)[4:]
	n := 0
	for n < MaxFilename && e[n] != 0 {
		n++
	}
	return string(e[:n])
}

func (d directoryEntries) setName(i int, name string) {
	e := d.entry(i)[4:]
	for j := range e {
		e[j] = 0
	}
	n := len(name)
	if n > MaxFilename-1 {
		n = MaxFilename - 1
	}
	copy(e[:n], name[:n])
}

// addDirEntry stores (childInum, name) in the first free slot of dirInum's
// entry block. Rejects invalid inumbers, a non-directory parent, or an
// empty name. Names are not checked for uniqueness: callers must call
// lookup first (§4.C).
func (it *inodeTable) addDirEntry(dirInum, childInum int, name string) error {
	if !validInumber(dirInum) || !validInumber(childInum) {
		return newErr("add_dir_entry", KindInvalidArg, errBadInumber)
	}
	if name == "" {
		return newErr("add_dir_entry", KindInvalidArg, errEmptyName)
	}
	it.delay.hit()

	dir := it.inodes[dirInum]
	dir.mu.RLock()
	if dir.typ != DirType {
		dir.mu.RUnlock()
		return newErr("add_dir_entry", KindInvalidArg, errNotDirectory)
	}
	block := it.blocks.get(dir.indirect)
	dir.mu.RUnlock()
	if block == nil {
		return newErr("add_dir_entry", KindInvalidArg, errBadInumber)
	}

	entries := directoryEntries(block)
	for i := 0; i < entries.count(); i++ {
		if entries.inumber(i) == empty {
			entries.setInumber(i, childInum)
			entries.setName(i, name)
			return nil
		}
	}
	return newErr("add_dir_entry", KindExhausted, nil)
}

// lookupDirEntry returns the inumber stored under name in dirInum's entry
// block, or empty if there is no match (§4.C).
func (it *inodeTable) lookupDirEntry(dirInum int, name string) int {
	it.delay.hit()
	if !validInumber(dirInum) {
		return empty
	}
	dir := it.inodes[dirInum]
	dir.mu.RLock()
	if dir.typ != DirType {
		dir.mu.RUnlock()
		return empty
	}
	block := it.blocks.get(dir.indirect)
	dir.mu.RUnlock()
	if block == nil {
		return empty
	}

	entries := directoryEntries(block)
	for i := 0; i < entries.count(); i++ {
		if entries.inumber(i) != empty && entries.name(i) == name {
			return entries.inumber(i)
		}
	}
	return empty
}

// dirIsEmpty reports whether every entry slot in dirInum's block is free.
// Used to decide the non-empty-directory-delete policy (§4.B, DESIGN.md).
func (it *inodeTable) dirIsEmpty(dirInum int) bool {
	dir := it.inodes[dirInum]
	dir.mu.RLock()
	defer dir.mu.RUnlock()
	if dir.typ != DirType {
		return true
	}
	block := it.blocks.get(dir.indirect)
	if block == nil {
		return true
	}
	entries := directoryEntries(block)
	for i := 0; i < entries.count(); i++ {
		if entries.inumber(i) != empty {
			return false
		}
	}
	return true
}
