package server

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var errBadSessionID = errors.New("session id out of range")

// OpenRendezvous creates (if needed) and opens the well-known rendezvous
// FIFO at path for reading. It is opened O_RDWR rather than O_RDONLY so
// the producer never observes EOF between client connections: a FIFO
// opened read-only reads EOF once its last writer closes, which a
// read-write open on the same fd avoids, since the server itself always
// holds a writer reference.
func OpenRendezvous(path string) (*os.File, error) {
	if err := unix.Mkfifo(path, 0644); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
}
