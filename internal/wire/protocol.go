// Package wire implements the bit-exact TecnicoFS request/reply framing
// (§6): concatenated frames with no delimiters, a one-byte op-code
// followed by a fixed-layout payload, little-endian fixed-width fields,
// null-padded fixed-length strings.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// OpCode identifies a frame's payload layout.
type OpCode byte

const (
	OpMount    OpCode = 1
	OpUnmount  OpCode = 2
	OpOpen     OpCode = 3
	OpClose    OpCode = 4
	OpWrite    OpCode = 5
	OpRead     OpCode = 6
	OpShutdown OpCode = 7
)

func (op OpCode) String() string {
	switch op {
	case OpMount:
		return "mount"
	case OpUnmount:
		return "unmount"
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("op(%d)", byte(op))
	}
}

const (
	// ReplyPathLen is the fixed width of a mount frame's reply-channel
	// path field.
	ReplyPathLen = 40
	// NameLen is the fixed width of an open frame's name field.
	NameLen = 40
)

// ReadOpCode reads the single op-code byte that starts every frame.
func ReadOpCode(r io.Reader) (OpCode, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return OpCode(b[0]), nil
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func writeInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func readFixedString(r io.Reader, width int) (string, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	n := 0
	for n < width && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

func writeFixedString(w io.Writer, s string, width int) error {
	buf := make([]byte, width)
	n := len(s)
	if n > width-1 {
		n = width - 1
	}
	copy(buf, s[:n])
	_, err := w.Write(buf)
	return err
}

// MountRequest is op 1's payload: reply_path[40].
type MountRequest struct {
	ReplyPath string
}

func ReadMountRequest(r io.Reader) (MountRequest, error) {
	path, err := readFixedString(r, ReplyPathLen)
	return MountRequest{ReplyPath: path}, err
}

// UnmountRequest is op 2's payload: session_id:int32.
type UnmountRequest struct {
	SessionID int32
}

func ReadUnmountRequest(r io.Reader) (UnmountRequest, error) {
	id, err := readInt32(r)
	return UnmountRequest{SessionID: id}, err
}

// OpenRequest is op 3's payload: session_id:int32, name[40], flags:int32.
type OpenRequest struct {
	SessionID int32
	Name      string
	Flags     int32
}

func ReadOpenRequest(r io.Reader) (OpenRequest, error) {
	var req OpenRequest
	var err error
	if req.SessionID, err = readInt32(r); err != nil {
		return req, err
	}
	if req.Name, err = readFixedString(r, NameLen); err != nil {
		return req, err
	}
	req.Flags, err = readInt32(r)
	return req, err
}

// CloseRequest is op 4's payload: session_id:int32, handle:int32.
type CloseRequest struct {
	SessionID int32
	Handle    int32
}

func ReadCloseRequest(r io.Reader) (CloseRequest, error) {
	var req CloseRequest
	var err error
	if req.SessionID, err = readInt32(r); err != nil {
		return req, err
	}
	req.Handle, err = readInt32(r)
	return req, err
}

// WriteRequest is op 5's payload: session_id:int32, handle:int32,
// len:size_t, bytes[len].
type WriteRequest struct {
	SessionID int32
	Handle    int32
	Data      []byte
}

func ReadWriteRequest(r io.Reader) (WriteRequest, error) {
	var req WriteRequest
	var err error
	if req.SessionID, err = readInt32(r); err != nil {
		return req, err
	}
	if req.Handle, err = readInt32(r); err != nil {
		return req, err
	}
	length, err := readInt64(r)
	if err != nil {
		return req, err
	}
	req.Data = make([]byte, length)
	_, err = io.ReadFull(r, req.Data)
	return req, err
}

// ReadRequest is op 6's payload: session_id:int32, handle:int32, len:size_t.
type ReadRequest struct {
	SessionID int32
	Handle    int32
	Len       int64
}

func ReadReadRequest(r io.Reader) (ReadRequest, error) {
	var req ReadRequest
	var err error
	if req.SessionID, err = readInt32(r); err != nil {
		return req, err
	}
	if req.Handle, err = readInt32(r); err != nil {
		return req, err
	}
	req.Len, err = readInt64(r)
	return req, err
}

// ShutdownRequest is op 7's payload: session_id:int32.
type ShutdownRequest struct {
	SessionID int32
}

func ReadShutdownRequest(r io.Reader) (ShutdownRequest, error) {
	id, err := readInt32(r)
	return ShutdownRequest{SessionID: id}, err
}

// WriteMountRequest serializes a mount frame (op-code + payload); used by
// the test harness client.
func WriteMountRequest(w io.Writer, req MountRequest) error {
	if err := writeByte(w, byte(OpMount)); err != nil {
		return err
	}
	return writeFixedString(w, req.ReplyPath, ReplyPathLen)
}

func WriteUnmountRequest(w io.Writer, req UnmountRequest) error {
	if err := writeByte(w, byte(OpUnmount)); err != nil {
		return err
	}
	return writeInt32(w, req.SessionID)
}

func WriteOpenRequest(w io.Writer, req OpenRequest) error {
	if err := writeByte(w, byte(OpOpen)); err != nil {
		return err
	}
	if err := writeInt32(w, req.SessionID); err != nil {
		return err
	}
	if err := writeFixedString(w, req.Name, NameLen); err != nil {
		return err
	}
	return writeInt32(w, req.Flags)
}

func WriteCloseRequest(w io.Writer, req CloseRequest) error {
	if err := writeByte(w, byte(OpClose)); err != nil {
		return err
	}
	if err := writeInt32(w, req.SessionID); err != nil {
		return err
	}
	return writeInt32(w, req.Handle)
}

func WriteWriteRequest(w io.Writer, req WriteRequest) error {
	if err := writeByte(w, byte(OpWrite)); err != nil {
		return err
	}
	if err := writeInt32(w, req.SessionID); err != nil {
		return err
	}
	if err := writeInt32(w, req.Handle); err != nil {
		return err
	}
	if err := writeInt64(w, int64(len(req.Data))); err != nil {
		return err
	}
	_, err := w.Write(req.Data)
	return err
}

func WriteReadRequest(w io.Writer, req ReadRequest) error {
	if err := writeByte(w, byte(OpRead)); err != nil {
		return err
	}
	if err := writeInt32(w, req.SessionID); err != nil {
		return err
	}
	if err := writeInt32(w, req.Handle); err != nil {
		return err
	}
	return writeInt64(w, req.Len)
}

func WriteShutdownRequest(w io.Writer, req ShutdownRequest) error {
	if err := writeByte(w, byte(OpShutdown)); err != nil {
		return err
	}
	return writeInt32(w, req.SessionID)
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

// WriteInt32Reply writes a bare int32 reply (mount, unmount, open, close,
// shutdown all reply this way).
func WriteInt32Reply(w io.Writer, v int32) error {
	return writeInt32(w, v)
}

// ReadInt32Reply reads a bare int32 reply.
func ReadInt32Reply(r io.Reader) (int32, error) {
	return readInt32(r)
}

// WriteWriteReply writes a write reply: result:ssize_t.
func WriteWriteReply(w io.Writer, result int64) error {
	return writeInt64(w, result)
}

func ReadWriteReply(r io.Reader) (int64, error) {
	return readInt64(r)
}

// WriteReadReply writes a read reply: result:ssize_t, followed by
// bytes[result] when result >= 0.
func WriteReadReply(w io.Writer, data []byte, resultErr bool) error {
	if resultErr {
		return writeInt64(w, -1)
	}
	if err := writeInt64(w, int64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadReadReply reads a read reply, returning the bytes when result >= 0.
func ReadReadReply(r io.Reader) ([]byte, int64, error) {
	result, err := readInt64(r)
	if err != nil || result < 0 {
		return nil, result, err
	}
	buf := make([]byte, result)
	_, err = io.ReadFull(r, buf)
	return buf, result, err
}
