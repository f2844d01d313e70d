package engine

import "errors"

// Kind categorizes an engine error the way §7 of the design distinguishes
// them, so callers that need more than a bare -1 can branch on it. The
// wire protocol still collapses every Kind to -1 (§7 propagation policy).
type Kind int

const (
	// KindInvalidArg marks a bad path, out-of-range handle/inumber, or
	// an empty name.
	KindInvalidArg Kind = iota
	// KindExhausted marks a full inode table, block pool, open-file
	// table, or session pool.
	KindExhausted
	// KindNotFound marks a lookup miss with O_CREAT absent.
	KindNotFound
	// KindIO marks a server-side channel or external-file failure.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArg:
		return "invalid_argument"
	case KindExhausted:
		return "resource_exhausted"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the tagged error variant this implementation exposes in place
// of the original's ubiquitous -1 return (DESIGN NOTES, "Error model").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Sentinels for common invalid-argument cases, wrapped by newErr to carry
// an operation name and kind.
var (
	errBadPath        = errors.New("path must start with '/' and have a name")
	errBadInumber     = errors.New("inode number out of range")
	errBadHandle      = errors.New("file handle out of range or not open")
	errEmptyName      = errors.New("directory entry name is empty")
	errNotDirectory   = errors.New("inode is not a directory")
	errNotEmptyDir    = errors.New("directory is not empty")
	errWrongInodeType = errors.New("inode is not a regular file")
)
