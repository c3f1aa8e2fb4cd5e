// Package ioformat is the file-level façade the decomposition and
// exchange engine sits behind: open/close, dimension and variable
// definition, inquiry, and collective put/get of decomposed variables
// against a pluggable parallel file-format Backend. None of this package
// carries algorithmic content of its own — every byte movement across
// ranks is delegated to decomp.TransferField.
package ioformat

import "errors"

// Mode selects how an existing file is opened.
type Mode int

const (
	ModeRead Mode = iota
	ModeReadWrite
)

// VarType is the scalar type of a variable's elements, independent of
// any decomposed or unlimited dimension it may have.
type VarType int

const (
	Float32 VarType = iota + 1
	Float64
	Int32
	Int64
	Byte
)

// Size returns the number of bytes one scalar of t occupies.
func (t VarType) Size() int {
	switch t {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Byte:
		return 1
	default:
		return 0
	}
}

var (
	ErrRecordTooLarge  = errors.New("ioformat: record size exceeds the 32-bit collective I/O count limit")
	ErrReadOnlyBackend = errors.New("ioformat: backend does not support Create")
	ErrUnknownVar      = errors.New("ioformat: no such variable")
	ErrUnknownDim      = errors.New("ioformat: no such dimension")
)

// Backend is the seam over the parallel file-format library itself —
// "a third-party library providing collective I/O of typed arrays with
// start/count hyperslabs" — which stays out of this module: it is an
// external collaborator this package calls through, never implements.
type Backend interface {
	Create(path string) (Handle, error)
	Open(path string, mode Mode) (Handle, error)
}

// Handle is one open file's collective operations, exactly the subset
// the façade needs to implement File.
type Handle interface {
	DefineDim(name string, size int64) error
	DefineVar(name string, vtype VarType, dims []string) error
	InquireDim(name string) (size int64, isUnlimited bool, err error)
	InquireVar(name string) (vtype VarType, dims []string, err error)
	PutVara(varname string, start, count []int64, data []byte) error
	GetVara(varname string, start, count []int64, data []byte) error
	Sync() error
	Close() error
}

// maxCollectiveCount is the largest number of bytes a single PutVara/
// GetVara call on a decomposed variable may move (File.checkRecordSize
// compares elementSize*ioCount against it), mirroring the 32-bit count parameter the
// original backend call inherits its 2 GiB record cap from.
const maxCollectiveCount = (1 << 31) - 1
