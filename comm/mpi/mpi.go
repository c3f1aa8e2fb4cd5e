//go:build smio_mpi

// Package mpi implements comm.Communicator over a system MPI installation
// via cgo. It is built only under the smio_mpi tag so that the rest of the
// module, and every test in it, can run against comm/local without a system
// MPI library present. The cgo directives and error-handling shape below
// follow the same pattern used elsewhere in this module's lineage to wrap a
// native numerical library: a thin C shim exposes the handful of MPI calls
// needed, and every call's return code is checked and turned into a Go
// error instead of silently ignored.
package mpi

/*
#cgo LDFLAGS: -lmpi
#include <mpi.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Comm wraps an MPI communicator duplicated at construction time so that
// this package's collectives never collide with tags used elsewhere in the
// host program.
type Comm struct {
	comm C.MPI_Comm
	rank int
	size int
}

// Init duplicates MPI_COMM_WORLD and returns a Comm over the duplicate.
// It assumes MPI_Init has already been called by the host program.
func Init() (*Comm, error) {
	var dup C.MPI_Comm
	if rc := C.MPI_Comm_dup(C.MPI_COMM_WORLD, &dup); rc != C.MPI_SUCCESS {
		return nil, mpiError("MPI_Comm_dup", rc)
	}

	var rank, size C.int
	if rc := C.MPI_Comm_rank(dup, &rank); rc != C.MPI_SUCCESS {
		return nil, mpiError("MPI_Comm_rank", rc)
	}
	if rc := C.MPI_Comm_size(dup, &size); rc != C.MPI_SUCCESS {
		return nil, mpiError("MPI_Comm_size", rc)
	}

	return &Comm{comm: dup, rank: int(rank), size: int(size)}, nil
}

// Free releases the duplicated communicator.
func (c *Comm) Free() error {
	if rc := C.MPI_Comm_free(&c.comm); rc != C.MPI_SUCCESS {
		return mpiError("MPI_Comm_free", rc)
	}
	return nil
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.size }

func (c *Comm) AllReduceSumInt64(local int64) (int64, error) {
	var sum C.int64_t
	l := C.int64_t(local)
	rc := C.MPI_Allreduce(unsafe.Pointer(&l), unsafe.Pointer(&sum), 1,
		C.MPI_INT64_T, C.MPI_SUM, c.comm)
	if rc != C.MPI_SUCCESS {
		return 0, mpiError("MPI_Allreduce", rc)
	}
	return int64(sum), nil
}

func (c *Comm) Barrier() error {
	if rc := C.MPI_Barrier(c.comm); rc != C.MPI_SUCCESS {
		return mpiError("MPI_Barrier", rc)
	}
	return nil
}

func (c *Comm) SendRecv(send []int64, dest, source, tag int) ([]int64, error) {
	if dest == c.rank && source == c.rank {
		return send, nil
	}

	// Exchange lengths first so the receive buffer can be sized exactly,
	// mirroring how a variable-length MPI_Sendrecv exchange is normally
	// staged in two phases.
	sendLen := C.int64_t(len(send))
	var recvLen C.int64_t
	rc := C.MPI_Sendrecv(
		unsafe.Pointer(&sendLen), 1, C.MPI_INT64_T, C.int(dest), C.int(tag),
		unsafe.Pointer(&recvLen), 1, C.MPI_INT64_T, C.int(source), C.int(tag),
		c.comm, C.MPI_STATUS_IGNORE)
	if rc != C.MPI_SUCCESS {
		return nil, mpiError("MPI_Sendrecv(len)", rc)
	}

	recv := make([]int64, recvLen)

	var sendPtr, recvPtr unsafe.Pointer
	if len(send) > 0 {
		sendPtr = unsafe.Pointer(&send[0])
	} else {
		sendPtr = unsafe.Pointer(&sendLen) // dummy non-nil pointer, count 0
	}
	if len(recv) > 0 {
		recvPtr = unsafe.Pointer(&recv[0])
	} else {
		recvPtr = unsafe.Pointer(&recvLen)
	}

	rc = C.MPI_Sendrecv(
		sendPtr, C.int(len(send)), C.MPI_INT64_T, C.int(dest), C.int(tag),
		recvPtr, C.int(len(recv)), C.MPI_INT64_T, C.int(source), C.int(tag),
		c.comm, C.MPI_STATUS_IGNORE)
	if rc != C.MPI_SUCCESS {
		return nil, mpiError("MPI_Sendrecv", rc)
	}
	return recv, nil
}

func (c *Comm) Alltoallv(send []byte, sendCounts, sendDispls,
	recvCounts, recvDispls []int) ([]byte, error) {
	n := c.size

	cSendCounts := make([]C.int, n)
	cSendDispls := make([]C.int, n)
	cRecvCounts := make([]C.int, n)
	cRecvDispls := make([]C.int, n)
	total := 0
	for i := 0; i < n; i++ {
		cSendCounts[i] = C.int(sendCounts[i])
		cSendDispls[i] = C.int(sendDispls[i])
		cRecvCounts[i] = C.int(recvCounts[i])
		cRecvDispls[i] = C.int(recvDispls[i])
		total += recvCounts[i]
	}

	if len(send) == 0 {
		send = []byte{0}
	}
	recv := make([]byte, total)
	if len(recv) == 0 {
		recv = []byte{0}
	}

	rc := C.MPI_Alltoallv(
		unsafe.Pointer(&send[0]), &cSendCounts[0], &cSendDispls[0], C.MPI_BYTE,
		unsafe.Pointer(&recv[0]), &cRecvCounts[0], &cRecvDispls[0], C.MPI_BYTE,
		c.comm)
	if rc != C.MPI_SUCCESS {
		return nil, mpiError("MPI_Alltoallv", rc)
	}
	if total == 0 {
		return nil, nil
	}
	return recv[:total], nil
}

func mpiError(call string, rc C.int) error {
	var buf [C.MPI_MAX_ERROR_STRING]C.char
	var n C.int
	C.MPI_Error_string(rc, &buf[0], &n)
	return fmt.Errorf("%s: %s", call, C.GoStringN(&buf[0], n))
}
