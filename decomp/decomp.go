package decomp

import (
	"github.com/google/uuid"

	"github.com/gridio/pario/comm"
)

// Decomposition is the immutable handle a successful CreateDecomp hands
// back: the two triplet tables that drive TransferField in either
// direction, plus this rank's I/O-side window of the global index space.
// Every field is read-only after construction; the only mutation in this
// package after CreateDecomp returns is Close (and FreeDecomp through it),
// which releases the tables.
type Decomposition struct {
	// CompList describes, from this rank's compute-side perspective, every
	// element it sends (CompToIO) or receives (IOToComp), sorted by Peer.
	CompList TripletTable
	// IOList describes the same exchange from this rank's I/O-side
	// perspective (empty on ranks not chosen as I/O ranks), sorted by Peer.
	IOList TripletTable
	// IOStart, IOCount give this rank's contiguous slice of [0, nGlobal)
	// when acting as an I/O rank; both zero otherwise.
	IOStart, IOCount int64

	// ID correlates log lines across every rank that jointly owns this
	// decomposition. It is never interpreted by any operation.
	ID uuid.UUID

	nCompute int64
	nGlobal  int64
	closed   bool
}

// CreateDecomp builds a decomposition across the group comm belongs to.
// Every rank must call it with its own computeIDs and with the same
// numIOTasks/ioStride policy; CreateDecomp first learns the global
// element count via an all-reduce, then runs the I/O partitioner and the
// exchange-plan builder. On any failure it returns a nil *Decomposition
// and an error identifying the kind.
func CreateDecomp(c comm.Communicator, computeIDs []int64, numIOTasks, ioStride int) (*Decomposition, error) {
	if c == nil {
		return nil, invalidArgument("communicator must not be nil")
	}

	if err := ValidateIOPolicy(numIOTasks, ioStride, c.Size()); err != nil {
		return nil, err
	}

	localCount := int64(len(computeIDs))
	nGlobal, err := c.AllReduceSumInt64(localCount)
	if err != nil {
		return nil, mpiError(err, "failed to reduce global element count")
	}

	for _, id := range computeIDs {
		if id < 0 || id >= nGlobal {
			return nil, invalidArgument("compute element ID %d out of range [0,%d)", id, nGlobal)
		}
	}

	ioStart, ioCount, err := IOElements(c.Rank(), numIOTasks, ioStride, nGlobal)
	if err != nil {
		return nil, err
	}

	compList, ioList, err := buildExchange(c, computeIDs, ioStart, ioCount)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, mallocFailure(err, "failed to allocate decomposition correlation ID")
	}

	return &Decomposition{
		CompList: compList,
		IOList:   ioList,
		IOStart:  ioStart,
		IOCount:  ioCount,
		ID:       id,
		nCompute: localCount,
		nGlobal:  nGlobal,
	}, nil
}

// Close releases decomp's tables. It is idempotent: calling it more than
// once, or on a nil receiver, is a no-op that returns nil.
func (d *Decomposition) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.CompList = nil
	d.IOList = nil
	d.closed = true
	return nil
}

// FreeDecomp releases *decomp and sets the caller's pointer to nil,
// matching the pointer-to-pointer release contract the external
// interface table specifies so the caller cannot accidentally keep using
// a freed handle. Calling it with decomp == nil, or with *decomp == nil,
// succeeds as a no-op.
func FreeDecomp(decomp **Decomposition) error {
	if decomp == nil || *decomp == nil {
		return nil
	}
	(*decomp).Close()
	*decomp = nil
	return nil
}
