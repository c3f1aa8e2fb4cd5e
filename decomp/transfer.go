package decomp

import "github.com/gridio/pario/comm"

// Direction selects which of a Decomposition's two tables drives the send
// side of a transfer and which drives the receive side.
type Direction int

const (
	// CompToIO packs from the compute-side buffer and delivers into the
	// I/O-side buffer: comp_list drives the send, io_list drives the receive.
	CompToIO Direction = iota
	// IOToComp reverses the roles: io_list drives the send, comp_list
	// drives the receive.
	IOToComp
)

// TransferField executes one collective all-to-all move of fixed-size
// records between a decomposition's compute-side and I/O-side layouts.
// in and out are flat byte buffers holding, respectively, nCompute and
// (on I/O ranks) ioCount records of elementSize bytes each, laid out in
// the same order as the caller's original compute_ids / the rank's
// [io_start, io_start+io_count) window.
//
// Counts and displacements for the underlying Alltoallv are derived from
// a single linear pass over the peer-sorted send table, exactly as
// spec step 4.4 directs, so that the byte layout the sender packs and
// the layout the receiver unpacks agree without either side needing to
// know anything about the other beyond the shared peer/element-id
// ordering baked into both tables at construction time.
func TransferField(c comm.Communicator, decomp *Decomposition, dir Direction, elementSize int, in, out []byte) error {
	if elementSize <= 0 {
		return invalidArgument("element_size must be positive, got %d", elementSize)
	}

	sendTable, recvTable := decomp.CompList, decomp.IOList
	if dir == IOToComp {
		sendTable, recvTable = decomp.IOList, decomp.CompList
	}

	wantSendLen := len(sendTable) * elementSize
	if len(in) < wantSendLen {
		return invalidArgument("input buffer too small: need %d bytes, got %d", wantSendLen, len(in))
	}
	wantRecvLen := len(recvTable) * elementSize
	if len(out) < wantRecvLen {
		return invalidArgument("output buffer too small: need %d bytes, got %d", wantRecvLen, len(out))
	}

	sendBuf, sendCounts, sendDispls, err := pack(sendTable, in, elementSize, c.Size())
	if err != nil {
		return err
	}
	recvCounts, recvDispls := layoutFor(recvTable, elementSize, c.Size())

	recvBuf, sendErr := c.Alltoallv(sendBuf, sendCounts, sendDispls, recvCounts, recvDispls)
	if sendErr != nil {
		return mpiError(sendErr, "alltoallv failed during field transfer")
	}

	unpack(recvTable, recvBuf, elementSize, c.Size(), out)
	return nil
}

// layoutFor walks a peer-sorted table once, accumulating how many records
// (and thus bytes) are destined for or arriving from each peer rank.
// Because both comp_list and io_list are kept sorted by Peer as a
// permanent post-construction invariant, this single pass is sufficient —
// no secondary grouping step is needed.
func layoutFor(table TripletTable, elementSize, groupSize int) (counts, displs []int) {
	counts = make([]int, groupSize)
	displs = make([]int, groupSize)
	for _, tri := range table {
		counts[tri.Peer] += elementSize
	}
	offset := 0
	for p := 0; p < groupSize; p++ {
		displs[p] = offset
		offset += counts[p]
	}
	return counts, displs
}

// pack gathers elementSize-byte records out of in, one per triplet in
// table, into peer-contiguous runs ordered exactly as table already is
// (peer-rank primary, then the table's own tie-break) — the packing order
// spec step 4.4 requires both sides to share.
func pack(table TripletTable, in []byte, elementSize, groupSize int) (buf []byte, counts, displs []int, err error) {
	counts, displs = layoutFor(table, elementSize, groupSize)
	total := displs[groupSize-1] + counts[groupSize-1]
	buf, err = allocBytes(total)
	if err != nil {
		return nil, nil, nil, err
	}

	cursor := make([]int, groupSize)
	copy(cursor, displs)
	for _, tri := range table {
		srcOff := int(tri.Slot) * elementSize
		dstOff := cursor[tri.Peer]
		copy(buf[dstOff:dstOff+elementSize], in[srcOff:srcOff+elementSize])
		cursor[tri.Peer] += elementSize
	}
	return buf, counts, displs, nil
}

// unpack is pack's inverse: it walks table in the same peer-contiguous
// order the sender used to produce buf and scatters each record back to
// its Slot position in out. groupSize must match the one used to derive
// buf's layout (the communicator's Size()), not just the distinct peers
// present in table, so that displacements line up with the Alltoallv
// result exactly.
func unpack(table TripletTable, buf []byte, elementSize, groupSize int, out []byte) {
	_, displs := layoutFor(table, elementSize, groupSize)

	cursor := make([]int, groupSize)
	copy(cursor, displs)
	for _, tri := range table {
		srcOff := cursor[tri.Peer]
		dstOff := int(tri.Slot) * elementSize
		copy(out[dstOff:dstOff+elementSize], buf[srcOff:srcOff+elementSize])
		cursor[tri.Peer] += elementSize
	}
}
