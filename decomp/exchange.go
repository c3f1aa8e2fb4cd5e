package decomp

import (
	"github.com/gridio/pario/comm"
)

// buildExchange runs the collective round-robin of spec step 4.3: every
// rank in the group executes the same number of rounds, visiting peers in
// the fixed, rank-independent order (rank+s) mod P, so that sender and
// receiver always agree on which round carries which data without any
// rank needing to know anything about another rank's local state ahead of
// time.
//
// Each round does two SendRecv trips over a ring shift:
//
//  1. exchange raw compute-ID lists with dest=(rank+s)%P, source=(rank-s)%P;
//     whatever this rank receives is checked against this rank's own I/O
//     window (ioStart, ioCount) and any ID that falls inside it is claimed
//     into the nascent I/O-side table, keyed by the sender.
//  2. exchange the resulting claims in the opposite direction, so that the
//     original sender of a claimed ID learns which peer claimed it and can
//     record that into its own nascent compute-side table, keyed by the
//     element's original position in its compute_ids buffer.
//
// After P rounds every compute ID has been offered to its one true I/O
// owner and every I/O rank has heard from every compute rank, so both
// tables are complete; a duplicate claim (the same element claimed twice)
// or an unclaimed compute ID is detected and reported as INVALID_ARGUMENT.
func buildExchange(c comm.Communicator, computeIDs []int64, ioStart, ioCount int64) (compList, ioList TripletTable, err error) {
	rank := c.Rank()
	size := c.Size()

	posByID := make(map[int64]int, len(computeIDs))
	for i, id := range computeIDs {
		if id < 0 {
			return nil, nil, invalidArgument("compute element ID %d is negative", id)
		}
		if _, dup := posByID[id]; dup {
			return nil, nil, invalidArgument("duplicate compute element ID %d on rank %d", id, rank)
		}
		posByID[id] = i
	}

	claimedByIO := make(map[int64]int, ioCount)
	compList = make(TripletTable, 0, len(computeIDs))
	ioList = make(TripletTable, 0, ioCount)

	// planErr records the first inconsistency found mid-round. The rank keeps
	// taking part in every remaining round so that no peer is left blocked
	// on a SendRecv it never answers, and reports the error afterwards.
	var planErr error
	for s := 0; s < size; s++ {
		dest := (rank + s) % size
		source := ((rank-s)%size + size) % size

		recvIDs, sendErr := c.SendRecv(computeIDs, dest, source, 2*s)
		if sendErr != nil {
			return nil, nil, mpiError(sendErr, "round-robin exchange of compute IDs failed at round %d", s)
		}

		nClaims := 0
		for _, id := range recvIDs {
			if ioCount > 0 && id >= ioStart && id < ioStart+ioCount {
				nClaims++
			}
		}
		claims, allocErr := allocInt64s(nClaims)
		if allocErr != nil {
			return nil, nil, allocErr
		}
		claims = claims[:0]
		for _, id := range recvIDs {
			if ioCount > 0 && id >= ioStart && id < ioStart+ioCount {
				if prior, already := claimedByIO[id]; already {
					if planErr == nil {
						planErr = invalidArgument(
							"element %d claimed by both rank %d and rank %d", id, prior, source)
					}
					continue
				}
				claimedByIO[id] = source
				claims = append(claims, id)
				ioList = append(ioList, Triplet{Peer: int64(source), Slot: id - ioStart, Elem: id})
			}
		}

		claimsFromDest, sendErr := c.SendRecv(claims, source, dest, 2*s+1)
		if sendErr != nil {
			return nil, nil, mpiError(sendErr, "round-robin exchange of claims failed at round %d", s)
		}

		for _, id := range claimsFromDest {
			pos, ok := posByID[id]
			if !ok {
				if planErr == nil {
					planErr = invalidArgument("peer %d claimed element %d, which this rank never offered", dest, id)
				}
				continue
			}
			compList = append(compList, Triplet{Peer: int64(dest), Slot: int64(pos), Elem: id})
		}
	}
	if planErr != nil {
		return nil, nil, planErr
	}

	if err := checkBijection(compList, computeIDs); err != nil {
		return nil, nil, err
	}

	Sort(compList, FieldPeer)
	Sort(ioList, FieldPeer)
	return compList, ioList, nil
}

// checkBijection is the consistency check of spec step 2: every compute ID
// must have exactly one matching triplet in compList. It sorts a scratch
// copy by element ID and binary-searches it for every original compute ID,
// exactly as the spec directs ("use search_triplets only as a consistency
// check").
func checkBijection(compList TripletTable, computeIDs []int64) error {
	byElem := make(TripletTable, len(compList))
	copy(byElem, compList)
	Sort(byElem, FieldElem)

	if len(compList) != len(computeIDs) {
		return invalidArgument("expected %d compute-side matches, got %d", len(computeIDs), len(compList))
	}
	for _, id := range computeIDs {
		if _, ok := Search(byElem, id, FieldElem); !ok {
			return invalidArgument("compute element %d was never claimed by any I/O rank", id)
		}
	}
	return nil
}
