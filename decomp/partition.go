package decomp

// IOElements maps a rank to its contiguous, disjoint slice of the global
// index space [0, nGlobal) when num_io_tasks I/O ranks are chosen with
// stride io_stride. Ranks that are not chosen as I/O ranks get (0, 0).
//
// An I/O rank is any rank r with 0 <= r < numIOTasks*ioStride and
// r mod ioStride == 0. Among the chosen I/O ranks, in ascending rank order,
// the first nGlobal mod numIOTasks receive ceil(nGlobal/numIOTasks)
// elements and the rest receive floor(nGlobal/numIOTasks) — the largest
// blocks go to the lowest-numbered I/O ranks, which is the fixed tie-break
// this implementation chooses where the contiguous block partition leaves
// a remainder.
func IOElements(rank, numIOTasks, ioStride int, nGlobal int64) (ioStart, ioCount int64, err error) {
	if numIOTasks <= 0 {
		return 0, 0, invalidArgument("num_io_tasks must be positive, got %d", numIOTasks)
	}
	if ioStride <= 0 {
		return 0, 0, invalidArgument("io_stride must be positive, got %d", ioStride)
	}

	ioRankIndex := -1
	if rank >= 0 && rank < numIOTasks*ioStride && rank%ioStride == 0 {
		ioRankIndex = rank / ioStride
	}
	if ioRankIndex < 0 {
		return 0, 0, nil
	}

	base := nGlobal / int64(numIOTasks)
	remainder := nGlobal % int64(numIOTasks)

	// Blocks for I/O ranks [0, remainder) are base+1 elements; the rest are
	// base elements. ioStart is the sum of every preceding block's size.
	if int64(ioRankIndex) < remainder {
		ioStart = int64(ioRankIndex) * (base + 1)
		ioCount = base + 1
	} else {
		ioStart = remainder*(base+1) + (int64(ioRankIndex)-remainder)*base
		ioCount = base
	}
	return ioStart, ioCount, nil
}

// ValidateIOPolicy checks that a (num_io_tasks, io_stride) policy is
// realizable within a group of groupSize ranks. CreateDecomp calls this at
// the one point that knows the group size; IOElements itself does not, so
// it cannot enforce this bound on its own.
func ValidateIOPolicy(numIOTasks, ioStride, groupSize int) error {
	if numIOTasks <= 0 {
		return invalidArgument("num_io_tasks must be positive, got %d", numIOTasks)
	}
	if ioStride <= 0 {
		return invalidArgument("io_stride must be positive, got %d", ioStride)
	}
	if numIOTasks*ioStride > groupSize {
		return invalidArgument(
			"num_io_tasks*io_stride (%d*%d=%d) exceeds group size %d",
			numIOTasks, ioStride, numIOTasks*ioStride, groupSize)
	}
	return nil
}
