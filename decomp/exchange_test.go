package decomp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridio/pario/comm/local"
)

// runExchange drives buildExchange concurrently across a whole group and
// returns each rank's compList/ioList/error, indexed by rank.
func runExchange(t *testing.T, computeIDs [][]int64, numIOTasks, ioStride int, nGlobal int64) (
	[]TripletTable, []TripletTable, []error) {
	t.Helper()
	size := len(computeIDs)
	group := local.NewGroup(size)

	comps := make([]TripletTable, size)
	ios := make([]TripletTable, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			ioStart, ioCount, err := IOElements(r, numIOTasks, ioStride, nGlobal)
			if err != nil {
				errs[r] = err
				return
			}
			comps[r], ios[r], errs[r] = buildExchange(group[r], computeIDs[r], ioStart, ioCount)
		}(r)
	}
	wg.Wait()
	return comps, ios, errs
}

func TestBuildExchangeS1(t *testing.T) {
	comps, ios, errs := runExchange(t, [][]int64{{0, 1, 2, 3}}, 1, 1, 4)
	require.NoError(t, errs[0])
	require.Len(t, comps[0], 4)
	require.Len(t, ios[0], 4)
}

func TestBuildExchangeS2Interleaved(t *testing.T) {
	computeIDs := [][]int64{
		{0, 4, 8, 12},
		{1, 5, 9, 13},
		{2, 6, 10, 14},
		{3, 7, 11, 15},
	}
	comps, ios, errs := runExchange(t, computeIDs, 2, 2, 16)
	for r := 0; r < 4; r++ {
		require.NoError(t, errs[r])
	}

	requireIOElems(t, ios[0], 8)
	requireIOElems(t, ios[2], 8)
	require.Empty(t, ios[1])
	require.Empty(t, ios[3])

	elems0 := elemSet(ios[0])
	for e := int64(0); e < 8; e++ {
		require.True(t, elems0[e], "element %d missing from I/O rank 0", e)
	}
	elems2 := elemSet(ios[2])
	for e := int64(8); e < 16; e++ {
		require.True(t, elems2[e], "element %d missing from I/O rank 2", e)
	}

	for r := 0; r < 4; r++ {
		require.Len(t, comps[r], 4)
	}
}

func TestBuildExchangeS3Contiguous(t *testing.T) {
	computeIDs := [][]int64{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
		{8, 9, 10, 11},
		{12, 13, 14, 15},
	}
	comps, ios, errs := runExchange(t, computeIDs, 2, 2, 16)
	for r := 0; r < 4; r++ {
		require.NoError(t, errs[r])
	}

	elems0 := elemSet(ios[0])
	for e := int64(0); e < 8; e++ {
		require.True(t, elems0[e])
	}
	elems2 := elemSet(ios[2])
	for e := int64(8); e < 16; e++ {
		require.True(t, elems2[e])
	}
	_ = comps
}

func TestBuildExchangeS6DuplicateID(t *testing.T) {
	computeIDs := [][]int64{
		{0, 1, 2, 3},
		{4, 5, 6, 3}, // 3 duplicated with rank 0
		{8, 9, 10, 11},
		{12, 13, 14, 15},
	}
	_, _, errs := runExchange(t, computeIDs, 2, 2, 16)

	anyErr := false
	for _, err := range errs {
		if err != nil {
			anyErr = true
			require.ErrorIs(t, err, ErrInvalidArgument)
		}
	}
	require.True(t, anyErr, "expected at least one rank to detect the duplicate")
}

// TestPerfectMatching checks property 2: the comp-side and I/O-side tables,
// pooled across the whole group, define a bijection on global element IDs.
func TestPerfectMatching(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8, 16} {
		nGlobal := int64(size * 4)
		computeIDs := make([][]int64, size)
		for r := 0; r < size; r++ {
			ids := make([]int64, 4)
			for i := range ids {
				ids[i] = int64(r)*4 + int64(i)
			}
			computeIDs[r] = ids
		}

		comps, ios, errs := runExchange(t, computeIDs, size, 1, nGlobal)
		for r := 0; r < size; r++ {
			require.NoError(t, errs[r])
		}

		compElems := make(map[int64]int)
		for r := 0; r < size; r++ {
			for _, tri := range comps[r] {
				compElems[tri.Elem]++
			}
		}
		ioElems := make(map[int64]int)
		for r := 0; r < size; r++ {
			for _, tri := range ios[r] {
				ioElems[tri.Elem]++
			}
		}
		for e := int64(0); e < nGlobal; e++ {
			require.Equal(t, 1, compElems[e], "element %d not matched exactly once on compute side (size=%d)", e, size)
			require.Equal(t, 1, ioElems[e], "element %d not matched exactly once on I/O side (size=%d)", e, size)
		}
	}
}

func requireIOElems(t *testing.T, table TripletTable, n int) {
	t.Helper()
	require.Len(t, table, n)
}

func elemSet(table TripletTable) map[int64]bool {
	s := make(map[int64]bool, len(table))
	for _, tri := range table {
		s[tri.Elem] = true
	}
	return s
}
