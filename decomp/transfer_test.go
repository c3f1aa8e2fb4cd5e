package decomp

import (
	"encoding/binary"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridio/pario/comm"
	"github.com/gridio/pario/comm/local"
)

func transferAll(t *testing.T, comms []*local.Local, decomps []*Decomposition, dir Direction,
	elementSize int, in [][]byte, out [][]byte) {
	t.Helper()
	var wg sync.WaitGroup
	for r := range comms {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var c comm.Communicator = comms[r]
			require.NoError(t, TransferField(c, decomps[r], dir, elementSize, in[r], out[r]))
		}(r)
	}
	wg.Wait()
}

func TestTransferFieldS1RoundTrip(t *testing.T) {
	computeIDs := [][]int64{{0, 1, 2, 3}}
	group := local.NewGroup(1)
	decomp, err := CreateDecomp(group[0], computeIDs[0], 1, 1)
	require.NoError(t, err)

	b := []int64{10, 20, 30, 40}
	in := int64sToBytes(b)
	ioBuf := make([]byte, len(decomp.IOList)*8)
	require.NoError(t, TransferField(group[0], decomp, CompToIO, 8, in, ioBuf))

	compBuf := make([]byte, len(decomp.CompList)*8)
	require.NoError(t, TransferField(group[0], decomp, IOToComp, 8, ioBuf, compBuf))

	require.Equal(t, b, bytesToInt64s(compBuf))
}

// TestTransferFieldS2Interleaved checks that COMP_TO_IO packing of each
// rank's own compute_ids (as int64 payload) lands I/O rank 0 with
// [0..7] and I/O rank 2 with [8..15], independent of local ordering.
func TestTransferFieldS2Interleaved(t *testing.T) {
	computeIDs := [][]int64{
		{0, 4, 8, 12},
		{1, 5, 9, 13},
		{2, 6, 10, 14},
		{3, 7, 11, 15},
	}
	group := local.NewGroup(4)
	decomps := buildGroup(t, group, computeIDs, 2, 2)

	in := make([][]byte, 4)
	out := make([][]byte, 4)
	for r := 0; r < 4; r++ {
		in[r] = int64sToBytes(computeIDs[r])
		out[r] = make([]byte, len(decomps[r].IOList)*8)
	}

	transferAll(t, group, decomps, CompToIO, 8, in, out)

	got0 := bytesToInt64s(out[0])
	got2 := bytesToInt64s(out[2])
	require.ElementsMatch(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, got0)
	require.ElementsMatch(t, []int64{8, 9, 10, 11, 12, 13, 14, 15}, got2)
}

func buildGroup(t *testing.T, group []*local.Local, computeIDs [][]int64, numIOTasks, ioStride int) []*Decomposition {
	t.Helper()
	size := len(group)
	decomps := make([]*Decomposition, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			d, err := CreateDecomp(group[r], computeIDs[r], numIOTasks, ioStride)
			require.NoError(t, err)
			decomps[r] = d
		}(r)
	}
	wg.Wait()
	return decomps
}

// TestTransferFieldElementSizeAgnostic checks property 4: round-trip
// identity holds for a spread of element sizes, including ones with no
// special alignment.
func TestTransferFieldElementSizeAgnostic(t *testing.T) {
	for _, elementSize := range []int{1, 4, 8, 37, 1024} {
		group := local.NewGroup(2)
		computeIDs := [][]int64{{0, 1, 2}, {3, 4, 5}}
		decomps := buildGroup(t, group, computeIDs, 2, 1)

		rng := rand.New(rand.NewSource(int64(elementSize)))
		in0 := randomBytes(rng, len(computeIDs[0])*elementSize)
		in1 := randomBytes(rng, len(computeIDs[1])*elementSize)

		out0 := make([]byte, len(decomps[0].IOList)*elementSize)
		out1 := make([]byte, len(decomps[1].IOList)*elementSize)

		transferAll(t, group, decomps, CompToIO,
			elementSize, [][]byte{in0, in1}, [][]byte{out0, out1})

		back0 := make([]byte, len(decomps[0].CompList)*elementSize)
		back1 := make([]byte, len(decomps[1].CompList)*elementSize)
		transferAll(t, group, decomps, IOToComp,
			elementSize, [][]byte{out0, out1}, [][]byte{back0, back1})

		require.Equal(t, in0, back0, "element_size=%d rank0", elementSize)
		require.Equal(t, in1, back1, "element_size=%d rank1", elementSize)
	}
}

// TestTransferFieldHandleImmutability checks property 5: repeating the
// same transfer on the same handle produces identical output.
func TestTransferFieldHandleImmutability(t *testing.T) {
	group := local.NewGroup(2)
	computeIDs := [][]int64{{0, 1}, {2, 3}}
	decomps := buildGroup(t, group, computeIDs, 1, 1)

	in0 := int64sToBytes([]int64{100, 200})
	in1 := int64sToBytes([]int64{300, 400})

	out0a := make([]byte, len(decomps[0].IOList)*8)
	out1a := make([]byte, len(decomps[1].IOList)*8)
	transferAll(t, group, decomps, CompToIO, 8, [][]byte{in0, in1}, [][]byte{out0a, out1a})

	out0b := make([]byte, len(decomps[0].IOList)*8)
	out1b := make([]byte, len(decomps[1].IOList)*8)
	transferAll(t, group, decomps, CompToIO, 8, [][]byte{in0, in1}, [][]byte{out0b, out1b})

	require.Equal(t, out0a, out0b)
	require.Equal(t, out1a, out1b)
}

func TestTransferFieldInvalidElementSize(t *testing.T) {
	group := local.NewGroup(1)
	decomp, err := CreateDecomp(group[0], []int64{0}, 1, 1)
	require.NoError(t, err)

	err = TransferField(group[0], decomp, CompToIO, 0, []byte{1}, []byte{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func int64sToBytes(vals []int64) []byte {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

func bytesToInt64s(buf []byte) []int64 {
	out := make([]int64, len(buf)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}
