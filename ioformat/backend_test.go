package ioformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarTypeSize(t *testing.T) {
	require.Equal(t, 4, Float32.Size())
	require.Equal(t, 8, Float64.Size())
	require.Equal(t, 4, Int32.Size())
	require.Equal(t, 8, Int64.Size())
	require.Equal(t, 1, Byte.Size())
}

func TestFileCheckRecordSize(t *testing.T) {
	f := &File{}
	require.NoError(t, f.checkRecordSize(8, 0))
	require.NoError(t, f.checkRecordSize(8, 1000))
	require.ErrorIs(t, f.checkRecordSize(1<<30, 4), ErrRecordTooLarge)
}
