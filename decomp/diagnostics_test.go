package decomp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiagnosticsBalanced(t *testing.T) {
	r := Diagnostics([]int64{4, 4, 4, 4})
	require.Equal(t, 4.0, r.Mean)
	require.Equal(t, 0.0, r.StdDev)
	require.Equal(t, 1.0, r.Ratio)
}

func TestDiagnosticsSkewed(t *testing.T) {
	r := Diagnostics([]int64{1, 1, 1, 9})
	require.Equal(t, 3.0, r.Mean)
	require.Equal(t, 9.0, r.Max)
	require.Equal(t, 1.0, r.Min)
	require.InDelta(t, 3.0, r.Ratio, 1e-9)
}

func TestDiagnosticsEmpty(t *testing.T) {
	require.Equal(t, ImbalanceReport{}, Diagnostics(nil))
}
