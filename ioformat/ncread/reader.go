// Package ncread adapts the third-party pure-Go NetCDF4 reader
// github.com/batchatco/go-native-netcdf into an ioformat.Backend, for
// inspecting files this module did not write itself. It is read-only:
// Create always fails, since the underlying library only reads.
package ncread

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/gridio/pario/ioformat"
)

// Backend opens files through the go-native-netcdf CDF reader.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Create(path string) (ioformat.Handle, error) {
	return nil, ioformat.ErrReadOnlyBackend
}

func (*Backend) Open(path string, mode ioformat.Mode) (ioformat.Handle, error) {
	if mode != ioformat.ModeRead {
		return nil, ioformat.ErrReadOnlyBackend
	}
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncread: opening %q: %w", path, err)
	}
	return &Handle{group: group, vars: make(map[string]api.VarGetter)}, nil
}

// Handle wraps one opened api.Group. Every write-side method, DefineDim
// and DefineVar included, fails with ErrReadOnlyBackend.
type Handle struct {
	group api.Group
	vars  map[string]api.VarGetter
}

func (h *Handle) DefineDim(name string, size int64) error {
	return ioformat.ErrReadOnlyBackend
}

func (h *Handle) DefineVar(name string, vtype ioformat.VarType, dims []string) error {
	return ioformat.ErrReadOnlyBackend
}

func (h *Handle) InquireDim(name string) (size int64, isUnlimited bool, err error) {
	getter, err := h.varGetter(name)
	if err != nil {
		return 0, false, err
	}
	return getter.Len(), false, nil
}

func (h *Handle) InquireVar(name string) (vtype ioformat.VarType, dims []string, err error) {
	getter, err := h.varGetter(name)
	if err != nil {
		return 0, nil, err
	}
	return Float64, getter.Dimensions(), nil
}

func (h *Handle) PutVara(varname string, start, count []int64, data []byte) error {
	return ioformat.ErrReadOnlyBackend
}

// GetVara reads the [start[0], start[0]+count[0]) slice of varname's
// leading dimension through api.VarGetter.GetSlice and copies its
// float64 values into data as little-endian IEEE 754 bit patterns,
// whatever the host architecture.
func (h *Handle) GetVara(varname string, start, count []int64, data []byte) error {
	getter, err := h.varGetter(varname)
	if err != nil {
		return err
	}
	if len(start) == 0 {
		return ioformat.ErrUnknownVar
	}

	values, err := getter.GetSlice(start[0], start[0]+count[0])
	if err != nil {
		return fmt.Errorf("ncread: reading %q: %w", varname, err)
	}
	floats, ok := values.([]float64)
	if !ok {
		return fmt.Errorf("ncread: %q is not a float64 variable", varname)
	}
	if len(floats)*8 > len(data) {
		return ioformat.ErrRecordTooLarge
	}
	for i, v := range floats {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return nil
}

func (h *Handle) Sync() error { return nil }

func (h *Handle) Close() error {
	h.group.Close()
	return nil
}

func (h *Handle) varGetter(name string) (api.VarGetter, error) {
	if g, ok := h.vars[name]; ok {
		return g, nil
	}
	g, err := h.group.GetVarGetter(name)
	if err != nil {
		return nil, ioformat.ErrUnknownVar
	}
	h.vars[name] = g
	return g, nil
}

const Float64 = ioformat.Float64
