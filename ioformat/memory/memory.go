// Package memory implements ioformat.Backend entirely in process memory,
// standing in for a real parallel file-format library in every test in
// this module that needs a Backend without touching disk.
package memory

import (
	"fmt"
	"sync"

	"github.com/gridio/pario/ioformat"
)

// Backend holds every file this process has created or opened, keyed by
// path, so that multiple Create/Open calls against the same path (e.g.
// one per simulated rank in a test) share one underlying file state.
type Backend struct {
	mu    sync.Mutex
	files map[string]*fileState
}

func New() *Backend {
	return &Backend{files: make(map[string]*fileState)}
}

func (b *Backend) Create(path string) (ioformat.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := &fileState{
		dims: make(map[string]dimInfo),
		vars: make(map[string]varInfo),
	}
	b.files[path] = f
	return &Handle{file: f}, nil
}

func (b *Backend) Open(path string, mode ioformat.Mode) (ioformat.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[path]
	if !ok {
		return nil, fmt.Errorf("memory: no such file %q", path)
	}
	return &Handle{file: f, readOnly: mode == ioformat.ModeRead}, nil
}

type dimInfo struct {
	size        int64
	isUnlimited bool
}

type varInfo struct {
	vtype ioformat.VarType
	dims  []string
	// frames holds one flat byte buffer per record-dimension index; frame
	// 0 is used for variables with no unlimited dimension.
	frames map[int64][]byte
}

type fileState struct {
	mu   sync.Mutex
	dims map[string]dimInfo
	vars map[string]varInfo
}

// Handle is one Create/Open session against a fileState.
type Handle struct {
	file     *fileState
	readOnly bool
}

func (h *Handle) DefineDim(name string, size int64) error {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	h.file.dims[name] = dimInfo{size: size, isUnlimited: size == 0}
	return nil
}

func (h *Handle) DefineVar(name string, vtype ioformat.VarType, dims []string) error {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	h.file.vars[name] = varInfo{vtype: vtype, dims: dims, frames: make(map[int64][]byte)}
	return nil
}

func (h *Handle) InquireDim(name string) (size int64, isUnlimited bool, err error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	d, ok := h.file.dims[name]
	if !ok {
		return 0, false, ioformat.ErrUnknownDim
	}
	return d.size, d.isUnlimited, nil
}

func (h *Handle) InquireVar(name string) (vtype ioformat.VarType, dims []string, err error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	v, ok := h.file.vars[name]
	if !ok {
		return 0, nil, ioformat.ErrUnknownVar
	}
	return v.vtype, v.dims, nil
}

// PutVara and GetVara treat the leading dimension's [start[0],
// start[0]+count[0]) as the only partitioned axis — what the façade
// requests for a decomposed variable — and a trailing unlimited dimension, if any, as
// selecting which frame buffer to address. Every other dimension is
// assumed to be requested at full extent, so the bytes for the leading
// dimension's block are contiguous within one frame's buffer. A call with
// an empty start, as the façade makes for a non-decomposed variable, is
// rejected with ErrUnknownVar.
func (h *Handle) PutVara(varname string, start, count []int64, data []byte) error {
	if h.readOnly {
		return fmt.Errorf("memory: file opened read-only")
	}
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	v, ok := h.file.vars[varname]
	if !ok {
		return ioformat.ErrUnknownVar
	}

	frame, offset, err := h.locate(v, start, count, len(data))
	if err != nil {
		return err
	}

	buf, ok := v.frames[frame]
	if !ok {
		total, err := h.frameSize(v)
		if err != nil {
			return err
		}
		buf = make([]byte, total)
		v.frames[frame] = buf
	}
	copy(buf[offset:offset+len(data)], data)
	return nil
}

func (h *Handle) GetVara(varname string, start, count []int64, data []byte) error {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	v, ok := h.file.vars[varname]
	if !ok {
		return ioformat.ErrUnknownVar
	}

	frame, offset, err := h.locate(v, start, count, len(data))
	if err != nil {
		return err
	}

	buf, ok := v.frames[frame]
	if !ok {
		// Never written: zero-fill, matching a freshly created variable.
		for i := range data {
			data[i] = 0
		}
		return nil
	}
	copy(data, buf[offset:offset+len(data)])
	return nil
}

func (h *Handle) Sync() error { return nil }
func (h *Handle) Close() error { return nil }

// locate computes which frame a PutVara/GetVara call addresses and the
// byte offset of its leading-dimension block within that frame.
func (h *Handle) locate(v varInfo, start, count []int64, dataLen int) (frame int64, offset int, err error) {
	if len(start) == 0 || start[0] < 0 || count[0] <= 0 {
		return 0, 0, ioformat.ErrUnknownVar
	}

	frame = 0
	if len(v.dims) > 0 {
		last := v.dims[len(v.dims)-1]
		if d, ok := h.file.dims[last]; ok && d.isUnlimited && len(start) == len(v.dims) {
			frame = start[len(start)-1]
		}
	}

	elemStride := dataLen / int(count[0])
	offset = int(start[0]) * elemStride
	return frame, offset, nil
}

// frameSize computes the full byte size of one frame buffer for v, using
// the leading dimension's declared extent and every other non-unlimited
// dimension's extent.
func (h *Handle) frameSize(v varInfo) (int, error) {
	size := v.vtype.Size()
	for _, name := range v.dims {
		d, ok := h.file.dims[name]
		if !ok {
			return 0, ioformat.ErrUnknownDim
		}
		if d.isUnlimited {
			continue
		}
		size *= int(d.size)
	}
	return size, nil
}
