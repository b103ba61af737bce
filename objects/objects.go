// Package objects allocates stable 32-bit handles for GPU-owned
// resources. Handles are cheap to pass across the sandbox boundary and
// are never reused within a run, so scene code that caches a stale handle
// can only ever observe "absent", never a different object.
package objects

import (
	"errors"
	"fmt"
)

// Type tags the kind of resource a handle refers to.
type Type uint8

const (
	TypeVertexBuffer Type = iota
	TypeIndex16Buffer
	TypeIndex32Buffer
	TypeTexture
	TypeSampler
	TypeVertexShader
	TypeFragmentShader
	TypePipeline
)

// String returns the lower-case name of the type for error messages.
func (t Type) String() string {
	switch t {
	case TypeVertexBuffer:
		return "vertex buffer"
	case TypeIndex16Buffer:
		return "index16 buffer"
	case TypeIndex32Buffer:
		return "index32 buffer"
	case TypeTexture:
		return "texture"
	case TypeSampler:
		return "sampler"
	case TypeVertexShader:
		return "vertex shader"
	case TypeFragmentShader:
		return "fragment shader"
	case TypePipeline:
		return "pipeline"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Handle is an opaque 32-bit reference. Zero is the "absent" sentinel;
// valid handles start at 1.
type Handle = uint32

// Storage is a two-level page table: pages are allocated on demand, and
// pageCount*pageSize bounds a scene's handle space.
const (
	pageSizeLog2 = 10
	pageSize     = 1 << pageSizeLog2
	pageCount    = 1 << 10
)

// ErrExhausted is returned by New when the handle space is full.
var ErrExhausted = errors.New("objects: handle space exhausted")

type slot struct {
	typ Type
	res any
}

// ReleaseFunc releases the native resource behind a freed slot.
type ReleaseFunc func(t Type, res any)

// Manager owns the handle table. It is not safe for concurrent use; the
// whole engine runs on the frame loop's thread.
type Manager struct {
	pages   [][]slot
	top     uint32
	release ReleaseFunc
}

// NewManager returns a manager that releases resources through fn.
// fn may be nil when the caller manages resource lifetimes itself (tests).
func NewManager(fn ReleaseFunc) *Manager {
	return &Manager{release: fn}
}

// New stores the resource and returns its handle.
func (m *Manager) New(t Type, res any) (Handle, error) {
	page := m.top >> pageSizeLog2
	if page >= pageCount {
		return 0, fmt.Errorf("%w: more than %d objects allocated", ErrExhausted, pageCount*pageSize)
	}
	index := m.top & (pageSize - 1)
	if index == 0 {
		m.pages = append(m.pages, make([]slot, pageSize))
	}
	m.pages[page][index] = slot{typ: t, res: res}
	m.top++
	return m.top, nil
}

// Get resolves a handle. The last result is false for handle 0,
// out-of-range handles, and freed slots.
func (m *Manager) Get(h Handle) (Type, any, bool) {
	if h == 0 || h > m.top {
		return 0, nil, false
	}
	s := &m.pages[(h-1)>>pageSizeLog2][(h-1)&(pageSize-1)]
	if s.res == nil {
		return 0, nil, false
	}
	return s.typ, s.res, true
}

// Free releases the resource behind the handle and nulls the slot.
// Freeing an already-freed or out-of-range handle is a no-op.
func (m *Manager) Free(h Handle) {
	if h == 0 || h > m.top {
		return
	}
	s := &m.pages[(h-1)>>pageSizeLog2][(h-1)&(pageSize-1)]
	if s.res == nil {
		return
	}
	if m.release != nil {
		m.release(s.typ, s.res)
	}
	s.res = nil
}

// Len returns the number of handles ever allocated.
func (m *Manager) Len() int {
	return int(m.top)
}

// dropOrder releases pipelines before the shaders they reference, and
// textures and samplers before the buffers that may still be bound with
// them, so the driver never sees a dangling reference.
var dropOrder = [][]Type{
	{TypePipeline},
	{TypeVertexShader, TypeFragmentShader},
	{TypeTexture, TypeSampler},
	{TypeVertexBuffer, TypeIndex16Buffer, TypeIndex32Buffer},
}

// DropAll releases every outstanding handle in a defined order.
func (m *Manager) DropAll() {
	for _, group := range dropOrder {
		for h := Handle(1); h <= m.top; h++ {
			s := &m.pages[(h-1)>>pageSizeLog2][(h-1)&(pageSize-1)]
			if s.res == nil {
				continue
			}
			for _, t := range group {
				if s.typ == t {
					m.Free(h)
					break
				}
			}
		}
	}
}
