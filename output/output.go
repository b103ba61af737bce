// Package output defines the surface contract the engine consumes. The
// platform backends — a plain window and the Wayland layer-shell
// background — live outside the core and satisfy Output; the core only
// ever sees a drawable, its pixel size, a hidden predicate, and a
// teardown hook.
package output

import (
	"github.com/gogpu/wgpu/hal"
)

// Output is one configured drawable surface.
type Output interface {
	// CreateSurface binds the drawable to a HAL surface.
	CreateSurface(instance hal.Instance) (hal.Surface, error)

	// Size returns the current pixel size of the drawable.
	Size() (width, height uint32)

	// Hidden reports whether the output is fully occluded. Backends
	// without occlusion information return false.
	Hidden() bool

	// DrainEvents processes the backend's pending events and reports
	// whether a shutdown was requested.
	DrainEvents() (quit bool)

	// MouseState returns the pointer position in pixels (origin
	// top-left) and the pressed-button bitmask.
	MouseState() (x, y int32, buttons uint32)

	// Close tears the surface down.
	Close()
}

// Mouse button bits reported by MouseState.
const (
	ButtonLeft uint32 = 1 << iota
	ButtonRight
	ButtonMiddle
	ButtonX1
	ButtonX2
)
