package hostapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// wasmPageSize is the wasm linear memory page granularity.
const wasmPageSize = 64 * 1024

// cstring reads a nul-terminated string from guest memory, trapping on
// out-of-range or unterminated input. what names the argument in the
// error message.
func (e *Env) cstring(mod api.Module, ptr uint32, what string) string {
	if ptr == 0 {
		e.trap("null pointer passed as %s", what)
	}
	mem := mod.Memory()
	end := ptr
	for {
		b, ok := mem.ReadByte(end)
		if !ok {
			e.trap("unterminated string passed as %s", what)
		}
		if b == 0 {
			break
		}
		end++
	}
	data, _ := mem.Read(ptr, end-ptr)
	return string(data)
}

// bytes copies size bytes out of guest memory.
func (e *Env) bytes(mod api.Module, ptr, size uint32, what string) []byte {
	data, ok := mod.Memory().Read(ptr, size)
	if !ok {
		e.trap("out-of-range pointer passed as %s", what)
	}
	// Read returns a view of the guest memory; copy so later guest
	// writes cannot change what we hand the driver.
	out := make([]byte, size)
	copy(out, data)
	return out
}

// words reads count little-endian u32 fields starting at ptr.
func (e *Env) words(mod api.Module, ptr, count uint32, what string) []uint32 {
	out := make([]uint32, count)
	mem := mod.Memory()
	for i := range out {
		v, ok := mem.ReadUint32Le(ptr + uint32(i)*4)
		if !ok {
			e.trap("out-of-range pointer passed as %s", what)
		}
		out[i] = v
	}
	return out
}

// floats reads count little-endian f32 fields starting at ptr.
func (e *Env) floats(mod api.Module, ptr, count uint32, what string) []float32 {
	out := make([]float32, count)
	mem := mod.Memory()
	for i := range out {
		v, ok := mem.ReadFloat32Le(ptr + uint32(i)*4)
		if !ok {
			e.trap("out-of-range pointer passed as %s", what)
		}
		out[i] = v
	}
	return out
}

// GuestAlloc allocates size bytes inside the scene's heap. Modules built
// with a libc export malloc; without one, whole pages are appended to
// linear memory and handed out. Used by ow_load_file and by the sandbox
// host when it marshals scene options at init.
func GuestAlloc(ctx context.Context, mod api.Module, size uint32) (uint32, error) {
	if malloc := mod.ExportedFunction("malloc"); malloc != nil {
		results, err := malloc.Call(ctx, uint64(size))
		if err != nil {
			return 0, fmt.Errorf("scene malloc: %w", err)
		}
		if len(results) == 0 || uint32(results[0]) == 0 {
			return 0, errors.New("scene malloc returned null")
		}
		return uint32(results[0]), nil
	}

	mem := mod.Memory()
	pages := (size + wasmPageSize - 1) / wasmPageSize
	base, ok := mem.Grow(pages)
	if !ok {
		return 0, errors.New("scene memory cannot grow")
	}
	return base * wasmPageSize, nil
}
