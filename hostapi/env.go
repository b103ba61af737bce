// Package hostapi implements the `env` module every scene imports. Each
// exported entry receives raw 32-bit scalars from the sandbox, resolves
// pointer arguments through the instance's linear memory, resolves
// handles through the object manager, and delegates to the GPU session.
// Failures write the error slot and raise a trap that unwinds the
// scene's init or update call.
package hostapi

import (
	"context"
	"fmt"
	"log"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mechakotik/openwallpaper/archive"
	"github.com/mechakotik/openwallpaper/audio"
	"github.com/mechakotik/openwallpaper/gpu"
	"github.com/mechakotik/openwallpaper/lasterr"
	"github.com/mechakotik/openwallpaper/objects"
	"github.com/mechakotik/openwallpaper/output"
)

// Env is the host state the entries operate on. The sandbox host wires
// it up before instantiating the scene.
type Env struct {
	Session  *gpu.Session
	Objects  *objects.Manager
	Archive  *archive.Archive
	Output   output.Output
	Spectrum audio.Spectrum

	// OptionPtrs maps scene option names to the guest-memory copies of
	// their values, filled in by the sandbox host at init.
	OptionPtrs map[string]uint32
}

// SceneTrap is the panic value an entry raises after setting the error
// slot. The sandbox converts it into a failed init/update call.
type SceneTrap struct {
	Msg string
}

// Error implements error so the runtime reports the message when the
// trap escapes.
func (t SceneTrap) Error() string { return t.Msg }

// trap records the error and unwinds the scene call.
func (e *Env) trap(format string, args ...any) {
	lasterr.Set(format, args...)
	panic(SceneTrap{Msg: fmt.Sprintf(format, args...)})
}

// Register exports every entry under the module namespace "env".
func (e *Env) Register(ctx context.Context, builder wazero.HostModuleBuilder) error {
	export := func(name string, fn any) {
		builder.NewFunctionBuilder().WithFunc(fn).Export(name)
	}

	export("ow_log", e.owLog)
	export("ow_load_file", e.owLoadFile)

	export("ow_begin_copy_pass", e.owBeginCopyPass)
	export("ow_end_copy_pass", e.owEndCopyPass)
	export("ow_begin_render_pass", e.owBeginRenderPass)
	export("ow_end_render_pass", e.owEndRenderPass)

	export("ow_create_vertex_buffer", e.owCreateVertexBuffer)
	export("ow_create_index_buffer", e.owCreateIndexBuffer)
	export("ow_update_buffer", e.owUpdateBuffer)

	export("ow_create_texture", e.owCreateTexture)
	export("ow_create_texture_from_image", e.owCreateTextureFromImage)
	export("ow_update_texture", e.owUpdateTexture)
	export("ow_generate_mipmaps", e.owGenerateMipmaps)
	export("ow_create_sampler", e.owCreateSampler)

	export("ow_create_vertex_shader_from_bytecode", e.owCreateVertexShaderFromBytecode)
	export("ow_create_vertex_shader_from_file", e.owCreateVertexShaderFromFile)
	export("ow_create_fragment_shader_from_bytecode", e.owCreateFragmentShaderFromBytecode)
	export("ow_create_fragment_shader_from_file", e.owCreateFragmentShaderFromFile)
	export("ow_create_pipeline", e.owCreatePipeline)

	export("ow_push_vertex_uniform_data", e.owPushVertexUniformData)
	export("ow_push_fragment_uniform_data", e.owPushFragmentUniformData)
	export("ow_render_geometry", e.owRenderGeometry)
	export("ow_render_geometry_indexed", e.owRenderGeometryIndexed)

	export("ow_get_screen_size", e.owGetScreenSize)
	export("ow_get_mouse_state", e.owGetMouseState)
	export("ow_get_audio_spectrum", e.owGetAudioSpectrum)
	export("ow_get_option", e.owGetOption)

	export("ow_free", e.owFree)
	export("ow_free_vertex_buffer", e.owFree)
	export("ow_free_index_buffer", e.owFree)
	export("ow_free_texture", e.owFree)
	export("ow_free_sampler", e.owFree)
	export("ow_free_shader", e.owFree)
	export("ow_free_pipeline", e.owFree)

	_, err := builder.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("hostapi: instantiate env module: %w", err)
	}
	return nil
}

func (e *Env) owLog(_ context.Context, mod api.Module, msgPtr uint32) {
	log.Printf("scene: %s", e.cstring(mod, msgPtr, "ow_log message"))
}

// owLoadFile copies a whole archive entry into guest memory. The
// allocation is nul-terminated so text entries read as C strings.
func (e *Env) owLoadFile(ctx context.Context, mod api.Module, pathPtr, dataPtrPtr, sizePtr uint32) {
	path := e.cstring(mod, pathPtr, "ow_load_file path")
	data, err := e.Archive.Read(path)
	if err != nil {
		e.trap("%v", err)
	}

	ptr, err := GuestAlloc(ctx, mod, uint32(len(data))+1)
	if err != nil {
		e.trap("ow_load_file: %v", err)
	}
	mem := mod.Memory()
	if !mem.Write(ptr, data) || !mem.WriteByte(ptr+uint32(len(data)), 0) {
		e.trap("ow_load_file: allocation does not fit in scene memory")
	}
	if !mem.WriteUint32Le(dataPtrPtr, ptr) || !mem.WriteUint32Le(sizePtr, uint32(len(data))) {
		e.trap("ow_load_file: out-of-range result pointer")
	}
}

func (e *Env) owGetScreenSize(_ context.Context, mod api.Module, widthPtr, heightPtr uint32) {
	w, h := e.Session.ScreenSize()
	mem := mod.Memory()
	if !mem.WriteUint32Le(widthPtr, w) || !mem.WriteUint32Le(heightPtr, h) {
		e.trap("ow_get_screen_size: out-of-range result pointer")
	}
}

func (e *Env) owGetMouseState(_ context.Context, mod api.Module, xPtr, yPtr uint32) uint32 {
	x, y, buttons := e.Output.MouseState()
	mem := mod.Memory()
	if !mem.WriteUint32Le(xPtr, uint32(x)) || !mem.WriteUint32Le(yPtr, uint32(y)) {
		e.trap("ow_get_mouse_state: out-of-range result pointer")
	}
	return buttons
}

func (e *Env) owGetAudioSpectrum(_ context.Context, mod api.Module, dataPtr, length uint32) {
	if length == 0 {
		return
	}
	bars := make([]float32, length)
	e.Spectrum.Fill(bars)
	mem := mod.Memory()
	for i, b := range bars {
		if !mem.WriteFloat32Le(dataPtr+uint32(i)*4, b) {
			e.trap("ow_get_audio_spectrum: out-of-range output buffer")
		}
	}
}

func (e *Env) owGetOption(_ context.Context, mod api.Module, namePtr uint32) uint32 {
	name := e.cstring(mod, namePtr, "ow_get_option name")
	return e.OptionPtrs[name]
}

func (e *Env) owFree(_ context.Context, _ api.Module, handle uint32) {
	e.Objects.Free(handle)
}
