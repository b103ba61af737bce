package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/mechakotik/openwallpaper/assets"
	"github.com/mechakotik/openwallpaper/gpu"
	"github.com/mechakotik/openwallpaper/objects"
)

// register stores a new resource in the object manager, returning its
// handle.
func (e *Env) register(t objects.Type, res any) uint32 {
	handle, err := e.Objects.New(t, res)
	if err != nil {
		e.trap("%v", err)
	}
	return handle
}

func (e *Env) owCreateVertexBuffer(_ context.Context, _ api.Module, size uint32) uint32 {
	buf, err := e.Session.CreateVertexBuffer(size)
	if err != nil {
		e.trap("ow_create_vertex_buffer: %v", err)
	}
	return e.register(objects.TypeVertexBuffer, buf)
}

func (e *Env) owCreateIndexBuffer(_ context.Context, _ api.Module, size, wide uint32) uint32 {
	buf, err := e.Session.CreateIndexBuffer(size)
	if err != nil {
		e.trap("ow_create_index_buffer: %v", err)
	}
	t := objects.TypeIndex16Buffer
	if wide != 0 {
		t = objects.TypeIndex32Buffer
	}
	return e.register(t, buf)
}

func (e *Env) owUpdateBuffer(_ context.Context, mod api.Module, handle, offset, dataPtr, size uint32) {
	if !e.Session.CopyPassActive() {
		e.trap("called ow_update_buffer when no copy pass is active")
	}

	typ, res, ok := e.Objects.Get(handle)
	if !ok {
		e.trap("called ow_update_buffer with non-existent object")
	}
	switch typ {
	case objects.TypeVertexBuffer, objects.TypeIndex16Buffer, objects.TypeIndex32Buffer:
	default:
		e.trap("called ow_update_buffer with non-buffer object")
	}

	data := e.bytes(mod, dataPtr, size, "ow_update_buffer data")
	if err := e.Session.UpdateBuffer(res.(*gpu.Buffer), offset, data); err != nil {
		e.trap("ow_update_buffer: %v", err)
	}
}

// ow_texture_info layout: width, height, mip_levels, samples, format,
// render_target — six u32 fields.
func (e *Env) readTextureInfo(mod api.Module, infoPtr uint32) gpu.TextureInfo {
	w := e.words(mod, infoPtr, 6, "ow_texture_info")
	return gpu.TextureInfo{
		Width:        w[0],
		Height:       w[1],
		MipLevels:    w[2],
		SampleExp:    w[3],
		Format:       gpu.PixelFormat(w[4]),
		RenderTarget: w[5] != 0,
	}
}

func (e *Env) owCreateTexture(_ context.Context, mod api.Module, infoPtr uint32) uint32 {
	tex, err := e.Session.CreateTexture(e.readTextureInfo(mod, infoPtr))
	if err != nil {
		e.trap("ow_create_texture: %v", err)
	}
	return e.register(objects.TypeTexture, tex)
}

// owCreateTextureFromImage decodes an archive image into 8-bit RGBA,
// writes the decoded size back into the caller's info struct, and
// uploads the pixels within the active copy pass.
func (e *Env) owCreateTextureFromImage(_ context.Context, mod api.Module, pathPtr, infoPtr uint32) uint32 {
	if !e.Session.CopyPassActive() {
		e.trap("called ow_create_texture_from_image when no copy pass is active")
	}

	path := e.cstring(mod, pathPtr, "ow_create_texture_from_image path")
	data, err := e.Archive.Read(path)
	if err != nil {
		e.trap("%v", err)
	}
	surface, err := assets.DecodeRGBA(data)
	if err != nil {
		e.trap("ow_create_texture_from_image: %v", err)
	}

	info := e.readTextureInfo(mod, infoPtr)
	info.Width = surface.Width
	info.Height = surface.Height
	if info.Format != gpu.FormatRGBA8UnormSRGB {
		info.Format = gpu.FormatRGBA8Unorm
	}

	mem := mod.Memory()
	if !mem.WriteUint32Le(infoPtr, surface.Width) || !mem.WriteUint32Le(infoPtr+4, surface.Height) {
		e.trap("ow_create_texture_from_image: out-of-range info pointer")
	}

	tex, err := e.Session.CreateTexture(info)
	if err != nil {
		e.trap("ow_create_texture_from_image: %v", err)
	}
	err = e.Session.UpdateTexture(tex, surface.Pixels, 0, gpu.TextureRect{
		W: surface.Width,
		H: surface.Height,
	})
	if err != nil {
		e.Session.FreeResource(tex)
		e.trap("ow_create_texture_from_image: %v", err)
	}
	return e.register(objects.TypeTexture, tex)
}

// ow_texture_update_destination layout: texture, mip_level, x, y, w, h.
func (e *Env) owUpdateTexture(_ context.Context, mod api.Module, dataPtr, pixelsPerRow, destPtr uint32) {
	if !e.Session.CopyPassActive() {
		e.trap("called ow_update_texture when no copy pass is active")
	}

	d := e.words(mod, destPtr, 6, "ow_texture_update_destination")
	tex := e.resolveTexture(d[0], "ow_update_texture destination")
	rect := gpu.TextureRect{MipLevel: d[1], X: d[2], Y: d[3], W: d[4], H: d[5]}

	rows := rect.H
	stride := pixelsPerRow
	if stride == 0 {
		stride = rect.W
	}
	size := stride * rows * tex.BytesPerPixel()
	data := e.bytes(mod, dataPtr, size, "ow_update_texture data")

	if err := e.Session.UpdateTexture(tex, data, pixelsPerRow, rect); err != nil {
		e.trap("ow_update_texture: %v", err)
	}
}

func (e *Env) owGenerateMipmaps(_ context.Context, _ api.Module, handle uint32) {
	if !e.Session.CopyPassActive() {
		e.trap("called ow_generate_mipmaps when no copy pass is active")
	}
	tex := e.resolveTexture(handle, "ow_generate_mipmaps texture")
	if err := e.Session.GenerateMipmaps(tex); err != nil {
		e.trap("ow_generate_mipmaps: %v", err)
	}
}

// ow_sampler_info layout: min_filter, mag_filter, mip_filter, wrap_x,
// wrap_y, anisotropy.
func (e *Env) owCreateSampler(_ context.Context, mod api.Module, infoPtr uint32) uint32 {
	w := e.words(mod, infoPtr, 6, "ow_sampler_info")
	smp, err := e.Session.CreateSampler(gpu.SamplerInfo{
		MinFilter:  gpu.FilterMode(w[0]),
		MagFilter:  gpu.FilterMode(w[1]),
		MipFilter:  gpu.FilterMode(w[2]),
		WrapX:      gpu.WrapMode(w[3]),
		WrapY:      gpu.WrapMode(w[4]),
		Anisotropy: w[5],
	})
	if err != nil {
		e.trap("ow_create_sampler: %v", err)
	}
	return e.register(objects.TypeSampler, smp)
}

func (e *Env) createShader(stage gpu.ShaderStage, code []byte, entry string) uint32 {
	shader, err := e.Session.CreateShader(stage, code)
	if err != nil {
		e.trap("%s: %v", entry, err)
	}
	t := objects.TypeVertexShader
	if stage == gpu.StageFragment {
		t = objects.TypeFragmentShader
	}
	return e.register(t, shader)
}

func (e *Env) owCreateVertexShaderFromBytecode(_ context.Context, mod api.Module, codePtr, size uint32) uint32 {
	code := e.bytes(mod, codePtr, size, "ow_create_vertex_shader_from_bytecode bytecode")
	return e.createShader(gpu.StageVertex, code, "ow_create_vertex_shader_from_bytecode")
}

func (e *Env) owCreateFragmentShaderFromBytecode(_ context.Context, mod api.Module, codePtr, size uint32) uint32 {
	code := e.bytes(mod, codePtr, size, "ow_create_fragment_shader_from_bytecode bytecode")
	return e.createShader(gpu.StageFragment, code, "ow_create_fragment_shader_from_bytecode")
}

func (e *Env) owCreateVertexShaderFromFile(_ context.Context, mod api.Module, pathPtr uint32) uint32 {
	path := e.cstring(mod, pathPtr, "ow_create_vertex_shader_from_file path")
	code, err := e.Archive.Read(path)
	if err != nil {
		e.trap("%v", err)
	}
	return e.createShader(gpu.StageVertex, code, "ow_create_vertex_shader_from_file")
}

func (e *Env) owCreateFragmentShaderFromFile(_ context.Context, mod api.Module, pathPtr uint32) uint32 {
	path := e.cstring(mod, pathPtr, "ow_create_fragment_shader_from_file path")
	code, err := e.Archive.Read(path)
	if err != nil {
		e.trap("%v", err)
	}
	return e.createShader(gpu.StageFragment, code, "ow_create_fragment_shader_from_file")
}
