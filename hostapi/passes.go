package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/mechakotik/openwallpaper/gpu"
	"github.com/mechakotik/openwallpaper/objects"
)

func (e *Env) owBeginCopyPass(_ context.Context, _ api.Module) {
	if e.Session.CopyPassActive() {
		e.trap("called ow_begin_copy_pass when copy pass is active")
	}
	if e.Session.RenderPassActive() {
		e.trap("called ow_begin_copy_pass when render pass is active")
	}
	if err := e.Session.BeginCopyPass(); err != nil {
		e.trap("ow_begin_copy_pass: %v", err)
	}
}

func (e *Env) owEndCopyPass(_ context.Context, _ api.Module) {
	if e.Session.RenderPassActive() {
		e.trap("called ow_end_copy_pass when render pass is active")
	}
	if !e.Session.CopyPassActive() {
		e.trap("called ow_end_copy_pass when no pass is active")
	}
	if err := e.Session.EndCopyPass(); err != nil {
		e.trap("ow_end_copy_pass: %v", err)
	}
}

// ow_pass_info layout: color_target u32, clear_color u32,
// clear_color_rgba 4xf32, depth_target u32, clear_depth u32,
// clear_depth_value f32.
func (e *Env) owBeginRenderPass(_ context.Context, mod api.Module, infoPtr uint32) {
	if e.Session.CopyPassActive() {
		e.trap("called ow_begin_render_pass when copy pass is active")
	}
	if e.Session.RenderPassActive() {
		e.trap("called ow_begin_render_pass when render pass is active")
	}

	head := e.words(mod, infoPtr, 2, "ow_pass_info")
	rgba := e.floats(mod, infoPtr+8, 4, "ow_pass_info clear color")
	tail := e.words(mod, infoPtr+24, 2, "ow_pass_info")
	depthValue := e.floats(mod, infoPtr+32, 1, "ow_pass_info clear depth")[0]

	info := gpu.RenderPassInfo{
		ClearColor:      head[1] != 0,
		ClearColorRGBA:  [4]float32{rgba[0], rgba[1], rgba[2], rgba[3]},
		ClearDepth:      tail[1] != 0,
		ClearDepthValue: depthValue,
	}

	if colorTarget := head[0]; colorTarget != 0 {
		info.ColorTarget = e.resolveTexture(colorTarget, "ow_begin_render_pass color target")
	}
	if depthTarget := tail[0]; depthTarget != 0 {
		info.DepthTarget = e.resolveTexture(depthTarget, "ow_begin_render_pass depth target")
	}

	if err := e.Session.BeginRenderPass(info); err != nil {
		e.trap("ow_begin_render_pass: %v", err)
	}
}

func (e *Env) owEndRenderPass(_ context.Context, _ api.Module) {
	if e.Session.CopyPassActive() {
		e.trap("called ow_end_render_pass when copy pass is active")
	}
	if !e.Session.RenderPassActive() {
		e.trap("called ow_end_render_pass when no pass is active")
	}
	if err := e.Session.EndRenderPass(); err != nil {
		e.trap("ow_end_render_pass: %v", err)
	}
}

// resolveTexture resolves a handle that must be a texture.
func (e *Env) resolveTexture(handle uint32, what string) *gpu.Texture {
	typ, res, ok := e.Objects.Get(handle)
	if !ok {
		e.trap("passed non-existent object as %s", what)
	}
	if typ != objects.TypeTexture {
		e.trap("passed non-texture object as %s", what)
	}
	return res.(*gpu.Texture)
}
