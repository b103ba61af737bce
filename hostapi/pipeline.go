package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/mechakotik/openwallpaper/gpu"
	"github.com/mechakotik/openwallpaper/objects"
)

// ow_pipeline_info layout, twelve u32 fields:
// vertex_bindings_ptr, vertex_bindings_count, vertex_attributes_ptr,
// vertex_attributes_count, color_target_format, vertex_shader,
// fragment_shader, blend_mode, depth_test_mode, depth_write, topology,
// cull_mode.
func (e *Env) owCreatePipeline(_ context.Context, mod api.Module, infoPtr uint32) uint32 {
	w := e.words(mod, infoPtr, 12, "ow_pipeline_info")

	info := gpu.PipelineInfo{
		ColorTargetFormat: gpu.PixelFormat(w[4]),
		Blend:             gpu.BlendMode(w[7]),
		DepthTest:         gpu.DepthTestMode(w[8]),
		DepthWrite:        w[9] != 0,
		Topology:          gpu.Topology(w[10]),
		Cull:              gpu.CullMode(w[11]),
	}

	// ow_vertex_binding_info: slot, stride, per_instance.
	bindings := e.words(mod, w[0], w[1]*3, "ow_pipeline_info vertex bindings")
	for i := uint32(0); i < w[1]; i++ {
		info.VertexBindings = append(info.VertexBindings, gpu.VertexBinding{
			Slot:        bindings[i*3],
			Stride:      bindings[i*3+1],
			PerInstance: bindings[i*3+2] != 0,
		})
	}

	// ow_vertex_attribute: location, type, slot, offset.
	attributes := e.words(mod, w[2], w[3]*4, "ow_pipeline_info vertex attributes")
	for i := uint32(0); i < w[3]; i++ {
		info.VertexAttributes = append(info.VertexAttributes, gpu.VertexAttribute{
			Location: attributes[i*4],
			Type:     gpu.AttributeType(attributes[i*4+1]),
			Slot:     attributes[i*4+2],
			Offset:   attributes[i*4+3],
		})
	}

	typ, res, ok := e.Objects.Get(w[5])
	if !ok {
		e.trap("vertex_shader object in ow_pipeline_info does not exist or freed")
	}
	if typ != objects.TypeVertexShader {
		e.trap("vertex_shader object in ow_pipeline_info is not a vertex shader")
	}
	info.VertexShader = res.(*gpu.Shader)

	typ, res, ok = e.Objects.Get(w[6])
	if !ok {
		e.trap("fragment_shader object in ow_pipeline_info does not exist or freed")
	}
	if typ != objects.TypeFragmentShader {
		e.trap("fragment_shader object in ow_pipeline_info is not a fragment shader")
	}
	info.FragmentShader = res.(*gpu.Shader)

	pipeline, err := e.Session.CreatePipeline(info)
	if err != nil {
		e.trap("ow_create_pipeline: %v", err)
	}
	return e.register(objects.TypePipeline, pipeline)
}

func (e *Env) owPushVertexUniformData(_ context.Context, mod api.Module, slot, dataPtr, size uint32) {
	e.pushUniform(mod, gpu.StageVertex, "ow_push_vertex_uniform_data", slot, dataPtr, size)
}

func (e *Env) owPushFragmentUniformData(_ context.Context, mod api.Module, slot, dataPtr, size uint32) {
	e.pushUniform(mod, gpu.StageFragment, "ow_push_fragment_uniform_data", slot, dataPtr, size)
}

func (e *Env) pushUniform(mod api.Module, stage gpu.ShaderStage, entry string, slot, dataPtr, size uint32) {
	if !e.Session.RenderPassActive() {
		e.trap("called %s when no render pass is active", entry)
	}
	if slot >= 4 {
		e.trap("only 4 uniform data slots are available for one shader type")
	}
	data := e.bytes(mod, dataPtr, size, "uniform data")
	if err := e.Session.PushUniform(stage, slot, data); err != nil {
		e.trap("%s: %v", entry, err)
	}
}

// ow_bindings_info layout: vertex_buffers_ptr, vertex_buffers_count,
// index_buffer, texture_bindings_ptr, texture_bindings_count.
func (e *Env) readBindings(mod api.Module, bindingsPtr uint32, entry string) gpu.Bindings {
	w := e.words(mod, bindingsPtr, 5, "ow_bindings_info")
	var b gpu.Bindings

	// ow_vertex_buffer_binding: buffer, offset.
	buffers := e.words(mod, w[0], w[1]*2, "ow_bindings_info vertex buffers")
	for i := uint32(0); i < w[1]; i++ {
		typ, res, ok := e.Objects.Get(buffers[i*2])
		if !ok {
			e.trap("passed non-existent object as %s vertex buffer", entry)
		}
		if typ != objects.TypeVertexBuffer {
			e.trap("passed non-buffer object as %s vertex buffer", entry)
		}
		b.VertexBuffers = append(b.VertexBuffers, gpu.BufferBinding{
			Buffer: res.(*gpu.Buffer),
			Offset: buffers[i*2+1],
		})
	}

	if w[2] != 0 {
		typ, res, ok := e.Objects.Get(w[2])
		if !ok {
			e.trap("passed non-existent object as %s index buffer", entry)
		}
		switch typ {
		case objects.TypeIndex16Buffer:
			b.Index = &gpu.IndexBinding{Buffer: res.(*gpu.Buffer)}
		case objects.TypeIndex32Buffer:
			b.Index = &gpu.IndexBinding{Buffer: res.(*gpu.Buffer), Wide: true}
		default:
			e.trap("passed non-index-buffer object as %s index buffer", entry)
		}
	}

	// ow_texture_binding: slot, texture, sampler.
	textures := e.words(mod, w[3], w[4]*3, "ow_bindings_info texture bindings")
	for i := uint32(0); i < w[4]; i++ {
		tex := e.resolveTexture(textures[i*3+1], entry+" texture binding")

		typ, res, ok := e.Objects.Get(textures[i*3+2])
		if !ok {
			e.trap("passed non-existent object as %s sampler binding", entry)
		}
		if typ != objects.TypeSampler {
			e.trap("passed non-sampler object as %s sampler binding", entry)
		}
		b.Textures = append(b.Textures, gpu.TextureBinding{
			Slot:    textures[i*3],
			Texture: tex,
			Sampler: res.(*gpu.Sampler),
		})
	}
	return b
}

func (e *Env) resolvePipeline(handle uint32, entry string) *gpu.Pipeline {
	typ, res, ok := e.Objects.Get(handle)
	if !ok {
		e.trap("passed non-existent object as %s pipeline", entry)
	}
	if typ != objects.TypePipeline {
		e.trap("passed non-pipeline object as %s pipeline", entry)
	}
	return res.(*gpu.Pipeline)
}

func (e *Env) owRenderGeometry(_ context.Context, mod api.Module, pipeline, bindingsPtr, vertexOffset, vertexCount, instanceCount uint32) {
	if !e.Session.RenderPassActive() {
		e.trap("called ow_render_geometry when no render pass is active")
	}
	p := e.resolvePipeline(pipeline, "ow_render_geometry")
	b := e.readBindings(mod, bindingsPtr, "ow_render_geometry")
	if err := e.Session.RenderGeometry(p, b, vertexOffset, vertexCount, instanceCount); err != nil {
		e.trap("ow_render_geometry: %v", err)
	}
}

func (e *Env) owRenderGeometryIndexed(_ context.Context, mod api.Module, pipeline, bindingsPtr, indexOffset, indexCount, vertexOffset, instanceCount uint32) {
	if !e.Session.RenderPassActive() {
		e.trap("called ow_render_geometry_indexed when no render pass is active")
	}
	p := e.resolvePipeline(pipeline, "ow_render_geometry_indexed")
	b := e.readBindings(mod, bindingsPtr, "ow_render_geometry_indexed")
	if b.Index == nil {
		e.trap("ow_render_geometry_indexed requires an index buffer in ow_bindings_info")
	}
	if err := e.Session.RenderGeometryIndexed(p, b, indexOffset, indexCount, vertexOffset, instanceCount); err != nil {
		e.trap("ow_render_geometry_indexed: %v", err)
	}
}
