package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// resetUniforms rewinds the uniform arenas at the start of a frame.
func (s *Session) resetUniforms() {
	for stage := range s.uniforms {
		for slot := range s.uniforms[stage] {
			s.uniforms[stage][slot].offset = 0
			s.uniforms[stage][slot].used = 0
		}
	}
}

// PushUniform stores uniform data for the given stage and slot. The data
// stays bound for the later draws of the same frame until the next push
// to the same slot; every frame starts its slots over at the beginning of
// their arenas.
func (s *Session) PushUniform(stage ShaderStage, slot uint32, data []byte) error {
	if slot >= uniformSlots {
		return fmt.Errorf("%w: only %d uniform data slots are available for one shader type",
			ErrInvalidEnum, uniformSlots)
	}
	if len(data) > uniformAlign {
		return fmt.Errorf("%w: uniform push of %d bytes exceeds the %d byte slot",
			ErrCreateFailed, len(data), uniformAlign)
	}
	u := &s.uniforms[stage][slot]
	if u.used+uniformAlign > uniformArenaSize {
		return fmt.Errorf("%w: uniform arena exhausted for slot %d", ErrCreateFailed, slot)
	}
	s.queue.WriteBuffer(u.buf, uint64(u.used), data)
	u.offset = u.used
	u.used += uniformAlign
	return nil
}

// BufferBinding binds a vertex buffer at an offset.
type BufferBinding struct {
	Buffer *Buffer
	Offset uint32
}

// TextureBinding binds a texture-sampler pair to a slot.
type TextureBinding struct {
	Slot    uint32
	Texture *Texture
	Sampler *Sampler
}

// IndexBinding selects the index buffer and element width for an indexed
// draw.
type IndexBinding struct {
	Buffer *Buffer
	Wide   bool // 32-bit elements when set, 16-bit otherwise
}

// Bindings is everything a draw binds besides the pipeline.
type Bindings struct {
	VertexBuffers []BufferBinding
	Index         *IndexBinding
	Textures      []TextureBinding
}

// RenderGeometry binds the pipeline and bindings, then draws
// vertexCount vertices starting at vertexOffset, instanceCount times.
func (s *Session) RenderGeometry(p *Pipeline, b Bindings, vertexOffset, vertexCount, instanceCount uint32) error {
	enc, err := s.bindDraw(p, b)
	if err != nil {
		return err
	}
	enc.Draw(vertexCount, instanceCount, vertexOffset, 0)
	return nil
}

// RenderGeometryIndexed is RenderGeometry with an index buffer; the
// element width comes from the index binding.
func (s *Session) RenderGeometryIndexed(p *Pipeline, b Bindings, indexOffset, indexCount, vertexOffset, instanceCount uint32) error {
	if b.Index == nil {
		return fmt.Errorf("%w: indexed draw without an index buffer", ErrCreateFailed)
	}
	enc, err := s.bindDraw(p, b)
	if err != nil {
		return err
	}
	format := gputypes.IndexFormatUint16
	if b.Index.Wide {
		format = gputypes.IndexFormatUint32
	}
	enc.SetIndexBuffer(b.Index.Buffer.buf, format, 0)
	enc.DrawIndexed(indexCount, instanceCount, indexOffset, int32(vertexOffset), 0)
	return nil
}

// bindDraw performs the shared binding work of both draw entries.
func (s *Session) bindDraw(p *Pipeline, b Bindings) (hal.RenderPassEncoder, error) {
	enc := s.pass.render
	if enc == nil {
		return nil, ErrPassProtocol
	}

	enc.SetPipeline(p.pipeline)

	for i, vb := range b.VertexBuffers {
		enc.SetVertexBuffer(uint32(i), vb.Buffer.buf, uint64(vb.Offset))
	}

	offsets := make([]uint32, 0, 2*uniformSlots)
	for stage := 0; stage < 2; stage++ {
		for slot := 0; slot < uniformSlots; slot++ {
			offsets = append(offsets, s.uniforms[stage][slot].offset)
		}
	}
	enc.SetBindGroup(0, s.uniformGroup, offsets)

	if p.samplerCount > 0 {
		if len(b.Textures) != p.samplerCount {
			return nil, fmt.Errorf("%w: pipeline samples %d textures but %d were bound",
				ErrCreateFailed, p.samplerCount, len(b.Textures))
		}
		group, err := s.textureGroup(p, b.Textures)
		if err != nil {
			return nil, err
		}
		enc.SetBindGroup(1, group, nil)
	}
	return enc, nil
}

// textureGroup builds the per-draw texture bind group. Groups live until
// the frame is submitted.
func (s *Session) textureGroup(p *Pipeline, bindings []TextureBinding) (hal.BindGroup, error) {
	entries := make([]hal.BindGroupEntry, 0, 2*len(bindings))
	for _, tb := range bindings {
		entries = append(entries,
			hal.BindGroupEntry{
				Binding:     2 * tb.Slot,
				TextureView: tb.Texture.view,
			},
			hal.BindGroupEntry{
				Binding: 2*tb.Slot + 1,
				Sampler: tb.Sampler.smp,
			},
		)
	}
	group, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "draw-textures",
		Layout:  p.texLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture bind group: %v", ErrCreateFailed, err)
	}
	s.frameGroups = append(s.frameGroups, group)
	return group, nil
}
