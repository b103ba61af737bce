package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Mipmap generation records one blit render pass per level, sampling the
// previous level with a fullscreen triangle. The shaders are WGSL
// compiled at session init.
const mipmapWGSL = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var out: VertexOutput;
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(uv.x, 1.0 - uv.y);
    return out;
}

@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(src, srcSampler, in.uv);
}
`

type mipmapper struct {
	module    hal.ShaderModule
	sampler   hal.Sampler
	layout    hal.BindGroupLayout
	pipeline  hal.PipelineLayout
	pipelines map[gputypes.TextureFormat]hal.RenderPipeline
}

func newMipmapper(device hal.Device) (*mipmapper, error) {
	spirv, err := naga.Compile(mipmapWGSL)
	if err != nil {
		return nil, fmt.Errorf("%w: mipmap shader: %v", ErrShaderCompile, err)
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "mipmap-blit",
		Source: hal.ShaderSource{
			SPIRV: spirvWords(spirv),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mipmap module: %v", ErrShaderCompile, err)
	}

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:           "mipmap-blit",
		AddressModeU:    gputypes.AddressModeClampToEdge,
		AddressModeV:    gputypes.AddressModeClampToEdge,
		AddressModeW:    gputypes.AddressModeClampToEdge,
		MinFilter:       gputypes.FilterModeLinear,
		MagFilter:       gputypes.FilterModeLinear,
		MipmapFilter:    gputypes.FilterModeNearest,
		AnisotropyClamp: 1,
	})
	if err != nil {
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("%w: mipmap sampler: %v", ErrCreateFailed, err)
	}

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "mipmap-blit",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler: &gputypes.SamplerBindingLayout{
					Type: gputypes.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		device.DestroySampler(sampler)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("%w: mipmap layout: %v", ErrCreateFailed, err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "mipmap-blit",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(layout)
		device.DestroySampler(sampler)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("%w: mipmap pipeline layout: %v", ErrCreateFailed, err)
	}

	return &mipmapper{
		module:    module,
		sampler:   sampler,
		layout:    layout,
		pipeline:  pipelineLayout,
		pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline),
	}, nil
}

// pipelineFor lazily builds the blit pipeline for a target format.
func (m *mipmapper) pipelineFor(device hal.Device, format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p, ok := m.pipelines[format]; ok {
		return p, nil
	}
	p, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "mipmap-blit",
		Layout: m.pipeline,
		Vertex: hal.VertexState{
			Module:     m.module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     m.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: ^uint32(0)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mipmap pipeline: %v", ErrCreateFailed, err)
	}
	m.pipelines[format] = p
	return p, nil
}

func (m *mipmapper) destroy(device hal.Device) {
	for _, p := range m.pipelines {
		device.DestroyRenderPipeline(p)
	}
	device.DestroyPipelineLayout(m.pipeline)
	device.DestroyBindGroupLayout(m.layout)
	device.DestroySampler(m.sampler)
	device.DestroyShaderModule(m.module)
}

// GenerateMipmaps fills every mip level of the texture from level 0 by
// recording successive blit passes on the frame's command buffer.
func (s *Session) GenerateMipmaps(t *Texture) error {
	if t.mipLevels <= 1 {
		return nil
	}
	format, err := s.textureFormat(t.format)
	if err != nil {
		return err
	}
	pipeline, err := s.mipmap.pipelineFor(s.device, format)
	if err != nil {
		return err
	}

	srcView, err := s.mipView(t, 0, format)
	if err != nil {
		return err
	}
	for level := uint32(1); level < t.mipLevels; level++ {
		dstView, err := s.mipView(t, level, format)
		if err != nil {
			return err
		}
		group, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "mipmap-blit",
			Layout: s.mipmap.layout,
			Entries: []hal.BindGroupEntry{
				{Binding: 0, TextureView: srcView},
				{Binding: 1, Sampler: s.mipmap.sampler},
			},
		})
		if err != nil {
			return fmt.Errorf("%w: mipmap bind group: %v", ErrCreateFailed, err)
		}
		s.frameGroups = append(s.frameGroups, group)

		enc := s.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "mipmap-blit",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    dstView,
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		if enc == nil {
			return fmt.Errorf("%w: mipmap render pass", ErrCreateFailed)
		}
		enc.SetPipeline(pipeline)
		enc.SetBindGroup(0, group, nil)
		enc.Draw(3, 1, 0, 0)
		enc.End()

		srcView = dstView
	}
	return nil
}

// mipView creates a single-level view of the texture, released with the
// frame.
func (s *Session) mipView(t *Texture, level uint32, format gputypes.TextureFormat) (hal.TextureView, error) {
	view, err := s.device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
		Label:         "mipmap-level",
		Format:        format,
		BaseMipLevel:  level,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mip level view: %v", ErrCreateFailed, err)
	}
	s.frameViews = append(s.frameViews, view)
	return view, nil
}
