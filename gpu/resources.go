package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CreateVertexBuffer creates a device-local vertex buffer of the given
// size.
func (s *Session) CreateVertexBuffer(size uint32) (*Buffer, error) {
	return s.createBuffer(size, gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst, "vertex")
}

// CreateIndexBuffer creates a device-local index buffer of the given
// size. The element width is the caller's business; the session only
// tracks bytes.
func (s *Session) CreateIndexBuffer(size uint32) (*Buffer, error) {
	return s.createBuffer(size, gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst, "index")
}

func (s *Session) createBuffer(size uint32, usage gputypes.BufferUsage, label string) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: zero-size buffer", ErrCreateFailed)
	}
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s buffer: %v", ErrCreateFailed, label, err)
	}
	return &Buffer{buf: buf, size: size}, nil
}

// UpdateBuffer uploads data into the buffer at the given offset. The
// caller must hold the copy pass open; that protocol is enforced by the
// host API layer.
func (s *Session) UpdateBuffer(b *Buffer, offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(b.size) {
		return fmt.Errorf("%w: write of %d bytes at %d exceeds buffer size %d",
			ErrCreateFailed, len(data), offset, b.size)
	}
	s.queue.WriteBuffer(b.buf, uint64(offset), data)
	return nil
}

// TextureInfo describes a texture to create.
type TextureInfo struct {
	Width        uint32
	Height       uint32
	MipLevels    uint32
	SampleExp    uint32 // MSAA sample exponent, 0..3
	Format       PixelFormat
	RenderTarget bool
}

// CreateTexture creates a 2D texture.
func (s *Session) CreateTexture(info TextureInfo) (*Texture, error) {
	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("%w: texture dimensions must be positive", ErrCreateFailed)
	}
	format, err := s.textureFormat(info.Format)
	if err != nil {
		return nil, err
	}
	samples, err := sampleCount(info.SampleExp)
	if err != nil {
		return nil, err
	}
	mips := info.MipLevels
	if mips == 0 {
		mips = 1
	}

	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	if info.RenderTarget || info.Format == FormatDepth16Unorm {
		usage |= gputypes.TextureUsageRenderAttachment
	}

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label: "scene",
		Size: hal.Extent3D{
			Width:              info.Width,
			Height:             info.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: mips,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture: %v", ErrCreateFailed, err)
	}

	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:  "scene",
		Format: format,
	})
	if err != nil {
		s.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: texture view: %v", ErrCreateFailed, err)
	}

	return &Texture{
		tex:       tex,
		view:      view,
		format:    info.Format,
		width:     info.Width,
		height:    info.Height,
		mipLevels: mips,
	}, nil
}

// BytesPerPixel returns the byte size of one pixel of the texture.
func (t *Texture) BytesPerPixel() uint32 {
	return formatPixelSize(t.format)
}

// TextureRect is a destination rectangle inside one mip level.
type TextureRect struct {
	MipLevel uint32
	X, Y     uint32
	W, H     uint32
}

// UpdateTexture uploads pixels into the destination rectangle.
// pixelsPerRow is the row stride of the source data in pixels; zero means
// tightly packed.
func (s *Session) UpdateTexture(t *Texture, data []byte, pixelsPerRow uint32, dest TextureRect) error {
	if dest.MipLevel >= t.mipLevels {
		return fmt.Errorf("%w: mip level %d out of range (texture has %d)",
			ErrCreateFailed, dest.MipLevel, t.mipLevels)
	}
	mipW := max(t.width>>dest.MipLevel, 1)
	mipH := max(t.height>>dest.MipLevel, 1)
	if dest.X+dest.W > mipW || dest.Y+dest.H > mipH {
		return fmt.Errorf("%w: destination rect %dx%d+%d+%d exceeds mip %d size %dx%d",
			ErrCreateFailed, dest.W, dest.H, dest.X, dest.Y, dest.MipLevel, mipW, mipH)
	}
	if pixelsPerRow == 0 {
		pixelsPerRow = dest.W
	}
	pixelSize := formatPixelSize(t.format)
	if uint64(len(data)) < uint64(pixelsPerRow)*uint64(dest.H)*uint64(pixelSize) {
		return fmt.Errorf("%w: %d bytes of pixel data for a %dx%d upload", ErrCreateFailed, len(data), dest.W, dest.H)
	}

	s.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: dest.MipLevel,
			Origin:   hal.Origin3D{X: dest.X, Y: dest.Y, Z: 0},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  pixelsPerRow * pixelSize,
			RowsPerImage: dest.H,
		},
		&hal.Extent3D{Width: dest.W, Height: dest.H, DepthOrArrayLayers: 1},
	)
	return nil
}

// SamplerInfo describes a sampler to create.
type SamplerInfo struct {
	MinFilter  FilterMode
	MagFilter  FilterMode
	MipFilter  FilterMode
	WrapX      WrapMode
	WrapY      WrapMode
	Anisotropy uint32
}

// CreateSampler creates a sampler.
func (s *Session) CreateSampler(info SamplerInfo) (*Sampler, error) {
	minF, err := filterMode(info.MinFilter)
	if err != nil {
		return nil, err
	}
	magF, err := filterMode(info.MagFilter)
	if err != nil {
		return nil, err
	}
	mipF, err := filterMode(info.MipFilter)
	if err != nil {
		return nil, err
	}
	wrapX, err := wrapMode(info.WrapX)
	if err != nil {
		return nil, err
	}
	wrapY, err := wrapMode(info.WrapY)
	if err != nil {
		return nil, err
	}

	anisotropy := info.Anisotropy
	if anisotropy == 0 {
		anisotropy = 1
	}

	smp, err := s.device.CreateSampler(&hal.SamplerDescriptor{
		Label:           "scene",
		AddressModeU:    wrapX,
		AddressModeV:    wrapY,
		AddressModeW:    wrapX,
		MinFilter:       minF,
		MagFilter:       magF,
		MipmapFilter:    mipF,
		AnisotropyClamp: uint16(anisotropy),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sampler: %v", ErrCreateFailed, err)
	}
	return &Sampler{smp: smp}, nil
}

// CreateShader reflects SPIR-V bytecode once and builds a shader module
// from it.
func (s *Session) CreateShader(stage ShaderStage, code []byte) (*Shader, error) {
	meta, err := reflectSPIRV(code, stage)
	if err != nil {
		return nil, err
	}
	module, err := s.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: fmt.Sprintf("scene-%s", stage),
		Source: hal.ShaderSource{
			SPIRV: spirvWords(code),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShaderCompile, err)
	}
	return &Shader{module: module, meta: meta}, nil
}

// VertexBinding describes one vertex buffer slot of a pipeline.
type VertexBinding struct {
	Slot        uint32
	Stride      uint32
	PerInstance bool
}

// VertexAttribute describes one vertex attribute of a pipeline.
type VertexAttribute struct {
	Location uint32
	Type     AttributeType
	Slot     uint32
	Offset   uint32
}

// PipelineInfo describes a render pipeline.
type PipelineInfo struct {
	VertexBindings    []VertexBinding
	VertexAttributes  []VertexAttribute
	VertexShader      *Shader
	FragmentShader    *Shader
	ColorTargetFormat PixelFormat
	Blend             BlendMode
	DepthTest         DepthTestMode
	DepthWrite        bool
	Topology          Topology
	Cull              CullMode
}

// CreatePipeline creates a render pipeline. The bind group layout for the
// pipeline's texture bindings is derived from the fragment shader's
// reflected sampler count.
func (s *Session) CreatePipeline(info PipelineInfo) (*Pipeline, error) {
	format, err := s.textureFormat(info.ColorTargetFormat)
	if err != nil {
		return nil, err
	}
	blend, err := blendState(info.Blend)
	if err != nil {
		return nil, err
	}
	depthCompare, depthEnabled, err := depthState(info.DepthTest)
	if err != nil {
		return nil, err
	}
	topology, err := primitiveTopology(info.Topology)
	if err != nil {
		return nil, err
	}
	cull, err := cullMode(info.Cull)
	if err != nil {
		return nil, err
	}

	buffers := make([]gputypes.VertexBufferLayout, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		stepMode := gputypes.VertexStepModeVertex
		if b.PerInstance {
			stepMode = gputypes.VertexStepModeInstance
		}
		layout := gputypes.VertexBufferLayout{
			ArrayStride: uint64(b.Stride),
			StepMode:    stepMode,
		}
		for _, a := range info.VertexAttributes {
			if a.Slot != b.Slot {
				continue
			}
			vf, err := attributeFormat(a.Type)
			if err != nil {
				return nil, err
			}
			layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
				Format:         vf,
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			})
		}
		buffers[i] = layout
	}

	samplerCount := info.FragmentShader.meta.samplerCount
	layout, texLayout, err := s.pipelineLayout(samplerCount)
	if err != nil {
		return nil, err
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  "scene",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     info.VertexShader.module,
			EntryPoint: "main",
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     info.FragmentShader.module,
			EntryPoint: "main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				Blend:     blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  topology,
			CullMode:  cull,
			FrontFace: gputypes.FrontFaceCCW,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: ^uint32(0)},
	}
	if depthEnabled {
		desc.DepthStencil = &gputypes.DepthStencilState{
			Format:            gputypes.TextureFormatDepth16Unorm,
			DepthWriteEnabled: info.DepthWrite,
			DepthCompare:      depthCompare,
		}
	}

	pipeline, err := s.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline: %v", ErrCreateFailed, err)
	}
	return &Pipeline{
		pipeline:     pipeline,
		samplerCount: samplerCount,
		texLayout:    texLayout,
	}, nil
}

// pipelineLayout returns the cached pipeline layout for a pipeline with n
// texture-sampler pairs, together with the texture bind group layout
// draws must fill.
func (s *Session) pipelineLayout(n int) (hal.PipelineLayout, hal.BindGroupLayout, error) {
	texLayout, err := s.textureLayout(n)
	if err != nil {
		return nil, nil, err
	}
	if l, ok := s.pipelineLayouts[n]; ok {
		return l, texLayout, nil
	}

	groups := []hal.BindGroupLayout{s.uniformLayout}
	if n > 0 {
		groups = append(groups, texLayout)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("scene-%d-textures", n),
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pipeline layout: %v", ErrCreateFailed, err)
	}
	s.pipelineLayouts[n] = layout
	return layout, texLayout, nil
}

// textureLayout returns the cached bind group layout for n
// texture-sampler pairs: binding 2i is the texture, 2i+1 its sampler.
func (s *Session) textureLayout(n int) (hal.BindGroupLayout, error) {
	if n == 0 {
		return nil, nil
	}
	if l, ok := s.texLayouts[n]; ok {
		return l, nil
	}
	entries := make([]gputypes.BindGroupLayoutEntry, 0, 2*n)
	for i := 0; i < n; i++ {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 * i),
				Visibility: gputypes.ShaderStageFragment | gputypes.ShaderStageVertex,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2*i + 1),
				Visibility: gputypes.ShaderStageFragment | gputypes.ShaderStageVertex,
				Sampler: &gputypes.SamplerBindingLayout{
					Type: gputypes.SamplerBindingTypeFiltering,
				},
			},
		)
	}
	layout, err := s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("scene-%d-textures", n),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture layout: %v", ErrCreateFailed, err)
	}
	s.texLayouts[n] = layout
	return layout, nil
}
