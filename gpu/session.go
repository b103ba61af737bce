// Package gpu owns the GPU device, the window-bound swapchain, the
// per-frame command buffer, and the active pass state. It is the single
// component that talks to the wgpu HAL; the host API resolves scene
// handles to the wrapper types in this package and delegates here.
package gpu

import (
	"errors"
	"fmt"
	"log"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Session-level errors.
var (
	// ErrNoBackend is returned when no usable GPU backend is registered.
	ErrNoBackend = errors.New("gpu: no backend available")

	// ErrCreateFailed is wrapped by resource creation failures.
	ErrCreateFailed = errors.New("gpu: create failed")

	// ErrSubmitFailed is wrapped by frame submission failures.
	ErrSubmitFailed = errors.New("gpu: submit failed")
)

// PresentMode selects how frames are paced by the driver.
type PresentMode uint8

const (
	// PresentVsync blocks frame acquisition on the display refresh.
	PresentVsync PresentMode = iota
	// PresentMailbox replaces the queued frame instead of blocking.
	PresentMailbox
)

// ShaderStage tags a shader as vertex or fragment.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
)

// String returns the stage name for error messages.
func (s ShaderStage) String() string {
	if s == StageVertex {
		return "vertex"
	}
	return "fragment"
}

// Drawable is what the surface backend hands the session: a way to bind
// a HAL surface and the current pixel size. The windowed and layer-shell
// backends both satisfy it.
type Drawable interface {
	CreateSurface(instance hal.Instance) (hal.Surface, error)
	Size() (width, height uint32)
}

// Config selects the device and presentation behaviour.
type Config struct {
	PreferDGPU  bool
	PresentMode PresentMode
}

// Buffer wraps a device buffer.
type Buffer struct {
	buf  hal.Buffer
	size uint32
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint32 { return b.size }

// Texture wraps a device texture together with the metadata uploads and
// render passes need.
type Texture struct {
	tex       hal.Texture
	view      hal.TextureView
	format    PixelFormat
	width     uint32
	height    uint32
	mipLevels uint32
}

// Width returns the texture width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Sampler wraps a device sampler.
type Sampler struct {
	smp hal.Sampler
}

// Shader wraps a compiled shader module and its reflected metadata.
type Shader struct {
	module hal.ShaderModule
	meta   shaderMeta
}

// Pipeline wraps a render pipeline and the bind group layout its draws
// must match.
type Pipeline struct {
	pipeline     hal.RenderPipeline
	samplerCount int
	texLayout    hal.BindGroupLayout
}

// uniform push state for one stage slot.
const (
	uniformSlots     = 4
	uniformAlign     = 256
	uniformArenaSize = 256 * 1024
)

type uniformSlot struct {
	buf    hal.Buffer
	offset uint32 // dynamic offset of the most recent push
	used   uint32 // next free byte in the arena
}

// Session is the GPU session. All methods must be called from the frame
// loop's thread.
type Session struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	surface  hal.Surface
	fence    hal.Fence

	drawable      Drawable
	presentMode   PresentMode
	surfaceFormat gputypes.TextureFormat
	width         uint32
	height        uint32

	encoder  hal.CommandEncoder
	encoding bool
	swapTex  hal.SurfaceTexture
	swapView hal.TextureView

	pass passState

	uniforms      [2][uniformSlots]uniformSlot
	uniformGroup  hal.BindGroup
	uniformLayout hal.BindGroupLayout

	texLayouts      map[int]hal.BindGroupLayout
	pipelineLayouts map[int]hal.PipelineLayout

	mipmap *mipmapper

	frameGroups []hal.BindGroup
	frameViews  []hal.TextureView
	fenceValue  uint64
}

// New opens a device on the best matching adapter, binds the drawable's
// surface, and configures the swapchain at the drawable's current size.
func New(cfg Config, drawable Drawable) (*Session, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters found", ErrNoBackend)
	}
	selected := pickAdapter(adapters, cfg.PreferDGPU)
	log.Printf("gpu: using adapter %s", selected.Info.Name)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	s := &Session{
		instance:        instance,
		device:          openDev.Device,
		queue:           openDev.Queue,
		drawable:        drawable,
		presentMode:     cfg.PresentMode,
		surfaceFormat:   gputypes.TextureFormatBGRA8Unorm,
		texLayouts:      make(map[int]hal.BindGroupLayout),
		pipelineLayouts: make(map[int]hal.PipelineLayout),
	}

	s.surface, err = drawable.CreateSurface(instance)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("gpu: create surface: %w", err)
	}

	s.width, s.height = drawable.Size()
	if err := s.configureSurface(s.presentMode); err != nil {
		s.Destroy()
		return nil, err
	}

	s.fence, err = s.device.CreateFence()
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("gpu: create fence: %w", err)
	}

	if err := s.initUniforms(); err != nil {
		s.Destroy()
		return nil, err
	}

	s.mipmap, err = newMipmapper(s.device)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

// pickAdapter prefers a discrete GPU when asked, an integrated one
// otherwise, and falls back to whatever the driver enumerates first.
func pickAdapter(adapters []hal.ExposedAdapter, preferDGPU bool) *hal.ExposedAdapter {
	want := gputypes.DeviceTypeIntegratedGPU
	if preferDGPU {
		want = gputypes.DeviceTypeDiscreteGPU
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == want {
			return &adapters[i]
		}
	}
	for i := range adapters {
		t := adapters[i].Info.DeviceType
		if t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

func (s *Session) configureSurface(mode PresentMode) error {
	presentMode := hal.PresentModeFifo
	if mode == PresentMailbox {
		presentMode = hal.PresentModeMailbox
	}
	err := s.surface.Configure(s.device, &hal.SurfaceConfiguration{
		Width:       s.width,
		Height:      s.height,
		Format:      s.surfaceFormat,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: presentMode,
		AlphaMode:   hal.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return fmt.Errorf("gpu: configure surface: %w", err)
	}
	return nil
}

func (s *Session) initUniforms() error {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, 2*uniformSlots)
	groupEntries := make([]hal.BindGroupEntry, 0, 2*uniformSlots)
	for stage := 0; stage < 2; stage++ {
		visibility := gputypes.ShaderStageVertex
		if stage == 1 {
			visibility = gputypes.ShaderStageFragment
		}
		for slot := 0; slot < uniformSlots; slot++ {
			buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
				Label: fmt.Sprintf("uniform-arena-%d-%d", stage, slot),
				Size:  uniformArenaSize,
				Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("gpu: create uniform arena: %w", err)
			}
			s.uniforms[stage][slot] = uniformSlot{buf: buf}

			binding := uint32(stage*uniformSlots + slot)
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: visibility,
				Buffer: &gputypes.BufferBindingLayout{
					Type:             gputypes.BufferBindingTypeUniform,
					HasDynamicOffset: true,
				},
			})
			groupEntries = append(groupEntries, hal.BindGroupEntry{
				Binding: binding,
				Buffer:  &hal.BufferBinding{Buffer: buf, Offset: 0, Size: uniformAlign},
			})
		}
	}

	layout, err := s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "uniforms",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("gpu: create uniform layout: %w", err)
	}
	s.uniformLayout = layout

	group, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "uniforms",
		Layout:  layout,
		Entries: groupEntries,
	})
	if err != nil {
		return fmt.Errorf("gpu: create uniform bind group: %w", err)
	}
	s.uniformGroup = group
	return nil
}

// ScreenSize returns the current target pixel size.
func (s *Session) ScreenSize() (uint32, uint32) {
	return s.width, s.height
}

// CopyPassActive reports whether a copy pass is open.
func (s *Session) CopyPassActive() bool { return s.pass.copyActive() }

// RenderPassActive reports whether a render pass is open.
func (s *Session) RenderPassActive() bool { return s.pass.renderActive() }

// AcquireFrame obtains the per-frame command buffer and the swapchain
// texture. It returns false when the surface has no texture to give this
// frame; the caller must then call SubmitFrame anyway (empty command
// buffer) and skip the scene update.
func (s *Session) AcquireFrame() (bool, error) {
	if s.encoding {
		return false, fmt.Errorf("%w: frame already acquired", ErrSubmitFailed)
	}

	// Track the drawable's size; reconfigure the swapchain when the
	// output was resized.
	if w, h := s.drawable.Size(); w != s.width || h != s.height {
		s.width, s.height = w, h
		if err := s.configureSurface(s.presentMode); err != nil {
			return false, err
		}
	}

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame"})
	if err != nil {
		return false, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("frame"); err != nil {
		return false, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	s.encoder = encoder
	s.encoding = true
	s.resetUniforms()

	acquired, err := s.surface.AcquireTexture(s.fence)
	if err != nil {
		return false, fmt.Errorf("gpu: acquire swapchain texture: %w", err)
	}
	if acquired == nil || acquired.Texture == nil {
		s.swapTex = nil
		s.swapView = nil
		return false, nil
	}
	s.swapTex = acquired.Texture

	view, err := s.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:  "swapchain",
		Format: s.surfaceFormat,
	})
	if err != nil {
		return false, fmt.Errorf("gpu: create swapchain view: %w", err)
	}
	s.swapView = view
	return true, nil
}

// SubmitFrame finalises and submits the frame's command buffer, and
// presents the swapchain texture when one was acquired.
func (s *Session) SubmitFrame() error {
	if !s.encoding {
		return fmt.Errorf("%w: no frame acquired", ErrSubmitFailed)
	}
	// A trapped scene can leave a pass open; close the state machine so
	// the next frame starts clean. The encoder is discarded with the
	// frame either way.
	s.pass.reset()

	cmdBuf, err := s.encoder.EndEncoding()
	s.encoding = false
	s.encoder = nil
	if err != nil {
		return fmt.Errorf("%w: end encoding: %v", ErrSubmitFailed, err)
	}

	s.fenceValue++
	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, s.fence, s.fenceValue); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	cmdBuf.Destroy()

	if s.swapTex != nil {
		if err := s.queue.Present(s.surface, s.swapTex); err != nil {
			return fmt.Errorf("%w: present: %v", ErrSubmitFailed, err)
		}
	}
	s.releaseFrameGarbage()
	return nil
}

func (s *Session) releaseFrameGarbage() {
	for _, g := range s.frameGroups {
		s.device.DestroyBindGroup(g)
	}
	s.frameGroups = s.frameGroups[:0]
	for _, v := range s.frameViews {
		s.device.DestroyTextureView(v)
	}
	s.frameViews = s.frameViews[:0]
	if s.swapView != nil {
		s.device.DestroyTextureView(s.swapView)
		s.swapView = nil
	}
	s.swapTex = nil
}

// BeginCopyPass opens the frame's copy pass.
func (s *Session) BeginCopyPass() error {
	return s.pass.beginCopy()
}

// EndCopyPass closes the copy pass.
func (s *Session) EndCopyPass() error {
	return s.pass.endCopy()
}

// RenderPassInfo describes one render pass. A nil ColorTarget renders to
// the swapchain texture.
type RenderPassInfo struct {
	ColorTarget     *Texture
	ClearColor      bool
	ClearColorRGBA  [4]float32
	DepthTarget     *Texture
	ClearDepth      bool
	ClearDepthValue float32
}

// BeginRenderPass opens a render pass described by info.
func (s *Session) BeginRenderPass(info RenderPassInfo) error {
	if s.pass.kind != passIdle {
		return ErrPassProtocol
	}

	view := s.swapView
	if info.ColorTarget != nil {
		view = info.ColorTarget.view
	}
	if view == nil {
		return fmt.Errorf("%w: no color target available", ErrCreateFailed)
	}

	loadOp := gputypes.LoadOpLoad
	if info.ClearColor {
		loadOp = gputypes.LoadOpClear
	}
	desc := &hal.RenderPassDescriptor{
		Label: "scene",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  loadOp,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(info.ClearColorRGBA[0]),
				G: float64(info.ClearColorRGBA[1]),
				B: float64(info.ClearColorRGBA[2]),
				A: float64(info.ClearColorRGBA[3]),
			},
		}},
	}
	if info.DepthTarget != nil {
		depthLoadOp := gputypes.LoadOpLoad
		if info.ClearDepth {
			depthLoadOp = gputypes.LoadOpClear
		}
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            info.DepthTarget.view,
			DepthLoadOp:     depthLoadOp,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: info.ClearDepthValue,
		}
	}

	enc := s.encoder.BeginRenderPass(desc)
	if enc == nil {
		return fmt.Errorf("%w: begin render pass", ErrCreateFailed)
	}
	return s.pass.beginRender(enc)
}

// EndRenderPass closes the render pass.
func (s *Session) EndRenderPass() error {
	enc, err := s.pass.endRender()
	if err != nil {
		return err
	}
	enc.End()
	return nil
}

// FreeResource releases the native resource behind an object-manager
// slot. It is the objects.ReleaseFunc of the daemon.
func (s *Session) FreeResource(res any) {
	switch r := res.(type) {
	case *Buffer:
		s.device.DestroyBuffer(r.buf)
	case *Texture:
		if r.view != nil {
			s.device.DestroyTextureView(r.view)
		}
		s.device.DestroyTexture(r.tex)
	case *Sampler:
		s.device.DestroySampler(r.smp)
	case *Shader:
		s.device.DestroyShaderModule(r.module)
	case *Pipeline:
		s.device.DestroyRenderPipeline(r.pipeline)
	}
}

// Destroy tears the session down. Resources held by the object manager
// must have been dropped already.
func (s *Session) Destroy() {
	if s.device != nil {
		_ = s.device.WaitIdle()
	}
	s.releaseFrameGarbage()
	if s.mipmap != nil {
		s.mipmap.destroy(s.device)
		s.mipmap = nil
	}
	for stage := 0; stage < 2; stage++ {
		for slot := 0; slot < uniformSlots; slot++ {
			if buf := s.uniforms[stage][slot].buf; buf != nil {
				s.device.DestroyBuffer(buf)
				s.uniforms[stage][slot].buf = nil
			}
		}
	}
	if s.uniformGroup != nil {
		s.device.DestroyBindGroup(s.uniformGroup)
		s.uniformGroup = nil
	}
	for _, l := range s.pipelineLayouts {
		s.device.DestroyPipelineLayout(l)
	}
	s.pipelineLayouts = nil
	for _, l := range s.texLayouts {
		s.device.DestroyBindGroupLayout(l)
	}
	s.texLayouts = nil
	if s.uniformLayout != nil {
		s.device.DestroyBindGroupLayout(s.uniformLayout)
		s.uniformLayout = nil
	}
	if s.fence != nil {
		s.device.DestroyFence(s.fence)
		s.fence = nil
	}
	if s.surface != nil {
		s.surface.Unconfigure(s.device)
		s.surface = nil
	}
	if s.device != nil {
		s.device.Destroy()
		s.device = nil
	}
	if s.instance != nil {
		s.instance.Destroy()
		s.instance = nil
	}
}
