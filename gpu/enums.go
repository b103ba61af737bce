package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// ErrInvalidEnum is wrapped by every translation failure below.
var ErrInvalidEnum = errors.New("gpu: invalid enum")

// The enum values in this file are the host ABI: scenes pass them as raw
// 32-bit integers, so the constants must not be reordered.

// PixelFormat selects a texture format. FormatSwapchain is a marker that
// resolves to the surface's own format.
type PixelFormat uint32

const (
	FormatSwapchain PixelFormat = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
	FormatRGBA16Float
	FormatR8Unorm
	FormatDepth16Unorm
)

// FilterMode selects sampler filtering.
type FilterMode uint32

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// WrapMode selects sampler addressing.
type WrapMode uint32

const (
	WrapClamp WrapMode = iota
	WrapRepeat
	WrapMirror
)

// BlendMode is the fixed set of blending presets a pipeline can request.
type BlendMode uint32

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAlphaPremultiplied
	BlendAdd
	BlendAddPremultiplied
	BlendModulate
	BlendMultiply
)

// DepthTestMode combines "depth test disabled" with the compare function.
type DepthTestMode uint32

const (
	DepthTestDisabled DepthTestMode = iota
	DepthTestAlways
	DepthTestLess
	DepthTestLessEqual
	DepthTestGreater
	DepthTestGreaterEqual
	DepthTestEqual
	DepthTestNotEqual
)

// Topology selects the primitive topology.
type Topology uint32

const (
	TopologyTriangles Topology = iota
	TopologyTriangleStrip
	TopologyLines
	TopologyLineStrip
)

// CullMode selects face culling.
type CullMode uint32

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// AttributeType is the vertex attribute element type tag.
type AttributeType uint32

const (
	AttributeInt AttributeType = iota
	AttributeInt2
	AttributeInt3
	AttributeInt4
	AttributeUint
	AttributeUint2
	AttributeUint3
	AttributeUint4
	AttributeFloat
	AttributeFloat2
	AttributeFloat3
	AttributeFloat4
	AttributeByte2
	AttributeByte4
	AttributeUByte2
	AttributeUByte4
	AttributeByte2Norm
	AttributeByte4Norm
	AttributeUByte2Norm
	AttributeUByte4Norm
	AttributeShort2
	AttributeShort4
	AttributeUShort2
	AttributeUShort4
	AttributeShort2Norm
	AttributeShort4Norm
	AttributeUShort2Norm
	AttributeUShort4Norm
	AttributeHalf2
	AttributeHalf4
)

func (s *Session) textureFormat(f PixelFormat) (gputypes.TextureFormat, error) {
	switch f {
	case FormatSwapchain:
		return s.surfaceFormat, nil
	case FormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case FormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	case FormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float, nil
	case FormatR8Unorm:
		return gputypes.TextureFormatR8Unorm, nil
	case FormatDepth16Unorm:
		return gputypes.TextureFormatDepth16Unorm, nil
	}
	return 0, fmt.Errorf("%w: texture format %d", ErrInvalidEnum, f)
}

// formatPixelSize returns the byte size of one pixel in the given format.
func formatPixelSize(f PixelFormat) uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatDepth16Unorm:
		return 2
	case FormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

func filterMode(f FilterMode) (gputypes.FilterMode, error) {
	switch f {
	case FilterNearest:
		return gputypes.FilterModeNearest, nil
	case FilterLinear:
		return gputypes.FilterModeLinear, nil
	}
	return 0, fmt.Errorf("%w: filter mode %d", ErrInvalidEnum, f)
}

func wrapMode(w WrapMode) (gputypes.AddressMode, error) {
	switch w {
	case WrapClamp:
		return gputypes.AddressModeClampToEdge, nil
	case WrapRepeat:
		return gputypes.AddressModeRepeat, nil
	case WrapMirror:
		return gputypes.AddressModeMirrorRepeat, nil
	}
	return 0, fmt.Errorf("%w: wrap mode %d", ErrInvalidEnum, w)
}

// blendState returns the fixed blend configuration for a mode; nil means
// blending disabled.
func blendState(m BlendMode) (*gputypes.BlendState, error) {
	component := func(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
		return gputypes.BlendComponent{
			SrcFactor: src,
			DstFactor: dst,
			Operation: gputypes.BlendOperationAdd,
		}
	}
	switch m {
	case BlendNone:
		return nil, nil
	case BlendAlpha:
		return &gputypes.BlendState{
			Color: component(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		}, nil
	case BlendAlphaPremultiplied:
		return &gputypes.BlendState{
			Color: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		}, nil
	case BlendAdd:
		return &gputypes.BlendState{
			Color: component(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOne),
			Alpha: component(gputypes.BlendFactorZero, gputypes.BlendFactorOne),
		}, nil
	case BlendAddPremultiplied:
		return &gputypes.BlendState{
			Color: component(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
			Alpha: component(gputypes.BlendFactorZero, gputypes.BlendFactorOne),
		}, nil
	case BlendModulate:
		return &gputypes.BlendState{
			Color: component(gputypes.BlendFactorDst, gputypes.BlendFactorZero),
			Alpha: component(gputypes.BlendFactorDstAlpha, gputypes.BlendFactorZero),
		}, nil
	case BlendMultiply:
		return &gputypes.BlendState{
			Color: component(gputypes.BlendFactorDst, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: component(gputypes.BlendFactorDstAlpha, gputypes.BlendFactorOneMinusSrcAlpha),
		}, nil
	}
	return nil, fmt.Errorf("%w: blend mode %d", ErrInvalidEnum, m)
}

// depthState returns the compare function for a depth test mode; the
// second result is false when depth testing is disabled.
func depthState(m DepthTestMode) (gputypes.CompareFunction, bool, error) {
	switch m {
	case DepthTestDisabled:
		return 0, false, nil
	case DepthTestAlways:
		return gputypes.CompareFunctionAlways, true, nil
	case DepthTestLess:
		return gputypes.CompareFunctionLess, true, nil
	case DepthTestLessEqual:
		return gputypes.CompareFunctionLessEqual, true, nil
	case DepthTestGreater:
		return gputypes.CompareFunctionGreater, true, nil
	case DepthTestGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual, true, nil
	case DepthTestEqual:
		return gputypes.CompareFunctionEqual, true, nil
	case DepthTestNotEqual:
		return gputypes.CompareFunctionNotEqual, true, nil
	}
	return 0, false, fmt.Errorf("%w: depth test mode %d", ErrInvalidEnum, m)
}

func primitiveTopology(t Topology) (gputypes.PrimitiveTopology, error) {
	switch t {
	case TopologyTriangles:
		return gputypes.PrimitiveTopologyTriangleList, nil
	case TopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, nil
	case TopologyLines:
		return gputypes.PrimitiveTopologyLineList, nil
	case TopologyLineStrip:
		return gputypes.PrimitiveTopologyLineStrip, nil
	}
	return 0, fmt.Errorf("%w: topology %d", ErrInvalidEnum, t)
}

func cullMode(c CullMode) (gputypes.CullMode, error) {
	switch c {
	case CullNone:
		return gputypes.CullModeNone, nil
	case CullFront:
		return gputypes.CullModeFront, nil
	case CullBack:
		return gputypes.CullModeBack, nil
	}
	return 0, fmt.Errorf("%w: cull mode %d", ErrInvalidEnum, c)
}

var attributeFormats = map[AttributeType]gputypes.VertexFormat{
	AttributeInt:         gputypes.VertexFormatSint32,
	AttributeInt2:        gputypes.VertexFormatSint32x2,
	AttributeInt3:        gputypes.VertexFormatSint32x3,
	AttributeInt4:        gputypes.VertexFormatSint32x4,
	AttributeUint:        gputypes.VertexFormatUint32,
	AttributeUint2:       gputypes.VertexFormatUint32x2,
	AttributeUint3:       gputypes.VertexFormatUint32x3,
	AttributeUint4:       gputypes.VertexFormatUint32x4,
	AttributeFloat:       gputypes.VertexFormatFloat32,
	AttributeFloat2:      gputypes.VertexFormatFloat32x2,
	AttributeFloat3:      gputypes.VertexFormatFloat32x3,
	AttributeFloat4:      gputypes.VertexFormatFloat32x4,
	AttributeByte2:       gputypes.VertexFormatSint8x2,
	AttributeByte4:       gputypes.VertexFormatSint8x4,
	AttributeUByte2:      gputypes.VertexFormatUint8x2,
	AttributeUByte4:      gputypes.VertexFormatUint8x4,
	AttributeByte2Norm:   gputypes.VertexFormatSnorm8x2,
	AttributeByte4Norm:   gputypes.VertexFormatSnorm8x4,
	AttributeUByte2Norm:  gputypes.VertexFormatUnorm8x2,
	AttributeUByte4Norm:  gputypes.VertexFormatUnorm8x4,
	AttributeShort2:      gputypes.VertexFormatSint16x2,
	AttributeShort4:      gputypes.VertexFormatSint16x4,
	AttributeUShort2:     gputypes.VertexFormatUint16x2,
	AttributeUShort4:     gputypes.VertexFormatUint16x4,
	AttributeShort2Norm:  gputypes.VertexFormatSnorm16x2,
	AttributeShort4Norm:  gputypes.VertexFormatSnorm16x4,
	AttributeUShort2Norm: gputypes.VertexFormatUnorm16x2,
	AttributeUShort4Norm: gputypes.VertexFormatUnorm16x4,
	AttributeHalf2:       gputypes.VertexFormatFloat16x2,
	AttributeHalf4:       gputypes.VertexFormatFloat16x4,
}

func attributeFormat(t AttributeType) (gputypes.VertexFormat, error) {
	f, ok := attributeFormats[t]
	if !ok {
		return 0, fmt.Errorf("%w: vertex attribute type %d", ErrInvalidEnum, t)
	}
	return f, nil
}

// sampleCount maps the MSAA sample exponent (0..3) to a sample count.
func sampleCount(exp uint32) (uint32, error) {
	if exp > 3 {
		return 0, fmt.Errorf("%w: MSAA sample exponent %d", ErrInvalidEnum, exp)
	}
	return 1 << exp, nil
}
