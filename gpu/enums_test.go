package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestBlendStateTable(t *testing.T) {
	// Every declared mode must translate; blending disabled only for
	// BlendNone.
	modes := []BlendMode{
		BlendNone, BlendAlpha, BlendAlphaPremultiplied, BlendAdd,
		BlendAddPremultiplied, BlendModulate, BlendMultiply,
	}
	for _, m := range modes {
		state, err := blendState(m)
		if err != nil {
			t.Errorf("blend mode %d: %v", m, err)
			continue
		}
		if (state == nil) != (m == BlendNone) {
			t.Errorf("blend mode %d: nil state = %v", m, state == nil)
		}
	}
}

func TestBlendStateInvalid(t *testing.T) {
	if _, err := blendState(BlendMode(99)); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum, got %v", err)
	}
}

func TestBlendAlphaFactors(t *testing.T) {
	state, err := blendState(BlendAlpha)
	if err != nil {
		t.Fatal(err)
	}
	if state.Color.SrcFactor != gputypes.BlendFactorSrcAlpha ||
		state.Color.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("alpha blend factors wrong: %+v", state.Color)
	}
}

func TestDepthStateTable(t *testing.T) {
	if _, enabled, err := depthState(DepthTestDisabled); err != nil || enabled {
		t.Errorf("disabled depth test: enabled=%v err=%v", enabled, err)
	}
	cases := map[DepthTestMode]gputypes.CompareFunction{
		DepthTestAlways:       gputypes.CompareFunctionAlways,
		DepthTestLess:         gputypes.CompareFunctionLess,
		DepthTestLessEqual:    gputypes.CompareFunctionLessEqual,
		DepthTestGreater:      gputypes.CompareFunctionGreater,
		DepthTestGreaterEqual: gputypes.CompareFunctionGreaterEqual,
		DepthTestEqual:        gputypes.CompareFunctionEqual,
		DepthTestNotEqual:     gputypes.CompareFunctionNotEqual,
	}
	for mode, want := range cases {
		got, enabled, err := depthState(mode)
		if err != nil || !enabled {
			t.Errorf("mode %d: enabled=%v err=%v", mode, enabled, err)
			continue
		}
		if got != want {
			t.Errorf("mode %d: compare = %v, want %v", mode, got, want)
		}
	}
	if _, _, err := depthState(DepthTestMode(8)); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum for mode 8, got %v", err)
	}
}

func TestAttributeFormatTable(t *testing.T) {
	// All 30 declared types translate; the next value does not.
	for at := AttributeInt; at <= AttributeHalf4; at++ {
		if _, err := attributeFormat(at); err != nil {
			t.Errorf("attribute type %d: %v", at, err)
		}
	}
	if _, err := attributeFormat(AttributeHalf4 + 1); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum, got %v", err)
	}
}

func TestTopologyCullFilterWrap(t *testing.T) {
	if _, err := primitiveTopology(TopologyLineStrip); err != nil {
		t.Error(err)
	}
	if _, err := primitiveTopology(Topology(4)); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum, got %v", err)
	}
	if _, err := cullMode(CullMode(3)); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum, got %v", err)
	}
	if _, err := filterMode(FilterMode(2)); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum, got %v", err)
	}
	if _, err := wrapMode(WrapMode(3)); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum, got %v", err)
	}
}

func TestSampleCount(t *testing.T) {
	for exp, want := range map[uint32]uint32{0: 1, 1: 2, 2: 4, 3: 8} {
		got, err := sampleCount(exp)
		if err != nil || got != want {
			t.Errorf("sampleCount(%d) = %d, %v; want %d", exp, got, err, want)
		}
	}
	if _, err := sampleCount(4); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("expected ErrInvalidEnum for exponent 4, got %v", err)
	}
}

func TestFormatPixelSize(t *testing.T) {
	cases := map[PixelFormat]uint32{
		FormatR8Unorm:        1,
		FormatDepth16Unorm:   2,
		FormatRGBA8Unorm:     4,
		FormatRGBA8UnormSRGB: 4,
		FormatSwapchain:      4,
		FormatRGBA16Float:    8,
	}
	for f, want := range cases {
		if got := formatPixelSize(f); got != want {
			t.Errorf("formatPixelSize(%d) = %d, want %d", f, got, want)
		}
	}
}
