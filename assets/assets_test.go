package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(2, 1, color.NRGBA{G: 255, A: 128})

	surf, err := DecodeRGBA(encodePNG(t, src))
	if err != nil {
		t.Fatalf("DecodeRGBA: %v", err)
	}
	if surf.Width != 3 || surf.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", surf.Width, surf.Height)
	}
	if len(surf.Pixels) != 3*2*4 {
		t.Fatalf("pixel buffer = %d bytes, want %d", len(surf.Pixels), 3*2*4)
	}
	if surf.Pixels[0] != 255 || surf.Pixels[3] != 255 {
		t.Errorf("pixel (0,0) = %v, want opaque red", surf.Pixels[0:4])
	}
	last := surf.Pixels[(1*3+2)*4:]
	if last[1] != 255 || last[3] != 128 {
		t.Errorf("pixel (2,1) = %v, want half-transparent green", last[0:4])
	}
}

func TestDecodeRGBAGrayscaleInput(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	surf, err := DecodeRGBA(encodePNG(t, src))
	if err != nil {
		t.Fatalf("DecodeRGBA: %v", err)
	}
	if surf.Pixels[0] != 0x80 || surf.Pixels[1] != 0x80 || surf.Pixels[3] != 0xff {
		t.Errorf("grayscale conversion wrong: %v", surf.Pixels[0:4])
	}
}

func TestDecodeRGBAInvalid(t *testing.T) {
	if _, err := DecodeRGBA([]byte("not an image")); err == nil {
		t.Fatal("expected error for undecodable bytes")
	}
	if _, err := DecodeRGBA(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
