// Package assets decodes image entries from a scene archive into CPU
// surfaces ready for GPU upload.
package assets

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Codecs for the formats scene archives commonly carry. PNG, JPEG
	// and GIF come with the standard image decoders imaging pulls in.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Surface is a decoded image: 8-bit RGBA pixels with a pitch of exactly
// Width*4 bytes.
type Surface struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// DecodeRGBA decodes image bytes and converts them to a tightly packed
// RGBA8 surface.
func DecodeRGBA(data []byte) (*Surface, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("assets: decode image: %w", err)
	}

	rgba := imaging.Clone(img)
	bounds := rgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// imaging.Clone yields an NRGBA image whose stride can exceed the
	// row width for subimages; uploads need pitch == width*4.
	if rgba.Stride != width*4 {
		return nil, fmt.Errorf("assets: unsupported pixel pitch %d for width %d", rgba.Stride, width)
	}

	return &Surface{
		Width:  uint32(width),
		Height: uint32(height),
		Pixels: rgba.Pix,
	}, nil
}
