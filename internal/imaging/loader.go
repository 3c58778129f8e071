package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Channels is the channel count reported for every decoded image.
//
// Images are normalised to opaque RGB before analysis, so the alpha channel
// of PNG/GIF/WebP sources is dropped the same way a 3-channel decode would.
const Channels = 3

// Dimensions holds the raw pixel dimensions of a decoded image.
type Dimensions struct {
	// Height is the image height in pixels.
	Height int `json:"height"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Channels is the number of color channels, always Channels.
	Channels int `json:"channels"`
}

// Shape returns the dimensions as a (height, width, channels) triple.
func (d Dimensions) Shape() []int64 {
	return []int64{int64(d.Height), int64(d.Width), int64(d.Channels)}
}

// LoadRGB decodes the image at path and returns it as an opaque RGB image.
//
// Parameters:
//   - path: Path to the image file. PNG, JPEG, GIF, BMP, TIFF and WebP are
//     supported; the format is sniffed from the file contents, not the name.
//
// Returns:
//   - *image.NRGBA: The decoded image with EXIF orientation applied and every
//     alpha value forced to 255. The bounds always start at (0,0).
//   - error: Non-nil if the file cannot be opened or decoded.
//
// # Color Ordering
//
// Go decoders already yield RGB(A) pixels regardless of the codec's native
// layout. The result is converted to non-premultiplied NRGBA so the red,
// green and blue samples can be read directly from Pix in R,G,B,A order.
func LoadRGB(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToRGB(img), nil
}

// ToRGB copies img into a new opaque NRGBA image anchored at (0,0).
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// DimensionsOf reports the dimensions of img.
func DimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{
		Height:   b.Dy(),
		Width:    b.Dx(),
		Channels: Channels,
	}
}
