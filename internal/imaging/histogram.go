package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/histogram"
)

// HistogramBins is the number of buckets in an intensity histogram.
const HistogramBins = 256

// Channel selects one color channel of an RGB image.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// String returns the lowercase channel name.
func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ChannelHistogram counts the pixels of img at each 8-bit intensity of one channel.
//
// Parameters:
//   - img: The source image. It should be opaque (see ToRGB); the counting is
//     done on premultiplied samples, which equal the raw samples only when
//     alpha is 255.
//   - ch: The channel to count.
//
// Returns:
//   - []int64: Exactly HistogramBins counts. Bucket i holds the number of
//     pixels whose channel value is i. The counts sum to width*height.
//   - error: Non-nil if ch is not Red, Green or Blue.
func ChannelHistogram(img image.Image, ch Channel) ([]int64, error) {
	h := histogram.NewRGBAHistogram(img)

	var bins []int
	switch ch {
	case Red:
		bins = h.R.Bins
	case Green:
		bins = h.G.Bins
	case Blue:
		bins = h.B.Bins
	default:
		return nil, fmt.Errorf("unsupported histogram channel: %s", ch)
	}

	out := make([]int64, HistogramBins)
	for i := 0; i < HistogramBins && i < len(bins); i++ {
		out[i] = int64(bins[i])
	}
	return out, nil
}
