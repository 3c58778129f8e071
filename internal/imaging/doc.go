// Package imaging decodes meme images and computes the basic pixel
// statistics recorded for each of them.
//
// All operations work on standard Go image.Image values. Decoding goes through
// github.com/disintegration/imaging so EXIF orientation is honoured, and the
// result is normalised to an opaque *image.NRGBA anchored at (0,0).
//
// # Supported Formats
//
// PNG, JPEG, GIF, BMP and TIFF (registered by the imaging library) and WebP
// (registered here via golang.org/x/image/webp). The format is detected from
// file contents; file extensions are ignored.
//
// # Histograms
//
// ChannelHistogram returns 256 buckets of 8-bit intensity counts for a single
// channel, computed with github.com/anthonynsimon/bild/histogram.
//
// # Thread Safety
//
// Every function is stateless and may be called concurrently on different
// images.
package imaging
