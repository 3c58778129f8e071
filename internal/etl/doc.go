// Package etl implements the extract, transform and load stages of the meme
// pipeline.
//
// # Stages
//
//   - Extract lists the image directory and loads the label table.
//   - Transformer.Transform runs a FeatureExtractor over every image in order
//     and joins each result with its label row into a table.Table.
//   - Load writes the table artifact and the label distribution chart.
//
// # Failure Isolation
//
// Only missing inputs and join-key mismatches abort a run. A failure while
// decoding, recognizing or measuring a single image is logged as an
// ItemProcessingError and the image is left out of the table; the batch goes
// on with the next image.
//
// # Ordering
//
// Images are processed strictly one after another in file name order
// (os.ReadDir sorts its result), so positional joins are reproducible across
// platforms.
package etl
