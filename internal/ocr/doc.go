// Package ocr extracts text from meme images using Tesseract.
//
// Recognition goes through the Engine interface so that callers (and tests)
// can substitute another implementation. The default engine wraps the
// Tesseract OCR engine via gosseract/v2.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//   - Windows: Download from https://github.com/UB-Mannheim/tesseract/wiki
//
// A non-default language data directory can be selected with
// TesseractOptions.TessdataPrefix (the CLI reads TESSDATA_PREFIX).
//
// # Languages
//
// The default language is English ("eng"). Several languages may be combined
// with "+" (e.g. "eng+fra"), as Tesseract itself accepts.
//
// # Cancellation
//
// gosseract calls cannot be interrupted. Recognize checks the context before
// starting; callers that need a hard bound run it in a goroutine and stop
// waiting when their deadline expires.
package ocr
