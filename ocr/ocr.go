// Package ocr wraps the external OCR capability behind a narrow interface.
//
// The engine itself runs out of process; this package only knows how to ship
// an encoded image to it and get text back. Callers decide what an engine
// failure means — the extract package degrades to a sentinel rather than
// failing the request.
package ocr

import "context"

// Engine is a stateless function from image bytes to recognized text.
type Engine interface {
	// Recognize runs a single OCR pass over an encoded image. The pass always
	// uses the English language model with automatic page segmentation.
	Recognize(ctx context.Context, image []byte) (string, error)
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, image []byte) (string, error)

func (f EngineFunc) Recognize(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}
