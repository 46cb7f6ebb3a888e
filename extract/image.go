package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// OCRUnavailableText is stored in place of recognized text when the OCR
// engine itself fails or is not configured. It marks a capability outage,
// not a property of the image: the upload is accepted and the user can see
// why no text came out.
const OCRUnavailableText = "[OCR temporarily unavailable – try running locally]"

var imageMediaTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

func (e *Extractor) extractImage(ctx context.Context, s ImageSubmission) (string, error) {
	mediaType := s.MediaType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if !imageMediaTypes[mediaType] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mediaType)
	}
	if len(s.Data) == 0 {
		return "", ErrEmptyUpload
	}

	if e.engine == nil {
		e.logger.Warn("no OCR engine configured, storing sentinel")
		return OCRUnavailableText, nil
	}

	prepared, err := preprocessImage(s.Data)
	if err != nil {
		e.logger.Warn("image preprocessing failed, storing sentinel", "error", err)
		return OCRUnavailableText, nil
	}

	text, err := e.engine.Recognize(ctx, prepared)
	if err != nil {
		e.logger.Warn("OCR failed, storing sentinel", "error", err)
		return OCRUnavailableText, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// preprocessImage normalizes an upload before OCR: grayscale with a contrast
// bump, re-encoded as PNG. Scans photographed under poor light recognize
// measurably better after this.
func preprocessImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = imaging.Grayscale(img)
	img = imaging.AdjustContrast(img, 15)

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
