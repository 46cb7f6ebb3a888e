// Package extract turns submitted clinical documents into plain text.
//
// A submission arrives in exactly one of three modalities: plain text, a
// scanned image, or a PDF document. The set is closed; adding a modality
// means adding a Submission variant and a case to Extract.
package extract

import (
	"context"
	"log/slog"

	"github.com/clinbrief/clinbrief/ocr"
)

// Source identifies the modality a document arrived in.
type Source string

const (
	SourceText  Source = "text"
	SourceImage Source = "image"
	SourcePDF   Source = "pdf"
)

// Submission is a sealed set of input variants. Only the types in this
// package implement it.
type Submission interface {
	source() Source
}

// TextSubmission carries text typed or pasted directly by the user.
type TextSubmission struct {
	Text string
}

func (TextSubmission) source() Source { return SourceText }

// ImageSubmission carries an uploaded scan or photo of a document.
type ImageSubmission struct {
	Data      []byte
	MediaType string
}

func (ImageSubmission) source() Source { return SourceImage }

// PDFSubmission carries an uploaded PDF document. Reread, when set, re-reads
// the upload from its origin; it is used when the first read produced zero
// bytes, which happens with some streaming multipart clients.
type PDFSubmission struct {
	Data      []byte
	MediaType string
	Filename  string
	Reread    func() ([]byte, error)
}

func (PDFSubmission) source() Source { return SourcePDF }

// Result is the outcome of a successful extraction.
type Result struct {
	Text   string
	Source Source
}

// Extractor converts submissions to plain text. The OCR engine is the only
// external capability it depends on; a nil engine degrades image extraction
// to the unavailability sentinel rather than failing.
type Extractor struct {
	engine ocr.Engine
	logger *slog.Logger
}

func New(engine ocr.Engine, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{engine: engine, logger: logger}
}

// Extract dispatches on the submission variant and returns the extracted
// plain text. The switch is exhaustive over the sealed set.
func (e *Extractor) Extract(ctx context.Context, sub Submission) (Result, error) {
	switch s := sub.(type) {
	case TextSubmission:
		text, err := e.extractText(s)
		return Result{Text: text, Source: SourceText}, err
	case ImageSubmission:
		text, err := e.extractImage(ctx, s)
		return Result{Text: text, Source: SourceImage}, err
	case PDFSubmission:
		text, err := e.extractPDF(ctx, s)
		return Result{Text: text, Source: SourcePDF}, err
	default:
		panic("extract: unknown submission variant")
	}
}
