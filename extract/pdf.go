package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// Some streaming multipart clients deliver a zero-byte body on the
	// first read even though the file arrives moments later. Re-read a few
	// times before declaring the upload empty.
	emptyBufferRetries = 3
	emptyBufferBackoff = 120 * time.Millisecond
)

var pdfMediaTypes = map[string]bool{
	"application/pdf":   true,
	"application/x-pdf": true,
}

func isPDF(mediaType, filename string) bool {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if pdfMediaTypes[mediaType] {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

func (e *Extractor) extractPDF(ctx context.Context, s PDFSubmission) (string, error) {
	if !isPDF(s.MediaType, s.Filename) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, s.MediaType)
	}

	data := s.Data
	for attempt := 0; len(data) == 0 && s.Reread != nil && attempt < emptyBufferRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(emptyBufferBackoff):
		}
		var err error
		if data, err = s.Reread(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}

	text, err := pdfText(data)
	if err != nil {
		e.logger.Warn("PDF parse failed", "error", err, "filename", s.Filename)
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// pdfText extracts plain text from a PDF by walking each page's content
// stream. Fragments within a page are joined with spaces, pages with
// newlines.
func pdfText(data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil {
			continue
		}
		stream, err := io.ReadAll(r)
		if err != nil || len(stream) == 0 {
			continue
		}
		fragments := fragmentsFromStream(stream)
		if len(fragments) == 0 {
			continue
		}
		pages = append(pages, strings.Join(fragments, " "))
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// fragmentsFromStream pulls string literals from text-showing operators
// (Tj, TJ, ') in a decoded content stream.
func fragmentsFromStream(stream []byte) []string {
	var fragments []string
	for _, line := range bytes.Split(stream, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		isShowText := bytes.HasSuffix(line, []byte("Tj")) ||
			bytes.HasSuffix(line, []byte("TJ")) ||
			(bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")))
		if !isShowText {
			continue
		}
		for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
			if text := strings.TrimSpace(decodePDFString(m[1])); text != "" {
				fragments = append(fragments, text)
			}
		}
	}
	return fragments
}

// decodePDFString handles basic PDF escape sequences, including octal
// escapes like \040.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
