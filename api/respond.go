package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinbrief/clinbrief/extract"
	"github.com/clinbrief/clinbrief/report"
	"github.com/clinbrief/clinbrief/shield"
	"github.com/clinbrief/clinbrief/summarize"
)

var (
	errInvalidInput  = errors.New("api: invalid input")
	errImageRequired = errors.New("api: image file required")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError maps domain errors to HTTP statuses and user-facing messages.
// The source modality picks the wording for extraction failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, source extract.Source, err error) {
	status, msg := http.StatusInternalServerError, "Server error"

	switch {
	case errors.Is(err, errInvalidInput):
		status, msg = http.StatusBadRequest, "Invalid input"
	case errors.Is(err, errImageRequired):
		status, msg = http.StatusBadRequest, "Image file required"
	case errors.Is(err, extract.ErrEmptyText):
		status, msg = http.StatusBadRequest, "Text is required"
	case errors.Is(err, extract.ErrUnsupportedMedia):
		if source == extract.SourcePDF {
			status, msg = http.StatusBadRequest, "Only PDF files are allowed"
		} else {
			status, msg = http.StatusBadRequest, "Unsupported image type"
		}
	case errors.Is(err, extract.ErrEmptyUpload):
		if source == extract.SourcePDF {
			status, msg = http.StatusBadRequest, "Uploaded PDF is empty"
		} else {
			status, msg = http.StatusBadRequest, "Image file required"
		}
	case errors.Is(err, extract.ErrUnreadable):
		status, msg = http.StatusBadRequest, "Unable to read PDF file"
	case errors.Is(err, extract.ErrNoText):
		if source == extract.SourcePDF {
			status, msg = http.StatusBadRequest, "No readable text found in PDF"
		} else {
			status, msg = http.StatusBadRequest, "Unable to extract text from image"
		}
	case errors.Is(err, report.ErrNotFound):
		status, msg = http.StatusNotFound, "Report not found"
	case errors.Is(err, report.ErrNoText):
		status, msg = http.StatusBadRequest, "No text available to summarize"
	case errors.Is(err, summarize.ErrUnavailable):
		status, msg = http.StatusBadGateway, "Failed to generate summary"
	}

	if status == http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Error("request failed", "error", err)
	}
	writeMessage(w, status, msg)
}
