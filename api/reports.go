package api

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clinbrief/clinbrief/auth"
	"github.com/clinbrief/clinbrief/extract"
	"github.com/clinbrief/clinbrief/idgen"
	"github.com/clinbrief/clinbrief/report"
)

const maxJSONBytes = 2 << 20

type createReportRequest struct {
	SourceType string `json:"sourceType"`
	Text       string `json:"text"`
}

// createReport ingests a text or image submission. JSON bodies carry text;
// multipart bodies carry either an "image" file or a "text" field.
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	sub, err := s.parseSubmission(r)
	if err != nil {
		source := extract.SourceText
		if _, ok := sub.(extract.ImageSubmission); ok {
			source = extract.SourceImage
		}
		s.writeError(w, r, source, err)
		return
	}

	res, err := s.extractor.Extract(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, res.Source, err)
		return
	}

	rep, err := s.reports.Create(r.Context(), res.Text, string(res.Source), ownerID(r))
	if err != nil {
		s.writeError(w, r, res.Source, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": rep})
}

// parseSubmission decodes the intake request into a submission variant.
func (s *Server) parseSubmission(r *http.Request) (extract.Submission, error) {
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "application/json") {
		// JSON bodies are small; only uploads get the full cap.
		r.Body = http.MaxBytesReader(nil, r.Body, maxJSONBytes)
		var req createReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return extract.TextSubmission{}, errInvalidInput
		}
		switch req.SourceType {
		case "", "text":
			return extract.TextSubmission{Text: req.Text}, nil
		case "image":
			// JSON bodies cannot carry a file, so an image sourceType is
			// always missing its upload.
			return extract.ImageSubmission{}, errImageRequired
		default:
			return extract.TextSubmission{}, errInvalidInput
		}
	}

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes()); err != nil {
			return extract.TextSubmission{}, errInvalidInput
		}

		switch r.FormValue("sourceType") {
		case "", "text", "image":
		default:
			return extract.TextSubmission{}, errInvalidInput
		}

		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return extract.ImageSubmission{}, errInvalidInput
			}
			return extract.ImageSubmission{
				Data:      data,
				MediaType: header.Header.Get("Content-Type"),
			}, nil
		}

		if text := r.FormValue("text"); strings.TrimSpace(text) != "" {
			return extract.TextSubmission{Text: text}, nil
		}
		if r.FormValue("sourceType") == "image" {
			return extract.ImageSubmission{}, errImageRequired
		}
		return extract.TextSubmission{}, extract.ErrEmptyText
	}

	return extract.TextSubmission{}, errInvalidInput
}

// createReportFromPDF ingests a PDF upload. Any multipart field name is
// accepted; when several files arrive, a PDF-looking one wins.
func (s *Server) createReportFromPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes()); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}
	header := pickPDFHeader(r.MultipartForm)
	if header == nil {
		s.writeError(w, r, extract.SourcePDF, extract.ErrEmptyUpload)
		return
	}

	data, err := readUpload(header)
	if err != nil {
		s.writeError(w, r, extract.SourcePDF, extract.ErrUnreadable)
		return
	}

	res, err := s.extractor.Extract(r.Context(), extract.PDFSubmission{
		Data:      data,
		MediaType: header.Header.Get("Content-Type"),
		Filename:  header.Filename,
		Reread:    func() ([]byte, error) { return readUpload(header) },
	})
	if err != nil {
		s.writeError(w, r, extract.SourcePDF, err)
		return
	}

	rep, err := s.reports.Create(r.Context(), res.Text, string(extract.SourcePDF), ownerID(r))
	if err != nil {
		s.writeError(w, r, extract.SourcePDF, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "report": rep})
}

// pickPDFHeader returns the uploaded file to treat as the PDF. A file whose
// media type or name looks like a PDF is preferred; otherwise the first file
// wins and extraction rejects it downstream.
func pickPDFHeader(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	var first *multipart.FileHeader
	for _, headers := range form.File {
		for _, h := range headers {
			if first == nil {
				first = h
			}
			ct := strings.ToLower(h.Header.Get("Content-Type"))
			if strings.Contains(ct, "pdf") || strings.HasSuffix(strings.ToLower(h.Filename), ".pdf") {
				return h
			}
		}
	}
	return first
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !idgen.ValidPrefixed(report.IDPrefix, id) {
		writeMessage(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	rep, err := s.reports.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, extract.SourceText, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", report.DefaultPageLimit)
	if limit < 1 {
		limit = report.DefaultPageLimit
	}
	if limit > report.MaxPageLimit {
		limit = report.MaxPageLimit
	}

	items, total, err := s.reports.List(r.Context(), ownerID(r), page, limit)
	if err != nil {
		s.writeError(w, r, extract.SourceText, err)
		return
	}
	if items == nil {
		items = []*report.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ownerID returns the authenticated user's id, or empty for anonymous
// requests.
func ownerID(r *http.Request) string {
	if p := auth.FromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
