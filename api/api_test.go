package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/clinbrief/clinbrief/extract"
	"github.com/clinbrief/clinbrief/report"
)

// summarizerStub is an OpenAI-style chat/completions endpoint whose failure
// mode can be toggled per test.
type summarizerStub struct {
	srv   *httptest.Server
	fail  atomic.Bool
	calls atomic.Int32
}

func newSummarizerStub(t *testing.T) *summarizerStub {
	t.Helper()
	s := &summarizerStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.fail.Load() {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "Normal vitals."}},
			},
		})
	}))
	t.Cleanup(s.srv.Close)
	return s
}

type testEnv struct {
	server     *Server
	summarizer *summarizerStub
	ocrCalls   *atomic.Int32
	token      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sum := newSummarizerStub(t)

	var ocrCalls atomic.Int32
	ocrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ocrCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"text": "BP 120/80 from scan"})
	}))
	t.Cleanup(ocrSrv.Close)

	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.JWTAccessSecret = "0123456789abcdef0123456789abcdef"
	cfg.JWTRefreshSecret = "fedcba9876543210fedcba9876543210"
	cfg.Summarizer.Endpoint = sum.srv.URL
	cfg.OCR.Endpoint = ocrSrv.URL
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })

	env := &testEnv{server: srv, summarizer: sum, ocrCalls: &ocrCalls}
	env.token = env.signup(t, "doc@example.com")
	return env
}

func (e *testEnv) signup(t *testing.T, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"email": email, "name": "Dr. Who", "password": "hunter2hunter2",
	})
	rec := e.do(t, http.MethodPost, "/auth/signup", "application/json", bytes.NewReader(body), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body *bytes.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createText(t *testing.T, text string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"text": text})
	return e.do(t, http.MethodPost, "/reports", "application/json", bytes.NewReader(body), e.token)
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) *report.Report {
	t.Helper()
	var resp struct {
		Report *report.Report `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Report == nil {
		t.Fatalf("no report in response: %s", rec.Body)
	}
	return resp.Report
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateTextReportCompleted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.createText(t, "BP 120/80, HR 72. Patient reports mild headache.")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	rep := decodeReport(t, rec)
	if rep.Status != report.StatusCompleted {
		t.Errorf("status = %q", rep.Status)
	}
	if rep.SummaryText == nil || *rep.SummaryText != "Normal vitals." {
		t.Errorf("summary = %v", rep.SummaryText)
	}
	if !strings.HasPrefix(rep.ID, "rep_") {
		t.Errorf("id = %q", rep.ID)
	}

	// Retrievable afterwards.
	getRec := env.do(t, http.MethodGet, "/reports/"+rep.ID, "", nil, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d", getRec.Code)
	}
}

func TestCreateTextReportWhitespaceRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.createText(t, "   \n\t ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["message"] != "Text is required" {
		t.Errorf("message = %q", resp["message"])
	}

	// Nothing persisted.
	listRec := env.do(t, http.MethodGet, "/reports", "", nil, "")
	var list struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Errorf("total = %d, want 0", list.Total)
	}
}

func TestCreateReportPendingOnSummarizerOutage(t *testing.T) {
	env := newTestEnv(t)
	env.summarizer.fail.Store(true)

	rec := env.createText(t, "BP 120/80.")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	rep := decodeReport(t, rec)
	if rep.Status != report.StatusPending {
		t.Errorf("status = %q, want pending", rep.Status)
	}
	if rep.SummaryText != nil {
		t.Error("pending report must not carry a summary")
	}
	if rep.OriginalText != "BP 120/80." {
		t.Errorf("text = %q, extracted text must survive the outage", rep.OriginalText)
	}
}

func TestCreateReportUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(map[string]string{"text": "BP 120/80."})
	rec := env.do(t, http.MethodPost, "/reports", "application/json", bytes.NewReader(body), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return bytes.NewReader(buf.Bytes()), mw.FormDataContentType()
}

func TestCreateImageReportRejectsBadType(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "image", "scan.gif", "image/gif", []byte("GIF89a"))
	rec := env.do(t, http.MethodPost, "/reports", ct, body, env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["message"] != "Unsupported image type" {
		t.Errorf("message = %q", resp["message"])
	}
	if env.ocrCalls.Load() != 0 {
		t.Error("OCR must not be called for rejected media types")
	}
}

func TestCreatePDFReport(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "document", "vitals.pdf", "application/pdf",
		buildTextPDF("BP 120/80 and HR 72"))
	rec := env.do(t, http.MethodPost, "/reports/pdf", ct, body, env.token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Success bool           `json:"success"`
		Report  *report.Report `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Report == nil {
		t.Fatalf("response = %s", rec.Body)
	}
	if resp.Report.Status != report.StatusCompleted {
		t.Errorf("status = %q", resp.Report.Status)
	}
	if !strings.Contains(resp.Report.OriginalText, "BP 120/80") {
		t.Errorf("text = %q", resp.Report.OriginalText)
	}
}

func TestCreatePDFReportRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "document", "notes.txt", "text/plain", []byte("just text"))
	rec := env.do(t, http.MethodPost, "/reports/pdf", ct, body, env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["message"] != "Only PDF files are allowed" {
		t.Errorf("message = %q", resp["message"])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := &Server{}
	tests := []struct {
		name    string
		source  extract.Source
		err     error
		status  int
		message string
	}{
		{"pdf without text", extract.SourcePDF, extract.ErrNoText, http.StatusBadRequest, "No readable text found in PDF"},
		{"image without text", extract.SourceImage, extract.ErrNoText, http.StatusBadRequest, "Unable to extract text from image"},
		{"empty pdf upload", extract.SourcePDF, extract.ErrEmptyUpload, http.StatusBadRequest, "Uploaded PDF is empty"},
		{"empty image upload", extract.SourceImage, extract.ErrEmptyUpload, http.StatusBadRequest, "Image file required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/reports", nil)
			s.writeError(rec, req, tt.source, tt.err)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp map[string]string
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp["message"] != tt.message {
				t.Errorf("message = %q, want %q", resp["message"], tt.message)
			}
		})
	}
}

func TestCreatePDFReportWithoutText(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "document", "blank.pdf", "application/pdf", buildTextPDF(""))
	rec := env.do(t, http.MethodPost, "/reports/pdf", ct, body, env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["message"] != "No readable text found in PDF" {
		t.Errorf("message = %q", resp["message"])
	}
}

func TestCreateReportRejectsUnknownSourceType(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]string{"sourceType": "pdf", "text": "BP 120/80."})
	rec := env.do(t, http.MethodPost, "/reports", "application/json", bytes.NewReader(body), env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["message"] != "Invalid input" {
		t.Errorf("message = %q", resp["message"])
	}

	// Same guard on the multipart path.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("sourceType", "banana")
	mw.WriteField("text", "BP 120/80.")
	mw.Close()
	rec = env.do(t, http.MethodPost, "/reports", mw.FormDataContentType(), bytes.NewReader(buf.Bytes()), env.token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("multipart status = %d, want 400: %s", rec.Code, rec.Body)
	}

	// Nothing persisted by either attempt.
	listRec := env.do(t, http.MethodGet, "/reports", "", nil, env.token)
	var list struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Errorf("total = %d, want 0", list.Total)
	}
}

func TestGetReportInvalidAndMissing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/reports/not-a-report-id", "", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["message"] != "Invalid report id" {
		t.Errorf("message = %q", resp["message"])
	}

	rec = env.do(t, http.MethodGet, "/reports/rep_00000000-0000-7000-8000-000000000000", "", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
}

func TestRetrySummary(t *testing.T) {
	env := newTestEnv(t)
	env.summarizer.fail.Store(true)

	rec := env.createText(t, "BP 120/80.")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	rep := decodeReport(t, rec)

	// Retries need no credentials; the endpoint is open like the rest of
	// the summaries surface. Failure surfaces, report stays pending.
	retryRec := env.do(t, http.MethodPost, "/summaries/"+rep.ID, "", nil, "")
	if retryRec.Code != http.StatusBadGateway {
		t.Fatalf("retry status = %d, want 502: %s", retryRec.Code, retryRec.Body)
	}
	var failResp map[string]string
	json.NewDecoder(retryRec.Body).Decode(&failResp)
	if failResp["message"] != "Failed to generate summary" {
		t.Errorf("message = %q", failResp["message"])
	}

	// Capability recovers.
	env.summarizer.fail.Store(false)
	retryRec = env.do(t, http.MethodPost, "/summaries/"+rep.ID, "", nil, "")
	if retryRec.Code != http.StatusOK {
		t.Fatalf("retry status = %d: %s", retryRec.Code, retryRec.Body)
	}
	got := decodeReport(t, retryRec)
	if got.Status != report.StatusCompleted || got.SummaryText == nil {
		t.Errorf("after retry: %+v", got)
	}

	// The summary endpoint now reports completion.
	sumRec := env.do(t, http.MethodGet, "/summaries/"+rep.ID, "", nil, "")
	if sumRec.Code != http.StatusOK {
		t.Fatalf("get summary status = %d", sumRec.Code)
	}
	var sumResp struct {
		Status      report.Status `json:"status"`
		SummaryText *string       `json:"summaryText"`
	}
	if err := json.NewDecoder(sumRec.Body).Decode(&sumResp); err != nil {
		t.Fatal(err)
	}
	if sumResp.Status != report.StatusCompleted || sumResp.SummaryText == nil {
		t.Errorf("summary state = %+v", sumResp)
	}
}

func TestListReportsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)

	rec := env.createText(t, "BP 120/80.")
	if rec.Code != http.StatusCreated {
		t.Fatal("create failed")
	}

	other := env.signup(t, "other@example.com")
	listRec := env.do(t, http.MethodGet, "/reports", "", nil, other)
	var list struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Errorf("other user's total = %d, want 0", list.Total)
	}

	listRec = env.do(t, http.MethodGet, "/reports", "", nil, env.token)
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("owner's total = %d, want 1", list.Total)
	}
}

// buildTextPDF creates a valid single-page PDF with proper xref offsets.
func buildTextPDF(text string) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)
	writeObj := func(i int, s string) {
		offsets[i] = b.Len()
		b.WriteString(s)
	}

	writeObj(1, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(2, "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	writeObj(3, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	writeObj(4, "4 0 obj\n<< /Length "+itoa(len(stream))+" >>\nstream\n"+stream+"\nendstream\nendobj\n")
	writeObj(5, "5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		s := itoa(offsets[i])
		for len(s) < 10 {
			s = "0" + s
		}
		b.WriteString(s + " 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n" + itoa(xrefOffset) + "\n%%EOF\n")
	return []byte(b.String())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}
