package pathology

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pathlab/pathreview/internal/platform/analysis"
	"github.com/pathlab/pathreview/internal/platform/auth"
	"github.com/pathlab/pathreview/internal/platform/blobstore"
	"github.com/pathlab/pathreview/internal/platform/middleware"
	"github.com/pathlab/pathreview/internal/platform/ocr"
	"github.com/pathlab/pathreview/internal/platform/validation"
)

// -- Collaborator doubles --

type fakeOCR struct {
	result   *ocr.Result
	err      error
	calls    int
	lastName string
	lastBody string
}

func (f *fakeOCR) Extract(_ context.Context, fileName string, content io.Reader) (*ocr.Result, error) {
	f.calls++
	f.lastName = fileName
	b, _ := io.ReadAll(content)
	f.lastBody = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAnalyzer struct {
	result   *analysis.Result
	err      error
	calls    int
	lastText string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text string) (*analysis.Result, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type testEnv struct {
	e        *echo.Echo
	svc      *Service
	store    *memStore
	blobs    *blobstore.InMemoryBlobStore
	ocr      *fakeOCR
	analyzer *fakeAnalyzer
}

// newTestEnv wires both handlers behind a middleware that takes the caller's
// identity from X-Test-User / X-Test-Roles. uploadMW wraps the multipart
// routes.
func newTestEnv(t *testing.T, uploadMW ...echo.MiddlewareFunc) *testEnv {
	t.Helper()
	svc, store := newTestService()
	env := &testEnv{
		e:        echo.New(),
		svc:      svc,
		store:    store,
		blobs:    blobstore.NewInMemoryBlobStore(),
		ocr:      &fakeOCR{result: &ocr.Result{}},
		analyzer: &fakeAnalyzer{result: &analysis.Result{}},
	}
	env.e.Validator = validation.New()
	env.e.HTTPErrorHandler = middleware.HTTPErrorHandler(zerolog.Nop())

	api := env.e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var roles []string
			if r := c.Request().Header.Get("X-Test-Roles"); r != "" {
				roles = strings.Split(r, ",")
			}
			user := c.Request().Header.Get("X-Test-User")
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), user, user+".name", roles)))
			return next(c)
		}
	})

	ph := NewPathologistHandler(svc, env.blobs, env.ocr, env.analyzer)
	ph.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ph.RegisterRoutes(api, uploadMW...)
	NewDoctorHandler(svc).RegisterRoutes(api)
	return env
}

func multipartBody(t *testing.T, field, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, fileName)
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		part.Write([]byte(content))
	} else {
		mw.WriteField("note", "no file here")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (env *testEnv) do(req *http.Request, user, roles string) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if roles != "" {
		req.Header.Set("X-Test-Roles", roles)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) upload(t *testing.T, field, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/upload", body)
	req.Header.Set(echo.HeaderContentType, ct)
	return env.do(req, "path-1", auth.RolePathologist)
}

func (env *testEnv) jsonRequest(method, path, body, user, roles string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return env.do(req, user, roles)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func onlyReport(t *testing.T, store *memStore) *Report {
	t.Helper()
	if len(store.reports) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(store.reports))
	}
	for _, r := range store.reports {
		return r
	}
	return nil
}

// -- Upload --

func TestUploadReport_NewPatient(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.result = &ocr.Result{ExtractedText: "Name: Jane Doe\nGender: Female"}
	env.analyzer.result = &analysis.Result{Answer: "low risk", Score: floatPtr(0.12)}

	rec := env.upload(t, "report", "scan.png", "png-bytes")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Message  string  `json:"message"`
		ReportID string  `json:"reportId"`
		Score    float64 `json:"score"`
	}
	decode(t, rec, &body)
	if body.Message != "Report uploaded and analyzed successfully." {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.Score != 0.12 {
		t.Errorf("expected score 0.12, got %v", body.Score)
	}

	r := onlyReport(t, env.store)
	if r.ID.String() != body.ReportID {
		t.Errorf("response reportId %s does not match stored %s", body.ReportID, r.ID)
	}
	if r.NormalizedScore == nil || *r.NormalizedScore != 0.12 {
		t.Errorf("expected normalizedScore 0.12, got %v", r.NormalizedScore)
	}
	if r.LLMGeneratedReport == nil || *r.LLMGeneratedReport != "low risk" {
		t.Errorf("expected llm report, got %v", r.LLMGeneratedReport)
	}
	if r.Status != StatusCompleted {
		t.Errorf("expected Completed, got %q", r.Status)
	}
	if r.UploadedBy != "path-1" {
		t.Errorf("expected uploader path-1, got %q", r.UploadedBy)
	}
	if !strings.HasPrefix(r.OriginalReportURL, "memory://") {
		t.Errorf("expected blob URL, got %q", r.OriginalReportURL)
	}

	p, err := env.store.GetByID(context.Background(), r.PatientID)
	if err != nil {
		t.Fatalf("patient: %v", err)
	}
	if p.Name != "Jane Doe" || p.Gender == nil || *p.Gender != "Female" {
		t.Errorf("unexpected patient %+v", p)
	}
	if p.PatientID != "PAT_1700000000000" {
		t.Errorf("expected generated patient id, got %q", p.PatientID)
	}
	if len(p.Reports) != 1 || p.Reports[0] != r.ID {
		t.Errorf("expected report linked once, got %v", p.Reports)
	}

	if env.ocr.lastBody != "png-bytes" || env.ocr.lastName != "scan.png" {
		t.Errorf("ocr received %q/%q", env.ocr.lastName, env.ocr.lastBody)
	}
	if env.analyzer.lastText != "Name: Jane Doe\nGender: Female" {
		t.Errorf("analyzer received %q", env.analyzer.lastText)
	}
	if env.blobs.Len() != 1 {
		t.Errorf("expected one stored blob, got %d", env.blobs.Len())
	}
}

func TestUploadReport_EmbeddedAnalysisSkipsAnalyzer(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.result = &ocr.Result{
		ExtractedText:     "Name: John Roe",
		RetrieverResponse: &ocr.RetrieverResponse{Answer: "high risk", Score: floatPtr(0.91)},
	}

	rec := env.upload(t, "report", "scan.pdf", "pdf")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.analyzer.calls != 0 {
		t.Errorf("expected analyzer not called, got %d calls", env.analyzer.calls)
	}
	r := onlyReport(t, env.store)
	if *r.LLMGeneratedReport != "high risk" || *r.NormalizedScore != 0.91 {
		t.Errorf("expected embedded analysis stored, got %q/%v", *r.LLMGeneratedReport, *r.NormalizedScore)
	}
}

func TestUploadReport_AnalysisDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.result = &ocr.Result{ExtractedText: "nothing useful"}
	env.analyzer.result = &analysis.Result{}

	rec := env.upload(t, "report", "scan.pdf", "pdf")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	r := onlyReport(t, env.store)
	if *r.LLMGeneratedReport != "Not available" {
		t.Errorf("expected Not available, got %q", *r.LLMGeneratedReport)
	}
	if *r.NormalizedScore != 0 {
		t.Errorf("expected score 0, got %v", *r.NormalizedScore)
	}
}

func TestUploadReport_ExistingPatientSkipsReport(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.svc.EnsurePatient(context.Background(), PatientDetails{PatientID: "PAT_7"}); err != nil {
		t.Fatalf("seeding patient: %v", err)
	}
	env.ocr.result = &ocr.Result{ExtractedText: "Patient ID: PAT_7\nName: Jane Doe"}

	rec := env.upload(t, "report", "scan.pdf", "pdf")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "Patient already exists" || body["patientId"] != "PAT_7" {
		t.Errorf("unexpected body %v", body)
	}
	if len(env.store.reports) != 0 {
		t.Errorf("expected no report, got %d", len(env.store.reports))
	}
	if env.analyzer.calls != 0 {
		t.Errorf("expected no analysis call, got %d", env.analyzer.calls)
	}
}

func TestUploadReport_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "", "", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "No file uploaded" {
		t.Errorf("unexpected message %q", body["message"])
	}
	if env.ocr.calls != 0 {
		t.Error("expected no OCR call")
	}
}

func TestUploadReport_AnonymousUploaderRecordedAsSystem(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.result = &ocr.Result{ExtractedText: "Name: Jane Doe"}

	body, ct := multipartBody(t, "report", "scan.pdf", "pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/upload", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := env.do(req, "", auth.RolePathologist)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	r := onlyReport(t, env.store)
	if r.UploadedBy != SystemUploader {
		t.Errorf("expected uploader %q, got %q", SystemUploader, r.UploadedBy)
	}
	if r.UploadedByName != nil {
		t.Errorf("expected no uploader name, got %q", *r.UploadedByName)
	}
}

func TestUploadReport_OversizedChunkedBody(t *testing.T) {
	env := newTestEnv(t, middleware.BodyLimit("1K"))

	body, ct := multipartBody(t, "report", "scan.pdf", strings.Repeat("x", 4096))
	// Hiding the concrete reader type leaves ContentLength unknown (-1).
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/upload", io.MultiReader(body))
	req.Header.Set(echo.HeaderContentType, ct)
	rec := env.do(req, "path-1", auth.RolePathologist)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.ocr.calls != 0 || env.blobs.Len() != 0 {
		t.Error("expected the oversized upload to stop before storage and OCR")
	}
}

func TestUploadReport_OCRFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.err = &ocr.StatusError{StatusCode: http.StatusBadGateway, Body: "upstream down"}

	rec := env.upload(t, "report", "scan.pdf", "pdf")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body middleware.ErrorResponse
	decode(t, rec, &body)
	if body.Message != "Error processing report" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if !strings.Contains(body.Error, "502") {
		t.Errorf("expected cause in error field, got %q", body.Error)
	}
	if len(env.store.patients) != 0 || len(env.store.reports) != 0 {
		t.Error("expected nothing persisted after OCR failure")
	}
}

func TestUploadReport_AnalysisFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.result = &ocr.Result{ExtractedText: "Name: Jane Doe"}
	env.analyzer.err = errors.New("context deadline exceeded")

	rec := env.upload(t, "report", "scan.pdf", "pdf")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(env.store.reports) != 0 {
		t.Errorf("expected no report, got %d", len(env.store.reports))
	}
}

func TestUploadReport_DoctorForbidden(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "report", "scan.pdf", "pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/upload", body)
	req.Header.Set(echo.HeaderContentType, ct)

	rec := env.do(req, "doc-1", auth.RoleDoctor)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if env.blobs.Len() != 0 {
		t.Error("expected nothing stored for a forbidden request")
	}
}

// -- Confirm upload --

func TestConfirmUpload_OK(t *testing.T) {
	env := newTestEnv(t)
	p, _, _ := env.svc.EnsurePatient(context.Background(), PatientDetails{PatientID: "PAT_1"})

	rec := env.jsonRequest(http.MethodPost, "/api/pathologist/upload/confirm",
		`{"patientId":"PAT_1","reportData":{"reportUrl":"/uploads/x.pdf","ocrText":"t","llmReport":"edited","score":0.4}}`,
		"path-1", auth.RolePathologist)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "Updated report submitted successfully." {
		t.Errorf("unexpected message %q", body["message"])
	}
	r := onlyReport(t, env.store)
	if body["reportId"] != r.ID.String() {
		t.Errorf("reportId mismatch")
	}
	if r.PatientID != p.ID || r.Status != StatusCompleted || *r.LLMGeneratedReport != "edited" || *r.NormalizedScore != 0.4 {
		t.Errorf("unexpected stored report %+v", r)
	}
}

func TestConfirmUpload_UnknownPatient(t *testing.T) {
	env := newTestEnv(t)
	rec := env.jsonRequest(http.MethodPost, "/api/pathologist/upload/confirm",
		`{"patientId":"PAT_nope","reportData":{"reportUrl":"/uploads/x.pdf"}}`,
		"path-1", auth.RolePathologist)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "Patient not found" {
		t.Errorf("unexpected message %q", body["message"])
	}
}

func TestConfirmUpload_MissingPatientID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.jsonRequest(http.MethodPost, "/api/pathologist/upload/confirm",
		`{"reportData":{"reportUrl":"/uploads/x.pdf"}}`, "path-1", auth.RolePathologist)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// -- OCR test --

func TestTestOCR_WordCount(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.result = &ocr.Result{ExtractedText: "  Name: Jane Doe\n Gender:  Female "}

	body, ct := multipartBody(t, "file", "sample.png", "img")
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/ocr", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := env.do(req, "path-1", auth.RolePathologist)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message       string `json:"message"`
		WordCount     int    `json:"wordCount"`
		ExtractedText string `json:"extractedText"`
	}
	decode(t, rec, &resp)
	if resp.Message != "OCR extraction successful." {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if resp.WordCount != 5 {
		t.Errorf("expected 5 words, got %d", resp.WordCount)
	}
	if env.blobs.Len() != 0 {
		t.Error("OCR test must not store the file")
	}
}

func TestTestOCR_NoFile(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/ocr", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := env.do(req, "path-1", auth.RolePathologist)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["message"] != "No file uploaded." {
		t.Errorf("unexpected message %q", resp["message"])
	}
}

func TestTestOCR_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.ocr.err = errors.New("dial tcp: connection refused")

	body, ct := multipartBody(t, "file", "sample.png", "img")
	req := httptest.NewRequest(http.MethodPost, "/api/pathologist/ocr", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := env.do(req, "path-1", auth.RolePathologist)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp middleware.ErrorResponse
	decode(t, rec, &resp)
	if resp.Message != "OCR failed" || resp.Error == "" {
		t.Errorf("unexpected body %+v", resp)
	}
}

// -- Doctor --

func seedReport(t *testing.T, env *testEnv, patientID, name string, score *float64) *Report {
	t.Helper()
	ctx := context.Background()
	p, _, err := env.svc.EnsurePatient(ctx, PatientDetails{PatientID: patientID, Name: name})
	if err != nil {
		t.Fatalf("seeding patient: %v", err)
	}
	r, err := env.svc.CreateReportForPatient(ctx, CreateReportOptions{
		Patient: PatientRefFromEntity(p), UploadedBy: UserRef{ID: "path-1", Name: "lab.user"},
		OriginalReportURL: "/uploads/x.pdf", LLMGeneratedReport: strPtr("narrative"), NormalizedScore: score,
		Status: StatusCompleted,
	})
	if err != nil {
		t.Fatalf("seeding report: %v", err)
	}
	return r
}

func TestDoctorListReports(t *testing.T) {
	env := newTestEnv(t)
	low := seedReport(t, env, "PAT_1", "Low", floatPtr(0.1))
	high := seedReport(t, env, "PAT_2", "High", floatPtr(0.8))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/reports", nil), "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []map[string]interface{}
	decode(t, rec, &items)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0]["reportId"] != high.ID.String() || items[1]["reportId"] != low.ID.String() {
		t.Errorf("expected high score first, got %v", items)
	}
	first := items[0]
	if first["patientName"] != "High" || first["llmReport"] != "narrative" || first["isReviewed"] != false {
		t.Errorf("unexpected projection %v", first)
	}
	if v, ok := first["doctorScore"]; !ok || v != nil {
		t.Errorf("expected doctorScore null, got %v", v)
	}
	if first["doctorComments"] != "" {
		t.Errorf("expected empty doctorComments, got %v", first["doctorComments"])
	}
}

func TestDoctorListReports_PathologistForbidden(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/reports", nil), "path-1", auth.RolePathologist)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestDoctorGetReport(t *testing.T) {
	env := newTestEnv(t)
	r := seedReport(t, env, "PAT_1", "Jane Doe", floatPtr(0.3))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/reports/"+r.ID.String(), nil), "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		ID                string       `json:"id"`
		Patient           PatientInfo  `json:"patient"`
		UploadedBy        UploaderInfo `json:"uploadedBy"`
		OriginalReportURL string       `json:"originalReportUrl"`
	}
	decode(t, rec, &body)
	if body.ID != r.ID.String() || body.Patient.Name != "Jane Doe" || body.UploadedBy.Username != "lab.user" {
		t.Errorf("unexpected body %+v", body)
	}
	if body.OriginalReportURL != "/uploads/x.pdf" {
		t.Errorf("unexpected url %q", body.OriginalReportURL)
	}
}

func TestDoctorGetReport_NotFound(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/reports/"+id, nil), "doc-1", auth.RoleDoctor)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", id, rec.Code)
			continue
		}
		var body map[string]string
		decode(t, rec, &body)
		if body["message"] != "Report not found" {
			t.Errorf("unexpected message %q", body["message"])
		}
	}
}

func TestDoctorVerify_OK(t *testing.T) {
	env := newTestEnv(t)
	r := seedReport(t, env, "PAT_1", "Jane Doe", floatPtr(0.3))

	rec := env.jsonRequest(http.MethodPut, "/api/doctor/verify/"+r.ID.String(),
		`{"doctorComments":"Concur","doctorScore":0.25}`, "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "Report verified successfully" {
		t.Errorf("unexpected message %q", body["message"])
	}

	stored := env.store.reports[r.ID]
	v := stored.DoctorVerification
	if !v.IsVerified || *v.VerifiedBy != "doc-1" || *v.DoctorComments != "Concur" || *v.DoctorScore != 0.25 {
		t.Errorf("unexpected verification %+v", v)
	}
	if stored.Status != StatusCompleted {
		t.Errorf("expected Completed, got %q", stored.Status)
	}
}

func TestDoctorVerify_NotFoundRegardlessOfBody(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{"doctorComments":"x","doctorScore":1}`, `{not json`, ``} {
		rec := env.jsonRequest(http.MethodPut, "/api/doctor/verify/"+uuid.New().String(), body, "doc-1", auth.RoleDoctor)
		if rec.Code != http.StatusNotFound {
			t.Errorf("body %q: expected 404, got %d", body, rec.Code)
		}
	}
}

func TestDoctorVerify_BadBodyOnExistingReport(t *testing.T) {
	env := newTestEnv(t)
	r := seedReport(t, env, "PAT_1", "Jane Doe", nil)

	rec := env.jsonRequest(http.MethodPut, "/api/doctor/verify/"+r.ID.String(), `{not json`, "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if env.store.reports[r.ID].DoctorVerification.IsVerified {
		t.Error("report must stay unverified")
	}
}

func TestDoctorListPatientReports(t *testing.T) {
	env := newTestEnv(t)
	r := seedReport(t, env, "PAT_1", "Jane Doe", nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/patients/PAT_1/reports", nil), "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Report
	decode(t, rec, &items)
	if len(items) != 1 || items[0].ID != r.ID {
		t.Errorf("unexpected items %+v", items)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/patients/PAT_missing/reports", nil), "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAdminPassesBothRoleGroups(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/reports", nil), "root", auth.RoleAdmin)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestDoctorListReports_Paged(t *testing.T) {
	env := newTestEnv(t)
	seedReport(t, env, "PAT_1", "A", floatPtr(0.9))
	mid := seedReport(t, env, "PAT_2", "B", floatPtr(0.5))
	seedReport(t, env, "PAT_3", "C", floatPtr(0.1))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/doctor/reports?limit=1&offset=1", nil), "doc-1", auth.RoleDoctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []ReportSummary
	decode(t, rec, &items)
	if len(items) != 1 || items[0].ReportID != mid.ID {
		t.Errorf("expected the middle report only, got %+v", items)
	}
	if got := rec.Header().Get("X-Total-Count"); got != "3" {
		t.Errorf("expected X-Total-Count 3, got %q", got)
	}
}
