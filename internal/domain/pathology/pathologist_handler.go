package pathology

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pathlab/pathreview/internal/platform/analysis"
	"github.com/pathlab/pathreview/internal/platform/auth"
	"github.com/pathlab/pathreview/internal/platform/blobstore"
	"github.com/pathlab/pathreview/internal/platform/middleware"
	"github.com/pathlab/pathreview/internal/platform/ocr"
)

const (
	msgNoFile          = "No file uploaded"
	msgPatientExists   = "Patient already exists"
	msgUploaded        = "Report uploaded and analyzed successfully."
	msgUploadFailed    = "Error processing report"
	msgConfirmed       = "Updated report submitted successfully."
	msgConfirmFailed   = "Error confirming report upload"
	msgPatientNotFound = "Patient not found"
	msgOCROK           = "OCR extraction successful."
	msgOCRFailed       = "OCR failed"
	defaultLLMReport   = "Not available"
)

// PathologistHandler runs the report intake workflows.
type PathologistHandler struct {
	svc      *Service
	blobs    blobstore.BlobStore
	ocr      ocr.Extractor
	analyzer analysis.Analyzer
	now      func() time.Time
}

func NewPathologistHandler(svc *Service, blobs blobstore.BlobStore, extractor ocr.Extractor, analyzer analysis.Analyzer) *PathologistHandler {
	return &PathologistHandler{
		svc:      svc,
		blobs:    blobs,
		ocr:      extractor,
		analyzer: analyzer,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the pathologist routes under api. uploadMW wraps the
// file upload endpoints only (body size limits).
func (h *PathologistHandler) RegisterRoutes(api *echo.Group, uploadMW ...echo.MiddlewareFunc) {
	g := api.Group("/pathologist", auth.RequireRole(auth.RolePathologist))
	g.POST("/upload", h.UploadReport, uploadMW...)
	g.POST("/upload/confirm", h.ConfirmUpload)
	g.POST("/ocr", h.TestOCR, uploadMW...)
}

type uploadResponse struct {
	Message  string  `json:"message"`
	ReportID string  `json:"reportId"`
	Score    float64 `json:"score"`
}

type patientExistsResponse struct {
	Message   string `json:"message"`
	PatientID string `json:"patientId"`
}

// UploadReport stores the scan, runs OCR and analysis, and files a
// Completed report for a newly seen patient. A scan whose patient already
// exists is acknowledged without creating a report.
func (h *PathologistHandler) UploadReport(c echo.Context) error {
	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx)

	fh, err := c.FormFile("report")
	if err != nil {
		return missingFileError(err, msgNoFile)
	}
	uploader := uploaderFromRequest(c)

	src, err := fh.Open()
	if err != nil {
		return processingError(msgUploadFailed, err)
	}
	defer src.Close()

	blob, err := h.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Category:    blobstore.CategoryPathology,
		CreatedBy:   uploader.ID,
	}, src)
	if err != nil {
		logger.Error().Err(err).Str("file", fh.Filename).Msg("storing report file failed")
		return processingError(msgUploadFailed, err)
	}
	logger.Info().Str("blob_id", blob.ID).Str("url", blob.URL).Msg("report file stored")

	stored, _, err := h.blobs.Download(ctx, blob.ID)
	if err != nil {
		logger.Error().Err(err).Str("blob_id", blob.ID).Msg("reading stored report failed")
		return processingError(msgUploadFailed, err)
	}
	defer stored.Close()

	ocrResult, err := h.ocr.Extract(ctx, fh.Filename, stored)
	if err != nil {
		logger.Error().Err(err).Msg("ocr call failed")
		return processingError(msgUploadFailed, err)
	}
	logger.Info().Int("text_length", len(ocrResult.ExtractedText)).Msg("ocr completed")

	details := ExtractPatientDetails(ocrResult.ExtractedText, h.now())
	patient, existed, err := h.svc.EnsurePatient(ctx, details)
	if err != nil {
		logger.Error().Err(err).Str("patient_id", details.PatientID).Msg("ensuring patient failed")
		return processingError(msgUploadFailed, err)
	}
	if existed {
		logger.Info().Str("patient_id", patient.PatientID).Msg("patient already exists; skipping report")
		return c.JSON(http.StatusOK, patientExistsResponse{Message: msgPatientExists, PatientID: patient.PatientID})
	}

	answer, score, err := h.analyze(c, ocrResult)
	if err != nil {
		logger.Error().Err(err).Msg("analysis call failed")
		return processingError(msgUploadFailed, err)
	}

	text := ocrResult.ExtractedText
	report, err := h.svc.CreateReportForPatient(ctx, CreateReportOptions{
		Patient:            PatientRefFromEntity(patient),
		UploadedBy:         uploader,
		OriginalReportURL:  blob.URL,
		OCRText:            &text,
		LLMGeneratedReport: &answer,
		NormalizedScore:    &score,
		Status:             StatusCompleted,
	})
	if err != nil {
		logger.Error().Err(err).Str("patient_id", patient.PatientID).Msg("creating report failed")
		return processingError(msgUploadFailed, err)
	}
	logger.Info().Str("report_id", report.ID.String()).Float64("score", score).Msg("report created")

	return c.JSON(http.StatusCreated, uploadResponse{
		Message:  msgUploaded,
		ReportID: report.ID.String(),
		Score:    score,
	})
}

// analyze prefers the analysis embedded in the OCR reply and otherwise asks
// the analysis service. Missing fields fall back to defaults.
func (h *PathologistHandler) analyze(c echo.Context, res *ocr.Result) (string, float64, error) {
	answer, score := defaultLLMReport, 0.0

	if rr := res.RetrieverResponse; rr != nil {
		if rr.Answer != "" {
			answer = rr.Answer
		}
		if rr.Score != nil {
			score = *rr.Score
		}
		return answer, score, nil
	}

	result, err := h.analyzer.Analyze(c.Request().Context(), res.ExtractedText)
	if err != nil {
		return "", 0, err
	}
	if result.Answer != "" {
		answer = result.Answer
	}
	if result.Score != nil {
		score = *result.Score
	}
	zerolog.Ctx(c.Request().Context()).Info().Float64("score", score).Msg("analysis completed")
	return answer, score, nil
}

type confirmReportData struct {
	ReportURL string   `json:"reportUrl" validate:"required"`
	OCRText   *string  `json:"ocrText"`
	LLMReport *string  `json:"llmReport"`
	Score     *float64 `json:"score"`
}

type confirmUploadRequest struct {
	PatientID  string            `json:"patientId" validate:"required"`
	ReportData confirmReportData `json:"reportData"`
}

// ConfirmUpload files a report whose contents were reviewed on the client.
func (h *PathologistHandler) ConfirmUpload(c echo.Context) error {
	ctx := c.Request().Context()

	var req confirmUploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	patient, err := h.svc.FindPatient(ctx, req.PatientID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msgPatientNotFound)
	}
	if err != nil {
		return processingError(msgConfirmFailed, err)
	}

	report, err := h.svc.CreateReportForPatient(ctx, CreateReportOptions{
		Patient:            PatientRefFromEntity(patient),
		UploadedBy:         uploaderFromRequest(c),
		OriginalReportURL:  req.ReportData.ReportURL,
		OCRText:            req.ReportData.OCRText,
		LLMGeneratedReport: req.ReportData.LLMReport,
		NormalizedScore:    req.ReportData.Score,
		Status:             StatusCompleted,
	})
	if errors.Is(err, ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("patient_id", req.PatientID).Msg("confirming report failed")
		return processingError(msgConfirmFailed, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message":  msgConfirmed,
		"reportId": report.ID.String(),
	})
}

type ocrTestResponse struct {
	Message       string `json:"message"`
	WordCount     int    `json:"wordCount"`
	ExtractedText string `json:"extractedText"`
}

// TestOCR runs a file through OCR only and reports what came back.
func (h *PathologistHandler) TestOCR(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return missingFileError(err, msgNoFile+".")
	}
	src, err := fh.Open()
	if err != nil {
		return processingError(msgOCRFailed, err)
	}
	defer src.Close()

	res, err := h.ocr.Extract(c.Request().Context(), fh.Filename, src)
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("ocr test failed")
		return processingError(msgOCRFailed, err)
	}

	return c.JSON(http.StatusOK, ocrTestResponse{
		Message:       msgOCROK,
		WordCount:     len(strings.Fields(res.ExtractedText)),
		ExtractedText: res.ExtractedText,
	})
}

// uploaderFromRequest attributes the upload to the caller, or to
// SystemUploader when the request carries no identity.
func uploaderFromRequest(c echo.Context) UserRef {
	ctx := c.Request().Context()
	id := auth.UserIDFromContext(ctx)
	if id == "" {
		return UserRef{ID: SystemUploader}
	}
	return UserRef{ID: id, Name: auth.UsernameFromContext(ctx)}
}

// missingFileError keeps HTTP errors raised while reading the body (such as
// 413 from the body limit) and reports anything else as a missing file.
func missingFileError(err error, message string) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

// processingError is a 500 carrying a fixed message plus the cause.
func processingError(message string, cause error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, middleware.ErrorResponse{
		Message: message,
		Error:   cause.Error(),
	}).SetInternal(cause)
}
