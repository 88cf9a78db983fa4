package pathology

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pathlab/pathreview/internal/platform/auth"
	"github.com/pathlab/pathreview/pkg/pagination"
)

const (
	msgReportNotFound  = "Report not found"
	msgListFailed      = "Error fetching reports"
	msgGetFailed       = "Error fetching report"
	msgVerified        = "Report verified successfully"
	msgVerifyFailed    = "Error verifying report"
	msgPatientRptsFail = "Error fetching patient reports"
)

// DoctorHandler serves the review workflows.
type DoctorHandler struct {
	svc *Service
}

func NewDoctorHandler(svc *Service) *DoctorHandler {
	return &DoctorHandler{svc: svc}
}

func (h *DoctorHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	g.GET("/reports", h.ListReports)
	g.GET("/reports/:reportId", h.GetReport)
	g.PUT("/verify/:reportId", h.VerifyReport)
	g.GET("/patients/:patientId/reports", h.ListPatientReports)
}

// ListReports returns every report ordered by score. limit/offset narrow the
// list and add X-Total-Count.
func (h *DoctorHandler) ListReports(c echo.Context) error {
	items, err := h.svc.ListReports(c.Request().Context())
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("listing reports failed")
		return processingError(msgListFailed, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(c, items))
}

func (h *DoctorHandler) GetReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, msgReportNotFound)
	}

	d, err := h.svc.GetReport(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msgReportNotFound)
	}
	if err != nil {
		return processingError(msgGetFailed, err)
	}
	return c.JSON(http.StatusOK, d)
}

// VerifyReport answers 404 for an unknown report before looking at the body.
func (h *DoctorHandler) VerifyReport(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, msgReportNotFound)
	}
	if _, err := h.svc.GetReport(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, msgReportNotFound)
		}
		return processingError(msgVerifyFailed, err)
	}

	var in VerifyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if _, err := h.svc.VerifyReport(ctx, id, in, auth.UserIDFromContext(ctx)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, msgReportNotFound)
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("report_id", id.String()).Msg("verifying report failed")
		return processingError(msgVerifyFailed, err)
	}

	zerolog.Ctx(ctx).Info().Str("report_id", id.String()).Msg("report verified")
	return c.JSON(http.StatusOK, map[string]string{"message": msgVerified})
}

func (h *DoctorHandler) ListPatientReports(c echo.Context) error {
	reports, err := h.svc.ListPatientReports(c.Request().Context(), c.Param("patientId"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msgPatientNotFound)
	}
	if err != nil {
		return processingError(msgPatientRptsFail, err)
	}
	return c.JSON(http.StatusOK, reports)
}
