package casereport

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/casereport/internal/domain/cohort"
	"github.com/ehr/casereport/internal/platform/auth"
	"github.com/ehr/casereport/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "physician", "surveillance-officer")

	g := api.Group("", role)
	g.GET("/case-reports", h.ListCaseReports)
	g.GET("/case-reports/:id", h.GetCaseReport)
	g.PUT("/case-reports/:id", h.SaveCaseReport)
	g.POST("/case-reports/:id/form", h.GenerateReportForm)
	g.POST("/case-reports/:id/submit", h.SubmitCaseReport)
	g.POST("/case-reports/:id/dismiss", h.DismissCaseReport)
	g.POST("/case-reports/:id/void", h.VoidCaseReport)
	g.POST("/case-reports/:id/unvoid", h.UnvoidCaseReport)
	g.GET("/patients/:patientId/case-report", h.GetOpenReportForPatient)
	g.POST("/triggers/:name/run", h.RunTrigger)
}

func (h *Handler) ListCaseReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		IncludeVoided:    c.QueryParam("include_voided") == "true",
		IncludeSubmitted: c.QueryParam("include_submitted") == "true",
		IncludeDismissed: c.QueryParam("include_dismissed") == "true",
	}
	items, total, err := h.svc.ListCaseReports(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetCaseReport(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) GetOpenReportForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	r, err := h.svc.GetOpenReportByPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if r == nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient has no open case report")
	}
	return c.JSON(http.StatusOK, r)
}

type saveRequest struct {
	Form *CaseReportForm `json:"form"`
}

func (h *Handler) SaveCaseReport(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.Form = req.Form
	saved, err := h.svc.Save(c.Request().Context(), r)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) GenerateReportForm(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	generated, err := h.svc.GenerateReportForm(c.Request().Context(), r)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, generated)
}

type submitRequest struct {
	Submitter *UuidAndValue `json:"submitter"`
	Comments  string        `json:"comments"`
}

func (h *Handler) SubmitCaseReport(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	submitted, err := h.svc.Submit(c.Request().Context(), r, req.Submitter, req.Comments)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, submitted)
}

func (h *Handler) DismissCaseReport(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	dismissed, err := h.svc.Dismiss(c.Request().Context(), r)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, dismissed)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) VoidCaseReport(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	var req voidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	voided, err := h.svc.Void(c.Request().Context(), r, req.Reason)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, voided)
}

func (h *Handler) UnvoidCaseReport(c echo.Context) error {
	r, err := h.fetch(c)
	if err != nil {
		return err
	}
	unvoided, err := h.svc.Unvoid(c.Request().Context(), r)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, unvoided)
}

func (h *Handler) RunTrigger(c echo.Context) error {
	name := c.Param("name")
	if err := h.svc.RunTrigger(c.Request().Context(), name); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) fetch(c echo.Context) (*CaseReport, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetCaseReport(c.Request().Context(), id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "case report not found")
	}
	return r, nil
}

// domainError maps typed domain failures onto HTTP statuses.
func domainError(err error) error {
	var voided *VoidedEntityError
	var conflict *StatusConflictError
	var missing *MissingRequiredDataError
	var dates *DateComparisonError
	var unresolved *cohort.ResolutionError
	var ambiguous *cohort.AmbiguousTriggerError
	switch {
	case errors.As(err, &voided), errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &missing), errors.As(err, &dates):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unresolved):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &ambiguous):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
