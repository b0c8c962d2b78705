package cohort

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	g := api.Group("/cohort-queries", auth.RequireRole("admin"))
	g.POST("", h.CreateDefinition)
	g.GET("", h.ListDefinitions)
	g.GET("/:id", h.GetDefinition)
	g.PUT("/:id", h.UpdateDefinition)
	g.POST("/:id/retire", h.RetireDefinition)
	g.POST("/:id/unretire", h.UnretireDefinition)
	g.GET("/:id/patients", h.EvaluateDefinition)
}

type definitionRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Query       string  `json:"query"`
}

func (h *Handler) CreateDefinition(c echo.Context) error {
	var req definitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	def := &Definition{
		Name:        req.Name,
		Description: req.Description,
		Query:       req.Query,
	}
	if err := h.svc.CreateDefinition(c.Request().Context(), def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, def)
}

func (h *Handler) ListDefinitions(c echo.Context) error {
	pg := pagination.FromContext(c)
	includeRetired := c.QueryParam("include_retired") == "true"
	defs, total, err := h.svc.ListDefinitions(c.Request().Context(), includeRetired, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(defs, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDefinition(c echo.Context) error {
	def, err := h.fetch(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) UpdateDefinition(c echo.Context) error {
	def, err := h.fetch(c)
	if err != nil {
		return err
	}
	var req definitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	def.Name = req.Name
	def.Description = req.Description
	def.Query = req.Query
	if err := h.svc.UpdateDefinition(c.Request().Context(), def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) RetireDefinition(c echo.Context) error {
	def, err := h.fetch(c)
	if err != nil {
		return err
	}
	if err := h.svc.RetireDefinition(c.Request().Context(), def.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UnretireDefinition(c echo.Context) error {
	def, err := h.fetch(c)
	if err != nil {
		return err
	}
	if err := h.svc.UnretireDefinition(c.Request().Context(), def.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) EvaluateDefinition(c echo.Context) error {
	def, err := h.fetch(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.MatchedPatients(c.Request().Context(), def.Name)
	if err != nil {
		var unresolved *ResolutionError
		if errors.As(err, &unresolved) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if patients == nil {
		patients = []uuid.UUID{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patients": patients,
		"count":    len(patients),
	})
}

func (h *Handler) fetch(c echo.Context) (*Definition, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	def, err := h.svc.GetDefinition(c.Request().Context(), id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "cohort query not found")
	}
	return def, nil
}
