package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/store"
)

// ReportsHandler serves persisted reports and their conflicts.
type ReportsHandler struct {
	Store *store.Store
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/conflicts", h.conflicts)
}

func (h *ReportsHandler) list(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	items, err := h.Store.ListReports(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.ReportSummary{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ReportsHandler) get(c echo.Context) error {
	rpt, ok, err := h.Store.GetReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	return c.JSON(http.StatusOK, rpt)
}

func (h *ReportsHandler) conflicts(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	ok, err := h.Store.ReportExists(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	items, err := h.Store.ListConflicts(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []research.Conflict{}
	}
	return c.JSON(http.StatusOK, items)
}
