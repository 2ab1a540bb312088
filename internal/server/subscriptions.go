package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/store"
)

// SubscriptionsHandler manages recurring research runs.
type SubscriptionsHandler struct {
	Store *store.Store
}

func (h *SubscriptionsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("/:id", h.remove)
}

func (h *SubscriptionsHandler) create(c echo.Context) error {
	var req CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q, err := research.NewQuery(req.Topic, research.Depth(req.Depth))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Cron == "" {
		req.Cron = "@daily"
	}
	if req.Cron != "@daily" && req.Cron != "@hourly" {
		if _, err := cronexpr.Parse(req.Cron); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid cron expression %q: %v", req.Cron, err))
		}
	}
	id, err := h.Store.CreateSubscription(c.Request().Context(), q.Topic, string(q.Depth), strings.TrimSpace(req.Cron))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *SubscriptionsHandler) list(c echo.Context) error {
	items, err := h.Store.ListSubscriptions(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Subscription{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *SubscriptionsHandler) remove(c echo.Context) error {
	err := h.Store.DeleteSubscription(c.Request().Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
