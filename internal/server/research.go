package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scout-sh/scout/internal/cache"
	"github.com/scout-sh/scout/internal/engine"
	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/store"
)

// ResearchHandler runs synchronous research requests through the engine.
// Store and Cache are optional; a nil value just disables that side effect.
type ResearchHandler struct {
	Engine       *engine.Engine
	Store        *store.Store
	Cache        *cache.ReportCache
	DefaultDepth research.Depth
	Logger       *log.Logger
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/research", h.research)
}

func (h *ResearchHandler) research(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	depth := research.Depth(req.Depth)
	if req.Depth == "" {
		depth = h.DefaultDepth
	}
	q, err := research.NewQuery(req.Topic, depth)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q.TechnicalLevel = req.TechnicalLevel
	q.TargetWords = req.TargetWords

	ctx := c.Request().Context()
	if h.Cache != nil {
		rpt, err := h.Cache.Get(ctx, q)
		if err == nil {
			return c.JSON(http.StatusOK, rpt)
		}
		if !errors.Is(err, cache.ErrMiss) {
			h.Logger.Printf("cache get: %v", err)
		}
	}

	rpt, err := h.Engine.Research(ctx, q)
	if err != nil {
		var confErr *research.ConfigurationError
		if errors.As(err, &confErr) {
			return echo.NewHTTPError(http.StatusFailedDependency, confErr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.Cache != nil {
		if err := h.Cache.Put(ctx, rpt); err != nil {
			h.Logger.Printf("cache put: %v", err)
		}
	}
	if h.Store != nil {
		if err := h.Store.SaveReport(ctx, rpt); err != nil {
			h.Logger.Printf("save report %s: %v", rpt.ID, err)
		}
	}
	return c.JSON(http.StatusOK, rpt)
}
