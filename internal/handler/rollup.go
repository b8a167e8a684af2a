package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/radio-slot-reservation/internal/rollup"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// RollupService computes plan rollups.  *service.RollupService satisfies
// it.
type RollupService interface {
	Rollup(ctx context.Context, planTitle string, start, end time.Time) (*rollup.Result, error)
}

type RollupHandler struct {
	Svc RollupService
}

func NewRollupHandler(svc RollupService) *RollupHandler { return &RollupHandler{Svc: svc} }

type rollupQuery struct {
	Title string `query:"title" validate:"required"`
	Start string `query:"start" validate:"required,datetime=2006-01-02"`
	End   string `query:"end" validate:"required,datetime=2006-01-02"`
}

// Get handles GET /v1/plans/rollup?title=&start=&end=.  Responses are
// computed on every call.
func (h *RollupHandler) Get(c echo.Context) error {
	q := rollupQuery{
		Title: c.QueryParam("title"),
		Start: c.QueryParam("start"),
		End:   c.QueryParam("end"),
	}
	if err := c.Validate(&q); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}
	start, err := schedule.ParseDate(q.Start)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start"})
	}
	end, err := schedule.ParseDate(q.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end"})
	}
	res, err := h.Svc.Rollup(c.Request().Context(), q.Title, start, end)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, res)
}
