package stats

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inflammation/inflammation/pkg/pagination"
)

// Handler serves aggregates of the table loaded at startup.
type Handler struct {
	table *Table
}

func NewHandler(table *Table) *Handler {
	return &Handler{table: table}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/stats")
	g.GET("/daily", h.Daily)
	g.GET("/normalised", h.Normalised)
	g.GET("/patients", h.Patients)
}

// Daily returns the per-day mean, max and min.
func (h *Handler) Daily(c echo.Context) error {
	d, err := Summarise(h.table)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// Normalised returns every row scaled by its maximum, named patient000...
func (h *Handler) Normalised(c echo.Context) error {
	n, err := PatientNormalise(h.table)
	if err != nil {
		return httpError(err)
	}
	return h.named(c, n)
}

// Patients returns the raw rows, named patient000...
func (h *Handler) Patients(c echo.Context) error {
	return h.named(c, h.table)
}

func (h *Handler) named(c echo.Context, t *Table) error {
	if t == nil {
		return httpError(ErrInvalidTable)
	}
	rows, err := AttachNames(t, PatientNames(t.Rows()))
	if err != nil {
		return httpError(err)
	}

	pg := pagination.FromContext(c)
	start, end := pg.Bounds(len(rows))
	return c.JSON(http.StatusOK, pagination.NewResponse(rows[start:end], len(rows), pg).WithLinks(c.Request().URL.Path))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidTable):
		return echo.NewHTTPError(http.StatusNotFound, "no inflammation table loaded")
	case errors.Is(err, ErrNegativeValue):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
