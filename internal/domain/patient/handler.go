package patient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inflammation/inflammation/internal/platform/auth"
	"github.com/inflammation/inflammation/internal/platform/metrics"
	"github.com/inflammation/inflammation/pkg/pagination"
)

// Codec streams whole patient documents in one encoding.
type Codec interface {
	Encode(w io.Writer, patients []*Patient) error
	Decode(r io.Reader) ([]*Patient, error)
	ContentType() string
}

// CodecLookup resolves a format name such as "csv" to its codec.
type CodecLookup func(format string) (Codec, error)

type Handler struct {
	svc           *Service
	codecs        CodecLookup
	defaultFormat string
}

func NewHandler(svc *Service, codecs CodecLookup, defaultFormat string) *Handler {
	return &Handler{svc: svc, codecs: codecs, defaultFormat: defaultFormat}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/patients")
	read.GET("", h.ListPatients)
	read.GET("/export", h.ExportPatients)
	read.GET("/:name", h.GetPatient)

	write := api.Group("/patients", auth.RequireRole(auth.RoleClinician))
	write.POST("", h.CreatePatient)
	write.POST("/import", h.ImportPatients)
	write.POST("/:name/observations", h.RecordObservation)
	write.DELETE("/:name", h.DeletePatient)
}

type ObservationRequest struct {
	Day   *int     `json:"day" validate:"omitempty,min=0"`
	Value *float64 `json:"value" validate:"required,gte=0"`
}

type CreatePatientRequest struct {
	Name         string               `json:"name" validate:"required,max=200"`
	Observations []ObservationRequest `json:"observations" validate:"omitempty,dive"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// Missing days follow the previous observation.
	draft := NewPatient(req.Name)
	for _, o := range req.Observations {
		if o.Day == nil {
			draft.AddObservation(*o.Value)
		} else {
			draft.AddObservationOnDay(*o.Value, *o.Day)
		}
	}

	p, err := h.svc.CreatePatient(c.Request().Context(), req.Name, draft.Observations...)
	if err != nil {
		return httpError(err)
	}
	h.refreshCount(c)
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("name"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL.Path))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.DeletePatient(c.Request().Context(), c.Param("name")); err != nil {
		return httpError(err)
	}
	h.refreshCount(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordObservation(c echo.Context) error {
	var req ObservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	obs, err := h.svc.RecordObservation(c.Request().Context(), c.Param("name"), *req.Value, req.Day)
	if err != nil {
		return httpError(err)
	}
	metrics.ObservationRecorded()
	return c.JSON(http.StatusCreated, obs)
}

// ExportPatients returns every stored patient as a single document in the
// format named by ?format=.
func (h *Handler) ExportPatients(c echo.Context) error {
	format, codec, err := h.codec(c)
	if err != nil {
		return err
	}
	all, err := h.svc.AllPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, all); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode patients")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="patients.%s"`, format))
	return c.Blob(http.StatusOK, codec.ContentType(), buf.Bytes())
}

// ImportPatients stores the patients of the request body, decoded in the
// format named by ?format=. Names already present are skipped.
func (h *Handler) ImportPatients(c echo.Context) error {
	_, codec, err := h.codec(c)
	if err != nil {
		return err
	}
	patients, err := codec.Decode(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ImportPatients(c.Request().Context(), patients)
	if err != nil {
		return httpError(err)
	}
	h.refreshCount(c)
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) codec(c echo.Context) (string, Codec, error) {
	format := c.QueryParam("format")
	if format == "" {
		format = h.defaultFormat
	}
	codec, err := h.codecs(format)
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return format, codec, nil
}

func (h *Handler) refreshCount(c echo.Context) {
	if _, total, err := h.svc.ListPatients(c.Request().Context(), 1, 0); err == nil {
		metrics.SetPatients(total)
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicatePatient):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
