package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/inflammation/inflammation/internal/platform/auth"
	"github.com/inflammation/inflammation/internal/platform/validate"
	"github.com/inflammation/inflammation/pkg/pagination"
)

// jsonCodec is a minimal codec so handler tests do not depend on the
// serializer package.
type jsonCodec struct{}

func (jsonCodec) Encode(w io.Writer, patients []*Patient) error {
	return json.NewEncoder(w).Encode(patients)
}

func (jsonCodec) Decode(r io.Reader) ([]*Patient, error) {
	var out []*Patient
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (jsonCodec) ContentType() string { return echo.MIMEApplicationJSON }

func testCodecs(format string) (Codec, error) {
	if format != "json" {
		return nil, fmt.Errorf("unknown format: %q", format)
	}
	return jsonCodec{}, nil
}

func newTestHandler(seed ...*Patient) (*Handler, *echo.Echo) {
	h := NewHandler(newTestService(seed...), testCodecs, "json")
	e := echo.New()
	e.Validator = validate.New()
	return h, e
}

func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

// ── Create ──

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()
	body := `{"name":"Alice","observations":[{"value":3},{"value":4},{"day":7,"value":5}]}`
	c, rec := newContext(e, http.MethodPost, "/api/v1/patients", body)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := NewPatient("Alice",
		Observation{Day: 0, Value: 3},
		Observation{Day: 1, Value: 4},
		Observation{Day: 7, Value: 5},
	)
	if !got.Equal(want) {
		t.Errorf("created %+v, want %+v", got, want)
	}
}

func TestHandler_CreatePatient_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"observations":[]}`},
		{"negative value", `{"name":"Alice","observations":[{"value":-1}]}`},
		{"missing value", `{"name":"Alice","observations":[{"day":1}]}`},
		{"negative day", `{"name":"Alice","observations":[{"day":-1,"value":1}]}`},
		{"not json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler()
			c, _ := newContext(e, http.MethodPost, "/api/v1/patients", tt.body)
			expectHTTPError(t, h.CreatePatient(c), http.StatusBadRequest)
		})
	}
}

func TestHandler_CreatePatient_Conflict(t *testing.T) {
	h, e := newTestHandler(NewPatient("Alice"))
	c, _ := newContext(e, http.MethodPost, "/api/v1/patients", `{"name":"Alice"}`)
	expectHTTPError(t, h.CreatePatient(c), http.StatusConflict)
}

// ── Read ──

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler(NewPatient("Alice", Observation{Day: 0, Value: 1.5}))
	c, rec := newContext(e, http.MethodGet, "/", "")
	c.SetParamNames("name")
	c.SetParamValues("Alice")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	want := `{"name":"Alice","observations":[{"day":0,"value":1.5}]}`
	if strings.TrimSpace(rec.Body.String()) != want {
		t.Errorf("body = %s, want %s", rec.Body.String(), want)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c, _ := newContext(e, http.MethodGet, "/", "")
	c.SetParamNames("name")
	c.SetParamValues("Nobody")
	expectHTTPError(t, h.GetPatient(c), http.StatusNotFound)
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler(NewPatient("A"), NewPatient("B"), NewPatient("C"))
	c, rec := newContext(e, http.MethodGet, "/api/v1/patients?limit=2&offset=1", "")

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data    []Patient         `json:"data"`
		Total   int               `json:"total"`
		HasMore bool              `json:"has_more"`
		Links   []pagination.Link `json:"links"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || resp.Data[0].Name != "B" {
		t.Errorf("unexpected page: %+v", resp)
	}
	if resp.HasMore {
		t.Error("offset 1 + limit 2 covers all 3 patients")
	}
	if len(resp.Links) == 0 {
		t.Error("expected navigation links")
	}
}

// ── Observations ──

func TestHandler_RecordObservation(t *testing.T) {
	h, e := newTestHandler(NewPatient("Alice", Observation{Day: 0, Value: 1}))
	c, rec := newContext(e, http.MethodPost, "/", `{"value":2.5}`)
	c.SetParamNames("name")
	c.SetParamValues("Alice")

	if err := h.RecordObservation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var obs Observation
	_ = json.Unmarshal(rec.Body.Bytes(), &obs)
	if !obs.Equal(Observation{Day: 1, Value: 2.5}) {
		t.Errorf("recorded %+v", obs)
	}
}

func TestHandler_RecordObservation_Errors(t *testing.T) {
	tests := []struct {
		name    string
		patient string
		body    string
		code    int
	}{
		{"unknown patient", "Nobody", `{"value":1}`, http.StatusNotFound},
		{"missing value", "Alice", `{"day":2}`, http.StatusBadRequest},
		{"negative value", "Alice", `{"value":-2}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler(NewPatient("Alice"))
			c, _ := newContext(e, http.MethodPost, "/", tt.body)
			c.SetParamNames("name")
			c.SetParamValues(tt.patient)
			expectHTTPError(t, h.RecordObservation(c), tt.code)
		})
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	h, e := newTestHandler(NewPatient("Alice"))
	c, rec := newContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("name")
	c.SetParamValues("Alice")
	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := h.svc.GetPatient(context.Background(), "Alice"); err == nil {
		t.Error("expected Alice to be deleted")
	}
}

// ── Export / Import ──

func TestHandler_ExportPatients(t *testing.T) {
	h, e := newTestHandler(NewPatient("Alice", Observation{Day: 0, Value: 1}))
	c, rec := newContext(e, http.MethodGet, "/api/v1/patients/export?format=json", "")

	if err := h.ExportPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "patients.json") {
		t.Errorf("content disposition = %q", cd)
	}
	got, err := jsonCodec{}.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Alice" {
		t.Errorf("exported %v", got)
	}
}

func TestHandler_ExportPatients_UnknownFormat(t *testing.T) {
	h, e := newTestHandler()
	c, _ := newContext(e, http.MethodGet, "/api/v1/patients/export?format=toml", "")
	expectHTTPError(t, h.ExportPatients(c), http.StatusBadRequest)
}

func TestHandler_ImportPatients(t *testing.T) {
	h, e := newTestHandler(NewPatient("Alice"))
	body := `[{"name":"Alice","observations":[]},{"name":"Bob","observations":[{"day":0,"value":2}]}]`
	c, rec := newContext(e, http.MethodPost, "/api/v1/patients/import", body)

	if err := h.ImportPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res ImportResult
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Imported != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestHandler_ImportPatients_Malformed(t *testing.T) {
	h, e := newTestHandler()
	c, _ := newContext(e, http.MethodPost, "/api/v1/patients/import?format=json", `{"oops"`)
	expectHTTPError(t, h.ImportPatients(c), http.StatusBadRequest)
}

// ── Routing ──

func TestHandler_RegisterRoutes_WriteRequiresClinician(t *testing.T) {
	h, e := newTestHandler()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.UserRolesKey, []string{auth.RoleViewer})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(`{"name":"Alice"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer POST: expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("viewer GET: expected 200, got %d", rec.Code)
	}
}
