package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/inflammation/inflammation/internal/config"
	"github.com/inflammation/inflammation/internal/domain/patient"
	"github.com/inflammation/inflammation/internal/domain/stats"
	"github.com/inflammation/inflammation/internal/platform/auth"
	"github.com/inflammation/inflammation/internal/platform/serializer"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

const sampleCSV = "0,1,2\n4,4,0\n"

func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_SIGNING_KEY", "")
	t.Setenv("DEFAULT_FORMAT", "json")
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inflammation.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testEnv(t)
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// ---------------------------------------------------------------------------
// view commands
// ---------------------------------------------------------------------------

func TestVisualise(t *testing.T) {
	out, err := run(t, "visualise", writeCSV(t))
	if err != nil {
		t.Fatalf("visualise: %v", err)
	}
	for _, label := range []string{"average", "max", "min"} {
		if !strings.Contains(out, label+"\n") {
			t.Errorf("output missing %s chart:\n%s", label, out)
		}
	}
}

func TestVisualise_MissingFile(t *testing.T) {
	if _, err := run(t, "visualise", filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRecord_FromCSV(t *testing.T) {
	out, err := run(t, "record", "--patient", "1", writeCSV(t))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	want := "UNKNOWN\n0 4\n1 4\n2 0\n"
	if out != want {
		t.Errorf("record output = %q, want %q", out, want)
	}
}

func TestRecord_OutOfRange(t *testing.T) {
	_, err := run(t, "record", "--patient", "5", writeCSV(t))
	if !errors.Is(err, patient.ErrIndexOutOfRange) {
		t.Errorf("error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestToJSONThenRecord(t *testing.T) {
	csvPath := writeCSV(t)
	jsonPath := filepath.Join(t.TempDir(), "patients.json")

	if _, err := run(t, "to-json", csvPath, "--json-path", jsonPath); err != nil {
		t.Fatalf("to-json: %v", err)
	}
	patients, err := serializer.LoadFrom(jsonPath)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if len(patients) != 2 || patients[0].Name != "patient000" || patients[1].Name != "patient001" {
		t.Fatalf("unexpected patients: %v", patients)
	}

	out, err := run(t, "record", "--patient", "1", "--json-path", jsonPath, csvPath)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.HasPrefix(out, "patient001\n0 4\n") {
		t.Errorf("record output = %q", out)
	}
}

func TestRecord_FromRecordsKeepsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "patients.json")
	doc := `[{"name":"Alice","observations":[{"day":0,"value":1}]},` +
		`{"name":"Alice","observations":[{"day":0,"value":7}]},` +
		`{"name":"Bob","observations":[]}]`
	if err := os.WriteFile(jsonPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	out, err := run(t, "record", "--patient", "1", "--json-path", jsonPath, writeCSV(t))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if out != "Alice\n0 7\n" {
		t.Errorf("record output = %q, want the second Alice", out)
	}

	_, err = run(t, "record", "--patient", "3", "--json-path", jsonPath, writeCSV(t))
	if !errors.Is(err, patient.ErrIndexOutOfRange) {
		t.Errorf("error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestToJSON_RejectsNonFiniteCells(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "nan.csv")
	if err := os.WriteFile(csvPath, []byte("1,nan,3\n0,0,0\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	jsonPath := filepath.Join(t.TempDir(), "patients.json")
	_, err := run(t, "to-json", csvPath, "--json-path", jsonPath)
	if !errors.Is(err, stats.ErrNonFinite) {
		t.Errorf("error = %v, want ErrNonFinite", err)
	}
	if _, statErr := os.Stat(jsonPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("no output file should be written, stat err = %v", statErr)
	}
}

func TestExport_Formats(t *testing.T) {
	csvPath := writeCSV(t)
	tbl, err := stats.LoadCSV(csvPath)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	want := tbl.Patients()

	tests := []struct {
		name string
		out  string
		args []string
	}{
		{"csv by extension", "out.csv", nil},
		{"yaml by extension", "out.yml", nil},
		{"xlsx by extension", "out.xlsx", nil},
		{"sqlite by extension", "out.db", nil},
		{"explicit format", "out.json", []string{"--format", "json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), tt.out)
			args := append([]string{"export", csvPath, "--out", dest}, tt.args...)
			if _, err := run(t, args...); err != nil {
				t.Fatalf("export: %v", err)
			}
			got, err := serializer.LoadFrom(dest)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !patient.EqualPatients(got, want) {
				t.Errorf("exported %v, want %v", got, want)
			}
		})
	}
}

func TestExport_DefaultFormat(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "records.out")
	if _, err := run(t, "export", writeCSV(t), "--out", dest); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		t.Errorf("expected DEFAULT_FORMAT json, got %s", data)
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	_, err := run(t, "export", writeCSV(t), "--out", dest, "--format", "toml")
	if !errors.Is(err, serializer.ErrUnknownFormat) {
		t.Errorf("error = %v, want ErrUnknownFormat", err)
	}
}

func TestNormalise(t *testing.T) {
	out, err := run(t, "normalise", writeCSV(t))
	if err != nil {
		t.Fatalf("normalise: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %q", out)
	}
	if got := strings.Join(strings.Fields(lines[0]), " "); got != "patient000 0.000 0.500 1.000" {
		t.Errorf("row 0 = %q", got)
	}
	if got := strings.Join(strings.Fields(lines[1]), " "); got != "patient001 1.000 1.000 0.000" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestStoreCommands_RequireDatabase(t *testing.T) {
	records := filepath.Join(t.TempDir(), "patients.json")
	if _, err := run(t, "to-json", writeCSV(t), "--json-path", records); err != nil {
		t.Fatalf("to-json: %v", err)
	}
	if _, err := run(t, "import", "--records", records); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("import error = %v, want DATABASE_URL error", err)
	}
	if _, err := run(t, "migrate", "up"); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("migrate up error = %v, want DATABASE_URL error", err)
	}
	if _, err := run(t, "migrate", "status", "--schema", "bad-name"); err == nil {
		t.Error("expected invalid schema error")
	}
}

func TestInvalidConfig(t *testing.T) {
	testEnv(t)
	t.Setenv("DEFAULT_FORMAT", "toml")
	root := newRootCmd()
	root.SetArgs([]string{"visualise", writeCSV(t)})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Fatal("expected config validation error")
	}
}

// ---------------------------------------------------------------------------
// server wiring
// ---------------------------------------------------------------------------

func newTestApp(t *testing.T, signingKey string) *app {
	t.Helper()
	testEnv(t)
	t.Setenv("AUTH_SIGNING_KEY", signingKey)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return &app{cfg: cfg, logger: zerolog.Nop()}
}

func testDeps(t *testing.T) serverDeps {
	t.Helper()
	tbl, err := stats.LoadCSV(writeCSV(t))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return serverDeps{table: tbl, patients: patient.NewMemoryRepo(tbl.Patients()...)}
}

func serve(t *testing.T, a *app, deps serverDeps, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.newServer(deps).ServeHTTP(rec, req)
	return rec
}

func TestServer_DevMode(t *testing.T) {
	a := newTestApp(t, "")
	deps := testDeps(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/stats/daily", "", http.StatusOK},
		{http.MethodGet, "/api/v1/stats/normalised", "", http.StatusOK},
		{http.MethodGet, "/api/v1/patients", "", http.StatusOK},
		{http.MethodGet, "/api/v1/patients/patient001", "", http.StatusOK},
		{http.MethodGet, "/api/v1/patients/export?format=csv", "", http.StatusOK},
		{http.MethodPost, "/api/v1/patients", `{"name":"Alice"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/patients/patient000/observations", `{"value":3}`, http.StatusCreated},
		{http.MethodGet, "/health/db", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			rec := serve(t, a, deps, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
		})
	}
}

func TestServer_ExportCSV(t *testing.T) {
	a := newTestApp(t, "")
	rec := serve(t, a, testDeps(t), httptest.NewRequest(http.MethodGet, "/api/v1/patients/export?format=csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "name,day,observation\npatient000,0,0\n") {
		t.Errorf("unexpected CSV export:\n%s", rec.Body.String())
	}
}

func TestServer_JWT(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	a := newTestApp(t, key)
	deps := testDeps(t)

	token := func(roles ...string) string {
		claims := auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Roles: roles,
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return "Bearer " + s
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/daily", nil)
	if rec := serve(t, a, deps, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats/daily", nil)
	req.Header.Set("Authorization", token(auth.RoleViewer))
	if rec := serve(t, a, deps, req); rec.Code != http.StatusOK {
		t.Errorf("viewer read: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token(auth.RoleViewer))
	if rec := serve(t, a, deps, req); rec.Code != http.StatusForbidden {
		t.Errorf("viewer write: expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token(auth.RoleClinician))
	if rec := serve(t, a, deps, req); rec.Code != http.StatusCreated {
		t.Errorf("clinician write: expected 201, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	if rec := serve(t, a, deps, req); rec.Code != http.StatusOK {
		t.Errorf("health without token: expected 200, got %d", rec.Code)
	}
}

func TestOpenStores_Memory(t *testing.T) {
	a := newTestApp(t, "")
	csvPath := writeCSV(t)

	deps, cleanup, err := a.openStores(context.Background(), csvPath, "")
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	defer cleanup()
	if deps.pool != nil {
		t.Error("expected no database pool")
	}
	p, err := deps.patients.GetByName(context.Background(), "patient001")
	if err != nil {
		t.Fatalf("expected table rows to seed the store: %v", err)
	}
	if len(p.Observations) != 3 {
		t.Errorf("patient001 has %d observations, want 3", len(p.Observations))
	}
}
