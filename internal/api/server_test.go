package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/david/govmatch/internal/ai"
	"github.com/david/govmatch/internal/config"
	"github.com/david/govmatch/internal/db"
	"github.com/david/govmatch/internal/ingest"
	"github.com/david/govmatch/internal/models"
	"github.com/david/govmatch/internal/search"
)

const testSecret = "s3cret"

const laCountyExport = "Bid Number,Bid Title,Bid Description,Department,Bid Close Date,Commodity Code\n" +
	"BID-1,Mental Health Outreach,Community outreach program,Health Services,12/31/2030 5:00 PM,=\"624190\"\n" +
	"BID-2,,Row without a title,Public Works,01/15/2031,\n"

type stubCapability struct {
	result *ai.CapabilityResult
	err    error
}

func (s stubCapability) Invoke(context.Context, string, bool) (*ai.CapabilityResult, error) {
	return s.result, s.err
}

func newTestServer(t *testing.T, capability ai.SearchCapability) (*Server, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	registry, err := ingest.LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	importer := ingest.NewImporter(store, registry)
	svc := search.NewService(store, capability)

	srv, err := NewServer(config.ServerConfig{AdminSecret: testSecret, MaxImportBytes: 1 << 20}, store, importer, svc, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, contentType, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if admin {
		req.Header.Set("X-Admin-Secret", testSecret)
	}
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	return rec
}

func TestImportThenSearch(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/import/la_county", "text/csv", laCountyExport, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res ingest.ImportResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Source != "la_county" || res.RowsDropped != 1 {
		t.Errorf("unexpected import result %+v", res)
	}

	body := `{"query":"mental health","profile":{"naicsCodes":[{"code":"624190"}]}}`
	rec = do(t, srv, http.MethodPost, "/api/v1/search", echo.MIMEApplicationJSON, body, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SearchMethod != search.MethodDatabase || resp.Count != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := resp.Opportunities[0]; got.MatchScore < 80 || got.MatchLevel != models.MatchHigh {
		t.Errorf("unexpected match %+v", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/opportunities/"+resp.Opportunities[0].ID, "", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("get opportunity status = %d", rec.Code)
	}
}

func TestImport_JSONPayload(t *testing.T) {
	srv, store := newTestServer(t, nil)

	payload, _ := json.Marshal(map[string]string{"payload": laCountyExport})
	rec := do(t, srv, http.MethodPost, "/api/v1/import/la_county", echo.MIMEApplicationJSON, string(payload), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	runs, _ := store.ListRuns(context.Background(), "la_county", 10)
	if len(runs) != 1 || runs[0].Status != models.RunCompleted {
		t.Errorf("expected one completed run, got %+v", runs)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/import/runs?source=la_county", "", "", true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("runs endpoint: %d %s", rec.Code, rec.Body.String())
	}
}

func TestImport_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		admin       bool
		want        int
	}{
		{"no admin secret", "/api/v1/import/la_county", "text/csv", laCountyExport, false, http.StatusUnauthorized},
		{"empty payload", "/api/v1/import/la_county", "text/csv", "", true, http.StatusBadRequest},
		{"bad json", "/api/v1/import/la_county", echo.MIMEApplicationJSON, "{", true, http.StatusBadRequest},
		{"no usable rows", "/api/v1/import/la_county", "text/csv", "Foo,Bar\n1,2\n", true, http.StatusBadRequest},
		{"fetch unknown source", "/api/v1/import/nowhere/fetch", "", "", true, http.StatusNotFound},
		{"payload too large", "/api/v1/import/la_county", "text/csv", "Bid Title\n" + strings.Repeat("x", 2<<20), true, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, tt.contentType, tt.body, tt.admin)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSearch_StatusCodes(t *testing.T) {
	srv, _ := newTestServer(t, stubCapability{result: &ai.CapabilityResult{
		StructuredItems: []ai.WebItem{{Title: "RFP: Drone Bridge Inspection Services", URL: "https://dot.example.gov/77"}},
	}})

	rec := do(t, srv, http.MethodPost, "/api/v1/search", echo.MIMEApplicationJSON, `{"query":"drone inspection services"}`, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"searchMethod":"web"`) {
		t.Errorf("web fallback: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/search", echo.MIMEApplicationJSON, `{"query":""}`, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank query status = %d", rec.Code)
	}

	failing, _ := newTestServer(t, stubCapability{err: errors.New("upstream 503")})
	rec = do(t, failing, http.MethodPost, "/api/v1/search", echo.MIMEApplicationJSON, `{"query":"drones"}`, false)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("capability failure status = %d", rec.Code)
	}
}

func TestGetOpportunity_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := do(t, srv, http.MethodGet, "/api/v1/opportunities/not-a-uuid", "", "", false); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/opportunities/8a6e0804-2bd0-4672-b79d-d97027f9071a", "", "", false); rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d", rec.Code)
	}
}

func TestSourcesAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/api/v1/import/adhoc_city", "text/csv", "Title,ID\nSidewalk repair bid,7\n", true)

	rec := do(t, srv, http.MethodGet, "/api/v1/sources", "", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sources []sourceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &sources); err != nil {
		t.Fatal(err)
	}
	found := map[string]sourceInfo{}
	for _, s := range sources {
		found[s.ID] = s
	}
	if s, ok := found["la_county"]; !ok || !s.Registered {
		t.Errorf("registry source missing: %+v", sources)
	}
	if s, ok := found["adhoc_city"]; !ok || s.Registered || s.Active != 1 || s.Kind != models.KindOther {
		t.Errorf("unregistered imported source missing: %+v", s)
	}

	if rec := do(t, srv, http.MethodGet, "/health", "", "", false); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestAdminBearerToken(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/import/runs", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
