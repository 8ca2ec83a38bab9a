package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dabform/dabform/internal/domain/draft"
	"github.com/dabform/dabform/internal/platform/auth"
)

func strp(s string) *string { return &s }
func i64p(n int64) *int64   { return &n }

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

// backendStub records every request and answers with canned ids.
func backendStub(t *testing.T) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var calls []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}
		calls = append(calls, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/patients":
			json.NewEncoder(w).Encode(map[string]int64{"id": 11})
		case r.Method == http.MethodPost && r.URL.Path == "/reports":
			json.NewEncoder(w).Encode(map[string]int64{"id": 22})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testRecord() *draft.ReportRecord {
	return &draft.ReportRecord{
		Vorname:       strp("Max"),
		Nachname:      strp("Mustermann"),
		UnfallDatum:   strp("2025-06-01"),
		DiagnoseICD10: strp("S62.0"),
	}
}

func TestEnsurePatientCreates(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	id, err := m.EnsurePatient(context.Background(), testRecord(), nil)
	if err != nil {
		t.Fatalf("ensure patient: %v", err)
	}
	if id != 11 {
		t.Errorf("id = %d, want 11", id)
	}
	got := (*calls)[0]
	if got.method != http.MethodPost || got.path != "/patients" {
		t.Errorf("expected POST /patients, got %s %s", got.method, got.path)
	}
	if got.body["vorname"] != "Max" || got.body["nachname"] != "Mustermann" {
		t.Errorf("patient payload = %v", got.body)
	}
}

func TestEnsurePatientUpdatesExisting(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	id, err := m.EnsurePatient(context.Background(), testRecord(), i64p(42))
	if err != nil {
		t.Fatalf("ensure patient: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want the existing 42", id)
	}
	got := (*calls)[0]
	if got.method != http.MethodPut || got.path != "/patients/42" {
		t.Errorf("expected PUT /patients/42, got %s %s", got.method, got.path)
	}
}

func TestEnsurePatientUsesLinkedPatient(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	rec := testRecord()
	rec.PatientID = i64p(55)

	id, err := m.EnsurePatient(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("ensure patient: %v", err)
	}
	if id != 55 {
		t.Errorf("id = %d, want the linked 55", id)
	}
	got := (*calls)[0]
	if got.method != http.MethodPut || got.path != "/patients/55" {
		t.Errorf("expected PUT /patients/55, got %s %s", got.method, got.path)
	}
}

func TestEnsurePatientPrefersPersistedID(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	rec := testRecord()
	rec.PatientID = i64p(55)

	// An id persisted by an earlier submission attempt wins over the link.
	id, err := m.EnsurePatient(context.Background(), rec, i64p(42))
	if err != nil {
		t.Fatalf("ensure patient: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
	got := (*calls)[0]
	if got.path != "/patients/42" {
		t.Errorf("expected PUT /patients/42, got %s", got.path)
	}
}

func TestEnsureReportCreatesWithPatientID(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	id, err := m.EnsureReport(context.Background(), testRecord(), 11, nil)
	if err != nil {
		t.Fatalf("ensure report: %v", err)
	}
	if id != 22 {
		t.Errorf("id = %d, want 22", id)
	}
	got := (*calls)[0]
	if got.path != "/reports" {
		t.Errorf("path = %s", got.path)
	}
	if got.body["patient_id"] != float64(11) {
		t.Errorf("patient_id = %v", got.body["patient_id"])
	}
	if got.body["unfall_datum"] != "2025-06-01" {
		t.Errorf("report payload = %v", got.body)
	}
}

func TestEnsureReportUpdatesExisting(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	id, err := m.EnsureReport(context.Background(), testRecord(), 11, i64p(77))
	if err != nil {
		t.Fatalf("ensure report: %v", err)
	}
	if id != 77 {
		t.Errorf("id = %d, want the existing 77", id)
	}
	got := (*calls)[0]
	if got.method != http.MethodPut || got.path != "/reports/77" {
		t.Errorf("expected PUT /reports/77, got %s %s", got.method, got.path)
	}
}

func TestFinalizeAndDocumentEndpoints(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))
	ctx := context.Background()

	if err := m.FinalizeReport(ctx, 22); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := m.GenerateDocument(ctx, 22); err != nil {
		t.Fatalf("generate document: %v", err)
	}

	if (*calls)[0].path != "/reports/22/finalize" {
		t.Errorf("finalize path = %s", (*calls)[0].path)
	}
	if (*calls)[1].path != "/reports/22/document" {
		t.Errorf("document path = %s", (*calls)[1].path)
	}
}

func TestClientForwardsBearerToken(t *testing.T) {
	srv, calls := backendStub(t)
	m := NewMapper(NewClient(srv.URL, time.Second))

	ctx := auth.ContextWithToken(context.Background(), "caller-token")
	if _, err := m.EnsurePatient(ctx, testRecord(), nil); err != nil {
		t.Fatalf("ensure patient: %v", err)
	}
	if got := (*calls)[0].auth; got != "Bearer caller-token" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestClientSurfacesBackendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"patient invalid"}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	m := NewMapper(NewClient(srv.URL, time.Second))

	_, err := m.EnsurePatient(context.Background(), testRecord(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "patient invalid") {
		t.Errorf("error = %v", err)
	}
}

func TestMapPatientOmitsUnsetFields(t *testing.T) {
	b, err := json.Marshal(mapPatient(&draft.ReportRecord{Vorname: strp("Max")}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	json.Unmarshal(b, &m)
	if len(m) != 1 {
		t.Errorf("expected only vorname on the wire, got %v", m)
	}
}
