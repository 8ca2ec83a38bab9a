package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockStore, *mockSubmitter, *echo.Echo) {
	store := newMockStore()
	sub := newMockSubmitter()
	h := NewHandler(NewService(store, sub))
	e := echo.New()
	return h, store, sub, e
}

func testContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("owner", "test-user")
	return c, rec
}

func TestHandler_CreateDraft(t *testing.T) {
	h, _, _, e := newTestHandler()

	c, rec := testContext(e, http.MethodPost, "/api/v1/drafts", "")
	if err := h.CreateDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var d ReportDraft
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.ID == uuid.Nil {
		t.Error("expected draft id in response")
	}
	if d.CurrentStep != FirstStep {
		t.Errorf("expected step %d, got %d", FirstStep, d.CurrentStep)
	}
	if d.Owner != "test-user" {
		t.Errorf("owner = %q", d.Owner)
	}
}

func TestHandler_GetCurrent_NoDraft(t *testing.T) {
	h, _, _, e := newTestHandler()

	c, _ := testContext(e, http.MethodGet, "/api/v1/drafts/current", "")
	err := h.GetCurrent(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_GetDraft(t *testing.T) {
	h, store, _, e := newTestHandler()
	d, _ := store.Create(context.Background(), "test-user")

	c, rec := testContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.GetDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDraft_BadID(t *testing.T) {
	h, _, _, e := newTestHandler()

	c, _ := testContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	err := h.GetDraft(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetDraft_Unknown(t *testing.T) {
	h, _, _, e := newTestHandler()

	c, _ := testContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	err := h.GetDraft(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListDrafts(t *testing.T) {
	h, store, _, e := newTestHandler()
	for i := 0; i < 3; i++ {
		store.Create(context.Background(), "test-user")
	}
	store.Create(context.Background(), "other-user")

	c, rec := testContext(e, http.MethodGet, "/api/v1/drafts?limit=2", "")
	if err := h.ListDrafts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Data) != 2 {
		t.Errorf("page size = %d, want 2", len(resp.Data))
	}
}

func TestHandler_SaveDraft(t *testing.T) {
	h, store, _, e := newTestHandler()
	store.Create(context.Background(), "test-user")

	body := `{"record":{"vorname":"Max","verletzung_hand":false},"step":2}`
	c, rec := testContext(e, http.MethodPut, "/api/v1/drafts/current", body)
	if err := h.SaveDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var d ReportDraft
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Record.Vorname == nil || *d.Record.Vorname != "Max" {
		t.Error("patch not applied")
	}
	if d.Record.Handverletzung == nil || *d.Record.Handverletzung {
		t.Error("explicit false lost on the wire")
	}
	if d.CurrentStep != 2 {
		t.Errorf("step = %d, want 2", d.CurrentStep)
	}
}

func TestHandler_AdvanceDraft_ValidationErrors(t *testing.T) {
	h, store, _, e := newTestHandler()
	store.Create(context.Background(), "test-user")

	c, rec := testContext(e, http.MethodPost, "/api/v1/drafts/current/advance", "")
	if err := h.AdvanceDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	var resp validationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Step != FirstStep {
		t.Errorf("step = %d, want %d", resp.Step, FirstStep)
	}
	if _, ok := resp.Errors["vorname"]; !ok {
		t.Errorf("expected vorname error, got %v", resp.Errors)
	}
}

func TestHandler_ValidateDraft(t *testing.T) {
	h, store, _, e := newTestHandler()
	store.Create(context.Background(), "test-user")

	c, rec := testContext(e, http.MethodPost, "/api/v1/drafts/current/validate", "")
	if err := h.ValidateDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Validation reporting itself is not an error response.
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp validationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Valid {
		t.Error("empty step 1 must not be valid")
	}
}

func TestHandler_FinishDraft(t *testing.T) {
	h, store, sub, e := newTestHandler()
	finishableDraft(t, store, "test-user")

	c, rec := testContext(e, http.MethodPost, "/api/v1/drafts/current/finish", "")
	if err := h.FinishDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var res FinishResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.ReportID != 202 {
		t.Errorf("report id = %d", res.ReportID)
	}
	if len(sub.finalized) != 1 {
		t.Errorf("finalized = %v", sub.finalized)
	}
}

func TestHandler_FinishDraft_Gated(t *testing.T) {
	h, store, _, e := newTestHandler()
	d := finishableDraft(t, store, "test-user")
	d.Record.DatenschutzhinweisErteilt = nil
	store.Update(context.Background(), "test-user", d)

	c, rec := testContext(e, http.MethodPost, "/api/v1/drafts/current/finish", "")
	if err := h.FinishDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestHandler_FinishDraft_BeforeFinalStep(t *testing.T) {
	h, store, _, e := newTestHandler()
	store.Create(context.Background(), "test-user")

	c, _ := testContext(e, http.MethodPost, "/api/v1/drafts/current/finish", "")
	err := h.FinishDraft(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409 for a draft still on step 1, got %v", err)
	}
}

// TestHandler_WizardWalkthrough drives one draft through all five steps the
// way a client would: save the step's fields, advance, repeat, finish.
func TestHandler_WizardWalkthrough(t *testing.T) {
	h, _, sub, e := newTestHandler()

	c, rec := testContext(e, http.MethodPost, "/api/v1/drafts", "")
	if err := h.CreateDraft(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	steps := []string{
		`{"record":{"lfd_nr":"2024-0042","vorname":"Max","nachname":"Mustermann",
			"geburtsdatum":"1985-04-12","geschlecht":"m","telefon":"030 1234567",
			"strasse":"Musterstr. 1","plz":"10115","ort":"Berlin",
			"staatsangehoerigkeit":"deutsch","beschaeftigt_als":"Schlosser",
			"beschaeftigt_seit":"2019-01-01"}}`,
		`{"record":{"unfall_datum":"2024-11-05","unfall_uhrzeit":"09:30",
			"unfall_ort":"Werkhalle 3","unfallhergang":"Sturz von der Leiter",
			"behandelnder_arzt":"Dr. Weber"}}`,
		`{"record":{"befund":"Prellung linker Unterarm","diagnose_icd":"S50.1",
			"verletzung_hand":false,"polytrauma":false}}`,
		`{"record":{"behandlungsart":"allgemein","weiterbehandlung_durch":"selbst",
			"arbeitsfaehig":true,"nachschau_mitgeteilt":true}}`,
		`{"record":{"datenschutzhinweis_erteilt":true}}`,
	}

	for i, body := range steps {
		c, rec = testContext(e, http.MethodPut, "/api/v1/drafts/current", body)
		if err := h.SaveDraft(c); err != nil {
			t.Fatalf("save step %d: %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("save step %d status = %d: %s", i+1, rec.Code, rec.Body.String())
		}

		if i == len(steps)-1 {
			break
		}
		c, rec = testContext(e, http.MethodPost, "/api/v1/drafts/current/advance", "")
		if err := h.AdvanceDraft(c); err != nil {
			t.Fatalf("advance step %d: %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("advance step %d status = %d: %s", i+1, rec.Code, rec.Body.String())
		}
		var d ReportDraft
		json.Unmarshal(rec.Body.Bytes(), &d)
		if d.CurrentStep != i+2 {
			t.Fatalf("after advancing step %d: step = %d", i+1, d.CurrentStep)
		}
	}

	c, rec = testContext(e, http.MethodPost, "/api/v1/drafts/current/finish", "")
	if err := h.FinishDraft(c); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", rec.Code, rec.Body.String())
	}

	var res FinishResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.PatientID == 0 || res.ReportID == 0 {
		t.Errorf("expected backend ids, got %+v", res)
	}
	if res.Warning != "" {
		t.Errorf("unexpected warning %q", res.Warning)
	}
	if len(sub.finalized) != 1 {
		t.Errorf("finalized = %v", sub.finalized)
	}

	// The submitted draft is gone; there is no current draft anymore.
	c, _ = testContext(e, http.MethodGet, "/api/v1/drafts/current", "")
	err := h.GetCurrent(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 after finish, got %v", err)
	}
}

func TestHandler_DeleteDraft(t *testing.T) {
	h, store, _, e := newTestHandler()
	d, _ := store.Create(context.Background(), "test-user")

	c, rec := testContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.DeleteDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_SelectDraft(t *testing.T) {
	h, store, _, e := newTestHandler()
	first, _ := store.Create(context.Background(), "test-user")
	store.Create(context.Background(), "test-user")

	c, rec := testContext(e, http.MethodPost, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(first.ID.String())
	if err := h.SelectDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var d ReportDraft
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.ID != first.ID {
		t.Error("expected the selected draft in the response")
	}
}
