package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/service"
)

func TestFlowHandlers(t *testing.T) {
	flow := &mockFlow{
		form: service.FlowResult{Type: service.FlowResultForm, StepID: service.FlowStepUser},
		result: service.FlowResult{
			Type:  service.FlowResultCreateEntry,
			Title: "user@example.com",
			Entry: &models.ConfigEntry{ID: "e1", Email: "user@example.com", Password: "secret"},
		},
	}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Flow: flow}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodGet, "/api/v1/flows/user", "")
	if w.Code != http.StatusOK {
		t.Fatalf("form status=%d, body=%s", w.Code, w.Body.String())
	}
	var form service.FlowResult
	_ = json.Unmarshal(w.Body.Bytes(), &form)
	if form.Type != service.FlowResultForm || form.StepID != service.FlowStepUser {
		t.Fatalf("unexpected form: %+v", form)
	}

	w = doAuthed(r, http.MethodPost, "/api/v1/flows/user", `{"email":"user@example.com","password":"secret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status=%d, body=%s", w.Code, w.Body.String())
	}
	if flow.lastInput["email"] != "user@example.com" || flow.lastInput["password"] != "secret" {
		t.Fatalf("unexpected input: %v", flow.lastInput)
	}
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	entry, _ := raw["entry"].(map[string]any)
	if entry["id"] != "e1" {
		t.Fatalf("entry missing: %v", raw)
	}
	if _, leaked := entry["password"]; leaked {
		t.Fatalf("password serialized: %v", entry)
	}

	flow.result = service.FlowResult{Type: service.FlowResultForm, Errors: map[string]string{"base": "no devices found in account"}}
	w = doAuthed(r, http.MethodPost, "/api/v1/flows/user", `{"email":"user@example.com","password":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("form-with-errors status=%d", w.Code)
	}

	w = doAuthed(r, http.MethodPost, "/api/v1/flows/user", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}

	flow.err = errors.New("db locked")
	w = doAuthed(r, http.MethodPost, "/api/v1/flows/user", `{"email":"a","password":"b"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on flow failure, got %d", w.Code)
	}
}
