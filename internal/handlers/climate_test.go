package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/service"

	"github.com/gin-gonic/gin"
)

func doAuthed(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newClimateRouter(cl *mockClimate) *gin.Engine {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Monitoring:    newMockMonitoring(cl),
	}
	return newTestRouter(s)
}

func heatingClimate() *mockClimate {
	return &mockClimate{state: models.ClimateState{
		EntityID:          "climate.atmeex_42",
		DeviceID:          42,
		Available:         true,
		HVACMode:          models.HVACModeHeat,
		TargetTemperature: 22,
		FanMode:           "3",
	}}
}

func TestClimateHandlers_ListAndGet(t *testing.T) {
	cl := heatingClimate()
	r := newClimateRouter(cl)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/climate", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	w = doAuthed(r, http.MethodGet, "/api/v1/climate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d, body=%s", w.Code, w.Body.String())
	}
	var list struct {
		Count    int                   `json:"count"`
		Climates []models.ClimateState `json:"climates"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 1 || list.Climates[0].EntityID != "climate.atmeex_42" {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = doAuthed(r, http.MethodGet, "/api/v1/climate/climate.atmeex_42", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d, body=%s", w.Code, w.Body.String())
	}
	var st models.ClimateState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.HVACMode != models.HVACModeHeat || st.TargetTemperature != 22 {
		t.Fatalf("unexpected state: %+v", st)
	}

	w = doAuthed(r, http.MethodGet, "/api/v1/climate/climate.atmeex_1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entity, got %d", w.Code)
	}
}

func TestClimateHandlers_Commands(t *testing.T) {
	cl := heatingClimate()
	r := newClimateRouter(cl)
	base := "/api/v1/climate/climate.atmeex_42"

	w := doAuthed(r, http.MethodPost, base+"/hvac_mode", `{"hvac_mode":"fan_only"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("hvac_mode status=%d, body=%s", w.Code, w.Body.String())
	}
	if cl.lastMode != models.HVACModeFanOnly {
		t.Fatalf("SetHVACMode got %q", cl.lastMode)
	}
	var resp struct {
		Status string              `json:"status"`
		State  models.ClimateState `json:"state"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != statusCommandSent || resp.State.EntityID != "climate.atmeex_42" {
		t.Fatalf("bad command response: %+v", resp)
	}

	w = doAuthed(r, http.MethodPost, base+"/fan_mode", `{"fan_mode":"5"}`)
	if w.Code != http.StatusOK || cl.lastFanMode != "5" {
		t.Fatalf("fan_mode status=%d lastFanMode=%q", w.Code, cl.lastFanMode)
	}

	w = doAuthed(r, http.MethodPost, base+"/temperature", `{"temperature":23.5}`)
	if w.Code != http.StatusOK || cl.lastTemperature == nil || *cl.lastTemperature != 23.5 {
		t.Fatalf("temperature status=%d last=%v", w.Code, cl.lastTemperature)
	}

	w = doAuthed(r, http.MethodPost, base+"/temperature", `{"temperature":null}`)
	if w.Code != http.StatusOK || cl.lastTemperature != nil {
		t.Fatalf("null temperature status=%d last=%v", w.Code, cl.lastTemperature)
	}

	for _, path := range []string{"/turn_on", "/turn_off"} {
		w = doAuthed(r, http.MethodPost, base+path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s status=%d, body=%s", path, w.Code, w.Body.String())
		}
	}
	want := []string{"set_hvac_mode", "set_fan_mode", "set_temperature", "set_temperature", "turn_on", "turn_off"}
	if len(cl.calls) != len(want) {
		t.Fatalf("calls=%v, want %v", cl.calls, want)
	}
	for i := range want {
		if cl.calls[i] != want[i] {
			t.Fatalf("calls=%v, want %v", cl.calls, want)
		}
	}
}

func TestClimateHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		path string
		body string
		want int
	}{
		{"unknown entity", nil, "/api/v1/climate/climate.atmeex_1/turn_on", "", http.StatusNotFound},
		{"missing body", nil, "/api/v1/climate/climate.atmeex_42/hvac_mode", "", http.StatusBadRequest},
		{"malformed body", nil, "/api/v1/climate/climate.atmeex_42/fan_mode", `{"fan_mode":`, http.StatusBadRequest},
		{"unrecognized mode", service.ErrUnrecognizedMode, "/api/v1/climate/climate.atmeex_42/hvac_mode", `{"hvac_mode":"cool"}`, http.StatusBadRequest},
		{"invalid fan mode", service.ErrInvalidFanMode, "/api/v1/climate/climate.atmeex_42/fan_mode", `{"fan_mode":"9"}`, http.StatusBadRequest},
		{"vendor failure", errors.New("atmeex api error 500: boom"), "/api/v1/climate/climate.atmeex_42/turn_off", "", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cl := heatingClimate()
			cl.err = tc.err
			r := newClimateRouter(cl)

			w := doAuthed(r, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
