package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	down := errors.New("down")
	testCases := []struct {
		name       string
		pinger     Pinger
		checker    PolicyChecker
		wantStatus int
		wantCheck  string
	}{
		{"no checks", nil, nil, http.StatusOK, ""},
		{"all healthy", fakePinger{}, fakeChecker{}, http.StatusOK, ""},
		{"database down", fakePinger{err: down}, fakeChecker{}, http.StatusServiceUnavailable, "database"},
		{"policy broken", fakePinger{}, fakeChecker{err: down}, http.StatusServiceUnavailable, "policy"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			NewHandler(tc.pinger, tc.checker).Register(r)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if tc.wantStatus == http.StatusOK && body["status"] != "ok" {
				t.Errorf("status = %q, want ok", body["status"])
			}
			if body["check"] != tc.wantCheck {
				t.Errorf("check = %q, want %q", body["check"], tc.wantCheck)
			}
		})
	}
}
