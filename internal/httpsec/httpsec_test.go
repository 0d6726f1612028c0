package httpsec

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() (http.Handler, *bool) {
	called := new(bool)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}), called
}

func TestOriginPolicy(t *testing.T) {
	cases := []struct {
		name       string
		allowed    []string
		origin     string
		wantStatus int
		wantAllow  string
		wantVary   string
		wantPass   bool
	}{
		{"no origin passes through", nil, "", http.StatusOK, "", "", true},
		{"origin against empty list rejected", nil, "https://x", http.StatusForbidden, "", "", false},
		{"exact match echoes origin", []string{"https://x"}, "https://x", http.StatusOK, "https://x", "Origin", true},
		{"mismatch rejected", []string{"https://x"}, "https://y", http.StatusForbidden, "", "", false},
		{"wildcard echoes star without vary", []string{"*"}, "https://anything", http.StatusOK, "*", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, called := okHandler()
			h := Wrap(Config{AllowedOrigins: tc.allowed}, next)

			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tc.wantAllow)
			}
			if got := rec.Header().Get("Vary"); got != tc.wantVary {
				t.Errorf("Vary = %q, want %q", got, tc.wantVary)
			}
			if *called != tc.wantPass {
				t.Errorf("downstream called = %v, want %v", *called, tc.wantPass)
			}
			if tc.wantStatus == http.StatusForbidden && !strings.Contains(rec.Body.String(), tc.origin) {
				t.Errorf("rejection body should name the offending origin, got %s", rec.Body.String())
			}
		})
	}
}

func TestOriginPolicy_PreflightIntercepted(t *testing.T) {
	for _, allowed := range [][]string{{"*"}, {"https://x"}} {
		next, called := okHandler()
		h := Wrap(Config{AllowedOrigins: allowed}, next)

		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://x")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("allowed=%v: OPTIONS status = %d, want 204", allowed, rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Errorf("allowed=%v: OPTIONS should set allowed methods", allowed)
		}
		if *called {
			t.Errorf("allowed=%v: OPTIONS must not reach downstream", allowed)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	cases := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "auth_missing"},
		{"wrong scheme", "Token abc", http.StatusUnauthorized, "auth_invalid_format"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "auth_invalid_format"},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized, "auth_invalid_token"},
		{"short token no panic", "Bearer x", http.StatusUnauthorized, "auth_invalid_token"},
		{"correct token", "Bearer expected", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, called := okHandler()
			h := Wrap(Config{Token: "expected"}, next)

			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantCode != "" && !strings.Contains(rec.Body.String(), tc.wantCode) {
				t.Errorf("body should carry code %q, got %s", tc.wantCode, rec.Body.String())
			}
			if (rec.Code == http.StatusOK) != *called {
				t.Errorf("downstream called = %v with status %d", *called, rec.Code)
			}
		})
	}
}

func TestAuthDisabledWhenNoToken(t *testing.T) {
	next, called := okHandler()
	h := Wrap(Config{}, next)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called || rec.Code != http.StatusOK {
		t.Errorf("no-token config should pass through, status = %d", rec.Code)
	}
}
