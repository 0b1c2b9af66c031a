package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := Middleware("weblogic", "welcome1", ok)

	cases := []struct {
		name       string
		user, pass string
		raw        string
		wantStatus int
	}{
		{name: "valid credentials", user: "weblogic", pass: "welcome1", wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong password", user: "weblogic", pass: "nope", wantStatus: http.StatusUnauthorized},
		{name: "wrong user", user: "admin", pass: "welcome1", wantStatus: http.StatusUnauthorized},
		{name: "empty password", user: "weblogic", pass: "", wantStatus: http.StatusUnauthorized},
		{name: "bearer scheme", raw: "Bearer welcome1", wantStatus: http.StatusUnauthorized},
		{name: "garbage basic", raw: "Basic !!!", wantStatus: http.StatusUnauthorized},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			switch {
			case c.raw != "":
				req.Header.Set("Authorization", c.raw)
			case c.user != "":
				req.SetBasicAuth(c.user, c.pass)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != c.wantStatus {
				t.Errorf("got status %d, want %d", w.Code, c.wantStatus)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Errorf("missing WWW-Authenticate challenge")
			}
		})
	}
}
