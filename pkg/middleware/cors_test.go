package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(origins []string, method, origin string, preflight bool) *httptest.ResponseRecorder {
	handler := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/v1/cart", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORS_AllowOrigin(t *testing.T) {
	shop := []string{"https://shop.example.com", "https://m.example.com"}

	tests := []struct {
		name     string
		origins  []string
		origin   string
		want     string
		wantVary bool
	}{
		{"unconfigured allows any", nil, "https://evil.com", "*", false},
		{"unconfigured without origin", nil, "", "*", false},
		{"allowed", shop, "https://shop.example.com", "https://shop.example.com", true},
		{"second allowed", shop, "https://m.example.com", "https://m.example.com", true},
		{"rejected", shop, "https://evil.com", "", false},
		{"no origin", shop, "", "", false},
		{"explicit wildcard", []string{"https://shop.example.com", "*"}, "https://any.com", "*", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := corsRequest(tc.origins, http.MethodGet, tc.origin, false)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tc.want, rr.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantVary {
				assert.Equal(t, "Origin", rr.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_Preflight_Returns204(t *testing.T) {
	rr := corsRequest(nil, http.MethodOptions, "https://shop.example.com", true)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, "Accept, Content-Type, X-Correlation-ID, X-Session-ID", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, CorrelationIDHeader, rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	rr := corsRequest(nil, http.MethodOptions, "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
}
