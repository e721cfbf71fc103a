package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodycam/backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func credential(payload string) string {
	enc := base64.RawURLEncoding.EncodeToString
	return "Bearer " + enc([]byte(`{"alg":"none"}`)) + "." + enc([]byte(payload)) + ".sig"
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(CORS("https://app.example.com"))
	r.GET("/me", Bearer(auth.NewVerifier("")), func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c).SubjectID.String())
	})
	return r
}

func TestBearer(t *testing.T) {
	r := newRouter()
	const sub = "5d4c2f3e-8f0a-4a5b-9c1d-2e3f4a5b6c7d"

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed", "Bearer nope", http.StatusUnauthorized},
		{"anonymous role", credential(`{"sub":"` + sub + `","role":"anon"}`), http.StatusUnauthorized},
		{"valid", credential(`{"sub":"` + sub + `","role":"authenticated"}`), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				assert.Equal(t, sub, w.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestIdentity_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, Identity(c))
}
