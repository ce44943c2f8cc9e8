package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/admin"
	"github.com/speedfriending/backend/internal/config"
)

func newAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminAuth(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(AdminUserKey))
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuthRequired(t *testing.T) {
	cfg := config.Default()
	cfg.AdminAuthRequired = true
	cfg.JWTSecret = "secret"
	r := newAuthRouter(cfg)

	if w := doGet(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := doGet(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", w.Code)
	}

	token, _, _ := admin.IssueToken("secret", "host", time.Hour)
	w := doGet(r, token)
	if w.Code != http.StatusOK || w.Body.String() != "host" {
		t.Errorf("expected 200 host, got %d %q", w.Code, w.Body.String())
	}
}

func TestAdminAuthOptional(t *testing.T) {
	cfg := config.Default()
	cfg.AdminAuthRequired = false
	cfg.JWTSecret = "secret"
	r := newAuthRouter(cfg)

	w := doGet(r, "")
	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Errorf("expected anonymous access, got %d %q", w.Code, w.Body.String())
	}

	token, _, _ := admin.IssueToken("secret", "host", time.Hour)
	if w := doGet(r, token); w.Body.String() != "host" {
		t.Errorf("valid token should still identify the admin, got %q", w.Body.String())
	}
}
