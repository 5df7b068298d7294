package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-grading/app/auth"
	"github.com/vibast-solutions/ms-go-grading/app/controller"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/config"
)

func newTestServer(t *testing.T) (*echo.Echo, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager(config.AuthConfig{JWTSecret: "serve-secret", Issuer: "grading-test", TokenTTL: time.Hour})
	e := setupHTTPServer(
		controller.NewSubmissionController(nil),
		controller.NewPaymentController(nil),
		controller.NewAdminController(nil),
		auth.NewEchoMiddleware(tokens),
	)
	return e, tokens
}

func serve(e *echo.Echo, method, target, token string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthGeneratesRequestID(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("expected a generated request id")
	}

	rec = serve(e, http.MethodGet, "/health", "", map[string]string{echo.HeaderXRequestID: "req-42"})
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "req-42" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

func TestRequestIDReachesRequestContext(t *testing.T) {
	e := echo.New()
	e.Use(requestID())

	var seen string
	e.GET("/ping", func(ctx echo.Context) error {
		seen = factory.RequestIDFromContext(ctx.Request().Context())
		return ctx.NoContent(http.StatusNoContent)
	})

	serve(e, http.MethodGet, "/ping", "", map[string]string{echo.HeaderXRequestID: "req-7"})
	if seen != "req-7" {
		t.Fatalf("expected request id on context, got %q", seen)
	}
}

func TestRoutesRequireAuthentication(t *testing.T) {
	e, tokens := newTestServer(t)
	customer, err := tokens.Issue("cust-1", service.RoleCustomer, "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	cases := []struct {
		method string
		target string
		token  string
		want   int
	}{
		{http.MethodGet, "/submissions", "", http.StatusUnauthorized},
		{http.MethodPost, "/payments/pay-now", "", http.StatusUnauthorized},
		{http.MethodGet, "/admin/analytics", "", http.StatusUnauthorized},
		{http.MethodGet, "/admin/analytics", customer, http.StatusForbidden},
		{http.MethodPatch, "/submissions/1/status", customer, http.StatusForbidden},
		{http.MethodPatch, "/admin/submissions/1/status", customer, http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := serve(e, tc.method, tc.target, tc.token, nil)
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.want, rec.Code)
		}
	}
}

func TestStripeWebhookSkipsBearerAuth(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodPost, "/webhooks/stripe", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
}
