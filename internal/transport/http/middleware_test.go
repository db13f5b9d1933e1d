package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/podhaven/adinventory/internal/tenant"
)

func TestWithTenant(t *testing.T) {
	t.Parallel()

	router := tenant.NewRouter(tenant.NewStaticDirectory("acme", "globex"))

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedCode   string
	}{
		{name: "known tenant", header: "acme", expectedStatus: http.StatusOK},
		{name: "missing header", header: "", expectedStatus: http.StatusBadRequest, expectedCode: codeTenantRequired},
		{name: "unknown tenant", header: "hooli", expectedStatus: http.StatusNotFound, expectedCode: codeNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen tenant.Handle
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = tenantFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/inventory/ep-1", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			WithTenant(router, next).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedCode != "" && !strings.Contains(rec.Body.String(), tt.expectedCode) {
				t.Fatalf("expected body to contain %q, got %q", tt.expectedCode, rec.Body.String())
			}
			if tt.expectedStatus == http.StatusOK {
				if seen.IsZero() {
					t.Fatal("expected handler to receive a resolved tenant handle")
				}
				if seen.ID() != tt.header {
					t.Fatalf("expected handle for %q, got %q", tt.header, seen.ID())
				}
			} else if !seen.IsZero() {
				t.Fatal("handler should not run for unresolved tenants")
			}
		})
	}
}
