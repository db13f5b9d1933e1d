package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/podhaven/adinventory/internal/tenant"
)

// TenantHeader selects the tenant partition for every request.
const TenantHeader = "X-Tenant-ID"

type tenantKey struct{}

// TenantResolver is the minimal router surface the middleware needs.
type TenantResolver interface {
	Resolve(ctx context.Context, id string) (tenant.Handle, error)
}

// WithTenant resolves the tenant header into a handle and stores it on the
// request context. Requests without a resolvable tenant never reach the
// engine.
func WithTenant(router TenantResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TenantHeader)
		handle, err := router.Resolve(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, handle)))
	})
}

func tenantFrom(ctx context.Context) tenant.Handle {
	h, _ := ctx.Value(tenantKey{}).(tenant.Handle)
	return h
}

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
