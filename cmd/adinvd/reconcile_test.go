package main

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

type fakeReconciler struct {
	failFor map[string]error
	visited []string
}

func (f *fakeReconciler) Reconcile(_ context.Context, tnt tenant.Handle, _ domain.EpisodeSelector) (app.ReconcileSummary, error) {
	f.visited = append(f.visited, tnt.ID())
	if err := f.failFor[tnt.ID()]; err != nil {
		return app.ReconcileSummary{}, err
	}
	return app.ReconcileSummary{Created: 1}, nil
}

func allHandles(t *testing.T, ids ...string) []tenant.Handle {
	t.Helper()
	handles, err := tenant.NewRouter(tenant.NewStaticDirectory(ids...)).All(context.Background())
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	return handles
}

func TestReconcileTenants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("all tenants succeed", func(t *testing.T) {
		t.Parallel()
		svc := &fakeReconciler{}
		err := reconcileTenants(ctx, zerolog.Nop(), svc, allHandles(t, "acme", "globex"), domain.EpisodeSelector{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(svc.visited) != 2 {
			t.Fatalf("expected both tenants visited, got %v", svc.visited)
		}
	})

	t.Run("failing tenant does not block the rest", func(t *testing.T) {
		t.Parallel()
		svc := &fakeReconciler{failFor: map[string]error{"acme": errors.New("connection refused")}}
		err := reconcileTenants(ctx, zerolog.Nop(), svc, allHandles(t, "acme", "globex", "initech"), domain.EpisodeSelector{})
		if err == nil {
			t.Fatal("expected non-nil error when a tenant fails")
		}
		if len(svc.visited) != 3 {
			t.Fatalf("expected all tenants visited despite the failure, got %v", svc.visited)
		}
	})
}
