// Package tenant scopes engine operations to isolated organization
// partitions. A Handle is the only way to address a partition and only the
// Router can mint one, so cross-tenant references are not expressible.
package tenant

import (
	"context"
	"fmt"

	"github.com/podhaven/adinventory/internal/domain"
)

// Handle identifies one tenant partition. The id is unexported on purpose.
type Handle struct {
	id string
}

func (h Handle) ID() string {
	return h.id
}

func (h Handle) IsZero() bool {
	return h.id == ""
}

// Directory answers which tenants exist and are active.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// Router resolves tenant identifiers to handles, failing closed on anything
// it does not recognize.
type Router struct {
	dir Directory
}

func NewRouter(dir Directory) *Router {
	return &Router{dir: dir}
}

// Resolve returns a handle for id. Unknown and inactive tenants both come
// back as ErrNotFound so existence never leaks.
func (r *Router) Resolve(ctx context.Context, id string) (Handle, error) {
	if id == "" {
		return Handle{}, domain.ErrTenantRequired
	}
	ok, err := r.dir.Exists(ctx, id)
	if err != nil {
		return Handle{}, fmt.Errorf("resolve tenant: %w", err)
	}
	if !ok {
		return Handle{}, domain.ErrNotFound
	}
	return Handle{id: id}, nil
}

// All returns a handle per active tenant, for batch jobs that walk every
// partition.
func (r *Router) All(ctx context.Context) ([]Handle, error) {
	ids, err := r.dir.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		handles = append(handles, Handle{id: id})
	}
	return handles, nil
}

// StaticDirectory is a fixed tenant set, used in tests and single-tenant
// tooling.
type StaticDirectory struct {
	ids map[string]struct{}
}

func NewStaticDirectory(ids ...string) *StaticDirectory {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &StaticDirectory{ids: m}
}

func (d *StaticDirectory) Exists(_ context.Context, id string) (bool, error) {
	_, ok := d.ids[id]
	return ok, nil
}

func (d *StaticDirectory) List(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(d.ids))
	for id := range d.ids {
		out = append(out, id)
	}
	return out, nil
}
