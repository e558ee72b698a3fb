// Package guard enforces tenant isolation. Every operation that touches
// tenant-partitioned data calls Require with the tenant id it is about to
// embed in a query predicate or payload; mismatches against the
// authenticated tenant fail closed, before any row is read or written.
package guard

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/civant/procure-intel/internal/model"
)

type contextKey int

const (
	tenantKey contextKey = iota
	adminKey
)

// WithTenant returns a context carrying the authenticated tenant id. The id
// must come from verified caller context (API token mapping, admin session),
// never from a request body or caller-controlled header.
func WithTenant(ctx context.Context, tenantID string) (context.Context, error) {
	if !model.ValidTenantID(tenantID) {
		return nil, eris.Wrap(&model.ValidationError{Field: "tenant_id", Reason: "invalid tenant id"}, "guard")
	}
	return context.WithValue(ctx, tenantKey, tenantID), nil
}

// WithAdmin marks the context as carrying administrative rights for its
// tenant. It requires an authenticated tenant to already be present.
func WithAdmin(ctx context.Context) (context.Context, error) {
	if _, err := TenantFromContext(ctx); err != nil {
		return nil, err
	}
	return context.WithValue(ctx, adminKey, true), nil
}

// TenantFromContext extracts the authenticated tenant id.
func TenantFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantKey).(string)
	if !ok || id == "" {
		return "", eris.New("guard: no authenticated tenant in context")
	}
	return id, nil
}

// Require asserts that the tenant id about to be used in a query equals the
// authenticated tenant. A mismatch is a CrossTenantError: fatal, audited by
// the caller, never silently reassigned.
func Require(ctx context.Context, requested string) error {
	authenticated, err := TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if requested != authenticated {
		return &model.CrossTenantError{Authenticated: authenticated, Requested: requested}
	}
	return nil
}

// RequireAdmin asserts both tenant match and administrative rights, for the
// operator decision endpoints.
func RequireAdmin(ctx context.Context, requested string) error {
	if err := Require(ctx, requested); err != nil {
		return err
	}
	if isAdmin, ok := ctx.Value(adminKey).(bool); !ok || !isAdmin {
		return eris.New("guard: admin rights required")
	}
	return nil
}

// VerifyRows re-checks tenant ids on rows coming back from storage. It is
// the after-query half of the guard: a row from another tenant escaping the
// predicate is treated as a cross-tenant violation, not returned.
func VerifyRows[T any](ctx context.Context, rows []T, tenantOf func(T) string) error {
	authenticated, err := TenantFromContext(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if got := tenantOf(r); got != authenticated {
			return &model.CrossTenantError{Authenticated: authenticated, Requested: got}
		}
	}
	return nil
}
