package model

import (
	"errors"
	"fmt"
)

// Error kind strings returned to callers alongside rejected writes.
const (
	KindValidation    = "validation_error"
	KindCrossTenant   = "cross_tenant_error"
	KindLifecycle     = "lifecycle_error"
	KindConcurrentMod = "concurrent_modification_error"
)

// ValidationError reports a malformed required input. It is surfaced to the
// caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", KindValidation, e.Field, e.Reason)
}

// Kind returns the stable error kind string.
func (e *ValidationError) Kind() string { return KindValidation }

// CrossTenantError reports a tenant isolation violation. Always fatal to the
// request; never auto-corrected.
type CrossTenantError struct {
	Authenticated string
	Requested     string
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("%s: authenticated tenant %q, requested tenant %q", KindCrossTenant, e.Authenticated, e.Requested)
}

// Kind returns the stable error kind string.
func (e *CrossTenantError) Kind() string { return KindCrossTenant }

// LifecycleError reports an illegal state machine transition. Persisted
// state is unchanged; the attempt is still audited.
type LifecycleError struct {
	From PredictionStatus
	To   PredictionStatus
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", KindLifecycle, e.From, e.To)
}

// Kind returns the stable error kind string.
func (e *LifecycleError) Kind() string { return KindLifecycle }

// ConcurrentModificationError reports a lost-update conflict on a prediction
// upsert: the stored version no longer matches the version the writer read.
type ConcurrentModificationError struct {
	PredictionID string
	Expected     int64
	Found        int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s: prediction %s version %d, expected %d", KindConcurrentMod, e.PredictionID, e.Found, e.Expected)
}

// Kind returns the stable error kind string.
func (e *ConcurrentModificationError) Kind() string { return KindConcurrentMod }

// IsCrossTenant reports whether err wraps a CrossTenantError.
func IsCrossTenant(err error) bool {
	var ce *CrossTenantError
	return errors.As(err, &ce)
}

// IsLifecycle reports whether err wraps a LifecycleError.
func IsLifecycle(err error) bool {
	var le *LifecycleError
	return errors.As(err, &le)
}

// IsConcurrentModification reports whether err wraps a
// ConcurrentModificationError.
func IsConcurrentModification(err error) bool {
	var ce *ConcurrentModificationError
	return errors.As(err, &ce)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorKind extracts the stable kind string from any domain error, or
// "internal_error" for everything else.
func ErrorKind(err error) string {
	type kinder interface{ Kind() string }
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "internal_error"
}
