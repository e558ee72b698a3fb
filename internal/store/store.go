// Package store defines the persistence interfaces for the prediction core
// and its Postgres and SQLite implementations. Every method is
// tenant-scoped; implementations embed tenant_id in every predicate and the
// service layer verifies it against the authenticated context first.
package store

import (
	"context"
	"time"

	"github.com/civant/procure-intel/internal/model"
)

// Pair identifies one (buyer, cluster) forecasting subject within a tenant.
type Pair struct {
	BuyerID      string `json:"buyer_id"`
	CPVClusterID string `json:"cpv_cluster_id"`
}

// PredictionFilter narrows ListPredictions.
type PredictionFilter struct {
	Status  model.PredictionStatus `json:"status,omitempty"`
	BuyerID string                 `json:"buyer_id,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
	Offset  int                    `json:"offset,omitempty"`
}

// SignalStore is the append-only signal surface. Signals are never mutated;
// corrections are new rows.
type SignalStore interface {
	InsertSignal(ctx context.Context, s model.Signal) error
	BulkInsertSignals(ctx context.Context, signals []model.Signal) (int64, error)
	ListSignals(ctx context.Context, tenantID, buyerID string, since time.Time) ([]model.Signal, error)
	// ListPairs returns the distinct (buyer, cluster) pairs with signal
	// activity for batch recomputation.
	ListPairs(ctx context.Context, tenantID string) ([]Pair, error)
}

// PredictionStore owns the current prediction per pair and its history.
type PredictionStore interface {
	GetPrediction(ctx context.Context, tenantID, buyerID, clusterID string) (*model.Prediction, error)
	GetPredictionByID(ctx context.Context, tenantID, predictionID string) (*model.Prediction, error)
	ListPredictions(ctx context.Context, tenantID string, f PredictionFilter) ([]model.Prediction, error)

	// UpsertPrediction atomically replaces the current row and appends one
	// history row; both writes commit or neither does. expectedVersion 0
	// means the writer read no existing row. A stored version mismatch
	// returns ConcurrentModificationError and writes nothing.
	UpsertPrediction(ctx context.Context, p model.Prediction, expectedVersion int64) (*model.Prediction, error)

	// SetPredictionStatus moves status from -> to, guarded by the current
	// stored status. Returns false without error when the stored status no
	// longer equals from (another writer won).
	SetPredictionStatus(ctx context.Context, tenantID, predictionID string, from, to model.PredictionStatus) (bool, error)

	ListCycleHistory(ctx context.Context, tenantID, buyerID, clusterID string, limit int) ([]model.CycleHistoryRow, error)
	// ListByStatus returns predictions in the given states, for lifecycle
	// sweeps and reconciliation candidate search.
	ListByStatus(ctx context.Context, tenantID string, statuses []model.PredictionStatus) ([]model.Prediction, error)
}

// ReconciliationStore owns candidates and the immutable audit log.
type ReconciliationStore interface {
	InsertCandidates(ctx context.Context, candidates []model.ReconciliationCandidate) error
	GetCandidate(ctx context.Context, tenantID, candidateID string) (*model.ReconciliationCandidate, error)
	// ResolveCandidateStatus moves a pending candidate to the given final
	// status. Returns false when the candidate was already resolved, which
	// callers treat as an idempotent no-op.
	ResolveCandidateStatus(ctx context.Context, tenantID, candidateID string, to model.CandidateStatus) (bool, error)
	ListPendingCandidates(ctx context.Context, tenantID string) ([]model.ReconciliationCandidate, error)

	AppendLog(ctx context.Context, entry model.ReconciliationLogEntry) error
	ListLog(ctx context.Context, tenantID, predictionID string, limit int) ([]model.ReconciliationLogEntry, error)
}

// Store is the full persistence surface.
type Store interface {
	SignalStore
	PredictionStore
	ReconciliationStore

	Migrate(ctx context.Context) error
	Close() error
}
