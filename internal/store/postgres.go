package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civant/procure-intel/internal/db"
	"github.com/civant/procure-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"insert_signal": `INSERT INTO signals (id, tenant_id, signal_type, buyer_id, cpv_cluster_id, occurred_at, signal_strength, source_quality, value_eur, region, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"list_signals": `SELECT id, tenant_id, signal_type, buyer_id, cpv_cluster_id, occurred_at, signal_strength, source_quality, value_eur, region
		FROM signals WHERE tenant_id = $1 AND buyer_id = $2 AND occurred_at >= $3 ORDER BY occurred_at`,
	"get_prediction": `SELECT tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, status, generated_at, version
		FROM predictions_current WHERE tenant_id = $1 AND buyer_id = $2 AND cpv_cluster_id = $3`,
	"get_prediction_by_id": `SELECT tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, status, generated_at, version
		FROM predictions_current WHERE tenant_id = $1 AND prediction_id = $2`,
	"get_candidate": `SELECT tenant_id, candidate_id, prediction_id, canonical_notice_id, status, match_confidence, created_at
		FROM reconciliation_candidates WHERE tenant_id = $1 AND candidate_id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, for tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk signal import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	signal_type     TEXT NOT NULL,
	buyer_id        TEXT NOT NULL,
	cpv_cluster_id  TEXT,
	occurred_at     TIMESTAMPTZ NOT NULL,
	signal_strength DOUBLE PRECISION NOT NULL CHECK (signal_strength >= 0 AND signal_strength <= 1),
	source_quality  DOUBLE PRECISION NOT NULL CHECK (source_quality >= 0 AND source_quality <= 1),
	value_eur       DOUBLE PRECISION NOT NULL DEFAULT 0,
	region          TEXT,
	raw_payload     JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_signals_tenant_buyer ON signals(tenant_id, buyer_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_signals_tenant_cluster ON signals(tenant_id, cpv_cluster_id);

CREATE TABLE IF NOT EXISTS predictions_current (
	tenant_id      TEXT NOT NULL,
	prediction_id  TEXT NOT NULL,
	buyer_id       TEXT NOT NULL,
	cpv_cluster_id TEXT NOT NULL,
	window_start   TIMESTAMPTZ,
	window_end     TIMESTAMPTZ,
	confidence     DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 100),
	sub_scores     JSONB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'Draft' CHECK (status IN ('Draft', 'Published', 'Monitoring', 'Hit', 'Miss', 'Withdrawn', 'NeedsReview')),
	generated_at   TIMESTAMPTZ NOT NULL,
	version        BIGINT NOT NULL DEFAULT 1,
	PRIMARY KEY (tenant_id, buyer_id, cpv_cluster_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_predictions_tenant_pid ON predictions_current(tenant_id, prediction_id);
CREATE INDEX IF NOT EXISTS idx_predictions_tenant_status ON predictions_current(tenant_id, status);

CREATE TABLE IF NOT EXISTS prediction_cycle_history (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	prediction_id  TEXT NOT NULL,
	buyer_id       TEXT NOT NULL,
	cpv_cluster_id TEXT NOT NULL,
	window_start   TIMESTAMPTZ,
	window_end     TIMESTAMPTZ,
	confidence     DOUBLE PRECISION NOT NULL,
	sub_scores     JSONB NOT NULL,
	scored_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycle_history_pair ON prediction_cycle_history(tenant_id, buyer_id, cpv_cluster_id, scored_at DESC);

CREATE TABLE IF NOT EXISTS reconciliation_candidates (
	tenant_id           TEXT NOT NULL,
	candidate_id        TEXT NOT NULL,
	prediction_id       TEXT,
	canonical_notice_id TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'matched', 'rejected')),
	match_confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_candidates_tenant_status ON reconciliation_candidates(tenant_id, status);

CREATE TABLE IF NOT EXISTS reconciliation_log (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	candidate_id  TEXT,
	prediction_id TEXT,
	actor         TEXT NOT NULL,
	decision      TEXT NOT NULL,
	from_status   TEXT,
	to_status     TEXT,
	accepted      BOOLEAN NOT NULL,
	detail        TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recon_log_prediction ON reconciliation_log(tenant_id, prediction_id, created_at DESC);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

// --- Signals ---

func (s *PostgresStore) InsertSignal(ctx context.Context, sig model.Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, "insert_signal",
		sig.ID, sig.TenantID, string(sig.SignalType), sig.BuyerID, nullable(sig.CPVClusterID),
		sig.OccurredAt, sig.SignalStrength, sig.SourceQuality, sig.ValueEUR, nullable(sig.Region), jsonOrNil(sig.RawPayload),
	)
	return eris.Wrap(err, "postgres: insert signal")
}

func (s *PostgresStore) BulkInsertSignals(ctx context.Context, signals []model.Signal) (int64, error) {
	rows := make([][]any, 0, len(signals))
	for i := range signals {
		sig := signals[i]
		if err := sig.Validate(); err != nil {
			return 0, eris.Wrapf(err, "postgres: bulk insert signal %d", i)
		}
		if sig.ID == "" {
			sig.ID = uuid.NewString()
		}
		rows = append(rows, []any{
			sig.ID, sig.TenantID, string(sig.SignalType), sig.BuyerID, nullable(sig.CPVClusterID),
			sig.OccurredAt, sig.SignalStrength, sig.SourceQuality, sig.ValueEUR, nullable(sig.Region), jsonOrNil(sig.RawPayload),
		})
	}
	cfg := db.UpsertConfig{
		Table: "signals",
		Columns: []string{"id", "tenant_id", "signal_type", "buyer_id", "cpv_cluster_id",
			"occurred_at", "signal_strength", "source_quality", "value_eur", "region", "raw_payload"},
		ConflictKeys: []string{"id"},
		// Signals are immutable; conflicting ids are prior imports.
		InsertOnly: true,
	}
	return db.BulkUpsert(ctx, s.pool, cfg, rows)
}

func (s *PostgresStore) ListSignals(ctx context.Context, tenantID, buyerID string, since time.Time) ([]model.Signal, error) {
	rows, err := s.pool.Query(ctx, "list_signals", tenantID, buyerID, since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var cluster, region *string
		if err := rows.Scan(&sig.ID, &sig.TenantID, &sig.SignalType, &sig.BuyerID, &cluster,
			&sig.OccurredAt, &sig.SignalStrength, &sig.SourceQuality, &sig.ValueEUR, &region); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		if cluster != nil {
			sig.CPVClusterID = *cluster
		}
		if region != nil {
			sig.Region = *region
		}
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list signals rows")
}

func (s *PostgresStore) ListPairs(ctx context.Context, tenantID string) ([]Pair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT buyer_id, COALESCE(cpv_cluster_id, 'cluster_unknown') FROM signals WHERE tenant_id = $1`,
		tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pairs")
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.BuyerID, &p.CPVClusterID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pair")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pairs rows")
}

// --- Predictions ---

func (s *PostgresStore) GetPrediction(ctx context.Context, tenantID, buyerID, clusterID string) (*model.Prediction, error) {
	row := s.pool.QueryRow(ctx, "get_prediction", tenantID, buyerID, clusterID)
	return scanPrediction(row)
}

func (s *PostgresStore) GetPredictionByID(ctx context.Context, tenantID, predictionID string) (*model.Prediction, error) {
	row := s.pool.QueryRow(ctx, "get_prediction_by_id", tenantID, predictionID)
	return scanPrediction(row)
}

func scanPrediction(row pgx.Row) (*model.Prediction, error) {
	var p model.Prediction
	var windowStart, windowEnd *time.Time
	var subScores []byte
	err := row.Scan(&p.TenantID, &p.PredictionID, &p.BuyerID, &p.CPVClusterID,
		&windowStart, &windowEnd, &p.Confidence, &subScores, &p.Status, &p.GeneratedAt, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan prediction")
	}
	if windowStart != nil {
		p.WindowStart = *windowStart
	}
	if windowEnd != nil {
		p.WindowEnd = *windowEnd
	}
	if err := json.Unmarshal(subScores, &p.SubScores); err != nil {
		return nil, eris.Wrap(err, "postgres: decode sub scores")
	}
	return &p, nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, tenantID string, f PredictionFilter) ([]model.Prediction, error) {
	sql := `SELECT tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, status, generated_at, version
		FROM predictions_current WHERE tenant_id = $1`
	args := []any{tenantID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		sql += ` AND status = $2`
	}
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		sql += ` AND buyer_id = $` + itoa(len(args))
	}
	sql += ` ORDER BY confidence DESC, buyer_id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += ` LIMIT $` + itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sql += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()
	return collectPredictions(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, tenantID string, statuses []model.PredictionStatus) ([]model.Prediction, error) {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, status, generated_at, version
		FROM predictions_current WHERE tenant_id = $1 AND status = ANY($2)`,
		tenantID, strs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list by status")
	}
	defer rows.Close()
	return collectPredictions(rows)
}

func collectPredictions(rows pgx.Rows) ([]model.Prediction, error) {
	var out []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: prediction rows")
}

func (s *PostgresStore) UpsertPrediction(ctx context.Context, p model.Prediction, expectedVersion int64) (*model.Prediction, error) {
	subScores, err := json.Marshal(p.SubScores)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode sub scores")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert begin")
	}
	defer tx.Rollback(ctx)

	var currentVersion int64
	err = tx.QueryRow(ctx,
		`SELECT version FROM predictions_current WHERE tenant_id = $1 AND buyer_id = $2 AND cpv_cluster_id = $3 FOR UPDATE`,
		p.TenantID, p.BuyerID, p.CPVClusterID).Scan(&currentVersion)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if expectedVersion != 0 {
			return nil, &model.ConcurrentModificationError{PredictionID: p.PredictionID, Expected: expectedVersion, Found: 0}
		}
		if p.PredictionID == "" {
			p.PredictionID = uuid.NewString()
		}
		p.Version = 1
		_, err = tx.Exec(ctx,
			`INSERT INTO predictions_current (tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, status, generated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.TenantID, p.PredictionID, p.BuyerID, p.CPVClusterID, nullTime(p.WindowStart), nullTime(p.WindowEnd),
			p.Confidence, subScores, string(p.Status), p.GeneratedAt, p.Version)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: insert prediction")
		}
	case err != nil:
		return nil, eris.Wrap(err, "postgres: upsert read version")
	default:
		if currentVersion != expectedVersion {
			return nil, &model.ConcurrentModificationError{PredictionID: p.PredictionID, Expected: expectedVersion, Found: currentVersion}
		}
		p.Version = currentVersion + 1
		_, err = tx.Exec(ctx,
			`UPDATE predictions_current SET prediction_id = $4, window_start = $5, window_end = $6, confidence = $7, sub_scores = $8, status = $9, generated_at = $10, version = $11
			WHERE tenant_id = $1 AND buyer_id = $2 AND cpv_cluster_id = $3`,
			p.TenantID, p.BuyerID, p.CPVClusterID, p.PredictionID, nullTime(p.WindowStart), nullTime(p.WindowEnd),
			p.Confidence, subScores, string(p.Status), p.GeneratedAt, p.Version)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: update prediction")
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO prediction_cycle_history (id, tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), p.TenantID, p.PredictionID, p.BuyerID, p.CPVClusterID,
		nullTime(p.WindowStart), nullTime(p.WindowEnd), p.Confidence, subScores, p.GeneratedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: append cycle history")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert commit")
	}
	return &p, nil
}

func (s *PostgresStore) SetPredictionStatus(ctx context.Context, tenantID, predictionID string, from, to model.PredictionStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions_current SET status = $4, version = version + 1 WHERE tenant_id = $1 AND prediction_id = $2 AND status = $3`,
		tenantID, predictionID, string(from), string(to))
	if err != nil {
		return false, eris.Wrap(err, "postgres: set prediction status")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListCycleHistory(ctx context.Context, tenantID, buyerID, clusterID string, limit int) ([]model.CycleHistoryRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, scored_at
		FROM prediction_cycle_history WHERE tenant_id = $1 AND buyer_id = $2 AND cpv_cluster_id = $3
		ORDER BY scored_at DESC LIMIT $4`,
		tenantID, buyerID, clusterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cycle history")
	}
	defer rows.Close()

	var out []model.CycleHistoryRow
	for rows.Next() {
		var h model.CycleHistoryRow
		var windowStart, windowEnd *time.Time
		var subScores []byte
		if err := rows.Scan(&h.ID, &h.TenantID, &h.PredictionID, &h.BuyerID, &h.CPVClusterID,
			&windowStart, &windowEnd, &h.Confidence, &subScores, &h.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cycle history")
		}
		if windowStart != nil {
			h.WindowStart = *windowStart
		}
		if windowEnd != nil {
			h.WindowEnd = *windowEnd
		}
		if err := json.Unmarshal(subScores, &h.SubScores); err != nil {
			return nil, eris.Wrap(err, "postgres: decode history sub scores")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: cycle history rows")
}

// --- Reconciliation ---

func (s *PostgresStore) InsertCandidates(ctx context.Context, candidates []model.ReconciliationCandidate) error {
	for _, c := range candidates {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO reconciliation_candidates (tenant_id, candidate_id, prediction_id, canonical_notice_id, status, match_confidence, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (tenant_id, candidate_id) DO NOTHING`,
			c.TenantID, c.CandidateID, nullable(c.PredictionID), c.CanonicalNoticeID, string(c.Status), c.MatchConfidence, c.CreatedAt)
		if err != nil {
			return eris.Wrap(err, "postgres: insert candidate")
		}
	}
	return nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, tenantID, candidateID string) (*model.ReconciliationCandidate, error) {
	var c model.ReconciliationCandidate
	var predictionID *string
	err := s.pool.QueryRow(ctx, "get_candidate", tenantID, candidateID).Scan(
		&c.TenantID, &c.CandidateID, &predictionID, &c.CanonicalNoticeID, &c.Status, &c.MatchConfidence, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get candidate")
	}
	if predictionID != nil {
		c.PredictionID = *predictionID
	}
	return &c, nil
}

func (s *PostgresStore) ResolveCandidateStatus(ctx context.Context, tenantID, candidateID string, to model.CandidateStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reconciliation_candidates SET status = $3 WHERE tenant_id = $1 AND candidate_id = $2 AND status = 'pending'`,
		tenantID, candidateID, string(to))
	if err != nil {
		return false, eris.Wrap(err, "postgres: resolve candidate")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListPendingCandidates(ctx context.Context, tenantID string) ([]model.ReconciliationCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, candidate_id, prediction_id, canonical_notice_id, status, match_confidence, created_at
		FROM reconciliation_candidates WHERE tenant_id = $1 AND status = 'pending' ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending candidates")
	}
	defer rows.Close()

	var out []model.ReconciliationCandidate
	for rows.Next() {
		var c model.ReconciliationCandidate
		var predictionID *string
		if err := rows.Scan(&c.TenantID, &c.CandidateID, &predictionID, &c.CanonicalNoticeID, &c.Status, &c.MatchConfidence, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		if predictionID != nil {
			c.PredictionID = *predictionID
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: candidate rows")
}

func (s *PostgresStore) AppendLog(ctx context.Context, entry model.ReconciliationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reconciliation_log (id, tenant_id, candidate_id, prediction_id, actor, decision, from_status, to_status, accepted, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.TenantID, nullable(entry.CandidateID), nullable(entry.PredictionID), entry.Actor,
		entry.Decision, nullable(string(entry.FromStatus)), nullable(string(entry.ToStatus)), entry.Accepted, nullable(entry.Detail), entry.CreatedAt)
	return eris.Wrap(err, "postgres: append reconciliation log")
}

func (s *PostgresStore) ListLog(ctx context.Context, tenantID, predictionID string, limit int) ([]model.ReconciliationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, candidate_id, prediction_id, actor, decision, from_status, to_status, accepted, detail, created_at
		FROM reconciliation_log WHERE tenant_id = $1 AND prediction_id = $2 ORDER BY created_at DESC LIMIT $3`,
		tenantID, predictionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reconciliation log")
	}
	defer rows.Close()

	var out []model.ReconciliationLogEntry
	for rows.Next() {
		var e model.ReconciliationLogEntry
		var candidateID, predID, fromStatus, toStatus, detail *string
		if err := rows.Scan(&e.ID, &e.TenantID, &candidateID, &predID, &e.Actor, &e.Decision,
			&fromStatus, &toStatus, &e.Accepted, &detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log entry")
		}
		if candidateID != nil {
			e.CandidateID = *candidateID
		}
		if predID != nil {
			e.PredictionID = *predID
		}
		if fromStatus != nil {
			e.FromStatus = model.PredictionStatus(*fromStatus)
		}
		if toStatus != nil {
			e.ToStatus = model.PredictionStatus(*toStatus)
		}
		if detail != nil {
			e.Detail = *detail
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: log rows")
}

// --- helpers ---

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
