package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civant/procure-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs
// single-node deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Writers serialize on a single connection so version checks inside a
	// transaction cannot interleave.
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	signal_type     TEXT NOT NULL,
	buyer_id        TEXT NOT NULL,
	cpv_cluster_id  TEXT,
	occurred_at     DATETIME NOT NULL,
	signal_strength REAL NOT NULL,
	source_quality  REAL NOT NULL,
	value_eur       REAL NOT NULL DEFAULT 0,
	region          TEXT,
	raw_payload     TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_signals_tenant_buyer ON signals(tenant_id, buyer_id, occurred_at);

CREATE TABLE IF NOT EXISTS predictions_current (
	tenant_id      TEXT NOT NULL,
	prediction_id  TEXT NOT NULL,
	buyer_id       TEXT NOT NULL,
	cpv_cluster_id TEXT NOT NULL,
	window_start   DATETIME,
	window_end     DATETIME,
	confidence     REAL NOT NULL,
	sub_scores     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'Draft',
	generated_at   DATETIME NOT NULL,
	version        INTEGER NOT NULL DEFAULT 1,
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
	window_start   DATETIME,
	window_end     DATETIME,
	confidence     REAL NOT NULL,
	sub_scores     TEXT NOT NULL,
	scored_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycle_history_pair ON prediction_cycle_history(tenant_id, buyer_id, cpv_cluster_id, scored_at);

CREATE TABLE IF NOT EXISTS reconciliation_candidates (
	tenant_id           TEXT NOT NULL,
	candidate_id        TEXT NOT NULL,
	prediction_id       TEXT,
	canonical_notice_id TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	match_confidence    REAL NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL,
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
	accepted      INTEGER NOT NULL,
	detail        TEXT,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recon_log_prediction ON reconciliation_log(tenant_id, prediction_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Signals ---

func (s *SQLiteStore) InsertSignal(ctx context.Context, sig model.Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, tenant_id, signal_type, buyer_id, cpv_cluster_id, occurred_at, signal_strength, source_quality, value_eur, region, raw_payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.TenantID, string(sig.SignalType), sig.BuyerID, nullStr(sig.CPVClusterID),
		sig.OccurredAt.UTC(), sig.SignalStrength, sig.SourceQuality, sig.ValueEUR, nullStr(sig.Region), nullStr(string(sig.RawPayload)),
	)
	return eris.Wrap(err, "sqlite: insert signal")
}

func (s *SQLiteStore) BulkInsertSignals(ctx context.Context, signals []model.Signal) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signals (id, tenant_id, signal_type, buyer_id, cpv_cluster_id, occurred_at, signal_strength, source_quality, value_eur, region, raw_payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert prepare")
	}
	defer stmt.Close()

	var n int64
	for i := range signals {
		sig := signals[i]
		if err := sig.Validate(); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk insert signal %d", i)
		}
		if sig.ID == "" {
			sig.ID = uuid.New().String()
		}
		res, err := stmt.ExecContext(ctx,
			sig.ID, sig.TenantID, string(sig.SignalType), sig.BuyerID, nullStr(sig.CPVClusterID),
			sig.OccurredAt.UTC(), sig.SignalStrength, sig.SourceQuality, sig.ValueEUR, nullStr(sig.Region), nullStr(string(sig.RawPayload)))
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk insert signal %d", i)
		}
		rows, _ := res.RowsAffected()
		n += rows
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListSignals(ctx context.Context, tenantID, buyerID string, since time.Time) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, signal_type, buyer_id, cpv_cluster_id, occurred_at, signal_strength, source_quality, value_eur, region
		 FROM signals WHERE tenant_id = ? AND buyer_id = ? AND occurred_at >= ? ORDER BY occurred_at`,
		tenantID, buyerID, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var cluster, region sql.NullString
		if err := rows.Scan(&sig.ID, &sig.TenantID, &sig.SignalType, &sig.BuyerID, &cluster,
			&sig.OccurredAt, &sig.SignalStrength, &sig.SourceQuality, &sig.ValueEUR, &region); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.CPVClusterID = cluster.String
		sig.Region = region.String
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list signals iterate")
}

func (s *SQLiteStore) ListPairs(ctx context.Context, tenantID string) ([]Pair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT buyer_id, COALESCE(cpv_cluster_id, 'cluster_unknown') FROM signals WHERE tenant_id = ?`,
		tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pairs")
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.BuyerID, &p.CPVClusterID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pair")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pairs iterate")
}

// --- Predictions ---

const sqlitePredictionCols = `tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, status, generated_at, version`

func (s *SQLiteStore) GetPrediction(ctx context.Context, tenantID, buyerID, clusterID string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePredictionCols+` FROM predictions_current WHERE tenant_id = ? AND buyer_id = ? AND cpv_cluster_id = ?`,
		tenantID, buyerID, clusterID)
	return scanSQLitePrediction(row)
}

func (s *SQLiteStore) GetPredictionByID(ctx context.Context, tenantID, predictionID string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePredictionCols+` FROM predictions_current WHERE tenant_id = ? AND prediction_id = ?`,
		tenantID, predictionID)
	return scanSQLitePrediction(row)
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, tenantID string, f PredictionFilter) ([]model.Prediction, error) {
	query := `SELECT ` + sqlitePredictionCols + ` FROM predictions_current WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.BuyerID != "" {
		query += ` AND buyer_id = ?`
		args = append(args, f.BuyerID)
	}
	query += ` ORDER BY confidence DESC, buyer_id`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()
	return collectSQLitePredictions(rows)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, tenantID string, statuses []model.PredictionStatus) ([]model.Prediction, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + sqlitePredictionCols + ` FROM predictions_current WHERE tenant_id = ? AND status IN (?`
	args := []any{tenantID, string(statuses[0])}
	for _, st := range statuses[1:] {
		query += `, ?`
		args = append(args, string(st))
	}
	query += `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list by status")
	}
	defer rows.Close()
	return collectSQLitePredictions(rows)
}

func collectSQLitePredictions(rows *sql.Rows) ([]model.Prediction, error) {
	var out []model.Prediction
	for rows.Next() {
		p, err := scanSQLitePrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: prediction rows")
}

func scanSQLitePrediction(row scannable) (*model.Prediction, error) {
	var p model.Prediction
	var windowStart, windowEnd sql.NullTime
	var subScores string
	err := row.Scan(&p.TenantID, &p.PredictionID, &p.BuyerID, &p.CPVClusterID,
		&windowStart, &windowEnd, &p.Confidence, &subScores, &p.Status, &p.GeneratedAt, &p.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prediction")
	}
	p.WindowStart = windowStart.Time
	p.WindowEnd = windowEnd.Time
	if err := json.Unmarshal([]byte(subScores), &p.SubScores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sub scores")
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertPrediction(ctx context.Context, p model.Prediction, expectedVersion int64) (*model.Prediction, error) {
	subScores, err := json.Marshal(p.SubScores)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal sub scores")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert begin")
	}
	defer tx.Rollback()

	var currentVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM predictions_current WHERE tenant_id = ? AND buyer_id = ? AND cpv_cluster_id = ?`,
		p.TenantID, p.BuyerID, p.CPVClusterID).Scan(&currentVersion)
	switch {
	case err == sql.ErrNoRows:
		if expectedVersion != 0 {
			return nil, &model.ConcurrentModificationError{PredictionID: p.PredictionID, Expected: expectedVersion, Found: 0}
		}
		if p.PredictionID == "" {
			p.PredictionID = uuid.New().String()
		}
		p.Version = 1
		_, err = tx.ExecContext(ctx,
			`INSERT INTO predictions_current (`+sqlitePredictionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.TenantID, p.PredictionID, p.BuyerID, p.CPVClusterID, sqlNullTime(p.WindowStart), sqlNullTime(p.WindowEnd),
			p.Confidence, string(subScores), string(p.Status), p.GeneratedAt.UTC(), p.Version)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: insert prediction")
		}
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: upsert read version")
	default:
		if currentVersion != expectedVersion {
			return nil, &model.ConcurrentModificationError{PredictionID: p.PredictionID, Expected: expectedVersion, Found: currentVersion}
		}
		p.Version = currentVersion + 1
		_, err = tx.ExecContext(ctx,
			`UPDATE predictions_current SET prediction_id = ?, window_start = ?, window_end = ?, confidence = ?, sub_scores = ?, status = ?, generated_at = ?, version = ?
			 WHERE tenant_id = ? AND buyer_id = ? AND cpv_cluster_id = ?`,
			p.PredictionID, sqlNullTime(p.WindowStart), sqlNullTime(p.WindowEnd), p.Confidence, string(subScores),
			string(p.Status), p.GeneratedAt.UTC(), p.Version, p.TenantID, p.BuyerID, p.CPVClusterID)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: update prediction")
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prediction_cycle_history (id, tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), p.TenantID, p.PredictionID, p.BuyerID, p.CPVClusterID,
		sqlNullTime(p.WindowStart), sqlNullTime(p.WindowEnd), p.Confidence, string(subScores), p.GeneratedAt.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: append cycle history")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert commit")
	}
	return &p, nil
}

func (s *SQLiteStore) SetPredictionStatus(ctx context.Context, tenantID, predictionID string, from, to model.PredictionStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE predictions_current SET status = ?, version = version + 1 WHERE tenant_id = ? AND prediction_id = ? AND status = ?`,
		string(to), tenantID, predictionID, string(from))
	if err != nil {
		return false, eris.Wrap(err, "sqlite: set prediction status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: set status rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListCycleHistory(ctx context.Context, tenantID, buyerID, clusterID string, limit int) ([]model.CycleHistoryRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, prediction_id, buyer_id, cpv_cluster_id, window_start, window_end, confidence, sub_scores, scored_at
		 FROM prediction_cycle_history WHERE tenant_id = ? AND buyer_id = ? AND cpv_cluster_id = ?
		 ORDER BY scored_at DESC LIMIT ?`,
		tenantID, buyerID, clusterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cycle history")
	}
	defer rows.Close()

	var out []model.CycleHistoryRow
	for rows.Next() {
		var h model.CycleHistoryRow
		var windowStart, windowEnd sql.NullTime
		var subScores string
		if err := rows.Scan(&h.ID, &h.TenantID, &h.PredictionID, &h.BuyerID, &h.CPVClusterID,
			&windowStart, &windowEnd, &h.Confidence, &subScores, &h.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cycle history")
		}
		h.WindowStart = windowStart.Time
		h.WindowEnd = windowEnd.Time
		if err := json.Unmarshal([]byte(subScores), &h.SubScores); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal history sub scores")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: cycle history rows")
}

// --- Reconciliation ---

func (s *SQLiteStore) InsertCandidates(ctx context.Context, candidates []model.ReconciliationCandidate) error {
	for _, c := range candidates {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO reconciliation_candidates (tenant_id, candidate_id, prediction_id, canonical_notice_id, status, match_confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (tenant_id, candidate_id) DO NOTHING`,
			c.TenantID, c.CandidateID, nullStr(c.PredictionID), c.CanonicalNoticeID, string(c.Status), c.MatchConfidence, c.CreatedAt.UTC())
		if err != nil {
			return eris.Wrap(err, "sqlite: insert candidate")
		}
	}
	return nil
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, tenantID, candidateID string) (*model.ReconciliationCandidate, error) {
	var c model.ReconciliationCandidate
	var predictionID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, candidate_id, prediction_id, canonical_notice_id, status, match_confidence, created_at
		 FROM reconciliation_candidates WHERE tenant_id = ? AND candidate_id = ?`,
		tenantID, candidateID).Scan(
		&c.TenantID, &c.CandidateID, &predictionID, &c.CanonicalNoticeID, &c.Status, &c.MatchConfidence, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get candidate")
	}
	c.PredictionID = predictionID.String
	return &c, nil
}

func (s *SQLiteStore) ResolveCandidateStatus(ctx context.Context, tenantID, candidateID string, to model.CandidateStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reconciliation_candidates SET status = ? WHERE tenant_id = ? AND candidate_id = ? AND status = 'pending'`,
		string(to), tenantID, candidateID)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: resolve candidate")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: resolve rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListPendingCandidates(ctx context.Context, tenantID string) ([]model.ReconciliationCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, candidate_id, prediction_id, canonical_notice_id, status, match_confidence, created_at
		 FROM reconciliation_candidates WHERE tenant_id = ? AND status = 'pending' ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending candidates")
	}
	defer rows.Close()

	var out []model.ReconciliationCandidate
	for rows.Next() {
		var c model.ReconciliationCandidate
		var predictionID sql.NullString
		if err := rows.Scan(&c.TenantID, &c.CandidateID, &predictionID, &c.CanonicalNoticeID, &c.Status, &c.MatchConfidence, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		c.PredictionID = predictionID.String
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: candidate rows")
}

func (s *SQLiteStore) AppendLog(ctx context.Context, entry model.ReconciliationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciliation_log (id, tenant_id, candidate_id, prediction_id, actor, decision, from_status, to_status, accepted, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TenantID, nullStr(entry.CandidateID), nullStr(entry.PredictionID), entry.Actor,
		entry.Decision, nullStr(string(entry.FromStatus)), nullStr(string(entry.ToStatus)), entry.Accepted, nullStr(entry.Detail), entry.CreatedAt.UTC())
	return eris.Wrap(err, "sqlite: append reconciliation log")
}

func (s *SQLiteStore) ListLog(ctx context.Context, tenantID, predictionID string, limit int) ([]model.ReconciliationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, candidate_id, prediction_id, actor, decision, from_status, to_status, accepted, detail, created_at
		 FROM reconciliation_log WHERE tenant_id = ? AND prediction_id = ? ORDER BY created_at DESC LIMIT ?`,
		tenantID, predictionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reconciliation log")
	}
	defer rows.Close()

	var out []model.ReconciliationLogEntry
	for rows.Next() {
		var e model.ReconciliationLogEntry
		var candidateID, predID, fromStatus, toStatus, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &candidateID, &predID, &e.Actor, &e.Decision,
			&fromStatus, &toStatus, &e.Accepted, &detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log entry")
		}
		e.CandidateID = candidateID.String
		e.PredictionID = predID.String
		e.FromStatus = model.PredictionStatus(fromStatus.String)
		e.ToStatus = model.PredictionStatus(toStatus.String)
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: log rows")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func sqlNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
