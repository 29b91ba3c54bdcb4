package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.FeedbackStore = (*SQLiteStore)(nil)

// SQLiteStore is an append-only feedback log backed by modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn, configures WAL mode and runs
// the migration.
func NewSQLite(ctx context.Context, dsn string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS feedback (
	id                 TEXT PRIMARY KEY,
	created_at         DATETIME NOT NULL,
	query              TEXT NOT NULL,
	budget             REAL NOT NULL,
	recommended_sku    TEXT NOT NULL DEFAULT '',
	selected_sku       TEXT NOT NULL,
	agreed             INTEGER NOT NULL,
	rating             INTEGER NOT NULL DEFAULT 0,
	comment            TEXT NOT NULL DEFAULT '',
	vendor             TEXT NOT NULL,
	name               TEXT NOT NULL,
	price              REAL NOT NULL,
	cost_fitness       REAL NOT NULL,
	evidence_score     REAL NOT NULL,
	availability_score REAL NOT NULL,
	total_score        REAL NOT NULL,
	weights            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_vendor ON feedback(vendor);
`

// Migrate creates the feedback table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends a selection. Ratings outside 0..5 are rejected.
func (s *SQLiteStore) Record(ctx context.Context, sel domain.Selection) error {
	if sel.Rating < 0 || sel.Rating > 5 {
		verr := domain.NewValidationError("selection")
		verr.AddError("rating must be between 1 and 5, or 0 when unrated")
		return verr
	}
	if sel.SelectedSKU == "" {
		verr := domain.NewValidationError("selection")
		verr.AddError("selected sku is required")
		return verr
	}
	weights, err := json.Marshal(sel.Weights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal weights")
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, created_at, query, budget, recommended_sku, selected_sku, agreed, rating, comment,
			vendor, name, price, cost_fitness, evidence_score, availability_score, total_score, weights)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now(), sel.Query, sel.Budget, sel.RecommendedSKU, sel.SelectedSKU, sel.Agreed(), sel.Rating, sel.Comment,
		sel.Vendor, sel.Name, sel.Price, sel.CostFitness, sel.EvidenceScore, sel.AvailabilityScore, sel.TotalScore,
		string(weights),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert feedback")
	}
	s.log.Info("feedback recorded",
		zap.String("id", id),
		zap.String("selected_sku", sel.SelectedSKU),
		zap.Bool("agreed", sel.Agreed()))
	return nil
}

// Entries returns every recorded selection in insertion order.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, query, budget, recommended_sku, selected_sku, agreed, rating, comment,
			vendor, name, price, cost_fitness, evidence_score, availability_score, total_score, weights
		 FROM feedback ORDER BY created_at, rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query feedback")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			weights string
		)
		sel := &e.Selection
		if err := rows.Scan(&e.ID, &e.CreatedAt, &sel.Query, &sel.Budget, &sel.RecommendedSKU, &sel.SelectedSKU,
			&e.Agreed, &sel.Rating, &sel.Comment, &sel.Vendor, &sel.Name, &sel.Price, &sel.CostFitness,
			&sel.EvidenceScore, &sel.AvailabilityScore, &sel.TotalScore, &weights); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feedback")
		}
		if err := json.Unmarshal([]byte(weights), &sel.Weights); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode weights of %s", e.ID)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate feedback")
}

// Statistics summarises the log.
func (s *SQLiteStore) Statistics(ctx context.Context) (domain.FeedbackStatistics, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return domain.FeedbackStatistics{}, err
	}
	return ComputeStatistics(entries), nil
}

// Preferences infers weights from the recorded selections.
func (s *SQLiteStore) Preferences(ctx context.Context) (Preferences, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return Preferences{}, err
	}
	return ComputePreferences(entries), nil
}

// AdaptiveWeights blends user with the learned preferences.
func (s *SQLiteStore) AdaptiveWeights(ctx context.Context, user domain.Weights) (domain.Weights, error) {
	prefs, err := s.Preferences(ctx)
	if err != nil {
		return domain.Weights{}, err
	}
	return AdaptWeights(user, prefs), nil
}

// VendorPerformance aggregates the log per vendor.
func (s *SQLiteStore) VendorPerformance(ctx context.Context) ([]VendorStats, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeVendorPerformance(entries), nil
}
