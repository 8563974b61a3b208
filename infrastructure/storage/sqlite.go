// Package storage provides the SQLite-backed review store. One database
// holds the merged review set, show aggregates, the audit flag log, and the
// calibration sample pool.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/ports"
)

var (
	_ ports.ReviewStore             = (*Store)(nil)
	_ ports.CalibrationSampleSource = (*Store)(nil)
)

// Store implements ports.ReviewStore and ports.CalibrationSampleSource on a
// single SQLite database. *sql.DB is safe for concurrent use, so one Store
// serves the whole pipeline.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS normalized_reviews (
		show_id         TEXT NOT NULL,
		outlet_id       TEXT NOT NULL,
		critic_name     TEXT NOT NULL DEFAULT '',
		outlet_name     TEXT NOT NULL DEFAULT '',
		url             TEXT NOT NULL DEFAULT '',
		published_at    DATETIME,
		assigned_score  INTEGER NOT NULL,
		original_rating TEXT NOT NULL DEFAULT '',
		bucket          TEXT NOT NULL DEFAULT '',
		thumb           TEXT NOT NULL DEFAULT '',
		tier            INTEGER NOT NULL DEFAULT 3,
		tier_weight     REAL NOT NULL DEFAULT 0.5,
		provenance      TEXT NOT NULL DEFAULT '',
		designation     TEXT NOT NULL DEFAULT '',
		pull_quote      TEXT NOT NULL DEFAULT '',
		flags           TEXT NOT NULL DEFAULT '[]',
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (show_id, outlet_id, critic_name)
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_show ON normalized_reviews(show_id);

	CREATE TABLE IF NOT EXISTS show_aggregates (
		show_id        TEXT PRIMARY KEY,
		weighted_score REAL NOT NULL DEFAULT 0,
		bucket         TEXT NOT NULL DEFAULT '',
		thumb          TEXT NOT NULL DEFAULT '',
		review_count   INTEGER NOT NULL DEFAULT 0,
		tier_counts    TEXT NOT NULL DEFAULT '{}',
		tier_sums      TEXT NOT NULL DEFAULT '{}',
		confidence     TEXT NOT NULL DEFAULT '',
		computed_at    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_flags (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		show_id    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_show ON audit_flags(show_id);

	CREATE TABLE IF NOT EXISTS calibration_samples (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		raw_score      INTEGER NOT NULL,
		explicit_score INTEGER NOT NULL,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// UpsertReview persists a merged review under its (show, outlet, critic)
// key, superseding any previous record with the same key.
func (s *Store) UpsertReview(ctx context.Context, r domain.NormalizedReview) error {
	flags, err := json.Marshal(r.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}

	var published sql.NullTime
	if r.PublishedAt != nil {
		published = sql.NullTime{Time: *r.PublishedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO normalized_reviews
		 (show_id, outlet_id, critic_name, outlet_name, url, published_at,
		  assigned_score, original_rating, bucket, thumb, tier, tier_weight,
		  provenance, designation, pull_quote, flags, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(show_id, outlet_id, critic_name) DO UPDATE SET
		   outlet_name = excluded.outlet_name,
		   url = excluded.url,
		   published_at = excluded.published_at,
		   assigned_score = excluded.assigned_score,
		   original_rating = excluded.original_rating,
		   bucket = excluded.bucket,
		   thumb = excluded.thumb,
		   tier = excluded.tier,
		   tier_weight = excluded.tier_weight,
		   provenance = excluded.provenance,
		   designation = excluded.designation,
		   pull_quote = excluded.pull_quote,
		   flags = excluded.flags,
		   updated_at = CURRENT_TIMESTAMP`,
		r.ShowID, r.OutletID, r.CriticName, r.OutletName, r.URL, published,
		r.AssignedScore, r.OriginalRating, string(r.Bucket), string(r.Thumb),
		r.Tier, r.TierWeight, string(r.Provenance), r.Designation, r.PullQuote,
		string(flags),
	)
	return err
}

// ReviewsForShow returns the current merged review set for a show.
func (s *Store) ReviewsForShow(ctx context.Context, showID string) ([]domain.NormalizedReview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT show_id, outlet_id, critic_name, outlet_name, url, published_at,
		        assigned_score, original_rating, bucket, thumb, tier, tier_weight,
		        provenance, designation, pull_quote, flags
		 FROM normalized_reviews
		 WHERE show_id = ?
		 ORDER BY outlet_id, critic_name`,
		showID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []domain.NormalizedReview
	for rows.Next() {
		var r domain.NormalizedReview
		var published sql.NullTime
		var bucket, thumb, provenance, flagsJSON string
		err := rows.Scan(
			&r.ShowID, &r.OutletID, &r.CriticName, &r.OutletName, &r.URL, &published,
			&r.AssignedScore, &r.OriginalRating, &bucket, &thumb, &r.Tier, &r.TierWeight,
			&provenance, &r.Designation, &r.PullQuote, &flagsJSON,
		)
		if err != nil {
			return nil, err
		}
		r.Bucket = domain.Bucket(bucket)
		r.Thumb = domain.Thumb(thumb)
		r.Provenance = domain.Provenance(provenance)
		if published.Valid {
			t := published.Time
			r.PublishedAt = &t
		}
		if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
			return nil, fmt.Errorf("decode flags for %s/%s: %w", r.ShowID, r.OutletID, err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ReplaceAggregate atomically replaces a show's aggregate. The single
// upsert statement keeps readers from ever seeing a half-applied row.
func (s *Store) ReplaceAggregate(ctx context.Context, agg domain.ShowAggregate) error {
	tierCounts, err := json.Marshal(agg.TierCounts)
	if err != nil {
		return fmt.Errorf("encode tier counts: %w", err)
	}
	tierSums, err := json.Marshal(agg.TierSums)
	if err != nil {
		return fmt.Errorf("encode tier sums: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO show_aggregates
		 (show_id, weighted_score, bucket, thumb, review_count, tier_counts, tier_sums, confidence, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(show_id) DO UPDATE SET
		   weighted_score = excluded.weighted_score,
		   bucket = excluded.bucket,
		   thumb = excluded.thumb,
		   review_count = excluded.review_count,
		   tier_counts = excluded.tier_counts,
		   tier_sums = excluded.tier_sums,
		   confidence = excluded.confidence,
		   computed_at = excluded.computed_at`,
		agg.ShowID, agg.WeightedScore, string(agg.Bucket), string(agg.Thumb),
		agg.ReviewCount, string(tierCounts), string(tierSums),
		string(agg.Confidence), agg.ComputedAt,
	)
	return err
}

// Aggregate returns the current aggregate for a show, or false when the
// show has never been aggregated.
func (s *Store) Aggregate(ctx context.Context, showID string) (domain.ShowAggregate, bool, error) {
	var agg domain.ShowAggregate
	var bucket, thumb, confidence, tierCounts, tierSums string

	err := s.db.QueryRowContext(ctx,
		`SELECT show_id, weighted_score, bucket, thumb, review_count, tier_counts, tier_sums, confidence, computed_at
		 FROM show_aggregates WHERE show_id = ?`,
		showID,
	).Scan(&agg.ShowID, &agg.WeightedScore, &bucket, &thumb, &agg.ReviewCount,
		&tierCounts, &tierSums, &confidence, &agg.ComputedAt)
	if err == sql.ErrNoRows {
		return domain.ShowAggregate{}, false, nil
	}
	if err != nil {
		return domain.ShowAggregate{}, false, err
	}

	agg.Bucket = domain.Bucket(bucket)
	agg.Thumb = domain.Thumb(thumb)
	agg.Confidence = domain.Confidence(confidence)
	if err := json.Unmarshal([]byte(tierCounts), &agg.TierCounts); err != nil {
		return domain.ShowAggregate{}, false, fmt.Errorf("decode tier counts: %w", err)
	}
	if err := json.Unmarshal([]byte(tierSums), &agg.TierSums); err != nil {
		return domain.ShowAggregate{}, false, fmt.Errorf("decode tier sums: %w", err)
	}
	return agg, true, nil
}

// AppendAuditFlags records advisory flags for the external human-review
// workflow.
func (s *Store) AppendAuditFlags(ctx context.Context, showID string, flags []domain.Flag) error {
	if len(flags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO audit_flags (show_id, kind, detail) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range flags {
		if _, err := stmt.Exec(showID, string(f.Kind), f.Detail); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AuditFlagsForShow returns the audit log for a show, newest first.
func (s *Store) AuditFlagsForShow(ctx context.Context, showID string) ([]domain.Flag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, detail FROM audit_flags WHERE show_id = ? ORDER BY id DESC`,
		showID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []domain.Flag
	for rows.Next() {
		var kind string
		var f domain.Flag
		if err := rows.Scan(&kind, &f.Detail); err != nil {
			return nil, err
		}
		f.Kind = domain.FlagKind(kind)
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// AddCalibrationSample records one oracle-versus-ground-truth pair for the
// next offset recomputation.
func (s *Store) AddCalibrationSample(ctx context.Context, sample ports.CalibrationSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calibration_samples (raw_score, explicit_score) VALUES (?, ?)`,
		sample.RawScore, sample.ExplicitScore,
	)
	return err
}

// Samples returns all recorded calibration pairs, oldest first.
func (s *Store) Samples(ctx context.Context) ([]ports.CalibrationSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_score, explicit_score FROM calibration_samples ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []ports.CalibrationSample
	for rows.Next() {
		var sample ports.CalibrationSample
		if err := rows.Scan(&sample.RawScore, &sample.ExplicitScore); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// PruneCalibrationSamples drops samples older than the cutoff so the pool
// tracks the oracles as deployed today rather than their historical drift.
func (s *Store) PruneCalibrationSamples(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM calibration_samples WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
