package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/panxpan/rsvpcast/internal/models"
)

// Store is the forecast log: every served prediction is recorded so actual
// attendance can be attached after the event and accuracy tracked per model.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

func (s *Store) LogPrediction(rec models.PredictionRecord) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO predictions (event_date, event_name, registered_count, selected, lower_bound, upper_bound, model, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EventDate.Format("2006-01-02"), rec.EventName, rec.RegisteredCount,
		rec.Selected, rec.LowerBound, rec.UpperBound, rec.Model, rec.Warnings)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordActual attaches observed attendance to every logged prediction for
// the given event. Returns the number of rows verified.
func (s *Store) RecordActual(eventDate time.Time, eventName string, actual float64) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE predictions
		SET actual = ?, verified_at = ?
		WHERE SUBSTR(event_date, 1, 10) = ? AND LOWER(event_name) = LOWER(?)
	`, actual, time.Now().UTC(), eventDate.Format("2006-01-02"), eventName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetPrediction(id int64) (*models.PredictionRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, event_date, event_name, registered_count, selected, lower_bound, upper_bound, model, warnings, actual, verified_at
		FROM predictions
		WHERE id = ?
	`, id)
	return scanPrediction(row)
}

func (s *Store) GetRecentPredictions(limit int) ([]models.PredictionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, event_date, event_name, registered_count, selected, lower_bound, upper_bound, model, warnings, actual, verified_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PredictionRecord
	for rows.Next() {
		rec, err := scanPredictionRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetAccuracyStats aggregates mean bias (predicted - actual) and MAE per
// model over verified predictions inside the window.
func (s *Store) GetAccuracyStats(windowDays int) ([]models.AccuracyStats, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays).Format("2006-01-02")
	rows, err := s.db.Query(`
		SELECT
			model,
			COUNT(*) as count,
			COALESCE(AVG(selected - actual), 0) as mean_bias,
			COALESCE(AVG(ABS(selected - actual)), 0) as mae
		FROM predictions
		WHERE actual IS NOT NULL AND SUBSTR(event_date, 1, 10) >= ?
		GROUP BY model
		ORDER BY model
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.AccuracyStats
	for rows.Next() {
		var st models.AccuracyStats
		if err := rows.Scan(&st.Model, &st.Count, &st.MeanBias, &st.MAE); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// HasDigestForDate reports whether a digest was already sent for the date, to
// keep the daily scheduler idempotent across restarts.
func (s *Store) HasDigestForDate(date time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM digest_log WHERE digest_date = ?`,
		date.Format("2006-01-02")).Scan(&count)
	return count > 0, err
}

func (s *Store) LogDigest(date time.Time, eventCount int, recipients []string) error {
	_, err := s.db.Exec(`
		INSERT INTO digest_log (digest_date, event_count, recipients)
		VALUES (?, ?, ?)
		ON CONFLICT(digest_date) DO UPDATE SET
			sent_at = CURRENT_TIMESTAMP,
			event_count = excluded.event_count,
			recipients = excluded.recipients
	`, date.Format("2006-01-02"), eventCount, strings.Join(recipients, ","))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (*models.PredictionRecord, error) {
	rec, err := scanPredictionRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanPredictionRows(row rowScanner) (*models.PredictionRecord, error) {
	var rec models.PredictionRecord
	var eventDate string
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &eventDate, &rec.EventName, &rec.RegisteredCount,
		&rec.Selected, &rec.LowerBound, &rec.UpperBound, &rec.Model, &rec.Warnings,
		&rec.Actual, &rec.VerifiedAt); err != nil {
		return nil, err
	}
	if len(eventDate) > 10 {
		eventDate = eventDate[:10]
	}
	parsed, err := time.Parse("2006-01-02", eventDate)
	if err != nil {
		return nil, err
	}
	rec.EventDate = parsed
	return &rec, nil
}
