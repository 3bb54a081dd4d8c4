// Package db provides CRUD repository operations for jour data models.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/models"
)

// Repository provides storage operations for journal entries and settings.
// It holds no state beyond the connection pool; atomicity comes from single
// SQLite statements, not application locks.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// =====================================================
// JournalEntry operations
// =====================================================

// Upsert inserts or updates an entry keyed by its id. The conflict handling
// happens inside one statement so two concurrent writers on the same id can
// never interleave into a lost update or a duplicate row.
func (r *Repository) Upsert(ctx context.Context, entry *models.JournalEntry) error {
	query := `
	INSERT INTO journals (journal_id, journal_date, journal_data, journal_text)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(journal_id) DO UPDATE SET
		journal_date = excluded.journal_date,
		journal_data = excluded.journal_data,
		journal_text = excluded.journal_text
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID.String(), entry.DateString(), entry.Data, entry.Text)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "upsert journal entry", err)
	}
	return nil
}

// GetByDate returns the entry for the given calendar date, or nil when the
// date has no entry.
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (*models.JournalEntry, error) {
	query := `
	SELECT journal_id, journal_date, journal_data, journal_text
	FROM journals
	WHERE journal_date = ?
	LIMIT 1
	`
	var (
		entry      models.JournalEntry
		id, dateTS string
	)
	err := r.db.QueryRowContext(ctx, query, models.Midnight(date).Format(models.DateFormat)).
		Scan(&id, &dateTS, &entry.Data, &entry.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "get journal entry by date", err)
	}

	if entry.ID, err = uuid.Parse(id); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "corrupt journal id", err)
	}
	if entry.Date, err = models.ParseDate(dateTS); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "corrupt journal date", err)
	}
	return &entry, nil
}

// ListDatesInRange returns the distinct dates carrying an entry between
// start and end inclusive, ascending.
func (r *Repository) ListDatesInRange(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	query := `
	SELECT DISTINCT journal_date
	FROM journals
	WHERE journal_date BETWEEN ? AND ?
	ORDER BY journal_date
	`
	rows, err := r.db.QueryContext(ctx, query,
		models.Midnight(start).Format(models.DateFormat),
		models.Midnight(end).Format(models.DateFormat))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list journal dates", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan journal date", err)
		}
		d, err := models.ParseDate(s)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "corrupt journal date", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "iterate journal dates", err)
	}
	return dates, nil
}

// Delete removes the entry for the given date. Deleting an absent date is a
// successful no-op.
func (r *Repository) Delete(ctx context.Context, date time.Time) error {
	query := `DELETE FROM journals WHERE journal_date = ?`
	_, err := r.db.ExecContext(ctx, query, models.Midnight(date).Format(models.DateFormat))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "delete journal entry", err)
	}
	return nil
}

// =====================================================
// Setting row operations
// =====================================================

// GetSetting returns the raw stored value for a setting, or empty string
// when the key is absent.
func (r *Repository) GetSetting(ctx context.Context, id string) (string, error) {
	query := `SELECT setting_value FROM settings WHERE setting_id = ?`
	var value string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrStorage, "get setting", err)
	}
	return value, nil
}

// SetSetting stores a setting value, overwriting any previous value, in one
// atomic statement.
func (r *Repository) SetSetting(ctx context.Context, id, value string) error {
	query := `
	INSERT INTO settings (setting_id, setting_value)
	VALUES (?, ?)
	ON CONFLICT(setting_id) DO UPDATE SET setting_value = excluded.setting_value
	`
	if _, err := r.db.ExecContext(ctx, query, id, value); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "set setting", err)
	}
	return nil
}

// SetSettingIfAbsent stores a value only when the key has no row yet, then
// returns the value that won. Two concurrent first-time writers converge on
// a single stored value because the conditional insert is one statement.
func (r *Repository) SetSettingIfAbsent(ctx context.Context, id, value string) (string, error) {
	query := `
	INSERT INTO settings (setting_id, setting_value)
	VALUES (?, ?)
	ON CONFLICT(setting_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, id, value); err != nil {
		return "", apperrors.Wrap(apperrors.ErrStorage, "insert setting if absent", err)
	}
	return r.GetSetting(ctx, id)
}

// ListSettingKeys returns every stored setting identifier, sorted.
func (r *Repository) ListSettingKeys(ctx context.Context) ([]string, error) {
	query := `SELECT setting_id FROM settings ORDER BY setting_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list setting keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan setting key", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "iterate setting keys", err)
	}
	return keys, nil
}
