package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kimhsiao/jour/internal/db"
	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/logging"
	"github.com/kimhsiao/jour/internal/models"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusFailed  SyncStatus = "failed"
)

// Remote defines the operations the journal server must support.
type Remote interface {
	// List fetches every journal entry the server holds.
	List(ctx context.Context) ([]models.JournalEntry, error)

	// Create stores a new entry and returns it with its assigned id.
	Create(ctx context.Context, date time.Time, summary, text string) (*models.JournalEntry, error)

	// Update replaces the text of an existing entry.
	Update(ctx context.Context, entry *models.JournalEntry, text string) (*models.JournalEntry, error)

	// Delete removes an entry. Absent entries are not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Find fetches a single entry by id.
	Find(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error)
}

// SyncEngine keeps the local cache aligned with the remote collection. The
// remote copy is authoritative: writes go to the server first and the local
// row is only updated once the server accepted the change.
type SyncEngine struct {
	repo   *db.Repository
	remote Remote
	log    *logging.Logger

	mu       sync.Mutex
	status   SyncStatus
	lastSync *time.Time
	lastErr  error
}

// SyncResult represents the result of a full sync operation.
type SyncResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Pulled    int
	Error     string
}

// NewSyncEngine creates a new SyncEngine.
func NewSyncEngine(repo *db.Repository, remote Remote) *SyncEngine {
	return &SyncEngine{
		repo:   repo,
		remote: remote,
		log:    logging.Get().With("sync"),
		status: SyncStatusIdle,
	}
}

// Status returns the current sync status.
func (e *SyncEngine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastSync returns the timestamp of the last successful sync.
func (e *SyncEngine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastError returns the last sync error.
func (e *SyncEngine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Sync pulls every remote entry into the local cache. Rows are inserted or
// updated in place; entries that exist only locally are left alone, deletion
// is never inferred from a pull.
func (e *SyncEngine) Sync(ctx context.Context) (*SyncResult, error) {
	e.mu.Lock()
	if e.status == SyncStatusSyncing {
		e.mu.Unlock()
		return nil, fmt.Errorf("sync already in progress")
	}
	e.status = SyncStatusSyncing
	e.lastErr = nil
	e.mu.Unlock()

	result := &SyncResult{StartTime: time.Now()}

	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)

		e.mu.Lock()
		if e.lastErr != nil {
			e.status = SyncStatusFailed
			result.Error = e.lastErr.Error()
		} else {
			e.status = SyncStatusIdle
			e.lastSync = &result.EndTime
		}
		e.mu.Unlock()
	}()

	entries, err := e.remote.List(ctx)
	if err != nil {
		e.mu.Lock()
		e.lastErr = fmt.Errorf("list remote entries: %w", err)
		e.mu.Unlock()
		return result, err
	}

	for i := range entries {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.lastErr = ctx.Err()
			e.mu.Unlock()
			return result, ctx.Err()
		default:
		}

		if err := e.repo.Upsert(ctx, &entries[i]); err != nil {
			e.mu.Lock()
			e.lastErr = fmt.Errorf("cache entry %s: %w", entries[i].ID, err)
			e.mu.Unlock()
			return result, err
		}
		result.Pulled++
	}

	e.log.Info("sync completed", map[string]interface{}{"pulled": result.Pulled})
	return result, nil
}

// Save writes the entry text for a date. An existing entry is updated on the
// server under its id; a date without an entry gets a new one. The local row
// follows only after the server write succeeded.
func (e *SyncEngine) Save(ctx context.Context, date time.Time, text string) (*models.JournalEntry, error) {
	existing, err := e.repo.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	var saved *models.JournalEntry
	if existing != nil {
		saved, err = e.remote.Update(ctx, existing, text)
	} else {
		summary := fmt.Sprintf("Journal entry for %s", models.Midnight(date).Format(models.DateFormat))
		saved, err = e.remote.Create(ctx, date, summary, text)
	}
	if err != nil {
		return nil, err
	}

	if err := e.repo.Upsert(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// Delete removes the entry for a date from the server and then from the
// local cache. A date without an entry is a no-op. When the server cannot be
// reached the local row is kept, so the entry reappears consistently on the
// next pull.
func (e *SyncEngine) Delete(ctx context.Context, date time.Time) error {
	existing, err := e.repo.GetByDate(ctx, date)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	// Confirm the server still holds the entry. A row the server already
	// dropped is just removed from the cache.
	_, err = e.remote.Find(ctx, existing.ID)
	switch {
	case err == nil:
		if err := e.remote.Delete(ctx, existing.ID); err != nil {
			return err
		}
	case apperrors.Is(err, apperrors.ErrNotFound):
	default:
		return err
	}
	return e.repo.Delete(ctx, date)
}
