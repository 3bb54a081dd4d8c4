// Package sync keeps the local journal cache aligned with a remote CalDAV
// collection.
package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/logging"
	"github.com/kimhsiao/jour/internal/models"
	"github.com/kimhsiao/jour/internal/settings"
	"github.com/kimhsiao/jour/internal/vjournal"
)

const requestTimeout = 30 * time.Second

// CalDAVClient implements Remote against a CalDAV server holding VJOURNAL
// objects. Each journal entry is stored as one calendar object named
// <uid>.ics inside the configured collection.
type CalDAVClient struct {
	client         *caldav.Client
	collectionPath string
	log            *logging.Logger
}

// NewCalDAVClient creates a client for the collection named in the stored
// configuration. The configuration must carry a server URL, credentials and
// a collection URL.
func NewCalDAVClient(cfg *settings.Config) (*CalDAVClient, error) {
	if !cfg.RemoteConfigured() {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, "remote journal collection is not configured")
	}

	httpClient := webdav.HTTPClientWithBasicAuth(
		&http.Client{Timeout: requestTimeout},
		cfg.CaldavUsername,
		cfg.CaldavPassword,
	)
	client, err := caldav.NewClient(httpClient, cfg.CaldavURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "create caldav client", err)
	}

	collection, err := url.Parse(cfg.CaldavCollectionURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "parse collection url", err)
	}
	path := collection.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return &CalDAVClient{
		client:         client,
		collectionPath: path,
		log:            logging.Get().With("caldav"),
	}, nil
}

// objectPath returns the location of one entry inside the collection.
func (c *CalDAVClient) objectPath(id uuid.UUID) string {
	return c.collectionPath + id.String() + ".ics"
}

// List fetches every journal entry in the collection.
func (c *CalDAVClient) List(ctx context.Context) ([]models.JournalEntry, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{Name: "VJOURNAL"},
			},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, c.collectionPath, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "query journal collection", err)
	}

	entries := make([]models.JournalEntry, 0, len(objects))
	for _, obj := range objects {
		entry, err := entryFromCalendar(obj)
		if err != nil {
			c.log.Warn("skipping unreadable journal object", map[string]interface{}{
				"path":  obj.Path,
				"error": err.Error(),
			})
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Create stores a new journal entry in the collection. The entry id is
// minted here so the object path is known before the upload.
func (c *CalDAVClient) Create(ctx context.Context, date time.Time, summary, text string) (*models.JournalEntry, error) {
	id := uuid.New()
	cal := vjournal.New(id.String(), date, summary, text)

	if _, err := c.client.PutCalendarObject(ctx, c.objectPath(id), cal); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "store journal entry", err)
	}

	data, err := vjournal.EncodeCalendar(cal)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "encode journal entry", err)
	}
	return &models.JournalEntry{
		ID:   id,
		Date: models.Midnight(date),
		Data: data,
		Text: text,
	}, nil
}

// Update replaces the text of an existing remote entry, keeping every other
// property of the stored document intact.
func (c *CalDAVClient) Update(ctx context.Context, entry *models.JournalEntry, text string) (*models.JournalEntry, error) {
	cal, err := vjournal.DecodeCalendar(entry.Data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "parse stored journal document", err)
	}
	if err := vjournal.SetDescription(cal, text); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "rewrite journal document", err)
	}

	if _, err := c.client.PutCalendarObject(ctx, c.objectPath(entry.ID), cal); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "store journal entry", err)
	}

	data, err := vjournal.EncodeCalendar(cal)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "encode journal entry", err)
	}
	updated := *entry
	updated.Data = data
	updated.Text = text
	return &updated, nil
}

// Delete removes an entry from the collection. Deleting an entry the server
// does not hold is not an error.
func (c *CalDAVClient) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.RemoveAll(ctx, c.objectPath(id)); err != nil {
		if webdav.IsNotFound(err) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrRemoteUnavailable, "delete journal entry", err)
	}
	return nil
}

// Find fetches a single entry by id.
func (c *CalDAVClient) Find(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error) {
	obj, err := c.client.GetCalendarObject(ctx, c.objectPath(id))
	if err != nil {
		if webdav.IsNotFound(err) {
			return nil, apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("journal entry %s not found on server", id))
		}
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "fetch journal entry", err)
	}
	entry, err := entryFromCalendar(*obj)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "parse journal entry", err)
	}
	return entry, nil
}

// entryFromCalendar converts a fetched calendar object into a journal entry.
func entryFromCalendar(obj caldav.CalendarObject) (*models.JournalEntry, error) {
	uid, date, description, err := vjournal.ExtractCalendar(obj.Data)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return nil, fmt.Errorf("journal uid %q is not a uuid: %w", uid, err)
	}
	data, err := vjournal.EncodeCalendar(obj.Data)
	if err != nil {
		return nil, err
	}
	return &models.JournalEntry{
		ID:   id,
		Date: date,
		Data: data,
		Text: description,
	}, nil
}
