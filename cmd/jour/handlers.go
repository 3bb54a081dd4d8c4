package main

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/kimhsiao/jour/internal/db"
	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/models"
	"github.com/yuin/goldmark"
)

// dayCell is one cell of the month grid. Day zero renders as a blank cell
// padding the first and last week.
type dayCell struct {
	Day      int
	URL      string
	HasEntry bool
}

type monthView struct {
	Title   string
	Weeks   [][]dayCell
	PrevURL string
	NextURL string
}

type dayView struct {
	Date     time.Time
	DateText string
	HTML     template.HTML
	EditURL  string
	MonthURL string
}

type editView struct {
	DateText  string
	Text      string
	SaveURL   string
	DeleteURL string
	HasEntry  bool
}

type searchView struct {
	Query    string
	Page     int
	Hits     []models.SearchHit
	HasMore  bool
	NextURL  string
	BadQuery bool
}

type caldavView struct {
	Configured bool
	Status     string
	LastSync   string
	LastError  string
}

func monthURL(t time.Time) string {
	return fmt.Sprintf("/%04d/%02d", t.Year(), int(t.Month()))
}

func dayURL(t time.Time) string {
	return fmt.Sprintf("/%04d/%02d/%02d", t.Year(), int(t.Month()), t.Day())
}

func monthFromPath(r *http.Request) (time.Time, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year %q", r.PathValue("year"))
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %q", r.PathValue("month"))
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

func dateFromPath(r *http.Request) (time.Time, error) {
	first, err := monthFromPath(r)
	if err != nil {
		return time.Time{}, err
	}
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q", r.PathValue("day"))
	}
	date := first.AddDate(0, 0, day-1)
	if date.Day() != day {
		return time.Time{}, fmt.Errorf("day %d does not exist in %s", day, first.Format("January 2006"))
	}
	return date, nil
}

// handleIndex redirects to the current month.
func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, monthURL(time.Now()), http.StatusFound)
}

// handleMonth renders the month grid, Sunday first, with links on days that
// have an entry.
func (s *server) handleMonth(w http.ResponseWriter, r *http.Request) {
	first, err := monthFromPath(r)
	if err != nil {
		s.clientError(w, http.StatusNotFound, err.Error())
		return
	}
	last := first.AddDate(0, 1, -1)

	dates, err := s.repo.ListDatesInRange(r.Context(), first, last)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	hasEntry := make(map[int]bool, len(dates))
	for _, d := range dates {
		hasEntry[d.Day()] = true
	}

	var weeks [][]dayCell
	week := make([]dayCell, int(first.Weekday()))
	for day := 1; day <= last.Day(); day++ {
		week = append(week, dayCell{
			Day:      day,
			URL:      dayURL(first.AddDate(0, 0, day-1)),
			HasEntry: hasEntry[day],
		})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = nil
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, dayCell{})
		}
		weeks = append(weeks, week)
	}

	s.render(w, r, "month", first.Format("January 2006"), monthView{
		Title:   first.Format("January 2006"),
		Weeks:   weeks,
		PrevURL: monthURL(first.AddDate(0, -1, 0)),
		NextURL: monthURL(first.AddDate(0, 1, 0)),
	})
}

// handleDay renders the entry for a date as markdown. A date without an
// entry goes straight to the edit form.
func (s *server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := dateFromPath(r)
	if err != nil {
		s.clientError(w, http.StatusNotFound, err.Error())
		return
	}

	entry, err := s.repo.GetByDate(r.Context(), date)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if entry == nil {
		http.Redirect(w, r, dayURL(date)+"/edit", http.StatusFound)
		return
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(entry.Text), &buf); err != nil {
		s.serverError(w, r, err)
		return
	}

	s.render(w, r, "day", date.Format("January 2, 2006"), dayView{
		Date:     date,
		DateText: date.Format("Monday, January 2, 2006"),
		HTML:     template.HTML(buf.String()),
		EditURL:  dayURL(date) + "/edit",
		MonthURL: monthURL(date),
	})
}

func (s *server) handleDayEdit(w http.ResponseWriter, r *http.Request) {
	date, err := dateFromPath(r)
	if err != nil {
		s.clientError(w, http.StatusNotFound, err.Error())
		return
	}

	entry, err := s.repo.GetByDate(r.Context(), date)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	text := ""
	if entry != nil {
		text = entry.Text
	}

	s.render(w, r, "edit", "Edit "+date.Format("January 2, 2006"), editView{
		DateText:  date.Format("Monday, January 2, 2006"),
		Text:      text,
		SaveURL:   dayURL(date),
		DeleteURL: dayURL(date) + "/delete",
		HasEntry:  entry != nil,
	})
}

// handleDaySave writes the submitted text to the server first and the local
// cache second, then returns to the day view.
func (s *server) handleDaySave(w http.ResponseWriter, r *http.Request) {
	date, err := dateFromPath(r)
	if err != nil {
		s.clientError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid form")
		return
	}
	text := r.PostFormValue("text")

	engine, err := s.syncEngine(r.Context())
	if err != nil {
		s.remoteError(w, r, err)
		return
	}
	if _, err := engine.Save(r.Context(), date, text); err != nil {
		s.remoteError(w, r, err)
		return
	}
	http.Redirect(w, r, dayURL(date), http.StatusFound)
}

func (s *server) handleDayDelete(w http.ResponseWriter, r *http.Request) {
	date, err := dateFromPath(r)
	if err != nil {
		s.clientError(w, http.StatusNotFound, err.Error())
		return
	}

	engine, err := s.syncEngine(r.Context())
	if err != nil {
		s.remoteError(w, r, err)
		return
	}
	if err := engine.Delete(r.Context(), date); err != nil {
		s.remoteError(w, r, err)
		return
	}
	http.Redirect(w, r, monthURL(date), http.StatusFound)
}

// handleSearch renders a page of full-text matches. The store returns one
// hit beyond the page size, which only signals that a next page exists.
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	view := searchView{Query: query, Page: page}
	if query != "" {
		hits, err := s.repo.Search(r.Context(), query, page)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrQuerySyntax) {
				view.BadQuery = true
				s.render(w, r, "search", "Search", view)
				return
			}
			s.serverError(w, r, err)
			return
		}
		if len(hits) > db.PageSize {
			hits = hits[:db.PageSize]
			view.HasMore = true
			view.NextURL = fmt.Sprintf("/search?q=%s&page=%d", template.URLQueryEscaper(query), page+1)
		}
		view.Hits = hits
	}

	s.render(w, r, "search", "Search", view)
}

// handleCaldav shows the connection status and the outcome of the last
// sync.
func (s *server) handleCaldav(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	view := caldavView{Configured: cfg.RemoteConfigured()}
	if view.Configured {
		engine, err := s.syncEngine(r.Context())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		view.Status = string(engine.Status())
		if last := engine.LastSync(); last != nil {
			view.LastSync = last.Format(time.RFC1123)
		}
		if lastErr := engine.LastError(); lastErr != nil {
			view.LastError = lastErr.Error()
		}
	}
	s.render(w, r, "caldav", "CalDAV", view)
}

// handleCaldavSync pulls every remote entry into the local cache.
func (s *server) handleCaldavSync(w http.ResponseWriter, r *http.Request) {
	engine, err := s.syncEngine(r.Context())
	if err != nil {
		s.remoteError(w, r, err)
		return
	}
	if _, err := engine.Sync(r.Context()); err != nil {
		s.log.Warn("sync failed", map[string]interface{}{"error": err.Error()})
	}
	http.Redirect(w, r, "/caldav", http.StatusFound)
}

func (s *server) handleCredentialsForm(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, "credentials", "CalDAV credentials", map[string]interface{}{
		"URL":      cfg.CaldavURL,
		"Username": cfg.CaldavUsername,
	})
}

func (s *server) handleCredentialsSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid form")
		return
	}
	url := r.PostFormValue("url")
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if url == "" || username == "" || password == "" {
		s.clientError(w, http.StatusBadRequest, "url, username and password are required")
		return
	}

	if err := s.store.SaveCredentials(r.Context(), url, username, password); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/configure/collection", http.StatusFound)
}

func (s *server) handleCollectionForm(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, "collection", "Journal collection", map[string]interface{}{
		"CollectionURL": cfg.CaldavCollectionURL,
	})
}

func (s *server) handleCollectionSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid form")
		return
	}
	collectionURL := r.PostFormValue("collection_url")
	if collectionURL == "" {
		s.clientError(w, http.StatusBadRequest, "collection_url is required")
		return
	}

	if err := s.store.SaveCollection(r.Context(), collectionURL); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/caldav", http.StatusFound)
}

// remoteError maps remote failures to 502 and everything else to 500.
func (s *server) remoteError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.Is(err, apperrors.ErrRemoteUnavailable) {
		s.log.Warn("remote unavailable", map[string]interface{}{"path": r.URL.Path, "error": err.Error()})
		http.Error(w, "The journal server cannot be reached right now.", http.StatusBadGateway)
		return
	}
	s.serverError(w, r, err)
}
