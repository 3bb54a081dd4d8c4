// Package db provides FTS5 search over journal entry text.
package db

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/kimhsiao/jour/internal/errors"
	"github.com/kimhsiao/jour/internal/models"
)

// PageSize is the number of search hits shown per page. Search fetches one
// extra row so the caller can tell whether another page exists.
const PageSize = 10

// snippetTokens bounds the excerpt around the first match.
const snippetTokens = 16

// Search runs a full-text query against entry text and returns up to
// PageSize+1 hits for the requested 1-based page, ordered best relevance
// first with ties broken by entry id. A malformed query surfaces as
// QuerySyntaxError, never as a crash.
func (r *Repository) Search(ctx context.Context, query string, page int) ([]models.SearchHit, error) {
	if page < 1 {
		page = 1
	}

	sqlQuery := fmt.Sprintf(`
	SELECT
		j.journal_date,
		snippet(journals_fts, 1, '', '', ' ... ', %d),
		rank
	FROM journals_fts
	JOIN journals j ON j.rowid = journals_fts.rowid
	WHERE journals_fts MATCH ?
	ORDER BY rank, j.journal_id
	LIMIT %d OFFSET ?
	`, snippetTokens, PageSize+1)

	rows, err := r.db.QueryContext(ctx, sqlQuery, query, PageSize*(page-1))
	if err != nil {
		if isQuerySyntaxError(err) {
			return nil, apperrors.Wrap(apperrors.ErrQuerySyntax, "malformed search query", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrStorage, "search journal entries", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var (
			dateS   string
			snippet string
			rank    float64
		)
		if err := rows.Scan(&dateS, &snippet, &rank); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan search hit", err)
		}
		date, err := models.ParseDate(dateS)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "corrupt journal date", err)
		}
		hits = append(hits, models.SearchHit{
			Date:    date,
			Snippet: snippet,
			// FTS5 rank is lower-is-better and negative; invert for display.
			Score: fmt.Sprintf("%.2f", -rank),
		})
	}
	if err := rows.Err(); err != nil {
		if isQuerySyntaxError(err) {
			return nil, apperrors.Wrap(apperrors.ErrQuerySyntax, "malformed search query", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrStorage, "iterate search hits", err)
	}
	return hits, nil
}

// isQuerySyntaxError recognizes FTS5 query parse failures. The driver only
// exposes them as generic SQLite errors, so match on the fts5 marker the
// engine always includes.
func isQuerySyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "fts5") || strings.Contains(msg, "malformed MATCH")
}
