package sqlite

import (
	"database/sql"
	"time"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

// dateLayout is how publication dates are stored
const dateLayout = "2006-01-02"

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Article Row Scanner
// ============================================================================
//
// CRITICAL: Column order must match between:
// - articleColumns constant
// - scanArgs() return slice
// - insertArgs()

const articleColumns = `key, headline, standfirst, thumbnail, published`

// articleRow holds all columns from an article query for scanning
type articleRow struct {
	Key        string
	Headline   string
	Standfirst sql.NullString
	Thumbnail  sql.NullString
	Published  string
}

// scanArgs returns pointers to all fields for sql.Scan()
func (r *articleRow) scanArgs() []interface{} {
	return []interface{}{
		&r.Key,        // 1
		&r.Headline,   // 2
		&r.Standfirst, // 3
		&r.Thumbnail,  // 4
		&r.Published,  // 5
	}
}

// toDomain converts the scanned row to a domain.Article without its
// related keys
func (r *articleRow) toDomain() (*domain.Article, error) {
	published, err := time.Parse(dateLayout, r.Published)
	if err != nil {
		return nil, errors.Wrapf(err, "parse published date of %s", r.Key)
	}
	return &domain.Article{
		Key:        r.Key,
		Headline:   r.Headline,
		Standfirst: nullToString(r.Standfirst),
		Thumbnail:  nullToString(r.Thumbnail),
		Published:  published,
	}, nil
}

// insertArgs returns article values in articleColumns order plus the year
func insertArgs(a *domain.Article) []interface{} {
	return []interface{}{
		a.Key,
		a.Headline,
		stringToNull(a.Standfirst),
		stringToNull(a.Thumbnail),
		a.Published.Format(dateLayout),
		a.Published.Year(),
	}
}
