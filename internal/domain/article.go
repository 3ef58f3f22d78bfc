package domain

import (
	"strings"
	"time"

	"butterfly/internal/errors"
)

// ErrInvalidArticle is returned for catalog records missing required data
var ErrInvalidArticle = errors.New("invalid article")

// Article is one record of the reference catalog. Future and Past hold the
// precomputed related keys in rank order.
type Article struct {
	Key        string
	Headline   string
	Standfirst string
	Thumbnail  string
	Published  time.Time
	Future     []string
	Past       []string
}

// Related returns the related keys for dir
func (a *Article) Related(dir Direction) []string {
	if dir == DirectionPast {
		return a.Past
	}
	return a.Future
}

// Validate checks required fields and rejects self references
func (a *Article) Validate() error {
	if strings.TrimSpace(a.Key) == "" {
		return errors.Wrap(ErrInvalidArticle, "key is required")
	}
	if a.Published.IsZero() {
		return errors.Wrapf(ErrInvalidArticle, "%s: date is required", a.Key)
	}
	for _, k := range append(append([]string(nil), a.Future...), a.Past...) {
		if k == a.Key {
			return errors.Wrapf(ErrInvalidArticle, "%s: relates to itself", a.Key)
		}
	}
	return nil
}

// DaysBetween is the whole number of days from a to b, ignoring time of day
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
