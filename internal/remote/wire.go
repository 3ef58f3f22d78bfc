package remote

import (
	"encoding/json"
	"strconv"
	"strings"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

// Wire status codes
const (
	StatusSuccess = 1
	StatusEmpty   = -1
)

// RelatedRequest is the body of POST {base}/related
type RelatedRequest struct {
	ExternalKey string           `json:"external_key" validate:"required"`
	Direction   domain.Direction `json:"direction" validate:"required,oneof=f p"`
}

// Status accepts both numeric and string encodings ("1", 1, "-1", -1)
type Status int

// UnmarshalJSON implements json.Unmarshaler
func (s *Status) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid status %s", string(b))
	}
	*s = Status(n)
	return nil
}

// Envelope is every response body of the remote service
type Envelope struct {
	Status  Status    `json:"status"`
	Data    []Article `json:"data,omitempty" validate:"dive"`
	Message string    `json:"message,omitempty"`
}

// Article is the flat item record on the wire
type Article struct {
	Version        int    `json:"version,omitempty" validate:"gte=0"`
	ExternalKey    string `json:"external_key" validate:"required"`
	Headline       string `json:"headline"`
	HeadlineShort  string `json:"headline_short,omitempty"`
	Standfirst     string `json:"standfirst,omitempty"`
	Date           string `json:"date,omitempty"`
	DateDifference string `json:"date_difference,omitempty"`
	Image          string `json:"image,omitempty"`
	URL            string `json:"url,omitempty" validate:"omitempty,url"`
	ReadMore       string `json:"readmore,omitempty"`
}

// Item converts the wire record into the domain item
func (a Article) Item() domain.Item {
	return domain.Item{
		ExternalKey: a.ExternalKey,
		Fields: domain.DisplayFields{
			Version:        a.Version,
			Headline:       a.Headline,
			HeadlineShort:  a.HeadlineShort,
			Standfirst:     a.Standfirst,
			Date:           a.Date,
			DateDifference: a.DateDifference,
			ImageURL:       a.Image,
			URL:            a.URL,
			ReadMore:       a.ReadMore,
		}.Normalize(),
	}
}

// ArticleFromItem is the inverse of Article.Item
func ArticleFromItem(it domain.Item) Article {
	f := it.Fields.Normalize()
	return Article{
		Version:        f.Version,
		ExternalKey:    it.ExternalKey,
		Headline:       f.Headline,
		HeadlineShort:  f.HeadlineShort,
		Standfirst:     f.Standfirst,
		Date:           f.Date,
		DateDifference: f.DateDifference,
		Image:          f.ImageURL,
		URL:            f.URL,
		ReadMore:       f.ReadMore,
	}
}

// MarshalJSON always writes the numeric form
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(s))
}
