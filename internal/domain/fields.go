package domain

import (
	"strings"
	"unicode/utf8"

	"butterfly/internal/errors"
)

// DisplayFieldsVersion is the current DisplayFields record version
const DisplayFieldsVersion = 1

// shortHeadlineRunes is how much of a headline fits in a node label
const shortHeadlineRunes = 30

// ErrUnsupportedFields is returned for DisplayFields newer than this build understands
var ErrUnsupportedFields = errors.New("unsupported display fields version")

// DisplayFields holds presentation attributes for a node. The graph engine
// treats them as opaque; only the scene and the info panel read them.
type DisplayFields struct {
	Version        int    `json:"version" yaml:"version"`
	Headline       string `json:"headline,omitempty" yaml:"headline,omitempty"`
	HeadlineShort  string `json:"headline_short,omitempty" yaml:"headline_short,omitempty"`
	Standfirst     string `json:"standfirst,omitempty" yaml:"standfirst,omitempty"`
	Date           string `json:"date,omitempty" yaml:"date,omitempty"`
	DateDifference string `json:"date_difference,omitempty" yaml:"date_difference,omitempty"`
	ImageURL       string `json:"image,omitempty" yaml:"image,omitempty"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	ReadMore       string `json:"readmore,omitempty" yaml:"readmore,omitempty"`
}

// Normalize fills the version of records that arrived without one
func (f DisplayFields) Normalize() DisplayFields {
	if f.Version == 0 {
		f.Version = DisplayFieldsVersion
	}
	return f
}

// Validate rejects records from a newer schema
func (f DisplayFields) Validate() error {
	if f.Version > DisplayFieldsVersion {
		return errors.Wrapf(ErrUnsupportedFields, "version %d", f.Version)
	}
	if f.Version < 0 {
		return errors.Wrapf(ErrUnsupportedFields, "version %d", f.Version)
	}
	return nil
}

// Label returns the short headline, deriving it when absent
func (f DisplayFields) Label() string {
	if f.HeadlineShort != "" {
		return f.HeadlineShort
	}
	return ShortHeadline(f.Headline)
}

// ShortHeadline truncates h to the label width with a trailing ellipsis
func ShortHeadline(h string) string {
	h = strings.TrimSpace(h)
	if utf8.RuneCountInString(h) <= shortHeadlineRunes {
		return h
	}
	runes := []rune(h)
	return string(runes[:shortHeadlineRunes]) + "..."
}
