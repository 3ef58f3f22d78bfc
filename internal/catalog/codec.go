package catalog

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

// FileVersion is the current catalog file format
const FileVersion = 1

// Format names a catalog file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the encoding from the file extension, defaulting to YAML
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// File represents the catalog file structure
type File struct {
	Version  int      `yaml:"version" json:"version"`
	Articles []Record `yaml:"articles" json:"articles"`
}

// Record represents an article in the catalog file
type Record struct {
	Key        string   `yaml:"key" json:"key"`
	Headline   string   `yaml:"headline" json:"headline"`
	Standfirst string   `yaml:"standfirst,omitempty" json:"standfirst,omitempty"`
	Date       string   `yaml:"date" json:"date"` // 2006-01-02, longer timestamps are truncated
	Thumbnail  string   `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Future     []string `yaml:"future,omitempty" json:"future,omitempty"`
	Past       []string `yaml:"past,omitempty" json:"past,omitempty"`
}

// LoadFile reads a catalog file
func LoadFile(path string) ([]domain.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open catalog file")
	}
	defer f.Close()

	articles, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return articles, nil
}

// Decode parses and validates a catalog
func Decode(r io.Reader, format Format) ([]domain.Article, error) {
	var file File
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON")
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "failed to parse YAML")
		}
	default:
		return nil, errors.Newf("unsupported format %q", format)
	}

	if file.Version > FileVersion {
		return nil, errors.Newf("catalog version %d is newer than supported version %d", file.Version, FileVersion)
	}
	return convertRecords(file.Articles)
}

func convertRecords(records []Record) ([]domain.Article, error) {
	seen := make(map[string]bool, len(records))
	out := make([]domain.Article, 0, len(records))
	for i, rec := range records {
		if seen[rec.Key] {
			return nil, errors.Wrapf(domain.ErrInvalidArticle, "duplicate key %s", rec.Key)
		}
		seen[rec.Key] = true

		published, err := parseDate(rec.Date)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrInvalidArticle, "article %d (%s): %v", i, rec.Key, err)
		}
		a := domain.Article{
			Key:        rec.Key,
			Headline:   rec.Headline,
			Standfirst: rec.Standfirst,
			Thumbnail:  rec.Thumbnail,
			Published:  published,
			Future:     rec.Future,
			Past:       rec.Past,
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// parseDate accepts 2013-06-24 and 2013-06-24T23:06:02Z, ignoring the time
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return time.Time{}, errors.Newf("invalid date %q", s)
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return time.Time{}, errors.Newf("invalid date %q", s)
	}
	return t, nil
}

const dateLayout = "2006-01-02"

// Encode writes articles as a catalog file
func Encode(w io.Writer, format Format, articles []domain.Article) error {
	file := File{Version: FileVersion, Articles: make([]Record, 0, len(articles))}
	for _, a := range articles {
		file.Articles = append(file.Articles, Record{
			Key:        a.Key,
			Headline:   a.Headline,
			Standfirst: a.Standfirst,
			Date:       a.Published.Format(dateLayout),
			Thumbnail:  a.Thumbnail,
			Future:     a.Future,
			Past:       a.Past,
		})
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(file)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(file); err != nil {
			return errors.Wrap(err, "failed to encode YAML")
		}
		return enc.Close()
	default:
		return errors.Newf("unsupported format %q", format)
	}
}
