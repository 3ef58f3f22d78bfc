package catalog

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/metrics"
	"butterfly/internal/repository"
	"butterfly/internal/watcher"
)

const (
	// DisplayDateLayout is how dates appear in display records
	DisplayDateLayout = "02 Jan 2006"

	// SeedDateDifference marks a record that is not relative to another
	SeedDateDifference = "NA"

	DefaultRandomYear  = 2012
	DefaultRandomCount = 5
	DefaultMinFuture   = 3
)

var headlineEntities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&quot;", `"`)

// Options configure a Service
type Options struct {
	ArticleURL  string // Link prefix, the article key is appended
	RandomYear  int
	RandomCount int
	MinFuture   int    // Future keys a random seed needs, negative disables
	Seed        uint64 // 0 derives a seed from the clock
}

func (o Options) withDefaults() Options {
	o.ArticleURL = strings.TrimSuffix(o.ArticleURL, "/")
	if o.ArticleURL == "" {
		o.ArticleURL = "https://www.theguardian.com"
	}
	if o.RandomYear == 0 {
		o.RandomYear = DefaultRandomYear
	}
	if o.RandomCount <= 0 {
		o.RandomCount = DefaultRandomCount
	}
	if o.MinFuture < 0 {
		o.MinFuture = 0
	} else if o.MinFuture == 0 {
		o.MinFuture = DefaultMinFuture
	}
	return o
}

// Suggestion is a random seed offered to the user
type Suggestion struct {
	ExternalKey string `json:"external_key"`
	Headline    string `json:"headline"`
	Date        string `json:"date"` // 2012-3-4
}

// Service answers related-article queries from the repository
type Service struct {
	repo    repository.Repository
	opts    Options
	metrics *metrics.Collector
	log     *zap.SugaredLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a catalog service over repo
func NewService(repo repository.Repository, opts Options, m *metrics.Collector, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Service{
		repo:    repo,
		opts:    opts,
		metrics: m,
		log:     log,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Related returns the cleaned records related to externalKey in direction
// dir, in rank order. Keys missing from the catalog are skipped, and an
// unknown externalKey has nothing related.
func (s *Service) Related(ctx context.Context, externalKey string, dir domain.Direction) (domain.RelatedResult, error) {
	origin, err := s.repo.GetArticle(ctx, externalKey)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debugw("Related lookup for unknown article", "article", externalKey)
		return domain.Empty(), nil
	}
	if err != nil {
		return domain.RelatedResult{}, err
	}

	keys := origin.Related(dir)
	if len(keys) == 0 {
		return domain.Empty(), nil
	}
	found, err := s.repo.GetArticles(ctx, keys)
	if err != nil {
		return domain.RelatedResult{}, err
	}

	items := make([]domain.Item, 0, len(keys))
	for _, k := range keys {
		a, ok := found[k]
		if !ok {
			s.log.Debugw("Related key missing from catalog", "article", externalKey, "related", k)
			continue
		}
		items = append(items, s.item(a, dateDifference(origin, a, dir)))
	}
	if len(items) == 0 {
		return domain.Empty(), nil
	}
	return domain.Success(items...), nil
}

// Article returns one cleaned record for seeding a session
func (s *Service) Article(ctx context.Context, externalKey string) (domain.Item, error) {
	a, err := s.repo.GetArticle(ctx, externalKey)
	if err != nil {
		return domain.Item{}, err
	}
	return s.item(a, SeedDateDifference), nil
}

// Random draws up to n distinct seeds published in year with enough future
// related keys. Zero values fall back to the configured defaults.
func (s *Service) Random(ctx context.Context, year, n int) ([]Suggestion, error) {
	if year == 0 {
		year = s.opts.RandomYear
	}
	if n <= 0 {
		n = s.opts.RandomCount
	}

	keys, err := s.repo.Candidates(ctx, year, s.opts.MinFuture)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	s.mu.Unlock()
	if len(keys) > n {
		keys = keys[:n]
	}

	found, err := s.repo.GetArticles(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(keys))
	for _, k := range keys {
		a := found[k]
		if a == nil {
			continue
		}
		out = append(out, Suggestion{
			ExternalKey: a.Key,
			Headline:    CleanHeadline(a.Headline),
			Date:        fmt.Sprintf("%d-%d-%d", a.Published.Year(), a.Published.Month(), a.Published.Day()),
		})
	}
	return out, nil
}

// Load replaces the catalog with the contents of path
func (s *Service) Load(ctx context.Context, path string) (int, error) {
	articles, err := LoadFile(path)
	if err == nil {
		err = s.repo.ImportArticles(ctx, articles)
	}
	if err != nil {
		s.metrics.CatalogLoaded(0, err)
		return 0, err
	}
	s.metrics.CatalogLoaded(len(articles), nil)
	s.log.Infow("Catalog loaded", "path", path, "articles", len(articles))
	return len(articles), nil
}

// Export writes the whole catalog to w
func (s *Service) Export(ctx context.Context, w io.Writer, format Format) (int, error) {
	articles, err := s.repo.ListArticles(ctx)
	if err != nil {
		return 0, err
	}
	if err := Encode(w, format, articles); err != nil {
		return 0, err
	}
	return len(articles), nil
}

// Watch reloads path whenever it changes until ctx is cancelled. A failed
// reload keeps the previous catalog.
func (s *Service) Watch(ctx context.Context, path string, debounce time.Duration) error {
	w := watcher.New(path, func() {
		if _, err := s.Load(ctx, path); err != nil {
			s.log.Warnw("Catalog reload failed, keeping previous catalog", "path", path, "error", err)
		}
	}, s.log.Named("watcher")).WithDebounce(debounce)
	return w.Watch(ctx)
}

func (s *Service) item(a *domain.Article, dateDiff string) domain.Item {
	url := s.opts.ArticleURL + "/" + a.Key
	headline := CleanHeadline(a.Headline)
	return domain.Item{
		ExternalKey: a.Key,
		Fields: domain.DisplayFields{
			Version:        domain.DisplayFieldsVersion,
			Headline:       headline,
			HeadlineShort:  clippedHeadline(headline),
			Standfirst:     a.Standfirst,
			Date:           a.Published.Format(DisplayDateLayout),
			DateDifference: dateDiff,
			ImageURL:       a.Thumbnail,
			URL:            url,
			ReadMore:       fmt.Sprintf("<a href='%s' target='_blank'>Click here to read more</a>", url),
		},
	}
}

// CleanHeadline decodes the HTML entities found in source headlines
func CleanHeadline(h string) string {
	return headlineEntities.Replace(h)
}

// clippedHeadline is the headline_short the catalog serves: the first 30
// characters followed by "..." even when nothing was cut. Labels built on
// the client side use domain.ShortHeadline, which only marks real cuts.
func clippedHeadline(h string) string {
	runes := []rune(h)
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return string(runes) + "..."
}

// dateDifference renders "N days later" or "N days earlier"
func dateDifference(origin, related *domain.Article, dir domain.Direction) string {
	days := domain.DaysBetween(origin.Published, related.Published)
	if days < 0 {
		days = -days
	}
	return fmt.Sprintf("%d days %s", days, dir.Word())
}
