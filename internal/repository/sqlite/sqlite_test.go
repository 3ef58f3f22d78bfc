package sqlite

import (
	"context"
	"reflect"
	"testing"
	"time"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleArticles() []domain.Article {
	return []domain.Article{
		{
			Key:        "world/2012/jan/01/a",
			Headline:   "Alpha &amp; omega",
			Standfirst: "First",
			Thumbnail:  "http://img/a.jpg",
			Published:  date("2012-01-01"),
			Future:     []string{"world/2012/jan/05/b", "world/2012/feb/01/c", "world/2013/mar/01/d"},
		},
		{
			Key:       "world/2012/jan/05/b",
			Headline:  "Bravo",
			Published: date("2012-01-05"),
			Past:      []string{"world/2012/jan/01/a"},
		},
		{
			Key:       "world/2012/feb/01/c",
			Headline:  "Charlie",
			Published: date("2012-02-01"),
		},
		{
			Key:       "world/2013/mar/01/d",
			Headline:  "Delta",
			Published: date("2013-03-01"),
			Future:    []string{"x", "y", "z"},
		},
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestImportAndGetArticle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))

	n, err := repo.Count(ctx)
	assertNoError(t, err)
	assertEqual(t, 4, n)

	a, err := repo.GetArticle(ctx, "world/2012/jan/01/a")
	assertNoError(t, err)
	assertEqual(t, "Alpha &amp; omega", a.Headline)
	assertEqual(t, "First", a.Standfirst)
	assertEqual(t, "http://img/a.jpg", a.Thumbnail)
	assertEqual(t, date("2012-01-01"), a.Published)
	assertEqual(t, []string{"world/2012/jan/05/b", "world/2012/feb/01/c", "world/2013/mar/01/d"}, a.Future)
	if len(a.Past) != 0 {
		t.Errorf("expected no past keys, got %v", a.Past)
	}

	b, err := repo.GetArticle(ctx, "world/2012/jan/05/b")
	assertNoError(t, err)
	assertEqual(t, []string{"world/2012/jan/01/a"}, b.Past)
	assertEqual(t, "", b.Standfirst)
}

func TestGetArticleNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetArticle(context.Background(), "nope")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListArticles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))

	all, err := repo.ListArticles(ctx)
	assertNoError(t, err)
	assertEqual(t, 4, len(all))
	assertEqual(t, "world/2012/feb/01/c", all[0].Key)
	assertEqual(t, "world/2012/jan/01/a", all[1].Key)
	assertEqual(t, 3, len(all[1].Future))
	assertEqual(t, []string{"x", "y", "z"}, all[3].Future)
}

func TestImportReplaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))
	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()[:1]))

	n, err := repo.Count(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, n)
}

func TestImportRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))

	bad := append(sampleArticles(), domain.Article{Key: "no-date", Headline: "x"})
	err := repo.ImportArticles(ctx, bad)
	if !errors.Is(err, domain.ErrInvalidArticle) {
		t.Fatalf("expected ErrInvalidArticle, got %v", err)
	}

	// The previous catalog is untouched
	n, err := repo.Count(ctx)
	assertNoError(t, err)
	assertEqual(t, 4, n)
}

func TestGetArticles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))

	got, err := repo.GetArticles(ctx, []string{"world/2012/feb/01/c", "missing", "world/2013/mar/01/d"})
	assertNoError(t, err)
	assertEqual(t, 2, len(got))
	assertEqual(t, "Charlie", got["world/2012/feb/01/c"].Headline)
	if _, ok := got["missing"]; ok {
		t.Error("unknown key should be absent")
	}

	empty, err := repo.GetArticles(ctx, nil)
	assertNoError(t, err)
	assertEqual(t, 0, len(empty))
}

func TestCandidates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))

	tests := []struct {
		name      string
		year      int
		minFuture int
		want      []string
	}{
		{"three future in 2012", 2012, 3, []string{"world/2012/jan/01/a"}},
		{"any in 2012", 2012, 0, []string{"world/2012/feb/01/c", "world/2012/jan/01/a", "world/2012/jan/05/b"}},
		{"2013", 2013, 3, []string{"world/2013/mar/01/d"}},
		{"none", 2014, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Candidates(ctx, tt.year, tt.minFuture)
			assertNoError(t, err)
			assertEqual(t, tt.want, got)
		})
	}
}

func TestUpsertAndDeleteArticle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	assertNoError(t, repo.ImportArticles(ctx, sampleArticles()))

	a := sampleArticles()[0]
	a.Headline = "Renamed"
	a.Future = []string{"world/2012/feb/01/c"}
	assertNoError(t, repo.UpsertArticle(ctx, &a))

	got, err := repo.GetArticle(ctx, a.Key)
	assertNoError(t, err)
	assertEqual(t, "Renamed", got.Headline)
	assertEqual(t, []string{"world/2012/feb/01/c"}, got.Future)

	assertNoError(t, repo.DeleteArticle(ctx, a.Key))
	if _, err := repo.GetArticle(ctx, a.Key); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteArticle(ctx, a.Key); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	// Related rows went with the article
	var n int
	assertNoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM related WHERE article_key = ?`, a.Key).Scan(&n))
	assertEqual(t, 0, n)
}

func TestUpsertRejectsSelfReference(t *testing.T) {
	repo := newTestRepo(t)
	a := domain.Article{Key: "k", Headline: "h", Published: date("2012-01-01"), Future: []string{"k"}}
	if err := repo.UpsertArticle(context.Background(), &a); !errors.Is(err, domain.ErrInvalidArticle) {
		t.Fatalf("expected ErrInvalidArticle, got %v", err)
	}
}
