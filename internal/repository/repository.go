package repository

import (
	"context"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

// ErrNotFound is returned when an article key is not in the catalog
var ErrNotFound = errors.New("article not found")

// Repository defines the interface for catalog data access
type Repository interface {
	// Read operations
	GetArticle(ctx context.Context, key string) (*domain.Article, error)
	GetArticles(ctx context.Context, keys []string) (map[string]*domain.Article, error)
	Candidates(ctx context.Context, year, minFuture int) ([]string, error)
	ListArticles(ctx context.Context) ([]domain.Article, error)
	Count(ctx context.Context) (int, error)

	// Write operations
	UpsertArticle(ctx context.Context, a *domain.Article) error
	DeleteArticle(ctx context.Context, key string) error

	// Bulk operations
	ImportArticles(ctx context.Context, articles []domain.Article) error

	// Close releases resources
	Close() error
}
