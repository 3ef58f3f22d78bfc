package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/repository"
)

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository. dbPath may be ":memory:".
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS articles (
		key TEXT PRIMARY KEY,
		headline TEXT NOT NULL,
		standfirst TEXT,
		thumbnail TEXT,
		published TEXT NOT NULL,
		year INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS related (
		article_key TEXT NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('f', 'p')),
		rank INTEGER NOT NULL,
		related_key TEXT NOT NULL,
		PRIMARY KEY (article_key, direction, rank),
		FOREIGN KEY (article_key) REFERENCES articles(key) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_articles_year ON articles(year);
	CREATE INDEX IF NOT EXISTS idx_related_direction ON related(article_key, direction);
	`

	_, err := r.db.Exec(schema)
	return err
}

// GetArticle loads one article with its related keys
func (r *Repository) GetArticle(ctx context.Context, key string) (*domain.Article, error) {
	var row articleRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE key = ?`, key,
	).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(repository.ErrNotFound, "article %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query article %s", key)
	}

	a, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	if err := r.loadRelated(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) loadRelated(ctx context.Context, a *domain.Article) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT direction, related_key FROM related
		WHERE article_key = ?
		ORDER BY direction, rank
	`, a.Key)
	if err != nil {
		return errors.Wrapf(err, "failed to query related keys of %s", a.Key)
	}
	defer rows.Close()

	for rows.Next() {
		var dir, key string
		if err := rows.Scan(&dir, &key); err != nil {
			return errors.Wrap(err, "failed to scan related key")
		}
		if domain.Direction(dir) == domain.DirectionPast {
			a.Past = append(a.Past, key)
		} else {
			a.Future = append(a.Future, key)
		}
	}
	return rows.Err()
}

// GetArticles loads the listed articles without related keys. Unknown keys
// are absent from the result.
func (r *Repository) GetArticles(ctx context.Context, keys []string) (map[string]*domain.Article, error) {
	out := make(map[string]*domain.Article, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query articles")
	}
	defer rows.Close()

	for rows.Next() {
		var row articleRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, errors.Wrap(err, "failed to scan article")
		}
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[a.Key] = a
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating articles")
	}
	return out, nil
}

// Candidates returns the keys of articles published in year with at least
// minFuture related future keys, sorted by key
func (r *Repository) Candidates(ctx context.Context, year, minFuture int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.key FROM articles a
		WHERE a.year = ?
		  AND (SELECT COUNT(*) FROM related r WHERE r.article_key = a.key AND r.direction = 'f') >= ?
		ORDER BY a.key
	`, year, minFuture)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query candidates")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "failed to scan candidate")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ListArticles loads every article with its related keys, sorted by key
func (r *Repository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY key`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query articles")
	}

	var out []domain.Article
	for rows.Next() {
		var row articleRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan article")
		}
		a, err := row.toDomain()
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "error iterating articles")
	}
	// Release the only connection before the related queries
	rows.Close()

	for i := range out {
		if err := r.loadRelated(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Count returns the number of articles
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count articles")
	}
	return n, nil
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UpsertArticle inserts or replaces an article and its related keys
func (r *Repository) UpsertArticle(ctx context.Context, a *domain.Article) error {
	if err := a.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := upsert(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func upsert(ctx context.Context, ex execer, a *domain.Article) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`, year)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			headline = excluded.headline,
			standfirst = excluded.standfirst,
			thumbnail = excluded.thumbnail,
			published = excluded.published,
			year = excluded.year,
			updated_at = CURRENT_TIMESTAMP
	`, insertArgs(a)...)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert article %s", a.Key)
	}

	if _, err := ex.ExecContext(ctx, `DELETE FROM related WHERE article_key = ?`, a.Key); err != nil {
		return errors.Wrapf(err, "failed to clear related keys of %s", a.Key)
	}
	for _, dir := range []domain.Direction{domain.DirectionFuture, domain.DirectionPast} {
		for rank, key := range a.Related(dir) {
			if _, err := ex.ExecContext(ctx,
				`INSERT INTO related (article_key, direction, rank, related_key) VALUES (?, ?, ?, ?)`,
				a.Key, string(dir), rank, key,
			); err != nil {
				return errors.Wrapf(err, "failed to insert related key %s of %s", key, a.Key)
			}
		}
	}
	return nil
}

// DeleteArticle removes an article and its related keys
func (r *Repository) DeleteArticle(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM related WHERE article_key = ?`, key); err != nil {
		return errors.Wrapf(err, "failed to delete related keys of %s", key)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE key = ?`, key)
	if err != nil {
		return errors.Wrapf(err, "failed to delete article %s", key)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(repository.ErrNotFound, "article %s", key)
	}
	return nil
}

// ImportArticles replaces the whole catalog in a single transaction
func (r *Repository) ImportArticles(ctx context.Context, articles []domain.Article) error {
	for i := range articles {
		if err := articles[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM related`); err != nil {
		return errors.Wrap(err, "failed to clear related keys")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return errors.Wrap(err, "failed to clear articles")
	}
	for i := range articles {
		if err := upsert(ctx, tx, &articles[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit import")
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
