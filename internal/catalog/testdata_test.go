package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"butterfly/internal/repository/sqlite"
)

const sampleYAML = `version: 1
articles:
  - key: world/2012/jan/01/origin
    headline: "Talks &amp; treaties: the &quot;long&quot; road to peace in a divided land"
    standfirst: Leaders meet
    date: 2012-01-01
    thumbnail: http://img.test/origin.jpg
    future:
      - world/2012/jan/05/next
      - world/2012/feb/01/later
      - world/2012/mar/01/missing
    past:
      - world/2011/dec/25/before
  - key: world/2012/jan/05/next
    headline: It&#39;s agreed
    date: 2012-01-05T10:00:00Z
  - key: world/2012/feb/01/later
    headline: Treaty signed
    date: 2012-02-01
  - key: world/2011/dec/25/before
    headline: Early signs
    date: 2011-12-25
  - key: world/2012/apr/01/lonely
    headline: Nothing follows
    date: 2012-04-01
`

func writeSample(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := NewService(repo, Options{ArticleURL: "https://news.test/", Seed: 7}, nil, nil)
	_, err = svc.Load(t.Context(), writeSample(t, "catalog.yaml", sampleYAML))
	require.NoError(t, err)
	return svc
}
