package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/remote"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(newTestService(t), nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *remote.Client {
	t.Helper()
	c, err := remote.New(remote.Config{BaseURL: srv.URL + "/catalog"}, nil)
	require.NoError(t, err)
	return c
}

func TestClientRelatedThroughHandler(t *testing.T) {
	c := newClient(t, newCatalogServer(t))

	res, err := c.Related(context.Background(), "world/2012/jan/01/origin", domain.DirectionFuture)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "world/2012/jan/05/next", res.Items[0].ExternalKey)
	assert.Equal(t, "4 days later", res.Items[0].Fields.DateDifference)

	empty, err := c.Related(context.Background(), "world/2012/apr/01/lonely", domain.DirectionFuture)
	require.NoError(t, err)
	assert.Equal(t, domain.RelatedEmpty, empty.Status)

	unknown, err := c.Related(context.Background(), "nope", domain.DirectionPast)
	require.NoError(t, err)
	assert.True(t, unknown.IsEmpty())
}

func TestClientArticleThroughHandler(t *testing.T) {
	c := newClient(t, newCatalogServer(t))

	item, err := c.Article(context.Background(), "world/2012/jan/01/origin")
	require.NoError(t, err)
	assert.Equal(t, "world/2012/jan/01/origin", item.ExternalKey)
	assert.Equal(t, "NA", item.Fields.DateDifference)

	_, err = c.Article(context.Background(), "world/2099/jan/01/none")
	assert.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)
}

func TestRelatedBadRequests(t *testing.T) {
	srv := newCatalogServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"missing key", `{"direction":"f"}`},
		{"bad direction", `{"external_key":"world/2012/jan/01/origin","direction":"sideways"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/catalog/related", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRandomEndpoint(t *testing.T) {
	srv := newCatalogServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"default year", "", http.StatusOK, `"status":1`},
		{"empty year", "?year=2011", http.StatusOK, `"status":-1`},
		{"bad n", "?n=lots", http.StatusBadRequest, `invalid n`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/catalog/random" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			buf := new(strings.Builder)
			_, err = io.Copy(buf, resp.Body)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.body)
		})
	}
}
