package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		WikidataEndpoint:  srv.URL + "/wikidata",
		RedditEndpoint:    srv.URL + "/reddit",
		WikipediaEndpoint: srv.URL + "/wikipedia",
		PageviewsEndpoint: srv.URL + "/pageviews",
		Timeout:           2 * time.Second,
	}, logging.NewNop())
}

func TestSitelinks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wikidata", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch r.URL.Query().Get("action") {
		case "wbsearchentities":
			if r.URL.Query().Get("search") == "Nothing Here" {
				fmt.Fprint(w, `{"search":[]}`)
				return
			}
			fmt.Fprint(w, `{"search":[{"id":"Q26876"}]}`)
		case "wbgetentities":
			fmt.Fprint(w, `{"entities":{"Q26876":{"sitelinks":{"enwiki":{"title":"Taylor Swift"},"dewiki":{},"frwiki":{}}}}}`)
		}
	})

	n, err := client.Sitelinks(context.Background(), "Taylor Swift")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = client.Sitelinks(context.Background(), "Nothing Here")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedditEngagement(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"pizza party"`, r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"data":{"children":[{"data":{"score":1200}},{"data":{"score":-5}},{"data":{"score":300}}]}}`)
	})

	total, err := client.RedditEngagement(context.Background(), "pizza party")
	require.NoError(t, err)
	assert.Equal(t, 1500, total)
}

func TestUpstreamErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reddit":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/wikidata":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, "not json")
		}
	})

	_, err := client.RedditEngagement(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = client.Sitelinks(context.Background(), "x")
	assert.Error(t, err)

	_, err = client.Pageviews(context.Background(), "X")
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	})
	client.cfg.Timeout = 20 * time.Millisecond

	_, err := client.RedditEngagement(context.Background(), "slow")
	assert.Error(t, err)
}

func TestSearchStrategies(t *testing.T) {
	assert.Equal(t, []string{
		"The Queen's Gambit",
		"The Queens Gambit",
		"The",
		"Queen's Gambit",
	}, SearchStrategies("The Queen's Gambit"))

	assert.Equal(t, []string{"Tom & Jerry", "Tom and Jerry", "Tom"}, SearchStrategies("Tom & Jerry"))
	assert.Equal(t, []string{"Jaws"}, SearchStrategies("Jaws"))
}

func TestFindArticleFallsBackAcrossStrategies(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query().Get("srsearch")
		if strings.Contains(q, "&") {
			fmt.Fprint(w, `{"query":{"searchinfo":{"totalhits":0},"search":[]}}`)
			return
		}
		fmt.Fprint(w, `{"query":{"searchinfo":{"totalhits":4200},"search":[{"title":"Cartoon history"},{"title":"Tom and Jerry"}]}}`)
	})

	result, err := client.FindArticle(context.Background(), "Tom & Jerry")
	require.NoError(t, err)
	assert.Equal(t, "Tom and Jerry", result.Title)
	assert.Equal(t, "Tom and Jerry", result.Query)
	assert.Equal(t, 4200, result.TotalHits)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPageviews(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.EscapedPath(), "Missing_Article") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Contains(t, r.URL.EscapedPath(), "/pageviews/Taylor_Swift/monthly/20260701/20261015")
		fmt.Fprint(w, `{"items":[{"views":100000},{"views":250000},{"views":50000}]}`)
	})
	client.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	views, err := client.Pageviews(context.Background(), "Taylor Swift")
	require.NoError(t, err)
	assert.Equal(t, 400000, views)

	views, err = client.Pageviews(context.Background(), "Missing Article")
	require.NoError(t, err)
	assert.Zero(t, views)
}

func TestPageviewWindow(t *testing.T) {
	start, end := PageviewWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 3)
	assert.Equal(t, "20251201", start)
	assert.Equal(t, "20260228", end)
}
