package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Sitelinks returns the number of Wikimedia sitelinks of the best Wikidata
// match for label, or 0 when nothing matches.
func (c *Client) Sitelinks(ctx context.Context, label string) (int, error) {
	var search struct {
		Search []struct {
			ID string `json:"id"`
		} `json:"search"`
	}
	found, err := c.getJSON(ctx, c.cfg.WikidataEndpoint, url.Values{
		"action":   {"wbsearchentities"},
		"search":   {label},
		"language": {"en"},
		"format":   {"json"},
		"limit":    {"1"},
	}, &search)
	if err != nil {
		return 0, fmt.Errorf("wikidata search: %w", err)
	}
	if !found || len(search.Search) == 0 {
		return 0, nil
	}

	id := search.Search[0].ID
	var entities struct {
		Entities map[string]struct {
			Sitelinks map[string]json.RawMessage `json:"sitelinks"`
		} `json:"entities"`
	}
	found, err = c.getJSON(ctx, c.cfg.WikidataEndpoint, url.Values{
		"action": {"wbgetentities"},
		"ids":    {id},
		"props":  {"sitelinks"},
		"format": {"json"},
	}, &entities)
	if err != nil {
		return 0, fmt.Errorf("wikidata entity %s: %w", id, err)
	}
	if !found {
		return 0, nil
	}
	return len(entities.Entities[id].Sitelinks), nil
}

// RedditEngagement sums post scores of the top results for the quoted phrase
func (c *Client) RedditEngagement(ctx context.Context, phrase string) (int, error) {
	var listing struct {
		Data struct {
			Children []struct {
				Data struct {
					Score int `json:"score"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	found, err := c.getJSON(ctx, c.cfg.RedditEndpoint, url.Values{
		"q":     {`"` + phrase + `"`},
		"sort":  {"relevance"},
		"t":     {"all"},
		"limit": {"25"},
	}, &listing)
	if err != nil {
		return 0, fmt.Errorf("reddit search: %w", err)
	}
	if !found {
		return 0, nil
	}

	total := 0
	for _, child := range listing.Data.Children {
		if child.Data.Score > 0 {
			total += child.Data.Score
		}
	}
	return total, nil
}

// SearchResult is the outcome of a Wikipedia title search
type SearchResult struct {
	Title     string `json:"title,omitempty"`
	TotalHits int    `json:"totalHits"`
	Query     string `json:"query,omitempty"`
}

// SearchStrategies returns the query variants tried in order when looking
// for a phrase's article.
func SearchStrategies(phrase string) []string {
	words := strings.Fields(phrase)
	firstWord := phrase
	if len(words) > 1 {
		firstWord = words[0]
	}
	candidates := []string{
		phrase,
		strings.ReplaceAll(phrase, "'", ""),
		strings.ReplaceAll(phrase, "&", "and"),
		firstWord,
		strings.ReplaceAll(strings.ReplaceAll(phrase, "The ", ""), "the ", ""),
		strings.ReplaceAll(phrase, ".", ""),
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, s := range candidates {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// FindArticle searches Wikipedia with each strategy until one returns
// results, preferring titles that match the phrase. The largest hit count
// seen is kept even when no title is chosen.
func (c *Client) FindArticle(ctx context.Context, phrase string) (*SearchResult, error) {
	var lastErr error
	result := &SearchResult{}
	lowerPhrase := strings.ToLower(phrase)

	for _, query := range SearchStrategies(phrase) {
		var resp struct {
			Query struct {
				SearchInfo struct {
					TotalHits int `json:"totalhits"`
				} `json:"searchinfo"`
				Search []struct {
					Title string `json:"title"`
				} `json:"search"`
			} `json:"query"`
		}
		found, err := c.getJSON(ctx, c.cfg.WikipediaEndpoint, url.Values{
			"action":   {"query"},
			"list":     {"search"},
			"srsearch": {query},
			"format":   {"json"},
			"srlimit":  {"5"},
			"srprop":   {"title"},
		}, &resp)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if !found {
			continue
		}
		if resp.Query.SearchInfo.TotalHits > result.TotalHits {
			result.TotalHits = resp.Query.SearchInfo.TotalHits
		}
		if len(resp.Query.Search) == 0 {
			continue
		}

		lowerQuery := strings.ToLower(query)
		for _, hit := range resp.Query.Search {
			title := strings.ToLower(hit.Title)
			if title == lowerPhrase || title == lowerQuery || strings.Contains(title, lowerPhrase) || sharesLongWord(title, lowerPhrase) {
				return &SearchResult{Title: hit.Title, TotalHits: resp.Query.SearchInfo.TotalHits, Query: query}, nil
			}
		}
		return &SearchResult{Title: resp.Query.Search[0].Title, TotalHits: resp.Query.SearchInfo.TotalHits, Query: query}, nil
	}

	if result.TotalHits == 0 && lastErr != nil {
		return nil, lastErr
	}
	return result, nil
}

func sharesLongWord(title, phrase string) bool {
	for _, w := range strings.Fields(phrase) {
		if len(w) > 3 && strings.Contains(title, w) {
			return true
		}
	}
	return false
}

// PageviewWindow returns the start and end dates covering the last n months,
// formatted for the pageviews API.
func PageviewWindow(now time.Time, months int) (string, string) {
	end := now.AddDate(0, 0, -1).Format("20060102")
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := firstOfMonth.AddDate(0, 0, -30*months)
	return start.Format("200601") + "01", end
}

// Pageviews sums monthly views of an English Wikipedia article over the last
// three months. Missing articles have 0 views.
func (c *Client) Pageviews(ctx context.Context, title string) (int, error) {
	start, end := PageviewWindow(c.now(), 3)
	article := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	endpoint := fmt.Sprintf("%s/%s/monthly/%s/%s", strings.TrimSuffix(c.cfg.PageviewsEndpoint, "/"), article, start, end)

	var resp struct {
		Items []struct {
			Views int `json:"views"`
		} `json:"items"`
	}
	found, err := c.getJSON(ctx, endpoint, nil, &resp)
	if err != nil {
		return 0, fmt.Errorf("pageviews for %s: %w", title, err)
	}
	if !found {
		return 0, nil
	}

	total := 0
	for _, item := range resp.Items {
		total += item.Views
	}
	return total, nil
}
