package scoring

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wordsonphone/phrasecurator/pkg/lookup"
)

// Prominence ranking methods
const (
	MethodPageviews = "wiki_pageviews"
	MethodTotalHits = "wiki_totalhits"
	MethodError     = "error"
)

// ArticleSource finds articles and their traffic
type ArticleSource interface {
	FindArticle(ctx context.Context, phrase string) (*lookup.SearchResult, error)
	Pageviews(ctx context.Context, title string) (int, error)
}

// Prominence is a phrase ranked by Wikipedia traffic
type Prominence struct {
	Phrase  string `json:"phrase"`
	Score   int    `json:"score"`
	Method  string `json:"method"`
	Article string `json:"article,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RankByProminence scores each phrase by the three-month pageviews of its
// best matching article, falling back to the search hit count when no
// article matches. At most two phrases are looked up at a time. The result
// is sorted by score, highest first, ties keeping input order.
func RankByProminence(ctx context.Context, source ArticleSource, phrases []string) ([]Prominence, error) {
	ranked := make([]Prominence, len(phrases))

	var g errgroup.Group
	g.SetLimit(2)
	for i, phrase := range phrases {
		g.Go(func() error {
			ranked[i] = prominence(ctx, source, phrase)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func prominence(ctx context.Context, source ArticleSource, phrase string) Prominence {
	p := Prominence{Phrase: phrase}
	article, err := source.FindArticle(ctx, phrase)
	if err != nil {
		p.Method = MethodError
		p.Error = err.Error()
		return p
	}

	if article == nil || article.Title == "" {
		p.Method = MethodTotalHits
		if article != nil {
			p.Score = article.TotalHits
		}
		return p
	}

	p.Method = MethodPageviews
	p.Article = article.Title
	views, err := source.Pageviews(ctx, article.Title)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	p.Score = views
	return p
}
